package transport

import (
	"testing"
	"time"

	"raymond-mutex/internal/wire"
)

func TestSendDeliversDecodableEnvelope(t *testing.T) {
	tr := New()
	a := tr.NewPeer(1)

	if err := tr.Send(a, wire.Request{SenderID: 2}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	env := <-Inbox(a)
	msg, err := wire.Decode(env)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	req, ok := msg.(wire.Request)
	if !ok {
		t.Fatalf("decoded %T, want wire.Request", msg)
	}
	if req.SenderID != 2 {
		t.Errorf("SenderID = %d, want 2", req.SenderID)
	}
}

func TestSendPreservesPerPairOrder(t *testing.T) {
	tr := New()
	a := tr.NewPeer(1)

	for i := 0; i < 5; i++ {
		if err := tr.Send(a, wire.Request{SenderID: wire.NodeID(i)}); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}

	for i := 0; i < 5; i++ {
		env := <-Inbox(a)
		msg, err := wire.Decode(env)
		if err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		req := msg.(wire.Request)
		if req.SenderID != wire.NodeID(i) {
			t.Errorf("delivery %d: SenderID = %d, want %d", i, req.SenderID, i)
		}
	}
}

func TestScheduleSelfDeliversAfterDelay(t *testing.T) {
	tr := New()
	a := tr.NewPeer(1)

	start := time.Now()
	tr.ScheduleSelf(a, 20*time.Millisecond, wire.ExitCriticalSection{})

	select {
	case env := <-Inbox(a):
		if time.Since(start) < 15*time.Millisecond {
			t.Errorf("delivered too early: %v", time.Since(start))
		}
		if env.Kind != (wire.ExitCriticalSection{}).Kind() {
			t.Errorf("Kind = %q, want EXIT_CS", env.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("scheduled self-message never arrived")
	}
}

func TestPeerEqualityIsMailboxIdentity(t *testing.T) {
	tr := New()
	a := tr.NewPeer(1)
	b := tr.NewPeer(1) // same id, distinct mailbox

	if a == b {
		t.Error("distinct peers with the same id compared equal")
	}
	if a != a {
		t.Error("a peer did not compare equal to itself")
	}
}
