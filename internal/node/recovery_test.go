package node

import (
	"testing"

	"raymond-mutex/internal/config"
	"raymond-mutex/internal/transport"
	"raymond-mutex/internal/wire"
)

// These tests drive the recovery reasoner directly (same package, so
// private fields and handlers are reachable) rather than through a live
// Run loop: the scenarios they cover depend on advisory values that are
// only reachable by a precise interleaving of crash and in-flight
// messages, which is easier to construct deterministically than to
// race for.

func newTestNode(id wire.NodeID, tr *transport.Transport) *Node {
	return New(id, tr.NewPeer(id), tr, config.Default())
}

// Line tree A-B-C. B is the recovering node under test; A and C are
// only used as addressable peers for the advisories B exchanges with
// them, not run as goroutines.
func lineTrioForRecovery() (a, b, c *Node) {
	tr := transport.New()
	a = newTestNode(0, tr)
	b = newTestNode(1, tr)
	c = newTestNode(2, tr)
	b.neighbors = []transport.Peer{a.Self(), c.Self()}
	b.neighborByID = map[wire.NodeID]transport.Peer{a.ID(): a.Self(), c.ID(): c.Self()}
	return a, b, c
}

// Scenario: B crashed while holding an outstanding upward request to A
// that neither neighbor has any record of granting back. Reconciliation
// must fall back to holder == self with an empty queue.
func TestRecoveryReconstructsWithoutPrivilegeInFlight(t *testing.T) {
	a, b, c := lineTrioForRecovery()
	b.phase = Normal
	b.holder = peerPtr(a.Self())

	b.phase = Crashed
	b.onRecoveryTimer(wire.Recovery{})
	if b.phase != Recovering {
		t.Fatalf("phase = %s, want Recovering", b.phase)
	}

	b.onAdvise(wire.Advise{SenderID: a.ID(), XIsHolderOfY: true, XInYRequestQueue: false, YAsked: false})
	b.onAdvise(wire.Advise{SenderID: c.ID(), XIsHolderOfY: true, XInYRequestQueue: false, YAsked: false})
	b.publishSnapshot()

	snap := b.Snapshot()
	if snap.Phase != Normal {
		t.Fatalf("phase = %s, want Normal", snap.Phase)
	}
	if snap.Holder == nil || *snap.Holder != b.ID() {
		t.Fatalf("holder = %v, want self (%d)", snap.Holder, b.ID())
	}
	if len(snap.RequestQueue) != 0 {
		t.Fatalf("requestQueue = %v, want empty", snap.RequestQueue)
	}
	if snap.Asked || snap.Using {
		t.Fatalf("asked=%v using=%v, want both false", snap.Asked, snap.Using)
	}
}

// Scenario: a PrivilegeMessage reaches B while it is Recovering (allowed
// through because only the Crashed check gates PrivilegeMessage), and
// every neighbor's advisory is stale relative to that grant. Self must
// be enqueued exactly once despite two stale advisories, and B must
// enter its critical section once reconciliation completes.
func TestRecoveryWithPrivilegeInFlightGrantsSelf(t *testing.T) {
	a, b, c := lineTrioForRecovery()
	b.phase = Normal
	b.holder = peerPtr(a.Self())

	b.phase = Crashed
	b.onRecoveryTimer(wire.Recovery{})

	b.onPrivilege(wire.Privilege{SenderID: a.ID()})
	if !b.holderIsSelf() {
		t.Fatal("PrivilegeMessage while Recovering did not set holder to self")
	}

	b.onAdvise(wire.Advise{SenderID: a.ID(), XIsHolderOfY: false, XInYRequestQueue: false, YAsked: false})
	b.onAdvise(wire.Advise{SenderID: c.ID(), XIsHolderOfY: false, XInYRequestQueue: false, YAsked: false})
	b.publishSnapshot()

	snap := b.Snapshot()
	if snap.Phase != Normal {
		t.Fatalf("phase = %s, want Normal", snap.Phase)
	}
	if !snap.Using {
		t.Fatal("B did not enter its critical section after reconciliation")
	}
	if len(snap.RequestQueue) != 0 {
		t.Fatalf("requestQueue = %v, want empty after self was dequeued", snap.RequestQueue)
	}
}

// Star with center 0 and leaves 1-4. Two leaves have outstanding
// requests that the center never locally recorded before crashing;
// reconciliation must reconstruct both from the leaves' own advisories,
// admit each exactly once, and grant the head.
func TestRecoveryAdmitsBothPendingLeavesExactlyOnce(t *testing.T) {
	tr := transport.New()
	center := newTestNode(0, tr)
	leaves := make([]*Node, 4)
	var neighborPeers []transport.Peer
	neighborByID := make(map[wire.NodeID]transport.Peer)
	for i := range leaves {
		leaves[i] = newTestNode(wire.NodeID(i+1), tr)
		neighborPeers = append(neighborPeers, leaves[i].Self())
		neighborByID[leaves[i].ID()] = leaves[i].Self()
	}
	center.neighbors = neighborPeers
	center.neighborByID = neighborByID

	center.phase = Normal
	center.holder = peerPtr(center.Self())
	center.phase = Crashed
	center.onRecoveryTimer(wire.Recovery{})

	l1, l2, l3, l4 := leaves[0], leaves[1], leaves[2], leaves[3]
	center.onAdvise(wire.Advise{SenderID: l1.ID(), XIsHolderOfY: true, XInYRequestQueue: false, YAsked: true})
	center.onAdvise(wire.Advise{SenderID: l2.ID(), XIsHolderOfY: true, XInYRequestQueue: false, YAsked: true})
	center.onAdvise(wire.Advise{SenderID: l3.ID(), XIsHolderOfY: true, XInYRequestQueue: false, YAsked: false})
	center.onAdvise(wire.Advise{SenderID: l4.ID(), XIsHolderOfY: true, XInYRequestQueue: false, YAsked: false})
	center.publishSnapshot()

	snap := center.Snapshot()
	if snap.Phase != Normal {
		t.Fatalf("phase = %s, want Normal", snap.Phase)
	}
	if snap.Holder == nil || *snap.Holder != l1.ID() {
		t.Fatalf("holder = %v, want the head of the reconstructed queue (%d)", snap.Holder, l1.ID())
	}
	if len(snap.RequestQueue) != 1 || snap.RequestQueue[0] != l2.ID() {
		t.Fatalf("requestQueue = %v, want [%d] after granting the head", snap.RequestQueue, l2.ID())
	}
	if !snap.Asked {
		t.Fatal("center should have re-requested the token from the new holder")
	}
}
