// Package transport provides the point-to-point, FIFO-per-pair message
// delivery the Raymond protocol runs on, plus a self-scheduling timer
// facility. It is the in-process stand-in for the "actor transport
// primitive" the distilled specification treats as an external
// collaborator: something has to actually move bytes between goroutines
// in a runnable program, so this package plays that role, modeled after
// how every teacher session crossed a real net/rpc connection rather
// than sharing memory with its server.
package transport

import (
	"fmt"
	"time"

	"raymond-mutex/internal/wire"
)

// Peer is a comparable handle naming one node's mailbox. Two Peers
// compare equal iff they name the same mailbox, which is all the
// protocol ever needs to ask of an address.
type Peer struct {
	id      wire.NodeID
	mailbox *mailbox
}

// ID returns the peer's node id, used only for logging and for the
// advisory bookkeeping that is keyed by id rather than by Peer itself.
func (p Peer) ID() wire.NodeID {
	return p.id
}

func (p Peer) String() string {
	return fmt.Sprintf("node-%d", p.id)
}

// mailbox is the delivery endpoint behind a Peer. A buffered channel
// gives FIFO-per-sender delivery for free: Go channels preserve send
// order, and every Transport.Send for a given (from, to) pair performs
// its channel send from the sending node's single goroutine, so the
// pairwise order the protocol depends on is automatic.
type mailbox struct {
	deliveries chan wire.Envelope
}

func newMailbox(capacity int) *mailbox {
	return &mailbox{deliveries: make(chan wire.Envelope, capacity)}
}

// Transport is the shared, externally-thread-safe collaborator every
// node sends through. It holds no protocol state of its own; it is pure
// plumbing, matching the spec's framing of the transport as a leaf
// dependency.
type Transport struct {
	mailboxCapacity int
}

// New returns a Transport whose per-node mailboxes each buffer up to
// 256 pending deliveries before Send blocks. The capacity is fixed; New
// takes no argument to change it.
func New() *Transport {
	return &Transport{mailboxCapacity: 256}
}

// NewPeer allocates a fresh mailbox and returns the Peer handle for it.
// The caller (normally node construction) keeps the returned Peer and
// hands copies of it to every other node as their view of "this node".
func (t *Transport) NewPeer(id wire.NodeID) Peer {
	return Peer{id: id, mailbox: newMailbox(t.mailboxCapacity)}
}

// Send msgpack-encodes msg and delivers it to to's mailbox. Delivery to
// a crashed node's mailbox still succeeds at the transport layer — the
// spec is explicit that the mailbox keeps accepting while a node is
// Crashed, and it is the node's own dispatch loop that discards the
// message on read.
func (t *Transport) Send(to Peer, msg wire.Message) error {
	env, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	to.mailbox.deliveries <- env
	return nil
}

// ScheduleSelf delivers msg to self's own mailbox after the given
// delay, via time.AfterFunc. It is how the critical-section timer and
// the crash timer are expressed: there is no blocking sleep inside a
// handler, only a message that will re-enter the mailbox later. The
// timer cannot be cancelled, by design (see SPEC_FULL.md §5) — handlers
// that might receive a stale timer message guard themselves by
// re-checking phase, not by suppressing delivery.
func (t *Transport) ScheduleSelf(self Peer, after time.Duration, msg wire.Message) {
	time.AfterFunc(after, func() {
		// A send error here can only mean the encode itself failed,
		// which would be a programmer error (an unregistered message
		// kind); there is nothing a background timer callback can do
		// about that but drop it loudly during development.
		if err := t.Send(self, msg); err != nil {
			panic(fmt.Sprintf("transport: scheduled self-delivery to %s failed: %v", self, err))
		}
	})
}

// Inbox exposes the receive side of a peer's mailbox to its own node's
// run loop. It is intentionally not part of the Peer type other nodes
// hold, so a node can only ever be sent to, never read from, by anyone
// but itself.
func Inbox(p Peer) <-chan wire.Envelope {
	return p.mailbox.deliveries
}
