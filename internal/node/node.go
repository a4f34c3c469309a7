// Package node implements the Raymond tree-based mutual exclusion
// automaton and its crash/recovery extension. Each Node is a
// single-threaded actor: all state in this file is owned exclusively by
// the goroutine running (*Node).Run, except the fields Snapshot reads
// under mu for external observers (the driver, tests, logging).
//
// The shape — a struct of plain fields plus mutex-guarded external
// reads — is carried over from the teacher's ChubbyCell
// (IsAlive/IsLeader/CurrentLock behind a sync.Mutex), retyped for
// Raymond's holder/requestQueue/using/asked instead of a lock service's
// lease state.
package node

import (
	"sync"
	"time"

	"raymond-mutex/internal/config"
	"raymond-mutex/internal/logging"
	"raymond-mutex/internal/metrics"
	"raymond-mutex/internal/transport"
	"raymond-mutex/internal/wire"

	"github.com/hashicorp/go-hclog"
)

// Phase is the node's lifecycle tag. The Crashed phase is what expresses
// the "using/asked are unknown" state the spec describes: rather than an
// optional bool, every handler that needs using/asked gates on phase
// first.
type Phase int

const (
	Uninitialized Phase = iota
	Normal
	Crashed
	Recovering
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Normal:
		return "normal"
	case Crashed:
		return "crashed"
	case Recovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// Node is one participant in the tree. Construct with New, wire its
// neighbors with Bootstrap, then run it with Run on its own goroutine.
type Node struct {
	id   wire.NodeID
	self transport.Peer
	tr   *transport.Transport
	cfg  config.Config
	log  hclog.Logger

	neighbors    []transport.Peer
	neighborByID map[wire.NodeID]transport.Peer

	holder       *transport.Peer
	requestQueue []transport.Peer
	using        bool
	asked        bool
	phase        Phase

	adviseBuffer        map[wire.NodeID]wire.Advise
	selfQueued          bool // "append self at most once" guard during one reconciliation pass
	pendingUserRequests int  // REQUEST commands issued while Recovering, drained in reconcile step 4
	csStart             time.Time

	mu     sync.Mutex // guards only cached, the snapshot external readers see
	cached Snapshot
}

// New constructs an uninitialized node. self is the Peer handle for
// this node's own mailbox (allocated by the caller via
// transport.Transport.NewPeer so it can be handed to siblings before
// this node exists as a goroutine).
func New(id wire.NodeID, self transport.Peer, tr *transport.Transport, cfg config.Config) *Node {
	metrics.Init()
	return &Node{
		id:           id,
		self:         self,
		tr:           tr,
		cfg:          cfg,
		log:          logging.ForNode(int(id)),
		neighborByID: make(map[wire.NodeID]transport.Peer),
		phase:        Uninitialized,
	}
}

// Self returns this node's own Peer handle, for the orchestrator to hand
// to siblings.
func (n *Node) Self() transport.Peer { return n.self }

// ID returns this node's id.
func (n *Node) ID() wire.NodeID { return n.id }

// Bootstrap wires this node's neighbor set and, if isStarter, schedules
// the self-addressed Initialize that seeds the oriented tree. This is
// the one setup step the spec treats as coming from an external
// orchestrator rather than over the protocol's own mailbox: neighbor
// Peers carry a live mailbox reference that would not survive a
// msgpack round trip, so the orchestrator injects them directly rather
// than encoding a BootstrapMessage onto the wire. Must be called before
// Run starts.
func (n *Node) Bootstrap(neighbors []transport.Peer, isStarter bool) {
	n.neighbors = neighbors
	for _, p := range neighbors {
		n.neighborByID[p.ID()] = p
	}
	n.log.Info("bootstrap", "neighbors", len(neighbors), "starter", isStarter)

	if isStarter {
		n.tr.ScheduleSelf(n.self, n.cfg.BootstrapDelay, wire.Initialize{SenderID: n.id})
	}
	n.publishSnapshot()
}

// Snapshot is a point-in-time copy of the node's state, safe to read
// from any goroutine. It exists purely for observers (driver status
// dumps, tests asserting on the testable properties in SPEC_FULL.md §8);
// the protocol itself never reads through it.
type Snapshot struct {
	ID           wire.NodeID
	Phase        Phase
	Holder       *wire.NodeID
	RequestQueue []wire.NodeID
	Using        bool
	Asked        bool
}

// Snapshot returns the most recently published state, safe to call from
// any goroutine while the node's own goroutine keeps running.
func (n *Node) Snapshot() Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cached
}

// publishSnapshot recomputes cached from the actor's own fields and
// stores it under mu. Called once per dispatched message, from the
// node's own goroutine at the end of Run's loop body — the single
// point where this single-writer state becomes visible to everyone
// else, the same discipline the teacher's ChubbyCell methods apply
// per-method instead of per-message.
func (n *Node) publishSnapshot() {
	s := Snapshot{
		ID:    n.id,
		Phase: n.phase,
		Using: n.using,
		Asked: n.asked,
	}
	if n.holder != nil {
		id := n.holder.ID()
		s.Holder = &id
	}
	for _, p := range n.requestQueue {
		s.RequestQueue = append(s.RequestQueue, p.ID())
	}

	n.mu.Lock()
	n.cached = s
	n.mu.Unlock()
}

func (n *Node) isSelf(p transport.Peer) bool {
	return p == n.self
}

func (n *Node) holderIsSelf() bool {
	return n.holder != nil && *n.holder == n.self
}

func peerPtr(p transport.Peer) *transport.Peer {
	return &p
}

// assignPrivilege hands the token to the head of requestQueue, entering
// the critical section locally if that head is self. Preconditions:
// holder == self, !using, requestQueue non-empty; a no-op otherwise.
func (n *Node) assignPrivilege() {
	if !n.holderIsSelf() || n.using || len(n.requestQueue) == 0 {
		return
	}

	head := n.requestQueue[0]
	n.requestQueue = n.requestQueue[1:]
	n.holder = peerPtr(head)
	n.asked = false

	if n.isSelf(head) {
		n.using = true
		n.csStart = time.Now()
		n.log.Info("ENTER critical section")
		metrics.CriticalSectionEntered(int(n.id))
		n.tr.ScheduleSelf(n.self, n.cfg.CriticalSectionTime, wire.ExitCriticalSection{})
		return
	}

	n.send(head, wire.Privilege{SenderID: n.id})
}

// makeRequest sends a Request to holder if this node wants the token
// (its queue is non-empty) and hasn't already asked. Calling it before
// initialization is a logged precondition violation, not a panic: the
// node stays live and simply cannot progress until an Initialize
// arrives.
func (n *Node) makeRequest() {
	if n.holder == nil {
		n.log.Error("make_request called before initialization")
		return
	}
	if n.holderIsSelf() || len(n.requestQueue) == 0 || n.asked {
		return
	}
	n.send(*n.holder, wire.Request{SenderID: n.id})
	n.asked = true
}

func (n *Node) send(to transport.Peer, msg wire.Message) {
	if err := n.tr.Send(to, msg); err != nil {
		n.log.Error("send failed", "kind", msg.Kind(), "to", to.ID(), "error", err)
		return
	}
	metrics.MessageSent(msg.Kind())
}

// enqueueUnlessPresent appends p to requestQueue unless a peer with the
// same id is already queued. Used by recovery reconstruction, which
// must not double-count a neighbor's outstanding request across
// multiple advisories (SPEC_FULL.md §4.3).
func (n *Node) enqueueUnlessPresent(p transport.Peer) {
	for _, q := range n.requestQueue {
		if q.ID() == p.ID() {
			return
		}
	}
	n.requestQueue = append(n.requestQueue, p)
}

// enqueueSelfOnce appends self to requestQueue at most once per
// reconciliation pass, resolving the "append once per stale neighbor vs.
// once total" discrepancy the spec flags in favor of "at most once".
func (n *Node) enqueueSelfOnce() {
	if n.selfQueued {
		return
	}
	n.requestQueue = append(n.requestQueue, n.self)
	n.selfQueued = true
}
