package node

import (
	"raymond-mutex/internal/metrics"
	"raymond-mutex/internal/wire"
)

// dispatch routes one decoded message to its handler. It is called from
// Run, once per mailbox delivery, on the node's own goroutine.
func (n *Node) dispatch(msg wire.Message) {
	switch m := msg.(type) {
	case wire.Initialize:
		n.onInitialize(m)
	case wire.Request:
		n.onRequest(m)
	case wire.Privilege:
		n.onPrivilege(m)
	case wire.Restart:
		n.onRestart(m)
	case wire.Advise:
		n.onAdvise(m)
	case wire.ExitCriticalSection:
		n.onExitCriticalSection(m)
	case wire.Recovery:
		n.onRecoveryTimer(m)
	case wire.UserInput:
		n.onUserInput(m)
	default:
		n.log.Error("dispatch: unhandled message", "kind", msg.Kind())
	}
}

// onInitialize seeds or extends the oriented tree. The starter's own
// bootstrap timer delivers this with SenderID == n.id; every other node
// receives it from the neighbor that is now its path toward the token.
func (n *Node) onInitialize(m wire.Initialize) {
	if n.phase == Crashed {
		return
	}
	n.log.Info("RECEIVE", "kind", m.Kind(), "from", m.SenderID)

	if m.SenderID == n.id {
		n.holder = peerPtr(n.self)
	} else {
		sender, ok := n.neighborByID[m.SenderID]
		if !ok {
			n.log.Error("INITIALIZE from unknown sender", "from", m.SenderID)
			return
		}
		n.holder = peerPtr(sender)
	}
	n.phase = Normal

	for _, p := range n.neighbors {
		if n.holder != nil && p.ID() == n.holder.ID() {
			continue
		}
		n.send(p, wire.Initialize{SenderID: n.id})
	}
}

// onRequest handles an incoming REQUEST. The append happens whenever
// the node is not Crashed, including while Recovering; only the
// assign/make calls wait for reconciliation to finish.
func (n *Node) onRequest(m wire.Request) {
	if n.phase == Crashed {
		return
	}
	sender, ok := n.neighborByID[m.SenderID]
	if !ok {
		n.log.Error("REQUEST from unknown sender", "from", m.SenderID)
		return
	}
	n.log.Info("RECEIVE", "kind", m.Kind(), "from", m.SenderID)

	n.requestQueue = append(n.requestQueue, sender)

	if n.phase != Recovering {
		n.assignPrivilege()
		n.makeRequest()
	}
}

// onPrivilege hands this node the token. It is special-cased to run
// even while Recovering (only Crashed short-circuits it), because the
// recovery reasoner's holdsPrivilege detection depends on seeing
// holder == self by the time reconciliation runs.
func (n *Node) onPrivilege(m wire.Privilege) {
	if n.phase == Crashed {
		return
	}
	n.log.Info("RECEIVE", "kind", m.Kind(), "from", m.SenderID)

	n.holder = peerPtr(n.self)

	if n.phase != Recovering {
		n.assignPrivilege()
		n.makeRequest()
	}
}

// onExitCriticalSection is the self-message scheduled by assignPrivilege
// when this node entered its critical section. A stale delivery (one
// that outlived a crash/recovery cycle) is recognized because phase
// will no longer be Normal, and is dropped rather than honored.
func (n *Node) onExitCriticalSection(wire.ExitCriticalSection) {
	if n.phase != Normal {
		n.log.Warn("stale EXIT_CS ignored", "phase", n.phase)
		return
	}
	n.log.Info("EXIT critical section")
	metrics.CriticalSectionDuration(n.csStart)
	n.using = false
	n.assignPrivilege()
	n.makeRequest()
}

// onRestart answers a recovering neighbor's request for an advisory
// about the edge between them. A Crashed node drops this like any other
// protocol message; a Recovering node still answers truthfully with
// whatever state it currently has, since recovery on one edge does not
// pause activity on the others.
func (n *Node) onRestart(m wire.Restart) {
	if n.phase == Crashed {
		return
	}
	sender, ok := n.neighborByID[m.SenderID]
	if !ok {
		n.log.Error("RESTART from unknown sender", "from", m.SenderID)
		return
	}
	n.log.Info("RECEIVE", "kind", m.Kind(), "from", m.SenderID)

	xIsHolderOfY := n.holder != nil && *n.holder == sender
	xInRequestQueue := false
	for _, q := range n.requestQueue {
		if q.ID() == sender.ID() {
			xInRequestQueue = true
			break
		}
	}

	n.send(sender, wire.Advise{
		SenderID:         n.id,
		XIsHolderOfY:     xIsHolderOfY,
		XInYRequestQueue: xInRequestQueue,
		YAsked:           n.asked,
	})
}

// onAdvise buffers one neighbor's advisory and, once every neighbor has
// answered, runs reconciliation exactly once.
func (n *Node) onAdvise(m wire.Advise) {
	if n.phase != Recovering {
		n.log.Warn("stale ADVISE ignored", "from", m.SenderID, "phase", n.phase)
		return
	}
	n.log.Info("RECEIVE", "kind", m.Kind(), "from", m.SenderID)

	n.adviseBuffer[m.SenderID] = m
	if len(n.adviseBuffer) < len(n.neighbors) {
		return
	}
	n.reconcile()
}

// onRecoveryTimer fires CrashTime after crash() scheduled it. It is the
// only message a Crashed node still honors.
func (n *Node) onRecoveryTimer(wire.Recovery) {
	if n.phase != Crashed {
		n.log.Warn("stale RECOVERY_TIMER ignored", "phase", n.phase)
		return
	}
	n.log.Info("starts RECOVERY")
	n.phase = Recovering
	n.adviseBuffer = make(map[wire.NodeID]wire.Advise, len(n.neighbors))
	n.selfQueued = false
	n.pendingUserRequests = 0

	for _, p := range n.neighbors {
		n.send(p, wire.Restart{SenderID: n.id})
	}
}

// onUserInput handles a command injected by the interactive driver.
func (n *Node) onUserInput(m wire.UserInput) {
	switch m.Command {
	case wire.RequestCommand:
		n.onUserRequest()
	case wire.CrashCommand:
		n.onUserCrash()
	default:
		n.log.Error("unknown user command", "command", m.Command)
	}
}

func (n *Node) onUserRequest() {
	switch n.phase {
	case Crashed:
		n.log.Warn("REQUEST rejected: node is crashed")
	case Recovering:
		n.log.Info("REQUEST command received, deferred until recovery completes")
		n.pendingUserRequests++
	default: // Normal or Uninitialized
		n.log.Info("REQUEST command received")
		n.requestQueue = append(n.requestQueue, n.self)
		n.assignPrivilege()
		n.makeRequest()
	}
}

func (n *Node) onUserCrash() {
	if n.phase != Normal || n.using {
		n.log.Warn("CRASH rejected", "phase", n.phase, "using", n.using)
		return
	}
	n.crash()
}

// crash drives the node into the Crashed phase: wipes holder/queue/
// asked/using and schedules the recovery timer. This is the Go
// retyping of the teacher's ChubbyCell.SimulateFailure, generalized
// from "mark dead" to "wipe protocol state and schedule a comeback".
func (n *Node) crash() {
	n.log.Info("CRASHED")
	metrics.NodeCrashed(int(n.id))

	n.phase = Crashed
	n.holder = nil
	n.requestQueue = nil
	n.using = false
	n.asked = false

	n.tr.ScheduleSelf(n.self, n.cfg.CrashTime, wire.Recovery{})
}
