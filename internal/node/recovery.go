package node

import (
	"sort"

	"raymond-mutex/internal/metrics"
	"raymond-mutex/internal/wire"
)

// reconcile runs exactly once per recovery cycle, after an advisory has
// been collected from every neighbor. It derives a consistent holder and
// requestQueue from what the neighbors actually observed, rather than
// trusting whatever this node's own pre-crash memory said.
func (n *Node) reconcile() {
	n.using = false
	n.asked = false
	n.selfQueued = false

	holdsPrivilege := n.phase == Recovering && n.holder != nil && *n.holder == n.self
	if !holdsPrivilege {
		n.holder = peerPtr(n.self)
	}

	for _, nid := range n.sortedAdviseSenders() {
		a := n.adviseBuffer[nid]
		sender := n.neighborByID[nid]

		if !a.XIsHolderOfY {
			if holdsPrivilege {
				n.asked = true
				n.enqueueSelfOnce()
				continue
			}
			n.holder = peerPtr(sender)
			if a.XInYRequestQueue {
				n.asked = true
				n.enqueueSelfOnce()
			}
			continue
		}

		if a.YAsked {
			n.enqueueUnlessPresent(sender)
		}
	}

	n.adviseBuffer = nil
	for i := 0; i < n.pendingUserRequests; i++ {
		n.requestQueue = append(n.requestQueue, n.self)
	}
	n.pendingUserRequests = 0
	n.phase = Normal

	n.log.Info("RECOVERY complete",
		"holder", n.holder.ID(),
		"asked", n.asked,
		"using", n.using,
		"queue_len", len(n.requestQueue),
	)
	metrics.NodeRecovered(int(n.id))

	n.assignPrivilege()
	n.makeRequest()
}

// sortedAdviseSenders returns the neighbor ids with a buffered advisory,
// ascending, so reconciliation runs in a deterministic order regardless
// of arrival order.
func (n *Node) sortedAdviseSenders() []wire.NodeID {
	ids := make([]wire.NodeID, 0, len(n.adviseBuffer))
	for id := range n.adviseBuffer {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
