package node

import (
	"context"

	"raymond-mutex/internal/transport"
	"raymond-mutex/internal/wire"
)

// Run is the node's single goroutine: it selects over its own mailbox
// and ctx.Done, decoding and dispatching one envelope to completion
// before reading the next. Once Run has started, this is the only place
// any field besides cached is ever touched and the only place
// publishSnapshot is called (Bootstrap, which must return before Run
// starts, sets the neighbor fields and publishes the first snapshot),
// which is what makes the single-writer discipline in SPEC_FULL.md §5
// hold.
func (n *Node) Run(ctx context.Context) {
	inbox := transport.Inbox(n.self)
	for {
		select {
		case <-ctx.Done():
			n.log.Info("shutting down")
			return
		case env := <-inbox:
			msg, err := wire.Decode(env)
			if err != nil {
				n.log.Error("decode failed", "kind", env.Kind, "error", err)
				continue
			}
			n.dispatch(msg)
			n.publishSnapshot()
		}
	}
}
