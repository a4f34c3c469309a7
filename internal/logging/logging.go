// Package logging wraps hashicorp/go-hclog into the per-node structured
// loggers the rest of this module uses, generalizing the teacher's
// log.New(os.Stderr, "[client] ", log.LstdFlags) string-prefix
// convention into structured fields that survive being grepped or piped
// to a JSON sink.
package logging

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// Root is the process-wide logger every node and the driver derive
// their sub-loggers from; cmd/raymond also logs through it directly.
var Root = hclog.New(&hclog.LoggerOptions{
	Name:            "raymond",
	Level:           hclog.Info,
	Output:          os.Stderr,
	IncludeLocation: false,
})

// ForNode returns a logger that tags every line with the node's id, the
// structured-fields analogue of the teacher's "[client] "/"[server] "
// prefixes.
func ForNode(id int) hclog.Logger {
	return Root.Named("node").With("node_id", id)
}

// ForDriver returns the logger the interactive driver uses for
// process-wide events that aren't scoped to one node.
func ForDriver() hclog.Logger {
	return Root.Named("driver")
}
