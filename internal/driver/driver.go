// Package driver is the interactive front end: it owns one node goroutine
// per topology node, reads REQUEST/CRASH commands from stdin, and
// optionally dumps a periodic JSON status snapshot to disk. It is the
// generalization of the teacher's cmd/acquire_lock_client.go — a single
// flag-configured client driving one session — into a multi-node
// interactive command loop that drives a whole tree of nodes at once.
package driver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"

	"raymond-mutex/internal/config"
	"raymond-mutex/internal/logging"
	"raymond-mutex/internal/metrics"
	"raymond-mutex/internal/node"
	"raymond-mutex/internal/topology"
	"raymond-mutex/internal/transport"
	"raymond-mutex/internal/wire"
)

var (
	csColor    = color.New(color.FgGreen)
	crashColor = color.New(color.FgRed)
	recColor   = color.New(color.FgYellow)
	warnColor  = color.New(color.FgYellow, color.Bold)
)

// Driver owns the full fleet of node goroutines for one run of the
// program, plus the interactive command surface and optional status
// dump that sit on top of them.
type Driver struct {
	tr    *transport.Transport
	tree  *topology.Tree
	nodes map[wire.NodeID]*node.Node
	peers map[wire.NodeID]transport.Peer
	log   hclog.Logger

	statusFile     string
	statusInterval time.Duration
}

// New constructs every node in tree, wires their neighbor sets, and
// designates tree.Starter. It does not start any goroutines yet; call
// Run for that.
func New(tree *topology.Tree, cfg config.Config, statusFile string, statusInterval time.Duration) (*Driver, error) {
	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("driver: invalid topology: %w", err)
	}

	tr := transport.New()
	d := &Driver{
		tr:             tr,
		tree:           tree,
		nodes:          make(map[wire.NodeID]*node.Node),
		peers:          make(map[wire.NodeID]transport.Peer),
		log:            logging.ForDriver(),
		statusFile:     statusFile,
		statusInterval: statusInterval,
	}

	for _, id := range tree.Nodes() {
		peer := tr.NewPeer(id)
		d.peers[id] = peer
		d.nodes[id] = node.New(id, peer, tr, cfg)
	}
	for _, id := range tree.Nodes() {
		var neighbors []transport.Peer
		for _, nid := range tree.Neighbors(id) {
			neighbors = append(neighbors, d.peers[nid])
		}
		d.nodes[id].Bootstrap(neighbors, id == tree.Starter)
	}
	return d, nil
}

// Run starts every node's goroutine, then blocks reading command lines
// from in until it is closed, ctx is cancelled, or a SIGINT/SIGTERM
// arrives.
func (d *Driver) Run(ctx context.Context, in io.Reader) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, n := range d.nodes {
		wg.Add(1)
		go func(n *node.Node) {
			defer wg.Done()
			n.Run(ctx)
		}(n)
	}

	if d.statusFile != "" && d.statusInterval > 0 {
		go d.runStatusDump(ctx)
	}

	scanErrs := make(chan error, 1)
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		scanErrs <- scanner.Err()
	}()

	recColor.Fprintf(os.Stdout, "ready: %d nodes, starter=%d\n", len(d.nodes), d.tree.Starter)
	d.log.Info("ready", "nodes", len(d.nodes), "starter", d.tree.Starter)
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case line, ok := <-lines:
			if !ok {
				stop() // stdin closed: shut the fleet down too.
				wg.Wait()
				return <-scanErrs
			}
			d.handleLine(line)
		}
	}
}

// handleLine parses "<node-id> REQUEST|CRASH" and injects the command
// into the named node's mailbox. Malformed lines are reported on the
// warning channel and otherwise ignored.
func (d *Driver) handleLine(line string) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		warnColor.Fprintf(os.Stderr, "usage: <node-id> REQUEST|CRASH\n")
		return
	}

	id, err := strconv.Atoi(fields[0])
	if err != nil {
		warnColor.Fprintf(os.Stderr, "bad node id %q: %v\n", fields[0], err)
		return
	}
	peer, ok := d.peers[wire.NodeID(id)]
	if !ok {
		warnColor.Fprintf(os.Stderr, "no such node %d\n", id)
		return
	}

	var cmd wire.Command
	var ack *color.Color
	switch strings.ToUpper(fields[1]) {
	case "REQUEST":
		cmd = wire.RequestCommand
		ack = csColor
	case "CRASH":
		cmd = wire.CrashCommand
		ack = crashColor
	default:
		warnColor.Fprintf(os.Stderr, "unknown command %q\n", fields[1])
		return
	}

	if err := d.tr.Send(peer, wire.UserInput{Command: cmd}); err != nil {
		warnColor.Fprintf(os.Stderr, "dispatch to node %d failed: %v\n", id, err)
		return
	}
	ack.Fprintf(os.Stdout, "-> node %d: %s\n", id, fields[1])
}

// runStatusDump periodically writes every node's Snapshot to
// d.statusFile as JSON, the generalization of the teacher's
// LogAllServersToJSON ticker into a diagnostic that exists regardless of
// whether anything is actively tailing it.
func (d *Driver) runStatusDump(ctx context.Context) {
	ticker := time.NewTicker(d.statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.writeStatus(); err != nil {
				d.log.Error("status dump failed", "error", err)
			}
		}
	}
}

func (d *Driver) writeStatus() error {
	snapshots := make(map[string]node.Snapshot, len(d.nodes))
	for id, n := range d.nodes {
		snapshots[strconv.Itoa(int(id))] = n.Snapshot()
	}
	payload, err := json.MarshalIndent(struct {
		Timestamp time.Time                 `json:"timestamp"`
		Nodes     map[string]node.Snapshot  `json:"nodes"`
		Metrics   []string                  `json:"metrics_summary"`
	}{
		Timestamp: time.Now(),
		Nodes:     snapshots,
		Metrics:   summarizeMetrics(),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(d.statusFile, payload, 0o644)
}

func summarizeMetrics() []string {
	var lines []string
	for _, interval := range metrics.Data() {
		for name, c := range interval.Counters {
			lines = append(lines, fmt.Sprintf("%s=%d", name, c.Count))
		}
	}
	return lines
}
