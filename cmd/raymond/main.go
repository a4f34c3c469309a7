package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"raymond-mutex/internal/config"
	"raymond-mutex/internal/driver"
	"raymond-mutex/internal/logging"
	"raymond-mutex/internal/topology"
	"raymond-mutex/internal/wire"
)

func main() {
	fs := flag.NewFlagSet("raymond", flag.ExitOnError)

	var edgesFlag string
	var starterFlag int
	var statusFile string
	var statusInterval time.Duration
	fs.StringVar(&edgesFlag, "edges", "", "comma-separated a-b edge list overriding the built-in ten-node tree, e.g. 0-1,0-2,1-3")
	fs.IntVar(&starterFlag, "starter", 0, "id of the node that seeds the oriented tree (only with -edges)")
	fs.StringVar(&statusFile, "status-file", "", "optional path to periodically write a JSON status snapshot")
	fs.DurationVar(&statusInterval, "status-interval", 2*time.Second, "interval between status-file writes")

	args := os.Args[1:]
	cfg, err := config.Load(fs, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	tree, err := buildTopology(edgesFlag, starterFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	d, err := driver.New(tree, cfg, statusFile, statusInterval)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logging.Root.Info("starting", "bootstrap_delay", cfg.BootstrapDelay, "cs_time", cfg.CriticalSectionTime, "crash_time", cfg.CrashTime)
	if err := d.Run(context.Background(), os.Stdin); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildTopology returns the built-in ten-node tree, or a tree parsed
// from -edges if one was given.
func buildTopology(edgesFlag string, starter int) (*topology.Tree, error) {
	if edgesFlag == "" {
		return topology.Default(), nil
	}

	var edges []topology.Edge
	for _, pair := range strings.Split(edgesFlag, ",") {
		parts := strings.SplitN(pair, "-", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("main: malformed edge %q, want a-b", pair)
		}
		a, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("main: malformed edge %q: %w", pair, err)
		}
		b, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("main: malformed edge %q: %w", pair, err)
		}
		edges = append(edges, topology.Edge{A: wire.NodeID(a), B: wire.NodeID(b)})
	}
	return topology.Build(edges, wire.NodeID(starter)), nil
}
