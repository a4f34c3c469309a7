// Package topology builds and validates the undirected tree the
// protocol runs over, generalizing the original Java driver's Graph
// class (addEdge, getAdjacencyList, createStructure) from "print the
// adjacency list and hope" into an actually-checked precondition: a
// node goroutine must never be started on a graph that isn't a tree.
package topology

import (
	"fmt"
	"sort"

	"raymond-mutex/internal/wire"
)

// Edge is one undirected tree edge between two node ids.
type Edge struct {
	A, B wire.NodeID
}

// Tree is a validated adjacency list plus the designated starter.
type Tree struct {
	Starter   wire.NodeID
	neighbors map[wire.NodeID][]wire.NodeID
}

// Build constructs a Tree from an edge list and a starter id. It does
// not validate; call Validate before trusting the result.
func Build(edges []Edge, starter wire.NodeID) *Tree {
	adj := make(map[wire.NodeID][]wire.NodeID)
	for _, e := range edges {
		adj[e.A] = append(adj[e.A], e.B)
		adj[e.B] = append(adj[e.B], e.A)
	}
	return &Tree{Starter: starter, neighbors: adj}
}

// Neighbors returns id's neighbor ids in ascending order, for
// deterministic iteration (bootstrap flooding, tests).
func (t *Tree) Neighbors(id wire.NodeID) []wire.NodeID {
	ns := append([]wire.NodeID(nil), t.neighbors[id]...)
	sort.Slice(ns, func(i, j int) bool { return ns[i] < ns[j] })
	return ns
}

// Nodes returns every node id that appears in the tree, ascending.
func (t *Tree) Nodes() []wire.NodeID {
	ids := make([]wire.NodeID, 0, len(t.neighbors))
	for id := range t.neighbors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Validate checks that the graph is connected and acyclic: exactly
// len(nodes)-1 edges, and a BFS from Starter reaches every node exactly
// once. Either failure means the caller built something other than a
// tree, which the protocol has no defined behavior for.
func (t *Tree) Validate() error {
	nodes := t.Nodes()
	if len(nodes) == 0 {
		return fmt.Errorf("topology: tree has no nodes")
	}

	edgeCount := 0
	for _, id := range nodes {
		edgeCount += len(t.neighbors[id])
	}
	edgeCount /= 2 // each undirected edge counted from both endpoints
	if edgeCount != len(nodes)-1 {
		return fmt.Errorf("topology: %d nodes but %d edges, want %d for a tree", len(nodes), edgeCount, len(nodes)-1)
	}

	if _, ok := t.neighbors[t.Starter]; !ok {
		return fmt.Errorf("topology: starter %d is not a node in the tree", t.Starter)
	}

	visited := map[wire.NodeID]bool{t.Starter: true}
	queue := []wire.NodeID{t.Starter}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range t.neighbors[cur] {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	if len(visited) != len(nodes) {
		return fmt.Errorf("topology: tree is disconnected, reached %d of %d nodes from starter %d", len(visited), len(nodes), t.Starter)
	}
	return nil
}

// Default reproduces the original Java driver's ten-node tree:
// edges (0,1)(0,2)(0,3)(1,4)(1,9)(2,5)(2,6)(3,7)(3,8), starter 0.
func Default() *Tree {
	return Build([]Edge{
		{0, 1}, {0, 2}, {0, 3},
		{1, 4}, {1, 9},
		{2, 5}, {2, 6},
		{3, 7}, {3, 8},
	}, 0)
}
