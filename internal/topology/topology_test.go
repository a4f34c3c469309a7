package topology

import (
	"testing"

	"raymond-mutex/internal/wire"
)

func TestDefaultTreeIsValid(t *testing.T) {
	tree := Default()
	if err := tree.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got, want := len(tree.Nodes()), 10; got != want {
		t.Errorf("len(Nodes()) = %d, want %d", got, want)
	}
}

func TestValidateRejectsDisconnectedGraph(t *testing.T) {
	tree := Build([]Edge{{0, 1}, {2, 3}}, 0)
	if err := tree.Validate(); err == nil {
		t.Fatal("expected an error for a disconnected graph")
	}
}

func TestValidateRejectsCycle(t *testing.T) {
	tree := Build([]Edge{{0, 1}, {1, 2}, {2, 0}}, 0)
	if err := tree.Validate(); err == nil {
		t.Fatal("expected an error for a graph with a cycle")
	}
}

func TestValidateRejectsStarterNotInTree(t *testing.T) {
	tree := Build([]Edge{{0, 1}}, 7)
	if err := tree.Validate(); err == nil {
		t.Fatal("expected an error for a starter outside the tree")
	}
}

func TestNeighborsAreSortedAndIndependent(t *testing.T) {
	tree := Build([]Edge{{0, 2}, {0, 1}}, 0)
	ns := tree.Neighbors(0)
	if len(ns) != 2 || ns[0] != wire.NodeID(1) || ns[1] != wire.NodeID(2) {
		t.Fatalf("Neighbors(0) = %v, want [1 2]", ns)
	}
	ns[0] = 99
	if tree.Neighbors(0)[0] != 1 {
		t.Error("mutating the returned slice affected the tree's internal state")
	}
}
