// Package graph builds the post-resolution dependency graph spec.md §2
// component 7 describes: the node model the resolver's output projects
// onto, carrying roots, resolved decisions and each node's outgoing
// dependency edges.
package graph

import (
	"context"
	"fmt"

	"github.com/cordage-pm/cordage/pkg/container"
	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/resolve"
)

// Node is one resolved package: its reference, its resolved decision, the
// indices of the packages it depends on, and any distinguishing traits
// (build-configuration flags a manifest's target declared) carried along
// for the classifier/reconciler to consult.
type Node struct {
	Ref       identity.Reference
	Decision  resolve.Decision
	DependsOn []int
	Traits    []string
}

// Graph is an arena of Nodes addressed by index. Edges are indices, never
// owning references (spec.md §9 "Design Notes"): the resolver's
// exploratory state may pass through cycles before a production graph is
// finalized, and an index-based arena represents that safely without
// reference counting or ownership cycles.
type Graph struct {
	Nodes       []Node
	RootIndices []int

	byID map[identity.Identity]int
}

func empty() *Graph {
	return &Graph{byID: make(map[identity.Identity]int)}
}

func (g *Graph) indexFor(ref identity.Reference, dec resolve.Decision) int {
	if idx, ok := g.byID[ref.Identity]; ok {
		return idx
	}
	idx := len(g.Nodes)
	g.Nodes = append(g.Nodes, Node{Ref: ref, Decision: dec})
	g.byID[ref.Identity] = idx
	return idx
}

// NodeFor returns the node index for id, if the graph has a node for it.
func (g *Graph) NodeFor(id identity.Identity) (int, bool) {
	idx, ok := g.byID[id]
	return idx, ok
}

// Roots returns the root nodes, in the order Build was given them.
func (g *Graph) Roots() []Node {
	out := make([]Node, len(g.RootIndices))
	for i, idx := range g.RootIndices {
		out[i] = g.Nodes[idx]
	}
	return out
}

// Build walks the resolved Solution from roots, materializing the full
// dependency graph: it asks provider for each decided package's outgoing
// edges at its decided point and links the corresponding nodes. A
// dependency cycle (permitted only transiently during resolution, per
// spec.md §9) terminates that branch's recursion without error: the node
// already has an arena slot by the time the cycle is observed, so the byID
// lookup at the top of visit returns its index.
func Build(ctx context.Context, provider container.Provider, roots []container.Dependency, sol *resolve.Solution) (*Graph, error) {
	g := empty()
	visiting := make(map[identity.Identity]bool)

	var visit func(ref identity.Reference) (int, error)
	visit = func(ref identity.Reference) (int, error) {
		if idx, ok := g.byID[ref.Identity]; ok {
			return idx, nil
		}
		dec, ok := sol.Decisions[ref.Identity]
		if !ok {
			return -1, fmt.Errorf("graph: %s has no resolved decision", ref.Identity)
		}
		idx := g.indexFor(ref, dec)

		if visiting[ref.Identity] {
			return idx, nil
		}
		visiting[ref.Identity] = true
		defer delete(visiting, ref.Identity)

		var at container.At
		if dec.HasVersion {
			at = container.ForVersion(dec.Version)
		} else {
			at = container.ForRevision(dec.Revision)
		}

		select {
		case <-ctx.Done():
			return idx, ctx.Err()
		default:
		}

		deps, err := provider.Dependencies(ctx, ref.Identity, at)
		if err != nil {
			return idx, fmt.Errorf("graph: dependencies of %s: %w", ref.Identity, err)
		}

		childIdxs := make([]int, 0, len(deps))
		for _, d := range deps {
			ci, err := visit(d.Ref)
			if err != nil {
				return idx, err
			}
			childIdxs = append(childIdxs, ci)
		}
		g.Nodes[idx].DependsOn = childIdxs
		return idx, nil
	}

	rootIdxs := make([]int, 0, len(roots))
	for _, d := range roots {
		idx, err := visit(d.Ref)
		if err != nil {
			return nil, err
		}
		rootIdxs = append(rootIdxs, idx)
	}
	g.RootIndices = rootIdxs
	return g, nil
}
