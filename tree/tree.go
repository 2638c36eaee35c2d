package tree

import (
	"context"
	"fmt"
	"strings"

	"github.com/pbanos/flowtree/dataset"
	"github.com/pbanos/flowtree/feature"
)

// RootID is the ID of the root node of every tree.
const RootID NodeID = 0

// TreeError represents an error related with trees
type TreeError string

// ErrEmptyTree is returned when trying to build a tree without nodes.
const ErrEmptyTree = TreeError("tree has no nodes")

func (te TreeError) Error() string {
	return string(te)
}

/*
Tree represents a binary decision tree classifying flow records by the
label feature. Its nodes are kept in a slice indexed by their NodeID.
Trees are immutable: every method can be called concurrently.
*/
type Tree struct {
	Label feature.Feature
	nodes []Node
	// number of leaves of each class under every node
	leafClasses []dataset.ClassCounts
}

/*
New takes a label feature and the root of a draft and returns a tree
with the draft's nodes. IDs are assigned in pre-order, so the root gets
RootID and a decision's left subtree is numbered before its right one.
An error is returned if the draft is nil or has a decision without
both children.
*/
func New(label feature.Feature, root *Draft) (*Tree, error) {
	if root == nil {
		return nil, ErrEmptyTree
	}
	t := &Tree{Label: label, nodes: make([]Node, 0, root.Size())}
	if _, err := t.add(root, NoParent); err != nil {
		return nil, err
	}
	t.leafClasses = make([]dataset.ClassCounts, len(t.nodes))
	t.countLeafClasses(RootID)
	return t, nil
}

func (t *Tree) add(d *Draft, parent NodeID) (NodeID, error) {
	id := NodeID(len(t.nodes))
	if d.IsLeaf() {
		t.nodes = append(t.nodes, &Leaf{id: id, parent: parent, Class: d.Class, Counts: d.Counts})
		return id, nil
	}
	if d.Left == nil || d.Right == nil {
		return 0, fmt.Errorf("decision node %v on %q lacks a subtree", id, d.Criterion)
	}
	n := &Decision{id: id, parent: parent, Criterion: d.Criterion, Counts: d.Counts}
	t.nodes = append(t.nodes, n)
	left, err := t.add(d.Left, id)
	if err != nil {
		return 0, err
	}
	right, err := t.add(d.Right, id)
	if err != nil {
		return 0, err
	}
	n.Left, n.Right = left, right
	return id, nil
}

func (t *Tree) countLeafClasses(id NodeID) dataset.ClassCounts {
	var result dataset.ClassCounts
	switch n := t.nodes[id].(type) {
	case *Leaf:
		result = result.Add(n.Class)
	case *Decision:
		result = t.countLeafClasses(n.Left).Plus(t.countLeafClasses(n.Right))
	}
	t.leafClasses[id] = result
	return result
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Root returns the root node of the tree.
func (t *Tree) Root() Node {
	return t.nodes[RootID]
}

// Node returns the node with the given ID, or nil if the tree has none.
func (t *Tree) Node(id NodeID) Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Nodes returns the nodes of the tree ordered by ID.
func (t *Tree) Nodes() []Node {
	result := make([]Node, len(t.nodes))
	copy(result, t.nodes)
	return result
}

// Edges returns every parent-child edge of the tree, ordered by child ID.
func (t *Tree) Edges() []Edge {
	var edges []Edge
	for _, n := range t.nodes[1:] {
		edges = append(edges, Edge{n.Parent(), n.ID()})
	}
	return edges
}

// HasEdge returns whether the tree has an edge from parent to child.
func (t *Tree) HasEdge(e Edge) bool {
	n := t.Node(e.Child)
	return n != nil && n.Parent() == e.Parent && e.Parent != NoParent
}

/*
LeafClasses takes a node ID and returns how many leaves of each class
are found in the subtree rooted at that node.
*/
func (t *Tree) LeafClasses(id NodeID) dataset.ClassCounts {
	if t.Node(id) == nil {
		return dataset.ClassCounts{}
	}
	return t.leafClasses[id]
}

// Draft returns a mutable copy of the tree.
func (t *Tree) Draft() *Draft {
	return t.draft(RootID)
}

func (t *Tree) draft(id NodeID) *Draft {
	switch n := t.nodes[id].(type) {
	case *Decision:
		return &Draft{Criterion: n.Criterion, Counts: n.Counts, Left: t.draft(n.Left), Right: t.draft(n.Right)}
	case *Leaf:
		return &Draft{Class: n.Class, Counts: n.Counts}
	}
	return nil
}

/*
Equal returns whether both trees have the same shape, criteria and
leaf classes.
*/
func (t *Tree) Equal(o *Tree) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.nodes) != len(o.nodes) {
		return false
	}
	for i, n := range t.nodes {
		on := o.nodes[i]
		if KindOf(n) != KindOf(on) || n.Parent() != on.Parent() || n.Text() != on.Text() {
			return false
		}
	}
	return true
}

// Traverse takes a context, bottomup boolean and an
// error-returning function that takes a context and a node
// as parameters, and goes through the tree running the
// function with the context and every traversed node.
// Traverse will call the function with a parent node before
// calling it for its children if bottomup is false, and
// call it after its children if bottomup is true.
// If the given context times out or is cancelled, the context
// error is returned. If the call to the function returns an
// error, the traversing is aborted and the error is returned.
func (t *Tree) Traverse(ctx context.Context, bottomup bool, f func(context.Context, Node) error) error {
	return t.traverse(ctx, t.nodes[RootID], bottomup, f)
}

func (t *Tree) traverse(ctx context.Context, n Node, bottomup bool, f func(context.Context, Node) error) error {
	err := ctx.Err()
	if err != nil {
		return err
	}
	if !bottomup {
		if err = f(ctx, n); err != nil {
			return err
		}
	}
	if d, ok := n.(*Decision); ok {
		for _, id := range []NodeID{d.Left, d.Right} {
			if err = t.traverse(ctx, t.nodes[id], bottomup, f); err != nil {
				return err
			}
		}
	}
	if bottomup {
		return f(ctx, n)
	}
	return nil
}

func (t *Tree) String() string {
	return t.subtreeString(RootID)
}

func (t *Tree) subtreeString(id NodeID) string {
	n := t.nodes[id]
	var counts dataset.ClassCounts
	var children []NodeID
	switch n := n.(type) {
	case *Decision:
		counts = n.Counts
		children = []NodeID{n.Left, n.Right}
	case *Leaf:
		counts = n.Counts
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] { %s } %v\n", id, n.Text(), counts)
	if len(children) > 0 {
		b.WriteString("|\n")
	}
	for i, childID := range children {
		for j, line := range strings.Split(t.subtreeString(childID), "\n") {
			if len(line) == 0 {
				continue
			}
			switch {
			case j == 0:
				fmt.Fprintf(&b, "|__%s\n", line)
			case i == len(children)-1:
				fmt.Fprintf(&b, "   %s\n", line)
			default:
				fmt.Fprintf(&b, "|  %s\n", line)
			}
		}
	}
	return b.String()
}
