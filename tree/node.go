package tree

import (
	"fmt"

	"github.com/pbanos/flowtree/dataset"
	"github.com/pbanos/flowtree/feature"
)

// NodeID identifies a node within a tree. IDs are dense indexes into
// the tree's node slice, assigned in pre-order starting from the root
// with 0.
type NodeID int

// NoParent is the parent ID of the root node.
const NoParent NodeID = -1

// Kinds of node, as reported by KindOf.
const (
	KindDecision = "decision"
	KindLeaf     = "leaf"
)

/*
Node is a node of the tree: either a *Decision or a *Leaf.

Its ID method returns the ID of the node in its tree and its Parent
method the ID of its parent, or NoParent for the root. Its Text method
returns the text describing the node.
*/
type Node interface {
	ID() NodeID
	Parent() NodeID
	Text() string
	isNode()
}

/*
Decision is an internal node of the tree. Records satisfying its
Criterion continue down the Left subtree, the rest down the Right one.
*/
type Decision struct {
	id     NodeID
	parent NodeID
	// The test this node imposes on records.
	Criterion feature.Criterion
	// IDs of the subtrees for records satisfying the criterion and for
	// records that do not satisfy it.
	Left, Right NodeID
	// Class counts of the training records that reached this node.
	Counts dataset.ClassCounts
}

/*
Leaf is a terminal node of the tree: records reaching it are classified
with its Class.
*/
type Leaf struct {
	id     NodeID
	parent NodeID
	Class  dataset.Class
	// Class counts of the training records that reached this node.
	Counts dataset.ClassCounts
}

// ID returns the ID of the node.
func (d *Decision) ID() NodeID { return d.id }

// Parent returns the ID of the parent node.
func (d *Decision) Parent() NodeID { return d.parent }

// Text returns the criterion of the node as a string, such as
// `pkts <= 50.00` or `proto == tcp`.
func (d *Decision) Text() string { return d.Criterion.String() }

func (d *Decision) isNode() {}

// ID returns the ID of the node.
func (l *Leaf) ID() NodeID { return l.id }

// Parent returns the ID of the parent node.
func (l *Leaf) Parent() NodeID { return l.parent }

// Text returns the class of the leaf as in `Class: ddos`.
func (l *Leaf) Text() string { return fmt.Sprintf("Class: %s", l.Class) }

func (l *Leaf) isNode() {}

// KindOf returns KindDecision or KindLeaf depending on the variant of n.
func KindOf(n Node) string {
	switch n.(type) {
	case *Decision:
		return KindDecision
	case *Leaf:
		return KindLeaf
	}
	return ""
}

/*
Draft is the mutable, recursive form of a tree used while growing and
optimizing it. A draft with a nil Criterion is a leaf, otherwise it is
a decision and must have both Left and Right drafts.
*/
type Draft struct {
	Criterion   feature.Criterion
	Class       dataset.Class
	Counts      dataset.ClassCounts
	Left, Right *Draft
}

// IsLeaf returns whether the draft stands for a leaf.
func (d *Draft) IsLeaf() bool {
	return d.Criterion == nil
}

// Size returns the number of nodes in the draft.
func (d *Draft) Size() int {
	if d == nil {
		return 0
	}
	return 1 + d.Left.Size() + d.Right.Size()
}
