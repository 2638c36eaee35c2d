package json

import (
	"encoding/json"
	"fmt"

	"github.com/pbanos/flowtree/feature"
	"github.com/pbanos/flowtree/tree"
)

/*
NodeEncoder is an interface for objects
that allow encoding nodes into slices of
bytes.
*/
type NodeEncoder interface {

	//Encode receives a tree.Node
	//and returns a slice of bytes with the node
	//encoded or an error if the encoding could not
	//be performed for some reason.
	Encode(tree.Node) ([]byte, error)
}

/*
NodeEncoderFunc wraps a function with the Encode method signature to
implement the NodeEncoder interface
*/
type NodeEncoderFunc func(tree.Node) ([]byte, error)

// Encode invokes the NodeEncoderFunc with the given node.
func (nef NodeEncoderFunc) Encode(n tree.Node) ([]byte, error) {
	return nef(n)
}

type counts struct {
	Benign int `json:"benign"`
	DDoS   int `json:"ddos"`
}

type node struct {
	ID       tree.NodeID  `json:"id"`
	ParentID *tree.NodeID `json:"parentId,omitempty"`
	Text     string       `json:"text"`
	Kind     string       `json:"kind"`
	Class    string       `json:"class,omitempty"`
	Feature  string       `json:"feature,omitempty"`
	Split    interface{}  `json:"split,omitempty"`
	Left     *tree.NodeID `json:"left,omitempty"`
	Right    *tree.NodeID `json:"right,omitempty"`
	Counts   counts       `json:"counts"`
}

/*
NewNodeEncoder returns a NodeEncoder that encodes nodes as JSON objects
with the following fields:
  - "id": the ID of the node
  - "parentId": the ID of its parent, missing for the root
  - "text": the text of the node, as in `pkts <= 50.00` or `Class: ddos`
  - "kind": either "decision" or "leaf"
  - "class": the class of a leaf
  - "feature" and "split": the feature tested by a decision and the
    threshold (a number) or value (a string) it tests it against
  - "left" and "right": the IDs of a decision's subtrees
  - "counts": the class counts of the training samples reaching the node
*/
func NewNodeEncoder() NodeEncoder {
	return NodeEncoderFunc(encodeNode)
}

func encodeNode(n tree.Node) ([]byte, error) {
	jn := &node{
		ID:   n.ID(),
		Text: n.Text(),
		Kind: tree.KindOf(n),
	}
	if pID := n.Parent(); pID != tree.NoParent {
		jn.ParentID = &pID
	}
	switch n := n.(type) {
	case *tree.Leaf:
		jn.Class = string(n.Class)
		jn.Counts = counts{n.Counts.Benign, n.Counts.DDoS}
	case *tree.Decision:
		jn.Feature = n.Criterion.Feature().Name()
		switch c := n.Criterion.(type) {
		case *feature.ContinuousCriterion:
			jn.Split = c.Threshold()
		case *feature.DiscreteCriterion:
			jn.Split = c.Value()
		default:
			return nil, fmt.Errorf("encoding node %d: unknown criterion type %T", n.ID(), c)
		}
		left, right := n.Left, n.Right
		jn.Left, jn.Right = &left, &right
		jn.Counts = counts{n.Counts.Benign, n.Counts.DDoS}
	default:
		return nil, fmt.Errorf("encoding node: unknown node type %T", n)
	}
	return json.Marshal(jn)
}
