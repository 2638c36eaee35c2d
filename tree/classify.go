package tree

import (
	"context"
	"fmt"

	"github.com/pbanos/flowtree/dataset"
	"github.com/pbanos/flowtree/feature"
)

/*
Classify takes a sample and returns the path it follows from the root of
the tree. At every decision node the sample continues down the left
subtree when it satisfies the node's criterion and down the right one
otherwise. When the sample does not define the value a decision node
tests, the walk stops there and the returned path is not complete.
An error is only returned when the sample fails to provide a value.
*/
func (t *Tree) Classify(s feature.Sample) (Path, error) {
	if t == nil || len(t.nodes) == 0 {
		return Path{}, ErrEmptyTree
	}
	p := Path{Nodes: []NodeID{RootID}}
	n := t.nodes[RootID]
	for {
		switch node := n.(type) {
		case *Leaf:
			p.Complete = true
			return p, nil
		case *Decision:
			left, defined, err := node.Criterion.Branch(s)
			if err != nil {
				return Path{}, fmt.Errorf("classifying sample at node %d: %v", node.id, err)
			}
			if !defined {
				return p, nil
			}
			next := node.Right
			if left {
				next = node.Left
			}
			p.Nodes = append(p.Nodes, next)
			n = t.nodes[next]
		}
	}
}

/*
Predict takes a sample and returns the class of the leaf it reaches. The
boolean result is false when the path of the sample is not complete.
*/
func (t *Tree) Predict(s feature.Sample) (dataset.Class, bool, error) {
	p, err := t.Classify(s)
	if err != nil {
		return "", false, err
	}
	id, ok := p.Leaf()
	if !ok {
		return "", false, nil
	}
	return t.nodes[id].(*Leaf).Class, true, nil
}

/*
Test takes a context.Context and a labeled dataset and returns three values:
  - the prediction success rate of the tree over the given dataset
  - the number of samples for which no prediction could be made because
    their path was not complete
  - an error if a prediction could not be made or tested for any other
    reason. If this is not nil, the other values will be 0.0 and 0
    respectively
*/
func (t *Tree) Test(ctx context.Context, ds dataset.Dataset) (float64, int, error) {
	samples, err := ds.Samples(ctx)
	if err != nil {
		return 0.0, 0, err
	}
	if len(samples) == 0 {
		return 0.0, 0, dataset.ErrEmptyDataset
	}
	var hits float64
	var incomplete int
	for _, s := range samples {
		if err = ctx.Err(); err != nil {
			return 0.0, 0, err
		}
		class, ok, err := t.Predict(s)
		if err != nil {
			return 0.0, 0, err
		}
		if !ok {
			incomplete++
			continue
		}
		expected, err := dataset.ClassOf(s, t.Label)
		if err != nil {
			return 0.0, 0, err
		}
		if class == expected {
			hits += 1.0
		}
	}
	return hits / float64(len(samples)), incomplete, nil
}
