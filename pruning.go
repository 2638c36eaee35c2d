package flowtree

import (
	"log/slog"

	"github.com/pbanos/flowtree/tree"
)

/*
Pruner is an interface wrapping the Prune method, that can be used
to decide whether a decision node of a grown tree is worth keeping or
if it must be collapsed into a leaf instead.

The Prune method takes a decision draft whose subtrees have already
been pruned and returns the leaf replacing it and true, or nil and
false to keep the decision.
*/
type Pruner interface {
	Prune(d *tree.Draft) (*tree.Draft, bool)
}

/*
PrunerFunc wraps a function with the Prune method signature to implement
the Pruner interface
*/
type PrunerFunc func(d *tree.Draft) (*tree.Draft, bool)

// Prune invokes the PrunerFunc with the given draft.
func (pf PrunerFunc) Prune(d *tree.Draft) (*tree.Draft, bool) {
	return pf(d)
}

/*
SiblingLeavesPruner returns a Pruner that collapses decisions whose two
subtrees are leaves of the same class into a single leaf of that class.
Such decisions never change the class of any sample, so the collapse
does not alter the classification of the tree.
*/
func SiblingLeavesPruner() Pruner {
	return PrunerFunc(func(d *tree.Draft) (*tree.Draft, bool) {
		if !d.Left.IsLeaf() || !d.Right.IsLeaf() || d.Left.Class != d.Right.Class {
			return nil, false
		}
		return &tree.Draft{Class: d.Left.Class, Counts: d.Left.Counts.Plus(d.Right.Counts)}, true
	})
}

/*
Optimizer holds the configuration to simplify grown trees.
*/
type Optimizer struct {
	// Pruner decides which decisions are collapsed. When nil the
	// SiblingLeavesPruner is used.
	Pruner Pruner
	// Logger receives every collapse at debug level and a summary
	// at info level.
	Logger *slog.Logger
}

/*
Optimize takes a tree and returns the result of collapsing identical
sibling leaves on it until no more collapses are possible.
*/
func Optimize(t *tree.Tree) (*tree.Tree, error) {
	o := &Optimizer{}
	result, _, err := o.Optimize(t)
	return result, err
}

/*
Optimize takes a tree and runs bottom-up pruning passes over it until a
pass makes no changes. It returns the resulting tree and the number of
passes that collapsed at least one decision, so an already optimized
tree takes 0 passes. The given tree is left untouched.
*/
func (o *Optimizer) Optimize(t *tree.Tree) (*tree.Tree, int, error) {
	p := o.Pruner
	if p == nil {
		p = SiblingLeavesPruner()
	}
	logger := o.Logger
	if logger == nil {
		logger = discardLogger
	}
	root := t.Draft()
	passes := 0
	for {
		var collapses int
		root = prunePass(root, p, logger, &collapses)
		if collapses == 0 {
			break
		}
		passes++
		logger.Debug("optimization pass", "pass", passes, "collapses", collapses)
	}
	result, err := tree.New(t.Label, root)
	if err != nil {
		return nil, 0, err
	}
	logger.Info("optimized tree", "passes", passes, "nodesBefore", t.Len(), "nodesAfter", result.Len())
	return result, passes, nil
}

func prunePass(d *tree.Draft, p Pruner, logger *slog.Logger, collapses *int) *tree.Draft {
	if d.IsLeaf() {
		return d
	}
	d.Left = prunePass(d.Left, p, logger, collapses)
	d.Right = prunePass(d.Right, p, logger, collapses)
	if leaf, ok := p.Prune(d); ok {
		*collapses++
		logger.Debug("collapsed decision", "criterion", d.Criterion.String(), "class", leaf.Class)
		return leaf
	}
	return d
}
