/*
Package flowtree grows binary decision trees that tell benign network
flows from DDoS ones, and simplifies them by collapsing sibling leaves
of the same class.
*/
package flowtree

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/pbanos/flowtree/dataset"
	"github.com/pbanos/flowtree/feature"
	"github.com/pbanos/flowtree/tree"
)

/*
Grower holds the configuration to grow a tree from a labeled dataset.
*/
type Grower struct {
	// Label is the feature holding the class of every sample.
	Label feature.Feature
	// MaxDepth is the depth at which nodes become leaves. A value of
	// 0 or less stands for the number of features used to grow the tree,
	// which no path can exceed anyway.
	MaxDepth int
	// MinSamples is the number of samples at or under which a node
	// becomes a leaf.
	MinSamples int
	// TieBreaker chooses among features whose splits have the same
	// minimal weighted entropy. When nil, the first feature wins.
	TieBreaker TieBreaker
	// Logger receives the decisions taken on every node at debug level.
	Logger *slog.Logger
}

/*
Grow takes a context, a labeled dataset and the features to test on it
and returns a tree classifying samples by the grower's label. Degenerate
datasets, such as empty or single-class ones, result in a tree with a
single leaf. An error is returned if the dataset cannot be queried, a
sample has no valid class or the context is done.
*/
func (g *Grower) Grow(ctx context.Context, ds dataset.Dataset, features []feature.Feature) (*tree.Tree, error) {
	if g.Label == nil {
		return nil, fmt.Errorf("growing tree: no label feature")
	}
	maxDepth := g.MaxDepth
	if maxDepth <= 0 {
		maxDepth = len(features)
	}
	excluded := map[string]bool{g.Label.Name(): true}
	root, err := g.branchOut(ctx, ds, features, maxDepth, 0, excluded)
	if err != nil {
		return nil, err
	}
	t, err := tree.New(g.Label, root)
	if err != nil {
		return nil, err
	}
	g.logger().Info("grew tree", "nodes", t.Len(), "maxDepth", maxDepth, "minSamples", g.MinSamples)
	return t, nil
}

// branchOut develops the node for the given dataset, either into a
// leaf or into a decision whose subtrees it develops recursively.
func (g *Grower) branchOut(ctx context.Context, ds dataset.Dataset, features []feature.Feature, maxDepth, depth int, excluded map[string]bool) (*tree.Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts, err := ds.ClassCounts(ctx, g.Label)
	if err != nil {
		return nil, err
	}
	leaf := &tree.Draft{Class: counts.Majority(), Counts: counts}
	logger := g.logger().With("depth", depth, "counts", counts.String())
	switch {
	case counts.Total() <= g.MinSamples:
		logger.Debug("leaf: too few samples")
		return leaf, nil
	case counts.Pure():
		logger.Debug("leaf: pure node")
		return leaf, nil
	case depth >= maxDepth:
		logger.Debug("leaf: maximum depth reached")
		return leaf, nil
	}
	split, err := BestFeature(ctx, ds, g.Label, features, excluded, g.TieBreaker)
	if err != nil {
		return nil, err
	}
	if split == nil {
		logger.Debug("leaf: no usable split")
		return leaf, nil
	}
	logger.Debug("decision", "criterion", split.Criterion.String(), "entropy", split.Entropy)
	leftDataset, err := ds.SubsetWith(ctx, split.Criterion)
	if err != nil {
		return nil, err
	}
	rightDataset, err := ds.SubsetWithout(ctx, split.Criterion)
	if err != nil {
		return nil, err
	}
	stExcluded := make(map[string]bool, len(excluded)+1)
	for name := range excluded {
		stExcluded[name] = true
	}
	stExcluded[split.Feature.Name()] = true
	left, err := g.branchOut(ctx, leftDataset, features, maxDepth, depth+1, stExcluded)
	if err != nil {
		return nil, err
	}
	right, err := g.branchOut(ctx, rightDataset, features, maxDepth, depth+1, stExcluded)
	if err != nil {
		return nil, err
	}
	return &tree.Draft{Criterion: split.Criterion, Counts: counts, Left: left, Right: right}, nil
}

func (g *Grower) logger() *slog.Logger {
	if g.Logger == nil {
		return discardLogger
	}
	return g.Logger
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
