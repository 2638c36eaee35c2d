package flowtree

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"sync"

	"github.com/pbanos/flowtree/dataset"
	"github.com/pbanos/flowtree/feature"
)

const entropyTolerance = 1e-12

/*
Split represents the best binary partition found for a feature of a
dataset: the criterion to apply on it and the weighted entropy of the
resulting two subsets.
*/
type Split struct {
	Feature   feature.Feature
	Criterion feature.Criterion
	Entropy   float64
}

/*
TieBreaker is an interface wrapping the Pick method, used to choose
among the splits with minimal weighted entropy for different features.
Candidates are always given in feature order and are never empty.
*/
type TieBreaker interface {
	Pick(candidates []*Split) *Split
}

/*
TieBreakerFunc wraps a function with the Pick method signature to
implement the TieBreaker interface
*/
type TieBreakerFunc func(candidates []*Split) *Split

// Pick invokes the TieBreakerFunc with the given candidates.
func (tbf TieBreakerFunc) Pick(candidates []*Split) *Split {
	return tbf(candidates)
}

/*
FirstTieBreaker returns a TieBreaker that always picks the first
candidate, that is, the one whose feature comes first in the given
feature order.
*/
func FirstTieBreaker() TieBreaker {
	return TieBreakerFunc(func(candidates []*Split) *Split {
		return candidates[0]
	})
}

/*
RandomTieBreaker takes a seed and returns a TieBreaker that picks
uniformly at random among the candidates. Growing the same tree twice
with the same seed results in the same choices.
*/
func RandomTieBreaker(seed int64) TieBreaker {
	r := rand.New(rand.NewSource(seed))
	var lock sync.Mutex
	return TieBreakerFunc(func(candidates []*Split) *Split {
		lock.Lock()
		defer lock.Unlock()
		return candidates[r.Intn(len(candidates))]
	})
}

/*
BestFeature takes a context, a dataset, the label feature, a slice of
candidate features, a set of excluded feature names and a TieBreaker and
returns the split of the feature whose best binary partition has the
lowest weighted entropy. When several features reach that minimum the
tie breaker decides among them. The result is nil when every feature
is excluded or has no usable split.
*/
func BestFeature(ctx context.Context, ds dataset.Dataset, label feature.Feature, features []feature.Feature, excluded map[string]bool, tb TieBreaker) (*Split, error) {
	var candidates []*Split
	for _, f := range features {
		if excluded[f.Name()] || f.Name() == label.Name() {
			continue
		}
		s, err := BestBinarySplit(ctx, ds, label, f)
		if err != nil {
			return nil, err
		}
		if s == nil {
			continue
		}
		switch {
		case len(candidates) == 0 || s.Entropy < candidates[0].Entropy-entropyTolerance:
			candidates = []*Split{s}
		case math.Abs(s.Entropy-candidates[0].Entropy) <= entropyTolerance:
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	if len(candidates) == 1 || tb == nil {
		return candidates[0], nil
	}
	return tb.Pick(candidates), nil
}

/*
BestBinarySplit takes a context, a dataset, the label feature and a
feature and returns the best binary partition of the dataset on the
feature:
  - a discrete feature taking exactly 2 distinct values is split on
    equality with the first of them to appear,
  - a continuous feature, or a discrete one taking more than 2 distinct
    values that are all numeric, is split on the midpoint between
    adjacent sorted distinct values with the lowest weighted entropy,
    tested with `<=`.

The result is nil when the feature takes a single value, when its values
cannot be ordered or when no midpoint leaves records on both sides.
*/
func BestBinarySplit(ctx context.Context, ds dataset.Dataset, label feature.Feature, f feature.Feature) (*Split, error) {
	values, err := ds.FeatureValues(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(values) < 2 {
		return nil, nil
	}
	switch f := f.(type) {
	case *feature.DiscreteFeature:
		if len(values) == 2 {
			return equalitySplit(ctx, ds, label, f, values[0])
		}
		return thresholdSplit(ctx, ds, label, f)
	case *feature.ContinuousFeature:
		return thresholdSplit(ctx, ds, label, f)
	default:
		return nil, fmt.Errorf("unknown feature type %T for feature %v", f, f.Name())
	}
}

func equalitySplit(ctx context.Context, ds dataset.Dataset, label feature.Feature, f *feature.DiscreteFeature, value interface{}) (*Split, error) {
	c := feature.NewDiscreteCriterion(f, valueString(value))
	samples, err := ds.Samples(ctx)
	if err != nil {
		return nil, err
	}
	var left, right dataset.ClassCounts
	for _, s := range samples {
		class, err := dataset.ClassOf(s, label)
		if err != nil {
			return nil, err
		}
		l, defined, err := c.Branch(s)
		if err != nil {
			return nil, err
		}
		if l && defined {
			left = left.Add(class)
		} else {
			right = right.Add(class)
		}
	}
	if left.Total() == 0 || right.Total() == 0 {
		return nil, nil
	}
	return &Split{Feature: f, Criterion: c, Entropy: WeightedEntropy(left, right)}, nil
}

type labeledValue struct {
	value float64
	class dataset.Class
}

/*
thresholdSplit sweeps the records sorted by their value for the feature,
moving them from the right side to the left side one distinct value at a
time, and keeps the midpoint with the lowest weighted entropy. Records
without a numeric value stay on the right side, where the criterion
sends them when subsetting.
*/
func thresholdSplit(ctx context.Context, ds dataset.Dataset, label feature.Feature, f feature.Feature) (*Split, error) {
	samples, err := ds.Samples(ctx)
	if err != nil {
		return nil, err
	}
	var lvs []labeledValue
	var right dataset.ClassCounts
	for _, s := range samples {
		class, err := dataset.ClassOf(s, label)
		if err != nil {
			return nil, err
		}
		right = right.Add(class)
		v, err := s.ValueFor(f)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		fv, ok := feature.Float(v)
		if !ok {
			return nil, nil
		}
		lvs = append(lvs, labeledValue{fv, class})
	}
	sort.Slice(lvs, func(i, j int) bool { return lvs[i].value < lvs[j].value })
	var left dataset.ClassCounts
	var best *Split
	for i := 0; i < len(lvs); i++ {
		left = left.Add(lvs[i].class)
		right = right.Minus(dataset.ClassCounts{}.Add(lvs[i].class))
		if i+1 == len(lvs) || lvs[i+1].value == lvs[i].value {
			continue
		}
		if right.Total() == 0 {
			continue
		}
		e := WeightedEntropy(left, right)
		if best == nil || e < best.Entropy-entropyTolerance {
			threshold := (lvs[i].value + lvs[i+1].value) / 2.0
			best = &Split{Feature: f, Criterion: feature.NewContinuousCriterion(f, threshold), Entropy: e}
		}
	}
	return best, nil
}

func valueString(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}
