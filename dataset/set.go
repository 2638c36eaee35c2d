package dataset

import (
	"context"
	"fmt"

	"github.com/pbanos/flowtree/feature"
)

const (
	sampleCountThresholdForDatasetImplementation = 50000
)

// DatasetError represents an error related with datasets
type DatasetError string

// ErrEmptyDataset is returned by operations that need at least
// one sample to work with.
const ErrEmptyDataset = DatasetError("dataset has no samples")

func (de DatasetError) Error() string {
	return string(de)
}

/*
Dataset represents a table of flow records sharing the same schema.

Its ClassCounts method returns how many samples of each class it
contains according to the given label feature.

Its FeatureValues method returns the distinct values samples take for a
feature, in the order they first appear.

Its SubsetWith method takes a feature.Criterion and returns a subset that
only contains samples sent to the left branch by it, while SubsetWithout
returns the complement of that subset.

Its Samples method returns the samples it contains
*/
type Dataset interface {
	Count(context.Context) (int, error)
	ClassCounts(context.Context, feature.Feature) (ClassCounts, error)
	FeatureValues(context.Context, feature.Feature) ([]interface{}, error)
	SubsetWith(context.Context, feature.Criterion) (Dataset, error)
	SubsetWithout(context.Context, feature.Criterion) (Dataset, error)
	Samples(context.Context) ([]Sample, error)
}

type condition struct {
	criterion feature.Criterion
	left      bool
}

type memoryIntensiveSubsettingDataset struct {
	classCounts *ClassCounts
	samples     []Sample
}

type cpuIntensiveSubsettingDataset struct {
	classCounts *ClassCounts
	count       *int
	samples     []Sample
	conditions  []condition
}

/*
New takes a slice of samples and returns a dataset built with them.
The dataset will be a CPU intensive one when the number of samples is
over sampleCountThresholdForDatasetImplementation
*/
func New(samples []Sample) Dataset {
	if len(samples) > sampleCountThresholdForDatasetImplementation {
		return NewCPUIntensive(samples)
	}
	return NewMemoryIntensive(samples)
}

/*
NewMemoryIntensive takes a slice of samples and returns a Dataset
built with them. A memory-intensive dataset is an implementation that
replicates the slice of samples when subsetting to reduce
calculations at the cost of increased memory.
*/
func NewMemoryIntensive(samples []Sample) Dataset {
	return &memoryIntensiveSubsettingDataset{nil, samples}
}

/*
NewCPUIntensive takes a slice of samples and returns a Dataset
built with them. A cpu-intensive dataset is an implementation that
instead of replicating the samples when subsetting, stores the
applying criteria to define the subset and keeps the same
sample slice. This can achieve a drastic reduction in memory use
that comes at the cost of CPU time: every calculation that goes over
the samples of the dataset will apply the criteria of the dataset
on all original samples (the ones provided to this method).
*/
func NewCPUIntensive(samples []Sample) Dataset {
	return &cpuIntensiveSubsettingDataset{nil, nil, samples, nil}
}

func (s *memoryIntensiveSubsettingDataset) Count(ctx context.Context) (int, error) {
	return len(s.samples), nil
}

func (s *cpuIntensiveSubsettingDataset) Count(ctx context.Context) (int, error) {
	if s.count != nil {
		return *s.count, nil
	}
	var length int
	err := s.iterateOnDataset(ctx, func(_ Sample) (bool, error) {
		length++
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	s.count = &length
	return length, nil
}

func (s *memoryIntensiveSubsettingDataset) ClassCounts(ctx context.Context, label feature.Feature) (ClassCounts, error) {
	if s.classCounts != nil {
		return *s.classCounts, nil
	}
	var result ClassCounts
	for _, sample := range s.samples {
		c, err := ClassOf(sample, label)
		if err != nil {
			return ClassCounts{}, err
		}
		result = result.Add(c)
	}
	s.classCounts = &result
	return result, nil
}

func (s *cpuIntensiveSubsettingDataset) ClassCounts(ctx context.Context, label feature.Feature) (ClassCounts, error) {
	if s.classCounts != nil {
		return *s.classCounts, nil
	}
	var result ClassCounts
	err := s.iterateOnDataset(ctx, func(sample Sample) (bool, error) {
		c, err := ClassOf(sample, label)
		if err != nil {
			return false, err
		}
		result = result.Add(c)
		return true, nil
	})
	if err != nil {
		return ClassCounts{}, err
	}
	s.classCounts = &result
	return result, nil
}

func (s *memoryIntensiveSubsettingDataset) FeatureValues(ctx context.Context, f feature.Feature) ([]interface{}, error) {
	result := []interface{}{}
	encountered := make(map[string]bool)
	for _, sample := range s.samples {
		v, err := sample.ValueFor(f)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		vString := fmt.Sprintf("%v", v)
		if !encountered[vString] {
			encountered[vString] = true
			result = append(result, v)
		}
	}
	return result, nil
}

func (s *cpuIntensiveSubsettingDataset) FeatureValues(ctx context.Context, f feature.Feature) ([]interface{}, error) {
	result := []interface{}{}
	encountered := make(map[string]bool)
	err := s.iterateOnDataset(ctx, func(sample Sample) (bool, error) {
		v, err := sample.ValueFor(f)
		if err != nil {
			return false, err
		}
		if v == nil {
			return true, nil
		}
		vString := fmt.Sprintf("%v", v)
		if !encountered[vString] {
			encountered[vString] = true
			result = append(result, v)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *memoryIntensiveSubsettingDataset) SubsetWith(ctx context.Context, fc feature.Criterion) (Dataset, error) {
	return s.subset(ctx, condition{fc, true})
}

func (s *memoryIntensiveSubsettingDataset) SubsetWithout(ctx context.Context, fc feature.Criterion) (Dataset, error) {
	return s.subset(ctx, condition{fc, false})
}

func (s *memoryIntensiveSubsettingDataset) subset(ctx context.Context, c condition) (Dataset, error) {
	var samples []Sample
	for _, sample := range s.samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := c.satisfiedBy(sample)
		if err != nil {
			return nil, err
		}
		if ok {
			samples = append(samples, sample)
		}
	}
	return &memoryIntensiveSubsettingDataset{nil, samples}, nil
}

func (s *cpuIntensiveSubsettingDataset) SubsetWith(ctx context.Context, fc feature.Criterion) (Dataset, error) {
	return s.subset(condition{fc, true}), nil
}

func (s *cpuIntensiveSubsettingDataset) SubsetWithout(ctx context.Context, fc feature.Criterion) (Dataset, error) {
	return s.subset(condition{fc, false}), nil
}

func (s *cpuIntensiveSubsettingDataset) subset(c condition) Dataset {
	conditions := make([]condition, 0, len(s.conditions)+1)
	conditions = append(conditions, c)
	conditions = append(conditions, s.conditions...)
	return &cpuIntensiveSubsettingDataset{nil, nil, s.samples, conditions}
}

func (s *memoryIntensiveSubsettingDataset) Samples(ctx context.Context) ([]Sample, error) {
	return s.samples, nil
}

func (s *cpuIntensiveSubsettingDataset) Samples(ctx context.Context) ([]Sample, error) {
	var samples []Sample
	err := s.iterateOnDataset(ctx, func(sample Sample) (bool, error) {
		samples = append(samples, sample)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return samples, nil
}

func (s *cpuIntensiveSubsettingDataset) iterateOnDataset(ctx context.Context, lambda func(Sample) (bool, error)) error {
	for _, sample := range s.samples {
		if err := ctx.Err(); err != nil {
			return err
		}
		skip := false
		for _, c := range s.conditions {
			ok, err := c.satisfiedBy(sample)
			if err != nil {
				return err
			}
			if !ok {
				skip = true
				break
			}
		}
		if !skip {
			ok, err := lambda(sample)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
		}
	}
	return nil
}

// samples without a defined value never satisfy the criterion, so they
// end up on the complement side.
func (c condition) satisfiedBy(s Sample) (bool, error) {
	left, defined, err := c.criterion.Branch(s)
	if err != nil {
		return false, err
	}
	return (left && defined) == c.left, nil
}
