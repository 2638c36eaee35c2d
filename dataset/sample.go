package dataset

import (
	"fmt"

	"github.com/pbanos/flowtree/feature"
)

/*
Sample represents a flow record to classify or from which to learn how to
classify them.

Its ValueFor method returns the value of the sample corresponding to the feature
passed as parameter.
*/
type Sample interface {
	ValueFor(feature.Feature) (interface{}, error)
}

type sample struct {
	featureValues map[string]interface{}
}

/*
NewSample takes a map of feature string names to values and returns
a sample. Features missing from the map are undefined for the sample.
*/
func NewSample(featureValues map[string]interface{}) Sample {
	return &sample{featureValues}
}

func (s *sample) ValueFor(feature feature.Feature) (interface{}, error) {
	return s.featureValues[feature.Name()], nil
}

func (s *sample) String() string {
	return fmt.Sprintf("[%v]", s.featureValues)
}

/*
ClassOf takes a sample and the label feature and returns the class of
the sample or an error if the sample has no valid label.
*/
func ClassOf(s Sample, label feature.Feature) (Class, error) {
	v, err := s.ValueFor(label)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", fmt.Errorf("sample %v has no value for label %s", s, label.Name())
	}
	return ParseClass(fmt.Sprintf("%v", v))
}
