package feature

import (
	"fmt"
	"strconv"
)

/*
Criterion represents the binary test a decision node imposes on a feature.

Its Branch method takes a sample and returns whether the sample goes to the
left branch (the test is satisfied) and whether the sample defines a usable
value for the feature at all. Samples that do not define one cannot be sent
down either branch.

Its Feature method returns the feature on which the criterion is applied.
*/
type Criterion interface {
	Feature() Feature
	Branch(sample Sample) (left bool, defined bool, err error)
	String() string
}

/*
Sample is an interface for something that can be tested against a Criterion.

Its ValueFor method returns the value corresponding to the feature
passed as parameter, or nil if the sample does not define it.
*/
type Sample interface {
	ValueFor(Feature) (interface{}, error)
}

/*
ContinuousCriterion sends to the left branch samples whose value for the
feature is lower or equal than its threshold. The feature may be a discrete
one whose values are all numeric: values are coerced to float64.
*/
type ContinuousCriterion struct {
	feature   Feature
	threshold float64
}

/*
DiscreteCriterion sends to the left branch samples whose value for the
feature equals its value.
*/
type DiscreteCriterion struct {
	feature *DiscreteFeature
	value   string
}

/*
NewContinuousCriterion takes a feature and a threshold and returns
a ContinuousCriterion that tests values of the feature with `<= threshold`.
*/
func NewContinuousCriterion(feature Feature, threshold float64) *ContinuousCriterion {
	return &ContinuousCriterion{feature, threshold}
}

/*
NewDiscreteCriterion takes a DiscreteFeature and one of its values and
returns a DiscreteCriterion that tests values of the feature for equality
with it.
*/
func NewDiscreteCriterion(feature *DiscreteFeature, value string) *DiscreteCriterion {
	return &DiscreteCriterion{feature, value}
}

/*
Feature returns the feature to which the test applies.
*/
func (cc *ContinuousCriterion) Feature() Feature {
	return cc.feature
}

/*
Branch receives a sample and returns true when the sample's value for the
feature is lower or equal than the threshold. The value is undefined when
the sample has no value for the feature or the value cannot be read as a
number.
*/
func (cc *ContinuousCriterion) Branch(sample Sample) (bool, bool, error) {
	val, err := sample.ValueFor(cc.feature)
	if err != nil {
		return false, false, err
	}
	if val == nil {
		return false, false, nil
	}
	f, ok := Float(val)
	if !ok {
		return false, false, nil
	}
	return f <= cc.threshold, true, nil
}

// Threshold returns the split value of the criterion.
func (cc *ContinuousCriterion) Threshold() float64 {
	return cc.threshold
}

func (cc *ContinuousCriterion) String() string {
	return fmt.Sprintf("%s <= %.2f", cc.feature.Name(), cc.threshold)
}

/*
Feature returns the feature to which the test applies.
*/
func (dc *DiscreteCriterion) Feature() Feature {
	return dc.feature
}

/*
Branch receives a sample and returns true when the sample's value for the
feature equals the criterion value. The value is undefined when the sample
has no value for the feature.
*/
func (dc *DiscreteCriterion) Branch(sample Sample) (bool, bool, error) {
	val, err := sample.ValueFor(dc.feature)
	if err != nil {
		return false, false, err
	}
	if val == nil {
		return false, false, nil
	}
	switch v := val.(type) {
	case string:
		return v == dc.value, true, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64) == dc.value, true, nil
	}
	return fmt.Sprintf("%v", val) == dc.value, true, nil
}

// Value returns the split value of the criterion.
func (dc *DiscreteCriterion) Value() string {
	return dc.value
}

func (dc *DiscreteCriterion) String() string {
	return fmt.Sprintf("%s == %s", dc.feature.Name(), dc.value)
}
