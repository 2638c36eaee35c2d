package feature

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

/*
Feature represents a property of a flow record that can be observed
*/
type Feature interface {
	Name() string
	Valid(interface{}) (bool, error)
	// Parse takes the textual representation of a value for the
	// feature and returns the value it stands for.
	Parse(string) (interface{}, error)
}

/*
DiscreteFeature represents a categorical property of a flow record, one that
can only take a value among a finite set. When the set of available values is
empty, any value is accepted.
*/
type DiscreteFeature struct {
	name            string
	availableValues []string
}

/*
ContinuousFeature represents a property of a flow record that takes a
finite numeric value
*/
type ContinuousFeature struct {
	name string
}

/*
NewDiscreteFeature takes a name string and a slice of available value strings
and returns a discrete feature with the given names and available values.
*/
func NewDiscreteFeature(name string, availableValues []string) *DiscreteFeature {
	return &DiscreteFeature{name, availableValues}
}

/*
NewContinuousFeature takes a name string and returns a continuous feature with
the given name.
*/
func NewContinuousFeature(name string) *ContinuousFeature {
	return &ContinuousFeature{name}
}

/*
Name returns a string with the name of the feature
*/
func (df *DiscreteFeature) Name() string {
	return df.name
}

/*
Valid receives an interface value and returns a boolean and an error. When the
value parameter is included in the available values for the feature (or the
feature does not restrict its values), the method returns true and nil.
Otherwise it returns false and an error describing the reason.
*/
func (df *DiscreteFeature) Valid(value interface{}) (bool, error) {
	if value == nil {
		return true, nil
	}
	vs, ok := value.(string)
	if !ok {
		return false, fmt.Errorf("discrete feature %s expects string value, got %T value", df.Name(), value)
	}
	if len(df.availableValues) == 0 {
		return true, nil
	}
	for _, av := range df.availableValues {
		if av == vs {
			return true, nil
		}
	}
	return false, fmt.Errorf("discrete feature %s got unknown value %s", df.Name(), vs)
}

// Parse trims the given string and returns it as the feature value.
func (df *DiscreteFeature) Parse(s string) (interface{}, error) {
	v := strings.TrimSpace(s)
	if ok, err := df.Valid(v); !ok {
		return nil, err
	}
	return v, nil
}

/*
AvailableValues returns a string slice with the values available for the feature
*/
func (df *DiscreteFeature) AvailableValues() []string {
	return df.availableValues
}

func (df *DiscreteFeature) String() string {
	return df.name
}

/*
Name returns a string with the name of the feature
*/
func (cf *ContinuousFeature) Name() string {
	return cf.name
}

/*
Valid receives an interface value and returns a boolean and an error. When the
value parameter is a finite float64 it returns true and nil, otherwise it
returns false and an error describing the reason.
*/
func (cf *ContinuousFeature) Valid(value interface{}) (bool, error) {
	if value == nil {
		return true, nil
	}
	f, ok := value.(float64)
	if !ok {
		return false, fmt.Errorf("continuous feature %s expects float64 value, got %T value", cf.Name(), value)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false, fmt.Errorf("continuous feature %s got non-finite value %v", cf.Name(), f)
	}
	return true, nil
}

// Parse trims the given string and parses it as a finite float64.
func (cf *ContinuousFeature) Parse(s string) (interface{}, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("converting %q to float64 for feature %s: %v", s, cf.Name(), err)
	}
	if ok, err := cf.Valid(f); !ok {
		return nil, err
	}
	return f, nil
}

func (cf *ContinuousFeature) String() string {
	return cf.name
}

// Float takes a feature value and returns it as a float64, coercing
// strings that hold a number. The boolean result is false when the
// value is undefined or cannot be coerced.
func Float(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
