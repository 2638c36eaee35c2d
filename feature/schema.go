package feature

import "fmt"

/*
Schema describes the columns of a flow-feature table in order, one of
which is the label column holding the class of each record.
*/
type Schema struct {
	Columns []Feature
	Label   Feature
}

/*
NewSchema takes the ordered slice of column features and the name of the
label column and returns a Schema or an error if no column carries that
name, the label is not a discrete feature or names are repeated.
*/
func NewSchema(columns []Feature, label string) (*Schema, error) {
	var lf Feature
	seen := make(map[string]bool)
	for _, f := range columns {
		if seen[f.Name()] {
			return nil, fmt.Errorf("feature %s declared more than once", f.Name())
		}
		seen[f.Name()] = true
		if f.Name() == label {
			lf = f
		}
	}
	if lf == nil {
		return nil, fmt.Errorf("label feature %q is not defined", label)
	}
	if _, ok := lf.(*DiscreteFeature); !ok {
		return nil, fmt.Errorf("label feature %q must be discrete", label)
	}
	return &Schema{Columns: columns, Label: lf}, nil
}

// Inputs returns the features of the schema other than the label, in
// column order.
func (s *Schema) Inputs() []Feature {
	result := make([]Feature, 0, len(s.Columns))
	for _, f := range s.Columns {
		if f != s.Label {
			result = append(result, f)
		}
	}
	return result
}

// Feature returns the column feature with the given name or nil.
func (s *Schema) Feature(name string) Feature {
	for _, f := range s.Columns {
		if f.Name() == name {
			return f
		}
	}
	return nil
}
