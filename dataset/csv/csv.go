/*
Package csv reads flow records from comma-separated text: whole labeled
tables to grow trees from, and single record lines to classify.
*/
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pbanos/flowtree/dataset"
	"github.com/pbanos/flowtree/feature"
)

// RecordSeparator is the separator used by FormatRecord.
const RecordSeparator = ", "

/*
ReadSamples takes an io.Reader for a CSV stream and a schema and returns
the samples parsed from the reader or an error.

Rows are expected to have one value per schema column, in schema order.
A first row with the names of the columns is accepted and skipped. Values
are trimmed and the label is lowercased; it must be a valid class. The
'?' string or an empty value stand for an undefined value on any other
column. Non-finite numbers are rejected.
*/
func ReadSamples(reader io.Reader, schema *feature.Schema) ([]dataset.Sample, error) {
	samples := []dataset.Sample{}
	err := ReadSamplesBySample(reader, schema, func(_ int, s dataset.Sample) (bool, error) {
		samples = append(samples, s)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return samples, nil
}

/*
ReadSamplesBySample takes an io.Reader for a CSV stream, a schema and a
lambda function on an integer and a dataset.Sample that returns a boolean
value. It parses the samples from the reader and for each it calls the
lambda function with the sample and its index as parameters. If the lambda
function returns true, it will continue processing the next sample,
otherwise it will stop. An error is returned if something goes wrong when
reading the stream or parsing a sample.
*/
func ReadSamplesBySample(reader io.Reader, schema *feature.Schema, lambda func(int, dataset.Sample) (bool, error)) error {
	r := csv.NewReader(reader)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = len(schema.Columns)
	r.Comment = '#'
	index := 0
	for l := 1; ; l++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading line %d: %v", l, err)
		}
		if l == 1 && isHeader(row, schema) {
			continue
		}
		s, err := parseRow(row, schema)
		if err != nil {
			return fmt.Errorf("parsing line %d: %v", l, err)
		}
		ok, err := lambda(index, s)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		index++
	}
	return nil
}

/*
ReadSamplesFromFilePath takes a filepath string and a schema, opens the
file to which the filepath points to and uses ReadSamples to return the
samples read from it or an error. If the filepath is "" os.Stdin is used
instead.
*/
func ReadSamplesFromFilePath(filepath string, schema *feature.Schema) ([]dataset.Sample, error) {
	var f *os.File
	var err error
	if filepath == "" {
		f = os.Stdin
	} else {
		f, err = os.Open(filepath)
		if err != nil {
			return nil, fmt.Errorf("reading training set: %v", err)
		}
		defer f.Close()
	}
	samples, err := ReadSamples(f, schema)
	if err != nil {
		err = fmt.Errorf("parsing CSV file %s: %v", filepath, err)
	}
	return samples, err
}

/*
ParseRecord takes a line with a flow record and a schema and returns the
sample it describes.

Values are separated by commas, optionally followed by spaces, in schema
order. The label column may be left out, in which case values are taken
to belong to the rest of the columns in order. A missing trailing value or
a numeric one that cannot be parsed leaves the feature undefined, so
classifying the sample will stop at the first decision testing it.
Categorical values are kept even when the schema does not list them. An
error is only returned when the line cannot be read at all.
*/
func ParseRecord(line string, schema *feature.Schema) (dataset.Sample, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("parsing record: empty line")
	}
	if err != nil {
		return nil, fmt.Errorf("parsing record %q: %v", line, err)
	}
	columns := schema.Columns
	if len(fields) < len(columns) {
		columns = schema.Inputs()
	}
	featureValues := make(map[string]interface{})
	for i, f := range columns {
		if i >= len(fields) {
			break
		}
		v := strings.TrimSpace(fields[i])
		if v == "" || v == "?" {
			continue
		}
		if f == schema.Label {
			if c, err := dataset.ParseClass(v); err == nil {
				featureValues[f.Name()] = string(c)
			}
			continue
		}
		value, err := f.Parse(v)
		if err != nil {
			// an unlisted category is still a value: it fails equality tests
			if _, ok := f.(*feature.DiscreteFeature); ok {
				featureValues[f.Name()] = v
			}
			continue
		}
		featureValues[f.Name()] = value
	}
	return dataset.NewSample(featureValues), nil
}

/*
FormatRecord takes a sample and a slice of features and returns the line
describing the sample's values for those features, separated by
RecordSeparator. Undefined values are written as '?'.
*/
func FormatRecord(s dataset.Sample, features []feature.Feature) (string, error) {
	values := make([]string, len(features))
	for i, f := range features {
		v, err := s.ValueFor(f)
		if err != nil {
			return "", err
		}
		if v == nil {
			values[i] = "?"
			continue
		}
		if fv, ok := v.(float64); ok {
			values[i] = formatFloat(fv)
			continue
		}
		values[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(values, RecordSeparator), nil
}

func isHeader(row []string, schema *feature.Schema) bool {
	for i, f := range schema.Columns {
		if strings.TrimSpace(row[i]) != f.Name() {
			return false
		}
	}
	return true
}

func parseRow(row []string, schema *feature.Schema) (dataset.Sample, error) {
	featureValues := make(map[string]interface{})
	for i, f := range schema.Columns {
		v := strings.TrimSpace(row[i])
		if f == schema.Label {
			c, err := dataset.ParseClass(v)
			if err != nil {
				return nil, fmt.Errorf("invalid label for feature %s: %v", f.Name(), err)
			}
			featureValues[f.Name()] = string(c)
			continue
		}
		if v == "" || v == "?" {
			continue
		}
		value, err := f.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q for feature %s: %v", v, f.Name(), err)
		}
		featureValues[f.Name()] = value
	}
	return dataset.NewSample(featureValues), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
