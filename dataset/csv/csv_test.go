package csv

import (
	"strings"
	"testing"

	"github.com/pbanos/flowtree/dataset"
	"github.com/pbanos/flowtree/feature"
	"github.com/pbanos/flowtree/tree"
)

func testSchema(t *testing.T) *feature.Schema {
	t.Helper()
	schema, err := feature.NewSchema([]feature.Feature{
		feature.NewDiscreteFeature("proto", nil),
		feature.NewContinuousFeature("pkts"),
		feature.NewDiscreteFeature("flag", []string{"S", "A"}),
		feature.NewDiscreteFeature("class", []string{"benign", "ddos"}),
	}, "class")
	if err != nil {
		t.Fatalf("building schema: %v", err)
	}
	return schema
}

func valueOf(t *testing.T, s dataset.Sample, schema *feature.Schema, name string) interface{} {
	t.Helper()
	v, err := s.ValueFor(schema.Feature(name))
	if err != nil {
		t.Fatalf("getting value for %s: %v", name, err)
	}
	return v
}

func TestReadSamples(t *testing.T) {
	schema := testSchema(t)
	input := "6, 10, S, Benign\n17,500.5,A,DDOS\n6, ?, , benign\n"
	samples, err := ReadSamples(strings.NewReader(input), schema)
	if err != nil {
		t.Fatalf("reading samples: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	if v := valueOf(t, samples[0], schema, "proto"); v != "6" {
		t.Errorf("expected proto 6 on first sample, got %v", v)
	}
	if v := valueOf(t, samples[1], schema, "pkts"); v != 500.5 {
		t.Errorf("expected pkts 500.5 on second sample, got %v", v)
	}
	if v := valueOf(t, samples[1], schema, "class"); v != "ddos" {
		t.Errorf("expected lowercased class ddos on second sample, got %v", v)
	}
	if v := valueOf(t, samples[2], schema, "pkts"); v != nil {
		t.Errorf("expected undefined pkts on third sample, got %v", v)
	}
	if v := valueOf(t, samples[2], schema, "flag"); v != nil {
		t.Errorf("expected undefined flag on third sample, got %v", v)
	}
}

func TestReadSamplesSkipsHeader(t *testing.T) {
	schema := testSchema(t)
	input := "proto,pkts,flag,class\n6,10,S,benign\n"
	samples, err := ReadSamples(strings.NewReader(input), schema)
	if err != nil {
		t.Fatalf("reading samples: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
}

func TestReadSamplesErrors(t *testing.T) {
	schema := testSchema(t)
	testCases := []struct {
		name  string
		input string
		line  string
	}{
		{"non-finite number", "6,10,S,benign\n6,NaN,S,benign\n", "line 2"},
		{"infinite number", "6,+Inf,S,benign\n", "line 1"},
		{"bad number", "6,10,S,benign\n6,10,S,benign\n6,ten,S,benign\n", "line 3"},
		{"unknown class", "6,10,S,attack\n", "line 1"},
		{"missing label", "6,10,S,\n", "line 1"},
		{"unknown discrete value", "6,10,F,ddos\n", "line 1"},
		{"wrong number of fields", "6,10,S,ddos\n6,10,ddos\n", "line 2"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadSamples(strings.NewReader(tc.input), schema)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), tc.line) {
				t.Errorf("expected error %q to mention %q", err, tc.line)
			}
		})
	}
}

func TestReadSamplesBySampleStops(t *testing.T) {
	schema := testSchema(t)
	input := "6,10,S,benign\n6,11,S,benign\n6,12,S,benign\n"
	var seen []int
	err := ReadSamplesBySample(strings.NewReader(input), schema, func(i int, _ dataset.Sample) (bool, error) {
		seen = append(seen, i)
		return i < 1, nil
	})
	if err != nil {
		t.Fatalf("reading samples: %v", err)
	}
	if len(seen) != 2 || seen[0] != 0 || seen[1] != 1 {
		t.Errorf("expected to see samples 0 and 1, got %v", seen)
	}
}

func TestParseRecord(t *testing.T) {
	schema := testSchema(t)
	testCases := []struct {
		line  string
		proto interface{}
		pkts  interface{}
		flag  interface{}
		class interface{}
	}{
		{"6, 10, S, benign", "6", 10.0, "S", "benign"},
		{"6, 10, S", "6", 10.0, "S", nil},
		{"17, 500", "17", 500.0, nil, nil},
		{"17, lots, A", "17", nil, "A", nil},
		{"17, 3, X, ddos", "17", 3.0, "X", "ddos"},
		{"17, 3, A, unknown", "17", 3.0, "A", nil},
		{"?, 3", nil, 3.0, nil, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.line, func(t *testing.T) {
			s, err := ParseRecord(tc.line, schema)
			if err != nil {
				t.Fatalf("parsing record: %v", err)
			}
			for name, expected := range map[string]interface{}{"proto": tc.proto, "pkts": tc.pkts, "flag": tc.flag, "class": tc.class} {
				if v := valueOf(t, s, schema, name); v != expected {
					t.Errorf("expected %s to be %v, got %v", name, expected, v)
				}
			}
		})
	}
}

func TestParseRecordUnlistedCategory(t *testing.T) {
	flag := feature.NewDiscreteFeature("flag", []string{"S", "A"})
	class := feature.NewDiscreteFeature("class", []string{"benign", "ddos"})
	schema, err := feature.NewSchema([]feature.Feature{flag, class}, "class")
	if err != nil {
		t.Fatal(err)
	}
	tr, err := tree.New(class, &tree.Draft{
		Criterion: feature.NewDiscreteCriterion(flag, "S"),
		Left:      &tree.Draft{Class: dataset.DDoS},
		Right:     &tree.Draft{Class: dataset.Benign},
	})
	if err != nil {
		t.Fatal(err)
	}
	s, err := ParseRecord("F", schema)
	if err != nil {
		t.Fatalf("parsing record: %v", err)
	}
	p, err := tr.Classify(s)
	if err != nil {
		t.Fatalf("classifying record: %v", err)
	}
	leaf, ok := p.Leaf()
	if !ok || leaf != 2 {
		t.Fatalf("expected the walk to end on the right leaf, got %+v", p)
	}
	if class, _, _ := tr.Predict(s); class != dataset.Benign {
		t.Errorf("expected class benign, got %s", class)
	}
}

func TestParseRecordEmptyLine(t *testing.T) {
	if _, err := ParseRecord("", testSchema(t)); err == nil {
		t.Errorf("expected an error parsing an empty line")
	}
}

func TestFormatRecord(t *testing.T) {
	schema := testSchema(t)
	s := dataset.NewSample(map[string]interface{}{"proto": "6", "pkts": 10.5, "class": "ddos"})
	line, err := FormatRecord(s, schema.Inputs())
	if err != nil {
		t.Fatalf("formatting record: %v", err)
	}
	if line != "6, 10.5, ?" {
		t.Errorf("expected line %q, got %q", "6, 10.5, ?", line)
	}
	parsed, err := ParseRecord(line, schema)
	if err != nil {
		t.Fatalf("parsing formatted record: %v", err)
	}
	if v := valueOf(t, parsed, schema, "pkts"); v != 10.5 {
		t.Errorf("expected pkts 10.5 after parsing formatted record, got %v", v)
	}
}
