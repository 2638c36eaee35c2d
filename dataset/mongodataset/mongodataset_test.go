package mongodataset

import (
	"testing"

	"gopkg.in/mgo.v2/bson"

	"github.com/pbanos/flowtree/dataset"
	"github.com/pbanos/flowtree/feature"
)

func testSchema(t *testing.T) *feature.Schema {
	t.Helper()
	schema, err := feature.NewSchema([]feature.Feature{
		feature.NewDiscreteFeature("proto", nil),
		feature.NewContinuousFeature("pkts"),
		feature.NewDiscreteFeature("class", []string{"benign", "ddos"}),
	}, "class")
	if err != nil {
		t.Fatalf("building schema: %v", err)
	}
	return schema
}

func TestSampleFromDoc(t *testing.T) {
	schema := testSchema(t)
	s, err := sampleFromDoc(bson.M{"_id": bson.NewObjectId(), "proto": 17, "pkts": int64(300), "class": "DDoS"}, schema)
	if err != nil {
		t.Fatalf("parsing document: %v", err)
	}
	if v, _ := s.ValueFor(schema.Feature("proto")); v != "17" {
		t.Errorf("expected proto 17, got %v (%T)", v, v)
	}
	if v, _ := s.ValueFor(schema.Feature("pkts")); v != 300.0 {
		t.Errorf("expected pkts 300, got %v (%T)", v, v)
	}
	if c, err := dataset.ClassOf(s, schema.Label); err != nil || c != dataset.DDoS {
		t.Errorf("expected class ddos, got %v, %v", c, err)
	}
}

func TestSampleFromDocErrors(t *testing.T) {
	schema := testSchema(t)
	testCases := map[string]bson.M{
		"missing label": {"proto": "6", "pkts": 1.0},
		"unknown class": {"proto": "6", "pkts": 1.0, "class": "attack"},
		"non-numeric":   {"proto": "6", "pkts": "many", "class": "benign"},
	}
	for name, doc := range testCases {
		if _, err := sampleFromDoc(doc, schema); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestDocFromSample(t *testing.T) {
	schema := testSchema(t)
	s := dataset.NewSample(map[string]interface{}{"proto": "6", "class": "benign"})
	doc, err := docFromSample(s, schema)
	if err != nil {
		t.Fatalf("building document: %v", err)
	}
	if len(doc) != 2 || doc["proto"] != "6" || doc["class"] != "benign" {
		t.Errorf("unexpected document %v", doc)
	}
	if _, ok := doc["pkts"]; ok {
		t.Errorf("expected undefined pkts to be left out of %v", doc)
	}
}

func TestValidateFieldName(t *testing.T) {
	for _, name := range []string{"_id", "a.b", "$where"} {
		if err := validateFieldName(name); err == nil {
			t.Errorf("expected an error for field name %q", name)
		}
	}
	if err := validateFieldName("pkts"); err != nil {
		t.Errorf("unexpected error for field name pkts: %v", err)
	}
	if !IsMongoURL("mongodb://localhost/flows") || IsMongoURL("flows.db") {
		t.Errorf("unexpected IsMongoURL results")
	}
}
