package sqldataset

import (
	"database/sql"
	"testing"

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

func TestDriverFor(t *testing.T) {
	testCases := []struct {
		source string
		driver string
		dsn    string
	}{
		{"postgres://user@localhost/flows", "postgres", "postgres://user@localhost/flows"},
		{"postgresql://localhost/flows?sslmode=disable", "postgres", "postgresql://localhost/flows?sslmode=disable"},
		{"training.db", "sqlite3", "training.db"},
		{"sqlite3://:memory:", "sqlite3", ":memory:"},
		{"training.csv", "", ""},
		{"mongodb://localhost/flows", "", ""},
	}
	for _, tc := range testCases {
		driver, dsn := driverFor(tc.source)
		if driver != tc.driver || dsn != tc.dsn {
			t.Errorf("expected driverFor(%q) to be (%q, %q), got (%q, %q)", tc.source, tc.driver, tc.dsn, driver, dsn)
		}
		if IsDatabaseURL(tc.source) != (tc.driver != "") {
			t.Errorf("unexpected IsDatabaseURL(%q) = %v", tc.source, IsDatabaseURL(tc.source))
		}
	}
}

func TestSelectQuery(t *testing.T) {
	query, err := SelectQuery("flows", testSchema(t))
	if err != nil {
		t.Fatalf("building query: %v", err)
	}
	expected := `SELECT "proto", "pkts", "class" FROM "flows"`
	if query != expected {
		t.Errorf("expected query %q, got %q", expected, query)
	}
	if _, err := SelectQuery(`flows"; DROP TABLE flows; --`, testSchema(t)); err == nil {
		t.Errorf("expected an error for a table name with quotes")
	}
}

func TestSampleFromRow(t *testing.T) {
	schema := testSchema(t)
	dest := scanDestinations(schema)
	*dest[0].(*sql.NullString) = sql.NullString{String: "17", Valid: true}
	*dest[1].(*sql.NullFloat64) = sql.NullFloat64{}
	*dest[2].(*sql.NullString) = sql.NullString{String: " DDoS", Valid: true}
	s, err := sampleFromRow(dest, schema)
	if err != nil {
		t.Fatalf("parsing row: %v", err)
	}
	if v, _ := s.ValueFor(schema.Feature("proto")); v != "17" {
		t.Errorf("expected proto 17, got %v", v)
	}
	if v, _ := s.ValueFor(schema.Feature("pkts")); v != nil {
		t.Errorf("expected undefined pkts, got %v", v)
	}
	if v, _ := s.ValueFor(schema.Label); v != "ddos" {
		t.Errorf("expected class ddos, got %v", v)
	}
	*dest[2].(*sql.NullString) = sql.NullString{}
	if _, err := sampleFromRow(dest, schema); err == nil {
		t.Errorf("expected an error for a row without label")
	}
}
