package sqldataset

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Import of PostgreSQL driver
	_ "github.com/lib/pq"
	// Import of sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/pbanos/flowtree/dataset"
	"github.com/pbanos/flowtree/feature"
)

/*
IsDatabaseURL returns whether the given training source string points
to a database this package can load samples from: a PostgreSQL URL or
an SQLite3 file with a .db extension.
*/
func IsDatabaseURL(source string) bool {
	driver, _ := driverFor(source)
	return driver != ""
}

/*
Open takes a PostgreSQL connection URL or the path to an SQLite3 database
file and returns the database handle for it or an error.
*/
func Open(source string) (*sql.DB, error) {
	driver, dsn := driverFor(source)
	if driver == "" {
		return nil, fmt.Errorf("opening database %s: unsupported database source", source)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %v", source, err)
	}
	return db, nil
}

func driverFor(source string) (string, string) {
	switch {
	case strings.HasPrefix(source, "postgres://"), strings.HasPrefix(source, "postgresql://"):
		return "postgres", source
	case strings.HasPrefix(source, "sqlite3://"):
		return "sqlite3", strings.TrimPrefix(source, "sqlite3://")
	case strings.HasSuffix(source, ".db"):
		return "sqlite3", source
	}
	return "", ""
}

/*
ColumnName takes a feature name and returns the column name for it or an
error if the name cannot be used safely as a quoted identifier.
*/
func ColumnName(featureName string) (string, error) {
	if featureName == "" {
		return "", fmt.Errorf("empty feature name cannot be used as column name")
	}
	if strings.ContainsAny(featureName, "\"\x00") {
		return "", fmt.Errorf(`feature name '%s' contains invalid character '"'`, featureName)
	}
	return featureName, nil
}

/*
SelectQuery takes a table name and a schema and returns the query
selecting the schema columns in order from the table, or an error if any
of the names cannot be quoted.
*/
func SelectQuery(table string, schema *feature.Schema) (string, error) {
	var query bytes.Buffer
	query.WriteString("SELECT ")
	for i, f := range schema.Columns {
		c, err := ColumnName(f.Name())
		if err != nil {
			return "", err
		}
		if i > 0 {
			query.WriteString(", ")
		}
		query.WriteString(fmt.Sprintf(`"%s"`, c))
	}
	t, err := ColumnName(table)
	if err != nil {
		return "", fmt.Errorf("invalid table name: %v", err)
	}
	query.WriteString(fmt.Sprintf(` FROM "%s"`, t))
	return query.String(), nil
}

/*
ReadSamples takes a context, a database handle, a table name and a schema
and returns the samples stored on the table or an error. Rows with a
missing or invalid label, and values not valid for their feature, result
in an error naming the row.
*/
func ReadSamples(ctx context.Context, db *sql.DB, table string, schema *feature.Schema) ([]dataset.Sample, error) {
	query, err := SelectQuery(table, schema)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying table %s: %v", table, err)
	}
	defer rows.Close()
	samples := []dataset.Sample{}
	for r := 1; rows.Next(); r++ {
		dest := scanDestinations(schema)
		if err = rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning row %d of table %s: %v", r, table, err)
		}
		s, err := sampleFromRow(dest, schema)
		if err != nil {
			return nil, fmt.Errorf("parsing row %d of table %s: %v", r, table, err)
		}
		samples = append(samples, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("reading table %s: %v", table, err)
	}
	return samples, nil
}

func scanDestinations(schema *feature.Schema) []interface{} {
	dest := make([]interface{}, len(schema.Columns))
	for i, f := range schema.Columns {
		if _, ok := f.(*feature.ContinuousFeature); ok {
			dest[i] = &sql.NullFloat64{}
		} else {
			dest[i] = &sql.NullString{}
		}
	}
	return dest
}

func sampleFromRow(dest []interface{}, schema *feature.Schema) (dataset.Sample, error) {
	featureValues := make(map[string]interface{})
	for i, f := range schema.Columns {
		var value interface{}
		switch v := dest[i].(type) {
		case *sql.NullFloat64:
			if v.Valid {
				value = v.Float64
			}
		case *sql.NullString:
			if v.Valid {
				value = strings.TrimSpace(v.String)
			}
		}
		if f == schema.Label {
			if value == nil {
				return nil, fmt.Errorf("undefined label %s", f.Name())
			}
			c, err := dataset.ParseClass(value.(string))
			if err != nil {
				return nil, err
			}
			featureValues[f.Name()] = string(c)
			continue
		}
		if value == nil {
			continue
		}
		if ok, err := f.Valid(value); !ok {
			return nil, fmt.Errorf("invalid value %v for feature %s: %v", value, f.Name(), err)
		}
		featureValues[f.Name()] = value
	}
	return dataset.NewSample(featureValues), nil
}
