/*
Package mongodataset loads labeled flow records from, and stores them on,
a collection of a MongoDB database.

Each sample is a document with a field per defined feature value, named
after the feature.
*/
package mongodataset

import (
	"context"
	"fmt"
	"strings"

	mgo "gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"

	"github.com/pbanos/flowtree/dataset"
	"github.com/pbanos/flowtree/feature"
)

// DefaultCollection is the name of the collection used when none is given.
const DefaultCollection = "samples"

/*
Collection is a MongoDB collection of flow records to which samples can be
added and from which samples can be sequentially read.
*/
type Collection struct {
	session    *mgo.Session
	collection string
	schema     *feature.Schema
}

// IsMongoURL returns whether the given training source string is a
// MongoDB connection URL.
func IsMongoURL(source string) bool {
	return strings.HasPrefix(source, "mongodb://")
}

/*
Dial takes a MongoDB connection URL, a collection name and a schema,
connects to the database and opens the collection on it. The collection
name defaults to DefaultCollection.
*/
func Dial(url, collection string, schema *feature.Schema) (*Collection, error) {
	session, err := mgo.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %v", url, err)
	}
	c, err := Open(session, collection, schema)
	if err != nil {
		session.Close()
		return nil, err
	}
	return c, nil
}

/*
Open takes a MongoDB database session, a collection name and a schema and
returns a Collection that works on the collection of the default database
for that session or an error if the schema has feature names that cannot
be used as document fields or the label index cannot be ensured.
*/
func Open(session *mgo.Session, collection string, schema *feature.Schema) (*Collection, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	for _, f := range schema.Columns {
		if err := validateFieldName(f.Name()); err != nil {
			return nil, err
		}
	}
	c := &Collection{session, collection, schema}
	index := mgo.Index{
		Key:        []string{schema.Label.Name()},
		Background: true,
		Sparse:     true,
	}
	if err := c.samplesCollection().EnsureIndex(index); err != nil {
		return nil, fmt.Errorf("ensuring index on %s: %v", schema.Label.Name(), err)
	}
	return c, nil
}

// Close closes the session of the collection.
func (c *Collection) Close() {
	c.session.Close()
}

// Count returns the number of documents in the collection.
func (c *Collection) Count(context.Context) (int, error) {
	return c.samplesCollection().Count()
}

/*
Samples returns all the samples stored on the collection or an error.
*/
func (c *Collection) Samples(ctx context.Context) ([]dataset.Sample, error) {
	var samples []dataset.Sample
	count, err := c.Count(ctx)
	if err == nil {
		samples = make([]dataset.Sample, 0, count)
	}
	sampleChan, errs := c.Read(ctx)
	for sample := range sampleChan {
		samples = append(samples, sample)
	}
	err = <-errs
	if err != nil {
		return nil, err
	}
	return samples, nil
}

/*
Write takes a context and a slice of samples and inserts them on the
collection, returning the number of inserted samples or an error.
*/
func (c *Collection) Write(ctx context.Context, samples []dataset.Sample) (int, error) {
	docs := make([]interface{}, 0, len(samples))
	for _, s := range samples {
		doc, err := docFromSample(s, c.schema)
		if err != nil {
			return 0, err
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	err := c.samplesCollection().Insert(docs...)
	if err != nil {
		return 0, fmt.Errorf("inserting %d samples: %v", len(docs), err)
	}
	return len(samples), nil
}

/*
Read takes a context and returns a channel on which the samples of the
collection are sent and a channel on which an error is sent if reading
them fails. Both channels are closed when done.
*/
func (c *Collection) Read(ctx context.Context) (<-chan dataset.Sample, <-chan error) {
	samples := make(chan dataset.Sample)
	errs := make(chan error, 1)
	go func() {
		defer close(samples)
		defer close(errs)
		var doc bson.M
		iter := c.samplesCollection().Find(nil).Iter()
		defer iter.Close()
		for i := 1; iter.Next(&doc); i++ {
			s, err := sampleFromDoc(doc, c.schema)
			if err != nil {
				errs <- fmt.Errorf("parsing document %d: %v", i, err)
				return
			}
			doc = nil
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case samples <- s:
			}
		}
		if err := iter.Err(); err != nil {
			errs <- err
		}
	}()
	return samples, errs
}

func (c *Collection) samplesCollection() *mgo.Collection {
	return c.session.DB("").C(c.collection)
}

func validateFieldName(name string) error {
	if name == "_id" {
		return fmt.Errorf("invalid feature name %q: reserved collection field", "_id")
	}
	if strings.ContainsAny(name, ".$") {
		return fmt.Errorf("invalid feature name %q: contains reserved characters %q or %q", name, ".", "$")
	}
	return nil
}

func docFromSample(s dataset.Sample, schema *feature.Schema) (bson.M, error) {
	doc := make(bson.M)
	for _, f := range schema.Columns {
		value, err := s.ValueFor(f)
		if err != nil {
			return nil, err
		}
		if value != nil {
			doc[f.Name()] = value
		}
	}
	return doc, nil
}

func sampleFromDoc(doc bson.M, schema *feature.Schema) (dataset.Sample, error) {
	featureValues := make(map[string]interface{})
	for _, f := range schema.Columns {
		raw, ok := doc[f.Name()]
		if !ok || raw == nil {
			if f == schema.Label {
				return nil, fmt.Errorf("undefined label %s", f.Name())
			}
			continue
		}
		var value interface{}
		switch f.(type) {
		case *feature.ContinuousFeature:
			v, ok := numericValue(raw)
			if !ok {
				return nil, fmt.Errorf("non-numeric value %v (%T) for feature %s", raw, raw, f.Name())
			}
			value = v
		default:
			value = strings.TrimSpace(fmt.Sprintf("%v", raw))
		}
		if f == schema.Label {
			c, err := dataset.ParseClass(value.(string))
			if err != nil {
				return nil, err
			}
			featureValues[f.Name()] = string(c)
			continue
		}
		if ok, err := f.Valid(value); !ok {
			return nil, fmt.Errorf("invalid value %v for feature %s: %v", value, f.Name(), err)
		}
		featureValues[f.Name()] = value
	}
	return dataset.NewSample(featureValues), nil
}

func numericValue(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
