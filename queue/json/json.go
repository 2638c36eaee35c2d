/*
Package json encodes record batches as JSON to store them on
queue backends such as redis.
*/
package json

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pbanos/flowtree/queue"
)

/*
BatchEncodeDecoder is an interface for objects
that allow encoding batches as slices of bytes
and decoding them back to batches. It is used to
serialize batches into a representation to store
on redis
*/
type BatchEncodeDecoder interface {

	//Encode receives a *queue.Batch
	//and returns a slice of bytes with the batch encoded or an
	//error if the encoding could not be performed for
	//some reason.
	Encode(context.Context, *queue.Batch) ([]byte, error)

	//Decode receives a slice of bytes
	//and returns a *queue.Batch decoded from the slice of bytes
	//or an error if the decoding could not be performed
	//for some reason.
	Decode(context.Context, []byte) (*queue.Batch, error)
}

type jsonEncodeDecoder struct {
	maxLines int
}

type jsonBatch struct {
	ID     string   `json:"id"`
	Source string   `json:"src,omitempty"`
	Lines  []string `json:"lines"`
}

/*
New takes the maximum number of lines of a batch and returns a
BatchEncodeDecoder that encodes batches as JSON objects. Batches with more
lines than the maximum cannot be encoded nor decoded. A maximum of 0
allows batches of any size.
*/
func New(maxLines int) BatchEncodeDecoder {
	return &jsonEncodeDecoder{maxLines}
}

func (jed *jsonEncodeDecoder) Encode(ctx context.Context, b *queue.Batch) ([]byte, error) {
	if b.ID == "" {
		return nil, fmt.Errorf("encoding batch as json: batch has no ID")
	}
	if jed.maxLines > 0 && len(b.Lines) > jed.maxLines {
		return nil, fmt.Errorf("encoding batch %s as json: %d lines exceed maximum of %d", b.ID, len(b.Lines), jed.maxLines)
	}
	jb := &jsonBatch{ID: b.ID, Source: b.Source, Lines: b.Lines}
	if jb.Lines == nil {
		jb.Lines = []string{}
	}
	return json.Marshal(jb)
}

func (jed *jsonEncodeDecoder) Decode(ctx context.Context, data []byte) (*queue.Batch, error) {
	jb := &jsonBatch{}
	err := json.Unmarshal(data, jb)
	if err != nil {
		return nil, fmt.Errorf("decoding batch from json: %v", err)
	}
	if jb.ID == "" {
		return nil, fmt.Errorf("decoding json batch: no batch ID")
	}
	if jed.maxLines > 0 && len(jb.Lines) > jed.maxLines {
		return nil, fmt.Errorf("decoding json batch %s: %d lines exceed maximum of %d", jb.ID, len(jb.Lines), jed.maxLines)
	}
	return &queue.Batch{ID: jb.ID, Source: jb.Source, Lines: jb.Lines}, nil
}
