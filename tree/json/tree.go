/*
Package json exports trees as JSON documents for renderers.
*/
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pbanos/flowtree/tree"
)

/*
WriteJSONTree takes a context.Context, a pointer to a tree.Tree
a NodeEncoder and an io.Writer and serializes the given tree
as JSON onto the io.Writer.
A tree is serialized as a JSON object with the following fields:
  - "rootID": the ID of the node at the root of the tree
  - "label": a string with the name of the feature the tree predicts
  - "nodes": an array containing the nodes of the tree in pre-order,
    serialized by the given NodeEncoder.
  - "edges": an array of {"parent", "child"} objects, one per edge
    of the tree.

An error is returned if the tree cannot be traversed, serialized or written
onto the io.Writer.
*/
func WriteJSONTree(ctx context.Context, t *tree.Tree, ne NodeEncoder, w io.Writer) error {
	err := marshalJSONTreeHeader(ctx, t, w)
	if err != nil {
		return err
	}
	var i int
	err = t.Traverse(ctx, false, func(ctx context.Context, n tree.Node) error {
		err := writeNode(ctx, i, n, ne, w)
		i++
		return err
	})
	if err != nil {
		return err
	}
	err = writeEdges(ctx, t, w)
	if err != nil {
		return err
	}
	return marshalJSONTreeFooter(ctx, t, w)
}

func marshalJSONTreeHeader(ctx context.Context, t *tree.Tree, w io.Writer) error {
	jFeatureName, err := json.Marshal(t.Label.Name())
	if err != nil {
		return err
	}
	header := fmt.Sprintf(`{"rootID":%d,"label":%s,"nodes":[`, tree.RootID, jFeatureName)
	_, err = w.Write([]byte(header))
	return err
}

func writeNode(ctx context.Context, i int, n tree.Node, ne NodeEncoder, w io.Writer) error {
	if i != 0 {
		_, err := w.Write([]byte(","))
		if err != nil {
			return err
		}
	}
	jn, err := ne.Encode(n)
	if err != nil {
		return err
	}
	_, err = w.Write(jn)
	return err
}

type edge struct {
	Parent tree.NodeID `json:"parent"`
	Child  tree.NodeID `json:"child"`
}

func writeEdges(ctx context.Context, t *tree.Tree, w io.Writer) error {
	edges := []edge{}
	for _, e := range t.Edges() {
		edges = append(edges, edge{e.Parent, e.Child})
	}
	je, err := json.Marshal(edges)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, `],"edges":%s`, je)
	return err
}

func marshalJSONTreeFooter(ctx context.Context, t *tree.Tree, w io.Writer) error {
	_, err := w.Write([]byte(`}`))
	return err
}
