/*
Package dot exports trees as Graphviz digraphs.
*/
package dot

import (
	"fmt"
	"io"
	"strconv"

	"github.com/awalterschulze/gographviz"

	"github.com/pbanos/flowtree/tree"
)

const graphName = "G"

/*
Graph takes a tree and returns a Graphviz digraph with a node for every
node of the tree, labelled with its text, and an edge from every decision
to each of its subtrees, labelled "yes" for the subtree receiving samples
that satisfy the decision's criterion and "no" for the other one.
*/
func Graph(t *tree.Tree) (*gographviz.Graph, error) {
	graphAst, err := gographviz.Parse([]byte(`digraph G{}`))
	if err != nil {
		return nil, err
	}
	graph := gographviz.NewGraph()
	if err = gographviz.Analyse(graphAst, graph); err != nil {
		return nil, err
	}
	for _, n := range t.Nodes() {
		attrs := map[string]string{"label": strconv.Quote(n.Text())}
		if _, ok := n.(*tree.Leaf); ok {
			attrs["shape"] = "box"
		}
		if err = graph.AddNode(graphName, nodeName(n.ID()), attrs); err != nil {
			return nil, fmt.Errorf("adding node %d: %v", n.ID(), err)
		}
	}
	for _, n := range t.Nodes() {
		d, ok := n.(*tree.Decision)
		if !ok {
			continue
		}
		if err = graph.AddEdge(nodeName(d.ID()), nodeName(d.Left), true, map[string]string{"label": `"yes"`}); err != nil {
			return nil, fmt.Errorf("adding edge %d->%d: %v", d.ID(), d.Left, err)
		}
		if err = graph.AddEdge(nodeName(d.ID()), nodeName(d.Right), true, map[string]string{"label": `"no"`}); err != nil {
			return nil, fmt.Errorf("adding edge %d->%d: %v", d.ID(), d.Right, err)
		}
	}
	return graph, nil
}

// WriteDOT takes a tree and an io.Writer and writes the tree's digraph
// onto it in DOT format.
func WriteDOT(t *tree.Tree, w io.Writer) error {
	graph, err := Graph(t)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, graph.String())
	return err
}

func nodeName(id tree.NodeID) string {
	return fmt.Sprintf("n%d", id)
}
