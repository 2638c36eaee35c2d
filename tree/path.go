package tree

// Edge identifies the link between a node and one of its children.
type Edge struct {
	Parent NodeID
	Child  NodeID
}

/*
Path is the sequence of nodes a record visits from the root of a tree.
It is Complete when it ends on a leaf, and partial when the walk had to
stop at a decision node because the record did not define the value it
tests.
*/
type Path struct {
	Nodes    []NodeID
	Complete bool
}

// Edges returns the edges between consecutive nodes of the path.
func (p Path) Edges() []Edge {
	if len(p.Nodes) < 2 {
		return nil
	}
	edges := make([]Edge, 0, len(p.Nodes)-1)
	for i := 1; i < len(p.Nodes); i++ {
		edges = append(edges, Edge{p.Nodes[i-1], p.Nodes[i]})
	}
	return edges
}

// Leaf returns the last node of the path and whether it is a leaf.
func (p Path) Leaf() (NodeID, bool) {
	if !p.Complete || len(p.Nodes) == 0 {
		return NoParent, false
	}
	return p.Nodes[len(p.Nodes)-1], true
}
