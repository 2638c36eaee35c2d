package visit

import (
	"time"

	"github.com/pbanos/flowtree/dataset"
	"github.com/pbanos/flowtree/tree"
)

// ClassMix holds the percentage of leaves of each class under a node.
type ClassMix struct {
	Benign float64
	DDoS   float64
}

// NodeState is the state of a node at the time of a snapshot.
type NodeState struct {
	ID     tree.NodeID
	Parent tree.NodeID
	Text   string
	Kind   string
	// Class of the node if it is a leaf.
	Class  dataset.Class
	Visits int
	Timer  time.Duration
	Active bool
	// ColorWeight is the share of MaxVisits reached by Visits, capped at 1.
	ColorWeight float64
	ClassMix    ClassMix
}

// EdgeState is the state of an edge at the time of a snapshot.
type EdgeState struct {
	tree.Edge
	Visits      int
	Timer       time.Duration
	Active      bool
	ColorWeight float64
}

/*
Snapshot is a point-in-time copy of the statistics of a Tracker. Nodes
are indexed by their ID and edges are ordered by child ID.
*/
type Snapshot struct {
	Nodes []NodeState
	Edges []EdgeState
	// Records is the number of paths recorded since the tracker was created.
	Records uint64
}

// Node returns the state of the node with the given ID.
func (s *Snapshot) Node(id tree.NodeID) (NodeState, bool) {
	if id < 0 || int(id) >= len(s.Nodes) {
		return NodeState{}, false
	}
	return s.Nodes[id], true
}

// Edge returns the state of the given edge.
func (s *Snapshot) Edge(e tree.Edge) (EdgeState, bool) {
	for _, es := range s.Edges {
		if es.Edge == e {
			return es, true
		}
	}
	return EdgeState{}, false
}

// Active returns the number of active nodes and active edges.
func (s *Snapshot) Active() (nodes, edges int) {
	for _, ns := range s.Nodes {
		if ns.Active {
			nodes++
		}
	}
	for _, es := range s.Edges {
		if es.Active {
			edges++
		}
	}
	return
}

/*
Snapshot returns a consistent copy of the statistics of every node and
edge of the tree, along with the presentation state derived from them.
*/
func (t *Tracker) Snapshot() *Snapshot {
	t.lock.Lock()
	nodes := make([]counter, len(t.nodes))
	copy(nodes, t.nodes)
	edges := make([]counter, len(t.edges))
	copy(edges, t.edges)
	records := t.records
	t.lock.Unlock()

	s := &Snapshot{Nodes: make([]NodeState, len(nodes)), Records: records}
	for i, n := range t.tree.Nodes() {
		ns := NodeState{
			ID:          n.ID(),
			Parent:      n.Parent(),
			Text:        n.Text(),
			Kind:        tree.KindOf(n),
			Visits:      nodes[i].visits,
			Timer:       nodes[i].timer,
			Active:      nodes[i].active,
			ColorWeight: t.colorWeight(nodes[i].visits),
			ClassMix:    classMix(t.tree.LeafClasses(n.ID())),
		}
		if l, ok := n.(*tree.Leaf); ok {
			ns.Class = l.Class
		}
		s.Nodes[i] = ns
	}
	for _, e := range t.tree.Edges() {
		c := edges[e.Child]
		s.Edges = append(s.Edges, EdgeState{
			Edge:        e,
			Visits:      c.visits,
			Timer:       c.timer,
			Active:      c.active,
			ColorWeight: t.colorWeight(c.visits),
		})
	}
	return s
}

func (t *Tracker) colorWeight(visits int) float64 {
	w := float64(visits) / float64(t.maxVisits)
	if w > 1 {
		return 1
	}
	return w
}

func classMix(cc dataset.ClassCounts) ClassMix {
	total := cc.Total()
	if total == 0 {
		return ClassMix{}
	}
	return ClassMix{
		Benign: 100 * float64(cc.Benign) / float64(total),
		DDoS:   100 * float64(cc.DDoS) / float64(total),
	}
}
