package visit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pbanos/flowtree/dataset"
	"github.com/pbanos/flowtree/feature"
	"github.com/pbanos/flowtree/tree"
)

// testTree returns
//
//	[0] proto == 6
//	|__[1] Class: benign
//	|__[2] pkts <= 100.00
//	   |__[3] Class: benign
//	   |__[4] Class: ddos
func testTree(t *testing.T) *tree.Tree {
	tr, err := tree.New(feature.NewDiscreteFeature("class", nil), &tree.Draft{
		Criterion: feature.NewDiscreteCriterion(feature.NewDiscreteFeature("proto", nil), "6"),
		Left:      &tree.Draft{Class: dataset.Benign},
		Right: &tree.Draft{
			Criterion: feature.NewContinuousCriterion(feature.NewContinuousFeature("pkts"), 100),
			Left:      &tree.Draft{Class: dataset.Benign},
			Right:     &tree.Draft{Class: dataset.DDoS},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func newTracker(t *testing.T) *Tracker {
	tracker, err := New(testTree(t), Options{DecayThreshold: 10 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	return tracker
}

func checkConsistent(t *testing.T, s *Snapshot) {
	t.Helper()
	if err := consistencyError(s); err != nil {
		t.Fatal(err)
	}
}

func consistencyError(s *Snapshot) error {
	for _, ns := range s.Nodes {
		if (ns.Visits > 0) != ns.Active || (!ns.Active && ns.Timer != 0) {
			return fmt.Errorf("inconsistent node state %+v", ns)
		}
	}
	for _, es := range s.Edges {
		if (es.Visits > 0) != es.Active || (!es.Active && es.Timer != 0) {
			return fmt.Errorf("inconsistent edge state %+v", es)
		}
	}
	return nil
}

func TestTracker_RecordPathTwice(t *testing.T) {
	tracker := newTracker(t)
	p := tree.Path{Nodes: []tree.NodeID{0, 2, 4}, Complete: true}
	if err := tracker.RecordPath(p); err != nil {
		t.Fatal(err)
	}
	tracker.AdvanceTime(3 * time.Second)
	if err := tracker.RecordPath(p); err != nil {
		t.Fatal(err)
	}
	s := tracker.Snapshot()
	checkConsistent(t, s)
	for _, id := range p.Nodes {
		ns, _ := s.Node(id)
		if ns.Visits != 2 || !ns.Active || ns.Timer != 0 {
			t.Errorf("node %d: expected 2 visits and a reset timer, got %+v", id, ns)
		}
	}
	for _, e := range p.Edges() {
		es, ok := s.Edge(e)
		if !ok || es.Visits != 2 || !es.Active || es.Timer != 0 {
			t.Errorf("edge %v: expected 2 visits and a reset timer, got %+v", e, es)
		}
	}
	for _, id := range []tree.NodeID{1, 3} {
		if ns, _ := s.Node(id); ns.Visits != 0 || ns.Active {
			t.Errorf("node %d: expected no visits, got %+v", id, ns)
		}
	}
	if s.Records != 2 {
		t.Errorf("expected 2 records, got %d", s.Records)
	}
}

func TestTracker_AdvanceTime(t *testing.T) {
	tracker := newTracker(t)
	tracker.RecordPath(tree.Path{Nodes: []tree.NodeID{0, 1}, Complete: true})
	tracker.AdvanceTime(4 * time.Second)
	tracker.RecordPath(tree.Path{Nodes: []tree.NodeID{0, 2, 3}, Complete: true})
	tracker.AdvanceTime(4 * time.Second)

	s := tracker.Snapshot()
	checkConsistent(t, s)
	if ns, _ := s.Node(1); ns.Visits != 1 || ns.Timer != 8*time.Second {
		t.Errorf("node 1: expected 1 visit and 8s, got %+v", ns)
	}
	if ns, _ := s.Node(0); ns.Visits != 2 || ns.Timer != 4*time.Second {
		t.Errorf("node 0: expected 2 visits and 4s, got %+v", ns)
	}

	tracker.AdvanceTime(2 * time.Second)
	s = tracker.Snapshot()
	checkConsistent(t, s)
	if ns, _ := s.Node(1); ns.Visits != 0 || ns.Active {
		t.Errorf("node 1: expected a reset at the threshold, got %+v", ns)
	}
	if es, _ := s.Edge(tree.Edge{Parent: 0, Child: 1}); es.Visits != 0 || es.Active {
		t.Errorf("edge 0->1: expected a reset at the threshold, got %+v", es)
	}
	if ns, _ := s.Node(3); ns.Visits != 1 || ns.Timer != 6*time.Second {
		t.Errorf("node 3: expected 1 visit and 6s, got %+v", ns)
	}

	tracker.AdvanceTime(time.Minute)
	s = tracker.Snapshot()
	checkConsistent(t, s)
	if nodes, edges := s.Active(); nodes != 0 || edges != 0 {
		t.Errorf("expected every entity to be reset, got %d nodes and %d edges active", nodes, edges)
	}

	tracker.RecordPath(tree.Path{Nodes: []tree.NodeID{0}})
	if ns, _ := tracker.Snapshot().Node(0); ns.Visits != 1 || ns.Timer != 0 {
		t.Errorf("node 0: expected a fresh visit after a reset, got %+v", ns)
	}
}

func TestTracker_RecordPartialPath(t *testing.T) {
	tracker := newTracker(t)
	if err := tracker.RecordPath(tree.Path{Nodes: []tree.NodeID{0, 2}}); err != nil {
		t.Fatal(err)
	}
	s := tracker.Snapshot()
	if nodes, edges := s.Active(); nodes != 2 || edges != 1 {
		t.Errorf("expected 2 active nodes and 1 active edge, got %d and %d", nodes, edges)
	}
}

func TestTracker_RecordInvalidPath(t *testing.T) {
	tracker := newTracker(t)
	for _, p := range []tree.Path{
		{Nodes: []tree.NodeID{1}},
		{Nodes: []tree.NodeID{0, 3}},
		{Nodes: []tree.NodeID{0, 2, 9}},
		{Nodes: []tree.NodeID{0, 1, 2}},
	} {
		if err := tracker.RecordPath(p); err == nil {
			t.Errorf("expected an error for path %v", p.Nodes)
		}
	}
	s := tracker.Snapshot()
	if nodes, edges := s.Active(); nodes != 0 || edges != 0 || s.Records != 0 {
		t.Errorf("expected invalid paths to leave no trace, got %d nodes, %d edges and %d records", nodes, edges, s.Records)
	}
}

func TestTracker_RecordEmptyPath(t *testing.T) {
	tracker := newTracker(t)
	if err := tracker.RecordPath(tree.Path{}); err != nil {
		t.Fatalf("recording an empty path: %v", err)
	}
	s := tracker.Snapshot()
	if nodes, edges := s.Active(); nodes != 0 || edges != 0 || s.Records != 0 {
		t.Errorf("expected an empty path to leave no trace, got %d nodes, %d edges and %d records", nodes, edges, s.Records)
	}
}

func TestTracker_PresentationState(t *testing.T) {
	tracker := newTracker(t)
	p := tree.Path{Nodes: []tree.NodeID{0, 2, 4}, Complete: true}
	for i := 0; i < 4; i++ {
		tracker.RecordPath(p)
	}
	s := tracker.Snapshot()
	if ns, _ := s.Node(4); ns.ColorWeight != 0.4 || ns.Text != "Class: ddos" || ns.Kind != tree.KindLeaf || ns.Class != dataset.DDoS {
		t.Errorf("node 4: unexpected state %+v", ns)
	}
	for i := 0; i < 20; i++ {
		tracker.RecordPath(p)
	}
	s = tracker.Snapshot()
	if ns, _ := s.Node(4); ns.ColorWeight != 1 {
		t.Errorf("node 4: expected a saturated color weight, got %v", ns.ColorWeight)
	}
	root, _ := s.Node(0)
	if root.Kind != tree.KindDecision || root.Text != "proto == 6" {
		t.Errorf("root: unexpected state %+v", root)
	}
	if mix := root.ClassMix; mix.Benign < 66.6 || mix.Benign > 66.7 || mix.DDoS < 33.3 || mix.DDoS > 33.4 {
		t.Errorf("root: unexpected class mix %+v", mix)
	}
	if ns, _ := s.Node(2); ns.ClassMix != (ClassMix{Benign: 50, DDoS: 50}) {
		t.Errorf("node 2: unexpected class mix %+v", ns.ClassMix)
	}
}

func TestNew_Options(t *testing.T) {
	tr := testTree(t)
	if _, err := New(tr, Options{DecayThreshold: -time.Second}); err == nil {
		t.Error("expected an error for a negative decay threshold")
	}
	if _, err := New(nil, Options{}); err == nil {
		t.Error("expected an error for a nil tree")
	}
	tracker, err := New(tr, Options{})
	if err != nil {
		t.Fatal(err)
	}
	tracker.RecordPath(tree.Path{Nodes: []tree.NodeID{0}})
	tracker.AdvanceTime(DefaultDecayThreshold - time.Millisecond)
	if ns, _ := tracker.Snapshot().Node(0); !ns.Active || ns.ColorWeight != 1.0/DefaultMaxVisits {
		t.Errorf("unexpected state with default options %+v", ns)
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tracker := newTracker(t)
	paths := []tree.Path{
		{Nodes: []tree.NodeID{0, 1}, Complete: true},
		{Nodes: []tree.NodeID{0, 2, 3}, Complete: true},
		{Nodes: []tree.NodeID{0, 2, 4}, Complete: true},
		{Nodes: []tree.NodeID{0, 2}},
	}
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				tracker.RecordPath(paths[(w+i)%len(paths)])
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			tracker.AdvanceTime(time.Second)
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if err := consistencyError(tracker.Snapshot()); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	wg.Wait()
	s := tracker.Snapshot()
	checkConsistent(t, s)
	if s.Records != 2000 {
		t.Errorf("expected 2000 records, got %d", s.Records)
	}
}

func TestTracker_Decay(t *testing.T) {
	tracker, err := New(testTree(t), Options{DecayThreshold: 20 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	tracker.RecordPath(tree.Path{Nodes: []tree.NodeID{0, 1}, Complete: true})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err = tracker.Decay(ctx, 5*time.Millisecond); err != context.DeadlineExceeded {
		t.Errorf("expected the deadline error, got %v", err)
	}
	if nodes, _ := tracker.Snapshot().Active(); nodes != 0 {
		t.Errorf("expected visits to decay, got %d active nodes", nodes)
	}
}

func TestTracker_Refresh(t *testing.T) {
	tracker := newTracker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var renders int
	err := tracker.Refresh(ctx, time.Millisecond, func(s *Snapshot) {
		renders++
		if len(s.Nodes) != 5 || len(s.Edges) != 4 {
			t.Errorf("unexpected snapshot with %d nodes and %d edges", len(s.Nodes), len(s.Edges))
		}
		if renders == 3 {
			cancel()
		}
	})
	if err != context.Canceled || renders != 3 {
		t.Errorf("expected 3 renders and a cancellation, got %d and %v", renders, err)
	}
}

func TestCollector(t *testing.T) {
	tracker := newTracker(t)
	tracker.RecordPath(tree.Path{Nodes: []tree.NodeID{0, 2, 4}, Complete: true})
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(tracker)); err != nil {
		t.Fatal(err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	counts := make(map[string]int)
	values := make(map[string]float64)
	for _, mf := range families {
		counts[mf.GetName()] = len(mf.GetMetric())
		for _, m := range mf.GetMetric() {
			if m.GetGauge() != nil {
				values[mf.GetName()] += m.GetGauge().GetValue()
			}
		}
	}
	if counts["flowtree_node_visits"] != 5 || counts["flowtree_edge_visits"] != 4 || counts["flowtree_recorded_paths_total"] != 1 {
		t.Errorf("unexpected metric counts %v", counts)
	}
	if values["flowtree_node_visits"] != 3 || values["flowtree_edge_visits"] != 2 || values["flowtree_active_nodes"] != 3 {
		t.Errorf("unexpected metric values %v", values)
	}
}
