/*
Package visit keeps decaying visit statistics for the nodes and edges of
a tree as classified records walk through it.

A Tracker is shared by three independent actors: the classification
path records every path with RecordPath, a decay driver advances the
timers of visited entities with AdvanceTime, and a renderer reads
consistent copies of the statistics with Snapshot. The three methods
are serialized by a single lock, so no reader ever observes a visit
count and its timer half updated.
*/
package visit

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pbanos/flowtree/tree"
)

const (
	// DefaultDecayThreshold is the time an entity stays active without
	// being visited again.
	DefaultDecayThreshold = 10 * time.Second
	// DefaultMaxVisits is the visit count at which the color weight of an
	// entity saturates.
	DefaultMaxVisits = 10
)

// Options holds the configuration of a Tracker.
type Options struct {
	// DecayThreshold is the time after which an entity that has not been
	// visited again is reset. DefaultDecayThreshold is used when 0.
	DecayThreshold time.Duration
	// MaxVisits is the visit count for a full ColorWeight.
	// DefaultMaxVisits is used when 0.
	MaxVisits int
	Logger    *slog.Logger
}

type counter struct {
	visits int
	timer  time.Duration
	active bool
}

func (c *counter) hit() {
	if !c.active {
		c.visits, c.timer, c.active = 1, 0, true
		return
	}
	c.visits++
	c.timer = 0
}

// advance returns whether the counter was reset.
func (c *counter) advance(d, threshold time.Duration) bool {
	if !c.active {
		return false
	}
	c.timer += d
	if c.timer >= threshold {
		*c = counter{}
		return true
	}
	return false
}

/*
Tracker holds the visit statistics of the nodes and edges of a tree.
Nodes and edges are indexed by node ID: as every node but the root has a
single parent, the edge leading to a node is indexed by its child.
*/
type Tracker struct {
	tree      *tree.Tree
	threshold time.Duration
	maxVisits int
	logger    *slog.Logger
	lock      sync.Mutex
	nodes     []counter
	edges     []counter
	records   uint64
}

/*
New takes a tree and options and returns a Tracker for the tree with
every node and edge inactive. An error is returned if the options hold
negative values.
*/
func New(t *tree.Tree, opts Options) (*Tracker, error) {
	if t == nil {
		return nil, tree.ErrEmptyTree
	}
	if opts.DecayThreshold < 0 {
		return nil, fmt.Errorf("negative decay threshold %v", opts.DecayThreshold)
	}
	if opts.MaxVisits < 0 {
		return nil, fmt.Errorf("negative max visits %d", opts.MaxVisits)
	}
	if opts.DecayThreshold == 0 {
		opts.DecayThreshold = DefaultDecayThreshold
	}
	if opts.MaxVisits == 0 {
		opts.MaxVisits = DefaultMaxVisits
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tracker{
		tree:      t,
		threshold: opts.DecayThreshold,
		maxVisits: opts.MaxVisits,
		logger:    logger,
		nodes:     make([]counter, t.Len()),
		edges:     make([]counter, t.Len()),
	}, nil
}

// Tree returns the tree whose visits are tracked.
func (t *Tracker) Tree() *tree.Tree {
	return t.tree
}

/*
RecordPath takes the path of a classified record and registers a visit
to every node and edge on it: inactive entities become active with a
single visit, active ones get one more visit and have their timer reset.
Partial paths are recorded up to the node where they stop, and an empty
path is not recorded at all. An error is returned, and nothing recorded,
if the path does not belong to the tree.
*/
func (t *Tracker) RecordPath(p tree.Path) error {
	if len(p.Nodes) == 0 {
		return nil
	}
	if p.Nodes[0] != tree.RootID {
		return fmt.Errorf("path starts at node %d instead of the root", p.Nodes[0])
	}
	for _, id := range p.Nodes {
		if t.tree.Node(id) == nil {
			return fmt.Errorf("path has unknown node %d", id)
		}
	}
	edges := p.Edges()
	for _, e := range edges {
		if !t.tree.HasEdge(e) {
			return fmt.Errorf("path has unknown edge %d->%d", e.Parent, e.Child)
		}
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	for _, id := range p.Nodes {
		t.nodes[id].hit()
	}
	for _, e := range edges {
		t.edges[e.Child].hit()
	}
	t.records++
	return nil
}

/*
AdvanceTime takes the time elapsed since the previous call and adds it to
the timer of every active node and edge. Entities whose timer reaches the
decay threshold are reset: they lose their visits and become inactive.
Non-positive durations are ignored.
*/
func (t *Tracker) AdvanceTime(d time.Duration) {
	if d <= 0 {
		return
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	var resets int
	for i := range t.nodes {
		if t.nodes[i].advance(d, t.threshold) {
			resets++
		}
		if t.edges[i].advance(d, t.threshold) {
			resets++
		}
	}
	if resets > 0 {
		t.logger.Debug("visits decayed", "entities", resets)
	}
}
