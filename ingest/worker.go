package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/pbanos/flowtree/dataset"
	dscsv "github.com/pbanos/flowtree/dataset/csv"
	"github.com/pbanos/flowtree/feature"
	"github.com/pbanos/flowtree/queue"
	"github.com/pbanos/flowtree/tree"
	"github.com/pbanos/flowtree/visit"
)

// DefaultPacing is the time between two records classified by a Worker.
const DefaultPacing = 500 * time.Millisecond

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

/*
Highlight describes the walk of a classified record through the tree,
for a renderer to highlight it.
*/
type Highlight struct {
	// Source is where the record was read from.
	Source string
	Line   string
	Sample dataset.Sample
	Path   tree.Path
	// Class is the class of the reached leaf, empty when the path is not
	// complete.
	Class dataset.Class
}

/*
Classify takes a tree, the schema of its records and a record line and
returns the Highlight for the line or an error if it cannot be parsed or
classified.
*/
func Classify(t *tree.Tree, schema *feature.Schema, line string) (Highlight, error) {
	h := Highlight{Line: line}
	s, err := dscsv.ParseRecord(line, schema)
	if err != nil {
		return h, err
	}
	h.Sample = s
	h.Path, err = t.Classify(s)
	if err != nil {
		return h, err
	}
	if id, ok := h.Path.Leaf(); ok {
		h.Class = t.Node(id).(*tree.Leaf).Class
	}
	return h, nil
}

/*
Worker pulls record batches from a queue and classifies their records in
order, recording every path on a visit tracker.
*/
type Worker struct {
	Tracker *visit.Tracker
	Schema  *feature.Schema
	Queue   queue.Queue
	// Pacing is the minimum time between two classified records. 0
	// disables pacing.
	Pacing time.Duration
	// PollInterval is the time to wait for new batches when the queue
	// is empty. DefaultPollInterval when 0.
	PollInterval time.Duration
	// Highlights receives a Highlight per classified record. Events are
	// dropped when it is full, so classification never waits on the
	// receiver. It may be nil.
	Highlights chan<- Highlight
	Logger     *slog.Logger
	Metrics    *Metrics
}

/*
Run pulls and processes batches until the context is done or the queue
is stopped. Batches interrupted halfway are dropped back onto the queue.
It returns the context's error, nil when the queue was stopped, or the
error of a failing queue operation.
*/
func (w *Worker) Run(ctx context.Context) error {
	if w.Tracker == nil || w.Schema == nil || w.Queue == nil {
		return fmt.Errorf("running worker: missing tracker, schema or queue")
	}
	var limiter *rate.Limiter
	if w.Pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(w.Pacing), 1)
	}
	interval := w.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	for {
		b, bctx, err := w.Queue.Pull(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, queue.ErrQueueStopped) {
				return nil
			}
			return fmt.Errorf("pulling batch: %v", err)
		}
		if b == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
			continue
		}
		err = w.process(ctx, bctx, b, limiter)
		switch {
		case err == nil:
			w.Metrics.batch("completed")
		case interrupted(ctx, bctx):
			w.logger().Info("dropping batch", "batch", b.ID, "error", err)
			w.Metrics.batch("dropped")
			if derr := w.Queue.Drop(context.WithoutCancel(ctx), b.ID); derr != nil {
				w.logger().Error("dropping batch", "batch", b.ID, "error", derr)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		default:
			w.logger().Error("discarding batch", "batch", b.ID, "error", err)
			w.Metrics.batch("failed")
		}
		if err = w.Queue.Complete(context.WithoutCancel(ctx), b.ID); err != nil {
			return fmt.Errorf("completing batch %s: %v", b.ID, err)
		}
	}
}

func (w *Worker) process(ctx, bctx context.Context, b *queue.Batch, limiter *rate.Limiter) error {
	logger := w.logger().With("batch", b.ID, "source", b.Source)
	logger.Debug("processing batch", "records", len(b.Lines))
	t := w.Tracker.Tree()
	for i, line := range b.Lines {
		if err := ctx.Err(); err != nil {
			return err
		}
		if bctx != nil {
			if err := bctx.Err(); err != nil {
				return err
			}
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		h, err := Classify(t, w.Schema, line)
		if err != nil {
			logger.Warn("skipping record", "line", i+1, "error", err)
			w.Metrics.record(OutcomeInvalid)
			continue
		}
		h.Source = b.Source
		if err = w.Tracker.RecordPath(h.Path); err != nil {
			return fmt.Errorf("recording path of line %d: %v", i+1, err)
		}
		outcome := OutcomePartial
		if h.Class != "" {
			outcome = string(h.Class)
		}
		w.Metrics.record(outcome)
		logger.Debug("classified record", "line", i+1, "nodes", len(h.Path.Nodes), "outcome", outcome)
		w.emit(h)
	}
	return nil
}

func interrupted(ctx, bctx context.Context) bool {
	return ctx.Err() != nil || (bctx != nil && bctx.Err() != nil)
}

func (w *Worker) emit(h Highlight) {
	if w.Highlights == nil {
		return
	}
	select {
	case w.Highlights <- h:
	default:
		w.Metrics.highlightDropped()
	}
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger == nil {
		return discardLogger
	}
	return w.Logger
}
