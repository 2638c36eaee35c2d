package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// QueueError represents an error related with queues
type QueueError string

// ErrQueueStopped is returned by operations on a stopped queue.
const ErrQueueStopped = QueueError("queue stopped")

func (qe QueueError) Error() string {
	return string(qe)
}

// Queue represents a queue where batches of records
// can be pushed and pulled. The idea is a worker will
// use the Pull method to obtain a batch. It will start
// classifying its records and will then either complete
// it or drop it halfway.
//
// All its methods have a context.Context as first
// parameter that implementations may use to allow
// timeouts and cancellations on the Queue operations.
type Queue interface {
	// Push takes a batch and stores it in the queue or
	// returns an error. The batch will count as pending.
	Push(context.Context, *Batch) error
	// Pull returns a batch and a context that may have
	// a timeout or allow its cancellation, or an error.
	// The pulled batch will be counted as running from
	// then on.
	// If there are no batches to pull, implementations
	// should not return an error, but 3 nil values.
	// In case of cancellation, workers should still
	// drop the batch.
	Pull(context.Context) (*Batch, context.Context, error)
	// Drop takes the ID for a batch an makes it available
	// for pulling from the Queue again. The dropped batch
	// should be count by implementations as pending
	// again, unless it has been previously completed,
	// and be pulled again before any batch pushed after it.
	// Workers should use this to return to the queue
	// batches they have not completed.
	Drop(context.Context, string) error
	// Complete takes the ID for a batch. Implementations
	// should remove the batch from the running state.
	Complete(context.Context, string) error
	// Count returns the number of
	// pending and running batches in the queue
	// or an error
	Count(context.Context) (int, int, error)
	// Stops the queue. Implementations should use the
	// call to free resources and even cancel pulled
	// contexts. Afterwards pushes and pulls fail with
	// ErrQueueStopped.
	Stop(context.Context) error
}

type memQueue struct {
	pendingBatches []*Batch
	head           int
	tail           int
	pending        int
	runningBatches map[string]*Batch
	// push order of every batch not yet completed
	seqs      map[string]uint64
	seq       uint64
	stopped   bool
	lock      *sync.RWMutex
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// New returns a queue backed only by the process memory
func New() Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &memQueue{
		runningBatches: make(map[string]*Batch),
		seqs:           make(map[string]uint64),
		lock:           &sync.RWMutex{},
		ctx:            ctx,
		ctxCancel:      cancel,
	}
}

// WaitFor takes a context, a queue and a polling
// interval and waits for all its batches to have been
// processed, that is, for the given queue's Count
// method to return 0, 0, nil.
// It will return a non-nil error if the given context
// times out or is cancelled, or if the queue's Count
// operation returns an error.
func WaitFor(ctx context.Context, q Queue, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		pending, running, err := q.Count(ctx)
		if err != nil {
			return err
		}
		if pending+running == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (mq *memQueue) Push(ctx context.Context, b *Batch) error {
	return mq.withLock(ctx, func(ctx context.Context) error {
		if mq.stopped {
			return ErrQueueStopped
		}
		mq.seq++
		mq.seqs[b.ID] = mq.seq
		mq.push(b)
		return nil
	})
}

func (mq *memQueue) Pull(ctx context.Context) (*Batch, context.Context, error) {
	var batch *Batch
	err := mq.withLock(ctx, func(ctx context.Context) error {
		if mq.stopped {
			return ErrQueueStopped
		}
		if mq.pending == 0 {
			return nil
		}
		mq.pending--
		batch = mq.pendingBatches[mq.head]
		mq.pendingBatches[mq.head] = nil
		mq.head = (mq.head + 1) % len(mq.pendingBatches)
		mq.runningBatches[batch.ID] = batch
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if batch == nil {
		return nil, nil, nil
	}
	return batch, mq.ctx, nil
}

func (mq *memQueue) Drop(ctx context.Context, id string) error {
	return mq.withLock(ctx, func(ctx context.Context) error {
		b, ok := mq.runningBatches[id]
		if !ok {
			return nil
		}
		delete(mq.runningBatches, id)
		mq.requeue(b)
		return nil
	})
}

func (mq *memQueue) Complete(ctx context.Context, id string) error {
	return mq.withLock(ctx, func(ctx context.Context) error {
		if _, ok := mq.runningBatches[id]; ok {
			delete(mq.runningBatches, id)
			delete(mq.seqs, id)
		}
		return nil
	})
}

func (mq *memQueue) Count(ctx context.Context) (int, int, error) {
	var pending, running int
	err := mq.withRLock(ctx, func(ctx context.Context) error {
		pending = mq.pending
		running = len(mq.runningBatches)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return pending, running, nil
}

func (mq *memQueue) Stop(ctx context.Context) error {
	return mq.withLock(ctx, func(ctx context.Context) error {
		mq.stopped = true
		mq.ctxCancel()
		return nil
	})
}

func (mq *memQueue) String() string {
	return fmt.Sprintf("{Queue pending: %d (%v head:%d tail:%d)", mq.pending, mq.pendingBatches, mq.head, mq.tail)
}

func (mq *memQueue) push(b *Batch) {
	if mq.pending == len(mq.pendingBatches) {
		mq.reorder()
		mq.pendingBatches = append(mq.pendingBatches, b)
		mq.tail = 0
	} else {
		mq.pendingBatches[mq.tail] = b
		mq.tail = (mq.tail + 1) % len(mq.pendingBatches)
	}
	mq.pending++
}

// requeue puts a dropped batch back among the pending ones at the
// position given by its push order. The ring buffer is left full and
// starting at 0.
func (mq *memQueue) requeue(b *Batch) {
	pending := make([]*Batch, 0, mq.pending+1)
	for i := 0; i < mq.pending; i++ {
		pending = append(pending, mq.pendingBatches[(mq.head+i)%len(mq.pendingBatches)])
	}
	seq := mq.seqs[b.ID]
	i := sort.Search(len(pending), func(i int) bool {
		return mq.seqs[pending[i].ID] > seq
	})
	pending = append(pending, nil)
	copy(pending[i+1:], pending[i:])
	pending[i] = b
	mq.pendingBatches = pending
	mq.head = 0
	mq.tail = 0
	mq.pending = len(pending)
}

// reorder moves the pending batches to the start of the ring buffer,
// which must be full, so the next batch can be appended at its end.
func (mq *memQueue) reorder() {
	if mq.head == 0 {
		return
	}
	mq.pendingBatches = append(mq.pendingBatches[mq.head:], mq.pendingBatches[0:mq.head]...)
	mq.head = 0
}

func (mq *memQueue) withLock(ctx context.Context, f func(ctx context.Context) error) error {
	gotLock := make(chan struct{})
	go func() {
		mq.lock.Lock()
		select {
		case <-ctx.Done():
			mq.lock.Unlock()
		case gotLock <- struct{}{}:
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-gotLock:
		defer mq.lock.Unlock()
	}
	return f(ctx)
}

func (mq *memQueue) withRLock(ctx context.Context, f func(ctx context.Context) error) error {
	gotLock := make(chan struct{})
	go func() {
		mq.lock.RLock()
		select {
		case <-ctx.Done():
			mq.lock.RUnlock()
		case gotLock <- struct{}{}:
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-gotLock:
		defer mq.lock.RUnlock()
	}
	return f(ctx)
}
