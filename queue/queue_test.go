package queue

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func batch(i int) *Batch {
	return &Batch{ID: fmt.Sprintf("b%d", i), Source: "test", Lines: []string{fmt.Sprintf("line %d", i)}}
}

func TestMemQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q := New()
	var pulled []string
	// interleave pushes and pulls so the ring buffer wraps around
	for i := 0; i < 10; i++ {
		if err := q.Push(ctx, batch(i)); err != nil {
			t.Fatal(err)
		}
		if i%3 == 2 {
			b, _, err := q.Pull(ctx)
			if err != nil {
				t.Fatal(err)
			}
			pulled = append(pulled, b.ID)
			q.Complete(ctx, b.ID)
		}
	}
	for {
		b, _, err := q.Pull(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if b == nil {
			break
		}
		pulled = append(pulled, b.ID)
		q.Complete(ctx, b.ID)
	}
	if len(pulled) != 10 {
		t.Fatalf("expected 10 batches, got %v", pulled)
	}
	for i, id := range pulled {
		if id != fmt.Sprintf("b%d", i) {
			t.Fatalf("expected batches in push order, got %v", pulled)
		}
	}
}

func TestMemQueue_DropAndCount(t *testing.T) {
	ctx := context.Background()
	q := New()
	q.Push(ctx, batch(1))
	q.Push(ctx, batch(2))
	b, bctx, err := q.Pull(ctx)
	if err != nil || b == nil || bctx == nil {
		t.Fatalf("expected a batch, got %v, %v", b, err)
	}
	pending, running, _ := q.Count(ctx)
	if pending != 1 || running != 1 {
		t.Errorf("expected 1 pending and 1 running, got %d and %d", pending, running)
	}
	if err = q.Drop(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	pending, running, _ = q.Count(ctx)
	if pending != 2 || running != 0 {
		t.Errorf("expected 2 pending after drop, got %d and %d", pending, running)
	}
	b1, _, _ := q.Pull(ctx)
	b2, _, _ := q.Pull(ctx)
	if b1.ID != "b1" || b2.ID != "b2" {
		t.Errorf("expected the dropped batch first, got %s then %s", b1.ID, b2.ID)
	}
	q.Complete(ctx, b2.ID)
	q.Complete(ctx, b1.ID)
	if err = WaitFor(ctx, q, time.Millisecond); err != nil {
		t.Errorf("expected an empty queue, got %v", err)
	}
}

func pullAll(ctx context.Context, t *testing.T, q Queue) []string {
	var ids []string
	for {
		b, _, err := q.Pull(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if b == nil {
			return ids
		}
		ids = append(ids, b.ID)
		q.Complete(ctx, b.ID)
	}
}

func TestMemQueue_FIFOAfterDrop(t *testing.T) {
	testCases := []struct {
		name    string
		pull    int
		drop    []int
		pushed  int
		pending []string
	}{
		{"drop the only running batch", 1, []int{0}, 3, []string{"b0", "b1", "b2"}},
		{"drop in reverse order", 2, []int{1, 0}, 3, []string{"b0", "b1", "b2"}},
		{"drop the later batch only", 2, []int{1}, 4, []string{"b1", "b2", "b3"}},
		{"drop several of many batches", 3, []int{2, 1}, 5, []string{"b1", "b2", "b3", "b4"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			q := New()
			for i := 0; i < tc.pushed; i++ {
				if err := q.Push(ctx, batch(i)); err != nil {
					t.Fatal(err)
				}
			}
			var running []*Batch
			for i := 0; i < tc.pull; i++ {
				b, _, err := q.Pull(ctx)
				if err != nil || b == nil {
					t.Fatalf("expected a batch, got %v, %v", b, err)
				}
				running = append(running, b)
			}
			dropped := make(map[int]bool)
			for _, i := range tc.drop {
				dropped[i] = true
				if err := q.Drop(ctx, running[i].ID); err != nil {
					t.Fatal(err)
				}
			}
			for i, b := range running {
				if !dropped[i] {
					q.Complete(ctx, b.ID)
				}
			}
			got := pullAll(ctx, t, q)
			if fmt.Sprint(got) != fmt.Sprint(tc.pending) {
				t.Errorf("expected batches %v, got %v", tc.pending, got)
			}
		})
	}
}

func TestMemQueue_PushAfterDrop(t *testing.T) {
	ctx := context.Background()
	q := New()
	q.Push(ctx, batch(0))
	q.Push(ctx, batch(1))
	b, _, _ := q.Pull(ctx)
	q.Drop(ctx, b.ID)
	q.Push(ctx, batch(2))
	got := pullAll(ctx, t, q)
	if fmt.Sprint(got) != "[b0 b1 b2]" {
		t.Errorf("expected batches [b0 b1 b2], got %v", got)
	}
}

func TestMemQueue_Stop(t *testing.T) {
	ctx := context.Background()
	q := New()
	q.Push(ctx, batch(1))
	_, bctx, _ := q.Pull(ctx)
	if err := q.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if bctx.Err() == nil {
		t.Error("expected pulled contexts to be cancelled")
	}
	if err := q.Push(ctx, batch(2)); err != ErrQueueStopped {
		t.Errorf("expected ErrQueueStopped on push, got %v", err)
	}
	if _, _, err := q.Pull(ctx); err != ErrQueueStopped {
		t.Errorf("expected ErrQueueStopped on pull, got %v", err)
	}
}

func TestWaitFor_Timeout(t *testing.T) {
	q := New()
	q.Push(context.Background(), batch(1))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := WaitFor(ctx, q, time.Millisecond); err == nil {
		t.Error("expected an error waiting for a queue with pending batches")
	}
}
