package visit

import (
	"context"
	"fmt"
	"time"
)

/*
Decay takes a context and a tick duration and advances the timers of the
tracker by the time elapsed between ticks until the context is done, when
it returns the context's error.
*/
func (t *Tracker) Decay(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		return fmt.Errorf("non-positive decay tick %v", tick)
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			t.AdvanceTime(now.Sub(last))
			last = now
		}
	}
}

/*
Refresh takes a context, an interval and a render function and calls the
function with a new snapshot of the tracker every interval until the
context is done, when it returns the context's error.
*/
func (t *Tracker) Refresh(ctx context.Context, interval time.Duration, render func(*Snapshot)) error {
	if interval <= 0 {
		return fmt.Errorf("non-positive refresh interval %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := ctx.Err(); err != nil {
				return err
			}
			render(t.Snapshot())
		}
	}
}
