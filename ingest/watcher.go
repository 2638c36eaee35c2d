package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pbanos/flowtree/queue"
)

const (
	// DefaultPattern matches the record files written by the flow logger.
	DefaultPattern = "*.data"
	// DefaultPollInterval is the time between directory scans.
	DefaultPollInterval = time.Second
)

/*
Watcher polls a directory for record files and pushes every new or
modified one as a batch onto a queue. Files already present when it
starts are processed on its first scan.
*/
type Watcher struct {
	// Dir is the directory to watch.
	Dir string
	// Pattern is the glob files must match. DefaultPattern when empty.
	Pattern string
	// PollInterval is the time between scans. DefaultPollInterval when 0.
	PollInterval time.Duration
	// SettleDelay is the time a file must go unmodified before it is
	// read, so files still being written are not read halfway.
	SettleDelay time.Duration
	Queue       queue.Queue
	Logger      *slog.Logger
	Metrics     *Metrics

	processed map[string]time.Time
	now       func() time.Time
}

/*
Run scans the directory every poll interval until the context is done.
It returns the context's error, or the error from pushing a batch onto
the queue. Errors reading a single file are logged and the file is
retried on the next scan.
*/
func (w *Watcher) Run(ctx context.Context) error {
	interval := w.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := w.Scan(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

/*
Scan looks once for files to process in the directory, in name order,
and pushes a batch for each of them. It returns the number of pushed
batches or an error if the directory cannot be listed or a batch cannot
be pushed.
*/
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	if w.processed == nil {
		w.processed = make(map[string]time.Time)
	}
	pattern := w.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	paths, err := filepath.Glob(filepath.Join(w.Dir, pattern))
	if err != nil {
		return 0, fmt.Errorf("listing %s: %v", w.Dir, err)
	}
	sort.Strings(paths)
	pushed := 0
	for _, path := range paths {
		if err = ctx.Err(); err != nil {
			return pushed, err
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		modTime := info.ModTime()
		if last, ok := w.processed[path]; ok && last.Equal(modTime) {
			continue
		}
		if w.clock().Sub(modTime) < w.SettleDelay {
			continue
		}
		b, err := readBatch(path, modTime)
		if err != nil {
			w.logger().Warn("skipping record file", "path", path, "error", err)
			continue
		}
		w.processed[path] = modTime
		w.Metrics.fileRead()
		if len(b.Lines) == 0 {
			w.logger().Debug("empty record file", "path", path)
			continue
		}
		if err = w.Queue.Push(ctx, b); err != nil {
			return pushed, fmt.Errorf("queueing %s: %v", path, err)
		}
		pushed++
		w.logger().Info("queued record file", "path", path, "records", len(b.Lines))
	}
	return pushed, nil
}

func readBatch(path string, modTime time.Time) (*queue.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	lines, err := readLines(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %v", path, err)
	}
	return &queue.Batch{
		ID:     fmt.Sprintf("%s@%d", filepath.Base(path), modTime.UnixNano()),
		Source: path,
		Lines:  lines,
	}, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

func (w *Watcher) clock() time.Time {
	if w.now == nil {
		return time.Now()
	}
	return w.now()
}

func (w *Watcher) logger() *slog.Logger {
	if w.Logger == nil {
		return discardLogger
	}
	return w.Logger
}
