package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pbanos/flowtree/dataset"
	dscsv "github.com/pbanos/flowtree/dataset/csv"
	"github.com/pbanos/flowtree/feature"
)

const (
	// DefaultGeneratorInterval is the time between two generated files.
	DefaultGeneratorInterval = 10 * time.Second
	// MinGeneratedRecords and MaxGeneratedRecords bound the number of
	// records of a generated file.
	MinGeneratedRecords = 10
	MaxGeneratedRecords = 20
)

/*
Generator writes record files with random samples of a labeled dataset,
with the label left out, into a directory.
*/
type Generator struct {
	Dir     string
	Samples []dataset.Sample
	// Features are the columns written for every sample, in order.
	Features []feature.Feature
	// Interval is the time between two files.
	// DefaultGeneratorInterval when 0.
	Interval time.Duration
	Rand     *rand.Rand
	Logger   *slog.Logger
}

/*
Run writes a file every interval until the context is done, and returns
the context's error or the error writing a file.
*/
func (g *Generator) Run(ctx context.Context) error {
	interval := g.Interval
	if interval <= 0 {
		interval = DefaultGeneratorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := g.Generate(time.Now()); err != nil {
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
Generate writes a file named after the given time with between
MinGeneratedRecords and MaxGeneratedRecords random samples and returns
its path or an error. The file is written under a temporary name and
renamed when complete, so watchers never see it halfway written.
*/
func (g *Generator) Generate(now time.Time) (string, error) {
	if len(g.Samples) == 0 {
		return "", dataset.ErrEmptyDataset
	}
	if g.Rand == nil {
		g.Rand = rand.New(rand.NewSource(now.UnixNano()))
	}
	n := MinGeneratedRecords + g.Rand.Intn(MaxGeneratedRecords-MinGeneratedRecords+1)
	var b strings.Builder
	for i := 0; i < n; i++ {
		line, err := dscsv.FormatRecord(g.Samples[g.Rand.Intn(len(g.Samples))], g.Features)
		if err != nil {
			return "", fmt.Errorf("generating record: %v", err)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	path := filepath.Join(g.Dir, fmt.Sprintf("log_%s.data", now.Format("20060102_150405.000000000")))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %v", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("renaming %s: %v", tmp, err)
	}
	if g.Logger != nil {
		g.Logger.Info("generated record file", "path", path, "records", n)
	}
	return path, nil
}
