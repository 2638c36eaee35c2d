package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	redis "gopkg.in/redis.v5"

	"github.com/pbanos/flowtree/config"
	"github.com/pbanos/flowtree/dataset"
	"github.com/pbanos/flowtree/feature"
	"github.com/pbanos/flowtree/ingest"
	"github.com/pbanos/flowtree/queue"
	qjson "github.com/pbanos/flowtree/queue/json"
	"github.com/pbanos/flowtree/queue/redisq"
	"github.com/pbanos/flowtree/tree"
	"github.com/pbanos/flowtree/visit"
)

const (
	highlightBufferSize = 64
	batchMaxRun         = 5 * time.Minute
	batchLockTTL        = time.Second
)

type watchCmdConfig struct {
	*treeCmdConfig
	logsDir          string
	metricsAddr      string
	redisAddr        string
	pacing           time.Duration
	generate         bool
	generateInterval time.Duration
}

func watchCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &watchCmdConfig{treeCmdConfig: &treeCmdConfig{rootCmdConfig: rootConfig}}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Classify flow logs as they are written",
		Long:  `Grow a tree and classify the flow records of the log files written to a directory, keeping decaying visit statistics of the tree until interrupted`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := config.run(cmd); err != nil {
				exit(cmd, err)
			}
		},
	}
	config.addFlags(cmd)
	cmd.PersistentFlags().StringVarP(&(config.logsDir), "logs-dir", "d", "", "directory to watch for flow log (*.data) files (defaults to logs)")
	cmd.PersistentFlags().StringVar(&(config.metricsAddr), "metrics-addr", "", "address to serve prometheus metrics on, such as :9100 (defaults to none)")
	cmd.PersistentFlags().StringVar(&(config.redisAddr), "redis-addr", "", "address of a redis server to queue record batches on (defaults to process memory)")
	cmd.PersistentFlags().DurationVar(&(config.pacing), "pacing", 0, "minimum time between two classified records, 0 to disable (defaults to 500ms)")
	cmd.PersistentFlags().BoolVar(&(config.generate), "generate", false, "write synthetic flow logs from the training set into the logs directory")
	cmd.PersistentFlags().DurationVar(&(config.generateInterval), "generate-interval", ingest.DefaultGeneratorInterval, "time between two synthetic flow logs")
	return cmd
}

func (wcc *watchCmdConfig) Config(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := wcc.treeCmdConfig.Config(cmd)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("logs-dir") {
		cfg.LogsDir = wcc.logsDir
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = wcc.metricsAddr
	}
	if flags.Changed("redis-addr") {
		cfg.Redis.Addr = wcc.redisAddr
	}
	if flags.Changed("pacing") {
		cfg.RecordPacing = config.Duration(wcc.pacing)
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (wcc *watchCmdConfig) run(cmd *cobra.Command) error {
	logger, err := wcc.Logger()
	if err != nil {
		return stageError(1, err)
	}
	cfg, err := wcc.Config(cmd)
	if err != nil {
		return stageError(1, err)
	}
	if cfg.Training == "" {
		return stageError(1, fmt.Errorf("required input flag was not set"))
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	schema, ds, t, err := wcc.growTree(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("installed tree", "nodes", t.Len())
	logger.Debug("tree\n" + t.String())
	tracker, err := visit.New(t, visit.Options{
		DecayThreshold: cfg.DecayThreshold.Std(),
		MaxVisits:      cfg.MaxVisits,
		Logger:         logger,
	})
	if err != nil {
		return stageError(5, err)
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), visit.NewCollector(tracker))
	metrics, err := ingest.NewMetrics(reg)
	if err != nil {
		return stageError(5, err)
	}
	q := newQueue(cfg)
	defer q.Stop(context.Background())
	if err = os.MkdirAll(cfg.LogsDir, 0755); err != nil {
		return stageError(5, fmt.Errorf("creating logs directory: %v", err))
	}
	highlights := make(chan ingest.Highlight, highlightBufferSize)
	watcher := &ingest.Watcher{
		Dir:          cfg.LogsDir,
		PollInterval: cfg.PollInterval.Std(),
		SettleDelay:  cfg.SettleDelay.Std(),
		Queue:        q,
		Logger:       logger.With("component", "watcher"),
		Metrics:      metrics,
	}
	worker := &ingest.Worker{
		Tracker:      tracker,
		Schema:       schema,
		Queue:        q,
		Pacing:       cfg.RecordPacing.Std(),
		PollInterval: cfg.PollInterval.Std(),
		Highlights:   highlights,
		Logger:       logger.With("component", "worker"),
		Metrics:      metrics,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return tracker.Decay(gctx, cfg.DecayTick.Std()) })
	g.Go(func() error { return logHighlights(gctx, highlights, t, logger.With("component", "highlights")) })
	if cfg.SnapshotInterval > 0 {
		g.Go(func() error {
			return tracker.Refresh(gctx, cfg.SnapshotInterval.Std(), func(s *visit.Snapshot) {
				logSnapshot(logger.With("component", "snapshot"), s)
			})
		})
	}
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.MetricsAddr, reg, logger) })
	}
	if wcc.generate {
		gen, err := newGenerator(ctx, cfg, schema, ds, wcc.generateInterval, logger)
		if err != nil {
			return stageError(5, err)
		}
		g.Go(func() error { return gen.Run(gctx) })
	}
	logger.Info("watching for flow logs", "dir", cfg.LogsDir)
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return stageError(6, err)
	}
	logger.Info("stopped watching")
	return nil
}

func newQueue(cfg *config.Config) queue.Queue {
	if cfg.Redis.Addr == "" {
		return queue.New()
	}
	rc := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	return redisq.New(cfg.Redis.Prefix, rc, batchMaxRun, batchLockTTL, qjson.New(0))
}

func newGenerator(ctx context.Context, cfg *config.Config, schema *feature.Schema, ds dataset.Dataset, interval time.Duration, logger *slog.Logger) (*ingest.Generator, error) {
	samples, err := ds.Samples(ctx)
	if err != nil {
		return nil, err
	}
	return &ingest.Generator{
		Dir:      cfg.LogsDir,
		Samples:  samples,
		Features: schema.Inputs(),
		Interval: interval,
		Rand:     rand.New(rand.NewSource(cfg.Seed)),
		Logger:   logger.With("component", "generator"),
	}, nil
}

func logHighlights(ctx context.Context, highlights <-chan ingest.Highlight, t *tree.Tree, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case h := <-highlights:
			result := "undecided"
			if h.Class != "" {
				result = string(h.Class)
			}
			logger.Debug("record", "source", h.Source, "line", h.Line, "result", result, "path", describePath(t, h.Path))
		}
	}
}

func logSnapshot(logger *slog.Logger, s *visit.Snapshot) {
	nodes, edges := s.Active()
	attrs := []any{"records", s.Records, "activeNodes", nodes, "activeEdges", edges}
	for _, n := range s.Nodes {
		if n.Active && n.Kind == tree.KindLeaf {
			attrs = append(attrs, fmt.Sprintf("leaf%d", n.ID), fmt.Sprintf("%s x%d", n.Class, n.Visits))
		}
	}
	logger.Info("visit statistics", attrs...)
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errs := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", addr)
		errs <- srv.ListenAndServe()
	}()
	select {
	case err := <-errs:
		return fmt.Errorf("serving metrics: %v", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return ctx.Err()
	}
}
