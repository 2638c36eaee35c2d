package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pbanos/flowtree"
	"github.com/pbanos/flowtree/config"
	"github.com/pbanos/flowtree/dataset"
	dscsv "github.com/pbanos/flowtree/dataset/csv"
	"github.com/pbanos/flowtree/dataset/mongodataset"
	"github.com/pbanos/flowtree/dataset/sqldataset"
	"github.com/pbanos/flowtree/feature"
	fyaml "github.com/pbanos/flowtree/feature/yaml"
	"github.com/pbanos/flowtree/tree"
)

// treeCmdConfig holds the settings shared by commands that grow a tree
// before using it.
type treeCmdConfig struct {
	*rootCmdConfig
	metadataInput      string
	dataInput          string
	table              string
	collection         string
	maxDepth           int
	minSamples         int
	tieBreak           string
	seed               int64
	cpuIntensiveSet    bool
	memoryIntensiveSet bool
}

func (tcc *treeCmdConfig) addFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&(tcc.metadataInput), "metadata", "m", "", "path to a YML file with metadata describing the features of the records and their label")
	cmd.PersistentFlags().StringVarP(&(tcc.dataInput), "input", "i", "", "path to an input CSV (.csv) or SQLite3 (.db) file, or a PostgreSQL or MongoDB connection URL with labeled records to grow the tree from (defaults to STDIN, interpreted as CSV)")
	cmd.PersistentFlags().StringVar(&(tcc.table), "table", "", "name of the table holding the records on SQL databases (defaults to samples)")
	cmd.PersistentFlags().StringVar(&(tcc.collection), "collection", "", "name of the collection holding the records on MongoDB databases (defaults to samples)")
	cmd.PersistentFlags().IntVar(&(tcc.maxDepth), "max-depth", 0, "depth at which nodes become leaves (defaults to 0: the number of features)")
	cmd.PersistentFlags().IntVar(&(tcc.minSamples), "min-samples", 1, "number of records at or under which a node becomes a leaf")
	cmd.PersistentFlags().StringVar(&(tcc.tieBreak), "tie-break", config.TieBreakRandom, "how to choose among equally good features: random or first")
	cmd.PersistentFlags().Int64Var(&(tcc.seed), "seed", 0, "seed for the random tie break (defaults to the current time)")
	cmd.PersistentFlags().BoolVar(&(tcc.memoryIntensiveSet), "memory-intensive", false, "force the use of memory-intensive subsetting to decrease time at the cost of increasing memory use")
	cmd.PersistentFlags().BoolVar(&(tcc.cpuIntensiveSet), "cpu-intensive", false, "force the use of cpu-intensive subsetting to decrease memory use at the cost of increasing time")
}

/*
Config reads the configuration file, if any, and overrides its settings
with the flags set on the command line.
*/
func (tcc *treeCmdConfig) Config(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.ReadFromFile(tcc.configFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("metadata") {
		cfg.Schema = tcc.metadataInput
	}
	if flags.Changed("input") {
		cfg.Training = tcc.dataInput
	}
	if flags.Changed("table") {
		cfg.Table = tcc.table
	}
	if flags.Changed("collection") {
		cfg.Collection = tcc.collection
	}
	if flags.Changed("max-depth") {
		cfg.MaxDepth = tcc.maxDepth
	}
	if flags.Changed("min-samples") {
		cfg.MinSamples = tcc.minSamples
	}
	if flags.Changed("tie-break") {
		cfg.TieBreak = tcc.tieBreak
	}
	if flags.Changed("seed") {
		cfg.Seed = tcc.seed
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Schema == "" {
		return nil, fmt.Errorf("required metadata flag was not set")
	}
	if tcc.cpuIntensiveSet && tcc.memoryIntensiveSet {
		return nil, fmt.Errorf("cannot set both memory-intensive and cpu-intensive flags at the same time")
	}
	return cfg, nil
}

func (tcc *treeCmdConfig) datasetGenerator() func([]dataset.Sample) dataset.Dataset {
	if tcc.memoryIntensiveSet {
		return dataset.NewMemoryIntensive
	}
	if tcc.cpuIntensiveSet {
		return dataset.NewCPUIntensive
	}
	return dataset.New
}

/*
readSamples takes a context, a training source, the SQL table and MongoDB
collection names and a schema and returns the labeled samples read from
the source. The source may be a CSV file path (STDIN when empty), an
SQLite3 file, or a PostgreSQL or MongoDB connection URL.
*/
func readSamples(ctx context.Context, source, table, collection string, schema *feature.Schema, logger *slog.Logger) ([]dataset.Sample, error) {
	switch {
	case mongodataset.IsMongoURL(source):
		logger.Debug("reading records from MongoDB", "collection", collection)
		c, err := mongodataset.Dial(source, collection, schema)
		if err != nil {
			return nil, err
		}
		defer c.Close()
		return c.Samples(ctx)
	case sqldataset.IsDatabaseURL(source):
		logger.Debug("reading records from SQL database", "table", table)
		db, err := sqldataset.Open(source)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return sqldataset.ReadSamples(ctx, db, table, schema)
	}
	if source == "" {
		logger.Debug("reading records from STDIN")
	} else {
		logger.Debug("reading records from CSV file", "path", source)
	}
	return dscsv.ReadSamplesFromFilePath(source, schema)
}

func tieBreaker(cfg *config.Config) flowtree.TieBreaker {
	if cfg.TieBreak == config.TieBreakFirst {
		return flowtree.FirstTieBreaker()
	}
	return flowtree.RandomTieBreaker(cfg.Seed)
}

// exitError is an error carrying the exit code of the stage that failed.
type exitError struct {
	code int
	err  error
}

func (ee *exitError) Error() string {
	return ee.err.Error()
}

func stageError(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code, err}
}

/*
growTree reads the schema and training samples set on the configuration,
grows a tree from them and optimizes it. It returns the schema, the
training dataset and the optimized tree, or an exitError.
*/
func (tcc *treeCmdConfig) growTree(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*feature.Schema, dataset.Dataset, *tree.Tree, error) {
	schema, err := fyaml.ReadSchemaFromFile(cfg.Schema)
	if err != nil {
		return nil, nil, nil, stageError(2, err)
	}
	samples, err := readSamples(ctx, cfg.Training, cfg.Table, cfg.Collection, schema, logger)
	if err != nil {
		return nil, nil, nil, stageError(3, fmt.Errorf("reading training set: %v", err))
	}
	ds := tcc.datasetGenerator()(samples)
	logger.Info("growing tree", "samples", len(samples), "features", len(schema.Inputs()), "label", schema.Label.Name())
	g := &flowtree.Grower{
		Label:      schema.Label,
		MaxDepth:   cfg.MaxDepth,
		MinSamples: cfg.MinSamples,
		TieBreaker: tieBreaker(cfg),
		Logger:     logger,
	}
	t, err := g.Grow(ctx, ds, schema.Inputs())
	if err != nil {
		return nil, nil, nil, stageError(4, fmt.Errorf("growing the tree: %v", err))
	}
	o := &flowtree.Optimizer{Logger: logger}
	t, _, err = o.Optimize(t)
	if err != nil {
		return nil, nil, nil, stageError(4, fmt.Errorf("optimizing the tree: %v", err))
	}
	return schema, ds, t, nil
}

// exit prints the error on STDERR and exits with its stage code.
func exit(cmd *cobra.Command, err error) {
	code := 1
	if ee, ok := err.(*exitError); ok {
		code = ee.code
	}
	fmt.Fprintln(cmd.ErrOrStderr(), err)
	osExit(code)
}
