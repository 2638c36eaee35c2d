package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type testCmdConfig struct {
	*treeCmdConfig
	testInput string
}

func testCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &testCmdConfig{treeCmdConfig: &treeCmdConfig{rootCmdConfig: rootConfig}}
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test the performance of a tree",
		Long:  `Grow a tree and test its performance against a labeled test set`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := config.run(cmd); err != nil {
				exit(cmd, err)
			}
		},
	}
	config.addFlags(cmd)
	cmd.PersistentFlags().StringVarP(&(config.testInput), "test", "t", "", "path to a CSV (.csv) or SQLite3 (.db) file, or a PostgreSQL or MongoDB connection URL with labeled records to test the tree against (required)")
	return cmd
}

func (tcc *testCmdConfig) run(cmd *cobra.Command) error {
	logger, err := tcc.Logger()
	if err != nil {
		return stageError(1, err)
	}
	if tcc.testInput == "" {
		return stageError(1, fmt.Errorf("required test flag was not set"))
	}
	cfg, err := tcc.Config(cmd)
	if err != nil {
		return stageError(1, err)
	}
	ctx := context.Background()
	schema, _, t, err := tcc.growTree(ctx, cfg, logger)
	if err != nil {
		return err
	}
	samples, err := readSamples(ctx, tcc.testInput, cfg.Table, cfg.Collection, schema, logger)
	if err != nil {
		return stageError(5, fmt.Errorf("reading testing set: %v", err))
	}
	logger.Info("testing tree", "samples", len(samples))
	successRate, incomplete, err := t.Test(ctx, tcc.datasetGenerator()(samples))
	if err != nil {
		return stageError(6, fmt.Errorf("testing tree: %v", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%f success rate, failed to make a prediction for %d samples\n", successRate, incomplete)
	return nil
}
