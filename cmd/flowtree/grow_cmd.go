package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pbanos/flowtree/tree/dot"
	tjson "github.com/pbanos/flowtree/tree/json"
)

type growCmdConfig struct {
	*treeCmdConfig
	output    string
	dotOutput string
}

func growCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &growCmdConfig{treeCmdConfig: &treeCmdConfig{rootCmdConfig: rootConfig}}
	cmd := &cobra.Command{
		Use:   "grow",
		Short: "Grow a tree from a set of labeled flow records",
		Long:  `Grow a tree from a set of labeled flow records, simplify it and print it, optionally exporting it for renderers.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := config.run(cmd); err != nil {
				exit(cmd, err)
			}
		},
	}
	config.addFlags(cmd)
	cmd.PersistentFlags().StringVarP(&(config.output), "output", "o", "", "path to a file to which the tree will be written in JSON format for renderers")
	cmd.PersistentFlags().StringVar(&(config.dotOutput), "dot", "", "path to a file to which the tree will be written in Graphviz DOT format")
	return cmd
}

func (gcc *growCmdConfig) run(cmd *cobra.Command) error {
	logger, err := gcc.Logger()
	if err != nil {
		return stageError(1, err)
	}
	cfg, err := gcc.Config(cmd)
	if err != nil {
		return stageError(1, err)
	}
	ctx := context.Background()
	_, _, t, err := gcc.growTree(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("grew tree", "nodes", t.Len())
	fmt.Fprint(cmd.OutOrStdout(), t)
	if gcc.output != "" {
		err = writeFile(gcc.output, func(w io.Writer) error {
			return tjson.WriteJSONTree(ctx, t, tjson.NewNodeEncoder(), w)
		})
		if err != nil {
			return stageError(5, fmt.Errorf("writing JSON tree: %v", err))
		}
	}
	if gcc.dotOutput != "" {
		err = writeFile(gcc.dotOutput, func(w io.Writer) error {
			return dot.WriteDOT(t, w)
		})
		if err != nil {
			return stageError(6, fmt.Errorf("writing DOT tree: %v", err))
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
