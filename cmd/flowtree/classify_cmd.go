package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbanos/flowtree/feature"
	"github.com/pbanos/flowtree/ingest"
	"github.com/pbanos/flowtree/tree"
)

type classifyCmdConfig struct {
	*treeCmdConfig
	recordsInput string
}

func classifyCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &classifyCmdConfig{treeCmdConfig: &treeCmdConfig{rootCmdConfig: rootConfig}}
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify flow records",
		Long:  `Grow a tree and print the path every flow record read, one per line, follows through it`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := config.run(cmd); err != nil {
				exit(cmd, err)
			}
		},
	}
	config.addFlags(cmd)
	cmd.PersistentFlags().StringVarP(&(config.recordsInput), "records", "r", "", "path to a file with the flow records to classify (defaults to STDIN)")
	return cmd
}

func (ccc *classifyCmdConfig) run(cmd *cobra.Command) error {
	logger, err := ccc.Logger()
	if err != nil {
		return stageError(1, err)
	}
	cfg, err := ccc.Config(cmd)
	if err != nil {
		return stageError(1, err)
	}
	if cfg.Training == "" && ccc.recordsInput == "" {
		return stageError(1, fmt.Errorf("cannot read both training set and records from STDIN"))
	}
	schema, _, t, err := ccc.growTree(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	var r io.Reader = cmd.InOrStdin()
	if ccc.recordsInput != "" {
		f, err := os.Open(ccc.recordsInput)
		if err != nil {
			return stageError(5, fmt.Errorf("opening records file: %v", err))
		}
		defer f.Close()
		r = f
	}
	if err = classifyLines(r, cmd.OutOrStdout(), t, schema); err != nil {
		return stageError(6, err)
	}
	return nil
}

func classifyLines(r io.Reader, w io.Writer, t *tree.Tree, schema *feature.Schema) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		h, err := ingest.Classify(t, schema, line)
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", line, err)
			continue
		}
		result := "undecided"
		if h.Class != "" {
			result = string(h.Class)
		}
		fmt.Fprintf(w, "%s: %s (%s)\n", line, result, describePath(t, h.Path))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading records: %v", err)
	}
	return nil
}

// describePath returns the text of the nodes of a path joined by arrows.
func describePath(t *tree.Tree, p tree.Path) string {
	var s string
	for i, id := range p.Nodes {
		if i > 0 {
			s += " -> "
		}
		s += fmt.Sprintf("[%d] %s", id, t.Node(id).Text())
	}
	return s
}
