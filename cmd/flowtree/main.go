package main

import (
	"os"

	"github.com/spf13/cobra"
)

type rootCmdConfig struct {
	verbose    bool
	logFormat  string
	configFile string
}

var osExit = os.Exit

func main() {
	if err := cliParser().Execute(); err != nil {
		os.Exit(1)
	}
}

func cliParser() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flowtree",
		Short: "flowtree is a tool to tell DDoS flows from benign ones",
		Long:  `A tool to grow decision trees from labeled network flow records, test them, and use them to classify live flow logs`,
	}
	config := &rootCmdConfig{}
	rootCmd.PersistentFlags().BoolVarP(&(config.verbose), "verbose", "v", false, "log debug messages")
	rootCmd.PersistentFlags().StringVar(&(config.logFormat), "log-format", "text", "format of log messages on STDERR: text or json")
	rootCmd.PersistentFlags().StringVarP(&(config.configFile), "config", "c", "", "path to a YML configuration file")
	rootCmd.AddCommand(versionCmd(), growCmd(config), testCmd(config), classifyCmd(config), watchCmd(config))
	return rootCmd
}
