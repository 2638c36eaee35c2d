package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	// VersionMajor is the major number in flowtree's version
	VersionMajor = 0
	// VersionMinor is the minor number in flowtree's version
	VersionMinor = 1
	// VersionPatch is the patch number in flowtree's version
	VersionPatch = 0
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of flowtree",
		Long:  `All software has versions. This is flowtree's`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version())
		},
	}
}

func version() string {
	return fmt.Sprintf("flowtree v%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)
}
