package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/tripwise"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tripwise",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tripwise version %s\n", strings.TrimSpace(tripwise.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
