package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/tripwise/internal/cli"
	"github.com/aretw0/tripwise/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the pipeline visualization",
	Long:  `Builds the pipeline (with any prompt overrides) and outputs a Mermaid diagram of its stages and data flow.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		p, err := cli.InspectPipeline(cfg)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(p.Describe())
		}
		fmt.Print(graph.GenerateMermaid(p.Describe(), nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("json", false, "Print the pipeline description as JSON")
}
