package main

import (
	"fmt"

	"github.com/aretw0/tripwise/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and the pipeline",
	Long: `Validates credentials, limits and log settings, then builds the pipeline with
any prompt overrides so template and tool errors surface before a run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		p, err := cli.InspectPipeline(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("✔ configuration valid\n✔ pipeline %s: %d stage outputs, final key %s\n", p.Name(), len(p.OutputKeys()), p.FinalKey())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
