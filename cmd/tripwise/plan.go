package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/tripwise/internal/cli"
	"github.com/aretw0/tripwise/internal/presentation/tui"
	"github.com/aretw0/tripwise/pkg/domain"
	"github.com/aretw0/tripwise/pkg/itinerary"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var planCmd = &cobra.Command{
	Use:   "plan <query>",
	Short: "Plan a trip and write the HTML itinerary",
	Long: `Runs the itinerary pipeline once for the given request.
The document is written to --out, or to stdout when no file is given.`,
	Example: `  tripwise plan "5 days in Rome from Paris leaving 2025-12-01, budget 900 EUR" --out rome.html`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		sessionID, _ := cmd.Flags().GetString("session")
		showPlan, _ := cmd.Flags().GetBool("show-plan")
		query := strings.Join(args, " ")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		interactive := term.IsTerminal(int(os.Stderr.Fd()))
		progress := domain.LifecycleHooks{}
		if interactive {
			tui.PrintBanner(os.Stderr)
			progress.OnStageEnd = func(_ context.Context, e *domain.StageEvent) {
				tui.Status(os.Stderr, e.Err == nil, fmt.Sprintf("%s (%s)", e.Stage, e.Duration.Round(100*time.Millisecond)))
			}
		}

		app, err := cli.NewApp(cfg, cli.WithHooks(progress))
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		var document string
		var tripPlan any
		if sessionID != "" {
			art, err := app.Sessions.Run(ctx, sessionID, query)
			if err != nil {
				return planError(ctx, err)
			}
			document = art.Document
		} else {
			res, err := app.Planner.Plan(ctx, query)
			if err != nil {
				return planError(ctx, err)
			}
			document = res.Document
			tripPlan, _ = res.Context.Get(itinerary.KeyTripPlan)
		}

		if showPlan {
			if md, ok := tripPlan.(string); ok {
				rendered, err := tui.NewRenderer()(md)
				if err != nil {
					rendered = md
				}
				fmt.Fprint(os.Stderr, rendered)
			}
		}

		if out == "" {
			fmt.Print(document)
			return nil
		}
		if err := os.WriteFile(out, []byte(document), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		if interactive {
			tui.Status(os.Stderr, true, "itinerary written to "+out)
		}
		return nil
	},
}

func planError(ctx *cli.SignalContext, err error) error {
	if cli.IsInterrupted(err) && ctx.Signal() != nil {
		return fmt.Errorf("interrupted by %v", ctx.Signal())
	}
	return err
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringP("out", "o", "", "Write the HTML document to this file")
	planCmd.Flags().String("session", "", "Run within a session id")
	planCmd.Flags().Bool("show-plan", false, "Render the markdown trip plan on stderr")
}
