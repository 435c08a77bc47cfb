package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/agent-governor/internal/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay <fixture.json>",
	Short: "Re-run a recorded fixture and compare decisions",
	Long: `replay feeds a fixture's observations through a fresh in-memory
governor under the current tuning and checks each decision against the
recorded expectations. Exits non-zero when any step diverges, which makes
it usable as a regression gate after retuning.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	f, err := replay.LoadFixture(args[0])
	if err != nil {
		return err
	}

	results, sum, err := replay.Replay(cmd.Context(), f, cfg.Governor)
	if err != nil {
		return err
	}

	if jsonOut {
		out := struct {
			Description string              `json:"description"`
			Results     []replay.StepResult `json:"results"`
			Summary     replay.Summary      `json:"summary"`
		}{f.Description, results, sum}
		if err := printJSON(out); err != nil {
			return err
		}
	} else {
		fmt.Printf("Replaying %q: %d steps\n\n", f.Description, sum.Steps)
		fmt.Printf("%-5s %-9s %-8s %-12s %-12s %s\n", "Step", "Status", "Action", "Tier", "Regime", "Check")
		fmt.Printf("%-5s %-9s %-8s %-12s %-12s %s\n",
			strings.Repeat("-", 5), strings.Repeat("-", 9), strings.Repeat("-", 8),
			strings.Repeat("-", 12), strings.Repeat("-", 12), strings.Repeat("-", 5))
		for _, r := range results {
			check := "ok"
			if len(r.Mismatches) > 0 {
				check = strings.Join(r.Mismatches, "; ")
			}
			fmt.Printf("%-5d %-9s %-8s %-12s %-12s %s\n", r.Step, r.Status, r.Action, r.Tier, r.Regime, check)
		}
		fmt.Printf("\n%d proceed, %d pause, %d hard-block; %d mismatched\n",
			sum.Proceeds, sum.Pauses, sum.HardBlocks, sum.Mismatched)
	}

	if sum.Mismatched > 0 {
		return fmt.Errorf("replay diverged on %d of %d steps", sum.Mismatched, sum.Steps)
	}
	return nil
}
