package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/agent-governor/internal/config"
	"github.com/danielpatrickdp/agent-governor/internal/repo"
)

var (
	inspectLast   int
	inspectEvents int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [agent-id]",
	Short: "Show stored agent snapshots",
	Long: `inspect lists stored agents, or shows one agent's full snapshot.
Reads go straight to the store; the update lock is never taken, so a
stuck or crashed holder cannot block the view.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLast, "last", 20, "number of agents to list")
	inspectCmd.Flags().IntVar(&inspectEvents, "events", 5, "recent audit observations in the detail view")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	h, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer h.store.Close()

	if len(args) == 0 {
		return inspectList(cmd.Context(), h)
	}
	return inspectDetail(cmd.Context(), cfg, h, args[0])
}

func inspectList(ctx context.Context, h storeHandle) error {
	sums, err := h.store.List(ctx, inspectLast)
	if err != nil {
		return err
	}
	if len(sums) == 0 {
		fmt.Fprintln(os.Stderr, "no agents found")
		return nil
	}
	if jsonOut {
		return printJSON(sums)
	}
	fmt.Printf("%-28s %8s  %-12s  %s\n", "Agent", "Updates", "Regime", "Updated")
	fmt.Printf("%-28s %8s  %-12s  %s\n",
		strings.Repeat("-", 28), strings.Repeat("-", 8), strings.Repeat("-", 12), strings.Repeat("-", 20))
	for _, s := range sums {
		fmt.Printf("%-28s %8d  %-12s  %s\n",
			s.AgentID, s.UpdateCount, s.Regime, s.UpdatedAt.UTC().Format(time.RFC3339))
	}
	return nil
}

func inspectDetail(ctx context.Context, cfg config.Config, h storeHandle, agentID string) error {
	snap, err := h.store.Load(ctx, agentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("agent %q not found", agentID)
		}
		return err
	}

	if jsonOut {
		return printJSON(snap)
	}

	fmt.Printf("Agent:        %s\n", snap.AgentID)
	fmt.Printf("Updates:      %d  (time %.2f)\n", snap.UpdateCount, snap.Time)
	fmt.Printf("Regime:       %s  (stable streak %d)\n", snap.Regime, snap.StableStreak)
	fmt.Printf("Channels:     E=%.3f I=%.3f S=%.3f V=%+.3f\n",
		snap.Energy, snap.Integrity, snap.Entropy, snap.Void)
	fmt.Printf("Coherence:    %.4f\n", snap.Coherence)
	fmt.Printf("Coupling:     %.4f  (integral %+.4f, skips %d)\n",
		snap.Coupling, snap.ControllerIntegral, snap.ControllerSkips)
	fmt.Printf("Void gate:    active=%v  |V|=%.3f  threshold=%.3f\n",
		snap.VoidActive, math.Abs(snap.Void), snap.VoidThreshold)
	fmt.Printf("Thresholds:   coherence=%.3f risk=%.3f\n",
		snap.CoherenceThreshold, snap.RiskThreshold)
	fmt.Printf("Oscillation:  ema=%.3f window=%d\n", snap.Detector.EMA, len(snap.Detector.Window))
	fmt.Printf("Histories:    %d samples\n", snap.Histories.Energy.Len())
	fmt.Printf("Created:      %s\n", snap.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Printf("Updated:      %s\n", snap.UpdatedAt.UTC().Format(time.RFC3339))

	return printRecentObservations(ctx, cfg, h, agentID)
}

// printRecentObservations appends the audit tail when the audit log is on
// and queryable. Absence of an audit log is not an error here.
func printRecentObservations(ctx context.Context, cfg config.Config, h storeHandle, agentID string) error {
	if inspectEvents <= 0 {
		return nil
	}
	_, sqlSink, auditClose, err := openAudit(cfg, h)
	if err != nil || sqlSink == nil {
		return nil
	}
	if auditClose != nil {
		defer auditClose()
	}
	records, err := sqlSink.Observations(ctx, agentID, inspectEvents)
	if err != nil || len(records) == 0 {
		return nil
	}
	fmt.Printf("\nRecent observations:\n")
	for _, r := range records {
		fmt.Printf("  #%-6d status=%-8s action=%-8s risk=%.3f coherence=%.3f\n",
			r.UpdateSeq, r.Outcome.Status, r.Outcome.Action, r.Outcome.Risk, r.Outcome.Coherence)
	}
	return nil
}
