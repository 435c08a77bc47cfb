package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/agent-governor/internal/replay"
)

var (
	exportAgent string
	exportLast  int
	exportOut   string
	exportDesc  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Build a replay fixture from the audit log",
	Long: `export pulls the most recent recorded observations for one agent out
of the audit log and writes them as a replay fixture, expectations included.
The fixture replays from a fresh agent, so exports taken mid-life will show
divergence on replay; export early or treat the first steps as warm-up.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportAgent, "agent", "", "agent id to export")
	exportCmd.Flags().IntVar(&exportLast, "last", 50, "number of most recent observations")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output fixture path")
	exportCmd.Flags().StringVar(&exportDesc, "description", "", "fixture description")
	_ = exportCmd.MarkFlagRequired("agent")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
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

	_, sqlSink, auditClose, err := openAudit(cfg, h)
	if err != nil {
		return err
	}
	if auditClose != nil {
		defer auditClose()
	}
	if sqlSink == nil {
		return fmt.Errorf("audit log disabled; nothing to export")
	}

	records, err := sqlSink.Observations(cmd.Context(), exportAgent, exportLast)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no recorded observations for agent %q", exportAgent)
	}

	desc := exportDesc
	if desc == "" {
		desc = fmt.Sprintf("Audit export: %d observations for %s", len(records), exportAgent)
	}
	fixture := replay.FromObservations(exportAgent, desc, records)

	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	fmt.Printf("Wrote fixture to %s (%d steps, %d bytes)\n", exportOut, len(fixture.Steps), len(data))
	return nil
}
