package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/agent-governor/internal/audit"
	"github.com/danielpatrickdp/agent-governor/internal/gate"
	"github.com/danielpatrickdp/agent-governor/internal/governor"
	"github.com/danielpatrickdp/agent-governor/internal/lock"
	"github.com/danielpatrickdp/agent-governor/internal/repo"
)

var runAgent string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process observations from stdin",
	Long: `run reads one JSON observation per line from stdin, feeds it through
the governance pipeline, and prints the decision for each.

Line format:
  {"agent_id":"agent-1","drift":[0.1,-0.05,0.02],"complexity":0.4,"text":"..."}

agent_id may be omitted when --agent is set. Malformed lines are skipped
with a warning; rejected updates are logged and the loop continues.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runAgent, "agent", "", "default agent id for lines without one")
	rootCmd.AddCommand(runCmd)
}

// obsLine is the stdin wire format, one JSON object per line.
type obsLine struct {
	AgentID    string    `json:"agent_id"`
	SessionID  string    `json:"session_id,omitempty"`
	Drift      []float64 `json:"drift"`
	Complexity *float64  `json:"complexity,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	Text       string    `json:"text,omitempty"`
}

func runRun(cmd *cobra.Command, args []string) error {
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

	sink, _, auditClose, err := openAudit(cfg, h)
	if err != nil {
		return err
	}
	if auditClose != nil {
		defer auditClose()
	}

	locks, fileLocks, err := newLocks(cfg, log)
	if err != nil {
		return err
	}

	gov := governor.New(h.store, locks, sink, cfg.Governor, log)
	if fileLocks != nil {
		fileLocks.OnReclaim = func(agentID, owner string, pid int) {
			gov.Auditor().Emit(context.Background(), agentID, audit.KindLockReclaimed,
				audit.LockReclaimRecord{Owner: owner, PID: pid})
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if b, ok := h.store.(*repo.BadgerStore); ok {
		go b.RunGC(ctx, 5*time.Minute)
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var in obsLine
		if err := json.Unmarshal([]byte(line), &in); err != nil {
			log.Warn("skipping malformed line", zap.Int("line", lineNum), zap.Error(err))
			continue
		}
		agentID := in.AgentID
		if agentID == "" {
			agentID = runAgent
		}
		if agentID == "" {
			log.Warn("skipping line without agent id", zap.Int("line", lineNum))
			continue
		}

		res, err := gov.ProcessUpdate(ctx, agentID, governor.Observation{
			Drift:      in.Drift,
			Complexity: in.Complexity,
			Confidence: in.Confidence,
			Text:       in.Text,
			SessionID:  in.SessionID,
		})
		if err != nil {
			var contended *lock.ContendedError
			if errors.As(err, &contended) {
				log.Warn("agent contended, retry later", zap.String("agent_id", agentID))
				continue
			}
			log.Warn("update rejected", zap.Int("line", lineNum),
				zap.String("agent_id", agentID), zap.Error(err))
			continue
		}

		if err := printResult(agentID, res); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func printResult(agentID string, res *governor.Result) error {
	if jsonOut {
		data, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}
	m := res.Metrics
	fmt.Printf("[%d] %s  status=%s action=%s risk=%.3f coherence=%.3f regime=%s\n",
		m.UpdateCount, agentID, res.Status, res.Decision.Action, m.RiskScore, m.Coherence, m.Regime)
	if res.Decision.Action == gate.ActionPause {
		fmt.Printf("      reason: %s\n", res.Decision.Reason)
	}
	if res.Decision.Guidance != "" {
		fmt.Printf("      guidance: %s\n", res.Decision.Guidance)
	}
	return nil
}
