package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mpataki/mend/internal/agent"
	"github.com/mpataki/mend/internal/config"
	"github.com/mpataki/mend/internal/llm"
	"github.com/mpataki/mend/internal/models"
	"github.com/mpataki/mend/internal/sandbox"
	"github.com/mpataki/mend/internal/storage"
	"github.com/mpataki/mend/internal/tools"
)

// Improver rewrites the agent's brief after a failed run. It reports
// whether the brief actually changed.
type Improver interface {
	Rewrite(ctx context.Context, path, source, failureReason string) (bool, error)
}

type Orchestrator struct {
	storage  *storage.Storage
	provider llm.Provider
	improver Improver
	cfg      *config.Config
	logger   *slog.Logger
}

func New(store *storage.Storage, provider llm.Provider, improver Improver, cfg *config.Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		storage:  store,
		provider: provider,
		improver: improver,
		cfg:      cfg,
		logger:   logger,
	}
}

func (o *Orchestrator) StartRun() (*models.Run, error) {
	run := &models.Run{
		ProjectDir: o.cfg.ProjectDir,
		Model:      o.cfg.Model,
		Status:     models.RunStatusPending,
	}

	runID, err := o.storage.CreateRun(run)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	run.ID = runID

	return run, nil
}

// Execute drives one full agent run and maps its outcome onto the run row.
// Fatal faults mark the run failed and propagate; the project is restored
// either way.
func (o *Orchestrator) Execute(ctx context.Context, run *models.Run) (*models.Outcome, error) {
	run.Status = models.RunStatusRunning
	if err := o.storage.UpdateRun(run); err != nil {
		return nil, err
	}

	outcome, err := o.runLoop(ctx, run)

	now := time.Now()
	run.CompletedAt = &now
	if err != nil {
		run.Status = models.RunStatusFailed
		run.Message = err.Error()
		if uerr := o.storage.UpdateRun(run); uerr != nil {
			o.logger.Error("failed to record run failure", "run", run.ID, "error", uerr)
		}
		return nil, err
	}

	run.Turns = outcome.Turns
	if outcome.Success {
		run.Status = models.RunStatusSucceeded
		run.Message = outcome.Message
	} else {
		run.Status = models.RunStatusFailed
		run.Message = outcome.Reason()
	}
	if err := o.storage.UpdateRun(run); err != nil {
		return nil, fmt.Errorf("failed to record run result: %w", err)
	}

	return outcome, nil
}

// runLoop wraps the conversation loop in the backup/restore bracket. The
// deferred restore runs before any caller sees the result, so improvement
// and reporting always happen against the restored tree.
func (o *Orchestrator) runLoop(ctx context.Context, run *models.Run) (*models.Outcome, error) {
	box := sandbox.New(o.cfg.ProjectDir, o.cfg.BackupDir, o.logger)
	if err := box.Backup(); err != nil {
		return nil, fmt.Errorf("backup failed: %w", err)
	}
	defer func() {
		if err := box.Restore(); err != nil {
			o.logger.Error("restore failed", "run", run.ID, "error", err)
		}
		if err := box.Cleanup(); err != nil {
			o.logger.Error("backup cleanup failed", "run", run.ID, "error", err)
		}
	}()

	registry := tools.Default(tools.Config{
		Dir:         o.cfg.ProjectDir,
		TestCommand: o.cfg.TestArgv(),
		TestDir:     o.cfg.TestDir,
	})

	ag := agent.New(o.provider, registry, agent.Options{
		Brief:       o.loadBrief(),
		MaxTurns:    o.cfg.MaxTurns,
		ResultLimit: o.cfg.ResultLimit,
		Logger:      o.logger,
		Observer:    o.auditor(run.ID),
	})

	return ag.Run(ctx)
}

// auditor persists every dispatched tool call with its full result.
func (o *Orchestrator) auditor(runID int64) agent.Observer {
	return func(turn int, action models.Action, result models.Result) {
		args, err := json.Marshal(action.Args)
		if err != nil {
			args = []byte("{}")
		}

		call := &models.ToolCall{
			RunID:     runID,
			Turn:      turn,
			Tool:      action.Tool,
			Arguments: string(args),
			Result:    result.Content,
			IsError:   result.IsError,
		}
		if _, err := o.storage.CreateToolCall(call); err != nil {
			o.logger.Error("failed to record tool call", "run", runID, "turn", turn, "error", err)
		}

		o.logger.Info("tool call", "run", runID, "turn", turn, "tool", action.Tool, "is_error", result.IsError)
	}
}

// loadBrief reads the project's agent brief, falling back to the built-in
// default when the file is missing or blank.
func (o *Orchestrator) loadBrief() string {
	data, err := os.ReadFile(o.cfg.AgentFile)
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		return agent.DefaultBrief
	}
	return string(data)
}

// Improve asks the model to rewrite the brief in light of a failure. Runs
// against the restored tree, never inside the sandboxed region.
func (o *Orchestrator) Improve(ctx context.Context, failureReason string) (bool, error) {
	if o.improver == nil {
		return false, nil
	}
	return o.improver.Rewrite(ctx, o.cfg.AgentFile, o.loadBrief(), failureReason)
}

// Read methods for the TUI and CLI listings

func (o *Orchestrator) ListRuns(limit int) ([]*models.Run, error) {
	return o.storage.ListRuns(limit)
}

func (o *Orchestrator) GetRun(id int64) (*models.Run, error) {
	return o.storage.GetRun(id)
}

func (o *Orchestrator) ListToolCalls(runID int64) ([]*models.ToolCall, error) {
	return o.storage.ListToolCalls(runID)
}

func (o *Orchestrator) DeleteRun(runID int64) error {
	return o.storage.DeleteRun(runID)
}
