package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mpataki/mend/internal/llm"
	"github.com/mpataki/mend/internal/models"
	"github.com/mpataki/mend/internal/tools"
)

// DefaultBrief seeds the conversation when no project brief exists.
const DefaultBrief = "You are an expert AI developer agent. Your goal is to fix a broken project by making the test suite pass. " +
	"You have a set of tools to help you: `read_file`, `write_file`, and `run_tests`. " +
	"Start by running the tests to diagnose the problem. Then, analyze the code and errors, propose a fix, write it to the file, and test again. " +
	"Once all tests pass, call the `finish` tool with a 'SUCCESS' status. If you get stuck, call `finish` with 'FAILURE'."

const (
	DefaultMaxTurns    = 10
	DefaultResultLimit = 10240
)

// Observer sees every dispatched call with its full, untruncated result.
type Observer func(turn int, action models.Action, result models.Result)

type Options struct {
	Brief       string
	MaxTurns    int
	ResultLimit int
	Logger      *slog.Logger
	Observer    Observer
}

// Agent walks the model through a bounded propose/dispatch loop against the
// registered tools. It owns the transcript for exactly one run.
type Agent struct {
	provider    llm.Provider
	registry    *tools.Registry
	brief       string
	maxTurns    int
	resultLimit int
	logger      *slog.Logger
	observer    Observer
}

func New(provider llm.Provider, registry *tools.Registry, opts Options) *Agent {
	a := &Agent{
		provider:    provider,
		registry:    registry,
		brief:       opts.Brief,
		maxTurns:    opts.MaxTurns,
		resultLimit: opts.ResultLimit,
		logger:      opts.Logger,
		observer:    opts.Observer,
	}
	if a.brief == "" {
		a.brief = DefaultBrief
	}
	if a.maxTurns <= 0 {
		a.maxTurns = DefaultMaxTurns
	}
	if a.resultLimit <= 0 {
		a.resultLimit = DefaultResultLimit
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Run drives the conversation until the model finishes, fails, or the turn
// budget runs out. Every non-fatal path reduces to an Outcome; a transport
// error from the model endpoint aborts with no outcome at all.
func (a *Agent) Run(ctx context.Context) (*models.Outcome, error) {
	transcript := models.NewTranscript(a.brief)
	specs := a.registry.Specs()

	for turn := 1; turn <= a.maxTurns; turn++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		reply, err := a.provider.Propose(ctx, transcript, specs)
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", turn, err)
		}
		if reply.Action == nil {
			a.logger.Warn("model proposed no action", "turn", turn)
			return &models.Outcome{
				Kind:    models.FailNoAction,
				Message: "Model failed to provide a next step.",
				Turns:   turn,
			}, nil
		}

		action := *reply.Action
		if !a.registry.Has(action.Tool) {
			a.logger.Warn("model requested unknown tool", "turn", turn, "tool", action.Tool)
			return &models.Outcome{
				Kind:    models.FailUnknownTool,
				Message: fmt.Sprintf("Model requested a non-existent tool: %s", action.Tool),
				Turns:   turn,
			}, nil
		}

		transcript.AppendProposal(reply.Text, reply.Action)
		a.logger.Info("dispatching tool", "turn", turn, "tool", action.Tool)

		resultText, err := a.registry.Dispatch(ctx, action.Tool, action.Args)
		if err != nil {
			var invalid *tools.InvalidArgumentsError
			if !errors.As(err, &invalid) {
				return nil, fmt.Errorf("turn %d: dispatch failed: %w", turn, err)
			}
			// The one recoverable dispatch failure: tell the model and
			// let it try again.
			res := models.Result{
				CallID:  action.ID,
				Tool:    action.Tool,
				Content: fmt.Sprintf("Invalid arguments: %v", invalid),
				IsError: true,
			}
			transcript.AppendResult(res)
			a.observe(turn, action, res)
			a.logger.Warn("invalid tool arguments", "turn", turn, "tool", action.Tool, "reason", invalid.Reason)
			continue
		}

		if action.Tool == "finish" {
			outcome, err := decodeFinish(resultText)
			if err != nil {
				return nil, fmt.Errorf("turn %d: %w", turn, err)
			}
			outcome.Turns = turn
			a.observe(turn, action, models.Result{CallID: action.ID, Tool: action.Tool, Content: resultText})
			a.logger.Info("agent finished", "turn", turn, "success", outcome.Success)
			return outcome, nil
		}

		res := models.Result{CallID: action.ID, Tool: action.Tool, Content: resultText}
		a.observe(turn, action, res)
		res.Content = truncate(res.Content, a.resultLimit)
		transcript.AppendResult(res)
	}

	a.logger.Warn("turn budget exhausted", "turns", a.maxTurns)
	return &models.Outcome{
		Kind:    models.FailBudget,
		Message: fmt.Sprintf("Failed to fix the code within %d turns.", a.maxTurns),
		Turns:   a.maxTurns,
	}, nil
}

func (a *Agent) observe(turn int, action models.Action, res models.Result) {
	if a.observer != nil {
		a.observer(turn, action, res)
	}
}

// decodeFinish is the single place the loop interprets a tool payload. The
// message passes through untouched.
func decodeFinish(payload string) (*models.Outcome, error) {
	var p models.FinishPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("failed to decode finish payload: %w", err)
	}
	if p.Status == models.FinishSuccess {
		return &models.Outcome{Success: true, Message: p.Message}, nil
	}
	return &models.Outcome{Kind: models.FailFinish, Message: p.Message}, nil
}

// truncate caps what gets folded back into the transcript; the audit trail
// keeps the full text. Long test runs would otherwise crowd out the
// conversation.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	head := limit / 2
	tail := limit - head
	return s[:head] + "\n... [output truncated] ...\n" + s[len(s)-tail:]
}
