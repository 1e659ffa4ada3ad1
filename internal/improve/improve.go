package improve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mpataki/mend/internal/llm"
)

const metaPrompt = `I am an autonomous agent that uses tools to fix broken projects by making their test suites pass. The brief that seeds every conversation I have with the model is below:
---
%s
---
I have just failed to fix a project. The failure was: %s
My current strategy, which is guided by that brief, is flawed. Analyze the brief and suggest an improvement to my core strategy. For example, should the brief be more detailed about diagnosing failures before editing? Should it demand smaller, test-verified steps? Return the complete, new, and improved brief. Your response must be only the raw brief text, without any markdown fences or explanations.`

// Improver rewrites the agent's brief after a failed run. It runs outside
// the sandbox bracket: the brief is the agent's own definition, not part of
// the project under repair.
type Improver struct {
	provider llm.Provider
	logger   *slog.Logger
}

func New(provider llm.Provider, logger *slog.Logger) *Improver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Improver{provider: provider, logger: logger}
}

// ProposeImprovement asks the model for a replacement brief. An empty
// return means no usable proposal came back.
func (i *Improver) ProposeImprovement(ctx context.Context, source, failureReason string) (string, error) {
	reply, err := i.provider.Generate(ctx, fmt.Sprintf(metaPrompt, source, failureReason))
	if err != nil {
		return "", fmt.Errorf("improvement request failed: %w", err)
	}
	return Strip(reply), nil
}

// Rewrite replaces the brief at path when the model returns a non-empty
// proposal, and leaves the file untouched otherwise. Reports whether the
// brief actually changed.
func (i *Improver) Rewrite(ctx context.Context, path, source, failureReason string) (bool, error) {
	proposal, err := i.ProposeImprovement(ctx, source, failureReason)
	if err != nil {
		return false, err
	}
	if proposal == "" {
		i.logger.Warn("model returned an empty improvement, keeping current brief", "path", path)
		return false, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return false, fmt.Errorf("failed to create brief directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(proposal), 0644); err != nil {
		return false, fmt.Errorf("failed to write agent brief: %w", err)
	}
	i.logger.Info("agent brief rewritten", "path", path, "bytes", len(proposal))
	return true, nil
}
