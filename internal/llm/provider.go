package llm

import (
	"context"
	"fmt"

	"github.com/mpataki/mend/internal/config"
	"github.com/mpataki/mend/internal/models"
)

// Reply is one model round-trip: prose, a proposed action, or both. A nil
// Action means the model did not call a tool.
type Reply struct {
	Text   string
	Action *models.Action
}

// Provider abstracts the model endpoint. Propose sends the full transcript
// plus the advertised tool set and returns the model's next step. Generate
// is a plain one-shot completion with no tools attached.
type Provider interface {
	Propose(ctx context.Context, transcript *models.Transcript, tools []models.ToolSpec) (*Reply, error)
	Generate(ctx context.Context, prompt string) (string, error)
}

// New selects a backend from the config. Credentials are checked here so a
// misconfigured process dies before it touches the project tree.
func New(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.Provider {
	case "", "gemini":
		return newGemini(ctx, cfg)
	case "openai":
		return newOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}
