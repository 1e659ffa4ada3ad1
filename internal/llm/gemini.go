package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/mpataki/mend/internal/config"
	"github.com/mpataki/mend/internal/models"
)

type geminiProvider struct {
	client *genai.Client
	model  string
}

func newGemini(ctx context.Context, cfg *config.Config) (*geminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GOOGLE_API_KEY environment variable not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &geminiProvider{client: client, model: cfg.Model}, nil
}

func (g *geminiProvider) Propose(ctx context.Context, transcript *models.Transcript, tools []models.ToolSpec) (*Reply, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, geminiContents(transcript), &genai.GenerateContentConfig{
		Tools: geminiTools(tools),
	})
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	return geminiReply(resp), nil
}

func (g *geminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	return geminiText(resp), nil
}

// geminiContents maps the transcript onto SDK history. Proposals ride as
// model-role function calls, results as user-role function responses.
func geminiContents(t *models.Transcript) []*genai.Content {
	contents := make([]*genai.Content, 0, len(t.Turns))
	for _, turn := range t.Turns {
		switch {
		case turn.Action != nil:
			var parts []*genai.Part
			if turn.Text != "" {
				parts = append(parts, genai.NewPartFromText(turn.Text))
			}
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   turn.Action.ID,
				Name: turn.Action.Tool,
				Args: turn.Action.Args,
			}})
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})
		case turn.Result != nil:
			payload := map[string]any{"result": turn.Result.Content}
			if turn.Result.IsError {
				payload = map[string]any{"error": turn.Result.Content}
			}
			part := genai.NewPartFromFunctionResponse(turn.Result.Tool, payload)
			part.FunctionResponse.ID = turn.Result.CallID
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
		default:
			role := genai.RoleUser
			if turn.Role == models.RoleModel {
				role = genai.RoleModel
			}
			contents = append(contents, genai.NewContentFromText(turn.Text, role))
		}
	}
	return contents
}

func geminiTools(specs []models.ToolSpec) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		props := make(map[string]*genai.Schema, len(spec.Params))
		var required []string
		for _, p := range spec.Params {
			schema := &genai.Schema{Type: genai.TypeString}
			if len(p.Enum) > 0 {
				schema.Enum = p.Enum
			}
			props[p.Name] = schema
			if p.Required {
				required = append(required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   required,
			},
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// geminiReply takes the first function call of the first candidate; text
// parts around it are kept as commentary.
func geminiReply(resp *genai.GenerateContentResponse) *Reply {
	reply := &Reply{}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return reply
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.FunctionCall != nil && reply.Action == nil {
			reply.Action = &models.Action{
				ID:   part.FunctionCall.ID,
				Tool: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			}
			continue
		}
		text.WriteString(part.Text)
	}
	reply.Text = text.String()
	return reply
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return text.String()
}
