package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/mpataki/mend/internal/config"
	"github.com/mpataki/mend/internal/models"
)

// openAIProvider speaks the chat-completions dialect, which also covers
// OpenAI-compatible local servers via OPENAI_BASE_URL.
type openAIProvider struct {
	client *openai.Client
	model  string
}

func newOpenAI(cfg *config.Config) (*openAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &openAIProvider{client: openai.NewClientWithConfig(clientCfg), model: cfg.Model}, nil
}

func (o *openAIProvider) Propose(ctx context.Context, transcript *models.Transcript, tools []models.ToolSpec) (*Reply, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: openAIMessages(transcript),
		Tools:    openAITools(tools),
	})
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return &Reply{}, nil
	}

	msg := resp.Choices[0].Message
	reply := &Reply{Text: msg.Content}
	if len(msg.ToolCalls) == 0 {
		return reply, nil
	}

	tc := msg.ToolCalls[0]
	args := map[string]any{}
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("failed to decode tool arguments: %w", err)
		}
	}
	id := tc.ID
	if id == "" {
		id = uuid.NewString()
	}
	reply.Action = &models.Action{ID: id, Tool: tc.Function.Name, Args: args}
	return reply, nil
}

func (o *openAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// openAIMessages rebuilds the wire history each round. Tool messages must
// reference the id of the assistant call they answer; when the transcript
// carries no provider ids we synthesize stable positional ones.
func openAIMessages(t *models.Transcript) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(t.Turns))
	for i, turn := range t.Turns {
		switch {
		case turn.Action != nil:
			args, err := json.Marshal(turn.Action.Args)
			if err != nil {
				args = []byte("{}")
			}
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: turn.Text,
				ToolCalls: []openai.ToolCall{{
					ID:   openAICallID(turn.Action.ID, i),
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      turn.Action.Tool,
						Arguments: string(args),
					},
				}},
			})
		case turn.Result != nil:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    turn.Result.Content,
				Name:       turn.Result.Tool,
				ToolCallID: openAICallID(turn.Result.CallID, i-1),
			})
		default:
			role := openai.ChatMessageRoleUser
			if turn.Role == models.RoleModel {
				role = openai.ChatMessageRoleAssistant
			}
			msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
		}
	}
	return msgs
}

func openAICallID(id string, position int) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("call_%d", position)
}

func openAITools(specs []models.ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		props := make(map[string]any, len(spec.Params))
		required := []string{}
		for _, p := range spec.Params {
			prop := map[string]any{"type": "string"}
			if len(p.Enum) > 0 {
				prop["enum"] = p.Enum
			}
			props[p.Name] = prop
			if p.Required {
				required = append(required, p.Name)
			}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters: map[string]any{
					"type":       "object",
					"properties": props,
					"required":   required,
				},
			},
		})
	}
	return out
}
