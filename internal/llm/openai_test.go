package llm

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/mend/internal/models"
)

func TestOpenAIMessagesPairsToolCalls(t *testing.T) {
	msgs := openAIMessages(sampleTranscript())
	require.Len(t, msgs, 5)

	assert.Equal(t, openai.ChatMessageRoleUser, msgs[0].Role)
	assert.Equal(t, "fix the project", msgs[0].Content)

	assert.Equal(t, openai.ChatMessageRoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, "c1", msgs[1].ToolCalls[0].ID)
	assert.Equal(t, "read_file", msgs[1].ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"file_path":"app.py"}`, msgs[1].ToolCalls[0].Function.Arguments)

	assert.Equal(t, openai.ChatMessageRoleTool, msgs[2].Role)
	assert.Equal(t, "c1", msgs[2].ToolCallID)
	assert.Equal(t, "def f(): pass", msgs[2].Content)

	// The rejected call still answers its own call id.
	assert.Equal(t, "c2", msgs[4].ToolCallID)
	assert.Equal(t, "Invalid arguments: missing content", msgs[4].Content)
}

func TestOpenAIMessagesSynthesizesMissingIDs(t *testing.T) {
	tr := models.NewTranscript("brief")
	tr.AppendProposal("", &models.Action{Tool: "run_tests", Args: map[string]any{}})
	tr.AppendResult(models.Result{Tool: "run_tests", Content: "Return Code: 0"})

	msgs := openAIMessages(tr)
	require.Len(t, msgs, 3)
	assert.NotEmpty(t, msgs[1].ToolCalls[0].ID)
	assert.Equal(t, msgs[1].ToolCalls[0].ID, msgs[2].ToolCallID)
}

func TestOpenAIToolsSchema(t *testing.T) {
	specs := []models.ToolSpec{{
		Name:        "finish",
		Description: "Signal completion.",
		Params: []models.Param{
			{Name: "status", Type: models.ParamTypeString, Required: true, Enum: []string{"SUCCESS", "FAILURE"}},
			{Name: "message", Type: models.ParamTypeString, Required: true},
		},
	}}

	tools := openAITools(specs)
	require.Len(t, tools, 1)
	assert.Equal(t, openai.ToolTypeFunction, tools[0].Type)
	assert.Equal(t, "finish", tools[0].Function.Name)

	params, ok := tools[0].Function.Parameters.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", params["type"])
	assert.ElementsMatch(t, []string{"status", "message"}, params["required"])

	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	status, ok := props["status"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"SUCCESS", "FAILURE"}, status["enum"])
}
