package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/mpataki/mend/internal/models"
)

func sampleTranscript() *models.Transcript {
	tr := models.NewTranscript("fix the project")
	tr.AppendProposal("checking the file", &models.Action{
		ID:   "c1",
		Tool: "read_file",
		Args: map[string]any{"file_path": "app.py"},
	})
	tr.AppendResult(models.Result{CallID: "c1", Tool: "read_file", Content: "def f(): pass"})
	tr.AppendProposal("", &models.Action{ID: "c2", Tool: "write_file", Args: map[string]any{"file_path": "app.py"}})
	tr.AppendResult(models.Result{CallID: "c2", Tool: "write_file", Content: "Invalid arguments: missing content", IsError: true})
	return tr
}

func TestGeminiContentsMapsTranscript(t *testing.T) {
	contents := geminiContents(sampleTranscript())
	require.Len(t, contents, 5)

	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, "fix the project", contents[0].Parts[0].Text)

	assert.Equal(t, genai.RoleModel, contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	assert.Equal(t, "checking the file", contents[1].Parts[0].Text)
	call := contents[1].Parts[1].FunctionCall
	require.NotNil(t, call)
	assert.Equal(t, "read_file", call.Name)
	assert.Equal(t, "c1", call.ID)
	assert.Equal(t, map[string]any{"file_path": "app.py"}, call.Args)

	assert.Equal(t, genai.RoleUser, contents[2].Role)
	resp := contents[2].Parts[0].FunctionResponse
	require.NotNil(t, resp)
	assert.Equal(t, "read_file", resp.Name)
	assert.Equal(t, "c1", resp.ID)
	assert.Equal(t, map[string]any{"result": "def f(): pass"}, resp.Response)

	// Rejected calls fold back under an error key.
	errResp := contents[4].Parts[0].FunctionResponse
	require.NotNil(t, errResp)
	assert.Equal(t, map[string]any{"error": "Invalid arguments: missing content"}, errResp.Response)
}

func TestGeminiToolsDeclarations(t *testing.T) {
	specs := []models.ToolSpec{
		{
			Name:        "finish",
			Description: "Signal completion.",
			Params: []models.Param{
				{Name: "status", Type: models.ParamTypeString, Required: true, Enum: []string{"SUCCESS", "FAILURE"}},
				{Name: "message", Type: models.ParamTypeString, Required: true},
			},
		},
		{
			Name:   "run_tests",
			Params: []models.Param{{Name: "target_test", Type: models.ParamTypeString}},
		},
	}

	tools := geminiTools(specs)
	require.Len(t, tools, 1)
	require.Len(t, tools[0].FunctionDeclarations, 2)

	finish := tools[0].FunctionDeclarations[0]
	assert.Equal(t, "finish", finish.Name)
	assert.Equal(t, []string{"status", "message"}, finish.Parameters.Required)
	assert.Equal(t, []string{"SUCCESS", "FAILURE"}, finish.Parameters.Properties["status"].Enum)

	runTests := tools[0].FunctionDeclarations[1]
	assert.Empty(t, runTests.Parameters.Required)
	assert.Contains(t, runTests.Parameters.Properties, "target_test")
}

func TestGeminiReplyPicksFirstFunctionCall(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: genai.RoleModel,
				Parts: []*genai.Part{
					{Text: "Running the suite. "},
					{FunctionCall: &genai.FunctionCall{ID: "c9", Name: "run_tests", Args: map[string]any{}}},
					{FunctionCall: &genai.FunctionCall{Name: "read_file", Args: map[string]any{}}},
				},
			},
		}},
	}

	reply := geminiReply(resp)
	require.NotNil(t, reply.Action)
	assert.Equal(t, "run_tests", reply.Action.Tool)
	assert.Equal(t, "c9", reply.Action.ID)
	assert.Equal(t, "Running the suite. ", reply.Text)
}

func TestGeminiReplyWithoutAction(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: "I am not sure."}},
			},
		}},
	}

	reply := geminiReply(resp)
	assert.Nil(t, reply.Action)
	assert.Equal(t, "I am not sure.", reply.Text)

	empty := geminiReply(&genai.GenerateContentResponse{})
	assert.Nil(t, empty.Action)
	assert.Empty(t, empty.Text)
}
