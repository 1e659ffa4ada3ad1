package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/mend/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStorage(t)

	id, err := s.CreateRun(&models.Run{
		ProjectDir: "/tmp/project",
		Model:      "gemini-2.5-pro",
		Status:     models.RunStatusPending,
	})
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	run, err := s.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/project", run.ProjectDir)
	assert.Equal(t, "gemini-2.5-pro", run.Model)
	assert.Equal(t, models.RunStatusPending, run.Status)
	assert.Nil(t, run.CompletedAt)
	assert.WithinDuration(t, time.Now(), run.CreatedAt, time.Minute)

	now := time.Now().UTC().Truncate(time.Second)
	run.Status = models.RunStatusSucceeded
	run.CompletedAt = &now
	run.Turns = 3
	run.Message = "All tests pass."
	require.NoError(t, s.UpdateRun(run))

	got, err := s.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, now, *got.CompletedAt, time.Second)
	assert.Equal(t, 3, got.Turns)
	assert.Equal(t, "All tests pass.", got.Message)
}

func TestGetMissingRun(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetRun(42)
	assert.Error(t, err)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newTestStorage(t)

	var ids []int64
	for _, model := range []string{"a", "b", "c"} {
		id, err := s.CreateRun(&models.Run{ProjectDir: "/p", Model: model, Status: models.RunStatusPending})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := s.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestToolCallAudit(t *testing.T) {
	s := newTestStorage(t)

	runID, err := s.CreateRun(&models.Run{ProjectDir: "/p", Model: "m", Status: models.RunStatusRunning})
	require.NoError(t, err)

	_, err = s.CreateToolCall(&models.ToolCall{
		RunID:     runID,
		Turn:      1,
		Tool:      "read_file",
		Arguments: `{"file_path":"main.py"}`,
		Result:    "print('hi')",
	})
	require.NoError(t, err)

	_, err = s.CreateToolCall(&models.ToolCall{
		RunID:     runID,
		Turn:      2,
		Tool:      "write_file",
		Arguments: `{"file_path":"main.py","content":"x"}`,
		Result:    "Error writing file: permission denied",
		IsError:   true,
	})
	require.NoError(t, err)

	calls, err := s.ListToolCalls(runID)
	require.NoError(t, err)
	require.Len(t, calls, 2)

	assert.Equal(t, 1, calls[0].Turn)
	assert.Equal(t, "read_file", calls[0].Tool)
	assert.Equal(t, `{"file_path":"main.py"}`, calls[0].Arguments)
	assert.Equal(t, "print('hi')", calls[0].Result)
	assert.False(t, calls[0].IsError)

	assert.Equal(t, 2, calls[1].Turn)
	assert.True(t, calls[1].IsError)
	assert.WithinDuration(t, time.Now(), calls[1].CreatedAt, time.Minute)
}

func TestDeleteRunRemovesToolCalls(t *testing.T) {
	s := newTestStorage(t)

	runID, err := s.CreateRun(&models.Run{ProjectDir: "/p", Model: "m", Status: models.RunStatusFailed})
	require.NoError(t, err)
	_, err = s.CreateToolCall(&models.ToolCall{RunID: runID, Turn: 1, Tool: "run_tests", Arguments: "{}", Result: "ok"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteRun(runID))

	_, err = s.GetRun(runID)
	assert.Error(t, err)

	calls, err := s.ListToolCalls(runID)
	require.NoError(t, err)
	assert.Empty(t, calls)
}
