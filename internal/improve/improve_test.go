package improve

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/mend/internal/llm"
	"github.com/mpataki/mend/internal/models"
)

type stubProvider struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubProvider) Propose(context.Context, *models.Transcript, []models.ToolSpec) (*llm.Reply, error) {
	return nil, errors.New("not used")
}

func (s *stubProvider) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRewriteNoOpOnEmptyReply(t *testing.T) {
	for _, reply := range []string{"", "   \n  ", "```python\n\n```"} {
		dir := t.TempDir()
		path := filepath.Join(dir, "agent.md")
		require.NoError(t, os.WriteFile(path, []byte("the brief"), 0644))

		imp := New(&stubProvider{reply: reply}, discardLogger())
		rewrote, err := imp.Rewrite(context.Background(), path, "the brief", "budget exhausted")
		require.NoError(t, err)
		assert.False(t, rewrote)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "the brief", string(data))
	}
}

func TestRewriteWritesProposal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.md")
	require.NoError(t, os.WriteFile(path, []byte("old brief"), 0644))

	stub := &stubProvider{reply: "```\nnew brief\n```"}
	imp := New(stub, discardLogger())
	rewrote, err := imp.Rewrite(context.Background(), path, "old brief", "Failed to fix the code within 10 turns.")
	require.NoError(t, err)
	assert.True(t, rewrote)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new brief", string(data))

	require.Len(t, stub.prompts, 1)
	assert.Contains(t, stub.prompts[0], "old brief")
	assert.Contains(t, stub.prompts[0], "Failed to fix the code within 10 turns.")
}

func TestRewriteCreatesMissingBriefFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".mend", "agent.md")

	imp := New(&stubProvider{reply: "improved"}, discardLogger())
	rewrote, err := imp.Rewrite(context.Background(), path, "built-in default", "stuck")
	require.NoError(t, err)
	assert.True(t, rewrote)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "improved", string(data))
}

func TestRewriteKeepsFileOnRequestError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.md")
	require.NoError(t, os.WriteFile(path, []byte("the brief"), 0644))

	imp := New(&stubProvider{err: errors.New("boom")}, discardLogger())
	rewrote, err := imp.Rewrite(context.Background(), path, "the brief", "reason")
	require.Error(t, err)
	assert.False(t, rewrote)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "the brief", string(data))
}
