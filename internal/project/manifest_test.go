package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/mend/internal/models"
)

func writeManifest(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".mend"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".mend", name), []byte(body), 0644))
}

func TestParseManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "project.yaml", `
name: calculator
test_command: pytest -q
test_dir: tests/
entry_file: src/main.py
model: gemini-2.5-flash
max_turns: 6
`)

	p, err := Parse(filepath.Join(dir, ".mend", "project.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "calculator", p.Name)
	assert.Equal(t, "pytest -q", p.TestCommand)
	assert.Equal(t, "tests/", p.TestDir)
	assert.Equal(t, "src/main.py", p.EntryFile)
	assert.Equal(t, "gemini-2.5-flash", p.Model)
	assert.Equal(t, 6, p.MaxTurns)
}

func TestLoadMissingManifest(t *testing.T) {
	p, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLoadFindsYMLVariant(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "project.yml", "name: short\n")

	p, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "short", p.Name)
}

func TestLoadRejectsInvalidManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "project.yaml", "entry_file: ../../etc/passwd\n")

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry_file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		project models.Project
		wantErr string
	}{
		{"empty is fine", models.Project{}, ""},
		{"nested entry file", models.Project{EntryFile: "src/app/main.py"}, ""},
		{"negative turns", models.Project{MaxTurns: -1}, "max_turns"},
		{"absolute entry file", models.Project{EntryFile: "/etc/passwd"}, "relative"},
		{"escaping entry file", models.Project{EntryFile: "../sibling/main.py"}, "escape"},
		{"dotdot only", models.Project{EntryFile: ".."}, "escape"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.project)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
