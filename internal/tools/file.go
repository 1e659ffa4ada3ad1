package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mpataki/mend/internal/models"
)

// resolve roots model-supplied relative paths at the project dir. Absolute
// paths are taken as given.
func resolve(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

type readFileTool struct {
	dir string
}

func (t *readFileTool) Spec() models.ToolSpec {
	return models.ToolSpec{
		Name:        "read_file",
		Description: "Read the contents of a file at a given path.",
		Params: []models.Param{
			{Name: "file_path", Type: models.ParamTypeString, Required: true},
		},
	}
}

func (t *readFileTool) Execute(_ context.Context, args map[string]any) string {
	path, _ := args["file_path"].(string)
	data, err := os.ReadFile(resolve(t.dir, path))
	if err != nil {
		return fmt.Sprintf("Error reading file: %v", err)
	}
	return string(data)
}

type writeFileTool struct {
	dir string
}

func (t *writeFileTool) Spec() models.ToolSpec {
	return models.ToolSpec{
		Name:        "write_file",
		Description: "Write content to a file at a given path.",
		Params: []models.Param{
			{Name: "file_path", Type: models.ParamTypeString, Required: true},
			{Name: "content", Type: models.ParamTypeString, Required: true},
		},
	}
}

func (t *writeFileTool) Execute(_ context.Context, args map[string]any) string {
	path, _ := args["file_path"].(string)
	content, _ := args["content"].(string)
	if err := os.WriteFile(resolve(t.dir, path), []byte(content), 0644); err != nil {
		return fmt.Sprintf("Error writing file: %v", err)
	}
	return "File written successfully."
}
