package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mpataki/mend/internal/models"
	"gopkg.in/yaml.v3"
)

func Parse(path string) (*models.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project manifest: %w", err)
	}

	var p models.Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse project YAML: %w", err)
	}

	return &p, nil
}

// Load looks for a manifest under dir/.mend. A missing manifest is not an
// error; callers fall back to global config.
func Load(dir string) (*models.Project, error) {
	for _, name := range []string{"project.yaml", "project.yml"} {
		path := filepath.Join(dir, ".mend", name)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		p, err := Parse(path)
		if err != nil {
			return nil, err
		}
		if err := Validate(p); err != nil {
			return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
		}
		return p, nil
	}

	return nil, nil
}

func Validate(p *models.Project) error {
	if p.MaxTurns < 0 {
		return fmt.Errorf("max_turns must not be negative")
	}

	if p.EntryFile != "" {
		if filepath.IsAbs(p.EntryFile) {
			return fmt.Errorf("entry_file must be relative to the project root")
		}
		clean := filepath.Clean(p.EntryFile)
		if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return fmt.Errorf("entry_file must not escape the project root")
		}
	}

	return nil
}
