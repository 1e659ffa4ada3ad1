package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/mpataki/mend/internal/models"
)

// runTestsTool shells out to the configured test command. Without a target
// it runs the whole suite directory.
type runTestsTool struct {
	dir     string
	command []string
	testDir string
}

func (t *runTestsTool) Spec() models.ToolSpec {
	return models.ToolSpec{
		Name:        "run_tests",
		Description: fmt.Sprintf("Run the %s test suite. Can run all tests or a specific targeted test.", t.name()),
		Params: []models.Param{
			{Name: "target_test", Type: models.ParamTypeString},
		},
	}
}

func (t *runTestsTool) name() string {
	if len(t.command) == 0 {
		return "pytest"
	}
	return t.command[0]
}

func (t *runTestsTool) Execute(ctx context.Context, args map[string]any) string {
	argv := append([]string{}, t.command...)
	if len(argv) == 0 {
		argv = []string{"pytest"}
	}
	if target, ok := args["target_test"].(string); ok && target != "" {
		argv = append(argv, target)
	} else if t.testDir != "" {
		argv = append(argv, t.testDir)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = t.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			exitCode = exitErr.ExitCode()
		case errors.Is(err, exec.ErrNotFound):
			return fmt.Sprintf("Error: '%s' command not found.", argv[0])
		default:
			return fmt.Sprintf("Error running tests: %v", err)
		}
	}
	return fmt.Sprintf("Return Code: %d\n---STDOUT---\n%s\n---STDERR---\n%s", exitCode, stdout.String(), stderr.String())
}
