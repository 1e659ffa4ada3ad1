package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return Default(Config{TestCommand: []string{"pytest"}, TestDir: "test_suite"})
}

func TestDefaultAdvertisesFixedToolSet(t *testing.T) {
	r := testRegistry()

	var names []string
	for _, s := range r.Specs() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"read_file", "write_file", "run_tests", "finish"}, names)

	// The set must not change between calls.
	assert.Equal(t, r.Specs(), r.Specs())
}

func TestDispatchUnknownTool(t *testing.T) {
	r := testRegistry()

	_, err := r.Dispatch(context.Background(), "deploy", map[string]any{})

	var unknown *UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "deploy", unknown.Name)
}

func TestDispatchValidatesArguments(t *testing.T) {
	r := testRegistry()

	cases := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"missing required", "write_file", map[string]any{"file_path": "x"}, `missing required parameter "content"`},
		{"unexpected key", "read_file", map[string]any{"file_path": "x", "mode": "r"}, `unexpected parameter "mode"`},
		{"wrong type", "read_file", map[string]any{"file_path": 42}, `parameter "file_path" must be a string`},
		{"enum violation", "finish", map[string]any{"status": "MAYBE", "message": "m"}, `parameter "status" must be one of [SUCCESS FAILURE]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Dispatch(context.Background(), tc.tool, tc.args)

			var invalid *InvalidArgumentsError
			require.ErrorAs(t, err, &invalid)
			assert.Contains(t, invalid.Error(), tc.want)
		})
	}
}

func TestDispatchAllowsOmittedOptionalParam(t *testing.T) {
	r := NewRegistry()
	r.Register(&runTestsTool{command: []string{"sh", "-c"}, testDir: "exit 0"})

	out, err := r.Dispatch(context.Background(), "run_tests", map[string]any{})

	require.NoError(t, err)
	assert.Contains(t, out, "Return Code: 0")
}
