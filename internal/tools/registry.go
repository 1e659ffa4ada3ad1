package tools

import (
	"context"
	"fmt"

	"github.com/mpataki/mend/internal/models"
)

// Tool pairs a spec with its handler. Handlers never return errors: anything
// that goes wrong while executing comes back as result text the model can
// read and react to.
type Tool interface {
	Spec() models.ToolSpec
	Execute(ctx context.Context, args map[string]any) string
}

type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

type InvalidArgumentsError struct {
	Tool   string
	Reason string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("%s: %s", e.Tool, e.Reason)
}

// Registry maps tool names to handlers and validates untrusted arguments
// before any handler runs.
type Registry struct {
	order []string
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	name := t.Spec().Name
	if _, ok := r.tools[name]; !ok {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Specs returns the advertised tool set in registration order.
func (r *Registry) Specs() []models.ToolSpec {
	specs := make([]models.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

// Dispatch validates args against the tool's spec, then executes it.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", &UnknownToolError{Name: name}
	}
	if err := validateArgs(t.Spec(), args); err != nil {
		return "", err
	}
	return t.Execute(ctx, args), nil
}

func validateArgs(spec models.ToolSpec, args map[string]any) error {
	for _, p := range spec.Params {
		v, ok := args[p.Name]
		if !ok {
			if p.Required {
				return &InvalidArgumentsError{Tool: spec.Name, Reason: fmt.Sprintf("missing required parameter %q", p.Name)}
			}
			continue
		}
		s, ok := v.(string)
		if !ok {
			return &InvalidArgumentsError{Tool: spec.Name, Reason: fmt.Sprintf("parameter %q must be a string", p.Name)}
		}
		if len(p.Enum) > 0 && !contains(p.Enum, s) {
			return &InvalidArgumentsError{Tool: spec.Name, Reason: fmt.Sprintf("parameter %q must be one of %v", p.Name, p.Enum)}
		}
	}
	for name := range args {
		if _, ok := spec.Param(name); !ok {
			return &InvalidArgumentsError{Tool: spec.Name, Reason: fmt.Sprintf("unexpected parameter %q", name)}
		}
	}
	return nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// Config carries what the built-in tools need. Dir roots relative paths and
// the test subprocess at the project; empty means the process working dir.
type Config struct {
	Dir         string
	TestCommand []string
	TestDir     string
}

// Default builds the fixed tool set the agent runs with.
func Default(cfg Config) *Registry {
	r := NewRegistry()
	r.Register(&readFileTool{dir: cfg.Dir})
	r.Register(&writeFileTool{dir: cfg.Dir})
	r.Register(&runTestsTool{dir: cfg.Dir, command: cfg.TestCommand, testDir: cfg.TestDir})
	r.Register(&finishTool{})
	return r
}
