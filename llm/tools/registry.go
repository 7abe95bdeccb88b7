package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/metrics"
)

// DefaultTimeout bounds a single tool call when Options.Timeout is unset.
const DefaultTimeout = 60 * time.Second

// Options configures a Registry.
type Options struct {
	// Owner labels metrics and logs, normally the agent name.
	Owner   string
	Timeout time.Duration
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

type entry struct {
	tool   Tool
	schema *gojsonschema.Schema
}

// Registry holds an ordered tool list and dispatches calls to it.
type Registry struct {
	opts    Options
	tools   map[string]entry
	ordered []Tool
}

// NewRegistry creates a new tool registry
func NewRegistry(opts Options) *Registry {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Registry{opts: opts, tools: make(map[string]entry)}
}

// Register adds tools in order. Names must be unique and schemas must compile.
func (r *Registry) Register(tools ...Tool) error {
	for _, tool := range tools {
		if _, exists := r.tools[tool.Name()]; exists {
			return fmt.Errorf("tool already registered: %s", tool.Name())
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(tool.Schema()))
		if err != nil {
			return fmt.Errorf("compile schema for %s: %w", tool.Name(), err)
		}
		r.tools[tool.Name()] = entry{tool: tool, schema: schema}
		r.ordered = append(r.ordered, tool)
	}
	return nil
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, error) {
	e, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return e.tool, nil
}

// List returns the tools in registration order.
func (r *Registry) List() []Tool {
	out := make([]Tool, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Owner returns the registry owner.
func (r *Registry) Owner() string { return r.opts.Owner }

// Execute validates the arguments, then runs the tool under the registry
// timeout. Only an unknown tool name is returned as an error; every other
// failure is a result with Success false.
func (r *Registry) Execute(ctx context.Context, input *ToolInput) (*ToolResult, error) {
	e, exists := r.tools[input.Name]
	if !exists {
		return nil, fmt.Errorf("tool not found: %s", input.Name)
	}

	start := time.Now()
	result := r.run(ctx, e, input)
	result.Stats.ExecutionTime = time.Since(start)

	r.opts.Metrics.ObserveTool(r.opts.Owner, input.Name, result.Success, result.Stats.ExecutionTime)
	evt := r.opts.Logger.Debug()
	if !result.Success {
		evt = r.opts.Logger.Warn().Str("error", result.Error)
	}
	evt.Str("agent", r.opts.Owner).
		Str("tool", input.Name).
		Dur("duration", result.Stats.ExecutionTime).
		Msg("Tool executed")
	return result, nil
}

type outcome struct {
	result *ToolResult
	err    error
}

func (r *Registry) run(ctx context.Context, e entry, input *ToolInput) *ToolResult {
	args := withDefaults(e.tool.Schema(), input.Data)
	if msg := validate(e.schema, args); msg != "" {
		return Failure("invalid arguments: " + msg)
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		res, err := e.tool.Execute(ctx, &ToolInput{Name: input.Name, Data: args, CallID: input.CallID})
		done <- outcome{result: res, err: err}
	}()

	select {
	case o := <-done:
		switch {
		case o.err != nil:
			return Failure(o.err.Error())
		case o.result == nil:
			return Failure("tool returned no result")
		}
		return o.result
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return Failure(fmt.Sprintf("tool %s timed out after %s", input.Name, r.opts.Timeout))
		}
		return Failure(ctx.Err().Error())
	}
}

// withDefaults copies data and fills absent top-level properties from
// their schema defaults.
func withDefaults(schema map[string]any, data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	props, _ := schema["properties"].(map[string]any)
	for name, raw := range props {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if def, ok := prop["default"]; ok {
			if _, set := out[name]; !set {
				out[name] = def
			}
		}
	}
	return out
}

func validate(schema *gojsonschema.Schema, args map[string]any) string {
	res, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err.Error()
	}
	if res.Valid() {
		return ""
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return strings.Join(msgs, "; ")
}
