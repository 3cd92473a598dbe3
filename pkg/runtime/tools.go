package runtime

import (
	"context"
	"sort"
	"sync"
)

// Tool is an executable capability agents invoke through InvokeTool
// decisions. Run receives the decision's parameters and returns an
// arbitrary serializable result.
type Tool interface {
	Name() string
	Run(ctx context.Context, params map[string]any) (any, error)
}

// ToolFunc adapts a function to the Tool interface.
type ToolFunc struct {
	ToolName string
	Fn       func(ctx context.Context, params map[string]any) (any, error)
}

func (t ToolFunc) Name() string { return t.ToolName }

func (t ToolFunc) Run(ctx context.Context, params map[string]any) (any, error) {
	return t.Fn(ctx, params)
}

// ToolRegistry maps tool names to Tool instances for the executor.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool under its name, replacing any existing entry.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns the tool registered under name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns all registered tool names in sorted order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
