// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

type entry struct {
	descriptor Descriptor
	handler    Handler
}

// Registry holds the registered tools and forwards invocations to a Bridge.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]entry
	order  []string
	bridge *Bridge
	logger zerolog.Logger
}

// NewRegistry creates an empty registry dispatching through bridge. A nil
// bridge gets an unbounded bridge without timeouts.
func NewRegistry(bridge *Bridge, logger zerolog.Logger) *Registry {
	if bridge == nil {
		bridge = NewBridge(BridgeOptions{Logger: logger})
	}
	return &Registry{
		tools:  make(map[string]entry),
		bridge: bridge,
		logger: logger.With().Str("component", "registry").Logger(),
	}
}

// NewDefaultRegistry creates a registry with all built-in tools registered.
func NewDefaultRegistry(bridge *Bridge, logger zerolog.Logger, opts BuiltinOptions) (*Registry, error) {
	r := NewRegistry(bridge, logger)
	if err := RegisterBuiltins(r, opts); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds a tool. Names must be unique within the registry.
func (r *Registry) Register(desc Descriptor, h Handler) error {
	if strings.TrimSpace(desc.Name) == "" {
		return fmt.Errorf("%w: tool name cannot be empty", ErrInvalidArguments)
	}
	if h == nil {
		return fmt.Errorf("%w: tool %s has no handler", ErrInvalidArguments, desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[desc.Name]; exists {
		return NewDuplicateToolError(desc.Name)
	}
	desc.InputSchema = cloneSchema(desc.InputSchema)
	r.tools[desc.Name] = entry{descriptor: desc, handler: h}
	r.order = append(r.order, desc.Name)
	r.logger.Debug().Str("tool", desc.Name).Msg("registered tool")
	return nil
}

// RegisterTool adds a descriptor/handler pair.
func (r *Registry) RegisterTool(tool Tool) error {
	return r.Register(tool.Descriptor, tool.Handler)
}

// Dispatch starts an invocation and returns its slot without waiting for
// the handler. Unknown names fail before any goroutine is started.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]interface{}) (*Slot, error) {
	e, ok := r.getTool(name)
	if !ok {
		return nil, NewUnknownToolError(name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return r.bridge.Schedule(ctx, name, e.handler, args), nil
}

// Execute dispatches and waits for the result. Dispatch failures and
// context cancellation are reported as error results.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) *Result {
	if ctx == nil {
		ctx = context.Background()
	}
	slot, err := r.Dispatch(ctx, name, args)
	if err != nil {
		return ErrorResult(fmt.Errorf("%v (available tools: %s)", err, strings.Join(r.Names(), ", ")))
	}
	result, err := slot.Wait(ctx)
	if err != nil {
		return ErrorResult(err)
	}
	return result
}

// ExecuteOpenAIToolCall runs a tool call in the shape chat completion
// clients produce, with arguments as a JSON object string.
func (r *Registry) ExecuteOpenAIToolCall(ctx context.Context, call openai.ToolCall) *Result {
	if strings.TrimSpace(call.Function.Name) == "" {
		return ErrorResult(fmt.Errorf("%w: tool call has no function name", ErrInvalidArguments))
	}
	args := map[string]interface{}{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return ErrorResult(fmt.Errorf("%w: %v", ErrInvalidArguments, err))
		}
	}
	return r.Execute(ctx, call.Function.Name, args)
}

// Descriptor returns the descriptor registered under name.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	e, ok := r.getTool(name)
	if !ok {
		return Descriptor{}, false
	}
	d := e.descriptor
	d.InputSchema = cloneSchema(d.InputSchema)
	return d, true
}

// Descriptors returns all descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		d := r.tools[name].descriptor
		d.InputSchema = cloneSchema(d.InputSchema)
		out = append(out, d)
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Bridge returns the bridge used for dispatch.
func (r *Registry) Bridge() *Bridge {
	return r.bridge
}

// OpenAITools returns the registry as OpenAI tool definitions.
func (r *Registry) OpenAITools() []openai.Tool {
	descs := r.Descriptors()
	defs := make([]openai.Tool, 0, len(descs))
	for _, d := range descs {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.InputSchema,
			},
		})
	}
	return defs
}

// getTool safely retrieves a tool entry.
func (r *Registry) getTool(name string) (entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	return e, ok
}
