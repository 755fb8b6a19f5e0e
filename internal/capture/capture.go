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

// Package capture redirects the textual output sinks seen by one invocation
// into private buffers. Sinks travel in a context.Context, so redirection is
// confined to the code running under that context and never touches the
// process-wide os.Stdout and os.Stderr.
package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// Sinks is the pair of writers an invocation prints to.
type Sinks struct {
	Stdout io.Writer
	Stderr io.Writer
}

type sinksKey struct{}

var (
	defaultsMu   sync.RWMutex
	defaultSinks = Sinks{Stdout: os.Stdout, Stderr: os.Stderr}
)

// SetDefault replaces the sinks returned for contexts that carry none.
// Nil writers are left unchanged.
func SetDefault(s Sinks) {
	defaultsMu.Lock()
	defer defaultsMu.Unlock()
	if s.Stdout != nil {
		defaultSinks.Stdout = s.Stdout
	}
	if s.Stderr != nil {
		defaultSinks.Stderr = s.Stderr
	}
}

// Default returns the process fallback sinks.
func Default() Sinks {
	defaultsMu.RLock()
	defer defaultsMu.RUnlock()
	return defaultSinks
}

// WithSinks returns a child context whose output goes to s.
func WithSinks(ctx context.Context, s Sinks) context.Context {
	current := FromContext(ctx)
	if s.Stdout == nil {
		s.Stdout = current.Stdout
	}
	if s.Stderr == nil {
		s.Stderr = current.Stderr
	}
	return context.WithValue(ctx, sinksKey{}, s)
}

// FromContext returns the sinks bound to ctx, or the defaults.
func FromContext(ctx context.Context) Sinks {
	if ctx != nil {
		if s, ok := ctx.Value(sinksKey{}).(Sinks); ok {
			return s
		}
	}
	return Default()
}

// Stdout returns the output sink bound to ctx.
func Stdout(ctx context.Context) io.Writer {
	return FromContext(ctx).Stdout
}

// Stderr returns the error sink bound to ctx.
func Stderr(ctx context.Context) io.Writer {
	return FromContext(ctx).Stderr
}

// Output is the outcome of a captured computation.
type Output[T any] struct {
	Value  T
	Err    error
	Stdout string
	Stderr string
}

// Captured exposes the value and text without the type parameter.
func (o Output[T]) Captured() (interface{}, string, string) {
	return o.Value, o.Stdout, o.Stderr
}

// Run executes fn with fresh private sinks and returns its value together
// with everything it printed. A panic in fn is reported through Output.Err.
// The sinks of ctx are not modified on any path.
func Run[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (out Output[T]) {
	if ctx == nil {
		ctx = context.Background()
	}
	stdout := &lockedBuffer{}
	stderr := &lockedBuffer{}
	defer func() {
		if rec := recover(); rec != nil {
			out.Err = fmt.Errorf("panic: %v", rec)
		}
		out.Stdout = stdout.String()
		out.Stderr = stderr.String()
	}()

	scoped := WithSinks(ctx, Sinks{Stdout: stdout, Stderr: stderr})
	out.Value, out.Err = fn(scoped)
	return out
}
