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
	"sync"
	"time"
)

// Slot is a single-assignment cell holding the eventual result of one
// invocation. The first Resolve wins; later calls are ignored.
type Slot struct {
	id      string
	tool    string
	created time.Time

	once   sync.Once
	done   chan struct{}
	result *Result
}

func newSlot(id, tool string) *Slot {
	return &Slot{
		id:      id,
		tool:    tool,
		created: time.Now(),
		done:    make(chan struct{}),
	}
}

// ID returns the invocation identifier.
func (s *Slot) ID() string {
	return s.id
}

// Tool returns the name of the invoked tool.
func (s *Slot) Tool() string {
	return s.tool
}

// Resolve stores r and wakes all waiters. It reports whether this call
// performed the resolution.
func (s *Slot) Resolve(r *Result) bool {
	if r == nil {
		r = &Result{Segments: []string{}}
	}
	resolved := false
	s.once.Do(func() {
		s.result = r
		resolved = true
		close(s.done)
	})
	return resolved
}

// Done is closed once the slot is resolved.
func (s *Slot) Done() <-chan struct{} {
	return s.done
}

// Result returns the stored result without blocking.
func (s *Slot) Result() (*Result, bool) {
	select {
	case <-s.done:
		return s.result, true
	default:
		return nil, false
	}
}

// Wait blocks until the slot is resolved or ctx is done.
func (s *Slot) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-s.done:
		return s.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
