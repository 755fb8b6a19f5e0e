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
	"fmt"
	"strings"
)

// Result is the externally visible outcome of one invocation.
type Result struct {
	Segments []string
	IsError  bool
}

// TextResult returns a successful single-segment result.
func TextResult(text string) *Result {
	return &Result{Segments: []string{text}}
}

// TextResults returns a successful result with the given segments in order.
func TextResults(segments ...string) *Result {
	return &Result{Segments: append([]string{}, segments...)}
}

// ErrorResult returns an error-shaped result carrying err's message.
func ErrorResult(err error) *Result {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &Result{Segments: []string{"Error: " + msg}, IsError: true}
}

// FailureResult returns an error-shaped result without the fault prefix,
// for handlers that report a logical failure themselves.
func FailureResult(text string) *Result {
	return &Result{Segments: []string{text}, IsError: true}
}

// Text joins all segments with newlines.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	return strings.Join(r.Segments, "\n")
}

func (r *Result) String() string {
	if r == nil {
		return "<nil>"
	}
	if r.IsError {
		return fmt.Sprintf("error: %s", r.Text())
	}
	return r.Text()
}
