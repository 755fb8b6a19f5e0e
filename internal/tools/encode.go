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

import "fmt"

// captured is implemented by capture.Output.
type captured interface {
	Captured() (value interface{}, stdout, stderr string)
}

// Encode turns a handler outcome into a Result. Captured stdout and stderr
// are dropped; handlers that want them surfaced build a *Result themselves.
func Encode(value interface{}, err error) *Result {
	if err != nil {
		return ErrorResult(err)
	}
	switch v := value.(type) {
	case nil:
		return &Result{Segments: []string{}}
	case *Result:
		if v == nil {
			return &Result{Segments: []string{}}
		}
		return v
	case Result:
		return &v
	case captured:
		inner, _, _ := v.Captured()
		return &Result{Segments: []string{display(inner)}}
	default:
		return &Result{Segments: []string{display(v)}}
	}
}

func display(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case error:
		return val.Error()
	default:
		return fmt.Sprint(val)
	}
}
