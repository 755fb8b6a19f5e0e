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

// Package eval implements the small s-expression language behind the
// evaluate tool.
package eval

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is any runtime value: nil, bool, int64, float64, string, Keyword,
// Symbol, List, Vector or a callable.
type Value interface{}

// Symbol names a binding.
type Symbol string

// Keyword is a self-evaluating name such as :ok.
type Keyword string

// List is a parenthesised sequence.
type List []Value

// Vector is a bracketed sequence.
type Vector []Value

// Callable is implemented by builtins and user functions.
type Callable interface {
	Name() string
	Call(in *interp, args []Value) (Value, error)
}

// Display renders v in its readable form: strings are quoted and nil is
// printed as nil.
func Display(v Value) string {
	var b strings.Builder
	writeValue(&b, v, true)
	return b.String()
}

// Text renders v the way str and println do: strings are unquoted and nil
// is empty.
func Text(v Value) string {
	if v == nil {
		return ""
	}
	var b strings.Builder
	writeValue(&b, v, false)
	return b.String()
}

func writeValue(b *strings.Builder, v Value, readable bool) {
	switch val := v.(type) {
	case nil:
		b.WriteString("nil")
	case bool:
		b.WriteString(strconv.FormatBool(val))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case float64:
		b.WriteString(formatFloat(val))
	case string:
		if readable {
			b.WriteString(strconv.Quote(val))
		} else {
			b.WriteString(val)
		}
	case Keyword:
		b.WriteString(":")
		b.WriteString(string(val))
	case Symbol:
		b.WriteString(string(val))
	case List:
		writeSeq(b, "(", ")", val, readable)
	case Vector:
		writeSeq(b, "[", "]", val, readable)
	case Callable:
		fmt.Fprintf(b, "#<fn %s>", val.Name())
	default:
		fmt.Fprintf(b, "%v", val)
	}
}

func writeSeq(b *strings.Builder, open, close string, items []Value, readable bool) {
	b.WriteString(open)
	for i, item := range items {
		if i > 0 {
			b.WriteByte(' ')
		}
		writeValue(b, item, readable)
	}
	b.WriteString(close)
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func truthy(v Value) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}

func typeName(v Value) string {
	switch v.(type) {
	case nil:
		return "nil"
	case bool:
		return "boolean"
	case int64:
		return "integer"
	case float64:
		return "float"
	case string:
		return "string"
	case Keyword:
		return "keyword"
	case Symbol:
		return "symbol"
	case List:
		return "list"
	case Vector:
		return "vector"
	case Callable:
		return "function"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func seqItems(v Value) ([]Value, bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case List:
		return val, true
	case Vector:
		return val, true
	default:
		return nil, false
	}
}

func equal(a, b Value) bool {
	if as, ok := seqItems(a); ok && a != nil {
		bs, ok := seqItems(b)
		if !ok || b == nil || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	switch av := a.(type) {
	case Callable:
		bv, ok := b.(Callable)
		return ok && av == bv
	default:
		return a == b
	}
}
