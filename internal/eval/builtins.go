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

package eval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"toolbridge/internal/capture"
)

// ErrDivideByZero is returned by / and mod with a zero divisor.
var ErrDivideByZero = errors.New("divide by zero")

// ErrIntegerOverflow is returned when integer arithmetic leaves the int64 range.
var ErrIntegerOverflow = errors.New("integer overflow")

// MaxRangeLength caps the number of elements range produces.
const MaxRangeLength = 1 << 20

type builtin struct {
	name string
	fn   func(in *interp, args []Value) (Value, error)
}

func (b *builtin) Name() string {
	return b.name
}

func (b *builtin) Call(in *interp, args []Value) (Value, error) {
	return b.fn(in, args)
}

var builtins map[string]*builtin

func init() {
	builtins = make(map[string]*builtin)
	def := func(name string, fn func(in *interp, args []Value) (Value, error)) {
		builtins[name] = &builtin{name: name, fn: fn}
	}

	def("+", func(in *interp, args []Value) (Value, error) { return foldArith("+", args, 0) })
	def("*", func(in *interp, args []Value) (Value, error) { return foldArith("*", args, 1) })
	def("-", func(in *interp, args []Value) (Value, error) {
		if len(args) == 0 {
			return nil, arityError("-", 0)
		}
		if len(args) == 1 {
			return arith("-", int64(0), args[0])
		}
		return foldArith("-", args, nil)
	})
	def("/", func(in *interp, args []Value) (Value, error) {
		if len(args) == 0 {
			return nil, arityError("/", 0)
		}
		if len(args) == 1 {
			return arith("/", int64(1), args[0])
		}
		return foldArith("/", args, nil)
	})
	def("mod", func(in *interp, args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, arityError("mod", len(args))
		}
		a, aok := args[0].(int64)
		b, bok := args[1].(int64)
		if !aok || !bok {
			return nil, fmt.Errorf("mod expects integers, got %s and %s", typeName(args[0]), typeName(args[1]))
		}
		if b == 0 {
			return nil, ErrDivideByZero
		}
		r := a % b
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
		return r, nil
	})
	def("inc", func(in *interp, args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, arityError("inc", len(args))
		}
		return arith("+", args[0], int64(1))
	})
	def("dec", func(in *interp, args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, arityError("dec", len(args))
		}
		return arith("-", args[0], int64(1))
	})
	def("max", func(in *interp, args []Value) (Value, error) { return extreme("max", args, 1) })
	def("min", func(in *interp, args []Value) (Value, error) { return extreme("min", args, -1) })

	def("=", func(in *interp, args []Value) (Value, error) {
		if len(args) == 0 {
			return nil, arityError("=", 0)
		}
		for i := 1; i < len(args); i++ {
			if !equal(args[0], args[i]) {
				return false, nil
			}
		}
		return true, nil
	})
	def("not=", func(in *interp, args []Value) (Value, error) {
		v, err := builtins["="].fn(in, args)
		if err != nil {
			return nil, err
		}
		return !v.(bool), nil
	})
	def("<", compareChain("<", func(c int) bool { return c < 0 }))
	def(">", compareChain(">", func(c int) bool { return c > 0 }))
	def("<=", compareChain("<=", func(c int) bool { return c <= 0 }))
	def(">=", compareChain(">=", func(c int) bool { return c >= 0 }))
	def("not", func(in *interp, args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, arityError("not", len(args))
		}
		return !truthy(args[0]), nil
	})
	def("nil?", func(in *interp, args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, arityError("nil?", len(args))
		}
		return args[0] == nil, nil
	})

	def("str", func(in *interp, args []Value) (Value, error) {
		var b strings.Builder
		for _, arg := range args {
			b.WriteString(Text(arg))
		}
		return b.String(), nil
	})

	def("list", func(in *interp, args []Value) (Value, error) {
		return List(append([]Value{}, args...)), nil
	})
	def("vector", func(in *interp, args []Value) (Value, error) {
		return Vector(append([]Value{}, args...)), nil
	})
	def("count", func(in *interp, args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, arityError("count", len(args))
		}
		if s, ok := args[0].(string); ok {
			return int64(len([]rune(s))), nil
		}
		items, err := sequence("count", args[0])
		if err != nil {
			return nil, err
		}
		return int64(len(items)), nil
	})
	def("empty?", func(in *interp, args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, arityError("empty?", len(args))
		}
		if s, ok := args[0].(string); ok {
			return s == "", nil
		}
		items, err := sequence("empty?", args[0])
		if err != nil {
			return nil, err
		}
		return len(items) == 0, nil
	})
	def("first", func(in *interp, args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, arityError("first", len(args))
		}
		items, err := sequence("first", args[0])
		if err != nil || len(items) == 0 {
			return nil, err
		}
		return items[0], nil
	})
	def("rest", func(in *interp, args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, arityError("rest", len(args))
		}
		items, err := sequence("rest", args[0])
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return List{}, nil
		}
		return List(append([]Value{}, items[1:]...)), nil
	})
	def("nth", func(in *interp, args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, arityError("nth", len(args))
		}
		items, err := sequence("nth", args[0])
		if err != nil {
			return nil, err
		}
		idx, ok := args[1].(int64)
		if !ok {
			return nil, fmt.Errorf("nth index must be an integer, got %s", typeName(args[1]))
		}
		if idx < 0 || idx >= int64(len(items)) {
			return nil, fmt.Errorf("index %d out of bounds", idx)
		}
		return items[idx], nil
	})
	def("cons", func(in *interp, args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, arityError("cons", len(args))
		}
		items, err := sequence("cons", args[1])
		if err != nil {
			return nil, err
		}
		return append(List{args[0]}, items...), nil
	})
	def("conj", func(in *interp, args []Value) (Value, error) {
		if len(args) < 1 {
			return nil, arityError("conj", len(args))
		}
		switch coll := args[0].(type) {
		case nil:
			out := List{}
			for _, v := range args[1:] {
				out = append(List{v}, out...)
			}
			return out, nil
		case Vector:
			return append(append(Vector{}, coll...), args[1:]...), nil
		case List:
			out := append(List{}, coll...)
			for _, v := range args[1:] {
				out = append(List{v}, out...)
			}
			return out, nil
		default:
			return nil, fmt.Errorf("conj expects a collection, got %s", typeName(args[0]))
		}
	})
	def("range", func(in *interp, args []Value) (Value, error) {
		var start, end int64
		switch len(args) {
		case 1:
			n, ok := args[0].(int64)
			if !ok {
				return nil, fmt.Errorf("range expects integers")
			}
			end = n
		case 2:
			a, aok := args[0].(int64)
			b, bok := args[1].(int64)
			if !aok || !bok {
				return nil, fmt.Errorf("range expects integers")
			}
			start, end = a, b
		default:
			return nil, arityError("range", len(args))
		}
		if end <= start {
			return List{}, nil
		}
		if uint64(end-start) > MaxRangeLength {
			return nil, fmt.Errorf("range of %d to %d exceeds the limit of %d elements", start, end, MaxRangeLength)
		}
		out := make(List, 0, end-start)
		for i := start; i < end; i++ {
			if len(out)%4096 == 0 {
				if err := in.ctx.Err(); err != nil {
					return nil, err
				}
			}
			out = append(out, i)
		}
		return out, nil
	})

	def("apply", func(in *interp, args []Value) (Value, error) {
		if len(args) < 2 {
			return nil, arityError("apply", len(args))
		}
		items, err := sequence("apply", args[len(args)-1])
		if err != nil {
			return nil, err
		}
		callArgs := append(append([]Value{}, args[1:len(args)-1]...), items...)
		return in.apply(args[0], callArgs)
	})
	def("map", func(in *interp, args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, arityError("map", len(args))
		}
		items, err := sequence("map", args[1])
		if err != nil {
			return nil, err
		}
		out := make(List, 0, len(items))
		for _, item := range items {
			v, err := in.apply(args[0], []Value{item})
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	})
	def("filter", func(in *interp, args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, arityError("filter", len(args))
		}
		items, err := sequence("filter", args[1])
		if err != nil {
			return nil, err
		}
		out := List{}
		for _, item := range items {
			keep, err := in.apply(args[0], []Value{item})
			if err != nil {
				return nil, err
			}
			if truthy(keep) {
				out = append(out, item)
			}
		}
		return out, nil
	})
	def("reduce", func(in *interp, args []Value) (Value, error) {
		var acc Value
		var items []Value
		var err error
		switch len(args) {
		case 2:
			items, err = sequence("reduce", args[1])
			if err != nil {
				return nil, err
			}
			if len(items) == 0 {
				return in.apply(args[0], nil)
			}
			acc, items = items[0], items[1:]
		case 3:
			acc = args[1]
			items, err = sequence("reduce", args[2])
			if err != nil {
				return nil, err
			}
		default:
			return nil, arityError("reduce", len(args))
		}
		for _, item := range items {
			acc, err = in.apply(args[0], []Value{acc, item})
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	})

	def("println", printer(capture.Stdout, true))
	def("print", printer(capture.Stdout, false))
	def("eprintln", printer(capture.Stderr, true))
}

func printer(sink func(ctx context.Context) io.Writer, newline bool) func(in *interp, args []Value) (Value, error) {
	return func(in *interp, args []Value) (Value, error) {
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = Text(arg)
		}
		line := strings.Join(parts, " ")
		if newline {
			line += "\n"
		}
		if _, err := io.WriteString(sink(in.ctx), line); err != nil {
			return nil, err
		}
		return nil, nil
	}
}

func sequence(name string, v Value) ([]Value, error) {
	items, ok := seqItems(v)
	if !ok {
		return nil, fmt.Errorf("%s expects a collection, got %s", name, typeName(v))
	}
	return items, nil
}

func foldArith(op string, args []Value, identity Value) (Value, error) {
	if len(args) == 0 {
		return identity, nil
	}
	acc := args[0]
	if _, err := toNumber(op, acc); err != nil {
		return nil, err
	}
	for _, arg := range args[1:] {
		v, err := arith(op, acc, arg)
		if err != nil {
			return nil, err
		}
		acc = v
	}
	return acc, nil
}

type number struct {
	i       int64
	f       float64
	isFloat bool
}

func toNumber(op string, v Value) (number, error) {
	switch n := v.(type) {
	case int64:
		return number{i: n, f: float64(n)}, nil
	case float64:
		return number{f: n, isFloat: true}, nil
	default:
		return number{}, fmt.Errorf("%s expects numbers, got %s", op, typeName(v))
	}
}

func arith(op string, a, b Value) (Value, error) {
	x, err := toNumber(op, a)
	if err != nil {
		return nil, err
	}
	y, err := toNumber(op, b)
	if err != nil {
		return nil, err
	}
	if x.isFloat || y.isFloat {
		switch op {
		case "+":
			return x.f + y.f, nil
		case "-":
			return x.f - y.f, nil
		case "*":
			return x.f * y.f, nil
		case "/":
			if y.f == 0 {
				return nil, ErrDivideByZero
			}
			return x.f / y.f, nil
		}
	}
	switch op {
	case "+":
		sum := x.i + y.i
		if (x.i^sum)&(y.i^sum) < 0 {
			return nil, ErrIntegerOverflow
		}
		return sum, nil
	case "-":
		diff := x.i - y.i
		if (x.i^y.i)&(x.i^diff) < 0 {
			return nil, ErrIntegerOverflow
		}
		return diff, nil
	case "*":
		if x.i == 0 || y.i == 0 {
			return int64(0), nil
		}
		prod := x.i * y.i
		if prod/y.i != x.i || (x.i == -1 && y.i == math.MinInt64) || (y.i == -1 && x.i == math.MinInt64) {
			return nil, ErrIntegerOverflow
		}
		return prod, nil
	case "/":
		if y.i == 0 {
			return nil, ErrDivideByZero
		}
		if x.i == math.MinInt64 && y.i == -1 {
			return nil, ErrIntegerOverflow
		}
		if x.i%y.i == 0 {
			return x.i / y.i, nil
		}
		return float64(x.i) / float64(y.i), nil
	}
	return nil, fmt.Errorf("unknown operator %s", op)
}

func compare(op string, a, b Value) (int, error) {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("%s cannot compare string with %s", op, typeName(b))
		}
		return strings.Compare(as, bs), nil
	}
	x, err := toNumber(op, a)
	if err != nil {
		return 0, err
	}
	y, err := toNumber(op, b)
	if err != nil {
		return 0, err
	}
	if !x.isFloat && !y.isFloat {
		switch {
		case x.i < y.i:
			return -1, nil
		case x.i > y.i:
			return 1, nil
		}
		return 0, nil
	}
	switch {
	case x.f < y.f:
		return -1, nil
	case x.f > y.f:
		return 1, nil
	}
	return 0, nil
}

func compareChain(op string, ok func(int) bool) func(in *interp, args []Value) (Value, error) {
	return func(in *interp, args []Value) (Value, error) {
		if len(args) == 0 {
			return nil, arityError(op, 0)
		}
		if len(args) == 1 {
			if _, err := compare(op, args[0], args[0]); err != nil {
				return nil, err
			}
			return true, nil
		}
		for i := 1; i < len(args); i++ {
			c, err := compare(op, args[i-1], args[i])
			if err != nil {
				return nil, err
			}
			if !ok(c) {
				return false, nil
			}
		}
		return true, nil
	}
}

func extreme(name string, args []Value, want int) (Value, error) {
	if len(args) == 0 {
		return nil, arityError(name, 0)
	}
	best := args[0]
	if _, err := toNumber(name, best); err != nil {
		return nil, err
	}
	for _, arg := range args[1:] {
		c, err := compare(name, arg, best)
		if err != nil {
			return nil, err
		}
		if c == want {
			best = arg
		}
	}
	return best, nil
}
