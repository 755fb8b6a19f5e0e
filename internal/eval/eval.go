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
)

// MaxDepth bounds both form nesting in the reader and nested evaluation.
const MaxDepth = 2000

// ErrMaxDepth is returned when evaluation nests deeper than MaxDepth.
var ErrMaxDepth = errors.New("maximum evaluation depth exceeded")

type env struct {
	vars   map[Symbol]Value
	parent *env
}

func newEnv(parent *env) *env {
	return &env{vars: make(map[Symbol]Value), parent: parent}
}

func (e *env) lookup(name Symbol) (Value, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

type interp struct {
	ctx   context.Context
	root  *env
	depth int
}

// Eval reads a single form from src and evaluates it. Several forms can be
// combined with do. Output from println and friends goes to the sinks bound
// to ctx.
func Eval(ctx context.Context, src string) (Value, error) {
	form, err := Read(src)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	in := &interp{ctx: ctx, root: newEnv(nil)}
	for name, fn := range builtins {
		in.root.vars[Symbol(name)] = fn
	}
	return in.eval(form, in.root)
}

func (in *interp) eval(form Value, scope *env) (Value, error) {
	if err := in.ctx.Err(); err != nil {
		return nil, err
	}
	in.depth++
	defer func() { in.depth-- }()
	if in.depth > MaxDepth {
		return nil, ErrMaxDepth
	}

	switch f := form.(type) {
	case Symbol:
		v, ok := scope.lookup(f)
		if !ok {
			return nil, fmt.Errorf("unable to resolve symbol: %s", f)
		}
		return v, nil
	case Vector:
		out := make(Vector, len(f))
		for i, item := range f {
			v, err := in.eval(item, scope)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case List:
		if len(f) == 0 {
			return List{}, nil
		}
		if head, ok := f[0].(Symbol); ok {
			if special, ok := specialForms[head]; ok {
				return special(in, f[1:], scope)
			}
		}
		callee, err := in.eval(f[0], scope)
		if err != nil {
			return nil, err
		}
		args := make([]Value, len(f)-1)
		for i, arg := range f[1:] {
			v, err := in.eval(arg, scope)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return in.apply(callee, args)
	default:
		return form, nil
	}
}

func (in *interp) apply(callee Value, args []Value) (Value, error) {
	fn, ok := callee.(Callable)
	if !ok {
		return nil, fmt.Errorf("%s cannot be called as a function", typeName(callee))
	}
	return fn.Call(in, args)
}

type specialForm func(in *interp, args []Value, scope *env) (Value, error)

var specialForms map[Symbol]specialForm

func init() {
	specialForms = map[Symbol]specialForm{
		"quote": evalQuote,
		"if":    evalIf,
		"do":    evalDo,
		"let":   evalLet,
		"def":   evalDef,
		"fn":    evalFn,
		"and":   evalAnd,
		"or":    evalOr,
	}
}

func evalQuote(in *interp, args []Value, scope *env) (Value, error) {
	if len(args) != 1 {
		return nil, arityError("quote", len(args))
	}
	return args[0], nil
}

func evalIf(in *interp, args []Value, scope *env) (Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, arityError("if", len(args))
	}
	cond, err := in.eval(args[0], scope)
	if err != nil {
		return nil, err
	}
	if truthy(cond) {
		return in.eval(args[1], scope)
	}
	if len(args) == 3 {
		return in.eval(args[2], scope)
	}
	return nil, nil
}

func evalDo(in *interp, args []Value, scope *env) (Value, error) {
	return in.evalBody(args, scope)
}

func (in *interp) evalBody(body []Value, scope *env) (Value, error) {
	var result Value
	for _, form := range body {
		v, err := in.eval(form, scope)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

func evalLet(in *interp, args []Value, scope *env) (Value, error) {
	if len(args) < 1 {
		return nil, arityError("let", len(args))
	}
	bindings, ok := args[0].(Vector)
	if !ok {
		return nil, fmt.Errorf("let requires a vector for its bindings")
	}
	if len(bindings)%2 != 0 {
		return nil, fmt.Errorf("let requires an even number of forms in binding vector")
	}
	local := newEnv(scope)
	for i := 0; i < len(bindings); i += 2 {
		name, ok := bindings[i].(Symbol)
		if !ok {
			return nil, fmt.Errorf("let binding name must be a symbol, got %s", typeName(bindings[i]))
		}
		v, err := in.eval(bindings[i+1], local)
		if err != nil {
			return nil, err
		}
		local.vars[name] = v
	}
	return in.evalBody(args[1:], local)
}

func evalDef(in *interp, args []Value, scope *env) (Value, error) {
	if len(args) != 2 {
		return nil, arityError("def", len(args))
	}
	name, ok := args[0].(Symbol)
	if !ok {
		return nil, fmt.Errorf("def name must be a symbol, got %s", typeName(args[0]))
	}
	v, err := in.eval(args[1], scope)
	if err != nil {
		return nil, err
	}
	in.root.vars[name] = v
	return v, nil
}

func evalFn(in *interp, args []Value, scope *env) (Value, error) {
	if len(args) < 1 {
		return nil, arityError("fn", len(args))
	}
	params, ok := args[0].(Vector)
	if !ok {
		return nil, fmt.Errorf("fn requires a parameter vector")
	}
	names := make([]Symbol, len(params))
	for i, p := range params {
		name, ok := p.(Symbol)
		if !ok {
			return nil, fmt.Errorf("fn parameter must be a symbol, got %s", typeName(p))
		}
		names[i] = name
	}
	return &lambda{params: names, body: args[1:], scope: scope}, nil
}

func evalAnd(in *interp, args []Value, scope *env) (Value, error) {
	var result Value = true
	for _, form := range args {
		v, err := in.eval(form, scope)
		if err != nil {
			return nil, err
		}
		if !truthy(v) {
			return v, nil
		}
		result = v
	}
	return result, nil
}

func evalOr(in *interp, args []Value, scope *env) (Value, error) {
	for _, form := range args {
		v, err := in.eval(form, scope)
		if err != nil {
			return nil, err
		}
		if truthy(v) {
			return v, nil
		}
	}
	return nil, nil
}

type lambda struct {
	params []Symbol
	body   []Value
	scope  *env
}

func (l *lambda) Name() string {
	return "anonymous"
}

func (l *lambda) Call(in *interp, args []Value) (Value, error) {
	if len(args) != len(l.params) {
		return nil, arityError("fn", len(args))
	}
	local := newEnv(l.scope)
	for i, name := range l.params {
		local.vars[name] = args[i]
	}
	return in.evalBody(l.body, local)
}

func arityError(name string, got int) error {
	return fmt.Errorf("wrong number of args (%d) passed to %s", got, name)
}
