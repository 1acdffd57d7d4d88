package smt

import (
	"context"
	"math/big"
	"sync/atomic"

	"github.com/pkg/errors"
)

// engine is the type-erased view of a Backend that the rest of the
// package works against. Handles cross this boundary boxed in an
// interface{} and are unboxed again by creator.
type engine interface {
	name() string
	capabilities() Capabilities
	closed() bool

	encapsulate(typ Type, h interface{}) (term, error)
	extract(t term) (interface{}, error)
	typeOf(h interface{}) (Type, error)

	variable(typ Type, name string) (interface{}, error)
	boolean(v bool) (interface{}, error)
	number(typ Type, v *big.Rat) (interface{}, error)
	apply(op Operator, args []interface{}) (interface{}, error)
	declare(name string, args []Type, ret Type) (interface{}, error)
	call(decl interface{}, args []interface{}) (interface{}, error)
	quantify(q Quantifier, vars []interface{}, body interface{}) (interface{}, error)
	shape(h interface{}) (Shape[interface{}, interface{}], error)
	substitute(h interface{}, from, to []interface{}) (interface{}, error)
	dump(h interface{}) (string, error)
	newProver(opts ProverOptions) (NativeProver[interface{}], error)
	close() error
}

// creator adapts a Backend to engine. It owns type tagging: every handle
// leaving the backend is checked against the backend's own type judgment
// before it is wrapped in a formula.
type creator[T, D comparable] struct {
	b        Backend[T, D]
	isClosed atomic.Bool
}

var _ engine = (*creator[int, int])(nil)

func newCreator[T, D comparable](b Backend[T, D]) *creator[T, D] {
	return &creator[T, D]{b: b}
}

func (c *creator[T, D]) name() string               { return c.b.Name() }
func (c *creator[T, D]) capabilities() Capabilities { return c.b.Capabilities() }
func (c *creator[T, D]) closed() bool               { return c.isClosed.Load() }

// encapsulate wraps h as a formula of type typ. Returns ErrTypeMismatch if
// the backend reports a different type for h.
func (c *creator[T, D]) encapsulate(typ Type, h interface{}) (term, error) {
	native, ok := h.(T)
	if !ok {
		return term{}, errors.Wrapf(ErrTypeMismatch, "encapsulate: unexpected handle %T", h)
	}
	got, err := c.b.TypeOf(native)
	if err != nil {
		return term{}, err
	} else if got != typ {
		return term{}, errors.Wrapf(ErrTypeMismatch, "encapsulate: declared %s, backend reports %s", typ, got)
	}
	return term{eng: c, typ: typ, h: native}, nil
}

// extract unwraps the native handle of t.
func (c *creator[T, D]) extract(t term) (interface{}, error) {
	if t.eng == nil {
		return nil, errors.Wrap(ErrIllegalState, "uninitialized formula")
	} else if t.eng != engine(c) {
		return nil, errors.Wrap(ErrIllegalState, "formula belongs to a different solver")
	} else if c.closed() {
		return nil, errors.Wrap(ErrIllegalState, "solver closed")
	}
	return t.h, nil
}

func (c *creator[T, D]) typeOf(h interface{}) (Type, error) {
	return c.b.TypeOf(h.(T))
}

func (c *creator[T, D]) variable(typ Type, name string) (interface{}, error) {
	return c.b.MakeVariable(typ, name)
}

func (c *creator[T, D]) boolean(v bool) (interface{}, error) {
	return c.b.MakeBool(v)
}

func (c *creator[T, D]) number(typ Type, v *big.Rat) (interface{}, error) {
	return c.b.MakeNumber(typ, v)
}

func (c *creator[T, D]) apply(op Operator, args []interface{}) (interface{}, error) {
	return c.b.Apply(op, unbox[T](args))
}

func (c *creator[T, D]) declare(name string, args []Type, ret Type) (interface{}, error) {
	return c.b.DeclareFunction(name, args, ret)
}

func (c *creator[T, D]) call(decl interface{}, args []interface{}) (interface{}, error) {
	return c.b.CallFunction(decl.(D), unbox[T](args))
}

func (c *creator[T, D]) quantify(q Quantifier, vars []interface{}, body interface{}) (interface{}, error) {
	return c.b.Quantify(q, unbox[T](vars), body.(T))
}

func (c *creator[T, D]) shape(h interface{}) (Shape[interface{}, interface{}], error) {
	s, err := c.b.Shape(h.(T))
	if err != nil {
		return Shape[interface{}, interface{}]{}, err
	}
	other := Shape[interface{}, interface{}]{
		Kind:  s.Kind,
		Name:  s.Name,
		Index: s.Index,
		Value: s.Value,
		Op:    s.Op,
		Args:  box(s.Args),
		Vars:  box(s.Vars),
	}
	if s.Kind == ShapeUF {
		other.Decl = s.Decl
	}
	if s.Kind == ShapeForall || s.Kind == ShapeExists {
		other.Body = s.Body
	}
	return other, nil
}

func (c *creator[T, D]) substitute(h interface{}, from, to []interface{}) (interface{}, error) {
	return c.b.Substitute(h.(T), unbox[T](from), unbox[T](to))
}

func (c *creator[T, D]) dump(h interface{}) (string, error) {
	return c.b.Dump(h.(T))
}

func (c *creator[T, D]) newProver(opts ProverOptions) (NativeProver[interface{}], error) {
	p, err := c.b.NewProver(opts)
	if err != nil {
		return nil, err
	}
	return &proverAdapter[T]{p: p}, nil
}

func (c *creator[T, D]) close() error {
	if c.isClosed.Swap(true) {
		return nil
	}
	return c.b.Close()
}

// proverAdapter boxes the handles of a NativeProver.
type proverAdapter[T comparable] struct {
	p NativeProver[T]
}

func (a *proverAdapter[T]) Push() error                { return a.p.Push() }
func (a *proverAdapter[T]) Pop() error                 { return a.p.Pop() }
func (a *proverAdapter[T]) Assert(t interface{}) error { return a.p.Assert(t.(T)) }
func (a *proverAdapter[T]) Close() error               { return a.p.Close() }

func (a *proverAdapter[T]) Check(ctx context.Context, assumptions []interface{}) (bool, error) {
	return a.p.Check(ctx, unbox[T](assumptions))
}

func (a *proverAdapter[T]) Model() (NativeModel[interface{}], error) {
	m, err := a.p.Model()
	if err != nil {
		return nil, err
	}
	return &modelAdapter[T]{m: m}, nil
}

func (a *proverAdapter[T]) UnsatCore() ([]interface{}, error) {
	core, err := a.p.UnsatCore()
	return box(core), err
}

func (a *proverAdapter[T]) Interpolant(ctx context.Context, x, y []interface{}) (interface{}, error) {
	return a.p.Interpolant(ctx, unbox[T](x), unbox[T](y))
}

// modelAdapter boxes the handles of a NativeModel.
type modelAdapter[T comparable] struct {
	m NativeModel[T]
}

func (a *modelAdapter[T]) Eval(t interface{}) (interface{}, error) { return a.m.Eval(t.(T)) }
func (a *modelAdapter[T]) Close() error                           { return a.m.Close() }

func (a *modelAdapter[T]) Constants() ([]interface{}, error) {
	consts, err := a.m.Constants()
	return box(consts), err
}

func box[T any](a []T) []interface{} {
	if a == nil {
		return nil
	}
	other := make([]interface{}, len(a))
	for i := range a {
		other[i] = a[i]
	}
	return other
}

func unbox[T any](a []interface{}) []T {
	other := make([]T, len(a))
	for i := range a {
		other[i] = a[i].(T)
	}
	return other
}
