// Package gini implements a pure Go backend which reduces formulas over
// booleans, bitvectors, uninterpreted functions and bounded quantifiers to
// SAT and decides them with the gini solver.
package gini

import (
	"log"
	"math/big"
	"sort"
	"sync"

	"github.com/benbjohnson/smt"
	"github.com/pkg/errors"
)

// NewSolver returns a solver context backed by gini.
func NewSolver(config smt.Config) *smt.Solver {
	return smt.NewSolver[*Term, *Decl](NewBackend(config), config)
}

// Backend implements smt.Backend on top of gini.
type Backend struct {
	mu      sync.Mutex
	logger  *log.Logger
	pool    *pool
	blaster *blaster
	nextID  uint64 // declarations
	closed  bool
}

var _ smt.Backend[*Term, *Decl] = (*Backend)(nil)

// NewBackend returns a new instance of Backend.
func NewBackend(config smt.Config) *Backend {
	logger := config.Log()

	keys := make([]string, 0, len(config.Options))
	for k := range config.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		logger.Printf("[gini] ignoring option: %s=%s", k, config.Options[k])
	}

	return &Backend{
		logger:  logger,
		pool:    newPool(),
		blaster: newBlaster(),
	}
}

// Name returns "gini".
func (b *Backend) Name() string { return "gini" }

// Capabilities returns the theories and features supported by the backend.
func (b *Backend) Capabilities() smt.Capabilities {
	return smt.Capabilities{
		Bitvectors:     true,
		UF:             true,
		Quantifiers:    true,
		Models:         true,
		UnsatCore:      true,
		Interpolation:  true,
		MultipleStacks: true,
	}
}

// TypeOf returns the sort of t.
func (b *Backend) TypeOf(t *Term) (smt.Type, error) {
	if t == nil {
		return nil, errors.Wrap(smt.ErrIllegalState, "gini: nil term")
	}
	return t.typ, nil
}

func (b *Backend) intern(t *Term) (*Term, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.Wrap(smt.ErrIllegalState, "gini: backend closed")
	}
	return b.pool.intern(t), nil
}

// MakeVariable returns the free variable name of type typ.
func (b *Backend) MakeVariable(typ smt.Type, name string) (*Term, error) {
	if err := supported(typ); err != nil {
		return nil, err
	}
	return b.intern(&Term{kind: kindVar, typ: typ, name: name})
}

// MakeBool returns the constant v.
func (b *Backend) MakeBool(v bool) (*Term, error) {
	value := new(big.Int)
	if v {
		value.SetInt64(1)
	}
	return b.intern(&Term{kind: kindConst, typ: smt.Bool, value: value})
}

// MakeNumber returns a bitvector numeral. Other numerals are unsupported.
func (b *Backend) MakeNumber(typ smt.Type, v *big.Rat) (*Term, error) {
	w := smt.BitvectorWidth(typ)
	if w == 0 {
		return nil, errors.Wrapf(smt.ErrUnsupported, "gini: numerals of type %s", typ)
	} else if !v.IsInt() || v.Sign() < 0 || v.Num().BitLen() > w {
		return nil, errors.Errorf("gini: numeral %s out of range for %s", v.RatString(), typ)
	}
	return b.intern(&Term{kind: kindConst, typ: typ, value: new(big.Int).Set(v.Num())})
}

// Apply returns the application of a built-in operator.
func (b *Backend) Apply(op smt.Operator, args []*Term) (*Term, error) {
	if !op.Kind.IsBoolean() && !op.Kind.IsBitvector() {
		return nil, errors.Wrapf(smt.ErrUnsupported, "gini: %s", op)
	}
	types := make([]smt.Type, len(args))
	for i, arg := range args {
		types[i] = arg.typ
	}
	typ, err := op.ResultType(types...)
	if err != nil {
		return nil, err
	}
	op.Params = append([]int(nil), op.Params...)
	return b.intern(&Term{kind: kindApp, typ: typ, op: op, args: append([]*Term(nil), args...)})
}

// DeclareFunction returns a new function symbol.
func (b *Backend) DeclareFunction(name string, args []smt.Type, ret smt.Type) (*Decl, error) {
	for _, typ := range append([]smt.Type{ret}, args...) {
		if err := supported(typ); err != nil {
			return nil, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.Wrap(smt.ErrIllegalState, "gini: backend closed")
	}
	b.nextID++
	return &Decl{id: b.nextID, name: name, args: append([]smt.Type(nil), args...), ret: ret}, nil
}

// CallFunction returns the application of decl to args.
func (b *Backend) CallFunction(decl *Decl, args []*Term) (*Term, error) {
	if len(args) != len(decl.args) {
		return nil, errors.Wrapf(smt.ErrTypeMismatch, "gini: %s: got %d arguments, expected %d", decl.name, len(args), len(decl.args))
	}
	for i, arg := range args {
		if arg.typ != decl.args[i] {
			return nil, errors.Wrapf(smt.ErrTypeMismatch, "gini: %s: argument %d has type %s, expected %s", decl.name, i, arg.typ, decl.args[i])
		}
	}
	return b.intern(&Term{kind: kindCall, typ: decl.ret, decl: decl, args: append([]*Term(nil), args...)})
}

// Quantify binds vars in body. Free variables are replaced by fresh bound
// variables of the same name; bound variables are bound as-is.
func (b *Backend) Quantify(q smt.Quantifier, vars []*Term, body *Term) (*Term, error) {
	bound := make([]*Term, len(vars))
	mapping := make(map[*Term]*Term)
	for i, v := range vars {
		switch v.kind {
		case kindBound:
			bound[i] = v
		case kindVar:
			other, err := b.intern(&Term{kind: kindBound, typ: v.typ, name: v.name, index: i})
			if err != nil {
				return nil, err
			}
			bound[i], mapping[v] = other, other
		default:
			return nil, errors.Errorf("gini: cannot bind %s", v)
		}
	}

	if len(mapping) > 0 {
		var err error
		if body, err = b.substitute(body, mapping, make(map[*Term]*Term)); err != nil {
			return nil, err
		}
	}

	k := kindForall
	if q == smt.Exists {
		k = kindExists
	}
	return b.intern(&Term{kind: k, typ: smt.Bool, vars: bound, body: body})
}

// Shape decomposes t one level.
func (b *Backend) Shape(t *Term) (smt.Shape[*Term, *Decl], error) {
	switch t.kind {
	case kindVar:
		return smt.Shape[*Term, *Decl]{Kind: smt.ShapeFreeVariable, Name: t.name}, nil
	case kindBound:
		return smt.Shape[*Term, *Decl]{Kind: smt.ShapeBoundVariable, Name: t.name, Index: t.index}, nil
	case kindConst:
		var value interface{} = new(big.Int).Set(t.value)
		if t.typ == smt.Bool {
			value = t.value.Sign() != 0
		}
		return smt.Shape[*Term, *Decl]{Kind: smt.ShapeNumeral, Value: value}, nil
	case kindApp:
		return smt.Shape[*Term, *Decl]{Kind: smt.ShapeFunction, Op: t.op, Args: t.args}, nil
	case kindCall:
		return smt.Shape[*Term, *Decl]{Kind: smt.ShapeUF, Name: t.decl.name, Decl: t.decl, Args: t.args}, nil
	case kindForall:
		return smt.Shape[*Term, *Decl]{Kind: smt.ShapeForall, Vars: t.vars, Body: t.body}, nil
	case kindExists:
		return smt.Shape[*Term, *Decl]{Kind: smt.ShapeExists, Vars: t.vars, Body: t.body}, nil
	}
	return smt.Shape[*Term, *Decl]{}, errors.Errorf("gini: unknown term kind %d", t.kind)
}

// Substitute replaces every from[i] with to[i] simultaneously.
func (b *Backend) Substitute(t *Term, from, to []*Term) (*Term, error) {
	mapping := make(map[*Term]*Term, len(from))
	for i := range from {
		mapping[from[i]] = to[i]
	}
	return b.substitute(t, mapping, make(map[*Term]*Term))
}

// substitute rewrites t bottom-up. Replacement terms are not rewritten
// again. Keys rebound by a quantifier are left untouched inside it.
func (b *Backend) substitute(t *Term, mapping, memo map[*Term]*Term) (*Term, error) {
	if other, ok := mapping[t]; ok {
		return other, nil
	} else if other, ok := memo[t]; ok {
		return other, nil
	}

	var other *Term
	switch t.kind {
	case kindVar, kindBound, kindConst:
		other = t

	case kindForall, kindExists:
		inner := mapping
		for _, v := range t.vars {
			if _, ok := mapping[v]; ok {
				inner = make(map[*Term]*Term, len(mapping))
				for k, x := range mapping {
					if !containsTerm(t.vars, k) {
						inner[k] = x
					}
				}
				break
			}
		}
		body, err := b.substitute(t.body, inner, make(map[*Term]*Term))
		if err != nil {
			return nil, err
		} else if body == t.body {
			other = t
		} else if other, err = b.intern(&Term{kind: t.kind, typ: t.typ, vars: t.vars, body: body}); err != nil {
			return nil, err
		}

	default:
		args := make([]*Term, len(t.args))
		changed := false
		for i, arg := range t.args {
			x, err := b.substitute(arg, mapping, memo)
			if err != nil {
				return nil, err
			}
			args[i], changed = x, changed || x != arg
		}
		if !changed {
			other = t
			break
		}

		var err error
		if t.kind == kindCall {
			other, err = b.CallFunction(t.decl, args)
		} else {
			other, err = b.Apply(t.op, args)
		}
		if err != nil {
			return nil, err
		}
	}

	memo[t] = other
	return other, nil
}

// Dump returns t in SMT-LIB syntax.
func (b *Backend) Dump(t *Term) (string, error) {
	return render(t), nil
}

// NewProver returns a new assertion stack with its own SAT solver.
func (b *Backend) NewProver(opts smt.ProverOptions) (smt.NativeProver[*Term], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.Wrap(smt.ErrIllegalState, "gini: backend closed")
	}
	return newProver(b, opts), nil
}

// Close releases the term pool and the circuit.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.logger.Printf("[gini] close: terms=%d %s", b.pool.len(), b.blaster)
	b.pool, b.blaster = newPool(), newBlaster()
	return nil
}

// supported returns ErrUnsupported for sorts gini cannot blast.
func supported(typ smt.Type) error {
	switch typ.(type) {
	case smt.BooleanType, smt.BitvectorType:
		return nil
	}
	return errors.Wrapf(smt.ErrUnsupported, "gini: sort %s", typ)
}
