package smt

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// Visitor receives the one-level decomposition of a formula. Exactly one
// method is called per visited formula.
type Visitor[R any] interface {
	VisitFreeVariable(f Formula, name string) R
	VisitBoundVariable(f Formula, name string, index int) R

	// VisitNumeral receives a bool, a *big.Int (Int and unsigned
	// bitvectors) or a *big.Rat (Real).
	VisitNumeral(f Formula, value interface{}) R

	VisitUF(f Formula, args []Formula, decl *FunctionDeclaration) R
	VisitFunction(f Formula, args []Formula, app Application) R
	VisitForall(f BooleanFormula, vars []Formula, body BooleanFormula) R
	VisitExists(f BooleanFormula, vars []Formula, body BooleanFormula) R
}

// Application describes a built-in function application.
type Application struct {
	Kind   FunctionKind
	Name   string
	Params []int
	Type   Type

	s  *Solver
	op Operator
}

// Operator returns the operator of the application.
func (a Application) Operator() Operator { return a.op }

// Rebuild applies the same operator to args.
func (a Application) Rebuild(args ...Formula) (Formula, error) {
	if a.s == nil {
		return nil, errors.Wrap(ErrIllegalState, "application not obtained from a visit")
	}
	t, err := a.s.apply(a.op, terms(args)...)
	if err != nil {
		return nil, err
	}
	return wrap(t), nil
}

// node is a decomposed formula.
type node struct {
	kind  ShapeKind
	name  string
	index int
	value interface{}
	op    Operator
	decl  *FunctionDeclaration
	args  []Formula
	vars  []Formula
	body  BooleanFormula
}

// decompose returns the one-level decomposition of f.
func (s *Solver) decompose(f Formula) (node, error) {
	if f == nil {
		return node{}, errors.Wrap(ErrIllegalState, "nil formula")
	}
	h, err := s.extract(f.formula())
	if err != nil {
		return node{}, err
	}
	shape, err := s.eng.shape(h)
	if err != nil {
		return node{}, err
	}

	n := node{
		kind:  shape.Kind,
		name:  shape.Name,
		index: shape.Index,
		value: shape.Value,
		op:    shape.Op,
	}
	if n.args, err = s.formulas(shape.Args); err != nil {
		return node{}, err
	}

	switch shape.Kind {
	case ShapeFreeVariable, ShapeBoundVariable, ShapeNumeral, ShapeFunction:
	case ShapeUF:
		decl, ok := s.declaration(shape.Decl)
		if !ok {
			return node{}, errors.Wrapf(ErrIllegalState, "undeclared function application: %s", f)
		}
		n.decl = decl
	case ShapeForall, ShapeExists:
		if n.vars, err = s.formulas(shape.Vars); err != nil {
			return node{}, err
		}
		body, err := s.formula(shape.Body)
		if err != nil {
			return node{}, err
		}
		if n.body, err = As[BooleanFormula](body); err != nil {
			return node{}, err
		}
	default:
		panic(fmt.Sprintf("smt: unclassifiable term %s: shape %s", f, shape.Kind))
	}
	return n, nil
}

// formula encapsulates a native handle with the backend's type judgment.
func (s *Solver) formula(h interface{}) (Formula, error) {
	typ, err := s.eng.typeOf(h)
	if err != nil {
		return nil, err
	}
	t, err := s.eng.encapsulate(typ, h)
	if err != nil {
		return nil, err
	}
	return wrap(t), nil
}

func (s *Solver) formulas(hs []interface{}) ([]Formula, error) {
	if len(hs) == 0 {
		return nil, nil
	}
	a := make([]Formula, len(hs))
	for i, h := range hs {
		f, err := s.formula(h)
		if err != nil {
			return nil, err
		}
		a[i] = f
	}
	return a, nil
}

// Visit decomposes f one level and dispatches to the matching method of v.
// Panics if the backend reports a shape which cannot be classified.
func Visit[R any](s *Solver, f Formula, v Visitor[R]) (R, error) {
	var zero R
	n, err := s.decompose(f)
	if err != nil {
		return zero, err
	}

	switch n.kind {
	case ShapeFreeVariable:
		return v.VisitFreeVariable(f, n.name), nil
	case ShapeBoundVariable:
		return v.VisitBoundVariable(f, n.name, n.index), nil
	case ShapeNumeral:
		return v.VisitNumeral(f, n.value), nil
	case ShapeUF:
		return v.VisitUF(f, n.args, n.decl), nil
	case ShapeFunction:
		app := Application{
			Kind:   n.op.Kind,
			Name:   applicationName(n.op, n.args),
			Params: append([]int(nil), n.op.Params...),
			Type:   f.Type(),
			s:      s,
			op:     n.op,
		}
		return v.VisitFunction(f, n.args, app), nil
	case ShapeForall:
		return v.VisitForall(f.(BooleanFormula), n.vars, n.body), nil
	case ShapeExists:
		return v.VisitExists(f.(BooleanFormula), n.vars, n.body), nil
	default:
		panic(fmt.Sprintf("smt: unexpected shape: %s", n.kind))
	}
}

// applicationName returns the SMT-LIB name of op applied to args. Division
// is "div" over Int and "/" over Real.
func applicationName(op Operator, args []Formula) string {
	if op.Kind == DIV && len(args) > 0 {
		if _, ok := args[0].Type().(RationalType); ok {
			return "/"
		}
	}
	return op.String()
}

// Walk traverses f in depth-first order. fn is called once per distinct
// subterm before its children; if it returns false the children are skipped.
// Quantifier bodies are children of the quantifier, bound variable lists
// are not.
func (s *Solver) Walk(f Formula, fn func(Formula) bool) error {
	return s.walk(f, func(f Formula, _ node) bool { return fn(f) }, make(map[Formula]struct{}))
}

func (s *Solver) walk(f Formula, fn func(Formula, node) bool, seen map[Formula]struct{}) error {
	if _, ok := seen[f]; ok {
		return nil
	}
	seen[f] = struct{}{}

	n, err := s.decompose(f)
	if err != nil {
		return err
	} else if !fn(f, n) {
		return nil
	}

	for _, arg := range n.args {
		if err := s.walk(arg, fn, seen); err != nil {
			return err
		}
	}
	if n.kind == ShapeForall || n.kind == ShapeExists {
		return s.walk(n.body, fn, seen)
	}
	return nil
}

// FreeVariables returns the free variables of f sorted by name.
func (s *Solver) FreeVariables(f Formula) ([]Formula, error) {
	var a []Formula
	names := make(map[Formula]string)
	if err := s.walk(f, func(f Formula, n node) bool {
		if n.kind == ShapeFreeVariable {
			a = append(a, f)
			names[f] = n.name
		}
		return true
	}, make(map[Formula]struct{})); err != nil {
		return nil, err
	}
	sort.Slice(a, func(i, j int) bool { return names[a[i]] < names[a[j]] })
	return a, nil
}

// functions returns the declarations applied anywhere in f sorted by name.
func (s *Solver) functions(f Formula) ([]*FunctionDeclaration, error) {
	var a []*FunctionDeclaration
	seen := make(map[*FunctionDeclaration]struct{})
	if err := s.walk(f, func(f Formula, n node) bool {
		if _, ok := seen[n.decl]; n.kind == ShapeUF && !ok {
			seen[n.decl] = struct{}{}
			a = append(a, n.decl)
		}
		return true
	}, make(map[Formula]struct{})); err != nil {
		return nil, err
	}
	sort.Slice(a, func(i, j int) bool { return a[i].name < a[j].name })
	return a, nil
}
