package smt

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// FunctionDeclaration is an uninterpreted function symbol. Declarations are
// immutable and shared by every call site of the same symbol.
type FunctionDeclaration struct {
	name string
	args []Type
	ret  Type
	h    interface{}
	eng  engine
}

// Name returns the symbol name.
func (d *FunctionDeclaration) Name() string { return d.name }

// Args returns a copy of the parameter types.
func (d *FunctionDeclaration) Args() []Type { return append([]Type(nil), d.args...) }

// Return returns the result type.
func (d *FunctionDeclaration) Return() Type { return d.ret }

// String returns the declaration in SMT-LIB syntax.
func (d *FunctionDeclaration) String() string {
	a := make([]string, len(d.args))
	for i, arg := range d.args {
		a[i] = arg.String()
	}
	return fmt.Sprintf("(declare-fun %s (%s) %s)", QuoteSymbol(d.name), strings.Join(a, " "), d.ret)
}

func (d *FunctionDeclaration) signature(args []Type, ret Type) bool {
	if d.ret != ret || len(d.args) != len(args) {
		return false
	}
	for i := range args {
		if d.args[i] != args[i] {
			return false
		}
	}
	return true
}

// UFManager declares and applies uninterpreted functions.
type UFManager struct {
	s *Solver
}

// Declare returns the function name with the given signature. Declaring the
// same name twice with an identical signature returns the same declaration.
func (m *UFManager) Declare(name string, ret Type, args ...Type) (*FunctionDeclaration, error) {
	if !m.s.Capabilities().UF {
		return nil, errors.Wrapf(ErrUnsupported, "%s: uninterpreted functions", m.s.Name())
	}
	return m.s.declare(name, args, ret)
}

// Call applies decl to args.
func (m *UFManager) Call(decl *FunctionDeclaration, args ...Formula) (Formula, error) {
	if decl == nil {
		return nil, errors.Wrap(ErrIllegalState, "nil function declaration")
	} else if decl.eng != m.s.eng {
		return nil, errors.Wrap(ErrIllegalState, "function declaration belongs to a different solver")
	} else if len(args) != len(decl.args) {
		return nil, errors.Wrapf(ErrTypeMismatch, "%s: got %d arguments, expected %d", decl.name, len(args), len(decl.args))
	}

	ts := terms(args)
	for i, t := range ts {
		if t.typ != decl.args[i] {
			return nil, errors.Wrapf(ErrTypeMismatch, "%s: argument %d has type %s, expected %s", decl.name, i, t.typ, decl.args[i])
		}
	}

	hs, err := m.s.extractAll(ts)
	if err != nil {
		return nil, err
	}
	h, err := m.s.eng.call(decl.h, hs)
	if err != nil {
		return nil, err
	}
	t, err := m.s.eng.encapsulate(decl.ret, h)
	if err != nil {
		return nil, err
	}
	return wrap(t), nil
}

// DeclareAndCall declares name with the types of args and applies it.
func (m *UFManager) DeclareAndCall(name string, ret Type, args ...Formula) (Formula, error) {
	decl, err := m.Declare(name, ret, types(terms(args))...)
	if err != nil {
		return nil, err
	}
	return m.Call(decl, args...)
}
