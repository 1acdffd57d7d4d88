package smt

import (
	"context"
	"fmt"
	"math/big"
)

// Backend is the narrow surface a native engine must provide. T is the
// engine's term handle and D its function declaration handle. Both are
// owned by the backend's term pool; the layer only holds and compares them.
//
// Constructors are only called with arguments whose types have already been
// validated by Operator.ResultType or the declaration signature.
type Backend[T, D comparable] interface {
	Name() string
	Capabilities() Capabilities

	// TypeOf reports the backend's own type judgment for t.
	TypeOf(t T) (Type, error)

	MakeVariable(typ Type, name string) (T, error)
	MakeBool(v bool) (T, error)

	// MakeNumber returns a numeral of typ. Int and Real values are exact;
	// bitvector values are already reduced to [0, 2^width).
	MakeNumber(typ Type, v *big.Rat) (T, error)

	Apply(op Operator, args []T) (T, error)

	DeclareFunction(name string, args []Type, ret Type) (D, error)
	CallFunction(decl D, args []T) (T, error)

	// Quantify binds vars in body. Vars are either free variables or the
	// bound variables previously reported by Shape for a quantifier.
	Quantify(q Quantifier, vars []T, body T) (T, error)

	// Shape decomposes t one level.
	Shape(t T) (Shape[T, D], error)

	// Substitute replaces every from[i] with to[i] simultaneously.
	Substitute(t T, from, to []T) (T, error)

	// Dump returns the textual rendering of t.
	Dump(t T) (string, error)

	NewProver(opts ProverOptions) (NativeProver[T], error)

	// Close releases the term pool. Handles are invalid afterwards.
	Close() error
}

// NativeProver is a backend assertion stack.
type NativeProver[T comparable] interface {
	Push() error
	Pop() error
	Assert(t T) error

	// Check returns true if the live assertions and assumptions are
	// satisfiable. Returns an error wrapping ErrInterrupted if ctx is done
	// before the engine finishes.
	Check(ctx context.Context, assumptions []T) (bool, error)

	// Model returns the model of the last satisfiable check.
	Model() (NativeModel[T], error)

	// UnsatCore returns a subset of the asserted terms and the assumptions
	// of the last check which is unsatisfiable on its own.
	UnsatCore() ([]T, error)

	// Interpolant returns a term I over the symbols shared by a and b
	// such that a implies I and I and b are unsatisfiable.
	Interpolant(ctx context.Context, a, b []T) (T, error)

	Close() error
}

// NativeModel is a backend model snapshot.
type NativeModel[T comparable] interface {
	// Eval returns the value of t as a numeral or array value term.
	Eval(t T) (T, error)

	// Constants returns the free constants assigned by the model.
	Constants() ([]T, error)

	Close() error
}

// ShapeKind classifies the top-level structure of a term.
type ShapeKind int

const (
	ShapeFreeVariable = ShapeKind(iota + 1)
	ShapeBoundVariable
	ShapeNumeral
	ShapeUF
	ShapeFunction
	ShapeForall
	ShapeExists
)

var shapeKinds = [...]string{
	ShapeFreeVariable:  "free-variable",
	ShapeBoundVariable: "bound-variable",
	ShapeNumeral:       "numeral",
	ShapeUF:            "uf",
	ShapeFunction:      "function",
	ShapeForall:        "forall",
	ShapeExists:        "exists",
}

// String returns the name of the shape kind.
func (k ShapeKind) String() string {
	if k >= 0 && k < ShapeKind(len(shapeKinds)) && shapeKinds[k] != "" {
		return shapeKinds[k]
	}
	return fmt.Sprintf("ShapeKind<%d>", k)
}

// Shape is the tagged one-level decomposition of a term.
//
//	ShapeFreeVariable:  Name
//	ShapeBoundVariable: Name, Index
//	ShapeNumeral:       Value (bool, *big.Int or *big.Rat)
//	ShapeUF:            Decl, Args
//	ShapeFunction:      Op, Args
//	ShapeForall/Exists: Vars (bound variables), Body
type Shape[T, D comparable] struct {
	Kind  ShapeKind
	Name  string
	Index int
	Value interface{}
	Op    Operator
	Decl  D
	Args  []T
	Vars  []T
	Body  T
}
