package smt

import (
	"fmt"

	"github.com/pkg/errors"
)

// Formula represents a typed term owned by a Solver.
//
// Formulas are comparable values: two formulas are equal if and only if
// they belong to the same solver and wrap the same native term.
type Formula interface {
	Type() Type
	String() string
	formula() term
}

func (f BooleanFormula) formula() term   { return f.term }
func (f IntegerFormula) formula() term   { return f.term }
func (f RationalFormula) formula() term  { return f.term }
func (f BitvectorFormula) formula() term { return f.term }
func (f ArrayFormula) formula() term     { return f.term }

// NumeralFormula is either an IntegerFormula or a RationalFormula.
type NumeralFormula interface {
	Formula
	numeral()
}

func (IntegerFormula) numeral()  {}
func (RationalFormula) numeral() {}

// term is the type-tagged handle shared by all formula types.
type term struct {
	eng engine
	typ Type
	h   interface{}
}

// Type returns the semantic type of the formula.
func (t term) Type() Type { return t.typ }

// IsZero returns true if the formula was never initialized by a manager.
func (t term) IsZero() bool { return t.eng == nil }

// String returns the backend rendering of the term.
func (t term) String() string {
	if t.eng == nil {
		return "<nil>"
	} else if t.eng.closed() {
		return fmt.Sprintf("<closed %s>", t.typ)
	}
	s, err := t.eng.dump(t.h)
	if err != nil {
		return fmt.Sprintf("<%s: %s>", t.typ, err)
	}
	return s
}

// BooleanFormula represents a proposition.
type BooleanFormula struct{ term }

// IntegerFormula represents an integer-valued term.
type IntegerFormula struct{ term }

// RationalFormula represents a real-valued term.
type RationalFormula struct{ term }

// BitvectorFormula represents a fixed-width bitvector term.
type BitvectorFormula struct{ term }

// Width returns the bitvector width of the formula.
func (f BitvectorFormula) Width() int { return BitvectorWidth(f.typ) }

// ArrayFormula represents an array term.
type ArrayFormula struct{ term }

// ArrayType returns the array sort of the formula.
func (f ArrayFormula) ArrayType() ArrayType {
	t, _ := f.typ.(ArrayType)
	return t
}

// wrap returns the typed formula for t.
func wrap(t term) Formula {
	switch t.typ.(type) {
	case BooleanType:
		return BooleanFormula{t}
	case IntegerType:
		return IntegerFormula{t}
	case RationalType:
		return RationalFormula{t}
	case BitvectorType:
		return BitvectorFormula{t}
	case ArrayType:
		return ArrayFormula{t}
	default:
		panic(fmt.Sprintf("smt.wrap: unexpected type: %T", t.typ))
	}
}

// As converts f to the formula type F. Returns an error wrapping
// ErrTypeMismatch if f has a different type.
func As[F Formula](f Formula) (F, error) {
	var zero F
	if f == nil || f.formula().IsZero() {
		return zero, errors.Wrap(ErrIllegalState, "uninitialized formula")
	}
	other, ok := wrap(f.formula()).(F)
	if !ok {
		return zero, errors.Wrapf(ErrTypeMismatch, "formula has type %s, expected %T", f.Type(), zero)
	}
	return other, nil
}

func terms[F Formula](a []F) []term {
	other := make([]term, len(a))
	for i := range a {
		other[i] = a[i].formula()
	}
	return other
}

func types(a []term) []Type {
	other := make([]Type, len(a))
	for i := range a {
		other[i] = a[i].typ
	}
	return other
}
