package smt

import (
	"math/big"

	"github.com/pkg/errors"
)

// RationalFormulaManager constructs formulas over the reals. Operations
// accept any NumeralFormula; integer arguments are promoted with to_real.
type RationalFormulaManager struct {
	s *Solver
}

// MakeVariable returns the rational variable name.
func (m *RationalFormulaManager) MakeVariable(name string) (RationalFormula, error) {
	return asRational(m.s.variable(Rational, name))
}

// MakeNumber returns the rational numeral v.
func (m *RationalFormulaManager) MakeNumber(v int64) (RationalFormula, error) {
	return asRational(m.s.number(Rational, new(big.Rat).SetInt64(v)))
}

// MakeRational returns the rational numeral v.
func (m *RationalFormulaManager) MakeRational(v *big.Rat) (RationalFormula, error) {
	return asRational(m.s.number(Rational, new(big.Rat).Set(v)))
}

// MakeNumberFromString returns the numeral for a string such as "3", "1/3"
// or "0.25".
func (m *RationalFormulaManager) MakeNumberFromString(s string) (RationalFormula, error) {
	v, ok := new(big.Rat).SetString(s)
	if !ok {
		return RationalFormula{}, errors.Errorf("invalid rational numeral: %q", s)
	}
	return m.MakeRational(v)
}

// ToRational converts an integer formula to a rational one.
func (m *RationalFormulaManager) ToRational(a IntegerFormula) (RationalFormula, error) {
	return asRational(m.s.apply(Op(TO_REAL), a.term))
}

// Floor returns the greatest integer less than or equal to a.
func (m *RationalFormulaManager) Floor(a NumeralFormula) (IntegerFormula, error) {
	if a, ok := a.(IntegerFormula); ok {
		return a, nil
	}
	return asInteger(m.s.apply(Op(TO_INT), a.formula()))
}

// Negate returns -a.
func (m *RationalFormulaManager) Negate(a NumeralFormula) (RationalFormula, error) {
	return m.apply(NEG, a)
}

// Add returns a + b.
func (m *RationalFormulaManager) Add(a, b NumeralFormula) (RationalFormula, error) {
	return m.apply(ADD, a, b)
}

// Sum returns the sum of fs. An empty sum is zero.
func (m *RationalFormulaManager) Sum(fs ...NumeralFormula) (RationalFormula, error) {
	switch len(fs) {
	case 0:
		return m.MakeNumber(0)
	case 1:
		return m.promote(fs[0])
	}
	return m.apply(ADD, fs...)
}

// Subtract returns a - b.
func (m *RationalFormulaManager) Subtract(a, b NumeralFormula) (RationalFormula, error) {
	return m.apply(SUB, a, b)
}

// Multiply returns a * b.
func (m *RationalFormulaManager) Multiply(a, b NumeralFormula) (RationalFormula, error) {
	return m.apply(MUL, a, b)
}

// Divide returns a / b.
func (m *RationalFormulaManager) Divide(a, b NumeralFormula) (RationalFormula, error) {
	return m.apply(DIV, a, b)
}

// Equal returns a = b.
func (m *RationalFormulaManager) Equal(a, b NumeralFormula) (BooleanFormula, error) {
	return m.compare(EQ, a, b)
}

// Distinct returns true if all of fs are pairwise different.
func (m *RationalFormulaManager) Distinct(fs ...NumeralFormula) (BooleanFormula, error) {
	if len(fs) < 2 {
		return m.s.Booleans().MakeTrue()
	}
	return m.compare(DISTINCT, fs...)
}

// LessThan returns a < b.
func (m *RationalFormulaManager) LessThan(a, b NumeralFormula) (BooleanFormula, error) {
	return m.compare(LT, a, b)
}

// LessOrEquals returns a <= b.
func (m *RationalFormulaManager) LessOrEquals(a, b NumeralFormula) (BooleanFormula, error) {
	return m.compare(LE, a, b)
}

// GreaterThan returns a > b.
func (m *RationalFormulaManager) GreaterThan(a, b NumeralFormula) (BooleanFormula, error) {
	return m.compare(GT, a, b)
}

// GreaterOrEquals returns a >= b.
func (m *RationalFormulaManager) GreaterOrEquals(a, b NumeralFormula) (BooleanFormula, error) {
	return m.compare(GE, a, b)
}

func (m *RationalFormulaManager) apply(kind FunctionKind, args ...NumeralFormula) (RationalFormula, error) {
	a, err := m.promoteAll(args)
	if err != nil {
		return RationalFormula{}, err
	}
	return asRational(m.s.apply(Op(kind), a...))
}

func (m *RationalFormulaManager) compare(kind FunctionKind, args ...NumeralFormula) (BooleanFormula, error) {
	a, err := m.promoteAll(args)
	if err != nil {
		return BooleanFormula{}, err
	}
	return asBoolean(m.s.apply(Op(kind), a...))
}

// promote converts an integer formula to a rational one.
func (m *RationalFormulaManager) promote(f NumeralFormula) (RationalFormula, error) {
	switch f := f.(type) {
	case RationalFormula:
		return f, nil
	case IntegerFormula:
		return m.ToRational(f)
	default:
		return RationalFormula{}, errors.Wrapf(ErrTypeMismatch, "unexpected numeral formula: %T", f)
	}
}

func (m *RationalFormulaManager) promoteAll(a []NumeralFormula) ([]term, error) {
	other := make([]term, len(a))
	for i := range a {
		f, err := m.promote(a[i])
		if err != nil {
			return nil, err
		}
		other[i] = f.term
	}
	return other, nil
}

func asRational(t term, err error) (RationalFormula, error) {
	if err != nil {
		return RationalFormula{}, err
	}
	assert(t.typ == Rational, "expected Real, got %s", t.typ)
	return RationalFormula{t}, nil
}
