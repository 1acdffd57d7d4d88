package smt

import (
	"math/big"

	"github.com/pkg/errors"
)

// IntegerFormulaManager constructs formulas over mathematical integers.
//
// Divide and Modulo follow the Euclidean convention of SMT-LIB: for b != 0,
// a = b*(a div b) + (a mod b) with 0 <= (a mod b) < |b|. Backends which
// cannot honor this fail with ErrUnsupported.
type IntegerFormulaManager struct {
	s *Solver
}

// MakeVariable returns the integer variable name.
func (m *IntegerFormulaManager) MakeVariable(name string) (IntegerFormula, error) {
	return asInteger(m.s.variable(Int, name))
}

// MakeNumber returns the integer numeral v.
func (m *IntegerFormulaManager) MakeNumber(v int64) (IntegerFormula, error) {
	return asInteger(m.s.number(Int, new(big.Rat).SetInt64(v)))
}

// MakeBigNumber returns the arbitrary-precision integer numeral v.
func (m *IntegerFormulaManager) MakeBigNumber(v *big.Int) (IntegerFormula, error) {
	return asInteger(m.s.number(Int, new(big.Rat).SetInt(v)))
}

// MakeNumberFromString returns the integer numeral for a base-10 string.
func (m *IntegerFormulaManager) MakeNumberFromString(s string) (IntegerFormula, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return IntegerFormula{}, errors.Errorf("invalid integer numeral: %q", s)
	}
	return m.MakeBigNumber(v)
}

// Negate returns -a.
func (m *IntegerFormulaManager) Negate(a IntegerFormula) (IntegerFormula, error) {
	return asInteger(m.s.apply(Op(NEG), a.term))
}

// Add returns a + b.
func (m *IntegerFormulaManager) Add(a, b IntegerFormula) (IntegerFormula, error) {
	return asInteger(m.s.apply(Op(ADD), a.term, b.term))
}

// Sum returns the sum of fs. An empty sum is zero.
func (m *IntegerFormulaManager) Sum(fs ...IntegerFormula) (IntegerFormula, error) {
	switch len(fs) {
	case 0:
		return m.MakeNumber(0)
	case 1:
		return fs[0], nil
	}
	return asInteger(m.s.apply(Op(ADD), terms(fs)...))
}

// Subtract returns a - b.
func (m *IntegerFormulaManager) Subtract(a, b IntegerFormula) (IntegerFormula, error) {
	return asInteger(m.s.apply(Op(SUB), a.term, b.term))
}

// Multiply returns a * b.
func (m *IntegerFormulaManager) Multiply(a, b IntegerFormula) (IntegerFormula, error) {
	return asInteger(m.s.apply(Op(MUL), a.term, b.term))
}

// Divide returns the Euclidean quotient a div b.
func (m *IntegerFormulaManager) Divide(a, b IntegerFormula) (IntegerFormula, error) {
	return asInteger(m.s.apply(Op(DIV), a.term, b.term))
}

// Modulo returns the Euclidean remainder a mod b.
func (m *IntegerFormulaManager) Modulo(a, b IntegerFormula) (IntegerFormula, error) {
	return asInteger(m.s.apply(Op(MOD), a.term, b.term))
}

// ModularCongruence returns a ≡ b (mod n). For n <= 0 the constraint is
// trivially true.
func (m *IntegerFormulaManager) ModularCongruence(a, b IntegerFormula, n int64) (BooleanFormula, error) {
	return m.ModularCongruenceBig(a, b, big.NewInt(n))
}

// ModularCongruenceBig returns a ≡ b (mod n) for an arbitrary-precision
// modulus. For n <= 0 the constraint is trivially true.
func (m *IntegerFormulaManager) ModularCongruenceBig(a, b IntegerFormula, n *big.Int) (BooleanFormula, error) {
	if n.Sign() <= 0 {
		return m.s.Booleans().MakeTrue()
	}

	diff, err := m.Subtract(a, b)
	if err != nil {
		return BooleanFormula{}, err
	}
	modulus, err := m.MakeBigNumber(n)
	if err != nil {
		return BooleanFormula{}, err
	}
	rem, err := m.Modulo(diff, modulus)
	if err != nil {
		return BooleanFormula{}, err
	}
	zero, err := m.MakeNumber(0)
	if err != nil {
		return BooleanFormula{}, err
	}
	return m.Equal(rem, zero)
}

// Equal returns a = b.
func (m *IntegerFormulaManager) Equal(a, b IntegerFormula) (BooleanFormula, error) {
	return asBoolean(m.s.apply(Op(EQ), a.term, b.term))
}

// Distinct returns true if all of fs are pairwise different.
func (m *IntegerFormulaManager) Distinct(fs ...IntegerFormula) (BooleanFormula, error) {
	if len(fs) < 2 {
		return m.s.Booleans().MakeTrue()
	}
	return asBoolean(m.s.apply(Op(DISTINCT), terms(fs)...))
}

// LessThan returns a < b.
func (m *IntegerFormulaManager) LessThan(a, b IntegerFormula) (BooleanFormula, error) {
	return asBoolean(m.s.apply(Op(LT), a.term, b.term))
}

// LessOrEquals returns a <= b.
func (m *IntegerFormulaManager) LessOrEquals(a, b IntegerFormula) (BooleanFormula, error) {
	return asBoolean(m.s.apply(Op(LE), a.term, b.term))
}

// GreaterThan returns a > b.
func (m *IntegerFormulaManager) GreaterThan(a, b IntegerFormula) (BooleanFormula, error) {
	return asBoolean(m.s.apply(Op(GT), a.term, b.term))
}

// GreaterOrEquals returns a >= b.
func (m *IntegerFormulaManager) GreaterOrEquals(a, b IntegerFormula) (BooleanFormula, error) {
	return asBoolean(m.s.apply(Op(GE), a.term, b.term))
}

func asInteger(t term, err error) (IntegerFormula, error) {
	if err != nil {
		return IntegerFormula{}, err
	}
	assert(t.typ == Int, "expected Int, got %s", t.typ)
	return IntegerFormula{t}, nil
}
