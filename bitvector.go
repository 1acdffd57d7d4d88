package smt

import (
	"math/big"

	"github.com/pkg/errors"
)

// BitvectorFormulaManager constructs formulas over fixed-width bitvectors.
// Signedness is a property of the operation, not of the bitvector.
type BitvectorFormulaManager struct {
	s *Solver
}

// MakeVariable returns the bitvector variable name of the given width.
func (m *BitvectorFormulaManager) MakeVariable(width int, name string) (BitvectorFormula, error) {
	return asBitvector(m.s.variable(NewBitvectorType(width), name))
}

// MakeBitvector returns the numeral v of the given width. v must be
// representable as either a signed or an unsigned value of that width;
// negative values are stored in two's complement.
func (m *BitvectorFormulaManager) MakeBitvector(width int, v *big.Int) (BitvectorFormula, error) {
	if width <= 0 {
		return BitvectorFormula{}, errors.Wrapf(ErrTypeMismatch, "invalid bitvector width: %d", width)
	}
	modulus := new(big.Int).Lsh(big.NewInt(1), uint(width))
	lower := new(big.Int).Neg(new(big.Int).Rsh(modulus, 1))
	if v.Cmp(lower) < 0 || v.Cmp(modulus) >= 0 {
		return BitvectorFormula{}, errors.Errorf("bitvector value %s does not fit in %d bits", v, width)
	}
	u := new(big.Int).Mod(v, modulus)
	return asBitvector(m.s.number(NewBitvectorType(width), new(big.Rat).SetInt(u)))
}

// MakeInt64 returns the numeral v of the given width.
func (m *BitvectorFormulaManager) MakeInt64(width int, v int64) (BitvectorFormula, error) {
	return m.MakeBitvector(width, big.NewInt(v))
}

// Width returns the width of f.
func (m *BitvectorFormulaManager) Width(f BitvectorFormula) int {
	return f.Width()
}

// Not returns the bitwise negation of a.
func (m *BitvectorFormulaManager) Not(a BitvectorFormula) (BitvectorFormula, error) {
	return asBitvector(m.s.apply(Op(BVNOT), a.term))
}

// And returns the bitwise conjunction of a and b.
func (m *BitvectorFormulaManager) And(a, b BitvectorFormula) (BitvectorFormula, error) {
	return asBitvector(m.s.apply(Op(BVAND), a.term, b.term))
}

// Or returns the bitwise disjunction of a and b.
func (m *BitvectorFormulaManager) Or(a, b BitvectorFormula) (BitvectorFormula, error) {
	return asBitvector(m.s.apply(Op(BVOR), a.term, b.term))
}

// Xor returns the bitwise exclusive disjunction of a and b.
func (m *BitvectorFormulaManager) Xor(a, b BitvectorFormula) (BitvectorFormula, error) {
	return asBitvector(m.s.apply(Op(BVXOR), a.term, b.term))
}

// Negate returns the two's complement negation of a.
func (m *BitvectorFormulaManager) Negate(a BitvectorFormula) (BitvectorFormula, error) {
	return asBitvector(m.s.apply(Op(BVNEG), a.term))
}

// Add returns a + b modulo 2^width.
func (m *BitvectorFormulaManager) Add(a, b BitvectorFormula) (BitvectorFormula, error) {
	return asBitvector(m.s.apply(Op(BVADD), a.term, b.term))
}

// Subtract returns a - b modulo 2^width.
func (m *BitvectorFormulaManager) Subtract(a, b BitvectorFormula) (BitvectorFormula, error) {
	return asBitvector(m.s.apply(Op(BVSUB), a.term, b.term))
}

// Multiply returns a * b modulo 2^width.
func (m *BitvectorFormulaManager) Multiply(a, b BitvectorFormula) (BitvectorFormula, error) {
	return asBitvector(m.s.apply(Op(BVMUL), a.term, b.term))
}

// Divide returns the quotient of a and b. Division by zero follows SMT-LIB.
func (m *BitvectorFormulaManager) Divide(a, b BitvectorFormula, signed bool) (BitvectorFormula, error) {
	if signed {
		return asBitvector(m.s.apply(Op(BVSDIV), a.term, b.term))
	}
	return asBitvector(m.s.apply(Op(BVUDIV), a.term, b.term))
}

// Remainder returns the remainder of a and b. The signed remainder takes
// the sign of a.
func (m *BitvectorFormulaManager) Remainder(a, b BitvectorFormula, signed bool) (BitvectorFormula, error) {
	if signed {
		return asBitvector(m.s.apply(Op(BVSREM), a.term, b.term))
	}
	return asBitvector(m.s.apply(Op(BVUREM), a.term, b.term))
}

// SignedModulo returns the signed modulo of a and b, which takes the sign
// of b.
func (m *BitvectorFormulaManager) SignedModulo(a, b BitvectorFormula) (BitvectorFormula, error) {
	return asBitvector(m.s.apply(Op(BVSMOD), a.term, b.term))
}

// ShiftLeft returns a shifted left by n.
func (m *BitvectorFormulaManager) ShiftLeft(a, n BitvectorFormula) (BitvectorFormula, error) {
	return asBitvector(m.s.apply(Op(BVSHL), a.term, n.term))
}

// ShiftRight returns a shifted right by n. A signed shift replicates the
// sign bit.
func (m *BitvectorFormulaManager) ShiftRight(a, n BitvectorFormula, signed bool) (BitvectorFormula, error) {
	if signed {
		return asBitvector(m.s.apply(Op(BVASHR), a.term, n.term))
	}
	return asBitvector(m.s.apply(Op(BVLSHR), a.term, n.term))
}

// Equal returns a = b.
func (m *BitvectorFormulaManager) Equal(a, b BitvectorFormula) (BooleanFormula, error) {
	return asBoolean(m.s.apply(Op(EQ), a.term, b.term))
}

// LessThan returns a < b.
func (m *BitvectorFormulaManager) LessThan(a, b BitvectorFormula, signed bool) (BooleanFormula, error) {
	return m.compare(BVULT, BVSLT, a, b, signed)
}

// LessOrEquals returns a <= b.
func (m *BitvectorFormulaManager) LessOrEquals(a, b BitvectorFormula, signed bool) (BooleanFormula, error) {
	return m.compare(BVULE, BVSLE, a, b, signed)
}

// GreaterThan returns a > b.
func (m *BitvectorFormulaManager) GreaterThan(a, b BitvectorFormula, signed bool) (BooleanFormula, error) {
	return m.compare(BVUGT, BVSGT, a, b, signed)
}

// GreaterOrEquals returns a >= b.
func (m *BitvectorFormulaManager) GreaterOrEquals(a, b BitvectorFormula, signed bool) (BooleanFormula, error) {
	return m.compare(BVUGE, BVSGE, a, b, signed)
}

func (m *BitvectorFormulaManager) compare(unsignedOp, signedOp FunctionKind, a, b BitvectorFormula, signed bool) (BooleanFormula, error) {
	if signed {
		return asBoolean(m.s.apply(Op(signedOp), a.term, b.term))
	}
	return asBoolean(m.s.apply(Op(unsignedOp), a.term, b.term))
}

// Concat returns the concatenation of msb and lsb.
func (m *BitvectorFormulaManager) Concat(msb, lsb BitvectorFormula) (BitvectorFormula, error) {
	return asBitvector(m.s.apply(Op(CONCAT), msb.term, lsb.term))
}

// Extract returns bits hi down to lo (inclusive) of f.
func (m *BitvectorFormulaManager) Extract(f BitvectorFormula, hi, lo int) (BitvectorFormula, error) {
	return asBitvector(m.s.apply(Op(EXTRACT, hi, lo), f.term))
}

// Extend widens f by n bits, with the sign bit if signed and zeros otherwise.
func (m *BitvectorFormulaManager) Extend(f BitvectorFormula, n int, signed bool) (BitvectorFormula, error) {
	if signed {
		return asBitvector(m.s.apply(Op(SIGN_EXTEND, n), f.term))
	}
	return asBitvector(m.s.apply(Op(ZERO_EXTEND, n), f.term))
}

func asBitvector(t term, err error) (BitvectorFormula, error) {
	if err != nil {
		return BitvectorFormula{}, err
	}
	assert(BitvectorWidth(t.typ) > 0, "expected bitvector, got %s", t.typ)
	return BitvectorFormula{t}, nil
}
