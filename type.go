package smt

import (
	"fmt"
)

// Type represents the semantic sort of a formula. All implementations are
// comparable values so types can be checked with ==.
type Type interface {
	fmt.Stringer
	typ()
}

func (BooleanType) typ()   {}
func (IntegerType) typ()   {}
func (RationalType) typ()  {}
func (BitvectorType) typ() {}
func (ArrayType) typ()     {}

// Standard types.
var (
	Bool     Type = BooleanType{}
	Int      Type = IntegerType{}
	Rational Type = RationalType{}
)

// BooleanType is the sort of propositions.
type BooleanType struct{}

func (BooleanType) String() string { return "Bool" }

// IntegerType is the sort of mathematical integers.
type IntegerType struct{}

func (IntegerType) String() string { return "Int" }

// RationalType is the sort of rational numbers.
type RationalType struct{}

func (RationalType) String() string { return "Real" }

// BitvectorType is the sort of fixed-width bitvectors.
type BitvectorType struct {
	Width int
}

// NewBitvectorType returns a new instance of BitvectorType.
func NewBitvectorType(width int) BitvectorType {
	return BitvectorType{Width: width}
}

func (t BitvectorType) String() string {
	return fmt.Sprintf("(_ BitVec %d)", t.Width)
}

// ArrayType is the sort of arrays mapping Index to Elem.
type ArrayType struct {
	Index Type
	Elem  Type
}

// NewArrayType returns a new instance of ArrayType.
func NewArrayType(index, elem Type) ArrayType {
	return ArrayType{Index: index, Elem: elem}
}

func (t ArrayType) String() string {
	return fmt.Sprintf("(Array %s %s)", t.Index, t.Elem)
}

// IsNumeral returns true if typ is Int or Real.
func IsNumeral(typ Type) bool {
	switch typ.(type) {
	case IntegerType, RationalType:
		return true
	default:
		return false
	}
}

// BitvectorWidth returns the width of typ or zero if typ is not a bitvector.
func BitvectorWidth(typ Type) int {
	if t, ok := typ.(BitvectorType); ok {
		return t.Width
	}
	return 0
}
