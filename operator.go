package smt

import (
	"fmt"

	"github.com/pkg/errors"
)

// FunctionKind represents a built-in (interpreted) function symbol.
type FunctionKind int

// Built-in function kinds.
const (
	bool_op_begin = FunctionKind(iota)
	NOT
	AND
	OR
	XOR
	IMPLIES
	IFF
	ITE
	EQ
	DISTINCT
	bool_op_end

	arith_op_begin
	NEG
	ADD
	SUB
	MUL
	DIV
	MOD
	LT
	LE
	GT
	GE
	TO_REAL
	TO_INT
	arith_op_end

	bv_op_begin
	BVNOT
	BVAND
	BVOR
	BVXOR
	BVNEG
	BVADD
	BVSUB
	BVMUL
	BVUDIV
	BVSDIV
	BVUREM
	BVSREM
	BVSMOD
	BVSHL
	BVLSHR
	BVASHR
	BVULT
	BVULE
	BVUGT
	BVUGE
	BVSLT
	BVSLE
	BVSGT
	BVSGE
	CONCAT
	EXTRACT
	ZERO_EXTEND
	SIGN_EXTEND
	bv_op_end

	array_op_begin
	SELECT
	STORE
	CONST_ARRAY
	array_op_end

	sl_op_begin
	SEP_STAR
	POINTS_TO
	MAGIC_WAND
	EMPTY_HEAP
	NIL_ELEMENT
	sl_op_end
)

var functionKinds = [...]string{
	NOT:      "not",
	AND:      "and",
	OR:       "or",
	XOR:      "xor",
	IMPLIES:  "=>",
	IFF:      "=",
	ITE:      "ite",
	EQ:       "=",
	DISTINCT: "distinct",

	NEG:     "-",
	ADD:     "+",
	SUB:     "-",
	MUL:     "*",
	DIV:     "div",
	MOD:     "mod",
	LT:      "<",
	LE:      "<=",
	GT:      ">",
	GE:      ">=",
	TO_REAL: "to_real",
	TO_INT:  "to_int",

	BVNOT:       "bvnot",
	BVAND:       "bvand",
	BVOR:        "bvor",
	BVXOR:       "bvxor",
	BVNEG:       "bvneg",
	BVADD:       "bvadd",
	BVSUB:       "bvsub",
	BVMUL:       "bvmul",
	BVUDIV:      "bvudiv",
	BVSDIV:      "bvsdiv",
	BVUREM:      "bvurem",
	BVSREM:      "bvsrem",
	BVSMOD:      "bvsmod",
	BVSHL:       "bvshl",
	BVLSHR:      "bvlshr",
	BVASHR:      "bvashr",
	BVULT:       "bvult",
	BVULE:       "bvule",
	BVUGT:       "bvugt",
	BVUGE:       "bvuge",
	BVSLT:       "bvslt",
	BVSLE:       "bvsle",
	BVSGT:       "bvsgt",
	BVSGE:       "bvsge",
	CONCAT:      "concat",
	EXTRACT:     "extract",
	ZERO_EXTEND: "zero_extend",
	SIGN_EXTEND: "sign_extend",

	SELECT:      "select",
	STORE:       "store",
	CONST_ARRAY: "const",

	SEP_STAR:    "sep",
	POINTS_TO:   "pto",
	MAGIC_WAND:  "wand",
	EMPTY_HEAP:  "emp",
	NIL_ELEMENT: "nil",
}

// String returns the SMT-LIB name of the function.
func (k FunctionKind) String() string {
	if k >= 0 && k < FunctionKind(len(functionKinds)) && functionKinds[k] != "" {
		return functionKinds[k]
	}
	return fmt.Sprintf("FunctionKind<%d>", k)
}

// IsBoolean returns true if k is a propositional connective or equality.
func (k FunctionKind) IsBoolean() bool { return k > bool_op_begin && k < bool_op_end }

// IsArithmetic returns true if k is an integer or rational operation.
func (k FunctionKind) IsArithmetic() bool { return k > arith_op_begin && k < arith_op_end }

// IsBitvector returns true if k is a bitvector operation.
func (k FunctionKind) IsBitvector() bool { return k > bv_op_begin && k < bv_op_end }

// IsArray returns true if k is an array operation.
func (k FunctionKind) IsArray() bool { return k > array_op_begin && k < array_op_end }

// IsSeparationLogic returns true if k is a separation-logic operation.
func (k FunctionKind) IsSeparationLogic() bool { return k > sl_op_begin && k < sl_op_end }

// Operator is a built-in function kind together with its indices.
// EXTRACT takes (hi, lo), ZERO_EXTEND and SIGN_EXTEND take (n).
// CONST_ARRAY carries its array sort in Sort.
type Operator struct {
	Kind   FunctionKind
	Params []int
	Sort   Type
}

// Op returns an Operator without indices.
func Op(kind FunctionKind, params ...int) Operator {
	return Operator{Kind: kind, Params: params}
}

// String returns the SMT-LIB rendering of the operator head.
func (op Operator) String() string {
	switch {
	case len(op.Params) > 0:
		s := "(_ " + op.Kind.String()
		for _, p := range op.Params {
			s += fmt.Sprintf(" %d", p)
		}
		return s + ")"
	case op.Kind == CONST_ARRAY && op.Sort != nil:
		return fmt.Sprintf("(as const %s)", op.Sort)
	default:
		return op.Kind.String()
	}
}

// ResultType validates the argument types for op and returns the type of
// the application. Returns an error wrapping ErrTypeMismatch on failure.
func (op Operator) ResultType(args ...Type) (Type, error) {
	k := op.Kind
	switch k {
	case NOT:
		if err := op.checkArity(args, 1); err != nil {
			return nil, err
		}
		return Bool, op.checkAll(args, Bool)
	case AND, OR:
		return Bool, op.checkAll(args, Bool)
	case XOR, IMPLIES, IFF:
		if err := op.checkArity(args, 2); err != nil {
			return nil, err
		}
		return Bool, op.checkAll(args, Bool)
	case ITE:
		if err := op.checkArity(args, 3); err != nil {
			return nil, err
		} else if err := op.checkAll(args[:1], Bool); err != nil {
			return nil, err
		} else if args[1] != args[2] {
			return nil, op.mismatch(2, args[2], args[1])
		}
		return args[1], nil
	case EQ, DISTINCT:
		if len(args) < 2 {
			return nil, op.arityError(len(args), 2)
		}
		return Bool, op.checkAll(args, args[0])

	case NEG:
		if err := op.checkArity(args, 1); err != nil {
			return nil, err
		}
		return args[0], op.checkNumeral(args)
	case ADD, SUB, MUL:
		if len(args) < 2 {
			return nil, op.arityError(len(args), 2)
		}
		return args[0], op.checkNumeral(args)
	case DIV:
		if err := op.checkArity(args, 2); err != nil {
			return nil, err
		}
		return args[0], op.checkNumeral(args)
	case MOD:
		if err := op.checkArity(args, 2); err != nil {
			return nil, err
		}
		return Int, op.checkAll(args, Int)
	case LT, LE, GT, GE:
		if err := op.checkArity(args, 2); err != nil {
			return nil, err
		}
		return Bool, op.checkNumeral(args)
	case TO_REAL:
		if err := op.checkArity(args, 1); err != nil {
			return nil, err
		}
		return Rational, op.checkAll(args, Int)
	case TO_INT:
		if err := op.checkArity(args, 1); err != nil {
			return nil, err
		}
		return Int, op.checkAll(args, Rational)

	case BVNOT, BVNEG:
		if err := op.checkArity(args, 1); err != nil {
			return nil, err
		}
		return args[0], op.checkBitvector(args)
	case BVAND, BVOR, BVXOR, BVADD, BVSUB, BVMUL, BVUDIV, BVSDIV, BVUREM, BVSREM, BVSMOD, BVSHL, BVLSHR, BVASHR:
		if err := op.checkArity(args, 2); err != nil {
			return nil, err
		}
		return args[0], op.checkBitvector(args)
	case BVULT, BVULE, BVUGT, BVUGE, BVSLT, BVSLE, BVSGT, BVSGE:
		if err := op.checkArity(args, 2); err != nil {
			return nil, err
		}
		return Bool, op.checkBitvector(args)
	case CONCAT:
		if err := op.checkArity(args, 2); err != nil {
			return nil, err
		}
		for i, arg := range args {
			if BitvectorWidth(arg) == 0 {
				return nil, errors.Wrapf(ErrTypeMismatch, "%s: argument %d has type %s, expected bitvector", op, i, arg)
			}
		}
		return NewBitvectorType(BitvectorWidth(args[0]) + BitvectorWidth(args[1])), nil
	case EXTRACT:
		if err := op.checkArity(args, 1); err != nil {
			return nil, err
		} else if err := op.checkBitvector(args); err != nil {
			return nil, err
		} else if len(op.Params) != 2 {
			return nil, errors.Wrapf(ErrTypeMismatch, "%s: expected 2 indices, got %d", op.Kind, len(op.Params))
		}
		hi, lo, w := op.Params[0], op.Params[1], BitvectorWidth(args[0])
		if lo < 0 || hi < lo || hi >= w {
			return nil, errors.Wrapf(ErrTypeMismatch, "%s: invalid range [%d:%d] for width %d", op.Kind, hi, lo, w)
		}
		return NewBitvectorType(hi - lo + 1), nil
	case ZERO_EXTEND, SIGN_EXTEND:
		if err := op.checkArity(args, 1); err != nil {
			return nil, err
		} else if err := op.checkBitvector(args); err != nil {
			return nil, err
		} else if len(op.Params) != 1 || op.Params[0] < 0 {
			return nil, errors.Wrapf(ErrTypeMismatch, "%s: expected one non-negative index", op.Kind)
		}
		return NewBitvectorType(BitvectorWidth(args[0]) + op.Params[0]), nil

	case SELECT:
		if err := op.checkArity(args, 2); err != nil {
			return nil, err
		}
		at, ok := args[0].(ArrayType)
		if !ok {
			return nil, errors.Wrapf(ErrTypeMismatch, "%s: argument 0 has type %s, expected array", op, args[0])
		} else if args[1] != at.Index {
			return nil, op.mismatch(1, args[1], at.Index)
		}
		return at.Elem, nil
	case STORE:
		if err := op.checkArity(args, 3); err != nil {
			return nil, err
		}
		at, ok := args[0].(ArrayType)
		if !ok {
			return nil, errors.Wrapf(ErrTypeMismatch, "%s: argument 0 has type %s, expected array", op, args[0])
		} else if args[1] != at.Index {
			return nil, op.mismatch(1, args[1], at.Index)
		} else if args[2] != at.Elem {
			return nil, op.mismatch(2, args[2], at.Elem)
		}
		return at, nil
	case CONST_ARRAY:
		if err := op.checkArity(args, 1); err != nil {
			return nil, err
		}
		at, ok := op.Sort.(ArrayType)
		if !ok {
			return nil, errors.Wrapf(ErrTypeMismatch, "%s: missing array sort", op.Kind)
		} else if args[0] != at.Elem {
			return nil, op.mismatch(0, args[0], at.Elem)
		}
		return at, nil

	case SEP_STAR, MAGIC_WAND:
		if err := op.checkArity(args, 2); err != nil {
			return nil, err
		}
		return Bool, op.checkAll(args, Bool)
	case POINTS_TO, EMPTY_HEAP:
		return Bool, op.checkArity(args, 2)
	case NIL_ELEMENT:
		return Bool, op.checkArity(args, 1)
	}
	return nil, errors.Wrapf(ErrUnsupported, "unknown function kind: %s", k)
}

func (op Operator) checkArity(args []Type, n int) error {
	if len(args) != n {
		return op.arityError(len(args), n)
	}
	return nil
}

func (op Operator) arityError(got, want int) error {
	return errors.Wrapf(ErrTypeMismatch, "%s: got %d arguments, expected %d", op, got, want)
}

func (op Operator) mismatch(i int, got, want Type) error {
	return errors.Wrapf(ErrTypeMismatch, "%s: argument %d has type %s, expected %s", op, i, got, want)
}

// checkAll ensures every argument has type want.
func (op Operator) checkAll(args []Type, want Type) error {
	for i, arg := range args {
		if arg != want {
			return op.mismatch(i, arg, want)
		}
	}
	return nil
}

// checkNumeral ensures all arguments share a single numeral type.
func (op Operator) checkNumeral(args []Type) error {
	if !IsNumeral(args[0]) {
		return errors.Wrapf(ErrTypeMismatch, "%s: argument 0 has type %s, expected Int or Real", op, args[0])
	}
	return op.checkAll(args, args[0])
}

// checkBitvector ensures all arguments are bitvectors of the same width.
func (op Operator) checkBitvector(args []Type) error {
	if BitvectorWidth(args[0]) == 0 {
		return errors.Wrapf(ErrTypeMismatch, "%s: argument 0 has type %s, expected bitvector", op, args[0])
	}
	return op.checkAll(args, args[0])
}
