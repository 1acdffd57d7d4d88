package z3

import (
	"fmt"
	"math/big"

	"github.com/benbjohnson/smt"
	"github.com/pkg/errors"
)

/*
#include <z3.h>
*/
import "C"

// Apply returns the application of a built-in operator.
func (b *backend) Apply(op smt.Operator, args []C.Z3_ast) (C.Z3_ast, error) {
	if err := b.lock(); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	return b.ctx.apply(op, args)
}

func (ctx *Context) apply(op smt.Operator, args []C.Z3_ast) (C.Z3_ast, error) {
	raw := ctx.raw
	switch op.Kind {
	case smt.NOT:
		return C.Z3_mk_not(raw, args[0]), ctx.err("Z3_mk_not")
	case smt.AND:
		if len(args) == 0 {
			return C.Z3_mk_true(raw), ctx.err("Z3_mk_true")
		}
		return C.Z3_mk_and(raw, C.uint(len(args)), &args[0]), ctx.err("Z3_mk_and")
	case smt.OR:
		if len(args) == 0 {
			return C.Z3_mk_false(raw), ctx.err("Z3_mk_false")
		}
		return C.Z3_mk_or(raw, C.uint(len(args)), &args[0]), ctx.err("Z3_mk_or")
	case smt.XOR:
		return C.Z3_mk_xor(raw, args[0], args[1]), ctx.err("Z3_mk_xor")
	case smt.IMPLIES:
		return C.Z3_mk_implies(raw, args[0], args[1]), ctx.err("Z3_mk_implies")
	case smt.IFF:
		return C.Z3_mk_iff(raw, args[0], args[1]), ctx.err("Z3_mk_iff")
	case smt.ITE:
		return C.Z3_mk_ite(raw, args[0], args[1], args[2]), ctx.err("Z3_mk_ite")
	case smt.EQ:
		return ctx.toEqAST(args)
	case smt.DISTINCT:
		return C.Z3_mk_distinct(raw, C.uint(len(args)), &args[0]), ctx.err("Z3_mk_distinct")

	case smt.NEG:
		return C.Z3_mk_unary_minus(raw, args[0]), ctx.err("Z3_mk_unary_minus")
	case smt.ADD:
		return C.Z3_mk_add(raw, C.uint(len(args)), &args[0]), ctx.err("Z3_mk_add")
	case smt.SUB:
		return C.Z3_mk_sub(raw, C.uint(len(args)), &args[0]), ctx.err("Z3_mk_sub")
	case smt.MUL:
		return C.Z3_mk_mul(raw, C.uint(len(args)), &args[0]), ctx.err("Z3_mk_mul")
	case smt.DIV:
		return C.Z3_mk_div(raw, args[0], args[1]), ctx.err("Z3_mk_div")
	case smt.MOD:
		return C.Z3_mk_mod(raw, args[0], args[1]), ctx.err("Z3_mk_mod")
	case smt.LT:
		return C.Z3_mk_lt(raw, args[0], args[1]), ctx.err("Z3_mk_lt")
	case smt.LE:
		return C.Z3_mk_le(raw, args[0], args[1]), ctx.err("Z3_mk_le")
	case smt.GT:
		return C.Z3_mk_gt(raw, args[0], args[1]), ctx.err("Z3_mk_gt")
	case smt.GE:
		return C.Z3_mk_ge(raw, args[0], args[1]), ctx.err("Z3_mk_ge")
	case smt.TO_REAL:
		return C.Z3_mk_int2real(raw, args[0]), ctx.err("Z3_mk_int2real")
	case smt.TO_INT:
		return C.Z3_mk_real2int(raw, args[0]), ctx.err("Z3_mk_real2int")

	case smt.BVNOT:
		return C.Z3_mk_bvnot(raw, args[0]), ctx.err("Z3_mk_bvnot")
	case smt.BVNEG:
		return C.Z3_mk_bvneg(raw, args[0]), ctx.err("Z3_mk_bvneg")
	case smt.BVAND:
		return C.Z3_mk_bvand(raw, args[0], args[1]), ctx.err("Z3_mk_bvand")
	case smt.BVOR:
		return C.Z3_mk_bvor(raw, args[0], args[1]), ctx.err("Z3_mk_bvor")
	case smt.BVXOR:
		return C.Z3_mk_bvxor(raw, args[0], args[1]), ctx.err("Z3_mk_bvxor")
	case smt.BVADD:
		return C.Z3_mk_bvadd(raw, args[0], args[1]), ctx.err("Z3_mk_bvadd")
	case smt.BVSUB:
		return C.Z3_mk_bvsub(raw, args[0], args[1]), ctx.err("Z3_mk_bvsub")
	case smt.BVMUL:
		return C.Z3_mk_bvmul(raw, args[0], args[1]), ctx.err("Z3_mk_bvmul")
	case smt.BVUDIV:
		return C.Z3_mk_bvudiv(raw, args[0], args[1]), ctx.err("Z3_mk_bvudiv")
	case smt.BVSDIV:
		return C.Z3_mk_bvsdiv(raw, args[0], args[1]), ctx.err("Z3_mk_bvsdiv")
	case smt.BVUREM:
		return C.Z3_mk_bvurem(raw, args[0], args[1]), ctx.err("Z3_mk_bvurem")
	case smt.BVSREM:
		return C.Z3_mk_bvsrem(raw, args[0], args[1]), ctx.err("Z3_mk_bvsrem")
	case smt.BVSMOD:
		return C.Z3_mk_bvsmod(raw, args[0], args[1]), ctx.err("Z3_mk_bvsmod")
	case smt.BVSHL:
		return C.Z3_mk_bvshl(raw, args[0], args[1]), ctx.err("Z3_mk_bvshl")
	case smt.BVLSHR:
		return C.Z3_mk_bvlshr(raw, args[0], args[1]), ctx.err("Z3_mk_bvlshr")
	case smt.BVASHR:
		return C.Z3_mk_bvashr(raw, args[0], args[1]), ctx.err("Z3_mk_bvashr")
	case smt.BVULT:
		return C.Z3_mk_bvult(raw, args[0], args[1]), ctx.err("Z3_mk_bvult")
	case smt.BVULE:
		return C.Z3_mk_bvule(raw, args[0], args[1]), ctx.err("Z3_mk_bvule")
	case smt.BVUGT:
		return C.Z3_mk_bvugt(raw, args[0], args[1]), ctx.err("Z3_mk_bvugt")
	case smt.BVUGE:
		return C.Z3_mk_bvuge(raw, args[0], args[1]), ctx.err("Z3_mk_bvuge")
	case smt.BVSLT:
		return C.Z3_mk_bvslt(raw, args[0], args[1]), ctx.err("Z3_mk_bvslt")
	case smt.BVSLE:
		return C.Z3_mk_bvsle(raw, args[0], args[1]), ctx.err("Z3_mk_bvsle")
	case smt.BVSGT:
		return C.Z3_mk_bvsgt(raw, args[0], args[1]), ctx.err("Z3_mk_bvsgt")
	case smt.BVSGE:
		return C.Z3_mk_bvsge(raw, args[0], args[1]), ctx.err("Z3_mk_bvsge")
	case smt.CONCAT:
		return C.Z3_mk_concat(raw, args[0], args[1]), ctx.err("Z3_mk_concat")
	case smt.EXTRACT:
		return C.Z3_mk_extract(raw, C.uint(op.Params[0]), C.uint(op.Params[1]), args[0]), ctx.err("Z3_mk_extract")
	case smt.ZERO_EXTEND:
		return C.Z3_mk_zero_ext(raw, C.uint(op.Params[0]), args[0]), ctx.err("Z3_mk_zero_ext")
	case smt.SIGN_EXTEND:
		return C.Z3_mk_sign_ext(raw, C.uint(op.Params[0]), args[0]), ctx.err("Z3_mk_sign_ext")

	case smt.SELECT:
		return C.Z3_mk_select(raw, args[0], args[1]), ctx.err("Z3_mk_select")
	case smt.STORE:
		return C.Z3_mk_store(raw, args[0], args[1], args[2]), ctx.err("Z3_mk_store")
	case smt.CONST_ARRAY:
		at, ok := op.Sort.(smt.ArrayType)
		if !ok {
			return nil, errors.Wrapf(smt.ErrTypeMismatch, "z3: %s: missing array sort", op.Kind)
		}
		domain, err := ctx.toSort(at.Index)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_const_array(raw, domain, args[0]), ctx.err("Z3_mk_const_array")

	default:
		return nil, errors.Wrapf(smt.ErrUnsupported, "z3: %s", op)
	}
}

// toEqAST returns a chained equality over args.
func (ctx *Context) toEqAST(args []C.Z3_ast) (C.Z3_ast, error) {
	if len(args) == 2 {
		return C.Z3_mk_eq(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_eq")
	}

	conjuncts := make([]C.Z3_ast, 0, len(args)-1)
	for i := 1; i < len(args); i++ {
		eq := C.Z3_mk_eq(ctx.raw, args[i-1], args[i])
		if err := ctx.err("Z3_mk_eq"); err != nil {
			return nil, err
		}
		conjuncts = append(conjuncts, eq)
	}
	return C.Z3_mk_and(ctx.raw, C.uint(len(conjuncts)), &conjuncts[0]), ctx.err("Z3_mk_and")
}

// functionKinds maps interpreted Z3 declarations to function kinds.
var functionKinds = map[C.Z3_decl_kind]smt.FunctionKind{
	C.Z3_OP_NOT:      smt.NOT,
	C.Z3_OP_AND:      smt.AND,
	C.Z3_OP_OR:       smt.OR,
	C.Z3_OP_XOR:      smt.XOR,
	C.Z3_OP_IMPLIES:  smt.IMPLIES,
	C.Z3_OP_IFF:      smt.IFF,
	C.Z3_OP_ITE:      smt.ITE,
	C.Z3_OP_EQ:       smt.EQ,
	C.Z3_OP_DISTINCT: smt.DISTINCT,

	C.Z3_OP_UMINUS:  smt.NEG,
	C.Z3_OP_ADD:     smt.ADD,
	C.Z3_OP_SUB:     smt.SUB,
	C.Z3_OP_MUL:     smt.MUL,
	C.Z3_OP_DIV:     smt.DIV,
	C.Z3_OP_IDIV:    smt.DIV,
	C.Z3_OP_MOD:     smt.MOD,
	C.Z3_OP_LT:      smt.LT,
	C.Z3_OP_LE:      smt.LE,
	C.Z3_OP_GT:      smt.GT,
	C.Z3_OP_GE:      smt.GE,
	C.Z3_OP_TO_REAL: smt.TO_REAL,
	C.Z3_OP_TO_INT:  smt.TO_INT,

	C.Z3_OP_BNOT:     smt.BVNOT,
	C.Z3_OP_BNEG:     smt.BVNEG,
	C.Z3_OP_BAND:     smt.BVAND,
	C.Z3_OP_BOR:      smt.BVOR,
	C.Z3_OP_BXOR:     smt.BVXOR,
	C.Z3_OP_BADD:     smt.BVADD,
	C.Z3_OP_BSUB:     smt.BVSUB,
	C.Z3_OP_BMUL:     smt.BVMUL,
	C.Z3_OP_BUDIV:    smt.BVUDIV,
	C.Z3_OP_BUDIV_I:  smt.BVUDIV,
	C.Z3_OP_BSDIV:    smt.BVSDIV,
	C.Z3_OP_BSDIV_I:  smt.BVSDIV,
	C.Z3_OP_BUREM:    smt.BVUREM,
	C.Z3_OP_BUREM_I:  smt.BVUREM,
	C.Z3_OP_BSREM:    smt.BVSREM,
	C.Z3_OP_BSREM_I:  smt.BVSREM,
	C.Z3_OP_BSMOD:    smt.BVSMOD,
	C.Z3_OP_BSMOD_I:  smt.BVSMOD,
	C.Z3_OP_BSHL:     smt.BVSHL,
	C.Z3_OP_BLSHR:    smt.BVLSHR,
	C.Z3_OP_BASHR:    smt.BVASHR,
	C.Z3_OP_ULT:      smt.BVULT,
	C.Z3_OP_ULEQ:     smt.BVULE,
	C.Z3_OP_UGT:      smt.BVUGT,
	C.Z3_OP_UGEQ:     smt.BVUGE,
	C.Z3_OP_SLT:      smt.BVSLT,
	C.Z3_OP_SLEQ:     smt.BVSLE,
	C.Z3_OP_SGT:      smt.BVSGT,
	C.Z3_OP_SGEQ:     smt.BVSGE,
	C.Z3_OP_CONCAT:   smt.CONCAT,
	C.Z3_OP_EXTRACT:  smt.EXTRACT,
	C.Z3_OP_ZERO_EXT: smt.ZERO_EXTEND,
	C.Z3_OP_SIGN_EXT: smt.SIGN_EXTEND,

	C.Z3_OP_SELECT:      smt.SELECT,
	C.Z3_OP_STORE:       smt.STORE,
	C.Z3_OP_CONST_ARRAY: smt.CONST_ARRAY,
}

// Shape decomposes t one level.
func (b *backend) Shape(t C.Z3_ast) (smt.Shape[C.Z3_ast, C.Z3_func_decl], error) {
	if err := b.lock(); err != nil {
		return smt.Shape[C.Z3_ast, C.Z3_func_decl]{}, err
	}
	defer b.mu.Unlock()

	switch C.Z3_get_ast_kind(b.ctx.raw, t) {
	case C.Z3_NUMERAL_AST:
		return b.toNumeralShape(t)
	case C.Z3_APP_AST:
		return b.toAppShape(t)
	case C.Z3_VAR_AST:
		idx := int(C.Z3_get_index_value(b.ctx.raw, t))
		name, ok := b.bound[t]
		if !ok {
			name = fmt.Sprintf("x!%d", idx)
		}
		return smt.Shape[C.Z3_ast, C.Z3_func_decl]{Kind: smt.ShapeBoundVariable, Name: name, Index: idx}, nil
	case C.Z3_QUANTIFIER_AST:
		return b.toQuantifierShape(t)
	default:
		return smt.Shape[C.Z3_ast, C.Z3_func_decl]{}, errors.Errorf("z3: unexpected ast: %s", b.ctx.astToString(t))
	}
}

func (b *backend) toNumeralShape(t C.Z3_ast) (smt.Shape[C.Z3_ast, C.Z3_func_decl], error) {
	shape := smt.Shape[C.Z3_ast, C.Z3_func_decl]{Kind: smt.ShapeNumeral}
	str := C.GoString(C.Z3_get_numeral_string(b.ctx.raw, t))
	if err := b.ctx.err("Z3_get_numeral_string"); err != nil {
		return shape, err
	}

	if C.Z3_get_sort_kind(b.ctx.raw, C.Z3_get_sort(b.ctx.raw, t)) == C.Z3_REAL_SORT {
		v, ok := new(big.Rat).SetString(str)
		if !ok {
			return shape, errors.Wrapf(smt.ErrSolverFailure, "z3: invalid rational numeral %q", str)
		}
		shape.Value = v
		return shape, nil
	}

	v, ok := new(big.Int).SetString(str, 10)
	if !ok {
		return shape, errors.Wrapf(smt.ErrSolverFailure, "z3: invalid numeral %q", str)
	}
	shape.Value = v
	return shape, nil
}

func (b *backend) toAppShape(t C.Z3_ast) (smt.Shape[C.Z3_ast, C.Z3_func_decl], error) {
	raw := b.ctx.raw
	app := C.Z3_to_app(raw, t)
	decl := C.Z3_get_app_decl(raw, app)
	if err := b.ctx.err("Z3_get_app_decl"); err != nil {
		return smt.Shape[C.Z3_ast, C.Z3_func_decl]{}, err
	}

	n := int(C.Z3_get_app_num_args(raw, app))
	args := make([]C.Z3_ast, n)
	for i := range args {
		args[i] = C.Z3_get_app_arg(raw, app, C.uint(i))
	}

	kind := C.Z3_get_decl_kind(raw, decl)
	switch kind {
	case C.Z3_OP_TRUE:
		return smt.Shape[C.Z3_ast, C.Z3_func_decl]{Kind: smt.ShapeNumeral, Value: true}, nil
	case C.Z3_OP_FALSE:
		return smt.Shape[C.Z3_ast, C.Z3_func_decl]{Kind: smt.ShapeNumeral, Value: false}, nil
	case C.Z3_OP_UNINTERPRETED:
		name := b.ctx.symbolString(C.Z3_get_decl_name(raw, decl))
		if n == 0 {
			return smt.Shape[C.Z3_ast, C.Z3_func_decl]{Kind: smt.ShapeFreeVariable, Name: name}, nil
		}
		return smt.Shape[C.Z3_ast, C.Z3_func_decl]{Kind: smt.ShapeUF, Name: name, Decl: decl, Args: args}, nil
	}

	fk, ok := functionKinds[kind]
	if !ok {
		return smt.Shape[C.Z3_ast, C.Z3_func_decl]{}, errors.Wrapf(smt.ErrUnsupported, "z3: declaration kind %d: %s", int(kind), b.ctx.astToString(t))
	}
	op := smt.Op(fk)
	switch fk {
	case smt.EXTRACT:
		op.Params = []int{int(C.Z3_get_decl_int_parameter(raw, decl, 0)), int(C.Z3_get_decl_int_parameter(raw, decl, 1))}
	case smt.ZERO_EXTEND, smt.SIGN_EXTEND:
		op.Params = []int{int(C.Z3_get_decl_int_parameter(raw, decl, 0))}
	case smt.CONST_ARRAY:
		typ, err := b.ctx.toType(C.Z3_get_sort(raw, t))
		if err != nil {
			return smt.Shape[C.Z3_ast, C.Z3_func_decl]{}, err
		}
		op.Sort = typ
	}
	return smt.Shape[C.Z3_ast, C.Z3_func_decl]{Kind: smt.ShapeFunction, Op: op, Args: args}, b.ctx.err("Z3_get_app_arg")
}

// toQuantifierShape reports the bound variables outermost first as de
// Bruijn variables and records their names.
func (b *backend) toQuantifierShape(t C.Z3_ast) (smt.Shape[C.Z3_ast, C.Z3_func_decl], error) {
	raw := b.ctx.raw
	if bool(C.Z3_is_lambda(raw, t)) {
		return smt.Shape[C.Z3_ast, C.Z3_func_decl]{}, errors.Wrapf(smt.ErrUnsupported, "z3: lambda: %s", b.ctx.astToString(t))
	}

	shape := smt.Shape[C.Z3_ast, C.Z3_func_decl]{Kind: smt.ShapeExists}
	if bool(C.Z3_is_quantifier_forall(raw, t)) {
		shape.Kind = smt.ShapeForall
	}

	n := int(C.Z3_get_quantifier_num_bound(raw, t))
	shape.Vars = make([]C.Z3_ast, n)
	for i := 0; i < n; i++ {
		name := b.ctx.symbolString(C.Z3_get_quantifier_bound_name(raw, t, C.uint(i)))
		v := C.Z3_mk_bound(raw, C.uint(n-1-i), C.Z3_get_quantifier_bound_sort(raw, t, C.uint(i)))
		if err := b.ctx.err("Z3_mk_bound"); err != nil {
			return shape, err
		}
		b.bound[v] = name
		shape.Vars[i] = v
	}
	shape.Body = C.Z3_get_quantifier_body(raw, t)
	return shape, b.ctx.err("Z3_get_quantifier_body")
}
