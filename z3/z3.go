// Package z3 implements a backend on top of the Z3 C API.
package z3

import (
	"fmt"
	"log"
	"math/big"
	"sort"
	"strconv"
	"sync"
	"time"
	"unsafe"

	"github.com/benbjohnson/smt"
	"github.com/pkg/errors"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
#include <stdio.h>
*/
import "C"

// NewSolver returns a solver context backed by a new Z3 context. Options
// of config are applied as Z3 global parameters before the context is
// created.
func NewSolver(config smt.Config) (*smt.Solver, error) {
	b, err := newBackend(config)
	if err != nil {
		return nil, err
	}
	return smt.NewSolver[C.Z3_ast, C.Z3_func_decl](b, config), nil
}

// backend implements smt.Backend for a single Z3 context.
type backend struct {
	mu     sync.Mutex
	ctx    *Context
	logger *log.Logger
	stats  Stats

	// Names of bound variables reported by Shape.
	bound map[C.Z3_ast]string

	// Tracking literals created for unsat cores. Hidden from models.
	trackers map[C.Z3_ast]struct{}

	closed bool
}

func newBackend(config smt.Config) (*backend, error) {
	logger := config.Log()

	params := make(map[string]string, len(config.Options)+1)
	for k, v := range config.Options {
		params[k] = v
	}
	if config.RandomSeed != 0 {
		params["smt.random_seed"] = strconv.Itoa(config.RandomSeed)
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		setGlobalParam(k, params[k])
		logger.Printf("[z3] param: %s=%s", k, params[k])
	}

	ctx := NewContext()
	if err := ctx.err("Z3_mk_context"); err != nil {
		return nil, err
	}
	return &backend{
		ctx:      ctx,
		logger:   logger,
		bound:    make(map[C.Z3_ast]string),
		trackers: make(map[C.Z3_ast]struct{}),
	}, nil
}

func setGlobalParam(k, v string) {
	ck, cv := C.CString(k), C.CString(v)
	defer C.free(unsafe.Pointer(ck))
	defer C.free(unsafe.Pointer(cv))
	C.Z3_global_param_set(ck, cv)
}

func (b *backend) Name() string { return "z3" }

func (b *backend) Capabilities() smt.Capabilities {
	return smt.Capabilities{
		Integers:       true,
		Rationals:      true,
		Bitvectors:     true,
		Arrays:         true,
		UF:             true,
		Quantifiers:    true,
		Models:         true,
		UnsatCore:      true,
		MultipleStacks: true,
	}
}

// lock acquires the context lock. Returns an error if the backend is closed.
func (b *backend) lock() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.Wrap(smt.ErrIllegalState, "z3: context closed")
	}
	return nil
}

func (b *backend) TypeOf(t C.Z3_ast) (smt.Type, error) {
	if err := b.lock(); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()

	s := C.Z3_get_sort(b.ctx.raw, t)
	if err := b.ctx.err("Z3_get_sort"); err != nil {
		return nil, err
	}
	return b.ctx.toType(s)
}

func (b *backend) MakeVariable(typ smt.Type, name string) (C.Z3_ast, error) {
	if err := b.lock(); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()

	s, err := b.ctx.toSort(typ)
	if err != nil {
		return nil, err
	}
	sym := b.ctx.symbol(name)
	return C.Z3_mk_const(b.ctx.raw, sym, s), b.ctx.err("Z3_mk_const")
}

func (b *backend) MakeBool(v bool) (C.Z3_ast, error) {
	if err := b.lock(); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()

	if v {
		return C.Z3_mk_true(b.ctx.raw), b.ctx.err("Z3_mk_true")
	}
	return C.Z3_mk_false(b.ctx.raw), b.ctx.err("Z3_mk_false")
}

func (b *backend) MakeNumber(typ smt.Type, v *big.Rat) (C.Z3_ast, error) {
	if err := b.lock(); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()

	s, err := b.ctx.toSort(typ)
	if err != nil {
		return nil, err
	}

	str := v.RatString()
	cstr := C.CString(str)
	defer C.free(unsafe.Pointer(cstr))
	return C.Z3_mk_numeral(b.ctx.raw, cstr, s), b.ctx.err("Z3_mk_numeral")
}

func (b *backend) DeclareFunction(name string, args []smt.Type, ret smt.Type) (C.Z3_func_decl, error) {
	if err := b.lock(); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()

	domain := make([]C.Z3_sort, len(args))
	for i, typ := range args {
		s, err := b.ctx.toSort(typ)
		if err != nil {
			return nil, err
		}
		domain[i] = s
	}
	rng, err := b.ctx.toSort(ret)
	if err != nil {
		return nil, err
	}

	var domainPtr *C.Z3_sort
	if len(domain) > 0 {
		domainPtr = &domain[0]
	}
	sym := b.ctx.symbol(name)
	return C.Z3_mk_func_decl(b.ctx.raw, sym, C.uint(len(domain)), domainPtr, rng), b.ctx.err("Z3_mk_func_decl")
}

func (b *backend) CallFunction(decl C.Z3_func_decl, args []C.Z3_ast) (C.Z3_ast, error) {
	if err := b.lock(); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	return C.Z3_mk_app(b.ctx.raw, decl, C.uint(len(args)), astPtr(args)), b.ctx.err("Z3_mk_app")
}

// Quantify binds either free constants or the bound variables reported by
// Shape. Mixing both is not supported.
func (b *backend) Quantify(q smt.Quantifier, vars []C.Z3_ast, body C.Z3_ast) (C.Z3_ast, error) {
	if err := b.lock(); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()

	var nbound int
	for _, v := range vars {
		if C.Z3_get_ast_kind(b.ctx.raw, v) == C.Z3_VAR_AST {
			nbound++
		}
	}

	switch nbound {
	case 0:
		apps := make([]C.Z3_app, len(vars))
		for i, v := range vars {
			apps[i] = C.Z3_to_app(b.ctx.raw, v)
		}
		if q == smt.Forall {
			return C.Z3_mk_forall_const(b.ctx.raw, 0, C.uint(len(apps)), &apps[0], 0, nil, body), b.ctx.err("Z3_mk_forall_const")
		}
		return C.Z3_mk_exists_const(b.ctx.raw, 0, C.uint(len(apps)), &apps[0], 0, nil, body), b.ctx.err("Z3_mk_exists_const")

	case len(vars):
		// Declarations are listed outermost first; variable i has de Bruijn
		// index n-1-i.
		n := len(vars)
		sorts := make([]C.Z3_sort, n)
		names := make([]C.Z3_symbol, n)
		for i, v := range vars {
			if idx := int(C.Z3_get_index_value(b.ctx.raw, v)); idx != n-1-i {
				return nil, errors.Errorf("z3: bound variable %d has index %d, expected %d", i, idx, n-1-i)
			}
			sorts[i] = C.Z3_get_sort(b.ctx.raw, v)
			name, ok := b.bound[v]
			if !ok {
				name = fmt.Sprintf("x!%d", i)
			}
			names[i] = b.ctx.symbol(name)
		}
		return C.Z3_mk_quantifier(b.ctx.raw, C.bool(q == smt.Forall), 0, 0, nil, C.uint(n), &sorts[0], &names[0], body), b.ctx.err("Z3_mk_quantifier")

	default:
		return nil, errors.Wrap(smt.ErrUnsupported, "z3: quantifier mixes free and bound variables")
	}
}

func (b *backend) Substitute(t C.Z3_ast, from, to []C.Z3_ast) (C.Z3_ast, error) {
	if err := b.lock(); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()

	if len(from) == 0 {
		return t, nil
	}
	return C.Z3_substitute(b.ctx.raw, t, C.uint(len(from)), &from[0], &to[0]), b.ctx.err("Z3_substitute")
}

func (b *backend) Dump(t C.Z3_ast) (string, error) {
	if err := b.lock(); err != nil {
		return "", err
	}
	defer b.mu.Unlock()

	s := b.ctx.astToString(t)
	return s, b.ctx.err("Z3_ast_to_string")
}

func (b *backend) NewProver(opts smt.ProverOptions) (smt.NativeProver[C.Z3_ast], error) {
	if err := b.lock(); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()

	solver := C.Z3_mk_solver(b.ctx.raw)
	if err := b.ctx.err("Z3_mk_solver"); err != nil {
		return nil, err
	}
	C.Z3_solver_inc_ref(b.ctx.raw, solver)
	return &prover{b: b, raw: solver, opts: opts, tracked: make(map[C.Z3_ast]C.Z3_ast)}, nil
}

// Close deletes the underlying Z3 context.
func (b *backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.logger.Printf("[z3] close: %s", b.stats)
	b.bound, b.trackers = nil, nil
	return b.ctx.Close()
}

// Context represents a Z3 context object that is used for constructing expressions.
type Context struct {
	raw C.Z3_context
}

// NewContext returns a new instance of Context.
func NewContext() *Context {
	config := C.Z3_mk_config()
	defer C.Z3_del_config(config)

	raw := C.Z3_mk_context(config)
	C.Z3_set_error_handler(raw, nil)
	C.Z3_set_ast_print_mode(raw, C.Z3_PRINT_SMTLIB2_COMPLIANT)
	return &Context{raw: raw}
}

// Close deletes the underlying Z3 context.
func (ctx *Context) Close() error {
	C.Z3_del_context(ctx.raw)
	return nil
}

// err returns the error for the last API call. Returns nil if last call was successful.
func (ctx *Context) err(op string) error {
	if code := C.Z3_get_error_code(ctx.raw); code != C.Z3_OK {
		return &Error{Code: int(code), Op: op, Message: C.GoString(C.Z3_get_error_msg(ctx.raw, code))}
	}
	return nil
}

func (ctx *Context) symbol(name string) C.Z3_symbol {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.Z3_mk_string_symbol(ctx.raw, cname)
}

func (ctx *Context) symbolString(sym C.Z3_symbol) string {
	if C.Z3_get_symbol_kind(ctx.raw, sym) == C.Z3_INT_SYMBOL {
		return strconv.Itoa(int(C.Z3_get_symbol_int(ctx.raw, sym)))
	}
	return C.GoString(C.Z3_get_symbol_string(ctx.raw, sym))
}

// toSort returns the Z3 sort of typ.
func (ctx *Context) toSort(typ smt.Type) (C.Z3_sort, error) {
	switch typ := typ.(type) {
	case smt.BooleanType:
		return C.Z3_mk_bool_sort(ctx.raw), ctx.err("Z3_mk_bool_sort")
	case smt.IntegerType:
		return C.Z3_mk_int_sort(ctx.raw), ctx.err("Z3_mk_int_sort")
	case smt.RationalType:
		return C.Z3_mk_real_sort(ctx.raw), ctx.err("Z3_mk_real_sort")
	case smt.BitvectorType:
		return C.Z3_mk_bv_sort(ctx.raw, C.uint(typ.Width)), ctx.err("Z3_mk_bv_sort")
	case smt.ArrayType:
		domain, err := ctx.toSort(typ.Index)
		if err != nil {
			return nil, err
		}
		rng, err := ctx.toSort(typ.Elem)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_array_sort(ctx.raw, domain, rng), ctx.err("Z3_mk_array_sort")
	default:
		return nil, errors.Wrapf(smt.ErrUnsupported, "z3: sort %v", typ)
	}
}

// toType returns the type of the Z3 sort s.
func (ctx *Context) toType(s C.Z3_sort) (smt.Type, error) {
	switch C.Z3_get_sort_kind(ctx.raw, s) {
	case C.Z3_BOOL_SORT:
		return smt.Bool, nil
	case C.Z3_INT_SORT:
		return smt.Int, nil
	case C.Z3_REAL_SORT:
		return smt.Rational, nil
	case C.Z3_BV_SORT:
		return smt.NewBitvectorType(int(C.Z3_get_bv_sort_size(ctx.raw, s))), ctx.err("Z3_get_bv_sort_size")
	case C.Z3_ARRAY_SORT:
		index, err := ctx.toType(C.Z3_get_array_sort_domain(ctx.raw, s))
		if err != nil {
			return nil, err
		}
		elem, err := ctx.toType(C.Z3_get_array_sort_range(ctx.raw, s))
		if err != nil {
			return nil, err
		}
		return smt.NewArrayType(index, elem), nil
	default:
		return nil, errors.Wrapf(smt.ErrUnsupported, "z3: sort %s", ctx.sortToString(s))
	}
}

func (ctx *Context) astToString(ast C.Z3_ast) string {
	return C.GoString(C.Z3_ast_to_string(ctx.raw, ast))
}

func (ctx *Context) sortToString(t C.Z3_sort) string {
	return C.GoString(C.Z3_sort_to_string(ctx.raw, t))
}

func (ctx *Context) modelToString(model C.Z3_model) string {
	return C.GoString(C.Z3_model_to_string(ctx.raw, model))
}

// astPtr returns a pointer to the first element of a or nil if a is empty.
func astPtr(a []C.Z3_ast) *C.Z3_ast {
	if len(a) == 0 {
		return nil
	}
	return &a[0]
}

// Error represents an error from the Z3 API.
type Error struct {
	Code    int
	Op      string
	Message string
}

// Error returns the error as a string.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.Code)
}

// Unwrap maps the error code onto the smt error taxonomy.
func (e *Error) Unwrap() error {
	if e.Code == ErrorCodeSortError {
		return smt.ErrTypeMismatch
	}
	return smt.ErrSolverFailure
}

// Possible error codes.
const (
	ErrorCodeOK = iota
	ErrorCodeSortError
	ErrorCodeIOB
	ErrorCodeInvalidArg
	ErrorCodeParserError
	ErrorCodeNoParser
	ErrorCodeInvalidPattern
	ErrorCodeMemoutFail
	ErrorCodeFileAccessError
	ErrorCodeInternalFatal
	ErrorCodeInvalidUsage
	ErrorCodeDecRefError
	ErrorCodeException
)

// Stats holds counters for satisfiability checks.
type Stats struct {
	SolveN    int
	SolveTime time.Duration
}

// String returns the counters in log format.
func (s Stats) String() string {
	return fmt.Sprintf("solves=%d time=%s", s.SolveN, s.SolveTime)
}
