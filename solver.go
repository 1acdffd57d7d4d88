package smt

import (
	"log"
	"math/big"
	"sync"

	"github.com/benbjohnson/immutable"
	"github.com/pkg/errors"
)

// Solver is a solver context. It owns the backend term pool and the pool of
// declared symbols. Declarations are global: they live until the solver is
// closed regardless of the assertion stacks of any prover.
type Solver struct {
	eng    engine
	config Config
	logger *log.Logger

	mu      sync.Mutex
	symbols *immutable.SortedMap[string, symbol] // declared variables and functions
	decls   map[interface{}]*FunctionDeclaration // native declaration to declaration
	provers map[*Prover]struct{}                 // open provers
	closed  bool
}

// symbol is an entry in the declaration pool.
type symbol struct {
	typ  Type
	h    interface{}          // variables only
	decl *FunctionDeclaration // functions only
}

// NewSolver returns a new instance of Solver backed by b.
func NewSolver[T, D comparable](b Backend[T, D], config Config) *Solver {
	s := &Solver{
		eng:     newCreator(b),
		config:  config,
		logger:  config.Log(),
		symbols: immutable.NewSortedMap[string, symbol](&stringComparer{}),
		decls:   make(map[interface{}]*FunctionDeclaration),
		provers: make(map[*Prover]struct{}),
	}
	s.logger.Printf("[solver] open: backend=%s", b.Name())
	return s
}

// Name returns the name of the backend.
func (s *Solver) Name() string { return s.eng.name() }

// Capabilities returns the feature set of the backend.
func (s *Solver) Capabilities() Capabilities { return s.eng.capabilities() }

// Config returns the configuration the solver was created with.
func (s *Solver) Config() Config { return s.config }

// Close closes all open provers and releases the backend. Closing an
// already closed solver is a no-op.
func (s *Solver) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	provers := make([]*Prover, 0, len(s.provers))
	for p := range s.provers {
		provers = append(provers, p)
	}
	s.mu.Unlock()

	for _, p := range provers {
		if err := p.Close(); err != nil {
			s.logger.Printf("[solver] close prover %s: %s", p.ID(), err)
		}
	}

	s.mu.Lock()
	s.symbols = immutable.NewSortedMap[string, symbol](&stringComparer{})
	s.decls = make(map[interface{}]*FunctionDeclaration)
	s.mu.Unlock()

	s.logger.Printf("[solver] close: backend=%s", s.Name())
	return s.eng.close()
}

// Booleans returns the boolean formula manager.
func (s *Solver) Booleans() *BooleanFormulaManager { return &BooleanFormulaManager{s: s} }

// Integers returns the integer formula manager.
func (s *Solver) Integers() *IntegerFormulaManager { return &IntegerFormulaManager{s: s} }

// Rationals returns the rational formula manager.
func (s *Solver) Rationals() *RationalFormulaManager { return &RationalFormulaManager{s: s} }

// Bitvectors returns the bitvector formula manager.
func (s *Solver) Bitvectors() *BitvectorFormulaManager { return &BitvectorFormulaManager{s: s} }

// Arrays returns the array formula manager.
func (s *Solver) Arrays() *ArrayFormulaManager { return &ArrayFormulaManager{s: s} }

// UFs returns the uninterpreted function manager.
func (s *Solver) UFs() *UFManager { return &UFManager{s: s} }

// Quantifiers returns the quantified formula manager.
func (s *Solver) Quantifiers() *QuantifiedFormulaManager { return &QuantifiedFormulaManager{s: s} }

// SeparationLogic returns the separation-logic formula manager.
func (s *Solver) SeparationLogic() *SLFormulaManager { return &SLFormulaManager{s: s} }

// TypeOf returns the backend's type judgment for f.
func (s *Solver) TypeOf(f Formula) (Type, error) {
	h, err := s.extract(f.formula())
	if err != nil {
		return nil, err
	}
	return s.eng.typeOf(h)
}

// Symbols returns the names of all declared variables and functions in
// sorted order.
func (s *Solver) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := make([]string, 0, s.symbols.Len())
	itr := s.symbols.Iterator()
	for !itr.Done() {
		name, _, _ := itr.Next()
		a = append(a, name)
	}
	return a
}

func (s *Solver) extract(t term) (interface{}, error) {
	if t.eng == nil {
		return nil, errors.Wrap(ErrIllegalState, "uninitialized formula")
	}
	return s.eng.extract(t)
}

func (s *Solver) extractAll(a []term) ([]interface{}, error) {
	other := make([]interface{}, len(a))
	for i := range a {
		h, err := s.extract(a[i])
		if err != nil {
			return nil, err
		}
		other[i] = h
	}
	return other, nil
}

// checkType returns ErrUnsupported if the backend lacks the theory of typ.
func (s *Solver) checkType(typ Type) error {
	caps := s.eng.capabilities()
	switch typ := typ.(type) {
	case BooleanType:
		return nil
	case IntegerType:
		if caps.Integers {
			return nil
		}
	case RationalType:
		if caps.Rationals {
			return nil
		}
	case BitvectorType:
		if typ.Width <= 0 {
			return errors.Wrapf(ErrTypeMismatch, "invalid bitvector width: %d", typ.Width)
		} else if caps.Bitvectors {
			return nil
		}
	case ArrayType:
		if !caps.Arrays {
			break
		} else if err := s.checkType(typ.Index); err != nil {
			return err
		}
		return s.checkType(typ.Elem)
	}
	return errors.Wrapf(ErrUnsupported, "%s: theory of %s", s.Name(), typ)
}

// apply validates and builds a built-in function application.
func (s *Solver) apply(op Operator, args ...term) (term, error) {
	typ, err := op.ResultType(types(args)...)
	if err != nil {
		return term{}, err
	}
	if op.Kind.IsSeparationLogic() && !s.eng.capabilities().SeparationLogic {
		return term{}, errors.Wrapf(ErrUnsupported, "%s: separation logic", s.Name())
	}
	for _, arg := range args {
		if err := s.checkType(arg.typ); err != nil {
			return term{}, err
		}
	}
	if err := s.checkType(typ); err != nil {
		return term{}, err
	}

	hs, err := s.extractAll(args)
	if err != nil {
		return term{}, err
	}
	h, err := s.eng.apply(op, hs)
	if err != nil {
		return term{}, err
	}
	return s.eng.encapsulate(typ, h)
}

// variable returns the variable name of type typ, declaring it in the pool
// on first use.
func (s *Solver) variable(typ Type, name string) (term, error) {
	if err := s.checkType(typ); err != nil {
		return term{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return term{}, errors.Wrap(ErrIllegalState, "solver closed")
	}

	if sym, ok := s.symbols.Get(name); ok {
		if sym.decl != nil {
			return term{}, errors.Wrapf(ErrTypeMismatch, "%q already declared as function %s", name, sym.decl)
		} else if sym.typ != typ {
			return term{}, errors.Wrapf(ErrTypeMismatch, "%q already declared with type %s", name, sym.typ)
		}
		return s.eng.encapsulate(typ, sym.h)
	}

	h, err := s.eng.variable(typ, name)
	if err != nil {
		return term{}, err
	}
	t, err := s.eng.encapsulate(typ, h)
	if err != nil {
		return term{}, err
	}
	s.symbols = s.symbols.Set(name, symbol{typ: typ, h: h})
	return t, nil
}

// declare returns the function declaration for name, declaring it in the
// pool on first use.
func (s *Solver) declare(name string, args []Type, ret Type) (*FunctionDeclaration, error) {
	for _, typ := range append([]Type{ret}, args...) {
		if err := s.checkType(typ); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.Wrap(ErrIllegalState, "solver closed")
	}

	if sym, ok := s.symbols.Get(name); ok {
		if sym.decl == nil {
			return nil, errors.Wrapf(ErrTypeMismatch, "%q already declared as variable of type %s", name, sym.typ)
		} else if !sym.decl.signature(args, ret) {
			return nil, errors.Wrapf(ErrTypeMismatch, "%q already declared as %s", name, sym.decl)
		}
		return sym.decl, nil
	}

	h, err := s.eng.declare(name, args, ret)
	if err != nil {
		return nil, err
	}
	decl := &FunctionDeclaration{
		name: name,
		args: append([]Type(nil), args...),
		ret:  ret,
		h:    h,
		eng:  s.eng,
	}
	s.symbols = s.symbols.Set(name, symbol{typ: ret, decl: decl})
	s.decls[h] = decl
	return decl, nil
}

// declaration returns the declaration for a native declaration handle.
func (s *Solver) declaration(h interface{}) (*FunctionDeclaration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	decl, ok := s.decls[h]
	return decl, ok
}

// number returns a numeral of type typ.
func (s *Solver) number(typ Type, v *big.Rat) (term, error) {
	if err := s.checkType(typ); err != nil {
		return term{}, err
	}
	h, err := s.eng.number(typ, v)
	if err != nil {
		return term{}, err
	}
	return s.eng.encapsulate(typ, h)
}

func (s *Solver) boolean(v bool) (term, error) {
	h, err := s.eng.boolean(v)
	if err != nil {
		return term{}, err
	}
	return s.eng.encapsulate(Bool, h)
}

// register adds p to the set of open provers.
func (s *Solver) register(p *Prover) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.Wrap(ErrIllegalState, "solver closed")
	} else if err := s.checkStacks(p); err != nil {
		return err
	}
	s.provers[p] = struct{}{}
	return nil
}

func (s *Solver) unregister(p *Prover) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.provers, p)
}

// checkStacks enforces the single-stack policy of backends which do not
// support multiple stacks. Must be called with s.mu held.
func (s *Solver) checkStacks(p *Prover) error {
	if s.eng.capabilities().MultipleStacks {
		return nil
	}
	for other := range s.provers {
		if other != p && !other.isEmpty() {
			return errors.Wrapf(ErrIllegalState, "%s: backend supports a single non-empty stack, prover %s is in use", s.Name(), other.ID())
		}
	}
	return nil
}

// stackInUse is checkStacks for callers not holding s.mu.
func (s *Solver) stackInUse(p *Prover) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkStacks(p)
}

// stringComparer compares two strings. Implements immutable.Comparer.
type stringComparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b, and
// returns 0 if a is equal to b.
func (c *stringComparer) Compare(a, b string) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}
