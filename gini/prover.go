package gini

import (
	"context"
	"math/big"
	"time"

	"github.com/benbjohnson/smt"
	sat "github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
	"github.com/pkg/errors"
)

// PollInterval is the interval at which a running solve checks its context.
var PollInterval = 5 * time.Millisecond

// encoder adds the Tseitin clauses of circuit cones to a SAT solver. Each
// node is encoded at most once.
type encoder struct {
	c       *logic.C
	g       *sat.Gini
	emitted map[z.Var]bool
}

func newEncoder(c *logic.C) *encoder {
	e := &encoder{c: c, g: sat.New(), emitted: make(map[z.Var]bool)}
	e.unit(c.T)
	e.emitted[c.T.Var()] = true
	return e
}

// encode adds the definitions of every node reachable from roots.
func (e *encoder) encode(roots ...z.Lit) {
	stack := append([]z.Lit(nil), roots...)
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		v := m.Var()
		if e.emitted[v] {
			continue
		}
		e.emitted[v] = true

		a, b := e.c.Ins(m)
		if a == z.LitNull {
			continue
		}
		g := v.Pos()
		e.clause(g.Not(), a)
		e.clause(g.Not(), b)
		e.clause(g, a.Not(), b.Not())
		stack = append(stack, a, b)
	}
}

// unit encodes m and asserts it permanently.
func (e *encoder) unit(m z.Lit) {
	e.encode(m)
	e.clause(m)
}

func (e *encoder) clause(ms ...z.Lit) {
	for _, m := range ms {
		e.g.Add(m)
	}
	e.g.Add(z.LitNull)
}

// solve runs the solver until it finishes or ctx is done. Returns 1 for
// sat and -1 for unsat.
func solve(ctx context.Context, g *sat.Gini) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Wrapf(smt.ErrInterrupted, "gini: %s", err)
	}

	s := g.GoSolve()
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		if res, done := s.Test(); done {
			return res, nil
		}
		select {
		case <-ctx.Done():
			if res := s.Stop(); res != 0 {
				return res, nil
			}
			return 0, errors.Wrapf(smt.ErrInterrupted, "gini: %s", ctx.Err())
		case <-ticker.C:
		}
	}
}

// prover is an assertion stack over a single gini instance. Every
// assertion is guarded by a selector literal which is assumed while the
// assertion is live and permanently negated when it is popped.
type prover struct {
	b      *Backend
	opts   smt.ProverOptions
	enc    *encoder
	frames [][]assertion
	axioms int // congruence axioms asserted so far

	assumed []assertion // assumptions of the last check
	failed  []z.Lit     // failed assumptions of the last unsat check
	closed  bool
}

type assertion struct {
	t   *Term
	sel z.Lit
}

// newProver must be called with b.mu held.
func newProver(b *Backend, opts smt.ProverOptions) *prover {
	return &prover{
		b:      b,
		opts:   opts,
		enc:    newEncoder(b.blaster.c),
		frames: make([][]assertion, 1),
	}
}

func (p *prover) check() error {
	if p.closed {
		return errors.Wrap(smt.ErrIllegalState, "gini: prover closed")
	} else if p.b.closed {
		return errors.Wrap(smt.ErrIllegalState, "gini: backend closed")
	}
	return nil
}

// Push opens a new frame.
func (p *prover) Push() error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if err := p.check(); err != nil {
		return err
	}
	p.frames = append(p.frames, nil)
	return nil
}

// Pop disables the assertions of the top frame.
func (p *prover) Pop() error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if err := p.check(); err != nil {
		return err
	} else if len(p.frames) == 1 {
		return errors.Wrap(smt.ErrIllegalState, "gini: pop: empty assertion stack")
	}

	for _, a := range p.frames[len(p.frames)-1] {
		p.enc.clause(a.sel.Not())
	}
	p.frames = p.frames[:len(p.frames)-1]
	return nil
}

// Assert adds t to the top frame.
func (p *prover) Assert(t *Term) error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if err := p.check(); err != nil {
		return err
	}

	v, err := p.b.blaster.blast(t)
	if err != nil {
		return err
	}
	sel := p.b.blaster.c.Lit()
	p.enc.encode(v[0])
	p.enc.emitted[sel.Var()] = true
	p.enc.clause(sel.Not(), v[0])

	top := len(p.frames) - 1
	p.frames[top] = append(p.frames[top], assertion{t: t, sel: sel})
	return nil
}

// selectors returns the selectors of all live assertions.
func (p *prover) selectors() []z.Lit {
	var a []z.Lit
	for _, frame := range p.frames {
		for _, x := range frame {
			a = append(a, x.sel)
		}
	}
	return a
}

// syncAxioms asserts the congruence axioms created since the last call.
func (p *prover) syncAxioms() {
	axioms := p.b.blaster.axioms
	for _, ax := range axioms[p.axioms:] {
		p.enc.unit(ax)
	}
	p.axioms = len(axioms)
}

// Check decides the live assertions together with assumptions.
func (p *prover) Check(ctx context.Context, assumptions []*Term) (bool, error) {
	p.b.mu.Lock()
	if err := p.check(); err != nil {
		p.b.mu.Unlock()
		return false, err
	}
	lits := p.selectors()
	p.assumed = p.assumed[:0]
	for _, t := range assumptions {
		v, err := p.b.blaster.blast(t)
		if err != nil {
			p.b.mu.Unlock()
			return false, err
		}
		p.enc.encode(v[0])
		lits = append(lits, v[0])
		p.assumed = append(p.assumed, assertion{t: t, sel: v[0]})
	}
	p.syncAxioms()
	p.b.mu.Unlock()

	p.failed = nil
	p.enc.g.Assume(lits...)
	res, err := solve(ctx, p.enc.g)
	if err != nil {
		p.b.logger.Printf("[gini] check interrupted: assertions=%d", len(lits))
		return false, err
	}

	if res < 0 {
		p.failed = p.enc.g.Why(nil)
	}
	return res > 0, nil
}

// Model returns a snapshot of the assignment found by the last check.
func (p *prover) Model() (smt.NativeModel[*Term], error) {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if err := p.check(); err != nil {
		return nil, err
	}

	maxVar := p.enc.g.MaxVar()
	values := make(map[z.Var]bool, len(p.enc.emitted))
	for v := range p.enc.emitted {
		if v <= maxVar {
			values[v] = p.enc.g.Value(v.Pos())
		}
	}
	values[p.b.blaster.c.T.Var()] = true
	return &model{b: p.b, values: values}, nil
}

// UnsatCore returns the assertions whose selectors failed in the last check,
// followed by the failed assumptions.
func (p *prover) UnsatCore() ([]*Term, error) {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if err := p.check(); err != nil {
		return nil, err
	}

	failed := make(map[z.Lit]bool, len(p.failed))
	for _, m := range p.failed {
		failed[m] = true
	}
	var a []*Term
	for _, frame := range p.frames {
		for _, x := range frame {
			if failed[x.sel] {
				a = append(a, x.t)
			}
		}
	}
	for _, x := range p.assumed {
		if failed[x.sel] {
			a = append(a, x.t)
		}
	}
	return a, nil
}

// Close releases the SAT solver.
func (p *prover) Close() error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	p.closed = true
	p.frames, p.assumed, p.failed, p.enc = nil, nil, nil, nil
	return nil
}

// model evaluates terms under a snapshot of solver values. Circuit nodes
// unknown to the solver are evaluated from their inputs, and inputs unknown
// to the solver default to false.
type model struct {
	b      *Backend
	values map[z.Var]bool
	closed bool
}

// Eval returns the value of t as a constant.
func (m *model) Eval(t *Term) (*Term, error) {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	if m.closed {
		return nil, errors.Wrap(smt.ErrIllegalState, "gini: model closed")
	} else if m.b.closed {
		return nil, errors.Wrap(smt.ErrIllegalState, "gini: backend closed")
	}

	v, err := m.b.blaster.blast(t)
	if err != nil {
		return nil, err
	}
	memo := make(map[z.Var]bool)
	value := new(big.Int)
	for i, lit := range v {
		if m.lit(lit, memo) {
			value.SetBit(value, i, 1)
		}
	}
	return m.b.pool.intern(&Term{kind: kindConst, typ: t.typ, value: value}), nil
}

func (m *model) lit(lit z.Lit, memo map[z.Var]bool) bool {
	v := lit.Var()
	value, ok := m.values[v]
	if !ok {
		if value, ok = memo[v]; !ok {
			c := m.b.blaster.c
			if a, b := c.Ins(lit); a == z.LitNull {
				value = m.input(v, memo)
			} else {
				value = m.lit(a, memo) && m.lit(b, memo)
			}
			memo[v] = value
		}
	}
	if !lit.IsPos() {
		return !value
	}
	return value
}

// input returns the value of an input the solver never saw. Results of
// function instances take the value of a known instance with equal
// arguments so evaluation respects congruence.
func (m *model) input(v z.Var, memo map[z.Var]bool) bool {
	inst := m.b.blaster.results[v]
	if inst == nil {
		return false
	}
	bit := 0
	for i := range inst.result {
		if inst.result[i].Var() == v {
			bit = i
		}
	}

	for _, other := range m.b.blaster.instances[inst.decl] {
		if other == inst {
			continue
		} else if _, ok := m.values[other.result[bit].Var()]; !ok {
			continue
		} else if m.sameArgs(inst, other, memo) {
			return m.lit(other.result[bit], memo)
		}
	}
	return false
}

func (m *model) sameArgs(x, y *instance, memo map[z.Var]bool) bool {
	for i := range x.args {
		for j := range x.args[i] {
			if m.lit(x.args[i][j], memo) != m.lit(y.args[i][j], memo) {
				return false
			}
		}
	}
	return true
}

// Constants returns the free variables assigned by the solver.
func (m *model) Constants() ([]*Term, error) {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	if m.closed {
		return nil, errors.Wrap(smt.ErrIllegalState, "gini: model closed")
	}

	var a []*Term
	for t, v := range m.b.blaster.inputs {
		for _, lit := range v {
			if _, ok := m.values[lit.Var()]; ok {
				a = append(a, t)
				break
			}
		}
	}
	return a, nil
}

// Close releases the snapshot.
func (m *model) Close() error {
	m.closed = true
	m.values = nil
	return nil
}
