package smt

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/benbjohnson/immutable"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProverOptions enables optional query results of a Prover.
type ProverOptions struct {
	GenerateModels       bool
	GenerateUnsatCore    bool
	GenerateInterpolants bool
}

// Constraint identifies a formula asserted into a Prover.
type Constraint struct {
	id uint64
	f  BooleanFormula
}

// Formula returns the asserted formula.
func (c Constraint) Formula() BooleanFormula { return c.f }

// status is the result of the last satisfiability check.
type status int

const (
	statusUnknown = status(iota)
	statusSat
	statusUnsat
)

// Prover is an incremental assertion stack. A Prover must not be used from
// multiple goroutines concurrently; distinct provers may run in parallel.
type Prover struct {
	s      *Solver
	native NativeProver[interface{}]
	opts   ProverOptions
	id     uuid.UUID
	logger *log.Logger

	// Frame stack. The first frame is the base frame and is never popped.
	frames *immutable.List[*immutable.List[Constraint]]
	nextID uint64

	// Generation is bumped by every mutation and every check. Query results
	// are only valid while the generation matches the one of the check.
	gen        uint64
	checked    uint64
	lastStatus status

	// Assumptions passed to the last check.
	assumptions []BooleanFormula

	closed bool
	empty  atomic.Bool
}

// NewProver returns a new, empty assertion stack.
func (s *Solver) NewProver(opts ProverOptions) (*Prover, error) {
	caps := s.Capabilities()
	if opts.GenerateModels && !caps.Models {
		return nil, errors.Wrapf(ErrUnsupported, "%s: models", s.Name())
	} else if opts.GenerateUnsatCore && !caps.UnsatCore {
		return nil, errors.Wrapf(ErrUnsupported, "%s: unsat cores", s.Name())
	} else if opts.GenerateInterpolants && !caps.Interpolation {
		return nil, errors.Wrapf(ErrUnsupported, "%s: interpolation", s.Name())
	}

	p := &Prover{
		s:      s,
		opts:   opts,
		id:     uuid.New(),
		logger: s.logger,
		frames: immutable.NewList(immutable.NewList[Constraint]()),
	}
	p.empty.Store(true)

	if err := s.register(p); err != nil {
		return nil, err
	}

	native, err := s.eng.newProver(opts)
	if err != nil {
		s.unregister(p)
		return nil, err
	}
	p.native = native

	p.logger.Printf("[prover %s] open: models=%v core=%v interpolants=%v", p.ID(), opts.GenerateModels, opts.GenerateUnsatCore, opts.GenerateInterpolants)
	return p, nil
}

// ID returns the unique identifier of the prover.
func (p *Prover) ID() string { return p.id.String() }

// Size returns the number of pushed frames.
func (p *Prover) Size() (int, error) {
	if err := p.check(); err != nil {
		return 0, err
	}
	return p.depth(), nil
}

func (p *Prover) depth() int { return p.frames.Len() - 1 }

// isEmpty returns true if the prover has no frames and no constraints.
// Safe to call from any goroutine.
func (p *Prover) isEmpty() bool { return p.empty.Load() }

func (p *Prover) updateEmpty() {
	p.empty.Store(p.frames.Len() == 1 && p.frames.Get(0).Len() == 0)
}

// check returns an error if the prover can no longer be used.
func (p *Prover) check() error {
	if p.closed {
		return errors.Wrapf(ErrIllegalState, "prover %s closed", p.ID())
	} else if p.s.eng.closed() {
		return errors.Wrap(ErrIllegalState, "solver closed")
	}
	return nil
}

// Push opens a new frame.
func (p *Prover) Push() error {
	if err := p.check(); err != nil {
		return err
	} else if err := p.s.stackInUse(p); err != nil {
		return err
	}

	if err := p.native.Push(); err != nil {
		return err
	}
	p.frames = p.frames.Append(immutable.NewList[Constraint]())
	p.gen++
	p.updateEmpty()
	return nil
}

// PushFormula opens a new frame and asserts f into it. On error the stack
// is left unchanged.
func (p *Prover) PushFormula(f BooleanFormula) (Constraint, error) {
	if err := p.check(); err != nil {
		return Constraint{}, err
	} else if err := p.s.stackInUse(p); err != nil {
		return Constraint{}, err
	}
	h, err := p.s.extract(f.term)
	if err != nil {
		return Constraint{}, err
	}

	if err := p.Push(); err != nil {
		return Constraint{}, err
	}
	c, err := p.assert(f, h)
	if err != nil {
		if perr := p.Pop(); perr != nil {
			p.logger.Printf("[prover %s] push: cannot drop frame: %s", p.ID(), perr)
		}
		return Constraint{}, err
	}
	return c, nil
}

// AddConstraint asserts f into the top frame.
func (p *Prover) AddConstraint(f BooleanFormula) (Constraint, error) {
	if err := p.check(); err != nil {
		return Constraint{}, err
	} else if err := p.s.stackInUse(p); err != nil {
		return Constraint{}, err
	}

	h, err := p.s.extract(f.term)
	if err != nil {
		return Constraint{}, err
	}
	return p.assert(f, h)
}

func (p *Prover) assert(f BooleanFormula, h interface{}) (Constraint, error) {
	if err := p.native.Assert(h); err != nil {
		return Constraint{}, err
	}

	p.nextID++
	c := Constraint{id: p.nextID, f: f}
	top := p.frames.Len() - 1
	p.frames = p.frames.Set(top, p.frames.Get(top).Append(c))
	p.gen++
	p.updateEmpty()
	return c, nil
}

// Pop removes the top frame and its constraints. Returns an error wrapping
// ErrIllegalState if no frame has been pushed.
func (p *Prover) Pop() error {
	if err := p.check(); err != nil {
		return err
	} else if p.depth() == 0 {
		return errors.Wrap(ErrIllegalState, "pop: empty assertion stack")
	}

	if err := p.native.Pop(); err != nil {
		return err
	}
	p.frames = p.frames.Slice(0, p.frames.Len()-1)
	p.gen++
	p.updateEmpty()
	return nil
}

// constraints returns the live constraints from the bottom frame up.
func (p *Prover) constraints() []Constraint {
	var a []Constraint
	itr := p.frames.Iterator()
	for !itr.Done() {
		_, frame := itr.Next()
		fitr := frame.Iterator()
		for !fitr.Done() {
			_, c := fitr.Next()
			a = append(a, c)
		}
	}
	return a
}

// IsUnsat returns true if the conjunction of all live constraints is
// unsatisfiable. Returns an error wrapping ErrInterrupted if ctx is done or
// the configured timeout expires before the backend decides.
func (p *Prover) IsUnsat(ctx context.Context) (bool, error) {
	return p.IsUnsatWithAssumptions(ctx)
}

// IsUnsatWithAssumptions is IsUnsat with additional assumptions which are
// not asserted into the stack.
func (p *Prover) IsUnsatWithAssumptions(ctx context.Context, assumptions ...BooleanFormula) (unsat bool, err error) {
	if err := p.check(); err != nil {
		return false, err
	}
	hs, err := p.s.extractAll(terms(assumptions))
	if err != nil {
		return false, err
	}

	ctx, span := otel.Tracer("smt").Start(ctx, "smt.Prover.IsUnsat",
		trace.WithAttributes(
			attribute.String("backend", p.s.Name()),
			attribute.Int("depth", p.depth()),
			attribute.Int("assumptions", len(assumptions)),
		),
	)
	defer span.End()

	if timeout := p.s.config.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	p.gen++
	p.checked, p.lastStatus = p.gen, statusUnknown
	p.assumptions = append([]BooleanFormula(nil), assumptions...)

	sat, err := p.native.Check(ctx, hs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "check failed")
		p.logger.Printf("[prover %s] check: depth=%d err=%s", p.ID(), p.depth(), err)
		return false, err
	}

	if sat {
		p.lastStatus = statusSat
	} else {
		p.lastStatus = statusUnsat
	}
	span.SetAttributes(attribute.Bool("unsat", !sat))
	p.logger.Printf("[prover %s] check: depth=%d unsat=%v", p.ID(), p.depth(), !sat)
	return !sat, nil
}

// lastResult returns an error unless the most recent check returned want
// and the stack has not changed since.
func (p *Prover) lastResult(want status, op string) error {
	if err := p.check(); err != nil {
		return err
	} else if p.checked != p.gen || p.lastStatus == statusUnknown {
		return errors.Wrapf(ErrIllegalState, "%s: assertion stack changed since last check", op)
	} else if p.lastStatus != want {
		return errors.Wrapf(ErrIllegalState, "%s: last check was not %s", op, want)
	}
	return nil
}

// Model returns the model of the last satisfiable check. The model becomes
// invalid as soon as the stack is modified or checked again.
func (p *Prover) Model() (*Model, error) {
	if !p.opts.GenerateModels {
		return nil, errors.Wrap(ErrIllegalState, "model generation not enabled")
	} else if err := p.lastResult(statusSat, "model"); err != nil {
		return nil, err
	}

	native, err := p.native.Model()
	if err != nil {
		return nil, err
	}
	return &Model{p: p, native: native, gen: p.gen}, nil
}

// UnsatCore returns a subset of the live constraints and the assumptions of
// the last check which is unsatisfiable on its own.
func (p *Prover) UnsatCore() ([]BooleanFormula, error) {
	if !p.opts.GenerateUnsatCore {
		return nil, errors.Wrap(ErrIllegalState, "unsat core generation not enabled")
	} else if err := p.lastResult(statusUnsat, "unsat core"); err != nil {
		return nil, err
	}

	hs, err := p.native.UnsatCore()
	if err != nil {
		return nil, err
	}
	a := make([]BooleanFormula, 0, len(hs))
	for _, h := range hs {
		f, err := p.s.formula(h)
		if err != nil {
			return nil, err
		}
		b, err := As[BooleanFormula](f)
		if err != nil {
			return nil, err
		}
		a = append(a, b)
	}
	return lo.Uniq(a), nil
}

// Interpolant returns a formula I over the symbols shared by group and the
// remaining live constraints such that group implies I and I is
// inconsistent with the remaining constraints. The last check must have
// been unsatisfiable. Assumptions of the last check count as remaining
// constraints.
func (p *Prover) Interpolant(ctx context.Context, group []Constraint) (BooleanFormula, error) {
	if !p.opts.GenerateInterpolants {
		return BooleanFormula{}, errors.Wrap(ErrIllegalState, "interpolant generation not enabled")
	} else if err := p.lastResult(statusUnsat, "interpolant"); err != nil {
		return BooleanFormula{}, err
	}

	live := p.constraints()
	ids := lo.SliceToMap(live, func(c Constraint) (uint64, struct{}) { return c.id, struct{}{} })
	for _, c := range group {
		if _, ok := ids[c.id]; !ok {
			return BooleanFormula{}, errors.Wrapf(ErrIllegalState, "interpolant: constraint %s is not on the stack", c.f)
		}
	}
	inGroup := lo.SliceToMap(group, func(c Constraint) (uint64, struct{}) { return c.id, struct{}{} })
	a, b := lo.FilterReject(live, func(c Constraint, _ int) bool {
		_, ok := inGroup[c.id]
		return ok
	})

	ah, err := p.s.extractAll(lo.Map(a, func(c Constraint, _ int) term { return c.f.term }))
	if err != nil {
		return BooleanFormula{}, err
	}
	bterms := lo.Map(b, func(c Constraint, _ int) term { return c.f.term })
	bterms = append(bterms, terms(p.assumptions)...)
	bh, err := p.s.extractAll(bterms)
	if err != nil {
		return BooleanFormula{}, err
	}

	ctx, span := otel.Tracer("smt").Start(ctx, "smt.Prover.Interpolant",
		trace.WithAttributes(
			attribute.String("backend", p.s.Name()),
			attribute.Int("a", len(a)),
			attribute.Int("b", len(bterms)),
		),
	)
	defer span.End()

	h, err := p.native.Interpolant(ctx, ah, bh)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "interpolation failed")
		return BooleanFormula{}, err
	}
	return asBoolean(p.s.eng.encapsulate(Bool, h))
}

// Close releases the backend resources of the prover. Formulas asserted
// into the prover remain valid. Closing an already closed prover is a no-op.
func (p *Prover) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.frames = immutable.NewList(immutable.NewList[Constraint]())
	p.assumptions = nil
	p.updateEmpty()
	p.s.unregister(p)

	p.logger.Printf("[prover %s] close", p.ID())
	return p.native.Close()
}

// String returns the name of the status.
func (s status) String() string {
	switch s {
	case statusSat:
		return "sat"
	case statusUnsat:
		return "unsat"
	default:
		return "unknown"
	}
}
