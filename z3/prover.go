package z3

import (
	"context"
	"strings"
	"time"
	"unsafe"

	"github.com/benbjohnson/smt"
	"github.com/pkg/errors"
)

/*
#include <z3.h>
#include <stdlib.h>
*/
import "C"

// prover wraps a Z3 solver object. When unsat cores are requested every
// assertion is tracked by a fresh boolean constant.
type prover struct {
	b    *backend
	raw  C.Z3_solver
	opts smt.ProverOptions

	frames  [][]C.Z3_ast           // trackers per frame
	tracked map[C.Z3_ast]C.Z3_ast // tracker -> assertion
	assumed []C.Z3_ast             // assumptions of the last check
	closed  bool
}

func (p *prover) lock() error {
	if err := p.b.lock(); err != nil {
		return err
	} else if p.closed {
		p.b.mu.Unlock()
		return errors.Wrap(smt.ErrIllegalState, "z3: prover closed")
	}
	return nil
}

func (p *prover) Push() error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.b.mu.Unlock()

	C.Z3_solver_push(p.b.ctx.raw, p.raw)
	if err := p.b.ctx.err("Z3_solver_push"); err != nil {
		return err
	}
	p.frames = append(p.frames, nil)
	return nil
}

func (p *prover) Pop() error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.b.mu.Unlock()

	if len(p.frames) == 0 {
		return errors.Wrap(smt.ErrIllegalState, "z3: pop: empty assertion stack")
	}
	C.Z3_solver_pop(p.b.ctx.raw, p.raw, 1)
	if err := p.b.ctx.err("Z3_solver_pop"); err != nil {
		return err
	}
	for _, tracker := range p.frames[len(p.frames)-1] {
		delete(p.tracked, tracker)
	}
	p.frames = p.frames[:len(p.frames)-1]
	return nil
}

func (p *prover) Assert(t C.Z3_ast) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.b.mu.Unlock()

	raw := p.b.ctx.raw
	if !p.opts.GenerateUnsatCore {
		C.Z3_solver_assert(raw, p.raw, t)
		return p.b.ctx.err("Z3_solver_assert")
	}

	prefix := C.CString("track")
	defer C.free(unsafe.Pointer(prefix))
	tracker := C.Z3_mk_fresh_const(raw, prefix, C.Z3_mk_bool_sort(raw))
	if err := p.b.ctx.err("Z3_mk_fresh_const"); err != nil {
		return err
	}
	C.Z3_solver_assert_and_track(raw, p.raw, t, tracker)
	if err := p.b.ctx.err("Z3_solver_assert_and_track"); err != nil {
		return err
	}

	p.b.trackers[tracker] = struct{}{}
	p.tracked[tracker] = t
	if n := len(p.frames); n > 0 {
		p.frames[n-1] = append(p.frames[n-1], tracker)
	}
	return nil
}

// Check runs the solver while watching ctx. Native calls on the context
// are serialized, so a long check blocks other provers of the same solver.
func (p *prover) Check(ctx context.Context, assumptions []C.Z3_ast) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.Wrapf(smt.ErrInterrupted, "z3: %s", err)
	}
	if err := p.lock(); err != nil {
		return false, err
	}
	defer p.b.mu.Unlock()

	t := time.Now()
	defer func() {
		p.b.stats.SolveN++
		p.b.stats.SolveTime += time.Since(t)
	}()

	done, exited := make(chan struct{}), make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			C.Z3_solver_interrupt(p.b.ctx.raw, p.raw)
		case <-done:
		}
	}()

	p.assumed = append(p.assumed[:0], assumptions...)
	raw := p.b.ctx.raw
	ret := C.Z3_solver_check_assumptions(raw, p.raw, C.uint(len(assumptions)), astPtr(assumptions))
	close(done)
	<-exited

	if err := p.b.ctx.err("Z3_solver_check_assumptions"); err != nil {
		return false, err
	}

	switch ret {
	case C.Z3_L_TRUE:
		return true, nil
	case C.Z3_L_FALSE:
		return false, nil
	}

	reason := C.GoString(C.Z3_solver_get_reason_unknown(raw, p.raw))
	p.b.logger.Printf("[z3] check: unknown: %s", reason)
	switch {
	case ctx.Err() != nil:
		return false, errors.Wrapf(smt.ErrInterrupted, "z3: %s", ctx.Err())
	case strings.Contains(reason, "canceled"), strings.Contains(reason, "timeout"):
		return false, errors.Wrapf(smt.ErrInterrupted, "z3: %s", reason)
	default:
		return false, errors.Wrapf(smt.ErrSolverFailure, "z3: %s", reason)
	}
}

func (p *prover) Model() (smt.NativeModel[C.Z3_ast], error) {
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.b.mu.Unlock()

	raw := C.Z3_solver_get_model(p.b.ctx.raw, p.raw)
	if err := p.b.ctx.err("Z3_solver_get_model"); err != nil {
		return nil, err
	}
	C.Z3_model_inc_ref(p.b.ctx.raw, raw)
	return &model{b: p.b, raw: raw}, nil
}

func (p *prover) UnsatCore() ([]C.Z3_ast, error) {
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.b.mu.Unlock()

	raw := p.b.ctx.raw
	vec := C.Z3_solver_get_unsat_core(raw, p.raw)
	if err := p.b.ctx.err("Z3_solver_get_unsat_core"); err != nil {
		return nil, err
	}
	C.Z3_ast_vector_inc_ref(raw, vec)
	defer C.Z3_ast_vector_dec_ref(raw, vec)

	n := int(C.Z3_ast_vector_size(raw, vec))
	a := make([]C.Z3_ast, 0, n)
	for i := 0; i < n; i++ {
		x := C.Z3_ast_vector_get(raw, vec, C.uint(i))
		if t, ok := p.tracked[x]; ok {
			a = append(a, t)
		} else if containsAST(p.assumed, x) {
			a = append(a, x)
		}
	}
	return a, nil
}

func containsAST(a []C.Z3_ast, x C.Z3_ast) bool {
	for _, y := range a {
		if y == x {
			return true
		}
	}
	return false
}

func (p *prover) Interpolant(ctx context.Context, a, b []C.Z3_ast) (C.Z3_ast, error) {
	return nil, errors.Wrap(smt.ErrUnsupported, "z3: interpolation")
}

func (p *prover) Close() error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for tracker := range p.tracked {
		delete(p.b.trackers, tracker)
	}
	p.frames, p.tracked, p.assumed = nil, nil, nil
	if !p.b.closed {
		C.Z3_solver_dec_ref(p.b.ctx.raw, p.raw)
	}
	return nil
}

// model holds a reference to a Z3 model.
type model struct {
	b      *backend
	raw    C.Z3_model
	closed bool
}

func (m *model) lock() error {
	if err := m.b.lock(); err != nil {
		return err
	} else if m.closed {
		m.b.mu.Unlock()
		return errors.Wrap(smt.ErrIllegalState, "z3: model closed")
	}
	return nil
}

// Eval evaluates t with model completion.
func (m *model) Eval(t C.Z3_ast) (C.Z3_ast, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.b.mu.Unlock()

	var v C.Z3_ast
	if ok := C.Z3_model_eval(m.b.ctx.raw, m.raw, t, C.bool(true), &v); !bool(ok) {
		if err := m.b.ctx.err("Z3_model_eval"); err != nil {
			return nil, err
		}
		return nil, errors.Wrapf(smt.ErrSolverFailure, "z3: cannot evaluate %s", m.b.ctx.astToString(t))
	}
	return v, nil
}

// Constants returns the constants interpreted by the model, excluding
// tracking literals.
func (m *model) Constants() ([]C.Z3_ast, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.b.mu.Unlock()

	raw := m.b.ctx.raw
	n := int(C.Z3_model_get_num_consts(raw, m.raw))
	a := make([]C.Z3_ast, 0, n)
	for i := 0; i < n; i++ {
		decl := C.Z3_model_get_const_decl(raw, m.raw, C.uint(i))
		t := C.Z3_mk_app(raw, decl, 0, nil)
		if err := m.b.ctx.err("Z3_mk_app"); err != nil {
			return nil, err
		} else if _, ok := m.b.trackers[t]; ok {
			continue
		}
		a = append(a, t)
	}
	return a, nil
}

func (m *model) Close() error {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if !m.b.closed {
		C.Z3_model_dec_ref(m.b.ctx.raw, m.raw)
	}
	return nil
}

// String returns the model in Z3's textual format.
func (m *model) String() string {
	if err := m.lock(); err != nil {
		return err.Error()
	}
	defer m.b.mu.Unlock()
	return m.b.ctx.modelToString(m.raw)
}
