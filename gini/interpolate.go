package gini

import (
	"context"
	"math/big"

	"github.com/benbjohnson/smt"
	"github.com/go-air/gini/z"
	"github.com/pkg/errors"
)

// sharedBit is an input bit of a variable occurring in both partitions.
type sharedBit struct {
	v   *Term
	bit int
	lit z.Lit
}

// Interpolant computes an interpolant of a and b by enumerating the
// assignments of the shared variable bits allowed by a. Each assignment is
// generalized to the subset which already conflicts with b and then blocked
// in a. The disjunction of the generalized cubes is implied by a and is
// inconsistent with b.
func (p *prover) Interpolant(ctx context.Context, a, b []*Term) (*Term, error) {
	shared, ea, eb, err := p.partition(a, b)
	if err != nil {
		return nil, err
	}

	var cubes [][]sharedBit
	for {
		res, err := solve(ctx, ea.g)
		if err != nil {
			return nil, err
		} else if res < 0 {
			break
		}

		cube := make([]z.Lit, len(shared))
		for i, s := range shared {
			if ea.g.Value(s.lit) {
				cube[i] = s.lit
			} else {
				cube[i] = s.lit.Not()
			}
		}

		eb.g.Assume(cube...)
		if res, err = solve(ctx, eb.g); err != nil {
			return nil, err
		} else if res > 0 {
			return nil, errors.Wrap(smt.ErrSolverFailure, "gini: interpolant: partitions are jointly satisfiable")
		}

		why := eb.g.Why(nil)
		if len(why) == 0 {
			return p.b.MakeBool(true)
		}

		generalized := make([]sharedBit, 0, len(why))
		block := make([]z.Lit, 0, len(why))
		for _, m := range why {
			for _, s := range shared {
				if s.lit.Var() == m.Var() {
					x := s
					x.lit = m
					generalized = append(generalized, x)
					break
				}
			}
			block = append(block, m.Not())
		}
		cubes = append(cubes, generalized)
		ea.clause(block...)
	}

	p.b.logger.Printf("[gini] interpolant: shared=%d cubes=%d", len(shared), len(cubes))
	return p.b.disjunction(cubes)
}

// partition encodes a and b into two fresh solvers and returns the input
// bits of variables shared between them.
func (p *prover) partition(a, b []*Term) ([]sharedBit, *encoder, *encoder, error) {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if err := p.check(); err != nil {
		return nil, nil, nil, err
	}

	va, err := variables(a)
	if err != nil {
		return nil, nil, nil, err
	}
	vb, err := variables(b)
	if err != nil {
		return nil, nil, nil, err
	}

	ea, eb := newEncoder(p.b.blaster.c), newEncoder(p.b.blaster.c)
	for _, x := range []struct {
		e     *encoder
		terms []*Term
	}{{ea, a}, {eb, b}} {
		for _, t := range x.terms {
			v, err := p.b.blaster.blast(t)
			if err != nil {
				return nil, nil, nil, err
			}
			x.e.unit(v[0])
		}
	}

	var shared []sharedBit
	for _, v := range va {
		if !containsTerm(vb, v) {
			continue
		}
		for i, lit := range p.b.blaster.inputs[v] {
			if ea.emitted[lit.Var()] && eb.emitted[lit.Var()] {
				shared = append(shared, sharedBit{v: v, bit: i, lit: lit})
			}
		}
	}
	return shared, ea, eb, nil
}

// variables returns the free variables of terms. Function applications are
// rejected: their congruence axioms relate both partitions.
func variables(terms []*Term) ([]*Term, error) {
	var a []*Term
	seen := make(map[*Term]bool)
	var visit func(t *Term) error
	visit = func(t *Term) error {
		if seen[t] {
			return nil
		}
		seen[t] = true

		switch t.kind {
		case kindVar:
			a = append(a, t)
		case kindCall:
			return errors.Wrapf(smt.ErrUnsupported, "gini: interpolation over uninterpreted function %s", t.decl.name)
		case kindForall, kindExists:
			return visit(t.body)
		}
		for _, arg := range t.args {
			if err := visit(arg); err != nil {
				return err
			}
		}
		return nil
	}

	for _, t := range terms {
		if err := visit(t); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// disjunction builds the disjunction of cubes over shared bits.
func (b *Backend) disjunction(cubes [][]sharedBit) (*Term, error) {
	if len(cubes) == 0 {
		return b.MakeBool(false)
	}

	disjuncts := make([]*Term, 0, len(cubes))
	for _, cube := range cubes {
		conjuncts := make([]*Term, 0, len(cube))
		for _, s := range cube {
			t, err := b.literal(s)
			if err != nil {
				return nil, err
			}
			conjuncts = append(conjuncts, t)
		}
		t, err := b.nary(smt.AND, conjuncts)
		if err != nil {
			return nil, err
		}
		disjuncts = append(disjuncts, t)
	}
	return b.nary(smt.OR, disjuncts)
}

func (b *Backend) nary(kind smt.FunctionKind, args []*Term) (*Term, error) {
	switch len(args) {
	case 0:
		return b.MakeBool(kind == smt.AND)
	case 1:
		return args[0], nil
	}
	return b.Apply(smt.Op(kind), args)
}

// literal returns the term asserting the value of a single shared bit.
func (b *Backend) literal(s sharedBit) (*Term, error) {
	if s.v.typ == smt.Bool {
		if s.lit.IsPos() {
			return s.v, nil
		}
		return b.Apply(smt.Op(smt.NOT), []*Term{s.v})
	}

	bit, err := b.Apply(smt.Op(smt.EXTRACT, s.bit, s.bit), []*Term{s.v})
	if err != nil {
		return nil, err
	}
	value := new(big.Rat)
	if s.lit.IsPos() {
		value.SetInt64(1)
	}
	one, err := b.MakeNumber(smt.NewBitvectorType(1), value)
	if err != nil {
		return nil, err
	}
	return b.Apply(smt.Op(smt.EQ), []*Term{bit, one})
}
