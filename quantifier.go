package smt

import (
	"github.com/pkg/errors"
)

// QuantifiedFormulaManager constructs quantified formulas.
type QuantifiedFormulaManager struct {
	s *Solver
}

// Forall returns "forall vars. body".
func (m *QuantifiedFormulaManager) Forall(vars []Formula, body BooleanFormula) (BooleanFormula, error) {
	return m.Mk(Forall, vars, body)
}

// Exists returns "exists vars. body".
func (m *QuantifiedFormulaManager) Exists(vars []Formula, body BooleanFormula) (BooleanFormula, error) {
	return m.Mk(Exists, vars, body)
}

// Mk binds vars in body with quantifier q. Each var must be either a free
// variable or a bound variable obtained by visiting a quantifier. Binding no
// variables returns body unchanged.
func (m *QuantifiedFormulaManager) Mk(q Quantifier, vars []Formula, body BooleanFormula) (BooleanFormula, error) {
	if !m.s.Capabilities().Quantifiers {
		return BooleanFormula{}, errors.Wrapf(ErrUnsupported, "%s: quantifiers", m.s.Name())
	} else if q != Forall && q != Exists {
		return BooleanFormula{}, errors.Errorf("invalid quantifier: %s", q)
	} else if len(vars) == 0 {
		return body, nil
	}

	ts := terms(vars)
	hs, err := m.s.extractAll(ts)
	if err != nil {
		return BooleanFormula{}, err
	}
	for i, h := range hs {
		shape, err := m.s.eng.shape(h)
		if err != nil {
			return BooleanFormula{}, err
		} else if shape.Kind != ShapeFreeVariable && shape.Kind != ShapeBoundVariable {
			return BooleanFormula{}, errors.Errorf("%s: bound term %d is a %s, expected a variable", q, i, shape.Kind)
		}
	}

	b, err := m.s.extract(body.term)
	if err != nil {
		return BooleanFormula{}, err
	}
	h, err := m.s.eng.quantify(q, hs, b)
	if err != nil {
		return BooleanFormula{}, err
	}
	return asBoolean(m.s.eng.encapsulate(Bool, h))
}
