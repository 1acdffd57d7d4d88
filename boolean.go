package smt

// BooleanFormulaManager constructs propositional formulas.
type BooleanFormulaManager struct {
	s *Solver
}

// MakeVariable returns the boolean variable name.
func (m *BooleanFormulaManager) MakeVariable(name string) (BooleanFormula, error) {
	return asBoolean(m.s.variable(Bool, name))
}

// MakeTrue returns the constant true.
func (m *BooleanFormulaManager) MakeTrue() (BooleanFormula, error) {
	return asBoolean(m.s.boolean(true))
}

// MakeFalse returns the constant false.
func (m *BooleanFormulaManager) MakeFalse() (BooleanFormula, error) {
	return asBoolean(m.s.boolean(false))
}

// MakeBoolean returns the constant v.
func (m *BooleanFormulaManager) MakeBoolean(v bool) (BooleanFormula, error) {
	return asBoolean(m.s.boolean(v))
}

// Not returns the negation of f.
func (m *BooleanFormulaManager) Not(f BooleanFormula) (BooleanFormula, error) {
	return asBoolean(m.s.apply(Op(NOT), f.term))
}

// And returns the conjunction of fs. An empty conjunction is true.
func (m *BooleanFormulaManager) And(fs ...BooleanFormula) (BooleanFormula, error) {
	switch len(fs) {
	case 0:
		return m.MakeTrue()
	case 1:
		return fs[0], nil
	}
	return asBoolean(m.s.apply(Op(AND), terms(fs)...))
}

// Or returns the disjunction of fs. An empty disjunction is false.
func (m *BooleanFormulaManager) Or(fs ...BooleanFormula) (BooleanFormula, error) {
	switch len(fs) {
	case 0:
		return m.MakeFalse()
	case 1:
		return fs[0], nil
	}
	return asBoolean(m.s.apply(Op(OR), terms(fs)...))
}

// Xor returns the exclusive disjunction of a and b.
func (m *BooleanFormulaManager) Xor(a, b BooleanFormula) (BooleanFormula, error) {
	return asBoolean(m.s.apply(Op(XOR), a.term, b.term))
}

// Implies returns a implies b.
func (m *BooleanFormulaManager) Implies(a, b BooleanFormula) (BooleanFormula, error) {
	return asBoolean(m.s.apply(Op(IMPLIES), a.term, b.term))
}

// Equivalence returns a if and only if b.
func (m *BooleanFormulaManager) Equivalence(a, b BooleanFormula) (BooleanFormula, error) {
	return asBoolean(m.s.apply(Op(IFF), a.term, b.term))
}

// IsTrue returns true if f is syntactically the constant true.
func (m *BooleanFormulaManager) IsTrue(f BooleanFormula) (bool, error) {
	return m.isConstant(f, true)
}

// IsFalse returns true if f is syntactically the constant false.
func (m *BooleanFormulaManager) IsFalse(f BooleanFormula) (bool, error) {
	return m.isConstant(f, false)
}

func (m *BooleanFormulaManager) isConstant(f BooleanFormula, v bool) (bool, error) {
	h, err := m.s.extract(f.term)
	if err != nil {
		return false, err
	}
	shape, err := m.s.eng.shape(h)
	if err != nil {
		return false, err
	} else if shape.Kind != ShapeNumeral {
		return false, nil
	}
	value, ok := shape.Value.(bool)
	return ok && value == v, nil
}

// IfThenElse returns "if cond then a else b". Both branches must have the
// same type.
func IfThenElse[F Formula](s *Solver, cond BooleanFormula, a, b F) (F, error) {
	var zero F
	t, err := s.apply(Op(ITE), cond.term, a.formula(), b.formula())
	if err != nil {
		return zero, err
	}
	return As[F](wrap(t))
}

func asBoolean(t term, err error) (BooleanFormula, error) {
	if err != nil {
		return BooleanFormula{}, err
	}
	assert(t.typ == Bool, "expected Bool, got %s", t.typ)
	return BooleanFormula{t}, nil
}
