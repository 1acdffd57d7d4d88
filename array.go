package smt

// ArrayFormulaManager constructs formulas over arrays.
type ArrayFormulaManager struct {
	s *Solver
}

// MakeVariable returns the array variable name of type typ.
func (m *ArrayFormulaManager) MakeVariable(name string, typ ArrayType) (ArrayFormula, error) {
	return asArray(m.s.variable(typ, name))
}

// Const returns the array of type typ mapping every index to elem.
func (m *ArrayFormulaManager) Const(typ ArrayType, elem Formula) (ArrayFormula, error) {
	return asArray(m.s.apply(Operator{Kind: CONST_ARRAY, Sort: typ}, elem.formula()))
}

// Select returns the element of array at index.
func (m *ArrayFormulaManager) Select(array ArrayFormula, index Formula) (Formula, error) {
	t, err := m.s.apply(Op(SELECT), array.term, index.formula())
	if err != nil {
		return nil, err
	}
	return wrap(t), nil
}

// Store returns array with index mapped to value.
func (m *ArrayFormulaManager) Store(array ArrayFormula, index, value Formula) (ArrayFormula, error) {
	return asArray(m.s.apply(Op(STORE), array.term, index.formula(), value.formula()))
}

// Equal returns the extensional equality of a and b.
func (m *ArrayFormulaManager) Equal(a, b ArrayFormula) (BooleanFormula, error) {
	return asBoolean(m.s.apply(Op(EQ), a.term, b.term))
}

func asArray(t term, err error) (ArrayFormula, error) {
	if err != nil {
		return ArrayFormula{}, err
	}
	_, ok := t.typ.(ArrayType)
	assert(ok, "expected array, got %s", t.typ)
	return ArrayFormula{t}, nil
}
