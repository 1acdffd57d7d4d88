package smt

// SLFormulaManager constructs separation-logic formulas. Heap cells are
// addressed by arbitrary sorts; all constructors return heap predicates.
type SLFormulaManager struct {
	s *Solver
}

// MakeStar returns the separating conjunction of a and b.
func (m *SLFormulaManager) MakeStar(a, b BooleanFormula) (BooleanFormula, error) {
	return asBoolean(m.s.apply(Op(SEP_STAR), a.term, b.term))
}

// MakePointsTo returns the singleton heap mapping ptr to to.
func (m *SLFormulaManager) MakePointsTo(ptr, to Formula) (BooleanFormula, error) {
	return asBoolean(m.s.apply(Op(POINTS_TO), ptr.formula(), to.formula()))
}

// MakeMagicWand returns the separating implication of a and b.
func (m *SLFormulaManager) MakeMagicWand(a, b BooleanFormula) (BooleanFormula, error) {
	return asBoolean(m.s.apply(Op(MAGIC_WAND), a.term, b.term))
}

// MakeEmptyHeap returns the empty heap over the sorts of addr and value.
func (m *SLFormulaManager) MakeEmptyHeap(addr, value Formula) (BooleanFormula, error) {
	return asBoolean(m.s.apply(Op(EMPTY_HEAP), addr.formula(), value.formula()))
}

// MakeNilElement returns the nil predicate for the sort of f.
func (m *SLFormulaManager) MakeNilElement(f Formula) (BooleanFormula, error) {
	return asBoolean(m.s.apply(Op(NIL_ELEMENT), f.formula()))
}
