package smt_test

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/benbjohnson/smt"
	"github.com/google/go-cmp/cmp"
)

// shapeVisitor describes the top-level shape of a formula.
type shapeVisitor struct{}

func (shapeVisitor) VisitFreeVariable(f smt.Formula, name string) string {
	return fmt.Sprintf("free %s %s", name, f.Type())
}

func (shapeVisitor) VisitBoundVariable(f smt.Formula, name string, index int) string {
	return fmt.Sprintf("bound %s %d", name, index)
}

func (shapeVisitor) VisitNumeral(f smt.Formula, value interface{}) string {
	switch value := value.(type) {
	case *big.Int:
		return "numeral " + value.String()
	default:
		return fmt.Sprintf("numeral %v", value)
	}
}

func (shapeVisitor) VisitUF(f smt.Formula, args []smt.Formula, decl *smt.FunctionDeclaration) string {
	return fmt.Sprintf("uf %s/%d", decl.Name(), len(args))
}

func (shapeVisitor) VisitFunction(f smt.Formula, args []smt.Formula, app smt.Application) string {
	return fmt.Sprintf("function %s/%d %s", app.Name, len(args), app.Type)
}

func (shapeVisitor) VisitForall(f smt.BooleanFormula, vars []smt.Formula, body smt.BooleanFormula) string {
	return fmt.Sprintf("forall %d", len(vars))
}

func (shapeVisitor) VisitExists(f smt.BooleanFormula, vars []smt.Formula, body smt.BooleanFormula) string {
	return fmt.Sprintf("exists %d", len(vars))
}

// recorder captures the arguments of the last visit.
type recorder struct {
	shapeVisitor
	args []smt.Formula
	app  smt.Application
	vars []smt.Formula
	body smt.BooleanFormula
}

func (r *recorder) VisitUF(f smt.Formula, args []smt.Formula, decl *smt.FunctionDeclaration) string {
	r.args = args
	return r.shapeVisitor.VisitUF(f, args, decl)
}

func (r *recorder) VisitFunction(f smt.Formula, args []smt.Formula, app smt.Application) string {
	r.args, r.app = args, app
	return r.shapeVisitor.VisitFunction(f, args, app)
}

func (r *recorder) VisitForall(f smt.BooleanFormula, vars []smt.Formula, body smt.BooleanFormula) string {
	r.vars, r.body = vars, body
	return r.shapeVisitor.VisitForall(f, vars, body)
}

func (r *recorder) VisitExists(f smt.BooleanFormula, vars []smt.Formula, body smt.BooleanFormula) string {
	r.vars, r.body = vars, body
	return r.shapeVisitor.VisitExists(f, vars, body)
}

func TestVisit(t *testing.T) {
	s := MustNewSolver(t)
	bm, bv, qm, uf := s.Booleans(), s.Bitvectors(), s.Quantifiers(), s.UFs()
	a := MustBool(bm.MakeVariable("a"))
	x, y := MustBV(bv.MakeVariable(8, "x")), MustBV(bv.MakeVariable(8, "y"))
	decl, err := uf.Declare("f", smt.NewBitvectorType(8), smt.NewBitvectorType(8))
	if err != nil {
		t.Fatal(err)
	}

	t.Run("Shapes", func(t *testing.T) {
		for _, tt := range []struct {
			f    smt.Formula
			want string
		}{
			{a, "free a Bool"},
			{x, "free x (_ BitVec 8)"},
			{MustBool(bm.MakeTrue()), "numeral true"},
			{MustBV(bv.MakeInt64(8, -1)), "numeral 255"},
			{MustFormula(uf.Call(decl, x)), "uf f/1"},
			{MustBV(bv.Add(x, y)), "function bvadd/2 (_ BitVec 8)"},
			{MustBV(bv.Extract(x, 3, 0)), "function (_ extract 3 0)/1 (_ BitVec 4)"},
			{MustBool(bm.And(a, a, a)), "function and/3 Bool"},
			{MustBool(qm.Forall([]smt.Formula{x}, MustBool(bv.Equal(x, y)))), "forall 1"},
			{MustBool(qm.Exists([]smt.Formula{x, y}, MustBool(bv.Equal(x, y)))), "exists 2"},
		} {
			t.Run(tt.want, func(t *testing.T) {
				if got, err := smt.Visit[string](s, tt.f, shapeVisitor{}); err != nil {
					t.Fatal(err)
				} else if got != tt.want {
					t.Fatalf("Visit()=%q, want %q", got, tt.want)
				}
			})
		}
	})

	t.Run("BoundVariable", func(t *testing.T) {
		f := MustBool(qm.Forall([]smt.Formula{x, y}, MustBool(bv.LessOrEquals(x, y, false))))

		var r recorder
		if _, err := smt.Visit[string](s, f, &r); err != nil {
			t.Fatal(err)
		}
		var got []string
		for _, v := range r.vars {
			shape, err := smt.Visit[string](s, v, shapeVisitor{})
			if err != nil {
				t.Fatal(err)
			}
			got = append(got, shape)
		}
		if diff := cmp.Diff([]string{"bound x 0", "bound y 1"}, got); diff != "" {
			t.Fatal(diff)
		}

		// The body refers to the bound variables, not the free ones.
		if vars, err := s.FreeVariables(r.body); err != nil {
			t.Fatal(err)
		} else if len(vars) != 0 {
			t.Fatalf("unexpected free variables: %v", vars)
		}

		// Rebinding the reported variables yields the same formula.
		if other, err := qm.Forall(r.vars, r.body); err != nil {
			t.Fatal(err)
		} else if other != f {
			t.Fatalf("unexpected formula: %s", other)
		}
	})

	t.Run("Rebuild", func(t *testing.T) {
		var r recorder
		if _, err := smt.Visit[string](s, MustBool(bv.LessThan(x, y, true)), &r); err != nil {
			t.Fatal(err)
		} else if r.app.Kind != smt.BVSLT {
			t.Fatalf("unexpected kind: %s", r.app.Kind)
		}

		other, err := r.app.Rebuild(r.args[1], r.args[0])
		if err != nil {
			t.Fatal(err)
		} else if want := MustBool(bv.LessThan(y, x, true)); other != smt.Formula(want) {
			t.Fatalf("Rebuild()=%s, want %s", other, want)
		}

		if _, err := r.app.Rebuild(a, a); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestSolver_Walk(t *testing.T) {
	s := MustNewSolver(t)
	bm, bv := s.Booleans(), s.Bitvectors()
	a := MustBool(bm.MakeVariable("a"))
	x, y := MustBV(bv.MakeVariable(8, "x")), MustBV(bv.MakeVariable(8, "y"))
	sum := MustBV(bv.Add(x, y))

	// Shared subterms are visited once.
	f := MustBool(bm.And(a, MustBool(bv.Equal(sum, sum)), MustBool(bv.LessThan(sum, x, false))))

	var n int
	if err := s.Walk(f, func(smt.Formula) bool { n++; return true }); err != nil {
		t.Fatal(err)
	} else if n != 7 {
		t.Fatalf("unexpected subterm count: %d", n)
	}

	// Returning false prunes the children.
	n = 0
	if err := s.Walk(f, func(smt.Formula) bool { n++; return false }); err != nil {
		t.Fatal(err)
	} else if n != 1 {
		t.Fatalf("unexpected subterm count: %d", n)
	}

	vars, err := s.FreeVariables(f)
	if err != nil {
		t.Fatal(err)
	} else if diff := cmp.Diff([]string{"a", "x", "y"}, formulaStrings(vars)); diff != "" {
		t.Fatal(diff)
	}
}

func formulaStrings(a []smt.Formula) []string {
	other := make([]string, len(a))
	for i := range a {
		other[i] = a[i].String()
	}
	return other
}
