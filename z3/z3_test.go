package z3_test

import (
	"bytes"
	"context"
	"log"
	"math/big"
	"sort"
	"strings"
	"testing"

	"github.com/benbjohnson/smt"
	"github.com/benbjohnson/smt/z3"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestSolver_IsUnsat(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		t.Run("True", func(t *testing.T) {
			s := MustNewSolver(t)
			defer MustCloseSolver(t, s)
			p := MustNewProver(t, s, smt.ProverOptions{})
			MustAdd(t, p, MustBool(s.Booleans().MakeTrue()))
			if MustIsUnsat(t, p) {
				t.Fatal("expected satisfiable")
			}
		})
		t.Run("False", func(t *testing.T) {
			s := MustNewSolver(t)
			defer MustCloseSolver(t, s)
			p := MustNewProver(t, s, smt.ProverOptions{})
			MustAdd(t, p, MustBool(s.Booleans().MakeFalse()))
			if !MustIsUnsat(t, p) {
				t.Fatal("expected unsatisfiable")
			}
		})
	})

	t.Run("Extract", func(t *testing.T) {
		s := MustNewSolver(t)
		defer MustCloseSolver(t, s)
		bv := s.Bitvectors()

		p := MustNewProver(t, s, smt.ProverOptions{})
		hi := MustBV(bv.Extract(MustBV(bv.MakeInt64(16, 0xAABB)), 15, 8))
		MustAdd(t, p, MustBool(bv.Equal(hi, MustBV(bv.MakeInt64(8, 0xAA)))))
		if MustIsUnsat(t, p) {
			t.Fatal("expected satisfiable")
		}
	})

	t.Run("SignExtend", func(t *testing.T) {
		s := MustNewSolver(t)
		defer MustCloseSolver(t, s)
		bv := s.Bitvectors()

		p := MustNewProver(t, s, smt.ProverOptions{})
		ext := MustBV(bv.Extend(MustBV(bv.MakeInt64(16, -200)), 16, true))
		MustAdd(t, p, MustBool(bv.Equal(ext, MustBV(bv.MakeInt64(32, -200)))))
		if MustIsUnsat(t, p) {
			t.Fatal("expected satisfiable")
		}
	})

	t.Run("Canceled", func(t *testing.T) {
		s := MustNewSolver(t)
		defer MustCloseSolver(t, s)

		p := MustNewProver(t, s, smt.ProverOptions{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := p.IsUnsat(ctx); !errors.Is(err, smt.ErrInterrupted) {
			t.Fatalf("unexpected error: %v", err)
		} else if MustIsUnsat(t, p) {
			t.Fatal("expected satisfiable")
		}
	})
}

func TestModel(t *testing.T) {
	t.Run("Integer", func(t *testing.T) {
		s := MustNewSolver(t)
		defer MustCloseSolver(t, s)
		im := s.Integers()

		a := MustInt(im.MakeVariable("a"))
		p := MustNewProver(t, s, smt.ProverOptions{GenerateModels: true})
		MustAdd(t, p, MustBool(im.GreaterThan(a, MustInt(im.MakeNumber(0)))))
		MustAdd(t, p, MustBool(im.LessThan(a, MustInt(im.MakeNumber(2)))))
		if MustIsUnsat(t, p) {
			t.Fatal("expected satisfiable")
		}

		m, err := p.Model()
		if err != nil {
			t.Fatal(err)
		} else if v, err := m.Int(a); err != nil {
			t.Fatal(err)
		} else if v.Int64() != 1 {
			t.Fatalf("a=%s, expected 1", v)
		}

		assignments, err := m.Assignments()
		if err != nil {
			t.Fatal(err)
		} else if len(assignments) != 1 || assignments[0].Name != "a" {
			t.Fatalf("unexpected assignments: %v", assignments)
		}
	})

	t.Run("BigInteger", func(t *testing.T) {
		s := MustNewSolver(t)
		defer MustCloseSolver(t, s)
		im := s.Integers()

		want := new(big.Int).Exp(big.NewInt(10), big.NewInt(1000), nil)
		a := MustInt(im.MakeVariable("a"))
		p := MustNewProver(t, s, smt.ProverOptions{GenerateModels: true})
		MustAdd(t, p, MustBool(im.Equal(a, MustInt(im.MakeBigNumber(want)))))
		if MustIsUnsat(t, p) {
			t.Fatal("expected satisfiable")
		}

		m, err := p.Model()
		if err != nil {
			t.Fatal(err)
		} else if v, err := m.Int(a); err != nil {
			t.Fatal(err)
		} else if v.Cmp(want) != 0 {
			t.Fatalf("a=%s", v)
		}
	})

	t.Run("Rational", func(t *testing.T) {
		s := MustNewSolver(t)
		defer MustCloseSolver(t, s)
		rm := s.Rationals()

		x := MustRat(rm.MakeVariable("x"))
		three := MustRat(rm.MakeNumber(3))
		p := MustNewProver(t, s, smt.ProverOptions{GenerateModels: true})
		MustAdd(t, p, MustBool(rm.Equal(MustRat(rm.Multiply(x, three)), MustRat(rm.MakeNumber(1)))))
		if MustIsUnsat(t, p) {
			t.Fatal("expected satisfiable")
		}

		m, err := p.Model()
		if err != nil {
			t.Fatal(err)
		} else if v, err := m.Rational(x); err != nil {
			t.Fatal(err)
		} else if v.Cmp(big.NewRat(1, 3)) != 0 {
			t.Fatalf("x=%s, expected 1/3", v)
		}
	})

	t.Run("Unsat", func(t *testing.T) {
		s := MustNewSolver(t)
		defer MustCloseSolver(t, s)

		p := MustNewProver(t, s, smt.ProverOptions{GenerateModels: true})
		MustAdd(t, p, MustBool(s.Booleans().MakeFalse()))
		if !MustIsUnsat(t, p) {
			t.Fatal("expected unsatisfiable")
		} else if _, err := p.Model(); !errors.Is(err, smt.ErrIllegalState) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestIntegers_EuclideanDivision(t *testing.T) {
	s := MustNewSolver(t)
	defer MustCloseSolver(t, s)
	im := s.Integers()

	p := MustNewProver(t, s, smt.ProverOptions{GenerateModels: true})
	if MustIsUnsat(t, p) {
		t.Fatal("expected satisfiable")
	}
	m, err := p.Model()
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		a, b     int64
		div, mod int64
	}{
		{7, 2, 3, 1},
		{-7, 2, -4, 1},
		{7, -2, -3, 1},
		{-7, -2, 4, 1},
	} {
		a, b := MustInt(im.MakeNumber(tt.a)), MustInt(im.MakeNumber(tt.b))
		if v, err := m.Int(MustInt(im.Divide(a, b))); err != nil {
			t.Fatal(err)
		} else if v.Int64() != tt.div {
			t.Fatalf("%d div %d = %s, expected %d", tt.a, tt.b, v, tt.div)
		}
		if v, err := m.Int(MustInt(im.Modulo(a, b))); err != nil {
			t.Fatal(err)
		} else if v.Int64() != tt.mod {
			t.Fatalf("%d mod %d = %s, expected %d", tt.a, tt.b, v, tt.mod)
		}
	}
}

func TestIntegers_ModularCongruence(t *testing.T) {
	t.Run("Int64", func(t *testing.T) {
		s := MustNewSolver(t)
		defer MustCloseSolver(t, s)
		im := s.Integers()

		// a = -3 (mod 5) with 0 < a < 5
		a := MustInt(im.MakeVariable("a"))
		p := MustNewProver(t, s, smt.ProverOptions{GenerateModels: true})
		MustAdd(t, p, MustBool(im.ModularCongruence(a, MustInt(im.MakeNumber(-3)), 5)))
		MustAdd(t, p, MustBool(im.GreaterThan(a, MustInt(im.MakeNumber(0)))))
		MustAdd(t, p, MustBool(im.LessThan(a, MustInt(im.MakeNumber(5)))))
		if MustIsUnsat(t, p) {
			t.Fatal("expected satisfiable")
		}

		m, err := p.Model()
		if err != nil {
			t.Fatal(err)
		} else if v, err := m.Int(a); err != nil {
			t.Fatal(err)
		} else if v.Int64() != 2 {
			t.Fatalf("a=%s, expected 2", v)
		}
	})

	t.Run("Big", func(t *testing.T) {
		s := MustNewSolver(t)
		defer MustCloseSolver(t, s)
		im := s.Integers()

		// a = -1 (mod 10^30) with 0 < a < 10^30
		n := new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
		a := MustInt(im.MakeVariable("a"))
		p := MustNewProver(t, s, smt.ProverOptions{GenerateModels: true})
		MustAdd(t, p, MustBool(im.ModularCongruenceBig(a, MustInt(im.MakeNumber(-1)), n)))
		MustAdd(t, p, MustBool(im.GreaterThan(a, MustInt(im.MakeNumber(0)))))
		MustAdd(t, p, MustBool(im.LessThan(a, MustInt(im.MakeBigNumber(n)))))
		if MustIsUnsat(t, p) {
			t.Fatal("expected satisfiable")
		}

		want := new(big.Int).Sub(n, big.NewInt(1))
		m, err := p.Model()
		if err != nil {
			t.Fatal(err)
		} else if v, err := m.Int(a); err != nil {
			t.Fatal(err)
		} else if v.Cmp(want) != 0 {
			t.Fatalf("a=%s, expected %s", v, want)
		}
	})

	t.Run("Distinct", func(t *testing.T) {
		s := MustNewSolver(t)
		defer MustCloseSolver(t, s)
		im := s.Integers()

		a := MustInt(im.MakeVariable("a"))
		p := MustNewProver(t, s, smt.ProverOptions{})
		MustAdd(t, p, MustBool(im.ModularCongruence(a, MustInt(im.MakeNumber(1)), 4)))
		MustAdd(t, p, MustBool(im.ModularCongruence(a, MustInt(im.MakeNumber(2)), 4)))
		if !MustIsUnsat(t, p) {
			t.Fatal("expected unsatisfiable")
		}
	})

	t.Run("NonPositive", func(t *testing.T) {
		s := MustNewSolver(t)
		defer MustCloseSolver(t, s)
		im := s.Integers()
		a, b := MustInt(im.MakeVariable("a")), MustInt(im.MakeVariable("b"))

		for _, n := range []int64{0, -5} {
			if ok, err := s.Booleans().IsTrue(MustBool(im.ModularCongruence(a, b, n))); err != nil {
				t.Fatal(err)
			} else if !ok {
				t.Fatalf("expected true for modulus %d", n)
			}
		}
		if ok, err := s.Booleans().IsTrue(MustBool(im.ModularCongruenceBig(a, b, big.NewInt(-1)))); err != nil {
			t.Fatal(err)
		} else if !ok {
			t.Fatal("expected true for negative big modulus")
		}
	})
}

// nameVisitor returns the name of a function application.
type nameVisitor struct{}

func (nameVisitor) VisitFreeVariable(f smt.Formula, name string) string { return "" }
func (nameVisitor) VisitBoundVariable(f smt.Formula, name string, index int) string { return "" }
func (nameVisitor) VisitNumeral(f smt.Formula, value interface{}) string { return "" }
func (nameVisitor) VisitUF(f smt.Formula, args []smt.Formula, decl *smt.FunctionDeclaration) string {
	return ""
}
func (nameVisitor) VisitFunction(f smt.Formula, args []smt.Formula, app smt.Application) string {
	return app.Name
}
func (nameVisitor) VisitForall(f smt.BooleanFormula, vars []smt.Formula, body smt.BooleanFormula) string {
	return ""
}
func (nameVisitor) VisitExists(f smt.BooleanFormula, vars []smt.Formula, body smt.BooleanFormula) string {
	return ""
}

func TestVisit_Division(t *testing.T) {
	s := MustNewSolver(t)
	defer MustCloseSolver(t, s)
	im, rm := s.Integers(), s.Rationals()

	i, j := MustInt(im.MakeVariable("i")), MustInt(im.MakeVariable("j"))
	r, q := MustRat(rm.MakeVariable("r")), MustRat(rm.MakeVariable("q"))

	if name, err := smt.Visit[string](s, MustInt(im.Divide(i, j)), nameVisitor{}); err != nil {
		t.Fatal(err)
	} else if name != "div" {
		t.Fatalf("unexpected integer division: %q", name)
	}
	if name, err := smt.Visit[string](s, MustRat(rm.Divide(r, q)), nameVisitor{}); err != nil {
		t.Fatal(err)
	} else if name != "/" {
		t.Fatalf("unexpected rational division: %q", name)
	}
}

func TestProver_UnsatCore(t *testing.T) {
	s := MustNewSolver(t)
	defer MustCloseSolver(t, s)
	im := s.Integers()

	x := MustInt(im.MakeVariable("x"))
	p := MustNewProver(t, s, smt.ProverOptions{GenerateModels: true, GenerateUnsatCore: true})
	MustAdd(t, p, MustBool(im.GreaterThan(x, MustInt(im.MakeNumber(-10)))))
	gt := MustAdd(t, p, MustBool(im.GreaterThan(x, MustInt(im.MakeNumber(10)))))
	if err := p.Push(); err != nil {
		t.Fatal(err)
	}
	lt := MustAdd(t, p, MustBool(im.LessThan(x, MustInt(im.MakeNumber(5)))))
	if !MustIsUnsat(t, p) {
		t.Fatal("expected unsatisfiable")
	}

	core, err := p.UnsatCore()
	if err != nil {
		t.Fatal(err)
	} else if diff := cmp.Diff(join([]smt.BooleanFormula{gt.Formula(), lt.Formula()}), join(core)); diff != "" {
		t.Fatal(diff)
	}

	// Trackers are not model constants.
	if err := p.Pop(); err != nil {
		t.Fatal(err)
	} else if MustIsUnsat(t, p) {
		t.Fatal("expected satisfiable")
	}
	m, err := p.Model()
	if err != nil {
		t.Fatal(err)
	}
	assignments, err := m.Assignments()
	if err != nil {
		t.Fatal(err)
	} else if len(assignments) != 1 || assignments[0].Name != "x" {
		t.Fatalf("unexpected assignments: %v", assignments)
	}
}

// Failed assumptions are reported with the tracked assertions.
func TestProver_UnsatCoreAssumptions(t *testing.T) {
	s := MustNewSolver(t)
	defer MustCloseSolver(t, s)
	bm := s.Booleans()

	a, b := MustBool(bm.MakeVariable("a")), MustBool(bm.MakeVariable("b"))
	notA := MustBool(bm.Not(a))
	p := MustNewProver(t, s, smt.ProverOptions{GenerateUnsatCore: true})
	MustAdd(t, p, a)
	MustAdd(t, p, b)
	if unsat, err := p.IsUnsatWithAssumptions(context.Background(), notA); err != nil {
		t.Fatal(err)
	} else if !unsat {
		t.Fatal("expected unsatisfiable")
	}

	core, err := p.UnsatCore()
	if err != nil {
		t.Fatal(err)
	} else if diff := cmp.Diff(join([]smt.BooleanFormula{a, notA}), join(core)); diff != "" {
		t.Fatal(diff)
	}
}

// Closing the solver logs its check counters.
func TestSolver_Close(t *testing.T) {
	var buf bytes.Buffer
	config := smt.NewConfig()
	config.Logger = log.New(&buf, "", 0)
	s, err := z3.NewSolver(config)
	if err != nil {
		t.Fatal(err)
	}

	p := MustNewProver(t, s, smt.ProverOptions{})
	MustAdd(t, p, MustBool(s.Booleans().MakeTrue()))
	if MustIsUnsat(t, p) {
		t.Fatal("expected satisfiable")
	}
	MustCloseSolver(t, s)

	if want := "[z3] close: solves=1 time="; !strings.Contains(buf.String(), want) {
		t.Fatalf("missing log line %q in:\n%s", want, buf.String())
	}
}

func TestQuantifier(t *testing.T) {
	s := MustNewSolver(t)
	defer MustCloseSolver(t, s)
	im, bm, qm := s.Integers(), s.Booleans(), s.Quantifiers()

	x, y := MustInt(im.MakeVariable("x")), MustInt(im.MakeVariable("y"))
	f := MustBool(qm.Forall([]smt.Formula{x}, MustBool(im.GreaterOrEquals(MustInt(im.Add(x, y)), x))))

	vars, err := s.FreeVariables(f)
	if err != nil {
		t.Fatal(err)
	} else if len(vars) != 1 || vars[0] != smt.Formula(y) {
		t.Fatalf("unexpected free variables: %v", vars)
	}

	// Rebuilding from the visited shape yields an equivalent formula.
	other, err := smt.Visit[smt.BooleanFormula](s, f, &rebuilder{qm: qm})
	if err != nil {
		t.Fatal(err)
	}
	p := MustNewProver(t, s, smt.ProverOptions{})
	MustAdd(t, p, MustBool(bm.Not(MustBool(bm.Equivalence(f, other)))))
	if !MustIsUnsat(t, p) {
		t.Fatalf("%s is not equivalent to %s", other, f)
	}
	MustCloseProver(t, p)

	// forall x. x + y >= x holds exactly when y >= 0.
	p = MustNewProver(t, s, smt.ProverOptions{})
	MustAdd(t, p, f)
	MustAdd(t, p, MustBool(im.Equal(y, MustInt(im.MakeNumber(-1)))))
	if !MustIsUnsat(t, p) {
		t.Fatal("expected unsatisfiable")
	}
}

func TestArrays(t *testing.T) {
	s := MustNewSolver(t)
	defer MustCloseSolver(t, s)
	am, im := s.Arrays(), s.Integers()

	typ := smt.NewArrayType(smt.Int, smt.Int)
	a := MustArray(am.MakeVariable("a", typ))
	i, v := MustInt(im.MakeNumber(3)), MustInt(im.MakeNumber(42))
	stored := MustArray(am.Store(a, i, v))
	sel, err := am.Select(stored, i)
	if err != nil {
		t.Fatal(err)
	}

	p := MustNewProver(t, s, smt.ProverOptions{})
	MustAdd(t, p, MustBool(im.Distinct(MustInt(smt.As[smt.IntegerFormula](sel)), v)))
	if !MustIsUnsat(t, p) {
		t.Fatal("expected unsatisfiable")
	}
}

func TestUnsupported(t *testing.T) {
	s := MustNewSolver(t)
	defer MustCloseSolver(t, s)

	a := MustBool(s.Booleans().MakeVariable("a"))
	if _, err := s.SeparationLogic().MakeStar(a, a); !errors.Is(err, smt.ErrUnsupported) {
		t.Fatalf("unexpected error: %v", err)
	} else if _, err := s.NewProver(smt.ProverOptions{GenerateInterpolants: true}); !errors.Is(err, smt.ErrUnsupported) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDump(t *testing.T) {
	s := MustNewSolver(t)
	defer MustCloseSolver(t, s)
	im := s.Integers()

	x := MustInt(im.MakeVariable("x"))
	f := MustBool(im.LessThan(x, MustInt(im.MakeNumber(3))))
	if got, err := s.Dump(f); err != nil {
		t.Fatal(err)
	} else if want := "(declare-fun x () Int)\n(assert (< x 3))\n"; got != want {
		t.Fatalf("unexpected dump:\n%s", got)
	}
}

// rebuilder reconstructs quantified boolean formulas from their shape.
type rebuilder struct {
	qm *smt.QuantifiedFormulaManager
}

func (r *rebuilder) VisitFreeVariable(f smt.Formula, name string) smt.BooleanFormula { return as(f) }
func (r *rebuilder) VisitBoundVariable(f smt.Formula, name string, index int) smt.BooleanFormula {
	return as(f)
}
func (r *rebuilder) VisitNumeral(f smt.Formula, value interface{}) smt.BooleanFormula { return as(f) }
func (r *rebuilder) VisitUF(f smt.Formula, args []smt.Formula, decl *smt.FunctionDeclaration) smt.BooleanFormula {
	return as(f)
}
func (r *rebuilder) VisitFunction(f smt.Formula, args []smt.Formula, app smt.Application) smt.BooleanFormula {
	return as(f)
}
func (r *rebuilder) VisitForall(f smt.BooleanFormula, vars []smt.Formula, body smt.BooleanFormula) smt.BooleanFormula {
	return MustBool(r.qm.Forall(vars, body))
}
func (r *rebuilder) VisitExists(f smt.BooleanFormula, vars []smt.Formula, body smt.BooleanFormula) smt.BooleanFormula {
	return MustBool(r.qm.Exists(vars, body))
}

func as(f smt.Formula) smt.BooleanFormula {
	return MustBool(smt.As[smt.BooleanFormula](f))
}

func join(a []smt.BooleanFormula) string {
	lines := make([]string, len(a))
	for i, f := range a {
		lines[i] = f.String()
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// MustNewSolver returns a new z3 solver. Fatal on error.
func MustNewSolver(tb testing.TB) *smt.Solver {
	tb.Helper()
	s, err := z3.NewSolver(smt.NewConfig())
	if err != nil {
		tb.Fatal(err)
	}
	return s
}

// MustCloseSolver closes the solver. Fatal on error.
func MustCloseSolver(tb testing.TB, s *smt.Solver) {
	tb.Helper()
	if err := s.Close(); err != nil {
		tb.Fatal(err)
	}
}

// MustNewProver returns a new prover. Fatal on error.
func MustNewProver(tb testing.TB, s *smt.Solver, opts smt.ProverOptions) *smt.Prover {
	tb.Helper()
	p, err := s.NewProver(opts)
	if err != nil {
		tb.Fatal(err)
	}
	return p
}

// MustCloseProver closes the prover. Fatal on error.
func MustCloseProver(tb testing.TB, p *smt.Prover) {
	tb.Helper()
	if err := p.Close(); err != nil {
		tb.Fatal(err)
	}
}

// MustAdd adds f to the top frame of p. Fatal on error.
func MustAdd(tb testing.TB, p *smt.Prover, f smt.BooleanFormula) smt.Constraint {
	tb.Helper()
	c, err := p.AddConstraint(f)
	if err != nil {
		tb.Fatal(err)
	}
	return c
}

// MustIsUnsat checks p. Fatal on error.
func MustIsUnsat(tb testing.TB, p *smt.Prover) bool {
	tb.Helper()
	unsat, err := p.IsUnsat(context.Background())
	if err != nil {
		tb.Fatal(err)
	}
	return unsat
}

func MustBool(f smt.BooleanFormula, err error) smt.BooleanFormula {
	if err != nil {
		panic(err)
	}
	return f
}

func MustInt(f smt.IntegerFormula, err error) smt.IntegerFormula {
	if err != nil {
		panic(err)
	}
	return f
}

func MustRat(f smt.RationalFormula, err error) smt.RationalFormula {
	if err != nil {
		panic(err)
	}
	return f
}

func MustBV(f smt.BitvectorFormula, err error) smt.BitvectorFormula {
	if err != nil {
		panic(err)
	}
	return f
}

func MustArray(f smt.ArrayFormula, err error) smt.ArrayFormula {
	if err != nil {
		panic(err)
	}
	return f
}
