package smt_test

import (
	"testing"

	"github.com/benbjohnson/smt"
	"github.com/pkg/errors"
)

func TestSubstitute(t *testing.T) {
	s := MustNewSolver(t)
	bm, bv, qm, uf := s.Booleans(), s.Bitvectors(), s.Quantifiers(), s.UFs()
	x, y, z := MustBV(bv.MakeVariable(8, "x")), MustBV(bv.MakeVariable(8, "y")), MustBV(bv.MakeVariable(8, "z"))
	decl, err := uf.Declare("f", smt.NewBitvectorType(8), smt.NewBitvectorType(8))
	if err != nil {
		t.Fatal(err)
	}
	call := func(arg smt.BitvectorFormula) smt.BitvectorFormula {
		return MustBV(smt.As[smt.BitvectorFormula](MustFormula(uf.Call(decl, arg))))
	}

	// Replacements are not rewritten again, so the mapping swaps x and y.
	t.Run("Swap", func(t *testing.T) {
		f := MustBool(bv.LessThan(MustBV(bv.Add(x, z)), call(y), false))
		want := MustBool(bv.LessThan(MustBV(bv.Add(y, z)), call(x), false))

		if got, err := smt.Substitute(s, f, map[smt.Formula]smt.Formula{x: y, y: x}); err != nil {
			t.Fatal(err)
		} else if got != want {
			t.Fatalf("Substitute()=%s, want %s", got, want)
		}
	})

	t.Run("Subterm", func(t *testing.T) {
		sum := MustBV(bv.Add(x, y))
		f := MustBV(bv.Multiply(sum, sum))
		want := MustBV(bv.Multiply(z, z))

		if got, err := smt.Substitute(s, f, map[smt.Formula]smt.Formula{sum: z}); err != nil {
			t.Fatal(err)
		} else if got != want {
			t.Fatalf("Substitute()=%s, want %s", got, want)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		f := MustBool(bv.Equal(x, y))
		if got, err := smt.Substitute(s, f, nil); err != nil {
			t.Fatal(err)
		} else if got != f {
			t.Fatalf("Substitute()=%s, want %s", got, f)
		}
	})

	// Bound occurrences of a variable are not replaced.
	t.Run("Quantifier", func(t *testing.T) {
		f := MustBool(qm.Forall([]smt.Formula{x}, MustBool(bv.Equal(x, y))))
		want := MustBool(qm.Forall([]smt.Formula{x}, MustBool(bv.Equal(x, z))))

		if got, err := smt.Substitute(s, f, map[smt.Formula]smt.Formula{x: z}); err != nil {
			t.Fatal(err)
		} else if got != f {
			t.Fatalf("Substitute()=%s, want %s", got, f)
		}
		if got, err := smt.Substitute(s, f, map[smt.Formula]smt.Formula{y: z}); err != nil {
			t.Fatal(err)
		} else if got != want {
			t.Fatalf("Substitute()=%s, want %s", got, want)
		}
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		a := MustBool(bm.MakeVariable("a"))
		f := MustBool(bv.Equal(x, y))
		if _, err := smt.Substitute(s, f, map[smt.Formula]smt.Formula{x: a}); !errors.Is(err, smt.ErrTypeMismatch) {
			t.Fatalf("unexpected error: %v", err)
		} else if _, err := smt.Substitute(s, f, map[smt.Formula]smt.Formula{x: MustBV(bv.MakeVariable(16, "w"))}); !errors.Is(err, smt.ErrTypeMismatch) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	// The input formula is left untouched.
	t.Run("Immutable", func(t *testing.T) {
		f := MustBool(bv.Equal(x, y))
		before := f.String()
		if _, err := smt.Substitute(s, f, map[smt.Formula]smt.Formula{x: z}); err != nil {
			t.Fatal(err)
		} else if after := f.String(); after != before {
			t.Fatalf("formula changed: %s != %s", after, before)
		}
	})
}
