package smt_test

import (
	"testing"

	"github.com/benbjohnson/smt"
	"golang.org/x/tools/txtar"
)

// dumpCases builds the formulas whose dumps are recorded in testdata/dump.txtar.
var dumpCases = map[string]func(s *smt.Solver) smt.BooleanFormula{
	"bool": func(s *smt.Solver) smt.BooleanFormula {
		bm := s.Booleans()
		a, b := MustBool(bm.MakeVariable("a")), MustBool(bm.MakeVariable("b"))
		return MustBool(bm.And(a, MustBool(bm.Not(b))))
	},
	"bitvector": func(s *smt.Solver) smt.BooleanFormula {
		bv := s.Bitvectors()
		x := MustBV(bv.MakeVariable(8, "x"))
		return MustBool(bv.LessThan(MustBV(bv.Add(x, MustBV(bv.MakeInt64(8, 1)))), MustBV(bv.MakeInt64(8, 16)), false))
	},
	"extract": func(s *smt.Solver) smt.BooleanFormula {
		bv := s.Bitvectors()
		z := MustBV(bv.MakeVariable(8, "z"))
		return MustBool(bv.Equal(MustBV(bv.Extract(z, 3, 0)), MustBV(bv.MakeInt64(4, 0))))
	},
	"uf": func(s *smt.Solver) smt.BooleanFormula {
		bv, uf := s.Bitvectors(), s.UFs()
		y := MustBV(bv.MakeVariable(4, "y"))
		fy := MustBV(smt.As[smt.BitvectorFormula](MustFormula(uf.DeclareAndCall("f", smt.NewBitvectorType(4), y))))
		return MustBool(bv.Equal(fy, y))
	},
	"quoted": func(s *smt.Solver) smt.BooleanFormula {
		bm := s.Booleans()
		return MustBool(bm.Or(MustBool(bm.MakeVariable("x y")), MustBool(bm.MakeVariable("a"))))
	},
	"forall": func(s *smt.Solver) smt.BooleanFormula {
		bv := s.Bitvectors()
		x := MustBV(bv.MakeVariable(2, "x"))
		body := MustBool(bv.GreaterOrEquals(x, MustBV(bv.MakeInt64(2, 0)), false))
		return MustBool(s.Quantifiers().Forall([]smt.Formula{x}, body))
	},
	"constant": func(s *smt.Solver) smt.BooleanFormula {
		return MustBool(s.Booleans().MakeTrue())
	},
}

func TestSolver_Dump(t *testing.T) {
	archive, err := txtar.ParseFile("testdata/dump.txtar")
	if err != nil {
		t.Fatal(err)
	} else if len(archive.Files) != len(dumpCases) {
		t.Fatalf("unexpected golden file count: %d", len(archive.Files))
	}

	for _, file := range archive.Files {
		file := file
		t.Run(file.Name, func(t *testing.T) {
			fn, ok := dumpCases[file.Name]
			if !ok {
				t.Fatalf("no formula for golden file %q", file.Name)
			}

			s := MustNewSolver(t)
			if got, err := s.Dump(fn(s)); err != nil {
				t.Fatal(err)
			} else if want := string(file.Data); got != want {
				t.Fatalf("unexpected dump:\ngot:\n%s\nwant:\n%s", got, want)
			}
		})
	}
}

func TestQuoteSymbol(t *testing.T) {
	for _, tt := range []struct {
		name string
		want string
	}{
		{"x", "x"},
		{"x.y!0", "x.y!0"},
		{"x y", "|x y|"},
		{"0x", "|0x|"},
		{"", "||"},
	} {
		if got := smt.QuoteSymbol(tt.name); got != tt.want {
			t.Errorf("QuoteSymbol(%q)=%q, want %q", tt.name, got, tt.want)
		}
	}
}
