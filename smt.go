package smt

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error taxonomy. Call sites wrap these with context; test with errors.Is.
var (
	ErrTypeMismatch  = errors.New("smt: type mismatch")
	ErrIllegalState  = errors.New("smt: illegal state")
	ErrUnsupported   = errors.New("smt: unsupported operation")
	ErrSolverFailure = errors.New("smt: solver failure")
	ErrInterrupted   = errors.New("smt: interrupted")
)

// Capabilities describes the theories and features a backend supports.
// Callers are expected to check these flags before relying on a feature.
type Capabilities struct {
	Integers        bool
	Rationals       bool
	Bitvectors      bool
	Arrays          bool
	UF              bool
	Quantifiers     bool
	SeparationLogic bool

	Models        bool
	UnsatCore     bool
	Interpolation bool

	// If false, at most one prover with a non-empty assertion stack may be
	// open at any time.
	MultipleStacks bool
}

// Quantifier is either Forall or Exists.
type Quantifier int

const (
	Forall = Quantifier(iota + 1)
	Exists
)

// String returns the SMT-LIB binder name.
func (q Quantifier) String() string {
	switch q {
	case Forall:
		return "forall"
	case Exists:
		return "exists"
	default:
		return fmt.Sprintf("Quantifier<%d>", q)
	}
}

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
