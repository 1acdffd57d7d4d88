package smt

import (
	"github.com/pkg/errors"
)

// Substitute replaces every key of mapping in f with its value. All
// replacements happen simultaneously: the values are not themselves
// rewritten, so {a: b, b: a} swaps a and b. f is not modified.
func Substitute[F Formula](s *Solver, f F, mapping map[Formula]Formula) (F, error) {
	var zero F
	h, err := s.extract(f.formula())
	if err != nil {
		return zero, err
	} else if len(mapping) == 0 {
		return f, nil
	}

	from := make([]interface{}, 0, len(mapping))
	to := make([]interface{}, 0, len(mapping))
	for k, v := range mapping {
		if k == nil || v == nil {
			return zero, errors.Wrap(ErrIllegalState, "substitute: nil formula in mapping")
		} else if k.Type() != v.Type() {
			return zero, errors.Wrapf(ErrTypeMismatch, "substitute: cannot replace %s of type %s with %s of type %s", k, k.Type(), v, v.Type())
		}

		kh, err := s.extract(k.formula())
		if err != nil {
			return zero, err
		}
		vh, err := s.extract(v.formula())
		if err != nil {
			return zero, err
		}
		from, to = append(from, kh), append(to, vh)
	}

	other, err := s.eng.substitute(h, from, to)
	if err != nil {
		return zero, err
	}
	t, err := s.eng.encapsulate(f.Type(), other)
	if err != nil {
		return zero, err
	}
	return As[F](wrap(t))
}
