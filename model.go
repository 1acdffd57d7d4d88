package smt

import (
	"math/big"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Model is a satisfying assignment returned by Prover.Model. It is only
// valid until the prover is modified, checked again or closed.
type Model struct {
	p      *Prover
	native NativeModel[interface{}]
	gen    uint64
	closed bool
}

// Assignment is the value of a free constant in a model.
type Assignment struct {
	Name  string
	Key   Formula
	Value Formula
}

func (m *Model) check() error {
	if m.closed {
		return errors.Wrap(ErrIllegalState, "model closed")
	} else if err := m.p.check(); err != nil {
		return err
	} else if m.gen != m.p.gen {
		return errors.Wrap(ErrIllegalState, "model is stale: assertion stack changed")
	}
	return nil
}

// Evaluate returns the value of f in the model as a numeral formula.
func (m *Model) Evaluate(f Formula) (Formula, error) {
	if err := m.check(); err != nil {
		return nil, err
	} else if f == nil {
		return nil, errors.Wrap(ErrIllegalState, "nil formula")
	}
	h, err := m.p.s.extract(f.formula())
	if err != nil {
		return nil, err
	}
	v, err := m.native.Eval(h)
	if err != nil {
		return nil, err
	}
	t, err := m.p.s.eng.encapsulate(f.Type(), v)
	if err != nil {
		return nil, err
	}
	return wrap(t), nil
}

// value evaluates f and returns its numeral value.
func (m *Model) value(f Formula) (interface{}, error) {
	v, err := m.Evaluate(f)
	if err != nil {
		return nil, err
	}
	n, err := m.p.s.decompose(v)
	if err != nil {
		return nil, err
	} else if n.kind != ShapeNumeral {
		return nil, errors.Wrapf(ErrUnsupported, "%s: value of %s is not a numeral: %s", m.p.s.Name(), f, v)
	}
	return n.value, nil
}

// Bool returns the value of f.
func (m *Model) Bool(f BooleanFormula) (bool, error) {
	v, err := m.value(f)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	assert(ok, "boolean numeral has value %T", v)
	return b, nil
}

// Int returns the value of f.
func (m *Model) Int(f IntegerFormula) (*big.Int, error) {
	v, err := m.value(f)
	if err != nil {
		return nil, err
	}
	i, ok := v.(*big.Int)
	assert(ok, "integer numeral has value %T", v)
	return i, nil
}

// Rational returns the value of f.
func (m *Model) Rational(f RationalFormula) (*big.Rat, error) {
	v, err := m.value(f)
	if err != nil {
		return nil, err
	}
	r, ok := v.(*big.Rat)
	assert(ok, "rational numeral has value %T", v)
	return r, nil
}

// Bitvector returns the unsigned value of f.
func (m *Model) Bitvector(f BitvectorFormula) (*big.Int, error) {
	v, err := m.value(f)
	if err != nil {
		return nil, err
	}
	i, ok := v.(*big.Int)
	assert(ok, "bitvector numeral has value %T", v)
	return i, nil
}

// Assignments returns the values of all free constants assigned by the
// model sorted by name.
func (m *Model) Assignments() ([]Assignment, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	hs, err := m.native.Constants()
	if err != nil {
		return nil, err
	}

	a := make([]Assignment, 0, len(hs))
	for _, h := range hs {
		key, err := m.p.s.formula(h)
		if err != nil {
			return nil, err
		}
		n, err := m.p.s.decompose(key)
		if err != nil {
			return nil, err
		}
		value, err := m.Evaluate(key)
		if err != nil {
			return nil, err
		}
		a = append(a, Assignment{Name: n.name, Key: key, Value: value})
	}
	a = lo.Filter(a, func(x Assignment, _ int) bool { return x.Name != "" })
	sort.Slice(a, func(i, j int) bool { return a[i].Name < a[j].Name })
	return a, nil
}

// Close releases the model. Closing an already closed model is a no-op.
func (m *Model) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return m.native.Close()
}
