package gini

import (
	"fmt"
	"math/big"

	"github.com/benbjohnson/smt"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
	"github.com/pkg/errors"
)

// MaxQuantifiedBits is the maximum number of bits bound by a single
// quantifier. Quantifiers are expanded over every assignment of their bound
// variables.
const MaxQuantifiedBits = 12

// bits is the circuit encoding of a term, least significant bit first.
// Booleans have a single bit.
type bits []z.Lit

// blaster translates terms into a shared and-inverter circuit.
type blaster struct {
	c *logic.C

	cache  map[*Term]bits // closed terms
	inputs map[*Term]bits // free variables

	// Uninterpreted function instances and the congruence axioms relating
	// them. Axioms are valid in every prover.
	instances map[*Decl][]*instance
	results   map[z.Var]*instance
	axioms    []z.Lit
}

// instance is an application of a function to specific argument bits.
type instance struct {
	decl   *Decl
	args   []bits
	result bits
}

func newBlaster() *blaster {
	return &blaster{
		c:         logic.NewC(),
		cache:     make(map[*Term]bits),
		inputs:    make(map[*Term]bits),
		instances: make(map[*Decl][]*instance),
		results:   make(map[z.Var]*instance),
	}
}

// blast returns the circuit bits of a term with no free bound variables.
func (b *blaster) blast(t *Term) (bits, error) {
	if t.open() {
		return nil, errors.Wrapf(smt.ErrIllegalState, "term has free bound variables: %s", t)
	}
	return b.blastIn(t, nil, nil)
}

// blastIn returns the bits of t with bound variables taken from env. Open
// terms are memoized per environment, closed terms globally.
func (b *blaster) blastIn(t *Term, env map[*Term]bits, memo map[*Term]bits) (bits, error) {
	cache := b.cache
	if t.open() {
		cache = memo
	}
	if v, ok := cache[t]; ok {
		return v, nil
	}

	v, err := b.build(t, env, memo)
	if err != nil {
		return nil, err
	}
	cache[t] = v
	return v, nil
}

func (b *blaster) build(t *Term, env map[*Term]bits, memo map[*Term]bits) (bits, error) {
	switch t.kind {
	case kindVar:
		return b.input(t), nil
	case kindBound:
		v, ok := env[t]
		if !ok {
			return nil, errors.Wrapf(smt.ErrIllegalState, "unbound variable: %s", t.name)
		}
		return v, nil
	case kindConst:
		return b.constant(t.value, t.width()), nil
	case kindForall, kindExists:
		return b.quantifier(t, env)
	}

	args := make([]bits, len(t.args))
	for i, arg := range t.args {
		v, err := b.blastIn(arg, env, memo)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	if t.kind == kindCall {
		return b.call(t.decl, args, t.width()), nil
	}
	return b.apply(t.op, args)
}

// input returns the input bits of a free variable.
func (b *blaster) input(t *Term) bits {
	if v, ok := b.inputs[t]; ok {
		return v
	}
	v := make(bits, t.width())
	for i := range v {
		v[i] = b.c.Lit()
	}
	b.inputs[t] = v
	return v
}

// constant returns the bits of the unsigned value v.
func (b *blaster) constant(v *big.Int, width int) bits {
	a := make(bits, width)
	for i := range a {
		a[i] = b.lit(v.Bit(i) == 1)
	}
	return a
}

func (b *blaster) lit(v bool) z.Lit {
	if v {
		return b.c.T
	}
	return b.c.F
}

func (b *blaster) quantifier(t *Term, env map[*Term]bits) (bits, error) {
	var n int
	for _, v := range t.vars {
		n += v.width()
	}
	if n > MaxQuantifiedBits {
		return nil, errors.Wrapf(smt.ErrUnsupported, "gini: quantifier binds %d bits, limit is %d", n, MaxQuantifiedBits)
	}

	lits := make([]z.Lit, 0, 1<<n)
	for assignment := uint64(0); assignment < 1<<n; assignment++ {
		inner := make(map[*Term]bits, len(env)+len(t.vars))
		for k, v := range env {
			inner[k] = v
		}
		offset := 0
		for _, v := range t.vars {
			a := make(bits, v.width())
			for i := range a {
				a[i] = b.lit(assignment&(1<<(offset+i)) != 0)
			}
			inner[v] = a
			offset += len(a)
		}

		body, err := b.blastIn(t.body, inner, make(map[*Term]bits))
		if err != nil {
			return nil, err
		}
		lits = append(lits, body[0])
	}

	if t.kind == kindForall {
		return bits{b.c.Ands(lits...)}, nil
	}
	return bits{b.c.Ors(lits...)}, nil
}

// call returns the result bits of decl applied to args. Every new instance
// is related to the existing instances of decl by congruence axioms.
func (b *blaster) call(decl *Decl, args []bits, width int) bits {
	for _, other := range b.instances[decl] {
		if equalBits(other.args, args) {
			return other.result
		}
	}

	inst := &instance{decl: decl, args: args, result: make(bits, width)}
	for i := range inst.result {
		inst.result[i] = b.c.Lit()
		b.results[inst.result[i].Var()] = inst
	}

	for _, other := range b.instances[decl] {
		same := make([]z.Lit, len(args))
		for i := range args {
			same[i] = b.eq(args[i], other.args[i])
		}
		b.axioms = append(b.axioms, b.c.Implies(b.c.Ands(same...), b.eq(inst.result, other.result)))
	}
	b.instances[decl] = append(b.instances[decl], inst)
	return inst.result
}

func equalBits(a, b []bits) bool {
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

func (b *blaster) apply(op smt.Operator, args []bits) (bits, error) {
	c := b.c
	switch op.Kind {
	case smt.NOT:
		return bits{args[0][0].Not()}, nil
	case smt.AND:
		return bits{c.Ands(heads(args)...)}, nil
	case smt.OR:
		return bits{c.Ors(heads(args)...)}, nil
	case smt.XOR:
		return bits{c.Xor(args[0][0], args[1][0])}, nil
	case smt.IMPLIES:
		return bits{c.Implies(args[0][0], args[1][0])}, nil
	case smt.IFF:
		return bits{c.Xor(args[0][0], args[1][0]).Not()}, nil
	case smt.ITE:
		return b.ite(args[0][0], args[1], args[2]), nil
	case smt.EQ:
		lits := make([]z.Lit, 0, len(args)-1)
		for _, arg := range args[1:] {
			lits = append(lits, b.eq(args[0], arg))
		}
		return bits{c.Ands(lits...)}, nil
	case smt.DISTINCT:
		var lits []z.Lit
		for i := range args {
			for j := i + 1; j < len(args); j++ {
				lits = append(lits, b.eq(args[i], args[j]).Not())
			}
		}
		return bits{c.Ands(lits...)}, nil

	case smt.BVNOT:
		return not(args[0]), nil
	case smt.BVAND:
		return b.zip(args[0], args[1], c.And), nil
	case smt.BVOR:
		return b.zip(args[0], args[1], c.Or), nil
	case smt.BVXOR:
		return b.zip(args[0], args[1], c.Xor), nil
	case smt.BVNEG:
		return b.neg(args[0]), nil
	case smt.BVADD:
		sum, _ := b.add(args[0], args[1], c.F)
		return sum, nil
	case smt.BVSUB:
		return b.sub(args[0], args[1]), nil
	case smt.BVMUL:
		return b.mul(args[0], args[1]), nil
	case smt.BVUDIV:
		q, _ := b.udivrem(args[0], args[1])
		return q, nil
	case smt.BVUREM:
		_, r := b.udivrem(args[0], args[1])
		return r, nil
	case smt.BVSDIV:
		return b.sdiv(args[0], args[1]), nil
	case smt.BVSREM:
		return b.srem(args[0], args[1]), nil
	case smt.BVSMOD:
		return b.smod(args[0], args[1]), nil
	case smt.BVSHL:
		return b.shift(args[0], args[1], b.shl), nil
	case smt.BVLSHR:
		return b.shift(args[0], args[1], func(a bits, n int) bits { return b.shr(a, n, c.F) }), nil
	case smt.BVASHR:
		return b.shift(args[0], args[1], func(a bits, n int) bits { return b.shr(a, n, msb(a)) }), nil
	case smt.BVULT:
		return bits{b.ult(args[0], args[1])}, nil
	case smt.BVULE:
		return bits{b.ult(args[1], args[0]).Not()}, nil
	case smt.BVUGT:
		return bits{b.ult(args[1], args[0])}, nil
	case smt.BVUGE:
		return bits{b.ult(args[0], args[1]).Not()}, nil
	case smt.BVSLT:
		return bits{b.slt(args[0], args[1])}, nil
	case smt.BVSLE:
		return bits{b.slt(args[1], args[0]).Not()}, nil
	case smt.BVSGT:
		return bits{b.slt(args[1], args[0])}, nil
	case smt.BVSGE:
		return bits{b.slt(args[0], args[1]).Not()}, nil
	case smt.CONCAT:
		return append(append(bits{}, args[1]...), args[0]...), nil
	case smt.EXTRACT:
		hi, lo := op.Params[0], op.Params[1]
		return append(bits{}, args[0][lo:hi+1]...), nil
	case smt.ZERO_EXTEND:
		return b.extend(args[0], op.Params[0], c.F), nil
	case smt.SIGN_EXTEND:
		return b.extend(args[0], op.Params[0], msb(args[0])), nil
	}
	return nil, errors.Wrapf(smt.ErrUnsupported, "gini: %s", op)
}

func heads(args []bits) []z.Lit {
	a := make([]z.Lit, len(args))
	for i := range args {
		a[i] = args[i][0]
	}
	return a
}

func not(a bits) bits {
	other := make(bits, len(a))
	for i := range a {
		other[i] = a[i].Not()
	}
	return other
}

func msb(a bits) z.Lit { return a[len(a)-1] }

func (b *blaster) zip(x, y bits, fn func(a, b z.Lit) z.Lit) bits {
	other := make(bits, len(x))
	for i := range x {
		other[i] = fn(x[i], y[i])
	}
	return other
}

func (b *blaster) eq(x, y bits) z.Lit {
	lits := make([]z.Lit, len(x))
	for i := range x {
		lits[i] = b.c.Xor(x[i], y[i]).Not()
	}
	return b.c.Ands(lits...)
}

func (b *blaster) ite(cond z.Lit, x, y bits) bits {
	other := make(bits, len(x))
	for i := range x {
		other[i] = b.c.Choice(cond, x[i], y[i])
	}
	return other
}

// add returns x + y + cin and the carry out of the most significant bit.
func (b *blaster) add(x, y bits, cin z.Lit) (bits, z.Lit) {
	c := b.c
	sum := make(bits, len(x))
	carry := cin
	for i := range x {
		t := c.Xor(x[i], y[i])
		sum[i] = c.Xor(t, carry)
		carry = c.Or(c.And(x[i], y[i]), c.And(carry, t))
	}
	return sum, carry
}

func (b *blaster) sub(x, y bits) bits {
	diff, _ := b.add(x, not(y), b.c.T)
	return diff
}

func (b *blaster) neg(x bits) bits {
	return b.sub(b.constant(new(big.Int), len(x)), x)
}

// ult returns x < y, which holds iff x - y borrows.
func (b *blaster) ult(x, y bits) z.Lit {
	_, carry := b.add(x, not(y), b.c.T)
	return carry.Not()
}

// slt compares with the sign bits flipped.
func (b *blaster) slt(x, y bits) z.Lit {
	fx := append(bits{}, x...)
	fy := append(bits{}, y...)
	fx[len(fx)-1], fy[len(fy)-1] = msb(x).Not(), msb(y).Not()
	return b.ult(fx, fy)
}

// mul is a shift-and-add multiplier truncated to the operand width.
func (b *blaster) mul(x, y bits) bits {
	acc := b.constant(new(big.Int), len(x))
	for i := range y {
		partial := make(bits, len(x))
		for j := range partial {
			if j < i {
				partial[j] = b.c.F
			} else {
				partial[j] = b.c.And(y[i], x[j-i])
			}
		}
		acc, _ = b.add(acc, partial, b.c.F)
	}
	return acc
}

// udivrem is a restoring divider. Division by zero yields all ones for the
// quotient and the dividend for the remainder.
func (b *blaster) udivrem(x, y bits) (bits, bits) {
	w := len(x)
	r := b.constant(new(big.Int), w+1)
	d := b.extend(y, 1, b.c.F)
	q := make(bits, w)
	for i := w - 1; i >= 0; i-- {
		r = append(bits{x[i]}, r[:w]...)
		ge := b.ult(r, d).Not()
		q[i] = ge
		r = b.ite(ge, b.sub(r, d), r)
	}
	return q, r[:w]
}

func (b *blaster) abs(x bits) bits {
	return b.ite(msb(x), b.neg(x), x)
}

func (b *blaster) sdiv(x, y bits) bits {
	q, _ := b.udivrem(b.abs(x), b.abs(y))
	return b.ite(b.c.Xor(msb(x), msb(y)), b.neg(q), q)
}

func (b *blaster) srem(x, y bits) bits {
	_, r := b.udivrem(b.abs(x), b.abs(y))
	return b.ite(msb(x), b.neg(r), r)
}

// smod takes the sign of the divisor.
func (b *blaster) smod(x, y bits) bits {
	c := b.c
	_, u := b.udivrem(b.abs(x), b.abs(y))
	zero := b.eq(u, b.constant(new(big.Int), len(u)))
	nu := b.neg(u)
	sx, sy := msb(x), msb(y)
	sum, _ := b.add(nu, y, c.F)
	other, _ := b.add(u, y, c.F)

	v := b.ite(c.And(sx, sy), nu, u)
	v = b.ite(c.And(sx, sy.Not()), sum, v)
	v = b.ite(c.And(sx.Not(), sy), other, v)
	return b.ite(zero, u, v)
}

func (b *blaster) extend(x bits, n int, fill z.Lit) bits {
	other := append(bits{}, x...)
	for i := 0; i < n; i++ {
		other = append(other, fill)
	}
	return other
}

func (b *blaster) shl(x bits, n int) bits {
	other := make(bits, len(x))
	for i := range other {
		if i < n {
			other[i] = b.c.F
		} else {
			other[i] = x[i-n]
		}
	}
	return other
}

func (b *blaster) shr(x bits, n int, fill z.Lit) bits {
	other := make(bits, len(x))
	for i := range other {
		if i+n < len(x) {
			other[i] = x[i+n]
		} else {
			other[i] = fill
		}
	}
	return other
}

// shift is a barrel shifter: stage k shifts by 2^k if bit k of n is set.
// Shift amounts of at least the width shift every bit out.
func (b *blaster) shift(x, n bits, fn func(bits, int) bits) bits {
	w := len(x)
	var overflow []z.Lit
	for k := range n {
		if k >= 31 || 1<<k >= w {
			overflow = append(overflow, n[k])
			continue
		}
		x = b.ite(n[k], fn(x, 1<<k), x)
	}
	return b.ite(b.c.Ors(overflow...), fn(x, w), x)
}

func (b *blaster) String() string {
	return fmt.Sprintf("blaster<nodes=%d inputs=%d instances=%d>", b.c.Len(), len(b.inputs), len(b.results))
}
