package gini

import (
	"encoding/binary"
	"math/big"
	"sort"

	"github.com/benbjohnson/smt"
	"github.com/cespare/xxhash/v2"
)

// kind classifies a Term.
type kind uint8

const (
	kindVar = kind(iota + 1)
	kindBound
	kindConst
	kindApp
	kindCall
	kindForall
	kindExists
)

// Term is a hash-consed node of the term DAG. Two structurally equal terms
// created by the same backend are always the same pointer.
type Term struct {
	kind  kind
	typ   smt.Type
	name  string       // variables
	index int          // bound variables
	value *big.Int     // constants; booleans are 0 or 1
	op    smt.Operator // applications
	decl  *Decl        // calls
	args  []*Term
	vars  []*Term // quantifiers
	body  *Term   // quantifiers

	id   uint64
	hash uint64
	free []*Term // bound variables not bound within the term
}

// Type returns the sort of the term.
func (t *Term) Type() smt.Type { return t.typ }

// String returns the SMT-LIB rendering of the term.
func (t *Term) String() string { return render(t) }

// open returns true if t contains a bound variable not bound within t.
func (t *Term) open() bool { return len(t.free) > 0 }

// width returns the number of bits t blasts to.
func (t *Term) width() int {
	if w := smt.BitvectorWidth(t.typ); w > 0 {
		return w
	}
	return 1
}

// Decl is an uninterpreted function symbol.
type Decl struct {
	id   uint64
	name string
	args []smt.Type
	ret  smt.Type
}

// pool hash-conses terms.
type pool struct {
	terms  map[uint64][]*Term
	nextID uint64
}

func newPool() *pool {
	return &pool{terms: make(map[uint64][]*Term)}
}

// intern returns the canonical instance of t.
func (p *pool) intern(t *Term) *Term {
	t.hash = t.computeHash()
	for _, other := range p.terms[t.hash] {
		if other.equal(t) {
			return other
		}
	}

	p.nextID++
	t.id = p.nextID
	t.free = t.computeFree()
	p.terms[t.hash] = append(p.terms[t.hash], t)
	return t
}

// len returns the number of interned terms.
func (p *pool) len() int {
	var n int
	for _, a := range p.terms {
		n += len(a)
	}
	return n
}

func (t *Term) computeHash() uint64 {
	var buf [8]byte
	h := xxhash.New()
	u64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}

	u64(uint64(t.kind))
	h.WriteString(t.typ.String())
	h.WriteString(t.name)
	u64(uint64(t.index))
	if t.value != nil {
		h.Write(t.value.Bytes())
	}
	u64(uint64(t.op.Kind))
	for _, p := range t.op.Params {
		u64(uint64(p))
	}
	if t.op.Sort != nil {
		h.WriteString(t.op.Sort.String())
	}
	if t.decl != nil {
		u64(t.decl.id)
	}
	for _, a := range t.args {
		u64(a.id)
	}
	for _, v := range t.vars {
		u64(v.id)
	}
	if t.body != nil {
		u64(t.body.id)
	}
	return h.Sum64()
}

func (t *Term) equal(other *Term) bool {
	if t.kind != other.kind || t.typ != other.typ || t.name != other.name || t.index != other.index {
		return false
	} else if (t.value == nil) != (other.value == nil) || (t.value != nil && t.value.Cmp(other.value) != 0) {
		return false
	} else if t.op.Kind != other.op.Kind || t.op.Sort != other.op.Sort || !equalInts(t.op.Params, other.op.Params) {
		return false
	} else if t.decl != other.decl || t.body != other.body {
		return false
	}
	return equalTerms(t.args, other.args) && equalTerms(t.vars, other.vars)
}

// computeFree returns the bound variables occurring in t but not bound by it.
func (t *Term) computeFree() []*Term {
	switch t.kind {
	case kindBound:
		return []*Term{t}
	case kindForall, kindExists:
		var a []*Term
		for _, v := range t.body.free {
			if !containsTerm(t.vars, v) {
				a = append(a, v)
			}
		}
		return a
	}

	var a []*Term
	for _, arg := range t.args {
		for _, v := range arg.free {
			if !containsTerm(a, v) {
				a = append(a, v)
			}
		}
	}
	sort.Slice(a, func(i, j int) bool { return a[i].id < a[j].id })
	return a
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalTerms(a, b []*Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsTerm(a []*Term, t *Term) bool {
	for _, other := range a {
		if other == t {
			return true
		}
	}
	return false
}
