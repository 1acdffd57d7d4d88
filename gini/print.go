package gini

import (
	"fmt"
	"strings"

	"github.com/benbjohnson/smt"
)

// render returns t in SMT-LIB syntax.
func render(t *Term) string {
	var buf strings.Builder
	write(&buf, t)
	return buf.String()
}

func write(buf *strings.Builder, t *Term) {
	switch t.kind {
	case kindVar, kindBound:
		buf.WriteString(smt.QuoteSymbol(t.name))

	case kindConst:
		if t.typ == smt.Bool {
			if t.value.Sign() != 0 {
				buf.WriteString("true")
			} else {
				buf.WriteString("false")
			}
			return
		}
		w := t.width()
		if w%4 == 0 {
			fmt.Fprintf(buf, "#x%0*x", w/4, t.value)
		} else {
			fmt.Fprintf(buf, "#b%0*b", w, t.value)
		}

	case kindApp:
		buf.WriteString("(")
		buf.WriteString(t.op.String())
		writeArgs(buf, t.args)
		buf.WriteString(")")

	case kindCall:
		if len(t.args) == 0 {
			buf.WriteString(smt.QuoteSymbol(t.decl.name))
			return
		}
		buf.WriteString("(")
		buf.WriteString(smt.QuoteSymbol(t.decl.name))
		writeArgs(buf, t.args)
		buf.WriteString(")")

	case kindForall, kindExists:
		if t.kind == kindForall {
			buf.WriteString("(forall (")
		} else {
			buf.WriteString("(exists (")
		}
		for i, v := range t.vars {
			if i > 0 {
				buf.WriteString(" ")
			}
			fmt.Fprintf(buf, "(%s %s)", smt.QuoteSymbol(v.name), v.typ)
		}
		buf.WriteString(") ")
		write(buf, t.body)
		buf.WriteString(")")

	default:
		fmt.Fprintf(buf, "<unknown %d>", t.kind)
	}
}

func writeArgs(buf *strings.Builder, args []*Term) {
	for _, arg := range args {
		buf.WriteString(" ")
		write(buf, arg)
	}
}
