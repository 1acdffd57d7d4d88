package smt

import (
	"fmt"
	"sort"
	"strings"
)

// Dump returns f as an SMT-LIB script: one declaration per free symbol
// sorted by name followed by "(assert <term>)". The term syntax is
// defined by the backend.
func (s *Solver) Dump(f BooleanFormula) (string, error) {
	h, err := s.extract(f.term)
	if err != nil {
		return "", err
	}

	vars, err := s.FreeVariables(f)
	if err != nil {
		return "", err
	}
	decls, err := s.functions(f)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(vars)+len(decls)+1)
	for _, v := range vars {
		n, err := s.decompose(v)
		if err != nil {
			return "", err
		}
		lines = append(lines, fmt.Sprintf("(declare-fun %s () %s)", QuoteSymbol(n.name), v.Type()))
	}
	for _, decl := range decls {
		lines = append(lines, decl.String())
	}
	sort.Strings(lines)

	body, err := s.eng.dump(h)
	if err != nil {
		return "", err
	}
	lines = append(lines, "(assert "+body+")")
	return strings.Join(lines, "\n") + "\n", nil
}

// QuoteSymbol returns name as an SMT-LIB symbol, wrapping it in bars if it
// is not a simple symbol.
func QuoteSymbol(name string) string {
	if isSimpleSymbol(name) {
		return name
	}
	return "|" + name + "|"
}

func isSimpleSymbol(name string) bool {
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		return false
	}
	for _, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case strings.ContainsRune("~!@$%^&*_-+=<>.?/", ch):
		default:
			return false
		}
	}
	return true
}
