package schema

import (
	"fmt"
	"strings"
)

// Parse parses the compact schema text form into a validated Schema.
//
// Grammar:
//
//	schema := name '(' args? ')' '->' rets
//	args   := arg (',' arg)*
//	arg    := ident annot?
//	annot  := '(' ident ('|' ident)* '!'? ')'
//	rets   := ret (',' ret)*
//	ret    := '_' | '[]' | annot
func Parse(text string) (*Schema, error) {
	head, rets, ok := strings.Cut(text, "->")
	if !ok {
		return nil, fmt.Errorf("parse schema %q: missing '->'", text)
	}

	head = strings.TrimSpace(head)
	open := strings.IndexByte(head, '(')
	if open < 0 || !strings.HasSuffix(head, ")") {
		return nil, fmt.Errorf("parse schema %q: malformed argument list", text)
	}

	s := &Schema{Name: strings.TrimSpace(head[:open])}

	argText := head[open+1 : len(head)-1]
	for _, raw := range splitSlots(argText) {
		slot, err := parseArg(raw)
		if err != nil {
			return nil, fmt.Errorf("parse schema %q: %w", text, err)
		}
		s.Args = append(s.Args, slot)
	}

	for _, raw := range splitSlots(strings.TrimSpace(rets)) {
		slot, err := parseRet(raw)
		if err != nil {
			return nil, fmt.Errorf("parse schema %q: %w", text, err)
		}
		s.Returns = append(s.Returns, slot)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustParse is Parse for statically known schema text; it panics on error.
func MustParse(text string) *Schema {
	s, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return s
}

// splitSlots splits a comma-separated slot list, returning nil for an
// empty list. Slot annotations never nest, so a plain split suffices.
func splitSlots(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseArg(raw string) (Slot, error) {
	name := raw
	annot := ""
	annotated := false
	if open := strings.IndexByte(raw, '('); open >= 0 {
		if !strings.HasSuffix(raw, ")") {
			return Slot{}, fmt.Errorf("argument %q: unterminated annotation", raw)
		}
		name = raw[:open]
		annot = raw[open+1 : len(raw)-1]
		annotated = true
	}
	if name == "" {
		return Slot{}, fmt.Errorf("argument %q: missing name", raw)
	}

	slot := Slot{Name: name}
	if annotated {
		ids, write, err := parseAliasSet(annot)
		if err != nil {
			return Slot{}, fmt.Errorf("argument %q: %w", raw, err)
		}
		slot.AliasSet = ids
		slot.Write = write
	}
	return slot, nil
}

func parseRet(raw string) (Slot, error) {
	switch raw {
	case "_":
		return Slot{}, nil
	case "[]":
		// List returns cannot carry alias annotations in this format;
		// the multi-output splitting ops are handled by an explicit
		// exception table in the aliasing engine instead.
		return Slot{Variadic: true}, nil
	}
	if !strings.HasPrefix(raw, "(") || !strings.HasSuffix(raw, ")") {
		return Slot{}, fmt.Errorf("return %q: expected '_', '[]' or '(...)'", raw)
	}
	ids, write, err := parseAliasSet(raw[1 : len(raw)-1])
	if err != nil {
		return Slot{}, fmt.Errorf("return %q: %w", raw, err)
	}
	return Slot{AliasSet: ids, Write: write}, nil
}

func parseAliasSet(annot string) (ids []string, write bool, err error) {
	if strings.HasSuffix(annot, "!") {
		write = true
		annot = annot[:len(annot)-1]
	}
	if annot == "" {
		return nil, false, fmt.Errorf("empty alias set")
	}
	for _, id := range strings.Split(annot, "|") {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, false, fmt.Errorf("empty alias id in %q", annot)
		}
		ids = append(ids, id)
	}
	return ids, write, nil
}
