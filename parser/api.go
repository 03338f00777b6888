// Package parser parses the Rust-like snippets item declarations are written
// in: types, generic parameter lists, bounds and where clauses.
//
// Every function takes base, the position of the first byte of src, so that
// the spans of what it returns point into the file src came from.
package parser

import (
	"go/token"

	"github.com/cottand/dropck/frontend/ty"
)

// ParseType parses a type such as `&'a mut Vec<(T, [u8; 4])>`
func ParseType(src string, base token.Pos, scope Scope, r Resolver) (ty.Type, error) {
	p, err := newParser(src, base, scope, r)
	if err != nil {
		return nil, err
	}
	var t ty.Type
	err = p.run(func() {
		t = p.typ()
		p.expectEOF()
	})
	return t, err
}

// ParseGenericParams parses the parameters of a list such as
// `<'a, T: Clone + 'a, const N: usize>`, ignoring their bounds
func ParseGenericParams(src string, base token.Pos) (ty.Generics, error) {
	p, err := newParser(src, base, Scope{}, nil)
	if err != nil {
		return ty.Generics{}, err
	}
	p.skipBounds = true
	var g ty.Generics
	err = p.run(func() {
		g = p.generics()
		p.expectEOF()
	})
	return g, err
}

// ParseGenericBounds parses the bounds written inline in the parameter list
// src, which must declare generics. Bounds may refer to parameters declared
// after them.
func ParseGenericBounds(src string, base token.Pos, generics ty.Generics, r Resolver) ([]ty.SpannedPredicate, error) {
	p, err := newParser(src, base, Scope{Generics: generics}, r)
	if err != nil {
		return nil, err
	}
	err = p.run(func() {
		p.generics()
		p.expectEOF()
	})
	return p.preds, err
}

// ParseWhereClause parses a where clause, with or without the leading
// `where`
func ParseWhereClause(src string, base token.Pos, scope Scope, r Resolver) ([]ty.SpannedPredicate, error) {
	p, err := newParser(src, base, scope, r)
	if err != nil {
		return nil, err
	}
	err = p.run(p.whereClause)
	return p.preds, err
}

// ParseTraitRef parses a trait path such as `Iterator` or `Fn<(u8,)>` as
// implemented by self
func ParseTraitRef(src string, base token.Pos, self ty.Type, scope Scope, r Resolver) (ty.TraitRef, error) {
	p, err := newParser(src, base, scope, r)
	if err != nil {
		return ty.TraitRef{}, err
	}
	var ref ty.TraitRef
	err = p.run(func() {
		nameTok := p.ident()
		ref, _ = p.traitArgs(nameTok, p.resolveTrait(nameTok), self, false)
		p.expectEOF()
	})
	return ref, err
}
