package parser

import (
	"fmt"
	"go/token"
	"slices"
	"strconv"
	"text/scanner"

	"github.com/cottand/dropck/frontend/ilerr"
	"github.com/cottand/dropck/frontend/ty"
)

const fnOnceTrait = "FnOnce"
const fnOutput = "Output"

// AdtInfo is what the parser needs to know about a struct or enum
type AdtInfo struct {
	Def      ty.DefID
	Name     string
	Generics ty.Generics
}

// TraitInfo is what the parser needs to know about a trait. Generics
// includes Self at index 0.
type TraitInfo struct {
	Def        ty.DefID
	Name       string
	Generics   ty.Generics
	AssocTypes []string
}

// Resolver resolves the names of items
type Resolver interface {
	ResolveAdt(name string) (AdtInfo, bool)
	ResolveTrait(name string) (TraitInfo, bool)
}

// Scope holds the names a source string may use besides items
type Scope struct {
	Generics ty.Generics
	// Regions binds extra lifetime names, such as the scopes of locals
	Regions map[string]ty.Region
}

// bailout is raised through panic to stop parsing at the first error
type bailout struct {
	err ilerr.IleError
}

type parser struct {
	src      string
	base     token.Pos
	toks     []lexeme
	cur      int
	resolver Resolver
	scope    Scope
	// binders are the names bound by enclosing for<..>, outermost first
	binders []string
	// skipBounds makes generic parameter lists ignore their bounds
	skipBounds bool
	preds      []ty.SpannedPredicate
}

func newParser(src string, base token.Pos, scope Scope, r Resolver) (*parser, error) {
	toks, lexErrs := lex(src)
	p := &parser{src: src, base: base, toks: toks, resolver: r, scope: scope}
	if len(lexErrs) > 0 {
		e := lexErrs[0]
		return nil, p.errorAt(e.off, e.off, e.msg)
	}
	return p, nil
}

func (p *parser) run(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			err = b.err
		}
	}()
	f()
	return nil
}

func (p *parser) errorAt(off, end int, msg string) ilerr.IleError {
	return ilerr.New(ilerr.NewSyntax{
		Positioner: ty.Span{PosStart: p.base + token.Pos(off), PosEnd: p.base + token.Pos(end)},
		Message:    msg,
	})
}

func (p *parser) fail(tok lexeme, format string, args ...any) {
	panic(bailout{p.errorAt(tok.off, tok.end, fmt.Sprintf(format, args...))})
}

func (p *parser) peek(n int) lexeme {
	if p.cur+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.cur+n]
}

func (p *parser) tok() lexeme {
	return p.peek(0)
}

func (p *parser) next() lexeme {
	tok := p.tok()
	if p.cur < len(p.toks)-1 {
		p.cur++
	}
	return tok
}

func (p *parser) at(kind rune) bool {
	return p.tok().kind == kind
}

func (p *parser) atKeyword(kw string) bool {
	return p.at(scanner.Ident) && p.tok().text == kw
}

func (p *parser) accept(kind rune) bool {
	if p.at(kind) {
		p.next()
		return true
	}
	return false
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.atKeyword(kw) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(kind rune) lexeme {
	if !p.at(kind) {
		p.fail(p.tok(), "expected %s, found %v", describe(kind), p.tok())
	}
	return p.next()
}

func (p *parser) expectEOF() {
	if !p.at(scanner.EOF) {
		p.fail(p.tok(), "unexpected %v", p.tok())
	}
}

func (p *parser) ident() lexeme {
	return p.expect(scanner.Ident)
}

// spanFrom is the span from start to the last consumed lexeme
func (p *parser) spanFrom(start lexeme) ty.Span {
	end := start.end
	if p.cur > 0 {
		end = max(end, p.toks[p.cur-1].end)
	}
	return ty.Span{PosStart: p.base + token.Pos(start.off), PosEnd: p.base + token.Pos(end)}
}

func (p *parser) addPredicate(start lexeme, pred ty.Predicate) {
	p.preds = append(p.preds, ty.SpannedPredicate{Predicate: pred, Span: p.spanFrom(start)})
}

func (p *parser) bound() []string {
	return slices.Clone(p.binders)
}

// withBinder parses a for<'x, ..> prefix, if any, and runs f with its
// lifetimes in scope
func (p *parser) withBinder(f func()) {
	if !p.acceptKeyword("for") {
		f()
		return
	}
	outer := len(p.binders)
	p.expect('<')
	for !p.at('>') {
		lt := p.expect(tokLifetime)
		_, inGenerics := p.scope.Generics.ByName(lt.text)
		if inGenerics || slices.Contains(p.binders, lt.text) {
			p.fail(lt, "lifetime name `%s` shadows a lifetime name that is already in scope", lt.text)
		}
		p.binders = append(p.binders, lt.text)
		if !p.accept(',') {
			break
		}
	}
	p.expect('>')
	defer func() { p.binders = p.binders[:outer] }()
	f()
}

func (p *parser) lifetime() ty.Region {
	tok := p.expect(tokLifetime)
	name := tok.text
	switch name {
	case "'static":
		return ty.Static{}
	case "'_":
		return ty.Erased{}
	}
	if i := slices.Index(p.binders, name); i >= 0 {
		return ty.LateBound{Index: uint32(i), Name: name}
	}
	if param, ok := p.scope.Generics.ByName(name); ok && param.Kind == ty.LifetimeParam {
		return ty.EarlyBound{Index: param.Index, Name: name}
	}
	if r, ok := p.scope.Regions[name]; ok {
		return r
	}
	p.fail(tok, "use of undeclared lifetime name `%s`", name)
	return nil
}

// generics parses `<'a, T: Bound, const N: usize>`, recording the
// bounds of each parameter unless skipBounds is set
func (p *parser) generics() ty.Generics {
	var g ty.Generics
	if p.at(scanner.EOF) {
		return g
	}
	p.expect('<')
	for !p.at('>') {
		start := p.tok()
		param := ty.GenericParamDef{Index: uint32(len(g.Params))}
		switch {
		case p.at(tokLifetime):
			param.Name, param.Kind = p.next().text, ty.LifetimeParam
		case p.acceptKeyword("const"):
			param.Name, param.Kind = p.ident().text, ty.ConstParamKind
		case p.at(scanner.Ident):
			param.Name, param.Kind = p.next().text, ty.TypeParam
		default:
			p.fail(start, "expected generic parameter, found %v", start)
		}
		if _, dup := g.ByName(param.Name); dup {
			p.fail(start, "the name `%s` is already used for a generic parameter", param.Name)
		}
		param.Span = p.spanFrom(start)
		g.Params = append(g.Params, param)

		switch {
		case param.Kind == ty.ConstParamKind:
			p.expect(':')
			tyTok := p.ident()
			if tyTok.text != "usize" {
				p.fail(tyTok, "const parameters must have type usize, found `%s`", tyTok.text)
			}
		case p.accept(':'):
			if p.skipBounds {
				p.skipBoundList()
			} else {
				p.bounds(start, param.ToArg())
			}
		}
		if !p.accept(',') {
			break
		}
	}
	p.expect('>')
	return g
}

func (p *parser) skipBoundList() {
	depth := 0
	for {
		tok := p.tok()
		switch tok.kind {
		case scanner.EOF:
			p.fail(tok, "unterminated generic parameter list")
		case ',', '>':
			if depth == 0 {
				return
			}
			if tok.kind == '>' {
				depth--
			}
		case '<', '(', '[':
			depth++
		case ')', ']':
			depth--
		}
		p.next()
	}
}

// bounds parses `Bound + Bound + ..` for subject, which is a type or a
// region
func (p *parser) bounds(start lexeme, subject ty.GenericArg) {
	for {
		p.boundOf(start, subject)
		if !p.accept('+') {
			return
		}
	}
}

func (p *parser) boundOf(start lexeme, subject ty.GenericArg) {
	if p.at(tokLifetime) {
		r := p.lifetime()
		switch subject := subject.(type) {
		case ty.Region:
			p.addPredicate(start, ty.RegionOutlivesPredicate{Binder: ty.Bind(ty.RegionOutlives{Longer: subject, Shorter: r}, p.bound()...)})
		case ty.Type:
			p.addPredicate(start, ty.TypeOutlivesPredicate{Binder: ty.Bind(ty.TypeOutlives{Ty: subject, Region: r}, p.bound()...)})
		}
		return
	}
	self, ok := subject.(ty.Type)
	if !ok {
		p.fail(p.tok(), "lifetime bounds must be lifetimes, found %v", p.tok())
	}
	p.withBinder(func() {
		p.traitBound(start, self)
	})
}

func (p *parser) resolveTrait(tok lexeme) TraitInfo {
	trait, ok := p.resolver.ResolveTrait(tok.text)
	if !ok {
		p.fail(tok, "cannot find trait `%s` in this scope", tok.text)
	}
	return trait
}

// traitBound parses `Trait<Args, Assoc = T>` or `Fn(A, B) -> R` bounding
// self, and records the predicates it stands for
func (p *parser) traitBound(start lexeme, self ty.Type) {
	nameTok := p.ident()
	trait := p.resolveTrait(nameTok)
	if p.at('(') {
		p.fnSugar(start, nameTok, trait, self)
		return
	}
	ref, bindings := p.traitArgs(nameTok, trait, self, true)
	p.addPredicate(start, ty.TraitPredicate{Binder: ty.Bind(ref, p.bound()...)})
	for _, b := range bindings {
		eq := ty.ProjectionEq{ProjectionTy: ty.ProjectionTy{Trait: ref, Item: b.name}, Ty: b.ty}
		p.addPredicate(start, ty.ProjectionPredicate{Binder: ty.Bind(eq, p.bound()...)})
	}
}

// fnSugar parses `Fn(A, B) -> R`, which stands for the bound `Fn<(A, B)>`
// together with `<Self as FnOnce<(A, B)>>::Output == R`
func (p *parser) fnSugar(start, nameTok lexeme, trait TraitInfo, self ty.Type) {
	if trait.Generics.Len() != 2 {
		p.fail(nameTok, "parenthesized arguments are only allowed for the Fn traits, not `%s`", trait.Name)
	}
	p.expect('(')
	var inputs []ty.Type
	for !p.at(')') {
		inputs = append(inputs, p.typ())
		if !p.accept(',') {
			break
		}
	}
	p.expect(')')
	output := ty.Type(ty.Unit)
	if p.accept(tokArrow) {
		output = p.typ()
	}
	args := ty.Tuple{Elems: inputs}
	ref := ty.TraitRef{Def: trait.Def, Name: trait.Name, Substs: ty.Substs{self, args}}
	p.addPredicate(start, ty.TraitPredicate{Binder: ty.Bind(ref, p.bound()...)})

	fnOnce, ok := p.resolver.ResolveTrait(fnOnceTrait)
	if !ok {
		p.fail(nameTok, "cannot find trait `%s` to desugar `%s(..)`", fnOnceTrait, trait.Name)
	}
	onceRef := ty.TraitRef{Def: fnOnce.Def, Name: fnOnce.Name, Substs: ty.Substs{self, args}}
	eq := ty.ProjectionEq{ProjectionTy: ty.ProjectionTy{Trait: onceRef, Item: fnOutput}, Ty: output}
	p.addPredicate(start, ty.ProjectionPredicate{Binder: ty.Bind(eq, p.bound()...)})
}

type binding struct {
	name string
	ty   ty.Type
}

// traitArgs parses the optional `<..>` after the name of trait
func (p *parser) traitArgs(nameTok lexeme, trait TraitInfo, self ty.Type, allowBindings bool) (ty.TraitRef, []binding) {
	substs := ty.Substs{self}
	var bindings []binding
	if p.accept('<') {
		for !p.at('>') {
			if p.at(scanner.Ident) && p.peek(1).kind == '=' {
				nameTok := p.next()
				p.next()
				if !allowBindings {
					p.fail(nameTok, "associated type bindings are not allowed here")
				}
				if !slices.Contains(trait.AssocTypes, nameTok.text) {
					p.fail(nameTok, "associated type `%s` not found for `%s`", nameTok.text, trait.Name)
				}
				bindings = append(bindings, binding{name: nameTok.text, ty: p.typ()})
			} else {
				substs = append(substs, p.genericArg())
			}
			if !p.accept(',') {
				break
			}
		}
		p.expect('>')
	}
	p.checkArgs(nameTok, trait.Name, trait.Generics, substs)
	return ty.TraitRef{Def: trait.Def, Name: trait.Name, Substs: substs}, bindings
}

func (p *parser) checkArgs(at lexeme, name string, generics ty.Generics, substs ty.Substs) {
	if len(substs) != generics.Len() {
		p.fail(at, "`%s` takes %d generic arguments but %d were supplied", name, generics.Len(), len(substs))
	}
	for i, param := range generics.Params {
		var ok bool
		switch param.Kind {
		case ty.LifetimeParam:
			_, ok = substs[i].(ty.Region)
		case ty.ConstParamKind:
			_, ok = substs[i].(ty.Const)
		default:
			_, ok = substs[i].(ty.Type)
		}
		if !ok {
			p.fail(at, "expected %v argument for `%s` of `%s`, found `%v`", param.Kind, param.Name, name, substs[i])
		}
	}
}

func (p *parser) genericArg() ty.GenericArg {
	switch {
	case p.at(tokLifetime):
		return p.lifetime()
	case p.at(scanner.Int):
		return p.constValue()
	case p.at(scanner.Ident):
		if param, ok := p.scope.Generics.ByName(p.tok().text); ok && param.Kind == ty.ConstParamKind {
			p.next()
			return ty.ConstParam{Index: param.Index, Name: param.Name}
		}
	}
	return p.typ()
}

func (p *parser) constValue() ty.Const {
	tok := p.tok()
	switch {
	case p.at(scanner.Int):
		p.next()
		v, err := strconv.ParseUint(tok.text, 0, 64)
		if err != nil {
			p.fail(tok, "invalid constant `%s`", tok.text)
		}
		return ty.ConstValue{Value: v}
	case p.at(scanner.Ident):
		if param, ok := p.scope.Generics.ByName(tok.text); ok && param.Kind == ty.ConstParamKind {
			p.next()
			return ty.ConstParam{Index: param.Index, Name: param.Name}
		}
	}
	p.fail(tok, "expected constant, found %v", tok)
	return nil
}

func (p *parser) typ() ty.Type {
	tok := p.tok()
	switch tok.kind {
	case '!':
		p.next()
		return ty.Never{}
	case '(':
		p.next()
		if p.accept(')') {
			return ty.Unit
		}
		first := p.typ()
		if p.accept(')') {
			return first
		}
		elems := []ty.Type{first}
		for p.accept(',') {
			if p.at(')') {
				break
			}
			elems = append(elems, p.typ())
		}
		p.expect(')')
		return ty.Tuple{Elems: elems}
	case '&':
		p.next()
		region := ty.Region(ty.Erased{})
		if p.at(tokLifetime) {
			region = p.lifetime()
		}
		mutable := p.acceptKeyword("mut")
		return ty.Ref{Region: region, Elem: p.typ(), Mutable: mutable}
	case '*':
		p.next()
		var mutable bool
		switch {
		case p.acceptKeyword("const"):
		case p.acceptKeyword("mut"):
			mutable = true
		default:
			p.fail(p.tok(), "expected `mut` or `const` in raw pointer type")
		}
		return ty.RawPtr{Elem: p.typ(), Mutable: mutable}
	case '[':
		p.next()
		elem := p.typ()
		if p.accept(';') {
			length := p.constValue()
			p.expect(']')
			return ty.Array{Elem: elem, Len: length}
		}
		p.expect(']')
		return ty.Slice{Elem: elem}
	case '<':
		return p.qualifiedPath()
	case scanner.Ident:
		return p.pathType()
	}
	p.fail(tok, "expected type, found %v", tok)
	return nil
}

// qualifiedPath parses `<T as Trait<..>>::Item`
func (p *parser) qualifiedPath() ty.Type {
	p.expect('<')
	self := p.typ()
	if !p.acceptKeyword("as") {
		p.fail(p.tok(), "expected `as`, found %v", p.tok())
	}
	nameTok := p.ident()
	trait := p.resolveTrait(nameTok)
	ref, _ := p.traitArgs(nameTok, trait, self, false)
	p.expect('>')
	p.expect(tokPathSep)
	item := p.ident()
	if !slices.Contains(trait.AssocTypes, item.text) {
		p.fail(item, "associated type `%s` not found for `%s`", item.text, trait.Name)
	}
	return ty.Projection{ProjectionTy: ty.ProjectionTy{Trait: ref, Item: item.text}}
}

func (p *parser) pathType() ty.Type {
	tok := p.next()
	switch tok.text {
	case "fn":
		p.expect('(')
		var inputs []ty.Type
		for !p.at(')') {
			inputs = append(inputs, p.typ())
			if !p.accept(',') {
				break
			}
		}
		p.expect(')')
		output := ty.Type(ty.Unit)
		if p.accept(tokArrow) {
			output = p.typ()
		}
		return ty.FnPtr{Inputs: inputs, Output: output}
	case "_":
		p.fail(tok, "the placeholder `_` is not allowed within types")
	}

	if param, ok := p.scope.Generics.ByName(tok.text); ok {
		if param.Kind != ty.TypeParam {
			p.fail(tok, "expected type, found %v parameter `%s`", param.Kind, param.Name)
		}
		return ty.Param{Index: param.Index, Name: param.Name}
	}
	if kind, ok := ty.PrimKindByName(tok.text); ok {
		return ty.Prim{Kind: kind}
	}
	adt, ok := p.resolver.ResolveAdt(tok.text)
	if !ok {
		p.fail(tok, "cannot find type `%s` in this scope", tok.text)
	}
	var substs ty.Substs
	if p.accept('<') {
		for !p.at('>') {
			substs = append(substs, p.genericArg())
			if !p.accept(',') {
				break
			}
		}
		p.expect('>')
	}
	substs = elideLifetimes(adt.Generics, substs)
	p.checkArgs(tok, adt.Name, adt.Generics, substs)
	return ty.Adt{Def: adt.Def, Name: adt.Name, Substs: substs}
}

// elideLifetimes fills in erased lifetimes when none of the lifetime
// arguments of generics were written
func elideLifetimes(generics ty.Generics, substs ty.Substs) ty.Substs {
	lifetimes := 0
	for _, param := range generics.Params {
		if param.Kind == ty.LifetimeParam {
			lifetimes++
		}
	}
	if lifetimes == 0 || len(substs) != generics.Len()-lifetimes {
		return substs
	}
	for _, arg := range substs {
		if _, isRegion := arg.(ty.Region); isRegion {
			return substs
		}
	}
	full := make(ty.Substs, 0, generics.Len())
	rest := substs
	for _, param := range generics.Params {
		if param.Kind == ty.LifetimeParam {
			full = append(full, ty.Erased{})
			continue
		}
		full = append(full, rest[0])
		rest = rest[1:]
	}
	return full
}

// whereClause parses `where 'a: 'b, T: Bound, <T as Trait>::Item == U, ..`
func (p *parser) whereClause() {
	p.acceptKeyword("where")
	for !p.at(scanner.EOF) {
		start := p.tok()
		if p.at(tokLifetime) {
			r := p.lifetime()
			p.expect(':')
			p.bounds(start, r)
		} else {
			p.withBinder(func() {
				t := p.typ()
				if proj, ok := t.(ty.Projection); ok && p.accept(tokEqEq) {
					eq := ty.ProjectionEq{ProjectionTy: proj.ProjectionTy, Ty: p.typ()}
					p.addPredicate(start, ty.ProjectionPredicate{Binder: ty.Bind(eq, p.bound()...)})
					return
				}
				p.expect(':')
				p.bounds(start, t)
			})
		}
		if !p.accept(',') {
			break
		}
	}
	p.expectEOF()
}
