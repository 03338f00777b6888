package crate

import (
	_ "embed"
	"fmt"
	"go/token"
	"io/fs"
	"path"
	"slices"
	"strings"
	"testing/fstest"

	"github.com/cottand/dropck/frontend/ilerr"
	"github.com/cottand/dropck/frontend/ty"
	"github.com/cottand/dropck/internal/log"
	"github.com/cottand/dropck/parser"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var logger = log.DefaultLogger.With("section", "crate")

//go:embed prelude.yaml
var prelude []byte

const preludeName = "prelude.yaml"

type Settings struct {
	// Dir is the folder the crate files are read from. The default is `.`
	Dir string
	// Files restricts the crate to these files of Dir. When empty, every
	// .yaml file of Dir is read.
	Files []string
	// Workers bounds how many checks run at once. Zero means no bound.
	Workers int
}

type readFileDirFS interface {
	fs.ReadFileFS
	fs.ReadDirFS
}

// Load reads the files of a crate and builds its definition table. Syntax
// and name resolution errors do not fail Load: they are kept in the crate
// and reported by Check.
func Load(fsys readFileDirFS, settings Settings) (*Crate, error) {
	dir := settings.Dir
	if dir == "" {
		dir = "."
	}
	names := settings.Files
	if len(names) == 0 {
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return nil, errors.Wrapf(err, "read crate dir %s", dir)
		}
		for _, e := range entries {
			if !e.IsDir() && (strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml")) {
				names = append(names, e.Name())
			}
		}
	}
	if len(names) == 0 {
		return nil, errors.Errorf("no crate files found in %s", dir)
	}
	slices.Sort(names)

	l := newLoader()
	if err := l.addFile(preludeName, prelude); err != nil {
		return nil, errors.Wrap(err, "load prelude")
	}
	for _, name := range names {
		data, err := fsys.ReadFile(path.Join(dir, name))
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", name)
		}
		if err := l.addFile(name, data); err != nil {
			return nil, errors.Wrapf(err, "load %s", name)
		}
	}
	return l.build(settings)
}

// LoadBytes loads a crate made of a single file, meant for testing
func LoadBytes(data []byte) (*Crate, error) {
	filesystem := fstest.MapFS{
		"test.yaml": &fstest.MapFile{
			Data: data,
		},
	}
	return Load(filesystem, Settings{})
}

type sourceFile struct {
	file *token.File
	doc  document
}

type loader struct {
	fset    *token.FileSet
	files   []sourceFile
	builder *ty.Builder
	errs    *ilerr.Errors

	adts   map[string]parser.AdtInfo
	traits map[string]parser.TraitInfo

	// generics holds the parameters of every item once they are parsed
	generics map[ty.DefID]ty.Generics
	// ids are the DefIDs of the declarations of each file, in document order
	ids []declIDs

	fnNames  map[string]ty.Span
	nextBody ty.BodyID
}

type declIDs struct {
	traits, impls, types, drops, fns []ty.DefID
}

func newLoader() *loader {
	return &loader{
		fset:     token.NewFileSet(),
		builder:  ty.NewBuilder(),
		adts:     make(map[string]parser.AdtInfo),
		traits:   make(map[string]parser.TraitInfo),
		generics: make(map[ty.DefID]ty.Generics),
		fnNames:  make(map[string]ty.Span),
	}
}

func (l *loader) addFile(name string, data []byte) error {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "decode yaml")
	}
	file := l.fset.AddFile(name, -1, len(data))
	file.SetLinesForContent(data)
	l.files = append(l.files, sourceFile{file: file, doc: doc})
	logger.Debug("added crate file", "name", name, "types", len(doc.Types), "drops", len(doc.Drops), "fns", len(doc.Fns))
	return nil
}

func (l *loader) report(err error) {
	if err == nil {
		return
	}
	var ileErr ilerr.IleError
	if errors.As(err, &ileErr) {
		l.errs = l.errs.With(ileErr)
		return
	}
	l.errs = l.errs.With(ilerr.New(ilerr.Unclassified{From: err}))
}

func (l *loader) syntaxError(at ty.Positioner, format string, args ...any) {
	l.errs = l.errs.With(ilerr.New(ilerr.NewSyntax{Positioner: at, Message: fmt.Sprintf(format, args...)}))
}

func spanOf(file *token.File, s snippet) ty.Span {
	base := s.base(file)
	if !base.IsValid() {
		return ty.Span{}
	}
	return ty.Span{PosStart: base, PosEnd: base + token.Pos(len(s.Text))}
}

func (l *loader) ResolveAdt(name string) (parser.AdtInfo, bool) {
	adt, ok := l.adts[name]
	return adt, ok
}

func (l *loader) ResolveTrait(name string) (parser.TraitInfo, bool) {
	trait, ok := l.traits[name]
	return trait, ok
}

// build resolves every file in three passes: names are reserved first, so
// items may refer to each other in any order, then generic parameters are
// parsed, and last every type and bound.
func (l *loader) build(settings Settings) (*Crate, error) {
	for _, f := range l.files {
		l.ids = append(l.ids, l.declare(f))
	}
	for i, f := range l.files {
		l.declareGenerics(f, l.ids[i])
	}
	var fns []fnBody
	for i, f := range l.files {
		fns = append(fns, l.define(f, l.ids[i])...)
	}

	c := &Crate{
		fset:     l.fset,
		settings: settings,
		loadErrs: l.errs,
		fns:      fns,
	}
	if l.errs.HasError() {
		logger.Warn("crate has load errors", "errors", l.errs)
		return c, nil
	}
	tbl, err := l.builder.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build definition table")
	}
	c.tbl = tbl
	return c, nil
}

func (l *loader) reserve(file *token.File, name snippet) ty.DefID {
	id, err := l.builder.Reserve(name.Text)
	if err != nil {
		l.syntaxError(spanOf(file, name), "%v", err)
		// keep going under a fresh id, so the rest of the item is still checked
		id, _ = l.builder.Reserve("")
	}
	return id
}

func (l *loader) declare(f sourceFile) declIDs {
	var ids declIDs
	for _, t := range f.doc.Traits {
		ids.traits = append(ids.traits, l.reserve(f.file, t.Name))
	}
	for _, d := range f.doc.Types {
		name := d.Struct
		if name.IsZero() {
			name = d.Enum
		}
		ids.types = append(ids.types, l.reserve(f.file, name))
	}
	for range f.doc.Impls {
		ids.impls = append(ids.impls, l.reserve(f.file, snippet{}))
	}
	for range f.doc.Drops {
		ids.drops = append(ids.drops, l.reserve(f.file, snippet{}))
	}
	for _, fn := range f.doc.Fns {
		ids.fns = append(ids.fns, l.reserve(f.file, snippet{}))
		span := spanOf(f.file, fn.Name)
		if _, dup := l.fnNames[fn.Name.Text]; dup {
			l.syntaxError(span, "the function `%s` is defined multiple times", fn.Name.Text)
		}
		l.fnNames[fn.Name.Text] = span
	}
	return ids
}

func (l *loader) parseGenerics(file *token.File, s snippet) ty.Generics {
	if s.IsZero() {
		return ty.Generics{}
	}
	g, err := parser.ParseGenericParams(s.Text, s.base(file))
	l.report(err)
	return g
}

// withSelf shifts the parameters of a trait to make room for Self
func withSelf(g ty.Generics) ty.Generics {
	params := []ty.GenericParamDef{{Name: "Self", Index: 0, Kind: ty.TypeParam}}
	for _, p := range g.Params {
		p.Index++
		params = append(params, p)
	}
	return ty.Generics{Params: params}
}

func (l *loader) declareGenerics(f sourceFile, ids declIDs) {
	for i, t := range f.doc.Traits {
		g := withSelf(l.parseGenerics(f.file, t.Generics))
		var assoc []string
		for _, a := range t.Assoc {
			assoc = append(assoc, a.Text)
		}
		l.generics[ids.traits[i]] = g
		l.traits[t.Name.Text] = parser.TraitInfo{Def: ids.traits[i], Name: t.Name.Text, Generics: g, AssocTypes: assoc}
	}
	for i, d := range f.doc.Types {
		g := l.parseGenerics(f.file, d.Generics)
		name := d.Struct.Text + d.Enum.Text
		l.generics[ids.types[i]] = g
		l.adts[name] = parser.AdtInfo{Def: ids.types[i], Name: name, Generics: g}
	}
	for i, d := range f.doc.Impls {
		l.generics[ids.impls[i]] = l.parseGenerics(f.file, d.Generics)
	}
	for i, d := range f.doc.Drops {
		l.generics[ids.drops[i]] = l.parseGenerics(f.file, d.Generics)
	}
	for i, d := range f.doc.Fns {
		l.generics[ids.fns[i]] = l.parseGenerics(f.file, d.Generics)
	}
}

// predicates parses the inline bounds of generics along with the where
// clause
func (l *loader) predicates(file *token.File, generics, where snippet, scope parser.Scope) []ty.SpannedPredicate {
	var preds []ty.SpannedPredicate
	if !generics.IsZero() {
		inline, err := parser.ParseGenericBounds(generics.Text, generics.base(file), scope.Generics, l)
		l.report(err)
		preds = append(preds, inline...)
	}
	if !where.IsZero() {
		clause, err := parser.ParseWhereClause(where.Text, where.base(file), scope, l)
		l.report(err)
		preds = append(preds, clause...)
	}
	return preds
}

func (l *loader) parseType(file *token.File, s snippet, scope parser.Scope) ty.Type {
	t, err := parser.ParseType(s.Text, s.base(file), scope, l)
	l.report(err)
	if err != nil {
		return ty.Never{}
	}
	return t
}

func (l *loader) defineItem(it ty.Item) {
	if err := l.builder.Define(it); err != nil {
		l.report(err)
	}
}

func (l *loader) define(f sourceFile, ids declIDs) []fnBody {
	for i, t := range f.doc.Traits {
		trait := l.traits[t.Name.Text]
		l.defineItem(&ty.TraitDef{
			ID:         ids.traits[i],
			Name:       trait.Name,
			Generics:   trait.Generics,
			AssocTypes: trait.AssocTypes,
			Span:       spanOf(f.file, t.Name),
		})
	}
	for i, d := range f.doc.Types {
		l.defineItem(l.typeDef(f.file, ids.types[i], d))
	}
	for i, d := range f.doc.Impls {
		l.defineItem(l.traitImpl(f.file, ids.impls[i], d))
	}
	for i, d := range f.doc.Drops {
		scope := parser.Scope{Generics: l.generics[ids.drops[i]]}
		if d.For.IsZero() {
			l.syntaxError(spanOf(f.file, d.Generics), "drop impl is missing `for`")
		}
		l.defineItem(&ty.DropImpl{
			ID:         ids.drops[i],
			Generics:   scope.Generics,
			SelfTy:     l.parseType(f.file, d.For, scope),
			Predicates: l.predicates(f.file, d.Generics, d.Where, scope),
			Span:       spanOf(f.file, d.For),
		})
	}
	var fns []fnBody
	for i, d := range f.doc.Fns {
		fn, body := l.fnDef(f.file, ids.fns[i], d)
		l.defineItem(fn)
		fns = append(fns, body)
	}
	return fns
}

func (l *loader) typeDef(file *token.File, id ty.DefID, d typeDecl) *ty.TypeDef {
	def := &ty.TypeDef{ID: id, Generics: l.generics[id]}
	switch {
	case !d.Struct.IsZero() && !d.Enum.IsZero():
		l.syntaxError(spanOf(file, d.Struct), "`%s` cannot be both a struct and an enum", d.Struct.Text)
	case !d.Struct.IsZero():
		def.Name, def.Kind, def.Span = d.Struct.Text, ty.StructKind, spanOf(file, d.Struct)
		if len(d.Variants) > 0 {
			l.syntaxError(def.Span, "struct `%s` cannot have variants", def.Name)
		}
	default:
		def.Name, def.Kind, def.Span = d.Enum.Text, ty.EnumKind, spanOf(file, d.Enum)
		if len(d.Fields) > 0 {
			l.syntaxError(def.Span, "enum `%s` has variants, not fields", def.Name)
		}
	}
	scope := parser.Scope{Generics: def.Generics}
	def.Predicates = l.predicates(file, d.Generics, d.Where, scope)

	fields := func(list fieldList) []ty.FieldDef {
		var defs []ty.FieldDef
		for _, f := range list {
			defs = append(defs, ty.FieldDef{Name: f.name.Text, Ty: l.parseType(file, f.ty, scope)})
		}
		return defs
	}
	if def.Kind == ty.StructKind {
		def.Variants = []ty.VariantDef{{Name: def.Name, Fields: fields(d.Fields)}}
	} else {
		for _, v := range d.Variants {
			def.Variants = append(def.Variants, ty.VariantDef{Name: v.name.Text, Fields: fields(v.fields)})
		}
	}
	return def
}

func (l *loader) traitImpl(file *token.File, id ty.DefID, d implDecl) *ty.TraitImpl {
	scope := parser.Scope{Generics: l.generics[id]}
	span := spanOf(file, d.For)
	self := l.parseType(file, d.For, scope)
	ref, err := parser.ParseTraitRef(d.Trait.Text, d.Trait.base(file), self, scope, l)
	l.report(err)

	impl := &ty.TraitImpl{
		ID:         id,
		Generics:   scope.Generics,
		TraitRef:   ref,
		Predicates: l.predicates(file, d.Generics, d.Where, scope),
		AssocTypes: make(map[string]ty.Type),
		Span:       span,
	}
	if err != nil {
		return impl
	}
	trait := l.traits[ref.Name]
	for name, s := range d.Assoc {
		if !slices.Contains(trait.AssocTypes, name) {
			l.syntaxError(spanOf(file, s), "`%s` is not an associated type of `%s`", name, trait.Name)
			continue
		}
		impl.AssocTypes[name] = l.parseType(file, s, scope)
	}
	for _, name := range trait.AssocTypes {
		if _, ok := impl.AssocTypes[name]; !ok {
			l.syntaxError(span, "impl of `%s` is missing associated type `%s`", trait.Name, name)
		}
	}
	return impl
}

func (l *loader) fnDef(file *token.File, id ty.DefID, d fnDecl) (*ty.FnDef, fnBody) {
	scope := parser.Scope{Generics: l.generics[id], Regions: make(map[string]ty.Region)}
	l.nextBody++
	body := fnBody{item: id, name: d.Name.Text, body: l.nextBody}
	for _, local := range d.Locals {
		if !strings.HasPrefix(local.Text, "'") {
			l.syntaxError(spanOf(file, local), "local scopes are named like lifetimes, found `%s`", local.Text)
			continue
		}
		l.nextBody++
		scope.Regions[local.Text] = ty.Scope{Body: l.nextBody}
	}
	for _, s := range d.Drops {
		body.drops = append(body.drops, drop{ty: l.parseType(file, s, scope), span: spanOf(file, s)})
	}
	fn := &ty.FnDef{
		ID:         id,
		Name:       d.Name.Text,
		Generics:   scope.Generics,
		Predicates: l.predicates(file, d.Generics, d.Where, scope),
		Span:       spanOf(file, d.Name),
	}
	return fn, body
}
