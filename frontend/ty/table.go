package ty

import (
	"fmt"
	"slices"

	"github.com/benbjohnson/immutable"
)

type AdtKind uint8

const (
	StructKind AdtKind = iota
	EnumKind
)

func (k AdtKind) String() string {
	if k == EnumKind {
		return "enum"
	}
	return "struct"
}

type SpannedPredicate struct {
	Predicate Predicate
	Span      Span
}

// GenericPredicates are the predicates declared on an item. Parent is set
// for items that inherit the predicates of an enclosing item.
type GenericPredicates struct {
	Parent     *DefID
	Predicates []SpannedPredicate
}

// Instantiate substitutes substs into every predicate
func (g GenericPredicates) Instantiate(substs Substs) []Predicate {
	instantiated := make([]Predicate, len(g.Predicates))
	for i, p := range g.Predicates {
		instantiated[i] = SubstPredicate(p.Predicate, substs)
	}
	return instantiated
}

// Bare returns the predicates as declared, still mentioning the parameters
// of the item
func (g GenericPredicates) Bare() []Predicate {
	bare := make([]Predicate, len(g.Predicates))
	for i, p := range g.Predicates {
		bare[i] = p.Predicate
	}
	return bare
}

type FieldDef struct {
	Name string
	Ty   Type
}

type VariantDef struct {
	Name   string
	Fields []FieldDef
}

// Item is anything stored in a Table
type Item interface {
	DefID() DefID
	DefSpan() Span
	item()
}

// TypeDef is a nominal struct or enum definition
type TypeDef struct {
	ID         DefID
	Name       string
	Kind       AdtKind
	Generics   Generics
	Predicates []SpannedPredicate
	// Variants holds the single variant of a struct, or every variant of an enum
	Variants []VariantDef
	Span     Span
}

// SelfTy is the type instantiated with its own generics, `Foo<A, B>`
func (d *TypeDef) SelfTy() Type {
	return Adt{Def: d.ID, Name: d.Name, Substs: d.Generics.Identity()}
}

func (d *TypeDef) AllFields() []FieldDef {
	var fields []FieldDef
	for _, v := range d.Variants {
		fields = append(fields, v.Fields...)
	}
	return fields
}

// DropImpl is a destructor, `impl<..> Drop for SelfTy where ..`
type DropImpl struct {
	ID         DefID
	Generics   Generics
	SelfTy     Type
	Predicates []SpannedPredicate
	Span       Span
}

// TraitDef declares a trait. Generics.Params[0] is always Self.
type TraitDef struct {
	ID         DefID
	Name       string
	Generics   Generics
	AssocTypes []string
	Span       Span
}

func (d *TraitDef) HasAssocType(name string) bool {
	return slices.Contains(d.AssocTypes, name)
}

// TraitImpl is `impl<..> Trait<..> for T where ..`
type TraitImpl struct {
	ID         DefID
	Generics   Generics
	TraitRef   TraitRef
	Predicates []SpannedPredicate
	AssocTypes map[string]Type
	Span       Span
}

// FnDef is a function whose body drops values
type FnDef struct {
	ID         DefID
	Name       string
	Generics   Generics
	Predicates []SpannedPredicate
	Span       Span
}

func (d *TypeDef) DefID() DefID    { return d.ID }
func (d *DropImpl) DefID() DefID   { return d.ID }
func (d *TraitDef) DefID() DefID   { return d.ID }
func (d *TraitImpl) DefID() DefID  { return d.ID }
func (d *FnDef) DefID() DefID      { return d.ID }
func (d *TypeDef) DefSpan() Span   { return d.Span }
func (d *DropImpl) DefSpan() Span  { return d.Span }
func (d *TraitDef) DefSpan() Span  { return d.Span }
func (d *TraitImpl) DefSpan() Span { return d.Span }
func (d *FnDef) DefSpan() Span     { return d.Span }
func (*TypeDef) item()             {}
func (*DropImpl) item()            {}
func (*TraitDef) item()            {}
func (*TraitImpl) item()           {}
func (*FnDef) item()               {}

// Table is the read-only definition table shared by every check.
// Items live in an arena indexed by DefID.
type Table struct {
	items      []Item
	names      *immutable.SortedMap[string, DefID]
	dropImpls  map[DefID][]DefID
	traitImpls map[DefID][]DefID
}

func (t *Table) Item(id DefID) (Item, bool) {
	if !id.IsValid() || int(id) > len(t.items) {
		return nil, false
	}
	return t.items[id-1], true
}

func (t *Table) mustItem(id DefID) Item {
	it, ok := t.Item(id)
	if !ok {
		panic(fmt.Sprintf("no item with id %d", id))
	}
	return it
}

func (t *Table) TypeDef(id DefID) (*TypeDef, bool) {
	it, _ := t.Item(id)
	d, ok := it.(*TypeDef)
	return d, ok
}

func (t *Table) DropImpl(id DefID) (*DropImpl, bool) {
	it, _ := t.Item(id)
	d, ok := it.(*DropImpl)
	return d, ok
}

func (t *Table) Trait(id DefID) (*TraitDef, bool) {
	it, _ := t.Item(id)
	d, ok := it.(*TraitDef)
	return d, ok
}

func (t *Table) TraitImpl(id DefID) (*TraitImpl, bool) {
	it, _ := t.Item(id)
	d, ok := it.(*TraitImpl)
	return d, ok
}

// Lookup resolves the name of a type or trait
func (t *Table) Lookup(name string) (DefID, bool) {
	return t.names.Get(name)
}

// TypeOf is the self type of a type definition or of a drop impl
func (t *Table) TypeOf(id DefID) Type {
	switch it := t.mustItem(id).(type) {
	case *TypeDef:
		return it.SelfTy()
	case *DropImpl:
		return it.SelfTy
	case *TraitImpl:
		return it.TraitRef.SelfTy()
	default:
		panic(fmt.Sprintf("item %d has no type", id))
	}
}

func (t *Table) GenericsOf(id DefID) Generics {
	switch it := t.mustItem(id).(type) {
	case *TypeDef:
		return it.Generics
	case *DropImpl:
		return it.Generics
	case *TraitDef:
		return it.Generics
	case *TraitImpl:
		return it.Generics
	case *FnDef:
		return it.Generics
	default:
		panic(fmt.Sprintf("unexpected item %T", it))
	}
}

// PredicatesOf returns the directly declared predicates of id. No item in
// this table inherits predicates, so Parent is always nil.
func (t *Table) PredicatesOf(id DefID) GenericPredicates {
	switch it := t.mustItem(id).(type) {
	case *TypeDef:
		return GenericPredicates{Predicates: it.Predicates}
	case *DropImpl:
		return GenericPredicates{Predicates: it.Predicates}
	case *TraitImpl:
		return GenericPredicates{Predicates: it.Predicates}
	case *FnDef:
		return GenericPredicates{Predicates: it.Predicates}
	case *TraitDef:
		return GenericPredicates{}
	default:
		panic(fmt.Sprintf("unexpected item %T", it))
	}
}

// ParamEnv is the environment of predicates that hold inside id
func (t *Table) ParamEnv(id DefID) ParamEnv {
	return ParamEnv{CallerBounds: t.PredicatesOf(id).Bare()}
}

func (t *Table) DefSpan(id DefID) Span {
	return t.mustItem(id).DefSpan()
}

// DropImplsOf returns the destructors whose self type names the ADT def
func (t *Table) DropImplsOf(def DefID) []DefID {
	return t.dropImpls[def]
}

func (t *Table) HasDtor(def DefID) bool {
	return len(t.dropImpls[def]) > 0
}

// ImplsOf returns every impl of trait
func (t *Table) ImplsOf(trait DefID) []DefID {
	return t.traitImpls[trait]
}

// DropImpls returns every destructor in the table, including those whose
// self type is not nominal
func (t *Table) DropImpls() []DefID {
	var ids []DefID
	for _, it := range t.items {
		if _, ok := it.(*DropImpl); ok {
			ids = append(ids, it.DefID())
		}
	}
	return ids
}

// Fns returns every function in the table
func (t *Table) Fns() []*FnDef {
	var fns []*FnDef
	for _, it := range t.items {
		if fn, ok := it.(*FnDef); ok {
			fns = append(fns, fn)
		}
	}
	return fns
}

func (t *Table) Len() int { return len(t.items) }

// Builder assembles a Table. Names are reserved before items are defined
// so that items may refer to each other in any order.
type Builder struct {
	items []Item
	names *immutable.SortedMapBuilder[string, DefID]
	taken map[string]DefID
}

func NewBuilder() *Builder {
	return &Builder{
		names: immutable.NewSortedMapBuilder[string, DefID](immutable.NewComparer("")),
		taken: make(map[string]DefID),
	}
}

// Reserve allocates a DefID, optionally under a name
func (b *Builder) Reserve(name string) (DefID, error) {
	if name != "" {
		if _, ok := b.taken[name]; ok {
			return NoDefID, fmt.Errorf("the name `%s` is defined multiple times", name)
		}
	}
	b.items = append(b.items, nil)
	id := DefID(len(b.items))
	if name != "" {
		b.taken[name] = id
		b.names.Set(name, id)
	}
	return id, nil
}

func (b *Builder) Lookup(name string) (DefID, bool) {
	id, ok := b.taken[name]
	return id, ok
}

// Reserved returns the item defined for id so far, if any
func (b *Builder) Reserved(id DefID) (Item, bool) {
	if !id.IsValid() || int(id) > len(b.items) || b.items[id-1] == nil {
		return nil, false
	}
	return b.items[id-1], true
}

// Define stores it under the DefID it was reserved with
func (b *Builder) Define(it Item) error {
	id := it.DefID()
	if !id.IsValid() || int(id) > len(b.items) {
		return fmt.Errorf("item %d was never reserved", id)
	}
	if b.items[id-1] != nil {
		return fmt.Errorf("item %d is defined twice", id)
	}
	b.items[id-1] = it
	return nil
}

func (b *Builder) Build() (*Table, error) {
	t := &Table{
		items:      b.items,
		names:      b.names.Map(),
		dropImpls:  make(map[DefID][]DefID),
		traitImpls: make(map[DefID][]DefID),
	}
	for i, it := range b.items {
		if it == nil {
			return nil, fmt.Errorf("item %d was reserved but never defined", i+1)
		}
		switch it := it.(type) {
		case *DropImpl:
			if adt, ok := it.SelfTy.(Adt); ok {
				t.dropImpls[adt.Def] = append(t.dropImpls[adt.Def], it.ID)
			}
		case *TraitImpl:
			t.traitImpls[it.TraitRef.Def] = append(t.traitImpls[it.TraitRef.Def], it.ID)
		}
	}
	b.items = nil
	return t, nil
}
