package ty

import (
	"fmt"
	"strings"
)

// Binder wraps a value that may mention late-bound regions, as in
// `for<'x> T: Trait<'x>`. Bound lists the names of those regions.
type Binder[T any] struct {
	Value T
	Bound []string
}

// Dummy binds nothing
func Dummy[T any](v T) Binder[T] {
	return Binder[T]{Value: v}
}

func Bind[T any](v T, bound ...string) Binder[T] {
	return Binder[T]{Value: v, Bound: bound}
}

// SkipBinder accesses the bound value, leaving any late-bound regions in it
// as they are.
func (b Binder[T]) SkipBinder() T {
	return b.Value
}

// Rebind wraps u in the binder of b
func Rebind[T, U any](b Binder[T], u U) Binder[U] {
	return Binder[U]{Value: u, Bound: b.Bound}
}

func (b Binder[T]) prefix() string {
	if len(b.Bound) == 0 {
		return ""
	}
	return "for<" + strings.Join(b.Bound, ", ") + "> "
}

func (b Binder[T]) hashBound(h *hasher) {
	h.uint(uint64(len(b.Bound)))
}

// Predicate is a closed sum of the bounds that can be declared on generics.
type Predicate interface {
	fmt.Stringer
	Hash() uint64
	hashInto(h *hasher)
	isPredicate()
}

var (
	_ Predicate = TraitPredicate{}
	_ Predicate = ProjectionPredicate{}
	_ Predicate = RegionOutlivesPredicate{}
	_ Predicate = TypeOutlivesPredicate{}
	_ Predicate = WellFormedPredicate{}
)

// TraitPredicate is `T: Trait<..>`
type TraitPredicate struct {
	Binder[TraitRef]
}

func (p TraitPredicate) String() string {
	return fmt.Sprintf("%s%v: %v", p.prefix(), p.Value.SelfTy(), p.Value)
}

// ProjectionPredicate is `<T as Trait<..>>::Item == Ty`
type ProjectionPredicate struct {
	Binder[ProjectionEq]
}

type ProjectionEq struct {
	ProjectionTy ProjectionTy
	Ty           Type
}

func (p ProjectionPredicate) String() string {
	return fmt.Sprintf("%s%v == %v", p.prefix(), p.Value.ProjectionTy, p.Value.Ty)
}

// RegionOutlivesPredicate is `'longer: 'shorter`
type RegionOutlivesPredicate struct {
	Binder[RegionOutlives]
}

type RegionOutlives struct {
	Longer, Shorter Region
}

func (p RegionOutlivesPredicate) String() string {
	return fmt.Sprintf("%s%v: %v", p.prefix(), p.Value.Longer, p.Value.Shorter)
}

// TypeOutlivesPredicate is `T: 'r`
type TypeOutlivesPredicate struct {
	Binder[TypeOutlives]
}

type TypeOutlives struct {
	Ty     Type
	Region Region
}

func (p TypeOutlivesPredicate) String() string {
	return fmt.Sprintf("%s%v: %v", p.prefix(), p.Value.Ty, p.Value.Region)
}

// WellFormedPredicate requires Arg to be well-formed
type WellFormedPredicate struct {
	Arg GenericArg
}

func (p WellFormedPredicate) String() string {
	return fmt.Sprintf("WF(%v)", p.Arg)
}

func (TraitPredicate) isPredicate()          {}
func (ProjectionPredicate) isPredicate()     {}
func (RegionOutlivesPredicate) isPredicate() {}
func (TypeOutlivesPredicate) isPredicate()   {}
func (WellFormedPredicate) isPredicate()     {}

func (p TraitPredicate) Hash() uint64          { return hashOf(p) }
func (p ProjectionPredicate) Hash() uint64     { return hashOf(p) }
func (p RegionOutlivesPredicate) Hash() uint64 { return hashOf(p) }
func (p TypeOutlivesPredicate) Hash() uint64   { return hashOf(p) }
func (p WellFormedPredicate) Hash() uint64     { return hashOf(p) }

func (p TraitPredicate) hashInto(h *hasher) {
	h.tag(tagTraitPredicate)
	p.hashBound(h)
	p.Value.hashInto(h)
}

func (p ProjectionPredicate) hashInto(h *hasher) {
	h.tag(tagProjectionPredicate)
	p.hashBound(h)
	p.Value.ProjectionTy.hashInto(h)
	p.Value.Ty.hashInto(h)
}

func (p RegionOutlivesPredicate) hashInto(h *hasher) {
	h.tag(tagRegionOutlives)
	p.hashBound(h)
	p.Value.Longer.hashInto(h)
	p.Value.Shorter.hashInto(h)
}

func (p TypeOutlivesPredicate) hashInto(h *hasher) {
	h.tag(tagTypeOutlives)
	p.hashBound(h)
	p.Value.Ty.hashInto(h)
	p.Value.Region.hashInto(h)
}

func (p WellFormedPredicate) hashInto(h *hasher) {
	h.tag(tagWellFormed)
	p.Arg.hashInto(h)
}

// NewTraitPredicate builds the unbound predicate `self: trait<args..>`
func NewTraitPredicate(trait DefID, name string, self Type, args ...GenericArg) TraitPredicate {
	substs := append(Substs{self}, args...)
	return TraitPredicate{Dummy(TraitRef{Def: trait, Name: name, Substs: substs})}
}

func NewRegionOutlives(longer, shorter Region) RegionOutlivesPredicate {
	return RegionOutlivesPredicate{Dummy(RegionOutlives{Longer: longer, Shorter: shorter})}
}

func NewTypeOutlives(t Type, r Region) TypeOutlivesPredicate {
	return TypeOutlivesPredicate{Dummy(TypeOutlives{Ty: t, Region: r})}
}

// ParamEnv holds the predicates that may be assumed inside an item
type ParamEnv struct {
	CallerBounds []Predicate
}

func EmptyParamEnv() ParamEnv {
	return ParamEnv{}
}
