package ty

import (
	"fmt"
	"iter"
)

// Folder rebuilds a term bottom-up. Implementations usually handle the
// cases they care about and defer to SuperFoldTy for the rest.
type Folder interface {
	FoldTy(Type) Type
	FoldRegion(Region) Region
	FoldConst(Const) Const
}

// SuperFoldTy folds the children of t, leaving t's own constructor untouched
func SuperFoldTy(f Folder, t Type) Type {
	switch t := t.(type) {
	case Prim, Never, Param, Infer:
		return t
	case Adt:
		return Adt{Def: t.Def, Name: t.Name, Substs: FoldSubsts(f, t.Substs)}
	case Ref:
		return Ref{Region: f.FoldRegion(t.Region), Elem: f.FoldTy(t.Elem), Mutable: t.Mutable}
	case RawPtr:
		return RawPtr{Elem: f.FoldTy(t.Elem), Mutable: t.Mutable}
	case Tuple:
		return Tuple{Elems: foldTys(f, t.Elems)}
	case Array:
		return Array{Elem: f.FoldTy(t.Elem), Len: f.FoldConst(t.Len)}
	case Slice:
		return Slice{Elem: f.FoldTy(t.Elem)}
	case FnPtr:
		return FnPtr{Inputs: foldTys(f, t.Inputs), Output: f.FoldTy(t.Output)}
	case Projection:
		return Projection{FoldProjectionTy(f, t.ProjectionTy)}
	default:
		panic(fmt.Sprintf("unexpected type %T", t))
	}
}

func foldTys(f Folder, ts []Type) []Type {
	if ts == nil {
		return nil
	}
	folded := make([]Type, len(ts))
	for i, t := range ts {
		folded[i] = f.FoldTy(t)
	}
	return folded
}

func FoldArg(f Folder, a GenericArg) GenericArg {
	switch a := a.(type) {
	case Type:
		return f.FoldTy(a)
	case Region:
		return f.FoldRegion(a)
	case Const:
		return f.FoldConst(a)
	default:
		panic(fmt.Sprintf("unexpected generic argument %T", a))
	}
}

func FoldSubsts(f Folder, s Substs) Substs {
	if s == nil {
		return nil
	}
	folded := make(Substs, len(s))
	for i, a := range s {
		folded[i] = FoldArg(f, a)
	}
	return folded
}

func FoldTraitRef(f Folder, r TraitRef) TraitRef {
	return TraitRef{Def: r.Def, Name: r.Name, Substs: FoldSubsts(f, r.Substs)}
}

func FoldProjectionTy(f Folder, p ProjectionTy) ProjectionTy {
	return ProjectionTy{Trait: FoldTraitRef(f, p.Trait), Item: p.Item}
}

func FoldPredicate(f Folder, p Predicate) Predicate {
	switch p := p.(type) {
	case TraitPredicate:
		return TraitPredicate{Rebind(p.Binder, FoldTraitRef(f, p.Value))}
	case ProjectionPredicate:
		return ProjectionPredicate{Rebind(p.Binder, ProjectionEq{
			ProjectionTy: FoldProjectionTy(f, p.Value.ProjectionTy),
			Ty:           f.FoldTy(p.Value.Ty),
		})}
	case RegionOutlivesPredicate:
		return RegionOutlivesPredicate{Rebind(p.Binder, RegionOutlives{
			Longer:  f.FoldRegion(p.Value.Longer),
			Shorter: f.FoldRegion(p.Value.Shorter),
		})}
	case TypeOutlivesPredicate:
		return TypeOutlivesPredicate{Rebind(p.Binder, TypeOutlives{
			Ty:     f.FoldTy(p.Value.Ty),
			Region: f.FoldRegion(p.Value.Region),
		})}
	case WellFormedPredicate:
		return WellFormedPredicate{Arg: FoldArg(f, p.Arg)}
	default:
		panic(fmt.Sprintf("unexpected predicate %T", p))
	}
}

// substFolder replaces early-bound parameters by their argument in substs
type substFolder struct {
	substs Substs
}

func (s substFolder) arg(index uint32, param fmt.Stringer) GenericArg {
	if int(index) >= len(s.substs) {
		panic(fmt.Sprintf("parameter %v (index %d) out of range when substituting %v", param, index, s.substs))
	}
	return s.substs[index]
}

func (s substFolder) FoldTy(t Type) Type {
	if p, ok := t.(Param); ok {
		replacement, ok := s.arg(p.Index, p).(Type)
		if !ok {
			panic(fmt.Sprintf("expected type for parameter %v, found %v", p, s.substs[p.Index]))
		}
		return replacement
	}
	return SuperFoldTy(s, t)
}

func (s substFolder) FoldRegion(r Region) Region {
	if p, ok := r.(EarlyBound); ok {
		replacement, ok := s.arg(p.Index, p).(Region)
		if !ok {
			panic(fmt.Sprintf("expected region for parameter %v, found %v", p, s.substs[p.Index]))
		}
		return replacement
	}
	return r
}

func (s substFolder) FoldConst(c Const) Const {
	if p, ok := c.(ConstParam); ok {
		replacement, ok := s.arg(p.Index, p).(Const)
		if !ok {
			panic(fmt.Sprintf("expected const for parameter %v, found %v", p, s.substs[p.Index]))
		}
		return replacement
	}
	return c
}

// SubstTy instantiates the parameters of t with substs
func SubstTy(t Type, substs Substs) Type {
	return substFolder{substs}.FoldTy(t)
}

func SubstArg(a GenericArg, substs Substs) GenericArg {
	return FoldArg(substFolder{substs}, a)
}

func SubstTraitRef(r TraitRef, substs Substs) TraitRef {
	return FoldTraitRef(substFolder{substs}, r)
}

func SubstPredicate(p Predicate, substs Substs) Predicate {
	return FoldPredicate(substFolder{substs}, p)
}

// Walk yields arg and then every argument nested in it, in pre-order
func Walk(arg GenericArg) iter.Seq[GenericArg] {
	return func(yield func(GenericArg) bool) {
		walk(arg, yield)
	}
}

func walk(arg GenericArg, yield func(GenericArg) bool) bool {
	if !yield(arg) {
		return false
	}
	for _, child := range children(arg) {
		if !walk(child, yield) {
			return false
		}
	}
	return true
}

func children(arg GenericArg) []GenericArg {
	switch a := arg.(type) {
	case Adt:
		return a.Substs
	case Ref:
		return []GenericArg{a.Region, a.Elem}
	case RawPtr:
		return []GenericArg{a.Elem}
	case Tuple:
		return typesAsArgs(a.Elems)
	case Array:
		return []GenericArg{a.Elem, a.Len}
	case Slice:
		return []GenericArg{a.Elem}
	case FnPtr:
		return append(typesAsArgs(a.Inputs), a.Output)
	case Projection:
		return a.Trait.Substs
	default:
		return nil
	}
}

func typesAsArgs(ts []Type) []GenericArg {
	args := make([]GenericArg, len(ts))
	for i, t := range ts {
		args[i] = t
	}
	return args
}

// PredicateArgs yields the top-level generic arguments of p
func PredicateArgs(p Predicate) []GenericArg {
	switch p := p.(type) {
	case TraitPredicate:
		return p.Value.Substs
	case ProjectionPredicate:
		return append(append([]GenericArg{}, p.Value.ProjectionTy.Trait.Substs...), p.Value.Ty)
	case RegionOutlivesPredicate:
		return []GenericArg{p.Value.Longer, p.Value.Shorter}
	case TypeOutlivesPredicate:
		return []GenericArg{p.Value.Ty, p.Value.Region}
	case WellFormedPredicate:
		return []GenericArg{p.Arg}
	default:
		panic(fmt.Sprintf("unexpected predicate %T", p))
	}
}

// HasInfer reports whether any inference placeholder occurs in p
func HasInfer(p Predicate) bool {
	for _, arg := range PredicateArgs(p) {
		for nested := range Walk(arg) {
			switch nested.(type) {
			case Infer, RegionVar, ConstInfer:
				return true
			}
		}
	}
	return false
}
