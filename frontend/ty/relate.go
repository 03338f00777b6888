package ty

import "fmt"

type Variance uint8

const (
	Covariant Variance = iota
	Invariant
	Contravariant
	Bivariant
)

// TypeRelation is a structural relation between two terms. The generic
// Relate* functions in this package walk both terms in lockstep and call
// back into the relation at every type, region and const.
type TypeRelation interface {
	// Tag names the relation for logging
	Tag() string
	// AIsExpected reports whether the first operand is the expected side
	AIsExpected() bool
	RelateWithVariance(v Variance, a, b GenericArg) (GenericArg, error)
	Tys(a, b Type) (Type, error)
	Regions(a, b Region) (Region, error)
	Consts(a, b Const) (Const, error)
}

type TypeErrorKind uint8

const (
	Mismatch TypeErrorKind = iota
	ArgCount
	Mutability
	TraitMismatch
	ProjectionMismatch
	ConstMismatch
	CyclicType
)

// TypeError is returned when two terms cannot be related
type TypeError struct {
	Kind     TypeErrorKind
	Expected fmt.Stringer
	Found    fmt.Stringer
}

func (e *TypeError) Error() string {
	switch e.Kind {
	case ArgCount:
		return fmt.Sprintf("expected %v, found %v: wrong number of arguments", e.Expected, e.Found)
	case Mutability:
		return fmt.Sprintf("expected %v, found %v: types differ in mutability", e.Expected, e.Found)
	case CyclicType:
		return fmt.Sprintf("cyclic type of infinite size: %v occurs in %v", e.Expected, e.Found)
	default:
		return fmt.Sprintf("expected `%v`, found `%v`", e.Expected, e.Found)
	}
}

func NewTypeError(rel TypeRelation, kind TypeErrorKind, a, b fmt.Stringer) *TypeError {
	if !rel.AIsExpected() {
		a, b = b, a
	}
	return &TypeError{Kind: kind, Expected: a, Found: b}
}

// RelateArgs dispatches on the kind of a and b, which must match
func RelateArgs(rel TypeRelation, a, b GenericArg) (GenericArg, error) {
	switch a := a.(type) {
	case Type:
		if b, ok := b.(Type); ok {
			return rel.Tys(a, b)
		}
	case Region:
		if b, ok := b.(Region); ok {
			return rel.Regions(a, b)
		}
	case Const:
		if b, ok := b.(Const); ok {
			return rel.Consts(a, b)
		}
	}
	return nil, NewTypeError(rel, Mismatch, a, b)
}

// RelateSubsts relates a and b pairwise and invariantly
func RelateSubsts(rel TypeRelation, a, b Substs) (Substs, error) {
	if len(a) != len(b) {
		return nil, NewTypeError(rel, ArgCount, a, b)
	}
	related := make(Substs, len(a))
	for i := range a {
		r, err := rel.RelateWithVariance(Invariant, a[i], b[i])
		if err != nil {
			return nil, err
		}
		related[i] = r
	}
	return related, nil
}

func RelateTraitRefs(rel TypeRelation, a, b TraitRef) (TraitRef, error) {
	if a.Def != b.Def {
		return TraitRef{}, NewTypeError(rel, TraitMismatch, a, b)
	}
	substs, err := RelateSubsts(rel, a.Substs, b.Substs)
	if err != nil {
		return TraitRef{}, err
	}
	return TraitRef{Def: a.Def, Name: a.Name, Substs: substs}, nil
}

func RelateProjectionTys(rel TypeRelation, a, b ProjectionTy) (ProjectionTy, error) {
	if a.Item != b.Item || a.Trait.Def != b.Trait.Def {
		return ProjectionTy{}, NewTypeError(rel, ProjectionMismatch, a, b)
	}
	trait, err := RelateTraitRefs(rel, a.Trait, b.Trait)
	if err != nil {
		return ProjectionTy{}, err
	}
	return ProjectionTy{Trait: trait, Item: a.Item}, nil
}

func RelateProjectionEqs(rel TypeRelation, a, b ProjectionEq) (ProjectionEq, error) {
	projTy, err := RelateProjectionTys(rel, a.ProjectionTy, b.ProjectionTy)
	if err != nil {
		return ProjectionEq{}, err
	}
	t, err := rel.Tys(a.Ty, b.Ty)
	if err != nil {
		return ProjectionEq{}, err
	}
	return ProjectionEq{ProjectionTy: projTy, Ty: t}, nil
}

func RelateRegionOutlives(rel TypeRelation, a, b RegionOutlives) (RegionOutlives, error) {
	longer, err := rel.Regions(a.Longer, b.Longer)
	if err != nil {
		return RegionOutlives{}, err
	}
	shorter, err := rel.Regions(a.Shorter, b.Shorter)
	if err != nil {
		return RegionOutlives{}, err
	}
	return RegionOutlives{Longer: longer, Shorter: shorter}, nil
}

func RelateTypeOutlives(rel TypeRelation, a, b TypeOutlives) (TypeOutlives, error) {
	t, err := rel.Tys(a.Ty, b.Ty)
	if err != nil {
		return TypeOutlives{}, err
	}
	r, err := rel.Regions(a.Region, b.Region)
	if err != nil {
		return TypeOutlives{}, err
	}
	return TypeOutlives{Ty: t, Region: r}, nil
}

func relateTys(rel TypeRelation, v Variance, a, b []Type) ([]Type, error) {
	if len(a) != len(b) {
		return nil, NewTypeError(rel, ArgCount, Tuple{a}, Tuple{b})
	}
	related := make([]Type, len(a))
	for i := range a {
		r, err := rel.RelateWithVariance(v, a[i], b[i])
		if err != nil {
			return nil, err
		}
		related[i] = r.(Type)
	}
	return related, nil
}

func relateTy(rel TypeRelation, v Variance, a, b Type) (Type, error) {
	r, err := rel.RelateWithVariance(v, a, b)
	if err != nil {
		return nil, err
	}
	return r.(Type), nil
}

// SuperRelateTys relates a and b by structure, calling back into rel for
// their children. Inference placeholders must have been handled by rel
// before getting here.
func SuperRelateTys(rel TypeRelation, a, b Type) (Type, error) {
	switch a := a.(type) {
	case Prim:
		if b, ok := b.(Prim); ok && a.Kind == b.Kind {
			return a, nil
		}
	case Never:
		if _, ok := b.(Never); ok {
			return a, nil
		}
	case Param:
		if b, ok := b.(Param); ok && a.Index == b.Index {
			return a, nil
		}
	case Adt:
		if b, ok := b.(Adt); ok && a.Def == b.Def {
			substs, err := RelateSubsts(rel, a.Substs, b.Substs)
			if err != nil {
				return nil, err
			}
			return Adt{Def: a.Def, Name: a.Name, Substs: substs}, nil
		}
	case Ref:
		if b, ok := b.(Ref); ok {
			if a.Mutable != b.Mutable {
				return nil, NewTypeError(rel, Mutability, a, b)
			}
			r, err := rel.RelateWithVariance(Contravariant, a.Region, b.Region)
			if err != nil {
				return nil, err
			}
			elemVariance := Covariant
			if a.Mutable {
				elemVariance = Invariant
			}
			elem, err := relateTy(rel, elemVariance, a.Elem, b.Elem)
			if err != nil {
				return nil, err
			}
			return Ref{Region: r.(Region), Elem: elem, Mutable: a.Mutable}, nil
		}
	case RawPtr:
		if b, ok := b.(RawPtr); ok {
			if a.Mutable != b.Mutable {
				return nil, NewTypeError(rel, Mutability, a, b)
			}
			elemVariance := Covariant
			if a.Mutable {
				elemVariance = Invariant
			}
			elem, err := relateTy(rel, elemVariance, a.Elem, b.Elem)
			if err != nil {
				return nil, err
			}
			return RawPtr{Elem: elem, Mutable: a.Mutable}, nil
		}
	case Tuple:
		if b, ok := b.(Tuple); ok {
			elems, err := relateTys(rel, Covariant, a.Elems, b.Elems)
			if err != nil {
				return nil, err
			}
			return Tuple{Elems: elems}, nil
		}
	case Array:
		if b, ok := b.(Array); ok {
			elem, err := relateTy(rel, Covariant, a.Elem, b.Elem)
			if err != nil {
				return nil, err
			}
			length, err := rel.Consts(a.Len, b.Len)
			if err != nil {
				return nil, err
			}
			return Array{Elem: elem, Len: length}, nil
		}
	case Slice:
		if b, ok := b.(Slice); ok {
			elem, err := relateTy(rel, Covariant, a.Elem, b.Elem)
			if err != nil {
				return nil, err
			}
			return Slice{Elem: elem}, nil
		}
	case FnPtr:
		if b, ok := b.(FnPtr); ok {
			inputs, err := relateTys(rel, Contravariant, a.Inputs, b.Inputs)
			if err != nil {
				return nil, err
			}
			output, err := relateTy(rel, Covariant, a.Output, b.Output)
			if err != nil {
				return nil, err
			}
			return FnPtr{Inputs: inputs, Output: output}, nil
		}
	case Projection:
		if b, ok := b.(Projection); ok {
			p, err := RelateProjectionTys(rel, a.ProjectionTy, b.ProjectionTy)
			if err != nil {
				return nil, err
			}
			return Projection{p}, nil
		}
	case Infer:
		if b, ok := b.(Infer); ok && a.Var == b.Var {
			return a, nil
		}
	}
	return nil, NewTypeError(rel, Mismatch, a, b)
}

// SuperRelateConsts relates two constants that are not placeholders
func SuperRelateConsts(rel TypeRelation, a, b Const) (Const, error) {
	switch a := a.(type) {
	case ConstValue:
		if b, ok := b.(ConstValue); ok && a.Value == b.Value {
			return a, nil
		}
	case ConstParam:
		if b, ok := b.(ConstParam); ok && a.Index == b.Index {
			return a, nil
		}
	case ConstInfer:
		if b, ok := b.(ConstInfer); ok && a.ID == b.ID {
			return a, nil
		}
	}
	return nil, NewTypeError(rel, ConstMismatch, a, b)
}
