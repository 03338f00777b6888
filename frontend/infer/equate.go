package infer

import (
	"github.com/cottand/dropck/frontend/ty"
)

// At relates terms on behalf of cause, under the predicates of paramEnv
type At struct {
	infcx    *Ctxt
	cause    ObligationCause
	paramEnv ty.ParamEnv
}

func (infcx *Ctxt) At(cause ObligationCause, env ty.ParamEnv) At {
	infcx.checkOpen()
	return At{infcx: infcx, cause: cause, paramEnv: env}
}

// Eq makes expected and actual equal, binding placeholders as needed.
// Nothing is bound if they cannot be made equal.
func (at At) Eq(expected, actual ty.Type) (InferOk, error) {
	return at.equate(func(e *equate) error {
		_, err := e.Tys(expected, actual)
		return err
	})
}

func (at At) EqTraitRefs(expected, actual ty.TraitRef) (InferOk, error) {
	return at.equate(func(e *equate) error {
		_, err := ty.RelateTraitRefs(e, expected, actual)
		return err
	})
}

func (at At) EqProjectionTys(expected, actual ty.ProjectionTy) (InferOk, error) {
	return at.equate(func(e *equate) error {
		_, err := ty.RelateProjectionTys(e, expected, actual)
		return err
	})
}

func (at At) equate(f func(e *equate) error) (InferOk, error) {
	e := &equate{at: at}
	err := at.infcx.CommitIfOk(func() error {
		return f(e)
	})
	if err != nil {
		at.infcx.logger.Debug("equate failed", "at", at.cause.Span, "err", err)
		return InferOk{}, err
	}
	return InferOk{Obligations: e.obligations}, nil
}

var _ ty.TypeRelation = &equate{}

// equate is the invariant relation: it succeeds when both sides can be
// made syntactically equal, modulo regions
type equate struct {
	at          At
	obligations []Obligation
}

func (e *equate) Tag() string       { return "infer.Equate" }
func (e *equate) AIsExpected() bool { return true }

func (e *equate) RelateWithVariance(_ ty.Variance, a, b ty.GenericArg) (ty.GenericArg, error) {
	return ty.RelateArgs(e, a, b)
}

func (e *equate) Tys(a, b ty.Type) (ty.Type, error) {
	infcx := e.at.infcx
	a, b = infcx.ShallowResolve(a), infcx.ShallowResolve(b)
	if ty.Equal(a, b) {
		return a, nil
	}
	av, aIsVar := a.(ty.Infer)
	bv, bIsVar := b.(ty.Infer)
	switch {
	case aIsVar && av.Var.Kind == ty.TyVar && bIsVar && bv.Var.Kind == ty.TyVar:
		infcx.tyVars.union(av.Var.ID, bv.Var.ID)
		return a, nil
	case aIsVar && av.Var.Kind == ty.TyVar:
		return b, e.instantiate(av.Var, b)
	case bIsVar && bv.Var.Kind == ty.TyVar:
		return a, e.instantiate(bv.Var, a)
	}

	aProj, aIsProj := a.(ty.Projection)
	bProj, bIsProj := b.(ty.Projection)
	switch {
	case aIsProj && bIsProj:
		if _, err := ty.RelateProjectionTys(e, aProj.ProjectionTy, bProj.ProjectionTy); err == nil {
			return a, nil
		}
		e.registerProjectionEq(aProj.ProjectionTy, b)
		return a, nil
	case aIsProj:
		e.registerProjectionEq(aProj.ProjectionTy, b)
		return a, nil
	case bIsProj:
		e.registerProjectionEq(bProj.ProjectionTy, a)
		return a, nil
	}
	return infcx.SuperCombineTys(e, a, b)
}

// instantiate binds v to t, failing if v occurs in t
func (e *equate) instantiate(v ty.InferTy, t ty.Type) error {
	infcx := e.at.infcx
	root := infcx.tyVars.find(v.ID)
	for nested := range ty.Walk(infcx.ResolveTy(t)) {
		if other, ok := nested.(ty.Infer); ok && other.Var.Kind == ty.TyVar && infcx.tyVars.find(other.Var.ID) == root {
			return ty.NewTypeError(e, ty.CyclicType, ty.Infer{Var: v}, t)
		}
	}
	infcx.tyVars.bind(root, t)
	return nil
}

// registerProjectionEq defers `<..>::Item == t` to the fulfillment engine,
// which normalizes the projection
func (e *equate) registerProjectionEq(p ty.ProjectionTy, t ty.Type) {
	pred := ty.ProjectionPredicate{Binder: ty.Dummy(ty.ProjectionEq{ProjectionTy: p, Ty: t})}
	e.obligations = append(e.obligations, NewObligation(e.at.cause, e.at.paramEnv, pred))
}

func (e *equate) Regions(a, b ty.Region) (ty.Region, error) {
	e.at.infcx.makeEqRegion(e.at.cause.Span, a, b)
	return a, nil
}

func (e *equate) Consts(a, b ty.Const) (ty.Const, error) {
	return e.at.infcx.SuperCombineConsts(e, a, b)
}

// SuperCombineTys relates a and b structurally, resolving integer and float
// placeholders against primitive types along the way. Any other kind of
// placeholder must have been handled by rel.
func (infcx *Ctxt) SuperCombineTys(rel ty.TypeRelation, a, b ty.Type) (ty.Type, error) {
	infcx.checkOpen()
	av, aIsVar := a.(ty.Infer)
	bv, bIsVar := b.(ty.Infer)
	switch {
	case aIsVar && bIsVar && av.Var.Kind == bv.Var.Kind && av.Var.Kind != ty.TyVar:
		infcx.tableFor(av.Var.Kind).union(av.Var.ID, bv.Var.ID)
		return a, nil
	case aIsVar && av.Var.Kind != ty.TyVar:
		if infcx.unifyNumericVar(av.Var, b) {
			return b, nil
		}
	case bIsVar && bv.Var.Kind != ty.TyVar:
		if infcx.unifyNumericVar(bv.Var, a) {
			return a, nil
		}
	default:
		return ty.SuperRelateTys(rel, a, b)
	}
	return nil, ty.NewTypeError(rel, ty.Mismatch, a, b)
}

func (infcx *Ctxt) unifyNumericVar(v ty.InferTy, t ty.Type) bool {
	prim, ok := t.(ty.Prim)
	if !ok {
		return false
	}
	if (v.Kind == ty.IntVar && prim.Kind.IsInteger()) || (v.Kind == ty.FloatVar && prim.Kind.IsFloat()) {
		infcx.tableFor(v.Kind).bind(v.ID, prim)
		return true
	}
	return false
}

// SuperCombineConsts binds const placeholders on either side, and
// otherwise requires both constants to be identical
func (infcx *Ctxt) SuperCombineConsts(rel ty.TypeRelation, a, b ty.Const) (ty.Const, error) {
	infcx.checkOpen()
	a, b = infcx.shallowResolveConst(a), infcx.shallowResolveConst(b)
	av, aIsVar := a.(ty.ConstInfer)
	bv, bIsVar := b.(ty.ConstInfer)
	switch {
	case aIsVar && bIsVar:
		infcx.constVars.union(av.ID, bv.ID)
		return a, nil
	case aIsVar:
		infcx.constVars.bind(av.ID, b)
		return b, nil
	case bIsVar:
		infcx.constVars.bind(bv.ID, a)
		return a, nil
	}
	return ty.SuperRelateConsts(rel, a, b)
}

// makeEqRegion requires a and b to be the same region. Unbound region
// placeholders are bound to the other side; anything else becomes a pair
// of outlives constraints.
func (infcx *Ctxt) makeEqRegion(origin ty.Span, a, b ty.Region) {
	a, b = infcx.shallowResolveRegion(a), infcx.shallowResolveRegion(b)
	if ty.Equal(a, b) {
		return
	}
	av, aIsVar := a.(ty.RegionVar)
	bv, bIsVar := b.(ty.RegionVar)
	switch {
	case aIsVar && bIsVar:
		infcx.regionVars.union(av.ID, bv.ID)
	case aIsVar:
		infcx.regionVars.bind(av.ID, b)
	case bIsVar:
		infcx.regionVars.bind(bv.ID, a)
	default:
		infcx.RegisterRegionObligation(origin, a, b)
		infcx.RegisterRegionObligation(origin, b, a)
	}
}
