package traits

import (
	"github.com/cottand/dropck/frontend/infer"
	"github.com/cottand/dropck/frontend/ty"
)

// Traits the engine knows how to prove without an impl
const (
	SizedTrait  = "Sized"
	CopyTrait   = "Copy"
	CloneTrait  = "Clone"
	FnTrait     = "Fn"
	FnMutTrait  = "FnMut"
	FnOnceTrait = "FnOnce"
	// FnOutput is the associated type of FnOnce
	FnOutput = "Output"
)

type candidateSource uint8

const (
	paramEnvCandidate candidateSource = iota
	implCandidate
	builtinCandidate
)

func (s candidateSource) String() string {
	switch s {
	case paramEnvCandidate:
		return "where-clause"
	case implCandidate:
		return "impl"
	default:
		return "builtin"
	}
}

// traitCandidate is one way of proving a trait predicate. confirm binds
// placeholders as needed and returns the obligations the proof depends on.
type traitCandidate struct {
	source  candidateSource
	confirm func() ([]infer.Obligation, error)
}

// projectionCandidate is one way of normalizing a projection. normalize
// returns the type the projection stands for.
type projectionCandidate struct {
	source    candidateSource
	normalize func() (ty.Type, []infer.Obligation, error)
}

func itemCause(parent infer.ObligationCause) infer.ObligationCause {
	return infer.ObligationCause{Span: parent.Span, BodyID: parent.BodyID, Code: infer.ItemObligation}
}

func (e *Engine) traitName(def ty.DefID) string {
	if trait, ok := e.tbl.Trait(def); ok {
		return trait.Name
	}
	return ""
}

func isUnresolvedTyVar(t ty.Type) bool {
	v, ok := t.(ty.Infer)
	return ok && v.Var.Kind == ty.TyVar
}

func (e *Engine) processTrait(infcx *infer.Ctxt, o infer.Obligation, p ty.TraitPredicate) processResult {
	trait := p.Value
	if isUnresolvedTyVar(infcx.ShallowResolve(trait.SelfTy())) {
		return ambiguous()
	}
	var matching []traitCandidate
	for _, c := range e.assembleTraitCandidates(infcx, o, trait) {
		holds := infer.Probe(infcx, func() bool {
			_, err := c.confirm()
			return err == nil
		})
		if holds {
			matching = append(matching, c)
		}
	}
	if len(matching) == 0 {
		return failed(o, Unimplemented, nil)
	}
	if len(matching) > 1 && matching[0].source != paramEnvCandidate && ty.HasInfer(p) {
		return ambiguous()
	}
	nested, err := matching[0].confirm()
	if err != nil {
		return failed(o, Unimplemented, err)
	}
	logger.Debug("proved trait predicate", "predicate", p, "source", matching[0].source, "nested", len(nested))
	return done(nested...)
}

func (e *Engine) assembleTraitCandidates(infcx *infer.Ctxt, o infer.Obligation, trait ty.TraitRef) []traitCandidate {
	at := infcx.At(o.Cause, o.ParamEnv)
	var candidates []traitCandidate

	for _, bound := range o.ParamEnv.CallerBounds {
		bound, ok := bound.(ty.TraitPredicate)
		if !ok || bound.Value.Def != trait.Def {
			continue
		}
		candidates = append(candidates, traitCandidate{
			source: paramEnvCandidate,
			confirm: func() ([]infer.Obligation, error) {
				ok, err := at.EqTraitRefs(trait, bound.Value)
				return ok.Obligations, err
			},
		})
	}

	for _, id := range e.tbl.ImplsOf(trait.Def) {
		impl, ok := e.tbl.TraitImpl(id)
		if !ok {
			continue
		}
		candidates = append(candidates, traitCandidate{
			source: implCandidate,
			confirm: func() ([]infer.Obligation, error) {
				substs := infcx.FreshSubstsForItem(o.Cause.Span, impl.Generics)
				ok, err := at.EqTraitRefs(trait, ty.SubstTraitRef(impl.TraitRef, substs))
				if err != nil {
					return nil, err
				}
				return e.implObligations(o, impl, substs, ok.Obligations), nil
			},
		})
	}

	if c, ok := e.builtinTraitCandidate(infcx, o, trait); ok {
		candidates = append(candidates, c)
	}
	return candidates
}

// implObligations are the predicates of impl instantiated with substs, which
// must hold for impl to apply
func (e *Engine) implObligations(o infer.Obligation, impl *ty.TraitImpl, substs ty.Substs, obligations []infer.Obligation) []infer.Obligation {
	preds := ty.GenericPredicates{Predicates: impl.Predicates}.Instantiate(substs)
	for _, pred := range preds {
		obligations = append(obligations, o.WithDepth(itemCause(o.Cause), pred))
	}
	return obligations
}

func (e *Engine) builtinTraitCandidate(infcx *infer.Ctxt, o infer.Obligation, trait ty.TraitRef) (traitCandidate, bool) {
	self := infcx.ShallowResolve(trait.SelfTy())
	builtin := func(confirm func() ([]infer.Obligation, error)) (traitCandidate, bool) {
		return traitCandidate{source: builtinCandidate, confirm: confirm}, true
	}
	nestedFor := func(ts ...ty.Type) func() ([]infer.Obligation, error) {
		return func() ([]infer.Obligation, error) {
			var nested []infer.Obligation
			for _, t := range ts {
				pred := ty.NewTraitPredicate(trait.Def, trait.Name, t, trait.Substs[1:]...)
				nested = append(nested, o.WithDepth(o.Cause, pred))
			}
			return nested, nil
		}
	}

	switch e.traitName(trait.Def) {
	case SizedTrait:
		switch self := self.(type) {
		case ty.Slice:
			return traitCandidate{}, false
		case ty.Prim:
			if self.Kind == ty.Str {
				return traitCandidate{}, false
			}
		}
		return builtin(nestedFor())
	case CopyTrait, CloneTrait:
		switch self := self.(type) {
		case ty.Prim:
			if self.Kind == ty.Str {
				return traitCandidate{}, false
			}
			return builtin(nestedFor())
		case ty.Infer, ty.Never, ty.RawPtr, ty.FnPtr:
			// only numeric placeholders get here
			return builtin(nestedFor())
		case ty.Ref:
			if self.Mutable {
				return traitCandidate{}, false
			}
			return builtin(nestedFor())
		case ty.Tuple:
			return builtin(nestedFor(self.Elems...))
		case ty.Array:
			return builtin(nestedFor(self.Elem))
		}
	case FnTrait, FnMutTrait, FnOnceTrait:
		fn, ok := self.(ty.FnPtr)
		if !ok || len(trait.Substs) != 2 {
			return traitCandidate{}, false
		}
		at := infcx.At(o.Cause, o.ParamEnv)
		return builtin(func() ([]infer.Obligation, error) {
			ok, err := at.Eq(trait.Substs.TypeAt(1), ty.Tuple{Elems: fn.Inputs})
			return ok.Obligations, err
		})
	}
	return traitCandidate{}, false
}

func (e *Engine) processProjection(infcx *infer.Ctxt, o infer.Obligation, p ty.ProjectionPredicate) processResult {
	proj := p.Value.ProjectionTy
	if isUnresolvedTyVar(infcx.ShallowResolve(proj.Trait.SelfTy())) {
		return ambiguous()
	}
	var matching []projectionCandidate
	for _, c := range e.assembleProjectionCandidates(infcx, o, proj) {
		holds := infer.Probe(infcx, func() bool {
			_, _, err := c.normalize()
			return err == nil
		})
		if holds {
			matching = append(matching, c)
		}
	}
	if len(matching) == 0 {
		return failed(o, Unimplemented, nil)
	}
	if len(matching) > 1 && matching[0].source != paramEnvCandidate && ty.HasInfer(p) {
		return ambiguous()
	}
	normalized, nested, err := matching[0].normalize()
	if err != nil {
		return failed(o, Unimplemented, err)
	}
	ok, err := infcx.At(o.Cause, o.ParamEnv).Eq(normalized, p.Value.Ty)
	if err != nil {
		return failed(o, ProjectionError, err)
	}
	logger.Debug("normalized projection", "projection", proj, "to", normalized)
	return done(append(nested, ok.Obligations...)...)
}

func (e *Engine) assembleProjectionCandidates(infcx *infer.Ctxt, o infer.Obligation, proj ty.ProjectionTy) []projectionCandidate {
	at := infcx.At(o.Cause, o.ParamEnv)
	var candidates []projectionCandidate

	for _, bound := range o.ParamEnv.CallerBounds {
		bound, ok := bound.(ty.ProjectionPredicate)
		if !ok || bound.Value.ProjectionTy.Trait.Def != proj.Trait.Def || bound.Value.ProjectionTy.Item != proj.Item {
			continue
		}
		candidates = append(candidates, projectionCandidate{
			source: paramEnvCandidate,
			normalize: func() (ty.Type, []infer.Obligation, error) {
				ok, err := at.EqProjectionTys(proj, bound.Value.ProjectionTy)
				return bound.Value.Ty, ok.Obligations, err
			},
		})
	}

	for _, id := range e.tbl.ImplsOf(proj.Trait.Def) {
		impl, ok := e.tbl.TraitImpl(id)
		if !ok {
			continue
		}
		assoc, ok := impl.AssocTypes[proj.Item]
		if !ok {
			continue
		}
		candidates = append(candidates, projectionCandidate{
			source: implCandidate,
			normalize: func() (ty.Type, []infer.Obligation, error) {
				substs := infcx.FreshSubstsForItem(o.Cause.Span, impl.Generics)
				ok, err := at.EqTraitRefs(proj.Trait, ty.SubstTraitRef(impl.TraitRef, substs))
				if err != nil {
					return nil, nil, err
				}
				return ty.SubstTy(assoc, substs), e.implObligations(o, impl, substs, ok.Obligations), nil
			},
		})
	}

	if fn, ok := infcx.ShallowResolve(proj.Trait.SelfTy()).(ty.FnPtr); ok && proj.Item == FnOutput && len(proj.Trait.Substs) == 2 {
		switch e.traitName(proj.Trait.Def) {
		case FnTrait, FnMutTrait, FnOnceTrait:
			candidates = append(candidates, projectionCandidate{
				source: builtinCandidate,
				normalize: func() (ty.Type, []infer.Obligation, error) {
					ok, err := at.Eq(proj.Trait.Substs.TypeAt(1), ty.Tuple{Elems: fn.Inputs})
					return fn.Output, ok.Obligations, err
				},
			})
		}
	}
	return candidates
}
