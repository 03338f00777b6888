package traits

import (
	"github.com/cottand/dropck/frontend/infer"
	"github.com/cottand/dropck/frontend/ty"
)

// outlivesComponent is a part of a type that must outlive a region for the
// whole type to: either a region it mentions, or a parameter or projection
// whose regions are unknown.
type outlivesComponent struct {
	region ty.Region
	opaque ty.Type
}

// outlivesComponents collects the components of t. It reports false if t
// contains an unresolved type placeholder.
func outlivesComponents(infcx *infer.Ctxt, t ty.Type, out []outlivesComponent) ([]outlivesComponent, bool) {
	switch t := infcx.ShallowResolve(t).(type) {
	case ty.Prim, ty.Never:
		return out, true
	case ty.Param, ty.Projection:
		return append(out, outlivesComponent{opaque: t}), true
	case ty.Infer:
		return out, t.Var.Kind != ty.TyVar
	case ty.Ref:
		out = append(out, outlivesComponent{region: t.Region})
		return outlivesComponents(infcx, t.Elem, out)
	case ty.RawPtr:
		return outlivesComponents(infcx, t.Elem, out)
	case ty.Slice:
		return outlivesComponents(infcx, t.Elem, out)
	case ty.Array:
		return outlivesComponents(infcx, t.Elem, out)
	case ty.Tuple:
		return tysComponents(infcx, t.Elems, out)
	case ty.FnPtr:
		out, ok := tysComponents(infcx, t.Inputs, out)
		if !ok {
			return out, false
		}
		return outlivesComponents(infcx, t.Output, out)
	case ty.Adt:
		return argsComponents(infcx, t.Substs, out)
	default:
		return out, true
	}
}

func tysComponents(infcx *infer.Ctxt, ts []ty.Type, out []outlivesComponent) ([]outlivesComponent, bool) {
	for _, t := range ts {
		var ok bool
		if out, ok = outlivesComponents(infcx, t, out); !ok {
			return out, false
		}
	}
	return out, true
}

func argsComponents(infcx *infer.Ctxt, args ty.Substs, out []outlivesComponent) ([]outlivesComponent, bool) {
	for _, arg := range args {
		switch arg := arg.(type) {
		case ty.Region:
			out = append(out, outlivesComponent{region: arg})
		case ty.Type:
			var ok bool
			if out, ok = outlivesComponents(infcx, arg, out); !ok {
				return out, false
			}
		}
	}
	return out, true
}

// processTypeOutlives proves `T: 'r` by requiring every region in T to
// outlive 'r. Parameters and projections must be declared to outlive 'r,
// unless 'r is the scope of a body, which every parameter outlives.
func (e *Engine) processTypeOutlives(infcx *infer.Ctxt, o infer.Obligation, p ty.TypeOutlivesPredicate) processResult {
	if len(p.Bound) > 0 {
		logger.Debug("skipping higher-ranked type outlives", "predicate", p)
		return done()
	}
	region := p.Value.Region
	if _, isVar := region.(ty.RegionVar); isVar {
		return done()
	}
	components, ok := outlivesComponents(infcx, p.Value.Ty, nil)
	if !ok {
		return ambiguous()
	}
	env := infer.NewOutlivesEnvironment(o.ParamEnv)
	for _, c := range components {
		if c.region != nil {
			infcx.RegisterRegionObligation(o.Cause.Span, c.region, region)
			continue
		}
		if e.opaqueOutlives(infcx, env, o, c.opaque, region) {
			continue
		}
		return processResult{err: &FulfillmentError{
			Obligation: o,
			Kind:       TypeOutlivesError,
			Ty:         c.opaque,
			Region:     region,
		}}
	}
	return done()
}

func (e *Engine) opaqueOutlives(infcx *infer.Ctxt, env infer.OutlivesEnvironment, o infer.Obligation, t ty.Type, region ty.Region) bool {
	if _, ok := region.(ty.Scope); ok {
		return true
	}
	for _, bound := range env.TypeBounds(t) {
		if env.Outlives(bound, region) {
			return true
		}
	}
	// a projection outlives 'r if all of its inputs do
	proj, ok := t.(ty.Projection)
	if !ok {
		return false
	}
	components, ok := argsComponents(infcx, proj.Trait.Substs, nil)
	if !ok {
		return false
	}
	for _, c := range components {
		if c.region != nil {
			if !env.Outlives(c.region, region) {
				return false
			}
			continue
		}
		if !e.opaqueOutlives(infcx, env, o, c.opaque, region) {
			return false
		}
	}
	return true
}
