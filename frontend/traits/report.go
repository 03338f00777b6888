package traits

import (
	"github.com/cottand/dropck/frontend/ilerr"
	"github.com/cottand/dropck/frontend/infer"
	"github.com/cottand/dropck/frontend/ty"
)

// ReportFulfillmentErrors emits one diagnostic per error
func ReportFulfillmentErrors(infcx *infer.Ctxt, sess *ilerr.Session, errs []FulfillmentError) {
	for _, err := range errs {
		o := err.Obligation
		p := infcx.ResolvePredicate(o.Predicate)
		switch err.Kind {
		case Unimplemented:
			if proj, ok := p.(ty.ProjectionPredicate); ok {
				// the projection could not be normalized because its trait is not implemented
				p = ty.TraitPredicate{Binder: ty.Rebind(proj.Binder, proj.Value.ProjectionTy.Trait)}
			}
			sess.Emit(ilerr.New(ilerr.NewUnsatisfiedBound{Positioner: o.Cause, Predicate: p}))
		case ProjectionError:
			reason := ""
			if err.Cause != nil {
				reason = err.Cause.Error()
			}
			sess.Emit(ilerr.New(ilerr.NewProjectionMismatch{Positioner: o.Cause, Predicate: p, Reason: reason}))
		case Overflow:
			sess.Emit(ilerr.New(ilerr.NewOverflow{Positioner: o.Cause, Predicate: p}))
		case Ambiguity:
			sess.Emit(ilerr.New(ilerr.NewAmbiguousBound{Positioner: o.Cause, Predicate: p}))
		case TypeOutlivesError:
			sess.Emit(ilerr.New(ilerr.NewParamMayNotLiveLongEnough{
				Positioner: o.Cause,
				Ty:         infcx.ResolveTy(err.Ty),
				Region:     err.Region,
			}))
		}
	}
}
