package dropck

import (
	"errors"
	"fmt"

	"github.com/cottand/dropck/frontend/ilerr"
	"github.com/cottand/dropck/frontend/infer"
	"github.com/cottand/dropck/frontend/traits"
	"github.com/cottand/dropck/frontend/ty"
	"github.com/cottand/dropck/internal/log"
)

var logger = log.DefaultLogger.With("section", "dropck")

// Checker checks Drop impls against the type definitions they are for.
// It only reads tbl, so a single Checker may check many impls concurrently.
type Checker struct {
	tbl  *ty.Table
	sess *ilerr.Session
}

func NewChecker(tbl *ty.Table, sess *ilerr.Session) *Checker {
	return &Checker{tbl: tbl, sess: sess}
}

// CheckDropImpl confirms that the Drop impl dropImpl is not any more
// specialized than the type it is attached to:
//
//  1. its self type must be nominal, which coherence already checked,
//  2. the generic parameters of its self type must all be parameters of the
//     impl itself, so no `impl Drop for Foo<i32>`, and
//  3. every bound on those parameters must also be declared on the type
//     definition, so no `struct S<T>; impl<T: Clone> Drop for S<T>`.
//
// Diagnostics are emitted to the session of c. The returned error is nil or
// ilerr.ErrReported.
func (c *Checker) CheckDropImpl(dropImpl ty.DefID) error {
	dtorSelfType := c.tbl.TypeOf(dropImpl)
	dtorPredicates := c.tbl.PredicatesOf(dropImpl)
	adt, ok := dtorSelfType.(ty.Adt)
	if !ok {
		// coherence rejects this, but compilation may not have been stopped
		c.sess.DelaySpanBug(c.tbl.DefSpan(dropImpl), fmt.Sprintf("should have been rejected by coherence check: %v", dtorSelfType))
		return ilerr.ErrReported
	}
	if err := c.ensureDropParamsAndItemParamsCorrespond(dropImpl, dtorSelfType, adt.Def); err != nil {
		return err
	}
	return c.ensureDropPredicatesAreImpliedByItemDefn(dropImpl, dtorPredicates, adt.Def, adt.Substs)
}

// ensureDropParamsAndItemParamsCorrespond checks that the self type of the
// impl can be made equal to the type definition instantiated with its own
// parameters, by picking the impl's parameters.
func (c *Checker) ensureDropParamsAndItemParamsCorrespond(dropImpl ty.DefID, dropImplTy ty.Type, selfTypeDef ty.DefID) error {
	return infer.Enter(c.tbl, c.sess, func(infcx *infer.Ctxt) error {
		implParamEnv := c.tbl.ParamEnv(selfTypeDef)
		engine := traits.NewEngine(c.tbl)

		namedType := c.tbl.TypeOf(selfTypeDef)

		dropImplSpan := c.tbl.DefSpan(dropImpl)
		freshImplSubsts := infcx.FreshSubstsForItem(dropImplSpan, c.tbl.GenericsOf(dropImpl))
		freshImplSelfTy := ty.SubstTy(dropImplTy, freshImplSubsts)

		cause := infer.MiscCause(dropImplSpan, ty.BodyID(dropImpl))
		ok, err := infcx.At(cause, implParamEnv).Eq(namedType, freshImplSelfTy)
		if err != nil {
			logger.Debug("drop impl is specialized", "impl", dropImpl, "named", namedType, "fresh", freshImplSelfTy, "err", err)
			c.sess.Emit(ilerr.New(ilerr.NewDropImplSpecialized{
				Positioner: dropImplSpan,
				Item:       c.tbl.DefSpan(selfTypeDef),
			}))
			return ilerr.ErrReported
		}
		engine.RegisterPredicateObligations(infcx, ok.Obligations)

		if errs := engine.SelectAllOrError(infcx); len(errs) > 0 {
			traits.ReportFulfillmentErrors(infcx, c.sess, errs)
			return ilerr.ErrReported
		}

		// The outlives relations declared on the impl could be assumed here,
		// which would accept more impls. Keep the empty environment until a
		// case where it rejects a sound impl is known.
		outlivesEnv := infer.EmptyOutlivesEnvironment()
		if !infcx.ResolveRegionsAndReportErrors(dropImpl, outlivesEnv, c.sess) {
			return ilerr.ErrReported
		}
		return nil
	})
}

// ensureDropPredicatesAreImpliedByItemDefn checks that every predicate of
// the impl is among the predicates of the type definition, once those are
// expressed in terms of the impl's parameters through selfToImplSubsts.
//
// For
//
//	struct Type<'c, 'b: 'c, 'a> { .. }
//	impl<'z, 'y: 'z, 'x: 'y> Drop for Type<'z, 'y, 'x> { .. }
//
// selfToImplSubsts is ['z, 'y, 'x], the instantiated assumptions are
// ['y: 'z], and both 'y: 'z and 'x: 'y must be found among them.
//
// Every predicate is checked, so that all of the missing ones are reported.
func (c *Checker) ensureDropPredicatesAreImpliedByItemDefn(
	dropImpl ty.DefID,
	dtorPredicates ty.GenericPredicates,
	selfTypeDef ty.DefID,
	selfToImplSubsts ty.Substs,
) error {
	var result error

	dropImplSpan := c.tbl.DefSpan(dropImpl)

	// the predicates of the type definition can be assumed to hold
	genericAssumptions := c.tbl.PredicatesOf(selfTypeDef)
	assumptionsInImplContext := genericAssumptions.Instantiate(selfToImplSubsts)

	selfParamEnv := c.tbl.ParamEnv(selfTypeDef)

	if dtorPredicates.Parent != nil {
		panic(fmt.Sprintf("drop impl %d inherits predicates of %d", dropImpl, *dtorPredicates.Parent))
	}
	for _, dtorPredicate := range dtorPredicates.Predicates {
		predicate := dtorPredicate.Predicate
		found, bug := c.findAssumption(predicate, assumptionsInImplContext, selfParamEnv)
		if bug != nil {
			c.sess.DelaySpanBug(dropImplSpan, bug.Message)
			result = ilerr.ErrReported
			continue
		}
		if found {
			continue
		}
		c.sess.Emit(ilerr.New(ilerr.NewDropImplAddsRequirement{
			Positioner: dropImplSpan,
			Item:       c.tbl.DefSpan(selfTypeDef),
			Predicate:  predicate,
		}))
		result = ilerr.ErrReported
	}
	return result
}

// findAssumption looks for an assumption matching predicate
func (c *Checker) findAssumption(predicate ty.Predicate, assumptions []ty.Predicate, env ty.ParamEnv) (bool, *ilerr.Bug) {
	for _, assumption := range assumptions {
		relator := NewRelator(c.tbl, env)
		ok, err := predicateMatches(predicate, assumption, relator)
		var bug *ilerr.Bug
		if errors.As(err, &bug) {
			return false, bug
		}
		if err != nil {
			return false, ilerr.NewBug(nil, "relating %v and %v: %v", predicate, assumption, err)
		}
		if ok {
			logger.Debug("predicate implied by type definition", "predicate", predicate, "assumption", assumption)
			return true, nil
		}
	}
	return false, nil
}
