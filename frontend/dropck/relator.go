package dropck

import (
	"github.com/cottand/dropck/frontend/ilerr"
	"github.com/cottand/dropck/frontend/infer"
	"github.com/cottand/dropck/frontend/ty"
)

var _ ty.TypeRelation = &Relator{}

// Relator checks that two predicates can be unified consistently, without
// proving them. Regions always match: whether they are compatible is left
// to region checking. Variance is ignored.
//
// Both sides must be free of inference placeholders. Finding one is a
// *ilerr.Bug.
type Relator struct {
	tbl      *ty.Table
	paramEnv ty.ParamEnv
}

func NewRelator(tbl *ty.Table, env ty.ParamEnv) *Relator {
	return &Relator{tbl: tbl, paramEnv: env}
}

func (r *Relator) Tag() string       { return "dropck.Relator" }
func (r *Relator) AIsExpected() bool { return true }

func (r *Relator) RelateWithVariance(_ ty.Variance, a, b ty.GenericArg) (ty.GenericArg, error) {
	return ty.RelateArgs(r, a, b)
}

func (r *Relator) Tys(a, b ty.Type) (ty.Type, error) {
	if ty.IsInfer(a) || ty.IsInfer(b) {
		return nil, ilerr.NewBug(nil, "unexpected inference var in dropck: %v, %v", a, b)
	}
	logger.Debug("relating types", "a", a, "b", b)
	var related ty.Type
	err := infer.Enter(r.tbl, nil, func(infcx *infer.Ctxt) error {
		var err error
		related, err = infcx.SuperCombineTys(r, a, b)
		return err
	})
	return related, err
}

func (r *Relator) Regions(a, _ ty.Region) (ty.Region, error) {
	return a, nil
}

func (r *Relator) Consts(a, b ty.Const) (ty.Const, error) {
	_, aIsVar := a.(ty.ConstInfer)
	_, bIsVar := b.(ty.ConstInfer)
	if aIsVar || bIsVar {
		return nil, ilerr.NewBug(nil, "unexpected inference const in dropck: %v, %v", a, b)
	}
	var related ty.Const
	err := infer.Enter(r.tbl, nil, func(infcx *infer.Ctxt) error {
		var err error
		related, err = infcx.SuperCombineConsts(r, a, b)
		return err
	})
	return related, err
}

// relateBinders relates the values of a and b ignoring what they bind, and
// returns a
func relateBinders[T any](r *Relator, a, b ty.Binder[T], relate func(ty.TypeRelation, T, T) (T, error)) (ty.Binder[T], error) {
	logger.Debug("relating binders", "a", len(a.Bound), "b", len(b.Bound))
	if _, err := relate(r, a.SkipBinder(), b.SkipBinder()); err != nil {
		return ty.Binder[T]{}, err
	}
	return a, nil
}

// predicateMatches reports whether p1 and p2 are the same requirement up to
// regions. Trait and projection predicates are related structurally. Any
// other pair must be identical, so an outlives bound is only implied by
// the very same bound.
func predicateMatches(p1, p2 ty.Predicate, r *Relator) (bool, error) {
	var err error
	switch a := p1.(type) {
	case ty.TraitPredicate:
		b, ok := p2.(ty.TraitPredicate)
		if !ok {
			break
		}
		_, err = relateBinders(r, a.Binder, b.Binder, ty.RelateTraitRefs)
		return matched(err)
	case ty.ProjectionPredicate:
		b, ok := p2.(ty.ProjectionPredicate)
		if !ok {
			break
		}
		_, err = relateBinders(r, a.Binder, b.Binder, ty.RelateProjectionEqs)
		return matched(err)
	}
	return ty.PredicatesEqual(p1, p2), nil
}

// matched turns the result of a relation into a verdict. A type error is a
// mismatch, any other error is passed on.
func matched(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if _, isTypeErr := err.(*ty.TypeError); isTypeErr {
		logger.Debug("predicates do not match", "err", err)
		return false, nil
	}
	return false, err
}
