package traits_test

import (
	"testing"

	"github.com/cottand/dropck/crate"
	"github.com/cottand/dropck/frontend/ilerr"
	"github.com/cottand/dropck/frontend/infer"
	"github.com/cottand/dropck/frontend/traits"
	"github.com/cottand/dropck/frontend/ty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	u8     = ty.Prim{Kind: ty.U8}
	u32    = ty.Prim{Kind: ty.U32}
	boolT  = ty.Prim{Kind: ty.Bool}
	str    = ty.Prim{Kind: ty.Str}
	paramT = ty.Param{Index: 0, Name: "T"}
	regA   = ty.EarlyBound{Index: 1, Name: "'a"}
	regB   = ty.EarlyBound{Index: 2, Name: "'b"}
)

const crateSrc = `
types:
  - struct: Counter
impls:
  - trait: Iterator
    for: Counter
    assoc: {Item: u32}
`

type fixture struct {
	t   *testing.T
	tbl *ty.Table
}

func newFixture(t *testing.T) fixture {
	c, err := crate.LoadBytes([]byte(crateSrc))
	require.NoError(t, err)
	require.False(t, c.LoadErrors().HasError(), "load errors: %v", c.LoadErrors().Errors())
	return fixture{t: t, tbl: c.Table()}
}

func (f fixture) def(name string) ty.DefID {
	id, ok := f.tbl.Lookup(name)
	require.True(f.t, ok, "no item %s", name)
	return id
}

func (f fixture) adt(name string, args ...ty.GenericArg) ty.Adt {
	return ty.Adt{Def: f.def(name), Name: name, Substs: args}
}

func (f fixture) bound(self ty.Type, trait string, args ...ty.GenericArg) ty.TraitPredicate {
	return ty.NewTraitPredicate(f.def(trait), trait, self, args...)
}

func (f fixture) projection(self ty.Type, trait, item string, out ty.Type, args ...ty.GenericArg) ty.ProjectionPredicate {
	return ty.ProjectionPredicate{Binder: ty.Dummy(ty.ProjectionEq{
		ProjectionTy: ty.ProjectionTy{
			Trait: ty.TraitRef{Def: f.def(trait), Name: trait, Substs: append(ty.Substs{self}, args...)},
			Item:  item,
		},
		Ty: out,
	})}
}

// prove runs the fulfillment engine over preds, under env, and returns the
// errors it ends up with
func (f fixture) prove(env ty.ParamEnv, preds ...ty.Predicate) []traits.FulfillmentError {
	var errs []traits.FulfillmentError
	require.NoError(f.t, infer.Enter(f.tbl, nil, func(infcx *infer.Ctxt) error {
		engine := traits.NewEngine(f.tbl)
		for _, p := range preds {
			engine.RegisterPredicateObligation(infcx, infer.NewObligation(infer.MiscCause(ty.Span{}, 1), env, p))
		}
		errs = engine.SelectAllOrError(infcx)
		return nil
	}))
	return errs
}

func kinds(errs []traits.FulfillmentError) []traits.ErrorKind {
	var out []traits.ErrorKind
	for _, e := range errs {
		out = append(out, e.Kind)
	}
	return out
}

func TestTraitSelection(t *testing.T) {
	f := newFixture(t)
	withCopyT := ty.ParamEnv{CallerBounds: []ty.Predicate{f.bound(paramT, "Copy")}}
	cases := map[string]struct {
		env   ty.ParamEnv
		pred  ty.Predicate
		holds bool
	}{
		"primitive is Copy":        {pred: f.bound(u8, "Copy"), holds: true},
		"str is not Copy":          {pred: f.bound(str, "Copy")},
		"shared ref is Copy":       {pred: f.bound(ty.Ref{Region: regA, Elem: str}, "Copy"), holds: true},
		"mutable ref is not Copy":  {pred: f.bound(ty.Ref{Region: regA, Elem: u8, Mutable: true}, "Copy")},
		"tuple of Copy":            {pred: f.bound(ty.Tuple{Elems: []ty.Type{u8, boolT}}, "Copy"), holds: true},
		"tuple with a str":         {pred: f.bound(ty.Tuple{Elems: []ty.Type{u8, str}}, "Clone")},
		"array of Copy":            {pred: f.bound(ty.Array{Elem: u8, Len: ty.ConstValue{Value: 3}}, "Copy"), holds: true},
		"impl with bound":          {pred: f.bound(f.adt("Option", u8), "Copy"), holds: true},
		"impl with unmet bound":    {pred: f.bound(f.adt("Option", f.adt("Vec", u8)), "Copy")},
		"nested impls":             {pred: f.bound(f.adt("Box", f.adt("Vec", u8)), "Clone"), holds: true},
		"adt without impl":         {pred: f.bound(f.adt("Counter"), "Clone")},
		"param without bound":      {pred: f.bound(paramT, "Copy")},
		"param with bound":         {env: withCopyT, pred: f.bound(paramT, "Copy"), holds: true},
		"param bound through impl": {env: withCopyT, pred: f.bound(f.adt("Option", paramT), "Copy"), holds: true},
		"slice is not Sized":       {pred: f.bound(ty.Slice{Elem: u8}, "Sized")},
		"adt is Sized":             {pred: f.bound(f.adt("Vec", u8), "Sized"), holds: true},
		"fn pointer is Fn": {
			pred:  f.bound(ty.FnPtr{Inputs: []ty.Type{u8}, Output: boolT}, "Fn", ty.Tuple{Elems: []ty.Type{u8}}),
			holds: true,
		},
		"fn pointer with other inputs": {
			pred: f.bound(ty.FnPtr{Inputs: []ty.Type{u8}, Output: boolT}, "FnOnce", ty.Tuple{Elems: []ty.Type{boolT}}),
		},
		"fn output": {
			pred:  f.projection(ty.FnPtr{Output: boolT}, "FnOnce", "Output", boolT, ty.Unit),
			holds: true,
		},
		"associated type of impl": {
			pred:  f.projection(f.adt("Counter"), "Iterator", "Item", u32),
			holds: true,
		},
		"projection from where clause": {
			env: ty.ParamEnv{CallerBounds: []ty.Predicate{
				f.bound(paramT, "Iterator"),
				f.projection(paramT, "Iterator", "Item", u8),
			}},
			pred:  f.projection(paramT, "Iterator", "Item", u8),
			holds: true,
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			errs := f.prove(c.env, c.pred)
			if c.holds {
				assert.Empty(t, errs)
			} else {
				assert.NotEmpty(t, errs)
			}
		})
	}
}

func TestUnmetNestedBoundIsReported(t *testing.T) {
	f := newFixture(t)
	errs := f.prove(ty.EmptyParamEnv(), f.bound(f.adt("Option", f.adt("Vec", u8)), "Copy"))
	require.Len(t, errs, 1)
	assert.Equal(t, traits.Unimplemented, errs[0].Kind)
	assert.Equal(t, "Vec<u8>: Copy", errs[0].Obligation.Predicate.String())
	assert.Equal(t, infer.ItemObligation, errs[0].Obligation.Cause.Code)
	assert.Equal(t, 1, errs[0].Obligation.RecursionDepth)
}

func TestProjectionMismatch(t *testing.T) {
	f := newFixture(t)
	errs := f.prove(ty.EmptyParamEnv(), f.projection(f.adt("Counter"), "Iterator", "Item", u8))
	assert.Equal(t, []traits.ErrorKind{traits.ProjectionError}, kinds(errs))

	errs = f.prove(ty.EmptyParamEnv(), f.projection(ty.FnPtr{Output: boolT}, "FnOnce", "Output", u8, ty.Unit))
	assert.Equal(t, []traits.ErrorKind{traits.ProjectionError}, kinds(errs))
}

func TestAmbiguity(t *testing.T) {
	f := newFixture(t)
	var errs []traits.FulfillmentError
	require.NoError(t, infer.Enter(f.tbl, nil, func(infcx *infer.Ctxt) error {
		engine := traits.NewEngine(f.tbl)
		v := infcx.NextTyVar()
		o := infer.NewObligation(infer.MiscCause(ty.Span{}, 1), ty.EmptyParamEnv(), f.bound(v, "Copy"))
		engine.RegisterPredicateObligation(infcx, o)
		engine.RegisterPredicateObligation(infcx, o)
		assert.Len(t, engine.PendingObligations(), 1, "the same obligation is only registered once")

		assert.Empty(t, engine.SelectWherePossible(infcx))
		assert.Len(t, engine.PendingObligations(), 1)

		errs = engine.SelectAllOrError(infcx)
		assert.Empty(t, engine.PendingObligations())
		return nil
	}))
	assert.Equal(t, []traits.ErrorKind{traits.Ambiguity}, kinds(errs))
}

func TestResolvedPlaceholderMakesProgress(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, infer.Enter(f.tbl, nil, func(infcx *infer.Ctxt) error {
		engine := traits.NewEngine(f.tbl)
		v := infcx.NextTyVar()
		cause := infer.MiscCause(ty.Span{}, 1)
		engine.RegisterPredicateObligation(infcx, infer.NewObligation(cause, ty.EmptyParamEnv(), f.bound(v, "Copy")))
		_, err := infcx.At(cause, ty.EmptyParamEnv()).Eq(v, u8)
		require.NoError(t, err)
		assert.Empty(t, engine.SelectAllOrError(infcx))
		return nil
	}))
}

func TestOverflow(t *testing.T) {
	f := newFixture(t)
	var errs []traits.FulfillmentError
	require.NoError(t, infer.Enter(f.tbl, nil, func(infcx *infer.Ctxt) error {
		engine := traits.NewEngine(f.tbl)
		o := infer.NewObligation(infer.MiscCause(ty.Span{}, 1), ty.EmptyParamEnv(), f.bound(u8, "Copy"))
		o.RecursionDepth = traits.RecursionLimit + 1
		engine.RegisterPredicateObligation(infcx, o)
		errs = engine.SelectAllOrError(infcx)
		return nil
	}))
	assert.Equal(t, []traits.ErrorKind{traits.Overflow}, kinds(errs))
}

func TestTypeOutlives(t *testing.T) {
	f := newFixture(t)
	boundedT := ty.ParamEnv{CallerBounds: []ty.Predicate{
		ty.NewTypeOutlives(paramT, regA),
		ty.NewRegionOutlives(regA, regB),
	}}
	proj := ty.Projection{ProjectionTy: ty.ProjectionTy{
		Trait: ty.TraitRef{Def: f.def("Iterator"), Name: "Iterator", Substs: ty.Substs{paramT}},
		Item:  "Item",
	}}
	cases := map[string]struct {
		env   ty.ParamEnv
		pred  ty.Predicate
		holds bool
	}{
		"primitive":                       {pred: ty.NewTypeOutlives(u8, ty.Static{}), holds: true},
		"param without bound":             {pred: ty.NewTypeOutlives(paramT, regA)},
		"param with bound":                {env: boundedT, pred: ty.NewTypeOutlives(paramT, regA), holds: true},
		"param with transitive bound":     {env: boundedT, pred: ty.NewTypeOutlives(paramT, regB), holds: true},
		"param outlives a body":           {pred: ty.NewTypeOutlives(paramT, ty.Scope{Body: 1}), holds: true},
		"param in an adt":                 {pred: ty.NewTypeOutlives(f.adt("Vec", paramT), regA)},
		"projection of a bounded param":   {env: boundedT, pred: ty.NewTypeOutlives(proj, regB), holds: true},
		"projection of unbounded param":   {pred: ty.NewTypeOutlives(proj, regA)},
		"higher-ranked bound is accepted": {pred: ty.TypeOutlivesPredicate{Binder: ty.Bind(ty.TypeOutlives{Ty: paramT, Region: ty.LateBound{Name: "'x"}}, "'x")}, holds: true},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			errs := f.prove(c.env, c.pred)
			if c.holds {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Equal(t, traits.TypeOutlivesError, errs[0].Kind)
		})
	}
}

func TestTypeOutlivesRegistersRegions(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, infer.Enter(f.tbl, nil, func(infcx *infer.Ctxt) error {
		engine := traits.NewEngine(f.tbl)
		ref := ty.Ref{Region: regA, Elem: f.adt("Vec", ty.Ref{Region: ty.Static{}, Elem: u8})}
		engine.RegisterPredicateObligation(infcx, infer.NewObligation(infer.MiscCause(ty.Span{}, 1), ty.EmptyParamEnv(), ty.NewTypeOutlives(ref, regB)))
		assert.Empty(t, engine.SelectAllOrError(infcx))

		var constraints []string
		for _, c := range infcx.RegionConstraints() {
			constraints = append(constraints, c.String())
		}
		assert.Equal(t, []string{"'a: 'b", "'static: 'b"}, constraints)
		return nil
	}))
}

func TestReportFulfillmentErrors(t *testing.T) {
	f := newFixture(t)
	sess := ilerr.NewSession()
	require.NoError(t, infer.Enter(f.tbl, sess, func(infcx *infer.Ctxt) error {
		cause := infer.MiscCause(ty.Span{}, 1)
		obligation := func(p ty.Predicate) infer.Obligation {
			return infer.NewObligation(cause, ty.EmptyParamEnv(), p)
		}
		traits.ReportFulfillmentErrors(infcx, sess, []traits.FulfillmentError{
			{Obligation: obligation(f.bound(str, "Copy")), Kind: traits.Unimplemented},
			{Obligation: obligation(f.projection(f.adt("Counter"), "Iterator", "Item", u8)), Kind: traits.ProjectionError},
			{Obligation: obligation(f.bound(u8, "Copy")), Kind: traits.Overflow},
			{Obligation: obligation(f.bound(u8, "Copy")), Kind: traits.Ambiguity},
			{Obligation: obligation(ty.NewTypeOutlives(paramT, regA)), Kind: traits.TypeOutlivesError, Ty: paramT, Region: regA},
		})
		return nil
	}))
	var codes []ilerr.ErrCode
	for _, e := range sess.Errors() {
		codes = append(codes, e.Code())
	}
	assert.ElementsMatch(t, []ilerr.ErrCode{
		ilerr.UnsatisfiedBound,
		ilerr.ProjectionTypeMismatch,
		ilerr.OverflowEvaluating,
		ilerr.AmbiguousBound,
		ilerr.ParamMayNotLiveLongEnough,
	}, codes)
}

func TestUnimplementedProjectionReportsTheTrait(t *testing.T) {
	f := newFixture(t)
	sess := ilerr.NewSession()
	require.NoError(t, infer.Enter(f.tbl, sess, func(infcx *infer.Ctxt) error {
		p := f.projection(u8, "Iterator", "Item", u8)
		traits.ReportFulfillmentErrors(infcx, sess, []traits.FulfillmentError{{
			Obligation: infer.NewObligation(infer.MiscCause(ty.Span{}, 1), ty.EmptyParamEnv(), p),
			Kind:       traits.Unimplemented,
		}})
		return nil
	}))
	errs := sess.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "u8: Iterator")
}
