package ty_test

import (
	"slices"
	"testing"

	"github.com/cottand/dropck/frontend/ty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	u8     = ty.Prim{Kind: ty.U8}
	paramT = ty.Param{Index: 0, Name: "T"}
	regA   = ty.EarlyBound{Index: 1, Name: "'a"}
	constN = ty.ConstParam{Index: 2, Name: "N"}
)

func TestStrings(t *testing.T) {
	vec := func(arg ty.GenericArg) ty.Adt { return ty.Adt{Def: 4, Name: "Vec", Substs: ty.Substs{arg}} }
	cases := map[string]ty.GenericArg{
		"u8":                     u8,
		"!":                      ty.Never{},
		"()":                     ty.Unit,
		"(u8,)":                  ty.Tuple{Elems: []ty.Type{u8}},
		"(T, u8)":                ty.Tuple{Elems: []ty.Type{paramT, u8}},
		"&u8":                    ty.Ref{Region: ty.Erased{}, Elem: u8},
		"&'a mut T":              ty.Ref{Region: regA, Elem: paramT, Mutable: true},
		"*const u8":              ty.RawPtr{Elem: u8},
		"*mut T":                 ty.RawPtr{Elem: paramT, Mutable: true},
		"[T; N]":                 ty.Array{Elem: paramT, Len: constN},
		"[u8; 4]":                ty.Array{Elem: u8, Len: ty.ConstValue{Value: 4}},
		"[u8]":                   ty.Slice{Elem: u8},
		"fn(u8)":                 ty.FnPtr{Inputs: []ty.Type{u8}, Output: ty.Unit},
		"fn(u8, T) -> T":         ty.FnPtr{Inputs: []ty.Type{u8, paramT}, Output: paramT},
		"Vec<&'static u8>":       vec(ty.Ref{Region: ty.Static{}, Elem: u8}),
		"<T as Iterator>::Item":  ty.Projection{ProjectionTy: ty.ProjectionTy{Trait: ty.TraitRef{Def: 5, Name: "Iterator", Substs: ty.Substs{paramT}}, Item: "Item"}},
		"'{body 3}":              ty.Scope{Body: 3},
		"?2":                     ty.Infer{Var: ty.InferTy{Kind: ty.TyVar, ID: 2}},
		"?1i":                    ty.Infer{Var: ty.InferTy{Kind: ty.IntVar, ID: 1}},
		"'?0":                    ty.RegionVar{ID: 0},
		"Vec<Vec<[T; N]>>":       vec(vec(ty.Array{Elem: paramT, Len: constN})),
		"<Vec<T> as Tr<'a>>::X":  ty.Projection{ProjectionTy: ty.ProjectionTy{Trait: ty.TraitRef{Def: 6, Name: "Tr", Substs: ty.Substs{vec(paramT), regA}}, Item: "X"}},
		"(fn() -> u8, *const T)": ty.Tuple{Elems: []ty.Type{ty.FnPtr{Output: u8}, ty.RawPtr{Elem: paramT}}},
	}
	for expected, arg := range cases {
		t.Run(expected, func(t *testing.T) {
			assert.Equal(t, expected, arg.String())
		})
	}
}

func TestPredicateStrings(t *testing.T) {
	assert.Equal(t, "T: Copy", ty.NewTraitPredicate(1, "Copy", paramT).String())
	assert.Equal(t, "T: Tr<'a, u8>", ty.NewTraitPredicate(1, "Tr", paramT, regA, u8).String())
	assert.Equal(t, "'a: 'static", ty.NewRegionOutlives(regA, ty.Static{}).String())
	assert.Equal(t, "T: 'a", ty.NewTypeOutlives(paramT, regA).String())

	late := ty.LateBound{Index: 0, Name: "'x"}
	bound := ty.TraitPredicate{Binder: ty.Bind(ty.TraitRef{Def: 1, Name: "Tr", Substs: ty.Substs{paramT, late}}, "'x")}
	assert.Equal(t, "for<'x> T: Tr<'x>", bound.String())
}

func TestEqual(t *testing.T) {
	assert.True(t, ty.Equal(ty.Ref{Region: regA, Elem: paramT}, ty.Ref{Region: regA, Elem: paramT}))
	assert.False(t, ty.Equal(ty.Ref{Region: regA, Elem: paramT}, ty.Ref{Region: ty.Static{}, Elem: paramT}))
	assert.False(t, ty.Equal(ty.Ref{Region: regA, Elem: paramT}, ty.Ref{Region: regA, Elem: paramT, Mutable: true}))
	assert.False(t, ty.Equal(ty.Tuple{Elems: []ty.Type{u8, paramT}}, ty.Tuple{Elems: []ty.Type{paramT, u8}}))
	assert.False(t, ty.Equal(ty.RawPtr{Elem: u8}, ty.Ref{Region: ty.Erased{}, Elem: u8}))
	assert.False(t, ty.Equal(ty.Param{Index: 0, Name: "T"}, ty.Param{Index: 1, Name: "T"}))
	assert.True(t, ty.Equal(nil, nil))
	assert.False(t, ty.Equal(u8, nil))

	assert.True(t, ty.PredicatesEqual(ty.NewTypeOutlives(paramT, regA), ty.NewTypeOutlives(paramT, regA)))
	assert.False(t, ty.PredicatesEqual(ty.NewTypeOutlives(paramT, regA), ty.NewRegionOutlives(regA, regA)))
	assert.False(t, ty.PredicatesEqual(ty.NewTraitPredicate(1, "Copy", paramT), ty.NewTraitPredicate(2, "Copy", paramT)))
}

func TestSubst(t *testing.T) {
	substs := ty.Substs{u8, ty.Static{}, ty.ConstValue{Value: 3}}

	orig := ty.Adt{Def: 1, Name: "S", Substs: ty.Substs{
		ty.Ref{Region: regA, Elem: ty.Array{Elem: paramT, Len: constN}},
		ty.FnPtr{Inputs: []ty.Type{paramT}, Output: ty.Tuple{Elems: []ty.Type{paramT, ty.RawPtr{Elem: paramT}}}},
		regA,
		constN,
	}}
	substituted := ty.SubstTy(orig, substs)
	assert.Equal(t, "S<&'static [u8; 3], fn(u8) -> (u8, *const u8), 'static, 3>", substituted.String())
	assert.Equal(t, "S<&'a [T; N], fn(T) -> (T, *const T), 'a, N>", orig.String(), "the original is left untouched")

	pred := ty.SubstPredicate(ty.NewTypeOutlives(paramT, regA), substs)
	assert.True(t, ty.PredicatesEqual(ty.NewTypeOutlives(u8, ty.Static{}), pred))

	// regions that are not early-bound parameters are kept
	kept := ty.SubstTy(ty.Ref{Region: ty.LateBound{Index: 1, Name: "'x"}, Elem: paramT}, substs)
	assert.Equal(t, "&'x u8", kept.String())
}

func TestSubstPanicsOnKindMismatch(t *testing.T) {
	assert.Panics(t, func() { ty.SubstTy(paramT, ty.Substs{ty.Static{}}) })
	assert.Panics(t, func() { ty.SubstTy(ty.Param{Index: 3, Name: "U"}, ty.Substs{u8}) })
}

func TestWalk(t *testing.T) {
	arg := ty.Ref{Region: regA, Elem: ty.Array{Elem: paramT, Len: constN}}
	var visited []string
	for nested := range ty.Walk(arg) {
		visited = append(visited, nested.String())
	}
	assert.Equal(t, []string{"&'a [T; N]", "'a", "[T; N]", "T", "N"}, visited)

	var first []string
	for nested := range ty.Walk(arg) {
		first = append(first, nested.String())
		if len(first) == 2 {
			break
		}
	}
	assert.Len(t, first, 2)
}

func TestHasInfer(t *testing.T) {
	assert.False(t, ty.HasInfer(ty.NewTypeOutlives(paramT, regA)))
	assert.True(t, ty.HasInfer(ty.NewTypeOutlives(paramT, ty.RegionVar{ID: 1})))
	assert.True(t, ty.HasInfer(ty.NewTraitPredicate(1, "Copy", ty.Slice{Elem: ty.Infer{Var: ty.InferTy{ID: 1}}})))
	assert.True(t, ty.HasInfer(ty.NewTraitPredicate(1, "Copy", ty.Array{Elem: u8, Len: ty.ConstInfer{ID: 0}})))
}

func TestGenerics(t *testing.T) {
	g := ty.Generics{Params: []ty.GenericParamDef{
		{Name: "'a", Index: 0, Kind: ty.LifetimeParam},
		{Name: "T", Index: 1, Kind: ty.TypeParam},
		{Name: "N", Index: 2, Kind: ty.ConstParamKind},
	}}
	identity := g.Identity()
	require.Len(t, identity, 3)
	assert.Equal(t, ty.EarlyBound{Index: 0, Name: "'a"}, identity[0])
	assert.Equal(t, ty.Param{Index: 1, Name: "T"}, identity[1])
	assert.Equal(t, ty.ConstParam{Index: 2, Name: "N"}, identity[2])

	p, ok := g.ByName("N")
	assert.True(t, ok)
	assert.Equal(t, ty.ConstParamKind, p.Kind)
	_, ok = g.ByName("U")
	assert.False(t, ok)
}

// buildTable defines `struct S<T: Copy>`, a drop impl for it, `trait Copy`
// and a fn
func buildTable(t *testing.T) *ty.Table {
	b := ty.NewBuilder()
	s, err := b.Reserve("S")
	require.NoError(t, err)
	copyTrait, err := b.Reserve("Copy")
	require.NoError(t, err)
	drop, err := b.Reserve("")
	require.NoError(t, err)
	fn, err := b.Reserve("main")
	require.NoError(t, err)

	generics := ty.Generics{Params: []ty.GenericParamDef{{Name: "T", Index: 0, Kind: ty.TypeParam}}}
	bound := ty.NewTraitPredicate(copyTrait, "Copy", paramT)
	require.NoError(t, b.Define(&ty.DropImpl{
		ID:       drop,
		Generics: generics,
		SelfTy:   ty.Adt{Def: s, Name: "S", Substs: ty.Substs{paramT}},
		Span:     ty.Span{PosStart: 30, PosEnd: 40},
	}))
	require.NoError(t, b.Define(&ty.TypeDef{
		ID:         s,
		Name:       "S",
		Generics:   generics,
		Predicates: []ty.SpannedPredicate{{Predicate: bound}},
		Variants:   []ty.VariantDef{{Name: "S", Fields: []ty.FieldDef{{Name: "0", Ty: paramT}}}},
		Span:       ty.Span{PosStart: 1, PosEnd: 10},
	}))
	require.NoError(t, b.Define(&ty.TraitDef{
		ID:       copyTrait,
		Name:     "Copy",
		Generics: ty.Generics{Params: []ty.GenericParamDef{{Name: "Self", Index: 0, Kind: ty.TypeParam}}},
	}))
	require.NoError(t, b.Define(&ty.FnDef{ID: fn, Name: "main"}))
	tbl, err := b.Build()
	require.NoError(t, err)
	return tbl
}

func TestTable(t *testing.T) {
	tbl := buildTable(t)
	s, ok := tbl.Lookup("S")
	require.True(t, ok)
	_, ok = tbl.Lookup("Drop")
	assert.False(t, ok)

	assert.Equal(t, 4, tbl.Len())
	assert.True(t, tbl.HasDtor(s))

	drops := tbl.DropImplsOf(s)
	require.Len(t, drops, 1)
	assert.Equal(t, drops, tbl.DropImpls())
	assert.Equal(t, ty.Span{PosStart: 30, PosEnd: 40}, tbl.DefSpan(drops[0]))
	assert.Equal(t, "S<T>", tbl.TypeOf(drops[0]).String())
	assert.Equal(t, "S<T>", tbl.TypeOf(s).String())

	env := tbl.ParamEnv(s)
	require.Len(t, env.CallerBounds, 1)
	assert.Equal(t, "T: Copy", env.CallerBounds[0].String())
	assert.Empty(t, tbl.ParamEnv(drops[0]).CallerBounds)

	instantiated := tbl.PredicatesOf(s).Instantiate(ty.Substs{u8})
	require.Len(t, instantiated, 1)
	assert.Equal(t, "u8: Copy", instantiated[0].String())

	fns := tbl.Fns()
	require.Len(t, fns, 1)
	assert.Equal(t, "main", fns[0].Name)
	assert.Equal(t, 0, tbl.GenericsOf(fns[0].ID).Len())

	copyTrait, _ := tbl.Lookup("Copy")
	_, isTrait := tbl.Trait(copyTrait)
	assert.True(t, isTrait)
	_, isType := tbl.TypeDef(copyTrait)
	assert.False(t, isType)
	_, ok = tbl.Item(ty.NoDefID)
	assert.False(t, ok)
	assert.Panics(t, func() { tbl.DefSpan(99) })
}

func TestParamEnvKeepsParameters(t *testing.T) {
	b := ty.NewBuilder()
	copyTrait, err := b.Reserve("Copy")
	require.NoError(t, err)
	fn, err := b.Reserve("f")
	require.NoError(t, err)
	require.NoError(t, b.Define(&ty.TraitDef{
		ID:       copyTrait,
		Name:     "Copy",
		Generics: ty.Generics{Params: []ty.GenericParamDef{{Name: "Self", Index: 0, Kind: ty.TypeParam}}},
	}))
	require.NoError(t, b.Define(&ty.FnDef{
		ID:   fn,
		Name: "f",
		Generics: ty.Generics{Params: []ty.GenericParamDef{
			{Name: "T", Index: 0, Kind: ty.TypeParam},
			{Name: "'a", Index: 1, Kind: ty.LifetimeParam},
		}},
		Predicates: []ty.SpannedPredicate{
			{Predicate: ty.NewTraitPredicate(copyTrait, "Copy", paramT)},
			{Predicate: ty.NewTypeOutlives(paramT, regA)},
			{Predicate: ty.NewRegionOutlives(regA, ty.Static{})},
		},
	}))
	tbl, err := b.Build()
	require.NoError(t, err)

	var env ty.ParamEnv
	require.NotPanics(t, func() { env = tbl.ParamEnv(fn) })
	var bounds []string
	for _, p := range env.CallerBounds {
		bounds = append(bounds, p.String())
	}
	assert.Equal(t, []string{"T: Copy", "T: 'a", "'a: 'static"}, bounds)
	assert.True(t, ty.Equal(paramT, env.CallerBounds[1].(ty.TypeOutlivesPredicate).Value.Ty))
}

func TestBuilderErrors(t *testing.T) {
	b := ty.NewBuilder()
	_, err := b.Reserve("S")
	require.NoError(t, err)
	_, err = b.Reserve("S")
	assert.ErrorContains(t, err, "defined multiple times")

	assert.ErrorContains(t, b.Define(&ty.FnDef{ID: 7}), "never reserved")
	require.NoError(t, b.Define(&ty.FnDef{ID: 1}))
	assert.ErrorContains(t, b.Define(&ty.FnDef{ID: 1}), "defined twice")

	_, err = b.Reserve("")
	require.NoError(t, err)
	_, err = b.Build()
	assert.ErrorContains(t, err, "reserved but never defined")
}

func TestFnsKeepDefinitionOrder(t *testing.T) {
	b := ty.NewBuilder()
	names := []string{"Zed", "Alpha", "Mid"}
	for _, name := range names {
		id, err := b.Reserve(name)
		require.NoError(t, err)
		require.NoError(t, b.Define(&ty.FnDef{ID: id, Name: name}))
	}
	tbl, err := b.Build()
	require.NoError(t, err)
	var found []string
	for _, fn := range tbl.Fns() {
		id, ok := tbl.Lookup(fn.Name)
		require.True(t, ok)
		assert.Equal(t, fn.ID, id)
		found = append(found, fn.Name)
	}
	assert.True(t, slices.Equal(names, found), "Fns keeps definition order")
}
