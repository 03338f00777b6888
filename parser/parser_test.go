package parser_test

import (
	"go/token"
	"testing"

	"github.com/cottand/dropck/frontend/ilerr"
	"github.com/cottand/dropck/frontend/ty"
	"github.com/cottand/dropck/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type items struct {
	adts   map[string]parser.AdtInfo
	traits map[string]parser.TraitInfo
}

func (i items) ResolveAdt(name string) (parser.AdtInfo, bool) {
	a, ok := i.adts[name]
	return a, ok
}

func (i items) ResolveTrait(name string) (parser.TraitInfo, bool) {
	tr, ok := i.traits[name]
	return tr, ok
}

func generics(t *testing.T, src string) ty.Generics {
	g, err := parser.ParseGenericParams(src, 1)
	require.NoError(t, err)
	return g
}

func selfAnd(t *testing.T, src string) ty.Generics {
	g := generics(t, src)
	params := []ty.GenericParamDef{{Name: "Self", Kind: ty.TypeParam}}
	for _, p := range g.Params {
		p.Index++
		params = append(params, p)
	}
	return ty.Generics{Params: params}
}

func testItems(t *testing.T) items {
	return items{
		adts: map[string]parser.AdtInfo{
			"Vec":  {Def: 1, Name: "Vec", Generics: generics(t, "<T>")},
			"Pair": {Def: 2, Name: "Pair", Generics: generics(t, "<A, B>")},
			"Ref":  {Def: 3, Name: "Ref", Generics: generics(t, "<'a, T>")},
		},
		traits: map[string]parser.TraitInfo{
			"Copy":     {Def: 10, Name: "Copy", Generics: selfAnd(t, "")},
			"Iterator": {Def: 11, Name: "Iterator", Generics: selfAnd(t, ""), AssocTypes: []string{"Item"}},
			"FnOnce":   {Def: 12, Name: "FnOnce", Generics: selfAnd(t, "<Args>"), AssocTypes: []string{"Output"}},
			"Fn":       {Def: 13, Name: "Fn", Generics: selfAnd(t, "<Args>")},
			"Tr":       {Def: 14, Name: "Tr", Generics: selfAnd(t, "<'x>")},
		},
	}
}

func TestParseGenericParams(t *testing.T) {
	g := generics(t, "<'a, T: Clone + 'a, const N: usize, U: Fn(T) -> [u8; N]>")
	require.Equal(t, 4, g.Len())
	assert.Equal(t, ty.LifetimeParam, g.Params[0].Kind)
	assert.Equal(t, "'a", g.Params[0].Name)
	assert.Equal(t, ty.TypeParam, g.Params[1].Kind)
	assert.Equal(t, ty.ConstParamKind, g.Params[2].Kind)
	assert.Equal(t, "U", g.Params[3].Name)
	assert.Equal(t, uint32(3), g.Params[3].Index)

	empty, err := parser.ParseGenericParams("", 1)
	assert.NoError(t, err)
	assert.Zero(t, empty.Len())
}

func TestParseGenericParamsErrors(t *testing.T) {
	cases := map[string]string{
		"<T, T>":        "already used",
		"<const N: u8>": "must have type usize",
		"<T":            "expected",
		"<T: Clone":     "unterminated",
		"<' a>":         "lifetime name",
		"<T> trailing":  "unexpected",
	}
	for src, expected := range cases {
		t.Run(src, func(t *testing.T) {
			_, err := parser.ParseGenericParams(src, 1)
			require.Error(t, err)
			assert.Contains(t, err.Error(), expected)
		})
	}
}

func TestParseTypes(t *testing.T) {
	r := testItems(t)
	scope := parser.Scope{
		Generics: generics(t, "<'a, T, const N: usize>"),
		Regions:  map[string]ty.Region{"'local": ty.Scope{Body: 7}},
	}
	tParam := ty.Param{Index: 1, Name: "T"}
	a := ty.EarlyBound{Index: 0, Name: "'a"}
	u8 := ty.Prim{Kind: ty.U8}

	cases := map[string]ty.Type{
		"u8":                     u8,
		"!":                      ty.Never{},
		"()":                     ty.Unit,
		"(T)":                    tParam,
		"(T,)":                   ty.Tuple{Elems: []ty.Type{tParam}},
		"(T, u8)":                ty.Tuple{Elems: []ty.Type{tParam, u8}},
		"&'a mut T":              ty.Ref{Region: a, Elem: tParam, Mutable: true},
		"&T":                     ty.Ref{Region: ty.Erased{}, Elem: tParam},
		"&'static u8":            ty.Ref{Region: ty.Static{}, Elem: u8},
		"&'local u8":             ty.Ref{Region: ty.Scope{Body: 7}, Elem: u8},
		"*const T":               ty.RawPtr{Elem: tParam},
		"[u8; 4]":                ty.Array{Elem: u8, Len: ty.ConstValue{Value: 4}},
		"[T; N]":                 ty.Array{Elem: tParam, Len: ty.ConstParam{Index: 2, Name: "N"}},
		"[T]":                    ty.Slice{Elem: tParam},
		"fn(u8) -> T":            ty.FnPtr{Inputs: []ty.Type{u8}, Output: tParam},
		"fn()":                   ty.FnPtr{Output: ty.Unit},
		"Vec<T>":                 ty.Adt{Def: 1, Name: "Vec", Substs: ty.Substs{tParam}},
		"Ref<'a, u8>":            ty.Adt{Def: 3, Name: "Ref", Substs: ty.Substs{a, u8}},
		"Ref<u8>":                ty.Adt{Def: 3, Name: "Ref", Substs: ty.Substs{ty.Erased{}, u8}},
		"<T as Iterator>::Item":  ty.Projection{ProjectionTy: ty.ProjectionTy{Trait: ty.TraitRef{Def: 11, Name: "Iterator", Substs: ty.Substs{tParam}}, Item: "Item"}},
		"Pair<Vec<T>, &'a [u8]>": ty.Adt{Def: 2, Name: "Pair", Substs: ty.Substs{ty.Adt{Def: 1, Name: "Vec", Substs: ty.Substs{tParam}}, ty.Ref{Region: a, Elem: ty.Slice{Elem: u8}}}},
	}
	for src, expected := range cases {
		t.Run(src, func(t *testing.T) {
			parsed, err := parser.ParseType(src, 1, scope, r)
			require.NoError(t, err)
			assert.True(t, ty.Equal(expected, parsed), "expected %v, got %v", expected, parsed)
		})
	}
}

func TestParseTypeErrors(t *testing.T) {
	r := testItems(t)
	scope := parser.Scope{Generics: generics(t, "<'a, T>")}
	cases := map[string]string{
		"Missing<T>":           "cannot find type `Missing`",
		"Vec<T, T>":            "takes 1 generic arguments but 2 were supplied",
		"&'b T":                "undeclared lifetime name `'b`",
		"Vec<'a>":              "expected type argument",
		"<T as Iterator>::Out": "associated type `Out` not found",
		"<T as Nope>::Item":    "cannot find trait `Nope`",
		"_":                    "placeholder",
		"*T":                   "raw pointer",
		"'a":                   "expected type",
		"Vec<T":                "expected `>`",
	}
	for src, expected := range cases {
		t.Run(src, func(t *testing.T) {
			_, err := parser.ParseType(src, 1, scope, r)
			require.Error(t, err)
			assert.Contains(t, err.Error(), expected)

			var ileErr ilerr.IleError
			require.ErrorAs(t, err, &ileErr)
			assert.Equal(t, ilerr.None, ileErr.Code())
		})
	}
}

func TestErrorPositions(t *testing.T) {
	r := testItems(t)
	base := token.Pos(100)
	_, err := parser.ParseType("Vec<Missing>", base, parser.Scope{}, r)
	require.Error(t, err)
	var ileErr ilerr.IleError
	require.ErrorAs(t, err, &ileErr)
	assert.Equal(t, base+4, ileErr.Pos())
	assert.Equal(t, base+11, ileErr.End())
}

func TestParseGenericBounds(t *testing.T) {
	r := testItems(t)
	src := "<'a, 'b: 'a, T: Copy + 'b, F: Fn(T) -> u8>"
	g := generics(t, src)
	preds, err := parser.ParseGenericBounds(src, 1, g, r)
	require.NoError(t, err)

	a := ty.EarlyBound{Index: 0, Name: "'a"}
	b := ty.EarlyBound{Index: 1, Name: "'b"}
	tParam := ty.Param{Index: 2, Name: "T"}
	f := ty.Param{Index: 3, Name: "F"}
	args := ty.Tuple{Elems: []ty.Type{tParam}}
	expected := []ty.Predicate{
		ty.NewRegionOutlives(b, a),
		ty.NewTraitPredicate(10, "Copy", tParam),
		ty.NewTypeOutlives(tParam, b),
		ty.NewTraitPredicate(13, "Fn", f, args),
		ty.ProjectionPredicate{Binder: ty.Dummy(ty.ProjectionEq{
			ProjectionTy: ty.ProjectionTy{Trait: ty.TraitRef{Def: 12, Name: "FnOnce", Substs: ty.Substs{f, args}}, Item: "Output"},
			Ty:           ty.Prim{Kind: ty.U8},
		})},
	}
	require.Len(t, preds, len(expected))
	for i, p := range preds {
		assert.True(t, ty.PredicatesEqual(expected[i], p.Predicate), "expected %v, got %v", expected[i], p.Predicate)
		assert.True(t, p.Span.IsValid())
	}
}

func TestFnSugarWithoutOutputIsUnit(t *testing.T) {
	r := testItems(t)
	src := "<F: Fn()>"
	preds, err := parser.ParseGenericBounds(src, 1, generics(t, src), r)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	proj, ok := preds[1].Predicate.(ty.ProjectionPredicate)
	require.True(t, ok)
	assert.True(t, ty.Equal(ty.Unit, proj.Value.Ty))
}

func TestBoundsMayReferToLaterParams(t *testing.T) {
	r := testItems(t)
	src := "<F: FnOnce() -> A, A>"
	preds, err := parser.ParseGenericBounds(src, 1, generics(t, src), r)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	proj := preds[1].Predicate.(ty.ProjectionPredicate)
	assert.True(t, ty.Equal(ty.Param{Index: 1, Name: "A"}, proj.Value.Ty))
}

func TestParseWhereClause(t *testing.T) {
	r := testItems(t)
	scope := parser.Scope{Generics: generics(t, "<'a, T, I>")}
	preds, err := parser.ParseWhereClause("where 'a: 'static, T: Iterator<Item = u8>, <I as Iterator>::Item == T, for<'x> T: Tr<'x>", 1, scope, r)
	require.NoError(t, err)
	require.Len(t, preds, 5)

	tParam := ty.Param{Index: 1, Name: "T"}
	iParam := ty.Param{Index: 2, Name: "I"}
	assert.True(t, ty.PredicatesEqual(ty.NewRegionOutlives(ty.EarlyBound{Index: 0, Name: "'a"}, ty.Static{}), preds[0].Predicate))
	assert.True(t, ty.PredicatesEqual(ty.NewTraitPredicate(11, "Iterator", tParam), preds[1].Predicate))

	item := preds[2].Predicate.(ty.ProjectionPredicate)
	assert.Equal(t, "Item", item.Value.ProjectionTy.Item)
	assert.True(t, ty.Equal(ty.Prim{Kind: ty.U8}, item.Value.Ty))

	eq := preds[3].Predicate.(ty.ProjectionPredicate)
	assert.True(t, ty.Equal(iParam, eq.Value.ProjectionTy.Trait.SelfTy()))
	assert.True(t, ty.Equal(tParam, eq.Value.Ty))

	hr := preds[4].Predicate.(ty.TraitPredicate)
	assert.Equal(t, []string{"'x"}, hr.Bound)
	assert.True(t, ty.Equal(ty.LateBound{Index: 0, Name: "'x"}, hr.Value.Substs[1].(ty.Region)))

	noKeyword, err := parser.ParseWhereClause("T: Copy", 1, scope, r)
	require.NoError(t, err)
	assert.Len(t, noKeyword, 1)
}

func TestParseWhereClauseErrors(t *testing.T) {
	r := testItems(t)
	scope := parser.Scope{Generics: generics(t, "<'a, T>")}
	cases := map[string]string{
		"'a: T":                  "lifetime bounds must be lifetimes",
		"T: Copy(u8)":            "only allowed for the Fn traits",
		"T: Iterator<Nope = u8>": "associated type `Nope` not found",
		"for<'a> T: Tr<'a>":      "shadows",
		"T: Copy,, T: Copy":      "expected type",
		"T Copy":                 "expected `:`",
	}
	for src, expected := range cases {
		t.Run(src, func(t *testing.T) {
			_, err := parser.ParseWhereClause(src, 1, scope, r)
			require.Error(t, err)
			assert.Contains(t, err.Error(), expected)
		})
	}
}

func TestParseTraitRef(t *testing.T) {
	r := testItems(t)
	self := ty.Prim{Kind: ty.U8}
	ref, err := parser.ParseTraitRef("Fn<(u8,)>", 1, self, parser.Scope{}, r)
	require.NoError(t, err)
	assert.Equal(t, ty.DefID(13), ref.Def)
	assert.True(t, ty.Equal(self, ref.SelfTy()))

	_, err = parser.ParseTraitRef("Iterator<Item = u8>", 1, self, parser.Scope{}, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed here")

	_, err = parser.ParseTraitRef("Fn", 1, self, parser.Scope{}, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "takes 2 generic arguments but 1 were supplied")
}
