package ty

import (
	"fmt"
	"strings"

	"github.com/cottand/dropck/util"
)

// GenericArg is anything a generic parameter can be instantiated with:
// a Type, a Region or a Const.
type GenericArg interface {
	fmt.Stringer
	Hash() uint64
	hashInto(h *hasher)
	isGenericArg()
}

// Type is a closed sum of the type forms the checker understands.
type Type interface {
	GenericArg
	isType()
}

var (
	_ Type = Prim{}
	_ Type = Never{}
	_ Type = Param{}
	_ Type = Adt{}
	_ Type = Ref{}
	_ Type = RawPtr{}
	_ Type = Tuple{}
	_ Type = Array{}
	_ Type = Slice{}
	_ Type = FnPtr{}
	_ Type = Projection{}
	_ Type = Infer{}
)

type PrimKind uint8

const (
	Bool PrimKind = iota
	Char
	I8
	I16
	I32
	I64
	Isize
	U8
	U16
	U32
	U64
	Usize
	F32
	F64
	Str
)

var primNames = [...]string{
	Bool: "bool", Char: "char",
	I8: "i8", I16: "i16", I32: "i32", I64: "i64", Isize: "isize",
	U8: "u8", U16: "u16", U32: "u32", U64: "u64", Usize: "usize",
	F32: "f32", F64: "f64",
	Str: "str",
}

func (k PrimKind) String() string {
	if int(k) < len(primNames) {
		return primNames[k]
	}
	return "invalid"
}

func (k PrimKind) IsInteger() bool { return k >= I8 && k <= Usize }
func (k PrimKind) IsFloat() bool   { return k == F32 || k == F64 }

// PrimKindByName resolves the name of a primitive type.
func PrimKindByName(name string) (PrimKind, bool) {
	for k, n := range primNames {
		if n == name {
			return PrimKind(k), true
		}
	}
	return 0, false
}

// Prim is a scalar primitive type, or str
type Prim struct {
	Kind PrimKind
}

func (Prim) isGenericArg()             {}
func (Prim) isType()                   {}
func (t Prim) String() string          { return t.Kind.String() }
func (t Prim) Hash() uint64            { return hashOf(t) }
func (t Prim) hashInto(h *hasher)      { h.tag(tagPrim); h.uint(uint64(t.Kind)) }
func (Never) isGenericArg()            {}
func (Never) isType()                  {}
func (Never) String() string           { return "!" }
func (t Never) Hash() uint64           { return hashOf(t) }
func (Never) hashInto(h *hasher)       { h.tag(tagNever) }
func (Param) isGenericArg()            {}
func (Param) isType()                  {}
func (t Param) String() string         { return t.Name }
func (t Param) Hash() uint64           { return hashOf(t) }
func (t Param) hashInto(h *hasher)     { h.tag(tagParam); h.uint(uint64(t.Index)); h.str(t.Name) }
func (Adt) isGenericArg()              {}
func (Adt) isType()                    {}
func (t Adt) Hash() uint64             { return hashOf(t) }
func (t Adt) hashInto(h *hasher)       { h.tag(tagAdt); h.uint(uint64(t.Def)); h.args(t.Substs) }
func (Ref) isGenericArg()              {}
func (Ref) isType()                    {}
func (t Ref) Hash() uint64             { return hashOf(t) }
func (RawPtr) isGenericArg()           {}
func (RawPtr) isType()                 {}
func (t RawPtr) Hash() uint64          { return hashOf(t) }
func (t RawPtr) hashInto(h *hasher)    { h.tag(tagRawPtr); h.bool(t.Mutable); t.Elem.hashInto(h) }
func (Tuple) isGenericArg()            {}
func (Tuple) isType()                  {}
func (t Tuple) Hash() uint64           { return hashOf(t) }
func (t Tuple) hashInto(h *hasher)     { h.tag(tagTuple); h.types(t.Elems) }
func (Array) isGenericArg()            {}
func (Array) isType()                  {}
func (t Array) String() string         { return fmt.Sprintf("[%v; %v]", t.Elem, t.Len) }
func (t Array) Hash() uint64           { return hashOf(t) }
func (t Array) hashInto(h *hasher)     { h.tag(tagArray); t.Elem.hashInto(h); t.Len.hashInto(h) }
func (Slice) isGenericArg()            {}
func (Slice) isType()                  {}
func (t Slice) String() string         { return fmt.Sprintf("[%v]", t.Elem) }
func (t Slice) Hash() uint64           { return hashOf(t) }
func (t Slice) hashInto(h *hasher)     { h.tag(tagSlice); t.Elem.hashInto(h) }
func (FnPtr) isGenericArg()            {}
func (FnPtr) isType()                  {}
func (t FnPtr) Hash() uint64           { return hashOf(t) }
func (t FnPtr) hashInto(h *hasher)     { h.tag(tagFnPtr); h.types(t.Inputs); t.Output.hashInto(h) }
func (Projection) isGenericArg()       {}
func (Projection) isType()             {}
func (t Projection) String() string    { return t.ProjectionTy.String() }
func (t Projection) Hash() uint64      { return hashOf(t) }
func (t Projection) hashInto(h *hasher) { h.tag(tagProjection); t.ProjectionTy.hashInto(h) }
func (Infer) isGenericArg()            {}
func (Infer) isType()                  {}
func (t Infer) String() string         { return t.Var.String() }
func (t Infer) Hash() uint64           { return hashOf(t) }
func (t Infer) hashInto(h *hasher)     { h.tag(tagInfer); h.uint(uint64(t.Var.Kind)); h.uint(uint64(t.Var.ID)) }

const (
	tagPrim byte = iota + 1
	tagNever
	tagParam
	tagAdt
	tagRef
	tagRawPtr
	tagTuple
	tagArray
	tagSlice
	tagFnPtr
	tagProjection
	tagInfer

	tagEarlyBound
	tagStatic
	tagLateBound
	tagScope
	tagRegionVar
	tagErased

	tagConstValue
	tagConstParam
	tagConstInfer

	tagTraitPredicate
	tagProjectionPredicate
	tagRegionOutlives
	tagTypeOutlives
	tagWellFormed
)

// Never is the type of diverging computations
type Never struct{}

// Param is a generic type parameter, identified by its index in the
// generics of the item it is declared on.
type Param struct {
	Index uint32
	Name  string
}

// Adt is a nominal struct or enum type instantiated with Substs.
type Adt struct {
	Def    DefID
	Name   string
	Substs Substs
}

func (t Adt) String() string {
	if len(t.Substs) == 0 {
		return t.Name
	}
	return fmt.Sprintf("%s<%s>", t.Name, util.JoinString(t.Substs, ", "))
}

// Ref is a reference `&'r T` or `&'r mut T`
type Ref struct {
	Region  Region
	Elem    Type
	Mutable bool
}

func (t Ref) String() string {
	sb := strings.Builder{}
	sb.WriteString("&")
	if _, erased := t.Region.(Erased); !erased {
		sb.WriteString(t.Region.String())
		sb.WriteString(" ")
	}
	if t.Mutable {
		sb.WriteString("mut ")
	}
	sb.WriteString(t.Elem.String())
	return sb.String()
}

func (t Ref) hashInto(h *hasher) {
	h.tag(tagRef)
	t.Region.hashInto(h)
	h.bool(t.Mutable)
	t.Elem.hashInto(h)
}

type RawPtr struct {
	Elem    Type
	Mutable bool
}

func (t RawPtr) String() string {
	if t.Mutable {
		return "*mut " + t.Elem.String()
	}
	return "*const " + t.Elem.String()
}

// Tuple with zero elements is the unit type
type Tuple struct {
	Elems []Type
}

func (t Tuple) String() string {
	if len(t.Elems) == 1 {
		return "(" + t.Elems[0].String() + ",)"
	}
	return "(" + util.JoinString(t.Elems, ", ") + ")"
}

// Unit is the empty tuple
var Unit = Tuple{}

type Array struct {
	Elem Type
	Len  Const
}

type Slice struct {
	Elem Type
}

type FnPtr struct {
	Inputs []Type
	Output Type
}

func (t FnPtr) String() string {
	s := "fn(" + util.JoinString(t.Inputs, ", ") + ")"
	if tup, ok := t.Output.(Tuple); ok && len(tup.Elems) == 0 {
		return s
	}
	return s + " -> " + t.Output.String()
}

// Projection is the associated type `<T as Trait>::Item`
type Projection struct {
	ProjectionTy
}

type InferKind uint8

const (
	TyVar InferKind = iota
	IntVar
	FloatVar
)

// InferTy is an inference placeholder. Placeholders only live as long as
// the inference context that created them.
type InferTy struct {
	Kind InferKind
	ID   uint32
}

func (v InferTy) String() string {
	switch v.Kind {
	case IntVar:
		return fmt.Sprintf("?%di", v.ID)
	case FloatVar:
		return fmt.Sprintf("?%df", v.ID)
	default:
		return fmt.Sprintf("?%d", v.ID)
	}
}

type Infer struct {
	Var InferTy
}

// IsInfer reports whether t is an inference placeholder of any kind
func IsInfer(t Type) bool {
	_, ok := t.(Infer)
	return ok
}

// TraitRef is a reference to a trait instantiated with Substs, where
// Substs[0] is the Self type.
type TraitRef struct {
	Def    DefID
	Name   string
	Substs Substs
}

func (r TraitRef) SelfTy() Type {
	return r.Substs.TypeAt(0)
}

// String shows the trait path without its Self type, as in `Fn<(u8,)>`
func (r TraitRef) String() string {
	if len(r.Substs) <= 1 {
		return r.Name
	}
	return fmt.Sprintf("%s<%s>", r.Name, util.JoinString(r.Substs[1:], ", "))
}

func (r TraitRef) hashInto(h *hasher) {
	h.uint(uint64(r.Def))
	h.args(r.Substs)
}

// ProjectionTy names the associated type Item of TraitRef
type ProjectionTy struct {
	Trait TraitRef
	Item  string
}

func (p ProjectionTy) String() string {
	return fmt.Sprintf("<%v as %v>::%s", p.Trait.SelfTy(), p.Trait, p.Item)
}

func (p ProjectionTy) hashInto(h *hasher) {
	p.Trait.hashInto(h)
	h.str(p.Item)
}
