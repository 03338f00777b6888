package ty

import (
	"fmt"

	"github.com/cottand/dropck/util"
)

// DefID identifies an item in a Table. The zero value is never a valid item.
type DefID uint32

const NoDefID DefID = 0

func (id DefID) IsValid() bool { return id != NoDefID }

// BodyID identifies the body a value is dropped in
type BodyID uint32

type ParamKind uint8

const (
	LifetimeParam ParamKind = iota
	TypeParam
	ConstParamKind
)

func (k ParamKind) String() string {
	switch k {
	case LifetimeParam:
		return "lifetime"
	case TypeParam:
		return "type"
	case ConstParamKind:
		return "const"
	default:
		return "invalid"
	}
}

type GenericParamDef struct {
	Name  string
	Index uint32
	Kind  ParamKind
	Span  Span
}

// ToArg returns the parameter as a generic argument referencing itself
func (p GenericParamDef) ToArg() GenericArg {
	switch p.Kind {
	case LifetimeParam:
		return EarlyBound{Index: p.Index, Name: p.Name}
	case ConstParamKind:
		return ConstParam{Index: p.Index, Name: p.Name}
	default:
		return Param{Index: p.Index, Name: p.Name}
	}
}

// Generics is the ordered generic parameter list of an item.
// Params[i].Index == i always holds.
type Generics struct {
	Params []GenericParamDef
}

func (g Generics) Len() int { return len(g.Params) }

// Identity returns the substitution that maps every parameter to itself
func (g Generics) Identity() Substs {
	substs := make(Substs, len(g.Params))
	for i, p := range g.Params {
		substs[i] = p.ToArg()
	}
	return substs
}

func (g Generics) ByName(name string) (GenericParamDef, bool) {
	for _, p := range g.Params {
		if p.Name == name {
			return p, true
		}
	}
	return GenericParamDef{}, false
}

func (g Generics) String() string {
	if len(g.Params) == 0 {
		return ""
	}
	return "<" + util.JoinString(g.Identity(), ", ") + ">"
}

// Substs is an ordered list of generic arguments, positionally matching
// the Generics of the item they instantiate.
type Substs []GenericArg

func (s Substs) TypeAt(i int) Type {
	t, ok := s[i].(Type)
	if !ok {
		panic(fmt.Sprintf("expected type for generic argument %d, found %v", i, s[i]))
	}
	return t
}

func (s Substs) RegionAt(i int) Region {
	r, ok := s[i].(Region)
	if !ok {
		panic(fmt.Sprintf("expected region for generic argument %d, found %v", i, s[i]))
	}
	return r
}

func (s Substs) ConstAt(i int) Const {
	c, ok := s[i].(Const)
	if !ok {
		panic(fmt.Sprintf("expected const for generic argument %d, found %v", i, s[i]))
	}
	return c
}

// Types yields only the type arguments of s
func (s Substs) Types() []Type {
	var ts []Type
	for _, a := range s {
		if t, ok := a.(Type); ok {
			ts = append(ts, t)
		}
	}
	return ts
}

func (s Substs) String() string {
	return "[" + util.JoinString(s, ", ") + "]"
}
