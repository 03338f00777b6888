package ty

import "fmt"

// Region is an opaque lifetime token.
type Region interface {
	GenericArg
	isRegion()
}

var (
	_ Region = EarlyBound{}
	_ Region = Static{}
	_ Region = LateBound{}
	_ Region = Scope{}
	_ Region = RegionVar{}
	_ Region = Erased{}
)

// EarlyBound is a named lifetime parameter of an item, such as 'a in
// `struct Foo<'a>`
type EarlyBound struct {
	Index uint32
	Name  string
}

// Static is 'static
type Static struct{}

// LateBound is a lifetime bound by the innermost enclosing Binder, such as
// 'x in `for<'x> F: Fn(&'x u8)`
type LateBound struct {
	Index uint32
	Name  string
}

// Scope is the region of the body in which a value is dropped
type Scope struct {
	Body BodyID
}

// RegionVar is a region inference placeholder
type RegionVar struct {
	ID uint32
}

// Erased is an elided or erased lifetime, compatible with any other
type Erased struct{}

func (EarlyBound) isGenericArg()         {}
func (EarlyBound) isRegion()             {}
func (r EarlyBound) String() string      { return r.Name }
func (r EarlyBound) Hash() uint64        { return hashOf(r) }
func (r EarlyBound) hashInto(h *hasher)  { h.tag(tagEarlyBound); h.uint(uint64(r.Index)); h.str(r.Name) }
func (Static) isGenericArg()             {}
func (Static) isRegion()                 {}
func (Static) String() string            { return "'static" }
func (r Static) Hash() uint64            { return hashOf(r) }
func (Static) hashInto(h *hasher)        { h.tag(tagStatic) }
func (LateBound) isGenericArg()          {}
func (LateBound) isRegion()              {}
func (r LateBound) String() string       { return r.Name }
func (r LateBound) Hash() uint64         { return hashOf(r) }
func (r LateBound) hashInto(h *hasher)   { h.tag(tagLateBound); h.uint(uint64(r.Index)) }
func (Scope) isGenericArg()              {}
func (Scope) isRegion()                  {}
func (r Scope) String() string           { return fmt.Sprintf("'{body %d}", r.Body) }
func (r Scope) Hash() uint64             { return hashOf(r) }
func (r Scope) hashInto(h *hasher)       { h.tag(tagScope); h.uint(uint64(r.Body)) }
func (RegionVar) isGenericArg()          {}
func (RegionVar) isRegion()              {}
func (r RegionVar) String() string       { return fmt.Sprintf("'?%d", r.ID) }
func (r RegionVar) Hash() uint64         { return hashOf(r) }
func (r RegionVar) hashInto(h *hasher)   { h.tag(tagRegionVar); h.uint(uint64(r.ID)) }
func (Erased) isGenericArg()             {}
func (Erased) isRegion()                 {}
func (Erased) String() string            { return "'_" }
func (r Erased) Hash() uint64            { return hashOf(r) }
func (Erased) hashInto(h *hasher)        { h.tag(tagErased) }

// IsFree reports whether r is valid for the whole body of the item that
// declares it, which makes it outlive any body Scope.
func IsFree(r Region) bool {
	switch r.(type) {
	case EarlyBound, Static:
		return true
	default:
		return false
	}
}

// Const is a constant generic argument, such as the length of an array.
type Const interface {
	GenericArg
	isConst()
}

var (
	_ Const = ConstValue{}
	_ Const = ConstParam{}
	_ Const = ConstInfer{}
)

// ConstValue is an evaluated usize constant
type ConstValue struct {
	Value uint64
}

type ConstParam struct {
	Index uint32
	Name  string
}

type ConstInfer struct {
	ID uint32
}

func (ConstValue) isGenericArg()        {}
func (ConstValue) isConst()             {}
func (c ConstValue) String() string     { return fmt.Sprintf("%d", c.Value) }
func (c ConstValue) Hash() uint64       { return hashOf(c) }
func (c ConstValue) hashInto(h *hasher) { h.tag(tagConstValue); h.uint(c.Value) }
func (ConstParam) isGenericArg()        {}
func (ConstParam) isConst()             {}
func (c ConstParam) String() string     { return c.Name }
func (c ConstParam) Hash() uint64       { return hashOf(c) }
func (c ConstParam) hashInto(h *hasher) { h.tag(tagConstParam); h.uint(uint64(c.Index)); h.str(c.Name) }
func (ConstInfer) isGenericArg()        {}
func (ConstInfer) isConst()             {}
func (c ConstInfer) String() string     { return fmt.Sprintf("?%dc", c.ID) }
func (c ConstInfer) Hash() uint64       { return hashOf(c) }
func (c ConstInfer) hashInto(h *hasher) { h.tag(tagConstInfer); h.uint(uint64(c.ID)) }
