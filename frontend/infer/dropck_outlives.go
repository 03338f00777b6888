package infer

import (
	"github.com/hashicorp/go-set/v3"

	"github.com/cottand/dropck/frontend/ilerr"
	"github.com/cottand/dropck/frontend/ty"
	"github.com/cottand/dropck/util"
)

// dropckRecursionLimit bounds how many times drop constraints may be
// expanded through generic arguments before giving up
const dropckRecursionLimit = 64

// dropckSizeLimit bounds the size of the types drop constraints are
// expanded for. Non-regular types can double in size at every expansion.
const dropckSizeLimit = 1 << 12

// dropConstraints is what dropping a value of some type requires.
// Every arg in outlives must outlive the scope of the drop. Every type in
// dtorckTypes must have its own drop constraints computed.
type dropConstraints struct {
	outlives    []ty.GenericArg
	dtorckTypes []ty.Type
}

type adtDropConstraints struct {
	dropConstraints
	inProgress bool
}

type queuedTy struct {
	ty    ty.Type
	depth int
}

// DropckOutlives returns the obligations that must hold for a value of
// type t to be dropped at the end of the body of the cause of at.
// Types the value may refer to through a destructor must outlive the
// body's scope.
//
// Failing to compute the constraints is reported directly and yields no
// obligations.
func (at At) DropckOutlives(t ty.Type) InferOk {
	infcx := at.infcx
	infcx.checkOpen()
	scope := ty.Scope{Body: at.cause.BodyID}

	var outlives []ty.GenericArg
	seen := set.NewHashSet[ty.Type, uint64](8)
	queue := []queuedTy{{ty: infcx.ResolveTy(t)}}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next.depth > dropckRecursionLimit || exceedsSize(next.ty, dropckSizeLimit) {
			infcx.report(ilerr.New(ilerr.NewDropckOverflow{Positioner: at.cause, Ty: t}))
			return InferOk{}
		}
		if !seen.Insert(next.ty) {
			continue
		}
		var c dropConstraints
		infcx.dtorckConstraintForTy(next.ty, &c)
		outlives = append(outlives, c.outlives...)
		for _, dt := range c.dtorckTypes {
			switch dt := infcx.ShallowResolve(dt).(type) {
			case ty.Param, ty.Projection, ty.Infer:
				outlives = append(outlives, dt)
			default:
				queue = append(queue, queuedTy{ty: dt, depth: next.depth + 1})
			}
		}
	}

	var obligations []Obligation
	for _, arg := range util.DedupHashed(outlives) {
		var p ty.Predicate
		switch arg := arg.(type) {
		case ty.Type:
			p = ty.NewTypeOutlives(arg, scope)
		case ty.Region:
			p = ty.NewRegionOutlives(arg, scope)
		default:
			continue
		}
		obligations = append(obligations, NewObligation(at.cause, at.paramEnv, p))
	}
	infcx.logger.Debug("dropck outlives", "ty", t, "obligations", len(obligations))
	return InferOk{Obligations: obligations}
}

func exceedsSize(t ty.Type, limit int) bool {
	size := 0
	for range ty.Walk(t) {
		size++
		if size > limit {
			return true
		}
	}
	return false
}

func (infcx *Ctxt) dtorckConstraintForTy(t ty.Type, c *dropConstraints) {
	switch t := infcx.ShallowResolve(t).(type) {
	case ty.Prim, ty.Never, ty.Ref, ty.RawPtr, ty.FnPtr:
		// trivially dropped
	case ty.Array:
		infcx.dtorckConstraintForTy(t.Elem, c)
	case ty.Slice:
		infcx.dtorckConstraintForTy(t.Elem, c)
	case ty.Tuple:
		for _, elem := range t.Elems {
			infcx.dtorckConstraintForTy(elem, c)
		}
	case ty.Param, ty.Projection:
		c.dtorckTypes = append(c.dtorckTypes, t)
	case ty.Infer:
		if t.Var.Kind == ty.TyVar {
			c.dtorckTypes = append(c.dtorckTypes, t)
		}
	case ty.Adt:
		adt := infcx.adtDropConstraints(t.Def)
		for _, arg := range adt.outlives {
			c.outlives = append(c.outlives, ty.SubstArg(arg, t.Substs))
		}
		for _, dt := range adt.dtorckTypes {
			c.dtorckTypes = append(c.dtorckTypes, ty.SubstTy(dt, t.Substs))
		}
	}
}

// adtDropConstraints computes the drop constraints of def instantiated with
// its own generics. They are cached per context so that recursive
// definitions, including ones that grow at every level such as
// `struct L<T>(Option<Box<L<(T, T)>>>)`, are only visited once.
func (infcx *Ctxt) adtDropConstraints(def ty.DefID) *adtDropConstraints {
	if cached, ok := infcx.dropck[def]; ok {
		if cached.inProgress {
			// a cycle through fields is covered by the outer computation
			return &adtDropConstraints{}
		}
		return cached
	}
	entry := &adtDropConstraints{inProgress: true}
	infcx.dropck[def] = entry

	td, ok := infcx.tbl.TypeDef(def)
	if !ok {
		entry.inProgress = false
		return entry
	}
	var c dropConstraints
	for _, field := range td.AllFields() {
		infcx.dtorckConstraintForTy(field.Ty, &c)
	}
	if infcx.tbl.HasDtor(def) {
		// the destructor may access any of the generic arguments
		c.outlives = append(c.outlives, td.Generics.Identity()...)
	}
	entry.outlives = util.DedupHashed(c.outlives)
	entry.dtorckTypes = util.DedupHashed(c.dtorckTypes)
	entry.inProgress = false
	infcx.logger.Debug("adt drop constraints", "adt", td.Name, "outlives", len(entry.outlives), "dtorckTypes", len(entry.dtorckTypes))
	return entry
}
