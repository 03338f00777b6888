package infer

import (
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/cottand/dropck/frontend/ilerr"
	"github.com/cottand/dropck/frontend/ty"
	"github.com/cottand/dropck/internal/log"
)

var logger = log.DefaultLogger.With("section", "infer")

var ctxtCounter atomic.Uint64

// RegionConstraint requires Longer to outlive Shorter
type RegionConstraint struct {
	Longer, Shorter ty.Region
	Origin          ty.Span
}

func (c RegionConstraint) String() string {
	return fmt.Sprintf("%v: %v", c.Longer, c.Shorter)
}

// Ctxt is an inference context: the placeholders created during a single
// check, and what is known about them so far.
//
// A Ctxt is only valid inside the function passed to Enter, and must not be
// used concurrently.
type Ctxt struct {
	tbl  *ty.Table
	sess *ilerr.Session

	tyVars     unificationTable[ty.Type]
	intVars    unificationTable[ty.Type]
	floatVars  unificationTable[ty.Type]
	constVars  unificationTable[ty.Const]
	regionVars unificationTable[ty.Region]

	regionConstraints []RegionConstraint

	// dropck caches the drop constraints of each ADT over its identity substs
	dropck map[ty.DefID]*adtDropConstraints

	closed bool
	logger *slog.Logger
}

// Enter runs f with a fresh inference context which is closed when f
// returns, or panics. Nothing created by it may be used afterwards.
//
// sess receives the diagnostics the context reports on its own, and may be
// nil for contexts that are only used to compare terms.
func Enter(tbl *ty.Table, sess *ilerr.Session, f func(infcx *Ctxt) error) error {
	infcx := &Ctxt{
		tbl:    tbl,
		sess:   sess,
		dropck: make(map[ty.DefID]*adtDropConstraints),
		logger: logger.With("infcx", ctxtCounter.Add(1)),
	}
	defer infcx.close()
	return f(infcx)
}

func (infcx *Ctxt) close() {
	infcx.logger.Debug("closing inference context",
		"tyVars", infcx.tyVars.len(),
		"regionVars", infcx.regionVars.len(),
		"regionConstraints", len(infcx.regionConstraints),
	)
	infcx.closed = true
	infcx.tyVars = unificationTable[ty.Type]{}
	infcx.intVars = unificationTable[ty.Type]{}
	infcx.floatVars = unificationTable[ty.Type]{}
	infcx.constVars = unificationTable[ty.Const]{}
	infcx.regionVars = unificationTable[ty.Region]{}
	infcx.regionConstraints = nil
	infcx.dropck = nil
}

func (infcx *Ctxt) checkOpen() {
	if infcx.closed {
		panic("inference context used after it was closed")
	}
}

func (infcx *Ctxt) Table() *ty.Table {
	return infcx.tbl
}

func (infcx *Ctxt) Logger() *slog.Logger {
	return infcx.logger
}

func (infcx *Ctxt) report(err ilerr.IleError) {
	if infcx.sess == nil {
		infcx.logger.Warn("dropping diagnostic of inference context without session", "err", ilerr.FormatWithCode(err))
		return
	}
	infcx.sess.Emit(err)
}

func (infcx *Ctxt) NextTyVar() ty.Type {
	infcx.checkOpen()
	return ty.Infer{Var: ty.InferTy{Kind: ty.TyVar, ID: infcx.tyVars.newVar()}}
}

func (infcx *Ctxt) NextIntVar() ty.Type {
	infcx.checkOpen()
	return ty.Infer{Var: ty.InferTy{Kind: ty.IntVar, ID: infcx.intVars.newVar()}}
}

func (infcx *Ctxt) NextFloatVar() ty.Type {
	infcx.checkOpen()
	return ty.Infer{Var: ty.InferTy{Kind: ty.FloatVar, ID: infcx.floatVars.newVar()}}
}

func (infcx *Ctxt) NextRegionVar() ty.Region {
	infcx.checkOpen()
	return ty.RegionVar{ID: infcx.regionVars.newVar()}
}

func (infcx *Ctxt) NextConstVar() ty.Const {
	infcx.checkOpen()
	return ty.ConstInfer{ID: infcx.constVars.newVar()}
}

// FreshSubstsForItem instantiates every parameter of generics with a new
// placeholder of the matching kind
func (infcx *Ctxt) FreshSubstsForItem(span ty.Span, generics ty.Generics) ty.Substs {
	substs := make(ty.Substs, generics.Len())
	for i, p := range generics.Params {
		switch p.Kind {
		case ty.LifetimeParam:
			substs[i] = infcx.NextRegionVar()
		case ty.ConstParamKind:
			substs[i] = infcx.NextConstVar()
		default:
			substs[i] = infcx.NextTyVar()
		}
	}
	infcx.logger.Debug("fresh substs", "at", span, "generics", generics.String(), "substs", substs.String())
	return substs
}

type snapshot struct {
	tyVars            unificationTable[ty.Type]
	intVars           unificationTable[ty.Type]
	floatVars         unificationTable[ty.Type]
	constVars         unificationTable[ty.Const]
	regionVars        unificationTable[ty.Region]
	regionConstraints int
}

func (infcx *Ctxt) startSnapshot() snapshot {
	return snapshot{
		tyVars:            infcx.tyVars.clone(),
		intVars:           infcx.intVars.clone(),
		floatVars:         infcx.floatVars.clone(),
		constVars:         infcx.constVars.clone(),
		regionVars:        infcx.regionVars.clone(),
		regionConstraints: len(infcx.regionConstraints),
	}
}

func (infcx *Ctxt) rollbackTo(s snapshot) {
	infcx.tyVars = s.tyVars
	infcx.intVars = s.intVars
	infcx.floatVars = s.floatVars
	infcx.constVars = s.constVars
	infcx.regionVars = s.regionVars
	infcx.regionConstraints = infcx.regionConstraints[:s.regionConstraints]
}

// CommitIfOk runs f, and undoes everything it did to infcx if it fails
func (infcx *Ctxt) CommitIfOk(f func() error) error {
	infcx.checkOpen()
	s := infcx.startSnapshot()
	err := f()
	if err != nil {
		infcx.rollbackTo(s)
	}
	return err
}

// Probe runs f and always undoes its effects on infcx
func Probe[T any](infcx *Ctxt, f func() T) T {
	infcx.checkOpen()
	s := infcx.startSnapshot()
	defer infcx.rollbackTo(s)
	return f()
}

// ShallowResolve replaces t by its value if it is a resolved placeholder.
// Unresolved placeholders are replaced by the root of their class.
func (infcx *Ctxt) ShallowResolve(t ty.Type) ty.Type {
	v, ok := t.(ty.Infer)
	if !ok {
		return t
	}
	table := infcx.tableFor(v.Var.Kind)
	if value, bound := table.probe(v.Var.ID); bound {
		return infcx.ShallowResolve(value)
	}
	return ty.Infer{Var: ty.InferTy{Kind: v.Var.Kind, ID: table.find(v.Var.ID)}}
}

func (infcx *Ctxt) shallowResolveRegion(r ty.Region) ty.Region {
	v, ok := r.(ty.RegionVar)
	if !ok {
		return r
	}
	if value, bound := infcx.regionVars.probe(v.ID); bound {
		return value
	}
	return ty.RegionVar{ID: infcx.regionVars.find(v.ID)}
}

func (infcx *Ctxt) shallowResolveConst(c ty.Const) ty.Const {
	v, ok := c.(ty.ConstInfer)
	if !ok {
		return c
	}
	if value, bound := infcx.constVars.probe(v.ID); bound {
		return infcx.shallowResolveConst(value)
	}
	return ty.ConstInfer{ID: infcx.constVars.find(v.ID)}
}

func (infcx *Ctxt) tableFor(kind ty.InferKind) *unificationTable[ty.Type] {
	switch kind {
	case ty.IntVar:
		return &infcx.intVars
	case ty.FloatVar:
		return &infcx.floatVars
	default:
		return &infcx.tyVars
	}
}

// resolver replaces every resolved placeholder by its value
type resolver struct {
	infcx *Ctxt
}

func (r resolver) FoldTy(t ty.Type) ty.Type {
	if _, ok := t.(ty.Infer); ok {
		resolved := r.infcx.ShallowResolve(t)
		if ty.IsInfer(resolved) {
			return resolved
		}
		return r.FoldTy(resolved)
	}
	return ty.SuperFoldTy(r, t)
}

func (r resolver) FoldRegion(region ty.Region) ty.Region {
	return r.infcx.shallowResolveRegion(region)
}

func (r resolver) FoldConst(c ty.Const) ty.Const {
	return r.infcx.shallowResolveConst(c)
}

func (infcx *Ctxt) ResolveTy(t ty.Type) ty.Type {
	infcx.checkOpen()
	return resolver{infcx}.FoldTy(t)
}

func (infcx *Ctxt) ResolveArg(a ty.GenericArg) ty.GenericArg {
	infcx.checkOpen()
	return ty.FoldArg(resolver{infcx}, a)
}

func (infcx *Ctxt) ResolvePredicate(p ty.Predicate) ty.Predicate {
	infcx.checkOpen()
	return ty.FoldPredicate(resolver{infcx}, p)
}

// RegisterRegionObligation records that longer must outlive shorter. It is
// checked by ResolveRegionsAndReportErrors.
func (infcx *Ctxt) RegisterRegionObligation(origin ty.Span, longer, shorter ty.Region) {
	infcx.checkOpen()
	infcx.regionConstraints = append(infcx.regionConstraints, RegionConstraint{
		Longer:  longer,
		Shorter: shorter,
		Origin:  origin,
	})
}

func (infcx *Ctxt) RegionConstraints() []RegionConstraint {
	return slices.Clone(infcx.regionConstraints)
}
