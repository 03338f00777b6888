package traits

import (
	"fmt"

	"github.com/hashicorp/go-set/v3"

	"github.com/cottand/dropck/frontend/infer"
	"github.com/cottand/dropck/frontend/ty"
	"github.com/cottand/dropck/internal/log"
)

var logger = log.DefaultLogger.With("section", "traits")

// RecursionLimit bounds how deep nested obligations may get
const RecursionLimit = 64

type ErrorKind uint8

const (
	Unimplemented ErrorKind = iota
	ProjectionError
	Overflow
	Ambiguity
	// TypeOutlivesError is a type that cannot be shown to outlive a region
	TypeOutlivesError
)

func (k ErrorKind) String() string {
	switch k {
	case Unimplemented:
		return "unimplemented"
	case ProjectionError:
		return "projection"
	case Overflow:
		return "overflow"
	case Ambiguity:
		return "ambiguity"
	case TypeOutlivesError:
		return "type outlives"
	default:
		return "invalid"
	}
}

// FulfillmentError is an obligation that could not be proven
type FulfillmentError struct {
	Obligation infer.Obligation
	Kind       ErrorKind
	// Cause is the underlying type error, if any
	Cause error
	// Ty and Region describe a TypeOutlivesError
	Ty     ty.Type
	Region ty.Region
}

func (e FulfillmentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %v: %v", e.Kind, e.Obligation.Predicate, e.Cause)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Obligation.Predicate)
}

// Engine proves obligations registered with it, possibly binding inference
// placeholders of the context it is used with. An Engine must only be used
// with a single inference context.
type Engine struct {
	tbl        *ty.Table
	pending    []infer.Obligation
	registered *set.HashSet[infer.Obligation, uint64]
}

func NewEngine(tbl *ty.Table) *Engine {
	return &Engine{
		tbl:        tbl,
		registered: set.NewHashSet[infer.Obligation, uint64](0),
	}
}

func (e *Engine) RegisterPredicateObligation(infcx *infer.Ctxt, o infer.Obligation) {
	o.Predicate = infcx.ResolvePredicate(o.Predicate)
	if !e.registered.Insert(o) {
		return
	}
	logger.Debug("registering obligation", "obligation", o)
	e.pending = append(e.pending, o)
}

func (e *Engine) RegisterPredicateObligations(infcx *infer.Ctxt, os []infer.Obligation) {
	for _, o := range os {
		e.RegisterPredicateObligation(infcx, o)
	}
}

// PendingObligations returns the obligations that are neither proven nor
// known to fail yet
func (e *Engine) PendingObligations() []infer.Obligation {
	return e.pending
}

// SelectWherePossible processes pending obligations until no more progress
// can be made. Ambiguous obligations stay pending.
func (e *Engine) SelectWherePossible(infcx *infer.Ctxt) []FulfillmentError {
	var errs []FulfillmentError
	for {
		progress := false
		pending := e.pending
		e.pending = nil
		var stalled []infer.Obligation
		for _, o := range pending {
			res := e.processObligation(infcx, o)
			switch {
			case res.err != nil:
				errs = append(errs, *res.err)
				progress = true
			case res.ambiguous:
				stalled = append(stalled, o)
			default:
				progress = true
				for _, nested := range res.nested {
					e.RegisterPredicateObligation(infcx, nested)
				}
			}
		}
		e.pending = append(stalled, e.pending...)
		if !progress || len(e.pending) == 0 {
			return errs
		}
	}
}

// SelectAllOrError proves every pending obligation, reporting the ones that
// fail or remain ambiguous
func (e *Engine) SelectAllOrError(infcx *infer.Ctxt) []FulfillmentError {
	errs := e.SelectWherePossible(infcx)
	if len(errs) > 0 {
		return errs
	}
	for _, o := range e.pending {
		errs = append(errs, FulfillmentError{Obligation: o, Kind: Ambiguity})
	}
	e.pending = nil
	return errs
}

type processResult struct {
	nested    []infer.Obligation
	ambiguous bool
	err       *FulfillmentError
}

func done(nested ...infer.Obligation) processResult {
	return processResult{nested: nested}
}

func ambiguous() processResult {
	return processResult{ambiguous: true}
}

func failed(o infer.Obligation, kind ErrorKind, cause error) processResult {
	return processResult{err: &FulfillmentError{Obligation: o, Kind: kind, Cause: cause}}
}

func (e *Engine) processObligation(infcx *infer.Ctxt, o infer.Obligation) processResult {
	if o.RecursionDepth > RecursionLimit {
		return failed(o, Overflow, nil)
	}
	o.Predicate = infcx.ResolvePredicate(o.Predicate)
	switch p := o.Predicate.(type) {
	case ty.TraitPredicate:
		return e.processTrait(infcx, o, p)
	case ty.ProjectionPredicate:
		return e.processProjection(infcx, o, p)
	case ty.RegionOutlivesPredicate:
		infcx.RegisterRegionObligation(o.Cause.Span, p.Value.Longer, p.Value.Shorter)
		return done()
	case ty.TypeOutlivesPredicate:
		return e.processTypeOutlives(infcx, o, p)
	case ty.WellFormedPredicate:
		return done()
	default:
		panic(fmt.Sprintf("unexpected predicate %T", p))
	}
}
