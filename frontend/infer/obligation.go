package infer

import (
	"fmt"
	"go/token"
	"log/slog"

	"github.com/cottand/dropck/frontend/ty"
)

type CauseCode uint8

const (
	MiscObligation CauseCode = iota
	// ItemObligation is a predicate of an impl that was selected
	ItemObligation
	// DropObligation comes from a value going out of scope
	DropObligation
)

func (c CauseCode) String() string {
	switch c {
	case ItemObligation:
		return "item"
	case DropObligation:
		return "drop"
	default:
		return "misc"
	}
}

// ObligationCause records why an obligation exists, for diagnostics
type ObligationCause struct {
	Span   ty.Span
	BodyID ty.BodyID
	Code   CauseCode
}

func (c ObligationCause) Pos() token.Pos { return c.Span.Pos() }
func (c ObligationCause) End() token.Pos { return c.Span.End() }

func MiscCause(span ty.Span, body ty.BodyID) ObligationCause {
	return ObligationCause{Span: span, BodyID: body, Code: MiscObligation}
}

// Obligation is a predicate that must be proven under ParamEnv
type Obligation struct {
	Cause          ObligationCause
	ParamEnv       ty.ParamEnv
	Predicate      ty.Predicate
	RecursionDepth int
}

func NewObligation(cause ObligationCause, env ty.ParamEnv, p ty.Predicate) Obligation {
	return Obligation{Cause: cause, ParamEnv: env, Predicate: p}
}

// Hash identifies an obligation by its predicate only. Two obligations
// for the same predicate are redundant.
func (o Obligation) Hash() uint64 {
	return o.Predicate.Hash()
}

func (o Obligation) String() string {
	return fmt.Sprintf("Obligation(%v, depth=%d)", o.Predicate, o.RecursionDepth)
}

func (o Obligation) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("predicate", o.Predicate.String()),
		slog.Int("depth", o.RecursionDepth),
		slog.String("cause", o.Cause.Code.String()),
	)
}

// WithDepth returns a nested obligation for p, one level deeper than o
func (o Obligation) WithDepth(cause ObligationCause, p ty.Predicate) Obligation {
	return Obligation{Cause: cause, ParamEnv: o.ParamEnv, Predicate: p, RecursionDepth: o.RecursionDepth + 1}
}

// InferOk holds the obligations produced as a side effect of a successful
// relation, which the caller must register with a fulfillment engine
type InferOk struct {
	Obligations []Obligation
}

func (ok InferOk) Into(obligations []Obligation) []Obligation {
	return append(obligations, ok.Obligations...)
}
