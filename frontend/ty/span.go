package ty

import (
	"fmt"
	"go/token"
)

// Positioner allows finding the location in the original source file.
type Positioner interface {
	Pos() token.Pos // position of first character belonging to the node
	End() token.Pos // position of first character immediately after the node
}

// Span represents a range of positions in the crate source.
type Span struct {
	PosStart token.Pos
	PosEnd   token.Pos
}

// Pos returns the starting position of the span.
func (s Span) Pos() token.Pos { return s.PosStart }

// End returns the ending position of the span.
func (s Span) End() token.Pos { return s.PosEnd }

func (s Span) IsValid() bool { return s.PosStart.IsValid() }

func (s Span) String() string {
	if s.PosStart == s.PosEnd {
		return fmt.Sprintf("%v", s.PosStart)
	}
	return fmt.Sprintf("%v-%v", s.PosStart, s.PosEnd)
}

// SpanBetween creates a Span between two Positioners.
func SpanBetween(fst, snd Positioner) Span {
	return Span{fst.Pos(), snd.End()}
}

// SpanOf creates a Span from a Positioner.
func SpanOf(p Positioner) Span {
	if p == nil {
		return Span{}
	}
	if asSpan, ok := p.(Span); ok {
		return asSpan
	}
	if asSpan, ok := p.(*Span); ok {
		return *asSpan
	}
	return Span{p.Pos(), p.End()}
}
