package ilerr

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/cottand/dropck/frontend/ty"
	"github.com/cottand/dropck/internal/log"
)

var logger = log.DefaultLogger.With("section", "dropck.session")

type Errors struct {
	errs []IleError
}

func (r *Errors) With(err ...IleError) *Errors {
	if r == nil {
		return &Errors{errs: err}
	}
	r.errs = append(r.errs, err...)
	return r
}

func (r *Errors) Merge(err *Errors) *Errors {
	if r == nil {
		return err
	}
	if err == nil {
		return r
	}
	if len(err.errs) == 0 {
		return r
	}
	return r.With(err.errs...)
}

func (r *Errors) Errors() []IleError {
	if r == nil {
		return nil
	}
	return r.errs
}

func (r *Errors) HasError() bool {
	if r == nil {
		return false
	}
	return len(r.errs) > 0
}

func (r *Errors) LogValue() slog.Value {
	var vals []slog.Attr
	for i, v := range r.Errors() {
		vals = append(vals, slog.Attr{
			Key: fmt.Sprint("e", i),
			Value: slog.GroupValue(
				slog.Attr{
					Key:   "msg",
					Value: slog.StringValue(FormatWithCode(v)),
				},
			),
		})
	}
	return slog.GroupValue(vals...)
}

// Session is the diagnostic sink shared by every check of a compilation.
// It is safe for concurrent use.
type Session struct {
	mu          sync.Mutex
	errs        *Errors
	delayedBugs []*Bug
}

func NewSession() *Session {
	return &Session{}
}

// Emit records a user-facing diagnostic
func (s *Session) Emit(err IleError) {
	logger.Warn("error reported", "at", ty.SpanOf(err), "message", FormatWithCode(err))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = s.errs.With(err)
}

// DelaySpanBug records an internal inconsistency without aborting the
// compilation. A compilation with delayed bugs is never successful.
func (s *Session) DelaySpanBug(pos ty.Positioner, message string) *Bug {
	bug := NewBug(pos, "%s", message)
	s.DelayBug(bug)
	return bug
}

func (s *Session) DelayBug(bug *Bug) {
	logger.Error("delayed bug", "at", ty.SpanOf(bug.Positioner), "bug", bug)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delayedBugs = append(s.delayedBugs, bug)
}

// Errors returns every diagnostic emitted so far, ordered by position and
// then by code, so that the order does not depend on scheduling.
func (s *Session) Errors() []IleError {
	s.mu.Lock()
	errs := slices.Clone(s.errs.Errors())
	s.mu.Unlock()
	slices.SortStableFunc(errs, func(a, b IleError) int {
		return cmp.Or(
			cmp.Compare(a.Pos(), b.Pos()),
			cmp.Compare(a.Code(), b.Code()),
			cmp.Compare(a.Error(), b.Error()),
		)
	})
	return errs
}

func (s *Session) DelayedBugs() []*Bug {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.delayedBugs)
}

func (s *Session) ErrorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs.Errors())
}

func (s *Session) HasErrors() bool {
	return s.ErrorCount() > 0 || len(s.DelayedBugs()) > 0
}
