package ilerr

import (
	"errors"
	"fmt"
	"go/token"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/cottand/dropck/frontend/ty"
)

// enableDebugErrorPrinting makes errors include the frame that created them when printed
var enableDebugErrorPrinting = false

const enableDebugFullStacktrace bool = false

// ErrReported is the only error returned by checks. It signals that all
// diagnostics describing the failure were already emitted to a Session.
var ErrReported = errors.New("errors were reported")

type ErrCode int

const (
	None ErrCode = 0
	// DropImplSpecialized is raised when a destructor is written for a
	// narrower instantiation than the type declares
	DropImplSpecialized ErrCode = 366
	// DropImplAddsRequirement is raised when a destructor requires a bound
	// that the type definition does not
	DropImplAddsRequirement ErrCode = 367
	ProjectionTypeMismatch    ErrCode = 271
	OverflowEvaluating        ErrCode = 275
	UnsatisfiedBound          ErrCode = 277
	AmbiguousBound            ErrCode = 283
	ParamMayNotLiveLongEnough ErrCode = 310
	OverflowDropCheck         ErrCode = 320
	LifetimeBoundNotMet       ErrCode = 478
)

func (c ErrCode) String() string {
	if c == None {
		return "error"
	}
	return fmt.Sprintf("E%04d", int(c))
}

// Note is a secondary message attached to a diagnostic
type Note struct {
	ty.Span
	Message string
}

type IleError interface {
	Error() string
	Code() ErrCode
	ty.Positioner
	Notes() []Note

	withStack([]byte) IleError
	getStack() []byte
}

func FormatWithCode(e IleError) string {
	if enableDebugErrorPrinting && e.getStack() != nil {
		stack := string(e.getStack())
		if !enableDebugFullStacktrace {
			lines := strings.Split(stack, "\n")
			if len(lines) > 6 {
				stack = strings.TrimSpace(lines[6])
			}
		}
		return fmt.Sprintf("%s:(%v) %s", stack, e.Code(), e.Error())
	}
	return fmt.Sprintf("(%v) %s", e.Code(), e.Error())
}

// SourceProvider resolves positions to file locations
type SourceProvider interface {
	FileSet() *token.FileSet
}

// FormatWithCodeAndSource renders e and its notes with file positions
func FormatWithCodeAndSource(e IleError, source SourceProvider) string {
	fset := source.FileSet()
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "%s: error[%v]: %s", positionOf(fset, e.Pos()), e.Code(), e.Error())
	for _, note := range e.Notes() {
		fmt.Fprintf(sb, "\n  %s: note: %s", positionOf(fset, note.Pos()), note.Message)
	}
	return sb.String()
}

func positionOf(fset *token.FileSet, pos token.Pos) string {
	if fset == nil || !pos.IsValid() {
		return "<unknown>"
	}
	return fset.Position(pos).String()
}

func New[E IleError](err E) IleError {
	return err.withStack(debug.Stack())
}

type Unclassified struct {
	From error
	ty.Positioner
	stack []byte
}

func (e Unclassified) Error() string {
	return fmt.Sprintf("unclassified error: %v", e.From)
}
func (e Unclassified) Code() ErrCode    { return None }
func (e Unclassified) Notes() []Note    { return nil }
func (e Unclassified) getStack() []byte { return e.stack }
func (e Unclassified) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewSyntax struct {
	ty.Positioner
	Message string
	stack   []byte
}

func (e NewSyntax) Error() string {
	return "syntax error: " + e.Message
}
func (e NewSyntax) Code() ErrCode    { return None }
func (e NewSyntax) Notes() []Note    { return nil }
func (e NewSyntax) getStack() []byte { return e.stack }
func (e NewSyntax) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewDropImplSpecialized struct {
	// Positioner is the span of the drop impl
	ty.Positioner
	// Item is the span of the type definition
	Item  ty.Span
	stack []byte
}

func (e NewDropImplSpecialized) Error() string {
	return "Implementations of Drop cannot be specialized"
}
func (e NewDropImplSpecialized) Code() ErrCode { return DropImplSpecialized }
func (e NewDropImplSpecialized) Notes() []Note {
	return []Note{{
		Span:    e.Item,
		Message: "Use same sequence of generic type and region parameters that is on the struct/enum definition",
	}}
}
func (e NewDropImplSpecialized) getStack() []byte { return e.stack }
func (e NewDropImplSpecialized) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewDropImplAddsRequirement struct {
	ty.Positioner
	Item      ty.Span
	Predicate ty.Predicate
	stack     []byte
}

func (e NewDropImplAddsRequirement) Error() string {
	return fmt.Sprintf("The requirement `%v` is added only by the Drop impl.", e.Predicate)
}
func (e NewDropImplAddsRequirement) Code() ErrCode { return DropImplAddsRequirement }
func (e NewDropImplAddsRequirement) Notes() []Note {
	return []Note{{
		Span:    e.Item,
		Message: "The same requirement must be part of the struct/enum definition",
	}}
}
func (e NewDropImplAddsRequirement) getStack() []byte { return e.stack }
func (e NewDropImplAddsRequirement) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewUnsatisfiedBound struct {
	ty.Positioner
	Predicate ty.Predicate
	stack     []byte
}

func (e NewUnsatisfiedBound) Error() string {
	return fmt.Sprintf("the trait bound `%v` is not satisfied", e.Predicate)
}
func (e NewUnsatisfiedBound) Code() ErrCode    { return UnsatisfiedBound }
func (e NewUnsatisfiedBound) Notes() []Note    { return nil }
func (e NewUnsatisfiedBound) getStack() []byte { return e.stack }
func (e NewUnsatisfiedBound) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewAmbiguousBound struct {
	ty.Positioner
	Predicate ty.Predicate
	stack     []byte
}

func (e NewAmbiguousBound) Error() string {
	return fmt.Sprintf("type annotations needed: cannot satisfy `%v`", e.Predicate)
}
func (e NewAmbiguousBound) Code() ErrCode    { return AmbiguousBound }
func (e NewAmbiguousBound) Notes() []Note    { return nil }
func (e NewAmbiguousBound) getStack() []byte { return e.stack }
func (e NewAmbiguousBound) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewParamMayNotLiveLongEnough struct {
	ty.Positioner
	Ty     ty.Type
	Region ty.Region
	stack  []byte
}

func (e NewParamMayNotLiveLongEnough) Error() string {
	return fmt.Sprintf("the type `%v` may not live long enough: it must outlive `%v`", e.Ty, e.Region)
}
func (e NewParamMayNotLiveLongEnough) Code() ErrCode { return ParamMayNotLiveLongEnough }
func (e NewParamMayNotLiveLongEnough) Notes() []Note {
	return []Note{{
		Span:    ty.SpanOf(e.Positioner),
		Message: fmt.Sprintf("consider adding an explicit lifetime bound `%v: %v`", e.Ty, e.Region),
	}}
}
func (e NewParamMayNotLiveLongEnough) getStack() []byte { return e.stack }
func (e NewParamMayNotLiveLongEnough) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewProjectionMismatch struct {
	ty.Positioner
	Predicate ty.Predicate
	Reason    string
	stack     []byte
}

func (e NewProjectionMismatch) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("type mismatch resolving `%v`", e.Predicate)
	}
	return fmt.Sprintf("type mismatch resolving `%v`: %s", e.Predicate, e.Reason)
}
func (e NewProjectionMismatch) Code() ErrCode    { return ProjectionTypeMismatch }
func (e NewProjectionMismatch) Notes() []Note    { return nil }
func (e NewProjectionMismatch) getStack() []byte { return e.stack }
func (e NewProjectionMismatch) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewOverflow struct {
	ty.Positioner
	Predicate ty.Predicate
	stack     []byte
}

func (e NewOverflow) Error() string {
	return fmt.Sprintf("overflow evaluating the requirement `%v`", e.Predicate)
}
func (e NewOverflow) Code() ErrCode    { return OverflowEvaluating }
func (e NewOverflow) Notes() []Note    { return nil }
func (e NewOverflow) getStack() []byte { return e.stack }
func (e NewOverflow) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewDropckOverflow struct {
	ty.Positioner
	Ty    ty.Type
	stack []byte
}

func (e NewDropckOverflow) Error() string {
	return fmt.Sprintf("overflow while adding drop-check rules for `%v`", e.Ty)
}
func (e NewDropckOverflow) Code() ErrCode    { return OverflowDropCheck }
func (e NewDropckOverflow) Notes() []Note    { return nil }
func (e NewDropckOverflow) getStack() []byte { return e.stack }
func (e NewDropckOverflow) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewLifetimeBoundNotMet struct {
	ty.Positioner
	Longer, Shorter ty.Region
	stack           []byte
}

func (e NewLifetimeBoundNotMet) Error() string {
	return fmt.Sprintf("lifetime bound not satisfied: `%v` must outlive `%v`", e.Longer, e.Shorter)
}
func (e NewLifetimeBoundNotMet) Code() ErrCode    { return LifetimeBoundNotMet }
func (e NewLifetimeBoundNotMet) Notes() []Note    { return nil }
func (e NewLifetimeBoundNotMet) getStack() []byte { return e.stack }
func (e NewLifetimeBoundNotMet) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

// Bug is an internal inconsistency: a state that earlier passes should
// have made impossible. Bugs are never attributed to the user.
type Bug struct {
	ty.Positioner
	Message string
	stack   []byte
}

func NewBug(pos ty.Positioner, format string, args ...any) *Bug {
	return &Bug{Positioner: pos, Message: fmt.Sprintf(format, args...), stack: debug.Stack()}
}

func (b *Bug) Error() string {
	return "internal compiler error: " + b.Message
}

func (b *Bug) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("msg", b.Message)}
	if enableDebugErrorPrinting {
		attrs = append(attrs, slog.String("stack", string(b.stack)))
	}
	return slog.GroupValue(attrs...)
}

// FormatBug renders b with its file position, if it has one
func FormatBug(b *Bug, source SourceProvider) string {
	pos := token.NoPos
	if b.Positioner != nil {
		pos = b.Pos()
	}
	return fmt.Sprintf("%s: %v", positionOf(source.FileSet(), pos), b)
}
