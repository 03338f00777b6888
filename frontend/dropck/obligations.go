package dropck

import (
	"github.com/cottand/dropck/frontend/ilerr"
	"github.com/cottand/dropck/frontend/infer"
	"github.com/cottand/dropck/frontend/traits"
	"github.com/cottand/dropck/frontend/ty"
)

// RegionCtxt is the region checking context of a body
type RegionCtxt interface {
	InferCtxt() *infer.Ctxt
	ParamEnv() ty.ParamEnv
	RegisterInferOkObligations(ok infer.InferOk)
}

// CheckDropObligations registers with rcx the obligations that must hold for
// a value of type t to be dropped at span, in body. This also keeps types
// that grow with every level of recursion from making us diverge.
//
// It never fails: the obligations are only proven when rcx is.
func CheckDropObligations(rcx RegionCtxt, t ty.Type, span ty.Span, body ty.BodyID) error {
	logger.Debug("check drop obligations", "ty", t, "body", body)

	cause := infer.MiscCause(span, body)
	ok := rcx.InferCtxt().At(cause, rcx.ParamEnv()).DropckOutlives(t)
	logger.Debug("dropck outlives", "obligations", len(ok.Obligations))
	rcx.RegisterInferOkObligations(ok)
	return nil
}

var _ RegionCtxt = &BodyCtxt{}

// BodyCtxt checks the drops of a single body of item, proving the
// obligations they register once the body is done
type BodyCtxt struct {
	infcx    *infer.Ctxt
	engine   *traits.Engine
	item     ty.DefID
	paramEnv ty.ParamEnv
}

// NewBodyCtxt checks a body of item inside infcx, which it takes ownership of
func NewBodyCtxt(infcx *infer.Ctxt, item ty.DefID) *BodyCtxt {
	tbl := infcx.Table()
	env := ty.EmptyParamEnv()
	if item.IsValid() {
		env = tbl.ParamEnv(item)
	}
	return &BodyCtxt{
		infcx:    infcx,
		engine:   traits.NewEngine(tbl),
		item:     item,
		paramEnv: env,
	}
}

func (b *BodyCtxt) InferCtxt() *infer.Ctxt { return b.infcx }
func (b *BodyCtxt) ParamEnv() ty.ParamEnv  { return b.paramEnv }

func (b *BodyCtxt) RegisterInferOkObligations(ok infer.InferOk) {
	b.engine.RegisterPredicateObligations(b.infcx, ok.Obligations)
}

// Finish proves every obligation registered so far and checks the regions
// they require, emitting diagnostics to sess
func (b *BodyCtxt) Finish(sess *ilerr.Session) error {
	var result error
	if errs := b.engine.SelectAllOrError(b.infcx); len(errs) > 0 {
		traits.ReportFulfillmentErrors(b.infcx, sess, errs)
		result = ilerr.ErrReported
	}
	env := infer.NewOutlivesEnvironment(b.paramEnv)
	if !b.infcx.ResolveRegionsAndReportErrors(b.item, env, sess) {
		result = ilerr.ErrReported
	}
	return result
}
