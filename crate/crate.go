package crate

import (
	"context"
	"go/token"

	"github.com/cottand/dropck/frontend/dropck"
	"github.com/cottand/dropck/frontend/ilerr"
	"github.com/cottand/dropck/frontend/infer"
	"github.com/cottand/dropck/frontend/ty"
	"golang.org/x/sync/errgroup"
)

var _ ilerr.SourceProvider = &Crate{}

// Crate is a loaded set of item definitions along with the bodies that
// drop values
type Crate struct {
	fset     *token.FileSet
	tbl      *ty.Table
	settings Settings
	loadErrs *ilerr.Errors
	fns      []fnBody
}

type fnBody struct {
	item  ty.DefID
	name  string
	body  ty.BodyID
	drops []drop
}

type drop struct {
	ty   ty.Type
	span ty.Span
}

func (c *Crate) FileSet() *token.FileSet { return c.fset }

// Table is nil when the crate has load errors
func (c *Crate) Table() *ty.Table { return c.tbl }

// LoadErrors are the syntax and resolution errors found by Load
func (c *Crate) LoadErrors() *ilerr.Errors { return c.loadErrs }

// Check checks every Drop impl of the crate, then every value dropped in
// its function bodies. Checks run concurrently, bounded by
// Settings.Workers.
//
// The returned session holds every diagnostic. The error is
// ilerr.ErrReported if any check failed, or the error of ctx if it was
// cancelled first.
func (c *Crate) Check(ctx context.Context) (*ilerr.Session, error) {
	sess := ilerr.NewSession()
	if c.loadErrs.HasError() {
		for _, err := range c.loadErrs.Errors() {
			sess.Emit(err)
		}
		return sess, ilerr.ErrReported
	}

	checker := dropck.NewChecker(c.tbl, sess)
	g, ctx := errgroup.WithContext(ctx)
	if c.settings.Workers > 0 {
		g.SetLimit(c.settings.Workers)
	}
	results := make(chan error, len(c.tbl.DropImpls())+len(c.fns))
	for _, impl := range c.tbl.DropImpls() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results <- recoverAsBug(sess, c.tbl.DefSpan(impl), func() error {
				return checker.CheckDropImpl(impl)
			})
			return nil
		})
	}
	for _, fn := range c.fns {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results <- recoverAsBug(sess, c.tbl.DefSpan(fn.item), func() error {
				return c.checkFn(sess, fn)
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sess, err
	}
	close(results)

	var failed int
	for err := range results {
		if err != nil {
			failed++
		}
	}
	logger.Info("checked crate", "dropImpls", len(c.tbl.DropImpls()), "fns", len(c.fns), "failed", failed)
	if failed > 0 || sess.HasErrors() {
		return sess, ilerr.ErrReported
	}
	return sess, nil
}

// recoverAsBug runs check, turning a panic into a delayed bug at pos so the
// other checks of the crate still run
func recoverAsBug(sess *ilerr.Session, pos ty.Positioner, check func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			sess.DelayBug(ilerr.NewBug(pos, "panicked while checking: %v", r))
			err = ilerr.ErrReported
		}
	}()
	return check()
}

// checkFn checks the drops at the end of a single body
func (c *Crate) checkFn(sess *ilerr.Session, fn fnBody) error {
	return infer.Enter(c.tbl, sess, func(infcx *infer.Ctxt) error {
		bcx := dropck.NewBodyCtxt(infcx, fn.item)
		for _, d := range fn.drops {
			if err := dropck.CheckDropObligations(bcx, d.ty, d.span, fn.body); err != nil {
				return err
			}
		}
		logger.Debug("registered drops", "fn", fn.name, "drops", len(fn.drops))
		return bcx.Finish(sess)
	})
}
