package crate

import (
	"context"
	"errors"
	"testing"

	"github.com/cottand/dropck/frontend/ilerr"
	"github.com/cottand/dropck/frontend/ty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverAsBug(t *testing.T) {
	sess := ilerr.NewSession()
	at := ty.Span{PosStart: 3, PosEnd: 9}

	var err error
	require.NotPanics(t, func() {
		err = recoverAsBug(sess, at, func() error { panic("substs out of range") })
	})
	assert.ErrorIs(t, err, ilerr.ErrReported)
	bugs := sess.DelayedBugs()
	require.Len(t, bugs, 1)
	assert.Equal(t, at, bugs[0].Positioner)
	assert.Contains(t, bugs[0].Error(), "substs out of range")
	assert.True(t, sess.HasErrors())

	failure := errors.New("not a panic")
	assert.Equal(t, failure, recoverAsBug(sess, at, func() error { return failure }))
	assert.NoError(t, recoverAsBug(sess, at, func() error { return nil }))
	assert.Len(t, sess.DelayedBugs(), 1)
}

func TestCheckReportsPanicsAsBugs(t *testing.T) {
	c, err := LoadBytes([]byte("fns:\n  - name: main\n    drops: [u8]\n"))
	require.NoError(t, err)
	option, ok := c.Table().Lookup("Option")
	require.True(t, ok)
	// Option without its argument cannot be substituted into
	c.fns[0].drops = append(c.fns[0].drops, drop{ty: ty.Adt{Def: option, Name: "Option"}})

	var sess *ilerr.Session
	require.NotPanics(t, func() { sess, err = c.Check(context.Background()) })
	assert.ErrorIs(t, err, ilerr.ErrReported)
	assert.Empty(t, sess.Errors())
	assert.NotEmpty(t, sess.DelayedBugs())
}
