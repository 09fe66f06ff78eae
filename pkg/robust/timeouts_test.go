package robust

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTimeouts(t *testing.T) {
	d := DefaultTimeouts()
	assert.Equal(t, time.Second, d.Timeout)
	assert.Equal(t, 100*time.Millisecond, d.RetryInterval)
	assert.Equal(t, time.Second, d.WaitBeforeRetry)
	assert.NoError(t, d.Validate())
}

func TestValidateRejectsNegative(t *testing.T) {
	assert.Error(t, Timeouts{Timeout: -1}.Validate())
	assert.Error(t, Timeouts{RetryInterval: -1}.Validate())
	assert.Error(t, Timeouts{WaitBeforeRetry: -1}.Validate())
}

func TestApplyDoesNotMutateReceiver(t *testing.T) {
	base := DefaultTimeouts()
	got := base.Apply(WithTimeout(5*time.Second), WithRetryInterval(time.Millisecond))

	assert.Equal(t, 5*time.Second, got.Timeout)
	assert.Equal(t, time.Millisecond, got.RetryInterval)
	assert.Equal(t, time.Second, got.WaitBeforeRetry)
	assert.Equal(t, DefaultTimeouts(), base)
}

func TestZero(t *testing.T) {
	assert.Equal(t, Timeouts{}, DefaultTimeouts().Apply(Zero()))
}

func TestWithTemporary_OverridesAndRestores(t *testing.T) {
	s := NewSettings(DefaultTimeouts())

	var inside Timeouts
	err := s.WithTemporary(func() error {
		inside = s.Current()
		assert.Equal(t, 1, s.Depth())
		return nil
	}, WithTimeout(0))

	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), inside.Timeout)
	assert.Equal(t, DefaultRetryInterval, inside.RetryInterval)
	assert.Equal(t, DefaultTimeouts(), s.Current())
	assert.Equal(t, 0, s.Depth())
}

func TestWithTemporary_RestoresOnError(t *testing.T) {
	s := NewSettings(DefaultTimeouts())
	boom := errors.New("boom")

	err := s.WithTemporary(func() error { return boom }, WithTimeout(time.Minute))

	assert.Same(t, boom, err)
	assert.Equal(t, DefaultTimeout, s.Current().Timeout)
}

func TestWithTemporary_RestoresOnPanic(t *testing.T) {
	s := NewSettings(DefaultTimeouts())

	assert.Panics(t, func() {
		_ = s.WithTemporary(func() error { panic("kaboom") }, Zero())
	})
	assert.Equal(t, DefaultTimeouts(), s.Current())
	assert.Equal(t, 0, s.Depth())
}

func TestWithTemporary_Nested(t *testing.T) {
	s := NewSettings(DefaultTimeouts())

	err := s.WithTemporary(func() error {
		return s.WithTemporary(func() error {
			assert.Equal(t, 2, s.Depth())
			assert.Equal(t, 3*time.Second, s.Current().Timeout)
			assert.Equal(t, 5*time.Millisecond, s.Current().RetryInterval)
			return nil
		}, WithRetryInterval(5*time.Millisecond))
	}, WithTimeout(3*time.Second))

	require.NoError(t, err)
	assert.Equal(t, DefaultTimeouts(), s.Current())
}

func TestSetBaseKeepsOverrides(t *testing.T) {
	s := NewSettings(DefaultTimeouts())

	_ = s.WithTemporary(func() error {
		s.SetBase(Timeouts{Timeout: time.Minute})
		assert.Equal(t, time.Duration(0), s.Current().Timeout)
		return nil
	}, Zero())

	assert.Equal(t, time.Minute, s.Current().Timeout)
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewSettings(DefaultTimeouts())
	c := s.Clone()

	_ = c.WithTemporary(func() error {
		assert.Equal(t, DefaultTimeouts(), s.Current())
		return nil
	}, Zero())
}

func TestIsPermanent(t *testing.T) {
	assert.False(t, IsPermanent(nil))
	assert.False(t, IsPermanent(errors.New("transient")))
	assert.True(t, IsPermanent(Permanent(errors.New("x"))))
	assert.Nil(t, Permanent(nil))
}
