package delay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	e, err := NewEngine(250 * time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, e.Get())

	_, err = NewEngine(-time.Second)
	require.ErrorIs(t, err, ErrNegative)
}

func TestSetGet(t *testing.T) {
	e, err := NewEngine(0)
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), e.Get())

	require.NoError(t, e.Set(400*time.Millisecond))
	require.Equal(t, 400*time.Millisecond, e.Get())

	// A rejected set keeps the previous value.
	require.ErrorIs(t, e.Set(-1), ErrNegative)
	require.Equal(t, 400*time.Millisecond, e.Get())

	require.NoError(t, e.Set(0))
	require.Equal(t, time.Duration(0), e.Get())
}

func TestFromMillis(t *testing.T) {
	require.Equal(t, time.Duration(0), FromMillis(0))
	require.Equal(t, 400*time.Millisecond, FromMillis(400))
	require.Equal(t, 500*time.Microsecond, FromMillis(0.5))
	require.Equal(t, 2*time.Second, FromMillis(2000))
}
