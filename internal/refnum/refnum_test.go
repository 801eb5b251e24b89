package refnum_test

import (
	"bytes"
	"errors"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/nexoshop/internal/refnum"
)

func TestGenerator_Next_Format(t *testing.T) {
	g := refnum.MustNew(refnum.PrefixOrder)

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		n, err := g.Next()
		require.NoError(t, err)
		require.Regexp(t, refnum.Pattern, n)
		require.True(t, len(n) > len("ORD--")+5)
		seen[n] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)
}

func TestGenerator_Next_Deterministic(t *testing.T) {
	clock := func() time.Time { return time.UnixMilli(1718000000123) }
	// 0 -> 'A', 1 -> 'B', 35 -> '9', 36 -> 'A' (36 % 36), 252 is rejected.
	random := bytes.NewReader([]byte{0, 1, 252, 35, 36, 2, 0, 0, 0, 0})

	g := refnum.MustNew(refnum.PrefixInvoice, refnum.WithClock(clock), refnum.WithRandom(random))

	n, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, "INV-1718000000123-AB9AC", n)
}

func TestGenerator_Next_RandomFailure(t *testing.T) {
	readErr := errors.New("entropy exhausted")
	g := refnum.MustNew("ORD", refnum.WithRandom(iotest.ErrReader(readErr)))

	_, err := g.Next()
	require.ErrorIs(t, err, readErr)
}

func TestNew_RejectsInvalidPrefix(t *testing.T) {
	for _, prefix := range []string{"", "ord", "OR1", "OR-D"} {
		_, err := refnum.New(prefix)
		require.ErrorIs(t, err, refnum.ErrInvalidPrefix, prefix)
	}
}
