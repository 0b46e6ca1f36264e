package id

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesKind(t *testing.T) {
	for _, kind := range []Kind{KindOperation, KindTrace, KindSpan} {
		got, u, err := Split(New(kind))
		require.NoError(t, err)
		assert.Equal(t, kind, got)
		assert.NotZero(t, u)
	}
}

func TestIdsIncrease(t *testing.T) {
	_, a, err := Split(New(KindSpan))
	require.NoError(t, err)
	_, b, err := Split(New(KindSpan))
	require.NoError(t, err)
	assert.Positive(t, b.Compare(a))
}

func TestTokenPair(t *testing.T) {
	success, failure := NewTokenPair()
	assert.NotEqual(t, success, failure)

	kind, s, err := Split(success.String())
	require.NoError(t, err)
	assert.Equal(t, KindSuccess, kind)

	kind, f, err := Split(failure.String())
	require.NoError(t, err)
	assert.Equal(t, KindError, kind)
	assert.Equal(t, s.Time(), f.Time(), "a pair shares its timestamp")
}

func TestSplitRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "cb", "_01ARZ3NDEKTSV4RRFFQ69G5FAV", "cb_invalid", "op_zzzzzzzzzzzzzzzzzzzzzzzzzz"} {
		_, _, err := Split(s)
		assert.ErrorIs(t, err, ErrMalformed, s)
	}
}

func TestIssued(t *testing.T) {
	before := time.Now().Truncate(time.Millisecond)
	op := NewOperationID()
	after := time.Now()

	at, err := Issued(op.String())
	require.NoError(t, err)
	assert.False(t, at.Before(before))
	assert.False(t, at.After(after))
}

func TestConcurrentTokensUnique(t *testing.T) {
	const workers, pairs = 64, 50

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[Token]struct{}, workers*pairs*2)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < pairs; j++ {
				s, f := NewTokenPair()
				mu.Lock()
				seen[s] = struct{}{}
				seen[f] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*pairs*2)
}
