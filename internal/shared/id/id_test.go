package id

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExternalOrderID_UniqueAndPrefixed(t *testing.T) {
	const n = 500
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := NewExternalOrderID()
			mu.Lock()
			seen[v] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for v := range seen {
		assert.True(t, strings.HasPrefix(v, OrderPrefix))
		assert.LessOrEqual(t, len(v), 32)
	}
}

func TestInitNode_RejectsOutOfRange(t *testing.T) {
	assert.Error(t, InitNode(4096))
	require.NoError(t, InitNode(7))
}

func TestNewIdempotencyKey(t *testing.T) {
	k := NewIdempotencyKey()
	_, err := uuid.Parse(k)
	assert.NoError(t, err)
	assert.NotEqual(t, k, NewIdempotencyKey())
}
