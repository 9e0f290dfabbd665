package distributor

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimPartition(t *testing.T) {
	for items := 0; items <= 16; items++ {
		for peers := 1; peers <= 16; peers++ {
			in := make([]int, items)
			for i := range in {
				in[i] = i
			}
			pool := NewPool(in)

			seen := make(map[int]int)
			for idx := 0; idx < peers; idx++ {
				got, err := pool.Claim(idx, peers)
				require.NoError(t, err)
				for _, pos := range got {
					assert.Equal(t, idx, pos%peers)
					seen[pos]++
				}
			}
			assert.Len(t, seen, items, "items=%d peers=%d", items, peers)
			for pos, n := range seen {
				assert.Equal(t, 1, n, "position %d claimed %d times", pos, n)
			}
			assert.Zero(t, pool.Remaining())
		}
	}
}

func TestClaimConcurrent(t *testing.T) {
	in := make([]int, 100)
	for i := range in {
		in[i] = i
	}
	pool := NewPool(in)

	const peers = 7
	results := make([][]int, peers)
	var wg sync.WaitGroup
	wg.Add(peers)
	for idx := 0; idx < peers; idx++ {
		go func(idx int) {
			defer wg.Done()
			got, err := pool.Claim(idx, peers)
			assert.NoError(t, err)
			results[idx] = got
		}(idx)
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	assert.Equal(t, 100, total)
}

func TestClaimTwiceConflicts(t *testing.T) {
	pool := NewPool([]string{"a", "b", "c", "d"})
	got, err := pool.Claim(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, got)
	assert.Equal(t, 2, pool.Remaining())

	_, err = pool.Claim(1, 2)
	var ce *ClaimConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.Position)
	assert.Equal(t, 2, pool.Remaining())
}

func TestClaimInvalidArgs(t *testing.T) {
	pool := NewPool([]int{1})
	_, err := pool.Claim(2, 2)
	assert.Error(t, err)
	_, err = pool.Claim(0, 0)
	assert.Error(t, err)
	_, err = pool.Claim(-1, 3)
	assert.Error(t, err)
}

func TestDrain(t *testing.T) {
	pool := NewPool([]int{10, 11, 12})
	_, err := pool.Claim(0, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{11, 12}, pool.Drain())
	assert.Empty(t, pool.Drain())
}
