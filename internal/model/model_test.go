package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyHashSpread(t *testing.T) {
	const shards = 8
	counts := make([]int, shards)
	for ch := 0; ch < 64; ch++ {
		for b := 1; b <= 64; b++ {
			counts[Key{Channel: ch, Bucket: time.Duration(b) * 5 * time.Second}.Hash()%shards]++
		}
	}
	// 4096 keys over 8 shards: every shard should hold a fair share.
	for i, n := range counts {
		assert.Greater(t, n, 256, "shard %d underused", i)
	}
}

func TestKeyHashStable(t *testing.T) {
	k := Key{Channel: 7, Bucket: 5 * time.Second}
	assert.Equal(t, k.Hash(), Key{Channel: 7, Bucket: 5 * time.Second}.Hash())
	assert.NotEqual(t, k.Hash(), Key{Channel: 8, Bucket: 5 * time.Second}.Hash())
	assert.Equal(t, "(7, 5s)", k.String())
}
