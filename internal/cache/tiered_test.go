package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudbday/cloudbday/internal/cache"
	"github.com/cloudbday/cloudbday/internal/cache/cachetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that an L2 hit backfills L1 with the capped L1 TTL.
// Scope: Unit Test
// Expected: After a Get served by L2, L1 holds the entry with the L1 TTL.
// Test Case ID: CCH-01
func TestTiered_GetBackfillsL1(t *testing.T) {
	ctx := context.Background()
	l1, l2 := cachetest.New(), cachetest.New()
	c := cache.NewTiered(l1, l2, 30*time.Second)

	require.NoError(t, l2.Set(ctx, "k", []byte("v"), time.Hour))

	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), val)
	assert.True(t, l1.Has("k"))
	assert.Equal(t, 30*time.Second, l1.TTLs["k"])
}

// TestPurpose: Validates that Set and Delete reach both levels.
// Scope: Unit Test
// Expected: Entries appear in and disappear from both L1 and L2.
// Test Case ID: CCH-02
func TestTiered_SetDelete(t *testing.T) {
	ctx := context.Background()
	l1, l2 := cachetest.New(), cachetest.New()
	c := cache.NewTiered(l1, l2, time.Minute)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 24*time.Hour))
	assert.Equal(t, time.Minute, l1.TTLs["k"])
	assert.Equal(t, 24*time.Hour, l2.TTLs["k"])

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Second))
	assert.Equal(t, time.Second, l1.TTLs["short"])

	require.NoError(t, c.Delete(ctx, "k"))
	assert.False(t, l1.Has("k"))
	assert.False(t, l2.Has("k"))
}

type readOnlyCache struct {
	*cachetest.Memory
}

func (readOnlyCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("l1 full")
}

// TestPurpose: Validates that a failed L1 backfill does not fail an L2 hit.
// Scope: Unit Test
// Expected: Get returns the L2 value without error and L1 stays empty.
// Test Case ID: CCH-03
func TestTiered_GetBackfillFailure(t *testing.T) {
	ctx := context.Background()
	l1, l2 := readOnlyCache{cachetest.New()}, cachetest.New()
	c := cache.NewTiered(l1, l2, time.Minute)

	require.NoError(t, l2.Set(ctx, "k", []byte("v"), time.Hour))

	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), val)
	assert.False(t, l1.Has("k"))
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := cachetest.New()

	type entry struct {
		Name string `json:"name"`
	}

	var got entry
	ok, err := cache.GetJSON(ctx, m, "missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.SetJSON(ctx, m, "e", entry{Name: "ada"}, 0))
	ok, err = cache.GetJSON(ctx, m, "e", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ada", got.Name)
}
