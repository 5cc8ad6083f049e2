package ristretto

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c, err := New(1 << 20)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "tenant:acme", []byte(`{"namespace":"acme"}`), time.Minute))

	val, ok, err := c.Get(ctx, "tenant:acme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"namespace":"acme"}`, string(val))

	require.NoError(t, c.Delete(ctx, "tenant:acme"))
	_, ok, err = c.Get(ctx, "tenant:acme")
	require.NoError(t, err)
	assert.False(t, ok)
}
