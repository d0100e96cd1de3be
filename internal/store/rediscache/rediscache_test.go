package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*Cache, func()) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	c, err := New("redis://"+mr.Addr(), zerolog.Nop())
	require.NoError(t, err)

	return c, func() {
		c.Close()
		mr.Close()
	}
}

type testValue struct {
	Name string `json:"name"`
}

func TestCache_SetThenGet_Hit(t *testing.T) {
	c, cleanup := setupCache(t)
	defer cleanup()

	ctx := context.Background()
	c.Set(ctx, "lead:1", testValue{Name: "ada"}, time.Minute)

	var got testValue
	ok := c.Get(ctx, "lead:1", &got)
	assert.True(t, ok)
	assert.Equal(t, "ada", got.Name)
}

func TestCache_Get_Miss(t *testing.T) {
	c, cleanup := setupCache(t)
	defer cleanup()

	var got testValue
	ok := c.Get(context.Background(), "lead:missing", &got)
	assert.False(t, ok)
}

func TestCache_Get_FailsOpenOnBadConnection(t *testing.T) {
	c, cleanup := setupCache(t)
	cleanup() // closes the client; subsequent calls must fail open, not panic

	var got testValue
	ok := c.Get(context.Background(), "lead:1", &got)
	assert.False(t, ok)
}
