package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	buf := []byte("v1")
	require.NoError(t, s.Set(ctx, "k", buf))
	buf[0] = 'x'

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", string(got))
}

func TestStore_Watch(t *testing.T) {
	ctx := context.Background()
	s := New()

	var hits int
	stop := s.Watch("k", func() { hits++ })

	require.NoError(t, s.Set(ctx, "k", []byte("a")))
	require.NoError(t, s.Set(ctx, "other", []byte("b")))
	assert.Equal(t, 1, hits)

	stop()
	require.NoError(t, s.Set(ctx, "k", []byte("c")))
	assert.Equal(t, 1, hits)
}
