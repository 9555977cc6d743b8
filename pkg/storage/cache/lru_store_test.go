package cache

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"mygit/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, c *ReadCache, id types.ObjectID) []byte {
	t.Helper()
	rc, err := c.Get(context.Background(), id)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestReadCache_GetHit(t *testing.T) {
	ctx := context.Background()
	spy := NewSpyStore()
	c, err := NewReadCache(spy, 2)
	require.NoError(t, err)

	id := mockID("a")
	require.NoError(t, c.Put(ctx, id, []byte("compressed-a")))
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.putCount))

	// 第一次穿透，第二次命中
	assert.Equal(t, []byte("compressed-a"), readAll(t, c, id))
	assert.Equal(t, []byte("compressed-a"), readAll(t, c, id))
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.getCount))
	assert.Equal(t, 1, c.Len())

	// 缓存命中时 Has 不查底层
	ok, err := c.Has(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(0), atomic.LoadInt32(&spy.hasCount))
}

func TestReadCache_Eviction(t *testing.T) {
	ctx := context.Background()
	spy := NewSpyStore()
	c, err := NewReadCache(spy, 2)
	require.NoError(t, err)

	ids := []types.ObjectID{mockID("1"), mockID("2"), mockID("3")}
	for _, id := range ids {
		require.NoError(t, c.Put(ctx, id, id.Bytes()))
		readAll(t, c, id)
	}
	assert.Equal(t, 2, c.Len())

	// 最早的被淘汰，再读要穿透
	before := atomic.LoadInt32(&spy.getCount)
	assert.Equal(t, ids[0].Bytes(), readAll(t, c, ids[0]))
	assert.Equal(t, before+1, atomic.LoadInt32(&spy.getCount))
}

func TestReadCache_MissDoesNotCache(t *testing.T) {
	c, err := NewReadCache(NewSpyStore(), 0)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), mockID("missing"))
	assert.ErrorIs(t, err, types.NotFound)
	assert.Equal(t, 0, c.Len())

	ok, err := c.Has(context.Background(), mockID("missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}
