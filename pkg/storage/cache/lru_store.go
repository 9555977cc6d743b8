package cache

import (
	"bytes"
	"context"
	"io"

	"mygit/pkg/storage"
	"mygit/pkg/types"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLRUSize 是读缓存默认容纳的对象个数
const DefaultLRUSize = 1024

// ReadCache 在进程内缓存最近读取的压缩对象
// 对象一旦写入就不会变，所以缓存永远不需要失效
type ReadCache struct {
	backend storage.Store
	objects *lru.Cache[types.ObjectID, []byte]
}

// NewReadCache 创建读缓存，size <= 0 时使用 DefaultLRUSize
func NewReadCache(backend storage.Store, size int) (*ReadCache, error) {
	if size <= 0 {
		size = DefaultLRUSize
	}
	c, err := lru.New[types.ObjectID, []byte](size)
	if err != nil {
		return nil, err
	}
	return &ReadCache{backend: backend, objects: c}, nil
}

func (c *ReadCache) Put(ctx context.Context, id types.ObjectID, compressed []byte) error {
	return c.backend.Put(ctx, id, compressed)
}

// Get 命中时直接返回缓存的副本，未命中时读穿并回填
func (c *ReadCache) Get(ctx context.Context, id types.ObjectID) (io.ReadCloser, error) {
	if data, ok := c.objects.Get(id); ok {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	rc, err := c.backend.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, types.PathError(types.IOError, "read object", id.String(), err)
	}
	c.objects.Add(id, data)
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *ReadCache) Has(ctx context.Context, id types.ObjectID) (bool, error) {
	if c.objects.Contains(id) {
		return true, nil
	}
	return c.backend.Has(ctx, id)
}

func (c *ReadCache) ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.ObjectID, error) {
	return c.backend.ExpandHash(ctx, prefix)
}

// Len 返回当前缓存的对象个数
func (c *ReadCache) Len() int {
	return c.objects.Len()
}
