package cache

import (
	"bytes"
	"context"
	"crypto/sha1"
	"io"
	"sync"
	"sync/atomic"

	"mygit/pkg/storage"
	"mygit/pkg/types"
)

// -----------------------------------------------------------------------------
// SpyStore (间谍存储)
// 用于统计底层方法被调用的次数，验证请求是否穿透了缓存
// -----------------------------------------------------------------------------
type SpyStore struct {
	hasCount int32
	putCount int32
	getCount int32

	mu      sync.Mutex
	objects map[types.ObjectID][]byte
}

func NewSpyStore() *SpyStore {
	return &SpyStore{
		objects: make(map[types.ObjectID][]byte),
	}
}

func (s *SpyStore) Has(ctx context.Context, id types.ObjectID) (bool, error) {
	atomic.AddInt32(&s.hasCount, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[id]
	return ok, nil
}

func (s *SpyStore) Put(ctx context.Context, id types.ObjectID, compressed []byte) error {
	atomic.AddInt32(&s.putCount, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[id] = append([]byte(nil), compressed...)
	return nil
}

func (s *SpyStore) Get(ctx context.Context, id types.ObjectID) (io.ReadCloser, error) {
	atomic.AddInt32(&s.getCount, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[id]
	if !ok {
		return nil, types.PathError(types.NotFound, "read object", id.String(), nil)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *SpyStore) ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.ObjectID, error) {
	return types.ZeroID, storage.ErrNotFound
}

func mockID(s string) types.ObjectID {
	return types.ObjectID(sha1.Sum([]byte(s)))
}
