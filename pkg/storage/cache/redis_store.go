package cache

import (
	"context"
	"fmt"
	"io"
	"time"

	"mygit/pkg/storage"
	"mygit/pkg/types"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedStore 是一个装饰器，为底层 storage.Store 加一层 Redis 存在性缓存
// 只缓存 "对象存在" 这一事实，不缓存对象内容
type CachedStore struct {
	backend   storage.Store
	client    *redis.Client
	namespace string
	ttl       time.Duration
	overwrite bool
	log       *zap.Logger
}

type Config struct {
	RedisURL string // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	// Namespace 标识底层存储 (比如对象目录的绝对路径或 S3 的 bucket/prefix)
	// 共用一个 Redis 的不同仓库靠它隔开
	Namespace string
	TTL       time.Duration // 过期时间，0 表示不过期
	Overwrite bool          // 与底层存储一致: 为 true 时 Put 不做存在性预检
	Logger    *zap.Logger
}

func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	if cfg.Namespace == "" {
		return nil, types.Errorf(types.InvalidInput, "open redis cache", "namespace is required")
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, types.NewError(types.InvalidInput, "open redis cache", fmt.Errorf("invalid redis url: %w", err))
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, types.NewError(types.IOError, "open redis cache", fmt.Errorf("failed to connect to redis: %w", err))
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &CachedStore{
		backend:   backend,
		client:    client,
		namespace: cfg.Namespace,
		ttl:       cfg.TTL,
		overwrite: cfg.Overwrite,
		log:       log,
	}, nil
}

// cacheKey 生成 Redis Key: mygit:<namespace>:obj:<id>
func (s *CachedStore) cacheKey(id types.ObjectID) string {
	return "mygit:" + s.namespace + ":obj:" + id.String()
}

// Has 优先查 Redis
func (s *CachedStore) Has(ctx context.Context, id types.ObjectID) (bool, error) {
	key := s.cacheKey(id)

	// 1. 查 Redis
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		// 缓存故障降级为无缓存模式
		s.log.Warn("redis exists failed, falling back to backend", zap.Stringer("id", id), zap.Error(err))
	} else if val > 0 {
		return true, nil
	}

	// 2. 缓存未命中，查底层存储
	found, err := s.backend.Has(ctx, id)
	if err != nil {
		return false, err
	}

	// 3. 异步回填，不阻塞主流程
	if found {
		go func() {
			fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.client.Set(fillCtx, key, "1", s.ttl).Err(); err != nil {
				s.log.Debug("redis fill failed", zap.Stringer("id", id), zap.Error(err))
			}
		}()
	}

	return found, nil
}

// Put 利用 Has 的缓存能力进行预检，overwrite 时直接写底层
func (s *CachedStore) Put(ctx context.Context, id types.ObjectID, compressed []byte) error {
	if !s.overwrite {
		exists, err := s.Has(ctx, id)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
	}

	if err := s.backend.Put(ctx, id, compressed); err != nil {
		return err
	}

	// 只有底层写成功了才写 Redis
	if err := s.client.Set(ctx, s.cacheKey(id), "1", s.ttl).Err(); err != nil {
		s.log.Warn("redis set failed", zap.Stringer("id", id), zap.Error(err))
	}
	return nil
}

// Get 透传
func (s *CachedStore) Get(ctx context.Context, id types.ObjectID) (io.ReadCloser, error) {
	return s.backend.Get(ctx, id)
}

// ExpandHash 透传
func (s *CachedStore) ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.ObjectID, error) {
	return s.backend.ExpandHash(ctx, prefix)
}

// Close 关闭 Redis 连接
func (s *CachedStore) Close() error {
	return s.client.Close()
}
