package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mygit/pkg/codec"
	"mygit/pkg/config"
	"mygit/pkg/exporter"
	"mygit/pkg/index"
	"mygit/pkg/ingester"
	"mygit/pkg/logger"
	"mygit/pkg/meta"
	"mygit/pkg/plumbing"
	"mygit/pkg/storage"
	"mygit/pkg/storage/cache"
	"mygit/pkg/storage/disk"
	"mygit/pkg/storage/s3"
	"mygit/pkg/types"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// App 是整个应用程序的依赖容器
// 它持有所有 "单例" 服务，按 Viper 配置组装
type App struct {
	Store    storage.Store
	Codec    *codec.Codec
	Ingester *ingester.Ingester
	Exporter *exporter.Exporter
	Index    *index.Index     // stat 缓存，可能为空
	Catalog  *meta.Repository // 对象目录，未启用时为空
	Repo     *plumbing.Repository
	Log      *zap.Logger

	RepoPath types.RepoPath // 绝对路径

	closers []io.Closer
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	log, err := logger.New(viper.GetString(config.KeyLogLevel))
	if err != nil {
		return nil, types.NewError(types.InvalidInput, "init logger", err)
	}

	// 1. 仓库根路径，统一成绝对路径，快照时按身份跳过它
	repoPath := viper.GetString(config.KeyRepoPath)
	if repoPath == "" {
		return nil, types.Errorf(types.InvalidInput, "init app", "repo path not set")
	}
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, types.PathError(types.IOError, "init app", repoPath, err)
	}
	repo := types.RepoPath(abs)

	a := &App{Log: log, RepoPath: repo}

	// 2. 存储层 (disk / s3 + 缓存装饰器)
	store, closers, err := initStore(ctx, repo, log)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, closers...)

	// 3. 读写路径
	a.Codec = codec.NewCodec(viper.GetInt(config.KeyMaxObjectSize))
	a.Ingester = ingester.NewIngester(store, a.Codec, log)
	a.Exporter = exporter.NewExporter(store, a.Codec)

	// 4. 对象目录 (可选)
	if viper.GetBool(config.KeyCatalogEnabled) {
		if err := a.initCatalog(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	// 5. stat 缓存: 只在本地仓库目录存在时启用
	if viper.GetBool(config.KeyStatCache) && isDir(string(repo)) {
		a.Index = loadStatCache(repo.Join(index.FileName), log)
	}

	a.Repo = plumbing.New(store, a.Ingester, a.Exporter, plumbing.Options{
		RepoPath:   repo,
		IgnoreFile: viper.GetString(config.KeyIgnoreFile),
		StatCache:  a.Index,
		Jobs:       viper.GetInt(config.KeyJobs),
		Logger:     log,
	})
	return a, nil
}

// Close 释放外部连接 (Redis / 数据库)，并刷掉日志
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return errors.Join(errs...)
}

// initStore 根据 storage.type 构造底层存储，再依次套上缓存装饰器
func initStore(ctx context.Context, repo types.RepoPath, log *zap.Logger) (storage.Store, []io.Closer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	overwrite := viper.GetBool(config.KeyStorageOverwrite)

	var store storage.Store
	var closers []io.Closer
	var namespace string // Redis 里区分不同的底层存储

	switch typ := viper.GetString(config.KeyStorageType); typ {
	case "", "disk":
		s, err := disk.NewAdapter(repo.ObjectsDir(), disk.Options{
			Overwrite: overwrite,
			Logger:    log,
		})
		if err != nil {
			return nil, nil, err
		}
		store = s
		namespace = "disk:" + s.Root()

	case "s3":
		s, err := s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString(config.KeyS3Endpoint),
			Region:          viper.GetString(config.KeyS3Region),
			Bucket:          viper.GetString(config.KeyS3Bucket),
			Prefix:          viper.GetString(config.KeyS3Prefix),
			AccessKeyID:     viper.GetString(config.KeyS3AccessKey),
			SecretAccessKey: viper.GetString(config.KeyS3SecretKey),
			Overwrite:       overwrite,
			Logger:          log,
		})
		if err != nil {
			return nil, nil, err
		}
		store = s
		namespace = "s3:" + s.Location()

	default:
		return nil, nil, types.Errorf(types.InvalidInput, "init storage", "unsupported storage type %q", typ)
	}

	// Redis 只缓存存在性，对远端存储最有用
	if url := viper.GetString(config.KeyRedisURL); url != "" {
		cached, err := cache.NewCachedStore(store, cache.Config{
			RedisURL:  url,
			Namespace: namespace,
			TTL:       viper.GetDuration(config.KeyCacheTTL),
			Overwrite: overwrite,
			Logger:    log,
		})
		if err != nil {
			return nil, nil, err
		}
		store = cached
		closers = append(closers, cached)
	}

	if size := viper.GetInt(config.KeyLRUSize); size > 0 {
		rc, err := cache.NewReadCache(store, size)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init read cache: %w", err)
		}
		store = rc
	}

	return store, closers, nil
}

func (a *App) initCatalog(ctx context.Context) error {
	dsn := viper.GetString(config.KeyCatalogDSN)
	driver := viper.GetString(config.KeyCatalogDriver)
	if dsn == "" && (driver == "" || driver == "sqlite") {
		dsn = a.RepoPath.Join("catalog.db")
	}

	db, err := meta.NewDB(ctx, meta.Config{Driver: driver, DSN: dsn})
	if err != nil {
		return err
	}
	a.Catalog = meta.NewRepository(db)
	a.Ingester.SetRecorder(a.Catalog)
	a.closers = append(a.closers, db)
	return nil
}

// loadStatCache 读不出来的缓存直接丢弃重建
func loadStatCache(path string, log *zap.Logger) *index.Index {
	idx, err := index.Load(path)
	if err == nil {
		return idx
	}
	log.Warn("discarding unreadable stat cache", zap.String("path", path), zap.Error(err))
	return index.New(path)
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
