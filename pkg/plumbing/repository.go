package plumbing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"mygit/pkg/core"
	"mygit/pkg/exporter"
	"mygit/pkg/ignore"
	"mygit/pkg/index"
	"mygit/pkg/ingester"
	"mygit/pkg/snapshot"
	"mygit/pkg/storage"
	"mygit/pkg/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultJobs 是 HashObjects 默认的并发数
const DefaultJobs = 4

// Options 是 Repository 的可选配置
type Options struct {
	// RepoPath 是仓库元数据目录，快照时按身份跳过
	// 绝对路径，或相对快照根目录的路径，默认 ".git"
	RepoPath   types.RepoPath
	IgnoreFile string       // 快照根目录下的忽略规则文件名
	StatCache  *index.Index // 为空则不使用 stat 缓存
	Jobs       int          // HashObjects 的并发上限
	Logger     *zap.Logger
}

// Repository 对外提供 hash-object / cat-file / ls-tree / write-tree 等操作
type Repository struct {
	store storage.Store
	ing   *ingester.Ingester
	exp   *exporter.Exporter
	opts  Options
	log   *zap.Logger
}

func New(store storage.Store, ing *ingester.Ingester, exp *exporter.Exporter, opts Options) *Repository {
	if opts.RepoPath == "" {
		opts.RepoPath = snapshot.DefaultMetaDir
	}
	if opts.IgnoreFile == "" {
		opts.IgnoreFile = ignore.DefaultFileName
	}
	if opts.Jobs <= 0 {
		opts.Jobs = DefaultJobs
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{store: store, ing: ing, exp: exp, opts: opts, log: log}
}

// -----------------------------------------------------------------------------
// 1. hash-object
// -----------------------------------------------------------------------------

// HashObject 计算一个文件的 blob 地址，write 为 true 时同时写入对象库
// 符号链接按链接目标文本计算，与快照一致
func (r *Repository) HashObject(ctx context.Context, path string, write bool) (types.ObjectID, error) {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return types.ZeroID, types.PathError(types.InvalidInput, "hash object", path, fmt.Errorf("no such file"))
	}
	if err != nil {
		return types.ZeroID, types.PathError(types.IOError, "hash object", path, err)
	}

	var blob *core.Blob
	switch mode := info.Mode(); {
	case mode.IsRegular():
		f, err := os.Open(path)
		if err != nil {
			return types.ZeroID, types.PathError(types.IOError, "hash object", path, err)
		}
		defer f.Close()
		if write {
			blob, err = r.ing.IngestFile(ctx, f)
		} else {
			blob, err = r.ing.HashBlob(f)
		}
		if err != nil {
			return types.ZeroID, err
		}

	case mode&os.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return types.ZeroID, types.PathError(types.IOError, "hash object", path, err)
		}
		blob = core.NewBlob([]byte(target))
		if write {
			if err := r.ing.WriteObject(ctx, blob); err != nil {
				return types.ZeroID, err
			}
		}

	case mode.IsDir():
		return types.ZeroID, types.PathError(types.InvalidInput, "hash object", path, fmt.Errorf("is a directory (use write-tree)"))

	default:
		return types.ZeroID, types.PathError(types.InvalidInput, "hash object", path, fmt.Errorf("unsupported file type %s", mode.Type()))
	}

	return blob.ID(), nil
}

// HashObjects 并发地处理多个文件，结果与输入顺序一致
// 任何一个失败都会取消其余的工作
func (r *Repository) HashObjects(ctx context.Context, paths []string, write bool) ([]types.ObjectID, error) {
	ids := make([]types.ObjectID, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Jobs)
	for i, p := range paths {
		g.Go(func() error {
			id, err := r.HashObject(gctx, p, write)
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// -----------------------------------------------------------------------------
// 2. cat-file / ls-tree
// -----------------------------------------------------------------------------

// ResolveID 把完整或缩写的十六进制地址解析成 ObjectID
func (r *Repository) ResolveID(ctx context.Context, s string) (types.ObjectID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == types.HexIDSize {
		return types.ParseObjectID(s)
	}
	return r.store.ExpandHash(ctx, types.HashPrefix(s))
}

// ReadObject 读取并校验一个对象
func (r *Repository) ReadObject(ctx context.Context, id types.ObjectID) (core.Object, error) {
	return r.exp.ReadObject(ctx, id)
}

// CatFile 返回对象的类型与内容 (去掉头部)
func (r *Repository) CatFile(ctx context.Context, id types.ObjectID) (core.ObjectType, []byte, error) {
	obj, err := r.exp.ReadObject(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return obj.Type(), obj.Payload(), nil
}

// LsTree 返回一棵树的所有条目，按存储顺序
func (r *Repository) LsTree(ctx context.Context, id types.ObjectID) ([]core.TreeEntry, error) {
	tree, err := r.exp.ReadTree(ctx, id)
	if err != nil {
		return nil, err
	}
	return tree.Entries, nil
}

// LsTreeRecursive 递归遍历，只回调非目录条目，路径相对于根树
func (r *Repository) LsTreeRecursive(ctx context.Context, id types.ObjectID, fn exporter.WalkFunc) error {
	return r.exp.WalkTree(ctx, id, true, fn)
}

// -----------------------------------------------------------------------------
// 3. write-tree / checkout-tree
// -----------------------------------------------------------------------------

// WriteTree 对 dir 做快照并返回根 tree 的地址
func (r *Repository) WriteTree(ctx context.Context, dir string) (types.ObjectID, error) {
	metaDir := string(r.opts.RepoPath)
	matcher, err := ignore.NewMatcher(dir, r.opts.IgnoreFile, metaDir)
	if err != nil {
		return types.ZeroID, err
	}

	opts := []snapshot.Option{
		snapshot.WithMetaDir(metaDir),
		snapshot.WithIgnore(matcher),
		snapshot.WithLogger(r.log),
	}
	if r.opts.StatCache != nil {
		opts = append(opts, snapshot.WithStatCache(r.opts.StatCache))
	}

	id, err := snapshot.New(r.ing, r.store, opts...).Snapshot(ctx, dir)
	if err != nil {
		return types.ZeroID, err
	}
	r.saveStatCache()
	return id, nil
}

// CheckoutTree 把 tree 还原到 dir，返回写出的文件数
func (r *Repository) CheckoutTree(ctx context.Context, id types.ObjectID, dir string) (int, error) {
	n := 0
	err := r.exp.RestoreTree(ctx, id, dir, func(path string, entry core.TreeEntry) {
		n++
		// 还原出来的文件内容已知，直接记进 stat 缓存
		if r.opts.StatCache == nil || entry.Mode == core.ModeSymlink {
			return
		}
		if info, err := os.Lstat(path); err == nil {
			r.opts.StatCache.Update(path, info, entry.ID)
		}
	})
	if err != nil {
		return n, err
	}
	r.saveStatCache()
	return n, nil
}

// stat 缓存写失败只影响下次的速度
func (r *Repository) saveStatCache() {
	if r.opts.StatCache == nil {
		return
	}
	if err := r.opts.StatCache.Save(); err != nil {
		r.log.Warn("failed to save stat cache", zap.String("path", r.opts.StatCache.Path()), zap.Error(err))
	}
}
