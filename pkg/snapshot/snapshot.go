package snapshot

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"mygit/pkg/core"
	"mygit/pkg/ignore"
	"mygit/pkg/index"
	"mygit/pkg/ingester"
	"mygit/pkg/storage"
	"mygit/pkg/types"

	"go.uber.org/zap"
)

// DefaultMetaDir 是默认的元数据目录，相对于快照根目录
const DefaultMetaDir = ".git"

// Stats 记录最近一次快照的统计
type Stats struct {
	Trees  int // 写入的 tree 个数
	Hashed int // 实际读取并哈希的文件
	Reused int // 通过 stat 缓存跳过读取的文件
	Links  int
}

// Snapshotter 把一个目录递归地转换为 tree 对象并写入存储
type Snapshotter struct {
	ing     *ingester.Ingester
	store   storage.Store
	matcher *ignore.Matcher
	cache   *index.Index
	metaDir string
	log     *zap.Logger

	// 每次 Snapshot 开始时解析
	metaAbs  string
	metaInfo os.FileInfo

	stats Stats
}

type Option func(*Snapshotter)

// WithIgnore 设置忽略规则，路径相对于快照根目录
func WithIgnore(m *ignore.Matcher) Option {
	return func(s *Snapshotter) { s.matcher = m }
}

// WithStatCache 启用 stat 缓存
func WithStatCache(idx *index.Index) Option {
	return func(s *Snapshotter) { s.cache = idx }
}

// WithMetaDir 设置仓库元数据目录的位置
// 绝对路径原样使用，相对路径相对于快照根目录；空字符串表示不跳过任何目录
func WithMetaDir(p string) Option {
	return func(s *Snapshotter) { s.metaDir = p }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Snapshotter) {
		if log != nil {
			s.log = log
		}
	}
}

func New(ing *ingester.Ingester, store storage.Store, opts ...Option) *Snapshotter {
	s := &Snapshotter{
		ing:     ing,
		store:   store,
		metaDir: DefaultMetaDir,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats 返回最近一次 Snapshot 的统计
func (s *Snapshotter) Stats() Stats { return s.stats }

// Snapshot 对 dir 做快照，返回根 tree 的地址
func (s *Snapshotter) Snapshot(ctx context.Context, dir string) (types.ObjectID, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return types.ZeroID, types.PathError(types.InvalidInput, "write tree", dir, fmt.Errorf("no such directory"))
	}
	if err != nil {
		return types.ZeroID, types.PathError(types.IOError, "write tree", dir, err)
	}
	if !info.IsDir() {
		return types.ZeroID, types.PathError(types.InvalidInput, "write tree", dir, fmt.Errorf("not a directory"))
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return types.ZeroID, types.PathError(types.IOError, "write tree", dir, err)
	}

	s.stats = Stats{}
	s.metaAbs, s.metaInfo = s.resolveMetaDir(root)
	id, err := s.writeDir(ctx, root, "")
	if err != nil {
		return types.ZeroID, err
	}

	if s.cache != nil {
		if n := s.cache.Prune(root); n > 0 {
			s.log.Debug("stat cache pruned", zap.Int("entries", n))
		}
	}
	s.log.Debug("snapshot done",
		zap.String("dir", root),
		zap.Stringer("tree", id),
		zap.Int("trees", s.stats.Trees),
		zap.Int("hashed", s.stats.Hashed),
		zap.Int("reused", s.stats.Reused),
	)
	return id, nil
}

// writeDir 递归地处理一个目录 (核心算法)
// abs 是磁盘上的绝对路径，rel 是相对快照根目录的 "/" 分隔路径
func (s *Snapshotter) writeDir(ctx context.Context, abs, rel string) (types.ObjectID, error) {
	if err := ctx.Err(); err != nil {
		return types.ZeroID, err
	}

	dirents, err := os.ReadDir(abs)
	if err != nil {
		return types.ZeroID, types.PathError(types.IOError, "read dir", abs, err)
	}

	entries := make([]core.TreeEntry, 0, len(dirents))
	for _, de := range dirents {
		name := de.Name()
		childRel := path.Join(rel, name)
		childAbs := filepath.Join(abs, name)

		// 1. 跳过被忽略的路径
		if s.ignored(childRel, de.IsDir()) {
			s.log.Debug("skipped", zap.String("path", childRel))
			continue
		}

		// 2. Lstat: 符号链接本身，而不是它指向的东西
		info, err := os.Lstat(childAbs)
		if err != nil {
			return types.ZeroID, types.PathError(types.IOError, "stat", childAbs, err)
		}

		// 3. 仓库自己的元数据目录按身份跳过，同名的普通目录照常收录
		if s.isMetaDir(childAbs, info) {
			s.log.Debug("skipped metadata directory", zap.String("path", childRel))
			continue
		}

		entry, err := s.writeEntry(ctx, childAbs, childRel, info)
		if err != nil {
			return types.ZeroID, err
		}
		entries = append(entries, entry)
	}

	// 4. 排序、编码、落盘
	core.SortEntries(entries)
	tree, err := core.NewTree(entries)
	if err != nil {
		return types.ZeroID, fmt.Errorf("failed to create tree %q: %w", rel, err)
	}
	if err := s.ing.WriteObject(ctx, tree); err != nil {
		return types.ZeroID, err
	}
	s.stats.Trees++
	return tree.ID(), nil
}

// resolveMetaDir 返回元数据目录的绝对路径，目录存在时同时返回它的 FileInfo
func (s *Snapshotter) resolveMetaDir(root string) (string, os.FileInfo) {
	if s.metaDir == "" {
		return "", nil
	}
	p := s.metaDir
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)

	// Stat 而不是 Lstat: 仓库路径经过符号链接时也要认出真正的目录
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		return p, nil
	}
	return p, info
}

func (s *Snapshotter) isMetaDir(abs string, info os.FileInfo) bool {
	if s.metaAbs == "" {
		return false
	}
	if abs == s.metaAbs {
		return true
	}
	return s.metaInfo != nil && info.IsDir() && os.SameFile(info, s.metaInfo)
}

func (s *Snapshotter) ignored(rel string, isDir bool) bool {
	if s.matcher == nil {
		return false
	}
	// "build/" 这类规则只匹配目录
	return s.matcher.Matches(rel) || (isDir && s.matcher.Matches(rel+"/"))
}

func (s *Snapshotter) writeEntry(ctx context.Context, abs, rel string, info os.FileInfo) (core.TreeEntry, error) {
	entry := core.TreeEntry{Name: info.Name()}
	mode := info.Mode()

	switch {
	case mode&os.ModeSymlink != 0:
		// 链接目标文本就是 blob 内容，永远不跟随
		target, err := os.Readlink(abs)
		if err != nil {
			return entry, types.PathError(types.IOError, "read link", abs, err)
		}
		blob, err := s.ing.IngestFile(ctx, strings.NewReader(target))
		if err != nil {
			return entry, err
		}
		s.stats.Links++
		entry.Mode, entry.ID = core.ModeSymlink, blob.ID()

	case mode.IsDir():
		id, err := s.writeDir(ctx, abs, rel)
		if err != nil {
			return entry, err
		}
		entry.Mode, entry.ID = core.ModeDir, id

	case mode.IsRegular():
		id, err := s.writeFile(ctx, abs, info)
		if err != nil {
			return entry, err
		}
		entry.Mode, entry.ID = core.ModeRegular, id
		if mode.Perm()&0o100 != 0 {
			entry.Mode = core.ModeExecutable
		}

	default:
		return entry, types.PathError(types.InvalidInput, "write tree", abs, fmt.Errorf("unsupported file type %s", mode.Type()))
	}
	return entry, nil
}

func (s *Snapshotter) writeFile(ctx context.Context, abs string, info os.FileInfo) (types.ObjectID, error) {
	// 缓存命中还要求对象确实还在库里
	if s.cache != nil {
		if id, ok := s.cache.Lookup(abs, info); ok {
			has, err := s.store.Has(ctx, id)
			if err != nil {
				return types.ZeroID, err
			}
			if has {
				s.stats.Reused++
				return id, nil
			}
		}
	}

	f, err := os.Open(abs)
	if err != nil {
		return types.ZeroID, types.PathError(types.IOError, "open", abs, err)
	}
	defer f.Close()

	blob, err := s.ing.IngestFile(ctx, f)
	if err != nil {
		return types.ZeroID, fmt.Errorf("%s: %w", abs, err)
	}
	s.stats.Hashed++

	if s.cache != nil {
		s.cache.Update(abs, info, blob.ID())
	}
	return blob.ID(), nil
}
