package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mygit/pkg/storage"
	"mygit/pkg/types"

	"go.uber.org/zap"
)

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	rootPath  string // 比如: /home/user/project/.git/objects
	overwrite bool
	log       *zap.Logger
}

// Options 控制磁盘存储的写入行为
type Options struct {
	// Overwrite 为 true 时，已存在的对象也会被重写
	// 默认跳过：内容寻址保证写入的字节完全相同
	Overwrite bool
	Logger    *zap.Logger
}

// NewAdapter 打开一个已存在的对象目录
// 对象目录由仓库初始化负责创建，这里不会创建根目录
func NewAdapter(root string, opts Options) (*Adapter, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, types.PathError(types.NotFound, "open object store", root,
				fmt.Errorf("object directory missing (run 'mygit init' first)"))
		}
		return nil, types.PathError(types.IOError, "open object store", root, err)
	}
	if !info.IsDir() {
		return nil, types.PathError(types.InvalidInput, "open object store", root, fmt.Errorf("not a directory"))
	}

	// 绝对路径同时用作缓存命名空间
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{rootPath: root, overwrite: opts.Overwrite, log: log}, nil
}

// Root 返回对象目录
func (s *Adapter) Root() string { return s.rootPath }

// layout 返回地址对应的物理路径
// 策略：使用前 2 个字符作为子目录 (Sharding)
// Example: "aabbcc..." -> root/aa/bbcc...
func (s *Adapter) layout(id types.ObjectID) string {
	return filepath.Join(s.rootPath, filepath.FromSlash(storage.Layout(id)))
}

func (s *Adapter) Put(ctx context.Context, id types.ObjectID, compressed []byte) error {
	targetPath := s.layout(id)

	// 1. 检查是否存在 (幂等性)
	if !s.overwrite {
		if _, err := os.Lstat(targetPath); err == nil {
			s.log.Debug("object exists, skipping write", zap.Stringer("id", id))
			return nil
		}
	}

	// 2. 准备分片目录
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.PathError(types.IOError, "write object", id.String(), err)
	}

	// 3. 原子写入：先写临时文件再 Rename，
	// 保证要么文件不存在，要么文件是完整的
	tempFile, err := os.CreateTemp(dir, "tmp_obj_*")
	if err != nil {
		return types.PathError(types.IOError, "write object", id.String(), err)
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(compressed); err != nil {
		tempFile.Close()
		return types.PathError(types.IOError, "write object", id.String(), err)
	}
	if err := tempFile.Close(); err != nil {
		return types.PathError(types.IOError, "write object", id.String(), err)
	}
	// 对象一旦写入就不再修改
	if err := os.Chmod(tempFile.Name(), 0o444); err != nil {
		return types.PathError(types.IOError, "write object", id.String(), err)
	}

	// 4. 移动到最终位置
	if err := os.Rename(tempFile.Name(), targetPath); err != nil {
		return types.PathError(types.IOError, "write object", id.String(), err)
	}

	s.log.Debug("object written", zap.Stringer("id", id), zap.Int("bytes", len(compressed)))
	return nil
}

func (s *Adapter) Get(ctx context.Context, id types.ObjectID) (io.ReadCloser, error) {
	f, err := os.Open(s.layout(id))
	if err != nil {
		// 不存在和不可读一样处理
		return nil, types.PathError(types.NotFound, "read object", id.String(), err)
	}
	return f, nil
}

func (s *Adapter) Has(ctx context.Context, id types.ObjectID) (bool, error) {
	_, err := os.Lstat(s.layout(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, types.PathError(types.IOError, "stat object", id.String(), err)
}

// ExpandHash 在分片目录中查找唯一匹配前缀的对象
func (s *Adapter) ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.ObjectID, error) {
	if err := storage.CheckPrefix(prefix); err != nil {
		return types.ZeroID, err
	}
	str := string(prefix)

	if len(str) == types.HexIDSize {
		id, err := types.ParseObjectID(str)
		if err != nil {
			return types.ZeroID, err
		}
		ok, err := s.Has(ctx, id)
		if err != nil {
			return types.ZeroID, err
		}
		if !ok {
			return types.ZeroID, types.PathError(types.NotFound, "expand hash", str, nil)
		}
		return id, nil
	}

	entries, err := os.ReadDir(filepath.Join(s.rootPath, str[:2]))
	if errors.Is(err, fs.ErrNotExist) {
		return types.ZeroID, types.PathError(types.NotFound, "expand hash", str, nil)
	}
	if err != nil {
		return types.ZeroID, types.PathError(types.IOError, "expand hash", str, err)
	}

	var match string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || len(name) != types.HexIDSize-2 || !strings.HasPrefix(name, str[2:]) {
			continue
		}
		if match != "" {
			return types.ZeroID, fmt.Errorf("%s: %w", str, storage.ErrAmbiguousHash)
		}
		match = name
	}
	if match == "" {
		return types.ZeroID, types.PathError(types.NotFound, "expand hash", str, nil)
	}
	return types.ParseObjectID(str[:2] + match)
}
