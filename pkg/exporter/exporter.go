package exporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"mygit/pkg/codec"
	"mygit/pkg/core"
	"mygit/pkg/storage"
	"mygit/pkg/types"
)

// Exporter 负责对象的读取路径: 读盘 -> 解压 -> 解帧 -> 校验
type Exporter struct {
	store storage.Store
	codec *codec.Codec
}

func NewExporter(store storage.Store, c *codec.Codec) *Exporter {
	if c == nil {
		c = codec.NewCodec(0)
	}
	return &Exporter{store: store, codec: c}
}

// ReadObject 读取并解码一个对象
// 读到的内容必须哈希回同一个地址，否则视为损坏
func (e *Exporter) ReadObject(ctx context.Context, id types.ObjectID) (core.Object, error) {
	reader, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	compressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, types.PathError(types.IOError, "read object", id.String(), err)
	}

	framed, err := e.codec.Decompress(compressed, len(compressed))
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id, err)
	}

	obj, err := core.DecodeObject(framed)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id, err)
	}
	if obj.ID() != id {
		return nil, types.Errorf(types.CorruptData, "read object", "%s: content hashes to %s", id, obj.ID())
	}
	return obj, nil
}

// ReadBlob 读取对象并确认它是 blob
func (e *Exporter) ReadBlob(ctx context.Context, id types.ObjectID) (*core.Blob, error) {
	obj, err := e.ReadObject(ctx, id)
	if err != nil {
		return nil, err
	}
	blob, ok := obj.(*core.Blob)
	if !ok {
		return nil, types.Errorf(types.InvalidInput, "read blob", "object %s is a %s, not a blob", id, obj.Type())
	}
	return blob, nil
}

// ReadTree 读取对象并确认它是 tree
func (e *Exporter) ReadTree(ctx context.Context, id types.ObjectID) (*core.Tree, error) {
	obj, err := e.ReadObject(ctx, id)
	if err != nil {
		return nil, err
	}
	tree, ok := obj.(*core.Tree)
	if !ok {
		return nil, types.Errorf(types.InvalidInput, "read tree", "object %s is a %s, not a tree", id, obj.Type())
	}
	return tree, nil
}

// ExportBlob 将 blob 的内容写入 writer
func (e *Exporter) ExportBlob(ctx context.Context, id types.ObjectID, writer io.Writer) error {
	blob, err := e.ReadBlob(ctx, id)
	if err != nil {
		return err
	}
	if _, err := writer.Write(blob.Payload()); err != nil {
		return types.PathError(types.IOError, "write blob", id.String(), err)
	}
	return nil
}

// WalkFunc 在 WalkTree 中对每个条目调用一次，p 是相对于根树的 "/" 分隔路径
type WalkFunc func(p string, entry core.TreeEntry) error

// WalkTree 先序遍历一棵树；recursive 为 false 时只访问第一层
func (e *Exporter) WalkTree(ctx context.Context, id types.ObjectID, recursive bool, fn WalkFunc) error {
	return e.walk(ctx, id, "", recursive, fn)
}

func (e *Exporter) walk(ctx context.Context, id types.ObjectID, prefix string, recursive bool, fn WalkFunc) error {
	tree, err := e.ReadTree(ctx, id)
	if err != nil {
		return err
	}
	for _, entry := range tree.Entries {
		p := path.Join(prefix, entry.Name)
		if recursive && entry.Mode.IsDir() {
			if err := e.walk(ctx, entry.ID, p, recursive, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(p, entry); err != nil {
			return err
		}
	}
	return nil
}

type RestoreCallback func(path string, entry core.TreeEntry)

// RestoreTree 递归地将目录树还原到目标目录
func (e *Exporter) RestoreTree(ctx context.Context, treeID types.ObjectID, targetDir string, onRestore RestoreCallback) error {
	// 1. 获取 Tree 对象
	tree, err := e.ReadTree(ctx, treeID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return types.PathError(types.IOError, "create dir", targetDir, err)
	}

	// 2. 遍历 Tree Entries
	for _, entry := range tree.Entries {
		// 解码出来的名字同样不能逃出目标目录
		if err := core.ValidateName(entry.Name); err != nil {
			return types.PathError(types.CorruptTree, "restore tree", treeID.String(), err)
		}
		fullPath := filepath.Join(targetDir, entry.Name)

		switch entry.Mode {
		case core.ModeDir:
			if err := e.RestoreTree(ctx, entry.ID, fullPath, onRestore); err != nil {
				return err
			}
			continue
		case core.ModeSymlink:
			err = e.restoreSymlink(ctx, entry, fullPath)
		default:
			err = e.restoreFile(ctx, entry, fullPath)
		}
		if err != nil {
			return err
		}

		// 触发回调 (通知上层更新 Index)
		if onRestore != nil {
			onRestore(fullPath, entry)
		}
	}

	return nil
}

func (e *Exporter) restoreFile(ctx context.Context, entry core.TreeEntry, fullPath string) error {
	blob, err := e.ReadBlob(ctx, entry.ID)
	if err != nil {
		return err
	}

	perm := os.FileMode(0o644)
	if entry.Mode == core.ModeExecutable {
		perm = 0o755
	}

	// 已存在的同名文件 (或链接) 先删掉，保证权限按对象里记录的来
	if err := removeIfExists(fullPath); err != nil {
		return err
	}
	if err := os.WriteFile(fullPath, blob.Payload(), perm); err != nil {
		return types.PathError(types.IOError, "write file", fullPath, err)
	}
	// umask 可能吃掉执行位
	if err := os.Chmod(fullPath, perm); err != nil {
		return types.PathError(types.IOError, "chmod", fullPath, err)
	}
	return nil
}

func (e *Exporter) restoreSymlink(ctx context.Context, entry core.TreeEntry, fullPath string) error {
	blob, err := e.ReadBlob(ctx, entry.ID)
	if err != nil {
		return err
	}
	if err := removeIfExists(fullPath); err != nil {
		return err
	}
	if err := os.Symlink(string(blob.Payload()), fullPath); err != nil {
		return types.PathError(types.IOError, "create symlink", fullPath, err)
	}
	return nil
}

func removeIfExists(p string) error {
	info, err := os.Lstat(p)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return types.PathError(types.IOError, "stat", p, err)
	}
	if info.IsDir() {
		return types.PathError(types.InvalidInput, "restore", p, fmt.Errorf("a directory is in the way"))
	}
	if err := os.Remove(p); err != nil {
		return types.PathError(types.IOError, "remove", p, err)
	}
	return nil
}
