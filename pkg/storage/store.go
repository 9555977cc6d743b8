package storage

import (
	"context"
	"io"
	"path"

	"mygit/pkg/types"
)

var (
	// ErrNotFound 对象不存在
	ErrNotFound = types.NotFound

	// ErrAmbiguousHash 缩写地址匹配到多个对象
	ErrAmbiguousHash = types.Errorf(types.InvalidInput, "expand hash", "ambiguous hash prefix")
)

// MinPrefixLen 是缩写地址的最小长度
const MinPrefixLen = 4

// Store defines the interface for an object storage backend.
// It only ever sees compressed bytes addressed by ObjectID; framing,
// hashing and compression happen in the layers above.
type Store interface {
	// Put 将压缩后的对象写到 id 对应的位置
	Put(ctx context.Context, id types.ObjectID, compressed []byte) error

	// Get 根据地址读取原始 (仍是压缩的) 数据
	// 不存在或不可读时返回 NotFound，且不产生任何副作用
	Get(ctx context.Context, id types.ObjectID) (io.ReadCloser, error)

	// Has 检查对象是否存在 (用于去重逻辑)
	Has(ctx context.Context, id types.ObjectID) (bool, error)

	// ExpandHash 把缩写地址扩展为完整地址
	ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.ObjectID, error)
}

// Layout 返回地址对应的分片相对路径
// Example: "3b18e5..." -> "3b/18e5..."
func Layout(id types.ObjectID) string {
	hex := id.String()
	return path.Join(hex[:2], hex[2:])
}

// CheckPrefix 校验缩写地址的长度与字符集
func CheckPrefix(prefix types.HashPrefix) error {
	if len(prefix) < MinPrefixLen {
		return types.Errorf(types.InvalidInput, "expand hash", "hash prefix %q too short (min %d)", prefix, MinPrefixLen)
	}
	if len(prefix) > types.HexIDSize || !prefix.IsHex() {
		return types.Errorf(types.InvalidInput, "expand hash", "invalid hash prefix %q", prefix)
	}
	return nil
}
