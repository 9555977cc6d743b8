// pkg/types/common.go
package types

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// IDSize 是对象地址 (SHA-1) 的原始字节长度
const IDSize = 20

// HexIDSize 是对象地址十六进制形式的长度
const HexIDSize = IDSize * 2

// ObjectID 代表对象的内容地址 (160 位 SHA-1 摘要)
// 这是一个“值对象”，可以直接比较、作为 map key 使用。
type ObjectID [IDSize]byte

// ZeroID 是全零地址，从不对应真实对象
var ZeroID ObjectID

// String 返回 40 个字符的小写十六进制形式 (用于路径与输出)
func (id ObjectID) String() string { return hex.EncodeToString(id[:]) }

// Bytes 返回原始的 20 字节形式 (嵌入在 tree 条目中)
func (id ObjectID) Bytes() []byte {
	b := make([]byte, IDSize)
	copy(b, id[:])
	return b
}

func (id ObjectID) IsZero() bool { return id == ZeroID }

// Short 返回缩写形式，仅用于展示
func (id ObjectID) Short() string { return id.String()[:8] }

// ParseObjectID 解析 40 字符的十六进制地址
func ParseObjectID(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != HexIDSize {
		return id, Errorf(InvalidInput, "parse id", "invalid object id %q: want %d hex chars", s, HexIDSize)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, NewError(InvalidInput, "parse id", fmt.Errorf("invalid object id %q: %w", s, err))
	}
	return id, nil
}

// ObjectIDFromBytes 从原始 20 字节构造地址
func ObjectIDFromBytes(b []byte) (ObjectID, error) {
	var id ObjectID
	if len(b) != IDSize {
		return id, Errorf(InvalidInput, "parse id", "raw object id must be %d bytes, got %d", IDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// HashPrefix 是用户输入的缩写地址 (如 "3b18e5")
type HashPrefix string

func (p HashPrefix) String() string { return string(p) }

// IsHex 检查前缀是否只包含小写十六进制字符
func (p HashPrefix) IsHex() bool {
	for i := 0; i < len(p); i++ {
		c := p[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return len(p) > 0
}

// RepoPath 是仓库元数据目录 (例如 "/work/.git") 的路径
type RepoPath string

// ObjectsDir 返回松散对象所在的目录
func (p RepoPath) ObjectsDir() string { return filepath.Join(string(p), "objects") }

// Join 拼出仓库目录下的文件路径
func (p RepoPath) Join(elem ...string) string {
	return filepath.Join(append([]string{string(p)}, elem...)...)
}
