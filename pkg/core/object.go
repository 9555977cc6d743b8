package core

import (
	"mygit/pkg/types"
)

// ObjectType 定义了对象库中的对象类型
type ObjectType string

const (
	TypeBlob ObjectType = "blob" // 文件内容或符号链接目标
	TypeTree ObjectType = "tree" // 目录树
)

// ParseObjectType 将头部中的类型标签映射回 ObjectType
func ParseObjectType(s string) (ObjectType, error) {
	switch ObjectType(s) {
	case TypeBlob, TypeTree:
		return ObjectType(s), nil
	default:
		return "", types.Errorf(types.CorruptData, "parse header", "unknown object type %q", s)
	}
}

// Object 是 blob 与 tree 的通用接口
type Object interface {
	// Type 返回对象类型
	Type() ObjectType

	// ID 返回对象的内容地址
	ID() types.ObjectID

	// Bytes 返回封装后的缓冲区 ("<type> <len>\0<payload>")，
	// 它既是哈希的输入，也是压缩前写入存储的数据
	Bytes() []byte

	// Payload 返回去掉头部之后的内容
	Payload() []byte
}

// DecodeObject 解析一个封装缓冲区并还原对象
// 地址按内容重新计算，调用方可以用它校验读到的数据
func DecodeObject(framed []byte) (Object, error) {
	typ, payload, err := Unframe(framed)
	if err != nil {
		return nil, err
	}
	id := Digest(framed)

	switch typ {
	case TypeBlob:
		return &Blob{id: id, rawBytes: framed, data: payload}, nil
	case TypeTree:
		entries, err := DecodeTree(payload)
		if err != nil {
			return nil, err
		}
		return &Tree{id: id, rawBytes: framed, payload: payload, Entries: entries}, nil
	default:
		return nil, types.Errorf(types.CorruptData, "decode object", "unsupported object type: %s", typ)
	}
}
