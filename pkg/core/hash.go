package core

import (
	"bytes"
	"crypto/sha1"
	"strconv"

	"mygit/pkg/types"
)

// FramedSize 返回 payload 长度为 n 时封装缓冲区的总长度
func FramedSize(typ ObjectType, n int) int {
	return len(typ) + 1 + len(strconv.Itoa(n)) + 1 + n
}

// Frame 构造 "<type> <len>\0<payload>" 形式的缓冲区
// 长度字段只计算 payload，不包括头部本身
func Frame(typ ObjectType, payload []byte) []byte {
	size := strconv.Itoa(len(payload))
	buf := make([]byte, 0, FramedSize(typ, len(payload)))
	buf = append(buf, typ...)
	buf = append(buf, ' ')
	buf = append(buf, size...)
	buf = append(buf, 0)
	return append(buf, payload...)
}

// Unframe 拆开封装缓冲区，返回类型与 payload
// 头部不完整、类型未知或长度与实际不符都视为 CorruptData
func Unframe(framed []byte) (ObjectType, []byte, error) {
	sp := bytes.IndexByte(framed, ' ')
	if sp < 0 {
		return "", nil, types.Errorf(types.CorruptData, "parse header", "missing space in object header")
	}
	typ, err := ParseObjectType(string(framed[:sp]))
	if err != nil {
		return "", nil, err
	}

	rest := framed[sp+1:]
	nul := bytes.IndexByte(rest, 0)
	if nul < 0 {
		return "", nil, types.Errorf(types.CorruptData, "parse header", "missing NUL after object size")
	}
	size, err := strconv.ParseUint(string(rest[:nul]), 10, 63)
	if err != nil {
		return "", nil, types.Errorf(types.CorruptData, "parse header", "invalid object size %q", rest[:nul])
	}

	payload := rest[nul+1:]
	if uint64(len(payload)) != size {
		return "", nil, types.Errorf(types.CorruptData, "parse header",
			"%s declares %d bytes but has %d", typ, size, len(payload))
	}
	return typ, payload, nil
}

// Digest 对完整的封装缓冲区 (头部 + payload) 计算 SHA-1
func Digest(framed []byte) types.ObjectID {
	return types.ObjectID(sha1.Sum(framed))
}

// CalculateHash 封装 payload 并计算地址，返回地址和封装后的数据
func CalculateHash(typ ObjectType, payload []byte) (types.ObjectID, []byte) {
	framed := Frame(typ, payload)
	return Digest(framed), framed
}
