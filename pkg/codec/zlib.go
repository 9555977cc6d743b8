package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"mygit/pkg/types"

	"github.com/klauspost/compress/zlib"
)

const (
	// DefaultMaxObjectSize 是解压缓冲区允许增长到的上限 (1 GiB)
	DefaultMaxObjectSize = 1 << 30

	minBufferSize = 64
)

// errBufferTooSmall 表示缓冲区写满后解压器还有输出
// 这是可恢复的信号，只在 Decompress 内部使用，永远不会返回给调用方
var errBufferTooSmall = errors.New("zlib: destination buffer too small")

// Codec 封装了对象的 zlib 压缩与解压
type Codec struct {
	maxSize int
}

// NewCodec 创建编解码器，maxObjectSize <= 0 时使用默认上限
func NewCodec(maxObjectSize int) *Codec {
	if maxObjectSize <= 0 {
		maxObjectSize = DefaultMaxObjectSize
	}
	return &Codec{maxSize: maxObjectSize}
}

// MaxObjectSize 返回解压上限
func (c *Codec) MaxObjectSize() int { return c.maxSize }

// Compress 以最高压缩级别压缩整个缓冲区 (只在写路径使用)
func (c *Codec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, types.NewError(types.CorruptData, "compress", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, types.NewError(types.CorruptData, "compress", err)
	}
	if err := w.Close(); err != nil {
		return nil, types.NewError(types.CorruptData, "compress", err)
	}
	return buf.Bytes(), nil
}

// Decompress 解压 data，解压后的大小事先未知
// 策略：缓冲区至少与输入一样大，写满则翻倍重试，直到成功、
// 遇到不可恢复的流错误，或超过 maxSize (CorruptData)
func (c *Codec) Decompress(data []byte, hint int) ([]byte, error) {
	size := max(hint, len(data), minBufferSize)
	size = min(size, c.maxSize)

	for {
		out, err := inflate(data, size)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, errBufferTooSmall) {
			return nil, types.NewError(types.CorruptData, "decompress", err)
		}
		if size >= c.maxSize {
			return nil, types.NewError(types.CorruptData, "decompress",
				fmt.Errorf("object exceeds %d bytes", c.maxSize))
		}
		size = min(size*2, c.maxSize)
	}
}

// inflate 尝试把整个流解压进 size 大小的缓冲区
func inflate(data []byte, size int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	buf := make([]byte, size)
	n := 0
	for n < size {
		m, err := r.Read(buf[n:])
		n += m
		if err == io.EOF {
			// zlib 只有在校验和通过后才返回 EOF
			return buf[:n], nil
		}
		if err != nil {
			return nil, err
		}
	}

	// 缓冲区刚好写满：探测一下流是否已经结束
	var peek [1]byte
	for {
		m, err := r.Read(peek[:])
		if m > 0 {
			return nil, errBufferTooSmall
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
