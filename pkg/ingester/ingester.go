package ingester

import (
	"context"
	"fmt"
	"io"

	"mygit/pkg/codec"
	"mygit/pkg/core"
	"mygit/pkg/storage"
	"mygit/pkg/types"

	"go.uber.org/zap"
)

// Recorder 接收每一个成功写入的对象 (例如 SQL 目录)
type Recorder interface {
	Record(ctx context.Context, obj core.Object) error
}

// Ingester 负责对象的写入路径: 编帧 -> 哈希 -> 压缩 -> 落盘
type Ingester struct {
	store    storage.Store
	codec    *codec.Codec
	recorder Recorder
	log      *zap.Logger
}

func NewIngester(store storage.Store, c *codec.Codec, log *zap.Logger) *Ingester {
	if c == nil {
		c = codec.NewCodec(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingester{
		store: store,
		codec: c,
		log:   log,
	}
}

// SetRecorder 挂上一个对象目录，传 nil 取消
func (ing *Ingester) SetRecorder(r Recorder) {
	ing.recorder = r
}

// WriteObject 压缩并存储一个已编帧的对象
// 编帧后超过对象大小上限的对象会被拒绝，否则写进去也读不出来
func (ing *Ingester) WriteObject(ctx context.Context, obj core.Object) error {
	if limit := ing.codec.MaxObjectSize(); len(obj.Bytes()) > limit {
		return types.PathError(types.InvalidInput, "write object", obj.ID().String(),
			fmt.Errorf("%s of %d bytes exceeds max object size %d", obj.Type(), len(obj.Bytes()), limit))
	}

	compressed, err := ing.codec.Compress(obj.Bytes())
	if err != nil {
		return types.PathError(types.IOError, "compress object", obj.ID().String(), err)
	}

	if err := ing.store.Put(ctx, obj.ID(), compressed); err != nil {
		return fmt.Errorf("failed to store %s: %w", obj.Type(), err)
	}
	ing.log.Debug("object written",
		zap.String("type", string(obj.Type())),
		zap.Stringer("id", obj.ID()),
		zap.Int("size", len(obj.Payload())),
		zap.Int("compressed", len(compressed)),
	)

	// 目录只是辅助索引，写失败不影响对象本身
	if ing.recorder != nil {
		if err := ing.recorder.Record(ctx, obj); err != nil {
			ing.log.Warn("catalog record failed", zap.Stringer("id", obj.ID()), zap.Error(err))
		}
	}
	return nil
}

// HashBlob 只计算 blob 地址，不落盘
func (ing *Ingester) HashBlob(reader io.Reader) (*core.Blob, error) {
	data, err := ing.readLimited(reader)
	if err != nil {
		return nil, err
	}
	return core.NewBlob(data), nil
}

// IngestFile 读取文件流，构造 blob 并存储
func (ing *Ingester) IngestFile(ctx context.Context, reader io.Reader) (*core.Blob, error) {
	blob, err := ing.HashBlob(reader)
	if err != nil {
		return nil, err
	}
	if err := ing.WriteObject(ctx, blob); err != nil {
		return nil, err
	}
	return blob, nil
}

// readLimited 读取全部内容
// 上限针对编帧后的大小 (头部 + 内容)，与解压时的上限一致
func (ing *Ingester) readLimited(reader io.Reader) ([]byte, error) {
	limit := ing.codec.MaxObjectSize()
	data, err := io.ReadAll(io.LimitReader(reader, int64(limit)+1))
	if err != nil {
		return nil, types.NewError(types.IOError, "read file", err)
	}
	if core.FramedSize(core.TypeBlob, len(data)) > limit {
		return nil, types.Errorf(types.InvalidInput, "read file", "file exceeds max object size %d", limit)
	}
	return data, nil
}
