package ingester

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"mygit/pkg/codec"
	"mygit/pkg/core"
	"mygit/pkg/storage/disk"
	"mygit/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type spyRecorder struct {
	ids []types.ObjectID
	err error
}

func (r *spyRecorder) Record(ctx context.Context, obj core.Object) error {
	r.ids = append(r.ids, obj.ID())
	return r.err
}

func setup(t *testing.T) (*Ingester, *disk.Adapter) {
	t.Helper()
	store, err := disk.NewAdapter(t.TempDir(), disk.Options{})
	require.NoError(t, err)
	return NewIngester(store, codec.NewCodec(0), zaptest.NewLogger(t)), store
}

func TestIngestFlow(t *testing.T) {
	ing, store := setup(t)
	ctx := context.Background()

	blob, err := ing.IngestFile(ctx, bytes.NewReader([]byte("hello world\n")))
	require.NoError(t, err)
	assert.Equal(t, "3b18e512dba79e4c8300dd08aeb37f8e728b8dad", blob.ID().String())

	// 落盘位置: <root>/3b/18e5...
	_, err = os.Stat(filepath.Join(store.Root(), "3b", "18e512dba79e4c8300dd08aeb37f8e728b8dad"))
	require.NoError(t, err)

	// 读回来解压应当得到完整的编帧数据
	rc, err := store.Get(ctx, blob.ID())
	require.NoError(t, err)
	defer rc.Close()
	compressed, err := io.ReadAll(rc)
	require.NoError(t, err)

	framed, err := codec.NewCodec(0).Decompress(compressed, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("blob 12\x00hello world\n"), framed)
}

func TestHashBlob_NoWrite(t *testing.T) {
	ing, store := setup(t)

	blob, err := ing.HashBlob(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391", blob.ID().String())

	exists, err := store.Has(context.Background(), blob.ID())
	require.NoError(t, err)
	assert.False(t, exists, "HashBlob must not persist anything")
}

func TestWriteObject_Tree(t *testing.T) {
	ing, store := setup(t)
	ctx := context.Background()

	tree, err := core.NewTree(nil)
	require.NoError(t, err)
	require.NoError(t, ing.WriteObject(ctx, tree))

	exists, err := store.Has(ctx, tree.ID())
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "4b825dc642cb6eb9a060e54bf8d69288fbee4904", tree.ID().String())
}

func TestWriteObject_Recorder(t *testing.T) {
	ing, _ := setup(t)
	ctx := context.Background()

	rec := &spyRecorder{}
	ing.SetRecorder(rec)

	blob, err := ing.IngestFile(ctx, bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	assert.Equal(t, []types.ObjectID{blob.ID()}, rec.ids)

	// 目录失败不会让写入失败
	rec.err = errors.New("db down")
	_, err = ing.IngestFile(ctx, bytes.NewReader([]byte("y")))
	assert.NoError(t, err)
	assert.Len(t, rec.ids, 2)
}

func TestIngestFile_TooLarge(t *testing.T) {
	store, err := disk.NewAdapter(t.TempDir(), disk.Options{})
	require.NoError(t, err)
	c := codec.NewCodec(100)
	ing := NewIngester(store, c, nil)
	ctx := context.Background()

	// "blob 92\0" 占 8 字节，92 字节的内容刚好编帧为 100 字节
	blob, err := ing.IngestFile(ctx, bytes.NewReader(bytes.Repeat([]byte("a"), 92)))
	require.NoError(t, err)
	assert.Len(t, blob.Bytes(), 100)

	// 写进去的对象必须能用同一个上限读回来
	rc, err := store.Get(ctx, blob.ID())
	require.NoError(t, err)
	defer rc.Close()
	compressed, err := io.ReadAll(rc)
	require.NoError(t, err)
	framed, err := c.Decompress(compressed, 0)
	require.NoError(t, err)
	assert.Equal(t, blob.Bytes(), framed)

	// 多一个字节就超过上限
	_, err = ing.IngestFile(ctx, bytes.NewReader(bytes.Repeat([]byte("a"), 93)))
	assert.ErrorIs(t, err, types.InvalidInput)

	// 内容本身等于上限也不行: 头部还要占空间
	_, err = ing.HashBlob(bytes.NewReader(bytes.Repeat([]byte("a"), 100)))
	assert.ErrorIs(t, err, types.InvalidInput)
}

func TestWriteObject_TreeTooLarge(t *testing.T) {
	store, err := disk.NewAdapter(t.TempDir(), disk.Options{})
	require.NoError(t, err)
	ing := NewIngester(store, codec.NewCodec(40), nil)

	// 一个条目编码后就有 "100644 a.txt\0" + 20 字节，加上头部超过 40
	tree, err := core.NewTree([]core.TreeEntry{
		{Mode: core.ModeRegular, Name: "a.txt", ID: core.NewBlob([]byte("a\n")).ID()},
	})
	require.NoError(t, err)

	err = ing.WriteObject(context.Background(), tree)
	assert.ErrorIs(t, err, types.InvalidInput)

	ok, err := store.Has(context.Background(), tree.ID())
	require.NoError(t, err)
	assert.False(t, ok)
}
