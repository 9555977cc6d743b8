package snapshot

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mygit/pkg/codec"
	"mygit/pkg/core"
	"mygit/pkg/exporter"
	"mygit/pkg/ignore"
	"mygit/pkg/index"
	"mygit/pkg/ingester"
	"mygit/pkg/storage/disk"
	"mygit/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// -----------------------------------------------------------------------------
// 测试辅助
// -----------------------------------------------------------------------------

type env struct {
	store *disk.Adapter
	ing   *ingester.Ingester
	exp   *exporter.Exporter
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store, err := disk.NewAdapter(t.TempDir(), disk.Options{})
	require.NoError(t, err)
	c := codec.NewCodec(0)
	return &env{
		store: store,
		ing:   ingester.NewIngester(store, c, zaptest.NewLogger(t)),
		exp:   exporter.NewExporter(store, c),
	}
}

func (e *env) snapshotter(t *testing.T, opts ...Option) *Snapshotter {
	return New(e.ing, e.store, append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
}

func writeFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
}

// makeLayout 构造 a.txt, b.txt, subdir/c.txt
func makeLayout(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a\n", 0o644)
	writeFile(t, filepath.Join(dir, "b.txt"), "b\n", 0o644)
	writeFile(t, filepath.Join(dir, "subdir", "c.txt"), "c\n", 0o644)
	return dir
}

func names(t *testing.T, e *env, id types.ObjectID) []string {
	t.Helper()
	tree, err := e.exp.ReadTree(context.Background(), id)
	require.NoError(t, err)
	return tree.Names()
}

// -----------------------------------------------------------------------------
// 场景
// -----------------------------------------------------------------------------

func TestSnapshot_Layout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	dir := makeLayout(t)

	id, err := e.snapshotter(t).Snapshot(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, "c85ff4e324f3d7112e56adf02fdaf7c9e313bb66", id.String())

	root, err := e.exp.ReadTree(ctx, id)
	require.NoError(t, err)
	require.Len(t, root.Entries, 3)

	assert.Equal(t, core.TreeEntry{Mode: core.ModeRegular, Name: "a.txt", ID: mustID(t, "78981922613b2afb6025042ff6bd878ac1994e85")}, root.Entries[0])
	assert.Equal(t, core.TreeEntry{Mode: core.ModeRegular, Name: "b.txt", ID: mustID(t, "61780798228d17af2d34fce4cfbdf35556832472")}, root.Entries[1])
	assert.Equal(t, core.TreeEntry{Mode: core.ModeDir, Name: "subdir", ID: mustID(t, "cf67e9ef3a0fc6d858423fc177f2fbbe985a6f17")}, root.Entries[2])

	// 子树与 blob 都应该落盘
	for _, hex := range []string{
		"cf67e9ef3a0fc6d858423fc177f2fbbe985a6f17",
		"f2ad6c76f0115a6ba5b00456a849810e7ec0af20",
	} {
		ok, err := e.store.Has(ctx, mustID(t, hex))
		require.NoError(t, err)
		assert.True(t, ok, hex)
	}
}

func TestSnapshot_EmptyDir(t *testing.T) {
	e := newEnv(t)
	id, err := e.snapshotter(t).Snapshot(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "4b825dc642cb6eb9a060e54bf8d69288fbee4904", id.String())
}

func TestSnapshot_Determinism(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	dir := makeLayout(t)

	id1, err := e.snapshotter(t).Snapshot(ctx, dir)
	require.NoError(t, err)
	id2, err := e.snapshotter(t).Snapshot(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	// 同样的内容放在另一个目录里，地址不变
	id3, err := newEnv(t).snapshotter(t).Snapshot(ctx, makeLayout(t))
	require.NoError(t, err)
	assert.Equal(t, id1, id3)
}

func TestSnapshot_ByteOrder(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	for _, n := range []string{"b", "B", "a.txt", "a-b", "a"} {
		writeFile(t, filepath.Join(dir, n), n, 0o644)
	}

	id, err := e.snapshotter(t).Snapshot(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "a", "a-b", "a.txt", "b"}, names(t, e, id))
}

func TestSnapshot_Executable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "run.sh"), "#!/bin/sh\n", 0o755)

	id, err := e.snapshotter(t).Snapshot(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, "4d30b2ddd4dbd82d6ad7ee4d2a4ea360f5d65b61", id.String())

	root, err := e.exp.ReadTree(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.ModeExecutable, root.Entries[0].Mode)
}

func TestSnapshot_Symlinks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "real", "inner.txt"), "inner", 0o644)
	require.NoError(t, os.Symlink("real", filepath.Join(dir, "dirlink")))
	require.NoError(t, os.Symlink("does/not/exist", filepath.Join(dir, "dangling")))

	id, err := e.snapshotter(t).Snapshot(ctx, dir)
	require.NoError(t, err)

	root, err := e.exp.ReadTree(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []string{"dangling", "dirlink", "real"}, root.Names())

	// 链接存成 blob，内容是目标文本，不跟随
	assert.Equal(t, core.ModeSymlink, root.Entries[0].Mode)
	assert.Equal(t, core.ModeSymlink, root.Entries[1].Mode)
	assert.Equal(t, core.ModeDir, root.Entries[2].Mode)

	blob, err := e.exp.ReadBlob(ctx, root.Entries[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "real", string(blob.Payload()))

	blob, err = e.exp.ReadBlob(ctx, root.Entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "does/not/exist", string(blob.Payload()))
}

func TestSnapshot_SkipsMetaDir(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	dir := makeLayout(t)
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref: refs/heads/main\n", 0o644)

	id, err := e.snapshotter(t).Snapshot(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, "c85ff4e324f3d7112e56adf02fdaf7c9e313bb66", id.String())

	// 换一个元数据目录以后 .git 就是普通目录
	id, err = e.snapshotter(t, WithMetaDir(".mygit")).Snapshot(ctx, dir)
	require.NoError(t, err)
	assert.Contains(t, names(t, e, id), ".git")
}

func TestSnapshot_NestedMetaDirNameIsData(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	dir := makeLayout(t)
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref: refs/heads/main\n", 0o644)
	writeFile(t, filepath.Join(dir, "subdir", ".git"), "gitdir: ../.git/modules/sub\n", 0o644)

	id, err := e.snapshotter(t).Snapshot(ctx, dir)
	require.NoError(t, err)

	root, err := e.exp.ReadTree(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "subdir"}, root.Names())
	assert.Equal(t, []string{".git", "c.txt"}, names(t, e, root.Entries[2].ID))
}

func TestSnapshot_RepoOutsideWorkTree(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// 仓库放在 <other>/data，工作目录里也有一个 data/
	repo := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.MkdirAll(filepath.Join(repo, "objects"), 0o755))

	work := t.TempDir()
	writeFile(t, filepath.Join(work, "a.txt"), "a\n", 0o644)
	writeFile(t, filepath.Join(work, "data", "train.csv"), "x,y\n", 0o644)

	m, err := ignore.NewMatcher(work, "", repo)
	require.NoError(t, err)

	id, err := e.snapshotter(t, WithMetaDir(repo), WithIgnore(m)).Snapshot(ctx, work)
	require.NoError(t, err)

	root, err := e.exp.ReadTree(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt", "data"}, root.Names())
	assert.Equal(t, []string{"train.csv"}, names(t, e, root.Entries[1].ID))
}

func TestSnapshot_MetaDirThroughSymlink(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	dir := makeLayout(t)
	writeFile(t, filepath.Join(dir, "store", "HEAD"), "ref: refs/heads/main\n", 0o644)

	// 仓库路径经过符号链接指向工作目录里的 store/
	link := filepath.Join(t.TempDir(), "repo")
	require.NoError(t, os.Symlink(filepath.Join(dir, "store"), link))

	id, err := e.snapshotter(t, WithMetaDir(link)).Snapshot(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, "c85ff4e324f3d7112e56adf02fdaf7c9e313bb66", id.String())
}

func TestSnapshot_Ignore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	dir := makeLayout(t)
	writeFile(t, filepath.Join(dir, "debug.log"), "noise", 0o644)
	writeFile(t, filepath.Join(dir, "build", "out.bin"), "bin", 0o644)
	writeFile(t, filepath.Join(dir, ignore.DefaultFileName), "*.log\nbuild/\n.mygitignore\n", 0o644)

	m, err := ignore.NewMatcher(dir, "", DefaultMetaDir)
	require.NoError(t, err)

	id, err := e.snapshotter(t, WithIgnore(m)).Snapshot(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, "c85ff4e324f3d7112e56adf02fdaf7c9e313bb66", id.String())
}

func TestSnapshot_StatCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	dir := makeLayout(t)

	// 把修改时间拨回过去，让缓存可信
	past := time.Now().Add(-time.Hour)
	for _, p := range []string{"a.txt", "b.txt", "subdir/c.txt"} {
		require.NoError(t, os.Chtimes(filepath.Join(dir, p), past, past))
	}

	cache := index.New(filepath.Join(t.TempDir(), index.FileName))

	s := e.snapshotter(t, WithStatCache(cache))
	id1, err := s.Snapshot(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Stats().Hashed)
	assert.Equal(t, 3, cache.Len())

	id2, err := s.Snapshot(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Equal(t, 0, s.Stats().Hashed)
	assert.Equal(t, 3, s.Stats().Reused)

	// 换一个空的对象库，缓存里的地址不存在，必须重新读
	other := newEnv(t)
	s2 := other.snapshotter(t, WithStatCache(cache))
	id3, err := s2.Snapshot(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, id1, id3)
	assert.Equal(t, 3, s2.Stats().Hashed)

	// 删掉的文件会从缓存里清掉
	require.NoError(t, os.Remove(filepath.Join(dir, "b.txt")))
	_, err = s.Snapshot(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())
}

// -----------------------------------------------------------------------------
// 错误路径
// -----------------------------------------------------------------------------

func TestSnapshot_InvalidRoot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.snapshotter(t)

	_, err := s.Snapshot(ctx, filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, types.InvalidInput)

	file := filepath.Join(t.TempDir(), "file.txt")
	writeFile(t, file, "x", 0o644)
	_, err = s.Snapshot(ctx, file)
	assert.ErrorIs(t, err, types.InvalidInput)
}

func TestSnapshot_UnsupportedFileType(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()

	l, err := net.Listen("unix", filepath.Join(dir, "sock"))
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	defer l.Close()

	_, err = e.snapshotter(t).Snapshot(context.Background(), dir)
	assert.ErrorIs(t, err, types.InvalidInput)
}

func TestSnapshot_Canceled(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.snapshotter(t).Snapshot(ctx, makeLayout(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func mustID(t *testing.T, s string) types.ObjectID {
	t.Helper()
	id, err := types.ParseObjectID(s)
	require.NoError(t, err)
	return id
}
