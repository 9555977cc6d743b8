package meta

import (
	"context"
	"testing"

	"mygit/pkg/core"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 通用辅助函数 (Helpers)
// -----------------------------------------------------------------------------

// mustRecord 强制写入目录，失败则终止
func mustRecord(t *testing.T, repo *Repository, obj core.Object, msgAndArgs ...any) {
	t.Helper()
	require.NoError(t, repo.Record(context.Background(), obj), msgAndArgs...)
}

// mustNewTree 创建 Tree，失败直接终止测试
func mustNewTree(t *testing.T, entries []core.TreeEntry) *core.Tree {
	t.Helper()
	tree, err := core.NewTree(entries)
	require.NoError(t, err)
	return tree
}
