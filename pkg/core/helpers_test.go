package core

import (
	"crypto/sha1"
	"testing"

	"mygit/pkg/types"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 辅助工具
// -----------------------------------------------------------------------------

// mockID 生成一个确定性的 20 字节地址，用于构造 tree 条目
func mockID(input string) types.ObjectID {
	return types.ObjectID(sha1.Sum([]byte(input)))
}

func mustParseID(t *testing.T, s string) types.ObjectID {
	t.Helper()
	id, err := types.ParseObjectID(s)
	require.NoError(t, err)
	return id
}

func mustNewTree(t *testing.T, entries []TreeEntry, msgAndArgs ...any) *Tree {
	t.Helper()
	tree, err := NewTree(entries)
	require.NoError(t, err, msgAndArgs...)
	return tree
}
