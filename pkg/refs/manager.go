package refs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mygit/pkg/types"
)

// DefaultBranch 是新仓库 HEAD 指向的分支
const DefaultBranch = "main"

const symrefPrefix = "ref: "

var ErrNoHead = fmt.Errorf("HEAD not found: %w", types.ErrNotFound)

// Manager 只负责仓库元数据目录里的 HEAD 文件
// 不做分支管理，只在 init 时写一个符号引用
type Manager struct {
	rootPath string
}

func NewManager(rootPath string) *Manager {
	return &Manager{rootPath: rootPath}
}

// headPath 返回 <repo>/HEAD 的物理路径
func (m *Manager) headPath() string {
	return filepath.Join(m.rootPath, "HEAD")
}

// Head 读取 HEAD 指向的引用名，比如 "refs/heads/main"
// 新仓库还没写 HEAD 时返回 ErrNoHead
func (m *Manager) Head() (string, error) {
	data, err := os.ReadFile(m.headPath())
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoHead
	}
	if err != nil {
		return "", types.PathError(types.IOError, "read HEAD", m.headPath(), err)
	}

	// 清理换行符 (vim 编辑时可能会自动加 \n)
	line := strings.TrimSpace(string(data))
	target, ok := strings.CutPrefix(line, symrefPrefix)
	if !ok || target == "" {
		return "", types.PathError(types.CorruptData, "read HEAD", m.headPath(),
			fmt.Errorf("not a symbolic ref: %q", line))
	}
	return target, nil
}

// InitHead 在 HEAD 不存在时写入 "ref: refs/heads/<branch>"
// 已存在则保持原样，返回 false
func (m *Manager) InitHead(branch string) (bool, error) {
	if branch == "" || strings.ContainsAny(branch, " \n\x00") {
		return false, types.Errorf(types.InvalidInput, "init HEAD", "invalid branch name %q", branch)
	}
	if _, err := os.Lstat(m.headPath()); err == nil {
		return false, nil
	}

	content := symrefPrefix + "refs/heads/" + branch + "\n"
	if err := os.WriteFile(m.headPath(), []byte(content), 0o644); err != nil {
		return false, types.PathError(types.IOError, "init HEAD", m.headPath(), err)
	}
	return true, nil
}
