package ignore

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"mygit/pkg/types"
)

// DefaultFileName 是用户忽略规则文件的默认名字
const DefaultFileName = ".mygitignore"

// Matcher 判断快照时哪些路径应该跳过
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 初始化忽略匹配器
// rootPath: 快照根目录 (在这里查找 fileName)
// metaDir:  仓库元数据目录，绝对路径或相对 rootPath 的路径
// 元数据目录在 rootPath 之内时，无论用户规则如何都会被忽略
func NewMatcher(rootPath, fileName, metaDir string) (*Matcher, error) {
	if fileName == "" {
		fileName = DefaultFileName
	}

	var defaultRules []string
	if rule, ok := metaDirRule(rootPath, metaDir); ok {
		defaultRules = append(defaultRules, rule)
	}

	ignoreFilePath := filepath.Join(rootPath, fileName)
	info, err := os.Stat(ignoreFilePath)
	switch {
	case err == nil && info.Mode().IsRegular():
		// 用户规则在前，默认规则在后，保证用户的 "!" 不能把元数据目录放出来
		ignorer, err := gitignore.CompileIgnoreFileAndLines(ignoreFilePath, defaultRules...)
		if err != nil {
			return nil, types.PathError(types.IOError, "read ignore file", ignoreFilePath, err)
		}
		return &Matcher{ignorer: ignorer}, nil
	case err != nil && !os.IsNotExist(err):
		return nil, types.PathError(types.IOError, "read ignore file", ignoreFilePath, err)
	}

	return &Matcher{ignorer: gitignore.CompileIgnoreLines(defaultRules...)}, nil
}

// Matches 检查给定的路径是否匹配忽略规则
// path: 相对于快照根目录的 "/" 分隔路径 (例如 "data/model.bin")
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(path)
}

// metaDirRule 把元数据目录转换成锚定在根目录的规则，例如 "/.git"
// 目录不在 rootPath 之下时不需要规则
func metaDirRule(rootPath, metaDir string) (string, bool) {
	if metaDir == "" {
		return "", false
	}
	root, err := filepath.Abs(rootPath)
	if err != nil {
		return "", false
	}
	if !filepath.IsAbs(metaDir) {
		metaDir = filepath.Join(root, metaDir)
	}
	rel, err := filepath.Rel(root, filepath.Clean(metaDir))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	// 规则语法会把这些字符当成通配符，交给快照按路径跳过
	if strings.ContainsAny(rel, "*?[]()+{}|^$\\") || strings.TrimSpace(rel) != rel {
		return "", false
	}
	return "/" + filepath.ToSlash(rel), true
}
