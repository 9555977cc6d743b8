package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mygit/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// FileName 是统计缓存在元数据目录下的文件名
const FileName = "mygit-statcache"

const formatVersion = 1

// 编码选项: 排序后的 Map Key 保证同样的内容写出同样的字节
var encOptions = cbor.EncOptions{
	Sort:        cbor.SortCanonical,
	Time:        cbor.TimeUnix,
	TimeTag:     cbor.EncTagNone,
	IndefLength: cbor.IndefLengthForbidden,
}

var em, _ = encOptions.EncMode()

// 解码选项: 限制容器大小，拒绝不定长与重复 Key
var decOptions = cbor.DecOptions{
	MaxArrayElements: 1 << 20,
	MaxMapPairs:      1 << 20,
	MaxNestedLevels:  16,
	IndefLength:      cbor.IndefLengthForbidden,
	DupMapKey:        cbor.DupMapKeyEnforcedAPF,
}

var dm, _ = decOptions.DecMode()

// Entry 记录一个文件上次被哈希时的 stat 信息
type Entry struct {
	ID      types.ObjectID `cbor:"1,keyasint"`
	Size    int64          `cbor:"2,keyasint"`
	ModTime int64          `cbor:"3,keyasint"` // UnixNano
	Mode    uint32         `cbor:"4,keyasint"`
	Seen    int64          `cbor:"5,keyasint"` // 记录时刻 (Unix 秒)
}

type file struct {
	Version int              `cbor:"v"`
	Entries map[string]Entry `cbor:"e"`
}

// Index 是 "路径 -> blob 地址" 的 stat 缓存
// 文件的大小、修改时间和权限都没变时可以跳过重新读取
type Index struct {
	path    string
	entries map[string]Entry
	touched map[string]bool
	dirty   bool
	mu      sync.Mutex
}

// New 创建一个空的缓存，Save 时写到 indexPath
func New(indexPath string) *Index {
	return &Index{
		path:    indexPath,
		entries: make(map[string]Entry),
		touched: make(map[string]bool),
	}
}

// Load 加载缓存文件，不存在时返回空缓存
// 文件损坏返回 CorruptData，由调用方决定是否丢弃
func Load(indexPath string) (*Index, error) {
	idx := New(indexPath)

	data, err := os.ReadFile(indexPath)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, types.PathError(types.IOError, "read stat cache", indexPath, err)
	}

	var f file
	if err := dm.Unmarshal(data, &f); err != nil {
		return nil, types.PathError(types.CorruptData, "read stat cache", indexPath, err)
	}
	if f.Version != formatVersion {
		return nil, types.PathError(types.CorruptData, "read stat cache", indexPath,
			fmt.Errorf("unsupported version %d", f.Version))
	}
	if f.Entries != nil {
		idx.entries = f.Entries
	}
	return idx, nil
}

// Path 返回缓存文件路径
func (i *Index) Path() string { return i.path }

// Lookup 在 stat 信息完全一致时返回缓存的地址
// 在记录的同一秒内被修改过的文件不可信，一律视为未命中
func (i *Index) Lookup(path string, info os.FileInfo) (types.ObjectID, bool) {
	key := CleanPath(path)
	i.mu.Lock()
	defer i.mu.Unlock()

	e, ok := i.entries[key]
	if !ok {
		return types.ZeroID, false
	}
	mtime := info.ModTime()
	if e.Size != info.Size() || e.ModTime != mtime.UnixNano() || e.Mode != uint32(info.Mode()) {
		return types.ZeroID, false
	}
	if mtime.Unix() >= e.Seen {
		return types.ZeroID, false
	}
	i.touched[key] = true
	return e.ID, true
}

// Update 记录一个文件的最新地址
func (i *Index) Update(path string, info os.FileInfo, id types.ObjectID) {
	key := CleanPath(path)
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries[key] = Entry{
		ID:      id,
		Size:    info.Size(),
		ModTime: info.ModTime().UnixNano(),
		Mode:    uint32(info.Mode()),
		Seen:    time.Now().Unix(),
	}
	i.touched[key] = true
	i.dirty = true
}

// Prune 删除 root 之下本次没有被访问过的条目 (文件已删除或被忽略)
func (i *Index) Prune(root string) int {
	prefix := CleanPath(root)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	removed := 0
	for key := range i.entries {
		if strings.HasPrefix(key, prefix) && !i.touched[key] {
			delete(i.entries, key)
			removed++
		}
	}
	if removed > 0 {
		i.dirty = true
	}
	return removed
}

// Len 返回条目数
func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.entries)
}

// Save 原子地写回磁盘，没有变化时什么都不做
func (i *Index) Save() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.dirty {
		return nil
	}

	data, err := em.Marshal(file{Version: formatVersion, Entries: i.entries})
	if err != nil {
		return fmt.Errorf("failed to encode stat cache: %w", err)
	}

	dir := filepath.Dir(i.path)
	tmp, err := os.CreateTemp(dir, "tmp_statcache_*")
	if err != nil {
		return types.PathError(types.IOError, "write stat cache", i.path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return types.PathError(types.IOError, "write stat cache", i.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return types.PathError(types.IOError, "write stat cache", i.path, err)
	}
	if err := os.Rename(tmpName, i.path); err != nil {
		os.Remove(tmpName)
		return types.PathError(types.IOError, "write stat cache", i.path, err)
	}
	i.dirty = false
	return nil
}

// CleanPath 统一 key 的形式: 绝对路径，"/" 分隔
func CleanPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return filepath.ToSlash(filepath.Clean(p))
}
