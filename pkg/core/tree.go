package core

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"mygit/pkg/types"
)

// Mode 是 tree 条目的类别，数值即其八进制文本形式
type Mode uint32

const (
	ModeRegular    Mode = 0o100644
	ModeExecutable Mode = 0o100755
	ModeSymlink    Mode = 0o120000
	ModeDir        Mode = 0o40000 // 文本形式为 "40000"，没有前导 0
)

// String 返回写入 tree 的规范文本形式
func (m Mode) String() string { return strconv.FormatUint(uint64(m), 8) }

// Padded 返回 6 位宽的展示形式 (ls-tree 使用 "040000")
func (m Mode) Padded() string { return fmt.Sprintf("%06o", uint32(m)) }

func (m Mode) IsDir() bool { return m == ModeDir }

// ObjectType 返回条目指向的对象类型
func (m Mode) ObjectType() ObjectType {
	if m == ModeDir {
		return TypeTree
	}
	return TypeBlob
}

// ParseMode 只接受四种规范文本
func ParseMode(s string) (Mode, error) {
	switch s {
	case "100644":
		return ModeRegular, nil
	case "100755":
		return ModeExecutable, nil
	case "120000":
		return ModeSymlink, nil
	case "40000":
		return ModeDir, nil
	default:
		return 0, types.Errorf(types.CorruptTree, "parse tree", "unknown entry mode %q", s)
	}
}

type TreeEntry struct {
	Mode Mode
	Name string
	ID   types.ObjectID
}

type Tree struct {
	id       types.ObjectID
	rawBytes []byte
	payload  []byte

	Entries []TreeEntry
}

// NewTree 创建一个新的目录树节点
// entries 必须已经按名字字节序严格升序排列 (见 SortEntries)
func NewTree(entries []TreeEntry) (*Tree, error) {
	if err := ValidateEntries(entries); err != nil {
		return nil, err
	}
	payload := EncodeTree(entries)
	id, framed := CalculateHash(TypeTree, payload)
	return &Tree{
		id:       id,
		rawBytes: framed,
		payload:  framed[len(framed)-len(payload):],
		Entries:  entries,
	}, nil
}

func (t *Tree) Type() ObjectType   { return TypeTree }
func (t *Tree) ID() types.ObjectID { return t.id }
func (t *Tree) Bytes() []byte      { return t.rawBytes }
func (t *Tree) Payload() []byte    { return t.payload }

// Names 按存储顺序返回所有条目名
func (t *Tree) Names() []string {
	names := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		names[i] = e.Name
	}
	return names
}

// SortEntries 按名字的字节序排序 (Go 的字符串比较就是逐字节比较)
func SortEntries(entries []TreeEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
}

// ValidateName 检查条目名是否可以写入 tree
func ValidateName(name string) error {
	switch {
	case name == "":
		return types.Errorf(types.InvalidInput, "validate tree", "empty entry name")
	case name == "." || name == "..":
		return types.Errorf(types.InvalidInput, "validate tree", "reserved entry name %q", name)
	case strings.ContainsAny(name, "/\x00"):
		return types.Errorf(types.InvalidInput, "validate tree", "entry name %q contains '/' or NUL", name)
	}
	return nil
}

// ValidateEntries 检查名字合法、唯一且严格升序
func ValidateEntries(entries []TreeEntry) error {
	for i, e := range entries {
		if err := ValidateName(e.Name); err != nil {
			return err
		}
		if _, err := ParseMode(e.Mode.String()); err != nil {
			return types.Errorf(types.InvalidInput, "validate tree", "entry %q has unsupported mode %o", e.Name, uint32(e.Mode))
		}
		if i > 0 && entries[i-1].Name >= e.Name {
			return types.Errorf(types.InvalidInput, "validate tree",
				"entries out of order or duplicated: %q then %q", entries[i-1].Name, e.Name)
		}
	}
	return nil
}

// EncodeTree 按调用方给定的顺序输出 "<mode> <name>\0<20 字节地址>" 记录
// 返回的是 tree 的 payload，还没有加头部
func EncodeTree(entries []TreeEntry) []byte {
	size := 0
	for _, e := range entries {
		size += len(e.Mode.String()) + 1 + len(e.Name) + 1 + types.IDSize
	}
	buf := make([]byte, 0, size)
	for _, e := range entries {
		buf = append(buf, e.Mode.String()...)
		buf = append(buf, ' ')
		buf = append(buf, e.Name...)
		buf = append(buf, 0)
		buf = append(buf, e.ID[:]...)
	}
	return buf
}

// DecodeTree 解析去掉头部之后的 tree payload
// 游标必须恰好停在 payload 末尾，任何残缺记录都返回 CorruptTree
func DecodeTree(payload []byte) ([]TreeEntry, error) {
	r := treeReader{buf: payload}
	var entries []TreeEntry

	for r.more() {
		modeText, err := r.readUntil(' ')
		if err != nil {
			return nil, err
		}
		mode, err := ParseMode(string(modeText))
		if err != nil {
			return nil, r.fail(fmt.Sprintf("unknown entry mode %q", modeText))
		}

		name, err := r.readUntil(0)
		if err != nil {
			return nil, err
		}
		if len(name) == 0 {
			return nil, r.fail("empty entry name")
		}

		raw, err := r.readN(types.IDSize)
		if err != nil {
			return nil, err
		}

		var id types.ObjectID
		copy(id[:], raw)
		entries = append(entries, TreeEntry{Mode: mode, Name: string(name), ID: id})
	}
	return entries, nil
}

// treeReader 是 tree payload 上的游标，显式记录当前位置
type treeReader struct {
	buf []byte
	pos int
}

func (r *treeReader) more() bool { return r.pos < len(r.buf) }

// readUntil 读取到分隔符为止 (不含分隔符)，并越过分隔符
func (r *treeReader) readUntil(delim byte) ([]byte, error) {
	i := bytes.IndexByte(r.buf[r.pos:], delim)
	if i < 0 {
		return nil, r.fail(fmt.Sprintf("missing %q delimiter", delim))
	}
	field := r.buf[r.pos : r.pos+i]
	r.pos += i + 1
	return field, nil
}

// readN 读取恰好 n 个字节
func (r *treeReader) readN(n int) ([]byte, error) {
	if len(r.buf)-r.pos < n {
		return nil, r.fail(fmt.Sprintf("truncated record: need %d bytes, have %d", n, len(r.buf)-r.pos))
	}
	field := r.buf[r.pos : r.pos+n]
	r.pos += n
	return field, nil
}

func (r *treeReader) fail(msg string) error {
	return types.Errorf(types.CorruptTree, "parse tree", "offset %d: %s", r.pos, msg)
}
