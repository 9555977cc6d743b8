package exporter

import (
	"fmt"
	"io"

	"mygit/pkg/core"
)

// PrintObject 以 cat-file -p 的方式输出对象
// blob 原样输出；tree 每个条目一行，格式同 ls-tree
func PrintObject(obj core.Object, w io.Writer) error {
	switch o := obj.(type) {
	case *core.Blob:
		_, err := w.Write(o.Payload())
		return err
	case *core.Tree:
		for _, entry := range o.Entries {
			if err := PrintEntry(w, entry.Name, entry); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown object type: %s", obj.Type())
	}
}

// PrintEntry 输出一行 "<mode> <type> <id>\t<path>"
// mode 补齐到 6 位 (040000)，与 git ls-tree 一致
func PrintEntry(w io.Writer, p string, entry core.TreeEntry) error {
	_, err := fmt.Fprintf(w, "%s %s %s\t%s\n", entry.Mode.Padded(), entry.Mode.ObjectType(), entry.ID, p)
	return err
}
