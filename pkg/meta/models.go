package meta

import (
	"time"

	"gorm.io/datatypes"
)

// ObjectRecord 是一个已写入对象在关系型数据库中的投影
// 对象本身仍然只存在对象库里，这里只保存可以查询的元数据
type ObjectRecord struct {
	// ID 是 40 位十六进制地址
	ID string `gorm:"primaryKey;type:char(40)"`

	Type string `gorm:"index;type:varchar(8);not null"`
	Size int64  `gorm:"not null"`

	// Entries 只对 tree 有意义：按顺序保存条目名 ["a.txt", "subdir"]
	Entries datatypes.JSON

	CreatedAt time.Time `gorm:"index"`
}

// TableName 强制指定表名
func (ObjectRecord) TableName() string {
	return "objects"
}
