package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mygit/pkg/core"
	"mygit/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Record 把对象 "投影" 到数据库中，幂等
func (r *Repository) Record(ctx context.Context, obj core.Object) error {
	rec := ObjectRecord{
		ID:   obj.ID().String(),
		Type: string(obj.Type()),
		Size: int64(len(obj.Payload())),
	}

	if tree, ok := obj.(*core.Tree); ok {
		names, err := json.Marshal(tree.Names())
		if err != nil {
			return fmt.Errorf("failed to marshal entries: %w", err)
		}
		rec.Entries = datatypes.JSON(names)
	}

	// 地址已存在则什么都不做
	err := r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(&rec).Error
	if err != nil {
		return types.PathError(types.IOError, "record object", rec.ID, err)
	}
	return nil
}

// Get 按完整地址查询
func (r *Repository) Get(ctx context.Context, id types.ObjectID) (*ObjectRecord, error) {
	var rec ObjectRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("id = ?", id.String()).
		First(&rec).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.PathError(types.NotFound, "catalog lookup", id.String(), nil)
	}
	if err != nil {
		return nil, types.PathError(types.IOError, "catalog lookup", id.String(), err)
	}
	return &rec, nil
}

// List 按写入时间倒序列出对象；typ 为空表示所有类型，limit <= 0 表示不限
func (r *Repository) List(ctx context.Context, typ core.ObjectType, limit int) ([]ObjectRecord, error) {
	q := r.db.GetConn().WithContext(ctx).Order("created_at DESC").Order("id")
	if typ != "" {
		q = q.Where("type = ?", string(typ))
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []ObjectRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, types.NewError(types.IOError, "list objects", err)
	}
	return recs, nil
}

// Count 返回目录中的对象总数
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetConn().WithContext(ctx).Model(&ObjectRecord{}).Count(&n).Error; err != nil {
		return 0, types.NewError(types.IOError, "count objects", err)
	}
	return n, nil
}

// EntryNames 解出 tree 记录里保存的条目名
func (rec *ObjectRecord) EntryNames() ([]string, error) {
	if len(rec.Entries) == 0 {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal(rec.Entries, &names); err != nil {
		return nil, types.PathError(types.CorruptData, "decode catalog entries", rec.ID, err)
	}
	return names, nil
}
