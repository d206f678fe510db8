package dao

import (
	"context"
	"errors"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"headless-pro/apps/content-api/model"
	"headless-pro/pkg/database"
)

// likeEscaper 转义LIKE通配符
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// contentDAO PostgreSQL内容存储
type contentDAO struct {
	db *database.PostgreSQL
}

// NewContentDAO 创建内容DAO实例
func NewContentDAO(db *database.PostgreSQL) ContentStore {
	return &contentDAO{db: db}
}

// Migrate 迁移内容表
func Migrate(db *database.PostgreSQL) error {
	return db.AutoMigrate(&model.ContentItem{})
}

// FindByID 按ID获取内容
func (d *contentDAO) FindByID(ctx context.Context, id int64) (*model.ContentItem, error) {
	var item model.ContentItem
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByFilter 条件查询
func (d *contentDAO) FindByFilter(ctx context.Context, filter *model.ContentFilter) ([]*model.ContentItem, int64, error) {
	// Session 之后可安全复用于 Count 与 Find
	query := d.applyFilter(d.db.WithContext(ctx).Model(&model.ContentItem{}), filter).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*model.ContentItem{}, 0, nil
	}

	query = d.applyOrder(query, filter)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var items []*model.ContentItem
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// applyFilter 构建WHERE条件
func (d *contentDAO) applyFilter(query *gorm.DB, filter *model.ContentFilter) *gorm.DB {
	if filter.Keyword != "" {
		keyword := "%" + likeEscaper.Replace(filter.Keyword) + "%"
		query = query.Where("(title ILIKE ? OR body ILIKE ?)", keyword, keyword)
	}
	if len(filter.Kinds) > 0 {
		query = query.Where("kind IN ?", filter.Kinds)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if len(filter.CategoryIDs) > 0 {
		query = query.Where("categories && ?", pq.Int64Array(filter.CategoryIDs))
	}
	if len(filter.TagIDs) > 0 {
		query = query.Where("tags && ?", pq.Int64Array(filter.TagIDs))
	}
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if len(filter.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", filter.ExcludeIDs)
	}
	if filter.PublishedAfter != nil {
		query = query.Where("published_at >= ?", *filter.PublishedAfter)
	}
	return query
}

// applyOrder 排序，与 model.SortItems 保持一致
func (d *contentDAO) applyOrder(query *gorm.DB, filter *model.ContentFilter) *gorm.DB {
	switch filter.OrderBy {
	case model.OrderByViews:
		query = query.Order("view_count DESC")
	case model.OrderByRelevance:
		if filter.Keyword != "" {
			keyword := "%" + likeEscaper.Replace(filter.Keyword) + "%"
			query = query.Order(clause.OrderBy{Expression: clause.Expr{
				SQL:                "CASE WHEN title ILIKE ? THEN 0 ELSE 1 END",
				Vars:               []interface{}{keyword},
				WithoutParentheses: true,
			}})
		}
	}
	return query.Order("published_at DESC").Order("id DESC")
}

// IncrementViewCount 浏览量加一
func (d *contentDAO) IncrementViewCount(ctx context.Context, id int64) error {
	result := d.db.WithContext(ctx).Model(&model.ContentItem{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Create 创建内容
func (d *contentDAO) Create(ctx context.Context, item *model.ContentItem) error {
	return d.db.WithContext(ctx).Create(item).Error
}

// CountByKind 按类型统计数量
func (d *contentDAO) CountByKind(ctx context.Context, status model.Status) ([]model.KindCount, error) {
	var counts []model.KindCount
	err := d.db.WithContext(ctx).Model(&model.ContentItem{}).
		Select("kind, COUNT(*) AS count").
		Where("status = ?", status).
		Group("kind").
		Order("kind").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
