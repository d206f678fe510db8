package dao

import (
	"context"
	"errors"

	"headless-pro/apps/content-api/model"
)

// ErrNotFound 内容不存在
var ErrNotFound = errors.New("content not found")

// ContentStore 内容存储
type ContentStore interface {
	FindByID(ctx context.Context, id int64) (*model.ContentItem, error)
	// FindByFilter 返回按条件排序、截断后的条目，以及截断前的总数
	FindByFilter(ctx context.Context, filter *model.ContentFilter) ([]*model.ContentItem, int64, error)
	// IncrementViewCount 原子地把浏览量加一
	IncrementViewCount(ctx context.Context, id int64) error
	Create(ctx context.Context, item *model.ContentItem) error
	CountByKind(ctx context.Context, status model.Status) ([]model.KindCount, error)
}

// SearchDAO 外部全文检索
type SearchDAO interface {
	EnsureIndex(ctx context.Context) error
	IndexItem(ctx context.Context, item *model.ContentItem) error
	DeleteItem(ctx context.Context, id int64) error
	// Prune 删除ID不在 keep 中的文档，返回删除数
	Prune(ctx context.Context, keep []int64) (int64, error)
	Search(ctx context.Context, filter *model.ContentFilter) ([]*model.ContentItem, int64, error)
}

// ContactArchive 联系表单归档
type ContactArchive interface {
	Save(ctx context.Context, submission *model.ContactSubmission) error
	MarkDelivered(ctx context.Context, id int64) error
}
