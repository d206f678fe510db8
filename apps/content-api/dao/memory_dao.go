package dao

import (
	"context"
	"sort"
	"sync"
	"time"

	"headless-pro/apps/content-api/model"
)

// memoryDAO 内存内容存储，用于开发和测试
type memoryDAO struct {
	mu     sync.RWMutex
	items  map[int64]*model.ContentItem
	nextID int64
}

// NewMemoryDAO 创建内存存储
func NewMemoryDAO(items ...*model.ContentItem) ContentStore {
	d := &memoryDAO{items: make(map[int64]*model.ContentItem)}
	for _, item := range items {
		_ = d.Create(context.Background(), item)
	}
	return d
}

// FindByID 按ID获取内容
func (d *memoryDAO) FindByID(ctx context.Context, id int64) (*model.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	item, ok := d.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return item.Clone(), nil
}

// FindByFilter 条件查询
func (d *memoryDAO) FindByFilter(ctx context.Context, filter *model.ContentFilter) ([]*model.ContentItem, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	d.mu.RLock()
	matched := make([]*model.ContentItem, 0)
	for _, item := range d.items {
		if filter.Match(item) {
			matched = append(matched, item.Clone())
		}
	}
	d.mu.RUnlock()

	// map遍历无序，先按ID固定顺序
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	model.SortItems(matched, filter.OrderBy, filter.Keyword)

	total := int64(len(matched))
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

// IncrementViewCount 浏览量加一
func (d *memoryDAO) IncrementViewCount(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	item, ok := d.items[id]
	if !ok {
		return ErrNotFound
	}
	item.ViewCount++
	return nil
}

// Create 创建内容，ID为0时自动分配
func (d *memoryDAO) Create(ctx context.Context, item *model.ContentItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if item.ID == 0 {
		d.nextID++
		item.ID = d.nextID
	} else if item.ID > d.nextID {
		d.nextID = item.ID
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	d.items[item.ID] = item.Clone()
	return nil
}

// CountByKind 按类型统计数量
func (d *memoryDAO) CountByKind(ctx context.Context, status model.Status) ([]model.KindCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	counts := make(map[model.Kind]int64)
	for _, item := range d.items {
		if item.Status == status {
			counts[item.Kind]++
		}
	}

	result := make([]model.KindCount, 0, len(counts))
	for kind, count := range counts {
		result = append(result, model.KindCount{Kind: kind, Count: count})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Kind < result[j].Kind })
	return result, nil
}
