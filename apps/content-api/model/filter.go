package model

import (
	"sort"
	"strings"
	"time"
)

// OrderBy 排序方式
type OrderBy string

const (
	OrderByRecency   OrderBy = "recency"   // 发布时间倒序
	OrderByViews     OrderBy = "views"     // 浏览量倒序，同量按发布时间倒序
	OrderByRelevance OrderBy = "relevance" // 标题命中优先，其次发布时间倒序
)

// ContentFilter 内容查询条件，各条件之间为AND关系
type ContentFilter struct {
	Keyword        string  // 标题或正文包含，不区分大小写
	IDs            []int64 // 限定在这些ID内
	Kinds          []Kind
	Statuses       []Status
	CategoryIDs    []int64 // 任一分类重叠
	TagIDs         []int64 // 任一标签重叠
	ExcludeIDs     []int64
	PublishedAfter *time.Time
	OrderBy        OrderBy
	Limit          int // <=0 表示不限制
}

// Match 判断条目是否满足条件（内存存储使用）
func (f *ContentFilter) Match(item *ContentItem) bool {
	if f.Keyword != "" && !containsFold(item.Title, f.Keyword) && !containsFold(item.Body, f.Keyword) {
		return false
	}
	if len(f.IDs) > 0 && !overlaps(f.IDs, []int64{item.ID}) {
		return false
	}
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, item.Kind) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, item.Status) {
		return false
	}
	if len(f.CategoryIDs) > 0 && !overlaps(f.CategoryIDs, item.Categories) {
		return false
	}
	if len(f.TagIDs) > 0 && !overlaps(f.TagIDs, item.Tags) {
		return false
	}
	for _, id := range f.ExcludeIDs {
		if id == item.ID {
			return false
		}
	}
	if f.PublishedAfter != nil && item.PublishedAt.Before(*f.PublishedAfter) {
		return false
	}
	return true
}

// SortItems 按排序方式原地排序
func SortItems(items []*ContentItem, order OrderBy, keyword string) {
	newer := func(a, b *ContentItem) bool {
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.ID > b.ID
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch order {
		case OrderByViews:
			if a.ViewCount != b.ViewCount {
				return a.ViewCount > b.ViewCount
			}
		case OrderByRelevance:
			if keyword != "" {
				at, bt := containsFold(a.Title, keyword), containsFold(b.Title, keyword)
				if at != bt {
					return at
				}
			}
		}
		return newer(a, b)
	})
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func containsKind(kinds []Kind, kind Kind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func containsStatus(statuses []Status, status Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func overlaps(want []int64, have []int64) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}
