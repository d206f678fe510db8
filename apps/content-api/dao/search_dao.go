package dao

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"headless-pro/apps/content-api/model"
	"headless-pro/pkg/logger"
)

// wildcardEscaper 转义wildcard查询中的特殊字符
var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

// contentIndexMapping 内容索引映射，title/body 使用 wildcard 类型以支持子串匹配
var contentIndexMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"id":             map[string]interface{}{"type": "long"},
			"kind":           map[string]interface{}{"type": "keyword"},
			"status":         map[string]interface{}{"type": "keyword"},
			"slug":           map[string]interface{}{"type": "keyword"},
			"title":          map[string]interface{}{"type": "wildcard"},
			"body":           map[string]interface{}{"type": "wildcard"},
			"excerpt":        map[string]interface{}{"type": "text", "index": false},
			"categories":     map[string]interface{}{"type": "long"},
			"tags":           map[string]interface{}{"type": "long"},
			"view_count":     map[string]interface{}{"type": "long"},
			"published_at":   map[string]interface{}{"type": "date"},
			"fields":         map[string]interface{}{"type": "object", "enabled": false},
			"featured_image": map[string]interface{}{"type": "keyword", "index": false},
		},
	},
}

// searchDAO ElasticSearch全文检索
type searchDAO struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

// NewSearchDAO 创建检索DAO
func NewSearchDAO(client *elasticsearch.Client, index string, log logger.Logger) SearchDAO {
	return &searchDAO{client: client, index: index, logger: log}
}

// EnsureIndex 索引不存在时创建
func (d *searchDAO) EnsureIndex(ctx context.Context) error {
	exists := esapi.IndicesExistsRequest{Index: []string{d.index}}
	res, err := exists.Do(ctx, d.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	body, err := json.Marshal(contentIndexMapping)
	if err != nil {
		return fmt.Errorf("failed to marshal index mapping: %w", err)
	}

	create := esapi.IndicesCreateRequest{Index: d.index, Body: bytes.NewReader(body)}
	res, err = create.Do(ctx, d.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to create index: %s", res.String())
	}

	d.logger.Info(ctx, "Index created successfully", logger.F("index", d.index))
	return nil
}

// IndexItem 写入或覆盖一条内容
func (d *searchDAO) IndexItem(ctx context.Context, item *model.ContentItem) error {
	doc, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      d.index,
		DocumentID: strconv.FormatInt(item.ID, 10),
		Body:       bytes.NewReader(doc),
	}
	res, err := req.Do(ctx, d.client)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to index document: %s", res.String())
	}
	return nil
}

// DeleteItem 删除一条内容，文档不存在不算错误
func (d *searchDAO) DeleteItem(ctx context.Context, id int64) error {
	req := esapi.DeleteRequest{Index: d.index, DocumentID: strconv.FormatInt(id, 10)}
	res, err := req.Do(ctx, d.client)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to delete document: %s", res.String())
	}
	return nil
}

// Prune 删除不在 keep 中的文档
func (d *searchDAO) Prune(ctx context.Context, keep []int64) (int64, error) {
	body, err := json.Marshal(buildPruneQuery(keep))
	if err != nil {
		return 0, fmt.Errorf("failed to marshal prune query: %w", err)
	}

	refresh := true
	req := esapi.DeleteByQueryRequest{
		Index:   []string{d.index},
		Body:    bytes.NewReader(body),
		Refresh: &refresh,
	}
	res, err := req.Do(ctx, d.client)
	if err != nil {
		return 0, fmt.Errorf("failed to prune index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("failed to prune index: %s", res.String())
	}

	var parsed struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("failed to decode prune response: %w", err)
	}
	return parsed.Deleted, nil
}

// buildPruneQuery keep 为空时删除全部
func buildPruneQuery(keep []int64) map[string]interface{} {
	if len(keep) == 0 {
		return map[string]interface{}{"query": map[string]interface{}{"match_all": map[string]interface{}{}}}
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must_not": []interface{}{
					map[string]interface{}{"terms": map[string]interface{}{"id": keep}},
				},
			},
		},
	}
}

// searchResponse ES检索响应
type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source model.ContentItem `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search 子串检索，标题命中优先，其次按发布时间倒序
func (d *searchDAO) Search(ctx context.Context, filter *model.ContentFilter) ([]*model.ContentItem, int64, error) {
	body, err := json.Marshal(buildSearchQuery(filter))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal query: %w", err)
	}

	req := esapi.SearchRequest{
		Index:          []string{d.index},
		Body:           bytes.NewReader(body),
		TrackTotalHits: true,
	}
	res, err := req.Do(ctx, d.client)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, 0, fmt.Errorf("failed to search: %s", res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("failed to decode search response: %w", err)
	}

	items := make([]*model.ContentItem, 0, len(parsed.Hits.Hits))
	for i := range parsed.Hits.Hits {
		item := parsed.Hits.Hits[i].Source
		items = append(items, &item)
	}
	return items, parsed.Hits.Total.Value, nil
}

// buildSearchQuery 构建检索DSL
func buildSearchQuery(filter *model.ContentFilter) map[string]interface{} {
	filters := make([]interface{}, 0, 3)
	if len(filter.Statuses) > 0 {
		filters = append(filters, map[string]interface{}{"terms": map[string]interface{}{"status": filter.Statuses}})
	}
	if len(filter.Kinds) > 0 {
		filters = append(filters, map[string]interface{}{"terms": map[string]interface{}{"kind": filter.Kinds}})
	}
	if filter.PublishedAfter != nil {
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{"published_at": map[string]interface{}{"gte": filter.PublishedAfter}},
		})
	}

	boolQuery := map[string]interface{}{"filter": filters}
	if filter.Keyword != "" {
		pattern := "*" + wildcardEscaper.Replace(filter.Keyword) + "*"
		// dis_max 取最高分：命中标题得2分，只命中正文得1分
		boolQuery["must"] = []interface{}{
			map[string]interface{}{
				"dis_max": map[string]interface{}{
					"queries": []interface{}{
						wildcard("title", pattern, 2),
						wildcard("body", pattern, 1),
					},
				},
			},
		}
	}
	if len(filter.ExcludeIDs) > 0 {
		boolQuery["must_not"] = []interface{}{
			map[string]interface{}{"terms": map[string]interface{}{"id": filter.ExcludeIDs}},
		}
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []interface{}{
			map[string]interface{}{"_score": map[string]interface{}{"order": "desc"}},
			map[string]interface{}{"published_at": map[string]interface{}{"order": "desc"}},
			map[string]interface{}{"id": map[string]interface{}{"order": "desc"}},
		},
	}
	if filter.Limit > 0 {
		query["size"] = filter.Limit
	}
	return query
}

func wildcard(field, pattern string, boost float64) map[string]interface{} {
	return map[string]interface{}{
		"wildcard": map[string]interface{}{
			field: map[string]interface{}{
				"value":            pattern,
				"case_insensitive": true,
				"boost":            boost,
			},
		},
	}
}
