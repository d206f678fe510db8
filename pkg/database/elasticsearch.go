package database

import (
	"context"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"headless-pro/pkg/config"
	"headless-pro/pkg/logger"
)

// ElasticSearch ElasticSearch客户端封装
type ElasticSearch struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

// NewElasticSearch 创建ElasticSearch连接
func NewElasticSearch(cfg config.ElasticsearchConfig, log logger.Logger) (*ElasticSearch, error) {
	addresses := cfg.Addresses
	if len(addresses) == 0 {
		addresses = []string{"http://localhost:9200"}
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ElasticSearch client: %w", err)
	}

	es := &ElasticSearch{
		client: client,
		index:  cfg.Index,
		logger: log,
	}

	// 测试连接
	if err := es.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to connect to ElasticSearch: %w", err)
	}

	log.Info(context.Background(), "ElasticSearch connected successfully", logger.F("addresses", addresses))
	return es, nil
}

// GetClient 获取原生客户端
func (es *ElasticSearch) GetClient() *elasticsearch.Client {
	return es.client
}

// Index 内容索引名
func (es *ElasticSearch) Index() string {
	return es.index
}

// Close 关闭连接
func (es *ElasticSearch) Close() error {
	// ElasticSearch客户端不需要显式关闭
	return nil
}

// Ping 测试连接
func (es *ElasticSearch) Ping(ctx context.Context) error {
	res, err := es.client.Info(es.client.Info.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("ElasticSearch ping failed: %s", res.String())
	}
	return nil
}
