package main

import (
	"context"
	"fmt"

	"headless-pro/apps/content-api/dao"
	"headless-pro/apps/content-api/model"
	"headless-pro/apps/content-api/service"
	"headless-pro/pkg/config"
	"headless-pro/pkg/kafka"
	"headless-pro/pkg/logger"
	"headless-pro/pkg/server"
)

// buildStore 按配置选择内容存储，postgres 时顺带迁移表结构
func buildStore(app *server.Application) (dao.ContentStore, error) {
	cfg := app.GetConfig()
	switch cfg.Storage.Backend {
	case server.StorageBackendMemory:
		return dao.NewMemoryDAO(), nil
	case server.StorageBackendPostgres:
		pg := app.GetPostgreSQL()
		if err := dao.Migrate(pg); err != nil {
			return nil, fmt.Errorf("migrate content tables: %w", err)
		}
		return dao.NewContentDAO(pg), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}

// buildSearcher 配置了Elasticsearch时返回检索DAO并确保索引存在
func buildSearcher(ctx context.Context, app *server.Application) (dao.SearchDAO, error) {
	es := app.GetElasticSearch()
	if es == nil {
		return nil, nil
	}
	searcher := dao.NewSearchDAO(es.GetClient(), es.Index(), app.GetLogger())
	if err := searcher.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure search index: %w", err)
	}
	return searcher, nil
}

// buildMailer 发件方式：kafka 走发件箱，其余直接SMTP
func buildMailer(cfg *config.Config, producer kafka.Publisher) (service.Mailer, error) {
	if cfg.Mail.Transport == "kafka" {
		if producer == nil {
			return nil, fmt.Errorf("mail transport kafka requires kafka.enabled")
		}
		return service.NewOutboxMailer(producer, cfg.Kafka.MailTopic), nil
	}
	return service.NewSMTPMailer(cfg.Mail)
}

// seedStore 写入内容，配置了检索时为发布内容建索引
func seedStore(ctx context.Context, store dao.ContentStore, searcher dao.SearchDAO, items []*model.ContentItem, log logger.Logger) error {
	for _, item := range items {
		if err := store.Create(ctx, item); err != nil {
			return fmt.Errorf("create %q: %w", item.Title, err)
		}
		if searcher != nil && item.IsPublished() {
			if err := searcher.IndexItem(ctx, item); err != nil {
				return fmt.Errorf("index %d: %w", item.ID, err)
			}
		}
	}
	log.Info(ctx, "Seeded content", logger.F("count", len(items)))
	return nil
}
