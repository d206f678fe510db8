package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"headless-pro/apps/content-api/dao"
	"headless-pro/apps/content-api/model"
	"headless-pro/pkg/logger"
	"headless-pro/pkg/server"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the Elasticsearch index from published content and drop stale documents",
	Args:  cobra.NoArgs,
	RunE:  runReindex,
}

func runReindex(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Search != server.SearchBackendElastic {
		return fmt.Errorf("reindex needs storage.search=%s, got %q", server.SearchBackendElastic, cfg.Storage.Search)
	}
	if cfg.Storage.Backend == server.StorageBackendMemory {
		return fmt.Errorf("reindex needs a persistent store, storage.backend is %q", cfg.Storage.Backend)
	}

	app, err := server.NewApplication(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()
	store, err := buildStore(app)
	if err != nil {
		return err
	}
	searcher, err := buildSearcher(ctx, app)
	if err != nil {
		return err
	}

	indexed, pruned, err := reindexAll(ctx, store, searcher)
	if err != nil {
		return err
	}

	app.GetLogger().Info(ctx, "Reindex finished", logger.F("indexed", indexed), logger.F("pruned", pruned))
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d items, removed %d stale documents\n", indexed, pruned)
	return nil
}

// reindexAll 按存储中的发布内容重建索引，并删除其余文档
func reindexAll(ctx context.Context, store dao.ContentStore, searcher dao.SearchDAO) (int, int64, error) {
	items, _, err := store.FindByFilter(ctx, &model.ContentFilter{
		Statuses: []model.Status{model.StatusPublished},
		OrderBy:  model.OrderByRecency,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("load content: %w", err)
	}

	keep := make([]int64, 0, len(items))
	for _, item := range items {
		if err := searcher.IndexItem(ctx, item); err != nil {
			return 0, 0, fmt.Errorf("index %d: %w", item.ID, err)
		}
		keep = append(keep, item.ID)
	}

	pruned, err := searcher.Prune(ctx, keep)
	if err != nil {
		return len(items), 0, fmt.Errorf("prune stale documents: %w", err)
	}
	return len(items), pruned, nil
}
