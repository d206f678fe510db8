package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"headless-pro/apps/content-api/dao"
	"headless-pro/apps/content-api/model"
	"headless-pro/apps/content-api/schema"
	"headless-pro/pkg/logger"
	"headless-pro/pkg/server"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Validate content from a YAML file and write it to the configured store",
	Long: `Seed reads a YAML document of the form

  items:
    - kind: skill
      title: Go
      status: published
      fields:
        skill_level: 90

validates every item against its kind's field schema and writes it to the store.
Items without a status are published.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

// seedDocument 种子文件格式
type seedDocument struct {
	Items []*model.ContentItem `yaml:"items"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Backend == server.StorageBackendMemory {
		return fmt.Errorf("seed needs a persistent store, storage.backend is %q (use serve --seed instead)", cfg.Storage.Backend)
	}

	app, err := server.NewApplication(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	registry, err := schema.NewDefaultRegistry()
	if err != nil {
		return err
	}
	store, err := buildStore(app)
	if err != nil {
		return err
	}
	ctx := context.Background()
	searcher, err := buildSearcher(ctx, app)
	if err != nil {
		return err
	}

	return seedFromFile(ctx, args[0], registry, store, searcher, app.GetLogger())
}

func seedFromFile(ctx context.Context, path string, registry *schema.Registry, store dao.ContentStore, searcher dao.SearchDAO, log logger.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	items, err := loadSeed(f, registry)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return seedStore(ctx, store, searcher, items, log)
}

// loadSeed 解析并校验种子内容，任一条不合法则整体失败
func loadSeed(r io.Reader, registry *schema.Registry) ([]*model.ContentItem, error) {
	var doc seedDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	for i, item := range doc.Items {
		if item == nil {
			return nil, fmt.Errorf("item %d: empty", i)
		}
		if item.Title == "" {
			return nil, fmt.Errorf("item %d: title is required", i)
		}
		if !registry.Has(item.Kind) {
			return nil, fmt.Errorf("item %d: %w", i, &model.UnknownKindError{Kind: item.Kind})
		}
		if item.Status == "" {
			item.Status = model.StatusPublished
		}
		if !model.ValidateStatus(item.Status) {
			return nil, fmt.Errorf("item %d: %w", i, model.NewInvalidArgument("status", "unsupported value %q", item.Status))
		}
		if item.ViewCount < 0 {
			return nil, fmt.Errorf("item %d: %w", i, model.NewInvalidArgument("view_count", "must not be negative"))
		}
		if err := registry.Validate(item.Kind, item.Fields); err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i, item.Title, err)
		}
	}
	return doc.Items, nil
}
