package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headless-pro/apps/content-api/model"
	"headless-pro/apps/content-api/schema"
	"headless-pro/pkg/config"
)

func TestSiteInfo(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Env = config.EnvProduction
	cfg.App.Version = "1.0.0"
	cfg.Site.Name = "Edris Husein"
	cfg.Site.URL = "https://cms.example.com/"
	cfg.Headless.APIRoot = "/wp-json/headless/v1"

	registry := schema.NewRegistry()
	require.NoError(t, registry.Register(model.KindTech, nil))

	info := NewSiteService(cfg, registry).Info()
	assert.Equal(t, "Edris Husein", info.Name)
	assert.Equal(t, "wp-json", info.RESTPrefix)
	assert.Equal(t, "https://cms.example.com/wp-json/", info.RESTURL)
	assert.Equal(t, config.ProductionQueryComplexityLimit, info.QueryComplexityLimit)
	assert.True(t, info.Status.RESTAPI)
	assert.False(t, info.Status.FieldSchemas)

	defaults, err := schema.NewDefaultRegistry()
	require.NoError(t, err)
	assert.True(t, NewSiteService(cfg, defaults).Info().Status.FieldSchemas)
}
