package converter

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headless-pro/apps/content-api/model"
	"headless-pro/apps/content-api/service"
)

func TestPermalink(t *testing.T) {
	c := NewConverter("https://cms.example.com/")

	cases := []struct {
		item *model.ContentItem
		want string
	}{
		{&model.ContentItem{ID: 1, Kind: model.KindPost, Slug: "hello"}, "https://cms.example.com/hello/"},
		{&model.ContentItem{ID: 2, Kind: model.KindPage, Slug: "about"}, "https://cms.example.com/about/"},
		{&model.ContentItem{ID: 3, Kind: model.KindProject, Slug: "cli"}, "https://cms.example.com/projects/cli/"},
		{&model.ContentItem{ID: 4, Kind: model.KindSkill, Slug: "go"}, "https://cms.example.com/skills/go/"},
		{&model.ContentItem{ID: 5, Kind: model.KindHobby, Slug: "chess"}, "https://cms.example.com/hobbies/chess/"},
		{&model.ContentItem{ID: 6, Kind: model.KindTech, Slug: "redis"}, "https://cms.example.com/technologies/redis/"},
		{&model.ContentItem{ID: 7, Kind: model.KindPost}, "https://cms.example.com/7/"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Permalink(tc.item))
	}
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "given", Excerpt(&model.ContentItem{Excerpt: "given", Body: "ignored"}))
	assert.Equal(t, "short body", Excerpt(&model.ContentItem{Body: "<p>short <b>body</b></p>"}))

	long := Excerpt(&model.ContentItem{Body: strings.Repeat("w ", 60)})
	assert.True(t, strings.HasSuffix(long, " […]"))
	assert.Len(t, strings.Fields(strings.TrimSuffix(long, " […]")), excerptWords)
}

func TestSummariesToResponse(t *testing.T) {
	c := NewConverter("https://cms.example.com")
	published := time.Date(2024, 3, 1, 8, 30, 0, 0, time.FixedZone("CET", 3600))
	items := []*model.ContentItem{{ID: 9, Kind: model.KindPost, Slug: "p", Title: "T", Excerpt: "E",
		AuthorID: 2, AuthorName: "Edris", ViewCount: 12, PublishedAt: published}}

	related := c.SummariesToResponse(items, false)
	require.Len(t, related, 1)
	assert.Nil(t, related[0].Views)
	assert.Equal(t, "2024-03-01T07:30:00Z", related[0].Date)
	assert.Equal(t, Author{Name: "Edris", ID: 2}, related[0].Author)

	popular := c.SummariesToResponse(items, true)
	require.NotNil(t, popular[0].Views)
	assert.EqualValues(t, 12, *popular[0].Views)

	raw, err := json.Marshal(related)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "views")
	assert.Equal(t, "[]", mustJSON(t, c.SummariesToResponse(nil, true)))
}

func TestDecoratedToResponse(t *testing.T) {
	c := NewConverter("https://cms.example.com")

	page := c.DecoratedToResponse(&service.Decorated{
		Item:        &model.ContentItem{ID: 1, Kind: model.KindPage, Slug: "about"},
		ReadingTime: "1 min read",
		Fields:      map[string]interface{}{},
	})
	require.NotNil(t, page.Template)
	assert.Equal(t, "default", *page.Template)
	assert.Equal(t, []int64{}, page.Categories)

	post := c.DecoratedToResponse(&service.Decorated{
		Item: &model.ContentItem{ID: 2, Kind: model.KindPost, Template: "ignored"},
	})
	assert.Nil(t, post.Template)
	assert.NotContains(t, mustJSON(t, post), `"template"`)
}

func TestKindCountsToResponse(t *testing.T) {
	c := NewConverter("")
	got := c.KindCountsToResponse([]model.KindCount{{Kind: model.KindPost, Count: 3}, {Kind: model.KindHobby}})
	assert.Equal(t, map[string]int64{"post": 3, "hobby": 0}, got)
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}
