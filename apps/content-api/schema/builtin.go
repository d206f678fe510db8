package schema

import (
	"headless-pro/apps/content-api/model"
)

// Registration 一条内置注册项
type Registration struct {
	Kind   model.Kind
	Schema *Schema
}

func int64Ptr(v int64) *int64 {
	return &v
}

// DefaultSchemas 内置内容类型及字段组
func DefaultSchemas() []Registration {
	return []Registration{
		{Kind: model.KindPost, Schema: &Schema{
			Title: "Additional Post Details",
			Fields: []Field{
				{Name: "featured_post", Label: "Featured Post", Type: TypeBoolean, Default: false},
				{Name: "post_subtitle", Label: "Post Subtitle", Type: TypeString},
			},
		}},
		{Kind: model.KindPage, Schema: &Schema{
			Title: "Page Sections",
			Fields: []Field{
				{Name: "about_intro", Label: "Introduction", Type: TypeText},
				{Name: "about_image", Label: "Profile Image", Type: TypeURL},
				{Name: "hero_title", Label: "Hero Title", Type: TypeString},
				{Name: "hero_subtitle", Label: "Hero Subtitle", Type: TypeText},
				{Name: "hero_image", Label: "Hero Image", Type: TypeURL},
			},
		}},
		{Kind: model.KindProject, Schema: &Schema{
			Title: "Project Details",
			Fields: []Field{
				{Name: "project_url", Label: "Project URL", Type: TypeURL},
				{Name: "project_github", Label: "GitHub URL", Type: TypeURL},
				{Name: "project_gallery", Label: "Project Gallery", Type: TypeRepeater, Sub: &Schema{
					Title: "Gallery Image",
					Fields: []Field{
						{Name: "image", Label: "Image", Type: TypeURL, Required: true},
						{Name: "caption", Label: "Caption", Type: TypeString},
					},
				}},
				{Name: "project_technologies", Label: "Technologies", Type: TypeRepeater, Sub: &Schema{
					Title: "Technology",
					Fields: []Field{
						{Name: "tech", Label: "Technology", Type: TypeReference, RefKind: model.KindTech, Required: true},
					},
				}},
			},
		}},
		{Kind: model.KindSkill, Schema: &Schema{
			Title: "Skill Details",
			Fields: []Field{
				{Name: "skill_level", Label: "Skill Level", Type: TypeInteger, Min: int64Ptr(1), Max: int64Ptr(100), Default: 50},
				{Name: "skill_category", Label: "Category", Type: TypeEnum,
					Choices: []string{"frontend", "backend", "design", "devops", "other"}, Default: "other"},
			},
		}},
		{Kind: model.KindHobby, Schema: &Schema{
			Title: "Hobby Details",
			Fields: []Field{
				{Name: "hobby_icon", Label: "Icon", Type: TypeString},
				{Name: "hobby_frequency", Label: "Frequency", Type: TypeEnum,
					Choices: []string{"daily", "weekly", "monthly", "occasionally"}},
			},
		}},
		// 技术栈只作为引用目标，没有字段组
		{Kind: model.KindTech, Schema: nil},
	}
}

// NewDefaultRegistry 创建并注册内置类型
func NewDefaultRegistry() (*Registry, error) {
	registry := NewRegistry()
	for _, reg := range DefaultSchemas() {
		if err := registry.Register(reg.Kind, reg.Schema); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
