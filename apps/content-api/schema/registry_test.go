package schema

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headless-pro/apps/content-api/model"
)

func TestRegisterAndGetSchema(t *testing.T) {
	registry := NewRegistry()
	for _, reg := range DefaultSchemas() {
		require.NoError(t, registry.Register(reg.Kind, reg.Schema))
	}

	for _, reg := range DefaultSchemas() {
		got, err := registry.GetSchema(reg.Kind)
		require.NoError(t, err)
		if diff := cmp.Diff(reg.Schema, got); diff != "" {
			t.Errorf("schema for %s mismatch (-want +got):\n%s", reg.Kind, diff)
		}
	}
}

func TestGetSchemaReturnsRegisteredInstance(t *testing.T) {
	registry := NewRegistry()
	s := &Schema{Title: "Custom", Fields: []Field{{Name: "a", Type: TypeString}}}
	require.NoError(t, registry.Register("custom", s))

	got, err := registry.GetSchema("custom")
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestRegisterDuplicateKind(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(model.KindSkill, &Schema{Title: "Skill"}))

	err := registry.Register(model.KindSkill, &Schema{Title: "Skill"})
	var dup *model.DuplicateKindError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, model.KindSkill, dup.Kind)

	// 重复注册不会覆盖原有字段组
	got, err := registry.GetSchema(model.KindSkill)
	require.NoError(t, err)
	assert.Equal(t, "Skill", got.Title)
	assert.Equal(t, []model.Kind{model.KindSkill}, registry.Kinds())
}

func TestGetSchemaUnknownKind(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.GetSchema("recipe")

	var unknown *model.UnknownKindError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, model.Kind("recipe"), unknown.Kind)
}

func TestKindWithoutSchema(t *testing.T) {
	registry, err := NewDefaultRegistry()
	require.NoError(t, err)

	s, err := registry.GetSchema(model.KindTech)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.True(t, registry.HasFieldSchemas())

	assert.NoError(t, registry.Validate(model.KindTech, nil))
	assert.Error(t, registry.Validate(model.KindTech, map[string]interface{}{"color": "blue"}))

	defaults, err := registry.ApplyDefaults(model.KindTech, nil)
	require.NoError(t, err)
	assert.Empty(t, defaults)

	empty := NewRegistry()
	require.NoError(t, empty.Register(model.KindTech, nil))
	assert.False(t, empty.HasFieldSchemas())
}

func TestValidateFields(t *testing.T) {
	registry, err := NewDefaultRegistry()
	require.NoError(t, err)

	cases := []struct {
		name   string
		kind   model.Kind
		fields map[string]interface{}
		ok     bool
	}{
		{"skill ok", model.KindSkill, map[string]interface{}{"skill_level": 80, "skill_category": "backend"}, true},
		{"skill json number", model.KindSkill, map[string]interface{}{"skill_level": float64(12)}, true},
		{"skill fractional", model.KindSkill, map[string]interface{}{"skill_level": 12.5}, false},
		{"skill above max", model.KindSkill, map[string]interface{}{"skill_level": 101}, false},
		{"skill below min", model.KindSkill, map[string]interface{}{"skill_level": 0}, false},
		{"skill bad enum", model.KindSkill, map[string]interface{}{"skill_category": "marketing"}, false},
		{"undeclared key", model.KindHobby, map[string]interface{}{"hobby_cost": "high"}, false},
		{"post boolean", model.KindPost, map[string]interface{}{"featured_post": "yes"}, false},
		{"project urls", model.KindProject, map[string]interface{}{"project_url": "https://example.com/app"}, true},
		{"project bad url", model.KindProject, map[string]interface{}{"project_github": "github.com/x"}, false},
		{"project gallery", model.KindProject, map[string]interface{}{
			"project_gallery": []interface{}{
				map[string]interface{}{"image": "https://cdn.example.com/1.png", "caption": "home"},
			},
		}, true},
		{"gallery missing image", model.KindProject, map[string]interface{}{
			"project_gallery": []interface{}{map[string]interface{}{"caption": "home"}},
		}, false},
		{"tech reference", model.KindProject, map[string]interface{}{
			"project_technologies": []interface{}{map[string]interface{}{"tech": 4}},
		}, true},
		{"tech reference zero", model.KindProject, map[string]interface{}{
			"project_technologies": []interface{}{map[string]interface{}{"tech": 0}},
		}, false},
		{"unknown kind", "recipe", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := registry.Validate(tc.kind, tc.fields)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	registry, err := NewDefaultRegistry()
	require.NoError(t, err)

	input := map[string]interface{}{"skill_category": "design"}
	got, err := registry.ApplyDefaults(model.KindSkill, input)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"skill_level": 50, "skill_category": "design"}, got)
	assert.Len(t, input, 1)
}
