package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"

	"headless-pro/apps/content-api/model"
)

// FieldType 字段类型
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeText      FieldType = "text"
	TypeURL       FieldType = "url"
	TypeBoolean   FieldType = "boolean"
	TypeInteger   FieldType = "integer"
	TypeEnum      FieldType = "enum"
	TypeReference FieldType = "reference"
	TypeRepeater  FieldType = "repeater"
)

// Field 字段定义
type Field struct {
	Name     string      `json:"name" yaml:"name"`
	Label    string      `json:"label,omitempty" yaml:"label,omitempty"`
	Type     FieldType   `json:"type" yaml:"type"`
	Required bool        `json:"required" yaml:"required"`
	Default  interface{} `json:"default,omitempty" yaml:"default,omitempty"`

	// enum
	Choices []string `json:"choices,omitempty" yaml:"choices,omitempty"`
	// integer
	Min *int64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *int64 `json:"max,omitempty" yaml:"max,omitempty"`
	// reference
	RefKind model.Kind `json:"ref_kind,omitempty" yaml:"ref_kind,omitempty"`
	// repeater
	Sub *Schema `json:"sub_fields,omitempty" yaml:"sub_fields,omitempty"`
}

// Schema 某个内容类型的字段组，字段有序
type Schema struct {
	Title  string  `json:"title" yaml:"title"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// Field 按名称查找字段
func (s *Schema) Field(name string) (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// Validate 校验字段值：键必须在字段组内，必填字段必须存在，值类型匹配
func (s *Schema) Validate(values map[string]interface{}) error {
	return s.validate("", values)
}

func (s *Schema) validate(prefix string, values map[string]interface{}) error {
	for name := range values {
		if _, ok := s.Field(name); !ok {
			return model.NewInvalidArgument(prefix+name, "field is not declared")
		}
	}
	for i := range s.Fields {
		f := &s.Fields[i]
		value, ok := values[f.Name]
		if !ok || value == nil {
			if f.Required && f.Default == nil {
				return model.NewInvalidArgument(prefix+f.Name, "field is required")
			}
			continue
		}
		if err := f.check(prefix+f.Name, value); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDefaults 返回补全默认值后的副本，不修改入参
func (s *Schema) ApplyDefaults(values map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(s.Fields))
	for k, v := range values {
		result[k] = v
	}
	for _, f := range s.Fields {
		if v, ok := result[f.Name]; (!ok || v == nil) && f.Default != nil {
			result[f.Name] = f.Default
		}
	}
	return result
}

// check 校验单个字段值
func (f *Field) check(path string, value interface{}) error {
	switch f.Type {
	case TypeString, TypeText:
		if _, ok := value.(string); !ok {
			return model.NewInvalidArgument(path, "expected string, got %T", value)
		}
	case TypeURL:
		s, ok := value.(string)
		if !ok {
			return model.NewInvalidArgument(path, "expected url string, got %T", value)
		}
		if s == "" {
			return nil
		}
		u, err := url.ParseRequestURI(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return model.NewInvalidArgument(path, "%q is not an absolute http(s) url", s)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return model.NewInvalidArgument(path, "expected boolean, got %T", value)
		}
	case TypeInteger:
		n, ok := toInt64(value)
		if !ok {
			return model.NewInvalidArgument(path, "expected integer, got %v", value)
		}
		if f.Min != nil && n < *f.Min {
			return model.NewInvalidArgument(path, "%d is below minimum %d", n, *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return model.NewInvalidArgument(path, "%d is above maximum %d", n, *f.Max)
		}
	case TypeEnum:
		s, ok := value.(string)
		if !ok || !contains(f.Choices, s) {
			return model.NewInvalidArgument(path, "%v is not one of %v", value, f.Choices)
		}
	case TypeReference:
		n, ok := toInt64(value)
		if !ok || n < 1 {
			return model.NewInvalidArgument(path, "expected %s id, got %v", f.RefKind, value)
		}
	case TypeRepeater:
		rows, ok := value.([]interface{})
		if !ok {
			return model.NewInvalidArgument(path, "expected list, got %T", value)
		}
		if f.Sub == nil {
			return nil
		}
		for i, row := range rows {
			values, ok := row.(map[string]interface{})
			if !ok {
				return model.NewInvalidArgument(fmt.Sprintf("%s[%d]", path, i), "expected object, got %T", row)
			}
			if err := f.Sub.validate(fmt.Sprintf("%s[%d].", path, i), values); err != nil {
				return err
			}
		}
	default:
		return model.NewInvalidArgument(path, "unsupported field type %q", f.Type)
	}
	return nil
}

// toInt64 兼容JSON(float64/json.Number)与YAML(int)解码出的数字
func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	}
	return 0, false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
