package schema

import (
	"sync"

	"headless-pro/apps/content-api/model"
)

// Registry 内容类型与字段组注册表，启动时写入，之后只读
type Registry struct {
	mu      sync.RWMutex
	schemas map[model.Kind]*Schema
	order   []model.Kind
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[model.Kind]*Schema)}
}

// Register 注册内容类型；schema 可以为nil，表示该类型没有字段组
func (r *Registry) Register(kind model.Kind, schema *Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[kind]; exists {
		return &model.DuplicateKindError{Kind: kind}
	}
	r.schemas[kind] = schema
	r.order = append(r.order, kind)
	return nil
}

// GetSchema 获取注册时传入的字段组
func (r *Registry) GetSchema(kind model.Kind) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schema, ok := r.schemas[kind]
	if !ok {
		return nil, &model.UnknownKindError{Kind: kind}
	}
	return schema, nil
}

// Has 是否已注册
func (r *Registry) Has(kind model.Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.schemas[kind]
	return ok
}

// Kinds 按注册顺序返回所有类型
func (r *Registry) Kinds() []model.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Kind(nil), r.order...)
}

// HasFieldSchemas 是否至少有一个类型带字段组
func (r *Registry) HasFieldSchemas() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.schemas {
		if s != nil {
			return true
		}
	}
	return false
}

// Validate 按类型的字段组校验字段值；无字段组的类型不允许带字段
func (r *Registry) Validate(kind model.Kind, fields map[string]interface{}) error {
	schema, err := r.GetSchema(kind)
	if err != nil {
		return err
	}
	if schema == nil {
		for name := range fields {
			return model.NewInvalidArgument(name, "kind %s declares no fields", kind)
		}
		return nil
	}
	return schema.Validate(fields)
}

// ApplyDefaults 按类型补全默认值
func (r *Registry) ApplyDefaults(kind model.Kind, fields map[string]interface{}) (map[string]interface{}, error) {
	schema, err := r.GetSchema(kind)
	if err != nil {
		return nil, err
	}
	if schema == nil {
		return map[string]interface{}{}, nil
	}
	return schema.ApplyDefaults(fields), nil
}
