package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Kind 内容类型
type Kind string

// Status 内容状态
type Status string

// ContentItem 内容条目
type ContentItem struct {
	ID            int64             `json:"id" yaml:"id" gorm:"primaryKey;autoIncrement"`
	Kind          Kind              `json:"kind" yaml:"kind" gorm:"type:varchar(20);not null;index"`
	Slug          string            `json:"slug" yaml:"slug" gorm:"type:varchar(200);index"`
	Title         string            `json:"title" yaml:"title" gorm:"type:varchar(300);not null"`
	Body          string            `json:"body" yaml:"body" gorm:"type:text"`
	Excerpt       string            `json:"excerpt" yaml:"excerpt" gorm:"type:text"`
	Status        Status            `json:"status" yaml:"status" gorm:"type:varchar(20);not null;index;default:'draft'"`
	Categories    pq.Int64Array     `json:"categories" yaml:"categories" gorm:"type:bigint[]"`
	Tags          pq.Int64Array     `json:"tags" yaml:"tags" gorm:"type:bigint[]"`
	ViewCount     int64             `json:"view_count" yaml:"view_count" gorm:"default:0;index"`
	Fields        datatypes.JSONMap `json:"fields" yaml:"fields" gorm:"type:jsonb"`
	FeaturedImage string            `json:"featured_image" yaml:"featured_image" gorm:"type:varchar(500)"`
	AuthorID      int64             `json:"author_id" yaml:"author_id" gorm:"index"`
	AuthorName    string            `json:"author_name" yaml:"author_name" gorm:"type:varchar(100)"`
	Template      string            `json:"template" yaml:"template" gorm:"type:varchar(100)"`
	PublishedAt   time.Time         `json:"published_at" yaml:"published_at" gorm:"index"`
	CreatedAt     time.Time         `json:"created_at" yaml:"-" gorm:"autoCreateTime"`
	UpdatedAt     time.Time         `json:"updated_at" yaml:"-" gorm:"autoUpdateTime"`
}

// TableName .
func (ContentItem) TableName() string {
	return "content_items"
}

// IsPublished 是否已发布
func (c *ContentItem) IsPublished() bool {
	return c.Status == StatusPublished
}

// Clone 深拷贝，存储层返回副本，避免调用方修改共享数据
func (c *ContentItem) Clone() *ContentItem {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Categories != nil {
		cp.Categories = append(pq.Int64Array(nil), c.Categories...)
	}
	if c.Tags != nil {
		cp.Tags = append(pq.Int64Array(nil), c.Tags...)
	}
	if c.Fields != nil {
		cp.Fields = make(datatypes.JSONMap, len(c.Fields))
		for k, v := range c.Fields {
			cp.Fields[k] = v
		}
	}
	return &cp
}

// SearchResult 搜索结果
type SearchResult struct {
	Results []*ContentItem
	Total   int64
	Query   string
}

// KindCount 各类型已发布数量
type KindCount struct {
	Kind  Kind  `json:"kind"`
	Count int64 `json:"count"`
}

// ContactSubmission 联系表单提交记录（MongoDB归档）
type ContactSubmission struct {
	ID        int64     `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Message   string    `json:"message" bson:"message"`
	ClientIP  string    `json:"client_ip" bson:"client_ip"`
	UserAgent string    `json:"user_agent" bson:"user_agent"`
	Delivered bool      `json:"delivered" bson:"delivered"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// MailMessage 待发送的邮件
type MailMessage struct {
	SubmissionID int64  `json:"submission_id,omitempty"`
	To           string `json:"to"`
	ReplyTo      string `json:"reply_to"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
}

// ViewEvent 单篇内容被浏览的事件
type ViewEvent struct {
	ContentID int64     `json:"content_id"`
	ViewedAt  time.Time `json:"viewed_at"`
}
