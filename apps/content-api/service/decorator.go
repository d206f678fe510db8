package service

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"headless-pro/apps/content-api/model"
	"headless-pro/apps/content-api/schema"
)

// blockElements 块级元素边界视为空白，行内元素不拆词
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Hr: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Pre: true, atom.Table: true, atom.Tr: true, atom.Td: true, atom.Th: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true, atom.Figure: true,
	atom.Figcaption: true, atom.Img: true,
}

// StripMarkup 去掉标签（script/style内容一并丢弃）并解码实体
func StripMarkup(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	var b strings.Builder
	skipDepth := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Script || a == atom.Style {
				skipDepth++
			} else if blockElements[a] {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if (a == atom.Script || a == atom.Style) && skipDepth > 0 {
				skipDepth--
			} else if blockElements[a] {
				b.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockElements[atom.Lookup(name)] {
				b.WriteByte(' ')
			}
		}
	}
}

// WordCount 去标签后按空白计词
func WordCount(markup string) int {
	return len(strings.Fields(StripMarkup(markup)))
}

// ReadingTime 阅读时长，按每分钟200词向上取整，最少1分钟
func ReadingTime(body string) string {
	minutes := (WordCount(body) + model.WordsPerMinute - 1) / model.WordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d min read", minutes)
}

// PlainExcerpt 纯文本摘要，只去标签与合并空白，不截断
func PlainExcerpt(excerpt string) string {
	return strings.Join(strings.Fields(StripMarkup(excerpt)), " ")
}

// ViewCount 浏览量，不会为负
func ViewCount(item *model.ContentItem) int64 {
	if item == nil || item.ViewCount < 0 {
		return 0
	}
	return item.ViewCount
}

// Decorated 单篇内容及派生字段
type Decorated struct {
	Item         *model.ContentItem
	ReadingTime  string
	PlainExcerpt string
	Views        int64
	Fields       map[string]interface{}
}

// FieldDecorator 计算响应中的派生字段
type FieldDecorator struct {
	registry *schema.Registry
}

// NewFieldDecorator 创建派生字段计算器
func NewFieldDecorator(registry *schema.Registry) *FieldDecorator {
	return &FieldDecorator{registry: registry}
}

// Decorate 生成单篇内容的派生字段，自定义字段按字段组补全默认值
func (d *FieldDecorator) Decorate(item *model.ContentItem) *Decorated {
	fields, err := d.registry.ApplyDefaults(item.Kind, item.Fields)
	if err != nil {
		// 未注册类型原样返回已有字段
		fields = make(map[string]interface{}, len(item.Fields))
		for k, v := range item.Fields {
			fields[k] = v
		}
	}

	return &Decorated{
		Item:         item,
		ReadingTime:  ReadingTime(item.Body),
		PlainExcerpt: PlainExcerpt(item.Excerpt),
		Views:        ViewCount(item),
		Fields:       fields,
	}
}
