package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"headless-pro/apps/content-api/dao"
	"headless-pro/apps/content-api/model"
	"headless-pro/pkg/kafka"
)

// ViewTracker 记录单篇内容的浏览
type ViewTracker interface {
	Track(ctx context.Context, id int64) error
}

// directViewTracker 直接在存储上原子加一
type directViewTracker struct {
	store dao.ContentStore
}

// NewDirectViewTracker 同步写存储的浏览记录
func NewDirectViewTracker(store dao.ContentStore) ViewTracker {
	return &directViewTracker{store: store}
}

func (t *directViewTracker) Track(ctx context.Context, id int64) error {
	return t.store.IncrementViewCount(ctx, id)
}

// eventViewTracker 发布浏览事件，由消费者异步累加，至少一次语义
type eventViewTracker struct {
	publisher kafka.Publisher
	topic     string
	now       func() time.Time
}

// NewEventViewTracker 通过Kafka发布浏览事件
func NewEventViewTracker(publisher kafka.Publisher, topic string) ViewTracker {
	return &eventViewTracker{publisher: publisher, topic: topic, now: time.Now}
}

func (t *eventViewTracker) Track(_ context.Context, id int64) error {
	payload, err := json.Marshal(&model.ViewEvent{ContentID: id, ViewedAt: t.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal view event: %w", err)
	}
	return t.publisher.SendMessage(t.topic, []byte(strconv.FormatInt(id, 10)), payload)
}
