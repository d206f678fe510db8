package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"

	"headless-pro/apps/content-api/dao"
	"headless-pro/apps/content-api/model"
	tracecontext "headless-pro/pkg/context"
	"headless-pro/pkg/kafka"
	"headless-pro/pkg/logger"
)

// handleTimeout 单条消息处理超时
const handleTimeout = 10 * time.Second

// ViewConsumer 浏览事件消费者，累加浏览量
// 至少一次投递，重复消费会多计，可以接受
type ViewConsumer struct {
	store    dao.ContentStore
	consumer *kafka.Consumer
	logger   logger.Logger
}

// NewViewConsumer 创建浏览事件消费者
func NewViewConsumer(store dao.ContentStore, log logger.Logger) *ViewConsumer {
	return &ViewConsumer{store: store, logger: log}
}

// Start 启动消费，首次分配分区后返回
func (v *ViewConsumer) Start(ctx context.Context, brokers []string, groupID, topic string) error {
	consumer, err := kafka.InitConsumer(kafka.KafkaConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topics:  []string{topic},
	}, v, v.logger)
	if err != nil {
		return err
	}
	v.consumer = consumer

	v.logger.Info(ctx, "View consumer started", logger.F("topic", topic))
	return v.consumer.StartConsuming(ctx)
}

// Stop 停止消费
func (v *ViewConsumer) Stop() error {
	if v.consumer == nil {
		return nil
	}
	return v.consumer.Close()
}

// HandleMessage 实现 kafka.ConsumerHandler 接口
func (v *ViewConsumer) HandleMessage(msg *sarama.ConsumerMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	var event model.ViewEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil || event.ContentID <= 0 {
		// 坏消息直接丢弃，避免反复重试
		v.logger.Warn(ctx, "Drop malformed view event",
			logger.F("offset", msg.Offset), logger.F("value", string(msg.Value)))
		return nil
	}

	ctx = tracecontext.WithContentID(ctx, event.ContentID)
	if err := v.store.IncrementViewCount(ctx, event.ContentID); err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			v.logger.Debug(ctx, "View event for missing content", logger.F("content_id", event.ContentID))
			return nil
		}
		return err
	}
	return nil
}
