package consumer

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"

	"headless-pro/apps/content-api/dao"
	"headless-pro/apps/content-api/model"
	"headless-pro/apps/content-api/service"
	"headless-pro/pkg/kafka"
	"headless-pro/pkg/logger"
)

// MailConsumer 邮件发件箱消费者，投递成功后标记归档
type MailConsumer struct {
	mailer   service.Mailer
	archive  dao.ContactArchive
	consumer *kafka.Consumer
	logger   logger.Logger
}

// NewMailConsumer 创建邮件消费者，archive 可为nil
func NewMailConsumer(mailer service.Mailer, archive dao.ContactArchive, log logger.Logger) *MailConsumer {
	return &MailConsumer{mailer: mailer, archive: archive, logger: log}
}

// Start 启动消费
func (m *MailConsumer) Start(ctx context.Context, brokers []string, groupID, topic string) error {
	consumer, err := kafka.InitConsumer(kafka.KafkaConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topics:  []string{topic},
	}, m, m.logger)
	if err != nil {
		return err
	}
	m.consumer = consumer

	m.logger.Info(ctx, "Mail consumer started", logger.F("topic", topic))
	return m.consumer.StartConsuming(ctx)
}

// Stop 停止消费
func (m *MailConsumer) Stop() error {
	if m.consumer == nil {
		return nil
	}
	return m.consumer.Close()
}

// HandleMessage 发送失败返回错误，由消费者原地重试，仍失败则不提交位移
func (m *MailConsumer) HandleMessage(msg *sarama.ConsumerMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	var mail model.MailMessage
	if err := json.Unmarshal(msg.Value, &mail); err != nil || mail.To == "" {
		m.logger.Warn(ctx, "Drop malformed mail message",
			logger.F("offset", msg.Offset), logger.F("value", string(msg.Value)))
		return nil
	}

	if err := m.mailer.Send(ctx, &mail); err != nil {
		m.logger.Error(ctx, "Deliver contact mail failed",
			logger.F("submission_id", mail.SubmissionID), logger.F("error", err.Error()))
		return err
	}

	if m.archive != nil && mail.SubmissionID > 0 {
		if err := m.archive.MarkDelivered(ctx, mail.SubmissionID); err != nil {
			m.logger.Warn(ctx, "Mark contact submission delivered failed",
				logger.F("submission_id", mail.SubmissionID), logger.F("error", err.Error()))
		}
	}
	return nil
}
