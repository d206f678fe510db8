package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"

	"github.com/wneessen/go-mail"

	"headless-pro/apps/content-api/model"
	"headless-pro/pkg/config"
	"headless-pro/pkg/kafka"
)

// Mailer 邮件发送
type Mailer interface {
	Send(ctx context.Context, msg *model.MailMessage) error
}

// smtpSender 发信客户端，*mail.Client 实现了它
type smtpSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPMailer 通过SMTP直接发送，连接和读写受 ctx 与超时约束
type SMTPMailer struct {
	addr   string
	from   string
	client smtpSender
}

// NewSMTPMailer 创建SMTP发送器，未配置用户名时不做认证
func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPMailer{
		addr:   net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		from:   cfg.From,
		client: client,
	}, nil
}

// Send 发送纯文本邮件
func (m *SMTPMailer) Send(ctx context.Context, msg *model.MailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out, err := BuildMessage(m.from, msg)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("smtp send to %s: %w", m.addr, err)
	}
	return nil
}

// BuildMessage 组装 text/plain UTF-8 邮件，地址经过解析校验
func BuildMessage(from string, msg *model.MailMessage) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	if msg.ReplyTo != "" {
		if err := out.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("invalid reply-to %q: %w", msg.ReplyTo, err)
		}
	}
	out.Subject(msg.Subject)
	out.SetDate()
	out.SetMessageID()
	out.SetBodyString(mail.TypeTextPlain, msg.Body)
	return out, nil
}

// OutboxMailer 把邮件写入Kafka，由mail消费者投递
type OutboxMailer struct {
	publisher kafka.Publisher
	topic     string
}

// NewOutboxMailer 创建Kafka邮件发件箱
func NewOutboxMailer(publisher kafka.Publisher, topic string) *OutboxMailer {
	return &OutboxMailer{publisher: publisher, topic: topic}
}

// Send 发布邮件消息
func (m *OutboxMailer) Send(_ context.Context, msg *model.MailMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail message: %w", err)
	}
	key := []byte(strconv.FormatInt(msg.SubmissionID, 10))
	if err := m.publisher.SendMessage(m.topic, key, payload); err != nil {
		return fmt.Errorf("publish mail message: %w", err)
	}
	return nil
}
