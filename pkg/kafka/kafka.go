package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"headless-pro/pkg/logger"
)

// KafkaConfig 配置
type KafkaConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
}

// Publisher 消息发布接口，业务层只依赖它
type Publisher interface {
	SendMessage(topic string, key, value []byte) error
}

// 消费重试参数
const (
	DefaultHandleAttempts = 3
	DefaultRetryBackoff   = time.Second
	consumeRetryBackoff   = 5 * time.Second
)

// Producer 生产者，SendMessage 等待broker确认后返回
type Producer struct {
	asyncProducer sarama.AsyncProducer
	logger        logger.Logger
	wg            sync.WaitGroup
	mu            sync.RWMutex
	closed        bool
}

// Consumer 消费者
type Consumer struct {
	group     sarama.ConsumerGroup
	topics    []string
	ready     chan struct{}
	readyOnce sync.Once
	logger    logger.Logger
	Handler   ConsumerHandler

	attempts int
	backoff  time.Duration
}

// ConsumerHandler 消息处理器
type ConsumerHandler interface {
	HandleMessage(msg *sarama.ConsumerMessage) error
}

// ErrProducerClosed 生产者已关闭
var ErrProducerClosed = errors.New("kafka producer closed")

// InitProducer 初始化生产者
func InitProducer(brokers []string, log logger.Logger) (*Producer, error) {
	producer, err := sarama.NewAsyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, err
	}
	return newProducer(producer, log), nil
}

// NewProducerConfig 生产者配置，Successes/Errors 都要返回才能逐条确认
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.RequiredAcks = sarama.WaitForLocal
	return config
}

func newProducer(producer sarama.AsyncProducer, log logger.Logger) *Producer {
	p := &Producer{asyncProducer: producer, logger: log}

	// Successes/Errors 必须被读取，否则Input会阻塞
	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		for msg := range producer.Successes() {
			ack(msg, nil)
		}
	}()
	go func() {
		defer p.wg.Done()
		for perr := range producer.Errors() {
			log.Error(context.Background(), "Kafka发送消息失败",
				logger.F("topic", perr.Msg.Topic),
				logger.F("error", perr.Err.Error()))
			ack(perr.Msg, perr.Err)
		}
	}()

	return p
}

// ack 把发送结果交回等待的 SendMessage
func ack(msg *sarama.ProducerMessage, err error) {
	if done, ok := msg.Metadata.(chan error); ok {
		done <- err
	}
}

// SendMessage 发送消息并等待确认，关闭后返回 ErrProducerClosed
func (p *Producer) SendMessage(topic string, key, value []byte) error {
	done := make(chan error, 1)
	msg := &sarama.ProducerMessage{
		Topic:    topic,
		Key:      sarama.ByteEncoder(key),
		Value:    sarama.ByteEncoder(value),
		Metadata: done,
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrProducerClosed
	}
	p.asyncProducer.Input() <- msg
	p.mu.RUnlock()

	return <-done
}

// Close 关闭生产者，已入队的消息会在返回前得到确认
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.asyncProducer.Close()
	p.wg.Wait()
	return err
}

// InitConsumer 初始化消费者
func InitConsumer(cfg KafkaConfig, handler ConsumerHandler, log logger.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, config)
	if err != nil {
		return nil, err
	}
	c := &Consumer{
		group:   group,
		topics:  cfg.Topics,
		ready:   make(chan struct{}),
		logger:   log,
		Handler:  handler,
		attempts: DefaultHandleAttempts,
		backoff:  DefaultRetryBackoff,
	}
	return c, nil
}

// StartConsuming 启动消费，第一次分配分区后返回
func (c *Consumer) StartConsuming(ctx context.Context) error {
	go func() {
		for {
			if err := c.group.Consume(ctx, c.topics, c); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error(ctx, "Kafka消费出错", logger.F("error", err.Error()))
				if !sleepContext(ctx, consumeRetryBackoff) {
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 关闭消费者组
func (c *Consumer) Close() error {
	return c.group.Close()
}

// Setup sarama.ConsumerGroupHandler，重平衡时会被多次调用
func (c *Consumer) Setup(_ sarama.ConsumerGroupSession) error {
	c.readyOnce.Do(func() { close(c.ready) })
	return nil
}

// Cleanup sarama.ConsumerGroupHandler
func (c *Consumer) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim 消费消息。处理失败时原地重试，仍失败则结束本次会话且不提交，
// 重新加入消费组后从该消息继续
func (c *Consumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.handleWithRetry(ctx, msg); err != nil {
				return err
			}
			sess.MarkMessage(msg, "")
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg *sarama.ConsumerMessage) error {
	attempts := c.attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = c.Handler.HandleMessage(msg); err == nil {
			return nil
		}
		c.logger.Warn(ctx, "消息处理失败",
			logger.F("topic", msg.Topic),
			logger.F("partition", msg.Partition),
			logger.F("offset", msg.Offset),
			logger.F("attempt", i),
			logger.F("error", err.Error()))
		if i < attempts && !sleepContext(ctx, c.backoff*time.Duration(i)) {
			return ctx.Err()
		}
	}
	return err
}

// sleepContext 等待d，ctx结束时返回false
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
