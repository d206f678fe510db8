package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"headless-pro/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "member-1" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func newFakeClaim(offsets ...int64) *fakeClaim {
	c := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, len(offsets))}
	for _, off := range offsets {
		c.messages <- &sarama.ConsumerMessage{Topic: "contact_mail", Offset: off}
	}
	close(c.messages)
	return c
}

func (c *fakeClaim) Topic() string                            { return "contact_mail" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

// scriptedHandler 按位移返回预设的失败次数
type scriptedHandler struct {
	failures map[int64]int
	handled  []int64
}

func (h *scriptedHandler) HandleMessage(msg *sarama.ConsumerMessage) error {
	h.handled = append(h.handled, msg.Offset)
	if h.failures[msg.Offset] > 0 {
		h.failures[msg.Offset]--
		return errors.New("smtp down")
	}
	return nil
}

func newTestConsumer(handler ConsumerHandler) *Consumer {
	return &Consumer{Handler: handler, logger: logger.NewNopLogger(), attempts: 2, backoff: time.Millisecond}
}

func TestConsumeClaimStopsAtFailedMessage(t *testing.T) {
	handler := &scriptedHandler{failures: map[int64]int{10: 5}}
	sess := &fakeSession{ctx: context.Background()}

	err := newTestConsumer(handler).ConsumeClaim(sess, newFakeClaim(9, 10, 11))
	assert.Error(t, err)
	assert.Equal(t, []int64{9}, sess.marked)
	assert.Equal(t, []int64{9, 10, 10}, handler.handled)
}

func TestConsumeClaimRetriesInPlace(t *testing.T) {
	handler := &scriptedHandler{failures: map[int64]int{10: 1}}
	sess := &fakeSession{ctx: context.Background()}

	require.NoError(t, newTestConsumer(handler).ConsumeClaim(sess, newFakeClaim(10, 11)))
	assert.Equal(t, []int64{10, 11}, sess.marked)
	assert.Equal(t, []int64{10, 10, 11}, handler.handled)
}

func TestConsumeClaimStopsOnSessionEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage)}

	err := newTestConsumer(&scriptedHandler{}).ConsumeClaim(&fakeSession{ctx: ctx}, claim)
	assert.NoError(t, err)
}

func TestProducerSendMessageWaitsForAck(t *testing.T) {
	mock := mocks.NewAsyncProducer(t, NewProducerConfig())
	mock.ExpectInputAndSucceed()
	mock.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	p := newProducer(mock, logger.NewNopLogger())
	assert.NoError(t, p.SendMessage("contact_mail", []byte("1"), []byte("{}")))
	assert.ErrorIs(t, p.SendMessage("contact_mail", []byte("2"), []byte("{}")), sarama.ErrOutOfBrokers)

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.SendMessage("contact_mail", []byte("3"), []byte("{}")), ErrProducerClosed)
	assert.NoError(t, p.Close())
}

func TestSleepContext(t *testing.T) {
	assert.True(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepContext(ctx, time.Hour))
}
