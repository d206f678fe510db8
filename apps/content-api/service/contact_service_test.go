package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headless-pro/apps/content-api/dao"
	"headless-pro/apps/content-api/model"
	"headless-pro/pkg/auth"
	"headless-pro/pkg/config"
	"headless-pro/pkg/kafka"
	"headless-pro/pkg/logger"
	"headless-pro/pkg/snowflake"
)

type recordingMailer struct {
	sent []*model.MailMessage
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg *model.MailMessage) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type memoryArchive struct {
	saved     []*model.ContactSubmission
	delivered []int64
}

func (a *memoryArchive) Save(_ context.Context, sub *model.ContactSubmission) error {
	a.saved = append(a.saved, sub)
	return nil
}

func (a *memoryArchive) MarkDelivered(_ context.Context, id int64) error {
	a.delivered = append(a.delivered, id)
	return nil
}

type recordingPublisher struct {
	topic string
	key   []byte
	value []byte
	err   error
}

func (p *recordingPublisher) SendMessage(topic string, key, value []byte) error {
	p.topic, p.key, p.value = topic, key, value
	return p.err
}

func newContactService(t *testing.T, mailer Mailer, archive *memoryArchive) (*ContactService, *auth.NonceManager) {
	t.Helper()
	ids, err := snowflake.NewSnowflake(1)
	require.NoError(t, err)
	nonces := auth.NewNonceManager(auth.NonceConfig{Secret: "test-secret", ExpireTime: time.Hour})
	site := config.SiteConfig{Name: "Edris Husein", AdminEmail: "admin@example.com"}

	var arch dao.ContactArchive
	if archive != nil {
		arch = archive
	}
	svc := NewContactService(site, nonces, mailer, arch, ids, logger.NewNopLogger())
	return svc, nonces
}

func validRequest(t *testing.T, svc *ContactService) *ContactRequest {
	t.Helper()
	nonce, err := svc.IssueNonce()
	require.NoError(t, err)
	return &ContactRequest{
		Name:    "  Jane   <b>Doe</b>\n",
		Email:   "jane@example.com",
		Message: "Hello <script>alert(1)</script>there\n  second line  ",
		Nonce:   nonce,
	}
}

func TestContactSubmit(t *testing.T) {
	mailer := &recordingMailer{}
	archive := &memoryArchive{}
	svc, _ := newContactService(t, mailer, archive)

	require.NoError(t, svc.Submit(context.Background(), validRequest(t, svc)))

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "admin@example.com", msg.To)
	assert.Equal(t, "jane@example.com", msg.ReplyTo)
	assert.Equal(t, "[Edris Husein] New Contact Form Submission", msg.Subject)
	assert.Equal(t, "Name: Jane Doe\nEmail: jane@example.com\n\nMessage:\nHello there\nsecond line", msg.Body)

	require.Len(t, archive.saved, 1)
	assert.Equal(t, msg.SubmissionID, archive.saved[0].ID)
	assert.Equal(t, []int64{msg.SubmissionID}, archive.delivered)
}

func TestContactSubmitValidation(t *testing.T) {
	svc, _ := newContactService(t, &recordingMailer{}, nil)

	cases := []struct {
		name   string
		mutate func(r *ContactRequest)
		field  string
	}{
		{"missing name", func(r *ContactRequest) { r.Name = " " }, "name"},
		{"missing message", func(r *ContactRequest) { r.Message = "" }, "message"},
		{"missing email", func(r *ContactRequest) { r.Email = "" }, "email"},
		{"bad email", func(r *ContactRequest) { r.Email = "not-an-email" }, "email"},
		{"display name email", func(r *ContactRequest) { r.Email = "Jane <jane@example.com>" }, "email"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest(t, svc)
			tc.mutate(req)

			var invalid *model.InvalidArgumentError
			require.ErrorAs(t, svc.Submit(context.Background(), req), &invalid)
			assert.Equal(t, tc.field, invalid.Field)
		})
	}
}

func TestContactSubmitRejectsBadNonce(t *testing.T) {
	mailer := &recordingMailer{}
	svc, nonces := newContactService(t, mailer, nil)

	req := validRequest(t, svc)
	req.Nonce = "garbage"
	var forbidden *model.ForbiddenError
	assert.ErrorAs(t, svc.Submit(context.Background(), req), &forbidden)

	other, _, err := nonces.Issue("some_other_action")
	require.NoError(t, err)
	req.Nonce = other
	assert.ErrorAs(t, svc.Submit(context.Background(), req), &forbidden)

	assert.Empty(t, mailer.sent)
}

func TestContactSubmitMailFailure(t *testing.T) {
	archive := &memoryArchive{}
	svc, _ := newContactService(t, &recordingMailer{err: errors.New("smtp down")}, archive)

	err := svc.Submit(context.Background(), validRequest(t, svc))
	var mailErr *model.MailSendError
	require.ErrorAs(t, err, &mailErr)
	assert.Len(t, archive.saved, 1)
	assert.Empty(t, archive.delivered)
}

func TestContactSubmitOutboxLeavesDeliveryToConsumer(t *testing.T) {
	publisher := &recordingPublisher{}
	archive := &memoryArchive{}
	svc, _ := newContactService(t, NewOutboxMailer(publisher, "contact_mail"), archive)

	require.NoError(t, svc.Submit(context.Background(), validRequest(t, svc)))
	assert.Equal(t, "contact_mail", publisher.topic)
	assert.Contains(t, string(publisher.value), `"subject":"[Edris Husein] New Contact Form Submission"`)
	assert.Len(t, archive.saved, 1)
	assert.Empty(t, archive.delivered)
}

func TestContactSubmitOutboxPublishFailure(t *testing.T) {
	publisher := &recordingPublisher{err: kafka.ErrProducerClosed}
	svc, _ := newContactService(t, NewOutboxMailer(publisher, "contact_mail"), &memoryArchive{})

	err := svc.Submit(context.Background(), validRequest(t, svc))
	var mailErr *model.MailSendError
	require.ErrorAs(t, err, &mailErr)
	assert.ErrorIs(t, err, kafka.ErrProducerClosed)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a b c", SanitizeTextField(" a\tb\n\nc "))
	assert.Equal(t, "line one\n\nline two", SanitizeTextarea("  line <i>one</i>\r\n\r\n line two "))
}
