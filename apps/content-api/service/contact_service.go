package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"headless-pro/apps/content-api/dao"
	"headless-pro/apps/content-api/model"
	"headless-pro/pkg/auth"
	"headless-pro/pkg/config"
	"headless-pro/pkg/logger"
	"headless-pro/pkg/snowflake"
)

// ContactRequest 联系表单
type ContactRequest struct {
	Name      string `json:"name" form:"name"`
	Email     string `json:"email" form:"email"`
	Message   string `json:"message" form:"message"`
	Nonce     string `json:"nonce" form:"nonce"`
	ClientIP  string `json:"-" form:"-"`
	UserAgent string `json:"-" form:"-"`
}

// ContactService 联系表单处理：校验nonce，归档，发邮件给站点管理员
type ContactService struct {
	site    config.SiteConfig
	nonces  *auth.NonceManager
	mailer  Mailer
	archive dao.ContactArchive
	ids     *snowflake.Snowflake
	now     func() time.Time
	logger  logger.Logger
}

// NewContactService 创建联系表单服务，archive 可为nil
func NewContactService(site config.SiteConfig, nonces *auth.NonceManager, mailer Mailer, archive dao.ContactArchive, ids *snowflake.Snowflake, log logger.Logger) *ContactService {
	return &ContactService{
		site:    site,
		nonces:  nonces,
		mailer:  mailer,
		archive: archive,
		ids:     ids,
		now:     time.Now,
		logger:  log,
	}
}

// IssueNonce 生成联系表单nonce
func (s *ContactService) IssueNonce() (string, error) {
	nonce, _, err := s.nonces.Issue(auth.ContactFormAction)
	return nonce, err
}

// Submit 处理一次提交
func (s *ContactService) Submit(ctx context.Context, req *ContactRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return model.NewInvalidArgument("name", "is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return model.NewInvalidArgument("message", "is required")
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return err
	}

	if err := s.nonces.Verify(req.Nonce, auth.ContactFormAction); err != nil {
		return &model.ForbiddenError{Reason: "Sorry, you are not allowed to do that."}
	}

	submission := &model.ContactSubmission{
		ID:        s.ids.NextID(),
		Name:      SanitizeTextField(req.Name),
		Email:     email,
		Message:   SanitizeTextarea(req.Message),
		ClientIP:  req.ClientIP,
		UserAgent: req.UserAgent,
		CreatedAt: s.now().UTC(),
	}

	if s.archive != nil {
		if err := s.archive.Save(ctx, submission); err != nil {
			// 归档失败不影响发信
			s.logger.Error(ctx, "Archive contact submission failed",
				logger.F("submission_id", submission.ID), logger.F("error", err.Error()))
		}
	}

	msg := s.composeMail(submission)
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error(ctx, "Send contact mail failed",
			logger.F("submission_id", submission.ID), logger.F("error", err.Error()))
		return &model.MailSendError{Err: err}
	}

	// 发件箱模式由mail消费者投递后再标记
	if _, queued := s.mailer.(*OutboxMailer); !queued && s.archive != nil {
		if err := s.archive.MarkDelivered(ctx, submission.ID); err != nil {
			s.logger.Warn(ctx, "Mark contact submission delivered failed",
				logger.F("submission_id", submission.ID), logger.F("error", err.Error()))
		}
	}

	s.logger.Info(ctx, "Contact submission accepted", logger.F("submission_id", submission.ID))
	return nil
}

func (s *ContactService) composeMail(sub *model.ContactSubmission) *model.MailMessage {
	return &model.MailMessage{
		SubmissionID: sub.ID,
		To:           s.site.AdminEmail,
		ReplyTo:      sub.Email,
		Subject:      fmt.Sprintf(model.ContactSubjectFormat, s.site.Name),
		Body:         fmt.Sprintf("Name: %s\nEmail: %s\n\nMessage:\n%s", sub.Name, sub.Email, sub.Message),
	}
}

// normalizeEmail 只接受裸地址，不接受带显示名的形式
func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", model.NewInvalidArgument("email", "is required")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Name != "" || addr.Address != raw {
		return "", model.NewInvalidArgument("email", "%q is not a valid address", raw)
	}
	return addr.Address, nil
}

// SanitizeTextField 单行文本：去标签，换行和连续空白合并为一个空格
func SanitizeTextField(s string) string {
	return strings.Join(strings.Fields(StripMarkup(s)), " ")
}

// SanitizeTextarea 多行文本：去标签，保留换行，去掉每行首尾空白
func SanitizeTextarea(s string) string {
	lines := strings.Split(strings.ReplaceAll(StripMarkup(s), "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
