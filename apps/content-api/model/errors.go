package model

import (
	"fmt"
)

// InvalidArgumentError 参数错误
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewInvalidArgument 构造参数错误
func NewInvalidArgument(field, format string, args ...interface{}) error {
	return &InvalidArgumentError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// UnknownKindError 未注册的内容类型
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown content kind %q", string(e.Kind))
}

// DuplicateKindError 内容类型重复注册
type DuplicateKindError struct {
	Kind Kind
}

func (e *DuplicateKindError) Error() string {
	return fmt.Sprintf("content kind %q already registered", string(e.Kind))
}

// NotFoundError 内容不存在
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("content %d not found", e.ID)
}

// StoreUnavailableError 存储不可用（包括超时）
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("content store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// ForbiddenError 拒绝访问（nonce校验失败）
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return e.Reason
}

// MailSendError 邮件发送失败，对外只返回通用提示
type MailSendError struct {
	Err error
}

func (e *MailSendError) Error() string {
	return fmt.Sprintf("send mail: %v", e.Err)
}

func (e *MailSendError) Unwrap() error {
	return e.Err
}
