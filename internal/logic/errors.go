package logic

import (
	"errors"
	"fmt"
)

// ErrConflict 条件更新未命中，状态已被并发操作变更，视为已处理
var ErrConflict = errors.New("状态已变更，操作跳过")

// ValidationError 输入校验错误，不重试
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(message string) error {
	return &ValidationError{Message: message}
}

// NotFoundError 记录不存在
type NotFoundError struct {
	Resource string
	Id       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s不存在: %s", e.Resource, e.Id)
}

// UnsupportedTransactionError 交易ID不属于任何已知支付渠道
type UnsupportedTransactionError struct {
	TransactionId string
}

func (e *UnsupportedTransactionError) Error() string {
	return fmt.Sprintf("无法识别的交易ID: %s", e.TransactionId)
}

// ProviderError 上游支付/CRM接口错误。Permanent为true时不应重试
type ProviderError struct {
	Provider  string
	Permanent bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s接口调用失败: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsValidation 判断是否为校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound 判断是否为记录不存在
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// IsConflict 判断是否为并发冲突（良性，无需上抛给用户）
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsPermanent 判断错误是否为永久失败（重试无意义）
func IsPermanent(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Permanent
	}
	return IsValidation(err) || IsNotFound(err)
}
