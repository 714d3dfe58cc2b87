// Package application 实现订单执行核心的应用服务
package application

import (
	"github.com/wyfcoding/copytrading/internal/execution/domain"
)

// ExecutionError 携带失败分类的应用层错误
type ExecutionError struct {
	Kind    domain.ErrorKind
	Message string
}

// Error 实现 error 接口
func (e *ExecutionError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// NewInputError 输入校验错误
func NewInputError(msg string) *ExecutionError {
	return &ExecutionError{Kind: domain.ErrorKindInputRejected, Message: msg}
}

// NewSigningError 签名失败错误
func NewSigningError(msg string) *ExecutionError {
	return &ExecutionError{Kind: domain.ErrorKindSigningFailure, Message: msg}
}
