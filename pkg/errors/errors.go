// Package errors 提供统一的错误定义
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeUnauthorized       ErrorCode = "1002"
	CodeForbidden          ErrorCode = "1003"
	CodeNotFound           ErrorCode = "1004"
	CodeConflict           ErrorCode = "1005"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 资源错误 (2xxx)
	CodeProjectNotFound ErrorCode = "2001"
	CodePromptNotFound  ErrorCode = "2002"
	CodeFormatNotFound  ErrorCode = "2003"
	CodeFileNotFound    ErrorCode = "2004"

	// 业务错误 (3xxx)
	CodeGenerationFailed   ErrorCode = "3001"
	CodeInvalidTransition  ErrorCode = "3002"
	CodeGenerationRunning  ErrorCode = "3003"
	CodeLLMCallFailed      ErrorCode = "3004"
	CodeLLMQuotaExhausted  ErrorCode = "3005"
	CodeLLMAuthFailed      ErrorCode = "3006"
	CodeWebhookRejected    ErrorCode = "3007"

	// 外部服务错误 (5xxx)
	CodeUpstreamUnavailable ErrorCode = "5001"
	CodeUpstreamTimeout     ErrorCode = "5002"
	CodeCacheError          ErrorCode = "5003"
	CodeStorageError        ErrorCode = "5004"
	CodeQueueError          ErrorCode = "5005"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail 返回附带详细信息的副本，预定义错误本身保持不变
func (e *AppError) WithDetail(detail string) *AppError {
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithError 返回附带底层错误的副本
func (e *AppError) WithError(err error) *AppError {
	clone := *e
	clone.Err = err
	return &clone
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeWebhookRejected:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeProjectNotFound, CodePromptNotFound, CodeFormatNotFound, CodeFileNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeGenerationRunning, CodeInvalidTransition:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case CodeUpstreamUnavailable:
		return http.StatusBadGateway
	case CodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrUnauthorized       = New(CodeUnauthorized, "unauthorized")
	ErrForbidden          = New(CodeForbidden, "forbidden")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrConflict           = New(CodeConflict, "resource conflict")
	ErrTooManyRequests    = New(CodeTooManyRequests, "too many requests")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrProjectNotFound = New(CodeProjectNotFound, "project not found")
	ErrPromptNotFound  = New(CodePromptNotFound, "prompt not found")
	ErrFormatNotFound  = New(CodeFormatNotFound, "format not found")

	ErrGenerationFailed   = New(CodeGenerationFailed, "document generation failed")
	ErrGenerationRunning  = New(CodeGenerationRunning, "generation already in progress")
	ErrInvalidTransition  = New(CodeInvalidTransition, "invalid status transition")
	ErrLLMCallFailed      = New(CodeLLMCallFailed, "LLM call failed")

	ErrUpstreamUnavailable = New(CodeUpstreamUnavailable, "upstream service unavailable")
	ErrUpstreamTimeout     = New(CodeUpstreamTimeout, "upstream service timeout")
	ErrCacheError          = New(CodeCacheError, "cache operation failed")
	ErrStorageError        = New(CodeStorageError, "storage operation failed")
	ErrQueueError          = New(CodeQueueError, "queue operation failed")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}
