// Package errors 提供统一的错误处理框架
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 错误码
type Code string

const (
	// 通用错误码
	CodeUnknown      Code = "UNKNOWN"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeTimeout      Code = "TIMEOUT"
	CodeRateLimited  Code = "RATE_LIMITED"

	// 住宿分配引擎相关
	CodeValidationFail      Code = "VALIDATION_FAILED"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"

	// 数据相关
	CodeDatabaseError Code = "DATABASE_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithField 添加字段
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// New 创建新错误
func New(code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// codeToHTTPStatus 错误码转HTTP状态码
func codeToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeValidationFail:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConcurrencyConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Is 检查错误是否为特定类型
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode 获取错误码
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetHTTPStatus 获取HTTP状态码
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// 预定义错误
var (
	ErrNotFound     = New(CodeNotFound, "resource not found")
	ErrInvalidInput = New(CodeInvalidInput, "invalid input")
	ErrUnauthorized = New(CodeUnauthorized, "unauthorized")
	ErrForbidden    = New(CodeForbidden, "forbidden")
	ErrInternal     = New(CodeInternal, "internal error")
	ErrTimeout      = New(CodeTimeout, "operation timed out")
)

// InvalidInput 创建输入无效错误
func InvalidInput(field, reason string) *AppError {
	return New(CodeInvalidInput, fmt.Sprintf("invalid field '%s': %s", field, reason))
}

// NotFound 创建资源不存在错误
func NotFound(resource, id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s '%s' not found", resource, id))
}

// Validation 创建分配校验失败错误
func Validation(message string) *AppError {
	return New(CodeValidationFail, message)
}

// ConcurrencyConflict 创建并发冲突错误（调用方可重试）
func ConcurrencyConflict(resource, details string) *AppError {
	return New(CodeConcurrencyConflict, fmt.Sprintf("concurrent modification on %s: %s", resource, details))
}

// Database 创建数据库错误
func Database(err error, operation string) *AppError {
	return Wrap(err, CodeDatabaseError, fmt.Sprintf("database operation failed: %s", operation))
}

// ValidationErrors 验证错误集合
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// ValidationError 单个验证错误
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error 实现 error 接口
func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s - %s", ve.Errors[0].Field, ve.Errors[0].Message)
}

// Add 添加验证错误
func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

// HasErrors 检查是否有错误
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ToAppError 转换为 AppError
func (ve *ValidationErrors) ToAppError() *AppError {
	err := New(CodeValidationFail, "validation failed")
	err.Fields = make(map[string]interface{})
	for _, e := range ve.Errors {
		err.Fields[e.Field] = e.Message
	}
	return err
}
