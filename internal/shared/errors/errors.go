package errors

import "errors"

// ErrorCode 业务错误码
type ErrorCode string

const (
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrorCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrorCodeConflict       ErrorCode = "CONFLICT"

	// 远端目录访问错误
	ErrorCodeAuthError     ErrorCode = "AUTH_ERROR"
	ErrorCodeTransient     ErrorCode = "TRANSIENT_ERROR"
	ErrorCodeRateLimit     ErrorCode = "RATE_LIMIT"
	ErrorCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"

	// 去重/索引错误
	ErrorCodeMalformedRecord      ErrorCode = "MALFORMED_RECORD"
	ErrorCodeFingerprintCollision ErrorCode = "FINGERPRINT_COLLISION"

	// 转码/替换错误
	ErrorCodeTranscodeFailed ErrorCode = "TRANSCODE_FAILED"
	ErrorCodeNoSavings       ErrorCode = "NO_SAVINGS"
	ErrorCodeTrashFailed     ErrorCode = "TRASH_FAILED"
	ErrorCodeUploadFailed    ErrorCode = "UPLOAD_FAILED"
)

// ServiceError 业务错误
type ServiceError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	return string(e.Code) + ": " + e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError 创建业务错误
func NewServiceError(code ErrorCode, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithCause 创建带原因的业务错误
func NewServiceErrorWithCause(code ErrorCode, message string, cause error) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewServiceErrorWithDetails 创建带详情的业务错误
func NewServiceErrorWithDetails(code ErrorCode, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CodeOf 提取错误链中的业务错误码，非业务错误返回INTERNAL_ERROR
func CodeOf(err error) ErrorCode {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrorCodeInternalError
}

// IsCode 判断错误链中是否包含指定错误码
func IsCode(err error, code ErrorCode) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsTransient 是否为可重试的瞬时错误（网络抖动/限流）
func IsTransient(err error) bool {
	code := CodeOf(err)
	return code == ErrorCodeTransient || code == ErrorCodeRateLimit
}

// IsAuth 是否为认证错误，认证错误不重试且终止整次运行
func IsAuth(err error) bool {
	return IsCode(err, ErrorCodeAuthError)
}
