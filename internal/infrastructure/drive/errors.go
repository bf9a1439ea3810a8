package drive

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"google.golang.org/api/googleapi"

	sharederrors "github.com/cloudsaver/cloudsaver/internal/shared/errors"
)

// mapError 将Drive API错误映射为两类故障模型：
// 认证/配额等致命错误不重试，限流和网络抖动可重试
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return mapAPIError(op, gerr)
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return sharederrors.NewServiceErrorWithCause(sharederrors.ErrorCodeTransient, op+" failed: network error", err)
	}

	return sharederrors.NewServiceErrorWithCause(sharederrors.ErrorCodeTransient, op+" failed", err)
}

func mapAPIError(op string, gerr *googleapi.Error) error {
	switch {
	case gerr.Code == http.StatusUnauthorized:
		return sharederrors.NewServiceErrorWithCause(sharederrors.ErrorCodeAuthError, op+" failed: unauthorized", gerr)

	case gerr.Code == http.StatusForbidden:
		switch reason(gerr) {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return rateLimitError(op, gerr)
		case "storageQuotaExceeded", "quotaExceeded":
			return sharederrors.NewServiceErrorWithCause(sharederrors.ErrorCodeQuotaExceeded, op+" failed: quota exceeded", gerr)
		default:
			return sharederrors.NewServiceErrorWithCause(sharederrors.ErrorCodeAuthError, op+" failed: forbidden", gerr)
		}

	case gerr.Code == http.StatusTooManyRequests:
		return rateLimitError(op, gerr)

	case gerr.Code == http.StatusNotFound:
		return sharederrors.NewServiceErrorWithCause(sharederrors.ErrorCodeNotFound, op+" failed: not found", gerr)

	case gerr.Code >= 500:
		return sharederrors.NewServiceErrorWithCause(sharederrors.ErrorCodeTransient, op+" failed: server error", gerr)
	}

	return sharederrors.NewServiceErrorWithCause(sharederrors.ErrorCodeInternalError, op+" failed", gerr)
}

func reason(gerr *googleapi.Error) string {
	if len(gerr.Errors) > 0 {
		return gerr.Errors[0].Reason
	}
	return ""
}

func rateLimitError(op string, gerr *googleapi.Error) error {
	se := sharederrors.NewServiceErrorWithCause(sharederrors.ErrorCodeRateLimit, op+" failed: rate limited", gerr)
	if delay := retryAfter(gerr.Header); delay > 0 {
		se.Details = map[string]interface{}{"retry_after": delay}
	}
	return se
}

// retryAfter 解析远端建议的重试延迟
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// RetryAfterOf 从错误详情中取出远端建议的重试延迟，没有则为0
func RetryAfterOf(err error) time.Duration {
	var se *sharederrors.ServiceError
	if !errors.As(err, &se) || se.Details == nil {
		return 0
	}
	if d, ok := se.Details["retry_after"].(time.Duration); ok {
		return d
	}
	return 0
}
