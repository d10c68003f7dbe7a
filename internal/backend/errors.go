package backend

import (
	"errors"
	"net/http"

	"github.com/pitabwire/staffdesk/model"
)

// ErrNoData is wrapped into the APIError returned when a successful envelope
// carries no data but the caller expected some.
var ErrNoData = errors.New("backend: envelope has no data")

var httpErrorMessages = map[int]string{
	http.StatusBadRequest:          "请求参数错误",
	http.StatusUnauthorized:        "未授权，请重新登录",
	http.StatusForbidden:           "拒绝访问",
	http.StatusNotFound:            "请求的资源不存在",
	http.StatusInternalServerError: "服务器内部错误",
}

const genericErrorMessage = "服务器错误"

// HTTPErrorMessage returns the user-facing message for an HTTP status.
// Statuses without a dedicated message, including 0 for "no response", map
// to a generic server error message.
func HTTPErrorMessage(status int) string {
	if msg, ok := httpErrorMessages[status]; ok {
		return msg
	}
	return genericErrorMessage
}

func networkError(err error) *model.APIError {
	return &model.APIError{
		Kind:    model.KindNetwork,
		Message: HTTPErrorMessage(0),
		Err:     err,
	}
}

func httpError(status int) *model.APIError {
	return &model.APIError{
		Kind:    model.KindHTTP,
		Code:    status,
		Message: HTTPErrorMessage(status),
	}
}

func decodeError(err error) *model.APIError {
	return &model.APIError{
		Kind:    model.KindDecode,
		Message: HTTPErrorMessage(0),
		Err:     err,
	}
}

func applicationError(code int, message string, err error) *model.APIError {
	if message == "" {
		message = genericErrorMessage
	}
	return &model.APIError{
		Kind:    model.KindApplication,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsRetryable reports whether a failed call may be repeated: network
// failures other than an open breaker, and gateway statuses 502, 503 and 504.
func IsRetryable(err error) bool {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Kind {
	case model.KindNetwork:
		return !errors.Is(apiErr.Err, ErrCircuitOpen)
	case model.KindHTTP:
		switch apiErr.Code {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}
