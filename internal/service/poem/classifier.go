package poem

import (
	"net/http"

	"github.com/zhouzirui/poem-tavern/backend/internal/model/poem"
)

// signal 分类器识别的上游失败信号
type signal int

const (
	signalOther signal = iota
	signalBadRequest
	signalForbidden
	signalNotFound
	signalRateLimited
	signalTimeout
)

func signalOf(err *poem.UpstreamError) signal {
	if err == nil {
		return signalOther
	}
	if err.Timeout {
		return signalTimeout
	}

	switch err.StatusCode {
	case http.StatusBadRequest:
		return signalBadRequest
	case http.StatusForbidden:
		return signalForbidden
	case http.StatusNotFound:
		return signalNotFound
	case http.StatusTooManyRequests:
		return signalRateLimited
	default:
		return signalOther
	}
}

// Classify 将失败的上游调用映射到错误分类。任何输入（包括 nil）都只得到一种分类，
// 默认为 Unknown
func Classify(err *poem.UpstreamError) *poem.Failure {
	f := &poem.Failure{}
	if err != nil {
		f.UpstreamStatus = err.StatusCode
		f.Details = err.Message
		if f.Details == "" && err.Err != nil {
			f.Details = err.Err.Error()
		}
	}

	switch signalOf(err) {
	case signalBadRequest:
		f.Kind = poem.KindInvalidRequest
		f.Message = "Invalid API key or API not enabled"
		f.Solution = "Visit: https://console.cloud.google.com/apis/library/generativelanguage.googleapis.com and enable the API"
		f.HTTPStatus = http.StatusBadGateway
	case signalForbidden:
		f.Kind = poem.KindForbidden
		f.Message = "API access forbidden"
		f.Solution = "Check if billing is enabled in Google Cloud Console"
		f.HTTPStatus = http.StatusBadGateway
	case signalNotFound:
		f.Kind = poem.KindModelNotFound
		f.Message = "Requested model is not available"
		f.Solution = "Check the configured POEM_MODEL against the provider's model list"
		f.HTTPStatus = http.StatusBadGateway
	case signalRateLimited:
		f.Kind = poem.KindRateLimited
		f.Message = "Rate limit exceeded"
		f.Solution = "Wait a minute and try again"
		f.HTTPStatus = http.StatusTooManyRequests
	case signalTimeout:
		f.Kind = poem.KindTimeout
		f.Message = "Request timeout"
		f.Solution = "Check your internet connection and try again"
		f.HTTPStatus = http.StatusGatewayTimeout
	default:
		f.Kind = poem.KindUnknown
		f.Message = "Failed to generate poem"
		f.Solution = "Please try again"
		f.HTTPStatus = http.StatusBadGateway
	}

	return f
}

// InvalidTopic 是空主题的本地校验失败，不触发上游调用
func InvalidTopic() *poem.Failure {
	return &poem.Failure{
		Kind:       poem.KindInvalidRequest,
		Message:    "Topic is required",
		Solution:   "Send a non-empty topic",
		HTTPStatus: http.StatusBadRequest,
	}
}

func emptyGeneration(details string) *poem.Failure {
	return &poem.Failure{
		Kind:       poem.KindEmptyGeneration,
		Message:    "No poem generated",
		Details:    details,
		Solution:   "Please try again, perhaps with a different topic",
		HTTPStatus: http.StatusInternalServerError,
	}
}
