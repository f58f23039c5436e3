package poem

import (
	"fmt"
	"net/http"
)

// UpstreamError 一次失败上游调用的原始信号，由生成器构造并交给分类器处理
type UpstreamError struct {
	StatusCode int
	Timeout    bool
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("upstream timeout: %s", e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("upstream %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	default:
		return fmt.Sprintf("upstream failure: %s", e.Message)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
