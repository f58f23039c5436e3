package poem

import "fmt"

// Request 生成诗歌接口的请求体
type Request struct {
	Topic string `json:"topic"`
}

// Response 生成成功的响应体
type Response struct {
	Poem string `json:"poem"`
}

// ErrorResponse 失败响应体。聊天客户端只展示致歉文本，
// Error/Details/Solution 留给诊断使用
type ErrorResponse struct {
	Error      string    `json:"error"`
	Kind       ErrorKind `json:"kind,omitempty"`
	Details    string    `json:"details,omitempty"`
	Solution   string    `json:"solution,omitempty"`
	StatusCode int       `json:"statusCode,omitempty"`
}

// ErrorKind 诗歌代理的失败分类
type ErrorKind string

const (
	KindInvalidRequest  ErrorKind = "invalid_request"
	KindForbidden       ErrorKind = "forbidden"
	KindModelNotFound   ErrorKind = "model_not_found"
	KindRateLimited     ErrorKind = "rate_limited"
	KindTimeout         ErrorKind = "timeout"
	KindEmptyGeneration ErrorKind = "empty_generation"
	KindUnknown         ErrorKind = "unknown"
)

// Failure 已分类的生成失败
type Failure struct {
	Kind     ErrorKind
	Message  string
	Details  string
	Solution string
	// UpstreamStatus 上游原始状态码，未获取到时为0
	UpstreamStatus int
	// HTTPStatus 代理返回的非2xx状态码
	HTTPStatus int
}

func (f *Failure) Error() string {
	if f.Details == "" {
		return fmt.Sprintf("%s: %s", f.Kind, f.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", f.Kind, f.Message, f.Details)
}

// Body 转换为错误响应体
func (f *Failure) Body() ErrorResponse {
	return ErrorResponse{
		Error:      f.Message,
		Kind:       f.Kind,
		Details:    f.Details,
		Solution:   f.Solution,
		StatusCode: f.UpstreamStatus,
	}
}

// Result 一次生成的结果，Poem 与 Failure 二者只有一个有效
type Result struct {
	poem    string
	failure *Failure
}

// Success 包装生成的诗歌
func Success(text string) Result {
	return Result{poem: text}
}

// Fail 包装已分类的失败
func Fail(f *Failure) Result {
	return Result{failure: f}
}

// OK 结果是否为诗歌
func (r Result) OK() bool {
	return r.failure == nil
}

// Poem 返回生成的文本，失败时为空
func (r Result) Poem() string {
	return r.poem
}

// Failure 返回失败信息，成功时为 nil
func (r Result) Failure() *Failure {
	return r.failure
}
