// Package api 是聊天前端访问诗歌服务端的HTTP客户端
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zhouzirui/poem-tavern/backend/internal/model/persona"
	"github.com/zhouzirui/poem-tavern/backend/internal/model/poem"
)

// DefaultTimeout 限制每次客户端调用的时长，需长于服务端的上游超时，
// 这样服务端超时能以响应的形式返回
const DefaultTimeout = 45 * time.Second

// StatusError 服务端返回的非2xx响应
type StatusError struct {
	StatusCode int
	Kind       poem.ErrorKind
	Message    string
}

func (e *StatusError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client 诗歌服务端客户端
type Client struct {
	http *resty.Client
}

// New 创建指向 baseURL 的客户端（如 http://localhost:5000）
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

// GeneratePoem 向 /api/generate-poem 提交主题并返回诗歌文本
func (c *Client) GeneratePoem(ctx context.Context, topic string) (string, error) {
	var out poem.Response
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(poem.Request{Topic: topic}).
		SetResult(&out).
		Post("/api/generate-poem")
	if err != nil {
		return "", fmt.Errorf("generate poem: %w", err)
	}
	if resp.IsError() {
		return "", statusError(resp.StatusCode(), resp.Body())
	}
	return out.Poem, nil
}

// Poet 获取诗人人设
func (c *Client) Poet(ctx context.Context) (persona.Persona, error) {
	var out persona.Persona
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/poet")
	if err != nil {
		return persona.Persona{}, fmt.Errorf("fetch poet: %w", err)
	}
	if resp.IsError() {
		return persona.Persona{}, statusError(resp.StatusCode(), resp.Body())
	}
	return out, nil
}

// Synthesize 请求服务端合成语音，返回音频数据及其格式
func (c *Client) Synthesize(ctx context.Context, sessionID, text, voice string) ([]byte, string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "audio/*").
		SetBody(map[string]string{
			"sessionId": sessionID,
			"text":      text,
			"voice":     voice,
		}).
		Post("/api/speech/synthesize")
	if err != nil {
		return nil, "", fmt.Errorf("synthesize: %w", err)
	}
	if resp.IsError() {
		return nil, "", statusError(resp.StatusCode(), resp.Body())
	}

	contentType := resp.Header().Get("Content-Type")
	if !strings.HasPrefix(contentType, "audio/") {
		return nil, "", fmt.Errorf("synthesize: unexpected content type %q", contentType)
	}
	return resp.Body(), strings.TrimPrefix(contentType, "audio/"), nil
}

func statusError(status int, body []byte) *StatusError {
	e := &StatusError{StatusCode: status, Message: strings.TrimSpace(string(body))}

	var payload poem.ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		e.Kind = payload.Kind
		e.Message = payload.Error
	}
	return e
}
