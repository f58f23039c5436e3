package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/zhouzirui/poem-tavern/backend/internal/model/poem"
)

// Gemini 调用 Generative Language 的 generateContent 接口
type Gemini struct {
	client *resty.Client
	model  string
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

// geminiResponse 候选路径的任意一层缺失都可容忍
type geminiResponse struct {
	Candidates []struct {
		Content *geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorEnvelope struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGemini 创建基于 resty 的 Gemini 客户端，密钥放在请求头中，不会出现在传输错误信息里
func NewGemini(baseURL, apiKey, model string) *Gemini {
	return &Gemini{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("Content-Type", "application/json").
			SetHeader("x-goog-api-key", apiKey),
		model: model,
	}
}

func (g *Gemini) Name() string  { return "gemini" }
func (g *Gemini) Model() string { return g.model }

// Generate 返回第一个候选的第一段文本，缺失时返回空字符串
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}

	var out geminiResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(fmt.Sprintf("/models/%s:generateContent", url.PathEscape(g.model)))
	if err != nil {
		return "", fmt.Errorf("gemini generateContent: %w", err)
	}

	if resp.IsError() {
		return "", statusError(resp.StatusCode(), resp.Body())
	}

	return out.firstText(), nil
}

// ListModels 列出当前密钥可见的模型
func (g *Gemini) ListModels(ctx context.Context) ([]string, error) {
	var out struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/models")
	if err != nil {
		return nil, fmt.Errorf("gemini list models: %w", err)
	}

	if resp.IsError() {
		return nil, statusError(resp.StatusCode(), resp.Body())
	}

	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (r geminiResponse) firstText() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	content := r.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return ""
	}
	return content.Parts[0].Text
}

func statusError(status int, body []byte) *poem.UpstreamError {
	message := strings.TrimSpace(string(body))

	var envelope geminiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	return &poem.UpstreamError{StatusCode: status, Message: message}
}
