package upstream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	arkmodel "github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"

	"github.com/zhouzirui/poem-tavern/backend/internal/model/poem"
)

// eino-ext ark 在回复既无文本也无工具调用时返回此错误，视为空生成
const arkEmptyReply = "message has neither content nor tool calls"

// Ark 通过 eino chat model 调用火山方舟
type Ark struct {
	chatModel model.BaseChatModel
	model     string
}

// NewArk 包装已创建好的 eino chat model
func NewArk(chatModel model.BaseChatModel, modelName string) *Ark {
	return &Ark{chatModel: chatModel, model: modelName}
}

func (a *Ark) Name() string  { return "ark" }
func (a *Ark) Model() string { return a.model }

// Generate 返回模型回复文本；空回复返回空串由上层归类
func (a *Ark) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := a.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		if strings.Contains(err.Error(), arkEmptyReply) {
			return "", nil
		}
		return "", arkError(err)
	}
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}

// arkError 把 SDK 的 HTTP 错误转换为带状态码的 UpstreamError
func arkError(err error) error {
	var apiErr *arkmodel.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		message := apiErr.Message
		if message == "" {
			message = apiErr.Error()
		}
		return &poem.UpstreamError{StatusCode: apiErr.HTTPStatusCode, Message: message, Err: err}
	}

	var reqErr *arkmodel.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &poem.UpstreamError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}

	return fmt.Errorf("ark generate: %w", err)
}
