package poem

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/poem-tavern/backend/internal/model/poem"
	poemsvc "github.com/zhouzirui/poem-tavern/backend/internal/service/poem"
	"github.com/zhouzirui/poem-tavern/backend/pkg/utils"
)

const maxRequestBytes = 16 << 10

// Generator 抽象诗歌生成业务，便于测试替换
type Generator interface {
	GeneratePoem(ctx context.Context, topic string) poem.Result
}

// Handler 诗歌生成的HTTP处理器
type Handler struct {
	generator Generator
	logger    *zap.Logger
}

// New 创建诗歌处理器；generator 为 nil 表示未配置上游，合法请求一律返回 503
func New(generator Generator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{generator: generator, logger: logger.Named("poem")}
}

// RegisterRoutes 注册诗歌相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/generate-poem", h.handleGeneratePoem)
}

// handleGeneratePoem 先做本地校验，再检查上游配置
func (h *Handler) handleGeneratePoem(w http.ResponseWriter, r *http.Request) {
	var req poem.Request
	if err := utils.DecodeJSON(w, r, maxRequestBytes, &req); err != nil {
		body := poemsvc.InvalidTopic().Body()
		body.Details = "request body must be a JSON object with a topic field"
		utils.RespondJSON(w, http.StatusBadRequest, body)
		return
	}

	if strings.TrimSpace(req.Topic) == "" {
		failure := poemsvc.InvalidTopic()
		utils.RespondJSON(w, failure.HTTPStatus, failure.Body())
		return
	}

	if h.generator == nil {
		utils.RespondJSON(w, http.StatusServiceUnavailable, poem.ErrorResponse{
			Error:    "API key not configured",
			Solution: "Set the provider credentials (e.g. GOOGLE_API_KEY) and restart the server",
		})
		return
	}

	result := h.generator.GeneratePoem(r.Context(), req.Topic)
	if !result.OK() {
		failure := result.Failure()
		h.logger.Info("generate-poem failed",
			zap.String("kind", string(failure.Kind)),
			zap.Int("status", failure.HTTPStatus))
		utils.RespondJSON(w, failure.HTTPStatus, failure.Body())
		return
	}

	utils.RespondJSON(w, http.StatusOK, poem.Response{Poem: result.Poem()})
}
