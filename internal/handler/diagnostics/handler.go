// Package diagnostics 提供健康检查、上游连通性测试、诗人信息和首页接口
package diagnostics

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/poem-tavern/backend/internal/config"
	"github.com/zhouzirui/poem-tavern/backend/internal/model/persona"
	"github.com/zhouzirui/poem-tavern/backend/internal/model/poem"
	poemsvc "github.com/zhouzirui/poem-tavern/backend/internal/service/poem"
	"github.com/zhouzirui/poem-tavern/backend/pkg/utils"
)

// Prober 列出上游模型，用于连通性检查
type Prober interface {
	ProbeUpstream(ctx context.Context) ([]string, error)
}

// Options 诊断端点所需的只读信息
type Options struct {
	Environment      string
	Poem             config.PoemConfig
	Prober           Prober
	SpeechConfigured bool
	Poet             persona.Persona
}

// Handler 诊断类端点
type Handler struct {
	opts   Options
	logger *zap.Logger
}

// New 创建诊断处理器
func New(opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{opts: opts, logger: logger.Named("diagnostics")}
}

// RegisterRoutes 注册 /api 下的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/test-upstream", h.handleTestUpstream)
	r.Get("/poet", h.handlePoet)
}

// HandleRoot 返回服务首页信息
func (h *Handler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"message":     h.opts.Poet.Name + " Poem API",
		"status":      "running",
		"environment": h.opts.Environment,
		"endpoints": map[string]string{
			"health":       "/api/health",
			"test":         "/api/test-upstream",
			"poet":         "/api/poet",
			"generatePoem": "POST /api/generate-poem",
			"synthesize":   "POST /api/speech/synthesize",
		},
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":           "Server is running",
		"environment":      h.opts.Environment,
		"apiConfigured":    h.opts.Poem.Enabled(),
		"provider":         h.opts.Poem.Provider,
		"model":            h.opts.Poem.Model,
		"apiKeyPrefix":     h.opts.Poem.KeyPrefix(),
		"speechConfigured": h.opts.SpeechConfigured,
	})
}

// handleTestUpstream 总是返回200，结果在响应体中
func (h *Handler) handleTestUpstream(w http.ResponseWriter, r *http.Request) {
	if h.opts.Prober == nil || !h.opts.Poem.Enabled() {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"success":     false,
			"error":       "No API key configured",
			"solution":    "Add the provider credentials to the environment",
			"provider":    h.opts.Poem.Provider,
			"environment": h.opts.Environment,
		})
		return
	}

	models, err := h.opts.Prober.ProbeUpstream(r.Context())
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"success":         true,
			"apiKeyValid":     true,
			"provider":        h.opts.Poem.Provider,
			"environment":     h.opts.Environment,
			"availableModels": models,
		})
	case errors.Is(err, poemsvc.ErrListingUnsupported):
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"provider":    h.opts.Poem.Provider,
			"model":       h.opts.Poem.Model,
			"environment": h.opts.Environment,
			"note":        "provider does not expose a model list; configuration looks complete",
		})
	default:
		var failure *poem.Failure
		if !errors.As(err, &failure) {
			failure = poemsvc.Classify(&poem.UpstreamError{Message: err.Error(), Err: err})
		}
		h.logger.Warn("upstream connectivity check failed", zap.String("kind", string(failure.Kind)), zap.Error(err))
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"success":     false,
			"error":       failure.Message,
			"details":     failure.Details,
			"solution":    failure.Solution,
			"statusCode":  failure.UpstreamStatus,
			"environment": h.opts.Environment,
		})
	}
}

func (h *Handler) handlePoet(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.opts.Poet)
}
