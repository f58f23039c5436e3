package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/poem-tavern/backend/internal/config"
	"github.com/zhouzirui/poem-tavern/backend/internal/handler/diagnostics"
	poemhandler "github.com/zhouzirui/poem-tavern/backend/internal/handler/poem"
	speechhandler "github.com/zhouzirui/poem-tavern/backend/internal/handler/speech"
	middlewarePkg "github.com/zhouzirui/poem-tavern/backend/internal/middleware"
	"github.com/zhouzirui/poem-tavern/backend/internal/model/persona"
	poemsvc "github.com/zhouzirui/poem-tavern/backend/internal/service/poem"
	speechsvc "github.com/zhouzirui/poem-tavern/backend/internal/service/speech"
	"github.com/zhouzirui/poem-tavern/backend/pkg/utils"
)

// Dependencies 路由所需的服务；Poem 与 Speech 可以为 nil
type Dependencies struct {
	Config *config.Config
	Poem   *poemsvc.Service
	Speech *speechsvc.Service
	Poet   persona.Persona
	Logger *zap.Logger
}

// NewRouter 将HTTP路由绑定到核心服务
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.Server.AllowedOrigins))

	// nil 服务必须以 nil 接口传入，避免 typed-nil
	var generator poemhandler.Generator
	var prober diagnostics.Prober
	if deps.Poem != nil {
		generator = deps.Poem
		prober = deps.Poem
	}

	var speechService speechhandler.SpeechService
	if deps.Speech != nil {
		speechService = deps.Speech
	}

	diag := diagnostics.New(diagnostics.Options{
		Environment:      cfg.Environment,
		Poem:             cfg.Poem,
		Prober:           prober,
		SpeechConfigured: deps.Speech != nil && deps.Speech.Configured(),
		Poet:             deps.Poet,
	}, logger)

	r.Get("/", diag.HandleRoot)

	r.Route("/api", func(api chi.Router) {
		diag.RegisterRoutes(api)
		poemhandler.New(generator, logger).RegisterRoutes(api)
		speechhandler.New(speechService, deps.Poet.VoiceID, logger).RegisterRoutes(api)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondError(w, http.StatusNotFound, "route not found")
	})

	return r
}
