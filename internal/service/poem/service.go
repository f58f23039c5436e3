package poem

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/poem-tavern/backend/internal/model/persona"
	"github.com/zhouzirui/poem-tavern/backend/internal/model/poem"
)

// DefaultTimeout 未配置超时时单次上游调用的超时
const DefaultTimeout = 30 * time.Second

// ErrListingUnsupported 服务商不支持列出模型时 ProbeUpstream 返回该错误
var ErrListingUnsupported = errors.New("provider does not support model listing")

// Generator 对上游文本生成服务发起一次调用。
// 服务商提供状态码时失败应以 *poem.UpstreamError 返回，其他错误按形态分类
type Generator interface {
	Name() string
	Model() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// ModelLister 支持列出上游模型的生成器实现该接口
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Service 无状态的诗歌代理核心
type Service struct {
	generator Generator
	poet      persona.Persona
	timeout   time.Duration
	logger    *zap.Logger
}

// NewService 为生成器包装校验、超时与错误分类
func NewService(generator Generator, poet persona.Persona, timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		generator: generator,
		poet:      poet,
		timeout:   timeout,
		logger:    logger.Named("poem"),
	}
}

// Provider 当前上游服务商
func (s *Service) Provider() string {
	return s.generator.Name()
}

// Model 当前上游模型
func (s *Service) Model() string {
	return s.generator.Model()
}

// GeneratePoem 校验主题并发起一次有超时的上游调用。
// 调用不随 ctx 取消，调用方放弃后仍会运行到完成或超时
func (s *Service) GeneratePoem(ctx context.Context, topic string) poem.Result {
	if strings.TrimSpace(topic) == "" {
		return poem.Fail(InvalidTopic())
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.generator.Generate(callCtx, BuildPrompt(s.poet, topic))
	elapsed := time.Since(start)

	if err != nil {
		failure := Classify(asUpstreamError(callCtx, err))
		s.logger.Warn("poem generation failed",
			zap.String("provider", s.generator.Name()),
			zap.String("kind", string(failure.Kind)),
			zap.Int("upstreamStatus", failure.UpstreamStatus),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return poem.Fail(failure)
	}

	if strings.TrimSpace(text) == "" {
		s.logger.Warn("upstream returned no poem text",
			zap.String("provider", s.generator.Name()),
			zap.Duration("elapsed", elapsed))
		return poem.Fail(emptyGeneration("upstream response contained no candidate text"))
	}

	s.logger.Info("poem generated",
		zap.String("provider", s.generator.Name()),
		zap.Int("topicLength", len(topic)),
		zap.Int("poemLength", len(text)),
		zap.Duration("elapsed", elapsed))
	return poem.Success(text)
}

// ProbeUpstream 在生成器支持时列出模型，上游失败以 *poem.Failure 返回
func (s *Service) ProbeUpstream(ctx context.Context) ([]string, error) {
	lister, ok := s.generator.(ModelLister)
	if !ok {
		return nil, ErrListingUnsupported
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	models, err := lister.ListModels(callCtx)
	if err != nil {
		return nil, Classify(asUpstreamError(callCtx, err))
	}
	return models, nil
}

func asUpstreamError(ctx context.Context, err error) *poem.UpstreamError {
	var upstream *poem.UpstreamError
	if !errors.As(err, &upstream) {
		upstream = &poem.UpstreamError{Message: err.Error(), Err: err}
	}

	if upstream.Timeout || upstream.StatusCode != 0 {
		return upstream
	}

	if isTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		timedOut := *upstream
		timedOut.Timeout = true
		return &timedOut
	}
	return upstream
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
