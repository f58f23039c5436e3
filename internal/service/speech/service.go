package speech

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/poem-tavern/backend/internal/model/speech"
)

const defaultSynthesisTimeout = 30 * time.Second

// Synthesizer 抽象底层 TTS 实现，便于测试替换
type Synthesizer interface {
	Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// Service 语音服务核心业务逻辑
type Service struct {
	config *speech.SpeechConfig
	tts    Synthesizer
	logger *zap.Logger
}

// NewService 创建语音服务实例
func NewService(config *speech.SpeechConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("speech")
	return &Service{
		config: config,
		tts:    NewTTSClient(config, "", logger),
		logger: logger,
	}
}

// NewServiceWithSynthesizer 使用自定义合成器创建服务（测试或其他接口）
func NewServiceWithSynthesizer(config *speech.SpeechConfig, tts Synthesizer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{config: config, tts: tts, logger: logger.Named("speech")}
}

// Configured 是否已配置凭证
func (s *Service) Configured() bool {
	_, _, err := resolveCredentials(s.config)
	return err == nil
}

// SynthesizeSpeech 文字转语音，超时由配置决定
func (s *Service) SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("text is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	start := time.Now()
	resp, err := s.tts.Synthesize(ctx, req)
	if err != nil {
		s.logger.Warn("speech synthesis failed",
			zap.String("session", req.SessionID),
			zap.Int("chars", len(req.Text)),
			zap.Error(err))
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}

	s.logger.Info("speech synthesized",
		zap.String("session", resp.SessionID),
		zap.Int("bytes", len(resp.AudioData)),
		zap.Duration("elapsed", time.Since(start)))
	return resp, nil
}

// SynthesizeToBuffer 文字转语音（返回字节数组）
func (s *Service) SynthesizeToBuffer(ctx context.Context, sessionID, text, voice, language string) (*speech.TTSResponse, error) {
	return s.SynthesizeSpeech(ctx, &speech.TTSRequest{
		SessionID: sessionID,
		Text:      text,
		Voice:     voice,
		Language:  language,
	})
}

func (s *Service) timeout() time.Duration {
	if s.config != nil && s.config.Timeout > 0 {
		return time.Duration(s.config.Timeout) * time.Second
	}
	return defaultSynthesisTimeout
}
