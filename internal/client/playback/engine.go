// Package playback 通过单一语音引擎朗读聊天消息
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrPlaybackActive 上一次播放尚未结束时 Speak 返回该错误
var ErrPlaybackActive = errors.New("playback: another recitation is still active")

// Handle 标识引擎上的一次播放
type Handle uint64

// Engine 朗读文本，同一时刻只有一个播放。
//
// 播放自行结束时在引擎协程中调用 done（正常结束为 nil，失败为非 nil）；
// 被取消的播放不会调用 done。Cancel 阻塞直到播放释放输出设备
type Engine interface {
	Speak(text string, done func(err error)) (Handle, error)
	Cancel(h Handle)
}

// Synthesizer 将文本合成为编码音频
type Synthesizer interface {
	Synthesize(ctx context.Context, sessionID, text, voice string) ([]byte, string, error)
}

// Player 播放编码音频，直到结束或 ctx 取消
type Player interface {
	Play(ctx context.Context, audio []byte, format string) error
}

type playback struct {
	handle  Handle
	cancel  context.CancelFunc
	stopped chan struct{}
}

// SpeechEngine 远程合成语音并在本地播放
type SpeechEngine struct {
	synth     Synthesizer
	player    Player
	sessionID string
	voice     string
	logger    *zap.Logger

	mu      sync.Mutex
	next    Handle
	current *playback
}

// NewSpeechEngine 创建语音引擎，进程内所有控制器应共享同一实例
func NewSpeechEngine(synth Synthesizer, player Player, sessionID, voice string, logger *zap.Logger) *SpeechEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpeechEngine{
		synth:     synth,
		player:    player,
		sessionID: sessionID,
		voice:     voice,
		logger:    logger.Named("playback"),
	}
}

// Speak 开始播放文本
func (e *SpeechEngine) Speak(text string, done func(err error)) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil {
		return 0, ErrPlaybackActive
	}

	e.next++
	ctx, cancel := context.WithCancel(context.Background())
	p := &playback{handle: e.next, cancel: cancel, stopped: make(chan struct{})}
	e.current = p

	go e.run(ctx, p, text, done)
	return p.handle, nil
}

// Cancel 停止 h 对应的播放，未知或已结束的句柄直接忽略
func (e *SpeechEngine) Cancel(h Handle) {
	e.mu.Lock()
	p := e.current
	e.mu.Unlock()

	if p == nil || p.handle != h {
		return
	}
	p.cancel()
	<-p.stopped
}

func (e *SpeechEngine) run(ctx context.Context, p *playback, text string, done func(err error)) {
	err := e.play(ctx, text)

	e.mu.Lock()
	if e.current == p {
		e.current = nil
	}
	e.mu.Unlock()
	close(p.stopped)

	cancelled := ctx.Err() != nil
	p.cancel()

	if cancelled {
		e.logger.Debug("playback cancelled", zap.Uint64("handle", uint64(p.handle)))
		return
	}
	if err != nil {
		e.logger.Warn("playback failed", zap.Uint64("handle", uint64(p.handle)), zap.Error(err))
	}
	if done != nil {
		done(err)
	}
}

func (e *SpeechEngine) play(ctx context.Context, text string) error {
	audio, format, err := e.synth.Synthesize(ctx, e.sessionID, text, e.voice)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if err := e.player.Play(ctx, audio, format); err != nil {
		return fmt.Errorf("play audio: %w", err)
	}
	return nil
}
