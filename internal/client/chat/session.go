// Package chat 实现客户端聊天会话：消息记录、单个进行中的诗歌请求以及朗读
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/poem-tavern/backend/internal/model/chat"
)

// Apology 请求失败时代替诗歌展示的致歉文本，与失败原因无关
const Apology = "I'm sorry, I couldn't write a poem right now. Please try again in a moment."

// DefaultWelcome 未获取到诗人开场白时使用的欢迎语
const DefaultWelcome = "Hello! I'm Mr Bukkan, your personal poet. Give me a topic and I'll write you a poem."

var (
	// ErrNotRecitable 用户消息、欢迎语或未知ID不可朗读
	ErrNotRecitable = errors.New("message cannot be recited")
	// ErrRecitationUnavailable 未配置语音引擎
	ErrRecitationUnavailable = errors.New("recitation is not available")
)

// PoemFetcher 执行一次诗歌请求
type PoemFetcher interface {
	GeneratePoem(ctx context.Context, topic string) (string, error)
}

// Reciter 切换消息的朗读状态
type Reciter interface {
	Toggle(id chat.MessageID, text string) error
	Active() (chat.MessageID, bool)
	Close()
}

// Options 会话配置
type Options struct {
	Welcome string
	Reciter Reciter
	Logger  *zap.Logger
	Clock   func() time.Time
}

// Session 聊天状态机，处于空闲或等待单个主题的状态；朗读状态由 Reciter 持有
type Session struct {
	fetcher PoemFetcher
	reciter Reciter
	now     func() time.Time
	logger  *zap.Logger

	mu         sync.Mutex
	transcript Transcript
	nextID     chat.MessageID
	welcomeID  chat.MessageID
	awaiting   bool
	topic      string
	onChange   func()

	inflight sync.WaitGroup
}

// NewSession 创建会话并写入欢迎语
func NewSession(fetcher PoemFetcher, opts Options) *Session {
	s := &Session{
		fetcher: fetcher,
		reciter: opts.Reciter,
		now:     opts.Clock,
		logger:  opts.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("chat")

	welcome := strings.TrimSpace(opts.Welcome)
	if welcome == "" {
		welcome = DefaultWelcome
	}
	s.welcomeID = s.appendLocked(chat.SenderBot, welcome).ID
	return s
}

// OnChange 注册消息或状态变化后的回调，例如滚动到最新消息。
// 回调执行时不持有会话锁
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Submit 发送主题。已有请求进行中或主题去空白后为空时不做任何事并返回 false。
// 请求在后台执行，不随 ctx 取消
func (s *Session) Submit(ctx context.Context, topic string) bool {
	s.mu.Lock()
	if s.awaiting || strings.TrimSpace(topic) == "" {
		s.mu.Unlock()
		return false
	}

	s.appendLocked(chat.SenderUser, topic)
	s.awaiting = true
	s.topic = topic
	s.inflight.Add(1)
	notify := s.onChange
	s.mu.Unlock()

	fire(notify)

	go s.fetch(context.WithoutCancel(ctx), topic)
	return true
}

func (s *Session) fetch(ctx context.Context, topic string) {
	defer s.inflight.Done()

	text, err := s.fetcher.GeneratePoem(ctx, topic)
	if err != nil || strings.TrimSpace(text) == "" {
		s.logger.Warn("poem request failed", zap.Int("topicLength", len(topic)), zap.Error(err))
		text = Apology
	}

	s.mu.Lock()
	s.appendLocked(chat.SenderBot, text)
	s.awaiting = false
	s.topic = ""
	notify := s.onChange
	s.mu.Unlock()

	fire(notify)
}

// Wait 阻塞直到进行中的请求结束
func (s *Session) Wait() {
	s.inflight.Wait()
}

// Messages 按展示顺序返回消息记录
func (s *Session) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Messages()
}

// Awaiting 返回是否有请求进行中及其主题
func (s *Session) Awaiting() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting, s.topic
}

// WelcomeID 欢迎语的消息ID，不可朗读
func (s *Session) WelcomeID() chat.MessageID {
	return s.welcomeID
}

// ToggleRecitation 开始或停止朗读指定消息，请求进行中也可操作
func (s *Session) ToggleRecitation(id chat.MessageID) error {
	if s.reciter == nil {
		return ErrRecitationUnavailable
	}

	s.mu.Lock()
	msg, ok := s.transcript.Find(id)
	s.mu.Unlock()

	if !ok || !msg.FromBot() || msg.ID == s.welcomeID {
		return ErrNotRecitable
	}
	return s.reciter.Toggle(msg.ID, msg.Text)
}

// ActiveRecitation 返回正在朗读的消息
func (s *Session) ActiveRecitation() (chat.MessageID, bool) {
	if s.reciter == nil {
		return 0, false
	}
	return s.reciter.Active()
}

// Close 停止朗读，进行中的请求照常结束
func (s *Session) Close() {
	if s.reciter != nil {
		s.reciter.Close()
	}
}

func (s *Session) appendLocked(sender chat.Sender, text string) chat.Message {
	s.nextID++
	m := chat.Message{ID: s.nextID, Text: text, Sender: sender, CreatedAt: s.now()}
	s.transcript.Append(m)
	return m
}

func fire(fn func()) {
	if fn != nil {
		fn()
	}
}
