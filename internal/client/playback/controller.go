package playback

import (
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/poem-tavern/backend/internal/model/chat"
)

// Controller 记录当前朗读的消息，是唯一驱动语音引擎的组件
type Controller struct {
	engine Engine
	logger *zap.Logger

	mu       sync.Mutex
	speaking bool
	active   chat.MessageID
	handle   Handle
	// gen 每次启动播放递增，用于丢弃过期的完成回调
	gen      uint64
	onChange func()
}

// NewController 绑定共享的语音引擎
func NewController(engine Engine, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{engine: engine, logger: logger.Named("recitation")}
}

// OnChange 注册状态变化回调，回调执行时不持有控制器锁
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Active 返回正在朗读的消息
func (c *Controller) Active() (chat.MessageID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.speaking
}

// Toggle 若 id 正在朗读则停止；否则停止其他朗读并开始朗读 id
func (c *Controller) Toggle(id chat.MessageID, text string) error {
	c.mu.Lock()

	if c.speaking && c.active == id {
		c.stopLocked()
		notify := c.onChange
		c.mu.Unlock()
		fire(notify)
		return nil
	}

	if c.speaking {
		c.stopLocked()
	}

	c.gen++
	gen := c.gen
	handle, err := c.engine.Speak(text, func(err error) { c.finished(gen, err) })
	if err != nil {
		notify := c.onChange
		c.mu.Unlock()
		c.logger.Warn("recitation failed to start", zap.Int64("message", int64(id)), zap.Error(err))
		fire(notify)
		return err
	}

	c.speaking = true
	c.active = id
	c.handle = handle
	notify := c.onChange
	c.mu.Unlock()

	fire(notify)
	return nil
}

// Close 取消当前朗读
func (c *Controller) Close() {
	c.mu.Lock()
	if !c.speaking {
		c.mu.Unlock()
		return
	}
	c.stopLocked()
	notify := c.onChange
	c.mu.Unlock()
	fire(notify)
}

func (c *Controller) stopLocked() {
	c.engine.Cancel(c.handle)
	c.speaking = false
	c.active = 0
	c.handle = 0
}

func (c *Controller) finished(gen uint64, err error) {
	c.mu.Lock()
	if !c.speaking || c.gen != gen {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.logger.Warn("recitation ended with error", zap.Int64("message", int64(c.active)), zap.Error(err))
	}
	c.speaking = false
	c.active = 0
	c.handle = 0
	notify := c.onChange
	c.mu.Unlock()
	fire(notify)
}

func fire(fn func()) {
	if fn != nil {
		fn()
	}
}
