package chat

import "time"

// Sender 消息发送方
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// MessageID 会话内的消息序号，插入顺序即展示顺序
type MessageID int64

// Message 聊天记录中不可变的一条消息
type Message struct {
	ID        MessageID `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	CreatedAt time.Time `json:"createdAt"`
}

// Timestamp 返回用于展示的时间
func (m Message) Timestamp() string {
	return m.CreatedAt.Local().Format("15:04")
}

// FromBot 消息是否由诗人发出
func (m Message) FromBot() bool {
	return m.Sender == SenderBot
}
