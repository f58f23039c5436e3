package chat

import "github.com/zhouzirui/poem-tavern/backend/internal/model/chat"

// Transcript 会话的只追加消息记录，顺序即展示顺序
type Transcript struct {
	messages []chat.Message
}

// Append 追加消息
func (t *Transcript) Append(m chat.Message) {
	t.messages = append(t.messages, m)
}

// Len 消息数量
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Messages 返回消息记录的副本
func (t *Transcript) Messages() []chat.Message {
	out := make([]chat.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Find 按ID查找消息
func (t *Transcript) Find(id chat.MessageID) (chat.Message, bool) {
	for _, m := range t.messages {
		if m.ID == id {
			return m, true
		}
	}
	return chat.Message{}, false
}
