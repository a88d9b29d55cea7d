package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory 是进程内的私信存储，重启后数据丢失
type Memory struct {
	mu            sync.RWMutex
	conversations map[string][]Message
	now           func() time.Time
}

// NewMemory 创建内存存储
func NewMemory() *Memory {
	return &Memory{conversations: map[string][]Message{}, now: time.Now}
}

// Append 实现Messages接口
func (m *Memory) Append(ctx context.Context, from, to, text string) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	if err := validate(from, to, text); err != nil {
		return Message{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := conversationKey(from, to)
	msg := Message{
		ID:         uuid.New(),
		FromUserID: from,
		ToUserID:   to,
		Message:    text,
		Timestamp:  m.now().UTC(),
	}
	if existing := m.conversations[key]; len(existing) > 0 {
		msg.Timestamp = monotonic(msg.Timestamp, existing[len(existing)-1].Timestamp)
	}
	m.conversations[key] = append(m.conversations[key], msg)
	return msg, nil
}

// Conversation 实现Messages接口
func (m *Memory) Conversation(ctx context.Context, a, b string, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.conversations[conversationKey(a, b)]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	result := make([]Message, len(all))
	copy(result, all)
	return result, nil
}

// Close 实现Messages接口
func (m *Memory) Close() error {
	return nil
}
