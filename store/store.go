// Package store 保存用户之间的私信。
package store

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// MaxMessageLength 是单条私信的最大字符数
const MaxMessageLength = 2000

var (
	// ErrEmptyMessage 表示消息内容为空
	ErrEmptyMessage = errors.New("message is empty")
	// ErrMessageTooLong 表示消息超过长度限制
	ErrMessageTooLong = errors.New("message is too long")
	// ErrMissingUser 表示发送者或接收者为空
	ErrMissingUser = errors.New("missing user id")
)

// Message 是一条私信
type Message struct {
	ID         uuid.UUID `json:"id"`
	FromUserID string    `json:"fromUserId"`
	ToUserID   string    `json:"toUserId"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// Messages 是私信存储
// 同一会话中的时间戳保证单调不减
type Messages interface {
	// Append 保存一条消息并返回带ID和时间戳的完整消息
	Append(ctx context.Context, from, to, text string) (Message, error)
	// Conversation 返回两个用户之间最近的limit条消息，按时间从旧到新排列
	Conversation(ctx context.Context, a, b string, limit int) ([]Message, error)
	Close() error
}

// ValidateText 检查消息文本，文本本身原样保存和转发
// 只有空白字符的消息视为空消息
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// NormalizeName 统一显示名的Unicode形式并去掉首尾空白
func NormalizeName(name string) string {
	return strings.TrimSpace(norm.NFC.String(name))
}

// monotonic 返回不早于 last 的时间戳，时钟回拨时沿用 last
func monotonic(now, last time.Time) time.Time {
	if now.Before(last) {
		return last
	}
	return now
}

// conversationKey 对两个用户ID排序，使 a->b 和 b->a 属于同一个会话
func conversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "\x1f" + b
}

func validate(from, to, text string) error {
	if from == "" || to == "" {
		return ErrMissingUser
	}
	return ValidateText(text)
}

// Open 根据DSN打开存储，DSN为空时使用内存存储
func Open(dsn string) (Messages, error) {
	if dsn == "" {
		return NewMemory(), nil
	}
	return NewPostgres(dsn)
}
