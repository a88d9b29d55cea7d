// Package client 是连接办公室服务器的无界面客户端。
// 它维护房间里其他人的位置，按距离自动订阅附近的屏幕共享，并通过pion建立点对点连接。
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/AsterZephyr/voffice/ws/incoming"
	"github.com/gorilla/websocket"
)

const writeWait = 2 * time.Second

// Frame 是线上传输的一条消息
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SignalConn 是到服务器的WebSocket连接
// Send 可以被多个协程同时调用，Receive 只能在一个协程里调用
type SignalConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// DialSignal 使用令牌连接服务器
func DialSignal(ctx context.Context, url, token string) (*SignalConn, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &SignalConn{conn: conn}, nil
}

// Send 发送一条消息
func (s *SignalConn) Send(msg incoming.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(Frame{Type: msg.Type(), Payload: payload})
}

// Receive 阻塞直到收到下一条消息
func (s *SignalConn) Receive() (Frame, error) {
	frame := Frame{}
	err := s.conn.ReadJSON(&frame)
	return frame, err
}

// Close 发送关闭帧并断开连接
func (s *SignalConn) Close() error {
	s.mu.Lock()
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	_ = s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
	s.mu.Unlock()
	return s.conn.Close()
}
