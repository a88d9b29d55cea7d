package ws

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AsterZephyr/voffice/auth"
	"github.com/AsterZephyr/voffice/ws/outgoing"
	"github.com/gorilla/websocket"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ping 向WebSocket连接发送ping消息
var ping = func(conn *websocket.Conn) error {
	return conn.WriteMessage(websocket.PingMessage, nil)
}

// writeJSON 向WebSocket连接写入JSON消息
var writeJSON = func(conn *websocket.Conn, v interface{}) error {
	return conn.WriteJSON(v)
}

const (
	// writeWait 定义了写操作的超时时间
	writeWait = 2 * time.Second
	// writeBuffer 是每个连接待发送消息的缓冲数量
	writeBuffer = 32
)

// Client 表示一个WebSocket客户端连接
type Client struct {
	conn *websocket.Conn
	info ClientInfo
	once sync.Once
	read chan<- ClientMessage
}

// ClientMessage 表示从客户端接收到的消息
type ClientMessage struct {
	Info               ClientInfo // 客户端信息
	SkipConnectedCheck bool       // 是否跳过连接检查
	Incoming           Event      // 接收到的事件
}

// ClientInfo 包含客户端的基本信息
type ClientInfo struct {
	ID       xid.ID                // 连接ID，在连接的整个生命周期内不变
	Identity auth.Identity         // 握手时解析出的用户身份
	Write    chan outgoing.Message // 发送消息的通道
	Addr     net.IP                // 客户端IP地址
}

func newClient(conn *websocket.Conn, req *http.Request, read chan ClientMessage, identity auth.Identity, trustProxy bool) *Client {
	ip := conn.RemoteAddr().(*net.TCPAddr).IP
	if realIP := req.Header.Get("X-Real-IP"); trustProxy && realIP != "" {
		ip = net.ParseIP(realIP)
	}

	client := &Client{
		conn: conn,
		info: ClientInfo{
			ID:       xid.New(),
			Identity: identity,
			Addr:     ip,
			Write:    make(chan outgoing.Message, writeBuffer),
		},
		read: read,
	}
	client.debug().Str("user", identity.UserID).Msg("WebSocket New Connection")
	return client
}

// CloseOnError 发送断开连接事件并关闭WebSocket连接
func (c *Client) CloseOnError(code int, reason string) {
	c.once.Do(func() {
		go func() {
			c.read <- ClientMessage{
				Info: c.info,
				Incoming: &Disconnected{
					Code:   code,
					Reason: reason,
				},
			}
		}()
		c.writeCloseMessage(code, reason)
	})
}

// CloseOnDone 只关闭WebSocket连接，不发送断开连接事件
func (c *Client) CloseOnDone(code int, reason string) {
	c.once.Do(func() {
		c.writeCloseMessage(code, reason)
	})
}

func (c *Client) writeCloseMessage(code int, reason string) {
	message := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
	c.conn.Close()
}

// startReading 持续读取消息
// 无法解析的消息只记录日志并丢弃，连接保持打开
func (c *Client) startReading(pongWait time.Duration) {
	defer c.CloseOnError(websocket.CloseNormalClosure, "Reader Routine Closed")

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		t, m, err := c.conn.NextReader()
		if err != nil {
			c.printWebSocketError("read", err)
			c.CloseOnError(websocket.CloseNormalClosure, "read error: "+err.Error())
			return
		}
		if t == websocket.BinaryMessage {
			c.debug().Msg("WebSocket Drop binary message")
			continue
		}

		incoming, err := ReadTypedIncoming(m)
		if err != nil {
			c.debug().Err(err).Msg("WebSocket Drop malformed message")
			continue
		}
		c.debug().Str("event", fmt.Sprintf("%T", incoming)).Interface("payload", incoming).Msg("WebSocket Receive")
		c.read <- ClientMessage{Info: c.info, Incoming: incoming}
	}
}

// startWriteHandler 发送消息并定期ping
func (c *Client) startWriteHandler(pingPeriod time.Duration) {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()
	defer func() {
		c.debug().Msg("WebSocket Done")
	}()
	defer c.conn.Close()

	for {
		select {
		case message := <-c.info.Write:
			if msg, ok := message.(outgoing.CloseWriter); ok {
				c.debug().Str("reason", msg.Reason).Int("code", msg.Code).Msg("WebSocket Close")
				c.CloseOnDone(msg.Code, msg.Reason)
				return
			}

			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			typed, err := ToTypedOutgoing(message)
			if err != nil {
				c.debug().Err(err).Msg("could not get typed message, exiting connection.")
				c.CloseOnError(websocket.CloseNormalClosure, "malformed outgoing "+err.Error())
				continue
			}
			c.debug().Str("event", typed.Type).RawJSON("payload", typed.Payload).Msg("WebSocket Send")

			if err := writeJSON(c.conn, typed); err != nil {
				c.printWebSocketError("write", err)
				c.CloseOnError(websocket.CloseNormalClosure, "write error"+err.Error())
			}
		case <-pingTicker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ping(c.conn); err != nil {
				c.printWebSocketError("ping", err)
				c.CloseOnError(websocket.CloseNormalClosure, "ping timeout")
			}
		}
	}
}

func (c *Client) debug() *zerolog.Event {
	return log.Debug().Str("id", c.info.ID.String()).Str("ip", c.info.Addr.String())
}

// printWebSocketError 过滤掉正常关闭产生的错误
func (c *Client) printWebSocketError(typex string, err error) {
	if strings.Contains(err.Error(), "use of closed network connection") {
		return
	}
	closeError, ok := err.(*websocket.CloseError)

	if ok && closeError != nil && (closeError.Code == 1000 || closeError.Code == 1001) {
		// normal closure
		return
	}

	c.debug().Str("type", typex).Err(err).Msg("WebSocket Error")
}
