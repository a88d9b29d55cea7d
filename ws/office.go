package ws

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/AsterZephyr/voffice/auth"
	"github.com/AsterZephyr/voffice/config"
	"github.com/AsterZephyr/voffice/store"
	"github.com/AsterZephyr/voffice/turn"
	"github.com/gorilla/websocket"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

// Event 是事件循环处理的一个事件
type Event interface {
	Execute(*Office, ClientInfo) error
}

// NewOffice 创建办公室
// tServer 在 local 和 stun 模式下可以为nil
func NewOffice(verifier auth.Verifier, tServer turn.Server, messages store.Messages, conf config.Config) *Office {
	return &Office{
		Incoming:   make(chan ClientMessage),
		connected:  map[xid.ID]ClientInfo{},
		presence:   NewPresence(conf.Bounds()),
		sharing:    NewSharing(),
		messages:   messages,
		turnServer: tServer,
		verifier:   verifier,
		config:     conf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("origin")
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Host == r.Host {
					return true
				}
				return conf.CheckOrigin != nil && conf.CheckOrigin(origin)
			},
		},
	}
}

// Office 持有所有连接、在线状态和屏幕共享
// 所有状态只在 Start 的事件循环里修改
type Office struct {
	Incoming   chan ClientMessage
	connected  map[xid.ID]ClientInfo
	presence   *Presence
	sharing    *Sharing
	messages   store.Messages
	turnServer turn.Server
	verifier   auth.Verifier
	config     config.Config
	upgrader   websocket.Upgrader
}

// Upgrade 认证请求并升级为WebSocket连接
// 认证失败时返回401，不会升级
func (o *Office) Upgrade(w http.ResponseWriter, req *http.Request) {
	identity, err := auth.Authenticate(o.verifier, req)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket Unauthorized")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(err.Error()))
		return
	}

	conn, err := o.upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Debug().Err(err).Msg("Websocket upgrade")
		w.WriteHeader(400)
		_, _ = w.Write([]byte(fmt.Sprintf("Upgrade failed %s", err)))
		return
	}

	c := newClient(conn, req, o.Incoming, identity, o.config.TrustProxyHeaders)
	o.Incoming <- ClientMessage{Info: c.info, Incoming: &Connected{}, SkipConnectedCheck: true}

	go c.startReading(time.Second * 20)
	go c.startWriteHandler(time.Second * 5)
}

// Start 运行事件循环，直到 Incoming 被关闭
func (o *Office) Start() {
	for msg := range o.Incoming {
		o.handle(msg)
	}
}

func (o *Office) handle(msg ClientMessage) {
	_, connected := o.connected[msg.Info.ID]
	if !msg.SkipConnectedCheck && !connected {
		log.Debug().Interface("event", fmt.Sprintf("%T", msg.Incoming)).Interface("payload", msg.Incoming).Msg("WebSocket Ignore")
		return
	}

	if err := msg.Incoming.Execute(o, msg.Info); err != nil {
		log.Debug().Err(err).
			Str("id", msg.Info.ID.String()).
			Str("event", fmt.Sprintf("%T", msg.Incoming)).
			Msg("WebSocket Drop event")
	}
}

// Count 返回当前连接数和已加入办公室的人数
// 通过事件循环读取，超时返回-1和原因
func (o *Office) Count() (int, string) {
	timeout := time.After(5 * time.Second)

	h := Health{Response: make(chan int, 1)}
	select {
	case o.Incoming <- ClientMessage{SkipConnectedCheck: true, Incoming: &h}:
	case <-timeout:
		return -1, "main loop didn't accept a message within 5 second"
	}
	select {
	case count := <-h.Response:
		return count, ""
	case <-timeout:
		return -1, "main loop didn't respond to a message within 5 second"
	}
}
