// Package incoming 定义客户端发给服务器的全部消息。
// 消息集合是封闭的，服务器按 Type* 常量逐一匹配。
package incoming

import (
	"encoding/json"

	"github.com/AsterZephyr/voffice/grid"
	"github.com/rs/xid"
)

// Message 是一条可以发送给服务器的消息
type Message interface {
	Type() string
}

const (
	TypeJoinOffice             = "join-office"
	TypeUserMove               = "user-move"
	TypeSendDirectMessage      = "send-direct-message"
	TypeSendMessage            = "send-message"
	TypeStartScreenshare       = "start-screenshare"
	TypeStopScreenshare        = "stop-screenshare"
	TypeScreenshareSubscribe   = "screenshare-subscribe"
	TypeScreenshareUnsubscribe = "screenshare-unsubscribe"
	TypeWebRTCOffer            = "webrtc-offer"
	TypeWebRTCAnswer           = "webrtc-answer"
	TypeWebRTCICECandidate     = "webrtc-ice-candidate"
	TypeViewerStartedWatching  = "viewer-started-watching"
	TypeViewerStoppedWatching  = "viewer-stopped-watching"
)

// JoinOffice 进入办公室，位置和房间为空时使用默认值
type JoinOffice struct {
	Position *grid.Position `json:"position,omitempty"`
	Room     string         `json:"room,omitempty"`
	Avatar   string         `json:"avatar,omitempty"`
}

// UserMove 移动位置或者切换房间，两个字段都是必填的
type UserMove struct {
	Position *grid.Position `json:"position"`
	Room     string         `json:"room"`
}

// SendDirectMessage 给某个用户发私信
type SendDirectMessage struct {
	ToUserID string `json:"toUserId"`
	Message  string `json:"message"`
}

// SendMessage 在当前房间里发消息
type SendMessage struct {
	Message string `json:"message"`
}

type StartScreenshare struct{}

type StopScreenshare struct{}

// ScreenshareSubscribe 请求观看某个共享者的屏幕
type ScreenshareSubscribe struct {
	SharerID xid.ID `json:"sharerId"`
}

type ScreenshareUnsubscribe struct {
	SharerID xid.ID `json:"sharerId"`
}

// WebRTCOffer 的 SDP 对服务器是不透明的，原样转发
type WebRTCOffer struct {
	To  xid.ID          `json:"to"`
	SDP json.RawMessage `json:"sdp"`
}

type WebRTCAnswer struct {
	To  xid.ID          `json:"to"`
	SDP json.RawMessage `json:"sdp"`
}

type WebRTCICECandidate struct {
	To        xid.ID          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

// ViewerStartedWatching 表示观看者已经收到了媒体流
type ViewerStartedWatching struct {
	SharerID xid.ID `json:"sharerId"`
}

type ViewerStoppedWatching struct {
	SharerID xid.ID `json:"sharerId"`
}

func (JoinOffice) Type() string             { return TypeJoinOffice }
func (UserMove) Type() string               { return TypeUserMove }
func (SendDirectMessage) Type() string      { return TypeSendDirectMessage }
func (SendMessage) Type() string            { return TypeSendMessage }
func (StartScreenshare) Type() string       { return TypeStartScreenshare }
func (StopScreenshare) Type() string        { return TypeStopScreenshare }
func (ScreenshareSubscribe) Type() string   { return TypeScreenshareSubscribe }
func (ScreenshareUnsubscribe) Type() string { return TypeScreenshareUnsubscribe }
func (WebRTCOffer) Type() string            { return TypeWebRTCOffer }
func (WebRTCAnswer) Type() string           { return TypeWebRTCAnswer }
func (WebRTCICECandidate) Type() string     { return TypeWebRTCICECandidate }
func (ViewerStartedWatching) Type() string  { return TypeViewerStartedWatching }
func (ViewerStoppedWatching) Type() string  { return TypeViewerStoppedWatching }
