// Package outgoing 定义服务器发给客户端的全部消息。
package outgoing

import (
	"encoding/json"
	"time"

	"github.com/AsterZephyr/voffice/grid"
	"github.com/google/uuid"
	"github.com/rs/xid"
)

// Message 是一条发往客户端的消息
type Message interface {
	Type() string
}

const (
	TypeWelcome                = "welcome"
	TypeUserJoined             = "user-joined"
	TypeRoomUsers              = "room-users"
	TypeUserMoved              = "user-moved"
	TypeUserLeft               = "user-left"
	TypeNewDirectMessage       = "new-direct-message"
	TypeNewMessage             = "new-message"
	TypeScreenshareActive      = "screenshare-active"
	TypeScreenshareStarted     = "screenshare-started"
	TypeScreenshareStopped     = "screenshare-stopped"
	TypeScreenshareSubscribe   = "screenshare-subscribe"
	TypeScreenshareUnsubscribe = "screenshare-unsubscribe"
	TypeScreenshareWatchers    = "screenshare-watchers"
	TypeWebRTCOffer            = "webrtc-offer"
	TypeWebRTCAnswer           = "webrtc-answer"
	TypeWebRTCICECandidate     = "webrtc-ice-candidate"
)

// ICEServer 与浏览器 RTCIceServer 的格式一致
type ICEServer struct {
	URLs       []string `json:"urls"`
	Credential string   `json:"credential,omitempty"`
	Username   string   `json:"username,omitempty"`
}

// Welcome 在连接建立后立即发送，告诉客户端自己的连接ID
type Welcome struct {
	ID              xid.ID      `json:"id"`
	UserID          string      `json:"userId"`
	Name            string      `json:"name"`
	ICEServers      []ICEServer `json:"iceServers"`
	ProximityRadius int         `json:"proximityRadius"`
}

// User 是房间中一个连接的快照
type User struct {
	ID       xid.ID        `json:"id"`
	UserID   string        `json:"userId"`
	Name     string        `json:"name"`
	Avatar   string        `json:"avatar"`
	Position grid.Position `json:"position"`
	Room     string        `json:"room"`
}

type UserJoined User

// RoomUsers 是房间中除接收者以外的所有连接
type RoomUsers []User

type UserMoved struct {
	ID       xid.ID        `json:"id"`
	Position grid.Position `json:"position"`
	Room     string        `json:"room"`
}

type UserLeft struct {
	ID xid.ID `json:"id"`
}

type NewDirectMessage struct {
	ID         uuid.UUID `json:"id"`
	FromUserID string    `json:"fromUserId"`
	ToUserID   string    `json:"toUserId"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewMessage 是房间内的聊天消息
type NewMessage struct {
	ID        xid.ID    `json:"id"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ScreenshareActive 是当前房间所有共享者的完整列表
type ScreenshareActive struct {
	SharerIDs []xid.ID `json:"sharerIds"`
}

type ScreenshareStarted struct {
	SharerID xid.ID `json:"sharerId"`
}

type ScreenshareStopped struct {
	SharerID xid.ID `json:"sharerId"`
}

type ScreenshareSubscribe struct {
	From xid.ID `json:"from"`
}

type ScreenshareUnsubscribe struct {
	From xid.ID `json:"from"`
}

type Watcher struct {
	ID   xid.ID `json:"id"`
	Name string `json:"name"`
}

// ScreenshareWatchers 只发给共享者本人
type ScreenshareWatchers struct {
	SharerID xid.ID    `json:"sharerId"`
	Watchers []Watcher `json:"watchers"`
}

type WebRTCOffer struct {
	From xid.ID          `json:"from"`
	SDP  json.RawMessage `json:"sdp"`
}

type WebRTCAnswer struct {
	From xid.ID          `json:"from"`
	SDP  json.RawMessage `json:"sdp"`
}

type WebRTCICECandidate struct {
	From      xid.ID          `json:"from"`
	Candidate json.RawMessage `json:"candidate"`
}

// CloseWriter 通知写协程关闭连接，不会发送给客户端
type CloseWriter struct {
	Code   int
	Reason string
}

func (Welcome) Type() string                { return TypeWelcome }
func (UserJoined) Type() string             { return TypeUserJoined }
func (RoomUsers) Type() string              { return TypeRoomUsers }
func (UserMoved) Type() string              { return TypeUserMoved }
func (UserLeft) Type() string               { return TypeUserLeft }
func (NewDirectMessage) Type() string       { return TypeNewDirectMessage }
func (NewMessage) Type() string             { return TypeNewMessage }
func (ScreenshareActive) Type() string      { return TypeScreenshareActive }
func (ScreenshareStarted) Type() string     { return TypeScreenshareStarted }
func (ScreenshareStopped) Type() string     { return TypeScreenshareStopped }
func (ScreenshareSubscribe) Type() string   { return TypeScreenshareSubscribe }
func (ScreenshareUnsubscribe) Type() string { return TypeScreenshareUnsubscribe }
func (ScreenshareWatchers) Type() string    { return TypeScreenshareWatchers }
func (WebRTCOffer) Type() string            { return TypeWebRTCOffer }
func (WebRTCAnswer) Type() string           { return TypeWebRTCAnswer }
func (WebRTCICECandidate) Type() string     { return TypeWebRTCICECandidate }
func (CloseWriter) Type() string            { return "close" }
