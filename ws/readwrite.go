package ws

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/AsterZephyr/voffice/ws/incoming"
	"github.com/AsterZephyr/voffice/ws/outgoing"
)

// Typed 是线上传输的消息格式
type Typed struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ToTypedOutgoing 把发往客户端的消息包装为Typed
func ToTypedOutgoing(outgoing outgoing.Message) (Typed, error) {
	payload, err := json.Marshal(outgoing)
	if err != nil {
		return Typed{}, err
	}
	return Typed{
		Type:    outgoing.Type(),
		Payload: payload,
	}, nil
}

// ReadTypedIncoming 解析客户端发来的消息并创建对应的事件
// 未知的类型和无法解析的载荷都会返回错误
func ReadTypedIncoming(r io.Reader) (Event, error) {
	typed := Typed{}
	if err := json.NewDecoder(r).Decode(&typed); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	var event Event
	switch typed.Type {
	case incoming.TypeJoinOffice:
		event = &JoinOffice{}
	case incoming.TypeUserMove:
		event = &UserMove{}
	case incoming.TypeSendDirectMessage:
		event = &SendDirectMessage{}
	case incoming.TypeSendMessage:
		event = &SendMessage{}
	case incoming.TypeStartScreenshare:
		event = &StartScreenshare{}
	case incoming.TypeStopScreenshare:
		event = &StopScreenshare{}
	case incoming.TypeScreenshareSubscribe:
		event = &ScreenshareSubscribe{}
	case incoming.TypeScreenshareUnsubscribe:
		event = &ScreenshareUnsubscribe{}
	case incoming.TypeWebRTCOffer:
		event = &WebRTCOffer{}
	case incoming.TypeWebRTCAnswer:
		event = &WebRTCAnswer{}
	case incoming.TypeWebRTCICECandidate:
		event = &WebRTCICECandidate{}
	case incoming.TypeViewerStartedWatching:
		event = &ViewerStartedWatching{}
	case incoming.TypeViewerStoppedWatching:
		event = &ViewerStoppedWatching{}
	default:
		return nil, fmt.Errorf("cannot handle %q", typed.Type)
	}

	if len(typed.Payload) > 0 {
		if err := json.Unmarshal(typed.Payload, event); err != nil {
			return nil, fmt.Errorf("incoming payload %s: %w", typed.Type, err)
		}
	}
	return event, nil
}
