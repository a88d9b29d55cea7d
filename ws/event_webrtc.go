package ws

import (
	"github.com/AsterZephyr/voffice/ws/incoming"
	"github.com/AsterZephyr/voffice/ws/outgoing"
)

// WebRTCOffer 由共享者发给观看者
type WebRTCOffer incoming.WebRTCOffer

// Execute 转发给目标连接，SDP不做任何解析
func (e *WebRTCOffer) Execute(o *Office, info ClientInfo) error {
	o.relay(incoming.TypeWebRTCOffer, info.ID, e.To, outgoing.WebRTCOffer{From: info.ID, SDP: e.SDP})
	return nil
}

// WebRTCAnswer 由观看者发回给共享者
type WebRTCAnswer incoming.WebRTCAnswer

// Execute 转发给发出 offer 的共享者
func (e *WebRTCAnswer) Execute(o *Office, info ClientInfo) error {
	o.relay(incoming.TypeWebRTCAnswer, info.ID, e.To, outgoing.WebRTCAnswer{From: info.ID, SDP: e.SDP})
	return nil
}

// WebRTCICECandidate 双向转发
type WebRTCICECandidate incoming.WebRTCICECandidate

// Execute 转发给对端，候选内容原样传递
func (e *WebRTCICECandidate) Execute(o *Office, info ClientInfo) error {
	o.relay(incoming.TypeWebRTCICECandidate, info.ID, e.To, outgoing.WebRTCICECandidate{From: info.ID, Candidate: e.Candidate})
	return nil
}
