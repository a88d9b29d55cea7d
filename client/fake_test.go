package client

import (
	"errors"
	"sync"

	"github.com/AsterZephyr/voffice/ws/incoming"
	"github.com/pion/webrtc/v4"
)

type fakeSignal struct {
	mu   sync.Mutex
	sent []incoming.Message
}

func (s *fakeSignal) Send(msg incoming.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

// has 表示每种类型都至少发送过一次
func (s *fakeSignal) has(types ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, typ := range types {
		found := false
		for _, msg := range s.sent {
			if msg.Type() == typ {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *fakeSignal) take() []incoming.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	sent := s.sent
	s.sent = nil
	return sent
}

// fakePC 模拟pion连接
// 设置本地answer后异步触发OnTrack，设置远端answer后异步进入connected
type fakePC struct {
	mu         sync.Mutex
	tracks     int
	local      *webrtc.SessionDescription
	remote     *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	closed     bool
	failRemote bool
	// silent 为true时不会自动触发任何回调
	silent bool

	onICE   func(*webrtc.ICECandidate)
	onTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver)
	onState func(webrtc.PeerConnectionState)
}

func (f *fakePC) AddTrack(webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks++
	return nil, nil
}

func (f *fakePC) CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 fake-offer"}, nil
}

func (f *fakePC) CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 fake-answer"}, nil
}

func (f *fakePC) SetLocalDescription(desc webrtc.SessionDescription) error {
	f.mu.Lock()
	f.local = &desc
	onTrack, onICE := f.onTrack, f.onICE
	silent := f.silent
	f.mu.Unlock()
	if silent {
		return nil
	}

	if onICE != nil {
		go onICE(&webrtc.ICECandidate{
			Foundation: "1",
			Priority:   1,
			Address:    "127.0.0.1",
			Protocol:   webrtc.ICEProtocolUDP,
			Port:       5000,
			Typ:        webrtc.ICECandidateTypeHost,
			Component:  1,
		})
	}
	if desc.Type == webrtc.SDPTypeAnswer && onTrack != nil {
		go onTrack(nil, nil)
	}
	return nil
}

func (f *fakePC) SetRemoteDescription(desc webrtc.SessionDescription) error {
	f.mu.Lock()
	if f.failRemote {
		f.mu.Unlock()
		return errors.New("rejected")
	}
	f.remote = &desc
	onState := f.onState
	silent := f.silent
	f.mu.Unlock()
	if silent {
		return nil
	}

	if desc.Type == webrtc.SDPTypeAnswer && onState != nil {
		go onState(webrtc.PeerConnectionStateConnected)
	}
	return nil
}

func (f *fakePC) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = append(f.candidates, candidate)
	return nil
}

func (f *fakePC) OnICECandidate(handler func(*webrtc.ICECandidate)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onICE = handler
}

func (f *fakePC) OnTrack(handler func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTrack = handler
}

func (f *fakePC) OnConnectionStateChange(handler func(webrtc.PeerConnectionState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onState = handler
}

// Close 和pion一样同步触发closed状态
func (f *fakePC) Close() error {
	f.mu.Lock()
	f.closed = true
	onState := f.onState
	f.mu.Unlock()
	if onState != nil {
		onState(webrtc.PeerConnectionStateClosed)
	}
	return nil
}

func (f *fakePC) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakePC) candidateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.candidates)
}

func (f *fakePC) state(state webrtc.PeerConnectionState) {
	f.mu.Lock()
	onState := f.onState
	f.mu.Unlock()
	onState(state)
}

type fakeFactory struct {
	mu         sync.Mutex
	created    []*fakePC
	silent     bool
	failRemote bool
}

func (f *fakeFactory) New(_ []webrtc.ICEServer) (PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pc := &fakePC{failRemote: f.failRemote, silent: f.silent}
	f.created = append(f.created, pc)
	return pc, nil
}

func (f *fakeFactory) all() []*fakePC {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakePC(nil), f.created...)
}

func (f *fakeFactory) last() *fakePC {
	all := f.all()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}
