package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AsterZephyr/voffice/ws/incoming"
	"github.com/pion/webrtc/v4"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

// DefaultNegotiationTimeout 是一个连接从订阅到连通的最长时间
const DefaultNegotiationTimeout = 20 * time.Second

var (
	// ErrAlreadySharing 表示已经在共享
	ErrAlreadySharing = errors.New("already sharing")
	// ErrNotSharing 表示当前没有在共享
	ErrNotSharing = errors.New("not sharing")
	// ErrNoTracks 表示采集源没有任何媒体轨道
	ErrNoTracks = errors.New("capture has no tracks")
	// ErrNegotiationTimeout 表示协商没有在超时时间内完成
	ErrNegotiationTimeout = errors.New("negotiation timed out")
)

// Signaler 把消息发给服务器
type Signaler interface {
	Send(incoming.Message) error
}

// PeerConnection 是 *webrtc.PeerConnection 用到的方法
type PeerConnection interface {
	AddTrack(webrtc.TrackLocal) (*webrtc.RTPSender, error)
	CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	OnICECandidate(func(*webrtc.ICECandidate))
	OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	Close() error
}

// PeerFactory 创建新的点对点连接
type PeerFactory func(iceServers []webrtc.ICEServer) (PeerConnection, error)

// PionFactory 使用pion创建连接
func PionFactory(iceServers []webrtc.ICEServer) (PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, err
	}
	return pc, nil
}

// PeerState 是一个点对点连接的状态
type PeerState int

const (
	PeerIdle PeerState = iota
	PeerSubscribed
	PeerNegotiating
	PeerOffering
	PeerConnected
	PeerClosed
)

func (s PeerState) String() string {
	switch s {
	case PeerIdle:
		return "idle"
	case PeerSubscribed:
		return "subscribed"
	case PeerNegotiating:
		return "negotiating"
	case PeerOffering:
		return "offering"
	case PeerConnected:
		return "connected"
	case PeerClosed:
		return "closed"
	default:
		return fmt.Sprintf("PeerState(%d)", int(s))
	}
}

// Role 区分自己在连接中是观看者还是共享者
type Role int

const (
	RoleViewer Role = iota
	RoleSharer
)

func (r Role) String() string {
	if r == RoleSharer {
		return "sharer"
	}
	return "viewer"
}

// candidatePayload 是 webrtc-ice-candidate 的载荷
// Session 是共享者的连接ID，两个人互相共享时用它区分候选属于哪个连接
type candidatePayload struct {
	webrtc.ICECandidateInit
	Session xid.ID `json:"session"`
}

type peer struct {
	role      Role
	remote    xid.ID
	state     PeerState
	pc        PeerConnection
	pending   []webrtc.ICECandidateInit
	remoteSet bool
	watching  bool
	timer     *time.Timer
}

// PeerError 是一个连接失败的原因
type PeerError struct {
	Remote xid.ID
	Role   Role
	Err    error
}

func (e PeerError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Role, e.Remote, e.Err)
}

func (e PeerError) Unwrap() error {
	return e.Err
}

type trackEvent struct {
	sharer xid.ID
	track  *webrtc.TrackRemote
}

// effects 是在锁内决定、在锁外执行的副作用
// pion的Close会同步触发状态回调，回调里又需要锁
type effects struct {
	timers  []*time.Timer
	closes  []PeerConnection
	release []func()
	send    []incoming.Message
	errs    []PeerError
	tracks  []trackEvent
}

// PeerManager 管理自己作为观看者和共享者的全部点对点连接
type PeerManager struct {
	self       xid.ID
	signal     Signaler
	factory    PeerFactory
	iceServers []webrtc.ICEServer
	timeout    time.Duration

	OnTrack func(sharer xid.ID, track *webrtc.TrackRemote)
	OnError func(PeerError)

	mu      sync.Mutex
	viewing map[xid.ID]*peer
	serving map[xid.ID]*peer
	capture *Capture
	closed  bool
}

// NewPeerManager 创建连接管理器，timeout为0时使用默认的协商超时
func NewPeerManager(self xid.ID, signal Signaler, factory PeerFactory, iceServers []webrtc.ICEServer, timeout time.Duration) *PeerManager {
	if factory == nil {
		factory = PionFactory
	}
	if timeout <= 0 {
		timeout = DefaultNegotiationTimeout
	}
	return &PeerManager{
		self:       self,
		signal:     signal,
		factory:    factory,
		iceServers: iceServers,
		timeout:    timeout,
		viewing:    map[xid.ID]*peer{},
		serving:    map[xid.ID]*peer{},
	}
}

// Subscribe 请求观看sharer的屏幕，已经有连接时什么都不做
func (m *PeerManager) Subscribe(sharer xid.ID) {
	fx := &effects{}
	defer m.apply(fx)
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || sharer == m.self {
		return
	}
	if _, ok := m.viewing[sharer]; ok {
		return
	}
	p := &peer{role: RoleViewer, remote: sharer, state: PeerSubscribed}
	p.timer = m.startTimer(p)
	m.viewing[sharer] = p
	fx.send = append(fx.send, incoming.ScreenshareSubscribe{SharerID: sharer})
	log.Debug().Str("peer", sharer.String()).Msg("Subscribe")
}

// Unsubscribe 离开共享者的范围，立即关闭连接并通知服务器
func (m *PeerManager) Unsubscribe(sharer xid.ID) {
	fx := &effects{}
	defer m.apply(fx)
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.viewing[sharer]; ok {
		m.closeViewer(p, nil, true, fx)
	}
}

// HandleOffer 处理共享者发来的offer并回复answer
// 已经有连接时替换为新的连接
func (m *PeerManager) HandleOffer(from xid.ID, sdp json.RawMessage) {
	fx := &effects{}
	defer m.apply(fx)
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.viewing[from]
	if !ok {
		log.Debug().Str("peer", from.String()).Msg("Drop unsolicited offer")
		return
	}

	offer := webrtc.SessionDescription{}
	if err := json.Unmarshal(sdp, &offer); err != nil {
		m.closeViewer(p, fmt.Errorf("decode offer: %w", err), true, fx)
		return
	}

	if p.pc != nil {
		fx.closes = append(fx.closes, p.pc)
		p.pc = nil
		p.pending = nil
		p.remoteSet = false
	}

	pc, err := m.factory(m.iceServers)
	if err != nil {
		m.closeViewer(p, fmt.Errorf("create peer connection: %w", err), true, fx)
		return
	}
	p.pc = pc
	m.bindViewer(p, pc)

	if err := pc.SetRemoteDescription(offer); err != nil {
		m.closeViewer(p, fmt.Errorf("set remote description: %w", err), true, fx)
		return
	}
	p.remoteSet = true
	m.flush(p)

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		m.closeViewer(p, fmt.Errorf("create answer: %w", err), true, fx)
		return
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		m.closeViewer(p, fmt.Errorf("set local description: %w", err), true, fx)
		return
	}
	raw, err := json.Marshal(answer)
	if err != nil {
		m.closeViewer(p, fmt.Errorf("encode answer: %w", err), true, fx)
		return
	}
	p.state = PeerNegotiating
	fx.send = append(fx.send, incoming.WebRTCAnswer{To: from, SDP: raw})
}

// HandleAnswer 处理观看者回复的answer
func (m *PeerManager) HandleAnswer(from xid.ID, sdp json.RawMessage) {
	fx := &effects{}
	defer m.apply(fx)
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.serving[from]
	if !ok || p.pc == nil || p.remoteSet {
		log.Debug().Str("peer", from.String()).Msg("Drop unexpected answer")
		return
	}

	answer := webrtc.SessionDescription{}
	if err := json.Unmarshal(sdp, &answer); err != nil {
		m.closeServing(p, fmt.Errorf("decode answer: %w", err), fx)
		return
	}
	if err := p.pc.SetRemoteDescription(answer); err != nil {
		m.closeServing(p, fmt.Errorf("set remote description: %w", err), fx)
		return
	}
	p.remoteSet = true
	m.flush(p)
}

// HandleCandidate 处理对方的ICE候选
// 对方的描述还没有设置时先放进队列
func (m *PeerManager) HandleCandidate(from xid.ID, raw json.RawMessage) {
	payload := candidatePayload{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Debug().Err(err).Str("peer", from.String()).Msg("Drop malformed candidate")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var p *peer
	if payload.Session == m.self {
		p = m.serving[from]
	} else {
		p = m.viewing[from]
	}
	if p == nil {
		log.Debug().Str("peer", from.String()).Msg("Drop candidate without connection")
		return
	}
	if p.pc == nil || !p.remoteSet {
		p.pending = append(p.pending, payload.ICECandidateInit)
		return
	}
	if err := p.pc.AddICECandidate(payload.ICECandidateInit); err != nil {
		log.Debug().Err(err).Str("peer", from.String()).Msg("Add candidate")
	}
}

// HandleSubscribe 为新的观看者创建连接并发送offer
// 同一个观看者已有的连接会被替换
func (m *PeerManager) HandleSubscribe(viewer xid.ID) {
	fx := &effects{}
	defer m.apply(fx)
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capture == nil {
		log.Debug().Str("peer", viewer.String()).Msg("Drop subscribe while not sharing")
		return
	}
	if old, ok := m.serving[viewer]; ok {
		m.closeServing(old, nil, fx)
	}

	p := &peer{role: RoleSharer, remote: viewer, state: PeerOffering}
	m.serving[viewer] = p
	p.timer = m.startTimer(p)

	pc, err := m.factory(m.iceServers)
	if err != nil {
		m.closeServing(p, fmt.Errorf("create peer connection: %w", err), fx)
		return
	}
	p.pc = pc
	m.bindSharer(p, pc)

	for _, track := range m.capture.Tracks {
		if _, err := pc.AddTrack(track); err != nil {
			m.closeServing(p, fmt.Errorf("add track: %w", err), fx)
			return
		}
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		m.closeServing(p, fmt.Errorf("create offer: %w", err), fx)
		return
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		m.closeServing(p, fmt.Errorf("set local description: %w", err), fx)
		return
	}
	raw, err := json.Marshal(offer)
	if err != nil {
		m.closeServing(p, fmt.Errorf("encode offer: %w", err), fx)
		return
	}
	fx.send = append(fx.send, incoming.WebRTCOffer{To: viewer, SDP: raw})
}

// HandleUnsubscribe 关闭这个观看者的连接，其他观看者不受影响
func (m *PeerManager) HandleUnsubscribe(viewer xid.ID) {
	fx := &effects{}
	defer m.apply(fx)
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.serving[viewer]; ok {
		m.closeServing(p, nil, fx)
	}
}

// HandleShareStopped 处理 screenshare-stopped
// 是自己的共享时只在本地停止，服务器已经结束了这个共享
func (m *PeerManager) HandleShareStopped(sharer xid.ID) {
	fx := &effects{}
	defer m.apply(fx)
	m.mu.Lock()
	defer m.mu.Unlock()

	if sharer == m.self {
		if m.capture != nil {
			m.stopSharing(false, fx)
		}
		return
	}
	if p, ok := m.viewing[sharer]; ok {
		m.closeViewer(p, nil, false, fx)
	}
}

// StartSharing 开始共享采集源，采集源结束时自动停止共享
func (m *PeerManager) StartSharing(capture *Capture) error {
	fx := &effects{}
	defer m.apply(fx)
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capture != nil {
		return ErrAlreadySharing
	}
	if capture == nil || len(capture.Tracks) == 0 {
		return ErrNoTracks
	}
	m.capture = capture
	fx.send = append(fx.send, incoming.StartScreenshare{})

	go func() {
		<-capture.Done
		m.captureEnded(capture)
	}()
	return nil
}

// StopSharing 关闭所有观看者的连接，释放采集源并通知服务器
func (m *PeerManager) StopSharing() error {
	fx := &effects{}
	defer m.apply(fx)
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capture == nil {
		return ErrNotSharing
	}
	m.stopSharing(true, fx)
	return nil
}

func (m *PeerManager) captureEnded(capture *Capture) {
	fx := &effects{}
	defer m.apply(fx)
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capture != capture {
		return
	}
	log.Debug().Msg("Capture ended")
	m.stopSharing(!m.closed, fx)
}

// Close 关闭全部连接，之后的操作都会被忽略
func (m *PeerManager) Close() {
	fx := &effects{}
	defer m.apply(fx)
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for _, p := range m.viewing {
		m.closeViewer(p, nil, false, fx)
	}
	if m.capture != nil {
		m.stopSharing(false, fx)
	}
}

// ViewerState 返回观看sharer的连接状态
func (m *PeerManager) ViewerState(sharer xid.ID) PeerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.viewing[sharer]; ok {
		return p.state
	}
	return PeerIdle
}

// ServingState 返回发给viewer的连接状态
func (m *PeerManager) ServingState(viewer xid.ID) PeerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.serving[viewer]; ok {
		return p.state
	}
	return PeerIdle
}

// ServingCount 返回作为共享者的连接数
func (m *PeerManager) ServingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.serving)
}

// Viewing 返回正在观看或请求观看的共享者
func (m *PeerManager) Viewing() []xid.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]xid.ID, 0, len(m.viewing))
	for id := range m.viewing {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Compare(ids[j]) < 0
	})
	return ids
}

// Sharing 表示是否正在共享
func (m *PeerManager) Sharing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capture != nil
}

func (m *PeerManager) stopSharing(notify bool, fx *effects) {
	for _, p := range m.serving {
		m.closeServing(p, nil, fx)
	}
	if m.capture.Stop != nil {
		fx.release = append(fx.release, m.capture.Stop)
	}
	m.capture = nil
	if notify {
		fx.send = append(fx.send, incoming.StopScreenshare{})
	}
}

func (m *PeerManager) closeViewer(p *peer, reason error, notify bool, fx *effects) {
	if m.viewing[p.remote] == p {
		delete(m.viewing, p.remote)
	}
	m.release(p, fx)
	if p.watching {
		p.watching = false
		fx.send = append(fx.send, incoming.ViewerStoppedWatching{SharerID: p.remote})
	}
	if notify {
		fx.send = append(fx.send, incoming.ScreenshareUnsubscribe{SharerID: p.remote})
	}
	if reason != nil {
		fx.errs = append(fx.errs, PeerError{Remote: p.remote, Role: RoleViewer, Err: reason})
	}
}

func (m *PeerManager) closeServing(p *peer, reason error, fx *effects) {
	if m.serving[p.remote] == p {
		delete(m.serving, p.remote)
	}
	m.release(p, fx)
	if reason != nil {
		fx.errs = append(fx.errs, PeerError{Remote: p.remote, Role: RoleSharer, Err: reason})
	}
}

func (m *PeerManager) release(p *peer, fx *effects) {
	if p.timer != nil {
		fx.timers = append(fx.timers, p.timer)
		p.timer = nil
	}
	if p.pc != nil {
		fx.closes = append(fx.closes, p.pc)
		p.pc = nil
	}
	p.pending = nil
	p.state = PeerClosed
	log.Debug().Str("peer", p.remote.String()).Str("role", p.role.String()).Msg("Peer closed")
}

func (m *PeerManager) flush(p *peer) {
	for _, candidate := range p.pending {
		if err := p.pc.AddICECandidate(candidate); err != nil {
			log.Debug().Err(err).Str("peer", p.remote.String()).Msg("Add queued candidate")
		}
	}
	p.pending = nil
}

func (m *PeerManager) startTimer(p *peer) *time.Timer {
	return time.AfterFunc(m.timeout, func() {
		fx := &effects{}
		defer m.apply(fx)
		m.mu.Lock()
		defer m.mu.Unlock()

		if p.state == PeerConnected || p.state == PeerClosed {
			return
		}
		if p.role == RoleViewer {
			m.closeViewer(p, ErrNegotiationTimeout, true, fx)
		} else {
			m.closeServing(p, ErrNegotiationTimeout, fx)
		}
	})
}

func (m *PeerManager) bindViewer(p *peer, pc PeerConnection) {
	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		m.sendCandidate(p, pc, candidate, p.remote)
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fx := &effects{}
		defer m.apply(fx)
		m.mu.Lock()
		defer m.mu.Unlock()

		if p.pc != pc {
			return
		}
		if p.state != PeerConnected {
			p.state = PeerConnected
			if p.timer != nil {
				fx.timers = append(fx.timers, p.timer)
				p.timer = nil
			}
		}
		if !p.watching {
			p.watching = true
			fx.send = append(fx.send, incoming.ViewerStartedWatching{SharerID: p.remote})
		}
		fx.tracks = append(fx.tracks, trackEvent{sharer: p.remote, track: track})
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		fx := &effects{}
		defer m.apply(fx)
		m.mu.Lock()
		defer m.mu.Unlock()

		if p.pc != pc || !failed(state) {
			return
		}
		m.closeViewer(p, fmt.Errorf("peer connection %s", state), true, fx)
	})
}

func (m *PeerManager) bindSharer(p *peer, pc PeerConnection) {
	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		m.sendCandidate(p, pc, candidate, m.self)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		fx := &effects{}
		defer m.apply(fx)
		m.mu.Lock()
		defer m.mu.Unlock()

		if p.pc != pc {
			return
		}
		switch {
		case state == webrtc.PeerConnectionStateConnected:
			p.state = PeerConnected
			if p.timer != nil {
				fx.timers = append(fx.timers, p.timer)
				p.timer = nil
			}
		case failed(state):
			m.closeServing(p, fmt.Errorf("peer connection %s", state), fx)
		}
	})
}

func (m *PeerManager) sendCandidate(p *peer, pc PeerConnection, candidate *webrtc.ICECandidate, session xid.ID) {
	if candidate == nil {
		return
	}
	m.mu.Lock()
	current := p.pc == pc
	m.mu.Unlock()
	if !current {
		return
	}

	raw, err := json.Marshal(candidatePayload{ICECandidateInit: candidate.ToJSON(), Session: session})
	if err != nil {
		log.Debug().Err(err).Msg("Encode candidate")
		return
	}
	if err := m.signal.Send(incoming.WebRTCICECandidate{To: p.remote, Candidate: raw}); err != nil {
		log.Debug().Err(err).Str("peer", p.remote.String()).Msg("Send candidate")
	}
}

func (m *PeerManager) apply(fx *effects) {
	for _, timer := range fx.timers {
		timer.Stop()
	}
	for _, pc := range fx.closes {
		if err := pc.Close(); err != nil {
			log.Debug().Err(err).Msg("Close peer connection")
		}
	}
	for _, release := range fx.release {
		release()
	}
	for _, msg := range fx.send {
		if err := m.signal.Send(msg); err != nil {
			log.Debug().Err(err).Str("type", msg.Type()).Msg("Send")
		}
	}
	for _, err := range fx.errs {
		log.Debug().Err(err.Err).Str("peer", err.Remote.String()).Str("role", err.Role.String()).Msg("Peer failed")
		if m.OnError != nil {
			m.OnError(err)
		}
	}
	for _, event := range fx.tracks {
		if m.OnTrack != nil {
			m.OnTrack(event.sharer, event.track)
		}
	}
}

func failed(state webrtc.PeerConnectionState) bool {
	switch state {
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
		return true
	}
	return false
}
