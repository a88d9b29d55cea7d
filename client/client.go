package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AsterZephyr/voffice/grid"
	"github.com/AsterZephyr/voffice/proximity"
	"github.com/AsterZephyr/voffice/ws/incoming"
	"github.com/AsterZephyr/voffice/ws/outgoing"
	"github.com/pion/webrtc/v4"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

// Options 是客户端的配置和回调
// 回调在读协程或pion的协程里调用，不能阻塞
type Options struct {
	URL   string
	Token string

	// Factory 为空时使用pion
	Factory            PeerFactory
	NegotiationTimeout time.Duration

	OnProximity     func(proximity.Result)
	OnTrack         func(sharer xid.ID, track *webrtc.TrackRemote)
	OnPeerError     func(PeerError)
	OnDirectMessage func(outgoing.NewDirectMessage)
	OnRoomMessage   func(outgoing.NewMessage)
	OnWatchers      func(outgoing.ScreenshareWatchers)
}

// Client 是一个已连接的办公室客户端
type Client struct {
	opts    Options
	signal  *SignalConn
	welcome outgoing.Welcome
	roster  *Roster
	peers   *PeerManager

	reconcileLock sync.Mutex

	mu       sync.Mutex
	watchers []outgoing.Watcher
	err      error
	done     chan struct{}
}

// Dial 连接服务器并等待欢迎消息
func Dial(ctx context.Context, opts Options) (*Client, error) {
	signal, err := DialSignal(ctx, opts.URL, opts.Token)
	if err != nil {
		return nil, err
	}

	welcome, err := awaitWelcome(ctx, signal)
	if err != nil {
		signal.Close()
		return nil, err
	}

	iceServers := make([]webrtc.ICEServer, 0, len(welcome.ICEServers))
	for _, server := range welcome.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       server.URLs,
			Username:   server.Username,
			Credential: server.Credential,
		})
	}

	c := &Client{
		opts:    opts,
		signal:  signal,
		welcome: welcome,
		roster:  NewRoster(welcome.ID),
		peers:   NewPeerManager(welcome.ID, signal, opts.Factory, iceServers, opts.NegotiationTimeout),
		done:    make(chan struct{}),
	}
	c.peers.OnTrack = opts.OnTrack
	c.peers.OnError = opts.OnPeerError

	go c.run()
	return c, nil
}

func awaitWelcome(ctx context.Context, signal *SignalConn) (outgoing.Welcome, error) {
	type result struct {
		welcome outgoing.Welcome
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		frame, err := signal.Receive()
		if err != nil {
			ch <- result{err: err}
			return
		}
		if frame.Type != outgoing.TypeWelcome {
			ch <- result{err: fmt.Errorf("expected %s, got %s", outgoing.TypeWelcome, frame.Type)}
			return
		}
		welcome := outgoing.Welcome{}
		err = json.Unmarshal(frame.Payload, &welcome)
		ch <- result{welcome: welcome, err: err}
	}()

	select {
	case r := <-ch:
		return r.welcome, r.err
	case <-ctx.Done():
		return outgoing.Welcome{}, ctx.Err()
	}
}

func (c *Client) run() {
	defer close(c.done)
	defer c.peers.Close()

	for {
		frame, err := c.signal.Receive()
		if err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			log.Debug().Err(err).Msg("Signal closed")
			return
		}
		if err := c.Dispatch(frame); err != nil {
			log.Debug().Err(err).Str("type", frame.Type).Msg("Drop frame")
		}
	}
}

// ID 返回服务器分配的连接ID
func (c *Client) ID() xid.ID {
	return c.welcome.ID
}

// Welcome 返回连接时收到的欢迎消息
func (c *Client) Welcome() outgoing.Welcome {
	return c.welcome
}

// Roster 返回本地的房间视图
func (c *Client) Roster() *Roster {
	return c.roster
}

// Peers 返回点对点连接管理器
func (c *Client) Peers() *PeerManager {
	return c.peers
}

// Watchers 返回自己的共享最近一次的观看者列表
func (c *Client) Watchers() []outgoing.Watcher {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]outgoing.Watcher(nil), c.watchers...)
}

// Done 在连接断开后关闭
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err 返回连接断开的原因
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Join 进入办公室
// 邻近计算需要知道自己的房间，所以房间必须显式给出
func (c *Client) Join(room string, position grid.Position, avatar string) error {
	if room == "" {
		return errors.New("room is required")
	}
	c.roster.SetSelf(position, room)
	return c.signal.Send(incoming.JoinOffice{Position: &position, Room: room, Avatar: avatar})
}

// Move 移动到新的位置或房间，并立即重新计算邻近集合
func (c *Client) Move(position grid.Position, room string) error {
	c.roster.SetSelf(position, room)
	if err := c.signal.Send(incoming.UserMove{Position: &position, Room: room}); err != nil {
		return err
	}
	c.reconcile()
	return nil
}

// StartSharing 开始共享采集源
func (c *Client) StartSharing(capture *Capture) error {
	return c.peers.StartSharing(capture)
}

// StopSharing 停止共享
func (c *Client) StopSharing() error {
	return c.peers.StopSharing()
}

// SendDirectMessage 给用户发私信
func (c *Client) SendDirectMessage(toUserID, message string) error {
	return c.signal.Send(incoming.SendDirectMessage{ToUserID: toUserID, Message: message})
}

// SendRoomMessage 在当前房间里发消息
func (c *Client) SendRoomMessage(message string) error {
	return c.signal.Send(incoming.SendMessage{Message: message})
}

// Close 关闭所有点对点连接并断开服务器
func (c *Client) Close() error {
	c.peers.Close()
	err := c.signal.Close()
	<-c.done
	return err
}

// Dispatch 处理服务器发来的一条消息
func (c *Client) Dispatch(frame Frame) error {
	switch frame.Type {
	case outgoing.TypeWelcome:
		return nil
	case outgoing.TypeRoomUsers:
		users := outgoing.RoomUsers{}
		if err := decode(frame, &users); err != nil {
			return err
		}
		c.roster.Reset(users)
		c.reconcile()
	case outgoing.TypeUserJoined:
		user := outgoing.UserJoined{}
		if err := decode(frame, &user); err != nil {
			return err
		}
		c.roster.Joined(outgoing.User(user))
		c.reconcile()
	case outgoing.TypeUserMoved:
		moved := outgoing.UserMoved{}
		if err := decode(frame, &moved); err != nil {
			return err
		}
		c.roster.Moved(moved)
		c.reconcile()
	case outgoing.TypeUserLeft:
		left := outgoing.UserLeft{}
		if err := decode(frame, &left); err != nil {
			return err
		}
		c.roster.Left(left.ID)
		c.reconcile()
	case outgoing.TypeScreenshareActive:
		active := outgoing.ScreenshareActive{}
		if err := decode(frame, &active); err != nil {
			return err
		}
		c.roster.SetSharers(active.SharerIDs)
		c.reconcile()
	case outgoing.TypeScreenshareStarted:
		started := outgoing.ScreenshareStarted{}
		if err := decode(frame, &started); err != nil {
			return err
		}
		c.roster.SharerStarted(started.SharerID)
		c.reconcile()
	case outgoing.TypeScreenshareStopped:
		stopped := outgoing.ScreenshareStopped{}
		if err := decode(frame, &stopped); err != nil {
			return err
		}
		c.roster.SharerStopped(stopped.SharerID)
		c.peers.HandleShareStopped(stopped.SharerID)
		if stopped.SharerID == c.ID() {
			c.setWatchers(nil)
		}
		c.reconcile()
	case outgoing.TypeScreenshareSubscribe:
		msg := outgoing.ScreenshareSubscribe{}
		if err := decode(frame, &msg); err != nil {
			return err
		}
		c.peers.HandleSubscribe(msg.From)
	case outgoing.TypeScreenshareUnsubscribe:
		msg := outgoing.ScreenshareUnsubscribe{}
		if err := decode(frame, &msg); err != nil {
			return err
		}
		c.peers.HandleUnsubscribe(msg.From)
	case outgoing.TypeScreenshareWatchers:
		msg := outgoing.ScreenshareWatchers{}
		if err := decode(frame, &msg); err != nil {
			return err
		}
		c.setWatchers(msg.Watchers)
		if c.opts.OnWatchers != nil {
			c.opts.OnWatchers(msg)
		}
	case outgoing.TypeWebRTCOffer:
		msg := outgoing.WebRTCOffer{}
		if err := decode(frame, &msg); err != nil {
			return err
		}
		c.peers.HandleOffer(msg.From, msg.SDP)
	case outgoing.TypeWebRTCAnswer:
		msg := outgoing.WebRTCAnswer{}
		if err := decode(frame, &msg); err != nil {
			return err
		}
		c.peers.HandleAnswer(msg.From, msg.SDP)
	case outgoing.TypeWebRTCICECandidate:
		msg := outgoing.WebRTCICECandidate{}
		if err := decode(frame, &msg); err != nil {
			return err
		}
		c.peers.HandleCandidate(msg.From, msg.Candidate)
	case outgoing.TypeNewDirectMessage:
		msg := outgoing.NewDirectMessage{}
		if err := decode(frame, &msg); err != nil {
			return err
		}
		if c.opts.OnDirectMessage != nil {
			c.opts.OnDirectMessage(msg)
		}
	case outgoing.TypeNewMessage:
		msg := outgoing.NewMessage{}
		if err := decode(frame, &msg); err != nil {
			return err
		}
		if c.opts.OnRoomMessage != nil {
			c.opts.OnRoomMessage(msg)
		}
	default:
		return errors.New("unknown type")
	}
	return nil
}

func (c *Client) setWatchers(watchers []outgoing.Watcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = watchers
}

// reconcile 按当前视图重新计算邻近集合
// 离开范围的共享者在这里立即取消订阅，进入范围的共享者立即订阅
func (c *Client) reconcile() {
	c.reconcileLock.Lock()
	defer c.reconcileLock.Unlock()

	self, peers, sharers := c.roster.Snapshot()
	radius := c.welcome.ProximityRadius
	if radius <= 0 {
		radius = proximity.DefaultRadius
	}
	result := proximity.Compute(self, peers, radius, sharers)

	for _, sharer := range c.peers.Viewing() {
		if !result.IsEligible(sharer) {
			c.peers.Unsubscribe(sharer)
		}
	}
	for _, sharer := range result.EligibleSharers {
		c.peers.Subscribe(sharer)
	}

	if c.opts.OnProximity != nil {
		c.opts.OnProximity(result)
	}
}

func decode(frame Frame, v interface{}) error {
	if err := json.Unmarshal(frame.Payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", frame.Type, err)
	}
	return nil
}
