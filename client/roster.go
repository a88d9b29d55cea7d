package client

import (
	"sort"
	"sync"

	"github.com/AsterZephyr/voffice/grid"
	"github.com/AsterZephyr/voffice/proximity"
	"github.com/AsterZephyr/voffice/ws/outgoing"
	"github.com/rs/xid"
)

// Roster 是客户端本地的房间视图，由服务器的广播驱动
type Roster struct {
	mu       sync.RWMutex
	self     xid.ID
	joined   bool
	position grid.Position
	room     string
	users    map[xid.ID]outgoing.User
	sharers  map[xid.ID]bool
}

// NewRoster 创建一个空的视图
func NewRoster(self xid.ID) *Roster {
	return &Roster{
		self:    self,
		users:   map[xid.ID]outgoing.User{},
		sharers: map[xid.ID]bool{},
	}
}

// SetSelf 记录自己的位置和房间
func (r *Roster) SetSelf(position grid.Position, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joined = true
	r.position = position
	r.room = room
}

// Self 返回自己的位置和房间
func (r *Roster) Self() (grid.Position, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.position, r.room, r.joined
}

// Reset 用 room-users 快照替换整个视图
func (r *Roster) Reset(users outgoing.RoomUsers) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = map[xid.ID]outgoing.User{}
	for _, user := range users {
		if user.ID == r.self {
			continue
		}
		r.users[user.ID] = user
	}
}

// Joined 处理 user-joined
func (r *Roster) Joined(user outgoing.User) {
	if user.ID == r.self {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
}

// Moved 处理 user-moved，自己的移动使用服务器限制后的位置
func (r *Roster) Moved(moved outgoing.UserMoved) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if moved.ID == r.self {
		r.position = moved.Position
		r.room = moved.Room
		return
	}
	user, ok := r.users[moved.ID]
	if !ok {
		user = outgoing.User{ID: moved.ID}
	}
	user.Position = moved.Position
	user.Room = moved.Room
	r.users[moved.ID] = user
}

// Left 处理 user-left
func (r *Roster) Left(id xid.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	delete(r.sharers, id)
}

// SetSharers 用 screenshare-active 替换共享者集合
func (r *Roster) SetSharers(ids []xid.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sharers = map[xid.ID]bool{}
	for _, id := range ids {
		r.sharers[id] = true
	}
}

func (r *Roster) SharerStarted(id xid.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sharers[id] = true
}

func (r *Roster) SharerStopped(id xid.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sharers, id)
}

// Users 返回房间里的其他人，按连接ID排序
func (r *Roster) Users() []outgoing.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]outgoing.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].ID.Compare(users[j].ID) < 0
	})
	return users
}

// Snapshot 返回邻近计算需要的全部输入
func (r *Roster) Snapshot() (proximity.Peer, []proximity.Peer, map[xid.ID]bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	self := proximity.Peer{ID: r.self, Position: r.position, Room: r.room}
	peers := make([]proximity.Peer, 0, len(r.users))
	for _, user := range r.users {
		peers = append(peers, proximity.Peer{ID: user.ID, Position: user.Position, Room: user.Room})
	}
	sharers := make(map[xid.ID]bool, len(r.sharers))
	for id := range r.sharers {
		sharers[id] = true
	}
	if !r.joined {
		peers = peers[:0]
	}
	return self, peers, sharers
}
