package ws

import (
	"errors"
	"sort"

	"github.com/AsterZephyr/voffice/auth"
	"github.com/AsterZephyr/voffice/grid"
	"github.com/AsterZephyr/voffice/ws/outgoing"
	"github.com/rs/xid"
)

var (
	// ErrNoIdentity 表示连接没有通过认证
	ErrNoIdentity = errors.New("connection has no identity")
	// ErrNotRegistered 表示连接还没有加入办公室
	ErrNotRegistered = errors.New("connection is not registered")
)

// Member 是已加入办公室的一个连接
type Member struct {
	ID       xid.ID
	UserID   string
	Name     string
	Avatar   string
	Position grid.Position
	Room     string
}

func (m Member) snapshot() outgoing.User {
	return outgoing.User{
		ID:       m.ID,
		UserID:   m.UserID,
		Name:     m.Name,
		Avatar:   m.Avatar,
		Position: m.Position,
		Room:     m.Room,
	}
}

// Presence 记录每个连接的身份、位置和所在房间
// 不是并发安全的，只能在Office的事件循环中访问
type Presence struct {
	bounds  grid.Bounds
	members map[xid.ID]*Member
	rooms   map[string]map[xid.ID]struct{}
}

// NewPresence 创建一个空的在线状态表，所有坐标都会被限制在bounds内
func NewPresence(bounds grid.Bounds) *Presence {
	return &Presence{
		bounds:  bounds,
		members: map[xid.ID]*Member{},
		rooms:   map[string]map[xid.ID]struct{}{},
	}
}

// Register 登记一个新连接
func (p *Presence) Register(id xid.ID, identity auth.Identity, avatar string, position grid.Position, room string) error {
	if identity.UserID == "" {
		return ErrNoIdentity
	}
	if old, ok := p.members[id]; ok {
		p.leaveRoom(id, old.Room)
	}
	p.members[id] = &Member{
		ID:       id,
		UserID:   identity.UserID,
		Name:     identity.Name,
		Avatar:   avatar,
		Position: p.bounds.Clamp(position),
		Room:     room,
	}
	p.joinRoom(id, room)
	return nil
}

// UpdatePosition 更新位置和房间
// 房间变化时同时更新房间索引，并返回之前的房间
func (p *Presence) UpdatePosition(id xid.ID, position grid.Position, room string) (string, bool, error) {
	member, ok := p.members[id]
	if !ok {
		return "", false, ErrNotRegistered
	}
	member.Position = p.bounds.Clamp(position)

	prev := member.Room
	if prev == room {
		return prev, false, nil
	}
	p.leaveRoom(id, prev)
	member.Room = room
	p.joinRoom(id, room)
	return prev, true, nil
}

// Remove 删除连接，返回它最后所在的房间
func (p *Presence) Remove(id xid.ID) (string, bool) {
	member, ok := p.members[id]
	if !ok {
		return "", false
	}
	delete(p.members, id)
	p.leaveRoom(id, member.Room)
	return member.Room, true
}

// Get 返回连接的快照
func (p *Presence) Get(id xid.ID) (Member, bool) {
	member, ok := p.members[id]
	if !ok {
		return Member{}, false
	}
	return *member, true
}

// ListByRoom 返回房间内所有连接的快照，按连接ID排序
func (p *Presence) ListByRoom(room string) []Member {
	ids := p.rooms[room]
	result := make([]Member, 0, len(ids))
	for id := range ids {
		result = append(result, *p.members[id])
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.Compare(result[j].ID) < 0
	})
	return result
}

// Count 返回已加入的连接数
func (p *Presence) Count() int {
	return len(p.members)
}

func (p *Presence) joinRoom(id xid.ID, room string) {
	members, ok := p.rooms[room]
	if !ok {
		members = map[xid.ID]struct{}{}
		p.rooms[room] = members
	}
	members[id] = struct{}{}
}

func (p *Presence) leaveRoom(id xid.ID, room string) {
	members, ok := p.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(p.rooms, room)
	}
}
