package ws

import (
	"fmt"

	"github.com/AsterZephyr/voffice/auth"
	"github.com/AsterZephyr/voffice/grid"
	"github.com/AsterZephyr/voffice/store"
	"github.com/AsterZephyr/voffice/ws/incoming"
	"github.com/AsterZephyr/voffice/ws/outgoing"
)

// DefaultAvatar 是没有指定头像时使用的头像
const DefaultAvatar = "👨"

// JoinOffice 表示进入办公室
type JoinOffice incoming.JoinOffice

// Execute 登记位置和房间，通知房间里的其他人，并把房间快照发给自己
// 已经加入过的连接再次加入时按移动处理
func (e *JoinOffice) Execute(o *Office, info ClientInfo) error {
	room := e.Room
	if room == "" {
		room = o.config.DefaultRoom
	}
	if !o.config.RoomAllowed(room) {
		return fmt.Errorf("room %q does not exist", room)
	}
	position := grid.Spawn
	if e.Position != nil {
		position = *e.Position
	}

	if member, ok := o.presence.Get(info.ID); ok {
		if err := o.move(info.ID, position, room); err != nil {
			return err
		}
		if member.Room == room {
			o.sendSnapshot(info.ID, room)
		}
		return nil
	}

	identity := info.Identity
	if name := store.NormalizeName(identity.Name); name != "" {
		identity.Name = name
	} else {
		identity.Name = auth.DefaultName
	}
	avatar := e.Avatar
	if avatar == "" {
		avatar = DefaultAvatar
	}

	if err := o.presence.Register(info.ID, identity, avatar, position, room); err != nil {
		return err
	}
	usersJoinedTotal.Inc()

	member, _ := o.presence.Get(info.ID)
	o.broadcast(room, outgoing.UserJoined(member.snapshot()), info.ID)
	o.sendSnapshot(info.ID, room)
	o.confirmPosition(info.ID, position)
	return nil
}

// UserMove 表示移动位置或者切换房间
type UserMove incoming.UserMove

// Execute 更新位置，房间变化时处理离开和进入
func (e *UserMove) Execute(o *Office, info ClientInfo) error {
	if e.Position == nil || e.Room == "" {
		return fmt.Errorf("user-move requires position and room")
	}
	if !o.config.RoomAllowed(e.Room) {
		return fmt.Errorf("room %q does not exist", e.Room)
	}
	if _, ok := o.presence.Get(info.ID); !ok {
		return ErrNotRegistered
	}
	return o.move(info.ID, *e.Position, e.Room)
}
