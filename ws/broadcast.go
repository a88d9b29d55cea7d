package ws

import (
	"fmt"
	"time"

	"github.com/AsterZephyr/voffice/grid"
	"github.com/AsterZephyr/voffice/ws/outgoing"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

// send 把消息发给一个连接，连接不存在时返回false
func (o *Office) send(id xid.ID, msg outgoing.Message) bool {
	info, ok := o.connected[id]
	if !ok {
		return false
	}
	writeTimeout[outgoing.Message](info.Write, msg)
	return true
}

// broadcast 把消息发给房间里除except以外的所有连接
// except 为 xid.NilID() 时发给所有人
func (o *Office) broadcast(room string, msg outgoing.Message, except xid.ID) {
	for _, member := range o.presence.ListByRoom(room) {
		if member.ID == except {
			continue
		}
		o.send(member.ID, msg)
	}
}

// sendSnapshot 发送房间内的其他人以及正在共享的人
func (o *Office) sendSnapshot(id xid.ID, room string) {
	users := outgoing.RoomUsers{}
	for _, member := range o.presence.ListByRoom(room) {
		if member.ID == id {
			continue
		}
		users = append(users, member.snapshot())
	}
	o.send(id, users)
	o.send(id, outgoing.ScreenshareActive{SharerIDs: o.sharing.Active(room)})
}

// move 更新位置，房间变化时完成离开旧房间和进入新房间的通知
func (o *Office) move(id xid.ID, position grid.Position, room string) error {
	prev, changed, err := o.presence.UpdatePosition(id, position, room)
	if err != nil {
		return err
	}
	member, _ := o.presence.Get(id)

	if !changed {
		o.broadcast(room, outgoing.UserMoved{ID: id, Position: member.Position, Room: room}, xid.NilID())
		return nil
	}

	o.broadcast(prev, outgoing.UserLeft{ID: id}, id)
	o.releaseSharing(id, prev, true)
	o.broadcast(room, outgoing.UserJoined(member.snapshot()), id)
	o.sendSnapshot(id, room)
	o.confirmPosition(id, position)
	return nil
}

// confirmPosition 请求的位置被裁剪过时，把实际保存的位置发回给连接自己
// 快照里不包含自己，否则自己和别人看到的位置会不一致
func (o *Office) confirmPosition(id xid.ID, requested grid.Position) {
	member, ok := o.presence.Get(id)
	if !ok || member.Position == requested {
		return
	}
	o.send(id, outgoing.UserMoved{ID: id, Position: member.Position, Room: member.Room})
}

// releaseSharing 结束连接自己的共享，并取消它对其他共享的订阅
// notifySelf 为true时共享者本人也会收到 screenshare-stopped
func (o *Office) releaseSharing(id xid.ID, room string, notifySelf bool) {
	if session, ok := o.sharing.Stop(id); ok {
		shareStoppedTotal.Inc()
		stopped := outgoing.ScreenshareStopped{SharerID: id}
		o.broadcast(session.Room, stopped, id)
		if notifySelf {
			o.send(id, stopped)
		}
		log.Debug().Str("id", id.String()).Str("room", room).Msg("Screenshare released")
	}

	for _, drop := range o.sharing.DropViewer(id) {
		if drop.Subscribed {
			o.send(drop.SharerID, outgoing.ScreenshareUnsubscribe{From: id})
		}
		if drop.Watching {
			o.notifyWatchers(drop.SharerID)
		}
	}
}

// notifyWatchers 把当前观看者列表发给共享者本人
func (o *Office) notifyWatchers(sharer xid.ID) {
	session, ok := o.sharing.Session(sharer)
	if !ok {
		return
	}
	watchers := []outgoing.Watcher{}
	for _, id := range session.WatcherIDs() {
		name := ""
		if member, ok := o.presence.Get(id); ok {
			name = member.Name
		}
		watchers = append(watchers, outgoing.Watcher{ID: id, Name: name})
	}
	o.send(sharer, outgoing.ScreenshareWatchers{SharerID: sharer, Watchers: watchers})
}

// relay 把信令消息原样转发给目标连接
// 目标不存在时丢弃并计数
func (o *Office) relay(kind string, from, to xid.ID, msg outgoing.Message) {
	if from == to || !o.send(to, msg) {
		relayDroppedTotal.WithLabelValues(kind).Inc()
		log.Debug().Str("kind", kind).Str("from", from.String()).Str("to", to.String()).Msg("Relay dropped")
		return
	}
	relayedTotal.WithLabelValues(kind).Inc()
}

// writeTimeout 向通道发送消息，2秒内无法发送时记录警告并放弃
func writeTimeout[T any](ch chan<- T, msg T) {
	select {
	case <-time.After(2 * time.Second):
		log.Warn().Interface("event", fmt.Sprintf("%T", msg)).Interface("payload", msg).Msg("Client write loop didn't accept the message.")
	case ch <- msg:
	}
}
