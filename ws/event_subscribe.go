package ws

import (
	"fmt"

	"github.com/AsterZephyr/voffice/ws/incoming"
	"github.com/AsterZephyr/voffice/ws/outgoing"
)

// ScreenshareSubscribe 表示请求观看某个共享
type ScreenshareSubscribe incoming.ScreenshareSubscribe

// Execute 记录订阅并通知共享者，由共享者发起协商
// 共享者必须和观看者在同一个房间
func (e *ScreenshareSubscribe) Execute(o *Office, info ClientInfo) error {
	if e.SharerID == info.ID {
		return fmt.Errorf("cannot subscribe to own screenshare")
	}
	member, ok := o.presence.Get(info.ID)
	if !ok {
		return ErrNotRegistered
	}
	session, ok := o.sharing.Session(e.SharerID)
	if !ok || session.Room != member.Room {
		return fmt.Errorf("no active screenshare %s in room %s", e.SharerID, member.Room)
	}
	o.sharing.Subscribe(info.ID, e.SharerID)
	o.send(e.SharerID, outgoing.ScreenshareSubscribe{From: info.ID})
	return nil
}

// ScreenshareUnsubscribe 表示不再观看某个共享
type ScreenshareUnsubscribe incoming.ScreenshareUnsubscribe

// Execute 取消订阅并通知共享者
func (e *ScreenshareUnsubscribe) Execute(o *Office, info ClientInfo) error {
	subscribed, watchersChanged := o.sharing.Unsubscribe(info.ID, e.SharerID)
	if !subscribed {
		return nil
	}
	o.send(e.SharerID, outgoing.ScreenshareUnsubscribe{From: info.ID})
	if watchersChanged {
		o.notifyWatchers(e.SharerID)
	}
	return nil
}
