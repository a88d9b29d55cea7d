package ws

import (
	"github.com/AsterZephyr/voffice/ws/incoming"
	"github.com/AsterZephyr/voffice/ws/outgoing"
	"github.com/rs/xid"
)

// StartScreenshare 表示开始共享屏幕
type StartScreenshare incoming.StartScreenshare

// Execute 在当前房间开始共享，并通知房间里的所有人
// 重复开始不会产生新的通知
func (e *StartScreenshare) Execute(o *Office, info ClientInfo) error {
	member, ok := o.presence.Get(info.ID)
	if !ok {
		return ErrNotRegistered
	}
	if !o.sharing.Start(info.ID, member.Room) {
		return nil
	}
	shareStartedTotal.Inc()
	o.broadcast(member.Room, outgoing.ScreenshareStarted{SharerID: info.ID}, xid.NilID())
	return nil
}
