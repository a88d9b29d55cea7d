package ws

import (
	"github.com/AsterZephyr/voffice/ws/incoming"
	"github.com/AsterZephyr/voffice/ws/outgoing"
	"github.com/rs/xid"
)

// StopScreenshare 表示停止共享屏幕
type StopScreenshare incoming.StopScreenshare

// Execute 结束共享并通知房间里的所有人，包括共享者本人
// 订阅者不会收到单独的取消订阅，它们根据 screenshare-stopped 关闭连接
func (e *StopScreenshare) Execute(o *Office, info ClientInfo) error {
	session, ok := o.sharing.Stop(info.ID)
	if !ok {
		return nil
	}
	shareStoppedTotal.Inc()
	o.broadcast(session.Room, outgoing.ScreenshareStopped{SharerID: info.ID}, xid.NilID())
	return nil
}
