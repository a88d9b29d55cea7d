package ws

import (
	"github.com/AsterZephyr/voffice/ws/incoming"
)

// ViewerStartedWatching 表示观看者已经收到媒体流
type ViewerStartedWatching incoming.ViewerStartedWatching

// Execute 观看者列表变化时通知共享者
// 没有订阅的连接发来的消息被忽略
func (e *ViewerStartedWatching) Execute(o *Office, info ClientInfo) error {
	if o.sharing.Watch(info.ID, e.SharerID) {
		o.notifyWatchers(e.SharerID)
	}
	return nil
}

// ViewerStoppedWatching 表示观看者不再观看
type ViewerStoppedWatching incoming.ViewerStoppedWatching

// Execute 观看者列表变化时通知共享者
func (e *ViewerStoppedWatching) Execute(o *Office, info ClientInfo) error {
	if o.sharing.StopWatching(info.ID, e.SharerID) {
		o.notifyWatchers(e.SharerID)
	}
	return nil
}
