package ws

import (
	"github.com/rs/xid"
)

// ShareSession 是一个正在进行的屏幕共享
type ShareSession struct {
	SharerID xid.ID
	Room     string
	// Subscribers 是请求观看的连接
	Subscribers map[xid.ID]struct{}
	// Watchers 是已经收到媒体流的连接，是 Subscribers 的子集
	Watchers map[xid.ID]struct{}
}

// WatcherIDs 返回排序后的观看者
func (s *ShareSession) WatcherIDs() []xid.ID {
	return sortedIDs(s.Watchers)
}

// SubscriberIDs 返回排序后的订阅者
func (s *ShareSession) SubscriberIDs() []xid.ID {
	return sortedIDs(s.Subscribers)
}

// ViewerDrop 描述一个观看者离开时受影响的共享
type ViewerDrop struct {
	SharerID   xid.ID
	Subscribed bool
	Watching   bool
}

// Sharing 记录所有屏幕共享及其订阅关系
// 和Presence一样只能在事件循环中访问
type Sharing struct {
	sessions map[xid.ID]*ShareSession
}

// NewSharing 创建一个空的共享表
func NewSharing() *Sharing {
	return &Sharing{sessions: map[xid.ID]*ShareSession{}}
}

// Start 在room中开始共享，已经在共享时返回false
func (s *Sharing) Start(sharer xid.ID, room string) bool {
	if _, ok := s.sessions[sharer]; ok {
		return false
	}
	s.sessions[sharer] = &ShareSession{
		SharerID:    sharer,
		Room:        room,
		Subscribers: map[xid.ID]struct{}{},
		Watchers:    map[xid.ID]struct{}{},
	}
	return true
}

// Stop 结束共享并返回被结束的会话
func (s *Sharing) Stop(sharer xid.ID) (*ShareSession, bool) {
	session, ok := s.sessions[sharer]
	if ok {
		delete(s.sessions, sharer)
	}
	return session, ok
}

// Session 返回某个共享者的会话
func (s *Sharing) Session(sharer xid.ID) (*ShareSession, bool) {
	session, ok := s.sessions[sharer]
	return session, ok
}

// Active 返回房间内所有共享者，按连接ID排序
func (s *Sharing) Active(room string) []xid.ID {
	result := []xid.ID{}
	for id, session := range s.sessions {
		if session.Room == room {
			result = append(result, id)
		}
	}
	xid.Sort(result)
	return result
}

// Subscribe 记录订阅关系，共享不存在时返回false
func (s *Sharing) Subscribe(viewer, sharer xid.ID) bool {
	session, ok := s.sessions[sharer]
	if !ok || viewer == sharer {
		return false
	}
	session.Subscribers[viewer] = struct{}{}
	return true
}

// Unsubscribe 取消订阅，同时移出观看者列表
// 返回之前是否订阅过，以及观看者列表是否变化
func (s *Sharing) Unsubscribe(viewer, sharer xid.ID) (bool, bool) {
	session, ok := s.sessions[sharer]
	if !ok {
		return false, false
	}
	_, subscribed := session.Subscribers[viewer]
	_, watching := session.Watchers[viewer]
	delete(session.Subscribers, viewer)
	delete(session.Watchers, viewer)
	return subscribed, watching
}

// Watch 把订阅者加入观看者列表，列表变化时返回true
func (s *Sharing) Watch(viewer, sharer xid.ID) bool {
	session, ok := s.sessions[sharer]
	if !ok {
		return false
	}
	if _, subscribed := session.Subscribers[viewer]; !subscribed {
		return false
	}
	if _, watching := session.Watchers[viewer]; watching {
		return false
	}
	session.Watchers[viewer] = struct{}{}
	return true
}

// StopWatching 把连接移出观看者列表，列表变化时返回true
func (s *Sharing) StopWatching(viewer, sharer xid.ID) bool {
	session, ok := s.sessions[sharer]
	if !ok {
		return false
	}
	if _, watching := session.Watchers[viewer]; !watching {
		return false
	}
	delete(session.Watchers, viewer)
	return true
}

// DropViewer 把连接从所有共享的订阅者和观看者中移除
func (s *Sharing) DropViewer(viewer xid.ID) []ViewerDrop {
	var drops []ViewerDrop
	for _, id := range s.sharerIDs() {
		session := s.sessions[id]
		_, subscribed := session.Subscribers[viewer]
		_, watching := session.Watchers[viewer]
		if !subscribed && !watching {
			continue
		}
		delete(session.Subscribers, viewer)
		delete(session.Watchers, viewer)
		drops = append(drops, ViewerDrop{SharerID: id, Subscribed: subscribed, Watching: watching})
	}
	return drops
}

func (s *Sharing) sharerIDs() []xid.ID {
	ids := make([]xid.ID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	xid.Sort(ids)
	return ids
}

func sortedIDs(set map[xid.ID]struct{}) []xid.ID {
	ids := make([]xid.ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	xid.Sort(ids)
	return ids
}
