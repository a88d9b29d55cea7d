package ws

import (
	"context"
	"fmt"
	"time"

	"github.com/AsterZephyr/voffice/store"
	"github.com/AsterZephyr/voffice/ws/incoming"
	"github.com/AsterZephyr/voffice/ws/outgoing"
	"github.com/rs/xid"
)

// SendDirectMessage 表示给某个用户发私信
type SendDirectMessage incoming.SendDirectMessage

// Execute 保存消息，并发给接收者和发送者的所有连接
// 接收者不在线时消息只会被保存
func (e *SendDirectMessage) Execute(o *Office, info ClientInfo) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg, err := o.messages.Append(ctx, info.Identity.UserID, e.ToUserID, e.Message)
	if err != nil {
		return fmt.Errorf("store direct message: %w", err)
	}
	directMessagesTotal.Inc()

	out := outgoing.NewDirectMessage{
		ID:         msg.ID,
		FromUserID: msg.FromUserID,
		ToUserID:   msg.ToUserID,
		Message:    msg.Message,
		Timestamp:  msg.Timestamp,
	}
	for _, id := range o.connectionsOf(msg.ToUserID, msg.FromUserID) {
		o.send(id, out)
	}
	return nil
}

// connectionsOf 返回属于这些用户的全部连接，按连接ID排序且不重复
func (o *Office) connectionsOf(userIDs ...string) []xid.ID {
	result := []xid.ID{}
	for id, info := range o.connected {
		for _, userID := range userIDs {
			if info.Identity.UserID == userID {
				result = append(result, id)
				break
			}
		}
	}
	xid.Sort(result)
	return result
}

// SendMessage 表示在当前房间里发消息
type SendMessage incoming.SendMessage

// Execute 把消息广播给房间里的所有人，包括发送者
func (e *SendMessage) Execute(o *Office, info ClientInfo) error {
	member, ok := o.presence.Get(info.ID)
	if !ok {
		return ErrNotRegistered
	}
	if err := store.ValidateText(e.Message); err != nil {
		return err
	}
	o.broadcast(member.Room, outgoing.NewMessage{
		ID:        info.ID,
		Name:      member.Name,
		Message:   e.Message,
		Timestamp: time.Now().UTC(),
	}, xid.NilID())
	return nil
}
