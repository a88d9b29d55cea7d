package ws

import (
	"github.com/AsterZephyr/voffice/ws/outgoing"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

// Connected 在连接升级后由 Upgrade 发出
type Connected struct{}

// Execute 登记连接并发送欢迎消息
func (e *Connected) Execute(o *Office, info ClientInfo) error {
	o.connected[info.ID] = info
	connectionsGauge.Inc()

	servers, err := o.iceServers(info)
	if err != nil {
		log.Warn().Err(err).Str("id", info.ID.String()).Msg("could not create ice servers")
	}

	o.send(info.ID, outgoing.Welcome{
		ID:              info.ID,
		UserID:          info.Identity.UserID,
		Name:            info.Identity.Name,
		ICEServers:      servers,
		ProximityRadius: o.config.ProximityRadius,
	})
	return nil
}

// Disconnected 在读协程结束或写入失败时发出
type Disconnected struct {
	Code   int
	Reason string
}

// Execute 清理连接的全部状态
func (e *Disconnected) Execute(o *Office, info ClientInfo) error {
	e.executeNoError(o, info)
	return nil
}

func (e *Disconnected) executeNoError(o *Office, info ClientInfo) {
	if _, ok := o.connected[info.ID]; !ok {
		return
	}

	if member, ok := o.presence.Get(info.ID); ok {
		o.releaseSharing(info.ID, member.Room, false)
		o.presence.Remove(info.ID)
		o.broadcast(member.Room, outgoing.UserLeft{ID: info.ID}, xid.NilID())
		usersLeftTotal.Inc()
	}

	if o.turnServer != nil {
		o.turnServer.Disallow(info.ID.String())
	}

	delete(o.connected, info.ID)
	connectionsGauge.Dec()
	writeTimeout[outgoing.Message](info.Write, outgoing.CloseWriter{Code: e.Code, Reason: e.Reason})
}

// Health 通过事件循环读取连接数
type Health struct {
	Response chan int
}

// Execute 返回当前的连接数
func (e *Health) Execute(o *Office, info ClientInfo) error {
	e.Response <- len(o.connected)
	return nil
}
