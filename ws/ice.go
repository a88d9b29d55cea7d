package ws

import (
	"fmt"
	"net"

	"github.com/AsterZephyr/voffice/config"
	"github.com/AsterZephyr/voffice/ws/outgoing"
)

// iceServers 根据连接模式生成下发给客户端的ICE服务器
func (o *Office) iceServers(info ClientInfo) ([]outgoing.ICEServer, error) {
	servers := []outgoing.ICEServer{}
	if o.config.ConnectionMode == config.ConnectionLocal || o.config.ConnectionMode == "" {
		return servers, nil
	}
	if o.config.TurnIPProvider == nil {
		return servers, fmt.Errorf("no ip provider for connection mode %s", o.config.ConnectionMode)
	}

	v4, v6, err := o.config.TurnIPProvider.Get()
	if err != nil {
		return servers, err
	}

	switch o.config.ConnectionMode {
	case config.ConnectionSTUN:
		servers = append(servers, outgoing.ICEServer{URLs: o.addresses("stun", v4, v6, false)})
	case config.ConnectionTURN:
		if o.turnServer == nil {
			return servers, fmt.Errorf("turn server not started")
		}
		username, password := o.turnServer.Credentials(info.ID.String(), info.Addr)
		servers = append(servers, outgoing.ICEServer{
			URLs:       o.addresses("turn", v4, v6, true),
			Credential: password,
			Username:   username,
		})
	}
	return servers, nil
}

// addresses 生成ICE服务器的URL地址列表
func (o *Office) addresses(prefix string, v4, v6 net.IP, tcp bool) (result []string) {
	if v4 != nil {
		result = append(result, fmt.Sprintf("%s:%s:%s", prefix, v4.String(), o.config.TurnPort))
		if tcp {
			result = append(result, fmt.Sprintf("%s:%s:%s?transport=tcp", prefix, v4.String(), o.config.TurnPort))
		}
	}
	if v6 != nil {
		result = append(result, fmt.Sprintf("%s:[%s]:%s", prefix, v6.String(), o.config.TurnPort))
		if tcp {
			result = append(result, fmt.Sprintf("%s:[%s]:%s?transport=tcp", prefix, v6.String(), o.config.TurnPort))
		}
	}
	return
}
