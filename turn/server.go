package turn

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/AsterZephyr/voffice/config"
	"github.com/AsterZephyr/voffice/config/ipdns"
	"github.com/AsterZephyr/voffice/util"
	"github.com/pion/randutil"
	"github.com/pion/turn/v4"
	"github.com/rs/zerolog/log"
)

// Server 为每个连接发放和撤销TURN凭证
type Server interface {
	// Credentials 为指定ID和IP地址生成TURN用户名和密码
	Credentials(id string, addr net.IP) (string, string)
	// Disallow 撤销指定用户名的访问权限
	Disallow(username string)
}

// InternalServer 是内嵌在本进程中的TURN服务器
type InternalServer struct {
	lock   sync.RWMutex
	lookup map[string]Entry
	server *turn.Server
}

// ExternalServer 使用外部TURN服务器（例如coturn）的共享密钥生成临时凭证
type ExternalServer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Entry 是内部服务器中的一个凭证
type Entry struct {
	addr     net.IP
	password []byte
}

// Realm 是TURN服务器的域
const Realm = "voffice"

// Generator 分配中继地址，并把对外公布的IP替换为配置的公网IP
type Generator struct {
	turn.RelayAddressGenerator
	IPProvider ipdns.Provider
}

// AllocatePacketConn 重写了基础实现以使用配置的IP地址
func (r *Generator) AllocatePacketConn(network string, requestedPort int) (net.PacketConn, net.Addr, error) {
	conn, addr, err := r.RelayAddressGenerator.AllocatePacketConn(network, requestedPort)
	if err != nil {
		return conn, addr, err
	}
	relayAddr := *addr.(*net.UDPAddr)

	v4, v6, err := r.IPProvider.Get()
	if err != nil {
		return conn, addr, err
	}

	if v6 == nil || (relayAddr.IP.To4() != nil && v4 != nil) {
		relayAddr.IP = v4
	} else {
		relayAddr.IP = v6
	}
	log.Debug().Str("addr", addr.String()).Str("relayaddr", relayAddr.String()).Msg("TURN allocated")
	return conn, &relayAddr, nil
}

// Start 根据配置启动内部TURN服务器，或者返回外部TURN的凭证生成器
func Start(conf config.Config) (Server, error) {
	if conf.TurnExternal {
		return newExternalServer(conf), nil
	}
	svr, err := newInternalServer(conf)
	if err != nil {
		return nil, err
	}
	return svr, nil
}

func newExternalServer(conf config.Config) *ExternalServer {
	return &ExternalServer{
		secret: []byte(conf.TurnExternalSecret),
		ttl:    24 * time.Hour,
		now:    time.Now,
	}
}

func newInternalServer(conf config.Config) (*InternalServer, error) {
	udpListener, err := net.ListenPacket("udp", conf.TurnAddress)
	if err != nil {
		return nil, fmt.Errorf("udp: could not listen on %s: %w", conf.TurnAddress, err)
	}
	tcpListener, err := net.Listen("tcp", conf.TurnAddress)
	if err != nil {
		_ = udpListener.Close()
		return nil, fmt.Errorf("tcp: could not listen on %s: %w", conf.TurnAddress, err)
	}

	svr := &InternalServer{lookup: map[string]Entry{}}

	gen := &Generator{
		RelayAddressGenerator: generator(conf),
		IPProvider:            conf.TurnIPProvider,
	}

	var permissions turn.PermissionHandler = func(clientAddr net.Addr, peerIP net.IP) bool {
		for _, cidr := range conf.TurnDenyPeersParsed {
			if cidr.Contains(peerIP) {
				return false
			}
		}
		return true
	}

	svr.server, err = turn.NewServer(turn.ServerConfig{
		Realm:       Realm,
		AuthHandler: svr.authenticate,
		ListenerConfigs: []turn.ListenerConfig{
			{Listener: tcpListener, RelayAddressGenerator: gen, PermissionHandler: permissions},
		},
		PacketConnConfigs: []turn.PacketConnConfig{
			{PacketConn: udpListener, RelayAddressGenerator: gen, PermissionHandler: permissions},
		},
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("addr", conf.TurnAddress).Msg("Start TURN/STUN")
	return svr, nil
}

// generator 根据配置选择中继地址生成器，配置了端口范围时只在范围内分配端口
func generator(conf config.Config) turn.RelayAddressGenerator {
	min, max, useRange := conf.PortRange()
	if useRange {
		log.Debug().Uint16("min", min).Uint16("max", max).Msg("Using Port Range")
		return &turn.RelayAddressGeneratorPortRange{
			RelayAddress: net.IPv4zero,
			Address:      "0.0.0.0",
			MinPort:      min,
			MaxPort:      max,
			Rand:         randutil.NewMathRandomGenerator(),
		}
	}
	return &turn.RelayAddressGeneratorStatic{RelayAddress: net.IPv4zero, Address: "0.0.0.0"}
}

// Close 停止内部TURN服务器
func (a *InternalServer) Close() error {
	if a.server == nil {
		return nil
	}
	return a.server.Close()
}

func (a *InternalServer) allow(username, password string, addr net.IP) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.lookup[username] = Entry{
		addr:     addr,
		password: turn.GenerateAuthKey(username, Realm, password),
	}
}

// Disallow 实现Server接口
func (a *InternalServer) Disallow(username string) {
	a.lock.Lock()
	defer a.lock.Unlock()

	delete(a.lookup, username)
}

// Disallow 实现Server接口，外部服务器的凭证在TTL到期后自动失效
func (a *ExternalServer) Disallow(username string) {
}

func (a *InternalServer) authenticate(username, realm string, addr net.Addr) ([]byte, bool) {
	a.lock.RLock()
	defer a.lock.RUnlock()

	entry, ok := a.lookup[username]
	if !ok {
		log.Debug().Interface("addr", addr).Str("username", username).Msg("TURN username not found")
		return nil, false
	}

	log.Debug().Interface("addr", addr.String()).Str("realm", realm).Msg("TURN authenticated")
	return entry.password, true
}

// Credentials 实现Server接口，每次生成新的随机密码
func (a *InternalServer) Credentials(id string, addr net.IP) (string, string) {
	password := util.RandString(20)
	a.allow(id, password, addr)
	return id, password
}

// Credentials 实现Server接口，使用TURN REST API约定的HMAC-SHA1临时凭证
func (a *ExternalServer) Credentials(id string, addr net.IP) (string, string) {
	username := fmt.Sprintf("%d:%s", a.now().Add(a.ttl).Unix(), id)
	mac := hmac.New(sha1.New, a.secret)
	_, _ = mac.Write([]byte(username))
	password := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return username, password
}
