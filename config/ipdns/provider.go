package ipdns

import "net"

// Provider 提供TURN中继对外公布的IP地址
type Provider interface {
	// Get 返回当前的IPv4和IPv6地址，任意一个可以为nil
	Get() (net.IP, net.IP, error)
}

// Static 是固定IP的实现
type Static struct {
	V4 net.IP
	V6 net.IP
}

// Get 实现Provider接口
func (s *Static) Get() (net.IP, net.IP, error) {
	return s.V4, s.V6, nil
}
