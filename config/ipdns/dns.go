package ipdns

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DNS 通过域名解析获取IP地址，结果会缓存一段时间
// 适用于动态IP的部署环境
type DNS struct {
	Domain   string        // 要解析的域名
	Resolver *net.Resolver // 为nil时使用默认解析器
	TTL      time.Duration // 缓存时长，为0时默认30秒

	sync.Mutex
	v4      net.IP
	v6      net.IP
	err     error
	refresh time.Time
}

// Get 实现Provider接口
func (s *DNS) Get() (net.IP, net.IP, error) {
	s.Lock()
	defer s.Unlock()

	if time.Now().Before(s.refresh) {
		return s.v4, s.v6, s.err
	}

	ttl := s.TTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	s.v4, s.v6, s.err = s.lookup()
	s.refresh = time.Now().Add(ttl)
	if s.err != nil {
		log.Err(s.err).Str("domain", s.Domain).Msg("DNS lookup")
	}
	return s.v4, s.v6, s.err
}

func (s *DNS) lookup() (net.IP, net.IP, error) {
	resolver := s.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	addrs, err := resolver.LookupIPAddr(ctx, s.Domain)
	if err != nil {
		return nil, nil, err
	}

	var v4, v6 net.IP
	for _, addr := range addrs {
		if addr.IP.To4() != nil {
			if v4 == nil {
				v4 = addr.IP
			}
		} else if v6 == nil {
			v6 = addr.IP
		}
	}
	if v4 == nil && v6 == nil {
		return nil, nil, errors.New("no A or AAAA record for " + s.Domain)
	}
	return v4, v6, nil
}
