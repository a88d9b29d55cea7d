package config

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// LogLevel 是可以从环境变量解析的日志级别
type LogLevel zerolog.Level

// Decode 实现envconfig.Decoder
func (l *LogLevel) Decode(value string) error {
	if value == "" {
		*l = LogLevel(zerolog.InfoLevel)
		return nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(value))
	if err != nil {
		return err
	}
	*l = LogLevel(level)
	return nil
}

// AsZeroLogLevel 转换为zerolog的级别
func (l LogLevel) AsZeroLogLevel() zerolog.Level {
	return zerolog.Level(l)
}

// ConnectionMode 决定下发给客户端的ICE服务器
type ConnectionMode string

const (
	// ConnectionLocal 只使用本地候选，不下发任何ICE服务器
	ConnectionLocal ConnectionMode = "local"
	// ConnectionSTUN 只下发STUN地址
	ConnectionSTUN ConnectionMode = "stun"
	// ConnectionTURN 下发带临时凭证的TURN地址
	ConnectionTURN ConnectionMode = "turn"
)

// Decode 实现envconfig.Decoder
func (m *ConnectionMode) Decode(value string) error {
	switch ConnectionMode(strings.ToLower(value)) {
	case ConnectionLocal, "":
		*m = ConnectionLocal
	case ConnectionSTUN:
		*m = ConnectionSTUN
	case ConnectionTURN:
		*m = ConnectionTURN
	default:
		return errors.New("invalid connection mode " + value + ", use local, stun or turn")
	}
	return nil
}
