package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AsterZephyr/voffice/config/ipdns"
	"github.com/AsterZephyr/voffice/config/mode"
	"github.com/AsterZephyr/voffice/grid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

const prefix = "voffice"

// 按优先级排列，先加载的文件优先（godotenv不会覆盖已有的环境变量）
var files = []string{"voffice.config.development.local", "voffice.config.development", "voffice.config.local", "voffice.config", ".env"}

// Config 是服务器的全部配置，通过 VOFFICE_ 前缀的环境变量设置
type Config struct {
	LogLevel LogLevel `default:"info" split_words:"true"`

	ServerAddress      string            `default:":5050" split_words:"true"`
	ServerTLS          bool              `split_words:"true"`
	TLSCertFile        string            `split_words:"true"`
	TLSKeyFile         string            `split_words:"true"`
	TrustProxyHeaders  bool              `split_words:"true"`
	CorsAllowedOrigins []string          `split_words:"true"`
	CheckOrigin        func(string) bool `ignored:"true" json:"-"`

	// AuthSecret 是校验令牌用的HMAC密钥，至少32字节
	AuthSecret string `split_words:"true"`
	AuthIssuer string `split_words:"true"`

	ConnectionMode ConnectionMode `default:"local" split_words:"true"`
	ExternalIP     []string       `split_words:"true"`

	TurnAddress         string      `default:"0.0.0.0:3478" split_words:"true"`
	TurnPortRange       string      `split_words:"true"`
	TurnExternal        bool        `split_words:"true"`
	TurnExternalIP      []string    `split_words:"true"`
	TurnExternalPort    string      `default:"3478" split_words:"true"`
	TurnExternalSecret  string      `split_words:"true"`
	TurnDenyPeers       []string    `default:"0.0.0.0/8,127.0.0.1/8,::/128,::1/128,fe80::/10" split_words:"true"`
	TurnDenyPeersParsed []*net.IPNet `ignored:"true"`

	// TurnIPProvider 和 TurnPort 由 Get 根据上面的字段计算
	TurnIPProvider ipdns.Provider `ignored:"true"`
	TurnPort       string         `ignored:"true"`

	GridWidth       int      `default:"30" split_words:"true"`
	GridHeight      int      `default:"25" split_words:"true"`
	ProximityRadius int      `default:"3" split_words:"true"`
	Rooms           []string `default:"main-office,meeting-room,break-room"`
	DefaultRoom     string   `default:"main-office" split_words:"true"`

	// DatabaseDSN 为空时私信只保存在内存中
	DatabaseDSN string `split_words:"true"`
	Prometheus  bool
}

// FutureLog 是在日志系统初始化之前产生的日志
type FutureLog struct {
	Level zerolog.Level
	Msg   string
}

// Bounds 返回可行走区域
func (c Config) Bounds() grid.Bounds {
	return grid.Walkable(c.GridWidth, c.GridHeight)
}

// RoomAllowed 判断房间是否存在，未配置房间列表时接受任何非空房间名
func (c Config) RoomAllowed(room string) bool {
	if room == "" {
		return false
	}
	if len(c.Rooms) == 0 {
		return true
	}
	for _, r := range c.Rooms {
		if r == room {
			return true
		}
	}
	return false
}

// PortRange 解析TURN中继端口范围，格式为 min:max
func (c Config) PortRange() (uint16, uint16, bool) {
	min, max, err := parsePortRange(c.TurnPortRange)
	if err != nil || c.TurnPortRange == "" {
		return 0, 0, false
	}
	return min, max, true
}

// Get 读取配置文件和环境变量
// 返回的日志需要在日志系统初始化后输出，Fatal级别的日志表示无法启动
func Get() (Config, []FutureLog) {
	logs := []FutureLog{}
	dir, dirLog := getExecutableOrWorkDir()
	if dirLog != nil {
		logs = append(logs, *dirLog)
	}

	for _, file := range getFiles(dir) {
		_, fileErr := os.Stat(file)
		if fileErr == nil {
			if err := godotenv.Load(file); err != nil {
				logs = append(logs, futureFatal(fmt.Sprintf("cannot load file %s: %s", file, err)))
			} else {
				logs = append(logs, FutureLog{Level: zerolog.DebugLevel, Msg: fmt.Sprintf("Loading file %s", file)})
			}
		} else if !os.IsNotExist(fileErr) {
			logs = append(logs, FutureLog{Level: zerolog.WarnLevel, Msg: fmt.Sprintf("cannot read file %s because %s", file, fileErr)})
		}
	}

	config := Config{}
	if err := envconfig.Process(prefix, &config); err != nil {
		logs = append(logs, futureFatal(fmt.Sprintf("cannot parse env params: %s", err)))
		return config, logs
	}

	logs = append(logs, config.validate()...)
	return config, logs
}

func (c *Config) validate() []FutureLog {
	var logs []FutureLog

	if c.AuthSecret == "" {
		logs = append(logs, futureFatal("VOFFICE_AUTH_SECRET must be set"))
	} else if len(c.AuthSecret) < 32 {
		logs = append(logs, futureFatal("VOFFICE_AUTH_SECRET must be at least 32 bytes long"))
	}

	if c.ServerTLS && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		logs = append(logs, futureFatal("VOFFICE_TLS_CERT_FILE and VOFFICE_TLS_KEY_FILE must be set if TLS is enabled"))
	}

	c.CheckOrigin = originChecker(c.CorsAllowedOrigins)

	if c.GridWidth < 3 || c.GridHeight < 3 {
		logs = append(logs, futureFatal(fmt.Sprintf("grid %dx%d is too small", c.GridWidth, c.GridHeight)))
	}
	if c.ProximityRadius < 0 {
		logs = append(logs, futureFatal("VOFFICE_PROXIMITY_RADIUS must not be negative"))
	}
	if !c.RoomAllowed(c.DefaultRoom) {
		logs = append(logs, futureFatal(fmt.Sprintf("default room %q is not in VOFFICE_ROOMS", c.DefaultRoom)))
	}

	for _, cidr := range c.TurnDenyPeers {
		_, network, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			logs = append(logs, futureFatal(fmt.Sprintf("invalid VOFFICE_TURN_DENY_PEERS %q: %s", cidr, err)))
			continue
		}
		c.TurnDenyPeersParsed = append(c.TurnDenyPeersParsed, network)
	}

	if _, _, err := parsePortRange(c.TurnPortRange); err != nil {
		logs = append(logs, futureFatal(fmt.Sprintf("invalid VOFFICE_TURN_PORT_RANGE: %s", err)))
	}

	if c.ConnectionMode == ConnectionLocal {
		return logs
	}

	if c.TurnExternal {
		if c.TurnExternalSecret == "" {
			logs = append(logs, futureFatal("VOFFICE_TURN_EXTERNAL_SECRET must be set if external TURN is used"))
		}
		c.TurnPort = c.TurnExternalPort
		provider, err := parseIPProvider(c.TurnExternalIP, "VOFFICE_TURN_EXTERNAL_IP")
		if err != nil {
			logs = append(logs, futureFatal(err.Error()))
		}
		c.TurnIPProvider = provider
		return logs
	}

	_, port, err := net.SplitHostPort(c.TurnAddress)
	if err != nil {
		logs = append(logs, futureFatal(fmt.Sprintf("invalid VOFFICE_TURN_ADDRESS: %s", err)))
	}
	c.TurnPort = port

	provider, err := parseIPProvider(c.ExternalIP, "VOFFICE_EXTERNAL_IP")
	if err != nil {
		logs = append(logs, futureFatal(err.Error()))
	}
	c.TurnIPProvider = provider
	return logs
}

// parseIPProvider 支持 IP 列表（最多一个IPv4和一个IPv6）或者 dns:域名
func parseIPProvider(values []string, name string) (ipdns.Provider, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%s must be set when TURN or STUN is used", name)
	}

	if len(values) == 1 && strings.HasPrefix(values[0], "dns:") {
		domain := strings.TrimPrefix(values[0], "dns:")
		if domain == "" {
			return nil, fmt.Errorf("%s: empty domain", name)
		}
		return &ipdns.DNS{Domain: domain}, nil
	}

	static := &ipdns.Static{}
	for _, value := range values {
		ip := net.ParseIP(strings.TrimSpace(value))
		switch {
		case ip == nil:
			return nil, fmt.Errorf("%s: invalid ip %q", name, value)
		case ip.To4() != nil:
			if static.V4 != nil {
				return nil, fmt.Errorf("%s: only one IPv4 address is allowed", name)
			}
			static.V4 = ip
		default:
			if static.V6 != nil {
				return nil, fmt.Errorf("%s: only one IPv6 address is allowed", name)
			}
			static.V6 = ip
		}
	}
	return static, nil
}

func parsePortRange(value string) (uint16, uint16, error) {
	if value == "" {
		return 0, 0, nil
	}
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, 0, errors.New("must be in the format min:max")
	}
	min, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("min: %w", err)
	}
	max, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("max: %w", err)
	}
	if min == 0 || min > max {
		return 0, 0, fmt.Errorf("invalid range %d:%d", min, max)
	}
	return uint16(min), uint16(max), nil
}

func originChecker(allowed []string) func(string) bool {
	normalized := make([]string, 0, len(allowed))
	for _, origin := range allowed {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(origin)))
	}
	return func(origin string) bool {
		origin = strings.ToLower(origin)
		for _, o := range normalized {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

func getExecutableOrWorkDir() (string, *FutureLog) {
	dir, err := getExecutableDir()
	// when using `go run main.go` the executable lives in th temp directory therefore the env.development
	// will not be read, this enforces that the current work directory is used in dev mode.
	if err != nil || mode.Get() == mode.Dev {
		return filepath.Dir("."), err
	}
	return dir, nil
}

func getExecutableDir() (string, *FutureLog) {
	ex, err := os.Executable()
	if err != nil {
		return "", &FutureLog{
			Level: zerolog.ErrorLevel,
			Msg:   "Could not get path of executable using working directory instead. " + err.Error(),
		}
	}
	return filepath.Dir(ex), nil
}

func getFiles(relativeTo string) []string {
	var result []string
	for _, file := range files {
		result = append(result, filepath.Join(relativeTo, file))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		result = append(result, filepath.Join(homeDir, ".config/voffice/server.config"))
	}
	result = append(result, "/etc/voffice/server.config")
	return result
}

func futureFatal(msg string) FutureLog {
	return FutureLog{
		Level: zerolog.FatalLevel,
		Msg:   msg,
	}
}
