package config

import (
	"net"
	"testing"

	"github.com/AsterZephyr/voffice/config/ipdns"
	"github.com/AsterZephyr/voffice/grid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func fatals(logs []FutureLog) []string {
	var result []string
	for _, l := range logs {
		if l.Level == zerolog.FatalLevel {
			result = append(result, l.Msg)
		}
	}
	return result
}

func TestGet_defaults(t *testing.T) {
	t.Setenv("VOFFICE_AUTH_SECRET", testSecret)

	conf, logs := Get()

	assert.Empty(t, fatals(logs))
	assert.Equal(t, zerolog.InfoLevel, conf.LogLevel.AsZeroLogLevel())
	assert.Equal(t, ":5050", conf.ServerAddress)
	assert.Equal(t, ConnectionLocal, conf.ConnectionMode)
	assert.Equal(t, 3, conf.ProximityRadius)
	assert.Equal(t, []string{"main-office", "meeting-room", "break-room"}, conf.Rooms)
	assert.Equal(t, "main-office", conf.DefaultRoom)
	assert.Equal(t, grid.Bounds{MinX: 1, MinY: 1, MaxX: 28, MaxY: 23}, conf.Bounds())
	assert.Len(t, conf.TurnDenyPeersParsed, 5)
	assert.False(t, conf.CheckOrigin("https://example.org"))
}

func TestGet_missingSecret(t *testing.T) {
	t.Setenv("VOFFICE_AUTH_SECRET", "")

	_, logs := Get()

	assert.Contains(t, fatals(logs), "VOFFICE_AUTH_SECRET must be set")
}

func TestGet_turnRequiresExternalIP(t *testing.T) {
	t.Setenv("VOFFICE_AUTH_SECRET", testSecret)
	t.Setenv("VOFFICE_CONNECTION_MODE", "turn")

	_, logs := Get()

	assert.Contains(t, fatals(logs), "VOFFICE_EXTERNAL_IP must be set when TURN or STUN is used")
}

func TestGet_turn(t *testing.T) {
	t.Setenv("VOFFICE_AUTH_SECRET", testSecret)
	t.Setenv("VOFFICE_CONNECTION_MODE", "TURN")
	t.Setenv("VOFFICE_EXTERNAL_IP", "192.0.2.10,2001:db8::1")
	t.Setenv("VOFFICE_TURN_ADDRESS", "0.0.0.0:3479")
	t.Setenv("VOFFICE_TURN_PORT_RANGE", "50000:50100")
	t.Setenv("VOFFICE_LOG_LEVEL", "debug")

	conf, logs := Get()

	require.Empty(t, fatals(logs))
	assert.Equal(t, ConnectionTURN, conf.ConnectionMode)
	assert.Equal(t, zerolog.DebugLevel, conf.LogLevel.AsZeroLogLevel())
	assert.Equal(t, "3479", conf.TurnPort)
	v4, v6, err := conf.TurnIPProvider.Get()
	require.NoError(t, err)
	assert.True(t, net.ParseIP("192.0.2.10").Equal(v4))
	assert.True(t, net.ParseIP("2001:db8::1").Equal(v6))

	min, max, ok := conf.PortRange()
	assert.True(t, ok)
	assert.Equal(t, uint16(50000), min)
	assert.Equal(t, uint16(50100), max)
}

func TestGet_invalidValues(t *testing.T) {
	t.Setenv("VOFFICE_AUTH_SECRET", testSecret)
	t.Setenv("VOFFICE_TURN_PORT_RANGE", "5:1")
	t.Setenv("VOFFICE_DEFAULT_ROOM", "attic")

	_, logs := Get()

	msgs := fatals(logs)
	assert.Len(t, msgs, 2)
}

func TestParseIPProvider_dns(t *testing.T) {
	provider, err := parseIPProvider([]string{"dns:example.org"}, "X")
	require.NoError(t, err)
	dns, ok := provider.(*ipdns.DNS)
	require.True(t, ok)
	assert.Equal(t, "example.org", dns.Domain)

	_, err = parseIPProvider([]string{"1.1.1.1", "8.8.8.8"}, "X")
	assert.Error(t, err)
}

func TestRoomAllowed(t *testing.T) {
	conf := Config{Rooms: []string{"main-office"}}
	assert.True(t, conf.RoomAllowed("main-office"))
	assert.False(t, conf.RoomAllowed("attic"))
	assert.False(t, conf.RoomAllowed(""))

	open := Config{}
	assert.True(t, open.RoomAllowed("attic"))
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://Office.example.org"})
	assert.True(t, check("https://office.example.org"))
	assert.False(t, check("https://evil.example.org"))
	assert.True(t, originChecker([]string{"*"})("https://anything"))
}
