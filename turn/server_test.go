package turn

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net"
	"testing"
	"time"

	"github.com/AsterZephyr/voffice/config"
	"github.com/pion/turn/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternalServer_credentials(t *testing.T) {
	svr := &InternalServer{lookup: map[string]Entry{}}
	addr := &net.UDPAddr{IP: net.ParseIP("192.0.2.1"), Port: 4000}

	username, password := svr.Credentials("conn-1", net.ParseIP("192.0.2.1"))
	assert.Equal(t, "conn-1", username)
	assert.Len(t, password, 20)

	key, ok := svr.authenticate(username, Realm, addr)
	require.True(t, ok)
	assert.Equal(t, turn.GenerateAuthKey(username, Realm, password), key)

	svr.Disallow(username)
	_, ok = svr.authenticate(username, Realm, addr)
	assert.False(t, ok)
}

func TestExternalServer_credentials(t *testing.T) {
	now := time.Unix(1700000000, 0)
	svr := newExternalServer(config.Config{TurnExternalSecret: "shared"})
	svr.now = func() time.Time { return now }

	username, password := svr.Credentials("conn-1", nil)

	assert.Equal(t, "1700086400:conn-1", username)
	mac := hmac.New(sha1.New, []byte("shared"))
	_, _ = mac.Write([]byte(username))
	assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), password)
}

func TestGenerator_portRange(t *testing.T) {
	gen := generator(config.Config{TurnPortRange: "50000:50010"})
	portRange, ok := gen.(*turn.RelayAddressGeneratorPortRange)
	require.True(t, ok)
	assert.Equal(t, uint16(50000), portRange.MinPort)
	assert.Equal(t, uint16(50010), portRange.MaxPort)

	_, ok = generator(config.Config{}).(*turn.RelayAddressGeneratorStatic)
	assert.True(t, ok)
}
