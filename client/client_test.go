package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AsterZephyr/voffice/auth"
	"github.com/AsterZephyr/voffice/config"
	"github.com/AsterZephyr/voffice/grid"
	"github.com/AsterZephyr/voffice/store"
	"github.com/AsterZephyr/voffice/ws"
	"github.com/AsterZephyr/voffice/ws/outgoing"
	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoom = "main-office"

func startOffice(t *testing.T) string {
	t.Helper()
	verifier := auth.Static{
		"alice-token": {UserID: "alice", Name: "Alice"},
		"bob-token":   {UserID: "bob", Name: "Bob"},
	}
	conf := config.Config{
		GridWidth:       30,
		GridHeight:      25,
		ProximityRadius: 3,
		Rooms:           []string{testRoom, "meeting-room"},
		DefaultRoom:     testRoom,
		ConnectionMode:  config.ConnectionLocal,
	}
	office := ws.NewOffice(verifier, nil, store.NewMemory(), conf)
	go office.Start()
	server := httptest.NewServer(http.HandlerFunc(office.Upgrade))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func dialClient(t *testing.T, url, token string, opts Options) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	opts.URL = url
	opts.Token = token
	if opts.Factory == nil {
		opts.Factory = (&fakeFactory{}).New
	}
	c, err := Dial(ctx, opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func knows(c *Client, other *Client) bool {
	for _, user := range c.Roster().Users() {
		if user.ID == other.ID() {
			return true
		}
	}
	return false
}

func watcherIDs(c *Client) []string {
	ids := []string{}
	for _, w := range c.Watchers() {
		ids = append(ids, w.ID.String())
	}
	return ids
}

func TestDial_rejectsBadToken(t *testing.T) {
	url := startOffice(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Dial(ctx, Options{URL: url, Token: "nope", Factory: (&fakeFactory{}).New})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestDial_welcome(t *testing.T) {
	url := startOffice(t)
	alice := dialClient(t, url, "alice-token", Options{})

	welcome := alice.Welcome()
	assert.False(t, welcome.ID.IsNil())
	assert.Equal(t, "alice", welcome.UserID)
	assert.Equal(t, "Alice", welcome.Name)
	assert.Equal(t, 3, welcome.ProximityRadius)
	assert.Empty(t, welcome.ICEServers)
}

func TestClient_nearbySharerIsWatchedUntilViewerWalksAway(t *testing.T) {
	url := startOffice(t)
	alice := dialClient(t, url, "alice-token", Options{})
	bob := dialClient(t, url, "bob-token", Options{})

	require.NoError(t, alice.Join(testRoom, grid.Position{X: 10, Y: 10}, ""))
	require.NoError(t, bob.Join(testRoom, grid.Position{X: 12, Y: 10}, ""))
	require.Eventually(t, func() bool { return knows(alice, bob) && knows(bob, alice) }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.StartSharing(StaticCapture(testTrack(t))))

	require.Eventually(t, func() bool {
		return bob.Peers().ViewerState(alice.ID()) == PeerConnected
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return alice.Peers().ServingState(bob.ID()) == PeerConnected
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		ids := watcherIDs(alice)
		return len(ids) == 1 && ids[0] == bob.ID().String()
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Bob", alice.Watchers()[0].Name)

	require.NoError(t, bob.Move(grid.Position{X: 20, Y: 20}, testRoom))

	assert.Equal(t, PeerIdle, bob.Peers().ViewerState(alice.ID()))
	require.Eventually(t, func() bool { return len(alice.Watchers()) == 0 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return alice.Peers().ServingCount() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.True(t, alice.Peers().Sharing())
}

func TestClient_outOfBoundsJoinUsesServerPosition(t *testing.T) {
	url := startOffice(t)
	alice := dialClient(t, url, "alice-token", Options{})
	bob := dialClient(t, url, "bob-token", Options{})

	require.NoError(t, bob.Join(testRoom, grid.Position{X: 28, Y: 10}, ""))
	require.NoError(t, alice.Join(testRoom, grid.Position{X: 40, Y: 10}, ""))

	require.Eventually(t, func() bool {
		position, room, joined := alice.Roster().Self()
		return joined && room == testRoom && position == grid.Position{X: 28, Y: 10}
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return knows(alice, bob) && knows(bob, alice) }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.StartSharing(StaticCapture(testTrack(t))))

	require.Eventually(t, func() bool {
		return alice.Peers().ViewerState(bob.ID()) == PeerConnected
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		ids := watcherIDs(bob)
		return len(ids) == 1 && ids[0] == alice.ID().String()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestClient_viewerLeavingRoomStopsWatching(t *testing.T) {
	url := startOffice(t)
	alice := dialClient(t, url, "alice-token", Options{})
	bob := dialClient(t, url, "bob-token", Options{})

	require.NoError(t, alice.Join(testRoom, grid.Position{X: 10, Y: 10}, ""))
	require.NoError(t, bob.Join(testRoom, grid.Position{X: 11, Y: 11}, ""))
	require.Eventually(t, func() bool { return knows(alice, bob) && knows(bob, alice) }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.StartSharing(StaticCapture(testTrack(t))))
	require.Eventually(t, func() bool { return len(alice.Watchers()) == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.Move(grid.Position{X: 10, Y: 10}, "meeting-room"))

	require.Eventually(t, func() bool { return len(alice.Watchers()) == 0 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return !knows(alice, bob) }, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, bob.Peers().Viewing())
}

func TestClient_stopSharingClosesViewers(t *testing.T) {
	url := startOffice(t)
	alice := dialClient(t, url, "alice-token", Options{})
	bob := dialClient(t, url, "bob-token", Options{})

	require.NoError(t, alice.Join(testRoom, grid.Position{X: 10, Y: 10}, ""))
	require.NoError(t, bob.Join(testRoom, grid.Position{X: 12, Y: 10}, ""))
	require.Eventually(t, func() bool { return knows(alice, bob) && knows(bob, alice) }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.StartSharing(StaticCapture(testTrack(t))))
	require.Eventually(t, func() bool {
		return bob.Peers().ViewerState(alice.ID()) == PeerConnected
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.StopSharing())

	require.Eventually(t, func() bool { return len(bob.Peers().Viewing()) == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, alice.Peers().ServingCount())
}

func TestClient_sharerDisconnectReleasesViewer(t *testing.T) {
	url := startOffice(t)
	alice := dialClient(t, url, "alice-token", Options{})
	bob := dialClient(t, url, "bob-token", Options{})

	require.NoError(t, alice.Join(testRoom, grid.Position{X: 10, Y: 10}, ""))
	require.NoError(t, bob.Join(testRoom, grid.Position{X: 12, Y: 10}, ""))
	require.Eventually(t, func() bool { return knows(bob, alice) }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.StartSharing(StaticCapture(testTrack(t))))
	require.Eventually(t, func() bool {
		return bob.Peers().ViewerState(alice.ID()) == PeerConnected
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.Close())

	require.Eventually(t, func() bool { return !knows(bob, alice) }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(bob.Peers().Viewing()) == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestClient_messages(t *testing.T) {
	url := startOffice(t)
	direct := make(chan outgoing.NewDirectMessage, 4)
	roomMessages := make(chan outgoing.NewMessage, 4)

	alice := dialClient(t, url, "alice-token", Options{})
	bob := dialClient(t, url, "bob-token", Options{
		OnDirectMessage: func(msg outgoing.NewDirectMessage) { direct <- msg },
		OnRoomMessage:   func(msg outgoing.NewMessage) { roomMessages <- msg },
	})

	require.NoError(t, alice.Join(testRoom, grid.Position{X: 10, Y: 10}, ""))
	require.NoError(t, bob.Join(testRoom, grid.Position{X: 20, Y: 20}, ""))
	require.Eventually(t, func() bool { return knows(alice, bob) }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.SendDirectMessage("bob", "hi bob"))
	select {
	case msg := <-direct:
		assert.Equal(t, "alice", msg.FromUserID)
		assert.Equal(t, "bob", msg.ToUserID)
		assert.Equal(t, "hi bob", msg.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("direct message not delivered")
	}

	require.NoError(t, alice.SendRoomMessage("hello room"))
	select {
	case msg := <-roomMessages:
		assert.Equal(t, alice.ID(), msg.ID)
		assert.Equal(t, "Alice", msg.Name)
		assert.Equal(t, "hello room", msg.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("room message not delivered")
	}
}

func TestDispatch_unknownType(t *testing.T) {
	self := xid.New()
	c := &Client{roster: NewRoster(self), peers: NewPeerManager(self, &fakeSignal{}, (&fakeFactory{}).New, nil, 0)}
	assert.Error(t, c.Dispatch(Frame{Type: "nope"}))
}

func TestJoin_requiresRoom(t *testing.T) {
	url := startOffice(t)
	alice := dialClient(t, url, "alice-token", Options{})

	assert.Error(t, alice.Join("", grid.Position{X: 1, Y: 1}, ""))
}
