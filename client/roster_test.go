package client

import (
	"testing"

	"github.com/AsterZephyr/voffice/grid"
	"github.com/AsterZephyr/voffice/proximity"
	"github.com/AsterZephyr/voffice/ws/outgoing"
	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoster_resetSkipsSelf(t *testing.T) {
	self, other := xid.New(), xid.New()
	r := NewRoster(self)

	r.Reset(outgoing.RoomUsers{
		{ID: self, Name: "me"},
		{ID: other, Name: "other", Room: "main"},
	})

	users := r.Users()
	require.Len(t, users, 1)
	assert.Equal(t, other, users[0].ID)
}

func TestRoster_movedSelfUsesServerPosition(t *testing.T) {
	self := xid.New()
	r := NewRoster(self)
	r.SetSelf(grid.Position{X: 100, Y: 100}, "main")

	r.Moved(outgoing.UserMoved{ID: self, Position: grid.Position{X: 28, Y: 23}, Room: "main"})

	position, room, joined := r.Self()
	assert.True(t, joined)
	assert.Equal(t, grid.Position{X: 28, Y: 23}, position)
	assert.Equal(t, "main", room)
	assert.Empty(t, r.Users())
}

func TestRoster_movedUnknownUserIsAdded(t *testing.T) {
	r := NewRoster(xid.New())
	other := xid.New()

	r.Moved(outgoing.UserMoved{ID: other, Position: grid.Position{X: 3, Y: 4}, Room: "main"})

	users := r.Users()
	require.Len(t, users, 1)
	assert.Equal(t, grid.Position{X: 3, Y: 4}, users[0].Position)
}

func TestRoster_leftDropsSharer(t *testing.T) {
	self, other := xid.New(), xid.New()
	r := NewRoster(self)
	r.SetSelf(grid.Position{X: 10, Y: 10}, "main")
	r.Joined(outgoing.User{ID: other, Position: grid.Position{X: 11, Y: 10}, Room: "main"})
	r.SharerStarted(other)

	_, _, sharers := r.Snapshot()
	assert.True(t, sharers[other])

	r.Left(other)

	_, peers, sharers := r.Snapshot()
	assert.Empty(t, peers)
	assert.Empty(t, sharers)
}

func TestRoster_snapshotBeforeJoin(t *testing.T) {
	r := NewRoster(xid.New())
	r.Joined(outgoing.User{ID: xid.New(), Room: "main"})

	_, peers, _ := r.Snapshot()
	assert.Empty(t, peers)
}

func TestRoster_snapshotDrivesProximity(t *testing.T) {
	self, near, far := xid.New(), xid.New(), xid.New()
	r := NewRoster(self)
	r.SetSelf(grid.Position{X: 10, Y: 10}, "main")
	r.Reset(outgoing.RoomUsers{
		{ID: near, Position: grid.Position{X: 12, Y: 10}, Room: "main"},
		{ID: far, Position: grid.Position{X: 20, Y: 20}, Room: "main"},
	})
	r.SetSharers([]xid.ID{near, far})

	me, peers, sharers := r.Snapshot()
	result := proximity.Compute(me, peers, proximity.DefaultRadius, sharers)

	assert.Equal(t, []xid.ID{near}, result.EligibleSharers)

	r.SharerStopped(near)
	me, peers, sharers = r.Snapshot()
	result = proximity.Compute(me, peers, proximity.DefaultRadius, sharers)
	assert.Empty(t, result.EligibleSharers)
	require.NotNil(t, result.Nearest)
	assert.Equal(t, near, result.Nearest.ID)
}
