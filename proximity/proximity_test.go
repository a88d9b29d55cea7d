package proximity

import (
	"testing"

	"github.com/AsterZephyr/voffice/grid"
	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_boundaryIsInclusiveAndSymmetric(t *testing.T) {
	a := Peer{ID: xid.New(), Position: grid.Position{X: 10, Y: 10}, Room: "main-office"}
	b := Peer{ID: xid.New(), Position: grid.Position{X: 10, Y: 13}, Room: "main-office"}

	fromA := Compute(a, []Peer{a, b}, 3, nil)
	fromB := Compute(b, []Peer{a, b}, 3, nil)

	require.Len(t, fromA.Nearby, 1)
	require.Len(t, fromB.Nearby, 1)
	assert.Equal(t, b.ID, fromA.Nearby[0].ID)
	assert.Equal(t, a.ID, fromB.Nearby[0].ID)
	assert.Equal(t, 3.0, fromA.Nearby[0].Distance)
}

func TestCompute_excludesSelfOtherRoomsAndFarPeers(t *testing.T) {
	self := Peer{ID: xid.New(), Position: grid.Position{X: 10, Y: 10}, Room: "main-office"}
	other := Peer{ID: xid.New(), Position: grid.Position{X: 11, Y: 10}, Room: "break-room"}
	far := Peer{ID: xid.New(), Position: grid.Position{X: 20, Y: 20}, Room: "main-office"}

	result := Compute(self, []Peer{self, other, far}, 3, nil)

	assert.Empty(t, result.Nearby)
	assert.Nil(t, result.Nearest)
	assert.Empty(t, result.EligibleSharers)
}

func TestCompute_sortsByDistanceThenID(t *testing.T) {
	ids := []xid.ID{xid.New(), xid.New(), xid.New()}
	self := Peer{ID: xid.New(), Position: grid.Position{X: 5, Y: 5}, Room: "r"}
	peers := []Peer{
		{ID: ids[2], Position: grid.Position{X: 6, Y: 5}, Room: "r"},
		{ID: ids[1], Position: grid.Position{X: 5, Y: 7}, Room: "r"},
		{ID: ids[0], Position: grid.Position{X: 4, Y: 5}, Room: "r"},
	}

	result := Compute(self, peers, 3, nil)

	require.Len(t, result.Nearby, 3)
	assert.Equal(t, ids[0], result.Nearby[0].ID)
	assert.Equal(t, ids[2], result.Nearby[1].ID)
	assert.Equal(t, ids[1], result.Nearby[2].ID)
	require.NotNil(t, result.Nearest)
	assert.Equal(t, ids[0], result.Nearest.ID)
}

func TestCompute_eligibleSharers(t *testing.T) {
	self := Peer{ID: xid.New(), Position: grid.Position{X: 12, Y: 10}, Room: "main-office"}
	sharer := Peer{ID: xid.New(), Position: grid.Position{X: 10, Y: 10}, Room: "main-office"}
	viewer := Peer{ID: xid.New(), Position: grid.Position{X: 12, Y: 11}, Room: "main-office"}
	farSharer := Peer{ID: xid.New(), Position: grid.Position{X: 25, Y: 20}, Room: "main-office"}
	sharers := map[xid.ID]bool{sharer.ID: true, farSharer.ID: true}

	result := Compute(self, []Peer{sharer, viewer, farSharer}, 3, sharers)

	assert.Equal(t, []xid.ID{sharer.ID}, result.EligibleSharers)
	assert.True(t, result.IsEligible(sharer.ID))
	assert.False(t, result.IsEligible(farSharer.ID))

	self.Position = grid.Position{X: 20, Y: 20}
	result = Compute(self, []Peer{sharer, viewer, farSharer}, 3, sharers)
	assert.Empty(t, result.EligibleSharers)
}
