package ws

import (
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharing_atMostOneSessionPerSharer(t *testing.T) {
	s := NewSharing()
	sharer := xid.New()

	assert.True(t, s.Start(sharer, "main-office"))
	assert.False(t, s.Start(sharer, "break-room"))
	assert.Equal(t, []xid.ID{sharer}, s.Active("main-office"))
	assert.Equal(t, []xid.ID{}, s.Active("break-room"))

	_, ok := s.Stop(sharer)
	assert.True(t, ok)
	_, ok = s.Stop(sharer)
	assert.False(t, ok)
}

func TestSharing_watchersAreSubsetOfSubscribers(t *testing.T) {
	s := NewSharing()
	sharer, viewer := xid.New(), xid.New()
	s.Start(sharer, "r")

	assert.False(t, s.Watch(viewer, sharer))
	assert.True(t, s.Subscribe(viewer, sharer))
	assert.True(t, s.Watch(viewer, sharer))
	assert.False(t, s.Watch(viewer, sharer))

	session, ok := s.Session(sharer)
	require.True(t, ok)
	assert.Equal(t, []xid.ID{viewer}, session.WatcherIDs())

	subscribed, changed := s.Unsubscribe(viewer, sharer)
	assert.True(t, subscribed)
	assert.True(t, changed)
	assert.Empty(t, session.WatcherIDs())
	assert.Empty(t, session.SubscriberIDs())
}

func TestSharing_cannotSubscribeToSelfOrInactive(t *testing.T) {
	s := NewSharing()
	sharer := xid.New()

	assert.False(t, s.Subscribe(xid.New(), sharer))
	s.Start(sharer, "r")
	assert.False(t, s.Subscribe(sharer, sharer))
}

func TestSharing_dropViewer(t *testing.T) {
	s := NewSharing()
	first, second, viewer := xid.New(), xid.New(), xid.New()
	s.Start(first, "r")
	s.Start(second, "r")
	s.Subscribe(viewer, first)
	s.Subscribe(viewer, second)
	s.Watch(viewer, second)

	drops := s.DropViewer(viewer)

	assert.Equal(t, []ViewerDrop{
		{SharerID: first, Subscribed: true},
		{SharerID: second, Subscribed: true, Watching: true},
	}, drops)
	assert.Empty(t, s.DropViewer(viewer))
}
