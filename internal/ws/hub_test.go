package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testSession(hub *Hub, userID int) *Session {
	return newSession(hub, nil, ConnInfo{UserID: userID})
}

func TestRegisterIndexesByUser(t *testing.T) {
	hub := NewHub()
	s1 := testSession(hub, 1)
	s2 := testSession(hub, 1)

	hub.Register(s1)
	hub.Register(s2)

	assert.Len(t, hub.users[1], 2)
}

func TestUnregisterDropsSessionEverywhere(t *testing.T) {
	hub := NewHub()
	s := testSession(hub, 1)
	hub.Register(s)
	hub.JoinRoom(5, s)
	hub.JoinRoom(6, s)

	hub.Unregister(s)

	assert.Empty(t, hub.users)
	assert.Empty(t, hub.rooms)
}

func TestSubscribeJoinsEveryLiveSession(t *testing.T) {
	hub := NewHub()
	s1 := testSession(hub, 1)
	s2 := testSession(hub, 1)
	s3 := testSession(hub, 2)
	hub.Register(s1)
	hub.Register(s2)
	hub.Register(s3)

	hub.Subscribe(5, 1, 2)

	assert.Len(t, hub.rooms[5], 3)
}

func TestSubscribeSkipsOfflineUsers(t *testing.T) {
	hub := NewHub()
	s := testSession(hub, 1)
	hub.Register(s)

	hub.Subscribe(5, 1, 99)

	assert.Len(t, hub.rooms[5], 1)
	assert.True(t, hub.rooms[5][s])
}

func TestUnsubscribeRemovesOnlyNamedUsers(t *testing.T) {
	hub := NewHub()
	s1 := testSession(hub, 1)
	s2 := testSession(hub, 2)
	hub.Register(s1)
	hub.Register(s2)
	hub.Subscribe(5, 1, 2)

	hub.Unsubscribe(5, 2)

	assert.Len(t, hub.rooms[5], 1)
	assert.True(t, hub.rooms[5][s1])
}

func TestUnsubscribeDropsEmptyRoom(t *testing.T) {
	hub := NewHub()
	s := testSession(hub, 1)
	hub.Register(s)
	hub.Subscribe(5, 1)

	hub.Unsubscribe(5, 1)

	_, ok := hub.rooms[5]
	assert.False(t, ok)
}
