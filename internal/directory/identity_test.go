package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisibleIdentityActiveUser(t *testing.T) {
	photo := "https://cdn.example/u/7.jpg"
	identity := VisibleIdentity(User{ID: 7, Username: "alice", Photo: &photo, Active: true})
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, &photo, identity.Photo)
}

func TestVisibleIdentityMasksInactiveUser(t *testing.T) {
	photo := "https://cdn.example/u/7.jpg"
	identity := VisibleIdentity(User{ID: 7, Username: "alice", Photo: &photo, Active: false})
	assert.Equal(t, AnonymousUsername, identity.Username)
	assert.Nil(t, identity.Photo)
}

func TestVisibleIdentityMasksDeactivatedUser(t *testing.T) {
	identity := VisibleIdentity(User{ID: 7, Username: "alice", Active: true, Deactivated: true})
	assert.Equal(t, AnonymousUsername, identity.Username)
	assert.Nil(t, identity.Photo)
}
