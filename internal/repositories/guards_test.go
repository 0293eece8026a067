package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"skrolls-chat/internal/models"
)

func TestSetAdminGuard(t *testing.T) {
	creator := 1

	tests := []struct {
		name      string
		target    models.ChatMember
		grant     bool
		createdBy *int
		admins    int
		want      error
	}{
		{
			name:   "grant to regular member",
			target: models.ChatMember{UserID: 2},
			grant:  true,
		},
		{
			name:   "grant to existing admin",
			target: models.ChatMember{UserID: 2, IsAdmin: true},
			grant:  true,
			want:   ErrAlreadyAdmin,
		},
		{
			name:   "demote a non-admin",
			target: models.ChatMember{UserID: 2},
			want:   ErrNotAdminUser,
		},
		{
			name:      "demote the creator",
			target:    models.ChatMember{UserID: 1, IsAdmin: true},
			createdBy: &creator,
			admins:    3,
			want:      ErrCreatorImmutable,
		},
		{
			name:      "demote the only admin",
			target:    models.ChatMember{UserID: 2, IsAdmin: true},
			createdBy: &creator,
			admins:    1,
			want:      ErrLastAdmin,
		},
		{
			name:      "demote with another admin left",
			target:    models.ChatMember{UserID: 2, IsAdmin: true},
			createdBy: &creator,
			admins:    2,
		},
		{
			name:   "demote when the creator already left",
			target: models.ChatMember{UserID: 2, IsAdmin: true},
			admins: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := setAdminGuard(tt.target, tt.grant, tt.createdBy, tt.admins)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRemainingAdminsGuard(t *testing.T) {
	tests := []struct {
		name    string
		members int
		admins  int
		want    error
	}{
		{name: "chat emptied entirely", members: 0, admins: 0},
		{name: "members left without admins", members: 3, admins: 0, want: ErrLastAdmin},
		{name: "members with an admin", members: 3, admins: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, remainingAdminsGuard(tt.members, tt.admins), tt.want)
		})
	}
}

func TestRecomputeOverall(t *testing.T) {
	tests := []struct {
		name           string
		current        models.DeliveryStatus
		total          int
		receivedOrRead int
		read           int
		want           models.DeliveryStatus
		changed        bool
	}{
		{
			name:    "all recipients read",
			current: models.StatusReceived,
			total:   3, receivedOrRead: 3, read: 3,
			want: models.StatusRead, changed: true,
		},
		{
			name:    "all received but not read",
			current: models.StatusSent,
			total:   3, receivedOrRead: 3, read: 1,
			want: models.StatusReceived, changed: true,
		},
		{
			name:    "partial receipt keeps sent",
			current: models.StatusSent,
			total:   3, receivedOrRead: 2, read: 0,
			want: models.StatusSent, changed: false,
		},
		{
			name:    "aggregate never regresses",
			current: models.StatusRead,
			total:   3, receivedOrRead: 2, read: 1,
			want: models.StatusRead, changed: false,
		},
		{
			name:    "no recipients stays sent",
			current: models.StatusSent,
			total:   0, receivedOrRead: 0, read: 0,
			want: models.StatusSent, changed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := recomputeOverall(tt.current, tt.total, tt.receivedOrRead, tt.read)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.changed, changed)
		})
	}
}
