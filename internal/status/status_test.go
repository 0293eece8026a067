package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"skrolls-chat/internal/models"
)

func TestOverall(t *testing.T) {
	cases := []struct {
		name           string
		total          int
		receivedOrRead int
		read           int
		want           models.DeliveryStatus
	}{
		{"no recipients", 0, 0, 0, models.StatusSent},
		{"nobody acked", 3, 0, 0, models.StatusSent},
		{"partially received", 3, 2, 0, models.StatusSent},
		{"all received", 3, 3, 0, models.StatusReceived},
		{"mixed received and read", 3, 3, 2, models.StatusReceived},
		{"all read", 3, 3, 3, models.StatusRead},
		{"single recipient read", 1, 1, 1, models.StatusRead},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overall(tc.total, tc.receivedOrRead, tc.read))
		})
	}
}

func TestAdvanceNeverRegresses(t *testing.T) {
	assert.Equal(t, models.StatusRead, Advance(models.StatusRead, models.StatusSent))
	assert.Equal(t, models.StatusRead, Advance(models.StatusRead, models.StatusReceived))
	assert.Equal(t, models.StatusReceived, Advance(models.StatusReceived, models.StatusSent))
	assert.Equal(t, models.StatusReceived, Advance(models.StatusSent, models.StatusReceived))
	assert.Equal(t, models.StatusRead, Advance(models.StatusReceived, models.StatusRead))
}
