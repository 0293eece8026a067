// Package status computes the aggregated delivery state of a message from
// its per-recipient status rows.
package status

import "skrolls-chat/internal/models"

// Rank orders delivery statuses; higher never regresses to lower.
func Rank(s models.DeliveryStatus) int {
	switch s {
	case models.StatusRead:
		return 2
	case models.StatusReceived:
		return 1
	default:
		return 0
	}
}

// Advance returns the further-along of the two statuses.
func Advance(current, next models.DeliveryStatus) models.DeliveryStatus {
	if Rank(next) > Rank(current) {
		return next
	}
	return current
}

// Overall derives the aggregate status for a message from recipient counts.
// total is the number of recipient rows (chat members minus the sender),
// receivedOrRead counts rows at "received" or "read", read counts rows at
// "read". A message with no recipient rows stays "sent".
func Overall(total, receivedOrRead, read int) models.DeliveryStatus {
	if total == 0 {
		return models.StatusSent
	}
	if read == total {
		return models.StatusRead
	}
	if receivedOrRead == total {
		return models.StatusReceived
	}
	return models.StatusSent
}
