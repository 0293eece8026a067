package handlers

import (
	"errors"

	"skrolls-chat/internal/models"
)

// Authorization errors raised by handlers. Block errors are direction
// aware: the blocker and the blocked party get different texts.
var (
	ErrNotAdmin     = errors.New("admin rights required")
	ErrBlockedByYou = errors.New("you have blocked this chat")
	ErrBlockedYou   = errors.New("you have been blocked in this chat")
)

// emitError sends a single error event to the initiating session. Every
// failed operation ends here, after its transactions have rolled back;
// other sessions never see the failure.
func emitError(em Emitter, err error) {
	em.Emit(models.EventError, err.Error())
}
