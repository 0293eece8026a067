package repositories

import "errors"

// Sentinel errors surfaced to handlers. Their text is what clients see in
// the error event, so keep it user-facing.
var (
	ErrChatNotFound     = errors.New("chat not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrChatExists       = errors.New("chat already exists")
	ErrNotMember        = errors.New("not a member of this chat")
	ErrAlreadyMember    = errors.New("already a member of this chat")
	ErrAlreadyAdmin     = errors.New("user is already an admin")
	ErrNotAdminUser     = errors.New("user is not an admin")
	ErrLastAdmin        = errors.New("cannot leave the chat as the only admin")
	ErrCreatorImmutable = errors.New("the chat creator cannot be removed or demoted")
	ErrNotRecipient     = errors.New("no delivery record for this message")
)
