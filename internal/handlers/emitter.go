package handlers

// Emitter is the outbound side of a handler invocation: events back to the
// initiating session, broadcasts to chat rooms, and room membership changes
// for live sessions. Implemented by ws.Session.
type Emitter interface {
	Emit(event string, data any)
	ToChat(chatID int, event string, data any)
	Subscribe(chatID int, userIDs ...int)
	Unsubscribe(chatID int, userIDs ...int)
}
