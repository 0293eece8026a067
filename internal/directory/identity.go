package directory

// AnonymousUsername replaces the display name of accounts the directory
// marks inactive or deactivated.
const AnonymousUsername = "skrolls.user"

// Identity is the projection of a user as shown to other users.
type Identity struct {
	Username string  `json:"username"`
	Photo    *string `json:"photo"`
}

// VisibleIdentity is the single place identity rendering happens: active
// accounts expose their real name and photo, everyone else is anonymized.
func VisibleIdentity(u User) Identity {
	if !u.Active || u.Deactivated {
		return Identity{Username: AnonymousUsername}
	}
	return Identity{Username: u.Username, Photo: u.Photo}
}
