package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"skrolls-chat/internal/directory"
	"skrolls-chat/internal/models"
	"skrolls-chat/internal/telemetry"
)

// timeOrNow resolves an optional client-supplied timestamp. Deletion
// horizons and send times are user-visible, so a provided value wins.
func timeOrNow(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return time.Now()
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing event data")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.New("malformed event data")
	}
	return nil
}

// identitiesFor resolves the visible identity of each user id. Ids missing
// from the directory are simply absent from the map.
func identitiesFor(ctx context.Context, dir directory.Client, ids []int) (map[int]directory.Identity, error) {
	users, err := dir.BulkUsers(ctx, uniqueInts(ids))
	if err != nil {
		return nil, err
	}
	identities := make(map[int]directory.Identity, len(users))
	for _, u := range users {
		identities[u.ID] = directory.VisibleIdentity(u)
	}
	return identities, nil
}

func uniqueInts(ids []int) []int {
	seen := map[int]bool{}
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

// attachSenderNames layers visible sender names onto a history page and its
// reply previews.
func attachSenderNames(ctx context.Context, dir directory.Client, views []models.MessageView) error {
	ids := make([]int, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.SenderID)
		if v.ReplyTo != nil {
			ids = append(ids, v.ReplyTo.SenderID)
		}
	}
	identities, err := identitiesFor(ctx, dir, ids)
	if err != nil {
		return err
	}
	name := func(id int) string {
		if identity, ok := identities[id]; ok {
			return identity.Username
		}
		return directory.AnonymousUsername
	}

	for i := range views {
		views[i].SenderUsername = name(views[i].SenderID)
		if views[i].ReplyTo != nil {
			views[i].ReplyTo.SenderUsername = name(views[i].ReplyTo.SenderID)
		}
	}
	return nil
}

func emitAudit(ctx context.Context, audit *telemetry.AuditEmitter, level, text string, userID int) {
	if audit == nil {
		return
	}
	audit.Emit(ctx, level, text, uuid.NewString(), &userID)
}
