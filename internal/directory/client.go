// Package directory looks up user identities in the user-directory store.
// The directory lives in its own database and is a separate transactional
// domain from the chat store; this service only ever reads from it.
package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

var ErrUserNotFound = errors.New("user not found")

// User is a directory record.
type User struct {
	ID          int     `db:"id" json:"id"`
	Username    string  `db:"username" json:"username"`
	Photo       *string `db:"photo" json:"photo"`
	Active      bool    `db:"is_active" json:"is_active"`
	Deactivated bool    `db:"is_deactivated" json:"is_deactivated"`
}

// Client abstracts directory lookups.
type Client interface {
	GetUser(ctx context.Context, userID int) (User, error)
	BulkUsers(ctx context.Context, ids []int) ([]User, error)
}

// DBClient reads the directory database directly, with a Redis cache in
// front of it. A nil redis client disables caching.
type DBClient struct {
	db    *sqlx.DB
	cache *redis.Client
	ttl   time.Duration
}

// NewDBClient constructs a DBClient.
func NewDBClient(db *sqlx.DB, cache *redis.Client, ttl time.Duration) *DBClient {
	return &DBClient{db: db, cache: cache, ttl: ttl}
}

const userColumns = `id, username, photo, is_active, is_deactivated`

// GetUser fetches one user, cache first.
func (c *DBClient) GetUser(ctx context.Context, userID int) (User, error) {
	if user, ok := c.cached(ctx, userID); ok {
		return user, nil
	}

	var user User
	err := c.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	c.store(ctx, user)
	return user, nil
}

// BulkUsers fetches several users in one query; ids absent from the
// directory are simply missing from the result.
func (c *DBClient) BulkUsers(ctx context.Context, ids []int) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}

	users := make([]User, 0, len(ids))
	missing := make([]int, 0, len(ids))
	for _, id := range ids {
		if user, ok := c.cached(ctx, id); ok {
			users = append(users, user)
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return users, nil
	}

	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?)`, missing)
	if err != nil {
		return nil, err
	}
	var fetched []User
	if err := c.db.SelectContext(ctx, &fetched, c.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, user := range fetched {
		c.store(ctx, user)
		users = append(users, user)
	}
	return users, nil
}

func (c *DBClient) cached(ctx context.Context, userID int) (User, bool) {
	if c.cache == nil {
		return User{}, false
	}
	raw, err := c.cache.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		return User{}, false
	}
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return User{}, false
	}
	return user, true
}

func (c *DBClient) store(ctx context.Context, user User) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey(user.ID), raw, c.ttl).Err(); err != nil {
		log.Printf("directory cache set failed: %v", err)
	}
}

func cacheKey(userID int) string {
	return fmt.Sprintf("directory:user:%d", userID)
}
