package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the chat-store connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chats (
            id SERIAL PRIMARY KEY,
            chat_type TEXT NOT NULL CHECK (chat_type IN ('personal', 'group', 'community')),
            name TEXT,
            icon TEXT,
            description TEXT,
            created_by INT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS chat_members (
            chat_id INT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            is_admin BOOLEAN NOT NULL DEFAULT FALSE,
            joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (chat_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            chat_id INT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            sender_id INT NOT NULL,
            content TEXT NOT NULL DEFAULT '',
            media_urls TEXT[] NOT NULL DEFAULT '{}',
            message_type TEXT NOT NULL DEFAULT 'regular'
                CHECK (message_type IN ('regular', 'system', 'chatAction')),
            reply_to_id INT REFERENCES messages(id) ON DELETE SET NULL,
            overall_status TEXT NOT NULL DEFAULT 'sent'
                CHECK (overall_status IN ('sent', 'received', 'read')),
            delete_for_everyone BOOLEAN NOT NULL DEFAULT FALSE,
            message_active BOOLEAN NOT NULL DEFAULT TRUE,
            sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages (chat_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS message_statuses (
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            status TEXT NOT NULL DEFAULT 'sent'
                CHECK (status IN ('sent', 'received', 'read')),
            sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            received_at TIMESTAMPTZ,
            read_at TIMESTAMPTZ,
            PRIMARY KEY (message_id, user_id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_message_statuses_user ON message_statuses (user_id, status);`,
		`CREATE TABLE IF NOT EXISTS deleted_chats (
            user_id INT NOT NULL,
            chat_id INT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            deleted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (user_id, chat_id)
        );`,
		`CREATE TABLE IF NOT EXISTS deleted_messages (
            user_id INT NOT NULL,
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            deleted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (user_id, message_id)
        );`,
		`CREATE TABLE IF NOT EXISTS blocked_chats (
            chat_id INT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            blocked_by INT NOT NULL,
            blocked_user INT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (chat_id, blocked_by, blocked_user)
        );`,
		`CREATE TABLE IF NOT EXISTS hashtags (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL UNIQUE
        );`,
		`CREATE TABLE IF NOT EXISTS chat_hashtags (
            chat_id INT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            hashtag_id INT NOT NULL REFERENCES hashtags(id) ON DELETE CASCADE,
            PRIMARY KEY (chat_id, hashtag_id)
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
