package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Connect opens the offline cache and runs migrations. driver is
// "sqlite3" or "postgres".
func Connect(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if driver == "sqlite3" {
		// one writer keeps sqlite from returning SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
            id TEXT PRIMARY KEY,
            position INTEGER NOT NULL,
            counterpart_id TEXT NOT NULL,
            display_name TEXT NOT NULL DEFAULT '',
            display_handle TEXT NOT NULL DEFAULT '',
            avatar_ref TEXT NOT NULL DEFAULT '',
            is_online BOOLEAN NOT NULL DEFAULT FALSE,
            last_message_preview TEXT NOT NULL DEFAULT '',
            last_activity_at TIMESTAMP NULL,
            unread_count INTEGER NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            conversation_id TEXT NOT NULL,
            seq INTEGER NOT NULL,
            id TEXT NOT NULL,
            sender_id TEXT NOT NULL,
            text TEXT NOT NULL,
            sent_at TIMESTAMP NULL,
            PRIMARY KEY (conversation_id, seq)
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("cache migrations applied")
	return nil
}
