package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// The two dialects share column names and semantics; only the DDL differs.
// glossary_terms.stable_id is unique so the store itself refuses a second
// active row for a logical term, and (stable_id, version) is unique in the
// archive so a version number can never be reused.

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(100) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(32) NOT NULL DEFAULT 'User',
		is_admin TINYINT(1) NOT NULL DEFAULT 0,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME(6) NOT NULL,
		reset_token VARCHAR(64) NULL,
		reset_token_expires DATETIME(6) NULL,
		UNIQUE KEY uq_users_email (email),
		KEY idx_users_reset_token (reset_token)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME(6) NOT NULL,
		revoked_at DATETIME(6) NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_refresh_token_hash (token_hash),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS glossary_terms (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		stable_id CHAR(36) NOT NULL,
		term VARCHAR(255) NOT NULL,
		definition TEXT NOT NULL,
		version INT NOT NULL DEFAULT 1,
		status TINYINT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		created_by_id VARCHAR(64) NOT NULL,
		UNIQUE KEY uq_glossary_terms_stable (stable_id),
		KEY idx_glossary_terms_creator (created_by_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS archived_glossary_terms (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		original_term_id BIGINT NOT NULL,
		stable_id CHAR(36) NOT NULL,
		term VARCHAR(255) NOT NULL,
		definition TEXT NOT NULL,
		version INT NOT NULL,
		archived_at DATETIME(6) NOT NULL,
		archived_by_id VARCHAR(64) NOT NULL,
		created_by_id VARCHAR(64) NOT NULL,
		change_summary VARCHAR(255) NOT NULL DEFAULT '',
		restored_at DATETIME(6) NULL,
		restored_by_id VARCHAR(64) NULL,
		UNIQUE KEY uq_archived_stable_version (stable_id, version),
		KEY idx_archived_creator (created_by_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'User',
		is_admin INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		reset_token TEXT,
		reset_token_expires DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_reset_token ON users(reset_token)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash TEXT NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS glossary_terms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		stable_id TEXT NOT NULL UNIQUE,
		term TEXT NOT NULL,
		definition TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		status INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		created_by_id TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_glossary_terms_creator ON glossary_terms(created_by_id)`,
	`CREATE TABLE IF NOT EXISTS archived_glossary_terms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		original_term_id INTEGER NOT NULL,
		stable_id TEXT NOT NULL,
		term TEXT NOT NULL,
		definition TEXT NOT NULL,
		version INTEGER NOT NULL,
		archived_at DATETIME NOT NULL,
		archived_by_id TEXT NOT NULL,
		created_by_id TEXT NOT NULL,
		change_summary TEXT NOT NULL DEFAULT '',
		restored_at DATETIME,
		restored_by_id TEXT,
		UNIQUE (stable_id, version)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_archived_creator ON archived_glossary_terms(created_by_id)`,
}

// Migrate creates any missing tables for the given driver.  Every statement
// is idempotent so Migrate is safe to run on each start.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var stmts []string
	switch driver {
	case DriverMySQL:
		stmts = mysqlSchema
	case DriverSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("unsupported driver %q", driver)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %s: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
