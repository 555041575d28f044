package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/sortie/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ExpectedSchemaVersion is the latest SQLite schema version.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial attachment log",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS attachment_log (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL,
					logged_at TEXT NOT NULL,
					sender_email TEXT NOT NULL,
					original_name TEXT NOT NULL,
					new_name TEXT NOT NULL,
					destination_path TEXT NOT NULL DEFAULT '',
					upload_status TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE INDEX idx_attachment_log_run ON attachment_log(run_id)`,
				`CREATE INDEX idx_attachment_log_sender ON attachment_log(sender_email)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Record partition of each file",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`ALTER TABLE attachment_log ADD COLUMN partition_dir TEXT NOT NULL DEFAULT ''`)
			return err
		},
	},
}

// SQLiteStore keeps the log in a SQLite table. Row ids preserve append order.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database at dbPath and
// brings its schema up to date.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections, and :memory: needs one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Migrate applies pending migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if currentVersion > ExpectedSchemaVersion {
		return fmt.Errorf("%w: database is at %d, this build expects %d", ErrUnsupportedSchema, currentVersion, ExpectedSchemaVersion)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Debug("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	return nil
}

// Append inserts entries in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, entries []model.AttachmentLogEntry) (AppendResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return AppendResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attachment_log
			(run_id, logged_at, sender_email, original_name, new_name, partition_dir, destination_path, upload_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return AppendResult{}, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.RunID,
			e.LoggedAt.UTC().Format(time.RFC3339Nano),
			e.SenderEmail,
			e.OriginalName,
			e.NewName,
			e.Partition,
			e.DestinationPath,
			string(e.UploadStatus),
		); err != nil {
			return AppendResult{}, fmt.Errorf("failed to insert log entry: %w", err)
		}
	}

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM attachment_log`).Scan(&total); err != nil {
		return AppendResult{}, fmt.Errorf("failed to count log entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return AppendResult{}, fmt.Errorf("failed to commit log entries: %w", err)
	}

	return AppendResult{Appended: len(entries), Total: total}, nil
}

// List returns all entries in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]model.AttachmentLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, logged_at, sender_email, original_name, new_name, partition_dir, destination_path, upload_status
		FROM attachment_log
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.AttachmentLogEntry
	for rows.Next() {
		var (
			e        model.AttachmentLogEntry
			loggedAt string
			status   string
		)
		if err := rows.Scan(&e.RunID, &loggedAt, &e.SenderEmail, &e.OriginalName, &e.NewName,
			&e.Partition, &e.DestinationPath, &status); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		if e.LoggedAt, err = time.Parse(time.RFC3339Nano, loggedAt); err != nil {
			return nil, fmt.Errorf("invalid logged_at %q: %w", loggedAt, err)
		}
		e.UploadStatus = model.UploadStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SetUploadStatus updates matching entries whose status is still unset.
func (s *SQLiteStore) SetUploadStatus(ctx context.Context, key model.EntryKey, status model.UploadStatus) (int, error) {
	if err := validateStatus(status); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE attachment_log SET upload_status = ?
		WHERE run_id = ? AND sender_email = ? AND new_name = ? AND upload_status = ''`,
		string(status), key.RunID, key.SenderEmail, key.NewName)
	if err != nil {
		return 0, fmt.Errorf("failed to update upload status: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if updated > 0 {
		return int(updated), nil
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attachment_log
		WHERE run_id = ? AND sender_email = ? AND new_name = ?`,
		key.RunID, key.SenderEmail, key.NewName).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to look up log entry: %w", err)
	}
	if exists == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEntryNotFound, key)
	}
	return 0, fmt.Errorf("%w: %s", ErrStatusAlreadySet, key)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
