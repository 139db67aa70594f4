// Package store provides storage backends for leadline.
//
// This file implements the SQLite-backed persistence gateway.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/clienterra/leadline/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetClientByExternalID(externalID int64) (*models.Client, error) {
	row := s.db.QueryRow(
		`SELECT id, external_id, name, brief, status, created_at, updated_at FROM clients WHERE external_id = ?`,
		externalID)
	c, err := scanClientRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetClientByExternalID failed", "error", err, "externalID", externalID)
		return nil, fmt.Errorf("failed to query client %d: %w", externalID, err)
	}
	return c, nil
}

func (s *SQLiteStore) CreateClient(c *models.Client) error {
	now := time.Now().UTC()
	if c.Status == "" {
		c.Status = models.StatusNew
	}
	res, err := s.db.Exec(
		`INSERT INTO clients (external_id, name, brief, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ExternalID, c.Name, c.Brief, c.Status, now, now)
	if err != nil {
		slog.Error("SQLiteStore CreateClient failed", "error", err, "externalID", c.ExternalID)
		return fmt.Errorf("failed to insert client %d: %w", c.ExternalID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read client id: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	slog.Debug("SQLiteStore CreateClient succeeded", "id", c.ID, "externalID", c.ExternalID)
	return nil
}

// UpdateClientStatus advances a client's status. Callers serialize per-client
// access, so the read-check-write below is not racy.
func (s *SQLiteStore) UpdateClientStatus(clientID int64, status models.ClientStatus) error {
	if !models.IsValidClientStatus(status) {
		return models.ErrInvalidClientStatus
	}
	var current models.ClientStatus
	err := s.db.QueryRow(`SELECT status FROM clients WHERE id = ?`, clientID).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrClientNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore UpdateClientStatus query failed", "error", err, "clientID", clientID)
		return fmt.Errorf("failed to query client %d status: %w", clientID, err)
	}
	if !models.CanTransitionStatus(current, status) {
		slog.Warn("SQLiteStore UpdateClientStatus rejected regression", "clientID", clientID, "from", current, "to", status)
		return models.ErrStatusRegression
	}
	_, err = s.db.Exec(`UPDATE clients SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now().UTC(), clientID)
	if err != nil {
		slog.Error("SQLiteStore UpdateClientStatus failed", "error", err, "clientID", clientID)
		return fmt.Errorf("failed to update client %d status: %w", clientID, err)
	}
	slog.Debug("SQLiteStore UpdateClientStatus succeeded", "clientID", clientID, "status", status)
	return nil
}

func (s *SQLiteStore) AppendClientBrief(clientID int64, entry string) error {
	res, err := s.db.Exec(
		`UPDATE clients SET brief = CASE WHEN brief = '' THEN ? ELSE brief || ? || ? END, updated_at = ? WHERE id = ?`,
		entry, models.BriefSeparator, entry, time.Now().UTC(), clientID)
	if err != nil {
		slog.Error("SQLiteStore AppendClientBrief failed", "error", err, "clientID", clientID)
		return fmt.Errorf("failed to append brief for client %d: %w", clientID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrClientNotFound
	}
	slog.Debug("SQLiteStore AppendClientBrief succeeded", "clientID", clientID, "entry_length", len(entry))
	return nil
}

func (s *SQLiteStore) AddMessage(m *models.Message) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	res, err := s.db.Exec(
		`INSERT INTO messages (client_id, text, is_from_bot, timestamp, attachment_ref) VALUES (?, ?, ?, ?, ?)`,
		m.ClientID, m.Text, m.FromBot, m.Timestamp, m.AttachmentRef)
	if err != nil {
		slog.Error("SQLiteStore AddMessage failed", "error", err, "clientID", m.ClientID)
		return fmt.Errorf("failed to insert message for client %d: %w", m.ClientID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		m.ID = id
	}
	slog.Debug("SQLiteStore AddMessage succeeded", "clientID", m.ClientID, "fromBot", m.FromBot)
	return nil
}

func (s *SQLiteStore) GetClientMessages(clientID int64) ([]models.Message, error) {
	rows, err := s.db.Query(
		`SELECT id, client_id, text, is_from_bot, timestamp, attachment_ref FROM messages WHERE client_id = ? ORDER BY timestamp ASC, id ASC`,
		clientID)
	if err != nil {
		slog.Error("SQLiteStore GetClientMessages query failed", "error", err, "clientID", clientID)
		return nil, fmt.Errorf("failed to query messages for client %d: %w", clientID, err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (s *SQLiteStore) GetClients() ([]models.Client, error) {
	rows, err := s.db.Query(
		`SELECT id, external_id, name, brief, status, created_at, updated_at FROM clients ORDER BY created_at DESC, id DESC`)
	if err != nil {
		slog.Error("SQLiteStore GetClients query failed", "error", err)
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()
	return collectClients(rows)
}

func (s *SQLiteStore) GetWelcomeTemplate() (string, error) {
	var text string
	err := s.db.QueryRow(`SELECT welcome_message FROM bot_settings ORDER BY id LIMIT 1`).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetWelcomeTemplate failed", "error", err)
		return "", fmt.Errorf("failed to query welcome template: %w", err)
	}
	return text, nil
}

func (s *SQLiteStore) SaveWelcomeTemplate(text string) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(`UPDATE bot_settings SET welcome_message = ?, updated_at = ? WHERE id = (SELECT id FROM bot_settings ORDER BY id LIMIT 1)`, text, now)
	if err != nil {
		slog.Error("SQLiteStore SaveWelcomeTemplate update failed", "error", err)
		return fmt.Errorf("failed to update welcome template: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	if _, err := s.db.Exec(`INSERT INTO bot_settings (welcome_message, updated_at) VALUES (?, ?)`, text, now); err != nil {
		slog.Error("SQLiteStore SaveWelcomeTemplate insert failed", "error", err)
		return fmt.Errorf("failed to insert welcome template: %w", err)
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
