// Package store provides storage backends for leadline.
//
// This file implements the PostgreSQL-backed persistence gateway.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/clienterra/leadline/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Pool sized for the expected concurrent client count.
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetClientByExternalID(externalID int64) (*models.Client, error) {
	row := s.db.QueryRow(
		`SELECT id, external_id, name, brief, status, created_at, updated_at FROM clients WHERE external_id = $1`,
		externalID)
	c, err := scanClientRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetClientByExternalID failed", "error", err, "externalID", externalID)
		return nil, fmt.Errorf("failed to query client %d: %w", externalID, err)
	}
	return c, nil
}

func (s *PostgresStore) CreateClient(c *models.Client) error {
	now := time.Now().UTC()
	if c.Status == "" {
		c.Status = models.StatusNew
	}
	err := s.db.QueryRow(
		`INSERT INTO clients (external_id, name, brief, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`,
		c.ExternalID, c.Name, c.Brief, c.Status, now).Scan(&c.ID)
	if err != nil {
		slog.Error("PostgresStore CreateClient failed", "error", err, "externalID", c.ExternalID)
		return fmt.Errorf("failed to insert client %d: %w", c.ExternalID, err)
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	slog.Debug("PostgresStore CreateClient succeeded", "id", c.ID, "externalID", c.ExternalID)
	return nil
}

// UpdateClientStatus advances a client's status. Callers serialize per-client
// access, so the read-check-write below is not racy.
func (s *PostgresStore) UpdateClientStatus(clientID int64, status models.ClientStatus) error {
	if !models.IsValidClientStatus(status) {
		return models.ErrInvalidClientStatus
	}
	var current models.ClientStatus
	err := s.db.QueryRow(`SELECT status FROM clients WHERE id = $1`, clientID).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrClientNotFound
	}
	if err != nil {
		slog.Error("PostgresStore UpdateClientStatus query failed", "error", err, "clientID", clientID)
		return fmt.Errorf("failed to query client %d status: %w", clientID, err)
	}
	if !models.CanTransitionStatus(current, status) {
		slog.Warn("PostgresStore UpdateClientStatus rejected regression", "clientID", clientID, "from", current, "to", status)
		return models.ErrStatusRegression
	}
	_, err = s.db.Exec(`UPDATE clients SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now().UTC(), clientID)
	if err != nil {
		slog.Error("PostgresStore UpdateClientStatus failed", "error", err, "clientID", clientID)
		return fmt.Errorf("failed to update client %d status: %w", clientID, err)
	}
	slog.Debug("PostgresStore UpdateClientStatus succeeded", "clientID", clientID, "status", status)
	return nil
}

func (s *PostgresStore) AppendClientBrief(clientID int64, entry string) error {
	res, err := s.db.Exec(
		`UPDATE clients SET brief = CASE WHEN brief = '' THEN $1 ELSE brief || $2 || $1 END, updated_at = $3 WHERE id = $4`,
		entry, models.BriefSeparator, time.Now().UTC(), clientID)
	if err != nil {
		slog.Error("PostgresStore AppendClientBrief failed", "error", err, "clientID", clientID)
		return fmt.Errorf("failed to append brief for client %d: %w", clientID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrClientNotFound
	}
	slog.Debug("PostgresStore AppendClientBrief succeeded", "clientID", clientID, "entry_length", len(entry))
	return nil
}

func (s *PostgresStore) AddMessage(m *models.Message) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	err := s.db.QueryRow(
		`INSERT INTO messages (client_id, text, is_from_bot, timestamp, attachment_ref) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		m.ClientID, m.Text, m.FromBot, m.Timestamp, m.AttachmentRef).Scan(&m.ID)
	if err != nil {
		slog.Error("PostgresStore AddMessage failed", "error", err, "clientID", m.ClientID)
		return fmt.Errorf("failed to insert message for client %d: %w", m.ClientID, err)
	}
	slog.Debug("PostgresStore AddMessage succeeded", "clientID", m.ClientID, "fromBot", m.FromBot)
	return nil
}

func (s *PostgresStore) GetClientMessages(clientID int64) ([]models.Message, error) {
	rows, err := s.db.Query(
		`SELECT id, client_id, text, is_from_bot, timestamp, attachment_ref FROM messages WHERE client_id = $1 ORDER BY timestamp ASC, id ASC`,
		clientID)
	if err != nil {
		slog.Error("PostgresStore GetClientMessages query failed", "error", err, "clientID", clientID)
		return nil, fmt.Errorf("failed to query messages for client %d: %w", clientID, err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (s *PostgresStore) GetClients() ([]models.Client, error) {
	rows, err := s.db.Query(
		`SELECT id, external_id, name, brief, status, created_at, updated_at FROM clients ORDER BY created_at DESC, id DESC`)
	if err != nil {
		slog.Error("PostgresStore GetClients query failed", "error", err)
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()
	return collectClients(rows)
}

func (s *PostgresStore) GetWelcomeTemplate() (string, error) {
	var text string
	err := s.db.QueryRow(`SELECT welcome_message FROM bot_settings ORDER BY id LIMIT 1`).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		slog.Error("PostgresStore GetWelcomeTemplate failed", "error", err)
		return "", fmt.Errorf("failed to query welcome template: %w", err)
	}
	return text, nil
}

func (s *PostgresStore) SaveWelcomeTemplate(text string) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE bot_settings SET welcome_message = $1, updated_at = $2 WHERE id = (SELECT id FROM bot_settings ORDER BY id LIMIT 1)`,
		text, now)
	if err != nil {
		slog.Error("PostgresStore SaveWelcomeTemplate update failed", "error", err)
		return fmt.Errorf("failed to update welcome template: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	if _, err := s.db.Exec(`INSERT INTO bot_settings (welcome_message, updated_at) VALUES ($1, $2)`, text, now); err != nil {
		slog.Error("PostgresStore SaveWelcomeTemplate insert failed", "error", err)
		return fmt.Errorf("failed to insert welcome template: %w", err)
	}
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
