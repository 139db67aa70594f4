// Package store provides storage backends for leadline.
//
// It implements the persistence gateway: an append-only message log plus
// client record upsert/query, backed by PostgreSQL, SQLite, or memory.
package store

import (
	"errors"
	"strings"

	"github.com/clienterra/leadline/internal/models"
)

// Errors returned by store implementations.
var (
	// ErrClientNotFound indicates no client row exists for the given ID.
	ErrClientNotFound = errors.New("client not found")
)

// Store defines the persistence gateway shared by all backends.
//
// Implementations do not serialize per-client access themselves; callers
// handling conversation events must hold the per-client lock before
// performing read-check-write sequences.
type Store interface {
	// GetClientByExternalID returns the client for a chat identity, or
	// (nil, nil) when no such client exists.
	GetClientByExternalID(externalID int64) (*models.Client, error)

	// CreateClient inserts a new client row and fills in its ID and
	// creation timestamps.
	CreateClient(c *models.Client) error

	// UpdateClientStatus advances a client's status. Backward transitions
	// return models.ErrStatusRegression and leave the row unchanged.
	UpdateClientStatus(clientID int64, status models.ClientStatus) error

	// AppendClientBrief appends an entry to the client's accumulated brief.
	AppendClientBrief(clientID int64, entry string) error

	// AddMessage appends a message to the conversation log.
	AddMessage(m *models.Message) error

	// GetClientMessages returns all messages for a client ordered by
	// timestamp ascending.
	GetClientMessages(clientID int64) ([]models.Message, error)

	// GetClients returns all clients, newest first.
	GetClients() ([]models.Client, error)

	// GetWelcomeTemplate returns the configured welcome template, or an
	// empty string when none is stored.
	GetWelcomeTemplate() (string, error)

	// SaveWelcomeTemplate stores the welcome template.
	SaveWelcomeTemplate(text string) error

	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (assumed to be a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
