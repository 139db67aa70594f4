// Package models defines the core data structures for leadline.
//
// It includes the client and message records shared across modules, the
// inbound event contract, and the derived conversation state.
package models

import (
	"errors"
	"strings"
	"time"
)

// ClientStatus represents the sales pipeline stage of a client.
// Statuses are ordered and only ever advance; a client never moves back
// to an earlier stage.
type ClientStatus string

const (
	// StatusNew indicates a client that has only received the welcome message.
	StatusNew ClientStatus = "new"
	// StatusInProgress indicates a client whose first message has been handed off.
	StatusInProgress ClientStatus = "in_progress"
	// StatusProposalSent indicates a proposal has been sent to the client.
	StatusProposalSent ClientStatus = "proposal_sent"
	// StatusClosed indicates the conversation has concluded.
	StatusClosed ClientStatus = "closed"
)

// statusRank orders client statuses for monotonicity checks.
var statusRank = map[ClientStatus]int{
	StatusNew:          0,
	StatusInProgress:   1,
	StatusProposalSent: 2,
	StatusClosed:       3,
}

// Error variables for better error handling and testability
var (
	ErrInvalidClientStatus = errors.New("invalid client status")
	ErrStatusRegression    = errors.New("client status cannot move backward")
)

// IsValidClientStatus checks if the given client status is supported.
func IsValidClientStatus(s ClientStatus) bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionStatus reports whether a client may move from one status to
// another. Transitions to the same or a later stage are allowed; regressions
// are not.
func CanTransitionStatus(from, to ClientStatus) bool {
	fromRank, okFrom := statusRank[from]
	toRank, okTo := statusRank[to]
	return okFrom && okTo && toRank >= fromRank
}

// BriefSeparator joins successive entries in a client's accumulated brief.
const BriefSeparator = "\n---\n"

// AppendBrief appends an entry to an accumulated brief, inserting the
// separator between existing content and the new entry.
func AppendBrief(brief, entry string) string {
	if brief == "" {
		return entry
	}
	return brief + BriefSeparator + entry
}

// Client represents a chat user known to the system. Exactly one Client
// exists per external chat identity.
type Client struct {
	ID         int64        `json:"id"`
	ExternalID int64        `json:"external_id"` // chat platform identity, unique and immutable
	Name       string       `json:"name,omitempty"`
	Brief      string       `json:"brief,omitempty"` // accumulated free-text record of everything the client said
	Status     ClientStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Message represents a single conversation turn belonging to one client.
// Messages for a client are totally ordered by timestamp.
type Message struct {
	ID            int64     `json:"id"`
	ClientID      int64     `json:"client_id"`
	Text          string    `json:"text,omitempty"` // empty for non-text events
	FromBot       bool      `json:"is_from_bot"`
	Timestamp     time.Time `json:"timestamp"`
	AttachmentRef string    `json:"attachment_ref,omitempty"`
}

// ConversationState is derived from a client's message history on every
// event. It is never persisted.
type ConversationState struct {
	IsNew               bool `json:"is_new"`
	IsFirstAfterWelcome bool `json:"is_first_after_welcome"`
}

// DisplayName assembles a human-readable name from the user's profile
// fields, falling back to the username when no name is set.
func (u UserInfo) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	return strings.TrimSpace(u.Username)
}
