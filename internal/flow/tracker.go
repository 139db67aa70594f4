// Package flow implements the conversation state machine: tracking where
// a client is in the dialogue, composing welcomes and replies, and
// triggering handoffs to a human manager.
package flow

import (
	"github.com/clienterra/leadline/internal/models"
)

// DeriveState computes the conversation state for a client from the
// persisted history. A nil client means the sender has never been seen.
func DeriveState(client *models.Client, messages []models.Message) models.ConversationState {
	if client == nil {
		return models.ConversationState{IsNew: true}
	}
	return models.ConversationState{
		IsFirstAfterWelcome: IsFirstAfterWelcome(messages),
	}
}

// IsFirstAfterWelcome reports whether exactly one user message follows the
// most recent bot message. That single message is the client's first
// substantive turn after the automated welcome, which is the trigger for
// a manager handoff. Messages must be ordered by timestamp ascending.
func IsFirstAfterWelcome(messages []models.Message) bool {
	userAfterBot := 0
	sawBot := false
	for _, m := range messages {
		if m.FromBot {
			sawBot = true
			userAfterBot = 0
			continue
		}
		userAfterBot++
	}
	return sawBot && userAfterBot == 1
}
