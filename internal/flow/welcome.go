package flow

import (
	"strings"

	"github.com/clienterra/leadline/internal/models"
)

// DefaultWelcomeTemplate greets a new client when no custom template is
// stored in bot settings.
const DefaultWelcomeTemplate = "Hi {name}! I'm the Clienterra assistant. We build Telegram bots that bring in and qualify leads. Tell me a bit about your business and what you'd like to automate."

// Placeholders recognized in welcome templates.
const (
	namePlaceholder     = "{name}"
	usernamePlaceholder = "{username}"
)

// Generic stand-ins when the user shared no profile fields.
const (
	genericName     = "there"
	genericUsername = "friend"
)

// ComposeWelcome renders the welcome template for a user. An empty
// template falls back to DefaultWelcomeTemplate. Missing profile fields
// are replaced with generic greetings so the text never shows a bare
// placeholder.
func ComposeWelcome(template string, user models.UserInfo) string {
	if template == "" {
		template = DefaultWelcomeTemplate
	}
	name := user.DisplayName()
	if name == "" {
		name = genericName
	}
	username := user.Username
	if username == "" {
		username = genericUsername
	}
	out := strings.ReplaceAll(template, namePlaceholder, name)
	out = strings.ReplaceAll(out, usernamePlaceholder, username)
	return out
}
