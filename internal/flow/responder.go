package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clienterra/leadline/internal/knowledge"
)

// systemPrompt is the assistant persona for generated replies.
const systemPrompt = "You are a friendly sales assistant for a Telegram bot development agency. " +
	"Answer the client's question using the provided context about our services. " +
	"Along the way, learn about the client: ask about their organization and domain, " +
	"what functions they want the bot to perform, who their audience is, and their budget. " +
	"Ask at most one question per reply. Keep replies short and conversational."

// ApologyMessage is sent when reply generation fails.
const ApologyMessage = "Sorry, I'm having trouble answering right now. Please try again in a moment, or leave your question and a manager will get back to you."

// Generator produces a completion from a system instruction and user turn.
type Generator interface {
	GenerateResponse(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Responder composes replies to engaged clients by combining retrieved
// knowledge snippets with the client's message.
type Responder struct {
	generator Generator
}

// NewResponder creates a responder over the given generator.
func NewResponder(generator Generator) *Responder {
	return &Responder{generator: generator}
}

// Respond generates a reply grounded in the given snippets. It never
// returns an error: generation failures yield ApologyMessage so the
// client always hears back.
func (r *Responder) Respond(ctx context.Context, userMessage string, snippets []knowledge.Snippet) string {
	texts := make([]string, 0, len(snippets))
	for _, sn := range snippets {
		texts = append(texts, sn.Text)
	}
	userPrompt := fmt.Sprintf("Context about our services:\n%s\n\nClient message: %s",
		strings.Join(texts, "\n"), userMessage)

	reply, err := r.generator.GenerateResponse(ctx, systemPrompt, userPrompt)
	if err != nil {
		slog.Error("Responder.Respond: generation failed, sending apology", "error", err)
		return ApologyMessage
	}
	return reply
}
