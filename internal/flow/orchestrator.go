package flow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/clienterra/leadline/internal/handoff"
	"github.com/clienterra/leadline/internal/knowledge"
	"github.com/clienterra/leadline/internal/models"
)

// CallbackReply confirms a button-press request for a human manager.
const CallbackReply = "Got it! A manager will reach out to you shortly."

// VoiceReply is sent when an engaged client sends a voice message.
const VoiceReply = "I can only read text for now. Could you type that out for me?"

// Store is the persistence surface the orchestrator depends on.
type Store interface {
	GetClientByExternalID(externalID int64) (*models.Client, error)
	CreateClient(c *models.Client) error
	UpdateClientStatus(clientID int64, status models.ClientStatus) error
	AppendClientBrief(clientID int64, entry string) error
	AddMessage(m *models.Message) error
	GetClientMessages(clientID int64) ([]models.Message, error)
	GetWelcomeTemplate() (string, error)
}

// Retriever serves knowledge snippets for reply grounding.
type Retriever interface {
	Search(ctx context.Context, query string) []knowledge.Snippet
}

// Dispatcher delivers handoff notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload handoff.Payload) handoff.Outcome
}

// Orchestrator routes each inbound event through the conversation state
// machine. Events for the same client are serialized with a per-client
// lock; different clients proceed concurrently.
type Orchestrator struct {
	store      Store
	retriever  Retriever
	responder  *Responder
	dispatcher Dispatcher

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewOrchestrator wires the state machine over its collaborators.
func NewOrchestrator(store Store, retriever Retriever, responder *Responder, dispatcher Dispatcher) *Orchestrator {
	return &Orchestrator{
		store:      store,
		retriever:  retriever,
		responder:  responder,
		dispatcher: dispatcher,
		locks:      make(map[int64]*sync.Mutex),
	}
}

func (o *Orchestrator) clientLock(externalID int64) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[externalID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[externalID] = l
	}
	return l
}

// HandleEvent runs one inbound event through the state machine and
// returns the reply to send, or an empty string when no reply is due.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev models.InboundEvent) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}
	lock := o.clientLock(ev.User.ID)
	lock.Lock()
	defer lock.Unlock()

	client, err := o.store.GetClientByExternalID(ev.User.ID)
	if err != nil {
		// Degraded path: answer without persistence rather than go silent.
		slog.Error("Orchestrator.HandleEvent: client lookup failed, replying stateless", "error", err, "external_id", ev.User.ID)
		return o.statelessReply(ctx, ev), nil
	}

	if client == nil {
		return o.handleNewClient(ctx, ev)
	}
	return o.handleKnownClient(ctx, ev, client)
}

// handleNewClient registers the sender and greets them. The welcome is
// the only reply; the client's next message triggers the handoff check.
func (o *Orchestrator) handleNewClient(ctx context.Context, ev models.InboundEvent) (string, error) {
	client := &models.Client{
		ExternalID: ev.User.ID,
		Name:       ev.User.DisplayName(),
	}
	if err := o.store.CreateClient(client); err != nil {
		slog.Error("Orchestrator.handleNewClient: create failed, replying stateless", "error", err, "external_id", ev.User.ID)
		return o.statelessReply(ctx, ev), nil
	}
	slog.Info("Orchestrator.handleNewClient: client registered", "client_id", client.ID, "external_id", ev.User.ID)

	o.persistUserMessage(client.ID, ev)

	template, err := o.store.GetWelcomeTemplate()
	if err != nil {
		slog.Error("Orchestrator.handleNewClient: welcome template lookup failed, using default", "error", err)
		template = ""
	}
	welcome := ComposeWelcome(template, ev.User)
	o.persistBotMessage(client.ID, welcome)
	return welcome, nil
}

func (o *Orchestrator) handleKnownClient(ctx context.Context, ev models.InboundEvent, client *models.Client) (string, error) {
	o.persistUserMessage(client.ID, ev)
	if body := ev.BodyText(); body != "" && ev.Type != models.EventCallback {
		if err := o.store.AppendClientBrief(client.ID, body); err != nil {
			slog.Error("Orchestrator.handleKnownClient: brief append failed", "error", err, "client_id", client.ID)
		}
	}

	if ev.Type == models.EventCallback {
		o.requestHandoff(ctx, ev, client, false)
		o.persistBotMessage(client.ID, CallbackReply)
		return CallbackReply, nil
	}

	// The first-message handoff can only fire while the client is still in
	// the welcome stage. Status advances to in_progress on dispatch, so an
	// engaged client never re-enters this branch even though the tracker
	// predicate becomes true again after every bot reply.
	if client.Status == models.StatusNew {
		messages, err := o.store.GetClientMessages(client.ID)
		if err != nil {
			slog.Error("Orchestrator.handleKnownClient: history lookup failed", "error", err, "client_id", client.ID)
		}
		if IsFirstAfterWelcome(messages) {
			// First substantive turn: hand off to a manager, stay silent.
			o.requestHandoff(ctx, ev, client, true)
			return "", nil
		}
	}

	if ev.Type == models.EventVoice {
		o.persistBotMessage(client.ID, VoiceReply)
		return VoiceReply, nil
	}

	snippets := o.retriever.Search(ctx, ev.Text)
	reply := o.responder.Respond(ctx, ev.Text, snippets)
	o.persistBotMessage(client.ID, reply)
	return reply, nil
}

// requestHandoff dispatches the notification without blocking the reply
// path and advances the client to in_progress.
func (o *Orchestrator) requestHandoff(ctx context.Context, ev models.InboundEvent, client *models.Client, isFirst bool) {
	payload := handoff.BuildPayload(ev, isFirst)
	go o.dispatcher.Dispatch(context.WithoutCancel(ctx), payload)

	if err := o.store.UpdateClientStatus(client.ID, models.StatusInProgress); err != nil {
		if err == models.ErrStatusRegression {
			return
		}
		slog.Error("Orchestrator.requestHandoff: status update failed", "error", err, "client_id", client.ID)
	}
}

// statelessReply answers a client whose record could not be read. Text
// gets a generated reply, other event types a fixed one. Nothing is
// persisted.
func (o *Orchestrator) statelessReply(ctx context.Context, ev models.InboundEvent) string {
	switch ev.Type {
	case models.EventVoice:
		return VoiceReply
	case models.EventCallback:
		return CallbackReply
	default:
		snippets := o.retriever.Search(ctx, ev.Text)
		return o.responder.Respond(ctx, ev.Text, snippets)
	}
}

// persistUserMessage stores the user's turn. The row is stamped with
// server time at insert; a skewed client timestamp must not reorder the
// history the tracker depends on.
func (o *Orchestrator) persistUserMessage(clientID int64, ev models.InboundEvent) {
	msg := &models.Message{
		ClientID: clientID,
		Text:     ev.BodyText(),
	}
	if ev.Voice != nil {
		msg.AttachmentRef = ev.Voice.FileRef
	}
	if err := o.store.AddMessage(msg); err != nil {
		slog.Error("Orchestrator: failed to persist user message", "error", err, "client_id", clientID)
	}
}

func (o *Orchestrator) persistBotMessage(clientID int64, text string) {
	msg := &models.Message{
		ClientID: clientID,
		Text:     text,
		FromBot:  true,
	}
	if err := o.store.AddMessage(msg); err != nil {
		slog.Error("Orchestrator: failed to persist bot message", "error", err, "client_id", clientID)
	}
}
