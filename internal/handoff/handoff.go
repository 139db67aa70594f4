// Package handoff notifies an external endpoint when a conversation
// needs a human manager. Delivery is fire-and-forget: one POST, no
// retries, and the outcome is logged but never blocks the reply path.
package handoff

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clienterra/leadline/internal/models"
)

// DefaultTimeout bounds a single dispatch attempt.
const DefaultTimeout = 30 * time.Second

// Outcome classifies the result of a dispatch attempt.
type Outcome string

const (
	OutcomeSent            Outcome = "sent"
	OutcomeNotConfigured   Outcome = "not_configured"
	OutcomeEndpointMissing Outcome = "endpoint_missing" // 404
	OutcomeServerError     Outcome = "server_error"     // 500
	OutcomeBadGateway      Outcome = "bad_gateway"      // 502
	OutcomeUpstreamError   Outcome = "upstream_error"   // other 5xx
	OutcomeRejected        Outcome = "rejected"         // other non-2xx
	OutcomeTimeout         Outcome = "timeout"
	OutcomeNetworkError    Outcome = "network_error"
)

// UserPayload identifies the end user behind a handoff.
type UserPayload struct {
	TelegramID   int64  `json:"telegram_id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
}

// MessagePayload carries the triggering message.
type MessagePayload struct {
	Text          string `json:"text"`
	MessageType   string `json:"message_type"`
	Timestamp     string `json:"timestamp"`
	MessageID     int64  `json:"message_id"`
	AudioFileID   string `json:"audio_file_id,omitempty"`
	AudioDuration int    `json:"audio_duration,omitempty"`
}

// Metadata carries conversation-level flags.
type Metadata struct {
	IsFirstMessage bool  `json:"is_first_message"`
	ChatID         int64 `json:"chat_id"`
}

// Payload is the wire body posted to the handoff endpoint.
type Payload struct {
	User     UserPayload    `json:"user"`
	Message  MessagePayload `json:"message"`
	Metadata Metadata       `json:"metadata"`
}

// BuildPayload assembles the handoff body from an inbound event. The chat
// ID mirrors the user's external ID since conversations are one-to-one.
func BuildPayload(ev models.InboundEvent, isFirst bool) Payload {
	p := Payload{
		User: UserPayload{
			TelegramID:   ev.User.ID,
			FirstName:    ev.User.FirstName,
			LastName:     ev.User.LastName,
			Username:     ev.User.Username,
			LanguageCode: ev.User.LanguageCode,
		},
		Message: MessagePayload{
			Text:        ev.BodyText(),
			MessageType: string(ev.Type),
			Timestamp:   ev.Timestamp.UTC().Format(time.RFC3339),
			MessageID:   ev.MessageID,
		},
		Metadata: Metadata{
			IsFirstMessage: isFirst,
			ChatID:         ev.User.ID,
		},
	}
	if ev.Voice != nil {
		p.Message.AudioFileID = ev.Voice.FileRef
		p.Message.AudioDuration = ev.Voice.Duration
	}
	return p
}

// Opts holds configuration options for the dispatcher.
type Opts struct {
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Option defines a configuration option for the dispatcher.
type Option func(*Opts)

// WithEndpoint sets the handoff endpoint URL. An empty endpoint disables
// dispatching.
func WithEndpoint(url string) Option {
	return func(o *Opts) {
		o.Endpoint = url
	}
}

// WithTimeout overrides the per-dispatch timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.Timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client for dispatching.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = c
	}
}

// Dispatcher posts handoff payloads to the configured endpoint.
type Dispatcher struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

// NewDispatcher creates a dispatcher from the given options.
func NewDispatcher(opts ...Option) *Dispatcher {
	cfg := Opts{Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Dispatcher{endpoint: cfg.Endpoint, timeout: cfg.Timeout, client: cfg.HTTPClient}
}

// Configured reports whether an endpoint is set.
func (d *Dispatcher) Configured() bool {
	return d.endpoint != ""
}

// Dispatch posts the payload once and classifies the result. It never
// returns an error; failures are logged under a correlation ID so a
// missed handoff can be traced without affecting the conversation.
func (d *Dispatcher) Dispatch(ctx context.Context, payload Payload) Outcome {
	if !d.Configured() {
		slog.Debug("Dispatcher.Dispatch: no endpoint configured, skipping")
		return OutcomeNotConfigured
	}
	correlationID := uuid.New().String()
	log := slog.With("correlation_id", correlationID, "chat_id", payload.Metadata.ChatID)

	body, err := json.Marshal(payload)
	if err != nil {
		log.Error("Dispatcher.Dispatch: failed to marshal payload", "error", err)
		return OutcomeNetworkError
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		log.Error("Dispatcher.Dispatch: failed to build request", "error", err)
		return OutcomeNetworkError
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error("Dispatcher.Dispatch: request timed out", "timeout", d.timeout)
			return OutcomeTimeout
		}
		log.Error("Dispatcher.Dispatch: request failed", "error", err)
		return OutcomeNetworkError
	}
	defer resp.Body.Close()

	outcome := classifyStatus(resp.StatusCode)
	switch outcome {
	case OutcomeSent:
		log.Info("Dispatcher.Dispatch: handoff delivered", "status", resp.StatusCode)
	default:
		log.Error("Dispatcher.Dispatch: handoff rejected", "status", resp.StatusCode, "outcome", outcome)
	}
	return outcome
}

func classifyStatus(code int) Outcome {
	switch {
	case code >= 200 && code < 300:
		return OutcomeSent
	case code == http.StatusNotFound:
		return OutcomeEndpointMissing
	case code == http.StatusInternalServerError:
		return OutcomeServerError
	case code == http.StatusBadGateway:
		return OutcomeBadGateway
	case code >= 500:
		return OutcomeUpstreamError
	default:
		return OutcomeRejected
	}
}
