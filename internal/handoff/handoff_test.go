package handoff

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clienterra/leadline/internal/models"
)

func sampleEvent() models.InboundEvent {
	return models.InboundEvent{
		Type: models.EventText,
		User: models.UserInfo{
			ID:           42,
			FirstName:    "Ann",
			LastName:     "Lee",
			Username:     "annlee",
			LanguageCode: "en",
		},
		Text:      "I need a shop bot",
		MessageID: 1001,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBuildPayload_Fields(t *testing.T) {
	p := BuildPayload(sampleEvent(), true)

	if p.User.TelegramID != 42 || p.User.FirstName != "Ann" || p.User.Username != "annlee" {
		t.Errorf("unexpected user payload: %+v", p.User)
	}
	if p.Message.Text != "I need a shop bot" || p.Message.MessageType != "text" || p.Message.MessageID != 1001 {
		t.Errorf("unexpected message payload: %+v", p.Message)
	}
	if p.Message.Timestamp != "2025-06-01T12:00:00Z" {
		t.Errorf("unexpected timestamp: %q", p.Message.Timestamp)
	}
	if !p.Metadata.IsFirstMessage {
		t.Error("expected is_first_message true")
	}
	if p.Metadata.ChatID != 42 {
		t.Errorf("chat_id must equal the user's external ID, got %d", p.Metadata.ChatID)
	}
}

func TestBuildPayload_Voice(t *testing.T) {
	ev := sampleEvent()
	ev.Type = models.EventVoice
	ev.Text = ""
	ev.Voice = &models.VoiceInfo{FileRef: "file-abc", Duration: 17}

	p := BuildPayload(ev, false)
	if p.Message.AudioFileID != "file-abc" || p.Message.AudioDuration != 17 {
		t.Errorf("unexpected voice fields: %+v", p.Message)
	}
	if p.Message.Text != "" {
		t.Errorf("voice payload must carry empty text, got %q", p.Message.Text)
	}
	if p.Message.MessageType != "voice" {
		t.Errorf("unexpected message type: %q", p.Message.MessageType)
	}
}

func TestDispatch_Sent(t *testing.T) {
	var received Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(WithEndpoint(srv.URL))
	outcome := d.Dispatch(context.Background(), BuildPayload(sampleEvent(), true))
	if outcome != OutcomeSent {
		t.Fatalf("expected sent, got %s", outcome)
	}
	if received.User.TelegramID != 42 || received.Metadata.ChatID != 42 {
		t.Errorf("payload did not round-trip: %+v", received)
	}
	if !received.Metadata.IsFirstMessage {
		t.Error("expected is_first_message true after round-trip")
	}
}

func TestDispatch_StatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   Outcome
	}{
		{http.StatusNoContent, OutcomeSent},
		{http.StatusNotFound, OutcomeEndpointMissing},
		{http.StatusInternalServerError, OutcomeServerError},
		{http.StatusBadGateway, OutcomeBadGateway},
		{http.StatusServiceUnavailable, OutcomeUpstreamError},
		{http.StatusForbidden, OutcomeRejected},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.status)
		}))
		d := NewDispatcher(WithEndpoint(srv.URL))
		if got := d.Dispatch(context.Background(), BuildPayload(sampleEvent(), false)); got != c.want {
			t.Errorf("status %d: expected %s, got %s", c.status, c.want, got)
		}
		srv.Close()
	}
}

func TestDispatch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	d := NewDispatcher(WithEndpoint(srv.URL), WithTimeout(20*time.Millisecond))
	if got := d.Dispatch(context.Background(), BuildPayload(sampleEvent(), false)); got != OutcomeTimeout {
		t.Errorf("expected timeout, got %s", got)
	}
}

func TestDispatch_NetworkError(t *testing.T) {
	d := NewDispatcher(WithEndpoint("http://127.0.0.1:1/handoff"), WithTimeout(time.Second))
	if got := d.Dispatch(context.Background(), BuildPayload(sampleEvent(), false)); got != OutcomeNetworkError {
		t.Errorf("expected network error, got %s", got)
	}
}

func TestDispatch_NotConfigured(t *testing.T) {
	d := NewDispatcher()
	if d.Configured() {
		t.Error("expected dispatcher without endpoint to be unconfigured")
	}
	if got := d.Dispatch(context.Background(), BuildPayload(sampleEvent(), false)); got != OutcomeNotConfigured {
		t.Errorf("expected not_configured, got %s", got)
	}
}

func TestDispatch_SingleAttempt(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDispatcher(WithEndpoint(srv.URL))
	d.Dispatch(context.Background(), BuildPayload(sampleEvent(), false))
	if calls != 1 {
		t.Errorf("expected exactly one attempt, got %d", calls)
	}
}
