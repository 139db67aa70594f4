package api

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/clienterra/leadline/internal/knowledge"
	"github.com/clienterra/leadline/internal/messaging"
	"github.com/clienterra/leadline/internal/models"
	"github.com/clienterra/leadline/internal/store"
	"github.com/clienterra/leadline/internal/testutil"
)

// mockHandler implements messaging.EventHandler for testing.
type mockHandler struct {
	mu     sync.Mutex
	events []models.InboundEvent
	reply  string
	err    error
}

func (m *mockHandler) HandleEvent(ctx context.Context, ev models.InboundEvent) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.reply, m.err
}

// staticHealth implements HealthReporter for testing.
type staticHealth struct {
	availability knowledge.Availability
}

func (h staticHealth) Availability() knowledge.Availability {
	return h.availability
}

func textEvent(userID int64, text string) models.InboundEvent {
	return models.InboundEvent{
		Type:      models.EventText,
		User:      models.UserInfo{ID: userID, FirstName: "Ann"},
		Text:      text,
		MessageID: 1,
	}
}

func newTestAPI(t *testing.T, handler *mockHandler) (*store.InMemoryStore, string) {
	t.Helper()
	st := store.NewInMemoryStore()
	srv := NewServer(st, handler, staticHealth{availability: knowledge.Degraded}, messaging.NewChannelService())
	ts := testutil.NewTestServer(t, srv)
	return st, ts.URL
}

func TestHandleEvent_ReturnsReply(t *testing.T) {
	handler := &mockHandler{reply: "Hi Ann!"}
	_, url := newTestAPI(t, handler)

	req := testutil.CreateHTTPRequest(t, http.MethodPost, url+"/events", textEvent(42, "Hi"))
	resp := testutil.DoRequest(t, req)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)

	var body struct {
		Status string `json:"status"`
		Result struct {
			Reply string `json:"reply"`
		} `json:"result"`
	}
	testutil.DecodeJSONResponse(t, resp, &body)
	if body.Status != "ok" || body.Result.Reply != "Hi Ann!" {
		t.Errorf("unexpected body: %+v", body)
	}
	if len(handler.events) != 1 || handler.events[0].User.ID != 42 {
		t.Errorf("handler not invoked with the event: %+v", handler.events)
	}
}

func TestHandleEvent_RejectsInvalidEvent(t *testing.T) {
	handler := &mockHandler{}
	_, url := newTestAPI(t, handler)

	// Missing user ID.
	ev := models.InboundEvent{Type: models.EventText, Text: "hi", MessageID: 1}
	req := testutil.CreateHTTPRequest(t, http.MethodPost, url+"/events", ev)
	resp := testutil.DoRequest(t, req)
	testutil.AssertHTTPStatus(t, resp, http.StatusBadRequest)
	if len(handler.events) != 0 {
		t.Error("invalid event must not reach the handler")
	}
}

func TestHandleEvent_RejectsMalformedJSON(t *testing.T) {
	handler := &mockHandler{}
	_, url := newTestAPI(t, handler)

	req, err := http.NewRequest(http.MethodPost, url+"/events", nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	resp := testutil.DoRequest(t, req)
	testutil.AssertHTTPStatus(t, resp, http.StatusBadRequest)
}

func TestHealth_ReportsKnowledgeAvailability(t *testing.T) {
	handler := &mockHandler{}
	_, url := newTestAPI(t, handler)

	req := testutil.CreateHTTPRequest(t, http.MethodGet, url+"/health", nil)
	resp := testutil.DoRequest(t, req)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)

	var body struct {
		Status string            `json:"status"`
		Result map[string]string `json:"result"`
	}
	testutil.DecodeJSONResponse(t, resp, &body)
	if body.Result["knowledge"] != "degraded" {
		t.Errorf("expected degraded knowledge, got %+v", body.Result)
	}
}

func TestListClients(t *testing.T) {
	handler := &mockHandler{}
	st, url := newTestAPI(t, handler)
	if err := st.CreateClient(&models.Client{ExternalID: 1, Name: "Ann"}); err != nil {
		t.Fatalf("CreateClient failed: %v", err)
	}

	req := testutil.CreateHTTPRequest(t, http.MethodGet, url+"/clients", nil)
	resp := testutil.DoRequest(t, req)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)

	var body struct {
		Result []models.Client `json:"result"`
	}
	testutil.DecodeJSONResponse(t, resp, &body)
	if len(body.Result) != 1 || body.Result[0].Name != "Ann" {
		t.Errorf("unexpected clients: %+v", body.Result)
	}
}

func TestClientMessages(t *testing.T) {
	handler := &mockHandler{}
	st, url := newTestAPI(t, handler)
	client := &models.Client{ExternalID: 1}
	if err := st.CreateClient(client); err != nil {
		t.Fatalf("CreateClient failed: %v", err)
	}
	if err := st.AddMessage(&models.Message{ClientID: client.ID, Text: "hello", Timestamp: time.Now()}); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}

	req := testutil.CreateHTTPRequest(t, http.MethodGet, url+"/clients/1/messages", nil)
	resp := testutil.DoRequest(t, req)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)

	var body struct {
		Result []models.Message `json:"result"`
	}
	testutil.DecodeJSONResponse(t, resp, &body)
	if len(body.Result) != 1 || body.Result[0].Text != "hello" {
		t.Errorf("unexpected messages: %+v", body.Result)
	}

	badReq := testutil.CreateHTTPRequest(t, http.MethodGet, url+"/clients/abc/messages", nil)
	badResp := testutil.DoRequest(t, badReq)
	testutil.AssertHTTPStatus(t, badResp, http.StatusBadRequest)
}

func TestSaveWelcome(t *testing.T) {
	handler := &mockHandler{}
	st, url := newTestAPI(t, handler)

	req := testutil.CreateHTTPRequest(t, http.MethodPut, url+"/settings/welcome", map[string]string{"text": "Hi {name}!"})
	resp := testutil.DoRequest(t, req)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)

	saved, _ := st.GetWelcomeTemplate()
	if saved != "Hi {name}!" {
		t.Errorf("template not saved, got %q", saved)
	}

	empty := testutil.CreateHTTPRequest(t, http.MethodPut, url+"/settings/welcome", map[string]string{"text": ""})
	emptyResp := testutil.DoRequest(t, empty)
	testutil.AssertHTTPStatus(t, emptyResp, http.StatusBadRequest)
}

func TestEventAsync_Accepted(t *testing.T) {
	handler := &mockHandler{}
	st := store.NewInMemoryStore()
	channel := messaging.NewChannelService()
	srv := NewServer(st, handler, staticHealth{}, channel)
	ts := testutil.NewTestServer(t, srv)

	req := testutil.CreateHTTPRequest(t, http.MethodPost, ts.URL+"/events/async", textEvent(9, "Hi"))
	resp := testutil.DoRequest(t, req)
	testutil.AssertHTTPStatus(t, resp, http.StatusAccepted)

	select {
	case ev := <-channel.Events():
		if ev.User.ID != 9 {
			t.Errorf("unexpected queued event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event not queued")
	}
}
