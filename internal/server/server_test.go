package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/scout/internal/agent"
	"github.com/haasonsaas/scout/internal/observability"
	"github.com/haasonsaas/scout/pkg/models"
)

type fakeService struct {
	bus       *agent.EventBus
	chatErr   error
	cancelled []string
}

func newFakeService() *fakeService {
	return &fakeService{bus: agent.NewEventBus()}
}

func (f *fakeService) Chat(_ context.Context, sessionID, message string) (*models.ChatResult, error) {
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &models.ChatResult{
		Response:   "done: " + message,
		SessionID:  sessionID,
		TokenUsage: models.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}, nil
}

func (f *fakeService) Cancel(sessionID string) bool {
	f.cancelled = append(f.cancelled, sessionID)
	return true
}

func (f *fakeService) History(string) []models.DisplayTurn { return nil }

func (f *fakeService) ClearSession(string) string { return "rotated" }

func (f *fakeService) Events() *agent.EventBus { return f.bus }

func newTestServer(service ChatService) *Server {
	return New(Config{Addr: ":0"}, service, observability.NewMetrics(), nil)
}

func TestHandleChat(t *testing.T) {
	srv := newTestServer(newFakeService())

	body := strings.NewReader(`{"session_id":"s1","message":"find the parser"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var result models.ChatResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.SessionID != "s1" || !strings.HasPrefix(result.Response, "done:") {
		t.Errorf("result = %+v", result)
	}
}

func TestHandleChatGeneratesSessionID(t *testing.T) {
	srv := newTestServer(newFakeService())

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var result models.ChatResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.SessionID == "" {
		t.Error("session id not generated")
	}
}

func TestHandleChatRejectsEmptyMessage(t *testing.T) {
	srv := newTestServer(newFakeService())

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"  "}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleChatCancellationStatus(t *testing.T) {
	service := newFakeService()
	service.chatErr = agent.NewCancellation("s1")
	srv := newTestServer(service)

	body := strings.NewReader(`{"session_id":"s1","message":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != 499 {
		t.Errorf("status = %d, want 499", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Category != string(agent.CategoryCancellation) {
		t.Errorf("category = %q", resp.Category)
	}
}

func TestHandleChatValidationStatus(t *testing.T) {
	service := newFakeService()
	service.chatErr = agent.NewValidation("message is malformed")
	srv := newTestServer(service)

	body := strings.NewReader(`{"session_id":"s1","message":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleCancel(t *testing.T) {
	service := newFakeService()
	srv := newTestServer(service)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/s9/cancel", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(service.cancelled) != 1 || service.cancelled[0] != "s9" {
		t.Errorf("cancelled = %v", service.cancelled)
	}
}

func TestHandleClear(t *testing.T) {
	srv := newTestServer(newFakeService())

	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/s1", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "rotated") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestHandleEventsStreamsToolEvents(t *testing.T) {
	service := newFakeService()
	srv := newTestServer(service)

	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpSrv.URL+"/api/sessions/s1/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	// Wait for the handler's subscription before emitting.
	for i := 0; i < 100 && service.bus.SubscriberCount("s1") == 0; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	service.bus.Emit(models.ToolEvent{
		SessionID: "s1",
		Name:      "search",
		Status:    models.ToolEventStarted,
		Timestamp: time.Now(),
	})

	scanner := bufio.NewScanner(resp.Body)
	var sawEvent, sawData bool
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event: started" {
			sawEvent = true
		}
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"search"`) {
			sawData = true
			break
		}
	}
	if !sawEvent || !sawData {
		t.Errorf("sawEvent=%v sawData=%v", sawEvent, sawData)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(newFakeService())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
