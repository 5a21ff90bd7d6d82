package httpadapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkoval/chatpoint/internal/core/domain"
)

type stubResponder struct {
	lastRequest domain.ChatRequest
	reply       *domain.ChatReply
	err         error
}

func (s *stubResponder) Respond(_ context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
	s.lastRequest = req
	if s.err != nil {
		return nil, s.err
	}
	return s.reply, nil
}

type stubAdmission struct {
	decision domain.AdmissionDecision
	credited *domain.PointsTransaction
	trial    *domain.PointsTransaction
	err      error
}

func (s *stubAdmission) Validate(context.Context, string, int64) (domain.AdmissionDecision, error) {
	return s.decision, s.err
}

func (s *stubAdmission) Debit(context.Context, string, int64, domain.TransactionMetadata) (*domain.PointsTransaction, error) {
	return nil, s.err
}

func (s *stubAdmission) Credit(context.Context, string, int64, domain.TransactionType, domain.TransactionMetadata) (*domain.PointsTransaction, error) {
	return s.credited, s.err
}

func (s *stubAdmission) GrantTrial(context.Context, string) (*domain.PointsTransaction, error) {
	return s.trial, s.err
}

func newTestHandler(t *testing.T, responder *stubResponder, admission *stubAdmission, cfg RouterConfig) http.Handler {
	t.Helper()
	handler, err := NewRouter(responder, admission, nil, cfg).Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	return handler
}

func TestChatEndpointDefaultsToWebChannel(t *testing.T) {
	balance := int64(49)
	responder := &stubResponder{reply: &domain.ChatReply{Success: true, Text: "answer", PointsBalance: &balance}}
	handler := newTestHandler(t, responder, &stubAdmission{}, RouterConfig{ValidateRequests: true})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(
		`{"tenant_id":"t-1","session_id":"s-1","message":"hello","dataset_ids":["ds-1"]}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if responder.lastRequest.Channel != domain.ChannelWeb {
		t.Fatalf("expected web channel default, got %q", responder.lastRequest.Channel)
	}
	if !strings.Contains(res.Body.String(), `"points_balance":49`) {
		t.Fatalf("expected balance in reply body, got %s", res.Body.String())
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestChatEndpointRejectsContractViolation(t *testing.T) {
	responder := &stubResponder{reply: &domain.ChatReply{Success: true}}
	handler := newTestHandler(t, responder, &stubAdmission{}, RouterConfig{ValidateRequests: true})

	// message is required by the contract
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"tenant_id":"t-1"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing message, got %d", res.Code)
	}
}

func TestChatEndpointMapsInvalidInput(t *testing.T) {
	responder := &stubResponder{err: domain.WrapError(domain.ErrInvalidInput, "respond", context.Canceled)}
	handler := newTestHandler(t, responder, &stubAdmission{}, RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"tenant_id":"t-1","message":"hi"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestMessagingWebhookStampsChannelAndWrapsFailure(t *testing.T) {
	responder := &stubResponder{err: domain.WrapError(domain.ErrTemporary, "respond", context.DeadlineExceeded)}
	handler := newTestHandler(t, responder, &stubAdmission{}, RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/messaging", strings.NewReader(
		`{"tenant_id":"t-1","chat_id":"c-9","text":"hi"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	// Webhook failures still answer 200 with a presentable reply so the
	// platform does not redeliver.
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if responder.lastRequest.Channel != domain.ChannelMessaging {
		t.Fatalf("expected messaging channel, got %q", responder.lastRequest.Channel)
	}
	if responder.lastRequest.SessionID != "c-9" {
		t.Fatalf("expected chat id as session, got %q", responder.lastRequest.SessionID)
	}
	if !strings.Contains(res.Body.String(), "reply") {
		t.Fatalf("expected reply field, got %s", res.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(t, &stubResponder{reply: &domain.ChatReply{}}, &stubAdmission{}, RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}
