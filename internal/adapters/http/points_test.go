package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkoval/chatpoint/internal/core/domain"
)

func TestCreditPointsRequiresAdminToken(t *testing.T) {
	admission := &stubAdmission{credited: &domain.PointsTransaction{ID: "tx-1", Amount: 200, ResultingBalance: 300}}
	handler := newTestHandler(t, &stubResponder{}, admission, RouterConfig{AdminToken: "secret"})

	body := `{"tenant_id":"t-1","amount":200}`
	req := httptest.NewRequest(http.MethodPost, "/v1/points/credit", strings.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/points/credit", strings.NewReader(body))
	req.Header.Set(adminTokenHeader, "secret")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", res.Code, res.Body.String())
	}
	if !strings.Contains(res.Body.String(), `"tx-1"`) {
		t.Fatalf("expected transaction in body, got %s", res.Body.String())
	}
}

func TestCreditPointsDisabledWithoutConfiguredToken(t *testing.T) {
	handler := newTestHandler(t, &stubResponder{}, &stubAdmission{}, RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/v1/points/credit", strings.NewReader(`{"tenant_id":"t-1","amount":10}`))
	req.Header.Set(adminTokenHeader, "")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when no admin token is configured, got %d", res.Code)
	}
}

func TestGrantTrialReportsAlreadyGranted(t *testing.T) {
	handler := newTestHandler(t, &stubResponder{}, &stubAdmission{trial: nil}, RouterConfig{AdminToken: "secret"})

	req := httptest.NewRequest(http.MethodPost, "/v1/points/trial", strings.NewReader(`{"tenant_id":"t-1"}`))
	req.Header.Set(adminTokenHeader, "secret")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"granted":false`) {
		t.Fatalf("expected granted=false, got %s", res.Body.String())
	}
}

func TestPointsBalanceReadsTenantFromPath(t *testing.T) {
	admission := &stubAdmission{decision: domain.AdmissionDecision{CanProceed: true, Balance: 123}}
	handler := newTestHandler(t, &stubResponder{}, admission, RouterConfig{AdminToken: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/v1/points/t-42", nil)
	req.Header.Set(adminTokenHeader, "secret")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if !strings.Contains(res.Body.String(), `"t-42"`) || !strings.Contains(res.Body.String(), "123") {
		t.Fatalf("unexpected body %s", res.Body.String())
	}
}
