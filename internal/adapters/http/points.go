package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mkoval/chatpoint/internal/core/domain"
)

const adminTokenHeader = "X-Admin-Token"

func (rt *Router) authorizeAdmin(r *http.Request) bool {
	if rt.cfg.AdminToken == "" {
		return false
	}
	return strings.TrimSpace(r.Header.Get(adminTokenHeader)) == rt.cfg.AdminToken
}

type creditRequestBody struct {
	TenantID string `json:"tenant_id"`
	Amount   int64  `json:"amount"`
	Type     string `json:"type"`
	Note     string `json:"note"`
}

func (rt *Router) creditPoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if !rt.authorizeAdmin(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "admin token required"})
		return
	}

	var body creditRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	txType := domain.TransactionType(body.Type)
	if body.Type == "" {
		txType = domain.TransactionCharge
	}

	tx, err := rt.admission.Credit(r.Context(), body.TenantID, body.Amount, txType, domain.TransactionMetadata{
		RequestID: requestIDFromContext(r.Context()),
		Note:      body.Note,
	})
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

type trialRequestBody struct {
	TenantID string `json:"tenant_id"`
}

func (rt *Router) grantTrial(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if !rt.authorizeAdmin(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "admin token required"})
		return
	}

	var body trialRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.TenantID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tenant_id is required"})
		return
	}

	tx, err := rt.admission.GrantTrial(r.Context(), body.TenantID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if tx == nil {
		writeJSON(w, http.StatusOK, map[string]any{"granted": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"granted": true, "transaction": tx})
}

func (rt *Router) pointsBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if !rt.authorizeAdmin(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "admin token required"})
		return
	}

	tenantID := tenantFromPath(r.URL.Path, "/v1/points/")
	if tenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tenant id is required"})
		return
	}

	decision, err := rt.admission.Validate(r.Context(), tenantID, 0)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id": tenantID,
		"balance":   decision.Balance,
	})
}
