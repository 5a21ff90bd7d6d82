// Package httpadapter exposes the chat pipeline and the points ledger over
// HTTP. The web channel and the messaging webhook share one pipeline; they
// differ only in the channel they stamp on the request.
package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mkoval/chatpoint/internal/core/domain"
	"github.com/mkoval/chatpoint/internal/core/ports"
	"github.com/mkoval/chatpoint/internal/observability/metrics"
)

type RouterConfig struct {
	ServiceName      string
	AdminToken       string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxConcurrent    int
	BackpressureWait time.Duration
	ValidateRequests bool
}

type Router struct {
	responder ports.ChatResponder
	admission ports.PointsAdmission
	metrics   *metrics.HTTPServerMetrics
	cfg       RouterConfig
}

func NewRouter(
	responder ports.ChatResponder,
	admission ports.PointsAdmission,
	m *metrics.HTTPServerMetrics,
	cfg RouterConfig,
) *Router {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "api"
	}
	return &Router{
		responder: responder,
		admission: admission,
		metrics:   m,
		cfg:       cfg,
	}
}

func (rt *Router) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/chat", rt.chat)
	mux.HandleFunc("/v1/webhooks/messaging", rt.messagingWebhook)
	mux.HandleFunc("/v1/points/credit", rt.creditPoints)
	mux.HandleFunc("/v1/points/trial", rt.grantTrial)
	mux.HandleFunc("/v1/points/", rt.pointsBalance)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.cfg.ValidateRequests {
		validate, err := newOpenAPIValidation()
		if err != nil {
			return nil, err
		}
		handler = validate(handler)
	}
	if rt.cfg.MaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.MaxConcurrent, rt.cfg.BackpressureWait)
	}
	if rt.cfg.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.ServiceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler, nil
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequestBody struct {
	TenantID   string   `json:"tenant_id"`
	SessionID  string   `json:"session_id"`
	Message    string   `json:"message"`
	Channel    string   `json:"channel"`
	DatasetIDs []string `json:"dataset_ids"`
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body chatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	channel := domain.Channel(body.Channel)
	if body.Channel == "" {
		channel = domain.ChannelWeb
	}

	start := time.Now()
	reply, err := rt.responder.Respond(r.Context(), domain.ChatRequest{
		TenantID:   body.TenantID,
		SessionID:  body.SessionID,
		Message:    body.Message,
		Channel:    channel,
		DatasetIDs: body.DatasetIDs,
	})
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if status >= 500 {
			slog.Error("chat request failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	rt.observeReply(string(channel), reply, time.Since(start))
	writeJSON(w, http.StatusOK, reply)
}

type messagingWebhookBody struct {
	TenantID   string   `json:"tenant_id"`
	ChatID     string   `json:"chat_id"`
	Text       string   `json:"text"`
	DatasetIDs []string `json:"dataset_ids"`
}

// messagingWebhook always answers 200 with a user-facing text; messaging
// platforms redeliver on non-2xx and the pipeline already converts failures
// into presentable replies.
func (rt *Router) messagingWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body messagingWebhookBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	reply, err := rt.responder.Respond(r.Context(), domain.ChatRequest{
		TenantID:   body.TenantID,
		SessionID:  body.ChatID,
		Message:    body.Text,
		Channel:    domain.ChannelMessaging,
		DatasetIDs: body.DatasetIDs,
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		slog.Error("webhook request failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeJSON(w, http.StatusOK, map[string]string{
			"reply": domain.UserMessageFor(domain.ErrorCodeInternal),
		})
		return
	}

	rt.observeReply(string(domain.ChannelMessaging), reply, time.Since(start))
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply.Text})
}

func (rt *Router) observeReply(channel string, reply *domain.ChatReply, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	outcome := "success"
	if !reply.Success {
		outcome = string(reply.ErrorCode)
	}
	rt.metrics.RecordChatReply(rt.cfg.ServiceName, channel, outcome, len(reply.Sources), duration)
	switch {
	case reply.ErrorCode == domain.ErrorCodeInsufficientPoints:
		rt.metrics.RecordAdmissionDenied(rt.cfg.ServiceName, channel)
	case reply.ErrorCode == domain.ErrorCodeTimeout:
		rt.metrics.RecordChannelTimeout(rt.cfg.ServiceName, channel)
	}
	if reply.Warning != "" {
		rt.metrics.RecordLowBalanceWarning(rt.cfg.ServiceName)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func tenantFromPath(path, prefix string) string {
	return strings.Trim(strings.TrimPrefix(path, prefix), "/")
}
