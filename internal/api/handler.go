package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/hookrelay/internal/config"
	"github.com/gyaneshwarpardhi/hookrelay/internal/event"
	"github.com/gyaneshwarpardhi/hookrelay/internal/metrics"
	"github.com/gyaneshwarpardhi/hookrelay/internal/relay"
)

// ConfigSource yields the current configuration. *config.Loader satisfies it.
type ConfigSource interface {
	Config() *config.Config
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	relay *relay.Relay
	cfg   ConfigSource
	mux   *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(r *relay.Relay, cfg ConfigSource) http.Handler {
	h := &Handler{relay: r, cfg: cfg, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /{$}", h.index)
	h.mux.HandleFunc("GET /webhook", h.verify)
	h.mux.HandleFunc("POST /webhook", h.receive)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = h.mux
	handler = middleware.Recoverer(handler)
	handler = loggingMiddleware(handler)
	handler = middleware.RealIP(handler)
	handler = middleware.RequestID(handler)
	return handler
}

// GET / — fixed liveness text.
func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, h.cfg.Config().Server.HealthMessage)
}

// GET /webhook — one-time subscription handshake.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	secret := h.cfg.Config().WhatsApp.VerifyToken
	if mode == "subscribe" && secret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1 {
		metrics.Verifications.WithLabelValues("accepted").Inc()
		slog.Info("webhook verified")
		writeText(w, http.StatusOK, challenge)
		return
	}
	metrics.Verifications.WithLabelValues("rejected").Inc()
	slog.Info("webhook verification failed", "mode", mode, "token_present", token != "")
	w.WriteHeader(http.StatusForbidden)
}

// POST /webhook — event delivery. Anything that is not an answered message
// is acknowledged so the platform does not redeliver.
func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	cfg := h.cfg.Config()

	var env event.Envelope
	body := http.MaxBytesReader(w, r.Body, cfg.Webhook.MaxBodyBytes)
	err := json.NewDecoder(body).Decode(&env)
	var (
		tooLarge *http.MaxBytesError
		typeErr  *json.UnmarshalTypeError
	)
	switch {
	case err == nil, errors.Is(err, io.EOF):
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	case errors.As(err, &typeErr):
		// Well-formed JSON of another shape is absorbed like any non-message event.
		slog.Debug("webhook body has unexpected shape", "err", err)
		env = event.Envelope{}
	default:
		slog.Warn("webhook body is not JSON", "err", err)
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	// The reply outlives a dropped inbound connection; the relay bounds it.
	res := h.relay.Process(context.WithoutCancel(r.Context()), &env)

	status := http.StatusOK
	if res.State == relay.StateFailed && cfg.Webhook.FailureStatus == http.StatusInternalServerError {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if the send queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.relay.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"policy":            h.relay.Policy().Name(),
		"queue_utilization": util,
	})
}
