package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sr-chatbot/internal/domain"
	"sr-chatbot/internal/infra/observability"
)

const (
	maxBodyBytes        = 1 << 20
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// HistoryReader returns the most recent messages of a sender, oldest first.
type HistoryReader interface {
	GetHistory(ctx context.Context, sender string, limit int) ([]domain.Message, error)
}

type historyMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type historyResponse struct {
	Sender   string           `json:"sender"`
	Messages []historyMessage `json:"messages"`
}

// NewRouter serves the webhook and the operational endpoints for local runs
// and container deployments. history may be nil.
func NewRouter(h *Handler, metrics *observability.Metrics, history HistoryReader, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	})
	r.Post("/webhook", h.serveWebhook)

	if metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
		r.Get("/v1/stats", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, metrics.Snapshot())
		})
	}
	if history != nil {
		r.Get("/v1/history/{sender}", serveHistory(history, logger))
	}
	return r
}

func (h *Handler) serveWebhook(w http.ResponseWriter, r *http.Request) {
	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}
	corrID := correlationID(headers)
	w.Header().Set(correlationHeader, corrID)

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid message format"})
		return
	}
	var in inbound
	var decErr error
	if strings.TrimSpace(string(raw)) == "" {
		decErr = errEmptyBody
	} else {
		in, _, decErr = decodeEvent(raw)
	}
	res := h.process(r.Context(), in, decErr, corrID)
	writeJSON(w, res.status, res.body)
}

func serveHistory(history HistoryReader, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sender := strings.TrimSpace(chi.URLParam(r, "sender"))
		limit := defaultHistoryLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
				return
			}
			limit = min(n, maxHistoryLimit)
		}
		msgs, err := history.GetHistory(r.Context(), sender, limit)
		if err != nil {
			logger.Error("history lookup failed", zap.String("sender", sender), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "INTERNAL_ERROR"})
			return
		}
		out := historyResponse{Sender: sender, Messages: make([]historyMessage, 0, len(msgs))}
		for _, m := range msgs {
			out.Messages = append(out.Messages, historyMessage{Role: m.Role, Text: m.Text})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
