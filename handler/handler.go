// Package handler adapts inbound transports (Lambda events and the dev
// server webhook) to the inquiry service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sr-chatbot/internal/infra/observability"
	"sr-chatbot/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// InquiryUseCase is the slice of usecase.InquiryService the transports use.
type InquiryUseCase interface {
	Handle(ctx context.Context, in usecase.InquiryInput) (usecase.InquiryOutput, error)
	Apologize(ctx context.Context, sender string) error
}

type Handler struct {
	uc     InquiryUseCase
	logger *zap.Logger
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Reply   string `json:"reply,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHandler(uc InquiryUseCase, logger *zap.Logger) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: inquiry use case must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{uc: uc, logger: logger}, nil
}

// result is a transport-neutral response.
type result struct {
	status int
	body   any
}

// Handle is the Lambda entry point. Business failures never surface as a
// Go error; they become a status code in the response.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (events.APIGatewayProxyResponse, error) {
	in, headers, decErr := decodeEvent(raw)
	corrID := correlationID(headers)
	res := h.process(ctx, in, decErr, corrID)
	return apiResponse(res, corrID), nil
}

func (h *Handler) process(ctx context.Context, in inbound, decErr error, corrID string) result {
	logger := h.logger.With(zap.String("correlation_id", corrID))

	switch {
	case errors.Is(decErr, errEmptyEvent):
		logger.Error("received empty event")
		return result{http.StatusBadRequest, errorResponse{Error: "Empty event"}}
	case errors.Is(decErr, errEmptyBody):
		logger.Error("received empty body")
		return result{http.StatusBadRequest, errorResponse{Error: "Empty body"}}
	case decErr != nil:
		logger.Error("could not decode event", zap.Error(decErr))
		return result{http.StatusBadRequest, errorResponse{Error: "Invalid message format"}}
	}

	sender := strings.TrimSpace(in.Sender)
	if sender == "" {
		logger.Error("could not extract sender from event")
		return result{http.StatusBadRequest, errorResponse{Error: "Invalid message format"}}
	}
	logger = logger.With(zap.String("sender", sender))
	logger.Info("processing message", zap.String("text", observability.Truncate(strings.TrimSpace(in.Text), 100)))

	out, err := h.uc.Handle(ctx, usecase.InquiryInput{Sender: sender, Text: in.Text})
	if err != nil {
		logger.Error("inquiry failed", zap.Error(err))
		if usecase.CodeOf(err) == usecase.ErrorInvalidInput {
			return result{http.StatusBadRequest, errorResponse{Error: "Invalid message format"}}
		}
		if apErr := h.uc.Apologize(context.WithoutCancel(ctx), sender); apErr != nil {
			logger.Warn("apology delivery failed", zap.Error(apErr))
		}
		return result{http.StatusInternalServerError, errorResponse{Error: string(usecase.CodeOf(err))}}
	}
	if out.Ignored {
		logger.Warn("empty message text")
		return result{http.StatusOK, statusResponse{Status: "ignored_empty"}}
	}
	logger.Info("response sent", zap.Bool("delivered", out.Delivered))
	return result{http.StatusOK, statusResponse{
		Status:  "success",
		Message: "Inquiry processed successfully",
		Reply:   out.Reply,
	}}
}

func apiResponse(res result, corrID string) events.APIGatewayProxyResponse {
	body, err := json.Marshal(res.body)
	if err != nil {
		res.status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: res.status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(body),
	}
}

// correlationID reuses a caller-supplied id, matching the header name case
// insensitively, or mints a new one.
func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}
