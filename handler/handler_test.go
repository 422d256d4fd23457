package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"sr-chatbot/internal/usecase"
)

type stubUseCase struct {
	out        usecase.InquiryOutput
	err        error
	in         usecase.InquiryInput
	calls      int
	apologized []string
}

func (s *stubUseCase) Handle(_ context.Context, in usecase.InquiryInput) (usecase.InquiryOutput, error) {
	s.calls++
	s.in = in
	return s.out, s.err
}

func (s *stubUseCase) Apologize(_ context.Context, sender string) error {
	s.apologized = append(s.apologized, sender)
	return nil
}

func newTestHandler(t *testing.T, uc *stubUseCase) *Handler {
	t.Helper()
	h, err := NewHandler(uc, nil)
	require.NoError(t, err)
	return h
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil, nil)
	require.Error(t, err)
}

func TestHandle_EventShapes(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte(`{"sender":"6012","text":"hi"}`))
	cases := map[string]string{
		"eventbridge":        `{"source":"wati","detail-type":"message","detail":{"sender":"6012","incoming_msg":"hi"}}`,
		"api gateway":        `{"httpMethod":"POST","body":"{\"sender\":\"6012\",\"text\":\"hi\"}"}`,
		"api gateway base64": `{"httpMethod":"POST","isBase64Encoded":true,"body":"` + b64 + `"}`,
		"string body":        `{"body":"\"{\\\"sender\\\":\\\"6012\\\",\\\"text\\\":\\\"hi\\\"}\""}`,
		"body with detail":   `{"body":"{\"detail\":{\"sender\":\"6012\",\"incoming_msg\":\"hi\"}}"}`,
		"direct":             `{"sender":"6012","text":"hi"}`,
		"data":               `{"data":{"sender":"6012","text":"hi"}}`,
		"numeric sender":     `{"sender":6012,"text":"hi"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			uc := &stubUseCase{out: usecase.InquiryOutput{Reply: "hello", Delivered: true}}
			resp, err := newTestHandler(t, uc).Handle(context.Background(), json.RawMessage(raw))
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
			require.Equal(t, usecase.InquiryInput{Sender: "6012", Text: "hi"}, uc.in)

			out := parseBody[statusResponse](t, resp.Body)
			require.Equal(t, "success", out.Status)
			require.Equal(t, "Inquiry processed successfully", out.Message)
			require.Equal(t, "application/json", resp.Headers["Content-Type"])
		})
	}
}

func TestHandle_BadRequests(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"empty object", `{}`, "Empty event"},
		{"null", `null`, "Empty event"},
		{"empty body", `{"body":""}`, "Empty body"},
		{"not json", `not-json`, "Invalid message format"},
		{"bad body", `{"body":"{oops"}`, "Invalid message format"},
		{"bad base64", `{"body":"***","isBase64Encoded":true}`, "Invalid message format"},
		{"missing sender", `{"text":"hi"}`, "Invalid message format"},
		{"blank sender", `{"detail":{"sender":"  ","incoming_msg":"hi"}}`, "Invalid message format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc := &stubUseCase{}
			resp, err := newTestHandler(t, uc).Handle(context.Background(), json.RawMessage(tc.raw))
			require.NoError(t, err)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.Equal(t, tc.want, parseBody[errorResponse](t, resp.Body).Error)
			require.Zero(t, uc.calls)
		})
	}
}

func TestHandle_IgnoredEmptyText(t *testing.T) {
	uc := &stubUseCase{out: usecase.InquiryOutput{Ignored: true}}
	resp, err := newTestHandler(t, uc).Handle(context.Background(), json.RawMessage(`{"sender":"6012","text":"   "}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ignored_empty", parseBody[statusResponse](t, resp.Body).Status)
}

func TestHandle_FailureApologizes(t *testing.T) {
	uc := &stubUseCase{err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "messenger_send_error", Err: errors.New("502")}}
	resp, err := newTestHandler(t, uc).Handle(context.Background(), json.RawMessage(`{"sender":"6012","text":"hi"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "UPSTREAM_ERROR", parseBody[errorResponse](t, resp.Body).Error)
	require.Equal(t, []string{"6012"}, uc.apologized)
}

func TestHandle_UnclassifiedFailure(t *testing.T) {
	uc := &stubUseCase{err: errors.New("boom")}
	resp, err := newTestHandler(t, uc).Handle(context.Background(), json.RawMessage(`{"sender":"6012","text":"hi"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "INTERNAL_ERROR", parseBody[errorResponse](t, resp.Body).Error)
}

func TestHandle_InvalidInputIsBadRequest(t *testing.T) {
	uc := &stubUseCase{err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "missing_sender"}}
	resp, err := newTestHandler(t, uc).Handle(context.Background(), json.RawMessage(`{"sender":"6012","text":"hi"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, uc.apologized)
}

func TestHandle_CorrelationID(t *testing.T) {
	uc := &stubUseCase{}
	h := newTestHandler(t, uc)

	raw := `{"headers":{"x-correlation-id":"corr-1"},"body":"{\"sender\":\"6012\",\"text\":\"hi\"}"}`
	resp, err := h.Handle(context.Background(), json.RawMessage(raw))
	require.NoError(t, err)
	require.Equal(t, "corr-1", resp.Headers[correlationHeader])

	resp, err = h.Handle(context.Background(), json.RawMessage(`{"sender":"6012","text":"hi"}`))
	require.NoError(t, err)
	require.Len(t, resp.Headers[correlationHeader], 36)
}
