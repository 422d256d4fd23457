package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"sr-chatbot/internal/domain"
)

const maxMessageLen = 1000

// Responder produces the reply for one inbound message.
type Responder interface {
	Process(ctx context.Context, message, sender string) string
}

// InquiryService runs an inbound message through the dialogue engine,
// records both sides in the message log and delivers the reply.
type InquiryService struct {
	engine    Responder
	messenger Messenger
	log       MessageLog
	logger    *zap.Logger
}

type InquiryInput struct {
	Sender string
	Text   string
}

type InquiryOutput struct {
	Reply     string
	Ignored   bool
	Delivered bool
}

// NewInquiryService builds the service. messenger and log may be nil, in
// which case replies are only returned and nothing is recorded.
func NewInquiryService(engine Responder, messenger Messenger, log MessageLog, logger *zap.Logger) (*InquiryService, error) {
	if engine == nil {
		return nil, errors.New("usecase: engine must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InquiryService{engine: engine, messenger: messenger, log: log, logger: logger}, nil
}

func (s *InquiryService) Handle(ctx context.Context, in InquiryInput) (InquiryOutput, error) {
	sender := strings.TrimSpace(in.Sender)
	if sender == "" {
		return InquiryOutput{}, newError(ErrorInvalidInput, "missing_sender", nil)
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return InquiryOutput{Ignored: true}, nil
	}
	if len([]rune(text)) > maxMessageLen {
		text = string([]rune(text)[:maxMessageLen])
	}

	s.record(ctx, sender, domain.RoleUser, text)
	reply := s.engine.Process(ctx, text, sender)
	s.record(ctx, sender, domain.RoleAssistant, reply)

	out := InquiryOutput{Reply: reply}
	if s.messenger == nil {
		return out, nil
	}
	if err := s.messenger.Send(ctx, sender, reply); err != nil {
		return out, upstreamError("messenger_send_error", err)
	}
	out.Delivered = true
	return out, nil
}

// Apologize sends the generic failure reply. It is used by transports when
// a turn could not be completed.
func (s *InquiryService) Apologize(ctx context.Context, sender string) error {
	sender = strings.TrimSpace(sender)
	if s.messenger == nil || sender == "" {
		return nil
	}
	if err := s.messenger.Send(ctx, sender, msgGenericError); err != nil {
		return upstreamError("messenger_apology_error", err)
	}
	return nil
}

func (s *InquiryService) record(ctx context.Context, sender, role, text string) {
	if s.log == nil {
		return
	}
	if err := s.log.AppendMessage(ctx, sender, role, text); err != nil {
		s.logger.Warn("message log append failed", zap.String("sender", sender), zap.String("role", role), zap.Error(err))
	}
}
