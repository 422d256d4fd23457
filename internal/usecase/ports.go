package usecase

import (
	"context"

	"sr-chatbot/internal/domain"
)

// SessionStore is the two-tier conversation store.
type SessionStore interface {
	Lock(sender string) func()
	Load(ctx context.Context, sender string) domain.ConversationState
	Save(ctx context.Context, st *domain.ConversationState)
	Reset(ctx context.Context, sender string)
}

// Directory looks up contracts by customer or company name.
type Directory interface {
	SearchContracts(ctx context.Context, name string) ([]domain.ContractRecord, error)
	ContractIDsFor(ctx context.Context, name string) ([]string, error)
	ContractReport(ctx context.Context, name string) (string, error)
}

// Extractor is the best-effort language understanding capability. ok is
// false when the model produced nothing usable.
type Extractor interface {
	ExtractName(ctx context.Context, message string) (name string, ok bool, err error)
	ClassifyStatementScope(ctx context.Context, message string) (scope domain.StatementScope, ok bool, err error)
}

type ContractChecker interface {
	Exists(ctx context.Context, contractID string) (bool, error)
}

// StatementGenerator renders statements and returns a shareable link.
type StatementGenerator interface {
	GenerateSingle(ctx context.Context, contractID string) (string, error)
	GenerateMulti(ctx context.Context, customer string, contractIDs []string) (string, error)
}

type Recorder interface {
	IncrTurn(stage string)
	IncrTransition(to string)
	IncrExternalError(service string)
}

type nopRecorder struct{}

func (nopRecorder) IncrTurn(string)          {}
func (nopRecorder) IncrTransition(string)    {}
func (nopRecorder) IncrExternalError(string) {}

// Messenger delivers a reply to the user.
type Messenger interface {
	Send(ctx context.Context, to, text string) error
}

// MessageLog appends user and assistant messages for audit.
type MessageLog interface {
	AppendMessage(ctx context.Context, sender, role, text string) error
}
