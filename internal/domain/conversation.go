package domain

import (
	"fmt"
	"strings"
	"time"
)

// Stage is the position of a conversation in the dialogue state machine.
// The set is closed; ENDED is not a stage, it is represented by the absence
// of a stored session.
type Stage int

const (
	StageGreeting Stage = iota
	StageNameVerification
	StageDocumentChoice
	StageAccountStatementChoice
	StageContractIDInput
	StageFollowUp
)

var stageNames = [...]string{
	StageGreeting:               "GREETING",
	StageNameVerification:       "NAME_VERIFICATION",
	StageDocumentChoice:         "DOCUMENT_CHOICE",
	StageAccountStatementChoice: "ACCOUNT_STATEMENT_CHOICE",
	StageContractIDInput:        "CONTRACT_ID_INPUT",
	StageFollowUp:               "FOLLOW_UP",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Valid reports whether s is one of the declared stages.
func (s Stage) Valid() bool {
	return s >= 0 && int(s) < len(stageNames)
}

// ParseStage converts a persisted stage name back to a Stage.
func ParseStage(name string) (Stage, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return StageGreeting, fmt.Errorf("domain: unknown stage %q", name)
}

// DocumentType records the last document family a user asked for.
type DocumentType string

const (
	DocumentNone             DocumentType = ""
	DocumentContractReport   DocumentType = "contract_report"
	DocumentAccountStatement DocumentType = "account_statement"
)

// AwaitingInput marks which structured reply the engine expects next.
type AwaitingInput string

const (
	AwaitingNothing    AwaitingInput = ""
	AwaitingNameChoice AwaitingInput = "name_choice"
	AwaitingContractID AwaitingInput = "contract_id"
)

// StatementScope is the classified answer to "all contracts or one?".
type StatementScope string

const (
	ScopeAll     StatementScope = "all"
	ScopeOne     StatementScope = "one"
	ScopeUnclear StatementScope = "unclear"
)

// ParseStatementScope maps free classifier output onto a scope. Anything
// other than all or one is unclear.
func ParseStatementScope(v string) StatementScope {
	switch StatementScope(strings.ToLower(strings.TrimSpace(v))) {
	case ScopeAll:
		return ScopeAll
	case ScopeOne:
		return ScopeOne
	default:
		return ScopeUnclear
	}
}

// ConversationState is the per-sender session. It is owned by the session
// store and mutated only by the dialogue engine during a single turn.
type ConversationState struct {
	Sender               string
	Stage                Stage
	UserName             string
	Verified             bool
	VerificationAttempts int
	LastDocumentType     DocumentType
	AwaitingInput        AwaitingInput
	PendingNameOptions   []string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewConversationState returns a fresh GREETING session for sender.
func NewConversationState(sender string, now time.Time) ConversationState {
	now = now.UTC()
	return ConversationState{
		Sender:    sender,
		Stage:     StageGreeting,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so cached values never alias caller slices.
func (s ConversationState) Clone() ConversationState {
	out := s
	if s.PendingNameOptions != nil {
		out.PendingNameOptions = append([]string(nil), s.PendingNameOptions...)
	}
	return out
}

// ClearDisambiguation drops any outstanding name choice.
func (s *ConversationState) ClearDisambiguation() {
	s.PendingNameOptions = nil
	if s.AwaitingInput == AwaitingNameChoice {
		s.AwaitingInput = AwaitingNothing
	}
}

// AcceptName marks the session as verified for name and moves it to
// DOCUMENT_CHOICE.
func (s *ConversationState) AcceptName(name string) {
	s.UserName = name
	s.Verified = true
	s.VerificationAttempts = 0
	s.ClearDisambiguation()
	s.AwaitingInput = AwaitingNothing
	s.Stage = StageDocumentChoice
}

// StateRecord is the durable representation of a ConversationState.
// Timestamps are ISO-8601 strings.
type StateRecord struct {
	Sender               string   `json:"sender"`
	Stage                string   `json:"stage"`
	UserName             string   `json:"user_name,omitempty"`
	Verified             bool     `json:"verified"`
	VerificationAttempts int      `json:"verification_attempts"`
	LastDocumentType     string   `json:"last_document_type,omitempty"`
	AwaitingInput        string   `json:"awaiting_input,omitempty"`
	PendingNameOptions   []string `json:"pending_name_options,omitempty"`
	CreatedAt            string   `json:"created_at"`
	UpdatedAt            string   `json:"updated_at"`
}

// Record converts the state to its durable form.
func (s ConversationState) Record() StateRecord {
	rec := StateRecord{
		Sender:               s.Sender,
		Stage:                s.Stage.String(),
		UserName:             s.UserName,
		Verified:             s.Verified,
		VerificationAttempts: s.VerificationAttempts,
		LastDocumentType:     string(s.LastDocumentType),
		AwaitingInput:        string(s.AwaitingInput),
		CreatedAt:            s.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:            s.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if len(s.PendingNameOptions) > 0 {
		rec.PendingNameOptions = append([]string(nil), s.PendingNameOptions...)
	}
	return rec
}

// StateFromRecord rebuilds a ConversationState from its durable form.
func StateFromRecord(rec StateRecord) (ConversationState, error) {
	stage, err := ParseStage(rec.Stage)
	if err != nil {
		return ConversationState{}, err
	}
	created, err := parseTimestamp(rec.CreatedAt)
	if err != nil {
		return ConversationState{}, fmt.Errorf("domain: created_at: %w", err)
	}
	updated, err := parseTimestamp(rec.UpdatedAt)
	if err != nil {
		return ConversationState{}, fmt.Errorf("domain: updated_at: %w", err)
	}
	st := ConversationState{
		Sender:               rec.Sender,
		Stage:                stage,
		UserName:             rec.UserName,
		Verified:             rec.Verified,
		VerificationAttempts: rec.VerificationAttempts,
		LastDocumentType:     DocumentType(rec.LastDocumentType),
		AwaitingInput:        AwaitingInput(rec.AwaitingInput),
		CreatedAt:            created,
		UpdatedAt:            updated,
	}
	if len(rec.PendingNameOptions) > 0 {
		st.PendingNameOptions = append([]string(nil), rec.PendingNameOptions...)
	}
	return st, nil
}

func parseTimestamp(v string) (time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Message is a single entry in the per-sender message log.
type Message struct {
	PK     string
	SK     string
	Sender string
	Role   string
	Text   string
	TTL    int64
}
