package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sr-chatbot/internal/domain"
	"sr-chatbot/internal/session"
)

var errBoom = errors.New("boom")

type fakeDirectory struct {
	byName    map[string][]domain.ContractRecord
	ids       map[string][]string
	report    string
	searchErr error
	idsErr    error
	reportErr error
	searches  []string
}

func (f *fakeDirectory) SearchContracts(_ context.Context, name string) ([]domain.ContractRecord, error) {
	f.searches = append(f.searches, name)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.byName[strings.ToLower(name)], nil
}

func (f *fakeDirectory) ContractIDsFor(_ context.Context, name string) ([]string, error) {
	if f.idsErr != nil {
		return nil, f.idsErr
	}
	return f.ids[name], nil
}

func (f *fakeDirectory) ContractReport(_ context.Context, name string) (string, error) {
	if f.reportErr != nil {
		return "", f.reportErr
	}
	return f.report + name, nil
}

type fakeExtractor struct {
	name     string
	nameOK   bool
	nameErr  error
	scope    domain.StatementScope
	scopeOK  bool
	scopeErr error
}

func (f *fakeExtractor) ExtractName(context.Context, string) (string, bool, error) {
	return f.name, f.nameOK, f.nameErr
}

func (f *fakeExtractor) ClassifyStatementScope(context.Context, string) (domain.StatementScope, bool, error) {
	return f.scope, f.scopeOK, f.scopeErr
}

type fakeChecker struct {
	known map[string]bool
	err   error
	calls int
}

func (f *fakeChecker) Exists(_ context.Context, id string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.known[id], nil
}

type fakeStatements struct {
	link      string
	err       error
	panicMsg  string
	singles   []string
	customers []string
	multiIDs  [][]string
}

func (f *fakeStatements) GenerateSingle(_ context.Context, id string) (string, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.singles = append(f.singles, id)
	return f.link, f.err
}

func (f *fakeStatements) GenerateMulti(_ context.Context, customer string, ids []string) (string, error) {
	f.customers = append(f.customers, customer)
	f.multiIDs = append(f.multiIDs, ids)
	return f.link, f.err
}

type countingRecorder struct {
	turns       []string
	transitions []string
	external    []string
}

func (r *countingRecorder) IncrTurn(stage string)        { r.turns = append(r.turns, stage) }
func (r *countingRecorder) IncrTransition(to string)     { r.transitions = append(r.transitions, to) }
func (r *countingRecorder) IncrExternalError(svc string) { r.external = append(r.external, svc) }

type harness struct {
	engine     *Engine
	store      *session.Store
	cache      *session.InMemory[domain.ConversationState]
	directory  *fakeDirectory
	checker    *fakeChecker
	statements *fakeStatements
	recorder   *countingRecorder
}

func newHarness(t *testing.T, opts ...EngineOption) *harness {
	t.Helper()
	cache := session.NewInMemory[domain.ConversationState](time.Hour)
	t.Cleanup(cache.Close)
	store, err := session.NewStore(cache, zap.NewNop())
	require.NoError(t, err)

	h := &harness{
		store: store,
		cache: cache,
		directory: &fakeDirectory{
			byName: map[string][]domain.ContractRecord{},
			ids:    map[string][]string{},
			report: "Contract Report for ",
		},
		checker:    &fakeChecker{known: map[string]bool{}},
		statements: &fakeStatements{link: "https://drive.google.com/file/d/doc-1/view"},
		recorder:   &countingRecorder{},
	}
	opts = append([]EngineOption{WithRecorder(h.recorder)}, opts...)
	h.engine, err = NewEngine(store, h.directory, h.checker, h.statements, zap.NewNop(), opts...)
	require.NoError(t, err)
	return h
}

func (h *harness) say(t *testing.T, sender, msg string) string {
	t.Helper()
	reply := h.engine.Process(context.Background(), msg, sender)
	require.NotEmpty(t, reply)
	return reply
}

func (h *harness) exists(sender string) bool {
	_, ok := h.cache.Get(sender)
	return ok
}

func (h *harness) state(t *testing.T, sender string) domain.ConversationState {
	t.Helper()
	require.True(t, h.exists(sender), "session for %s should exist", sender)
	return h.store.Load(context.Background(), sender)
}

func (h *harness) gone(t *testing.T, sender string) {
	t.Helper()
	require.False(t, h.exists(sender), "session for %s should be gone", sender)
}

// verified drives sender to DOCUMENT_CHOICE as "Acme Rentals".
func (h *harness) verified(t *testing.T, sender string) {
	t.Helper()
	h.directory.byName["acme"] = []domain.ContractRecord{{ContractID: "C1", CompanyName: "Acme Rentals"}}
	h.say(t, sender, "Hi")
	require.Equal(t, foundReply("Acme Rentals"), h.say(t, sender, "Acme"))
}
