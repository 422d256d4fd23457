package usecase

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"sr-chatbot/internal/domain"
)

// maxAttempts is the number of consecutive not-found answers tolerated at a
// retry-gated stage before the session is terminated.
const maxAttempts = 2

var tracer = otel.Tracer("sr-chatbot/usecase")

// Engine is the per-sender dialogue state machine.
type Engine struct {
	sessions   SessionStore
	directory  Directory
	extractor  Extractor
	contracts  ContractChecker
	statements StatementGenerator
	metrics    Recorder
	logger     *zap.Logger
}

type EngineOption func(*Engine)

// WithExtractor enables model-based name extraction and scope
// classification. Without it the engine uses keyword heuristics only.
func WithExtractor(x Extractor) EngineOption {
	return func(e *Engine) {
		if x != nil {
			e.extractor = x
		}
	}
}

func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.metrics = r
		}
	}
}

func NewEngine(sessions SessionStore, directory Directory, contracts ContractChecker, statements StatementGenerator, logger *zap.Logger, opts ...EngineOption) (*Engine, error) {
	if sessions == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if directory == nil {
		return nil, errors.New("usecase: directory must not be nil")
	}
	if contracts == nil {
		return nil, errors.New("usecase: contract checker must not be nil")
	}
	if statements == nil {
		return nil, errors.New("usecase: statement generator must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		sessions:   sessions,
		directory:  directory,
		contracts:  contracts,
		statements: statements,
		metrics:    nopRecorder{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// outcome is what a stage handler decided to do with the session.
type outcome struct {
	reply string
	end   bool
}

func say(reply string) outcome { return outcome{reply: reply} }
func end(reply string) outcome { return outcome{reply: reply, end: true} }

// Process runs one dialogue turn for sender and returns the reply. It never
// fails: downstream errors are logged and turned into a generic reply.
func (e *Engine) Process(ctx context.Context, message, sender string) (reply string) {
	sender = strings.TrimSpace(sender)
	ctx, span := tracer.Start(ctx, "Engine.Process")
	defer span.End()

	unlock := e.sessions.Lock(sender)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("dialogue turn panicked",
				zap.String("sender", sender),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			span.SetStatus(codes.Error, "panic")
			reply = msgGenericError
		}
	}()

	st := e.sessions.Load(ctx, sender)
	entry := st.Stage
	e.metrics.IncrTurn(entry.String())
	span.SetAttributes(attribute.String("dialogue.stage", entry.String()))

	msg := strings.TrimSpace(message)
	var out outcome
	if isTermination(msg) {
		out = end(msgSessionEnded)
	} else {
		out = e.route(ctx, msg, &st)
	}

	if out.end {
		e.sessions.Reset(ctx, sender)
		e.metrics.IncrTransition("ENDED")
		e.logger.Info("session ended", zap.String("sender", sender), zap.String("from_stage", entry.String()))
	} else {
		e.sessions.Save(ctx, &st)
		if st.Stage != entry {
			e.metrics.IncrTransition(st.Stage.String())
			e.logger.Info("stage transition",
				zap.String("sender", sender),
				zap.String("from_stage", entry.String()),
				zap.String("to_stage", st.Stage.String()),
			)
		}
	}

	if out.reply == "" {
		return msgGenericError
	}
	return out.reply
}

func (e *Engine) route(ctx context.Context, msg string, st *domain.ConversationState) outcome {
	if st.Stage > domain.StageNameVerification && st.Stage.Valid() && !st.Verified {
		e.logger.Warn("unverified session past verification, restarting", zap.String("sender", st.Sender), zap.String("stage", st.Stage.String()))
		*st = domain.NewConversationState(st.Sender, st.CreatedAt)
	}

	switch st.Stage {
	case domain.StageGreeting:
		if msg == "" || isGreeting(msg) {
			return e.greet(st)
		}
		st.Stage = domain.StageNameVerification
		return e.verifyName(ctx, msg, st)
	case domain.StageNameVerification:
		if st.AwaitingInput == domain.AwaitingNameChoice && len(st.PendingNameOptions) > 0 {
			return e.chooseName(msg, st)
		}
		st.ClearDisambiguation()
		return e.verifyName(ctx, msg, st)
	case domain.StageDocumentChoice:
		return e.documentChoice(ctx, msg, st)
	case domain.StageAccountStatementChoice:
		return e.statementChoice(ctx, msg, st)
	case domain.StageContractIDInput:
		return e.contractIDInput(ctx, msg, st)
	case domain.StageFollowUp:
		return e.followUp(ctx, msg, st)
	default:
		e.logger.Warn("unknown stage, treating as greeting", zap.String("sender", st.Sender), zap.Int("stage", int(st.Stage)))
		return e.greet(st)
	}
}

func (e *Engine) greet(st *domain.ConversationState) outcome {
	st.Stage = domain.StageNameVerification
	st.VerificationAttempts = 0
	st.ClearDisambiguation()
	return say(msgWelcome)
}

func (e *Engine) verifyName(ctx context.Context, msg string, st *domain.ConversationState) outcome {
	if isStartOver(msg) {
		return end(msgSessionRestarted)
	}

	name := e.extractName(ctx, msg)
	if name == "" {
		return say(msgNoName)
	}

	recs, err := e.directory.SearchContracts(ctx, name)
	if err != nil {
		e.downstreamFailure(ctx, "directory", "contract_search_error", err)
		return say(msgGenericError)
	}

	ranked := rankCandidates(recs, name)
	switch len(ranked) {
	case 0:
		st.VerificationAttempts++
		if st.VerificationAttempts >= maxAttempts {
			return end(msgNameNotFoundFinal)
		}
		return say(msgNameNotFound)
	case 1:
		chosen := preferredName(ranked[0])
		if chosen == "" {
			chosen = name
		}
		st.AcceptName(chosen)
		return say(foundReply(chosen))
	}

	options := uniqueNames(ranked)
	switch len(options) {
	case 0:
		st.AcceptName(name)
		return say(foundReply(name))
	case 1:
		st.AcceptName(options[0])
		return say(foundReply(options[0]))
	}
	st.PendingNameOptions = options
	st.AwaitingInput = domain.AwaitingNameChoice
	return say(choicesReply(options))
}

// extractName asks the extractor first and falls back to the raw-token
// heuristic only when it has no answer.
func (e *Engine) extractName(ctx context.Context, msg string) string {
	if e.extractor != nil {
		name, ok, err := e.extractor.ExtractName(ctx, msg)
		if err != nil {
			e.metrics.IncrExternalError("nlu")
			e.logger.Warn("name extraction failed", zap.Error(err))
		}
		if name = strings.TrimSpace(name); err == nil && ok && name != "" {
			return name
		}
	}
	return heuristicName(msg)
}

func (e *Engine) chooseName(msg string, st *domain.ConversationState) outcome {
	idx, numeric := parseChoice(msg, len(st.PendingNameOptions))
	if !numeric {
		return say(msgInvalidChoice)
	}
	if idx < 0 {
		return say(msgChoiceOutOfRange)
	}
	st.AcceptName(st.PendingNameOptions[idx])
	return say(foundReply(st.UserName))
}

func (e *Engine) documentChoice(ctx context.Context, msg string, st *domain.ConversationState) outcome {
	switch {
	case wantsContractReport(msg):
		st.LastDocumentType = domain.DocumentContractReport
		st.Stage = domain.StageFollowUp
		return e.contractReport(ctx, st)
	case wantsAccountStatement(msg):
		st.LastDocumentType = domain.DocumentAccountStatement
		st.Stage = domain.StageAccountStatementChoice
		return say(msgStatementScope)
	}
	return say(msgDocumentMenu)
}

func (e *Engine) statementChoice(ctx context.Context, msg string, st *domain.ConversationState) outcome {
	if isCancel(msg) {
		st.Stage = domain.StageFollowUp
		return say(msgCancelled)
	}
	switch e.classifyScope(ctx, msg) {
	case domain.ScopeAll:
		st.Stage = domain.StageFollowUp
		return e.multiStatement(ctx, st)
	case domain.ScopeOne:
		st.Stage = domain.StageContractIDInput
		st.AwaitingInput = domain.AwaitingContractID
		st.VerificationAttempts = 0
		return say(msgEnterContractID)
	}
	return say(msgStatementScopeRetry)
}

// classifyScope trusts an explicit extractor answer, including unclear,
// and uses keywords when the extractor is absent or failed.
func (e *Engine) classifyScope(ctx context.Context, msg string) domain.StatementScope {
	if e.extractor != nil {
		scope, ok, err := e.extractor.ClassifyStatementScope(ctx, msg)
		if err != nil {
			e.metrics.IncrExternalError("nlu")
			e.logger.Warn("scope classification failed", zap.Error(err))
		} else if ok {
			return scope
		}
	}
	all, one := keywordScope(msg)
	switch {
	case all && !one:
		return domain.ScopeAll
	case one && !all:
		return domain.ScopeOne
	}
	return domain.ScopeUnclear
}

func (e *Engine) contractIDInput(ctx context.Context, msg string, st *domain.ConversationState) outcome {
	if isStartOver(msg) {
		return end(msgSessionRestarted)
	}
	contractID := strings.TrimSpace(msg)
	found := false
	if contractID != "" {
		var err error
		found, err = e.contracts.Exists(ctx, contractID)
		if err != nil {
			e.downstreamFailure(ctx, "sheets", "contract_lookup_error", err)
			return say(msgGenericError)
		}
	}
	if !found {
		st.VerificationAttempts++
		if st.VerificationAttempts >= maxAttempts {
			return end(msgContractNotFoundFinal)
		}
		return say(msgContractNotFound)
	}

	st.Stage = domain.StageFollowUp
	st.AwaitingInput = domain.AwaitingNothing
	st.VerificationAttempts = 0
	link, err := e.statements.GenerateSingle(ctx, contractID)
	if err != nil {
		e.downstreamFailure(ctx, "statement", "single_statement_error", err)
		return say(msgGenericError)
	}
	return say(singleReadyReply(contractID, link))
}

func (e *Engine) followUp(ctx context.Context, msg string, st *domain.ConversationState) outcome {
	switch {
	case wantsContractReport(msg):
		st.LastDocumentType = domain.DocumentContractReport
		return e.contractReport(ctx, st)
	case wantsAccountStatement(msg):
		st.LastDocumentType = domain.DocumentAccountStatement
		st.Stage = domain.StageAccountStatementChoice
		return say(msgStatementScope)
	}
	return say(msgFollowUpMenu)
}

func (e *Engine) contractReport(ctx context.Context, st *domain.ConversationState) outcome {
	report, err := e.directory.ContractReport(ctx, st.UserName)
	if err != nil {
		e.downstreamFailure(ctx, "directory", "contract_report_error", err)
		return say(msgGenericError)
	}
	return say(report)
}

func (e *Engine) multiStatement(ctx context.Context, st *domain.ConversationState) outcome {
	ids, err := e.directory.ContractIDsFor(ctx, st.UserName)
	if err != nil {
		e.downstreamFailure(ctx, "directory", "contract_ids_error", err)
		return say(msgGenericError)
	}
	if len(ids) == 0 {
		return say(noContractsReply(st.UserName))
	}
	link, err := e.statements.GenerateMulti(ctx, st.UserName, ids)
	if err != nil {
		e.downstreamFailure(ctx, "statement", "multi_statement_error", err)
		return say(msgGenericError)
	}
	return say(multiReadyReply(st.UserName, len(ids), link))
}

func (e *Engine) downstreamFailure(ctx context.Context, service, reason string, err error) {
	e.metrics.IncrExternalError(service)
	uerr := upstreamError(reason, err)
	fields := []zap.Field{zap.String("service", service), zap.String("code", string(uerr.Code)), zap.Error(uerr)}
	if status, ok := upstreamStatusCode(err); ok {
		fields = append(fields, zap.Int("upstream_status", status))
	}
	e.logger.Error("downstream call failed", fields...)
	trace.SpanFromContext(ctx).RecordError(uerr)
}
