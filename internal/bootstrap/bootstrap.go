// Package bootstrap constructs every client and service from a Config.
// The Lambda, the dev server and the terminal chat share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"sr-chatbot/internal/config"
	"sr-chatbot/internal/domain"
	"sr-chatbot/internal/infra/ids"
	"sr-chatbot/internal/infra/observability"
	"sr-chatbot/internal/infra/resilience"
	"sr-chatbot/internal/integrations/google"
	"sr-chatbot/internal/integrations/openai"
	"sr-chatbot/internal/integrations/paramstore"
	"sr-chatbot/internal/integrations/wati"
	"sr-chatbot/internal/repository"
	"sr-chatbot/internal/repository/postgres"
	"sr-chatbot/internal/session"
	"sr-chatbot/internal/statement"
	"sr-chatbot/internal/usecase"
)

const serviceName = "sr-chatbot"

// HistoryReader returns the most recent messages of a sender, oldest first.
type HistoryReader interface {
	GetHistory(ctx context.Context, sender string, limit int) ([]domain.Message, error)
}

// durable is what the DynamoDB and Postgres stores both provide.
type durable interface {
	session.Persistence
	usecase.MessageLog
	HistoryReader
}

// App is the wired application.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Engine  *usecase.Engine
	Inquiry *usecase.InquiryService
	// History is nil for the memory backend.
	History HistoryReader

	closers []func(context.Context) error
}

type options struct {
	deliver bool
	logger  *zap.Logger
}

// Option customizes Build.
type Option func(*options)

// WithoutDelivery leaves replies undelivered, for the terminal chat.
func WithoutDelivery() Option {
	return func(o *options) { o.deliver = false }
}

// WithLogger uses logger instead of building one from the config.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Build wires the application. Close must be called on shutdown.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config must not be nil")
	}
	if err := cfg.Require(); err != nil {
		return nil, err
	}
	o := options{deliver: true}
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Config: cfg, Metrics: observability.NewMetrics()}
	logger := o.logger
	if logger == nil {
		var err error
		logger, err = observability.NewLogger(observability.LogConfig{Level: cfg.LogLevel, File: cfg.LogFile})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: logger: %w", err)
		}
	}
	app.Logger = logger

	shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, shutdownTracer)

	if err := app.wire(ctx, o); err != nil {
		_ = app.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return app, nil
}

func (app *App) wire(ctx context.Context, o options) error {
	cfg, logger := app.Config, app.Logger
	retry := resilience.Config{MaxRetries: cfg.MaxRetries, InitialBackoff: cfg.InitialBackoff}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: aws config: %w", err)
	}
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return err
	}

	// durable session tier and message log
	store, err := app.durableStore(ctx, awsCfg)
	if err != nil {
		return err
	}
	cache := session.NewInMemory[domain.ConversationState](cfg.SessionTTL)
	app.closers = append(app.closers, func(context.Context) error { cache.Close(); return nil })
	storeOpts := []session.Option{session.WithObserver(app.Metrics)}
	var msgLog usecase.MessageLog
	if store != nil {
		storeOpts = append(storeOpts, session.WithPersistence(store))
		msgLog = store
		app.History = store
	}
	sessions, err := session.NewStore(cache, logger, storeOpts...)
	if err != nil {
		return err
	}

	// NLU
	aiClient, err := openai.NewClient(params, cfg.ParamPrefix, openai.WithHTTPClient(httpClient))
	if err != nil {
		return err
	}
	nlu, err := openai.NewNLU(aiClient, cfg.OpenAIModel, resilience.Config{MaxRetries: 1, InitialBackoff: cfg.InitialBackoff})
	if err != nil {
		return err
	}

	// Google Sheets and Drive
	tokens, err := google.NewTokenSource(func(ctx context.Context) (google.ServiceAccount, error) {
		var sa google.ServiceAccount
		err := paramstore.GetJSON(ctx, params, cfg.ParamPrefix+"/google-service-account", &sa)
		return sa, err
	}, httpClient)
	if err != nil {
		return err
	}
	gclient, err := google.NewClient(tokens, cfg.WorkingFolderID, retry, logger.Named("google"), google.WithHTTPClient(httpClient))
	if err != nil {
		return err
	}

	// statements
	agg, err := statement.NewAggregator(gclient, statement.Sources{
		ContractTableID:  cfg.ContractReportSheetID,
		StatementTableID: cfg.AccountStatementSheetID,
	}, cfg.Layout, logger.Named("statement"))
	if err != nil {
		return err
	}
	composer := statement.NewComposer(statement.NewAddressParser(nlu, logger.Named("address")), cfg.Layout.Template)
	generator, err := statement.NewGenerator(agg, composer, gclient, cfg.TemplateSheetID, logger.Named("statement"),
		statement.WithRecorder(app.Metrics))
	if err != nil {
		return err
	}

	// dialogue
	engine, err := usecase.NewEngine(sessions, agg, agg, generator, logger.Named("engine"),
		usecase.WithExtractor(nlu),
		usecase.WithRecorder(app.Metrics),
	)
	if err != nil {
		return err
	}
	app.Engine = engine

	var messenger usecase.Messenger
	if o.deliver {
		wc, err := wati.NewClient(func(ctx context.Context) (wati.Credentials, error) {
			var creds wati.Credentials
			err := paramstore.GetJSON(ctx, params, cfg.ParamPrefix+"/wati", &creds)
			return creds, err
		}, httpClient, retry, logger.Named("wati"))
		if err != nil {
			return err
		}
		messenger = wc
	}
	app.Inquiry, err = usecase.NewInquiryService(engine, messenger, msgLog, logger.Named("inquiry"))
	return err
}

// durableStore returns nil for the memory backend.
func (app *App) durableStore(ctx context.Context, awsCfg aws.Config) (durable, error) {
	cfg := app.Config
	switch cfg.StateBackend {
	case config.BackendDynamoDB:
		dynamo, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable, cfg.SessionTTL)
		if err != nil {
			return nil, err
		}
		return dynamo, nil
	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return db.Close() })
		pg, err := postgres.New(db, ids.NewSnowflake(1))
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureTable(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, nil
	}
}

// Close releases resources in reverse order of acquisition.
func (app *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	if app.Logger != nil {
		_ = app.Logger.Sync()
	}
	return errors.Join(errs...)
}
