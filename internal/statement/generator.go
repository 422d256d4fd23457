package statement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"sr-chatbot/internal/domain"
	"sr-chatbot/internal/infra/ids"
)

// ErrContractNotFound is returned when none of the requested contracts
// exist in the directory.
var ErrContractNotFound = errors.New("statement: contract not found")

var tracer = otel.Tracer("sr-chatbot/statement")

// Recorder receives generation metrics.
type Recorder interface {
	IncrDocument(kind string, ok bool)
	RecordDuration(operation string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) IncrDocument(string, bool)            {}
func (nopRecorder) RecordDuration(string, time.Duration) {}

// Generator renders statements from the template into shareable PDFs.
type Generator struct {
	agg        *Aggregator
	composer   *Composer
	renderer   DocumentRenderer
	templateID string
	tmpl       Template
	logger     *zap.Logger
	metrics    Recorder

	now       func() time.Time
	newSuffix func() string
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithRecorder reports generation metrics to r.
func WithRecorder(r Recorder) GeneratorOption {
	return func(g *Generator) {
		if r != nil {
			g.metrics = r
		}
	}
}

// WithClock overrides the statement date source.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// NewGenerator validates its dependencies and returns a Generator.
func NewGenerator(agg *Aggregator, composer *Composer, renderer DocumentRenderer, templateID string, logger *zap.Logger, opts ...GeneratorOption) (*Generator, error) {
	if agg == nil {
		return nil, errors.New("statement: aggregator must not be nil")
	}
	if composer == nil {
		return nil, errors.New("statement: composer must not be nil")
	}
	if renderer == nil {
		return nil, errors.New("statement: renderer must not be nil")
	}
	if strings.TrimSpace(templateID) == "" {
		return nil, errors.New("statement: template id must not be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generator{
		agg:        agg,
		composer:   composer,
		renderer:   renderer,
		templateID: templateID,
		tmpl:       composer.tmpl,
		logger:     logger,
		metrics:    nopRecorder{},
		now:        time.Now,
		newSuffix:  ids.NewKSUID,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// renderJob is one template fill.
type renderJob struct {
	kind      string
	tab       string
	unusedTab string
	baseName  string
	header    []domain.CellWrite
	rows      []domain.ReportRow
	// headerRow is the fixed row holding the leading RowHeader, or 0 when
	// every row is inserted.
	headerRow int
}

// GenerateSingle renders the statement of one contract and returns its link.
func (g *Generator) GenerateSingle(ctx context.Context, contractID string) (link string, err error) {
	ctx, span := tracer.Start(ctx, "Generator.GenerateSingle")
	defer span.End()
	span.SetAttributes(attribute.String("contract_id", contractID))
	start := g.now()
	defer func() { g.finish(span, "single", start, err) }()

	contracts, err := g.agg.Contracts(ctx, []string{contractID})
	if err != nil {
		return "", err
	}
	if len(contracts) == 0 {
		return "", fmt.Errorf("%w: %s", ErrContractNotFound, contractID)
	}
	contract := contracts[0]
	scope := []string{contract.ContractID}

	in := SingleInput{Contract: contract}
	if in.Summary, err = g.agg.Summary(ctx, scope); err != nil {
		return "", err
	}
	if in.Details, err = g.agg.Details(ctx, scope); err != nil {
		return "", err
	}
	if in.Loyalty, err = g.agg.LoyaltyByContract(ctx, scope); err != nil {
		return "", err
	}
	if in.LoyaltyTotal, err = g.agg.LoyaltyTotal(ctx, contract.DisplayName()); err != nil {
		return "", err
	}

	now := g.now()
	return g.render(ctx, renderJob{
		kind:      "single",
		tab:       g.tmpl.SingleTab,
		unusedTab: g.tmpl.MultiTab,
		baseName:  "Statement_Single_" + SafeFileComponent(contract.ContractID) + "_" + now.UTC().Format("20060102_150405"),
		header:    g.composer.SingleHeader(ctx, in, now),
		rows:      g.composer.ComposeSingle(in),
		headerRow: g.tmpl.ContractHeaderRow,
	})
}

// GenerateMulti renders one statement covering contractIDs for customer.
func (g *Generator) GenerateMulti(ctx context.Context, customer string, contractIDs []string) (link string, err error) {
	ctx, span := tracer.Start(ctx, "Generator.GenerateMulti")
	defer span.End()
	span.SetAttributes(attribute.Int("contracts", len(contractIDs)))
	start := g.now()
	defer func() { g.finish(span, "multi", start, err) }()

	contracts, err := g.agg.Contracts(ctx, contractIDs)
	if err != nil {
		return "", err
	}
	if len(contracts) == 0 {
		return "", fmt.Errorf("%w: %s", ErrContractNotFound, strings.Join(contractIDs, ","))
	}

	in := MultiInput{Contracts: contracts}
	if in.Summary, err = g.agg.Summary(ctx, contractIDs); err != nil {
		return "", err
	}
	if in.DetailsByContract, err = g.agg.DetailsByContract(ctx, contractIDs); err != nil {
		return "", err
	}
	// Loyalty points are keyed by the customer on the first contract, not
	// by the verified name, which is usually the company.
	holder := contracts[0].DisplayName()
	if holder == "" {
		holder = customer
	}
	if in.LoyaltyTotal, err = g.agg.LoyaltyTotal(ctx, holder); err != nil {
		return "", err
	}

	now := g.now()
	return g.render(ctx, renderJob{
		kind:      "multi",
		tab:       g.tmpl.MultiTab,
		unusedTab: g.tmpl.SingleTab,
		baseName:  "Statement_Multi_" + SafeFileComponent(holder) + "_" + now.UTC().Format("20060102_150405"),
		header:    g.composer.MultiHeader(ctx, in, now),
		rows:      g.composer.ComposeMulti(in),
	})
}

func (g *Generator) finish(span trace.Span, kind string, start time.Time, err error) {
	g.metrics.RecordDuration("generate_"+kind, g.now().Sub(start))
	g.metrics.IncrDocument(kind, err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// render copies the template, fills it, exports the tab, stores the PDF and
// returns its shareable link. The working copy is always discarded.
func (g *Generator) render(ctx context.Context, job renderJob) (string, error) {
	docID, err := g.renderer.Copy(ctx, g.templateID, job.baseName+"_"+g.newSuffix())
	if err != nil {
		return "", fmt.Errorf("statement: copy template: %w", err)
	}
	defer func() {
		// Discard must run even if ctx was cancelled mid-render.
		if derr := g.renderer.Discard(context.WithoutCancel(ctx), docID); derr != nil {
			g.logger.Warn("discard working copy failed", zap.String("doc_id", docID), zap.Error(derr))
		}
	}()

	if err := g.renderer.DeleteTab(ctx, docID, job.unusedTab); err != nil {
		return "", fmt.Errorf("statement: delete tab %q: %w", job.unusedTab, err)
	}

	writes := make([]CellRange, 0, len(job.header)+1)
	for _, c := range job.header {
		writes = append(writes, CellRange{Anchor: c.Cell, Values: [][]string{{c.Value}}})
	}
	if err := g.renderer.WriteCells(ctx, docID, job.tab, writes); err != nil {
		return "", fmt.Errorf("statement: write header: %w", err)
	}

	if err := g.fillRows(ctx, docID, job); err != nil {
		return "", err
	}

	pdf, err := g.renderer.ExportAsDocument(ctx, docID, job.tab)
	if err != nil {
		return "", fmt.Errorf("statement: export: %w", err)
	}
	storedID, err := g.renderer.Store(ctx, pdf, job.baseName+".pdf")
	if err != nil {
		return "", fmt.Errorf("statement: store: %w", err)
	}
	link, err := g.renderer.ShareableLink(ctx, storedID)
	if err != nil {
		return "", fmt.Errorf("statement: share: %w", err)
	}
	g.logger.Info("statement generated",
		zap.String("kind", job.kind),
		zap.String("file", job.baseName+".pdf"),
		zap.Int("rows", len(job.rows)))
	return link, nil
}

// fillRows inserts the body rows at the template anchor and highlights
// header and summary rows.
func (g *Generator) fillRows(ctx context.Context, docID string, job renderJob) error {
	rows := job.rows
	var highlight []int
	if job.headerRow > 0 && len(rows) > 0 && rows[0].Kind == domain.RowHeader {
		// Already written as a header cell; only highlight it.
		if rows[0].Highlight {
			highlight = append(highlight, job.headerRow)
		}
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil
	}

	at := g.tmpl.InsertAtRow
	if err := g.renderer.InsertRows(ctx, docID, job.tab, at, len(rows), g.tmpl.FormatFromRow); err != nil {
		return fmt.Errorf("statement: insert rows: %w", err)
	}
	values := make([][]string, len(rows))
	for i, r := range rows {
		values[i] = r.Cells
		if r.Highlight {
			highlight = append(highlight, at+i)
		}
	}
	if err := g.renderer.WriteCells(ctx, docID, job.tab, []CellRange{{Anchor: fmt.Sprintf("A%d", at), Values: values}}); err != nil {
		return fmt.Errorf("statement: write rows: %w", err)
	}
	if len(highlight) == 0 {
		return nil
	}
	if err := g.renderer.HighlightRows(ctx, docID, job.tab, highlight, g.tmpl.HighlightColumns, g.tmpl.Highlight); err != nil {
		return fmt.Errorf("statement: highlight rows: %w", err)
	}
	return nil
}
