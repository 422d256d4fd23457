package statement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sr-chatbot/internal/domain"
)

// Sources identifies the spreadsheets the aggregator reads.
type Sources struct {
	ContractTableID  string
	StatementTableID string
}

// Aggregator fetches and merges contract, summary, detail and loyalty
// records by contract identifier. Records are fetched per call and never
// cached.
type Aggregator struct {
	reader TabularReader
	src    Sources
	layout Layout
	logger *zap.Logger
}

// NewAggregator validates its dependencies and returns an Aggregator.
func NewAggregator(reader TabularReader, src Sources, layout Layout, logger *zap.Logger) (*Aggregator, error) {
	if reader == nil {
		return nil, errors.New("statement: tabular reader must not be nil")
	}
	if strings.TrimSpace(src.ContractTableID) == "" || strings.TrimSpace(src.StatementTableID) == "" {
		return nil, errors.New("statement: source table ids must not be empty")
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{reader: reader, src: src, layout: layout, logger: logger}, nil
}

// readTable returns the header map and data rows of a tab. A header-only or
// empty tab yields no rows.
func (a *Aggregator) readTable(ctx context.Context, tableID, tab, cols string) (columns, [][]string, error) {
	rows, err := a.reader.ReadRange(ctx, tableID, rangeSpec(tab, cols))
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return columns{}, nil, nil
	}
	return newColumns(rows[0]), rows[1:], nil
}

func contractFromRow(c columns, row []string) domain.ContractRecord {
	return domain.ContractRecord{
		ContractID:      c.cell(row, "contract id"),
		CompanyName:     c.cell(row, "company name"),
		CustomerName:    c.cell(row, "customer name"),
		DeliveryAddress: c.cell(row, "delivery address"),
		CustomerCode:    c.cell(row, "customer code"),
		StartDate:       c.cell(row, "start date"),
		EndDate:         c.cell(row, "end date"),
		Email:           c.cell(row, "email"),
	}
}

// Contracts returns the directory rows for ids in source order.
func (a *Aggregator) Contracts(ctx context.Context, ids []string) ([]domain.ContractRecord, error) {
	cols, rows, err := a.readTable(ctx, a.src.ContractTableID, a.layout.ContractTab, a.layout.ContractCols)
	if err != nil {
		return nil, fmt.Errorf("statement: Contracts: %w", err)
	}
	if !cols.has("contract id") {
		return nil, nil
	}
	want := idSet(ids)
	var out []domain.ContractRecord
	for _, row := range rows {
		if _, ok := want[normalizeID(cols.cell(row, "contract id"))]; ok {
			out = append(out, contractFromRow(cols, row))
		}
	}
	return out, nil
}

// Summary sums the summary rows of ids. A row without an outstanding value
// contributes invoiced minus paid.
func (a *Aggregator) Summary(ctx context.Context, ids []string) (domain.AccountSummary, error) {
	var sum domain.AccountSummary
	cols, rows, err := a.readTable(ctx, a.src.StatementTableID, a.layout.SummaryTab, a.layout.SummaryCols)
	if err != nil {
		return sum, fmt.Errorf("statement: Summary: %w", err)
	}
	if !cols.has("contract id") {
		return sum, nil
	}
	// Outstanding is derived only when the sheet has no such column; a
	// blank or junk cell in a present column counts as zero.
	hasOutstanding := cols.has("outstanding", "outstanding amount")
	want := idSet(ids)
	for _, row := range rows {
		if _, ok := want[normalizeID(cols.cell(row, "contract id"))]; !ok {
			continue
		}
		invoiced := ParseAmount(cols.cell(row, "total invoiced"))
		paid := ParseAmount(cols.cell(row, "total paid"))
		sum.TotalInvoiced += invoiced
		sum.TotalPaid += paid
		if hasOutstanding {
			sum.Outstanding += ParseAmount(cols.cell(row, "outstanding", "outstanding amount"))
		} else {
			sum.Outstanding += invoiced - paid
		}
		sum.Matched++
	}
	return sum, nil
}

func detailFromRow(c columns, row []string) domain.InvoiceDetailRecord {
	return domain.InvoiceDetailRecord{
		ContractID:     c.cell(row, "contract id"),
		InvoiceNo:      c.cell(row, "invoice no.", "invoice no", "invoice number"),
		ReceiptNo:      c.cell(row, "receipt no.", "receipt no", "receipt number"),
		Month:          c.cell(row, "month"),
		InvoicedAmount: ParseAmount(c.cell(row, "invoiced amount")),
		PaidAmount:     ParseAmount(c.cell(row, "total paid", "paid amount")),
		PaymentStatus:  c.cell(row, "payment status"),
		PaidAt:         c.cell(row, "paid at"),
		Outstanding:    ParseAmount(c.cell(row, "outstanding amount", "outstanding")),
		Type:           c.cell(row, "type"),
	}
}

// Details scans the detail partitions in order and stops at the first one
// that does not exist.
func (a *Aggregator) Details(ctx context.Context, ids []string) ([]domain.InvoiceDetailRecord, error) {
	want := idSet(ids)
	var out []domain.InvoiceDetailRecord
	for _, tab := range a.layout.DetailTabs() {
		cols, rows, err := a.readTable(ctx, a.src.StatementTableID, tab, a.layout.DetailCols)
		if errors.Is(err, ErrTableNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("statement: Details %q: %w", tab, err)
		}
		if !cols.has("contract id") {
			a.logger.Warn("detail partition has no contract id column", zap.String("tab", tab))
			continue
		}
		for _, row := range rows {
			if _, ok := want[normalizeID(cols.cell(row, "contract id"))]; ok {
				out = append(out, detailFromRow(cols, row))
			}
		}
	}
	return out, nil
}

// DetailsByContract groups Details by normalized contract id.
func (a *Aggregator) DetailsByContract(ctx context.Context, ids []string) (map[string][]domain.InvoiceDetailRecord, error) {
	details, err := a.Details(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]domain.InvoiceDetailRecord, len(ids))
	for _, d := range details {
		key := normalizeID(d.ContractID)
		out[key] = append(out[key], d)
	}
	return out, nil
}

func (a *Aggregator) loyaltyTable(ctx context.Context) (columns, [][]string, error) {
	cols, rows, err := a.readTable(ctx, a.src.StatementTableID, a.layout.LoyaltyTab, a.layout.LoyaltyCols)
	if errors.Is(err, ErrTableNotFound) {
		a.logger.Warn("loyalty sheet not found", zap.String("tab", a.layout.LoyaltyTab))
		return columns{}, nil, nil
	}
	return cols, rows, err
}

// LoyaltyByContract returns the loyalty rows recorded against ids.
func (a *Aggregator) LoyaltyByContract(ctx context.Context, ids []string) ([]domain.LoyaltyRecord, error) {
	cols, rows, err := a.loyaltyTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("statement: LoyaltyByContract: %w", err)
	}
	if !cols.has("contract id") || !cols.has("points") {
		return nil, nil
	}
	want := idSet(ids)
	var out []domain.LoyaltyRecord
	for _, row := range rows {
		if _, ok := want[normalizeID(cols.cell(row, "contract id"))]; !ok {
			continue
		}
		out = append(out, domain.LoyaltyRecord{
			ContractID: cols.cell(row, "contract id"),
			InvoiceNo:  cols.cell(row, "invoice number", "invoice no.", "invoice no"),
			UserName:   cols.cell(row, "user_name", "customer name"),
			Points:     parsePoints(cols.cell(row, "points")),
		})
	}
	return out, nil
}

// LoyaltyTotal sums the points of every row whose name contains name or is
// contained in it. Blank names never match.
func (a *Aggregator) LoyaltyTotal(ctx context.Context, name string) (float64, error) {
	query := strings.ToLower(strings.TrimSpace(name))
	if query == "" {
		return 0, nil
	}
	cols, rows, err := a.loyaltyTable(ctx)
	if err != nil {
		return 0, fmt.Errorf("statement: LoyaltyTotal: %w", err)
	}
	if !cols.has("user_name", "customer name") || !cols.has("points") {
		return 0, nil
	}
	var total float64
	for _, row := range rows {
		rowName := strings.ToLower(cols.cell(row, "user_name", "customer name"))
		if rowName == "" {
			continue
		}
		if strings.Contains(rowName, query) || strings.Contains(query, rowName) {
			total += parsePoints(cols.cell(row, "points"))
		}
	}
	return total, nil
}

// Exists reports whether id has a summary row or any detail rows.
func (a *Aggregator) Exists(ctx context.Context, id string) (bool, error) {
	if normalizeID(id) == "" {
		return false, nil
	}
	sum, err := a.Summary(ctx, []string{id})
	if err != nil {
		return false, err
	}
	if sum.Matched > 0 {
		return true, nil
	}
	details, err := a.Details(ctx, []string{id})
	if err != nil {
		return false, err
	}
	return len(details) > 0, nil
}
