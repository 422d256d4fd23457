package statement

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"sr-chatbot/internal/domain"
)

// rowWidth is the number of cells in every composed row:
// No. | Date | Description | Debit | Credit | Balance | Points
const rowWidth = 7

// Composer turns aggregated records into statement rows and header cells.
type Composer struct {
	address *AddressParser
	tmpl    Template
}

// NewComposer returns a Composer writing to the cells named by tmpl.
func NewComposer(address *AddressParser, tmpl Template) *Composer {
	if address == nil {
		address = NewAddressParser(nil, nil)
	}
	return &Composer{address: address, tmpl: tmpl}
}

// SingleInput is everything a single-contract statement is built from.
type SingleInput struct {
	Contract       domain.ContractRecord
	Summary        domain.AccountSummary
	Details        []domain.InvoiceDetailRecord
	Loyalty        []domain.LoyaltyRecord
	LoyaltyTotal   float64
	OpeningBalance domain.Amount
}

// MultiInput is everything a multi-contract statement is built from.
// DetailsByContract is keyed by the normalized contract id.
type MultiInput struct {
	Contracts         []domain.ContractRecord
	Summary           domain.AccountSummary
	DetailsByContract map[string][]domain.InvoiceDetailRecord
	LoyaltyTotal      float64
}

// ContractHeader is the single-statement header line.
func ContractHeader(c domain.ContractRecord) string {
	return fmt.Sprintf("CONTRACT #%s (%s - %s)", c.ContractID, c.StartDate, c.EndDate)
}

func newRow(kind domain.RowKind, balance domain.Amount, highlight bool, cells ...string) domain.ReportRow {
	out := make([]string, rowWidth)
	copy(out, cells)
	return domain.ReportRow{Kind: kind, Cells: out, Balance: balance, Highlight: highlight}
}

// summaryRow carries the computed running balance; its cells show the
// aggregate outstanding value reported by the summary sheet.
func summaryRow(balance domain.Amount, sum domain.AccountSummary, loyaltyTotal float64) domain.ReportRow {
	return newRow(domain.RowSummary, balance, true,
		"", "", "", "", "BALANCE:", sum.Outstanding.String(), domain.FormatPoints(loyaltyTotal))
}

func amountCell(a domain.Amount) string {
	if a == 0 {
		return ""
	}
	return a.Plain()
}

// ComposeSingle builds the rows of a single-contract statement: the
// contract header, invoices then receipts each sorted by date, and a
// trailing balance row. No details yields no rows.
func (c *Composer) ComposeSingle(in SingleInput) []domain.ReportRow {
	var invoices, receipts []domain.InvoiceDetailRecord
	for _, d := range in.Details {
		if d.IsMissingInvoice() {
			continue
		}
		d.Month = NormalizeDate(d.Month)
		d.PaidAt = NormalizeDate(d.PaidAt)
		if d.HasReceipt() {
			receipts = append(receipts, d)
		} else {
			invoices = append(invoices, d)
		}
	}
	if len(invoices)+len(receipts) == 0 {
		return nil
	}
	sort.SliceStable(invoices, func(i, j int) bool {
		return dateBefore(invoices[i].Month, invoices[j].Month)
	})
	sort.SliceStable(receipts, func(i, j int) bool {
		return dateBefore(receiptDate(receipts[i]), receiptDate(receipts[j]))
	})

	points := pointsByInvoice(in.Loyalty)
	rows := []domain.ReportRow{newRow(domain.RowHeader, in.OpeningBalance, true, ContractHeader(in.Contract))}
	balance := in.OpeningBalance

	for _, d := range invoices {
		balance += d.InvoicedAmount - d.PaidAmount
		desc := d.PaymentStatus
		if desc == "" {
			desc = "Invoice"
		}
		rows = append(rows, newRow(domain.RowInvoice, balance, false,
			d.InvoiceNo, d.Month, desc, amountCell(d.InvoicedAmount), amountCell(d.PaidAmount),
			balance.Plain(), points.lookup(d.InvoiceNo)))
	}
	for _, d := range receipts {
		// Receipt-only records (advance payments) carry no invoice to show.
		if d.InvoiceNo != "" || d.InvoicedAmount != 0 {
			balance += d.InvoicedAmount
			rows = append(rows, newRow(domain.RowInvoice, balance, false,
				d.InvoiceNo, d.Month, "Invoice", amountCell(d.InvoicedAmount), "",
				balance.Plain(), points.lookup(d.InvoiceNo)))
		}
		balance -= d.PaidAmount
		rows = append(rows, newRow(domain.RowReceipt, balance, false,
			d.ReceiptNo, receiptDate(d), receiptDescription(d), "", amountCell(d.PaidAmount),
			balance.Plain(), ""))
	}

	return append(rows, summaryRow(balance, in.Summary, in.LoyaltyTotal))
}

func receiptDate(d domain.InvoiceDetailRecord) string {
	if d.PaidAt != "" {
		return d.PaidAt
	}
	return d.Month
}

func receiptDescription(d domain.InvoiceDetailRecord) string {
	if d.InvoiceNo == "" {
		return "Payment"
	}
	return "Payment - " + d.InvoiceNo
}

// ComposeMulti builds the rows of a multi-contract statement: per contract
// a highlighted header followed by its details in source order, then one
// trailing balance row. No contracts yields no rows.
func (c *Composer) ComposeMulti(in MultiInput) []domain.ReportRow {
	if len(in.Contracts) == 0 {
		return nil
	}
	var rows []domain.ReportRow
	var balance domain.Amount
	for _, ct := range in.Contracts {
		header := fmt.Sprintf("%s | %s | %s", ct.ContractID, ct.StartDate, ct.EndDate)
		rows = append(rows, newRow(domain.RowHeader, balance, true, header))
		for _, d := range in.DetailsByContract[normalizeID(ct.ContractID)] {
			balance += d.InvoicedAmount - d.PaidAmount
			kind := domain.RowInvoice
			no := d.InvoiceNo
			if d.HasReceipt() {
				kind = domain.RowReceipt
				no = d.InvoiceNo + " / " + d.ReceiptNo
			}
			rows = append(rows, newRow(kind, balance, false,
				no, NormalizeDate(d.Month), d.PaymentStatus, amountCell(d.InvoicedAmount),
				amountCell(d.PaidAmount), balance.Plain(), ""))
		}
	}
	return append(rows, summaryRow(balance, in.Summary, in.LoyaltyTotal))
}

type invoicePoints map[string]float64

func pointsByInvoice(recs []domain.LoyaltyRecord) invoicePoints {
	p := make(invoicePoints, len(recs))
	for _, r := range recs {
		if key := strings.TrimSpace(r.InvoiceNo); key != "" {
			p[key] += r.Points
		}
	}
	return p
}

func (p invoicePoints) lookup(invoiceNo string) string {
	v, ok := p[strings.TrimSpace(invoiceNo)]
	if !ok {
		return ""
	}
	return domain.FormatPoints(v)
}

// SingleHeader returns the fixed template cells of a single statement.
func (c *Composer) SingleHeader(ctx context.Context, in SingleInput, date time.Time) []domain.CellWrite {
	t := c.tmpl
	cells := c.customerBlock(ctx, in.Contract, in.Summary, date)
	cells = append(cells,
		domain.CellWrite{Cell: t.EmailCell, Value: "EMAIL: " + in.Contract.Email},
		domain.CellWrite{Cell: t.SingleLoyaltyCell, Value: ": " + domain.FormatPoints(in.LoyaltyTotal)},
		domain.CellWrite{Cell: fmt.Sprintf("A%d", t.ContractHeaderRow), Value: ContractHeader(in.Contract)},
	)
	return cells
}

// MultiHeader returns the fixed template cells of a multi statement. The
// customer block comes from the first contract.
func (c *Composer) MultiHeader(ctx context.Context, in MultiInput, date time.Time) []domain.CellWrite {
	var first domain.ContractRecord
	if len(in.Contracts) > 0 {
		first = in.Contracts[0]
	}
	cells := c.customerBlock(ctx, first, in.Summary, date)
	return append(cells, domain.CellWrite{Cell: c.tmpl.MultiLoyaltyCell, Value: domain.FormatPoints(in.LoyaltyTotal)})
}

func (c *Composer) customerBlock(ctx context.Context, ct domain.ContractRecord, sum domain.AccountSummary, date time.Time) []domain.CellWrite {
	t := c.tmpl
	lines := c.address.Parse(ctx, ct.DeliveryAddress)
	return []domain.CellWrite{
		{Cell: t.CustomerNameCell, Value: ct.DisplayName()},
		{Cell: t.AddressCells[0], Value: lines[0]},
		{Cell: t.AddressCells[1], Value: lines[1]},
		{Cell: t.AddressCells[2], Value: lines[2]},
		{Cell: t.CustomerCodeCell, Value: ct.CustomerCode},
		{Cell: t.DateCell, Value: date.UTC().Format("2006-01-02")},
		{Cell: t.TotalInvoicedCell, Value: sum.TotalInvoiced.String()},
		{Cell: t.TotalPaidCell, Value: sum.TotalPaid.String()},
		{Cell: t.OutstandingCell, Value: sum.Outstanding.String()},
	}
}

// SafeFileComponent shortens a display name to 20 characters and replaces
// spaces and path separators so it can be embedded in a file name.
func SafeFileComponent(name string) string {
	r := []rune(strings.TrimSpace(name))
	if len(r) > 20 {
		r = r[:20]
	}
	return strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(string(r))
}
