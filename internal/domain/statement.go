package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// CurrencyPrefix is the fixed currency code shown on statements.
const CurrencyPrefix = "RM"

// Amount is a monetary value in cents.
type Amount int64

// Plain formats the amount with two decimals and thousands separators.
func (a Amount) Plain() string {
	neg := a < 0
	v := int64(a)
	if neg {
		v = -v
	}
	whole := strconv.FormatInt(v/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := fmt.Sprintf("%s.%02d", b.String(), v%100)
	if neg {
		return "-" + out
	}
	return out
}

// String formats the amount with the currency prefix, e.g. "RM 1,234.50".
func (a Amount) String() string {
	return CurrencyPrefix + " " + a.Plain()
}

// ContractRecord is one row of the contract directory.
type ContractRecord struct {
	ContractID      string `json:"contract_id"`
	CompanyName     string `json:"company_name"`
	CustomerName    string `json:"customer_name"`
	DeliveryAddress string `json:"delivery_address"`
	CustomerCode    string `json:"customer_code"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	Email           string `json:"email"`
}

// DisplayName is the name printed on a statement: the customer name, or the
// company name when the customer name is blank.
func (c ContractRecord) DisplayName() string {
	if n := strings.TrimSpace(c.CustomerName); n != "" {
		return n
	}
	return strings.TrimSpace(c.CompanyName)
}

// AccountSummary holds totals summed over a set of contracts.
type AccountSummary struct {
	TotalInvoiced Amount
	TotalPaid     Amount
	Outstanding   Amount
	// Matched is the number of summary rows that contributed.
	Matched int
}

// InvoiceDetailRecord is one row from an account-statement detail partition.
type InvoiceDetailRecord struct {
	ContractID     string
	InvoiceNo      string
	ReceiptNo      string
	Month          string
	InvoicedAmount Amount
	PaidAmount     Amount
	PaymentStatus  string
	PaidAt         string
	Outstanding    Amount
	Type           string
}

var placeholderReceipts = map[string]struct{}{
	"":     {},
	"-":    {},
	"--":   {},
	"n/a":  {},
	"na":   {},
	"none": {},
	"nil":  {},
	"null": {},
	"0":    {},
}

// HasReceipt reports whether the record carries a real receipt number.
func (r InvoiceDetailRecord) HasReceipt() bool {
	_, placeholder := placeholderReceipts[strings.ToLower(strings.TrimSpace(r.ReceiptNo))]
	return !placeholder
}

// IsMissingInvoice reports whether the record is a "missing invoice"
// placeholder row that must not appear on a statement.
func (r InvoiceDetailRecord) IsMissingInvoice() bool {
	for _, v := range []string{r.InvoiceNo, r.PaymentStatus, r.Type} {
		if strings.Contains(strings.ToLower(v), "missing invoice") {
			return true
		}
	}
	return false
}

// LoyaltyRecord is one row of the loyalty points sheet.
type LoyaltyRecord struct {
	ContractID string
	InvoiceNo  string
	UserName   string
	Points     float64
}

// RowKind distinguishes the rows of a composed statement.
type RowKind int

const (
	RowHeader RowKind = iota
	RowInvoice
	RowReceipt
	RowSummary
)

// ReportRow is a single rendered statement row.
type ReportRow struct {
	Kind      RowKind
	Cells     []string
	Balance   Amount
	Highlight bool
}

// CellWrite sets a single template cell, e.g. {Cell: "A10", Value: "ACME"}.
type CellWrite struct {
	Cell  string
	Value string
}

// FormatPoints renders a loyalty value without trailing zeros.
func FormatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
