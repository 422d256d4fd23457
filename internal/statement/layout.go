package statement

import "fmt"

// Layout names the source sheets and the template cells a statement is
// written to. DefaultLayout matches the production template; a YAML file
// can override any field.
type Layout struct {
	ContractTab   string   `yaml:"contract_tab"`
	ContractCols  string   `yaml:"contract_cols"`
	SummaryTab    string   `yaml:"summary_tab"`
	SummaryCols   string   `yaml:"summary_cols"`
	DetailTab     string   `yaml:"detail_tab"`
	DetailCols    string   `yaml:"detail_cols"`
	MaxDetailTabs int      `yaml:"max_detail_tabs"`
	LoyaltyTab    string   `yaml:"loyalty_tab"`
	LoyaltyCols   string   `yaml:"loyalty_cols"`
	Template      Template `yaml:"template"`
}

// Template describes cell anchors inside the statement template.
type Template struct {
	SingleTab         string    `yaml:"single_tab"`
	MultiTab          string    `yaml:"multi_tab"`
	CustomerNameCell  string    `yaml:"customer_name_cell"`
	AddressCells      [3]string `yaml:"address_cells"`
	EmailCell         string    `yaml:"email_cell"`
	CustomerCodeCell  string    `yaml:"customer_code_cell"`
	DateCell          string    `yaml:"date_cell"`
	TotalInvoicedCell string    `yaml:"total_invoiced_cell"`
	TotalPaidCell     string    `yaml:"total_paid_cell"`
	OutstandingCell   string    `yaml:"outstanding_cell"`
	ContractHeaderRow int       `yaml:"contract_header_row"`
	SingleLoyaltyCell string    `yaml:"single_loyalty_cell"`
	MultiLoyaltyCell  string    `yaml:"multi_loyalty_cell"`
	InsertAtRow       int       `yaml:"insert_at_row"`
	FormatFromRow     int       `yaml:"format_from_row"`
	HighlightColumns  int       `yaml:"highlight_columns"`
	Highlight         Color     `yaml:"highlight"`
}

// DefaultLayout returns the layout of the production spreadsheets.
func DefaultLayout() Layout {
	return Layout{
		ContractTab:   "Contract Report",
		ContractCols:  "A:M",
		SummaryTab:    "Account Statement - summarised",
		SummaryCols:   "A:J",
		DetailTab:     "Account Statement",
		DetailCols:    "A:K",
		MaxDetailTabs: 5,
		LoyaltyTab:    "Planet Point",
		LoyaltyCols:   "A:G",
		Template: Template{
			SingleTab:         "Single",
			MultiTab:          "Multi",
			CustomerNameCell:  "A10",
			AddressCells:      [3]string{"A11", "A12", "A13"},
			EmailCell:         "A14",
			CustomerCodeCell:  "I10",
			DateCell:          "I11",
			TotalInvoicedCell: "I12",
			TotalPaidCell:     "I13",
			OutstandingCell:   "I14",
			ContractHeaderRow: 16,
			SingleLoyaltyCell: "D26",
			MultiLoyaltyCell:  "D29",
			InsertAtRow:       17,
			FormatFromRow:     15,
			HighlightColumns:  7,
			Highlight:         Color{Red: 1.0, Green: 0.9, Blue: 0.6},
		},
	}
}

// DetailTabs enumerates the detail partitions in scan order:
// "Account Statement", "Account Statement (2)", ... up to MaxDetailTabs.
func (l Layout) DetailTabs() []string {
	n := l.MaxDetailTabs
	if n <= 0 {
		n = 1
	}
	tabs := make([]string, 0, n)
	tabs = append(tabs, l.DetailTab)
	for i := 2; i <= n; i++ {
		tabs = append(tabs, fmt.Sprintf("%s (%d)", l.DetailTab, i))
	}
	return tabs
}

// Validate reports layout values that would produce a broken document.
func (l Layout) Validate() error {
	switch {
	case l.ContractTab == "" || l.SummaryTab == "" || l.DetailTab == "" || l.LoyaltyTab == "":
		return fmt.Errorf("statement: layout: sheet names must not be empty")
	case l.Template.SingleTab == "" || l.Template.MultiTab == "":
		return fmt.Errorf("statement: layout: template tabs must not be empty")
	case l.Template.InsertAtRow <= 0 || l.Template.FormatFromRow <= 0:
		return fmt.Errorf("statement: layout: row anchors must be positive")
	case l.Template.HighlightColumns <= 0:
		return fmt.Errorf("statement: layout: highlight_columns must be positive")
	}
	return nil
}

func rangeSpec(tab, cols string) string {
	return fmt.Sprintf("'%s'!%s", tab, cols)
}
