package statement

import (
	"context"
	"fmt"
	"strings"

	"sr-chatbot/internal/domain"
)

// SearchContracts returns every directory row whose company or customer
// name contains name, case-insensitively, in source order.
func (a *Aggregator) SearchContracts(ctx context.Context, name string) ([]domain.ContractRecord, error) {
	query := strings.TrimSpace(strings.ReplaceAll(strings.ToLower(name), "contract", ""))
	if query == "" {
		return nil, nil
	}
	cols, rows, err := a.readTable(ctx, a.src.ContractTableID, a.layout.ContractTab, a.layout.ContractCols)
	if err != nil {
		return nil, fmt.Errorf("statement: SearchContracts: %w", err)
	}
	var out []domain.ContractRecord
	for _, row := range rows {
		rec := contractFromRow(cols, row)
		if strings.Contains(strings.ToLower(rec.CompanyName), query) ||
			strings.Contains(strings.ToLower(rec.CustomerName), query) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// registeredTo returns the rows whose company or customer name equals
// name, ignoring case and spacing. A verified name is always one of those
// two fields, so "ABC Corp" must not pick up "ABC Corporation Bhd".
func (a *Aggregator) registeredTo(ctx context.Context, name string) ([]domain.ContractRecord, error) {
	key := fieldKey(name)
	if key == "" {
		return nil, nil
	}
	cols, rows, err := a.readTable(ctx, a.src.ContractTableID, a.layout.ContractTab, a.layout.ContractCols)
	if err != nil {
		return nil, fmt.Errorf("statement: contracts for %q: %w", name, err)
	}
	var out []domain.ContractRecord
	for _, row := range rows {
		rec := contractFromRow(cols, row)
		if fieldKey(rec.CompanyName) == key || fieldKey(rec.CustomerName) == key {
			out = append(out, rec)
		}
	}
	return out, nil
}

func fieldKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ContractIDsFor returns the distinct contract ids registered to name.
func (a *Aggregator) ContractIDsFor(ctx context.Context, name string) ([]string, error) {
	recs, err := a.registeredTo(ctx, name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(recs))
	var ids []string
	for _, r := range recs {
		key := normalizeID(r.ContractID)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		ids = append(ids, r.ContractID)
	}
	return ids, nil
}

// ContractReport renders the contract listing for a verified name as a
// chat message.
func (a *Aggregator) ContractReport(ctx context.Context, name string) (string, error) {
	recs, err := a.registeredTo(ctx, name)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	count := 0
	for _, r := range recs {
		if strings.TrimSpace(r.ContractID) == "" {
			continue
		}
		count++
		fmt.Fprintf(&b, "\n%d. %s (%s - %s)", count, r.ContractID, orDash(r.StartDate), orDash(r.EndDate))
		if addr := strings.TrimSpace(r.DeliveryAddress); addr != "" {
			fmt.Fprintf(&b, "\n   Delivery: %s", addr)
		}
	}
	if count == 0 {
		return fmt.Sprintf("No contracts found for %s.", name), nil
	}
	return fmt.Sprintf("Contract Report for %s (%d contract(s)):%s", name, count, b.String()), nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
