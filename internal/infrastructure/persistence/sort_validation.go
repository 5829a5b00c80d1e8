package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed
// columns. Returns the defaultField if the input is empty or not whitelisted.
// Column names are interpolated into ORDER BY clauses, so everything that
// reaches the query builder must pass through here.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// InvoiceSortColumns contains the invoice table columns that list queries
// may order by.
var InvoiceSortColumns = map[string]bool{
	"id":                true,
	"created_at":        true,
	"updated_at":        true,
	"invoice_number":    true,
	"due_date":          true,
	"remaining_balance": true,
	"customer_name":     true,
	"amount_due":        true,
	"amount_paid":       true,
}
