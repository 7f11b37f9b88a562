package enums

import "strings"

// SettlementStatus is the provider-side status reported by the processing and
// backup-confirm endpoints.
type SettlementStatus string

const (
	SettlementStatusSuccess   SettlementStatus = "success"
	SettlementStatusCompleted SettlementStatus = "completed"
	SettlementStatusPending   SettlementStatus = "pending"
	SettlementStatusFailed    SettlementStatus = "failed"
)

// String implements fmt.Stringer.
func (s SettlementStatus) String() string {
	return string(s)
}

// IsSettled reports whether the status confirms the debit. Matching is case-insensitive.
func (s SettlementStatus) IsSettled() bool {
	switch SettlementStatus(strings.ToLower(strings.TrimSpace(string(s)))) {
	case SettlementStatusSuccess, SettlementStatusCompleted:
		return true
	}
	return false
}
