package gateway

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/momopay/pkg/enums"
	"github.com/shopspring/decimal"
)

// PayResult is the backend's acceptance of a charge request.
type PayResult struct {
	PaymentID string `json:"paymentId"`
}

// StatusResult answers a status-by-key query.
type StatusResult struct {
	Status    enums.RemoteStatus `json:"status"`
	PaymentID string             `json:"paymentId,omitempty"`
}

// PaymentDetails is the backend's view of a processed payment.
type PaymentDetails struct {
	ID        string                 `json:"id,omitempty"`
	Status    enums.SettlementStatus `json:"status"`
	ChargeID  string                 `json:"chargeId,omitempty"`
	Amount    decimal.Decimal        `json:"amount"`
	Currency  string                 `json:"currency,omitempty"`
	Provider  string                 `json:"provider,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	// User and Cart are either ids or embedded documents depending on the backend query.
	User json.RawMessage `json:"userId,omitempty"`
	Cart json.RawMessage `json:"cartId,omitempty"`
}

// BackupResult is the outcome of a provider-level verification by charge id.
type BackupResult struct {
	Success        bool                   `json:"success"`
	VerifiedStatus enums.SettlementStatus `json:"verifiedStatus"`
	Payment        *PaymentDetails        `json:"payment,omitempty"`
}

// Settled reports whether the backup verification confirmed the debit.
func (r BackupResult) Settled() bool {
	if !r.Success {
		return false
	}
	if r.VerifiedStatus != "" {
		return r.VerifiedStatus.IsSettled()
	}
	return r.Payment != nil && r.Payment.Status.IsSettled()
}

type processingResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Payment *PaymentDetails `json:"payment"`
}

type transactionsResponse struct {
	Success      bool             `json:"success"`
	Message      string           `json:"message,omitempty"`
	Transactions []PaymentDetails `json:"transactions"`
}

type backupRequest struct {
	ChargeID string `json:"chargeId"`
}
