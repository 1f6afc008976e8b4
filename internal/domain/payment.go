package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is an append-only ledger entry. ParcelID is a weak reference: the
// parcel may be deleted later, the ledger row stays.
type Payment struct {
	ID            uuid.UUID       `json:"id"`
	ParcelID      uuid.UUID       `json:"parcelId"`
	OwnerEmail    string          `json:"email"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"paymentMethod"`
	TransactionID string          `json:"transactionId"`
	PaidAt        time.Time       `json:"paid_at"`
	PaidAtString  string          `json:"paid_at_string"`
}

// PaymentEvent is published to the payments topic after a reconciliation
// commits.
type PaymentEvent struct {
	PaymentID     uuid.UUID       `json:"payment_id"`
	ParcelID      uuid.UUID       `json:"parcel_id"`
	OwnerEmail    string          `json:"email"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
	PaidAt        time.Time       `json:"paid_at"`
}

var cents = decimal.NewFromInt(100)

// MinorUnits converts a currency amount to the processor's integer minor-unit
// representation: 25.00 -> 2500. Rounds to the nearest whole unit, half away
// from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(cents).Round(0).IntPart()
}
