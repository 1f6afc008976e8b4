package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	StatusUnpaid PaymentStatus = "unpaid"
	StatusPaid   PaymentStatus = "paid"
)

// Parcel is the authoritative delivery record. Details is the client-supplied
// metadata blob (weight, addresses, whatever the frontend sends) and is opaque
// to the reconciliation core.
type Parcel struct {
	ID            uuid.UUID       `json:"id"`
	CreatorEmail  string          `json:"creatorEmail"`
	Details       json.RawMessage `json:"details,omitempty"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	CreatedAt     time.Time       `json:"createdAt"`
}
