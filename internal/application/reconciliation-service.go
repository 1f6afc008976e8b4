package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/profast/parcel-payments-service/internal/domain"
	"github.com/profast/parcel-payments-service/internal/logger"
	"github.com/profast/parcel-payments-service/internal/repository"
)

var (
	ErrInvalidReference   = errors.New("invalid parcel id")
	ErrParcelNotFound     = errors.New("parcel not found")
	ErrAlreadyPaid        = errors.New("parcel already paid")
	ErrMissingOwnerFilter = errors.New("owner email filter is required")
	ErrLedgerWrite        = errors.New("ledger write failed")
	ErrIntentCreation     = errors.New("payment intent creation failed")
)

// IntentIssuer creates a pending charge with the external processor and hands
// back the client confirmation token. No local state is involved.
type IntentIssuer interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal) (string, error)
}

type EventPublisher interface {
	PublishPayment(ctx context.Context, ev domain.PaymentEvent) error
}

type ConfirmRequest struct {
	ParcelID      string
	OwnerEmail    string
	Amount        decimal.Decimal
	Method        string
	TransactionID string
}

// ReconciliationService ties a parcel record to its confirmed payment: the
// parcel store answers "is this parcel paid", the ledger answers "how and
// when". All handles are acquired once at startup; the service itself holds
// no other state.
type ReconciliationService struct {
	parcels  repository.ParcelRepo
	payments repository.PaymentRepo
	issuer   IntentIssuer
	events   EventPublisher // optional
}

func NewReconciliationService(parcels repository.ParcelRepo, payments repository.PaymentRepo, issuer IntentIssuer, events EventPublisher) *ReconciliationService {
	return &ReconciliationService{
		parcels:  parcels,
		payments: payments,
		issuer:   issuer,
		events:   events,
	}
}

func (s *ReconciliationService) CreateParcel(ctx context.Context, p *domain.Parcel) (uuid.UUID, error) {
	id, err := s.parcels.CreateParcel(ctx, p)
	if err != nil {
		logger.Warn("create parcel failed", "err", err)
		return uuid.Nil, err
	}
	return id, nil
}

func (s *ReconciliationService) GetParcel(ctx context.Context, rawID string) (*domain.Parcel, error) {
	id, err := parseParcelID(rawID)
	if err != nil {
		return nil, err
	}
	return s.parcels.GetParcelByID(ctx, id)
}

func (s *ReconciliationService) ListParcels(ctx context.Context, ownerEmail string) ([]domain.Parcel, error) {
	return s.parcels.ListParcels(ctx, strings.TrimSpace(ownerEmail))
}

func (s *ReconciliationService) DeleteParcel(ctx context.Context, rawID string) (int64, error) {
	id, err := parseParcelID(rawID)
	if err != nil {
		return 0, err
	}
	return s.parcels.DeleteParcel(ctx, id)
}

// ConfirmPayment is the reconciliation state machine: validate the reference,
// transition unpaid->paid, append the ledger entry. The transition and the
// append commit atomically in the store; validation failures never touch
// persisted state.
func (s *ReconciliationService) ConfirmPayment(ctx context.Context, req ConfirmRequest) (*domain.Payment, bool, error) {
	parcelID, err := parseParcelID(req.ParcelID)
	if err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	payment := &domain.Payment{
		ParcelID:      parcelID,
		OwnerEmail:    req.OwnerEmail,
		Amount:        req.Amount,
		Method:        req.Method,
		TransactionID: req.TransactionID,
		PaidAt:        now,
		PaidAtString:  now.Format(time.RFC1123),
	}

	paymentID, modified, err := s.payments.ConfirmParcelPayment(ctx, payment)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrParcelNotFound):
			return nil, false, ErrParcelNotFound
		case errors.Is(err, repository.ErrParcelAlreadyPaid):
			// One payment record per parcel: a retried or racing confirmation
			// gets a no-op result, not a second ledger entry.
			return nil, false, ErrAlreadyPaid
		case errors.Is(err, repository.ErrLedgerWrite):
			logger.Error("ledger write failed after status transition", "parcel_id", parcelID, "tx", req.TransactionID, "err", err)
			return nil, false, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
		default:
			return nil, false, err
		}
	}
	payment.ID = paymentID

	if s.events != nil {
		ev := domain.PaymentEvent{
			PaymentID:     paymentID,
			ParcelID:      parcelID,
			OwnerEmail:    payment.OwnerEmail,
			Amount:        payment.Amount,
			TransactionID: payment.TransactionID,
			PaidAt:        payment.PaidAt,
		}
		// Best effort: the reconciliation already committed.
		if err := s.events.PublishPayment(ctx, ev); err != nil {
			logger.Warn("payment event publish failed", "payment_id", paymentID, "err", err)
		}
	}

	logger.Info("payment reconciled", "parcel_id", parcelID, "payment_id", paymentID, "tx", req.TransactionID)
	return payment, modified, nil
}

// ListPayments requires an owner filter: unscoped ledger listing is not a
// supported operation.
func (s *ReconciliationService) ListPayments(ctx context.Context, ownerEmail string) ([]domain.Payment, error) {
	ownerEmail = strings.TrimSpace(ownerEmail)
	if ownerEmail == "" {
		return nil, ErrMissingOwnerFilter
	}
	return s.payments.ListPayments(ctx, ownerEmail)
}

func (s *ReconciliationService) CreateIntent(ctx context.Context, amount decimal.Decimal) (string, error) {
	if !amount.IsPositive() {
		return "", fmt.Errorf("%w: amount must be positive", ErrIntentCreation)
	}

	token, err := s.issuer.CreateIntent(ctx, amount)
	if err != nil {
		logger.Warn("intent creation failed", "err", err)
		return "", fmt.Errorf("%w: %v", ErrIntentCreation, err)
	}
	return token, nil
}

func parseParcelID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidReference, raw)
	}
	return id, nil
}
