package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/profast/parcel-payments-service/internal/domain"
	"github.com/profast/parcel-payments-service/internal/logger"
)

var (
	ErrParcelNotFound    = errors.New("parcel not found")
	ErrParcelAlreadyPaid = errors.New("parcel already paid")
	ErrLedgerWrite       = errors.New("ledger write failed")
)

type PaymentRepo interface {
	ConfirmParcelPayment(ctx context.Context, p *domain.Payment) (uuid.UUID, bool, error)
	ListPayments(ctx context.Context, ownerEmail string) ([]domain.Payment, error)
}

type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// ConfirmParcelPayment flips the parcel to paid and appends the ledger row in
// one transaction. The status update is conditional on the parcel still being
// unpaid, so of two concurrent confirmations exactly one commits a ledger
// entry; the other sees ErrParcelAlreadyPaid.
func (r *PaymentRepository) ConfirmParcelPayment(ctx context.Context, p *domain.Payment) (uuid.UUID, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE parcels
		 SET payment_status = $1
		 WHERE id = $2 AND payment_status = $3`,
		domain.StatusPaid, p.ParcelID, domain.StatusUnpaid,
	)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("update parcel status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Either the parcel does not exist or it lost the unpaid precondition.
		var status domain.PaymentStatus
		err = tx.QueryRow(ctx,
			`SELECT payment_status FROM parcels WHERE id = $1`, p.ParcelID,
		).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return uuid.Nil, false, ErrParcelNotFound
			}
			return uuid.Nil, false, fmt.Errorf("check parcel: %w", err)
		}
		return uuid.Nil, false, ErrParcelAlreadyPaid
	}

	var paymentID uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO payments
			(parcel_id, owner_email, amount, method, transaction_id, paid_at, paid_at_string)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		p.ParcelID, p.OwnerEmail, p.Amount, p.Method, p.TransactionID, p.PaidAt, p.PaidAtString,
	).Scan(&paymentID)
	if err != nil {
		// Rolls the status flip back, but the caller still has to learn the
		// reconciliation step that failed.
		return uuid.Nil, false, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	if err = tx.Commit(ctx); err != nil {
		logger.Warn("confirm payment commit failed", "parcel_id", p.ParcelID, "err", err)
		return uuid.Nil, false, fmt.Errorf("%w: commit: %v", ErrLedgerWrite, err)
	}
	tx = nil

	p.ID = paymentID
	return paymentID, true, nil
}

func (r *PaymentRepository) ListPayments(ctx context.Context, ownerEmail string) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, parcel_id, owner_email, amount, method, transaction_id, paid_at, paid_at_string
		 FROM payments
		 WHERE owner_email = $1
		 ORDER BY paid_at DESC`,
		ownerEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.ParcelID, &p.OwnerEmail, &p.Amount, &p.Method, &p.TransactionID, &p.PaidAt, &p.PaidAtString); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return payments, nil
}
