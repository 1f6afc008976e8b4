package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/profast/parcel-payments-service/internal/domain"
)

type ParcelRepo interface {
	CreateParcel(ctx context.Context, p *domain.Parcel) (uuid.UUID, error)
	GetParcelByID(ctx context.Context, id uuid.UUID) (*domain.Parcel, error)
	ListParcels(ctx context.Context, ownerEmail string) ([]domain.Parcel, error)
	DeleteParcel(ctx context.Context, id uuid.UUID) (int64, error)
}

type ParcelRepository struct {
	pool *pgxpool.Pool
}

func NewParcelRepository(pool *pgxpool.Pool) *ParcelRepository {
	return &ParcelRepository{pool: pool}
}

func (r *ParcelRepository) CreateParcel(ctx context.Context, p *domain.Parcel) (uuid.UUID, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.PaymentStatus = domain.StatusUnpaid

	details := p.Details
	if details == nil {
		details = []byte(`{}`)
	}

	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO parcels (creator_email, details, payment_status, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		p.CreatorEmail, details, p.PaymentStatus, p.CreatedAt,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert parcel: %w", err)
	}

	p.ID = id
	return id, nil
}

func (r *ParcelRepository) GetParcelByID(ctx context.Context, id uuid.UUID) (*domain.Parcel, error) {
	var p domain.Parcel
	err := r.pool.QueryRow(ctx,
		`SELECT id, creator_email, details, payment_status, created_at
		 FROM parcels
		 WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.CreatorEmail, &p.Details, &p.PaymentStatus, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select parcel: %w", err)
	}
	return &p, nil
}

// ListParcels returns newest first. Empty ownerEmail means no filter.
func (r *ParcelRepository) ListParcels(ctx context.Context, ownerEmail string) ([]domain.Parcel, error) {
	query := `SELECT id, creator_email, details, payment_status, created_at
		 FROM parcels
		 ORDER BY created_at DESC`
	args := []any{}
	if ownerEmail != "" {
		query = `SELECT id, creator_email, details, payment_status, created_at
		 FROM parcels
		 WHERE creator_email = $1
		 ORDER BY created_at DESC`
		args = append(args, ownerEmail)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query parcels: %w", err)
	}
	defer rows.Close()

	var parcels []domain.Parcel
	for rows.Next() {
		var p domain.Parcel
		if err := rows.Scan(&p.ID, &p.CreatorEmail, &p.Details, &p.PaymentStatus, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan parcel: %w", err)
		}
		parcels = append(parcels, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return parcels, nil
}

// DeleteParcel removes the parcel row only. Payments referencing it are left
// in place as the audit trail.
func (r *ParcelRepository) DeleteParcel(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM parcels WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete parcel: %w", err)
	}
	return tag.RowsAffected(), nil
}
