package application_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profast/parcel-payments-service/internal/application"
	"github.com/profast/parcel-payments-service/internal/domain"
	"github.com/profast/parcel-payments-service/internal/logger"
	"github.com/profast/parcel-payments-service/internal/repository"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type fakeParcelRepo struct {
	parcels map[uuid.UUID]*domain.Parcel
	created []domain.Parcel
	deleted []uuid.UUID
	err     error
}

func newFakeParcelRepo() *fakeParcelRepo {
	return &fakeParcelRepo{parcels: make(map[uuid.UUID]*domain.Parcel)}
}

func (f *fakeParcelRepo) CreateParcel(_ context.Context, p *domain.Parcel) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	p.ID = uuid.New()
	p.PaymentStatus = domain.StatusUnpaid
	f.parcels[p.ID] = p
	f.created = append(f.created, *p)
	return p.ID, nil
}

func (f *fakeParcelRepo) GetParcelByID(_ context.Context, id uuid.UUID) (*domain.Parcel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.parcels[id], nil
}

func (f *fakeParcelRepo) ListParcels(_ context.Context, ownerEmail string) ([]domain.Parcel, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Parcel
	for _, p := range f.parcels {
		if ownerEmail == "" || p.CreatorEmail == ownerEmail {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeParcelRepo) DeleteParcel(_ context.Context, id uuid.UUID) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.deleted = append(f.deleted, id)
	if _, ok := f.parcels[id]; !ok {
		return 0, nil
	}
	delete(f.parcels, id)
	return 1, nil
}

type fakePaymentRepo struct {
	ledger []domain.Payment
	err    error
}

func (f *fakePaymentRepo) ConfirmParcelPayment(_ context.Context, p *domain.Payment) (uuid.UUID, bool, error) {
	if f.err != nil {
		return uuid.Nil, false, f.err
	}
	p.ID = uuid.New()
	f.ledger = append(f.ledger, *p)
	return p.ID, true, nil
}

func (f *fakePaymentRepo) ListPayments(_ context.Context, ownerEmail string) ([]domain.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Payment
	for _, p := range f.ledger {
		if p.OwnerEmail == ownerEmail {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeIssuer struct {
	token string
	err   error
	calls int
}

func (f *fakeIssuer) CreateIntent(_ context.Context, _ decimal.Decimal) (string, error) {
	f.calls++
	return f.token, f.err
}

type fakePublisher struct {
	events []domain.PaymentEvent
	err    error
}

func (f *fakePublisher) PublishPayment(_ context.Context, ev domain.PaymentEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func confirmRequest(parcelID string) application.ConfirmRequest {
	return application.ConfirmRequest{
		ParcelID:      parcelID,
		OwnerEmail:    gofakeit.Email(),
		Amount:        decimal.RequireFromString("25.00"),
		Method:        "card",
		TransactionID: gofakeit.UUID(),
	}
}

func TestConfirmPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("existing unpaid parcel: ledger entry and event", func(t *testing.T) {
		parcels := newFakeParcelRepo()
		payments := &fakePaymentRepo{}
		events := &fakePublisher{}
		svc := application.NewReconciliationService(parcels, payments, &fakeIssuer{}, events)

		req := confirmRequest(uuid.NewString())

		payment, modified, err := svc.ConfirmPayment(ctx, req)
		require.NoError(t, err)
		assert.True(t, modified)
		require.NotNil(t, payment)
		assert.NotEqual(t, uuid.Nil, payment.ID)

		require.Len(t, payments.ledger, 1)
		entry := payments.ledger[0]
		assert.Equal(t, req.ParcelID, entry.ParcelID.String())
		assert.True(t, entry.Amount.Equal(req.Amount))
		assert.Equal(t, req.TransactionID, entry.TransactionID)
		assert.Equal(t, req.OwnerEmail, entry.OwnerEmail)
		assert.False(t, entry.PaidAt.IsZero())
		assert.NotEmpty(t, entry.PaidAtString)

		require.Len(t, events.events, 1)
		assert.Equal(t, payment.ID, events.events[0].PaymentID)
		assert.Equal(t, req.TransactionID, events.events[0].TransactionID)
	})

	t.Run("malformed id: no mutation", func(t *testing.T) {
		payments := &fakePaymentRepo{}
		svc := application.NewReconciliationService(newFakeParcelRepo(), payments, &fakeIssuer{}, nil)

		_, _, err := svc.ConfirmPayment(ctx, confirmRequest("not-a-uuid"))
		require.ErrorIs(t, err, application.ErrInvalidReference)
		assert.Empty(t, payments.ledger)
	})

	t.Run("nonexistent parcel: zero ledger entries", func(t *testing.T) {
		payments := &fakePaymentRepo{err: repository.ErrParcelNotFound}
		svc := application.NewReconciliationService(newFakeParcelRepo(), payments, &fakeIssuer{}, nil)

		_, _, err := svc.ConfirmPayment(ctx, confirmRequest(uuid.NewString()))
		require.ErrorIs(t, err, application.ErrParcelNotFound)
		assert.Empty(t, payments.ledger)
	})

	t.Run("already paid parcel: no second entry", func(t *testing.T) {
		payments := &fakePaymentRepo{err: repository.ErrParcelAlreadyPaid}
		svc := application.NewReconciliationService(newFakeParcelRepo(), payments, &fakeIssuer{}, nil)

		_, modified, err := svc.ConfirmPayment(ctx, confirmRequest(uuid.NewString()))
		require.ErrorIs(t, err, application.ErrAlreadyPaid)
		assert.False(t, modified)
		assert.Empty(t, payments.ledger)
	})

	t.Run("ledger failure surfaced distinctly", func(t *testing.T) {
		payments := &fakePaymentRepo{err: repository.ErrLedgerWrite}
		svc := application.NewReconciliationService(newFakeParcelRepo(), payments, &fakeIssuer{}, nil)

		_, _, err := svc.ConfirmPayment(ctx, confirmRequest(uuid.NewString()))
		require.ErrorIs(t, err, application.ErrLedgerWrite)
	})

	t.Run("publish failure does not fail the confirmation", func(t *testing.T) {
		payments := &fakePaymentRepo{}
		events := &fakePublisher{err: errors.New("broker down")}
		svc := application.NewReconciliationService(newFakeParcelRepo(), payments, &fakeIssuer{}, events)

		payment, modified, err := svc.ConfirmPayment(ctx, confirmRequest(uuid.NewString()))
		require.NoError(t, err)
		assert.True(t, modified)
		assert.NotNil(t, payment)
		require.Len(t, payments.ledger, 1)
	})
}

func TestListPayments(t *testing.T) {
	ctx := context.Background()

	t.Run("missing owner filter rejected", func(t *testing.T) {
		svc := application.NewReconciliationService(newFakeParcelRepo(), &fakePaymentRepo{}, &fakeIssuer{}, nil)

		_, err := svc.ListPayments(ctx, "  ")
		require.ErrorIs(t, err, application.ErrMissingOwnerFilter)
	})

	t.Run("returns only the owner's records", func(t *testing.T) {
		owner := gofakeit.Email()
		other := gofakeit.Email()
		payments := &fakePaymentRepo{ledger: []domain.Payment{
			{ID: uuid.New(), OwnerEmail: owner},
			{ID: uuid.New(), OwnerEmail: other},
			{ID: uuid.New(), OwnerEmail: owner},
		}}
		svc := application.NewReconciliationService(newFakeParcelRepo(), payments, &fakeIssuer{}, nil)

		got, err := svc.ListPayments(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, got, 2)
		for _, p := range got {
			assert.Equal(t, owner, p.OwnerEmail)
		}
	})
}

func TestCreateIntent(t *testing.T) {
	ctx := context.Background()

	t.Run("positive amount passes through", func(t *testing.T) {
		issuer := &fakeIssuer{token: "pi_secret_123"}
		svc := application.NewReconciliationService(newFakeParcelRepo(), &fakePaymentRepo{}, issuer, nil)

		token, err := svc.CreateIntent(ctx, decimal.RequireFromString("25.00"))
		require.NoError(t, err)
		assert.Equal(t, "pi_secret_123", token)
		assert.Equal(t, 1, issuer.calls)
	})

	t.Run("non-positive amount never reaches the processor", func(t *testing.T) {
		issuer := &fakeIssuer{}
		svc := application.NewReconciliationService(newFakeParcelRepo(), &fakePaymentRepo{}, issuer, nil)

		_, err := svc.CreateIntent(ctx, decimal.Zero)
		require.ErrorIs(t, err, application.ErrIntentCreation)
		assert.Zero(t, issuer.calls)
	})

	t.Run("processor failure wrapped", func(t *testing.T) {
		issuer := &fakeIssuer{err: errors.New("connection refused")}
		svc := application.NewReconciliationService(newFakeParcelRepo(), &fakePaymentRepo{}, issuer, nil)

		_, err := svc.CreateIntent(ctx, decimal.RequireFromString("10"))
		require.ErrorIs(t, err, application.ErrIntentCreation)
	})
}

func TestParcelOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("get with malformed id", func(t *testing.T) {
		svc := application.NewReconciliationService(newFakeParcelRepo(), &fakePaymentRepo{}, &fakeIssuer{}, nil)

		_, err := svc.GetParcel(ctx, "nope")
		require.ErrorIs(t, err, application.ErrInvalidReference)
	})

	t.Run("delete with malformed id mutates nothing", func(t *testing.T) {
		parcels := newFakeParcelRepo()
		svc := application.NewReconciliationService(parcels, &fakePaymentRepo{}, &fakeIssuer{}, nil)

		_, err := svc.DeleteParcel(ctx, "nope")
		require.ErrorIs(t, err, application.ErrInvalidReference)
		assert.Empty(t, parcels.deleted)
	})

	t.Run("delete twice: 1 then 0", func(t *testing.T) {
		parcels := newFakeParcelRepo()
		svc := application.NewReconciliationService(parcels, &fakePaymentRepo{}, &fakeIssuer{}, nil)

		p := &domain.Parcel{CreatorEmail: gofakeit.Email()}
		id, err := svc.CreateParcel(ctx, p)
		require.NoError(t, err)

		deleted, err := svc.DeleteParcel(ctx, id.String())
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		deleted, err = svc.DeleteParcel(ctx, id.String())
		require.NoError(t, err)
		assert.Equal(t, int64(0), deleted)
	})

	t.Run("created parcel starts unpaid", func(t *testing.T) {
		parcels := newFakeParcelRepo()
		svc := application.NewReconciliationService(parcels, &fakePaymentRepo{}, &fakeIssuer{}, nil)

		p := &domain.Parcel{CreatorEmail: gofakeit.Email()}
		id, err := svc.CreateParcel(ctx, p)
		require.NoError(t, err)

		got, err := svc.GetParcel(ctx, id.String())
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, domain.StatusUnpaid, got.PaymentStatus)
	})
}
