package presentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/profast/parcel-payments-service/internal/application"
	"github.com/profast/parcel-payments-service/internal/domain"
	"github.com/profast/parcel-payments-service/internal/logger"
	"github.com/profast/parcel-payments-service/internal/presentation/helpers"
)

// ReconciliationAPI is the slice of the application service the HTTP layer
// needs.
type ReconciliationAPI interface {
	CreateParcel(ctx context.Context, p *domain.Parcel) (uuid.UUID, error)
	GetParcel(ctx context.Context, rawID string) (*domain.Parcel, error)
	ListParcels(ctx context.Context, ownerEmail string) ([]domain.Parcel, error)
	DeleteParcel(ctx context.Context, rawID string) (int64, error)
	ConfirmPayment(ctx context.Context, req application.ConfirmRequest) (*domain.Payment, bool, error)
	ListPayments(ctx context.Context, ownerEmail string) ([]domain.Payment, error)
	CreateIntent(ctx context.Context, amount decimal.Decimal) (string, error)
}

type ParcelsHandler struct {
	svc ReconciliationAPI
}

func NewParcelsHandler(svc ReconciliationAPI) *ParcelsHandler {
	return &ParcelsHandler{svc: svc}
}

func (h *ParcelsHandler) Register(r chi.Router) {
	r.Post("/parcels", h.CreateParcel)
	r.Get("/parcels", h.ListParcels)
	r.Get("/parcels/{id}", h.GetParcel)
	r.Delete("/parcels/{id}", h.DeleteParcel)
	r.Post("/payments", h.ConfirmPayment)
	r.Get("/payments", h.ListPayments)
	r.Post("/create-payment-intent", h.CreateIntent)
	r.Get("/healthz", h.Health)
}

// CreateParcel accepts the whole submission document: creatorEmail plus any
// delivery metadata the frontend attaches (weight, addresses, ...). The
// metadata is stored as-is.
func (h *ParcelsHandler) CreateParcel(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "bad_request", "invalid JSON: "+err.Error())
		return
	}

	email, _ := body["creatorEmail"].(string)
	if strings.TrimSpace(email) == "" {
		helpers.HttpError(w, http.StatusBadRequest, "bad_request", "creatorEmail is required")
		return
	}
	delete(body, "creatorEmail")

	details, err := json.Marshal(body)
	if err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "bad_request", "invalid parcel details")
		return
	}

	p := domain.Parcel{
		CreatorEmail: email,
		Details:      details,
	}
	id, err := h.svc.CreateParcel(r.Context(), &p)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusCreated, map[string]any{
		"insertedId": id,
	})
}

func (h *ParcelsHandler) ListParcels(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	parcels, err := h.svc.ListParcels(r.Context(), email)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if parcels == nil {
		parcels = []domain.Parcel{}
	}

	helpers.WriteJSON(w, http.StatusOK, parcels)
}

func (h *ParcelsHandler) GetParcel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.svc.GetParcel(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if p == nil {
		helpers.HttpError(w, http.StatusNotFound, "parcel_not_found", "parcel not found")
		return
	}

	helpers.WriteJSON(w, http.StatusOK, p)
}

func (h *ParcelsHandler) DeleteParcel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.svc.DeleteParcel(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if deleted == 0 {
		helpers.WriteJSON(w, http.StatusNotFound, map[string]any{
			"error":        "parcel_not_found",
			"message":      "parcel not found",
			"deletedCount": 0,
		})
		return
	}

	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"deletedCount": deleted,
	})
}

type confirmPaymentRequest struct {
	ParcelID      string          `json:"parcelId"`
	Email         string          `json:"email"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"paymentMethod"`
	TransactionID string          `json:"transactionId"`
}

func (h *ParcelsHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "bad_request", "invalid JSON: "+err.Error())
		return
	}

	switch {
	case strings.TrimSpace(req.ParcelID) == "":
		helpers.HttpError(w, http.StatusBadRequest, "bad_request", "parcelId is required")
		return
	case strings.TrimSpace(req.TransactionID) == "":
		helpers.HttpError(w, http.StatusBadRequest, "bad_request", "transactionId is required")
		return
	case !req.Amount.IsPositive():
		helpers.HttpError(w, http.StatusBadRequest, "bad_request", "amount must be positive")
		return
	}

	payment, modified, err := h.svc.ConfirmPayment(r.Context(), application.ConfirmRequest{
		ParcelID:      req.ParcelID,
		OwnerEmail:    req.Email,
		Amount:        req.Amount,
		Method:        req.Method,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		if errors.Is(err, application.ErrAlreadyPaid) {
			helpers.WriteJSON(w, http.StatusConflict, map[string]any{
				"error":    "already_paid",
				"message":  "parcel is already paid",
				"modified": false,
			})
			return
		}
		h.writeServiceError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusCreated, map[string]any{
		"paymentId": payment.ID,
		"modified":  modified,
	})
}

func (h *ParcelsHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	payments, err := h.svc.ListPayments(r.Context(), email)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if payments == nil {
		payments = []domain.Payment{}
	}

	helpers.WriteJSON(w, http.StatusOK, payments)
}

type createIntentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *ParcelsHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "bad_request", "invalid JSON: "+err.Error())
		return
	}

	if !req.Amount.IsPositive() {
		helpers.HttpError(w, http.StatusBadRequest, "bad_request", "amount must be positive")
		return
	}

	token, err := h.svc.CreateIntent(r.Context(), req.Amount)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, map[string]string{
		"clientSecret": token,
	})
}

func (h *ParcelsHandler) Health(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ParcelsHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrInvalidReference):
		helpers.HttpError(w, http.StatusBadRequest, "invalid_reference", "invalid parcel id")
	case errors.Is(err, application.ErrParcelNotFound):
		helpers.HttpError(w, http.StatusNotFound, "parcel_not_found", "parcel not found")
	case errors.Is(err, application.ErrMissingOwnerFilter):
		helpers.HttpError(w, http.StatusBadRequest, "missing_filter", "email query parameter is required")
	case errors.Is(err, application.ErrLedgerWrite):
		helpers.HttpError(w, http.StatusInternalServerError, "ledger_failed", "payment ledger write failed")
	case errors.Is(err, application.ErrIntentCreation):
		helpers.HttpError(w, http.StatusInternalServerError, "intent_failed", "payment intent creation failed")
	default:
		logger.Warn("request failed", "err", err)
		helpers.HttpError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
