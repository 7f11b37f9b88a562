package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/momopay/api/responses"
	"github.com/angelmondragon/momopay/api/validators"
	"github.com/angelmondragon/momopay/internal/gateway"
	"github.com/angelmondragon/momopay/internal/intent"
	"github.com/angelmondragon/momopay/internal/notifications"
	"github.com/angelmondragon/momopay/internal/payments"
	"github.com/angelmondragon/momopay/internal/pending"
	pkgerrors "github.com/angelmondragon/momopay/pkg/errors"
	"github.com/angelmondragon/momopay/pkg/logger"
)

const maxPaymentIDLen = 128

// PaymentService is the payment session the agent drives. *payments.Service
// satisfies it.
type PaymentService interface {
	Snapshot() payments.Snapshot
	Submit(ctx context.Context, in intent.Input) (payments.Snapshot, error)
	Reconcile(ctx context.Context) (payments.Result, error)
	Reset(ctx context.Context) (payments.Snapshot, error)
	Pending(ctx context.Context) (*pending.Record, error)
	Transactions(ctx context.Context) ([]gateway.PaymentDetails, error)
	PaymentDetails(ctx context.Context, paymentID string) (*gateway.PaymentDetails, error)
}

// NoticeFeed returns recent payer-facing notices.
type NoticeFeed interface {
	Recent() []notifications.Notice
}

type reconcileResponse struct {
	Result   payments.Result   `json:"result"`
	Snapshot payments.Snapshot `json:"snapshot"`
}

type transactionsResponse struct {
	Transactions []gateway.PaymentDetails `json:"transactions"`
}

func PaymentState(svc PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, svc.Snapshot())
	}
}

// PaymentSubmit starts a charge. The response is 202 because settlement is
// confirmed asynchronously; clients follow the state endpoint.
func PaymentSubmit(svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in intent.Input
		if err := validators.DecodeJSONBody(r, &in); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := svc.Submit(r.Context(), in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, snap)
	}
}

func PaymentReconcile(svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.Reconcile(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reconcileResponse{Result: result, Snapshot: svc.Snapshot()})
	}
}

func PaymentReset(svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Reset(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

func PaymentPending(svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := svc.Pending(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if record == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no pending transaction"))
			return
		}
		responses.WriteSuccess(w, record)
	}
}

func PaymentTransactions(svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txs, err := svc.Transactions(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(txs) > limit {
			txs = txs[:limit]
		}
		responses.WriteSuccess(w, transactionsResponse{Transactions: txs})
	}
}

func PaymentDetails(svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paymentID := validators.SanitizeString(chi.URLParam(r, "paymentId"), maxPaymentIDLen)
		details, err := svc.PaymentDetails(r.Context(), paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, details)
	}
}

func PaymentNotices(feed NoticeFeed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notices := []notifications.Notice{}
		if feed != nil {
			notices = append(notices, feed.Recent()...)
		}
		responses.WriteSuccess(w, map[string]any{"notices": notices})
	}
}
