package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/momopay/internal/intent"
	"github.com/angelmondragon/momopay/pkg/config"
	"github.com/angelmondragon/momopay/pkg/enums"
	pkgerrors "github.com/angelmondragon/momopay/pkg/errors"
	"github.com/angelmondragon/momopay/pkg/logger"
	"github.com/angelmondragon/momopay/pkg/metrics"
	"github.com/go-resty/resty/v2"
)

const (
	payPath          = "/api/payment/pay"
	statusPath       = "/api/payment/status"
	processingPath   = "/api/payment/payment-processing/{paymentId}"
	backupPath       = "/api/confirm/backup-confirm"
	transactionsPath = "/api/payment/transactions"

	idempotencyHeader = "Idempotency-Key"
)

var errLoggerRequired = errors.New("gateway logger is required")

// Client speaks the payment backend's HTTP contract. It never retries on its
// own; retry policy belongs to the caller.
type Client struct {
	http    *resty.Client
	logger  *logger.Logger
	metrics *metrics.PaymentMetrics
}

// NewClient builds a client for the configured backend.
func NewClient(cfg config.BackendConfig, logg *logger.Logger, m *metrics.PaymentMetrics) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend base url is required")
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}
	return &Client{http: httpClient, logger: logg, metrics: m}, nil
}

// Pay submits the charge request. The payload's key is also sent as the
// Idempotency-Key header.
func (c *Client) Pay(ctx context.Context, payload intent.Payload) (PayResult, error) {
	c.log(ctx, "request", "pay", map[string]any{
		"idempotency_key": payload.IdempotencyKey,
		"amount":          payload.Amount.String(),
		"currency":        payload.Currency,
		"provider":        payload.Provider,
		"mobile":          payload.Mobile,
		"email":           payload.Email,
	})
	resp, err := c.do(ctx, "pay", func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetHeader(idempotencyHeader, payload.IdempotencyKey).
			SetBody(payload).
			Post(payPath)
	})
	if err != nil {
		return PayResult{}, err
	}

	var result PayResult
	if err := decode(resp, &result, "pay"); err != nil {
		return PayResult{}, c.fail(ctx, "pay", err)
	}
	if strings.TrimSpace(result.PaymentID) == "" {
		return PayResult{}, c.fail(ctx, "pay", pkgerrors.New(pkgerrors.CodeServer, "pay response is missing paymentId"))
	}
	c.log(ctx, "response", "pay", map[string]any{"payment_id": result.PaymentID})
	return result, nil
}

// Status asks the backend what it knows about an idempotency key. An HTTP
// error or an unrecognized body is a SERVER_ERROR, never NOT_FOUND.
func (c *Client) Status(ctx context.Context, key string) (StatusResult, error) {
	c.log(ctx, "request", "status", map[string]any{"idempotency_key": key})
	resp, err := c.do(ctx, "status", func(req *resty.Request) (*resty.Response, error) {
		return req.SetQueryParam("key", key).Get(statusPath)
	})
	if err != nil {
		return StatusResult{}, err
	}

	var result StatusResult
	if err := decode(resp, &result, "status"); err != nil {
		return StatusResult{}, c.fail(ctx, "status", err)
	}
	if !result.Status.IsValid() {
		return StatusResult{}, c.fail(ctx, "status", pkgerrors.New(pkgerrors.CodeServer, "status response has an unknown status").
			WithDetails(map[string]any{"status": result.Status}))
	}
	if result.Status == enums.RemoteStatusSuccess && strings.TrimSpace(result.PaymentID) == "" {
		return StatusResult{}, c.fail(ctx, "status", pkgerrors.New(pkgerrors.CodeServer, "SUCCESS status is missing paymentId"))
	}
	c.log(ctx, "response", "status", map[string]any{"status": result.Status, "payment_id": result.PaymentID})
	return result, nil
}

// PaymentDetails fetches the processing view of a payment.
func (c *Client) PaymentDetails(ctx context.Context, paymentID string) (*PaymentDetails, error) {
	c.log(ctx, "request", "payment_details", map[string]any{"payment_id": paymentID})
	resp, err := c.do(ctx, "payment_details", func(req *resty.Request) (*resty.Response, error) {
		return req.SetPathParam("paymentId", paymentID).Get(processingPath)
	})
	if err != nil {
		return nil, err
	}

	var body processingResponse
	if err := decode(resp, &body, "payment details"); err != nil {
		return nil, c.fail(ctx, "payment_details", err)
	}
	if !body.Success || body.Payment == nil {
		return nil, c.fail(ctx, "payment_details", pkgerrors.New(pkgerrors.CodeServer, messageOr(body.Message, "failed to load payment details")))
	}
	c.log(ctx, "response", "payment_details", map[string]any{"status": body.Payment.Status, "charge_id": body.Payment.ChargeID})
	return body.Payment, nil
}

// BackupConfirm asks the backend to verify a charge directly with the provider.
func (c *Client) BackupConfirm(ctx context.Context, chargeID string) (BackupResult, error) {
	c.log(ctx, "request", "backup_confirm", map[string]any{"charge_id": chargeID})
	resp, err := c.do(ctx, "backup_confirm", func(req *resty.Request) (*resty.Response, error) {
		return req.SetBody(backupRequest{ChargeID: chargeID}).Post(backupPath)
	})
	if err != nil {
		return BackupResult{}, err
	}

	var result BackupResult
	if err := decode(resp, &result, "backup confirm"); err != nil {
		return BackupResult{}, c.fail(ctx, "backup_confirm", err)
	}
	c.log(ctx, "response", "backup_confirm", map[string]any{"success": result.Success, "verified_status": result.VerifiedStatus})
	return result, nil
}

// Transactions lists the signed-in payer's payments.
func (c *Client) Transactions(ctx context.Context) ([]PaymentDetails, error) {
	c.log(ctx, "request", "transactions", nil)
	resp, err := c.do(ctx, "transactions", func(req *resty.Request) (*resty.Response, error) {
		return req.Get(transactionsPath)
	})
	if err != nil {
		return nil, err
	}

	var body transactionsResponse
	if err := decode(resp, &body, "transactions"); err != nil {
		return nil, c.fail(ctx, "transactions", err)
	}
	if !body.Success {
		return nil, c.fail(ctx, "transactions", pkgerrors.New(pkgerrors.CodeServer, messageOr(body.Message, "failed to load transactions")))
	}
	if body.Transactions == nil {
		body.Transactions = []PaymentDetails{}
	}
	c.log(ctx, "response", "transactions", map[string]any{"count": len(body.Transactions)})
	return body.Transactions, nil
}

func (c *Client) do(ctx context.Context, op string, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	start := time.Now()
	resp, err := send(c.http.R().SetContext(ctx))
	if err != nil {
		c.metrics.ObserveRequest(op, "network", time.Since(start))
		return nil, c.fail(ctx, op, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, fmt.Sprintf("%s request failed", strings.ReplaceAll(op, "_", " "))))
	}
	if resp.IsError() {
		c.metrics.ObserveRequest(op, "server", time.Since(start))
		return nil, c.fail(ctx, op, statusError(op, resp))
	}
	c.metrics.ObserveRequest(op, "ok", time.Since(start))
	return resp, nil
}

func statusError(op string, resp *resty.Response) error {
	code := pkgerrors.CodeServer
	if resp.StatusCode() == http.StatusNotFound && op == "payment_details" {
		code = pkgerrors.CodeNotFound
	}
	message := fmt.Sprintf("%s returned HTTP %d", strings.ReplaceAll(op, "_", " "), resp.StatusCode())
	var body struct {
		Message string `json:"message"`
	}
	details := map[string]any{"http_status": resp.StatusCode()}
	if json.Unmarshal(resp.Body(), &body) == nil && body.Message != "" {
		details["message"] = body.Message
	}
	return pkgerrors.New(code, message).WithDetails(details)
}

func decode(resp *resty.Response, dest any, what string) error {
	if err := json.Unmarshal(resp.Body(), dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeServer, err, fmt.Sprintf("malformed %s response", what))
	}
	return nil
}

func messageOr(message, fallback string) string {
	if strings.TrimSpace(message) != "" {
		return message
	}
	return fallback
}

func (c *Client) fail(ctx context.Context, op string, err error) error {
	c.log(ctx, "error", op, map[string]any{"error": err.Error()})
	return err
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Warn(ctx, fmt.Sprintf("backend %s failed", op))
	default:
		c.logger.Debug(ctx, fmt.Sprintf("backend %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"email", "mobile", "phone", "name"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
