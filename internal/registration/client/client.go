// Package client talks to the registration and payment backend.
//
// Every call is bounded by a timeout, carries a request ID and the
// participant's bearer token, and fails with a *BackendError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"hackmate/internal/platform/metrics"
	"hackmate/internal/platform/tracer"
	"hackmate/internal/registration/models"
)

// DefaultTimeout bounds a single backend call.
const DefaultTimeout = 10 * time.Second

// Operation names used in errors, metrics and logs.
const (
	OpFetchStatus    = "fetch_status"
	OpSubmitPayment  = "submit_payment"
	OpVerifyStatus   = "verify_status"
	OpFetchHackathon = "fetch_hackathon"
)

// Routes of the backend contract.
const (
	PathStatus       = "/registrations/status"
	PathPayment      = "/registrations/payment"
	PathVerifyStatus = "/payments/verify-status"
)

const maxResponseBytes = 1 << 20

//go:generate mockgen -source=client.go -destination=mocks/client_mock.go -package=mocks HTTPDoer

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient HTTPDoer
	Tracer     tracer.Tracer
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    HTTPDoer
	tracer  tracer.Tracer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		tracer:  cfg.Tracer,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}
	if c.tracer == nil {
		c.tracer = tracer.NewNoop()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

type statusData struct {
	Status  string `json:"status"`
	OrderID string `json:"orderId,omitempty"`
	Message string `json:"message,omitempty"`
}

type statusEnvelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    *statusData `json:"data,omitempty"`
}

type paymentEnvelope struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId,omitempty"`
	Message string `json:"message,omitempty"`
}

type verifyRequest struct {
	OrderID       string `json:"orderId"`
	ParticipantID string `json:"participantId"`
}

// FetchStatus reads the current registration status for one participant and
// event. An unrecognised server status is returned as models.StatusUnknown,
// not as an error.
func (c *Client) FetchStatus(ctx context.Context, participantID, eventID string) (*models.StatusReport, error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanFetchStatus,
		tracer.String(tracer.AttrParticipant, tracer.HashParticipant(participantID)),
		tracer.String(tracer.AttrEventID, eventID),
	)
	var err error
	defer func() { span.End(err) }()

	query := url.Values{}
	query.Set("eventId", eventID)
	query.Set("participantId", participantID)

	var env statusEnvelope
	if err = c.GetJSON(ctx, OpFetchStatus, PathStatus, query, &env); err != nil {
		return nil, err
	}
	var report *models.StatusReport
	report, err = decodeStatus(OpFetchStatus, env)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrStatus, report.Status.String()))
	return report, nil
}

// SubmitPayment posts one submission as multipart form data. It never retries.
func (c *Client) SubmitPayment(ctx context.Context, sub *models.PaymentSubmission) (*models.SubmitReceipt, error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanSubmitPayment,
		tracer.String(tracer.AttrParticipant, tracer.HashParticipant(sub.ParticipantID)),
		tracer.String(tracer.AttrEventID, sub.EventID),
		tracer.Int64(tracer.AttrProofBytes, sub.Proof.Size()),
	)
	var err error
	defer func() { span.End(err) }()

	var body *bytes.Buffer
	var contentType string
	body, contentType, err = encodeSubmission(sub)
	if err != nil {
		err = NewBackendError(ErrorInternal, OpSubmitPayment, "failed to encode submission", err)
		return nil, err
	}

	var env paymentEnvelope
	if err = c.do(ctx, OpSubmitPayment, http.MethodPost, PathPayment, nil, body, contentType, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		err = rejected(OpSubmitPayment, http.StatusOK, env.Message)
		return nil, err
	}
	if env.OrderID == "" {
		err = NewBackendError(ErrorBadResponse, OpSubmitPayment, "response missing orderId", nil)
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrOrderID, env.OrderID))
	return &models.SubmitReceipt{OrderID: env.OrderID, Message: env.Message}, nil
}

// VerifyStatus asks the backend to re-check a known order.
func (c *Client) VerifyStatus(ctx context.Context, orderID, participantID string) (*models.StatusReport, error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanVerifyStatus,
		tracer.String(tracer.AttrParticipant, tracer.HashParticipant(participantID)),
		tracer.String(tracer.AttrOrderID, orderID),
	)
	var err error
	defer func() { span.End(err) }()

	var payload []byte
	payload, err = json.Marshal(verifyRequest{OrderID: orderID, ParticipantID: participantID})
	if err != nil {
		err = NewBackendError(ErrorInternal, OpVerifyStatus, "failed to marshal request", err)
		return nil, err
	}

	var env statusEnvelope
	if err = c.do(ctx, OpVerifyStatus, http.MethodPost, PathVerifyStatus, nil,
		bytes.NewReader(payload), "application/json", &env); err != nil {
		return nil, err
	}
	var report *models.StatusReport
	report, err = decodeStatus(OpVerifyStatus, env)
	if err != nil {
		return nil, err
	}
	if report.OrderID == "" {
		report.OrderID = orderID
	}
	span.SetAttributes(tracer.String(tracer.AttrStatus, report.Status.String()))
	return report, nil
}

// GetJSON issues an authenticated GET and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	return c.do(ctx, op, http.MethodGet, path, query, nil, "", out)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return NewBackendError(ErrorInternal, op, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.ObserveBackendLatency(op, time.Since(start))
	if err != nil {
		if isTimeout(ctx, err) {
			return NewBackendError(ErrorTimeout, op, "request timeout", err)
		}
		return NewBackendError(ErrorUnavailable, op, "failed to execute request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(ctx, err) {
			return NewBackendError(ErrorTimeout, op, "request timeout", err)
		}
		return NewBackendError(ErrorBadResponse, op, "failed to read response", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		be := classifyStatus(op, resp.StatusCode)
		be.ServerMessage = serverMessage(raw)
		c.logger.DebugContext(ctx, "registration_backend_error",
			"operation", op,
			"status_code", resp.StatusCode,
			"category", string(be.Category),
		)
		return be
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return NewBackendError(ErrorBadResponse, op, "failed to parse response", err)
	}
	return nil
}

func classifyStatus(op string, code int) *BackendError {
	var be *BackendError
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		be = NewBackendError(ErrorUnauthorized, op, fmt.Sprintf("authentication failed: %d", code), nil)
	case code == http.StatusConflict:
		be = NewBackendError(ErrorConflict, op, "duplicate registration", nil)
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		be = NewBackendError(ErrorTimeout, op, fmt.Sprintf("backend timeout: %d", code), nil)
	case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
		be = NewBackendError(ErrorUnavailable, op, fmt.Sprintf("backend unavailable: %d", code), nil)
	default:
		be = NewBackendError(ErrorRejected, op, fmt.Sprintf("request rejected: %d", code), nil)
	}
	be.StatusCode = code
	return be
}

func rejected(op string, code int, msg string) *BackendError {
	be := NewBackendError(ErrorRejected, op, "request rejected", nil)
	be.StatusCode = code
	be.ServerMessage = msg
	return be
}

// serverMessage pulls "message" out of an error body, if it is JSON.
func serverMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

func decodeStatus(op string, env statusEnvelope) (*models.StatusReport, error) {
	if !env.Success {
		return nil, rejected(op, http.StatusOK, env.Message)
	}
	if env.Data == nil || strings.TrimSpace(env.Data.Status) == "" {
		return nil, NewBackendError(ErrorBadResponse, op, "response missing status", nil)
	}
	status, _ := models.ParseStatus(env.Data.Status)
	return &models.StatusReport{
		Status:    status,
		RawStatus: env.Data.Status,
		OrderID:   env.Data.OrderID,
		Message:   env.Data.Message,
	}, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Multipart field names of the payment route.
const (
	FieldEventID              = "eventId"
	FieldParticipantID        = "participantId"
	FieldName                 = "name"
	FieldPhone                = "phone"
	FieldEmail                = "email"
	FieldTransactionReference = "transactionReference"
	FieldAmount               = "amount"
	FieldProofImage           = "proofImage"
)

func encodeSubmission(sub *models.PaymentSubmission) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	fields := []struct{ name, value string }{
		{FieldEventID, sub.EventID},
		{FieldParticipantID, sub.ParticipantID},
		{FieldName, sub.Name},
		{FieldPhone, sub.Phone},
		{FieldEmail, sub.Email},
		{FieldTransactionReference, sub.TransactionReference},
		{FieldAmount, strconv.FormatInt(sub.Amount, 10)},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	filename := sub.Proof.Filename
	if filename == "" {
		filename = "payment-proof"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldProofImage, filename))
	header.Set("Content-Type", sub.Proof.ContentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(sub.Proof.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}
