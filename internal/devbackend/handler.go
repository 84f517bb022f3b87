package devbackend

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"hackmate/internal/registration/client"
	dErrors "hackmate/pkg/domain-errors"
	"hackmate/pkg/platform/httputil"
	"hackmate/pkg/platform/middleware/admin"
	"hackmate/pkg/platform/middleware/auth"
	"hackmate/pkg/platform/middleware/request"
	"hackmate/pkg/validation"
)

const multipartMemory = 1 << 20

// Handler serves the registration contract.
type Handler struct {
	service       *Service
	logger        *slog.Logger
	maxProofBytes int64
}

func NewHandler(service *Service, logger *slog.Logger, maxProofBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger, maxProofBytes: maxProofBytes}
}

// RegisterParticipantRoutes mounts the routes that need a bearer token.
func (h *Handler) RegisterParticipantRoutes(r chi.Router) {
	r.Get(client.PathStatus, h.handleStatus)
	r.With(request.BodyLimit(h.maxProofBytes+multipartMemory)).Post(client.PathPayment, h.handleSubmit)
	r.Post(client.PathVerifyStatus, h.handleVerify)
}

// RegisterPublicRoutes mounts routes readable without a token.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/hackathons/{hackathonID}", h.handleHackathon)
}

// RegisterAdminRoutes mounts manual-review routes.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Put("/admin/registrations/{orderID}", h.handleReview)
	r.Put("/admin/hackathons/{hackathonID}", h.handlePutHackathon)
}

// requireSelf rejects a request whose participantId is not the token subject.
func (h *Handler) requireSelf(w http.ResponseWriter, r *http.Request, participantID string) bool {
	ctx := r.Context()
	if subject := auth.GetParticipantID(ctx); subject == "" || subject != participantID {
		h.logger.WarnContext(ctx, "participant mismatch",
			"request_id", request.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Participant does not match the signed-in account"))
		return false
	}
	return true
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	eventID := strings.TrimSpace(r.URL.Query().Get("eventId"))
	participantID := strings.TrimSpace(r.URL.Query().Get("participantId"))
	if eventID == "" || participantID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "eventId and participantId are required"))
		return
	}
	if !h.requireSelf(w, r, participantID) {
		return
	}
	view, err := h.service.Status(r.Context(), participantID, eventID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, err := h.decodeSubmission(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid payment submission",
			"error", err,
			"request_id", request.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	if !h.requireSelf(w, r, in.ParticipantID) {
		return
	}
	reg, err := h.service.Submit(ctx, *in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Envelope{
		Success: true,
		OrderID: reg.OrderID,
		Message: reg.Message,
	})
}

func (h *Handler) decodeSubmission(r *http.Request) (*SubmitInput, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, dErrors.New(dErrors.CodeValidation, h.tooLargeMessage())
		}
		return nil, dErrors.New(dErrors.CodeBadRequest, "Invalid payment submission")
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	amount, err := strconv.ParseInt(strings.TrimSpace(r.FormValue(client.FieldAmount)), 10, 64)
	if err != nil {
		return nil, validation.NewFieldError(client.FieldAmount, "amount is invalid")
	}
	in := &SubmitInput{
		EventID:              r.FormValue(client.FieldEventID),
		ParticipantID:        r.FormValue(client.FieldParticipantID),
		Name:                 r.FormValue(client.FieldName),
		Phone:                r.FormValue(client.FieldPhone),
		Email:                r.FormValue(client.FieldEmail),
		TransactionReference: r.FormValue(client.FieldTransactionReference),
		Amount:               amount,
	}
	if err := validation.Validate(in); err != nil {
		return nil, err
	}

	file, _, err := r.FormFile(client.FieldProofImage)
	if err != nil {
		return nil, validation.NewFieldError(client.FieldProofImage, "Please upload a screenshot of your payment")
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, h.maxProofBytes+1))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Invalid payment submission")
	}
	if len(data) == 0 {
		return nil, validation.NewFieldError(client.FieldProofImage, "Please upload a screenshot of your payment")
	}
	if int64(len(data)) > h.maxProofBytes {
		return nil, validation.NewFieldError(client.FieldProofImage, h.tooLargeMessage())
	}
	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return nil, validation.NewFieldError(client.FieldProofImage, "Please upload a valid image file")
	}
	in.Proof = data
	in.ProofContentType = detected.String()
	return in, nil
}

func (h *Handler) tooLargeMessage() string {
	if h.maxProofBytes >= 1<<20 {
		return "Image is too large (max " + strconv.FormatInt(h.maxProofBytes>>20, 10) + "MB)"
	}
	return "Image is too large (max " + strconv.FormatInt(h.maxProofBytes>>10, 10) + "KB)"
}

type verifyRequest struct {
	OrderID       string `json:"orderId" validate:"required,notblank"`
	ParticipantID string `json:"participantId" validate:"required,notblank"`
}

func (r *verifyRequest) Normalize() {
	r.OrderID = strings.TrimSpace(r.OrderID)
	r.ParticipantID = strings.TrimSpace(r.ParticipantID)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndValidate[verifyRequest](w, r, h.logger)
	if !ok {
		return
	}
	if !h.requireSelf(w, r, req.ParticipantID) {
		return
	}
	view, err := h.service.Verify(r.Context(), req.ParticipantID, req.OrderID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

func (h *Handler) handleHackathon(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Hackathon(r.Context(), chi.URLParam(r, "hackathonID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view := HackathonView{
		HackathonID:     d.ID,
		Name:            d.Name,
		RegistrationFee: d.RegistrationFee,
		Venue:           d.Venue,
		Status:          string(d.Status),
	}
	if !d.RegistrationDeadline.IsZero() {
		deadline := d.RegistrationDeadline
		view.RegistrationDeadline = &deadline
	}
	httputil.WriteData(w, http.StatusOK, view)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndValidate[ReviewRequest](w, r, h.logger)
	if !ok {
		return
	}
	view, err := h.service.Review(r.Context(), chi.URLParam(r, "orderID"), *req, admin.GetReviewer(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

func (h *Handler) handlePutHackathon(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndValidate[HackathonRequest](w, r, h.logger)
	if !ok {
		return
	}
	if _, err := h.service.PutHackathon(r.Context(), chi.URLParam(r, "hackathonID"), *req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.handleHackathon(w, r)
}
