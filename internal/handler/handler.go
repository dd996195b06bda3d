// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the booking engine and admin service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/booking"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/logger"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/model"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/repository"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Enroller books seats. *booking.Engine implements it.
type Enroller interface {
	Enroll(ctx context.Context, req model.EnrollRequest) (model.Outcome, error)
}

// Handler holds all HTTP handlers for the enrollment API.
type Handler struct {
	engine   Enroller
	svc      *service.AdminService
	validate *validator.Validate
	log      *logger.Logger
}

// New constructs a Handler. validate should come from NewValidator.
func New(engine Enroller, svc *service.AdminService, validate *validator.Validate, log *logger.Logger) *Handler {
	if validate == nil {
		validate = NewValidator()
	}
	return &Handler{
		engine:   engine,
		svc:      svc,
		validate: validate,
		log:      logger.OrNop(log).With("component", "handler"),
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// check validates v and writes a 422 listing the failing fields.
func (h *Handler) check(w http.ResponseWriter, v any) bool {
	err := h.validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	writeError(w, http.StatusUnprocessableEntity, strings.Join(msgs, "; "))
	return false
}

// writeServiceError maps admin service errors to HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, repository.ErrInvalidTransition), errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("request failed", "resource", what, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ─── Enrollment ───────────────────────────────────────────────────────────────

type enrollRequest struct {
	DisplayName string `json:"display_name" validate:"max=150"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Phone       string `json:"phone" validate:"required,max=30,phone_digits"`
}

// EnrollResponse is the body of every enrollment attempt response.
type EnrollResponse struct {
	Message      string            `json:"message"`
	Outcome      model.OutcomeKind `json:"outcome"`
	Reason       string            `json:"reason,omitempty"`
	EnrollmentID int64             `json:"enrollment_id,omitempty"`
	Enrollment   *model.Enrollment `json:"enrollment,omitempty"`
}

// Enroll handles POST /api/workshops/{id}/enroll
// Books one seat; an authenticated identity overrides the body's contact fields.
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid workshop id")
		return
	}
	var req enrollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !h.check(w, req) {
		return
	}

	outcome, err := h.engine.Enroll(r.Context(), model.EnrollRequest{
		WorkshopID:  id,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Phone:       req.Phone,
		Identity:    IdentityFrom(r.Context()),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "workshop not found")
		case errors.Is(err, booking.ErrInvalidRequest):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.log.Error("enroll failed", "workshop_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	resp := EnrollResponse{Message: outcome.Message, Outcome: outcome.Kind, Reason: string(outcome.Reason)}
	switch {
	case outcome.IsCreated():
		resp.EnrollmentID = outcome.Enrollment.ID
		resp.Enrollment = outcome.Enrollment
		writeJSON(w, http.StatusCreated, resp)
	case outcome.Reason == model.ReasonNoSeatsAvailable:
		writeJSON(w, http.StatusBadRequest, resp)
	case outcome.Reason == model.ReasonAlreadyEnrolled:
		writeJSON(w, http.StatusConflict, resp)
	default:
		// The diagnostic stays in the logs.
		resp.Message = "we could not complete your enrollment, please try again later"
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

// ─── Workshops ────────────────────────────────────────────────────────────────

// CreateWorkshop handles POST /api/workshops
func (h *Handler) CreateWorkshop(w http.ResponseWriter, r *http.Request) {
	var req model.CreateWorkshopRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	ws, err := h.svc.CreateWorkshop(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "workshop")
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

// ListWorkshops handles GET /api/workshops
// Returns the active workshops as a JSON array.
func (h *Handler) ListWorkshops(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListWorkshops(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "workshops")
		return
	}
	if list == nil {
		list = []model.Workshop{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetWorkshop handles GET /api/workshops/{id}
func (h *Handler) GetWorkshop(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid workshop id")
		return
	}
	ws, err := h.svc.GetWorkshop(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "workshop")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

type capacityRequest struct {
	TotalSeats *int `json:"total_seats" validate:"required,gte=0,lte=100000"`
}

// ResizeWorkshop handles PATCH /api/workshops/{id}/capacity
func (h *Handler) ResizeWorkshop(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid workshop id")
		return
	}
	var req capacityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !h.check(w, req) {
		return
	}
	ws, err := h.svc.ResizeWorkshop(r.Context(), id, *req.TotalSeats)
	if err != nil {
		h.writeServiceError(w, err, "workshop")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// ListEnrollments handles GET /api/workshops/{id}/enrollments?status=
func (h *Handler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid workshop id")
		return
	}
	list, err := h.svc.ListEnrollments(r.Context(), id, r.URL.Query().Get("status"))
	if err != nil {
		h.writeServiceError(w, err, "workshop")
		return
	}
	if list == nil {
		list = []model.EnrollmentDetail{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ─── Enrollment administration ────────────────────────────────────────────────

type paymentRequest struct {
	Action string `json:"action" validate:"required,oneof=pay fail"`
}

// ApplyPayment handles POST /api/enrollments/{id}/payment
// Runs the payment stub for the enrollment.
func (h *Handler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid enrollment id")
		return
	}
	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !h.check(w, req) {
		return
	}
	res, err := h.svc.ApplyPayment(r.Context(), id, req.Action)
	if err != nil {
		h.writeServiceError(w, err, "enrollment")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus handles PATCH /api/enrollments/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid enrollment id")
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !h.check(w, req) {
		return
	}
	e, err := h.svc.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeServiceError(w, err, "enrollment")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// ─── Interests ────────────────────────────────────────────────────────────────

// CreateInterest handles POST /api/interests
func (h *Handler) CreateInterest(w http.ResponseWriter, r *http.Request) {
	var req model.CreateInterestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	in, err := h.svc.CreateInterest(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "interest")
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

// ─── Contacts and organizations ───────────────────────────────────────────────

// parseInterestIDs reads repeated or comma separated interest query values.
func parseInterestIDs(values []string) ([]int64, bool) {
	var ids []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, false
			}
			ids = append(ids, id)
		}
	}
	return ids, true
}

// ListContacts handles GET /api/contacts?kind=&interest=&owing=
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	interests, ok := parseInterestIDs(q["interest"])
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid interest id")
		return
	}
	var owing bool
	if raw := q.Get("owing"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "owing must be true or false")
			return
		}
		owing = v
	}
	list, err := h.svc.ListContacts(r.Context(), q.Get("kind"), interests, owing)
	if err != nil {
		h.writeServiceError(w, err, "contacts")
		return
	}
	if list == nil {
		list = []model.Contact{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetContact handles GET /api/contacts/{id}
// Returns the contact with its organization and enrollment history.
func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid contact id")
		return
	}
	detail, err := h.svc.GetContact(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "contact")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type linkOrganizationRequest struct {
	OrganizationID int64 `json:"organization_id" validate:"required,gt=0"`
}

// LinkOrganization handles PUT /api/contacts/{id}/organization
func (h *Handler) LinkOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid contact id")
		return
	}
	var req linkOrganizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !h.check(w, req) {
		return
	}
	c, err := h.svc.LinkContactOrganization(r.Context(), id, req.OrganizationID)
	if err != nil {
		h.writeServiceError(w, err, "contact or organization")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateOrganization handles POST /api/organizations
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOrganizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	org, err := h.svc.CreateOrganization(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "organization")
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

// ListEnrollmentsByStatus handles GET /api/enrollments?status=
// Without a status it lists the debtors of every workshop.
func (h *Handler) ListEnrollmentsByStatus(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListEnrollmentsByStatus(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.writeServiceError(w, err, "enrollments")
		return
	}
	if list == nil {
		list = []model.EnrollmentDetail{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
