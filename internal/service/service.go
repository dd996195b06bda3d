// Package service implements the administrative operations around bookings:
// workshop and interest management, the contact directory and organizations,
// enrollment listings and the payment status workflow. Enrollment itself
// lives in package booking.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/logger"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/model"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/repository"
	"github.com/go-playground/validator/v10"
)

// ErrValidation is returned when a request fails validation.
var ErrValidation = errors.New("validation failed")

// Payment actions accepted by ApplyPayment.
const (
	ActionPay  = "pay"
	ActionFail = "fail"
)

// PaymentResult reports what a payment attempt did to the enrollment.
type PaymentResult struct {
	Enrollment *model.Enrollment `json:"enrollment"`
	Changed    bool              `json:"changed"`
	Message    string            `json:"message"`
}

// AdminService orchestrates administrative operations over the store.
type AdminService struct {
	store    repository.Store
	validate *validator.Validate
	log      *logger.Logger
}

// NewAdminService constructs an AdminService with its dependencies.
func NewAdminService(store repository.Store, validate *validator.Validate, log *logger.Logger) *AdminService {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return &AdminService{
		store:    store,
		validate: validate,
		log:      logger.OrNop(log).With("component", "AdminService"),
	}
}

func (s *AdminService) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	return nil
}

// CreateWorkshop validates the request and stores a workshop with every seat available.
func (s *AdminService) CreateWorkshop(ctx context.Context, req model.CreateWorkshopRequest) (*model.Workshop, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.check(req); err != nil {
		return nil, err
	}
	w, err := s.store.Catalog().Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create workshop: %w", err)
	}
	s.log.Info("workshop created", "workshop_id", w.ID, "total_seats", w.TotalSeats)
	return w, nil
}

// ListWorkshops returns the active workshops, soonest first.
func (s *AdminService) ListWorkshops(ctx context.Context) ([]model.Workshop, error) {
	return s.store.Catalog().ListActive(ctx)
}

// GetWorkshop returns a single workshop by ID.
func (s *AdminService) GetWorkshop(ctx context.Context, id int64) (*model.Workshop, error) {
	w, err := s.store.Catalog().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get workshop: %w", err)
	}
	return w, nil
}

// ResizeWorkshop changes the total capacity under the workshop row lock,
// shifting the available seats by the same delta.
func (s *AdminService) ResizeWorkshop(ctx context.Context, id int64, total int) (*model.Workshop, error) {
	if total < 0 || total > 100_000 {
		return nil, fmt.Errorf("%w: total_seats must be between 0 and 100000", ErrValidation)
	}
	var out *model.Workshop
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		w, err := tx.Catalog().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		before := w.AvailableSeats
		w.Resize(total)
		if err := tx.Catalog().SetCapacity(ctx, id, w.TotalSeats, w.AvailableSeats); err != nil {
			return err
		}
		s.log.Info("workshop resized",
			"workshop_id", id,
			"total_seats", w.TotalSeats,
			"available_before", before,
			"available_after", w.AvailableSeats,
		)
		out = w
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("resize workshop: %w", err)
	}
	return out, nil
}

// CreateInterest stores a new interest tag.
func (s *AdminService) CreateInterest(ctx context.Context, req model.CreateInterestRequest) (*model.Interest, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.check(req); err != nil {
		return nil, err
	}
	return s.store.Catalog().CreateInterest(ctx, req)
}

// ListEnrollments returns a workshop's enrollments, optionally only those in
// the given payment status.
func (s *AdminService) ListEnrollments(ctx context.Context, workshopID int64, status string) ([]model.EnrollmentDetail, error) {
	if _, err := s.GetWorkshop(ctx, workshopID); err != nil {
		return nil, err
	}
	var filter *model.PaymentStatus
	if status != "" {
		st, err := model.ParsePaymentStatus(status)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
		}
		filter = &st
	}
	return s.store.Ledger().ListByWorkshop(ctx, workshopID, filter)
}

// ApplyPayment runs the payment stub. "pay" marks the enrollment paid in
// full at the workshop price; "fail" records nothing and leaves the status
// as it was. Seats are never released here.
func (s *AdminService) ApplyPayment(ctx context.Context, enrollmentID int64, action string) (*PaymentResult, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	if action != ActionPay && action != ActionFail {
		return nil, fmt.Errorf("%w: action must be %q or %q", ErrValidation, ActionPay, ActionFail)
	}

	var res PaymentResult
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		e, err := tx.Ledger().GetForUpdate(ctx, enrollmentID)
		if err != nil {
			return err
		}
		res.Enrollment = e

		if e.Status == model.PaymentPaid {
			res.Message = "enrollment is already paid"
			return nil
		}
		if action == ActionFail {
			res.Message = fmt.Sprintf("payment failed, enrollment remains %s", e.Status)
			return nil
		}
		if !e.Status.CanTransitionTo(model.PaymentPaid) {
			return fmt.Errorf("%w: %s -> %s", repository.ErrInvalidTransition, e.Status, model.PaymentPaid)
		}

		w, err := tx.Catalog().GetByID(ctx, e.WorkshopID)
		if err != nil {
			return fmt.Errorf("load workshop price: %w", err)
		}
		if err := tx.Ledger().UpdatePayment(ctx, e.ID, model.PaymentPaid, w.Price); err != nil {
			return err
		}
		e.Status, e.AmountPaid = model.PaymentPaid, w.Price
		res.Changed = true
		res.Message = "payment registered"
		return nil
	})
	if err != nil {
		return nil, s.wrap("apply payment", err)
	}
	if res.Changed {
		s.log.Info("enrollment paid", "enrollment_id", enrollmentID, "amount_paid", res.Enrollment.AmountPaid)
	} else {
		s.log.Info("payment not applied", "enrollment_id", enrollmentID, "action", action, "status", res.Enrollment.Status)
	}
	return &res, nil
}

// UpdateStatus moves an enrollment to a new payment status if the
// transition is allowed. Moving to paid records the workshop price.
func (s *AdminService) UpdateStatus(ctx context.Context, enrollmentID int64, status string) (*model.Enrollment, error) {
	next, err := model.ParsePaymentStatus(strings.TrimSpace(status))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	var out *model.Enrollment
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		e, err := tx.Ledger().GetForUpdate(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if !e.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", repository.ErrInvalidTransition, e.Status, next)
		}
		amount := e.AmountPaid
		if next == model.PaymentPaid {
			w, err := tx.Catalog().GetByID(ctx, e.WorkshopID)
			if err != nil {
				return fmt.Errorf("load workshop price: %w", err)
			}
			amount = w.Price
		}
		if err := tx.Ledger().UpdatePayment(ctx, e.ID, next, amount); err != nil {
			return err
		}
		e.Status, e.AmountPaid = next, amount
		out = e
		return nil
	})
	if err != nil {
		return nil, s.wrap("update status", err)
	}
	s.log.Info("enrollment status updated", "enrollment_id", enrollmentID, "status", out.Status)
	return out, nil
}

// wrap keeps sentinel errors recognisable to handlers.
func (s *AdminService) wrap(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return repository.ErrNotFound
	case errors.Is(err, repository.ErrInvalidTransition):
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
