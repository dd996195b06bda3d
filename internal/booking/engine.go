// Package booking reserves workshop seats for contacts.
//
// Enroll runs the whole booking in one storage transaction. The workshop row
// lock taken first serializes every attempt on the same workshop, so the
// capacity check and the seat decrement cannot interleave with another
// attempt. Business rejections come back as model.Outcome values; the error
// return is reserved for requests that name no workshop or carry no email.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/events"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/logger"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/model"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/repository"
)

// ErrInvalidRequest is returned when the request has no usable email.
var ErrInvalidRequest = errors.New("invalid enrollment request")

// errRejected rolls the transaction back after the outcome has been set.
var errRejected = errors.New("enrollment rejected")

// Recorder receives per-attempt measurements. *metrics.Recorder implements it.
type Recorder interface {
	ObserveEnrollment(outcome string, elapsed time.Duration)
	IntegrityWarning(kind string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveEnrollment(string, time.Duration) {}
func (nopRecorder) IntegrityWarning(string)                 {}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.rec = r
		}
	}
}

// WithPublisher sets where committed enrollments are announced.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.pub = p
		}
	}
}

// Engine is the booking engine. It is safe for concurrent use; all
// coordination between calls happens in the store.
type Engine struct {
	store repository.Store
	log   *logger.Logger
	rec   Recorder
	pub   events.Publisher
}

func NewEngine(store repository.Store, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		log:   logger.OrNop(log).With("component", "BookingEngine"),
		rec:   nopRecorder{},
		pub:   events.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// applicant is the identity the enrollment is booked for.
type applicant struct {
	email string
	name  string
	phone string
}

// resolveApplicant applies the authenticated identity over the raw request
// fields. Each non-empty identity field wins over its raw counterpart.
func resolveApplicant(req model.EnrollRequest) applicant {
	a := applicant{email: req.Email, name: req.DisplayName, phone: req.Phone}
	if id := req.Identity; id != nil {
		if id.Email != "" {
			a.email = id.Email
		}
		if id.Name != "" {
			a.name = id.Name
		}
		if id.Phone != "" {
			a.phone = id.Phone
		}
	}
	a.email = strings.ToLower(strings.TrimSpace(a.email))
	a.name = strings.TrimSpace(a.name)
	a.phone = strings.TrimSpace(a.phone)
	return a
}

// Enroll books one seat of req.WorkshopID for the applicant.
//
// It returns repository.ErrNotFound when the workshop does not exist and
// ErrInvalidRequest when no email is available; every other result,
// including storage failures, is reported through the Outcome.
func (e *Engine) Enroll(ctx context.Context, req model.EnrollRequest) (model.Outcome, error) {
	start := time.Now()
	outcome, err := e.enroll(ctx, req)
	label := outcome.Label()
	switch {
	case errors.Is(err, repository.ErrNotFound):
		label = "not_found"
	case err != nil:
		label = "invalid"
	}
	e.rec.ObserveEnrollment(label, time.Since(start))
	return outcome, err
}

func (e *Engine) enroll(ctx context.Context, req model.EnrollRequest) (model.Outcome, error) {
	log := e.log.With("workshop_id", req.WorkshopID)

	if req.WorkshopID <= 0 {
		return model.Outcome{}, fmt.Errorf("workshop %d: %w", req.WorkshopID, repository.ErrNotFound)
	}

	// Optimistic pre-check. Seats may still change before the lock is taken.
	w, err := e.store.Catalog().GetByID(ctx, req.WorkshopID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Outcome{}, fmt.Errorf("workshop %d: %w", req.WorkshopID, err)
		}
		log.Error("workshop pre-check failed", "error", err)
		return model.Failed(err), nil
	}
	if !w.HasSeats() {
		log.Debug("rejected before locking", "available_seats", w.AvailableSeats)
		return model.Rejected(model.ReasonNoSeatsAvailable), nil
	}

	who := resolveApplicant(req)
	if who.email == "" {
		return model.Outcome{}, fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}
	log = log.With("email", who.email)

	var (
		outcome  model.Outcome
		vanished bool
	)
	err = e.store.WithinTx(ctx, func(tx repository.Tx) error {
		locked, err := tx.Catalog().GetForUpdate(ctx, req.WorkshopID)
		if err != nil {
			vanished = errors.Is(err, repository.ErrNotFound)
			return fmt.Errorf("lock workshop: %w", err)
		}
		e.checkIntegrity(log, locked)
		if !locked.HasSeats() {
			outcome = model.Rejected(model.ReasonNoSeatsAvailable)
			return errRejected
		}

		contact, res, err := tx.Directory().ResolveOrCreate(ctx, who.email, who.name, who.phone)
		if err != nil {
			return fmt.Errorf("resolve contact: %w", err)
		}
		if res == model.ResolvedExisting && contact.NeedsPhoneUpdate(who.phone) {
			if err := tx.Directory().UpdatePhone(ctx, contact.ID, who.phone); err != nil {
				return fmt.Errorf("update contact phone: %w", err)
			}
			phone := who.phone
			contact.Phone = &phone
		}

		exists, err := tx.Ledger().Exists(ctx, contact.ID, locked.ID)
		if err != nil {
			return err
		}
		if exists {
			outcome = model.Rejected(model.ReasonAlreadyEnrolled)
			return errRejected
		}

		enrollment, err := tx.Ledger().Create(ctx, contact.ID, locked.ID, model.PaymentPending)
		if err != nil {
			return err
		}

		if locked.CategoryID != nil {
			if err := tx.Directory().AttachInterest(ctx, contact.ID, *locked.CategoryID); err != nil {
				return fmt.Errorf("attach category interest: %w", err)
			}
			if !containsID(contact.Interests, *locked.CategoryID) {
				contact.Interests = append(contact.Interests, *locked.CategoryID)
			}
		}

		if err := tx.Catalog().DecrementAvailableSeats(ctx, locked.ID); err != nil {
			if errors.Is(err, repository.ErrNoSeatsAvailable) {
				log.Warn("seat decrement matched no row under lock", "available_seats", locked.AvailableSeats)
				e.rec.IntegrityWarning("decrement_missed")
			}
			return fmt.Errorf("decrement seats: %w", err)
		}

		outcome = model.Created(enrollment, contact)
		return nil
	})

	switch {
	case err == nil:
		log.Info("enrollment created", "enrollment_id", outcome.Enrollment.ID, "contact_id", outcome.Contact.ID)
		e.publish(ctx, log, outcome)
	case errors.Is(err, errRejected):
		log.Info("enrollment rejected", "reason", outcome.Reason)
	case errors.Is(err, repository.ErrDuplicateEnrollment):
		log.Info("enrollment rejected by unique constraint")
		outcome = model.Rejected(model.ReasonAlreadyEnrolled)
	case vanished:
		return model.Outcome{}, fmt.Errorf("workshop %d: %w", req.WorkshopID, repository.ErrNotFound)
	default:
		log.Error("enrollment failed", "error", err)
		outcome = model.Failed(err)
	}
	return outcome, nil
}

// checkIntegrity surfaces seat counters outside [0, total]. It never
// corrects them.
func (e *Engine) checkIntegrity(log *logger.Logger, w *model.Workshop) {
	if err := w.CheckSeats(); err != nil {
		kind := "over_capacity"
		if w.AvailableSeats < 0 {
			kind = "negative"
		}
		log.Warn("seat counter integrity violation",
			"error", err,
			"available_seats", w.AvailableSeats,
			"total_seats", w.TotalSeats,
		)
		e.rec.IntegrityWarning(kind)
	}
}

func (e *Engine) publish(ctx context.Context, log *logger.Logger, o model.Outcome) {
	if err := e.pub.Publish(ctx, events.EnrollmentCreated(o.Enrollment, o.Contact)); err != nil {
		log.Warn("publish enrollment event", "error", err)
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
