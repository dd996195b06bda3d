// Package repository implements the storage contracts of the enrollment system:
// the workshop Catalog, the contact Directory and the enrollment Ledger.
// It uses pgx directly (no ORM); repository/memory offers an in-process
// implementation of the same contracts.
package repository

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEnrollment is returned when the (contact, workshop) pair already has an enrollment.
var ErrDuplicateEnrollment = errors.New("contact already enrolled in this workshop")

// ErrNoSeatsAvailable is returned when a conditional seat decrement matched no row.
var ErrNoSeatsAvailable = errors.New("no seats available")

// ErrLockTimeout is returned when a row lock could not be acquired in time.
var ErrLockTimeout = errors.New("timed out waiting for row lock")

// ErrInvalidTransition is returned for a payment status change the state machine forbids.
var ErrInvalidTransition = errors.New("invalid payment status transition")

// ErrConflict is returned when a unique constraint other than the enrollment pair is violated.
var ErrConflict = errors.New("resource already exists")

// ErrSeatRange is returned when a write would leave available seats above the total.
var ErrSeatRange = errors.New("available seats exceed total seats")

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Catalog holds workshops and their interest categories.
type Catalog interface {
	Create(ctx context.Context, req model.CreateWorkshopRequest) (*model.Workshop, error)
	GetByID(ctx context.Context, id int64) (*model.Workshop, error)
	// GetForUpdate fetches a workshop under an exclusive row lock held until
	// the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*model.Workshop, error)
	ListActive(ctx context.Context) ([]model.Workshop, error)
	// DecrementAvailableSeats subtracts one seat with a single conditional
	// update; it returns ErrNoSeatsAvailable when no seat was left.
	DecrementAvailableSeats(ctx context.Context, id int64) error
	SetCapacity(ctx context.Context, id int64, total, available int) error
	CreateInterest(ctx context.Context, req model.CreateInterestRequest) (*model.Interest, error)
}

// Directory holds contacts keyed by email and the organizations they belong to.
type Directory interface {
	ResolveOrCreate(ctx context.Context, email, displayName, phone string) (*model.Contact, model.Resolution, error)
	GetByID(ctx context.Context, id int64) (*model.Contact, error)
	GetByEmail(ctx context.Context, email string) (*model.Contact, error)
	// List returns the contacts matching filter, newest first.
	List(ctx context.Context, filter model.ContactFilter) ([]model.Contact, error)
	UpdatePhone(ctx context.Context, contactID int64, phone string) error
	// AttachInterest adds interestID to the contact's interest set; adding
	// an interest twice is a no-op.
	AttachInterest(ctx context.Context, contactID, interestID int64) error
	// CreateOrganization returns ErrConflict when the legal name or tax ID is taken.
	CreateOrganization(ctx context.Context, req model.CreateOrganizationRequest) (*model.Organization, error)
	GetOrganization(ctx context.Context, id int64) (*model.Organization, error)
	// LinkOrganization attaches the contact to the organization and marks it
	// as an organization contact.
	LinkOrganization(ctx context.Context, contactID, organizationID int64) error
}

// Ledger holds enrollments, one per (contact, workshop) pair.
type Ledger interface {
	Exists(ctx context.Context, contactID, workshopID int64) (bool, error)
	// Create inserts an enrollment with zero amount paid. It returns
	// ErrDuplicateEnrollment when the pair is already taken.
	Create(ctx context.Context, contactID, workshopID int64, status model.PaymentStatus) (*model.Enrollment, error)
	GetByID(ctx context.Context, id int64) (*model.Enrollment, error)
	GetForUpdate(ctx context.Context, id int64) (*model.Enrollment, error)
	ListByWorkshop(ctx context.Context, workshopID int64, status *model.PaymentStatus) ([]model.EnrollmentDetail, error)
	// ListByStatus returns enrollments across all workshops whose status is
	// one of statuses, newest first.
	ListByStatus(ctx context.Context, statuses []model.PaymentStatus) ([]model.EnrollmentDetail, error)
	// ListByContact returns the contact's enrollment history, latest workshop first.
	ListByContact(ctx context.Context, contactID int64) ([]model.ContactEnrollment, error)
	UpdatePayment(ctx context.Context, id int64, status model.PaymentStatus, amountPaid int64) error
}

// Tx groups the three collaborators over one unit of work.
type Tx interface {
	Catalog() Catalog
	Directory() Directory
	Ledger() Ledger
}

// Store gives autocommit access through Tx and runs atomic units of work
// through WithinTx. fn's error rolls the transaction back and is returned
// unchanged; a nil error commits.
type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
