// Package model defines the core domain types for the workshop enrollment system.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Interest is a category tag. Workshops point at one as their category and
// contacts collect them as marketing segments.
type Interest struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Organization is a company or institution some contacts belong to.
type Organization struct {
	ID        int64     `json:"id"`
	LegalName string    `json:"legal_name"`
	TaxID     *string   `json:"tax_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Workshop represents a scheduled, capacity-limited offering.
type Workshop struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CategoryID     *int64    `json:"category_id,omitempty"`
	Price          int64     `json:"price"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	Active         bool      `json:"active"`
	StartsAt       time.Time `json:"starts_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasSeats reports whether at least one seat can still be booked.
func (w *Workshop) HasSeats() bool {
	return w.AvailableSeats > 0
}

// CheckSeats returns an error when the seat counters break 0 <= available <= total.
func (w *Workshop) CheckSeats() error {
	if w.AvailableSeats < 0 {
		return fmt.Errorf("workshop %d: available seats %d is negative", w.ID, w.AvailableSeats)
	}
	if w.AvailableSeats > w.TotalSeats {
		return fmt.Errorf("workshop %d: available seats %d exceed total %d", w.ID, w.AvailableSeats, w.TotalSeats)
	}
	return nil
}

// Resize changes the total capacity, shifting available seats by the same
// delta and clamping the result to [0, total].
func (w *Workshop) Resize(total int) {
	available := w.AvailableSeats + (total - w.TotalSeats)
	if available < 0 {
		available = 0
	}
	if available > total {
		available = total
	}
	w.TotalSeats = total
	w.AvailableSeats = available
}

// ContactKind classifies a contact as a private person or a company contact.
type ContactKind string

const (
	ContactIndividual   ContactKind = "individual"
	ContactOrganization ContactKind = "organization"
)

// ParseContactKind validates a raw contact kind.
func ParseContactKind(s string) (ContactKind, error) {
	switch k := ContactKind(s); k {
	case ContactIndividual, ContactOrganization:
		return k, nil
	}
	return "", fmt.Errorf("unknown contact kind %q", s)
}

// Contact is a person tracked by the directory. Email is the natural key.
type Contact struct {
	ID             int64       `json:"id"`
	DisplayName    string      `json:"display_name"`
	Email          string      `json:"email"`
	Phone          *string     `json:"phone,omitempty"`
	OrganizationID *int64      `json:"organization_id,omitempty"`
	Kind           ContactKind `json:"kind"`
	Interests      []int64     `json:"interests,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// NeedsPhoneUpdate reports whether phone should overwrite the stored value:
// it must be non-empty and either differ from it or fill a missing one.
func (c *Contact) NeedsPhoneUpdate(phone string) bool {
	if phone == "" {
		return false
	}
	return c.Phone == nil || *c.Phone != phone
}

// ContactFilter narrows a contact listing. Zero fields do not filter.
type ContactFilter struct {
	Kind ContactKind
	// InterestIDs keeps contacts holding at least one of the interests.
	InterestIDs []int64
	// Owing keeps contacts with at least one enrollment still owing money.
	Owing bool
}

// ContactEnrollment is one entry of a contact's enrollment history.
type ContactEnrollment struct {
	Enrollment
	WorkshopName     string    `json:"workshop_name"`
	WorkshopStartsAt time.Time `json:"workshop_starts_at"`
}

// ContactDetail is a contact with its organization and enrollment history.
type ContactDetail struct {
	Contact
	Organization *Organization       `json:"organization,omitempty"`
	Enrollments  []ContactEnrollment `json:"enrollments"`
}

// Resolution tells how the directory produced a contact.
type Resolution int

const (
	ResolvedExisting Resolution = iota
	ResolvedCreated
)

// Enrollment links one contact to one workshop.
type Enrollment struct {
	ID         int64         `json:"id"`
	Reference  uuid.UUID     `json:"reference"`
	ContactID  int64         `json:"contact_id"`
	WorkshopID int64         `json:"workshop_id"`
	AmountPaid int64         `json:"amount_paid"`
	Status     PaymentStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

// EnrollmentDetail is an enrollment joined with its contact, for admin listings.
// WorkshopName is only filled by listings that span workshops.
type EnrollmentDetail struct {
	Enrollment
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
	WorkshopName string `json:"workshop_name,omitempty"`
}

// Identity is the authenticated identity hint. When present its values take
// precedence over the raw fields of an enrollment request.
type Identity struct {
	Email string
	Name  string
	Phone string
}

// EnrollRequest carries the inputs of a booking attempt.
type EnrollRequest struct {
	WorkshopID  int64
	DisplayName string
	Email       string
	Phone       string
	Identity    *Identity
}

// CreateWorkshopRequest is the payload for creating a new workshop.
type CreateWorkshopRequest struct {
	Name        string    `json:"name" validate:"required,max=200"`
	Description string    `json:"description"`
	CategoryID  *int64    `json:"category_id,omitempty"`
	Price       int64     `json:"price" validate:"gte=0"`
	TotalSeats  int       `json:"total_seats" validate:"gte=0,lte=100000"`
	StartsAt    time.Time `json:"starts_at"`
}

// CreateInterestRequest is the payload for creating an interest tag.
type CreateInterestRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

// CreateOrganizationRequest is the payload for registering an organization.
type CreateOrganizationRequest struct {
	LegalName string  `json:"legal_name" validate:"required,max=200"`
	TaxID     *string `json:"tax_id,omitempty" validate:"omitempty,max=12"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
