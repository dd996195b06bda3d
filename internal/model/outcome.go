package model

import "fmt"

// OutcomeKind is the top-level result of a booking attempt.
type OutcomeKind string

const (
	OutcomeCreated  OutcomeKind = "created"
	OutcomeRejected OutcomeKind = "rejected"
	OutcomeFailed   OutcomeKind = "failed"
)

// RejectReason explains an expected business rejection.
type RejectReason string

const (
	ReasonNoSeatsAvailable RejectReason = "no_seats_available"
	ReasonAlreadyEnrolled  RejectReason = "already_enrolled"
)

// Outcome summarises a single enrollment attempt. Business rejections are
// values, not errors, so callers have to look at Kind.
type Outcome struct {
	Kind       OutcomeKind
	Reason     RejectReason
	Enrollment *Enrollment
	Contact    *Contact
	// Detail carries the diagnostic of a failed attempt.
	Detail  string
	Message string
}

// Created builds a successful outcome.
func Created(e *Enrollment, c *Contact) Outcome {
	return Outcome{
		Kind:       OutcomeCreated,
		Enrollment: e,
		Contact:    c,
		Message:    "enrollment created successfully",
	}
}

// Rejected builds a business rejection outcome.
func Rejected(reason RejectReason) Outcome {
	o := Outcome{Kind: OutcomeRejected, Reason: reason}
	switch reason {
	case ReasonNoSeatsAvailable:
		o.Message = "no seats available"
	case ReasonAlreadyEnrolled:
		o.Message = "contact already enrolled in this workshop"
	}
	return o
}

// Failed builds an outcome for an unexpected error.
func Failed(err error) Outcome {
	return Outcome{
		Kind:    OutcomeFailed,
		Detail:  err.Error(),
		Message: fmt.Sprintf("unexpected error: %v", err),
	}
}

// IsCreated reports whether the enrollment was created.
func (o Outcome) IsCreated() bool { return o.Kind == OutcomeCreated }

// Label is a short, low-cardinality name for metrics and logs.
func (o Outcome) Label() string {
	if o.Kind == OutcomeRejected {
		return string(o.Reason)
	}
	return string(o.Kind)
}
