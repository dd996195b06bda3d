package model

import (
	"fmt"
	"sort"
)

// PaymentStatus is the closed set of states an enrollment's payment can be in.
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentPaid          PaymentStatus = "paid"
	PaymentCancelled     PaymentStatus = "cancelled"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:       {PaymentPartiallyPaid, PaymentPaid, PaymentCancelled},
	PaymentPartiallyPaid: {PaymentPaid, PaymentCancelled},
	PaymentPaid:          nil,
	PaymentCancelled:     nil,
}

// ParsePaymentStatus validates a raw status string.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(s)
	if _, ok := paymentTransitions[st]; !ok {
		return "", fmt.Errorf("unknown payment status %q", s)
	}
	return st, nil
}

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return len(paymentTransitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Owing reports whether the enrollment still has money outstanding.
func (s PaymentStatus) Owing() bool {
	return s == PaymentPending || s == PaymentPartiallyPaid
}

// OwingStatuses lists every status for which Owing holds, in a stable order.
func OwingStatuses() []PaymentStatus {
	var out []PaymentStatus
	for st := range paymentTransitions {
		if st.Owing() {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
