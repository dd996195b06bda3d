package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/model"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/repository"
)

type capacity struct {
	total, available int
}

type payment struct {
	status model.PaymentStatus
	amount int64
}

// tx buffers writes until commit. Reads see committed state overlaid with
// the transaction's own writes.
type tx struct {
	s    *Store
	held map[string]chan struct{}

	newWorkshops   map[int64]model.Workshop
	capacities     map[int64]capacity
	seatDeltas     map[int64]int
	newInterests   map[int64]model.Interest
	newContacts    map[int64]model.Contact
	phones         map[int64]string
	interestAdds   map[int64]map[int64]struct{}
	newEnrollments map[int64]model.Enrollment
	newPairs       map[pair]int64
	payments       map[int64]payment
	newOrgs        map[int64]model.Organization
	orgLinks       map[int64]int64
}

func (s *Store) begin() *tx {
	return &tx{
		s:              s,
		held:           make(map[string]chan struct{}),
		newWorkshops:   make(map[int64]model.Workshop),
		capacities:     make(map[int64]capacity),
		seatDeltas:     make(map[int64]int),
		newInterests:   make(map[int64]model.Interest),
		newContacts:    make(map[int64]model.Contact),
		phones:         make(map[int64]string),
		interestAdds:   make(map[int64]map[int64]struct{}),
		newEnrollments: make(map[int64]model.Enrollment),
		newPairs:       make(map[pair]int64),
		payments:       make(map[int64]payment),
		newOrgs:        make(map[int64]model.Organization),
		orgLinks:       make(map[int64]int64),
	}
}

func (t *tx) Catalog() repository.Catalog     { return &catalog{t: t} }
func (t *tx) Directory() repository.Directory { return &directory{t: t} }
func (t *tx) Ledger() repository.Ledger       { return &ledger{t: t} }

// lock acquires the row lock for key, waiting at most the store's lock timeout.
func (t *tx) lock(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	ch := t.s.lockChan(key)
	timer := time.NewTimer(t.s.lockTimeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		t.held[key] = ch
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %v", repository.ErrLockTimeout, key, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: %s", repository.ErrLockTimeout, key)
	}
}

func (t *tx) release() {
	for key, ch := range t.held {
		<-ch
		delete(t.held, key)
	}
}

// workshopLocked reads a workshop as this transaction sees it. s.mu must be held.
func (t *tx) workshopLocked(id int64) (model.Workshop, bool) {
	w, ok := t.newWorkshops[id]
	if !ok {
		w, ok = t.s.workshops[id]
	}
	if !ok {
		return model.Workshop{}, false
	}
	if c, ok := t.capacities[id]; ok {
		w.TotalSeats, w.AvailableSeats = c.total, c.available
	}
	w.AvailableSeats -= t.seatDeltas[id]
	return w, true
}

func (t *tx) workshop(id int64) (model.Workshop, bool) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.workshopLocked(id)
}

// contactLocked reads a contact, with pending phone and interests applied.
// s.mu must be held.
func (t *tx) contactLocked(id int64) (model.Contact, bool) {
	c, ok := t.newContacts[id]
	if !ok {
		c, ok = t.s.contacts[id]
	}
	if !ok {
		return model.Contact{}, false
	}
	if phone, ok := t.phones[id]; ok {
		c.Phone = &phone
	}
	if org, ok := t.orgLinks[id]; ok {
		c.OrganizationID = &org
		c.Kind = model.ContactOrganization
	}
	set := make(map[int64]struct{})
	for in := range t.s.contactInterests[id] {
		set[in] = struct{}{}
	}
	for in := range t.interestAdds[id] {
		set[in] = struct{}{}
	}
	c.Interests = nil
	for in := range set {
		c.Interests = append(c.Interests, in)
	}
	sort.Slice(c.Interests, func(i, j int) bool { return c.Interests[i] < c.Interests[j] })
	return c, true
}

// contactIDsLocked lists committed and pending contact IDs. s.mu must be held.
func (t *tx) contactIDsLocked() []int64 {
	ids := make([]int64, 0, len(t.s.contacts)+len(t.newContacts))
	for id := range t.s.contacts {
		ids = append(ids, id)
	}
	for id := range t.newContacts {
		ids = append(ids, id)
	}
	return ids
}

func (t *tx) contactByEmail(email string) (model.Contact, bool) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, c := range t.newContacts {
		if c.Email == email {
			return t.contactLocked(id)
		}
	}
	if id, ok := t.s.contactEmails[email]; ok {
		return t.contactLocked(id)
	}
	return model.Contact{}, false
}

func (t *tx) interestExistsLocked(id int64) bool {
	if _, ok := t.newInterests[id]; ok {
		return true
	}
	_, ok := t.s.interests[id]
	return ok
}

func (t *tx) enrollmentLocked(id int64) (model.Enrollment, bool) {
	e, ok := t.newEnrollments[id]
	if !ok {
		e, ok = t.s.enrollments[id]
	}
	if !ok {
		return model.Enrollment{}, false
	}
	if p, ok := t.payments[id]; ok {
		e.Status, e.AmountPaid = p.status, p.amount
	}
	return e, true
}

// enrollmentIDsLocked lists committed and pending enrollment IDs. s.mu must be held.
func (t *tx) enrollmentIDsLocked() []int64 {
	ids := make([]int64, 0, len(t.s.enrollments)+len(t.newEnrollments))
	for id := range t.s.enrollments {
		ids = append(ids, id)
	}
	for id := range t.newEnrollments {
		ids = append(ids, id)
	}
	return ids
}

// organizationLocked reads a committed or pending organization. s.mu must be held.
func (t *tx) organizationLocked(id int64) (model.Organization, bool) {
	o, ok := t.newOrgs[id]
	if !ok {
		o, ok = t.s.organizations[id]
	}
	return o, ok
}

func (t *tx) enrollment(id int64) (model.Enrollment, bool) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.enrollmentLocked(id)
}

func (t *tx) pairTaken(p pair) bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.newPairs[p]; ok {
		return true
	}
	_, ok := t.s.pairs[p]
	return ok
}

// commit validates the buffered writes against committed state and applies
// them in one critical section.
func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, in := range t.newInterests {
		if _, taken := s.interestNames[in.Name]; taken {
			return fmt.Errorf("%w: interest %q", repository.ErrConflict, in.Name)
		}
	}
	for _, c := range t.newContacts {
		if _, taken := s.contactEmails[c.Email]; taken {
			return fmt.Errorf("%w: contact %q", repository.ErrConflict, c.Email)
		}
	}
	for p := range t.newPairs {
		if _, taken := s.pairs[p]; taken {
			return repository.ErrDuplicateEnrollment
		}
	}
	for _, o := range t.newOrgs {
		if _, taken := s.orgNames[o.LegalName]; taken {
			return fmt.Errorf("%w: organization %q", repository.ErrConflict, o.LegalName)
		}
		if o.TaxID != nil {
			if _, taken := s.orgTaxIDs[*o.TaxID]; taken {
				return fmt.Errorf("%w: tax id %q", repository.ErrConflict, *o.TaxID)
			}
		}
	}
	final := make(map[int64]model.Workshop)
	for id := range t.newWorkshops {
		w, _ := t.workshopLocked(id)
		final[id] = w
	}
	for id := range t.capacities {
		if w, ok := t.workshopLocked(id); ok {
			final[id] = w
		}
	}
	for id := range t.seatDeltas {
		if w, ok := t.workshopLocked(id); ok {
			final[id] = w
		}
	}
	for id, w := range final {
		if w.AvailableSeats < 0 {
			return fmt.Errorf("workshop %d: %w", id, repository.ErrNoSeatsAvailable)
		}
		if w.AvailableSeats > w.TotalSeats {
			return fmt.Errorf("workshop %d: %w", id, repository.ErrSeatRange)
		}
	}

	for id, in := range t.newInterests {
		s.interests[id] = in
		s.interestNames[in.Name] = id
	}
	for id, w := range final {
		s.workshops[id] = w
	}
	for id, c := range t.newContacts {
		c.Interests = nil
		s.contacts[id] = c
		s.contactEmails[c.Email] = id
	}
	for id, o := range t.newOrgs {
		s.organizations[id] = o
		s.orgNames[o.LegalName] = id
		if o.TaxID != nil {
			s.orgTaxIDs[*o.TaxID] = id
		}
	}
	for id, org := range t.orgLinks {
		c := s.contacts[id]
		o := org
		c.OrganizationID = &o
		c.Kind = model.ContactOrganization
		s.contacts[id] = c
	}
	for id, phone := range t.phones {
		c := s.contacts[id]
		p := phone
		c.Phone = &p
		s.contacts[id] = c
	}
	for cid, adds := range t.interestAdds {
		set, ok := s.contactInterests[cid]
		if !ok {
			set = make(map[int64]struct{})
			s.contactInterests[cid] = set
		}
		for in := range adds {
			set[in] = struct{}{}
		}
	}
	for id, e := range t.newEnrollments {
		s.enrollments[id] = e
	}
	for p, id := range t.newPairs {
		s.pairs[p] = id
	}
	for id, p := range t.payments {
		e := s.enrollments[id]
		e.Status, e.AmountPaid = p.status, p.amount
		s.enrollments[id] = e
	}
	return nil
}
