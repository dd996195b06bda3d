package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/model"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/repository"
	"github.com/google/uuid"
)

// scope runs fn inside the bound transaction, or an autocommit one.
type scope struct {
	t    *tx
	auto *Store
}

func (s scope) run(fn func(t *tx) error) error {
	if s.t != nil {
		return fn(s.t)
	}
	return s.auto.autocommit(fn)
}

type catalog scope

func (c *catalog) run(fn func(t *tx) error) error { return scope(*c).run(fn) }

func (c *catalog) Create(_ context.Context, req model.CreateWorkshopRequest) (*model.Workshop, error) {
	var out model.Workshop
	err := c.run(func(t *tx) error {
		out = model.Workshop{
			ID:             t.s.nextID(),
			Name:           req.Name,
			Description:    req.Description,
			CategoryID:     req.CategoryID,
			Price:          req.Price,
			TotalSeats:     req.TotalSeats,
			AvailableSeats: req.TotalSeats,
			Active:         true,
			StartsAt:       req.StartsAt.UTC(),
			CreatedAt:      time.Now().UTC(),
		}
		t.s.mu.Lock()
		t.newWorkshops[out.ID] = out
		t.s.mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *catalog) GetByID(_ context.Context, id int64) (*model.Workshop, error) {
	var out model.Workshop
	err := c.run(func(t *tx) error {
		w, ok := t.workshop(id)
		if !ok {
			return repository.ErrNotFound
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *catalog) GetForUpdate(ctx context.Context, id int64) (*model.Workshop, error) {
	var out model.Workshop
	err := c.run(func(t *tx) error {
		if _, ok := t.workshop(id); !ok {
			return repository.ErrNotFound
		}
		if err := t.lock(ctx, workshopKey(id)); err != nil {
			return err
		}
		w, _ := t.workshop(id)
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *catalog) ListActive(_ context.Context) ([]model.Workshop, error) {
	var out []model.Workshop
	err := c.run(func(t *tx) error {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		ids := make(map[int64]struct{})
		for id := range t.s.workshops {
			ids[id] = struct{}{}
		}
		for id := range t.newWorkshops {
			ids[id] = struct{}{}
		}
		for id := range ids {
			if w, ok := t.workshopLocked(id); ok && w.Active {
				out = append(out, w)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (c *catalog) DecrementAvailableSeats(_ context.Context, id int64) error {
	return c.run(func(t *tx) error {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		w, ok := t.workshopLocked(id)
		if !ok || w.AvailableSeats <= 0 {
			return repository.ErrNoSeatsAvailable
		}
		t.seatDeltas[id]++
		return nil
	})
}

func (c *catalog) SetCapacity(_ context.Context, id int64, total, available int) error {
	return c.run(func(t *tx) error {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		if _, ok := t.workshopLocked(id); !ok {
			return repository.ErrNotFound
		}
		t.capacities[id] = capacity{total: total, available: available}
		delete(t.seatDeltas, id)
		return nil
	})
}

func (c *catalog) CreateInterest(_ context.Context, req model.CreateInterestRequest) (*model.Interest, error) {
	var out model.Interest
	err := c.run(func(t *tx) error {
		id := t.s.nextID()
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		if _, taken := t.s.interestNames[req.Name]; taken {
			return repository.ErrConflict
		}
		for _, in := range t.newInterests {
			if in.Name == req.Name {
				return repository.ErrConflict
			}
		}
		out = model.Interest{ID: id, Name: req.Name, Description: req.Description}
		t.newInterests[id] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type directory scope

func (d *directory) run(fn func(t *tx) error) error { return scope(*d).run(fn) }

// ResolveOrCreate takes a per-email lock before inserting, mirroring how a
// unique index makes a concurrent insert of the same key wait for the first
// transaction to finish.
func (d *directory) ResolveOrCreate(ctx context.Context, email, displayName, phone string) (*model.Contact, model.Resolution, error) {
	var out model.Contact
	var res model.Resolution
	err := d.run(func(t *tx) error {
		if c, ok := t.contactByEmail(email); ok {
			out, res = c, model.ResolvedExisting
			return nil
		}
		if err := t.lock(ctx, emailKey(email)); err != nil {
			return err
		}
		if c, ok := t.contactByEmail(email); ok {
			out, res = c, model.ResolvedExisting
			return nil
		}
		out = model.Contact{
			ID:          t.s.nextID(),
			DisplayName: displayName,
			Email:       email,
			Kind:        model.ContactIndividual,
			CreatedAt:   time.Now().UTC(),
		}
		if phone != "" {
			p := phone
			out.Phone = &p
		}
		res = model.ResolvedCreated
		t.s.mu.Lock()
		t.newContacts[out.ID] = out
		t.s.mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return &out, res, nil
}

func (d *directory) GetByEmail(_ context.Context, email string) (*model.Contact, error) {
	var out model.Contact
	err := d.run(func(t *tx) error {
		c, ok := t.contactByEmail(email)
		if !ok {
			return repository.ErrNotFound
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *directory) GetByID(_ context.Context, id int64) (*model.Contact, error) {
	var out model.Contact
	err := d.run(func(t *tx) error {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		c, ok := t.contactLocked(id)
		if !ok {
			return repository.ErrNotFound
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *directory) List(_ context.Context, filter model.ContactFilter) ([]model.Contact, error) {
	var out []model.Contact
	err := d.run(func(t *tx) error {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		var owing map[int64]struct{}
		if filter.Owing {
			owing = make(map[int64]struct{})
			for _, id := range t.enrollmentIDsLocked() {
				if e, _ := t.enrollmentLocked(id); e.Status.Owing() {
					owing[e.ContactID] = struct{}{}
				}
			}
		}
		for _, id := range t.contactIDsLocked() {
			c, _ := t.contactLocked(id)
			if filter.Kind != "" && c.Kind != filter.Kind {
				continue
			}
			if len(filter.InterestIDs) > 0 && !sharesAny(c.Interests, filter.InterestIDs) {
				continue
			}
			if owing != nil {
				if _, ok := owing[id]; !ok {
					continue
				}
			}
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, err
}

func sharesAny(have, want []int64) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func (d *directory) UpdatePhone(_ context.Context, contactID int64, phone string) error {
	return d.run(func(t *tx) error {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		if _, ok := t.contactLocked(contactID); !ok {
			return repository.ErrNotFound
		}
		t.phones[contactID] = phone
		return nil
	})
}

func (d *directory) AttachInterest(_ context.Context, contactID, interestID int64) error {
	return d.run(func(t *tx) error {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		if _, ok := t.contactLocked(contactID); !ok {
			return repository.ErrNotFound
		}
		if !t.interestExistsLocked(interestID) {
			return repository.ErrNotFound
		}
		set, ok := t.interestAdds[contactID]
		if !ok {
			set = make(map[int64]struct{})
			t.interestAdds[contactID] = set
		}
		set[interestID] = struct{}{}
		return nil
	})
}

func (d *directory) CreateOrganization(_ context.Context, req model.CreateOrganizationRequest) (*model.Organization, error) {
	var out model.Organization
	err := d.run(func(t *tx) error {
		id := t.s.nextID()
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		if _, taken := t.s.orgNames[req.LegalName]; taken {
			return repository.ErrConflict
		}
		if req.TaxID != nil {
			if _, taken := t.s.orgTaxIDs[*req.TaxID]; taken {
				return repository.ErrConflict
			}
		}
		for _, o := range t.newOrgs {
			if o.LegalName == req.LegalName || (req.TaxID != nil && o.TaxID != nil && *o.TaxID == *req.TaxID) {
				return repository.ErrConflict
			}
		}
		out = model.Organization{ID: id, LegalName: req.LegalName, TaxID: req.TaxID, CreatedAt: time.Now().UTC()}
		t.newOrgs[id] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *directory) GetOrganization(_ context.Context, id int64) (*model.Organization, error) {
	var out model.Organization
	err := d.run(func(t *tx) error {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		o, ok := t.organizationLocked(id)
		if !ok {
			return repository.ErrNotFound
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *directory) LinkOrganization(_ context.Context, contactID, organizationID int64) error {
	return d.run(func(t *tx) error {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		if _, ok := t.contactLocked(contactID); !ok {
			return repository.ErrNotFound
		}
		if _, ok := t.organizationLocked(organizationID); !ok {
			return repository.ErrNotFound
		}
		t.orgLinks[contactID] = organizationID
		return nil
	})
}

type ledger scope

func (l *ledger) run(fn func(t *tx) error) error { return scope(*l).run(fn) }

func (l *ledger) Exists(_ context.Context, contactID, workshopID int64) (bool, error) {
	var exists bool
	err := l.run(func(t *tx) error {
		exists = t.pairTaken(pair{contactID, workshopID})
		return nil
	})
	return exists, err
}

func (l *ledger) Create(_ context.Context, contactID, workshopID int64, status model.PaymentStatus) (*model.Enrollment, error) {
	var out model.Enrollment
	err := l.run(func(t *tx) error {
		p := pair{contactID, workshopID}
		if t.pairTaken(p) {
			return repository.ErrDuplicateEnrollment
		}
		out = model.Enrollment{
			ID:         t.s.nextID(),
			Reference:  uuid.New(),
			ContactID:  contactID,
			WorkshopID: workshopID,
			Status:     status,
			CreatedAt:  time.Now().UTC(),
		}
		t.s.mu.Lock()
		t.newEnrollments[out.ID] = out
		t.newPairs[p] = out.ID
		t.s.mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (l *ledger) GetByID(_ context.Context, id int64) (*model.Enrollment, error) {
	var out model.Enrollment
	err := l.run(func(t *tx) error {
		e, ok := t.enrollment(id)
		if !ok {
			return repository.ErrNotFound
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (l *ledger) GetForUpdate(ctx context.Context, id int64) (*model.Enrollment, error) {
	var out model.Enrollment
	err := l.run(func(t *tx) error {
		if _, ok := t.enrollment(id); !ok {
			return repository.ErrNotFound
		}
		if err := t.lock(ctx, enrollmentKey(id)); err != nil {
			return err
		}
		out, _ = t.enrollment(id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (l *ledger) ListByWorkshop(_ context.Context, workshopID int64, status *model.PaymentStatus) ([]model.EnrollmentDetail, error) {
	var out []model.EnrollmentDetail
	err := l.run(func(t *tx) error {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		for _, id := range t.enrollmentIDsLocked() {
			e, _ := t.enrollmentLocked(id)
			if e.WorkshopID != workshopID || (status != nil && e.Status != *status) {
				continue
			}
			d := model.EnrollmentDetail{Enrollment: e}
			if c, ok := t.contactLocked(e.ContactID); ok {
				d.ContactName, d.ContactEmail = c.DisplayName, c.Email
			}
			out = append(out, d)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, err
}

func (l *ledger) ListByStatus(_ context.Context, statuses []model.PaymentStatus) ([]model.EnrollmentDetail, error) {
	want := make(map[model.PaymentStatus]struct{}, len(statuses))
	for _, st := range statuses {
		want[st] = struct{}{}
	}
	var out []model.EnrollmentDetail
	err := l.run(func(t *tx) error {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		for _, id := range t.enrollmentIDsLocked() {
			e, _ := t.enrollmentLocked(id)
			if _, ok := want[e.Status]; !ok {
				continue
			}
			d := model.EnrollmentDetail{Enrollment: e}
			if c, ok := t.contactLocked(e.ContactID); ok {
				d.ContactName, d.ContactEmail = c.DisplayName, c.Email
			}
			if w, ok := t.workshopLocked(e.WorkshopID); ok {
				d.WorkshopName = w.Name
			}
			out = append(out, d)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, err
}

func (l *ledger) ListByContact(_ context.Context, contactID int64) ([]model.ContactEnrollment, error) {
	var out []model.ContactEnrollment
	err := l.run(func(t *tx) error {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		for _, id := range t.enrollmentIDsLocked() {
			e, _ := t.enrollmentLocked(id)
			if e.ContactID != contactID {
				continue
			}
			ce := model.ContactEnrollment{Enrollment: e}
			if w, ok := t.workshopLocked(e.WorkshopID); ok {
				ce.WorkshopName, ce.WorkshopStartsAt = w.Name, w.StartsAt
			}
			out = append(out, ce)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WorkshopStartsAt.Equal(out[j].WorkshopStartsAt) {
			return out[i].WorkshopStartsAt.After(out[j].WorkshopStartsAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, err
}

func (l *ledger) UpdatePayment(_ context.Context, id int64, status model.PaymentStatus, amountPaid int64) error {
	return l.run(func(t *tx) error {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		if _, ok := t.enrollmentLocked(id); !ok {
			return repository.ErrNotFound
		}
		t.payments[id] = payment{status: status, amount: amountPaid}
		return nil
	})
}
