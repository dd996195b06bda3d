package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/model"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/repository"
)

// StatusOwing selects every payment status that still owes money.
const StatusOwing = "owing"

// ListContacts returns the contacts matching the filters, newest first. An
// empty kind matches both kinds.
func (s *AdminService) ListContacts(ctx context.Context, kind string, interestIDs []int64, owing bool) ([]model.Contact, error) {
	filter := model.ContactFilter{InterestIDs: interestIDs, Owing: owing}
	if kind = strings.TrimSpace(kind); kind != "" {
		k, err := model.ParseContactKind(kind)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
		}
		filter.Kind = k
	}
	list, err := s.store.Directory().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return list, nil
}

// GetContact returns a contact with its organization and enrollment history.
func (s *AdminService) GetContact(ctx context.Context, id int64) (*model.ContactDetail, error) {
	c, err := s.store.Directory().GetByID(ctx, id)
	if err != nil {
		return nil, s.wrap("get contact", err)
	}
	detail := &model.ContactDetail{Contact: *c}
	if c.OrganizationID != nil {
		org, err := s.store.Directory().GetOrganization(ctx, *c.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("get contact organization: %w", err)
		}
		detail.Organization = org
	}
	history, err := s.store.Ledger().ListByContact(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list contact enrollments: %w", err)
	}
	detail.Enrollments = history
	if detail.Enrollments == nil {
		detail.Enrollments = []model.ContactEnrollment{}
	}
	return detail, nil
}

// CreateOrganization registers a company or institution. A blank tax ID is
// stored as missing.
func (s *AdminService) CreateOrganization(ctx context.Context, req model.CreateOrganizationRequest) (*model.Organization, error) {
	req.LegalName = strings.TrimSpace(req.LegalName)
	if req.TaxID != nil {
		tax := strings.TrimSpace(*req.TaxID)
		req.TaxID = nil
		if tax != "" {
			req.TaxID = &tax
		}
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	org, err := s.store.Directory().CreateOrganization(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}
	s.log.Info("organization created", "organization_id", org.ID)
	return org, nil
}

// LinkContactOrganization attaches a contact to an organization, turning it
// into an organization contact.
func (s *AdminService) LinkContactOrganization(ctx context.Context, contactID, organizationID int64) (*model.Contact, error) {
	var out *model.Contact
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Directory().GetOrganization(ctx, organizationID); err != nil {
			return err
		}
		if err := tx.Directory().LinkOrganization(ctx, contactID, organizationID); err != nil {
			return err
		}
		c, err := tx.Directory().GetByID(ctx, contactID)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, s.wrap("link organization", err)
	}
	s.log.Info("contact linked to organization", "contact_id", contactID, "organization_id", organizationID)
	return out, nil
}

// ListEnrollmentsByStatus lists enrollments across all workshops. An empty
// status or "owing" selects the debtors: every status that still owes money.
func (s *AdminService) ListEnrollmentsByStatus(ctx context.Context, status string) ([]model.EnrollmentDetail, error) {
	statuses := model.OwingStatuses()
	if status = strings.TrimSpace(status); status != "" && status != StatusOwing {
		st, err := model.ParsePaymentStatus(status)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
		}
		statuses = []model.PaymentStatus{st}
	}
	list, err := s.store.Ledger().ListByStatus(ctx, statuses)
	if err != nil {
		return nil, fmt.Errorf("list enrollments by status: %w", err)
	}
	return list, nil
}
