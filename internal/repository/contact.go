package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/model"
	"github.com/jackc/pgx/v5"
)

type directory struct {
	db DBTX
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ResolveOrCreate finds the contact by email or inserts a new individual
// contact. It never touches an existing row; phone updates are explicit
// through UpdatePhone.
//
// ON CONFLICT DO NOTHING lets two transactions race on the same new email:
// the loser waits for the winner's commit, gets no row back and reads the
// committed contact instead.
func (d *directory) ResolveOrCreate(ctx context.Context, email, displayName, phone string) (*model.Contact, model.Resolution, error) {
	c := model.Contact{
		DisplayName: displayName,
		Email:       email,
		Phone:       nullableString(phone),
		Kind:        model.ContactIndividual,
		CreatedAt:   time.Now().UTC(),
	}
	err := d.db.QueryRow(ctx,
		`INSERT INTO contacts (display_name, email, phone, kind, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING id`,
		c.DisplayName, c.Email, c.Phone, string(c.Kind), c.CreatedAt,
	).Scan(&c.ID)
	if err == nil {
		return &c, model.ResolvedCreated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, fmt.Errorf("insert contact: %w", classify(err))
	}

	existing, err := d.GetByEmail(ctx, email)
	if err != nil {
		return nil, 0, err
	}
	return existing, model.ResolvedExisting, nil
}

const contactQuery = `SELECT c.id, c.display_name, c.email, c.phone, c.organization_id, c.kind, c.created_at,
	        COALESCE(array_agg(ci.interest_id ORDER BY ci.interest_id)
	                 FILTER (WHERE ci.interest_id IS NOT NULL), '{}')
	 FROM contacts c
	 LEFT JOIN contact_interests ci ON ci.contact_id = c.id`

func scanContact(row pgx.Row) (*model.Contact, error) {
	var c model.Contact
	var kind string
	if err := row.Scan(&c.ID, &c.DisplayName, &c.Email, &c.Phone, &c.OrganizationID, &kind, &c.CreatedAt, &c.Interests); err != nil {
		return nil, err
	}
	c.Kind = model.ContactKind(kind)
	return &c, nil
}

func (d *directory) getOne(ctx context.Context, where string, arg any) (*model.Contact, error) {
	c, err := scanContact(d.db.QueryRow(ctx, contactQuery+` WHERE `+where+` GROUP BY c.id`, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

// GetByEmail returns the contact with its interest set, or ErrNotFound.
func (d *directory) GetByEmail(ctx context.Context, email string) (*model.Contact, error) {
	return d.getOne(ctx, `c.email = $1`, email)
}

// GetByID returns the contact with its interest set, or ErrNotFound.
func (d *directory) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	return d.getOne(ctx, `c.id = $1`, id)
}

// List filters contacts by kind, by any of a set of interests and by
// whether they still owe money on some enrollment.
func (d *directory) List(ctx context.Context, filter model.ContactFilter) ([]model.Contact, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Kind != "" {
		conds = append(conds, `c.kind = `+arg(string(filter.Kind)))
	}
	if len(filter.InterestIDs) > 0 {
		conds = append(conds, `EXISTS (SELECT 1 FROM contact_interests f
		                                WHERE f.contact_id = c.id AND f.interest_id = ANY(`+arg(filter.InterestIDs)+`))`)
	}
	if filter.Owing {
		owing := model.OwingStatuses()
		statuses := make([]string, len(owing))
		for i, st := range owing {
			statuses[i] = string(st)
		}
		conds = append(conds, `EXISTS (SELECT 1 FROM enrollments e
		                                WHERE e.contact_id = c.id AND e.status = ANY(`+arg(statuses)+`))`)
	}

	query := contactQuery
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` GROUP BY c.id ORDER BY c.created_at DESC, c.id DESC`

	rows, err := d.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdatePhone overwrites the stored phone.
func (d *directory) UpdatePhone(ctx context.Context, contactID int64, phone string) error {
	tag, err := d.db.Exec(ctx,
		`UPDATE contacts SET phone = $2 WHERE id = $1`,
		contactID, phone,
	)
	if err != nil {
		return fmt.Errorf("update contact phone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachInterest links an interest to the contact.
func (d *directory) AttachInterest(ctx context.Context, contactID, interestID int64) error {
	_, err := d.db.Exec(ctx,
		`INSERT INTO contact_interests (contact_id, interest_id)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		contactID, interestID,
	)
	if err != nil {
		return fmt.Errorf("attach interest: %w", err)
	}
	return nil
}

// CreateOrganization inserts an organization. Unique legal name and tax ID
// violations come back as ErrConflict.
func (d *directory) CreateOrganization(ctx context.Context, req model.CreateOrganizationRequest) (*model.Organization, error) {
	o := &model.Organization{
		LegalName: req.LegalName,
		TaxID:     req.TaxID,
		CreatedAt: time.Now().UTC(),
	}
	err := d.db.QueryRow(ctx,
		`INSERT INTO organizations (legal_name, tax_id, created_at)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		o.LegalName, o.TaxID, o.CreatedAt,
	).Scan(&o.ID)
	if err != nil {
		return nil, fmt.Errorf("insert organization: %w", classify(err))
	}
	return o, nil
}

// GetOrganization returns a single organization or ErrNotFound.
func (d *directory) GetOrganization(ctx context.Context, id int64) (*model.Organization, error) {
	var o model.Organization
	err := d.db.QueryRow(ctx,
		`SELECT id, legal_name, tax_id, created_at FROM organizations WHERE id = $1`, id,
	).Scan(&o.ID, &o.LegalName, &o.TaxID, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &o, nil
}

// LinkOrganization sets the contact's organization and switches its kind.
func (d *directory) LinkOrganization(ctx context.Context, contactID, organizationID int64) error {
	tag, err := d.db.Exec(ctx,
		`UPDATE contacts SET organization_id = $2, kind = $3 WHERE id = $1`,
		contactID, organizationID, string(model.ContactOrganization),
	)
	if err != nil {
		return fmt.Errorf("link organization: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
