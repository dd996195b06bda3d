package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const enrollmentColumns = `id, reference, contact_id, workshop_id, amount_paid, status, created_at`

type ledger struct {
	db DBTX
}

func scanEnrollment(row pgx.Row) (*model.Enrollment, error) {
	var e model.Enrollment
	var status string
	if err := row.Scan(&e.ID, &e.Reference, &e.ContactID, &e.WorkshopID, &e.AmountPaid, &status, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Status = model.PaymentStatus(status)
	return &e, nil
}

// Exists reports whether the pair already holds an enrollment.
func (l *ledger) Exists(ctx context.Context, contactID, workshopID int64) (bool, error) {
	var exists bool
	err := l.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM enrollments WHERE contact_id = $1 AND workshop_id = $2)`,
		contactID, workshopID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return exists, nil
}

// Create inserts the enrollment. The unique (contact_id, workshop_id)
// constraint is authoritative; its violation maps to ErrDuplicateEnrollment.
func (l *ledger) Create(ctx context.Context, contactID, workshopID int64, status model.PaymentStatus) (*model.Enrollment, error) {
	e := &model.Enrollment{
		Reference:  uuid.New(),
		ContactID:  contactID,
		WorkshopID: workshopID,
		AmountPaid: 0,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
	err := l.db.QueryRow(ctx,
		`INSERT INTO enrollments (reference, contact_id, workshop_id, amount_paid, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		e.Reference, e.ContactID, e.WorkshopID, e.AmountPaid, string(e.Status), e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		err = classify(err)
		if errors.Is(err, ErrDuplicateEnrollment) {
			return nil, err
		}
		return nil, fmt.Errorf("insert enrollment: %w", err)
	}
	return e, nil
}

// GetByID returns a single enrollment or ErrNotFound.
func (l *ledger) GetByID(ctx context.Context, id int64) (*model.Enrollment, error) {
	e, err := scanEnrollment(l.db.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return e, nil
}

// GetForUpdate locks the enrollment row for a payment status change.
func (l *ledger) GetForUpdate(ctx context.Context, id int64) (*model.Enrollment, error) {
	e, err := scanEnrollment(l.db.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock enrollment row: %w", classify(err))
	}
	return e, nil
}

// ListByWorkshop returns the workshop's enrollments, newest first, optionally
// filtered by payment status.
func (l *ledger) ListByWorkshop(ctx context.Context, workshopID int64, status *model.PaymentStatus) ([]model.EnrollmentDetail, error) {
	query := `SELECT e.id, e.reference, e.contact_id, e.workshop_id, e.amount_paid, e.status, e.created_at,
	                 c.display_name, c.email
	          FROM enrollments e
	          JOIN contacts c ON c.id = e.contact_id
	          WHERE e.workshop_id = $1`
	args := []any{workshopID}
	if status != nil {
		query += ` AND e.status = $2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY e.created_at DESC, e.id DESC`

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var out []model.EnrollmentDetail
	for rows.Next() {
		var d model.EnrollmentDetail
		var st string
		if err := rows.Scan(&d.ID, &d.Reference, &d.ContactID, &d.WorkshopID, &d.AmountPaid, &st, &d.CreatedAt,
			&d.ContactName, &d.ContactEmail); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		d.Status = model.PaymentStatus(st)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListByStatus lists enrollments in any of statuses across every workshop.
func (l *ledger) ListByStatus(ctx context.Context, statuses []model.PaymentStatus) ([]model.EnrollmentDetail, error) {
	raw := make([]string, len(statuses))
	for i, st := range statuses {
		raw[i] = string(st)
	}
	rows, err := l.db.Query(ctx,
		`SELECT e.id, e.reference, e.contact_id, e.workshop_id, e.amount_paid, e.status, e.created_at,
		        c.display_name, c.email, w.name
		 FROM enrollments e
		 JOIN contacts c ON c.id = e.contact_id
		 JOIN workshops w ON w.id = e.workshop_id
		 WHERE e.status = ANY($1)
		 ORDER BY e.created_at DESC, e.id DESC`,
		raw,
	)
	if err != nil {
		return nil, fmt.Errorf("list enrollments by status: %w", err)
	}
	defer rows.Close()

	var out []model.EnrollmentDetail
	for rows.Next() {
		var d model.EnrollmentDetail
		var st string
		if err := rows.Scan(&d.ID, &d.Reference, &d.ContactID, &d.WorkshopID, &d.AmountPaid, &st, &d.CreatedAt,
			&d.ContactName, &d.ContactEmail, &d.WorkshopName); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		d.Status = model.PaymentStatus(st)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListByContact returns the contact's enrollments with their workshop names.
func (l *ledger) ListByContact(ctx context.Context, contactID int64) ([]model.ContactEnrollment, error) {
	rows, err := l.db.Query(ctx,
		`SELECT e.id, e.reference, e.contact_id, e.workshop_id, e.amount_paid, e.status, e.created_at,
		        w.name, w.starts_at
		 FROM enrollments e
		 JOIN workshops w ON w.id = e.workshop_id
		 WHERE e.contact_id = $1
		 ORDER BY w.starts_at DESC, e.id DESC`,
		contactID,
	)
	if err != nil {
		return nil, fmt.Errorf("list contact enrollments: %w", err)
	}
	defer rows.Close()

	var out []model.ContactEnrollment
	for rows.Next() {
		var ce model.ContactEnrollment
		var st string
		if err := rows.Scan(&ce.ID, &ce.Reference, &ce.ContactID, &ce.WorkshopID, &ce.AmountPaid, &st, &ce.CreatedAt,
			&ce.WorkshopName, &ce.WorkshopStartsAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		ce.Status = model.PaymentStatus(st)
		out = append(out, ce)
	}
	return out, rows.Err()
}

// UpdatePayment stores a new payment status and amount.
func (l *ledger) UpdatePayment(ctx context.Context, id int64, status model.PaymentStatus, amountPaid int64) error {
	tag, err := l.db.Exec(ctx,
		`UPDATE enrollments SET status = $2, amount_paid = $3 WHERE id = $1`,
		id, string(status), amountPaid,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
