package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/model"
	"github.com/jackc/pgx/v5"
)

const workshopColumns = `id, name, description, category_id, price, total_seats, available_seats, active, starts_at, created_at`

type catalog struct {
	db DBTX
}

func scanWorkshop(row pgx.Row) (*model.Workshop, error) {
	var w model.Workshop
	err := row.Scan(&w.ID, &w.Name, &w.Description, &w.CategoryID, &w.Price,
		&w.TotalSeats, &w.AvailableSeats, &w.Active, &w.StartsAt, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Create inserts a workshop; available seats start equal to total seats.
func (c *catalog) Create(ctx context.Context, req model.CreateWorkshopRequest) (*model.Workshop, error) {
	w := &model.Workshop{
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

	err := c.db.QueryRow(ctx,
		`INSERT INTO workshops (name, description, category_id, price, total_seats, available_seats, active, starts_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		w.Name, w.Description, w.CategoryID, w.Price, w.TotalSeats, w.AvailableSeats, w.Active, w.StartsAt, w.CreatedAt,
	).Scan(&w.ID)
	if err != nil {
		return nil, fmt.Errorf("insert workshop: %w", classify(err))
	}
	return w, nil
}

// GetByID returns a single workshop or ErrNotFound.
func (c *catalog) GetByID(ctx context.Context, id int64) (*model.Workshop, error) {
	w, err := scanWorkshop(c.db.QueryRow(ctx,
		`SELECT `+workshopColumns+` FROM workshops WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get workshop: %w", err)
	}
	return w, nil
}

// GetForUpdate acquires an exclusive row-level lock on the workshop.
//
// Any other transaction issuing the same SELECT ... FOR UPDATE on this row
// blocks until ours commits or rolls back, so the capacity check and the
// decrement that follow cannot interleave with another booking. A wait
// longer than the session lock_timeout surfaces as ErrLockTimeout.
func (c *catalog) GetForUpdate(ctx context.Context, id int64) (*model.Workshop, error) {
	w, err := scanWorkshop(c.db.QueryRow(ctx,
		`SELECT `+workshopColumns+` FROM workshops WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock workshop row: %w", classify(err))
	}
	return w, nil
}

// ListActive returns active workshops ordered by start time.
func (c *catalog) ListActive(ctx context.Context) ([]model.Workshop, error) {
	rows, err := c.db.Query(ctx,
		`SELECT `+workshopColumns+` FROM workshops WHERE active ORDER BY starts_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list workshops: %w", err)
	}
	defer rows.Close()

	var workshops []model.Workshop
	for rows.Next() {
		w, err := scanWorkshop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workshop: %w", err)
		}
		workshops = append(workshops, *w)
	}
	return workshops, rows.Err()
}

// DecrementAvailableSeats takes one seat in a single conditional statement.
func (c *catalog) DecrementAvailableSeats(ctx context.Context, id int64) error {
	tag, err := c.db.Exec(ctx,
		`UPDATE workshops SET available_seats = available_seats - 1
		 WHERE id = $1 AND available_seats > 0`,
		id,
	)
	if err != nil {
		return fmt.Errorf("decrement available_seats: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNoSeatsAvailable
	}
	return nil
}

// SetCapacity overwrites both seat counters. Callers hold the row lock.
func (c *catalog) SetCapacity(ctx context.Context, id int64, total, available int) error {
	tag, err := c.db.Exec(ctx,
		`UPDATE workshops SET total_seats = $2, available_seats = $3 WHERE id = $1`,
		id, total, available,
	)
	if err != nil {
		return fmt.Errorf("update capacity: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateInterest inserts an interest tag.
func (c *catalog) CreateInterest(ctx context.Context, req model.CreateInterestRequest) (*model.Interest, error) {
	in := &model.Interest{Name: req.Name, Description: req.Description}
	err := c.db.QueryRow(ctx,
		`INSERT INTO interests (name, description) VALUES ($1, $2) RETURNING id`,
		in.Name, in.Description,
	).Scan(&in.ID)
	if err != nil {
		return nil, fmt.Errorf("insert interest: %w", classify(err))
	}
	return in, nil
}
