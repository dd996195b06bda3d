package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var readCommitted = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s, err := NewPostgresStore(pool)
	require.NoError(t, err)
	return s, pool
}

func workshopRow(pool pgxmock.PgxPoolIface, id int64, total, available int) *pgxmock.Rows {
	category := int64(7)
	return pool.NewRows([]string{"id", "name", "description", "category_id", "price",
		"total_seats", "available_seats", "active", "starts_at", "created_at"}).
		AddRow(id, "Resin basics", "intro", &category, int64(10000), total, available, true,
			time.Date(2099, 12, 1, 18, 0, 0, 0, time.UTC), time.Now().UTC())
}

func TestNewPostgresStoreRequiresPool(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestWithinTxCommitsLockAndDecrement(t *testing.T) {
	s, pool := newMockStore(t)
	ctx := context.Background()

	pool.ExpectBeginTx(readCommitted)
	pool.ExpectQuery(regexp.QuoteMeta("FROM workshops WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(1)).
		WillReturnRows(workshopRow(pool, 1, 2, 2))
	pool.ExpectExec("UPDATE workshops SET available_seats = available_seats - 1").
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectCommit()

	err := s.WithinTx(ctx, func(tx Tx) error {
		w, err := tx.Catalog().GetForUpdate(ctx, 1)
		if err != nil {
			return err
		}
		assert.Equal(t, 2, w.AvailableSeats)
		require.NotNil(t, w.CategoryID)
		assert.Equal(t, int64(7), *w.CategoryID)
		return tx.Catalog().DecrementAvailableSeats(ctx, w.ID)
	})
	require.NoError(t, err)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s, pool := newMockStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	pool.ExpectBeginTx(readCommitted)
	pool.ExpectRollback()

	err := s.WithinTx(ctx, func(Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestDecrementWithoutSeatsReportsNoSeats(t *testing.T) {
	s, pool := newMockStore(t)

	pool.ExpectExec("UPDATE workshops SET available_seats").
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.Catalog().DecrementAvailableSeats(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNoSeatsAvailable)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestGetForUpdateLockTimeout(t *testing.T) {
	s, pool := newMockStore(t)

	pool.ExpectQuery("FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnError(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})

	_, err := s.Catalog().GetForUpdate(context.Background(), 1)
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestGetByIDNotFound(t *testing.T) {
	s, pool := newMockStore(t)

	pool.ExpectQuery("FROM workshops WHERE id").
		WithArgs(int64(99)).
		WillReturnRows(pool.NewRows([]string{"id"}))

	_, err := s.Catalog().GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedgerCreateMapsPairViolation(t *testing.T) {
	s, pool := newMockStore(t)

	pool.ExpectQuery("INSERT INTO enrollments").
		WithArgs(pgxmock.AnyArg(), int64(5), int64(1), int64(0), "pending", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{
			Code:           "23505",
			ConstraintName: "enrollments_contact_workshop_key",
			Message:        "duplicate key value violates unique constraint",
		})

	_, err := s.Ledger().Create(context.Background(), 5, 1, model.PaymentPending)
	assert.ErrorIs(t, err, ErrDuplicateEnrollment)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestLedgerCreateOtherUniqueIsConflict(t *testing.T) {
	s, pool := newMockStore(t)

	pool.ExpectQuery("INSERT INTO enrollments").
		WithArgs(pgxmock.AnyArg(), int64(5), int64(1), int64(0), "pending", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "enrollments_reference_key"})

	_, err := s.Ledger().Create(context.Background(), 5, 1, model.PaymentPending)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrDuplicateEnrollment)
}

func TestLedgerCreateReturnsPendingEnrollment(t *testing.T) {
	s, pool := newMockStore(t)

	pool.ExpectQuery("INSERT INTO enrollments").
		WithArgs(pgxmock.AnyArg(), int64(5), int64(1), int64(0), "pending", pgxmock.AnyArg()).
		WillReturnRows(pool.NewRows([]string{"id"}).AddRow(int64(42)))

	e, err := s.Ledger().Create(context.Background(), 5, 1, model.PaymentPending)
	require.NoError(t, err)
	assert.Equal(t, int64(42), e.ID)
	assert.Equal(t, model.PaymentPending, e.Status)
	assert.Zero(t, e.AmountPaid)
	assert.NotEqual(t, uuid.Nil, e.Reference)
}

func TestResolveOrCreateInsertsNewContact(t *testing.T) {
	s, pool := newMockStore(t)

	pool.ExpectQuery("INSERT INTO contacts").
		WithArgs("Ana", "ana@test.com", pgxmock.AnyArg(), "individual", pgxmock.AnyArg()).
		WillReturnRows(pool.NewRows([]string{"id"}).AddRow(int64(11)))

	c, res, err := s.Directory().ResolveOrCreate(context.Background(), "ana@test.com", "Ana", "+56912345678")
	require.NoError(t, err)
	assert.Equal(t, model.ResolvedCreated, res)
	assert.Equal(t, int64(11), c.ID)
	require.NotNil(t, c.Phone)
	assert.Equal(t, "+56912345678", *c.Phone)
}

func TestResolveOrCreateFallsBackToExisting(t *testing.T) {
	s, pool := newMockStore(t)
	phone := "+56911111111"

	pool.ExpectQuery("INSERT INTO contacts").
		WithArgs("Someone else", "ana@test.com", pgxmock.AnyArg(), "individual", pgxmock.AnyArg()).
		WillReturnRows(pool.NewRows([]string{"id"}))
	pool.ExpectQuery("FROM contacts c").
		WithArgs("ana@test.com").
		WillReturnRows(pool.NewRows([]string{"id", "display_name", "email", "phone", "organization_id", "kind", "created_at", "interests"}).
			AddRow(int64(11), "Ana", "ana@test.com", &phone, nil, "individual", time.Now().UTC(), []int64{7}))

	c, res, err := s.Directory().ResolveOrCreate(context.Background(), "ana@test.com", "Someone else", "")
	require.NoError(t, err)
	assert.Equal(t, model.ResolvedExisting, res)
	assert.Equal(t, "Ana", c.DisplayName)
	assert.Equal(t, []int64{7}, c.Interests)
	assert.Nil(t, c.OrganizationID)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestAttachInterestIsIdempotentInsert(t *testing.T) {
	s, pool := newMockStore(t)

	pool.ExpectExec(regexp.QuoteMeta("ON CONFLICT DO NOTHING")).
		WithArgs(int64(11), int64(7)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	require.NoError(t, s.Directory().AttachInterest(context.Background(), 11, 7))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestListByWorkshopFiltersByStatus(t *testing.T) {
	s, pool := newMockStore(t)
	status := model.PaymentPaid

	pool.ExpectQuery(regexp.QuoteMeta("AND e.status = $2")).
		WithArgs(int64(1), "paid").
		WillReturnRows(pool.NewRows([]string{"id", "reference", "contact_id", "workshop_id", "amount_paid", "status", "created_at", "display_name", "email"}).
			AddRow(int64(3), uuid.New(), int64(11), int64(1), int64(10000), "paid", time.Now().UTC(), "Ana", "ana@test.com"))

	list, err := s.Ledger().ListByWorkshop(context.Background(), 1, &status)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.PaymentPaid, list[0].Status)
	assert.Equal(t, "ana@test.com", list[0].ContactEmail)
}

func TestSetCapacityMapsSeatRangeViolation(t *testing.T) {
	s, pool := newMockStore(t)

	pool.ExpectExec("UPDATE workshops SET total_seats").
		WithArgs(int64(1), 4, 5).
		WillReturnError(&pgconn.PgError{
			Code:           "23514",
			ConstraintName: "workshops_seats_range",
			Message:        "new row violates check constraint",
		})

	err := s.Catalog().SetCapacity(context.Background(), 1, 4, 5)
	assert.ErrorIs(t, err, ErrSeatRange)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func contactRows(pool pgxmock.PgxPoolIface) *pgxmock.Rows {
	return pool.NewRows([]string{"id", "display_name", "email", "phone", "organization_id", "kind", "created_at", "interests"})
}

func TestListContactsBuildsFilters(t *testing.T) {
	s, pool := newMockStore(t)
	org := int64(3)

	pool.ExpectQuery(regexp.QuoteMeta("WHERE c.kind = $1 AND EXISTS")).
		WithArgs("organization", []int64{7, 8}, []string{"partially_paid", "pending"}).
		WillReturnRows(contactRows(pool).
			AddRow(int64(12), "Cleo", "cleo@test.com", nil, &org, "organization", time.Now().UTC(), []int64{7}))

	list, err := s.Directory().List(context.Background(), model.ContactFilter{
		Kind:        model.ContactOrganization,
		InterestIDs: []int64{7, 8},
		Owing:       true,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.ContactOrganization, list[0].Kind)
	assert.Equal(t, &org, list[0].OrganizationID)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestListContactsWithoutFilter(t *testing.T) {
	s, pool := newMockStore(t)

	pool.ExpectQuery(regexp.QuoteMeta("GROUP BY c.id ORDER BY c.created_at DESC")).
		WillReturnRows(contactRows(pool))

	list, err := s.Directory().List(context.Background(), model.ContactFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestGetContactByIDNotFound(t *testing.T) {
	s, pool := newMockStore(t)

	pool.ExpectQuery(regexp.QuoteMeta("WHERE c.id = $1")).
		WithArgs(int64(99)).
		WillReturnRows(contactRows(pool))

	_, err := s.Directory().GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateOrganizationMapsUniqueViolation(t *testing.T) {
	s, pool := newMockStore(t)

	pool.ExpectQuery("INSERT INTO organizations").
		WithArgs("Acme SpA", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "organizations_legal_name_key"})

	_, err := s.Directory().CreateOrganization(context.Background(), model.CreateOrganizationRequest{LegalName: "Acme SpA"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestLinkOrganizationSetsKind(t *testing.T) {
	s, pool := newMockStore(t)

	pool.ExpectExec("UPDATE contacts SET organization_id").
		WithArgs(int64(11), int64(3), "organization").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec("UPDATE contacts SET organization_id").
		WithArgs(int64(11), int64(99), "organization").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "contacts_organization_id_fkey"})

	require.NoError(t, s.Directory().LinkOrganization(context.Background(), 11, 3))
	err := s.Directory().LinkOrganization(context.Background(), 11, 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestListByStatusJoinsWorkshop(t *testing.T) {
	s, pool := newMockStore(t)

	pool.ExpectQuery(regexp.QuoteMeta("WHERE e.status = ANY($1)")).
		WithArgs([]string{"partially_paid", "pending"}).
		WillReturnRows(pool.NewRows([]string{"id", "reference", "contact_id", "workshop_id", "amount_paid", "status", "created_at", "display_name", "email", "name"}).
			AddRow(int64(3), uuid.New(), int64(11), int64(1), int64(0), "pending", time.Now().UTC(), "Ana", "ana@test.com", "Resin basics"))

	list, err := s.Ledger().ListByStatus(context.Background(), model.OwingStatuses())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Resin basics", list[0].WorkshopName)
	assert.Equal(t, model.PaymentPending, list[0].Status)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestListByContactOrdersByWorkshopDate(t *testing.T) {
	s, pool := newMockStore(t)
	starts := time.Date(2099, 12, 1, 18, 0, 0, 0, time.UTC)

	pool.ExpectQuery(regexp.QuoteMeta("WHERE e.contact_id = $1")).
		WithArgs(int64(11)).
		WillReturnRows(pool.NewRows([]string{"id", "reference", "contact_id", "workshop_id", "amount_paid", "status", "created_at", "name", "starts_at"}).
			AddRow(int64(3), uuid.New(), int64(11), int64(1), int64(10000), "paid", time.Now().UTC(), "Resin basics", starts))

	list, err := s.Ledger().ListByContact(context.Background(), 11)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Resin basics", list[0].WorkshopName)
	assert.Equal(t, starts, list[0].WorkshopStartsAt)
	assert.NoError(t, pool.ExpectationsWereMet())
}
