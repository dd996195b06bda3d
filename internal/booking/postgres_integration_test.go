package booking

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/database"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/model"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// newTestPool connects to TEST_DATABASE_URL with the given session lock_timeout.
func newTestPool(t *testing.T, lockTimeout time.Duration) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres integration test")
	}
	cfg, err := pgxpool.ParseConfig(dbURL)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["lock_timeout"] = strconv.FormatInt(lockTimeout.Milliseconds(), 10)

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// setupPostgres migrates and empties the test database and returns a store on it.
func setupPostgres(t *testing.T) (*repository.PostgresStore, *pgxpool.Pool) {
	t.Helper()
	pool := newTestPool(t, 5*time.Second)
	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, pool))

	truncate := func() {
		_, _ = pool.Exec(context.Background(),
			`TRUNCATE enrollments, contact_interests, contacts, organizations, workshops, interests RESTART IDENTITY CASCADE`)
	}
	truncate()
	t.Cleanup(truncate)

	store, err := repository.NewPostgresStore(pool)
	require.NoError(t, err)
	return store, pool
}

func createWorkshop(t *testing.T, store repository.Store, name string, seats int) *model.Workshop {
	t.Helper()
	w, err := store.Catalog().Create(context.Background(), model.CreateWorkshopRequest{
		Name:       name,
		Price:      25000,
		TotalSeats: seats,
		StartsAt:   time.Date(2099, 3, 1, 18, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return w
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT count(*) FROM `+table).Scan(&n))
	return n
}

func TestPostgresConcurrentNoOverselling(t *testing.T) {
	store, pool := setupPostgres(t)
	const seatsLeft, extra = 5, 15
	e := NewEngine(store, nil)
	w := createWorkshop(t, store, "Resin basics", seatsLeft)

	var (
		mu      sync.Mutex
		created int
		noSeats int
	)
	var g errgroup.Group
	for i := 0; i < seatsLeft+extra; i++ {
		email := fmt.Sprintf("guest%02d@test.com", i)
		g.Go(func() error {
			o, err := e.Enroll(context.Background(), model.EnrollRequest{WorkshopID: w.ID, Email: email})
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case o.IsCreated():
				created++
			case o.Reason == model.ReasonNoSeatsAvailable:
				noSeats++
			default:
				return fmt.Errorf("unexpected outcome for %s: %s", email, o.Message)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, seatsLeft, created)
	assert.Equal(t, extra, noSeats)
	assert.Zero(t, seats(t, store, w.ID))
	assert.Equal(t, seatsLeft, countRows(t, pool, "enrollments"))
}

func TestPostgresConcurrentDuplicates(t *testing.T) {
	store, pool := setupPostgres(t)
	const attempts = 10
	e := NewEngine(store, nil)
	w := createWorkshop(t, store, "Resin basics", 50)

	outcomes := make([]model.Outcome, attempts)
	var g errgroup.Group
	for i := range outcomes {
		i := i
		g.Go(func() error {
			o, err := e.Enroll(context.Background(), model.EnrollRequest{WorkshopID: w.ID, Email: "ana@test.com"})
			outcomes[i] = o
			return err
		})
	}
	require.NoError(t, g.Wait())

	var created, already int
	for _, o := range outcomes {
		switch {
		case o.IsCreated():
			created++
		case o.Reason == model.ReasonAlreadyEnrolled:
			already++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, already)
	assert.Equal(t, 49, seats(t, store, w.ID))
	assert.Equal(t, 1, countRows(t, pool, "contacts"))
	assert.Equal(t, 1, countRows(t, pool, "enrollments"))
}

// Two workshops racing on the same new email resolve to one contact through
// the insert conflict fallback.
func TestPostgresSharedContactAcrossWorkshops(t *testing.T) {
	store, pool := setupPostgres(t)
	e := NewEngine(store, nil)
	first := createWorkshop(t, store, "Resin basics", 3)
	second := createWorkshop(t, store, "Bookbinding", 3)

	var g errgroup.Group
	for _, id := range []int64{first.ID, second.ID} {
		id := id
		g.Go(func() error {
			o, err := e.Enroll(context.Background(), model.EnrollRequest{WorkshopID: id, Email: "ana@test.com"})
			if err == nil && !o.IsCreated() {
				return fmt.Errorf("workshop %d: %s", id, o.Message)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, countRows(t, pool, "contacts"))
	assert.Equal(t, 2, countRows(t, pool, "enrollments"))
	assert.Equal(t, 2, seats(t, store, first.ID))
	assert.Equal(t, 2, seats(t, store, second.ID))
}

func TestPostgresLockTimeoutFailsAttempt(t *testing.T) {
	store, pool := setupPostgres(t)
	ctx := context.Background()
	w := createWorkshop(t, store, "Resin basics", 3)

	holder, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer holder.Rollback(ctx)
	_, err = holder.Exec(ctx, `SELECT id FROM workshops WHERE id = $1 FOR UPDATE`, w.ID)
	require.NoError(t, err)

	impatient, err := repository.NewPostgresStore(newTestPool(t, 200*time.Millisecond))
	require.NoError(t, err)
	o, err := NewEngine(impatient, nil).Enroll(ctx, model.EnrollRequest{WorkshopID: w.ID, Email: "ana@test.com"})
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFailed, o.Kind)
	assert.Contains(t, o.Detail, repository.ErrLockTimeout.Error())

	require.NoError(t, holder.Rollback(ctx))
	assert.Equal(t, 3, seats(t, store, w.ID))
	assert.Zero(t, countRows(t, pool, "contacts"))
	assert.Zero(t, countRows(t, pool, "enrollments"))
}
