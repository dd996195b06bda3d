// Package memory implements repository.Store in process.
//
// Writes are buffered per transaction and applied atomically on commit, so a
// rolled back transaction leaves nothing behind. Row locks are emulated with
// one-slot channels held until the transaction ends; waiting longer than the
// configured timeout fails with repository.ErrLockTimeout.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/model"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/repository"
)

const defaultLockTimeout = 5 * time.Second

type pair struct {
	contactID, workshopID int64
}

// Store is an in-memory repository.Store.
type Store struct {
	lockTimeout time.Duration

	mu        sync.Mutex
	seq       int64
	locks     map[string]chan struct{}
	workshops map[int64]model.Workshop
	interests map[int64]model.Interest
	// interestNames enforces unique interest names.
	interestNames    map[string]int64
	contacts         map[int64]model.Contact
	contactEmails    map[string]int64
	contactInterests map[int64]map[int64]struct{}
	enrollments      map[int64]model.Enrollment
	pairs            map[pair]int64
	organizations    map[int64]model.Organization
	// orgNames and orgTaxIDs enforce unique legal names and tax IDs.
	orgNames  map[string]int64
	orgTaxIDs map[string]int64
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long a transaction waits for a row lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		lockTimeout:      defaultLockTimeout,
		locks:            make(map[string]chan struct{}),
		workshops:        make(map[int64]model.Workshop),
		interests:        make(map[int64]model.Interest),
		interestNames:    make(map[string]int64),
		contacts:         make(map[int64]model.Contact),
		contactEmails:    make(map[string]int64),
		contactInterests: make(map[int64]map[int64]struct{}),
		enrollments:      make(map[int64]model.Enrollment),
		pairs:            make(map[pair]int64),
		organizations:    make(map[int64]model.Organization),
		orgNames:         make(map[string]int64),
		orgTaxIDs:        make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ repository.Store = (*Store)(nil)

// WithinTx runs fn in a transaction that commits when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	t := s.begin()
	defer t.release()

	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.commit()
}

// Catalog, Directory and Ledger give autocommit access: every call runs in
// its own transaction.
func (s *Store) Catalog() repository.Catalog     { return &catalog{auto: s} }
func (s *Store) Directory() repository.Directory { return &directory{auto: s} }
func (s *Store) Ledger() repository.Ledger       { return &ledger{auto: s} }

// autocommit runs fn in a short transaction.
func (s *Store) autocommit(fn func(t *tx) error) error {
	t := s.begin()
	defer t.release()
	if err := fn(t); err != nil {
		return err
	}
	return t.commit()
}

func (s *Store) nextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// lockChan returns the lock slot for key, creating it on first use.
func (s *Store) lockChan(key string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	return ch
}

func workshopKey(id int64) string   { return fmt.Sprintf("workshop:%d", id) }
func enrollmentKey(id int64) string { return fmt.Sprintf("enrollment:%d", id) }
func emailKey(email string) string  { return "contact-email:" + email }

// SeedWorkshop stores a workshop as is, bypassing Create. Tests use it to
// set up counters, including invalid ones.
func (s *Store) SeedWorkshop(w model.Workshop) model.Workshop {
	if w.ID == 0 {
		w.ID = s.nextID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID > s.seq {
		s.seq = w.ID
	}
	s.workshops[w.ID] = w
	return w
}

// Counts reports the number of committed contacts and enrollments.
func (s *Store) Counts() (contacts, enrollments int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contacts), len(s.enrollments)
}
