package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/model"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	channel string
	payload []byte
	err     error
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *goredis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return goredis.NewIntResult(1, f.err)
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisPublisherEncodesEvent(t *testing.T) {
	rdb := &fakeRedis{}
	p := newRedisPublisher(rdb, "", nil)

	e := &model.Enrollment{ID: 9, Reference: uuid.New(), ContactID: 3, WorkshopID: 1}
	ev := EnrollmentCreated(e, &model.Contact{ID: 3, Email: "ana@test.com"})
	require.NoError(t, p.Publish(context.Background(), ev))

	assert.Equal(t, "enrollments", rdb.channel)
	var got Event
	require.NoError(t, json.Unmarshal(rdb.payload, &got))
	assert.Equal(t, TypeEnrollmentCreated, got.Type)
	assert.Equal(t, e.Reference, got.Reference)
	assert.Equal(t, int64(9), got.EnrollmentID)
	assert.Equal(t, "ana@test.com", got.ContactEmail)
	assert.NotEqual(t, uuid.Nil, got.ID)
}

func TestRedisPublisherWrapsError(t *testing.T) {
	down := errors.New("connection refused")
	p := newRedisPublisher(&fakeRedis{err: down}, "bookings", nil)

	err := p.Publish(context.Background(), Event{Type: TypeEnrollmentCreated})
	assert.ErrorIs(t, err, down)
}

func TestNewRedisPublisherRequiresAddr(t *testing.T) {
	_, err := NewRedisPublisher(context.Background(), "", "x", nil)
	assert.Error(t, err)
}
