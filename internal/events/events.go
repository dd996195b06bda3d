// Package events announces committed enrollments to other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/logger"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/model"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const TypeEnrollmentCreated = "enrollment.created"

// Event is the JSON envelope published on the channel.
type Event struct {
	ID           uuid.UUID `json:"id"`
	Type         string    `json:"type"`
	OccurredAt   time.Time `json:"occurred_at"`
	EnrollmentID int64     `json:"enrollment_id"`
	Reference    uuid.UUID `json:"reference"`
	WorkshopID   int64     `json:"workshop_id"`
	ContactID    int64     `json:"contact_id"`
	ContactEmail string    `json:"contact_email"`
}

// EnrollmentCreated builds the event for a committed enrollment.
func EnrollmentCreated(e *model.Enrollment, c *model.Contact) Event {
	ev := Event{
		ID:           uuid.New(),
		Type:         TypeEnrollmentCreated,
		OccurredAt:   time.Now().UTC(),
		EnrollmentID: e.ID,
		Reference:    e.Reference,
		WorkshopID:   e.WorkshopID,
		ContactID:    e.ContactID,
	}
	if c != nil {
		ev.ContactEmail = c.Email
	}
	return ev
}

// Publisher delivers events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

// Nop returns a publisher that drops every event.
func Nop() Publisher { return nopPublisher{} }

// redisClient is the subset of *goredis.Client the publisher needs.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
	Close() error
}

// RedisPublisher publishes events on a Redis pub/sub channel.
type RedisPublisher struct {
	log     *logger.Logger
	rdb     redisClient
	channel string
}

// NewRedisPublisher connects to addr and checks the connection with a ping.
func NewRedisPublisher(ctx context.Context, addr, channel string, log *logger.Logger) (*RedisPublisher, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisPublisher(rdb, channel, log), nil
}

func newRedisPublisher(rdb redisClient, channel string, log *logger.Logger) *RedisPublisher {
	if channel == "" {
		channel = "enrollments"
	}
	return &RedisPublisher{
		log:     logger.OrNop(log).With("component", "RedisPublisher"),
		rdb:     rdb,
		channel: channel,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	p.log.Debug("event published", "type", ev.Type, "event_id", ev.ID, "channel", p.channel)
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
