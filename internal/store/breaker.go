package store

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/charlesng35/swdash/internal/monitoring"
	"github.com/charlesng35/swdash/internal/snapshot"
	"github.com/charlesng35/swdash/pkg/logger"
)

const (
	defaultBreakerName      = "store"
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second
	defaultBreakerInterval  = time.Minute
	defaultHalfOpenRequests = 1
)

// BreakerConfig tunes the circuit breaker placed in front of a Gateway.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
	Interval         time.Duration
	MaxRequests      uint32
}

// BreakerGateway fails store calls fast once the store has failed
// FailureThreshold times in a row, until OpenTimeout has passed.
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreakerGateway decorates next with a circuit breaker.
func NewBreakerGateway(next Gateway, cfg BreakerConfig) *BreakerGateway {
	if cfg.Name == "" {
		cfg.Name = defaultBreakerName
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaultOpenTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultBreakerInterval
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = defaultHalfOpenRequests
	}

	log := logger.WithModule("store")
	threshold := cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Caller cancellation says nothing about store health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("store circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			monitoring.SetBreakerState(name, to.String())
		},
	}

	return &BreakerGateway{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State reports the breaker state ("closed", "half-open" or "open").
func (b *BreakerGateway) State() string {
	return b.cb.State().String()
}

func (b *BreakerGateway) ListTables(ctx context.Context) ([]string, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.ListTables(ctx)
	})
	if err != nil {
		return nil, b.wrap("list tables", "", err)
	}
	return out.([]string), nil
}

func (b *BreakerGateway) Columns(ctx context.Context, table string) ([]string, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.Columns(ctx, table)
	})
	if err != nil {
		return nil, b.wrap("columns", table, err)
	}
	return out.([]string), nil
}

func (b *BreakerGateway) Query(ctx context.Context, table string, rowCap int) (*snapshot.Snapshot, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.Query(ctx, table, rowCap)
	})
	if err != nil {
		return nil, b.wrap("query", table, err)
	}
	return out.(*snapshot.Snapshot), nil
}

func (b *BreakerGateway) QuerySince(ctx context.Context, table, column string, since time.Time) (*snapshot.Snapshot, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.QuerySince(ctx, table, column, since)
	})
	if err != nil {
		return nil, b.wrap("query since", table, err)
	}
	return out.(*snapshot.Snapshot), nil
}

// wrap turns breaker rejections into QueryErrors and passes store errors through.
func (b *BreakerGateway) wrap(op, table string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &QueryError{Op: op, Table: table, Err: err}
	}
	return err
}

var _ Gateway = (*BreakerGateway)(nil)
