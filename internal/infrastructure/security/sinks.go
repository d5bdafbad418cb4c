// Package security holds the destinations security events are written to.
package security

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/ports"
)

// LogSink writes events to the structured log, failures at WARN.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "security").Logger()}
}

func (s *LogSink) Record(_ context.Context, ev domain.SecurityEvent) error {
	e := s.log.Info()
	if ev.Type.Failure() {
		e = s.log.Warn()
	}
	e = e.Str("event", string(ev.Type)).Time("occurred_at", ev.Timestamp)
	if ev.SessionRef != "" {
		e = e.Str("session_ref", ev.SessionRef)
	}
	if ev.UserID != "" {
		e = e.Str("user_id", ev.UserID)
	}
	if ev.Username != "" {
		e = e.Str("username", ev.Username)
	}
	if len(ev.Context) > 0 {
		e = e.Fields(ev.Context)
	}
	e.Msg("security event")
	return nil
}

// MetricsSink counts events on a counter labelled by type and outcome.
type MetricsSink struct {
	counter *prometheus.CounterVec
}

func NewMetricsSink(counter *prometheus.CounterVec) *MetricsSink {
	return &MetricsSink{counter: counter}
}

func (s *MetricsSink) Record(_ context.Context, ev domain.SecurityEvent) error {
	outcome := "success"
	if ev.Type.Failure() {
		outcome = "failure"
	}
	s.counter.WithLabelValues(string(ev.Type), outcome).Inc()
	return nil
}

// StoreSink appends events to a record store collection.
type StoreSink struct {
	store      ports.RecordStore
	collection string
}

func NewStoreSink(store ports.RecordStore) *StoreSink {
	return &StoreSink{store: store, collection: domain.CollectionSecurityEvents}
}

type storedEvent struct {
	ID                   string `bson:"_id"`
	domain.SecurityEvent `bson:",inline"`
}

func (s *StoreSink) Record(ctx context.Context, ev domain.SecurityEvent) error {
	if err := s.store.InsertOne(ctx, s.collection, storedEvent{ID: uuid.NewString(), SecurityEvent: ev}); err != nil {
		return fmt.Errorf("store security event: %w", err)
	}
	return nil
}
