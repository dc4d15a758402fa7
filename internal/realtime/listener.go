// Package realtime turns Postgres change notifications into store merges.
package realtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	apperrors "business-inventory/internal/common/errors"
	"business-inventory/internal/common/logger"
	"business-inventory/internal/common/metrics"
	"business-inventory/internal/common/validation"
	"business-inventory/internal/models"
	"business-inventory/internal/repository"
)

// Applier merges a decoded change event. Implemented by the store.
type Applier interface {
	Apply(ctx context.Context, ev models.ChangeEvent) error
}

// RowFetcher reads back a row whose change notification was too large to carry it.
// Implemented by the repository.
type RowFetcher interface {
	FetchRow(ctx context.Context, table, id string) (json.RawMessage, error)
}

// Conn is the subset of *pq.Listener the listener needs.
type Conn interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Close() error
}

type Listener struct {
	conn      Conn
	applier   Applier
	fetcher   RowFetcher
	validator *validation.Validator
	log       logger.Logger
	reporter  *apperrors.Reporter
	channels  map[string]models.Table
}

func New(conn Conn, applier Applier, log logger.Logger) *Listener {
	v := validation.NewValidator()
	channels := make(map[string]models.Table, len(tableSchemas))
	for table, schema := range tableSchemas {
		v.MustRegister(string(table), schema)
		channels[repository.ChangeChannel(string(table))] = table
	}
	log = log.WithFields(map[string]interface{}{"component": "realtime"})
	return &Listener{
		conn:      conn,
		applier:   applier,
		validator: v,
		log:       log,
		reporter:  apperrors.NewReporter(log, nil),
		channels:  channels,
	}
}

// WithFetcher enables id-only notifications; without a fetcher they are rejected.
func (l *Listener) WithFetcher(f RowFetcher) *Listener {
	l.fetcher = f
	return l
}

// Start subscribes to every table channel. On failure the caller keeps serving the
// loaded snapshot without live updates.
func (l *Listener) Start() error {
	for _, table := range repository.Tables {
		channel := repository.ChangeChannel(table)
		if err := l.conn.Listen(channel); err != nil {
			metrics.RealtimeConnected.Set(0)
			return l.reporter.Log(apperrors.NewSubscriptionFailedError(channel, err), map[string]interface{}{
				"mode": "no_live_updates",
			})
		}
	}
	metrics.RealtimeConnected.Set(1)
	l.log.Info("realtime subscribed", map[string]interface{}{"channels": len(repository.Tables)})
	return nil
}

// Run dispatches notifications until ctx is done or the connection is closed.
func (l *Listener) Run(ctx context.Context) {
	ch := l.conn.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				metrics.RealtimeConnected.Set(0)
				l.log.Warn("realtime channel closed", nil)
				return
			}
			if n == nil {
				// pq delivers nil after a reconnect; anything sent meanwhile is lost.
				l.log.Warn("realtime connection re-established, events may have been missed", nil)
				continue
			}
			_ = l.Handle(ctx, n.Channel, []byte(n.Extra))
		}
	}
}

// Handle validates one payload and hands it to the applier. Malformed payloads are
// logged and dropped.
func (l *Listener) Handle(ctx context.Context, channel string, payload []byte) error {
	table, ok := l.channels[channel]
	if !ok {
		return l.reject(channel, apperrors.NewInvalidEventError(fmt.Sprintf("unexpected channel %q", channel)))
	}

	result, err := l.validator.Validate(string(table), payload)
	if err != nil {
		return l.reject(channel, apperrors.NewInvalidEventError(err.Error()))
	}
	if !result.Valid {
		return l.reject(channel, apperrors.NewInvalidEventError(strings.Join(result.GetErrorMessages(), "; ")))
	}

	var ev models.ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return l.reject(channel, apperrors.NewInvalidEventError(err.Error()))
	}
	if ev.Truncated && ev.EventType != models.EventDelete {
		row, err := l.fetchRow(ctx, ev)
		if errors.Is(err, sql.ErrNoRows) {
			// Deleted before we read it; the DELETE event follows.
			l.log.Debug("truncated event row gone", map[string]interface{}{"table": ev.Table, "id": ev.ID})
			return nil
		}
		if err != nil {
			return l.reject(channel, err)
		}
		ev.New = row
	}
	if err := l.applier.Apply(ctx, ev); err != nil {
		return l.reject(channel, err)
	}
	return nil
}

func (l *Listener) fetchRow(ctx context.Context, ev models.ChangeEvent) (json.RawMessage, error) {
	if l.fetcher == nil {
		return nil, apperrors.NewInvalidEventError(fmt.Sprintf("truncated %s event for %s and no row fetcher", ev.EventType, ev.ID))
	}
	return l.fetcher.FetchRow(ctx, string(ev.Table), ev.ID)
}

func (l *Listener) reject(channel string, err error) error {
	metrics.StoreEventsRejected.WithLabelValues(channel).Inc()
	return l.reporter.Log(err, map[string]interface{}{"channel": channel})
}

func (l *Listener) Close() error {
	metrics.RealtimeConnected.Set(0)
	return l.conn.Close()
}

// ConnectionEvents returns a pq listener callback that logs connection state changes.
func ConnectionEvents(log logger.Logger) pq.EventCallbackType {
	log = log.WithFields(map[string]interface{}{"component": "realtime"})
	return func(ev pq.ListenerEventType, err error) {
		fields := map[string]interface{}{"at": time.Now().UTC().Format(time.RFC3339)}
		if err != nil {
			fields["error"] = err.Error()
		}
		switch ev {
		case pq.ListenerEventConnected:
			metrics.RealtimeConnected.Set(1)
			log.Info("realtime connected", fields)
		case pq.ListenerEventDisconnected:
			metrics.RealtimeConnected.Set(0)
			log.Warn("realtime connection lost", fields)
		case pq.ListenerEventReconnected:
			metrics.RealtimeConnected.Set(1)
			log.Info("realtime reconnected", fields)
		case pq.ListenerEventConnectionAttemptFailed:
			log.Warn("realtime reconnect attempt failed", fields)
		}
	}
}
