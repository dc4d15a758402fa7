package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "business-inventory/internal/common/errors"
	"business-inventory/internal/common/metrics"
	"business-inventory/internal/models"
)

type Kind string

const (
	KindInserted Kind = "inserted"
	KindUpdated  Kind = "updated"
	KindDeleted  Kind = "deleted"
	KindReset    Kind = "reset"
)

type Source string

const (
	SourceLoad   Source = "load"
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

const (
	// TableAll marks a full reload of every collection.
	TableAll models.Table = "*"
	// TableActive marks a change of the active business; ID is the new id or "".
	TableActive models.Table = "active_business"
)

// Change describes one visible modification of the cache.
type Change struct {
	Table  models.Table `json:"table"`
	Kind   Kind         `json:"kind"`
	ID     string       `json:"id"`
	Source Source       `json:"source"`
}

// Apply merges a realtime push event into the cache. Malformed events are rejected with
// an INVALID_EVENT error and leave the cache untouched.
func (s *Store) Apply(ctx context.Context, ev models.ChangeEvent) error {
	var (
		changes []Change
		applied bool
	)

	switch ev.Table {
	case models.TableBusinesses:
		var rec models.Business
		id, err := decodeEvent(ev, func(raw json.RawMessage) (string, error) {
			var row models.BusinessRow
			if err := json.Unmarshal(raw, &row); err != nil {
				return "", err
			}
			rec = models.BusinessFromRow(row)
			return row.ID, nil
		})
		if err != nil {
			return err
		}
		changes, applied = s.commit(func() ([]Change, bool) {
			return s.mergeBusinessLocked(ev.EventType, id, rec, SourceRemote)
		})

	case models.TableProducts:
		var rec models.Product
		id, err := decodeEvent(ev, func(raw json.RawMessage) (string, error) {
			var row models.ProductRow
			if err := json.Unmarshal(raw, &row); err != nil {
				return "", err
			}
			rec = models.ProductFromRow(row)
			return row.ID, nil
		})
		if err != nil {
			return err
		}
		changes, applied = s.commit(func() ([]Change, bool) {
			return s.mergeProductLocked(ev.EventType, id, rec, SourceRemote)
		})

	case models.TableNotifications:
		var rec models.Notification
		id, err := decodeEvent(ev, func(raw json.RawMessage) (string, error) {
			var row models.NotificationRow
			if err := json.Unmarshal(raw, &row); err != nil {
				return "", err
			}
			rec = models.NotificationFromRow(row)
			return row.ID, nil
		})
		if err != nil {
			return err
		}
		changes, applied = s.commit(func() ([]Change, bool) {
			return s.mergeNotificationLocked(ev.EventType, id, rec, SourceRemote)
		})

	default:
		return apperrors.NewInvalidEventError(fmt.Sprintf("unknown table %q", ev.Table))
	}

	if !applied {
		metrics.StoreEventsAbsorbed.WithLabelValues(string(ev.Table), string(kindFor(ev.EventType)), string(SourceRemote)).Inc()
		s.log.Debug("change event absorbed", map[string]interface{}{
			"table":     ev.Table,
			"eventType": ev.EventType,
		})
		return nil
	}
	s.afterMerge(ctx, changes)
	return nil
}

func decodeEvent(ev models.ChangeEvent, decodeNew func(json.RawMessage) (string, error)) (string, error) {
	switch ev.EventType {
	case models.EventInsert, models.EventUpdate:
		if len(ev.New) == 0 {
			return "", apperrors.NewInvalidEventError("missing new record")
		}
		id, err := decodeNew(ev.New)
		if err != nil {
			return "", apperrors.NewInvalidEventError(err.Error())
		}
		if id == "" {
			return "", apperrors.NewInvalidEventError("record without id")
		}
		return id, nil
	case models.EventDelete:
		if len(ev.Old) == 0 {
			return "", apperrors.NewInvalidEventError("missing old record")
		}
		id, err := ev.OldID()
		if err != nil {
			return "", apperrors.NewInvalidEventError(err.Error())
		}
		if id == "" {
			return "", apperrors.NewInvalidEventError("record without id")
		}
		return id, nil
	}
	return "", apperrors.NewInvalidEventError(fmt.Sprintf("unknown event type %q", ev.EventType))
}

// mergeBusinessLocked is the single upsert/remove routine for businesses. The caller
// holds s.mu. It reports false when the cache is unchanged.
func (s *Store) mergeBusinessLocked(kind models.EventType, id string, rec models.Business, src Source) ([]Change, bool) {
	switch kind {
	case models.EventInsert:
		out, ok := prependIfAbsent(s.businesses, rec, businessID)
		if !ok {
			return nil, false
		}
		s.businesses = out
		return []Change{{Table: models.TableBusinesses, Kind: KindInserted, ID: id, Source: src}}, true

	case models.EventUpdate:
		out, ok := replaceIfChanged(s.businesses, rec, businessID, absorbsBusiness)
		if !ok {
			return nil, false
		}
		s.businesses = out
		return []Change{{Table: models.TableBusinesses, Kind: KindUpdated, ID: id, Source: src}}, true

	case models.EventDelete:
		out, ok := removeByID(s.businesses, id, businessID)
		if !ok {
			return nil, false
		}
		s.businesses = out
		changes := []Change{{Table: models.TableBusinesses, Kind: KindDeleted, ID: id, Source: src}}
		if s.activeID == id {
			s.activeID = firstBusinessID(s.businesses)
			changes = append(changes, Change{Table: TableActive, Kind: KindUpdated, ID: s.activeID, Source: src})
		}
		return changes, true
	}
	return nil, false
}

func (s *Store) mergeProductLocked(kind models.EventType, id string, rec models.Product, src Source) ([]Change, bool) {
	var (
		out []models.Product
		ok  bool
		k   Kind
	)
	switch kind {
	case models.EventInsert:
		out, ok = prependIfAbsent(s.products, rec, productID)
		k = KindInserted
	case models.EventUpdate:
		out, ok = replaceIfChanged(s.products, rec, productID, absorbsProduct)
		k = KindUpdated
	case models.EventDelete:
		out, ok = removeByID(s.products, id, productID)
		k = KindDeleted
	}
	if !ok {
		return nil, false
	}
	s.products = out
	return []Change{{Table: models.TableProducts, Kind: k, ID: id, Source: src}}, true
}

// mergeNotificationLocked prepends inserts and caps the collection. An UPDATE only
// mirrors the read flag.
func (s *Store) mergeNotificationLocked(kind models.EventType, id string, rec models.Notification, src Source) ([]Change, bool) {
	switch kind {
	case models.EventInsert:
		out, ok := prependIfAbsent(s.notifications, rec, notificationID)
		if !ok {
			return nil, false
		}
		if len(out) > s.opts.NotificationLimit {
			out = out[:s.opts.NotificationLimit]
		}
		s.notifications = out
		return []Change{{Table: models.TableNotifications, Kind: KindInserted, ID: id, Source: src}}, true

	case models.EventUpdate:
		if !s.setReadLocked(id, rec.Read) {
			return nil, false
		}
		return []Change{{Table: models.TableNotifications, Kind: KindUpdated, ID: id, Source: src}}, true

	case models.EventDelete:
		out, ok := removeByID(s.notifications, id, notificationID)
		if !ok {
			return nil, false
		}
		s.notifications = out
		return []Change{{Table: models.TableNotifications, Kind: KindDeleted, ID: id, Source: src}}, true
	}
	return nil, false
}

func (s *Store) setReadLocked(id string, read bool) bool {
	for i := range s.notifications {
		if s.notifications[i].ID != id {
			continue
		}
		if s.notifications[i].Read == read {
			return false
		}
		s.notifications[i].Read = read
		return true
	}
	return false
}

// commit runs merge under the write lock. While a Load is in flight the merge is also
// journaled so it can be replayed onto the fresh snapshot.
func (s *Store) commit(merge func() ([]Change, bool)) ([]Change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		s.journal = append(s.journal, merge)
	}
	return merge()
}

// transition runs fn under the write lock and then publishes whatever it changed.
func (s *Store) transition(ctx context.Context, fn func() []Change) {
	changes, _ := s.commit(func() ([]Change, bool) {
		changes := fn()
		return changes, len(changes) > 0
	})
	if len(changes) > 0 {
		s.afterMerge(ctx, changes)
	}
}

// afterMerge runs the side effects of a committed merge outside the lock.
func (s *Store) afterMerge(ctx context.Context, changes []Change) {
	for _, c := range changes {
		switch c.Table {
		case TableAll:
		case TableActive:
			s.persistActive(ctx, c.ID)
		default:
			metrics.StoreEventsApplied.WithLabelValues(string(c.Table), string(c.Kind), string(c.Source)).Inc()
		}
		if c.Table == models.TableNotifications && c.Kind == KindInserted && c.Source == SourceRemote {
			s.announce(c.ID)
		}
	}
	s.updateGauges()

	s.observersMu.RLock()
	observers := make([]func(Change), len(s.observers))
	copy(observers, s.observers)
	s.observersMu.RUnlock()
	for _, c := range changes {
		for _, fn := range observers {
			fn(c)
		}
	}
}

// announce shows a freshly pushed unread server notification to the user.
func (s *Store) announce(id string) {
	s.mu.RLock()
	var (
		n     models.Notification
		found bool
	)
	for _, cur := range s.notifications {
		if cur.ID == id {
			n, found = cur, true
			break
		}
	}
	s.mu.RUnlock()
	if found && !n.Read {
		s.deps.Alerts.Info(n.Title, n.Message)
	}
}

func (s *Store) persistActive(ctx context.Context, id string) {
	if s.deps.Device == nil {
		return
	}
	var err error
	if id == "" {
		err = s.deps.Device.ClearActiveBusinessID(ctx)
	} else {
		err = s.deps.Device.SetActiveBusinessID(ctx, id)
	}
	if err != nil {
		s.reporter.Log(err, map[string]interface{}{"step": "persist_active", "businessId": id})
	}
}

func kindFor(t models.EventType) Kind {
	switch t {
	case models.EventInsert:
		return KindInserted
	case models.EventUpdate:
		return KindUpdated
	}
	return KindDeleted
}

func businessID(b models.Business) string         { return b.ID }
func productID(p models.Product) string           { return p.ID }
func notificationID(n models.Notification) string { return n.ID }

func firstBusinessID(items []models.Business) string {
	if len(items) == 0 {
		return ""
	}
	return items[0].ID
}

func prependIfAbsent[T any](items []T, rec T, key func(T) string) ([]T, bool) {
	id := key(rec)
	for _, cur := range items {
		if key(cur) == id {
			return items, false
		}
	}
	out := make([]T, 0, len(items)+1)
	out = append(out, rec)
	return append(out, items...), true
}

// replaceIfChanged swaps in rec unless the cached record absorbs it, i.e. rec is equal
// to it or an older version of it.
func replaceIfChanged[T any](items []T, rec T, key func(T) string, absorbs func(cur, next T) bool) ([]T, bool) {
	id := key(rec)
	for i, cur := range items {
		if key(cur) != id {
			continue
		}
		if absorbs(cur, rec) {
			return items, false
		}
		items[i] = rec
		return items, true
	}
	return items, false
}

func removeByID[T any](items []T, id string, key func(T) string) ([]T, bool) {
	for i, cur := range items {
		if key(cur) != id {
			continue
		}
		out := make([]T, 0, len(items)-1)
		out = append(out, items[:i]...)
		return append(out, items[i+1:]...), true
	}
	return items, false
}

// olderVersion reports whether next was written before cur. Records without an
// updated_at (zero time) are never considered stale.
func olderVersion(cur, next time.Time) bool {
	if cur.IsZero() || next.IsZero() {
		return false
	}
	return next.Before(cur)
}

func absorbsBusiness(cur, next models.Business) bool {
	return olderVersion(cur.UpdatedAt, next.UpdatedAt) || sameBusiness(cur, next)
}

func absorbsProduct(cur, next models.Product) bool {
	return olderVersion(cur.UpdatedAt, next.UpdatedAt) || sameProduct(cur, next)
}

func sameBusiness(a, b models.Business) bool {
	return a.ID == b.ID &&
		a.Name == b.Name &&
		a.Logo == b.Logo &&
		a.Description == b.Description &&
		sameTime(a.CreatedAt, b.CreatedAt) &&
		sameTime(a.UpdatedAt, b.UpdatedAt)
}

func sameProduct(a, b models.Product) bool {
	return a.ID == b.ID &&
		a.BusinessID == b.BusinessID &&
		a.Name == b.Name &&
		a.Price == b.Price &&
		a.Category == b.Category &&
		a.Status == b.Status &&
		a.Description == b.Description &&
		a.Image == b.Image &&
		a.PostedToMarketplace == b.PostedToMarketplace &&
		sameTime(a.CreatedAt, b.CreatedAt) &&
		sameTime(a.UpdatedAt, b.UpdatedAt)
}

func sameTime(a, b time.Time) bool {
	return a.Equal(b)
}
