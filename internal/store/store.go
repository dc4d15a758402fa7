// Package store is the in-memory cache of businesses, products and server notifications.
// Bulk load, realtime push events and local writes all go through one merge routine.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"business-inventory/internal/alert"
	apperrors "business-inventory/internal/common/errors"
	"business-inventory/internal/common/logger"
	"business-inventory/internal/common/metrics"
	"business-inventory/internal/common/observability"
	"business-inventory/internal/models"
)

const (
	DefaultLoadTimeout       = 5 * time.Second
	DefaultNotificationLimit = 100
)

type BusinessRepository interface {
	List(ctx context.Context) ([]models.BusinessRow, error)
	Insert(ctx context.Context, row models.BusinessRow) (models.BusinessRow, error)
	Update(ctx context.Context, id string, cols map[string]interface{}) (models.BusinessRow, error)
	Delete(ctx context.Context, id string) error
}

type ProductRepository interface {
	List(ctx context.Context) ([]models.ProductRow, error)
	Insert(ctx context.Context, row models.ProductRow) (models.ProductRow, error)
	Update(ctx context.Context, id string, cols map[string]interface{}) (models.ProductRow, error)
	Delete(ctx context.Context, id string) error
	DeleteByBusiness(ctx context.Context, businessID string) (int64, error)
}

type NotificationRepository interface {
	List(ctx context.Context, limit int) ([]models.NotificationRow, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

// ImageReleaser deletes stored images. It never fails from the caller's point of view.
type ImageReleaser interface {
	Delete(ctx context.Context, publicURL string)
}

// ActivePersister keeps the active business id on this device.
type ActivePersister interface {
	ActiveBusinessID(ctx context.Context) (string, error)
	SetActiveBusinessID(ctx context.Context, id string) error
	ClearActiveBusinessID(ctx context.Context) error
}

type Options struct {
	LoadTimeout       time.Duration
	NotificationLimit int
}

type Deps struct {
	Businesses    BusinessRepository
	Products      ProductRepository
	Notifications NotificationRepository
	Images        ImageReleaser
	Device        ActivePersister
	Alerts        alert.Sink
	Logger        logger.Logger
	Observability *observability.Observability
}

type Store struct {
	mu            sync.RWMutex
	businesses    []models.Business
	products      []models.Product
	notifications []models.Notification
	activeID      string

	// loading is set while Load fetches; merges committed meanwhile are journaled and
	// replayed onto the fetched snapshot.
	loading bool
	journal []func() ([]Change, bool)

	deps     Deps
	opts     Options
	log      logger.Logger
	reporter *apperrors.Reporter
	newID    func() string

	observersMu sync.RWMutex
	observers   []func(Change)
}

func New(deps Deps, opts Options) *Store {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.NotificationLimit <= 0 {
		opts.NotificationLimit = DefaultNotificationLimit
	}
	if deps.Alerts == nil {
		deps.Alerts = alert.NewLogSink(deps.Logger)
	}
	log := deps.Logger.WithFields(map[string]interface{}{"component": "store"})
	return &Store{
		deps:     deps,
		opts:     opts,
		log:      log,
		reporter: apperrors.NewReporter(log, deps.Alerts),
		newID:    newTimeOrderedID,
	}
}

func newTimeOrderedID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Subscribe registers fn to be called after every visible change. fn runs outside the
// store lock and may read from the store.
func (s *Store) Subscribe(fn func(Change)) {
	s.observersMu.Lock()
	s.observers = append(s.observers, fn)
	s.observersMu.Unlock()
}

// Load replaces the cache with the remote collections, fetched concurrently. A collection
// that fails to load is left empty and only logged. Merges committed while the fetch runs
// are replayed onto the new snapshot. The active business is restored last.
//
// Only the fetch is bounded by LoadTimeout; restoring and persisting the active business
// use ctx.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	s.loading = true
	s.journal = nil
	s.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.LoadTimeout)
	defer cancel()

	var (
		businessRows     []models.BusinessRow
		productRows      []models.ProductRow
		notificationRows []models.NotificationRow
	)

	g, gctx := errgroup.WithContext(fetchCtx)
	g.Go(func() error {
		rows, err := s.deps.Businesses.List(gctx)
		if err != nil {
			s.reporter.Log(apperrors.NewRemoteReadFailedError("businesses", err), nil)
			return nil
		}
		businessRows = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.deps.Products.List(gctx)
		if err != nil {
			s.reporter.Log(apperrors.NewRemoteReadFailedError("products", err), nil)
			return nil
		}
		productRows = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.deps.Notifications.List(gctx, s.opts.NotificationLimit)
		if err != nil {
			s.reporter.Log(apperrors.NewRemoteReadFailedError("notifications", err), nil)
			return nil
		}
		notificationRows = rows
		return nil
	})
	_ = g.Wait()

	businesses := make([]models.Business, 0, len(businessRows))
	for _, r := range businessRows {
		businesses = append(businesses, models.BusinessFromRow(r))
	}
	products := make([]models.Product, 0, len(productRows))
	for _, r := range productRows {
		products = append(products, models.ProductFromRow(r))
	}
	notifications := make([]models.Notification, 0, len(notificationRows))
	for _, r := range notificationRows {
		notifications = append(notifications, models.NotificationFromRow(r))
	}
	if len(notifications) > s.opts.NotificationLimit {
		notifications = notifications[:s.opts.NotificationLimit]
	}

	persisted := s.persistedActiveID(ctx)

	s.mu.Lock()
	s.businesses = businesses
	s.products = products
	s.notifications = notifications
	s.activeID = restoreActive(businesses, persisted)
	replayed := len(s.journal)
	for _, merge := range s.journal {
		merge()
	}
	s.loading = false
	s.journal = nil
	businesses, products, notifications = s.businesses, s.products, s.notifications
	activeID := s.activeID
	s.mu.Unlock()

	s.log.Info("cache loaded", map[string]interface{}{
		"businesses":    len(businesses),
		"products":      len(products),
		"notifications": len(notifications),
		"activeId":      activeID,
		"replayed":      replayed,
	})

	changes := []Change{{Table: TableAll, Kind: KindReset, Source: SourceLoad}}
	if activeID != persisted {
		changes = append(changes, Change{Table: TableActive, Kind: KindUpdated, ID: activeID, Source: SourceLoad})
	}
	s.afterMerge(ctx, changes)
}

func (s *Store) persistedActiveID(ctx context.Context) string {
	if s.deps.Device == nil {
		return ""
	}
	id, err := s.deps.Device.ActiveBusinessID(ctx)
	if err != nil {
		s.reporter.Log(err, map[string]interface{}{"step": "restore_active"})
		return ""
	}
	return id
}

func (s *Store) updateGauges() {
	s.mu.RLock()
	b, p, n := len(s.businesses), len(s.products), len(s.notifications)
	s.mu.RUnlock()
	metrics.CachedEntities.WithLabelValues(string(models.TableBusinesses)).Set(float64(b))
	metrics.CachedEntities.WithLabelValues(string(models.TableProducts)).Set(float64(p))
	metrics.CachedEntities.WithLabelValues(string(models.TableNotifications)).Set(float64(n))
}
