package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"business-inventory/internal/alert"
	"business-inventory/internal/common/logger"
	"business-inventory/internal/devicestate"
	"business-inventory/internal/models"
	"business-inventory/internal/repository"
)

// ==========================
// Test Helper Functions
// ==========================

var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// callLog records remote calls in order across all fakes.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeBusinesses struct {
	log       *callLog
	rows      []models.BusinessRow
	listErr   error
	insertErr error
	updateErr error
	deleteErr error
	block     bool
}

func (f *fakeBusinesses) List(ctx context.Context) ([]models.BusinessRow, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.rows, f.listErr
}

func (f *fakeBusinesses) Insert(ctx context.Context, row models.BusinessRow) (models.BusinessRow, error) {
	f.log.add("insert business %s", row.Name)
	if f.insertErr != nil {
		return models.BusinessRow{}, f.insertErr
	}
	row.CreatedAt = baseTime
	return row, nil
}

func (f *fakeBusinesses) Update(ctx context.Context, id string, cols map[string]interface{}) (models.BusinessRow, error) {
	f.log.add("update business %s", id)
	if f.updateErr != nil {
		return models.BusinessRow{}, f.updateErr
	}
	for _, r := range f.rows {
		if r.ID != id {
			continue
		}
		if v, ok := cols["name"]; ok {
			r.Name = v.(string)
		}
		if v, ok := cols["description"]; ok {
			r.Description = v.(string)
		}
		return r, nil
	}
	return models.BusinessRow{}, repository.ErrNoRows
}

func (f *fakeBusinesses) Delete(ctx context.Context, id string) error {
	f.log.add("delete business %s", id)
	return f.deleteErr
}

type fakeProducts struct {
	log            *callLog
	rows           []models.ProductRow
	listErr        error
	insertErr      error
	updateErr      error
	deleteErr      error
	deleteByBizErr error
	block          bool
	// listing is closed when List is entered; List then waits for release.
	listing   chan struct{}
	release   chan struct{}
	updatedAt time.Time
}

func (f *fakeProducts) List(ctx context.Context) ([]models.ProductRow, error) {
	if f.listing != nil {
		close(f.listing)
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.rows, f.listErr
}

func (f *fakeProducts) Insert(ctx context.Context, row models.ProductRow) (models.ProductRow, error) {
	f.log.add("insert product %s", row.Name)
	if f.insertErr != nil {
		return models.ProductRow{}, f.insertErr
	}
	row.CreatedAt = baseTime
	return row, nil
}

func (f *fakeProducts) Update(ctx context.Context, id string, cols map[string]interface{}) (models.ProductRow, error) {
	f.log.add("update product %s", id)
	if f.updateErr != nil {
		return models.ProductRow{}, f.updateErr
	}
	for _, r := range f.rows {
		if r.ID != id {
			continue
		}
		if v, ok := cols["status"]; ok {
			r.Status = v.(string)
		}
		if v, ok := cols["name"]; ok {
			r.Name = v.(string)
		}
		if v, ok := cols["posted_to_marketplace"]; ok {
			posted := v.(bool)
			r.PostedToMarketplace = &posted
		}
		if !f.updatedAt.IsZero() {
			r.UpdatedAt = f.updatedAt
		}
		return r, nil
	}
	return models.ProductRow{}, repository.ErrNoRows
}

func (f *fakeProducts) Delete(ctx context.Context, id string) error {
	f.log.add("delete product %s", id)
	return f.deleteErr
}

func (f *fakeProducts) DeleteByBusiness(ctx context.Context, businessID string) (int64, error) {
	f.log.add("delete products of %s", businessID)
	return 0, f.deleteByBizErr
}

type fakeNotifications struct {
	log     *callLog
	rows    []models.NotificationRow
	listErr error
	err     error
}

func (f *fakeNotifications) List(ctx context.Context, limit int) ([]models.NotificationRow, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.rows) > limit {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func (f *fakeNotifications) MarkRead(ctx context.Context, id string) error {
	f.log.add("mark read %s", id)
	return f.err
}

func (f *fakeNotifications) MarkAllRead(ctx context.Context) error {
	f.log.add("mark all read")
	return f.err
}

func (f *fakeNotifications) Delete(ctx context.Context, id string) error {
	f.log.add("delete notification %s", id)
	return f.err
}

func (f *fakeNotifications) DeleteAll(ctx context.Context) error {
	f.log.add("delete all notifications")
	return f.err
}

type fakeImages struct {
	log *callLog
}

func (f *fakeImages) Delete(ctx context.Context, url string) {
	f.log.add("release image %s", url)
}

type harness struct {
	store         *Store
	log           *callLog
	businesses    *fakeBusinesses
	products      *fakeProducts
	notifications *fakeNotifications
	alerts        *alert.Memory
	device        *devicestate.Store
	redis         *miniredis.Miniredis
	changes       *[]Change
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := &callLog{}
	h := &harness{
		log:           log,
		businesses:    &fakeBusinesses{log: log},
		products:      &fakeProducts{log: log},
		notifications: &fakeNotifications{log: log},
		alerts:        alert.NewMemory(0),
		device:        devicestate.New(rdb, "test-device"),
		redis:         mr,
		changes:       &[]Change{},
	}
	h.store = New(Deps{
		Businesses:    h.businesses,
		Products:      h.products,
		Notifications: h.notifications,
		Images:        &fakeImages{log: log},
		Device:        h.device,
		Alerts:        h.alerts,
		Logger:        logger.NewTestLogger(t),
	}, Options{LoadTimeout: time.Second})

	seq := 0
	h.store.newID = func() string {
		seq++
		return fmt.Sprintf("new-%d", seq)
	}
	var mu sync.Mutex
	h.store.Subscribe(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		*h.changes = append(*h.changes, c)
	})
	return h
}

// load seeds the fakes and runs a bulk load.
func (h *harness) load(t *testing.T, businesses []models.BusinessRow, products []models.ProductRow, notifications []models.NotificationRow) {
	t.Helper()
	h.businesses.rows = businesses
	h.products.rows = products
	h.notifications.rows = notifications
	h.store.Load(context.Background())
	*h.changes = nil
}

func (h *harness) lastAlert(t *testing.T) alert.Alert {
	t.Helper()
	a, ok := h.alerts.Last()
	require.True(t, ok, "expected an alert")
	return a
}

func businessRow(id, name string, age time.Duration) models.BusinessRow {
	return models.BusinessRow{ID: id, Name: name, CreatedAt: baseTime.Add(-age)}
}

func productRow(id, businessID, name string, status models.ProductStatus, age time.Duration) models.ProductRow {
	return models.ProductRow{
		ID:         id,
		BusinessID: businessID,
		Name:       name,
		Price:      10,
		Category:   "Otros",
		Status:     string(status),
		CreatedAt:  baseTime.Add(-age),
	}
}

func notificationRow(id, title string, read bool) models.NotificationRow {
	return models.NotificationRow{
		ID:        id,
		Type:      string(models.NotificationProductAdded),
		Title:     title,
		Message:   title,
		Read:      read,
		CreatedAt: baseTime,
	}
}

func productIDs(products []models.Product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}
