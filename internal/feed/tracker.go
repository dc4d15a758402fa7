package feed

import (
	"context"
	"sort"
	"time"

	"business-inventory/internal/common/logger"
	"business-inventory/internal/models"
)

// Source is the read side of the entity cache.
type Source interface {
	ActiveBusiness() (models.Business, bool)
	Products() []models.Product
	Notifications() []models.Notification
}

// ViewedState is the device-local record of what this device has seen.
type ViewedState interface {
	ViewedNotifications(ctx context.Context) (map[string]struct{}, error)
	ViewedStatic(ctx context.Context) (map[string]struct{}, error)
	MarkViewed(ctx context.Context, notificationIDs, staticIDs []string) error
	StaticHash(ctx context.Context) (string, bool, error)
	ReplaceStaticHash(ctx context.Context, hash string, clearViewed bool) error
}

// Tracker combines synthetic and server notifications with this device's viewed sets.
// The device viewed set is independent of the server read flag.
type Tracker struct {
	src   Source
	state ViewedState
	log   logger.Logger
	now   func() time.Time
}

func NewTracker(src Source, state ViewedState, log logger.Logger) *Tracker {
	return &Tracker{
		src:   src,
		state: state,
		log:   log.WithFields(map[string]interface{}{"component": "feed"}),
		now:   time.Now,
	}
}

func (t *Tracker) synthetic() []Item {
	var active *models.Business
	if b, ok := t.src.ActiveBusiness(); ok {
		active = &b
	}
	return Synthesize(active, t.src.Products(), t.now())
}

// Refresh stores the current fingerprint. When a stored fingerprint differs, the synthetic
// viewed set is cleared so dismissed entries show again. The first run clears nothing.
func (t *Tracker) Refresh(ctx context.Context) error {
	var active *models.Business
	if b, ok := t.src.ActiveBusiness(); ok {
		active = &b
	}
	fp := Fingerprint(active, t.src.Products(), t.now())

	stored, ok, err := t.state.StaticHash(ctx)
	if err != nil {
		return err
	}
	if ok && stored == fp {
		return nil
	}
	reset := ok && stored != ""
	if err := t.state.ReplaceStaticHash(ctx, fp, reset); err != nil {
		return err
	}
	if reset {
		t.log.Debug("synthetic notifications reset", map[string]interface{}{
			"previous": stored,
			"current":  fp,
		})
	}
	return nil
}

// Feed lists synthetic items not yet viewed on this device followed by the server
// notifications. Timestamped entries come first, newest first; synthetic entries keep
// their generation order. no-products is shown whenever it applies.
func (t *Tracker) Feed(ctx context.Context) ([]Item, error) {
	viewed, err := t.state.ViewedStatic(ctx)
	if err != nil {
		return nil, err
	}

	items := []Item{}
	for _, n := range t.src.Notifications() {
		items = append(items, fromNotification(n))
	}
	for _, it := range t.synthetic() {
		if _, seen := viewed[it.ID]; seen && it.ID != IDNoProducts {
			continue
		}
		items = append(items, it)
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].CreatedAt, items[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
	return items, nil
}

// UnreadCount counts server notifications this device has not viewed yet.
func (t *Tracker) UnreadCount(ctx context.Context) (int, error) {
	viewed, err := t.state.ViewedNotifications(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, notif := range t.src.Notifications() {
		if _, seen := viewed[notif.ID]; !seen {
			n++
		}
	}
	return n, nil
}

// OpenPanel marks everything currently listed as viewed on this device, except
// no-products. The server read flag is not touched.
func (t *Tracker) OpenPanel(ctx context.Context) error {
	items, err := t.Feed(ctx)
	if err != nil {
		return err
	}
	var staticIDs, notificationIDs []string
	for _, it := range items {
		switch {
		case !it.Synthetic:
			notificationIDs = append(notificationIDs, it.ID)
		case it.ID != IDNoProducts:
			staticIDs = append(staticIDs, it.ID)
		}
	}
	return t.state.MarkViewed(ctx, notificationIDs, staticIDs)
}
