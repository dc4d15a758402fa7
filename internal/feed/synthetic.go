// Package feed builds the notification feed: synthetic notifications derived from the
// active business plus the server notifications, with per-device viewed state.
package feed

import (
	"fmt"
	"time"

	"business-inventory/internal/models"
)

// Synthetic notification ids. They are stable so the viewed set can refer to them.
const (
	IDRecentProducts = "recent-products"
	IDSoldProducts   = "sold-products"
	IDNotPosted      = "not-posted"
	IDNoProducts     = "no-products"
)

const recentWindow = 7 * 24 * time.Hour

type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
)

// Item is one entry of the feed. Synthetic items carry no timestamp.
type Item struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Link      string     `json:"link,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	Synthetic bool       `json:"synthetic"`
	Read      bool       `json:"read"`
}

type counts struct {
	total     int
	recent    int
	sold      int
	notPosted int
}

func countFor(businessID string, products []models.Product, now time.Time) counts {
	var c counts
	for _, p := range products {
		if p.BusinessID != businessID {
			continue
		}
		c.total++
		if now.Sub(p.CreatedAt) <= recentWindow {
			c.recent++
		}
		switch p.Status {
		case models.StatusSold:
			c.sold++
		case models.StatusAvailable:
			if !p.PostedToMarketplace {
				c.notPosted++
			}
		}
	}
	return c
}

// Synthesize derives the synthetic notifications for the active business from products.
// It returns nothing without an active business.
func Synthesize(active *models.Business, products []models.Product, now time.Time) []Item {
	if active == nil {
		return nil
	}
	c := countFor(active.ID, products, now)

	var items []Item
	if c.recent > 0 {
		items = append(items, Item{
			ID:        IDRecentProducts,
			Kind:      KindInfo,
			Title:     "Productos recientes",
			Message:   fmt.Sprintf("%d %s %s esta semana", c.recent, plural(c.recent, "producto"), plural(c.recent, "agregado")),
			Link:      "/products",
			Synthetic: true,
		})
	}
	if c.sold > 0 {
		items = append(items, Item{
			ID:        IDSoldProducts,
			Kind:      KindSuccess,
			Title:     "Productos vendidos",
			Message:   fmt.Sprintf("%d %s %s como %s", c.sold, plural(c.sold, "producto"), plural(c.sold, "marcado"), plural(c.sold, "vendido")),
			Link:      "/products",
			Synthetic: true,
		})
	}
	if c.notPosted > 0 {
		items = append(items, Item{
			ID:        IDNotPosted,
			Kind:      KindWarning,
			Title:     "Pendientes de publicar",
			Message:   fmt.Sprintf("%d %s %s sin publicar en Marketplace", c.notPosted, plural(c.notPosted, "producto"), plural(c.notPosted, "disponible")),
			Link:      "/products",
			Synthetic: true,
		})
	}
	if c.total == 0 {
		items = append(items, Item{
			ID:        IDNoProducts,
			Kind:      KindInfo,
			Title:     "Sin productos",
			Message:   "Comienza agregando tu primer producto",
			Link:      "/products/new",
			Synthetic: true,
		})
	}
	return items
}

// Fingerprint summarises the inputs of the synthetic notifications. A change means
// previously dismissed synthetic entries should show again.
func Fingerprint(active *models.Business, products []models.Product, now time.Time) string {
	if active == nil {
		return ""
	}
	c := countFor(active.ID, products, now)
	return fmt.Sprintf("%s-recent:%d-sold:%d", active.ID, c.recent, c.sold)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func fromNotification(n models.Notification) Item {
	kind := KindInfo
	if n.Type == models.NotificationProductSold {
		kind = KindSuccess
	}
	created := n.CreatedAt
	return Item{
		ID:        n.ID,
		Kind:      kind,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		CreatedAt: &created,
		Read:      n.Read,
	}
}
