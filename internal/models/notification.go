// internal/models/notification.go
package models

import "time"

type NotificationType string

const (
	NotificationProductAdded   NotificationType = "product_added"
	NotificationProductUpdated NotificationType = "product_updated"
	NotificationProductSold    NotificationType = "product_sold"
	NotificationBusinessAdded  NotificationType = "business_added"
)

// Notification is a server-backed feed entry. Read is the shared server flag and is
// unrelated to whether this device has already shown the entry.
type Notification struct {
	ID         string           `json:"id"`
	Type       NotificationType `json:"type"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	Link       string           `json:"link,omitempty"`
	BusinessID string           `json:"businessId,omitempty"`
	ProductID  string           `json:"productId,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	Read       bool             `json:"read"`
}
