// internal/models/change.go
package models

import "encoding/json"

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

type Table string

const (
	TableBusinesses    Table = "businesses"
	TableProducts      Table = "products"
	TableNotifications Table = "notifications"
)

// ChangeEvent is one realtime push: the row after the change (New) and, for
// deletes, the row before it (Old). Rows stay raw until the store maps them.
// A Truncated event names its row by ID only and New must be read back.
type ChangeEvent struct {
	EventType EventType       `json:"eventType"`
	Table     Table           `json:"table"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       json.RawMessage `json:"old,omitempty"`
	ID        string          `json:"id,omitempty"`
	Truncated bool            `json:"truncated,omitempty"`
}

// OldID extracts the id of the row a DELETE refers to.
func (e ChangeEvent) OldID() (string, error) {
	var ref struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(e.Old, &ref); err != nil {
		return "", err
	}
	return ref.ID, nil
}
