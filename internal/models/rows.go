// internal/models/rows.go
package models

import (
	"database/sql"
	"time"
)

// Row types mirror the remote tables column for column. The JSON tags match the
// realtime payload produced by row_to_json, so the same structs decode push events.

type BusinessRow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Logo        string    `json:"logo"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProductRow struct {
	ID                  string    `json:"id"`
	BusinessID          string    `json:"business_id"`
	Name                string    `json:"name"`
	Price               float64   `json:"price"`
	Category            string    `json:"category"`
	Status              string    `json:"status"`
	Description         string    `json:"description"`
	Image               string    `json:"image"`
	PostedToMarketplace *bool     `json:"posted_to_marketplace"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type NotificationRow struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Link       sql.NullString `json:"-"`
	BusinessID sql.NullString `json:"-"`
	ProductID  sql.NullString `json:"-"`
	Read       bool           `json:"read"`
	CreatedAt  time.Time      `json:"created_at"`

	// Nullable columns as they arrive over the realtime channel.
	LinkJSON       *string `json:"link"`
	BusinessIDJSON *string `json:"business_id"`
	ProductIDJSON  *string `json:"product_id"`
}

func BusinessFromRow(r BusinessRow) Business {
	return Business{
		ID:          r.ID,
		Name:        r.Name,
		Logo:        r.Logo,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func BusinessToRow(b Business) BusinessRow {
	return BusinessRow{
		ID:          b.ID,
		Name:        b.Name,
		Logo:        b.Logo,
		Description: b.Description,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func ProductFromRow(r ProductRow) Product {
	posted := false
	if r.PostedToMarketplace != nil {
		posted = *r.PostedToMarketplace
	}
	return Product{
		ID:                  r.ID,
		BusinessID:          r.BusinessID,
		Name:                r.Name,
		Price:               r.Price,
		Category:            r.Category,
		Status:              ProductStatus(r.Status),
		Description:         r.Description,
		Image:               r.Image,
		PostedToMarketplace: posted,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func ProductToRow(p Product) ProductRow {
	posted := p.PostedToMarketplace
	return ProductRow{
		ID:                  p.ID,
		BusinessID:          p.BusinessID,
		Name:                p.Name,
		Price:               p.Price,
		Category:            p.Category,
		Status:              string(p.Status),
		Description:         p.Description,
		Image:               p.Image,
		PostedToMarketplace: &posted,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

// NotificationFromRow accepts rows scanned from SQL (Null* fields) as well as rows
// decoded from a realtime payload (*JSON fields); whichever is set wins.
func NotificationFromRow(r NotificationRow) Notification {
	return Notification{
		ID:         r.ID,
		Type:       NotificationType(r.Type),
		Title:      r.Title,
		Message:    r.Message,
		Link:       pickNullable(r.Link, r.LinkJSON),
		BusinessID: pickNullable(r.BusinessID, r.BusinessIDJSON),
		ProductID:  pickNullable(r.ProductID, r.ProductIDJSON),
		CreatedAt:  r.CreatedAt,
		Read:       r.Read,
	}
}

func pickNullable(ns sql.NullString, js *string) string {
	if ns.Valid {
		return ns.String
	}
	if js != nil {
		return *js
	}
	return ""
}
