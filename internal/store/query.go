package store

import (
	"sort"
	"strings"

	"business-inventory/internal/models"
)

const (
	DefaultRecentLimit = 5
	DefaultPerPage     = 20
	maxVisiblePages    = 5
)

func (s *Store) Businesses() []models.Business {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Business(nil), s.businesses...)
}

func (s *Store) BusinessByID(id string) (models.Business, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.businesses {
		if b.ID == id {
			return b, true
		}
	}
	return models.Business{}, false
}

func (s *Store) Products() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Product(nil), s.products...)
}

func (s *Store) ProductsByBusiness(businessID string) []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Product
	for _, p := range s.products {
		if p.BusinessID == businessID {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) ProductByID(id string) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

func (s *Store) TotalProducts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// AvailableProducts counts products with status available.
func (s *Store) AvailableProducts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.products {
		if p.Status == models.StatusAvailable {
			n++
		}
	}
	return n
}

func (s *Store) SoldProducts() []models.Product {
	return s.FilterProducts(ProductFilter{Status: models.StatusSold})
}

// RecentProducts returns at most n products, newest first. Products created at the same
// instant keep their cache order. n <= 0 means DefaultRecentLimit.
func (s *Store) RecentProducts(n int) []models.Product {
	if n <= 0 {
		n = DefaultRecentLimit
	}
	out := s.Products()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (s *Store) Notifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Notification(nil), s.notifications...)
}

// ProductFilter narrows the product list. Empty fields match everything.
type ProductFilter struct {
	Search     string               `json:"search"`
	Category   string               `json:"category"`
	Status     models.ProductStatus `json:"status"`
	BusinessID string               `json:"businessId"`
}

func (f ProductFilter) matches(p models.Product) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.BusinessID != "" && p.BusinessID != f.BusinessID {
		return false
	}
	if f.Search == "" {
		return true
	}
	term := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.Description), term)
}

func (s *Store) FilterProducts(f ProductFilter) []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Product{}
	for _, p := range s.products {
		if f.matches(p) {
			out = append(out, p)
		}
	}
	return out
}

// PageEntry is one slot of a pagination bar: a page number or an ellipsis marker.
type PageEntry struct {
	Number   int    `json:"number,omitempty"`
	Ellipsis string `json:"ellipsis,omitempty"`
}

const (
	EllipsisStart = "ellipsis-start"
	EllipsisEnd   = "ellipsis-end"
)

type Page struct {
	Items      []models.Product `json:"items"`
	Page       int              `json:"page"`
	PerPage    int              `json:"perPage"`
	TotalItems int              `json:"totalItems"`
	TotalPages int              `json:"totalPages"`
	Pages      []PageEntry      `json:"pages"`
}

// Paginate slices items into pages of perPage and builds the page bar. page is clamped
// to the valid range.
func Paginate(items []models.Product, page, perPage int) Page {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	total := len(items)
	totalPages := (total + perPage - 1) / perPage
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * perPage
	end := start + perPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Page{
		Items:      append([]models.Product{}, items[start:end]...),
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
		Pages:      pageEntries(page, totalPages),
	}
}

func pageEntries(current, totalPages int) []PageEntry {
	entries := []PageEntry{}
	if totalPages <= maxVisiblePages {
		for i := 1; i <= totalPages; i++ {
			entries = append(entries, PageEntry{Number: i})
		}
		return entries
	}

	entries = append(entries, PageEntry{Number: 1})
	if current > 3 {
		entries = append(entries, PageEntry{Ellipsis: EllipsisStart})
	}
	start := current - 1
	if start < 2 {
		start = 2
	}
	end := current + 1
	if end > totalPages-1 {
		end = totalPages - 1
	}
	for i := start; i <= end; i++ {
		entries = append(entries, PageEntry{Number: i})
	}
	if current < totalPages-2 {
		entries = append(entries, PageEntry{Ellipsis: EllipsisEnd})
	}
	return append(entries, PageEntry{Number: totalPages})
}
