package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"business-inventory/internal/models"
)

func TestRecentProducts_BoundedSortedAndStable(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil, []models.ProductRow{
		productRow("old", "b1", "a", models.StatusAvailable, 48*time.Hour),
		productRow("tie-1", "b1", "b", models.StatusAvailable, time.Hour),
		productRow("newest", "b1", "c", models.StatusAvailable, 0),
		productRow("tie-2", "b1", "d", models.StatusAvailable, time.Hour),
		productRow("oldest", "b1", "e", models.StatusAvailable, 72*time.Hour),
	}, nil)

	tests := []struct {
		name string
		k    int
		want []string
	}{
		{"default limit", 0, []string{"newest", "tie-1", "tie-2", "old", "oldest"}},
		{"limit below size", 3, []string{"newest", "tie-1", "tie-2"}},
		{"limit above size", 10, []string{"newest", "tie-1", "tie-2", "old", "oldest"}},
		{"single", 1, []string{"newest"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.store.RecentProducts(tt.k)
			assert.Equal(t, tt.want, productIDs(got))
		})
	}
}

func TestRecentProducts_DoesNotReorderCache(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil, []models.ProductRow{
		productRow("p1", "b1", "a", models.StatusAvailable, time.Hour),
		productRow("p2", "b1", "b", models.StatusAvailable, 0),
	}, nil)

	h.store.RecentProducts(5)
	assert.Equal(t, []string{"p1", "p2"}, productIDs(h.store.Products()))
}

func TestCounts(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil, []models.ProductRow{
		productRow("p1", "b1", "a", models.StatusAvailable, 0),
		productRow("p2", "b1", "b", models.StatusSold, 0),
		productRow("p3", "b2", "c", models.StatusReserved, 0),
		productRow("p4", "b2", "d", models.StatusAvailable, 0),
	}, nil)

	assert.Equal(t, 4, h.store.TotalProducts())
	assert.Equal(t, 2, h.store.AvailableProducts())
	assert.Equal(t, []string{"p2"}, productIDs(h.store.SoldProducts()))
	assert.Equal(t, []string{"p3", "p4"}, productIDs(h.store.ProductsByBusiness("b2")))

	_, ok := h.store.ProductByID("missing")
	assert.False(t, ok)
}

func TestFilterProducts(t *testing.T) {
	h := newHarness(t)
	withDesc := func(r models.ProductRow, category, desc string) models.ProductRow {
		r.Category = category
		r.Description = desc
		return r
	}
	h.load(t, nil, []models.ProductRow{
		withDesc(productRow("p1", "b1", "Silla de madera", models.StatusAvailable, 0), "Muebles", ""),
		withDesc(productRow("p2", "b1", "Mesa", models.StatusSold, 0), "Muebles", "Madera de roble"),
		withDesc(productRow("p3", "b2", "Teléfono", models.StatusSold, 0), "Electrónica", "Usado"),
	}, nil)

	tests := []struct {
		name   string
		filter ProductFilter
		want   []string
	}{
		{"no filter", ProductFilter{}, []string{"p1", "p2", "p3"}},
		{"search name and description case-insensitive", ProductFilter{Search: "MADERA"}, []string{"p1", "p2"}},
		{"category", ProductFilter{Category: "Electrónica"}, []string{"p3"}},
		{"status", ProductFilter{Status: models.StatusSold}, []string{"p2", "p3"}},
		{"business and status", ProductFilter{BusinessID: "b1", Status: models.StatusSold}, []string{"p2"}},
		{"no match", ProductFilter{Search: "bicicleta"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, productIDs(h.store.FilterProducts(tt.filter)))
		})
	}
}

func TestPaginate(t *testing.T) {
	items := make([]models.Product, 0, 45)
	for i := 1; i <= 45; i++ {
		items = append(items, models.Product{ID: fmt.Sprintf("p%d", i)})
	}

	page := Paginate(items, 3, 20)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 45, page.TotalItems)
	require.Len(t, page.Items, 5)
	assert.Equal(t, "p41", page.Items[0].ID)

	clamped := Paginate(items, 9, 0)
	assert.Equal(t, 3, clamped.Page)
	assert.Equal(t, DefaultPerPage, clamped.PerPage)

	empty := Paginate(nil, 1, 20)
	assert.Equal(t, 1, empty.Page)
	assert.Zero(t, empty.TotalPages)
	assert.Empty(t, empty.Items)
	assert.Empty(t, empty.Pages)
}

func TestPageEntries(t *testing.T) {
	num := func(n int) PageEntry { return PageEntry{Number: n} }
	start := PageEntry{Ellipsis: EllipsisStart}
	end := PageEntry{Ellipsis: EllipsisEnd}

	tests := []struct {
		name       string
		current    int
		totalPages int
		want       []PageEntry
	}{
		{"few pages", 2, 4, []PageEntry{num(1), num(2), num(3), num(4)}},
		{"first page of many", 1, 10, []PageEntry{num(1), num(2), end, num(10)}},
		{"third page", 3, 10, []PageEntry{num(1), num(2), num(3), num(4), end, num(10)}},
		{"middle", 5, 10, []PageEntry{num(1), start, num(4), num(5), num(6), end, num(10)}},
		{"near end", 8, 10, []PageEntry{num(1), start, num(7), num(8), num(9), num(10)}},
		{"last page", 10, 10, []PageEntry{num(1), start, num(9), num(10)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pageEntries(tt.current, tt.totalPages))
		})
	}
}
