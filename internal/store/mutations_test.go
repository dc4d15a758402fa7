package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"business-inventory/internal/alert"
	apperrors "business-inventory/internal/common/errors"
	"business-inventory/internal/models"
)

// ==========================
// Businesses
// ==========================

func TestCreateBusiness_PrependsAndAcknowledges(t *testing.T) {
	h := newHarness(t)
	h.load(t, []models.BusinessRow{businessRow("b1", "Tienda", 0)}, nil, nil)

	b, err := h.store.CreateBusiness(context.Background(), models.BusinessInput{Name: "Taller", Description: "Reparaciones"})
	require.NoError(t, err)

	assert.Equal(t, "new-1", b.ID)
	assert.True(t, b.CreatedAt.Equal(baseTime))
	businesses := h.store.Businesses()
	require.Len(t, businesses, 2)
	assert.Equal(t, "new-1", businesses[0].ID)

	a := h.lastAlert(t)
	assert.Equal(t, alert.LevelSuccess, a.Level)
	assert.Equal(t, "Negocio creado exitosamente", a.Title)
}

func TestCreateBusiness_RemoteFailureLeavesCacheUnchanged(t *testing.T) {
	h := newHarness(t)
	h.load(t, []models.BusinessRow{businessRow("b1", "Tienda", 0)}, nil, nil)
	h.businesses.insertErr = errors.New("permission denied")

	_, err := h.store.CreateBusiness(context.Background(), models.BusinessInput{Name: "Taller"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRemoteWriteFailed))

	assert.Len(t, h.store.Businesses(), 1)
	assert.Empty(t, *h.changes)
	a := h.lastAlert(t)
	assert.Equal(t, alert.LevelError, a.Level)
	assert.Equal(t, "Error al crear el negocio", a.Title)
}

func TestUpdateBusiness(t *testing.T) {
	h := newHarness(t)
	h.load(t, []models.BusinessRow{businessRow("b1", "Tienda", 0)}, nil, nil)

	name := "Tienda Central"
	b, err := h.store.UpdateBusiness(context.Background(), "b1", models.BusinessPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Tienda Central", b.Name)

	active, _ := h.store.ActiveBusiness()
	assert.Equal(t, "Tienda Central", active.Name)
	assert.Equal(t, "Negocio actualizado", h.lastAlert(t).Title)
}

func TestUpdateBusiness_Failure(t *testing.T) {
	h := newHarness(t)
	h.load(t, []models.BusinessRow{businessRow("b1", "Tienda", 0)}, nil, nil)
	h.businesses.updateErr = errors.New("timeout")

	name := "Otro"
	_, err := h.store.UpdateBusiness(context.Background(), "b1", models.BusinessPatch{Name: &name})
	require.Error(t, err)

	b, _ := h.store.BusinessByID("b1")
	assert.Equal(t, "Tienda", b.Name)
	assert.Equal(t, "Error al actualizar el negocio", h.lastAlert(t).Title)
}

// Deleting a business with 3 products, 2 of them with images, releases exactly those
// 2 images before the business row is deleted and drops all 3 products.
func TestDeleteBusiness_CascadesInOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	withImage := func(r models.ProductRow, url string) models.ProductRow {
		r.Image = url
		return r
	}
	logo := businessRow("b1", "Tienda", 0)
	logo.Logo = "https://cdn/businesses/logo.png"
	h.load(t,
		[]models.BusinessRow{logo, businessRow("b2", "Taller", time.Hour)},
		[]models.ProductRow{
			withImage(productRow("p1", "b1", "Silla", models.StatusAvailable, 0), "https://cdn/products/p1.png"),
			productRow("p2", "b1", "Mesa", models.StatusSold, 0),
			withImage(productRow("p3", "b1", "Lámpara", models.StatusAvailable, 0), "https://cdn/products/p3.png"),
			productRow("p4", "b2", "Martillo", models.StatusAvailable, 0),
		},
		nil,
	)
	require.Equal(t, "b1", h.store.ActiveBusinessID())

	require.NoError(t, h.store.DeleteBusiness(ctx, "b1"))

	assert.Equal(t, []string{
		"release image https://cdn/products/p1.png",
		"release image https://cdn/products/p3.png",
		"delete products of b1",
		"release image https://cdn/businesses/logo.png",
		"delete business b1",
	}, h.log.all())

	assert.Empty(t, h.store.ProductsByBusiness("b1"))
	assert.Equal(t, []string{"p4"}, productIDs(h.store.Products()))
	assert.Equal(t, "b2", h.store.ActiveBusinessID())
	assert.Equal(t, "Negocio eliminado", h.lastAlert(t).Title)

	persisted, err := h.device.ActiveBusinessID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b2", persisted)
}

func TestDeleteBusiness_ProductDeleteFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.load(t, []models.BusinessRow{businessRow("b1", "Tienda", 0)},
		[]models.ProductRow{productRow("p1", "b1", "Silla", models.StatusAvailable, 0)}, nil)
	h.products.deleteByBizErr = errors.New("boom")

	require.NoError(t, h.store.DeleteBusiness(context.Background(), "b1"))

	assert.Empty(t, h.store.Businesses())
	assert.Zero(t, h.store.TotalProducts())
	for _, a := range h.alerts.Recent() {
		assert.NotEqual(t, alert.LevelError, a.Level)
	}
}

func TestDeleteBusiness_RowDeleteFailureKeepsCache(t *testing.T) {
	h := newHarness(t)
	h.load(t, []models.BusinessRow{businessRow("b1", "Tienda", 0)},
		[]models.ProductRow{productRow("p1", "b1", "Silla", models.StatusAvailable, 0)}, nil)
	h.businesses.deleteErr = errors.New("boom")

	err := h.store.DeleteBusiness(context.Background(), "b1")
	require.Error(t, err)

	assert.Len(t, h.store.Businesses(), 1)
	assert.Equal(t, 1, h.store.TotalProducts())
	assert.Equal(t, "Error al eliminar el negocio", h.lastAlert(t).Title)
}

// ==========================
// Products
// ==========================

func TestCreateProduct_DefaultsToAvailable(t *testing.T) {
	h := newHarness(t)
	h.load(t, []models.BusinessRow{businessRow("b1", "Tienda", 0)},
		[]models.ProductRow{productRow("p1", "b1", "Silla", models.StatusAvailable, time.Hour)}, nil)

	p, err := h.store.CreateProduct(context.Background(), models.ProductInput{BusinessID: "b1", Name: "Mesa", Price: 50, Category: "Muebles"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusAvailable, p.Status)
	assert.False(t, p.PostedToMarketplace)
	assert.Equal(t, []string{"new-1", "p1"}, productIDs(h.store.ProductsByBusiness("b1")))
	assert.Equal(t, "Producto agregado exitosamente", h.lastAlert(t).Title)
}

func TestCreateProduct_Failure(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil, nil, nil)
	h.products.insertErr = errors.New("price must be positive")

	_, err := h.store.CreateProduct(context.Background(), models.ProductInput{BusinessID: "b1", Name: "Mesa", Price: -1})
	require.Error(t, err)
	assert.Zero(t, h.store.TotalProducts())
	assert.Equal(t, "Error al crear el producto", h.lastAlert(t).Title)
}

func TestMarkSold_DecreasesAvailableByOne(t *testing.T) {
	h := newHarness(t)
	rows := []models.ProductRow{
		productRow("p1", "b1", "Silla", models.StatusAvailable, 0),
		productRow("p2", "b1", "Mesa", models.StatusAvailable, 0),
	}
	h.load(t, []models.BusinessRow{businessRow("b1", "Tienda", 0)}, rows, nil)
	before := h.store.AvailableProducts()

	p, err := h.store.MarkSold(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusSold, p.Status)
	assert.Equal(t, before-1, h.store.AvailableProducts())
	assert.Equal(t, "Producto actualizado", h.lastAlert(t).Title)
}

func TestSetPostedToMarketplace(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil, []models.ProductRow{productRow("p1", "b1", "Silla", models.StatusAvailable, 0)}, nil)

	_, err := h.store.SetPostedToMarketplace(context.Background(), "p1", true)
	require.NoError(t, err)

	p, _ := h.store.ProductByID("p1")
	assert.True(t, p.PostedToMarketplace)
}

func TestUpdateProduct_FailureKeepsRecord(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil, []models.ProductRow{productRow("p1", "b1", "Silla", models.StatusAvailable, 0)}, nil)
	h.products.updateErr = errors.New("timeout")

	_, err := h.store.MarkSold(context.Background(), "p1")
	require.Error(t, err)

	p, _ := h.store.ProductByID("p1")
	assert.Equal(t, models.StatusAvailable, p.Status)
	assert.Equal(t, "Error al actualizar el producto", h.lastAlert(t).Title)
}

func TestDeleteProduct_ReleasesImageFirst(t *testing.T) {
	h := newHarness(t)
	row := productRow("p1", "b1", "Silla", models.StatusAvailable, 0)
	row.Image = "https://cdn/products/p1.png"
	h.load(t, nil, []models.ProductRow{row, productRow("p2", "b1", "Mesa", models.StatusAvailable, 0)}, nil)

	require.NoError(t, h.store.DeleteProduct(context.Background(), "p1"))

	assert.Equal(t, []string{"release image https://cdn/products/p1.png", "delete product p1"}, h.log.all())
	assert.Equal(t, []string{"p2"}, productIDs(h.store.Products()))
	assert.Equal(t, "Producto eliminado", h.lastAlert(t).Title)
}

func TestDeleteProduct_Failure(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil, []models.ProductRow{productRow("p1", "b1", "Silla", models.StatusAvailable, 0)}, nil)
	h.products.deleteErr = errors.New("boom")

	require.Error(t, h.store.DeleteProduct(context.Background(), "p1"))
	assert.Equal(t, 1, h.store.TotalProducts())
	assert.Equal(t, "Error al eliminar el producto", h.lastAlert(t).Title)
}

// ==========================
// Server notifications
// ==========================

func TestNotificationCommands_MirrorLocallyEvenOnRemoteFailure(t *testing.T) {
	tests := []struct {
		name   string
		remote error
	}{
		{"remote ok", nil},
		{"remote failed", errors.New("offline")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.load(t, nil, nil, []models.NotificationRow{
				notificationRow("n1", "a", false),
				notificationRow("n2", "b", false),
				notificationRow("n3", "c", false),
			})
			h.notifications.err = tt.remote
			ctx := context.Background()

			h.store.MarkNotificationRead(ctx, "n1")
			assert.True(t, h.store.Notifications()[0].Read)

			h.store.MarkAllNotificationsRead(ctx)
			for _, n := range h.store.Notifications() {
				assert.True(t, n.Read)
			}

			h.store.DeleteNotification(ctx, "n2")
			assert.Len(t, h.store.Notifications(), 2)

			h.store.ClearNotifications(ctx)
			assert.Empty(t, h.store.Notifications())

			assert.Equal(t, []string{"mark read n1", "mark all read", "delete notification n2", "delete all notifications"}, h.log.all())
			assert.Empty(t, h.alerts.Recent())
		})
	}
}
