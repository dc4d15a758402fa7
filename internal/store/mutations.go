package store

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "business-inventory/internal/common/errors"
	"business-inventory/internal/common/metrics"
	"business-inventory/internal/models"
)

// attempt runs one remote write with tracing and metrics.
func (s *Store) attempt(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, end := s.deps.Observability.StartSpan(ctx, "store."+op, attribute.String("operation", op))
	start := time.Now()
	err := fn(ctx)
	end(err)

	duration := time.Since(start)
	metrics.MutationDuration.WithLabelValues(op).Observe(duration.Seconds())
	status := "success"
	if err != nil {
		status = "failed"
	}
	s.deps.Observability.RecordMutation(ctx, op, status, duration)
	return err
}

// write runs a user-initiated remote write. A failure is shown to the user with failMsg
// and returned; the cache is left as it was.
func (s *Store) write(ctx context.Context, op, failMsg string, fn func(ctx context.Context) error) error {
	if err := s.attempt(ctx, op, fn); err != nil {
		stdErr := s.reporter.Surface(apperrors.NewRemoteWriteFailedError(failMsg, op, err), map[string]interface{}{
			"operation": op,
		})
		metrics.MutationsFailed.WithLabelValues(op, string(stdErr.Code)).Inc()
		return stdErr
	}
	metrics.MutationsCompleted.WithLabelValues(op).Inc()
	return nil
}

func (s *Store) CreateBusiness(ctx context.Context, in models.BusinessInput) (models.Business, error) {
	row := models.BusinessToRow(models.Business{
		ID:          s.newID(),
		Name:        in.Name,
		Logo:        in.Logo,
		Description: in.Description,
	})

	var stored models.BusinessRow
	err := s.write(ctx, "create_business", "Error al crear el negocio", func(ctx context.Context) error {
		var err error
		stored, err = s.deps.Businesses.Insert(ctx, row)
		return err
	})
	if err != nil {
		return models.Business{}, err
	}

	rec := models.BusinessFromRow(stored)
	s.transition(ctx, func() []Change {
		changes, _ := s.mergeBusinessLocked(models.EventInsert, rec.ID, rec, SourceLocal)
		return changes
	})
	s.deps.Alerts.Success("Negocio creado exitosamente")
	return rec, nil
}

func (s *Store) UpdateBusiness(ctx context.Context, id string, patch models.BusinessPatch) (models.Business, error) {
	var stored models.BusinessRow
	err := s.write(ctx, "update_business", "Error al actualizar el negocio", func(ctx context.Context) error {
		var err error
		stored, err = s.deps.Businesses.Update(ctx, id, patch.Columns())
		return err
	})
	if err != nil {
		return models.Business{}, err
	}

	rec := models.BusinessFromRow(stored)
	s.transition(ctx, func() []Change {
		changes, _ := s.mergeBusinessLocked(models.EventUpdate, rec.ID, rec, SourceLocal)
		return changes
	})
	s.deps.Alerts.Success("Negocio actualizado")
	return rec, nil
}

// DeleteBusiness removes a business together with its products and their images.
// Images go first, then the products, then the logo, then the business row.
func (s *Store) DeleteBusiness(ctx context.Context, id string) error {
	s.mu.RLock()
	var (
		images []string
		logo   string
	)
	for _, p := range s.products {
		if p.BusinessID == id && p.Image != "" {
			images = append(images, p.Image)
		}
	}
	for _, b := range s.businesses {
		if b.ID == id {
			logo = b.Logo
			break
		}
	}
	s.mu.RUnlock()

	for _, url := range images {
		s.releaseImage(ctx, url)
	}

	err := s.attempt(ctx, "delete_business_products", func(ctx context.Context) error {
		_, err := s.deps.Products.DeleteByBusiness(ctx, id)
		return err
	})
	if err != nil {
		s.reporter.Log(apperrors.NewRemoteWriteFailedError("Error al eliminar los productos del negocio", "delete_business_products", err),
			map[string]interface{}{"businessId": id})
	}

	if logo != "" {
		s.releaseImage(ctx, logo)
	}

	err = s.write(ctx, "delete_business", "Error al eliminar el negocio", func(ctx context.Context) error {
		return s.deps.Businesses.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.transition(ctx, func() []Change {
		var changes []Change
		kept := make([]models.Product, 0, len(s.products))
		for _, p := range s.products {
			if p.BusinessID == id {
				changes = append(changes, Change{Table: models.TableProducts, Kind: KindDeleted, ID: p.ID, Source: SourceLocal})
				continue
			}
			kept = append(kept, p)
		}
		s.products = kept
		removed, _ := s.mergeBusinessLocked(models.EventDelete, id, models.Business{}, SourceLocal)
		return append(changes, removed...)
	})
	s.deps.Alerts.Success("Negocio eliminado")
	return nil
}

func (s *Store) CreateProduct(ctx context.Context, in models.ProductInput) (models.Product, error) {
	status := in.Status
	if status == "" {
		status = models.StatusAvailable
	}
	row := models.ProductToRow(models.Product{
		ID:                  s.newID(),
		BusinessID:          in.BusinessID,
		Name:                in.Name,
		Price:               in.Price,
		Category:            in.Category,
		Status:              status,
		Description:         in.Description,
		Image:               in.Image,
		PostedToMarketplace: in.PostedToMarketplace,
	})

	var stored models.ProductRow
	err := s.write(ctx, "create_product", "Error al crear el producto", func(ctx context.Context) error {
		var err error
		stored, err = s.deps.Products.Insert(ctx, row)
		return err
	})
	if err != nil {
		return models.Product{}, err
	}

	rec := models.ProductFromRow(stored)
	s.transition(ctx, func() []Change {
		changes, _ := s.mergeProductLocked(models.EventInsert, rec.ID, rec, SourceLocal)
		return changes
	})
	s.deps.Alerts.Success("Producto agregado exitosamente")
	return rec, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (models.Product, error) {
	var stored models.ProductRow
	err := s.write(ctx, "update_product", "Error al actualizar el producto", func(ctx context.Context) error {
		var err error
		stored, err = s.deps.Products.Update(ctx, id, patch.Columns())
		return err
	})
	if err != nil {
		return models.Product{}, err
	}

	rec := models.ProductFromRow(stored)
	s.transition(ctx, func() []Change {
		changes, _ := s.mergeProductLocked(models.EventUpdate, rec.ID, rec, SourceLocal)
		return changes
	})
	s.deps.Alerts.Success("Producto actualizado")
	return rec, nil
}

func (s *Store) MarkSold(ctx context.Context, id string) (models.Product, error) {
	sold := models.StatusSold
	return s.UpdateProduct(ctx, id, models.ProductPatch{Status: &sold})
}

func (s *Store) SetPostedToMarketplace(ctx context.Context, id string, posted bool) (models.Product, error) {
	return s.UpdateProduct(ctx, id, models.ProductPatch{PostedToMarketplace: &posted})
}

// DeleteProduct releases the product image and then deletes the row.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if p, ok := s.ProductByID(id); ok && p.Image != "" {
		s.releaseImage(ctx, p.Image)
	}

	err := s.write(ctx, "delete_product", "Error al eliminar el producto", func(ctx context.Context) error {
		return s.deps.Products.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.transition(ctx, func() []Change {
		changes, _ := s.mergeProductLocked(models.EventDelete, id, models.Product{}, SourceLocal)
		return changes
	})
	s.deps.Alerts.Success("Producto eliminado")
	return nil
}

func (s *Store) releaseImage(ctx context.Context, url string) {
	if s.deps.Images == nil {
		return
	}
	s.deps.Images.Delete(ctx, url)
}

// Server notification commands update the local mirror even when the remote write fails.

func (s *Store) MarkNotificationRead(ctx context.Context, id string) {
	s.notificationCommand(ctx, "mark_notification_read", func(ctx context.Context) error {
		return s.deps.Notifications.MarkRead(ctx, id)
	})
	s.transition(ctx, func() []Change {
		if !s.setReadLocked(id, true) {
			return nil
		}
		return []Change{{Table: models.TableNotifications, Kind: KindUpdated, ID: id, Source: SourceLocal}}
	})
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context) {
	s.notificationCommand(ctx, "mark_all_notifications_read", s.deps.Notifications.MarkAllRead)
	s.transition(ctx, func() []Change {
		var changes []Change
		for i := range s.notifications {
			if s.notifications[i].Read {
				continue
			}
			s.notifications[i].Read = true
			changes = append(changes, Change{Table: models.TableNotifications, Kind: KindUpdated, ID: s.notifications[i].ID, Source: SourceLocal})
		}
		return changes
	})
}

func (s *Store) DeleteNotification(ctx context.Context, id string) {
	s.notificationCommand(ctx, "delete_notification", func(ctx context.Context) error {
		return s.deps.Notifications.Delete(ctx, id)
	})
	s.transition(ctx, func() []Change {
		changes, _ := s.mergeNotificationLocked(models.EventDelete, id, models.Notification{}, SourceLocal)
		return changes
	})
}

func (s *Store) ClearNotifications(ctx context.Context) {
	s.notificationCommand(ctx, "clear_notifications", s.deps.Notifications.DeleteAll)
	s.transition(ctx, func() []Change {
		changes := make([]Change, 0, len(s.notifications))
		for _, n := range s.notifications {
			changes = append(changes, Change{Table: models.TableNotifications, Kind: KindDeleted, ID: n.ID, Source: SourceLocal})
		}
		s.notifications = nil
		return changes
	})
}

func (s *Store) notificationCommand(ctx context.Context, op string, fn func(ctx context.Context) error) {
	if err := s.attempt(ctx, op, fn); err != nil {
		stdErr := s.reporter.Log(apperrors.NewRemoteWriteFailedError("Notification update failed", op, err), map[string]interface{}{
			"operation": op,
		})
		metrics.MutationsFailed.WithLabelValues(op, string(stdErr.Code)).Inc()
		return
	}
	metrics.MutationsCompleted.WithLabelValues(op).Inc()
}
