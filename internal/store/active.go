package store

import (
	"context"

	apperrors "business-inventory/internal/common/errors"
	"business-inventory/internal/models"
)

// restoreActive picks the persisted id when it still exists, else the first business.
func restoreActive(businesses []models.Business, persisted string) string {
	if persisted != "" {
		for _, b := range businesses {
			if b.ID == persisted {
				return persisted
			}
		}
	}
	return firstBusinessID(businesses)
}

// ActiveBusiness returns the business currently in focus.
func (s *Store) ActiveBusiness() (models.Business, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked()
}

func (s *Store) ActiveBusinessID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

func (s *Store) activeLocked() (models.Business, bool) {
	if s.activeID == "" {
		return models.Business{}, false
	}
	for _, b := range s.businesses {
		if b.ID == s.activeID {
			return b, true
		}
	}
	return models.Business{}, false
}

// SetActiveBusiness puts the business with id in focus and persists the choice on this device.
func (s *Store) SetActiveBusiness(ctx context.Context, id string) (models.Business, error) {
	var (
		target models.Business
		found  bool
	)
	s.transition(ctx, func() []Change {
		for _, b := range s.businesses {
			if b.ID == id {
				target, found = b, true
				break
			}
		}
		if !found || s.activeID == id {
			return nil
		}
		s.activeID = id
		return []Change{{Table: TableActive, Kind: KindUpdated, ID: id, Source: SourceLocal}}
	})
	if !found {
		return models.Business{}, apperrors.NewNotFoundError("business", id)
	}
	s.deps.Alerts.Success("Negocio activo: " + target.Name)
	return target, nil
}

// ClearActiveBusiness leaves no business in focus.
func (s *Store) ClearActiveBusiness(ctx context.Context) {
	s.transition(ctx, func() []Change {
		if s.activeID == "" {
			return nil
		}
		s.activeID = ""
		return []Change{{Table: TableActive, Kind: KindUpdated, Source: SourceLocal}}
	})
}
