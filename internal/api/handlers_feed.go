package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *server) getActiveBusiness(w http.ResponseWriter, r *http.Request) error {
	b, ok := s.Inventory.ActiveBusiness()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	writeJSON(w, http.StatusOK, b)
	return nil
}

func (s *server) setActiveBusiness(w http.ResponseWriter, r *http.Request) error {
	var req struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	b, err := s.Inventory.SetActiveBusiness(r.Context(), req.ID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, b)
	return nil
}

func (s *server) clearActiveBusiness(w http.ResponseWriter, r *http.Request) error {
	s.Inventory.ClearActiveBusiness(r.Context())
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *server) getFeed(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	if err := s.Feed.Refresh(ctx); err != nil {
		return err
	}
	items, err := s.Feed.Feed(ctx)
	if err != nil {
		return err
	}
	unread, err := s.Feed.UnreadCount(ctx)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"unread": unread,
	})
	return nil
}

func (s *server) openFeed(w http.ResponseWriter, r *http.Request) error {
	if err := s.Feed.OpenPanel(r.Context()); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *server) listNotifications(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, s.Inventory.Notifications())
	return nil
}

func (s *server) markRead(w http.ResponseWriter, r *http.Request) error {
	s.Inventory.MarkNotificationRead(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *server) markAllRead(w http.ResponseWriter, r *http.Request) error {
	s.Inventory.MarkAllNotificationsRead(r.Context())
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *server) deleteNotification(w http.ResponseWriter, r *http.Request) error {
	s.Inventory.DeleteNotification(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *server) clearNotifications(w http.ResponseWriter, r *http.Request) error {
	s.Inventory.ClearNotifications(r.Context())
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *server) recentAlerts(w http.ResponseWriter, r *http.Request) error {
	if s.Recent == nil {
		writeJSON(w, http.StatusOK, []interface{}{})
		return nil
	}
	writeJSON(w, http.StatusOK, s.Recent.Recent())
	return nil
}
