// Package api exposes the store, feed and session over HTTP for the view layer.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"business-inventory/internal/alert"
	apperrors "business-inventory/internal/common/errors"
	"business-inventory/internal/common/logger"
	"business-inventory/internal/feed"
	"business-inventory/internal/imagestore"
	"business-inventory/internal/models"
	"business-inventory/internal/session"
	"business-inventory/internal/store"
)

const requestTimeout = 30 * time.Second

// Inventory is the store surface used by the handlers.
type Inventory interface {
	Businesses() []models.Business
	BusinessByID(id string) (models.Business, bool)
	CreateBusiness(ctx context.Context, in models.BusinessInput) (models.Business, error)
	UpdateBusiness(ctx context.Context, id string, patch models.BusinessPatch) (models.Business, error)
	DeleteBusiness(ctx context.Context, id string) error

	ProductsByBusiness(businessID string) []models.Product
	ProductByID(id string) (models.Product, bool)
	FilterProducts(f store.ProductFilter) []models.Product
	RecentProducts(n int) []models.Product
	TotalProducts() int
	AvailableProducts() int
	CreateProduct(ctx context.Context, in models.ProductInput) (models.Product, error)
	UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	MarkSold(ctx context.Context, id string) (models.Product, error)
	SetPostedToMarketplace(ctx context.Context, id string, posted bool) (models.Product, error)

	ActiveBusiness() (models.Business, bool)
	SetActiveBusiness(ctx context.Context, id string) (models.Business, error)
	ClearActiveBusiness(ctx context.Context)

	Notifications() []models.Notification
	MarkNotificationRead(ctx context.Context, id string)
	MarkAllNotificationsRead(ctx context.Context)
	DeleteNotification(ctx context.Context, id string)
	ClearNotifications(ctx context.Context)
}

type Authenticator interface {
	Login(ctx context.Context, identifier, secret string) (session.Grant, error)
	Logout(ctx context.Context) error
	Authorize(token string) error
	Current() (session.Session, bool)
}

type Feed interface {
	Refresh(ctx context.Context) error
	Feed(ctx context.Context) ([]feed.Item, error)
	UnreadCount(ctx context.Context) (int, error)
	OpenPanel(ctx context.Context) error
}

type Searcher interface {
	Search(ctx context.Context, term, businessID string) ([]string, error)
}

type ImageUploader interface {
	Upload(ctx context.Context, up imagestore.Upload, folder imagestore.Folder) (string, error)
}

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type Deps struct {
	Inventory Inventory
	Session   Authenticator
	Feed      Feed
	Search    Searcher
	Images    ImageUploader
	Alerts    alert.Sink
	Recent    *alert.Memory
	Hub       *Hub
	Checks    []Check
	Logger    logger.Logger

	// MaxImageSize caps uploads; zero means imagestore.DefaultMaxSize.
	MaxImageSize int64
}

type server struct {
	Deps
	log      logger.Logger
	reporter *apperrors.Reporter
}

// NewRouter builds the HTTP handler. Everything except health, metrics and login
// requires the access token issued at login, sent as "Authorization: Bearer <token>".
func NewRouter(deps Deps) http.Handler {
	log := deps.Logger.WithFields(map[string]interface{}{"component": "api"})
	s := &server{Deps: deps, log: log, reporter: apperrors.NewReporter(log, deps.Alerts)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/session", func(r chi.Router) {
		r.Post("/login", s.handle(s.login))
		r.With(s.requireSession).Post("/logout", s.handle(s.logout))
		r.With(s.requireSession).Get("/", s.handle(s.currentSession))
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		if s.Hub != nil {
			r.Get("/ws", s.Hub.ServeHTTP)
		}
		r.Group(s.routes)
	})

	return r
}

func (s *server) routes(r chi.Router) {
	r.Use(middleware.Timeout(requestTimeout))

	r.Route("/businesses", func(r chi.Router) {
		r.Get("/", s.handle(s.listBusinesses))
		r.Post("/", s.handle(s.createBusiness))
		r.Get("/{id}", s.handle(s.getBusiness))
		r.Patch("/{id}", s.handle(s.updateBusiness))
		r.Delete("/{id}", s.handle(s.deleteBusiness))
		r.Get("/{id}/products", s.handle(s.businessProducts))
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.handle(s.listProducts))
		r.Post("/", s.handle(s.createProduct))
		r.Get("/recent", s.handle(s.recentProducts))
		r.Get("/search", s.handle(s.searchProducts))
		r.Get("/{id}", s.handle(s.getProduct))
		r.Patch("/{id}", s.handle(s.updateProduct))
		r.Delete("/{id}", s.handle(s.deleteProduct))
		r.Post("/{id}/sold", s.handle(s.markSold))
		r.Put("/{id}/marketplace", s.handle(s.setMarketplace))
	})

	r.Get("/stats", s.handle(s.stats))
	r.Get("/categories", s.handle(s.categories))

	r.Route("/active-business", func(r chi.Router) {
		r.Get("/", s.handle(s.getActiveBusiness))
		r.Put("/", s.handle(s.setActiveBusiness))
		r.Delete("/", s.handle(s.clearActiveBusiness))
	})

	r.Get("/feed", s.handle(s.getFeed))
	r.Post("/feed/open", s.handle(s.openFeed))

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", s.handle(s.listNotifications))
		r.Delete("/", s.handle(s.clearNotifications))
		r.Post("/read-all", s.handle(s.markAllRead))
		r.Post("/{id}/read", s.handle(s.markRead))
		r.Delete("/{id}", s.handle(s.deleteNotification))
	})

	r.Post("/images/{folder}", s.handle(s.uploadImage))
	r.Get("/alerts", s.handle(s.recentAlerts))
}

func (s *server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.Session.Authorize(bearerToken(r)); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken reads the Authorization header. Browsers cannot set headers on a
// websocket handshake, so upgrades may pass the token as ?access_token= instead.
func bearerToken(r *http.Request) string {
	const prefix = "bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	if websocket.IsWebSocketUpgrade(r) {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func (s *server) maxImageSize() int64 {
	if s.MaxImageSize > 0 {
		return s.MaxImageSize
	}
	return imagestore.DefaultMaxSize
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request served", map[string]interface{}{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    ww.Status(),
			"duration":  time.Since(start).String(),
			"requestId": middleware.GetReqID(r.Context()),
		})
	})
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.Checks))
	for _, c := range s.Checks {
		if err := c.Fn(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[c.Name] = err.Error()
			continue
		}
		results[c.Name] = "ok"
	}
	writeJSON(w, status, results)
}
