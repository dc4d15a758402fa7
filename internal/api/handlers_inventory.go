package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "business-inventory/internal/common/errors"
	"business-inventory/internal/models"
	"business-inventory/internal/store"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

func (s *server) login(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if req.Identifier == "" || req.Secret == "" {
		return badRequest("identifier and secret are required")
	}
	grant, err := s.Session.Login(r.Context(), req.Identifier, req.Secret)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, grant)
	return nil
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) error {
	if err := s.Session.Logout(r.Context()); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *server) currentSession(w http.ResponseWriter, r *http.Request) error {
	current, ok := s.Session.Current()
	if !ok {
		return apperrors.ErrNotAuthenticated
	}
	writeJSON(w, http.StatusOK, current)
	return nil
}

// ==== Businesses ====

func (s *server) listBusinesses(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, s.Inventory.Businesses())
	return nil
}

func (s *server) getBusiness(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	b, ok := s.Inventory.BusinessByID(id)
	if !ok {
		return apperrors.NewNotFoundError("business", id)
	}
	writeJSON(w, http.StatusOK, b)
	return nil
}

func (s *server) createBusiness(w http.ResponseWriter, r *http.Request) error {
	var in models.BusinessInput
	if err := decodeJSON(r, &in); err != nil {
		return err
	}
	if in.Name == "" {
		return badRequest("name is required")
	}
	b, err := s.Inventory.CreateBusiness(r.Context(), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, b)
	return nil
}

func (s *server) updateBusiness(w http.ResponseWriter, r *http.Request) error {
	var patch models.BusinessPatch
	if err := decodeJSON(r, &patch); err != nil {
		return err
	}
	b, err := s.Inventory.UpdateBusiness(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, b)
	return nil
}

func (s *server) deleteBusiness(w http.ResponseWriter, r *http.Request) error {
	if err := s.Inventory.DeleteBusiness(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *server) businessProducts(w http.ResponseWriter, r *http.Request) error {
	products := s.Inventory.ProductsByBusiness(chi.URLParam(r, "id"))
	if products == nil {
		products = []models.Product{}
	}
	writeJSON(w, http.StatusOK, products)
	return nil
}

// ==== Products ====

func (s *server) listProducts(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	filter := store.ProductFilter{
		Search:     q.Get("search"),
		Category:   q.Get("category"),
		Status:     models.ProductStatus(q.Get("status")),
		BusinessID: q.Get("business"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return badRequest("unknown status " + string(filter.Status))
	}
	page, err := intParam(r, "page", 1)
	if err != nil {
		return err
	}
	perPage, err := intParam(r, "perPage", store.DefaultPerPage)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, store.Paginate(s.Inventory.FilterProducts(filter), page, perPage))
	return nil
}

func (s *server) getProduct(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	p, ok := s.Inventory.ProductByID(id)
	if !ok {
		return apperrors.NewNotFoundError("product", id)
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

func (s *server) createProduct(w http.ResponseWriter, r *http.Request) error {
	var in models.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		return err
	}
	switch {
	case in.BusinessID == "":
		return badRequest("businessId is required")
	case in.Name == "":
		return badRequest("name is required")
	case in.Price <= 0:
		return badRequest("price must be greater than zero")
	case in.Status != "" && !in.Status.Valid():
		return badRequest("unknown status " + string(in.Status))
	}
	p, err := s.Inventory.CreateProduct(r.Context(), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, p)
	return nil
}

func (s *server) updateProduct(w http.ResponseWriter, r *http.Request) error {
	var patch models.ProductPatch
	if err := decodeJSON(r, &patch); err != nil {
		return err
	}
	if patch.Price != nil && *patch.Price <= 0 {
		return badRequest("price must be greater than zero")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return badRequest("unknown status " + string(*patch.Status))
	}
	p, err := s.Inventory.UpdateProduct(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

func (s *server) deleteProduct(w http.ResponseWriter, r *http.Request) error {
	if err := s.Inventory.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *server) markSold(w http.ResponseWriter, r *http.Request) error {
	p, err := s.Inventory.MarkSold(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

func (s *server) setMarketplace(w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Posted bool `json:"posted"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	p, err := s.Inventory.SetPostedToMarketplace(r.Context(), chi.URLParam(r, "id"), req.Posted)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

func (s *server) recentProducts(w http.ResponseWriter, r *http.Request) error {
	limit, err := intParam(r, "limit", store.DefaultRecentLimit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, s.Inventory.RecentProducts(limit))
	return nil
}

func (s *server) searchProducts(w http.ResponseWriter, r *http.Request) error {
	term := r.URL.Query().Get("q")
	businessID := r.URL.Query().Get("business")
	if s.Search == nil {
		// Without the search index fall back to the cached substring filter.
		writeJSON(w, http.StatusOK, s.Inventory.FilterProducts(store.ProductFilter{Search: term, BusinessID: businessID}))
		return nil
	}
	ids, err := s.Search.Search(r.Context(), term, businessID)
	if err != nil {
		return err
	}
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.Inventory.ProductByID(id); ok {
			out = append(out, p)
		}
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (s *server) stats(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]int{
		"totalProducts":     s.Inventory.TotalProducts(),
		"availableProducts": s.Inventory.AvailableProducts(),
		"businesses":        len(s.Inventory.Businesses()),
	})
	return nil
}

func (s *server) categories(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, models.Categories)
	return nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(name + " must be a number")
	}
	return n, nil
}
