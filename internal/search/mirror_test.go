package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "business-inventory/internal/common/errors"
	"business-inventory/internal/common/logger"
	"business-inventory/internal/models"
	"business-inventory/internal/store"
)

// ==========================
// Test Helper Functions
// ==========================

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type fakeES struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	response string
}

func (f *fakeES) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	status, response := f.status, f.response
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if response == "" {
		response = `{}`
	}
	_, _ = w.Write([]byte(response))
}

func (f *fakeES) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

type fakeSource struct {
	products []models.Product
}

func (f *fakeSource) ProductByID(id string) (models.Product, bool) {
	for _, p := range f.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

func (f *fakeSource) Products() []models.Product { return f.products }

func newTestMirror(t *testing.T, src *fakeSource) (*Mirror, *fakeES) {
	t.Helper()
	fake := &fakeES{}
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(server.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return NewMirror(es, "products", src, logger.NewTestLogger(t)), fake
}

var silla = models.Product{
	ID:         "p1",
	BusinessID: "b1",
	Name:       "Silla",
	Price:      25,
	Category:   "Muebles",
	Status:     models.StatusAvailable,
	CreatedAt:  time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
}

// ==========================
// Tests
// ==========================

func TestIndex_PutsDocumentByID(t *testing.T) {
	m, fake := newTestMirror(t, &fakeSource{})

	require.NoError(t, m.Index(context.Background(), silla))

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, "/products/_doc/p1", reqs[0].Path)

	var doc document
	require.NoError(t, json.Unmarshal([]byte(reqs[0].Body), &doc))
	assert.Equal(t, "b1", doc.BusinessID)
	assert.Equal(t, "available", doc.Status)
}

func TestDelete_MissingDocumentIsNotAnError(t *testing.T) {
	m, fake := newTestMirror(t, &fakeSource{})
	fake.status = http.StatusNotFound
	fake.response = `{"result":"not_found"}`

	require.NoError(t, m.Delete(context.Background(), "p1"))
	assert.Equal(t, "/products/_doc/p1", fake.recorded()[0].Path)
}

func TestReindex_SendsBulkBody(t *testing.T) {
	other := silla
	other.ID = "p2"
	m, fake := newTestMirror(t, &fakeSource{products: []models.Product{silla, other}})
	fake.response = `{"errors":false,"items":[]}`

	require.NoError(t, m.Reindex(context.Background()))

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/_bulk", reqs[0].Path)
	lines := strings.Split(strings.TrimSpace(reqs[0].Body), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[0], `"_id":"p1"`)
	assert.Contains(t, lines[2], `"_id":"p2"`)
}

func TestSearch_FiltersByBusinessAndReturnsIDs(t *testing.T) {
	m, fake := newTestMirror(t, &fakeSource{})
	fake.response = `{"hits":{"hits":[{"_id":"p3"},{"_id":"p1"}]}}`

	ids, err := m.Search(context.Background(), "silla", "b1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p1"}, ids)

	req := fake.recorded()[0]
	assert.Equal(t, "/products/_search", req.Path)
	assert.Contains(t, req.Body, `"business_id":"b1"`)
	assert.Contains(t, req.Body, `"query":"silla"`)
}

func TestSearch_ErrorResponse(t *testing.T) {
	m, fake := newTestMirror(t, &fakeSource{})
	fake.status = http.StatusBadRequest
	fake.response = `{"error":"parsing_exception"}`

	_, err := m.Search(context.Background(), "silla", "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSearchQueryFailed))
}

func TestRun_AppliesObservedChanges(t *testing.T) {
	m, fake := newTestMirror(t, &fakeSource{products: []models.Product{silla}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.Observe(store.Change{Table: models.TableBusinesses, Kind: store.KindInserted, ID: "b1"})
	m.Observe(store.Change{Table: models.TableProducts, Kind: store.KindInserted, ID: "p1"})
	m.Observe(store.Change{Table: models.TableProducts, Kind: store.KindDeleted, ID: "p9"})

	require.Eventually(t, func() bool { return len(fake.recorded()) == 2 }, time.Second, 10*time.Millisecond)
	reqs := fake.recorded()
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, http.MethodDelete, reqs[1].Method)
	assert.Equal(t, "/products/_doc/p9", reqs[1].Path)
}
