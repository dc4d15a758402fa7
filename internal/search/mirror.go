// Package search mirrors cached products into Elasticsearch for full-text lookup.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	apperrors "business-inventory/internal/common/errors"
	"business-inventory/internal/common/logger"
	"business-inventory/internal/models"
	"business-inventory/internal/store"
)

// Mapping is the index mapping for product documents.
const Mapping = `{
	"mappings": {
		"properties": {
			"id":          {"type": "keyword"},
			"business_id": {"type": "keyword"},
			"name":        {"type": "text"},
			"description": {"type": "text"},
			"category":    {"type": "keyword"},
			"status":      {"type": "keyword"},
			"price":       {"type": "double"},
			"created_at":  {"type": "date"}
		}
	}
}`

const queueSize = 256

// ProductSource is the read side of the store the mirror copies from.
type ProductSource interface {
	ProductByID(id string) (models.Product, bool)
	Products() []models.Product
}

type document struct {
	ID          string    `json:"id"`
	BusinessID  string    `json:"business_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	Price       float64   `json:"price"`
	CreatedAt   time.Time `json:"created_at"`
}

func toDocument(p models.Product) document {
	return document{
		ID:          p.ID,
		BusinessID:  p.BusinessID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Status:      string(p.Status),
		Price:       p.Price,
		CreatedAt:   p.CreatedAt,
	}
}

type Mirror struct {
	es       *elasticsearch.Client
	index    string
	src      ProductSource
	log      logger.Logger
	reporter *apperrors.Reporter
	queue    chan store.Change
}

func NewMirror(es *elasticsearch.Client, index string, src ProductSource, log logger.Logger) *Mirror {
	log = log.WithFields(map[string]interface{}{"component": "search", "index": index})
	return &Mirror{
		es:       es,
		index:    index,
		src:      src,
		log:      log,
		reporter: apperrors.NewReporter(log, nil),
		queue:    make(chan store.Change, queueSize),
	}
}

// Observe queues a store change for the mirror. It never blocks the store; when the
// queue is full the change is dropped and logged.
func (m *Mirror) Observe(c store.Change) {
	if c.Table != models.TableProducts && c.Table != store.TableAll {
		return
	}
	select {
	case m.queue <- c:
	default:
		m.log.Warn("search mirror queue full, change dropped", map[string]interface{}{
			"productId": c.ID,
			"kind":      c.Kind,
		})
	}
}

// Run applies queued changes until ctx is done.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-m.queue:
			if err := m.apply(ctx, c); err != nil {
				m.reporter.Log(err, map[string]interface{}{"productId": c.ID, "kind": c.Kind})
			}
		}
	}
}

func (m *Mirror) apply(ctx context.Context, c store.Change) error {
	switch {
	case c.Table == store.TableAll:
		return m.Reindex(ctx)
	case c.Kind == store.KindDeleted:
		return m.Delete(ctx, c.ID)
	default:
		p, ok := m.src.ProductByID(c.ID)
		if !ok {
			return nil
		}
		return m.Index(ctx, p)
	}
}

func (m *Mirror) Index(ctx context.Context, p models.Product) error {
	body, err := json.Marshal(toDocument(p))
	if err != nil {
		return err
	}
	res, err := m.es.Index(m.index, bytes.NewReader(body),
		m.es.Index.WithContext(ctx),
		m.es.Index.WithDocumentID(p.ID),
	)
	if err != nil {
		return apperrors.NewExternalServiceError("elasticsearch", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewExternalServiceError("elasticsearch", fmt.Errorf("index %s: %s", p.ID, res.Status()))
	}
	return nil
}

// Delete removes a product document. A missing document is not an error.
func (m *Mirror) Delete(ctx context.Context, id string) error {
	res, err := m.es.Delete(m.index, id, m.es.Delete.WithContext(ctx))
	if err != nil {
		return apperrors.NewExternalServiceError("elasticsearch", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return apperrors.NewExternalServiceError("elasticsearch", fmt.Errorf("delete %s: %s", id, res.Status()))
	}
	return nil
}

// Reindex writes every cached product in one bulk request.
func (m *Mirror) Reindex(ctx context.Context) error {
	products := m.src.Products()
	if len(products) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, p := range products {
		meta := map[string]interface{}{"index": map[string]string{"_index": m.index, "_id": p.ID}}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		if err := enc.Encode(toDocument(p)); err != nil {
			return err
		}
	}

	res, err := m.es.Bulk(&buf, m.es.Bulk.WithContext(ctx))
	if err != nil {
		return apperrors.NewExternalServiceError("elasticsearch", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewExternalServiceError("elasticsearch", fmt.Errorf("bulk: %s", res.Status()))
	}

	var out struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err == nil && out.Errors {
		m.log.Warn("bulk reindex reported item errors", map[string]interface{}{"products": len(products)})
	}
	m.log.Info("search index rebuilt", map[string]interface{}{"products": len(products)})
	return nil
}

// Search returns the ids of products matching term in name or description, best match
// first. businessID narrows the result when not empty.
func (m *Mirror) Search(ctx context.Context, term, businessID string) ([]string, error) {
	query := map[string]interface{}{
		"multi_match": map[string]interface{}{
			"query":     term,
			"fields":    []string{"name^2", "description"},
			"fuzziness": "AUTO",
		},
	}
	if businessID != "" {
		query = map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   query,
				"filter": map[string]interface{}{"term": map[string]string{"business_id": businessID}},
			},
		}
	}
	body, err := json.Marshal(map[string]interface{}{"query": query, "_source": false, "size": 100})
	if err != nil {
		return nil, err
	}

	res, err := m.es.Search(
		m.es.Search.WithContext(ctx),
		m.es.Search.WithIndex(m.index),
		m.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return nil, apperrors.NewSearchQueryFailedError(fmt.Errorf("%s: %s", res.Status(), strings.TrimSpace(string(raw))))
	}

	var out struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(err)
	}
	ids := make([]string, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}
