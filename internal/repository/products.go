package repository

import (
	"context"
	"database/sql"
	"fmt"

	"business-inventory/internal/models"
)

const productColumns = `id, business_id, name, price, COALESCE(category, ''), status,
	COALESCE(description, ''), COALESCE(image, ''), posted_to_marketplace, created_at, updated_at`

type ProductRepository struct {
	db *sql.DB
}

func scanProduct(row interface{ Scan(...interface{}) error }) (models.ProductRow, error) {
	var (
		r      models.ProductRow
		posted sql.NullBool
	)
	err := row.Scan(&r.ID, &r.BusinessID, &r.Name, &r.Price, &r.Category, &r.Status,
		&r.Description, &r.Image, &posted, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	if posted.Valid {
		v := posted.Bool
		r.PostedToMarketplace = &v
	}
	return r, nil
}

// List returns every product, newest first.
func (r *ProductRepository) List(ctx context.Context) ([]models.ProductRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ProductRow
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProductRepository) Insert(ctx context.Context, p models.ProductRow) (models.ProductRow, error) {
	posted := false
	if p.PostedToMarketplace != nil {
		posted = *p.PostedToMarketplace
	}
	return scanProduct(r.db.QueryRowContext(ctx, `
		INSERT INTO products (id, business_id, name, price, category, status, description, image, posted_to_marketplace)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+productColumns,
		p.ID, p.BusinessID, p.Name, p.Price, p.Category, p.Status, p.Description, p.Image, posted))
}

func (r *ProductRepository) Update(ctx context.Context, id string, cols map[string]interface{}) (models.ProductRow, error) {
	if len(cols) == 0 {
		return scanProduct(r.db.QueryRowContext(ctx, `
			SELECT `+productColumns+`
			FROM products
			WHERE id = $1`, id))
	}
	query, args := buildUpdate("products", productColumns, cols, id)
	return scanProduct(r.db.QueryRowContext(ctx, query, args...))
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("product %s: %w", id, ErrNoRows)
	}
	return nil
}

// DeleteByBusiness removes every product owned by businessID and reports how many went.
func (r *ProductRepository) DeleteByBusiness(ctx context.Context, businessID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE business_id = $1`, businessID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
