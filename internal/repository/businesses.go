package repository

import (
	"context"
	"database/sql"
	"fmt"

	"business-inventory/internal/models"
)

const businessColumns = `id, name, COALESCE(logo, ''), COALESCE(description, ''), created_at, updated_at`

type BusinessRepository struct {
	db *sql.DB
}

func scanBusiness(row interface{ Scan(...interface{}) error }) (models.BusinessRow, error) {
	var r models.BusinessRow
	err := row.Scan(&r.ID, &r.Name, &r.Logo, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// List returns every business, newest first.
func (r *BusinessRepository) List(ctx context.Context) ([]models.BusinessRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+businessColumns+`
		FROM businesses
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BusinessRow
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Insert writes a new business and returns the stored row, including server defaults.
func (r *BusinessRepository) Insert(ctx context.Context, b models.BusinessRow) (models.BusinessRow, error) {
	return scanBusiness(r.db.QueryRowContext(ctx, `
		INSERT INTO businesses (id, name, logo, description)
		VALUES ($1, $2, $3, $4)
		RETURNING `+businessColumns,
		b.ID, b.Name, b.Logo, b.Description))
}

// Update applies cols to the business and returns the stored row. ErrNoRows when id is unknown.
func (r *BusinessRepository) Update(ctx context.Context, id string, cols map[string]interface{}) (models.BusinessRow, error) {
	if len(cols) == 0 {
		return scanBusiness(r.db.QueryRowContext(ctx, `
			SELECT `+businessColumns+`
			FROM businesses
			WHERE id = $1`, id))
	}
	query, args := buildUpdate("businesses", businessColumns, cols, id)
	return scanBusiness(r.db.QueryRowContext(ctx, query, args...))
}

func (r *BusinessRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM businesses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("business %s: %w", id, ErrNoRows)
	}
	return nil
}
