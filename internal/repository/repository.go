// Package repository reads and writes the businesses, products and notifications tables.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Repository groups the per-table repositories over one connection pool.
type Repository struct {
	Businesses    *BusinessRepository
	Products      *ProductRepository
	Notifications *NotificationRepository

	db *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{
		Businesses:    &BusinessRepository{db: db},
		Products:      &ProductRepository{db: db},
		Notifications: &NotificationRepository{db: db},
		db:            db,
	}
}

// FetchRow reads one row of table as row_to_json renders it, the same shape a full
// change notification carries. ErrNoRows when the row is gone.
func (r *Repository) FetchRow(ctx context.Context, table, id string) (json.RawMessage, error) {
	if !isTable(table) {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT row_to_json(t) FROM %s t WHERE t.id = $1`, table), id).Scan(&raw)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

func isTable(name string) bool {
	for _, t := range Tables {
		if t == name {
			return true
		}
	}
	return false
}

// ErrNoRows is returned by updates whose id matched nothing.
var ErrNoRows = sql.ErrNoRows

// buildUpdate renders "UPDATE table SET a = $1, b = $2 WHERE id = $3 RETURNING cols".
// Columns are sorted so the statement is deterministic.
func buildUpdate(table, returning string, cols map[string]interface{}, id string) (string, []interface{}) {
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names))
	args := make([]interface{}, 0, len(names)+1)
	for i, name := range names {
		sets = append(sets, fmt.Sprintf("%s = $%d", name, i+1))
		args = append(args, cols[name])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d RETURNING %s",
		table, strings.Join(sets, ", "), len(args), returning)
	return query, args
}
