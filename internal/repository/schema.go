package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// ChangeChannel is the LISTEN channel on which row changes of table are published.
func ChangeChannel(table string) string {
	return table + "_changes"
}

// schemaStatements create the tables, the change-notify trigger on each, and the
// triggers that write server notifications for product and business activity.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS businesses (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		logo        TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id                    TEXT PRIMARY KEY,
		business_id           TEXT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
		name                  TEXT NOT NULL,
		price                 NUMERIC(12,2) NOT NULL CHECK (price > 0),
		category              TEXT NOT NULL DEFAULT '',
		status                TEXT NOT NULL DEFAULT 'available'
		                      CHECK (status IN ('available', 'sold', 'reserved')),
		description           TEXT NOT NULL DEFAULT '',
		image                 TEXT NOT NULL DEFAULT '',
		posted_to_marketplace BOOLEAN DEFAULT false,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE businesses ADD COLUMN IF NOT EXISTS updated_at TIMESTAMPTZ NOT NULL DEFAULT now()`,
	`ALTER TABLE products ADD COLUMN IF NOT EXISTS updated_at TIMESTAMPTZ NOT NULL DEFAULT now()`,
	`CREATE INDEX IF NOT EXISTS products_business_id_idx ON products (business_id)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
		type        TEXT NOT NULL
		            CHECK (type IN ('product_added', 'product_updated', 'product_sold', 'business_added')),
		title       TEXT NOT NULL,
		message     TEXT NOT NULL,
		link        TEXT,
		business_id TEXT,
		product_id  TEXT,
		read        BOOLEAN NOT NULL DEFAULT false,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_created_at_idx ON notifications (created_at DESC)`,

	`CREATE OR REPLACE FUNCTION touch_updated_at() RETURNS trigger AS $$
	BEGIN
		NEW.updated_at := clock_timestamp();
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,

	// pg_notify rejects payloads of 8000 bytes or more. Oversized rows are announced
	// by id only and the listener reads them back.
	`CREATE OR REPLACE FUNCTION notify_row_change() RETURNS trigger AS $$
	DECLARE
		payload TEXT;
	BEGIN
		payload := json_build_object(
			'eventType', TG_OP,
			'table', TG_TABLE_NAME,
			'new', CASE WHEN TG_OP = 'DELETE' THEN NULL ELSE row_to_json(NEW) END,
			'old', CASE WHEN TG_OP = 'INSERT' THEN NULL ELSE json_build_object('id', OLD.id) END
		)::text;
		IF octet_length(payload) > 7900 THEN
			payload := json_build_object(
				'eventType', TG_OP,
				'table', TG_TABLE_NAME,
				'id', CASE WHEN TG_OP = 'DELETE' THEN OLD.id ELSE NEW.id END,
				'truncated', true,
				'old', CASE WHEN TG_OP = 'INSERT' THEN NULL ELSE json_build_object('id', OLD.id) END
			)::text;
		END IF;
		PERFORM pg_notify(TG_TABLE_NAME || '_changes', payload);
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql`,

	`CREATE OR REPLACE FUNCTION record_product_notification() RETURNS trigger AS $$
	BEGIN
		IF TG_OP = 'INSERT' THEN
			INSERT INTO notifications (type, title, message, link, business_id, product_id)
			VALUES ('product_added', 'Nuevo producto', 'Se agregó "' || NEW.name || '"',
			        '/products/' || NEW.id, NEW.business_id, NEW.id);
		ELSIF NEW.status = 'sold' AND OLD.status IS DISTINCT FROM 'sold' THEN
			INSERT INTO notifications (type, title, message, link, business_id, product_id)
			VALUES ('product_sold', 'Producto vendido', '"' || NEW.name || '" se marcó como vendido',
			        '/products/' || NEW.id, NEW.business_id, NEW.id);
		ELSIF ROW(NEW.name, NEW.price, NEW.category, NEW.description, NEW.image, NEW.status)
		      IS DISTINCT FROM ROW(OLD.name, OLD.price, OLD.category, OLD.description, OLD.image, OLD.status) THEN
			INSERT INTO notifications (type, title, message, link, business_id, product_id)
			VALUES ('product_updated', 'Producto actualizado', 'Se actualizó "' || NEW.name || '"',
			        '/products/' || NEW.id, NEW.business_id, NEW.id);
		END IF;
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql`,

	`CREATE OR REPLACE FUNCTION record_business_notification() RETURNS trigger AS $$
	BEGIN
		INSERT INTO notifications (type, title, message, link, business_id)
		VALUES ('business_added', 'Nuevo negocio', 'Se creó el negocio "' || NEW.name || '"',
		        '/businesses', NEW.id);
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql`,
}

func triggerStatements(table string) []string {
	name := table + "_notify_change"
	return []string{
		fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s`, name, table),
		fmt.Sprintf(`CREATE TRIGGER %s AFTER INSERT OR UPDATE OR DELETE ON %s
			FOR EACH ROW EXECUTE FUNCTION notify_row_change()`, name, table),
	}
}

// touchedTables carry an updated_at column maintained by touch_updated_at.
var touchedTables = []string{"businesses", "products"}

func touchStatements(table string) []string {
	name := table + "_touch_updated_at"
	return []string{
		fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s`, name, table),
		fmt.Sprintf(`CREATE TRIGGER %s BEFORE UPDATE ON %s
			FOR EACH ROW EXECUTE FUNCTION touch_updated_at()`, name, table),
	}
}

var activityTriggers = []string{
	`DROP TRIGGER IF EXISTS products_record_notification ON products`,
	`CREATE TRIGGER products_record_notification AFTER INSERT OR UPDATE ON products
		FOR EACH ROW EXECUTE FUNCTION record_product_notification()`,
	`DROP TRIGGER IF EXISTS businesses_record_notification ON businesses`,
	`CREATE TRIGGER businesses_record_notification AFTER INSERT ON businesses
		FOR EACH ROW EXECUTE FUNCTION record_business_notification()`,
}

// Tables lists the tables that publish change events.
var Tables = []string{"businesses", "products", "notifications"}

// MigrationStatements returns every DDL statement Migrate runs, in order.
func MigrationStatements() []string {
	stmts := append([]string{}, schemaStatements...)
	for _, table := range touchedTables {
		stmts = append(stmts, touchStatements(table)...)
	}
	for _, table := range Tables {
		stmts = append(stmts, triggerStatements(table)...)
	}
	return append(stmts, activityTriggers...)
}

// Migrate applies the schema in a single transaction. It is safe to run repeatedly.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range MigrationStatements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration statement %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
