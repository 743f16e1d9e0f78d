package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// PostgresStore keeps every collection in a single JSONB table:
//
//	documents(collection TEXT, id TEXT, data JSONB, updated_at TIMESTAMPTZ, PRIMARY KEY (collection, id))
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore constructs the store.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type documentRow struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

// arrayField yields the field as a JSON array, treating missing or null as empty.
const arrayField = `(CASE WHEN jsonb_typeof(data->$3::text) = 'array' THEN data->$3::text ELSE '[]'::jsonb END)`

const (
	readQuery  = `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	writeQuery = `INSERT INTO documents (collection, id, data, updated_at) VALUES ($1, $2, $3::jsonb, NOW())
        ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	typeQuery  = `SELECT COALESCE(jsonb_typeof(data->$3::text), 'null') FROM documents WHERE collection = $1 AND id = $2`
	unionQuery = `UPDATE documents SET data = jsonb_set(data, ARRAY[$3::text],
        CASE WHEN ` + arrayField + ` @> jsonb_build_array($4::text) THEN ` + arrayField + `
        ELSE ` + arrayField + ` || jsonb_build_array($4::text) END, true), updated_at = NOW()
        WHERE collection = $1 AND id = $2`
	removeQuery = `UPDATE documents SET data = jsonb_set(data, ARRAY[$3::text],
        COALESCE((SELECT jsonb_agg(elem) FROM jsonb_array_elements(` + arrayField + `) AS elem
        WHERE elem <> to_jsonb($4::text)), '[]'::jsonb), true), updated_at = NOW()
        WHERE collection = $1 AND id = $2`
)

// Read returns the document or ErrNotFound.
func (s *PostgresStore) Read(ctx context.Context, collection, id string) (Document, error) {
	if err := validateName(collection); err != nil {
		return Document{}, err
	}
	var data []byte
	if err := s.db.GetContext(ctx, &data, readQuery, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("read %s/%s: %w", collection, id, err)
	}
	return NewDocument(id, data, jsonDecode), nil
}

// Query filters with data->>field equality; the field name is bound as a parameter.
func (s *PostgresStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := validateFilters(collection, filters); err != nil {
		return nil, err
	}
	query, args := buildSelect(collection, filters)
	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, NewDocument(row.ID, row.Data, jsonDecode))
	}
	return docs, nil
}

func buildSelect(collection string, filters []Filter) (string, []interface{}) {
	conditions := []string{"collection = $1"}
	args := []interface{}{collection}
	for _, f := range filters {
		conditions = append(conditions, fmt.Sprintf("data->>$%d::text = $%d", len(args)+1, len(args)+2))
		args = append(args, f.Field, f.Value)
	}
	return "SELECT id, data FROM documents WHERE " + strings.Join(conditions, " AND ") + " ORDER BY id", args
}

// Write upserts the full document.
func (s *PostgresStore) Write(ctx context.Context, collection, id string, doc interface{}) error {
	if err := validateName(collection); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("docstore: empty document id")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	if _, err := s.db.ExecContext(ctx, writeQuery, collection, id, string(payload)); err != nil {
		return fmt.Errorf("write %s/%s: %w", collection, id, err)
	}
	return nil
}

// UpdateField applies the set operation in a single UPDATE statement so concurrent
// updates to the same array never lose members.
func (s *PostgresStore) UpdateField(ctx context.Context, collection, id, field string, op SetOp, value string) error {
	if err := validateUpdate(collection, id, field, op); err != nil {
		return err
	}

	var kind string
	if err := s.db.GetContext(ctx, &kind, typeQuery, collection, id, field); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("inspect %s/%s.%s: %w", collection, id, field, err)
	}
	if kind != "array" && kind != "null" {
		return fmt.Errorf("%w: %s.%s", ErrNotArray, collection, field)
	}

	query := unionQuery
	if op == ArrayRemove {
		query = removeQuery
	}
	res, err := s.db.ExecContext(ctx, query, collection, id, field, value)
	if err != nil {
		return fmt.Errorf("%s %s/%s.%s: %w", op, collection, id, field, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s/%s.%s: %w", op, collection, id, field, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
