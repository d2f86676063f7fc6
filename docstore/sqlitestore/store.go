// Package sqlitestore keeps document collections as JSON rows in a
// single sqlite table. It is the real Store implementation behind the
// pipeline; collections here map 1:1 to the hosted document store the
// CRUD API reads from.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"uniadmit-backend/docstore"
	"uniadmit-backend/lib/timezone"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

var _ docstore.Store = Store{}

// Open opens (or creates) the backing database and applies the schema.
// Use ":memory:" for throwaway stores.
func Open(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return Store{}, err
	}
	_, err = db.Exec(Schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return Store{}, err
	}
	return Store{db: db}, nil
}

func New(db *sql.DB) Store {
	return Store{db: db}
}

func (s Store) Close() error {
	return s.db.Close()
}

// materialize resolves ServerTimestamp sentinels and strips the "id"
// pass-through key before a document hits the wire format.
func materialize(data docstore.Document, now time.Time) docstore.Document {
	out := make(docstore.Document, len(data))
	for k, v := range data {
		if k == "id" {
			continue
		}
		if v == docstore.ServerTimestamp {
			out[k] = now.Format(time.RFC3339)
			continue
		}
		out[k] = v
	}
	return out
}

func (s Store) Create(ctx context.Context, collection string, data docstore.Document, id string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := timezone.Now()
	encoded, err := json.Marshal(materialize(data, now))
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, id)
		DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, collection, id, string(encoded), now.Unix())
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT data FROM documents WHERE collection = ? AND id = ?
	`, collection, id)

	var raw string
	err := row.Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var doc docstore.Document
	err = json.Unmarshal([]byte(raw), &doc)
	if err != nil {
		return nil, err
	}
	doc["id"] = id
	return doc, nil
}

func (s Store) Update(ctx context.Context, collection, id string, data docstore.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = updateInTx(ctx, tx, collection, id, data)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func updateInTx(ctx context.Context, tx *sql.Tx, collection, id string, data docstore.Document) error {
	row := tx.QueryRowContext(ctx, `
		SELECT data FROM documents WHERE collection = ? AND id = ?
	`, collection, id)

	var raw string
	err := row.Scan(&raw)
	if err == sql.ErrNoRows {
		return docstore.ErrNotFound
	}
	if err != nil {
		return err
	}

	var doc docstore.Document
	err = json.Unmarshal([]byte(raw), &doc)
	if err != nil {
		return err
	}

	now := timezone.Now()
	for k, v := range materialize(data, now) {
		doc[k] = v
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE documents SET data = ?, updated_at = ?
		WHERE collection = ? AND id = ?
	`, string(encoded), now.Unix(), collection, id)
	return err
}

func (s Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = ? AND id = ?
	`, collection, id)
	return err
}

// Query loads the collection and filters client side. Collections here
// are small (hundreds of institutions), so scanning beats maintaining
// per-field indexes on schemaless rows.
func (s Store) Query(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data FROM documents WHERE collection = ? ORDER BY id
	`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []docstore.Document
	for rows.Next() {
		var id, raw string
		err := rows.Scan(&id, &raw)
		if err != nil {
			return nil, err
		}

		var doc docstore.Document
		err = json.Unmarshal([]byte(raw), &doc)
		if err != nil {
			return nil, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
		}
		doc["id"] = id

		if matchesAll(doc, filters) {
			out = append(out, doc)
		}
	}
	return out, rows.Err()
}

func matchesAll(doc docstore.Document, filters []docstore.Filter) bool {
	for _, f := range filters {
		value, ok := doc[f.Field]
		if !ok {
			return false
		}
		if !docstore.Compare(f.Op, value, f.Value) {
			return false
		}
	}
	return true
}

func (s Store) Batch(ctx context.Context, ops []docstore.Op) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := timezone.Now()
	for _, op := range ops {
		if op.Collection == "" {
			continue
		}
		switch op.Type {
		case docstore.OpCreate:
			id := op.ID
			if id == "" {
				id = uuid.NewString()
			}
			encoded, err := json.Marshal(materialize(op.Data, now))
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO documents (collection, id, data, updated_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (collection, id)
				DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
			`, op.Collection, id, string(encoded), now.Unix())
			if err != nil {
				return err
			}
		case docstore.OpUpdate:
			if op.ID == "" {
				continue
			}
			err := updateInTx(ctx, tx, op.Collection, op.ID, op.Data)
			if err != nil {
				return err
			}
		case docstore.OpDelete:
			if op.ID == "" {
				continue
			}
			_, err := tx.ExecContext(ctx, `
				DELETE FROM documents WHERE collection = ? AND id = ?
			`, op.Collection, op.ID)
			if err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}
