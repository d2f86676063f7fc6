// Package memstore is an in-memory Store used by tests. It mirrors
// sqlitestore's semantics (set-on-create, merge-on-update, client-side
// filtering) without touching disk, and can be told to fail in
// controlled ways.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"uniadmit-backend/docstore"
	"uniadmit-backend/lib/timezone"

	"github.com/google/uuid"
)

type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]docstore.Document

	// FailNext makes the next n operations return the given error,
	// which lets tests exercise quota retry paths.
	failuresLeft int
	failWith     error
}

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		collections: map[string]map[string]docstore.Document{},
	}
}

func (s *Store) FailNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failuresLeft = n
	s.failWith = err
}

func (s *Store) takeFailure() error {
	if s.failuresLeft > 0 {
		s.failuresLeft--
		return s.failWith
	}
	return nil
}

func (s *Store) collection(name string) map[string]docstore.Document {
	col, ok := s.collections[name]
	if !ok {
		col = map[string]docstore.Document{}
		s.collections[name] = col
	}
	return col
}

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

func clone(doc docstore.Document) docstore.Document {
	out := make(docstore.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func (s *Store) Create(ctx context.Context, collection string, data docstore.Document, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return "", err
	}

	if id == "" {
		id = uuid.NewString()
	}
	s.collection(collection)[id] = materialize(data, timezone.Now())
	return id, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	doc, ok := s.collection(collection)[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	out := clone(doc)
	out["id"] = id
	return out, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, data docstore.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}

	doc, ok := s.collection(collection)[id]
	if !ok {
		return docstore.ErrNotFound
	}
	for k, v := range materialize(data, timezone.Now()) {
		doc[k] = v
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}

	delete(s.collection(collection), id)
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	col := s.collection(collection)
	ids := make([]string, 0, len(col))
	for id := range col {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []docstore.Document
	for _, id := range ids {
		doc := clone(col[id])
		doc["id"] = id
		if matchesAll(doc, filters) {
			out = append(out, doc)
		}
	}
	return out, nil
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

func (s *Store) Batch(ctx context.Context, ops []docstore.Op) error {
	for _, op := range ops {
		if op.Collection == "" {
			continue
		}
		var err error
		switch op.Type {
		case docstore.OpCreate:
			_, err = s.Create(ctx, op.Collection, op.Data, op.ID)
		case docstore.OpUpdate:
			if op.ID != "" {
				err = s.Update(ctx, op.Collection, op.ID, op.Data)
			}
		case docstore.OpDelete:
			if op.ID != "" {
				err = s.Delete(ctx, op.Collection, op.ID)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}
