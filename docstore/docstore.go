// Package docstore defines the document-collection contract the
// scraping pipeline persists into. Documents are schemaless string-keyed
// maps; unknown fields pass through untouched so record shapes can grow
// without migrations.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Document is a single stored record. Implementations include the
// document's identifier under the "id" key when returning query results.
type Document = map[string]any

// ServerTimestamp is a sentinel: any field set to it is replaced with
// the store's current time (RFC 3339) when the write executes.
type serverTimestamp struct{}

var ServerTimestamp = serverTimestamp{}

var ErrNotFound = errors.New("document not found")

// QuotaError marks rate-limit failures, which are the only class of
// storage error worth retrying.
type QuotaError struct {
	Err error
}

func (e QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded: %v", e.Err)
}

func (e QuotaError) Unwrap() error {
	return e.Err
}

// IsQuota reports whether an error is a rate-limit signal, either a
// wrapped QuotaError or a backend message carrying the usual markers.
func IsQuota(err error) bool {
	if err == nil {
		return false
	}
	var q QuotaError
	if errors.As(err, &q) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota exceeded")
}

// Filter is a single equality/range predicate on a top-level field.
// Supported operators: ==, >, >=, <, <=.
type Filter struct {
	Field string
	Op    string
	Value any
}

type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// Op is one entry in a batch write.
type Op struct {
	Type       OpType
	Collection string
	ID         string
	Data       Document
}

// Store is the document-store collaborator. A real implementation
// (sqlitestore) and an in-memory one (memstore) satisfy the same
// contract; the cache/retry wrapper (cached) composes over either.
type Store interface {
	// Create writes a document. An empty id means the store generates
	// one. Creating with an explicit id overwrites any existing
	// document under that id (set semantics).
	Create(ctx context.Context, collection string, data Document, id string) (string, error)
	// Get returns ErrNotFound when no document exists under id.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Update merges the given fields into an existing document.
	Update(ctx context.Context, collection, id string, data Document) error
	Delete(ctx context.Context, collection, id string) error
	// Query returns the documents matching every filter; no filters
	// means the whole collection. Each result carries its "id".
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	// Batch applies the ops in order, atomically where the backend
	// supports it.
	Batch(ctx context.Context, ops []Op) error
}

// Compare evaluates a filter operator against two values. Strings
// compare lexicographically, numbers numerically; mismatched or
// unsupported types never match.
func Compare(op string, a, b any) bool {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return false
		}
		return compareOrdered(op, strings.Compare(as, bs))
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return compareOrdered(op, -1)
		case af > bf:
			return compareOrdered(op, 1)
		default:
			return compareOrdered(op, 0)
		}
	}

	// documents may hold uncomparable values (maps, slices), which
	// makes == a panic hazard
	if op == "==" {
		return reflect.DeepEqual(a, b)
	}
	return false
}

func compareOrdered(op string, cmp int) bool {
	switch op {
	case "==":
		return cmp == 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
