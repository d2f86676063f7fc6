package testutil

import (
	"fmt"
	"testing"

	"uniadmit-backend/docstore/sqlitestore"
	"uniadmit-backend/lib/telemetry"
)

type StoreParams struct {
	Name string
	// if unspecified, it will use `:memory:`
	DbPath string
}

// SetupStore provisions an in-memory sqlite document store plus
// telemetry for a test, returning the store and a cleanup func.
func SetupStore(t testing.TB, params StoreParams) (sqlitestore.Store, func()) {
	cleanup := telemetry.SetupForTesting(t, fmt.Sprintf("test:%s", params.Name))

	dbpath := ":memory:"
	if params.DbPath != "" {
		dbpath = params.DbPath
	}
	store, err := sqlitestore.Open(dbpath)
	if err != nil {
		t.Fatal(err)
	}

	return store, func() {
		store.Close()
		cleanup()
	}
}
