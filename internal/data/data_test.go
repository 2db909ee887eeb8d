package data

import (
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/unimind/platform/internal/store"
)

// newTestStore backs the domain stores with miniredis so every test runs
// against the real Redis code paths without an external server.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rs, err := store.NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	t.Cleanup(func() { _ = rs.Close() })
	return store.New(rs, rs)
}
