package sqlitedoc_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/lethanhdat/membank/memory"
	"github.com/lethanhdat/membank/memory/store/sqlitedoc"
)

func openStore(t *testing.T) *sqlitedoc.Store {
	t.Helper()
	store := gt.R1(sqlitedoc.Open(filepath.Join(t.TempDir(), "membank.db"))).NoError(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestDocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	gt.NoError(t, store.Put(ctx, "entities/user-1", []byte(`{"tên":["Lan"]}`)))

	doc := gt.R1(store.Get(ctx, "entities/user-1")).NoError(t)
	gt.Equal(t, string(doc), `{"tên":["Lan"]}`)

	// Put replaces the existing document.
	gt.NoError(t, store.Put(ctx, "entities/user-1", []byte(`{}`)))
	doc = gt.R1(store.Get(ctx, "entities/user-1")).NoError(t)
	gt.Equal(t, string(doc), `{}`)
}

func TestGetMissingKey(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	_, err := store.Get(ctx, "entities/nobody")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, memory.ErrNotFound))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	gt.NoError(t, store.Put(ctx, "k", []byte("v")))
	gt.NoError(t, store.Delete(ctx, "k"))

	_, err := store.Get(ctx, "k")
	gt.True(t, errors.Is(err, memory.ErrNotFound))
}

func TestLogAppendPreservesOrder(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	for i := 0; i < 5; i++ {
		gt.NoError(t, store.Append(ctx, "history/u/s", []byte(fmt.Sprintf("turn-%d", i))))
	}

	entries := gt.R1(store.Scan(ctx, "history/u/s")).NoError(t)
	gt.A(t, entries).Length(5)
	for i, entry := range entries {
		gt.Equal(t, string(entry), fmt.Sprintf("turn-%d", i))
	}
}

func TestLogScanMissingKeyIsEmpty(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	entries := gt.R1(store.Scan(ctx, "history/u/none")).NoError(t)
	gt.A(t, entries).Length(0)
}

func TestLogClearIsScopedToKey(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	gt.NoError(t, store.Append(ctx, "history/u/morning", []byte("a")))
	gt.NoError(t, store.Append(ctx, "history/u/evening", []byte("b")))

	gt.NoError(t, store.Clear(ctx, "history/u/morning"))

	gt.A(t, gt.R1(store.Scan(ctx, "history/u/morning")).NoError(t)).Length(0)
	gt.A(t, gt.R1(store.Scan(ctx, "history/u/evening")).NoError(t)).Length(1)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "membank.db")

	store := gt.R1(sqlitedoc.Open(path)).NoError(t)
	gt.NoError(t, store.Put(ctx, "k", []byte("v")))
	gt.NoError(t, store.Append(ctx, "log", []byte("e")))
	gt.NoError(t, store.Close())

	reopened := gt.R1(sqlitedoc.Open(path)).NoError(t)
	t.Cleanup(func() { _ = reopened.Close() })

	doc := gt.R1(reopened.Get(ctx, "k")).NoError(t)
	gt.Equal(t, string(doc), "v")
	gt.A(t, gt.R1(reopened.Scan(ctx, "log")).NoError(t)).Length(1)
}
