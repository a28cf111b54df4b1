package memdoc_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/lethanhdat/membank/memory"
	"github.com/lethanhdat/membank/memory/store/memdoc"
)

func TestDocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memdoc.New()

	gt.NoError(t, store.Put(ctx, "k", []byte("v")))
	doc := gt.R1(store.Get(ctx, "k")).NoError(t)
	gt.Equal(t, string(doc), "v")

	_, err := store.Get(ctx, "missing")
	gt.True(t, errors.Is(err, memory.ErrNotFound))

	gt.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	gt.True(t, errors.Is(err, memory.ErrNotFound))
}

func TestStoredBytesAreCopied(t *testing.T) {
	ctx := context.Background()
	store := memdoc.New()

	buf := []byte("original")
	gt.NoError(t, store.Put(ctx, "k", buf))
	buf[0] = 'X'

	doc := gt.R1(store.Get(ctx, "k")).NoError(t)
	gt.Equal(t, string(doc), "original")
}

func TestLogOrderAndClear(t *testing.T) {
	ctx := context.Background()
	store := memdoc.New()

	gt.NoError(t, store.Append(ctx, "log", []byte("a")))
	gt.NoError(t, store.Append(ctx, "log", []byte("b")))

	entries := gt.R1(store.Scan(ctx, "log")).NoError(t)
	gt.A(t, entries).Length(2)
	gt.Equal(t, string(entries[0]), "a")
	gt.Equal(t, string(entries[1]), "b")

	gt.NoError(t, store.Clear(ctx, "log"))
	gt.A(t, gt.R1(store.Scan(ctx, "log")).NoError(t)).Length(0)
}
