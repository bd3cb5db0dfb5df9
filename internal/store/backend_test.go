package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/dibs/internal/db"
	"github.com/erazemk/dibs/internal/model"
)

func TestBackendGetMissingItem(t *testing.T) {
	b := NewBackend(db.NewTestDB(t))

	_, err := b.GetItem(context.Background(), "missing")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBackendLoadKeepsInsertionOrder(t *testing.T) {
	b := NewBackend(db.NewTestDB(t))
	ctx := context.Background()

	var want []string
	for _, name := range []string{"Rug", "Lamp", "Atlas"} {
		item, err := b.CreateItem(ctx, model.WishItem{Name: name, DesireScore: 5})
		if err != nil {
			t.Fatalf("CreateItem %s: %v", name, err)
		}
		want = append(want, item.ID)
	}

	items, err := b.LoadItems(ctx)
	if err != nil {
		t.Fatalf("LoadItems: %v", err)
	}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, item := range items {
		if item.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], item.ID)
		}
	}
}

func TestBackendClaimAndRelease(t *testing.T) {
	b := NewBackend(db.NewTestDB(t))
	ctx := context.Background()
	item, _ := b.CreateItem(ctx, model.WishItem{Name: "Kindle", DesireScore: 8})

	if _, err := b.Claim(ctx, item.ID, "friend-1", time.Now()); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if _, err := b.Claim(ctx, item.ID, "friend-2", time.Now()); !errors.Is(err, model.ErrAlreadyClaimed) {
		t.Errorf("expected ErrAlreadyClaimed, got %v", err)
	}

	released, err := b.Release(ctx, item.ID, "")
	if err != nil || !released {
		t.Errorf("expected an unconditional release, got %v, %v", released, err)
	}
	released, err = b.Release(ctx, item.ID, "")
	if err != nil || released {
		t.Errorf("expected nothing left to release, got %v, %v", released, err)
	}
}
