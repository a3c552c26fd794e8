package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"collectioncore/internal/core"
	"collectioncore/pkg/domain"
)

func TestStateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collection.db")
	ctx := context.Background()

	store, err := NewStore(path, core.NewMemoryStore(nil))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var saved domain.TrackedEntity
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		saved, err = tx.CreateEntity(domain.TrackedEntity{Kind: domain.KindPlasmid, ID: tx.NextEntityID(domain.KindPlasmid), Name: "pDB-1"})
		return err
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, core.NewMemoryStore(nil))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, ok := reopened.GetEntity(saved.Ref())
	if !ok || got.Name != "pDB-1" {
		t.Fatalf("entity missing after reopen: %+v", got)
	}
	snaps := reopened.History(saved.Ref())
	if len(snaps) != 1 || snaps[0].HistoryType != domain.HistoryCreated {
		t.Fatalf("history missing after reopen: %+v", snaps)
	}
}

func TestFailedTransactionDoesNotPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collection.db")
	ctx := context.Background()

	store, err := NewStore(path, core.NewMemoryStore(nil))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateEntity(domain.TrackedEntity{Kind: domain.KindPlasmid, ID: 1, Name: "ghost"}); err != nil {
			return err
		}
		return context.Canceled
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := store.GetEntity(domain.EntityRef{Kind: domain.KindPlasmid, ID: 1}); ok {
		t.Fatalf("aborted entity persisted")
	}
}
