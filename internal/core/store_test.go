package core

import (
	"context"
	"testing"
	"time"

	"collectioncore/pkg/domain"
)

func createPlasmid(t *testing.T, store *MemoryStore, name string) domain.TrackedEntity {
	t.Helper()
	var saved domain.TrackedEntity
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		saved, err = tx.CreateEntity(domain.TrackedEntity{
			ID:   tx.NextEntityID(domain.KindPlasmid),
			Kind: domain.KindPlasmid,
			Name: name,
		})
		return err
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return saved
}

func TestHistoryDatesStrictlyIncrease(t *testing.T) {
	store := NewMemoryStore(nil)
	// Frozen clock: every snapshot would collide without the bump.
	frozen := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return frozen })

	saved := createPlasmid(t, store, "pH-1")
	for i := 0; i < 5; i++ {
		_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			_, err := tx.UpdateEntity(saved.Ref(), func(e *domain.TrackedEntity) error {
				e.Attributes = map[string]string{"selection": "amp"}
				return nil
			})
			return err
		})
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	snaps := store.History(saved.Ref())
	if len(snaps) != 6 {
		t.Fatalf("expected 6 snapshots, got %d", len(snaps))
	}
	// Newest first; walk oldest to newest.
	var createdCount int
	for i := len(snaps) - 1; i >= 0; i-- {
		if snaps[i].HistoryType == domain.HistoryCreated {
			createdCount++
		}
		if i < len(snaps)-1 && !snaps[i].HistoryDate.After(snaps[i+1].HistoryDate) {
			t.Fatalf("history dates not strictly increasing: %v then %v", snaps[i+1].HistoryDate, snaps[i].HistoryDate)
		}
	}
	if createdCount != 1 {
		t.Fatalf("expected exactly one created snapshot, got %d", createdCount)
	}
	if snaps[len(snaps)-1].HistoryType != domain.HistoryCreated {
		t.Fatalf("earliest snapshot must be the creation")
	}
}

func TestNextEntityIDIsDensePerKind(t *testing.T) {
	store := NewMemoryStore(nil)
	a := createPlasmid(t, store, "p-1")
	b := createPlasmid(t, store, "p-2")
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("ids not dense: %d, %d", a.ID, b.ID)
	}

	var strainID int64
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		strainID = tx.NextEntityID(domain.KindEColiStrain)
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if strainID != 1 {
		t.Fatalf("kinds must number independently, got %d", strainID)
	}
}

func TestFailedTransactionDiscardsChanges(t *testing.T) {
	store := NewMemoryStore(nil)
	saved := createPlasmid(t, store, "pT-1")

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.UpdateEntity(saved.Ref(), func(e *domain.TrackedEntity) error {
			e.Name = "mutated"
			return nil
		}); err != nil {
			return err
		}
		return context.Canceled
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	got, _ := store.GetEntity(saved.Ref())
	if got.Name != "pT-1" {
		t.Fatalf("rolled-back change leaked: %s", got.Name)
	}
	if snaps := store.History(saved.Ref()); len(snaps) != 1 {
		t.Fatalf("rolled-back snapshot leaked: %d", len(snaps))
	}
}

func TestDeleteEntityKeepsHistory(t *testing.T) {
	store := NewMemoryStore(nil)
	saved := createPlasmid(t, store, "pDel-1")

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteEntity(saved.Ref())
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.GetEntity(saved.Ref()); ok {
		t.Fatalf("entity still present")
	}
	snaps := store.History(saved.Ref())
	if len(snaps) != 2 || snaps[0].HistoryType != domain.HistoryDeleted {
		t.Fatalf("expected deletion snapshot, got %+v", snaps)
	}
}

func TestUpdateEntityNoHistorySideChannel(t *testing.T) {
	store := NewMemoryStore(nil)
	clock := newTestClock()
	store.SetNowFunc(clock.Now)
	saved := createPlasmid(t, store, "pS-1")
	clock.Advance(time.Hour)

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateEntityNoHistory(saved.Ref(), func(e *domain.TrackedEntity) error {
			e.Name = "corrected"
			return nil
		}, true)
		return err
	})
	if err != nil {
		t.Fatalf("side channel: %v", err)
	}
	got, _ := store.GetEntity(saved.Ref())
	if got.Name != "corrected" {
		t.Fatalf("correction not applied")
	}
	if !got.LastChangedAt.Equal(saved.LastChangedAt) {
		t.Fatalf("preserved timestamp was touched")
	}
	if snaps := store.History(saved.Ref()); len(snaps) != 1 {
		t.Fatalf("side channel wrote a snapshot")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	store := NewMemoryStore(nil)
	saved := createPlasmid(t, store, "pR-1")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateUser(domain.User{Email: "u@lab.example"}); err != nil {
			return err
		}
		_, err := tx.CreateApproval(domain.ApprovalRecord{
			Entity:       saved.Ref(),
			ActivityType: domain.ActivityCreated,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	restored := NewMemoryStore(nil)
	if err := restored.ImportState(store.ExportState()); err != nil {
		t.Fatalf("import: %v", err)
	}
	got, ok := restored.GetEntity(saved.Ref())
	if !ok || got.Name != "pR-1" {
		t.Fatalf("entity missing after import")
	}
	if len(restored.History(saved.Ref())) != 1 {
		t.Fatalf("history missing after import")
	}
	if len(restored.Approvals(saved.Ref())) != 1 {
		t.Fatalf("approvals missing after import")
	}

	// Sequences survive: the next approval id continues after the import.
	var rec domain.ApprovalRecord
	_, err = restored.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		rec, err = tx.CreateApproval(domain.ApprovalRecord{Entity: saved.Ref(), ActivityType: domain.ActivityChanged})
		return err
	})
	if err != nil {
		t.Fatalf("create approval: %v", err)
	}
	if rec.ID != 2 {
		t.Fatalf("approval sequence reset, got id %d", rec.ID)
	}
}
