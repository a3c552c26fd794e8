package export

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"collectioncore/internal/core"
	"collectioncore/pkg/domain"
)

func exportFixture(t *testing.T) (domain.KindConfig, *core.MemoryStore, []domain.TrackedEntity) {
	t.Helper()
	registry, err := core.DefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	cfg, _ := registry.Config(domain.KindPlasmid)

	store := core.NewMemoryStore(nil)
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		u, _ := tx.CreateUser(domain.User{Email: "pi@lab.example", Name: "The PI", IsPI: true})
		p, _ := tx.CreateProject(domain.Project{ShortTitle: "PRJ1"})
		_, err := tx.CreateEntity(domain.TrackedEntity{
			ID:   1,
			Kind: domain.KindPlasmid,
			Name: "pLAB-1",
			Attributes: map[string]string{
				"selection": "ampicillin",
			},
			OwnershipInfo: domain.OwnershipInfo{CreatedByID: u.ID},
			FormZInfo:     domain.FormZInfo{ProjectIDs: []int64{p.ID}},
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return cfg, store, store.ListEntities(domain.KindPlasmid)
}

func TestWriteTSV(t *testing.T) {
	cfg, store, entities := exportFixture(t)

	var buf bytes.Buffer
	err := store.View(context.Background(), func(view domain.TransactionView) error {
		return WriteTSV(&buf, view, cfg, entities)
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	header := strings.Split(lines[0], "\t")
	if header[0] != "ID" || header[1] != "Name" {
		t.Fatalf("unexpected header %v", header)
	}
	row := strings.Split(lines[1], "\t")
	if row[0] != "1" || row[1] != "pLAB-1" {
		t.Fatalf("unexpected row %v", row)
	}
	if !strings.Contains(lines[1], "ampicillin") {
		t.Fatalf("attribute missing from row: %s", lines[1])
	}
	if !strings.Contains(lines[1], "The PI") {
		t.Fatalf("creator not resolved to a name: %s", lines[1])
	}
	if !strings.Contains(lines[1], "PRJ1") {
		t.Fatalf("project not resolved to its short title: %s", lines[1])
	}
}

func TestWriteXLSX(t *testing.T) {
	cfg, store, entities := exportFixture(t)

	var buf bytes.Buffer
	err := store.View(context.Background(), func(view domain.TransactionView) error {
		return WriteXLSX(&buf, view, cfg, entities)
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	sheet := string(cfg.Kind)
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	if rows[0][0] != "ID" || rows[1][1] != "pLAB-1" {
		t.Fatalf("unexpected cells %v", rows)
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	cfg, store, entities := exportFixture(t)
	err := store.View(context.Background(), func(view domain.TransactionView) error {
		return Write(&bytes.Buffer{}, Format("csvish"), view, cfg, entities)
	})
	if err == nil {
		t.Fatalf("unknown format accepted")
	}
}
