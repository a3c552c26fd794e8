package blob

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"collectioncore/pkg/domain"
)

func drivers(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	return map[string]Store{
		"fs":     fsStore,
		"memory": NewMemory(),
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	for name, store := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			info, err := store.Put(ctx, "collection/plasmid/dna/p1.dna", strings.NewReader("ATGC"), PutOptions{
				ContentType: "application/octet-stream",
				Metadata:    map[string]string{"entity": "plasmid/1"},
			})
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			if info.Size != 4 || info.ETag == "" {
				t.Fatalf("unexpected info %+v", info)
			}

			got, rc, err := store.Get(ctx, "collection/plasmid/dna/p1.dna")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			data, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil || string(data) != "ATGC" {
				t.Fatalf("read back %q, %v", data, err)
			}
			if got.ContentType != "application/octet-stream" {
				t.Fatalf("content type lost: %+v", got)
			}
			if got.Metadata["entity"] != "plasmid/1" {
				t.Fatalf("metadata lost: %+v", got)
			}
		})
	}
}

func TestPutRefusesOverwrite(t *testing.T) {
	for name, store := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Put(ctx, "k", strings.NewReader("a"), PutOptions{}); err != nil {
				t.Fatalf("first put: %v", err)
			}
			if _, err := store.Put(ctx, "k", strings.NewReader("b"), PutOptions{}); err == nil {
				t.Fatalf("overwrite accepted")
			}
		})
	}
}

func TestDeleteAndList(t *testing.T) {
	for name, store := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			keys := []string{
				"collection/plasmid/dna/p2.dna",
				"collection/plasmid/dna/p1.dna",
				"collection/plasmid/png/p1.png",
			}
			for _, k := range keys {
				if _, err := store.Put(ctx, k, strings.NewReader("x"), PutOptions{}); err != nil {
					t.Fatalf("put %s: %v", k, err)
				}
			}

			infos, err := store.List(ctx, "collection/plasmid/dna/")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(infos) != 2 || infos[0].Key > infos[1].Key {
				t.Fatalf("unexpected listing %+v", infos)
			}

			ok, err := store.Delete(ctx, "collection/plasmid/dna/p1.dna")
			if err != nil || !ok {
				t.Fatalf("delete: %v %v", ok, err)
			}
			ok, err = store.Delete(ctx, "collection/plasmid/dna/p1.dna")
			if err != nil || ok {
				t.Fatalf("second delete should report missing: %v %v", ok, err)
			}
		})
	}
}

func TestKeySanitization(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	for _, key := range []string{"", "/abs/path", "../escape", "a/../../b"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Errorf("key %q accepted", key)
		}
	}
}

func TestArtifactKey(t *testing.T) {
	cfg := domain.KindConfig{Kind: domain.KindPlasmid, Abbreviation: "p"}
	at := time.Date(2024, 6, 2, 15, 4, 5, 0, time.UTC)
	got := ArtifactKey(cfg, "LAB", 123, ArtifactMap, at, ".dna")
	want := "collection/plasmid/dna/pLAB123_20240602_150405.dna"
	if got != want {
		t.Fatalf("ArtifactKey = %q, want %q", got, want)
	}
	if ArtifactPrefix(domain.KindPlasmid, ArtifactPreview) != "collection/plasmid/png/" {
		t.Fatalf("unexpected prefix")
	}
}
