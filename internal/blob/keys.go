package blob

import (
	"fmt"
	"time"

	"collectioncore/pkg/domain"
)

// Artifact directories under a collection's key prefix.
const (
	ArtifactMap       = "dna"
	ArtifactPreview   = "png"
	ArtifactGenBank   = "gbk"
	ArtifactInfoSheet = "info"
)

// ArtifactKey builds the canonical key of an entity artifact:
// collection/<kind>/<artifact>/<abbrev><lab><id>_<timestamp><ext>. Uploaded
// files are renamed to this scheme right after the record's first save.
func ArtifactKey(cfg domain.KindConfig, lab string, id int64, artifact string, at time.Time, ext string) string {
	return fmt.Sprintf("collection/%s/%s/%s%s%d_%s%s",
		cfg.Kind, artifact, cfg.Abbreviation, lab, id, at.UTC().Format("20060102_150405"), ext)
}

// ArtifactPrefix is the listing prefix of one artifact class of a collection.
func ArtifactPrefix(kind domain.EntityKind, artifact string) string {
	return fmt.Sprintf("collection/%s/%s/", kind, artifact)
}
