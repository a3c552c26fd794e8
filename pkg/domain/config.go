package domain

import "fmt"

// FieldType drives diff display and export formatting for a field.
type FieldType string

// Field types understood by the history diff engine and the exporter.
const (
	FieldText     FieldType = "text"
	FieldDate     FieldType = "date"
	FieldBool     FieldType = "bool"
	FieldFile     FieldType = "file"
	FieldRef      FieldType = "ref"
	FieldRefArray FieldType = "ref_array"
)

// Reference targets outside the tracked collections, usable in a
// FieldDescriptor's RefTarget alongside EntityKind values.
const (
	RefTargetUser    = "user"
	RefTargetProject = "project"
)

// FieldDescriptor describes one exportable, diffable field of a tracked
// entity. Descriptors replace the predecessor's on-the-fly serializer
// synthesis: exporters and the diff engine walk an explicit list instead of
// reflecting over the record.
type FieldDescriptor struct {
	Name  string
	Label string
	Type  FieldType

	// String extracts the raw comparable value. Unset for ref_array fields.
	String func(e *TrackedEntity) string
	// IDs extracts referenced ids for ref_array fields.
	IDs func(e *TrackedEntity) []int64
	// RefTarget names what IDs (or a ref field's value) point at: an
	// EntityKind string, RefTargetUser, or RefTargetProject.
	RefTarget string
}

// KindConfig is the startup configuration of one collection: explicit
// per-kind structs supplied at construction time rather than class-level
// mutable dictionaries.
type KindConfig struct {
	Kind EntityKind
	// Abbreviation prefixes lab identifiers in file names and map titles,
	// e.g. "p" for plasmids yields pLAB123.
	Abbreviation string
	// StorageRequiresSpecies names the species the collection's storage
	// definition must declare; empty means species must stay unset.
	StorageRequiresSpecies string
	// HistoryIgnoreFields are excluded from history diffs (approval
	// bookkeeping, derived previews, ...).
	HistoryIgnoreFields []string
	// Fields lists the diffable/exportable fields in display order.
	Fields []FieldDescriptor
}

// IgnoresField reports whether the field is excluded from history diffs.
func (c KindConfig) IgnoresField(name string) bool {
	for _, f := range c.HistoryIgnoreFields {
		if f == name {
			return true
		}
	}
	return false
}

// Registry maps entity kinds to their configuration. It is assembled once
// at startup and treated as immutable afterwards.
type Registry struct {
	configs map[EntityKind]KindConfig
}

// NewRegistry builds a registry from the given configurations.
func NewRegistry(configs ...KindConfig) (*Registry, error) {
	r := &Registry{configs: make(map[EntityKind]KindConfig, len(configs))}
	for _, cfg := range configs {
		if cfg.Kind == "" {
			return nil, fmt.Errorf("kind config without kind")
		}
		if _, ok := r.configs[cfg.Kind]; ok {
			return nil, fmt.Errorf("duplicate kind config %s", cfg.Kind)
		}
		r.configs[cfg.Kind] = cfg
	}
	return r, nil
}

// Config returns the configuration for a kind.
func (r *Registry) Config(kind EntityKind) (KindConfig, bool) {
	cfg, ok := r.configs[kind]
	return cfg, ok
}

// Kinds returns all registered kinds.
func (r *Registry) Kinds() []EntityKind {
	out := make([]EntityKind, 0, len(r.configs))
	for k := range r.configs {
		out = append(out, k)
	}
	return out
}
