// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by collectioncore.
package domain

import "time"

// EntityKind identifies the collection a tracked record belongs to.
type EntityKind string

// Supported collection identifiers used in references, history buckets, and
// kind configuration.
const (
	// KindPlasmid identifies a plasmid record.
	KindPlasmid EntityKind = "plasmid"
	// KindEColiStrain identifies an E. coli strain record.
	KindEColiStrain EntityKind = "e_coli_strain"
	// KindSaCerevisiaeStrain identifies a S. cerevisiae strain record.
	KindSaCerevisiaeStrain EntityKind = "sa_cerevisiae_strain"
	// KindScPombeStrain identifies a S. pombe strain record.
	KindScPombeStrain EntityKind = "sc_pombe_strain"
	// KindWormStrain identifies a C. elegans strain record.
	KindWormStrain EntityKind = "worm_strain"
	// KindCellLine identifies a mammalian cell line record.
	KindCellLine EntityKind = "cell_line"
	// KindAntibody identifies an antibody record.
	KindAntibody EntityKind = "antibody"
	// KindOligo identifies an oligonucleotide record.
	KindOligo EntityKind = "oligo"
	// KindSiRNA identifies an siRNA record.
	KindSiRNA EntityKind = "sirna"
	// KindVirus identifies a virus record.
	KindVirus EntityKind = "virus"
	// KindInhibitor identifies an inhibitor record.
	KindInhibitor EntityKind = "inhibitor"
)

// EntityRef is a tagged reference to a tracked entity of any collection. It
// replaces runtime content-type lookups with an explicit kind + numeric id.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   int64      `json:"id"`
}

// IsZero reports whether the reference points at nothing.
func (r EntityRef) IsZero() bool { return r.Kind == "" && r.ID == 0 }

// User is a lab member account. Only the attributes consulted by the
// approval workflow and audit trail are modeled here.
type User struct {
	ID                int64  `json:"id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	IsPI              bool   `json:"is_pi"`
	IsApprovalManager bool   `json:"is_approval_manager"`
}

// Project is a biosafety (FormZ) project. Entities link to projects; a PI
// who leads a linked project can auto-approve saves.
type Project struct {
	ID         int64   `json:"id"`
	ShortTitle string  `json:"short_title"`
	LeaderIDs  []int64 `json:"leader_ids"`
}

// LedBy reports whether the given user leads the project.
func (p Project) LedBy(userID int64) bool {
	for _, id := range p.LeaderIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// OwnershipInfo carries creation and modification bookkeeping shared by all
// tracked entities.
type OwnershipInfo struct {
	CreatedByID   int64      `json:"created_by_id"`
	CreatedAt     time.Time  `json:"created_date_time"`
	LastChangedAt time.Time  `json:"last_changed_date_time"`
	DestroyedDate *time.Time `json:"destroyed_date,omitempty"`
}

// ApprovalInfo carries the PI-approval workflow state. The two booleans are
// tri-state: nil means the corresponding save has never happened.
type ApprovalInfo struct {
	CreatedApprovalByPI     *bool      `json:"created_approval_by_pi"`
	LastChangedApprovalByPI *bool      `json:"last_changed_approval_by_pi"`
	ApprovalUserID          *int64     `json:"approval_user_id,omitempty"`
	ApprovalByPIAt          *time.Time `json:"approval_by_pi_date_time,omitempty"`
}

// Approved resolves the workflow state for display: the last-changed flag
// wins when set, otherwise the created flag.
func (a ApprovalInfo) Approved() bool {
	if a.LastChangedApprovalByPI != nil {
		return *a.LastChangedApprovalByPI
	}
	return a.CreatedApprovalByPI != nil && *a.CreatedApprovalByPI
}

// FormZInfo carries biosafety documentation references.
type FormZInfo struct {
	ProjectIDs         []int64 `json:"formz_project_ids"`
	GenTechMethodIDs   []int64 `json:"formz_gentech_method_ids"`
	SequenceFeatureIDs []int64 `json:"sequence_feature_ids"`
	RiskGroup          int     `json:"formz_risk_group,omitempty"`
}

// LocationRefs carries the physical storage assignments of an entity.
type LocationRefs struct {
	LocationItemIDs []int64 `json:"location_item_ids"`
}

// MapInfo carries the DNA map artifacts attached to an entity. The PNG and
// GenBank paths are derived from the primary map and become stale whenever
// it changes.
type MapInfo struct {
	MapPath       string `json:"map_path,omitempty"`
	MapPNGPath    string `json:"map_png_path,omitempty"`
	MapGBKPath    string `json:"map_gbk_path,omitempty"`
	InfoSheetPath string `json:"info_sheet_path,omitempty"`
}

// HasMap reports whether a primary sequence map is attached.
func (m MapInfo) HasMap() bool { return m.MapPath != "" }

// TrackedEntity is a biological-material record of any collection. Instead
// of the deep mixin chains of the predecessor system it composes named
// capability structs; behavior dispatches on Kind through the registry.
//
// IDs are manually assigned as max(existing)+1 per kind and are dense and
// monotonic within a collection. Records are never physically deleted in the
// common path; retirement happens through DestroyedDate.
type TrackedEntity struct {
	ID   int64      `json:"id"`
	Kind EntityKind `json:"kind"`
	Name string     `json:"name"`

	// Attributes holds the collection-specific scalar fields (selection,
	// use, passage number, ...) keyed by field name.
	Attributes map[string]string `json:"attributes,omitempty"`

	OwnershipInfo
	ApprovalInfo
	FormZInfo
	LocationRefs
	MapInfo

	// PlasmidsInStock is derived from related strain/cell-line records after
	// their own saves complete; see the history engine's deferred correction.
	PlasmidsInStock []int64 `json:"plasmids_in_stock,omitempty"`
}

// Ref returns the tagged reference for the entity.
func (e TrackedEntity) Ref() EntityRef { return EntityRef{Kind: e.Kind, ID: e.ID} }

// Clone returns a deep copy safe to hand across transaction boundaries.
func (e TrackedEntity) Clone() TrackedEntity {
	cp := e
	if e.Attributes != nil {
		cp.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			cp.Attributes[k] = v
		}
	}
	cp.ProjectIDs = append([]int64(nil), e.ProjectIDs...)
	cp.GenTechMethodIDs = append([]int64(nil), e.GenTechMethodIDs...)
	cp.SequenceFeatureIDs = append([]int64(nil), e.SequenceFeatureIDs...)
	cp.LocationItemIDs = append([]int64(nil), e.LocationItemIDs...)
	cp.PlasmidsInStock = append([]int64(nil), e.PlasmidsInStock...)
	if e.DestroyedDate != nil {
		d := *e.DestroyedDate
		cp.DestroyedDate = &d
	}
	if e.CreatedApprovalByPI != nil {
		b := *e.CreatedApprovalByPI
		cp.CreatedApprovalByPI = &b
	}
	if e.LastChangedApprovalByPI != nil {
		b := *e.LastChangedApprovalByPI
		cp.LastChangedApprovalByPI = &b
	}
	if e.ApprovalUserID != nil {
		id := *e.ApprovalUserID
		cp.ApprovalUserID = &id
	}
	if e.ApprovalByPIAt != nil {
		t := *e.ApprovalByPIAt
		cp.ApprovalByPIAt = &t
	}
	return cp
}

// EpisomalPlasmidLink joins a cell line to an episomal plasmid. Its save
// computes a destruction date when none is set: two days out for S2 work,
// otherwise a random offset within the regulatory retention window.
type EpisomalPlasmidLink struct {
	ID            int64      `json:"id"`
	CellLineID    int64      `json:"cell_line_id"`
	PlasmidID     int64      `json:"plasmid_id"`
	ProjectIDs    []int64    `json:"formz_project_ids"`
	S2Work        bool       `json:"s2_work_episomal_plasmid"`
	CreatedDate   *time.Time `json:"created_date,omitempty"`
	DestroyedDate *time.Time `json:"destroyed_date,omitempty"`
}

// Oligo is the subset of an oligo record used by the map pipeline's primer
// import: a sequence plus its dense id.
type Oligo struct {
	ID       int64  `json:"id"`
	Sequence string `json:"sequence"`
}
