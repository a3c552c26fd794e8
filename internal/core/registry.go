package core

import (
	"strconv"
	"strings"
	"time"

	"collectioncore/pkg/domain"
)

// approvalBookkeepingFields are maintained by the state machine and derived
// preview paths; they never appear in history diffs.
var approvalBookkeepingFields = []string{
	"last_changed_date_time",
	"created_approval_by_pi",
	"last_changed_approval_by_pi",
	"approval_user_id",
	"approval_by_pi_date_time",
	"map_png_path",
}

func textField(name, label string) domain.FieldDescriptor {
	return domain.FieldDescriptor{
		Name:  name,
		Label: label,
		Type:  domain.FieldText,
		String: func(e *domain.TrackedEntity) string {
			return e.Attributes[name]
		},
	}
}

func nameField() domain.FieldDescriptor {
	return domain.FieldDescriptor{
		Name:   "name",
		Label:  "Name",
		Type:   domain.FieldText,
		String: func(e *domain.TrackedEntity) string { return e.Name },
	}
}

func fileField(name, label string, path func(*domain.TrackedEntity) string) domain.FieldDescriptor {
	return domain.FieldDescriptor{Name: name, Label: label, Type: domain.FieldFile, String: path}
}

func createdByField() domain.FieldDescriptor {
	return domain.FieldDescriptor{
		Name:      "created_by_id",
		Label:     "Created by",
		Type:      domain.FieldRef,
		RefTarget: domain.RefTargetUser,
		String: func(e *domain.TrackedEntity) string {
			return strconv.FormatInt(e.CreatedByID, 10)
		},
	}
}

func destroyedDateField() domain.FieldDescriptor {
	return domain.FieldDescriptor{
		Name:  "destroyed_date",
		Label: "Destroyed",
		Type:  domain.FieldDate,
		String: func(e *domain.TrackedEntity) string {
			if e.DestroyedDate == nil {
				return ""
			}
			return e.DestroyedDate.Format(time.DateOnly)
		},
	}
}

func projectArrayField() domain.FieldDescriptor {
	return domain.FieldDescriptor{
		Name:      "formz_project_ids",
		Label:     "FormZ projects",
		Type:      domain.FieldRefArray,
		RefTarget: domain.RefTargetProject,
		IDs: func(e *domain.TrackedEntity) []int64 {
			return e.ProjectIDs
		},
	}
}

func stockedPlasmidsField() domain.FieldDescriptor {
	return domain.FieldDescriptor{
		Name:      "plasmids_in_stock",
		Label:     "Plasmids in stock",
		Type:      domain.FieldRefArray,
		RefTarget: string(domain.KindPlasmid),
		IDs: func(e *domain.TrackedEntity) []int64 {
			return e.PlasmidsInStock
		},
	}
}

func mapFields() []domain.FieldDescriptor {
	return []domain.FieldDescriptor{
		fileField("map_path", "Map", func(e *domain.TrackedEntity) string { return e.MapPath }),
		fileField("map_gbk_path", "Map (GenBank)", func(e *domain.TrackedEntity) string { return e.MapGBKPath }),
		fileField("info_sheet_path", "Info sheet", func(e *domain.TrackedEntity) string { return e.InfoSheetPath }),
	}
}

func baseFields(extra ...domain.FieldDescriptor) []domain.FieldDescriptor {
	fields := []domain.FieldDescriptor{nameField()}
	fields = append(fields, extra...)
	fields = append(fields, createdByField(), projectArrayField(), destroyedDateField())
	return fields
}

// DefaultRegistry assembles the configuration of all supported collections.
func DefaultRegistry() (*domain.Registry, error) {
	return domain.NewRegistry(
		domain.KindConfig{
			Kind:                   domain.KindPlasmid,
			Abbreviation:           "p",
			StorageRequiresSpecies: "Escherichia coli",
			HistoryIgnoreFields:    approvalBookkeepingFields,
			Fields: baseFields(append([]domain.FieldDescriptor{
				textField("selection", "Selection"),
				textField("us_e", "Use"),
				textField("construction_feature", "Construction/Features"),
				textField("received_from", "Received from"),
			}, mapFields()...)...),
		},
		domain.KindConfig{
			Kind:                   domain.KindEColiStrain,
			Abbreviation:           "ec",
			StorageRequiresSpecies: "Escherichia coli",
			HistoryIgnoreFields:    approvalBookkeepingFields,
			Fields: baseFields(
				textField("resistance", "Resistance"),
				textField("genotype", "Genotype"),
				textField("background", "Background"),
			),
		},
		domain.KindConfig{
			Kind:                   domain.KindSaCerevisiaeStrain,
			Abbreviation:           "sc",
			StorageRequiresSpecies: "Saccharomyces cerevisiae",
			HistoryIgnoreFields:    approvalBookkeepingFields,
			Fields: baseFields(
				textField("relevant_genotype", "Relevant genotype"),
				textField("mating_type", "Mating type"),
				textField("chromosomal_genotype", "Chromosomal genotype"),
				stockedPlasmidsField(),
			),
		},
		domain.KindConfig{
			Kind:                   domain.KindScPombeStrain,
			Abbreviation:           "sp",
			StorageRequiresSpecies: "Schizosaccharomyces pombe",
			HistoryIgnoreFields:    approvalBookkeepingFields,
			Fields: baseFields(
				textField("genotype", "Genotype"),
				textField("phenotype", "Phenotype"),
				stockedPlasmidsField(),
			),
		},
		domain.KindConfig{
			Kind:                   domain.KindWormStrain,
			Abbreviation:           "w",
			StorageRequiresSpecies: "Caenorhabditis elegans",
			HistoryIgnoreFields:    approvalBookkeepingFields,
			Fields: baseFields(
				textField("genotype", "Genotype"),
				textField("chromosomal_genotype", "Chromosomal genotype"),
				textField("outcrossed", "Outcrossed"),
			),
		},
		domain.KindConfig{
			Kind:                domain.KindCellLine,
			Abbreviation:        "cl",
			HistoryIgnoreFields: approvalBookkeepingFields,
			Fields: baseFields(
				textField("organism", "Organism"),
				textField("cell_type_tissue", "Cell type/Tissue"),
				textField("culture_type", "Culture type"),
				textField("growth_condition", "Growth conditions"),
			),
		},
		domain.KindConfig{
			Kind:                domain.KindAntibody,
			Abbreviation:        "ab",
			HistoryIgnoreFields: approvalBookkeepingFields,
			Fields: baseFields(
				textField("species_isotype", "Species/Isotype"),
				textField("clone", "Clone"),
				textField("received_from", "Received from"),
			),
		},
		domain.KindConfig{
			Kind:                domain.KindOligo,
			Abbreviation:        "o",
			HistoryIgnoreFields: approvalBookkeepingFields,
			Fields: baseFields(
				textField("sequence", "Sequence"),
				textField("length", "Length"),
				textField("us_e", "Use"),
				textField("restriction_site", "Restriction sites"),
			),
		},
		domain.KindConfig{
			Kind:                domain.KindSiRNA,
			Abbreviation:        "si",
			HistoryIgnoreFields: approvalBookkeepingFields,
			Fields: baseFields(
				textField("sequence", "Sequence"),
				textField("target_gene", "Target gene"),
				textField("species", "Species"),
			),
		},
		domain.KindConfig{
			Kind:                domain.KindVirus,
			Abbreviation:        "v",
			HistoryIgnoreFields: approvalBookkeepingFields,
			Fields: baseFields(
				textField("virus_type", "Type"),
				textField("packaging_cell_line", "Packaging cell line"),
			),
		},
		domain.KindConfig{
			Kind:                domain.KindInhibitor,
			Abbreviation:        "i",
			HistoryIgnoreFields: approvalBookkeepingFields,
			Fields: baseFields(
				textField("target", "Target"),
				textField("description_comment", "Description/Comments"),
			),
		},
	)
}

// LabIdentifier renders the short identifier used in file names and map
// titles, e.g. pLAB123 for plasmid 123 with lab abbreviation LAB.
func LabIdentifier(cfg domain.KindConfig, lab string, id int64) string {
	var b strings.Builder
	b.WriteString(cfg.Abbreviation)
	b.WriteString(lab)
	b.WriteString(strconv.FormatInt(id, 10))
	return b.String()
}
