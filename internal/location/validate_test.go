package location

import (
	"testing"

	"collectioncore/pkg/domain"
)

func alnumLocation(format domain.StorageFormat) domain.Location {
	return domain.Location{
		StorageFormat:    format,
		CoordinateFormat: domain.CoordinateAlphanumeric,
	}
}

func TestCoordinatePatterns(t *testing.T) {
	cases := []struct {
		format     domain.StorageFormat
		coordinate string
		ok         bool
	}{
		{domain.FormatPlate96, "A1", true},
		{domain.FormatPlate96, "a1", true},
		{domain.FormatPlate96, " A1", true},
		{domain.FormatPlate96, "H12 ", true},
		{domain.FormatPlate96, "H12", true},
		{domain.FormatPlate96, "I1", false},
		{domain.FormatPlate96, "A13", false},
		{domain.FormatPlate96, "A0", false},
		{domain.FormatPlate384, "P24", true},
		{domain.FormatPlate384, "A1", true},
		{domain.FormatPlate384, "P25", false},
		{domain.FormatPlate384, "Q1", false},
		{domain.FormatBox10x10, "J10", true},
		{domain.FormatBox10x10, "J11", false},
		{domain.FormatBox10x10, "K1", false},
		{domain.FormatBox9x9, "I9", true},
		{domain.FormatBox9x9, "I10", false},
		{domain.FormatBox9x9, "J1", false},
	}
	for _, tc := range cases {
		item := domain.LocationItem{Box: "1", Coordinate: tc.coordinate}
		err := ValidateLocationItem(alnumLocation(tc.format), item)
		if tc.ok && err != nil {
			t.Errorf("%s/%s: unexpected error %v", tc.format, tc.coordinate, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s/%s: expected error", tc.format, tc.coordinate)
		}
	}
}

func TestNumericCoordinates(t *testing.T) {
	loc := domain.Location{CoordinateFormat: domain.CoordinateNumeric}
	if err := ValidateLocationItem(loc, domain.LocationItem{Box: "1", Coordinate: "42"}); err != nil {
		t.Fatalf("numeric coordinate rejected: %v", err)
	}
	if err := ValidateLocationItem(loc, domain.LocationItem{Box: "1", Coordinate: "A2"}); err == nil {
		t.Fatalf("non-numeric coordinate accepted")
	}
}

func TestMandatoryPosition(t *testing.T) {
	loc := domain.Location{MandatoryPosition: true, CoordinateFormat: domain.CoordinateNumeric}
	err := ValidateLocationItem(loc, domain.LocationItem{})
	if err == nil {
		t.Fatalf("missing position accepted")
	}
	verr, ok := err.(domain.ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr["box"]) == 0 || len(verr["coordinate"]) == 0 {
		t.Fatalf("expected box and coordinate problems, got %v", verr)
	}
}

func TestWhitespaceOnlyPositionCountsAsMissing(t *testing.T) {
	loc := domain.Location{MandatoryPosition: true, CoordinateFormat: domain.CoordinateNumeric}
	err := ValidateLocationItem(loc, domain.LocationItem{Box: "  ", Coordinate: " "})
	if err == nil {
		t.Fatalf("blank position accepted")
	}
	verr, ok := err.(domain.ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr["box"]) == 0 || len(verr["coordinate"]) == 0 {
		t.Fatalf("expected box and coordinate problems, got %v", verr)
	}
}

func TestCoordinateIgnoredWithoutScheme(t *testing.T) {
	loc := domain.Location{CoordinateFormat: domain.CoordinateNone}
	if err := ValidateLocationItem(loc, domain.LocationItem{Box: "1", Coordinate: "whatever"}); err != nil {
		t.Fatalf("coordinate on schemeless location rejected: %v", err)
	}
}

func TestCoordinateWithoutBox(t *testing.T) {
	loc := domain.Location{CoordinateFormat: domain.CoordinateNumeric}
	err := ValidateLocationItem(loc, domain.LocationItem{Coordinate: "3"})
	if err == nil {
		t.Fatalf("coordinate without box accepted")
	}
}

func TestValidateLevelSet(t *testing.T) {
	cases := []struct {
		levels []int
		ok     bool
	}{
		{[]int{1, 2, 3}, true},
		{[]int{3, 1, 2}, true},
		{[]int{1}, true},
		{nil, true},
		{[]int{1, 3}, false},
		{[]int{2, 3}, false},
		{[]int{1, 2, 2}, false},
	}
	for _, tc := range cases {
		err := ValidateLevelSet(tc.levels)
		if tc.ok && err != nil {
			t.Errorf("%v: unexpected error %v", tc.levels, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%v: expected error", tc.levels)
		}
	}
}

func TestValidateStorageSpeciesRules(t *testing.T) {
	withSpecies := domain.KindConfig{Kind: domain.KindPlasmid, StorageRequiresSpecies: "Escherichia coli"}
	without := domain.KindConfig{Kind: domain.KindAntibody}

	if err := ValidateStorage(withSpecies, domain.Storage{Collection: domain.KindPlasmid}); err == nil {
		t.Fatalf("missing species accepted")
	}
	if err := ValidateStorage(withSpecies, domain.Storage{Collection: domain.KindPlasmid, Species: "Escherichia coli"}); err == nil {
		t.Fatalf("species without risk group accepted")
	}
	if err := ValidateStorage(withSpecies, domain.Storage{Collection: domain.KindPlasmid, Species: "Escherichia coli", SpeciesRiskGroup: 1}); err != nil {
		t.Fatalf("valid storage rejected: %v", err)
	}
	if err := ValidateStorage(without, domain.Storage{Collection: domain.KindAntibody, Species: "Mus musculus"}); err == nil {
		t.Fatalf("species on species-free collection accepted")
	}
	if err := ValidateStorage(without, domain.Storage{Collection: domain.KindAntibody}); err != nil {
		t.Fatalf("valid species-free storage rejected: %v", err)
	}
}

func TestValidateLocation(t *testing.T) {
	if err := ValidateLocation(domain.Location{Level: 0, Name: "Freezer A"}); err == nil {
		t.Fatalf("level 0 accepted")
	}
	if err := ValidateLocation(domain.Location{Level: 6, Name: "Freezer A"}); err == nil {
		t.Fatalf("level 6 accepted")
	}
	if err := ValidateLocation(domain.Location{Level: 2}); err == nil {
		t.Fatalf("missing name accepted")
	}
	if err := ValidateLocation(domain.Location{Level: 2, Name: "Shelf 1"}); err != nil {
		t.Fatalf("valid location rejected: %v", err)
	}
}
