// Package location validates the physical storage model: per-collection
// storage definitions, location levels, and box/coordinate assignments.
// Validation is pure and runs before persistence.
package location

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"collectioncore/pkg/domain"
)

// Coordinate patterns keyed by storage format, applied to the uppercased
// coordinate under the alphanumeric scheme.
var coordinatePatterns = map[domain.StorageFormat]*regexp.Regexp{
	domain.FormatPlate96:  regexp.MustCompile(`^[A-H](1[0-2]|[1-9])$`),
	domain.FormatPlate384: regexp.MustCompile(`^([A-P][1-9]|[A-P]1\d|[A-P]2[0-4])$`),
	domain.FormatBox10x10: regexp.MustCompile(`^[A-J](10|[1-9])$`),
	domain.FormatBox9x9:   regexp.MustCompile(`^[A-I][1-9]$`),
}

var allDigits = regexp.MustCompile(`^\d+$`)

// ValidateStorage checks the species rules of a per-collection storage
// definition against the collection's configuration.
func ValidateStorage(cfg domain.KindConfig, s domain.Storage) error {
	verr := domain.ValidationError{}
	if cfg.StorageRequiresSpecies != "" {
		if s.Species == "" {
			verr.Add("species", fmt.Sprintf("species is required for this collection (%s)", cfg.StorageRequiresSpecies))
		}
		if s.Species != "" && s.SpeciesRiskGroup == 0 {
			verr.Add("species_risk_group", "risk group is required when a species is set")
		}
	} else {
		if s.Species != "" {
			verr.Add("species", "this collection does not take a species")
		}
		if s.SpeciesRiskGroup != 0 {
			verr.Add("species_risk_group", "this collection does not take a risk group")
		}
	}
	return verr.Err()
}

// ValidateLocation checks a single location level.
func ValidateLocation(l domain.Location) error {
	verr := domain.ValidationError{}
	if l.Level < 1 || l.Level > 5 {
		verr.Add("level", "level must be between 1 and 5")
	}
	if l.Name == "" {
		verr.Add("name", "name is required")
	}
	return verr.Err()
}

// ValidateLevelSet checks all levels of a storage edited together: the
// sorted set of levels must equal 1..max with no gaps.
func ValidateLevelSet(levels []int) error {
	if len(levels) == 0 {
		return nil
	}
	sorted := append([]int(nil), levels...)
	sort.Ints(sorted)
	verr := domain.ValidationError{}
	if sorted[0] != 1 {
		verr.Add("level", "levels must start at 1")
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			verr.Add("level", fmt.Sprintf("level %d given more than once", sorted[i]))
			return verr.Err()
		}
		if sorted[i] != sorted[i-1]+1 {
			verr.Add("level", fmt.Sprintf("gap in levels between %d and %d", sorted[i-1], sorted[i]))
			return verr.Err()
		}
	}
	return verr.Err()
}

// ValidateLocationItem checks a box/coordinate assignment against its
// location's position and coordinate scheme. Surrounding whitespace on box
// and coordinate is insignificant. A coordinate given for a location with no
// coordinate scheme is ignored.
func ValidateLocationItem(loc domain.Location, item domain.LocationItem) error {
	verr := domain.ValidationError{}
	box := strings.TrimSpace(item.Box)
	coordinate := strings.TrimSpace(item.Coordinate)
	if loc.MandatoryPosition {
		if box == "" {
			verr.Add("box", "this location requires a box")
		}
		if coordinate == "" {
			verr.Add("coordinate", "this location requires a coordinate")
		}
	}
	if coordinate != "" && box == "" {
		verr.Add("box", "a coordinate needs a box")
	}
	if coordinate != "" {
		validateCoordinate(verr, loc, coordinate)
	}
	return verr.Err()
}

func validateCoordinate(verr domain.ValidationError, loc domain.Location, coordinate string) {
	switch loc.CoordinateFormat {
	case domain.CoordinateNumeric:
		if !allDigits.MatchString(coordinate) {
			verr.Add("coordinate", "coordinate must be numeric")
		}
	case domain.CoordinateAlphanumeric:
		pattern, ok := coordinatePatterns[loc.StorageFormat]
		if !ok {
			return
		}
		if !pattern.MatchString(strings.ToUpper(coordinate)) {
			verr.Add("coordinate", fmt.Sprintf("coordinate %q does not fit a %s container", coordinate, loc.StorageFormat))
		}
	}
}
