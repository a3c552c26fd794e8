package domain

// StorageTemperature enumerates supported storage temperatures.
type StorageTemperature string

// Storage temperatures offered when defining a location.
const (
	TempRoom     StorageTemperature = "RT"
	TempFridge   StorageTemperature = "4"
	TempFreezer  StorageTemperature = "-20"
	TempUltraLow StorageTemperature = "-80"
	TempCryo     StorageTemperature = "-150"
)

// StorageFormat enumerates physical container formats.
type StorageFormat string

// Container formats; the coordinate regex is keyed on these.
const (
	FormatBox9x9   StorageFormat = "9x9"
	FormatBox10x10 StorageFormat = "10x10"
	FormatPlate96  StorageFormat = "96"
	FormatPlate384 StorageFormat = "384"
	FormatOther    StorageFormat = "other"
)

// CoordinateFormat enumerates how coordinates inside a container are written.
type CoordinateFormat string

// Coordinate schemes.
const (
	CoordinateAlphanumeric CoordinateFormat = "alphanumeric"
	CoordinateNumeric      CoordinateFormat = "numeric"
	CoordinateNone         CoordinateFormat = "none"
)

// Storage is the per-collection storage definition: one per entity kind.
// Species is required iff the collection's kind configuration names a
// species; the risk group is required iff a species is set.
type Storage struct {
	ID                int64      `json:"id"`
	Collection        EntityKind `json:"collection"`
	Species           string     `json:"species,omitempty"`
	SpeciesRiskGroup  int        `json:"species_risk_group,omitempty"`
	MandatoryLocation bool       `json:"mandatory_location"`
}

// Location is one level of a storage hierarchy (a room, a freezer in a
// room, a shelf, ...). Levels within a storage must start at 1 and be
// contiguous.
type Location struct {
	ID                 int64              `json:"id"`
	StorageID          int64              `json:"storage_id"`
	Level              int                `json:"level"`
	Name               string             `json:"name"`
	StorageTemperature StorageTemperature `json:"storage_temperature"`
	StorageFormat      StorageFormat      `json:"storage_format"`
	MandatoryPosition  bool               `json:"mandatory_position"`
	CoordinateFormat   CoordinateFormat   `json:"coordinate_format"`
	Description        string             `json:"description,omitempty"`
	Active             bool               `json:"active"`
}

// LocationItem assigns a tracked entity to a location, optionally down to a
// box and a coordinate within the box.
type LocationItem struct {
	ID         int64     `json:"id"`
	Entity     EntityRef `json:"entity"`
	LocationID int64     `json:"location_id"`
	Box        string    `json:"box,omitempty"`
	Coordinate string    `json:"coordinate,omitempty"`
	Comment    string    `json:"comment,omitempty"`
}
