package domain

import "time"

// HistoryType classifies a historical snapshot.
type HistoryType string

// Snapshot change kinds. The earliest snapshot of a record must be
// HistoryCreated; the reconciliation engine collapses spurious intermediate
// snapshots produced by post-save file renames to keep that invariant.
const (
	HistoryCreated HistoryType = "created"
	HistoryChanged HistoryType = "changed"
	HistoryDeleted HistoryType = "deleted"
)

// HistoricalSnapshot is one immutable version of a tracked entity, captured
// on every save-worthy mutation. Many-to-many relations are stored as the
// denormalized ID slices on the embedded entity copy, since live relations
// cannot represent past states.
//
// Snapshots are never mutated after creation, with one documented exception:
// the deferred overwrite of a derived field by the reconciliation engine.
type HistoricalSnapshot struct {
	Entity        TrackedEntity `json:"entity"`
	HistoryDate   time.Time     `json:"history_date"`
	HistoryUserID int64         `json:"history_user_id"`
	HistoryType   HistoryType   `json:"history_type"`
}

// ActivityType classifies an approval record.
type ActivityType string

// Approval activity kinds.
const (
	ActivityCreated ActivityType = "created"
	ActivityChanged ActivityType = "changed"
)

// ApprovalRecord tracks an entity save awaiting PI review. At most one
// outstanding record exists per entity; PI approval deletes the backlog.
type ApprovalRecord struct {
	ID              int64        `json:"id"`
	Entity          EntityRef    `json:"entity"`
	ActivityType    ActivityType `json:"activity_type"`
	ActivityUserID  int64        `json:"activity_user_id"`
	Message         string       `json:"message,omitempty"`
	MessageDateTime *time.Time   `json:"message_date_time,omitempty"`
	Edited          bool         `json:"edited"`
	CreatedAt       time.Time    `json:"created_date_time"`
}

// FieldChange is one field-level difference between two adjacent snapshots.
// Old and New carry the raw values; OldDisplay and NewDisplay carry pretty
// values (file base names, resolved reference names, comma-joined arrays).
type FieldChange struct {
	Field      string
	Label      string
	Old        string
	New        string
	OldDisplay string
	NewDisplay string
}

// HistoryChange is the diff between two temporally adjacent snapshots,
// attributed to the acting user of the newer one.
type HistoryChange struct {
	Timestamp    time.Time
	ActivityUser *User
	FieldChanges []FieldChange
}
