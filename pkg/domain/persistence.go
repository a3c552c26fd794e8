package domain

import "context"

// Transaction exposes the domain operations a persistence implementation
// must support within an atomic scope. The approval guard ("create an
// approval record only if none is outstanding") is atomic within a
// transaction, which closes the predecessor's documented race window.
type Transaction interface {
	// SetActor records the acting user for snapshots written in this scope.
	SetActor(userID int64)

	// NextEntityID returns max(existing)+1 for the kind; ids are assigned
	// explicitly rather than via storage autoincrement.
	NextEntityID(kind EntityKind) int64
	CreateEntity(e TrackedEntity) (TrackedEntity, error)
	UpdateEntity(ref EntityRef, mutator func(*TrackedEntity) error) (TrackedEntity, error)
	// UpdateEntityNoHistory persists a correction through the side channel:
	// no snapshot is written, and with preserveLastChanged the visible
	// modification timestamp keeps its pre-correction value so the write is
	// invisible in the audit trail.
	UpdateEntityNoHistory(ref EntityRef, mutator func(*TrackedEntity) error, preserveLastChanged bool) (TrackedEntity, error)
	DeleteEntity(ref EntityRef) error

	CreateApproval(rec ApprovalRecord) (ApprovalRecord, error)
	UpdateApproval(id int64, mutator func(*ApprovalRecord) error) (ApprovalRecord, error)
	DeleteApprovals(ref EntityRef) (int, error)
	Approvals(ref EntityRef) []ApprovalRecord

	History(ref EntityRef) []HistoricalSnapshot
	// CollapseCreation deletes the oldest snapshot of a new record and flips
	// the survivor to HistoryCreated, removing the artifact produced by the
	// post-save canonical file rename.
	CollapseCreation(ref EntityRef) error
	// OverwriteLatestStockedPlasmids mutates the derived field on the most
	// recent snapshot in place. This is the only post-creation snapshot
	// write in the system.
	OverwriteLatestStockedPlasmids(ref EntityRef, plasmidIDs []int64) error

	CreateLocationItem(item LocationItem) (LocationItem, error)
	UpdateLocationItem(id int64, mutator func(*LocationItem) error) (LocationItem, error)
	DeleteLocationItem(id int64) error

	PutStorage(s Storage) (Storage, error)
	PutLocation(l Location) (Location, error)

	SaveEpisomalLink(link EpisomalPlasmidLink) (EpisomalPlasmidLink, error)

	CreateUser(u User) (User, error)
	CreateProject(p Project) (Project, error)

	Snapshot() TransactionView
}

// TransactionView provides read-only access to committed or transactional
// state for rules and the diff engine.
type TransactionView interface {
	FindEntity(ref EntityRef) (TrackedEntity, bool)
	ListEntities(kind EntityKind) []TrackedEntity
	Approvals(ref EntityRef) []ApprovalRecord
	History(ref EntityRef) []HistoricalSnapshot
	FindUser(id int64) (User, bool)
	FindProject(id int64) (Project, bool)
	ListProjects() []Project
	FindStorage(collection EntityKind) (Storage, bool)
	FindLocation(id int64) (Location, bool)
	ListLocations(storageID int64) []Location
	FindLocationItem(id int64) (LocationItem, bool)
	ListLocationItems(ref EntityRef) []LocationItem
	ListEpisomalLinks(cellLineID int64) []EpisomalPlasmidLink
}

// PersistentStore is a minimal abstraction over durable backends. It
// mirrors the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetEntity(ref EntityRef) (TrackedEntity, bool)
	ListEntities(kind EntityKind) []TrackedEntity
	History(ref EntityRef) []HistoricalSnapshot
	Approvals(ref EntityRef) []ApprovalRecord
}
