package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"collectioncore/pkg/domain"
)

type memoryState struct {
	entities      map[domain.EntityKind]map[int64]domain.TrackedEntity
	history       map[domain.EntityRef][]domain.HistoricalSnapshot
	approvals     map[int64]domain.ApprovalRecord
	locationItems map[int64]domain.LocationItem
	storages      map[domain.EntityKind]domain.Storage
	locations     map[int64]domain.Location
	episomalLinks map[int64]domain.EpisomalPlasmidLink
	users         map[int64]domain.User
	projects      map[int64]domain.Project

	approvalSeq     int64
	locationItemSeq int64
	storageSeq      int64
	locationSeq     int64
	episomalSeq     int64
	userSeq         int64
	projectSeq      int64
}

func newMemoryState() memoryState {
	return memoryState{
		entities:      make(map[domain.EntityKind]map[int64]domain.TrackedEntity),
		history:       make(map[domain.EntityRef][]domain.HistoricalSnapshot),
		approvals:     make(map[int64]domain.ApprovalRecord),
		locationItems: make(map[int64]domain.LocationItem),
		storages:      make(map[domain.EntityKind]domain.Storage),
		locations:     make(map[int64]domain.Location),
		episomalLinks: make(map[int64]domain.EpisomalPlasmidLink),
		users:         make(map[int64]domain.User),
		projects:      make(map[int64]domain.Project),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for kind, bucket := range s.entities {
		dst := make(map[int64]domain.TrackedEntity, len(bucket))
		for id, e := range bucket {
			dst[id] = e.Clone()
		}
		cloned.entities[kind] = dst
	}
	for ref, snaps := range s.history {
		dst := make([]domain.HistoricalSnapshot, len(snaps))
		for i, snap := range snaps {
			snap.Entity = snap.Entity.Clone()
			dst[i] = snap
		}
		cloned.history[ref] = dst
	}
	for id, rec := range s.approvals {
		cloned.approvals[id] = cloneApproval(rec)
	}
	for id, item := range s.locationItems {
		cloned.locationItems[id] = item
	}
	for kind, st := range s.storages {
		cloned.storages[kind] = st
	}
	for id, loc := range s.locations {
		cloned.locations[id] = loc
	}
	for id, link := range s.episomalLinks {
		cloned.episomalLinks[id] = cloneEpisomalLink(link)
	}
	for id, u := range s.users {
		cloned.users[id] = u
	}
	for id, p := range s.projects {
		cp := p
		cp.LeaderIDs = append([]int64(nil), p.LeaderIDs...)
		cloned.projects[id] = cp
	}
	cloned.approvalSeq = s.approvalSeq
	cloned.locationItemSeq = s.locationItemSeq
	cloned.storageSeq = s.storageSeq
	cloned.locationSeq = s.locationSeq
	cloned.episomalSeq = s.episomalSeq
	cloned.userSeq = s.userSeq
	cloned.projectSeq = s.projectSeq
	return cloned
}

func cloneApproval(rec domain.ApprovalRecord) domain.ApprovalRecord {
	cp := rec
	if rec.MessageDateTime != nil {
		t := *rec.MessageDateTime
		cp.MessageDateTime = &t
	}
	return cp
}

func cloneEpisomalLink(link domain.EpisomalPlasmidLink) domain.EpisomalPlasmidLink {
	cp := link
	cp.ProjectIDs = append([]int64(nil), link.ProjectIDs...)
	if link.CreatedDate != nil {
		t := *link.CreatedDate
		cp.CreatedDate = &t
	}
	if link.DestroyedDate != nil {
		t := *link.DestroyedDate
		cp.DestroyedDate = &t
	}
	return cp
}

// MemoryStore provides an in-memory transactional store for the collection
// domain. Transactions run against a copy-on-write clone of the state and
// commit only after rule evaluation passes.
type MemoryStore struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

var _ domain.PersistentStore = (*MemoryStore)(nil)

// NewMemoryStore constructs an in-memory store backed by the provided rules
// engine.
func NewMemoryStore(engine *RulesEngine) *MemoryStore {
	if engine == nil {
		engine = NewRulesEngine()
	}
	return &MemoryStore{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the transaction clock; intended for tests.
func (s *MemoryStore) SetNowFunc(fn func() time.Time) { s.nowFn = fn }

// Transaction is a mutation set applied to the store state.
type Transaction struct {
	store   *MemoryStore
	state   memoryState
	changes []domain.Change
	now     time.Time
	actor   int64
}

var _ domain.Transaction = (*Transaction)(nil)

// RunInTransaction executes fn within a transactional copy of the store
// state, evaluates registered rules, and commits unless blocked.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *MemoryStore) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// SetActor records the acting user for snapshots written in this scope.
func (tx *Transaction) SetActor(userID int64) { tx.actor = userID }

// Snapshot exposes a read-only view of the transactional state.
func (tx *Transaction) Snapshot() domain.TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *Transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// NextEntityID returns max(existing)+1 for the kind. IDs stay dense and
// monotonic per collection and never rely on storage autoincrement.
func (tx *Transaction) NextEntityID(kind domain.EntityKind) int64 {
	var max int64
	for id := range tx.state.entities[kind] {
		if id > max {
			max = id
		}
	}
	return max + 1
}

// appendSnapshot writes one historical snapshot, bumping the timestamp past
// the previous snapshot when the clock has not advanced so history dates
// stay strictly increasing per entity.
func (tx *Transaction) appendSnapshot(e domain.TrackedEntity, htype domain.HistoryType) {
	ref := e.Ref()
	date := tx.now
	if snaps := tx.state.history[ref]; len(snaps) > 0 {
		if last := snaps[len(snaps)-1].HistoryDate; !date.After(last) {
			date = last.Add(time.Microsecond)
		}
	}
	tx.state.history[ref] = append(tx.state.history[ref], domain.HistoricalSnapshot{
		Entity:        e.Clone(),
		HistoryDate:   date,
		HistoryUserID: tx.actor,
		HistoryType:   htype,
	})
}

// CreateEntity inserts a record with its explicitly assigned id and writes
// the creation snapshot.
func (tx *Transaction) CreateEntity(e domain.TrackedEntity) (domain.TrackedEntity, error) {
	if e.Kind == "" {
		return domain.TrackedEntity{}, fmt.Errorf("entity kind must be set")
	}
	if e.ID == 0 {
		return domain.TrackedEntity{}, fmt.Errorf("entity id must be assigned before insert")
	}
	bucket := tx.state.entities[e.Kind]
	if bucket == nil {
		bucket = make(map[int64]domain.TrackedEntity)
		tx.state.entities[e.Kind] = bucket
	}
	if _, exists := bucket[e.ID]; exists {
		return domain.TrackedEntity{}, fmt.Errorf("%s %d already exists", e.Kind, e.ID)
	}
	e.CreatedAt = tx.now
	e.LastChangedAt = tx.now
	bucket[e.ID] = e.Clone()
	tx.appendSnapshot(e, domain.HistoryCreated)
	after := e.Clone()
	tx.recordChange(domain.Change{Ref: e.Ref(), Action: domain.ActionCreate, After: &after})
	return e.Clone(), nil
}

// UpdateEntity mutates a record, stamps the modification time, and writes a
// change snapshot.
func (tx *Transaction) UpdateEntity(ref domain.EntityRef, mutator func(*domain.TrackedEntity) error) (domain.TrackedEntity, error) {
	bucket := tx.state.entities[ref.Kind]
	current, ok := bucket[ref.ID]
	if !ok {
		return domain.TrackedEntity{}, domain.ErrNotFound{Kind: ref.Kind, ID: ref.ID}
	}
	before := current.Clone()
	if err := mutator(&current); err != nil {
		return domain.TrackedEntity{}, err
	}
	current.ID = ref.ID
	current.Kind = ref.Kind
	current.LastChangedAt = tx.now
	bucket[ref.ID] = current.Clone()
	tx.appendSnapshot(current, domain.HistoryChanged)
	after := current.Clone()
	tx.recordChange(domain.Change{Ref: ref, Action: domain.ActionUpdate, Before: &before, After: &after})
	return current.Clone(), nil
}

// UpdateEntityNoHistory persists a correction through the side channel: no
// snapshot is written, and with preserveLastChanged the modification
// timestamp keeps its pre-correction value.
func (tx *Transaction) UpdateEntityNoHistory(ref domain.EntityRef, mutator func(*domain.TrackedEntity) error, preserveLastChanged bool) (domain.TrackedEntity, error) {
	bucket := tx.state.entities[ref.Kind]
	current, ok := bucket[ref.ID]
	if !ok {
		return domain.TrackedEntity{}, domain.ErrNotFound{Kind: ref.Kind, ID: ref.ID}
	}
	before := current.Clone()
	originalLastChanged := current.LastChangedAt
	if err := mutator(&current); err != nil {
		return domain.TrackedEntity{}, err
	}
	current.ID = ref.ID
	current.Kind = ref.Kind
	if preserveLastChanged {
		current.LastChangedAt = originalLastChanged
	} else {
		current.LastChangedAt = tx.now
	}
	bucket[ref.ID] = current.Clone()
	after := current.Clone()
	tx.recordChange(domain.Change{Ref: ref, Action: domain.ActionUpdate, Before: &before, After: &after})
	return current.Clone(), nil
}

// DeleteEntity removes a record after writing a deletion snapshot. History
// is retained for auditing.
func (tx *Transaction) DeleteEntity(ref domain.EntityRef) error {
	bucket := tx.state.entities[ref.Kind]
	current, ok := bucket[ref.ID]
	if !ok {
		return domain.ErrNotFound{Kind: ref.Kind, ID: ref.ID}
	}
	tx.appendSnapshot(current, domain.HistoryDeleted)
	delete(bucket, ref.ID)
	before := current.Clone()
	tx.recordChange(domain.Change{Ref: ref, Action: domain.ActionDelete, Before: &before})
	return nil
}

// CreateApproval inserts an approval record.
func (tx *Transaction) CreateApproval(rec domain.ApprovalRecord) (domain.ApprovalRecord, error) {
	if rec.Entity.IsZero() {
		return domain.ApprovalRecord{}, fmt.Errorf("approval record needs an entity reference")
	}
	tx.state.approvalSeq++
	rec.ID = tx.state.approvalSeq
	rec.CreatedAt = tx.now
	tx.state.approvals[rec.ID] = cloneApproval(rec)
	return cloneApproval(rec), nil
}

// UpdateApproval mutates an approval record.
func (tx *Transaction) UpdateApproval(id int64, mutator func(*domain.ApprovalRecord) error) (domain.ApprovalRecord, error) {
	current, ok := tx.state.approvals[id]
	if !ok {
		return domain.ApprovalRecord{}, fmt.Errorf("approval record %d not found", id)
	}
	if err := mutator(&current); err != nil {
		return domain.ApprovalRecord{}, err
	}
	current.ID = id
	tx.state.approvals[id] = cloneApproval(current)
	return cloneApproval(current), nil
}

// DeleteApprovals removes all approval records for an entity and reports
// how many were deleted.
func (tx *Transaction) DeleteApprovals(ref domain.EntityRef) (int, error) {
	var n int
	for id, rec := range tx.state.approvals {
		if rec.Entity == ref {
			delete(tx.state.approvals, id)
			n++
		}
	}
	return n, nil
}

// Approvals returns the outstanding approval records for an entity.
func (tx *Transaction) Approvals(ref domain.EntityRef) []domain.ApprovalRecord {
	return approvalsFor(&tx.state, ref)
}

// History returns an entity's snapshots ordered newest first.
func (tx *Transaction) History(ref domain.EntityRef) []domain.HistoricalSnapshot {
	return historyFor(&tx.state, ref)
}

// CollapseCreation deletes the oldest snapshot of a record and flips the
// new oldest to HistoryCreated, so history shows exactly one creation event
// after a post-save canonical file rename.
func (tx *Transaction) CollapseCreation(ref domain.EntityRef) error {
	snaps := tx.state.history[ref]
	if len(snaps) < 2 {
		return fmt.Errorf("collapse creation needs at least two snapshots for %s %d", ref.Kind, ref.ID)
	}
	snaps = snaps[1:]
	snaps[0].HistoryType = domain.HistoryCreated
	tx.state.history[ref] = snaps
	return nil
}

// OverwriteLatestStockedPlasmids mutates the derived plasmid array on the
// most recent snapshot in place. This is the only post-creation snapshot
// write in the system.
func (tx *Transaction) OverwriteLatestStockedPlasmids(ref domain.EntityRef, plasmidIDs []int64) error {
	snaps := tx.state.history[ref]
	if len(snaps) == 0 {
		return fmt.Errorf("no history for %s %d", ref.Kind, ref.ID)
	}
	snaps[len(snaps)-1].Entity.PlasmidsInStock = append([]int64(nil), plasmidIDs...)
	return nil
}

// CreateLocationItem inserts a storage assignment.
func (tx *Transaction) CreateLocationItem(item domain.LocationItem) (domain.LocationItem, error) {
	if _, ok := tx.state.locations[item.LocationID]; !ok {
		return domain.LocationItem{}, fmt.Errorf("location %d not found", item.LocationID)
	}
	tx.state.locationItemSeq++
	item.ID = tx.state.locationItemSeq
	tx.state.locationItems[item.ID] = item
	return item, nil
}

// UpdateLocationItem mutates a storage assignment.
func (tx *Transaction) UpdateLocationItem(id int64, mutator func(*domain.LocationItem) error) (domain.LocationItem, error) {
	current, ok := tx.state.locationItems[id]
	if !ok {
		return domain.LocationItem{}, fmt.Errorf("location item %d not found", id)
	}
	if err := mutator(&current); err != nil {
		return domain.LocationItem{}, err
	}
	current.ID = id
	tx.state.locationItems[id] = current
	return current, nil
}

// DeleteLocationItem removes a storage assignment.
func (tx *Transaction) DeleteLocationItem(id int64) error {
	if _, ok := tx.state.locationItems[id]; !ok {
		return fmt.Errorf("location item %d not found", id)
	}
	delete(tx.state.locationItems, id)
	return nil
}

// PutStorage inserts or replaces the storage definition of a collection.
func (tx *Transaction) PutStorage(s domain.Storage) (domain.Storage, error) {
	if s.Collection == "" {
		return domain.Storage{}, fmt.Errorf("storage needs a collection")
	}
	if s.ID == 0 {
		tx.state.storageSeq++
		s.ID = tx.state.storageSeq
	}
	tx.state.storages[s.Collection] = s
	return s, nil
}

// PutLocation inserts or replaces a location level.
func (tx *Transaction) PutLocation(l domain.Location) (domain.Location, error) {
	if l.ID == 0 {
		tx.state.locationSeq++
		l.ID = tx.state.locationSeq
	}
	tx.state.locations[l.ID] = l
	return l, nil
}

// SaveEpisomalLink inserts or replaces an episomal plasmid linkage.
func (tx *Transaction) SaveEpisomalLink(link domain.EpisomalPlasmidLink) (domain.EpisomalPlasmidLink, error) {
	if link.ID == 0 {
		tx.state.episomalSeq++
		link.ID = tx.state.episomalSeq
	}
	tx.state.episomalLinks[link.ID] = cloneEpisomalLink(link)
	return cloneEpisomalLink(link), nil
}

// CreateUser inserts a lab member account.
func (tx *Transaction) CreateUser(u domain.User) (domain.User, error) {
	if u.ID == 0 {
		tx.state.userSeq++
		u.ID = tx.state.userSeq
	} else if u.ID > tx.state.userSeq {
		tx.state.userSeq = u.ID
	}
	tx.state.users[u.ID] = u
	return u, nil
}

// CreateProject inserts a biosafety project.
func (tx *Transaction) CreateProject(p domain.Project) (domain.Project, error) {
	if p.ID == 0 {
		tx.state.projectSeq++
		p.ID = tx.state.projectSeq
	} else if p.ID > tx.state.projectSeq {
		tx.state.projectSeq = p.ID
	}
	cp := p
	cp.LeaderIDs = append([]int64(nil), p.LeaderIDs...)
	tx.state.projects[cp.ID] = cp
	return cp, nil
}

// Read helpers ---------------------------------------------------------------

func approvalsFor(state *memoryState, ref domain.EntityRef) []domain.ApprovalRecord {
	var out []domain.ApprovalRecord
	for _, rec := range state.approvals {
		if rec.Entity == ref {
			out = append(out, cloneApproval(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func historyFor(state *memoryState, ref domain.EntityRef) []domain.HistoricalSnapshot {
	snaps := state.history[ref]
	out := make([]domain.HistoricalSnapshot, 0, len(snaps))
	for i := len(snaps) - 1; i >= 0; i-- {
		snap := snaps[i]
		snap.Entity = snap.Entity.Clone()
		out = append(out, snap)
	}
	return out
}

// GetEntity retrieves a record by reference from committed state.
func (s *MemoryStore) GetEntity(ref domain.EntityRef) (domain.TrackedEntity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.entities[ref.Kind][ref.ID]
	if !ok {
		return domain.TrackedEntity{}, false
	}
	return e.Clone(), true
}

// ListEntities returns all records of a kind from committed state.
func (s *MemoryStore) ListEntities(kind domain.EntityKind) []domain.TrackedEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TrackedEntity, 0, len(s.state.entities[kind]))
	for _, e := range s.state.entities[kind] {
		out = append(out, e.Clone())
	}
	return out
}

// History returns an entity's snapshots ordered newest first.
func (s *MemoryStore) History(ref domain.EntityRef) []domain.HistoricalSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return historyFor(&s.state, ref)
}

// Approvals returns the outstanding approval records for an entity.
func (s *MemoryStore) Approvals(ref domain.EntityRef) []domain.ApprovalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return approvalsFor(&s.state, ref)
}
