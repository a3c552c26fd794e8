package core

import (
	"fmt"
	"strconv"
	"strings"

	"collectioncore/pkg/domain"
)

// Snapshot is the serializable image of the full store state. Durable
// backends export it after every committed transaction and import it on
// startup.
type Snapshot struct {
	Entities      map[domain.EntityKind]map[int64]domain.TrackedEntity `json:"entities"`
	History       map[string][]domain.HistoricalSnapshot               `json:"history"`
	Approvals     map[int64]domain.ApprovalRecord                      `json:"approvals"`
	LocationItems map[int64]domain.LocationItem                        `json:"location_items"`
	Storages      map[domain.EntityKind]domain.Storage                 `json:"storages"`
	Locations     map[int64]domain.Location                            `json:"locations"`
	EpisomalLinks map[int64]domain.EpisomalPlasmidLink                 `json:"episomal_links"`
	Users         map[int64]domain.User                                `json:"users"`
	Projects      map[int64]domain.Project                             `json:"projects"`
	Sequences     SequenceState                                        `json:"sequences"`
}

// SequenceState carries the id counters alongside the buckets.
type SequenceState struct {
	Approval     int64 `json:"approval"`
	LocationItem int64 `json:"location_item"`
	Storage      int64 `json:"storage"`
	Location     int64 `json:"location"`
	Episomal     int64 `json:"episomal"`
	User         int64 `json:"user"`
	Project      int64 `json:"project"`
}

// RefKey renders an entity reference as a flat map key for serialization.
func RefKey(ref domain.EntityRef) string {
	return string(ref.Kind) + "/" + strconv.FormatInt(ref.ID, 10)
}

// ParseRefKey is the inverse of RefKey.
func ParseRefKey(key string) (domain.EntityRef, error) {
	kind, id, ok := strings.Cut(key, "/")
	if !ok {
		return domain.EntityRef{}, fmt.Errorf("malformed ref key %q", key)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return domain.EntityRef{}, fmt.Errorf("malformed ref key %q: %w", key, err)
	}
	return domain.EntityRef{Kind: domain.EntityKind(kind), ID: n}, nil
}

// ExportState returns a deep copy of the committed state.
func (s *MemoryStore) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := s.state.clone()
	snap := Snapshot{
		Entities:      state.entities,
		History:       make(map[string][]domain.HistoricalSnapshot, len(state.history)),
		Approvals:     state.approvals,
		LocationItems: state.locationItems,
		Storages:      state.storages,
		Locations:     state.locations,
		EpisomalLinks: state.episomalLinks,
		Users:         state.users,
		Projects:      state.projects,
		Sequences: SequenceState{
			Approval:     state.approvalSeq,
			LocationItem: state.locationItemSeq,
			Storage:      state.storageSeq,
			Location:     state.locationSeq,
			Episomal:     state.episomalSeq,
			User:         state.userSeq,
			Project:      state.projectSeq,
		},
	}
	for ref, snaps := range state.history {
		snap.History[RefKey(ref)] = snaps
	}
	return snap
}

// ImportState replaces the committed state with the given snapshot.
func (s *MemoryStore) ImportState(snap Snapshot) error {
	state := newMemoryState()
	if snap.Entities != nil {
		state.entities = snap.Entities
	}
	for key, snaps := range snap.History {
		ref, err := ParseRefKey(key)
		if err != nil {
			return err
		}
		state.history[ref] = snaps
	}
	if snap.Approvals != nil {
		state.approvals = snap.Approvals
	}
	if snap.LocationItems != nil {
		state.locationItems = snap.LocationItems
	}
	if snap.Storages != nil {
		state.storages = snap.Storages
	}
	if snap.Locations != nil {
		state.locations = snap.Locations
	}
	if snap.EpisomalLinks != nil {
		state.episomalLinks = snap.EpisomalLinks
	}
	if snap.Users != nil {
		state.users = snap.Users
	}
	if snap.Projects != nil {
		state.projects = snap.Projects
	}
	state.approvalSeq = snap.Sequences.Approval
	state.locationItemSeq = snap.Sequences.LocationItem
	state.storageSeq = snap.Sequences.Storage
	state.locationSeq = snap.Sequences.Location
	state.episomalSeq = snap.Sequences.Episomal
	state.userSeq = snap.Sequences.User
	state.projectSeq = snap.Sequences.Project

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	return nil
}
