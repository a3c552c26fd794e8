package core

import (
	"sort"

	"collectioncore/pkg/domain"
)

// transactionView adapts a memoryState to the read-only view consumed by
// rules and the diff engine. It does not copy; callers hold the store lock
// or own the state exclusively.
type transactionView struct {
	state *memoryState
}

var _ domain.TransactionView = transactionView{}

func newTransactionView(state *memoryState) transactionView {
	return transactionView{state: state}
}

func (v transactionView) FindEntity(ref domain.EntityRef) (domain.TrackedEntity, bool) {
	e, ok := v.state.entities[ref.Kind][ref.ID]
	if !ok {
		return domain.TrackedEntity{}, false
	}
	return e.Clone(), true
}

func (v transactionView) ListEntities(kind domain.EntityKind) []domain.TrackedEntity {
	out := make([]domain.TrackedEntity, 0, len(v.state.entities[kind]))
	for _, e := range v.state.entities[kind] {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) Approvals(ref domain.EntityRef) []domain.ApprovalRecord {
	return approvalsFor(v.state, ref)
}

func (v transactionView) History(ref domain.EntityRef) []domain.HistoricalSnapshot {
	return historyFor(v.state, ref)
}

func (v transactionView) FindUser(id int64) (domain.User, bool) {
	u, ok := v.state.users[id]
	return u, ok
}

func (v transactionView) FindProject(id int64) (domain.Project, bool) {
	p, ok := v.state.projects[id]
	return p, ok
}

func (v transactionView) ListProjects() []domain.Project {
	out := make([]domain.Project, 0, len(v.state.projects))
	for _, p := range v.state.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) FindStorage(collection domain.EntityKind) (domain.Storage, bool) {
	s, ok := v.state.storages[collection]
	return s, ok
}

func (v transactionView) FindLocation(id int64) (domain.Location, bool) {
	l, ok := v.state.locations[id]
	return l, ok
}

func (v transactionView) ListLocations(storageID int64) []domain.Location {
	var out []domain.Location
	for _, l := range v.state.locations {
		if l.StorageID == storageID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}

func (v transactionView) FindLocationItem(id int64) (domain.LocationItem, bool) {
	item, ok := v.state.locationItems[id]
	return item, ok
}

func (v transactionView) ListLocationItems(ref domain.EntityRef) []domain.LocationItem {
	var out []domain.LocationItem
	for _, item := range v.state.locationItems {
		if item.Entity == ref {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListEpisomalLinks(cellLineID int64) []domain.EpisomalPlasmidLink {
	var out []domain.EpisomalPlasmidLink
	for _, link := range v.state.episomalLinks {
		if link.CellLineID == cellLineID {
			out = append(out, cloneEpisomalLink(link))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
