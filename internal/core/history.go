package core

import (
	"iter"
	"path"
	"strconv"
	"strings"

	"collectioncore/pkg/domain"
)

// historyChanges walks an entity's snapshots newest-first in a pairwise
// sliding window and yields the field-level diff of each adjacent pair that
// actually differs. The sequence is lazy, finite, and restartable.
//
// Reference display values resolve against the current state of the
// referenced record, not the historical one. Stale names are an accepted
// tradeoff.
func historyChanges(view domain.TransactionView, cfg domain.KindConfig, snaps []domain.HistoricalSnapshot) iter.Seq[domain.HistoryChange] {
	return func(yield func(domain.HistoryChange) bool) {
		for i := 0; i+1 < len(snaps); i++ {
			newer, older := snaps[i], snaps[i+1]
			changes := diffSnapshots(view, cfg, &older.Entity, &newer.Entity)
			if len(changes) == 0 {
				continue
			}
			hc := domain.HistoryChange{
				Timestamp:    newer.HistoryDate,
				FieldChanges: changes,
			}
			if u, ok := view.FindUser(newer.HistoryUserID); ok {
				hc.ActivityUser = &u
			}
			if !yield(hc) {
				return
			}
		}
	}
}

func diffSnapshots(view domain.TransactionView, cfg domain.KindConfig, older, newer *domain.TrackedEntity) []domain.FieldChange {
	var out []domain.FieldChange
	for _, f := range cfg.Fields {
		if cfg.IgnoresField(f.Name) {
			continue
		}
		if f.Type == domain.FieldRefArray {
			oldIDs, newIDs := f.IDs(older), f.IDs(newer)
			if int64SlicesEqual(oldIDs, newIDs) {
				continue
			}
			out = append(out, domain.FieldChange{
				Field:      f.Name,
				Label:      f.Label,
				Old:        joinIDs(oldIDs),
				New:        joinIDs(newIDs),
				OldDisplay: displayRefArray(view, f.RefTarget, oldIDs),
				NewDisplay: displayRefArray(view, f.RefTarget, newIDs),
			})
			continue
		}
		oldVal, newVal := f.String(older), f.String(newer)
		if oldVal == newVal {
			continue
		}
		out = append(out, domain.FieldChange{
			Field:      f.Name,
			Label:      f.Label,
			Old:        oldVal,
			New:        newVal,
			OldDisplay: displayValue(view, f, oldVal),
			NewDisplay: displayValue(view, f, newVal),
		})
	}
	return out
}

func displayValue(view domain.TransactionView, f domain.FieldDescriptor, raw string) string {
	switch f.Type {
	case domain.FieldFile:
		if raw == "" {
			return ""
		}
		return path.Base(raw)
	case domain.FieldRef:
		if raw == "" {
			return ""
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return raw
		}
		return displayRef(view, f.RefTarget, id)
	default:
		return raw
	}
}

func displayRefArray(view domain.TransactionView, target string, ids []int64) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, displayRef(view, target, id))
	}
	return strings.Join(names, ", ")
}

func displayRef(view domain.TransactionView, target string, id int64) string {
	switch target {
	case domain.RefTargetUser:
		if u, ok := view.FindUser(id); ok {
			if u.Name != "" {
				return u.Name
			}
			return u.Email
		}
	case domain.RefTargetProject:
		if p, ok := view.FindProject(id); ok {
			return p.ShortTitle
		}
	default:
		if e, ok := view.FindEntity(domain.EntityRef{Kind: domain.EntityKind(target), ID: id}); ok {
			return e.Name
		}
	}
	return strconv.FormatInt(id, 10)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func int64SlicesEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
