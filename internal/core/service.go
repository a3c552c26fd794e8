package core

import (
	"context"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"

	"collectioncore/pkg/domain"
)

// MapProcessor regenerates the derived map artifacts of an entity whose
// primary sequence map changed. Implemented by the snapgene pipeline.
type MapProcessor interface {
	ProcessMap(ctx context.Context, entity domain.TrackedEntity, detectCommonFeatures bool) error
}

// SaveOptions tune a single SaveEntity call.
type SaveOptions struct {
	// DetectCommonFeatures runs feature auto-detection during map
	// regeneration.
	DetectCommonFeatures bool
	// SkipMapProcessing suppresses the asynchronous map-processing hook,
	// e.g. for bulk imports.
	SkipMapProcessing bool
}

// Service orchestrates entity saves: persistence, lifecycle rules, approval
// transitions, and snapshot capture happen in one store transaction; map
// processing runs asynchronously afterwards.
type Service struct {
	store    domain.PersistentStore
	registry *domain.Registry
	jitter   Jitter
	logger   *zap.Logger
	maps     MapProcessor
	nowFn    func() time.Time
}

// NewService wires a service. The map processor is optional; without one the
// asynchronous hook is a no-op.
func NewService(store domain.PersistentStore, registry *domain.Registry, jitter Jitter, logger *zap.Logger, maps MapProcessor) *Service {
	if jitter == nil {
		jitter = NewJitter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		registry: registry,
		jitter:   jitter,
		logger:   logger,
		maps:     maps,
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the service clock; intended for tests.
func (s *Service) SetNowFunc(fn func() time.Time) { s.nowFn = fn }

// authorizingPI reports whether the actor may auto-approve the entity: a PI
// who leads at least one of the entity's linked projects. An entity with no
// projects has no authorizing PI and every change routes through the
// approval backlog.
func authorizingPI(view domain.TransactionView, actor domain.User, e *domain.TrackedEntity) bool {
	if !actor.IsPI {
		return false
	}
	for _, pid := range e.ProjectIDs {
		if p, ok := view.FindProject(pid); ok && p.LedBy(actor.ID) {
			return true
		}
	}
	return false
}

// SaveEntity persists a create or update and drives the approval state
// machine. Approval bookkeeping on the stored record always wins over
// whatever the caller put on the incoming value.
func (s *Service) SaveEntity(ctx context.Context, actorID int64, e domain.TrackedEntity, opts SaveOptions) (domain.TrackedEntity, error) {
	if _, ok := s.registry.Config(e.Kind); !ok {
		return domain.TrackedEntity{}, fmt.Errorf("unknown collection %q", e.Kind)
	}

	var (
		saved     domain.TrackedEntity
		mapBefore string
	)
	result, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		tx.SetActor(actorID)
		view := tx.Snapshot()
		actor, ok := view.FindUser(actorID)
		if !ok {
			return fmt.Errorf("user %d not found", actorID)
		}

		if e.ID == 0 {
			return s.saveNew(tx, actor, e, &saved)
		}
		return s.saveExisting(tx, actor, e, &saved, &mapBefore)
	})
	if err != nil {
		return domain.TrackedEntity{}, err
	}
	s.logViolations(result)

	s.maybeProcessMap(ctx, saved, mapBefore, opts)
	return saved, nil
}

func (s *Service) saveNew(tx domain.Transaction, actor domain.User, e domain.TrackedEntity, saved *domain.TrackedEntity) error {
	e.ID = tx.NextEntityID(e.Kind)
	e.CreatedByID = actor.ID
	e.ApprovalInfo = domain.ApprovalInfo{}

	created, err := tx.CreateEntity(e)
	if err != nil {
		return err
	}

	view := tx.Snapshot()
	if authorizingPI(view, actor, &created) {
		// Auto-approval is a correction, not a change: it bypasses
		// snapshotting and keeps the visible modification time, so the
		// audit trail shows a clean single creation.
		now := s.nowFn()
		approved, err := tx.UpdateEntityNoHistory(created.Ref(), func(cur *domain.TrackedEntity) error {
			t := true
			cur.CreatedApprovalByPI = &t
			cur.ApprovalUserID = &actor.ID
			cur.ApprovalByPIAt = &now
			return nil
		}, true)
		if err != nil {
			return err
		}
		*saved = approved
		return nil
	}

	if _, err := tx.CreateApproval(domain.ApprovalRecord{
		Entity:         created.Ref(),
		ActivityType:   domain.ActivityCreated,
		ActivityUserID: actor.ID,
	}); err != nil {
		return err
	}
	*saved = created
	return nil
}

func (s *Service) saveExisting(tx domain.Transaction, actor domain.User, e domain.TrackedEntity, saved *domain.TrackedEntity, mapBefore *string) error {
	ref := e.Ref()
	view := tx.Snapshot()
	current, ok := view.FindEntity(ref)
	if !ok {
		return domain.ErrNotFound{Kind: ref.Kind, ID: ref.ID}
	}
	*mapBefore = current.MapPath

	approving := authorizingPI(view, actor, &e)
	now := s.nowFn()

	updated, err := tx.UpdateEntity(ref, func(cur *domain.TrackedEntity) error {
		ownership := cur.OwnershipInfo
		approval := cur.ApprovalInfo
		*cur = e
		cur.OwnershipInfo = ownership
		cur.ApprovalInfo = approval
		if e.DestroyedDate != nil {
			d := *e.DestroyedDate
			cur.DestroyedDate = &d
		}

		if approving {
			t := true
			cur.LastChangedApprovalByPI = &t
			if cur.CreatedApprovalByPI == nil || !*cur.CreatedApprovalByPI {
				cur.CreatedApprovalByPI = &t
			}
			cur.ApprovalUserID = &actor.ID
			cur.ApprovalByPIAt = &now
		} else {
			f := false
			cur.LastChangedApprovalByPI = &f
			cur.ApprovalUserID = nil
		}
		return nil
	})
	if err != nil {
		return err
	}

	if approving {
		// Approval resolves the backlog.
		if _, err := tx.DeleteApprovals(ref); err != nil {
			return err
		}
		*saved = updated
		return nil
	}

	outstanding := tx.Approvals(ref)
	if len(outstanding) == 0 {
		if _, err := tx.CreateApproval(domain.ApprovalRecord{
			Entity:         ref,
			ActivityType:   domain.ActivityChanged,
			ActivityUserID: actor.ID,
		}); err != nil {
			return err
		}
	} else {
		for _, rec := range outstanding {
			if rec.MessageDateTime != nil && updated.LastChangedAt.After(*rec.MessageDateTime) && !rec.Edited {
				if _, err := tx.UpdateApproval(rec.ID, func(r *domain.ApprovalRecord) error {
					r.Edited = true
					return nil
				}); err != nil {
					return err
				}
			}
		}
	}
	*saved = updated
	return nil
}

// Disapprove rejects an entity's pending state. With no outstanding approval
// record, one is created on behalf of the original creator and the entity is
// flagged unapproved through the side channel, keeping its modification time
// untouched. With an outstanding record the action is a no-op.
func (s *Service) Disapprove(ctx context.Context, actorID int64, ref domain.EntityRef) error {
	result, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		tx.SetActor(actorID)
		view := tx.Snapshot()
		current, ok := view.FindEntity(ref)
		if !ok {
			return domain.ErrNotFound{Kind: ref.Kind, ID: ref.ID}
		}
		if len(tx.Approvals(ref)) > 0 {
			return nil
		}
		if _, err := tx.CreateApproval(domain.ApprovalRecord{
			Entity:         ref,
			ActivityType:   domain.ActivityChanged,
			ActivityUserID: current.CreatedByID,
		}); err != nil {
			return err
		}
		_, err := tx.UpdateEntityNoHistory(ref, func(cur *domain.TrackedEntity) error {
			f := false
			cur.LastChangedApprovalByPI = &f
			return nil
		}, true)
		return err
	})
	if err != nil {
		return err
	}
	s.logViolations(result)
	return nil
}

// Changes returns a lazy, restartable newest-first sequence of field-level
// diffs between adjacent snapshots of the entity. Reference display values
// reflect the referenced records' current names.
func (s *Service) Changes(ctx context.Context, ref domain.EntityRef) iter.Seq[domain.HistoryChange] {
	return func(yield func(domain.HistoryChange) bool) {
		_ = s.store.View(ctx, func(view domain.TransactionView) error {
			cfg, ok := s.registry.Config(ref.Kind)
			if !ok {
				return nil
			}
			for hc := range historyChanges(view, cfg, view.History(ref)) {
				if !yield(hc) {
					return nil
				}
			}
			return nil
		})
	}
}

// ApplyStockedPlasmidCorrection performs the deferred derived-field write:
// the live entity is corrected through the side channel with its
// modification time preserved, then the same value is overwritten on the
// most recent snapshot so history matches the corrected state.
func (s *Service) ApplyStockedPlasmidCorrection(ctx context.Context, ref domain.EntityRef, plasmidIDs []int64) error {
	result, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.UpdateEntityNoHistory(ref, func(cur *domain.TrackedEntity) error {
			cur.PlasmidsInStock = append([]int64(nil), plasmidIDs...)
			return nil
		}, true); err != nil {
			return err
		}
		return tx.OverwriteLatestStockedPlasmids(ref, plasmidIDs)
	})
	if err != nil {
		return err
	}
	s.logViolations(result)
	return nil
}

// CollapseCreationHistory removes the spurious pre-rename snapshot written
// for a brand-new record whose attached file was renamed to its canonical
// name post-save.
func (s *Service) CollapseCreationHistory(ctx context.Context, ref domain.EntityRef) error {
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.CollapseCreation(ref)
	})
	return err
}

// SaveEpisomalLink persists a cell-line/episomal-plasmid linkage, computing
// its destruction date when unset.
func (s *Service) SaveEpisomalLink(ctx context.Context, link domain.EpisomalPlasmidLink) (domain.EpisomalPlasmidLink, error) {
	computeEpisomalDestruction(&link, s.jitter)
	var saved domain.EpisomalPlasmidLink
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		saved, err = tx.SaveEpisomalLink(link)
		return err
	})
	if err != nil {
		return domain.EpisomalPlasmidLink{}, err
	}
	return saved, nil
}

// ApplyPureStockPolicy stamps a destruction date on a plasmid kept only as
// a pure stock, a random offset within the shorter retention window from
// now. Idempotent once a date is set.
func (s *Service) ApplyPureStockPolicy(ctx context.Context, plasmidID int64) error {
	ref := domain.EntityRef{Kind: domain.KindPlasmid, ID: plasmidID}
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		current, ok := view.FindEntity(ref)
		if !ok {
			return domain.ErrNotFound{Kind: ref.Kind, ID: ref.ID}
		}
		if current.DestroyedDate != nil {
			return nil
		}
		d := computePureStockDestruction(s.nowFn(), s.jitter)
		_, err := tx.UpdateEntityNoHistory(ref, func(cur *domain.TrackedEntity) error {
			cur.DestroyedDate = &d
			return nil
		}, false)
		return err
	})
	return err
}

func (s *Service) maybeProcessMap(ctx context.Context, saved domain.TrackedEntity, mapBefore string, opts SaveOptions) {
	if s.maps == nil || opts.SkipMapProcessing {
		return
	}
	if !saved.HasMap() || saved.MapPath == mapBefore {
		return
	}
	// The save is already committed; a caller disconnect must not abort the
	// artifact rebuild halfway through.
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := s.maps.ProcessMap(ctx, saved, opts.DetectCommonFeatures); err != nil {
			s.logger.Error("map processing failed",
				zap.String("kind", string(saved.Kind)),
				zap.Int64("id", saved.ID),
				zap.String("map", saved.MapPath),
				zap.Error(err))
		}
	}()
}

func (s *Service) logViolations(result domain.Result) {
	for _, v := range result.Violations {
		if v.Severity == domain.SeverityBlock {
			continue
		}
		s.logger.Warn("rule violation",
			zap.String("rule", v.Rule),
			zap.String("severity", string(v.Severity)),
			zap.String("kind", string(v.Entity.Kind)),
			zap.Int64("id", v.Entity.ID),
			zap.String("message", v.Message))
	}
}
