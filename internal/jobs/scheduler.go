// Package jobs runs the deferred background work that lives outside the
// request path: revoking temporary elevated permissions after a fixed delay.
package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"collectioncore/internal/notify"
)

// RevocationDelay is how long a temporary permission grant lives.
const RevocationDelay = 24 * time.Hour

// Grant is a temporary elevated permission handed to a lab member.
type Grant struct {
	ID         string
	UserID     int64
	Permission string
	GrantedAt  time.Time
}

// Revoker removes a grant. Implemented against the user store.
type Revoker interface {
	Revoke(ctx context.Context, grant Grant) error
}

// RevokerFunc adapts a function to the Revoker interface.
type RevokerFunc func(ctx context.Context, grant Grant) error

func (f RevokerFunc) Revoke(ctx context.Context, grant Grant) error { return f(ctx, grant) }

// Scheduler fires best-effort deferred revocations. Cancellation is not
// supported: once scheduled, a revocation runs or is lost with the process.
// A grant whose revocation never ran stays active until manually revoked.
type Scheduler struct {
	revoker  Revoker
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewScheduler wires a scheduler.
func NewScheduler(revoker Revoker, notifier notify.Notifier, logger *zap.Logger) *Scheduler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{revoker: revoker, notifier: notifier, logger: logger}
}

// ScheduleRevocation queues the grant's revocation after the given delay and
// returns the grant with its assigned id.
func (s *Scheduler) ScheduleRevocation(grant Grant, delay time.Duration) Grant {
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	if grant.GrantedAt.IsZero() {
		grant.GrantedAt = time.Now().UTC()
	}
	time.AfterFunc(delay, func() {
		s.run(grant)
	})
	s.logger.Info("revocation scheduled",
		zap.String("grant", grant.ID),
		zap.Int64("user", grant.UserID),
		zap.String("permission", grant.Permission),
		zap.Duration("delay", delay))
	return grant
}

func (s *Scheduler) run(grant Grant) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.revoker.Revoke(ctx, grant); err != nil {
		s.logger.Error("revocation failed",
			zap.String("grant", grant.ID),
			zap.Int64("user", grant.UserID),
			zap.Error(err))
		if nerr := s.notifier.NotifyAdmins(
			"[collectioncore] permission revocation failed",
			"Grant "+grant.ID+" for user could not be revoked: "+err.Error(),
		); nerr != nil {
			s.logger.Error("admin notification failed", zap.Error(nerr))
		}
		return
	}
	s.logger.Info("revocation completed", zap.String("grant", grant.ID), zap.Int64("user", grant.UserID))
}
