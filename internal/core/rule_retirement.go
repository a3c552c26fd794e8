package core

import (
	"context"
	"fmt"

	"collectioncore/pkg/domain"
)

// DestructionDateRule blocks destruction dates that predate the record's
// creation.
type DestructionDateRule struct{}

func (DestructionDateRule) Name() string { return "destruction_date_ordering" }

func (DestructionDateRule) Evaluate(ctx context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, ch := range changes {
		if ch.After == nil || ch.After.DestroyedDate == nil {
			continue
		}
		if ch.After.DestroyedDate.Before(ch.After.CreatedAt) {
			result.Violations = append(result.Violations, domain.Violation{
				Rule:     "destruction_date_ordering",
				Severity: domain.SeverityBlock,
				Message:  "destruction date predates record creation",
				Entity:   ch.Ref,
			})
		}
	}
	return result, nil
}

// RetiredRecordRule warns when a record is edited past its destruction
// date. The material is gone; the edit is probably a mistake.
type RetiredRecordRule struct{}

func (RetiredRecordRule) Name() string { return "retired_record_edit" }

func (RetiredRecordRule) Evaluate(ctx context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, ch := range changes {
		if ch.Action != domain.ActionUpdate || ch.Before == nil || ch.After == nil {
			continue
		}
		if ch.Before.DestroyedDate == nil {
			continue
		}
		if ch.Before.DestroyedDate.Before(ch.After.LastChangedAt) {
			result.Violations = append(result.Violations, domain.Violation{
				Rule:     "retired_record_edit",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("record was destroyed on %s", ch.Before.DestroyedDate.Format("2006-01-02")),
				Entity:   ch.Ref,
			})
		}
	}
	return result, nil
}

// DefaultRules returns the rules registered by the service binary.
func DefaultRules() []domain.Rule {
	return []domain.Rule{DestructionDateRule{}, RetiredRecordRule{}}
}
