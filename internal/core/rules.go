package core

import (
	"context"
	"fmt"
	"sync"

	"collectioncore/pkg/domain"
)

// RulesEngine evaluates registered rules against the pending changes of a
// transaction. Registration happens at startup; evaluation runs inside the
// store's commit path.
type RulesEngine struct {
	mu    sync.RWMutex
	rules []domain.Rule
}

// NewRulesEngine returns an empty engine.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule. Rules run in registration order.
func (e *RulesEngine) Register(rule domain.Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
}

// Evaluate runs every registered rule and merges their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	e.mu.RLock()
	rules := make([]domain.Rule, len(e.rules))
	copy(rules, e.rules)
	e.mu.RUnlock()

	var result domain.Result
	for _, rule := range rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return domain.Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		result.Merge(res)
	}
	return result, nil
}
