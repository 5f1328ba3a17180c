// Package services orchestrates the recurrence engine: rule CRUD, instance
// generation, the instance lifecycle, and balance projection.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"soldi/internal/core"
	"soldi/internal/storage"
)

// RuleService owns the recurrence definitions and their edit history.
type RuleService struct {
	repo *storage.Repository
	gen  *Generator
}

func NewRuleService(repo *storage.Repository, gen *Generator) *RuleService {
	return &RuleService{repo: repo, gen: gen}
}

// Create validates and persists a new rule, then materializes its first
// horizon of instances.
func (s *RuleService) Create(ctx context.Context, rule core.Rule) (core.Rule, int, error) {
	if err := rule.Validate(); err != nil {
		return core.Rule{}, 0, fmt.Errorf("%w: %s", core.ErrValidation, err)
	}
	if err := s.checkOwnership(ctx, rule); err != nil {
		return core.Rule{}, 0, err
	}

	var created core.Rule
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		created, err = q.CreateRule(ctx, rule)
		if err != nil {
			return err
		}
		_, err = q.InsertHistory(ctx, core.HistoryRecord{
			RuleID:    created.ID,
			Action:    core.HistoryCreated,
			NewValues: ruleSnapshot(created),
		})
		return err
	})
	if err != nil {
		return core.Rule{}, 0, fmt.Errorf("create rule: %w", err)
	}

	generated, err := s.gen.Generate(ctx, created, 0)
	if err != nil {
		return created, 0, fmt.Errorf("generate instances for rule %d: %w", created.ID, err)
	}

	slog.InfoContext(ctx, "Recurring rule created",
		"rule_id", created.ID,
		"user_id", created.UserID,
		"frequency", string(created.Schedule.Frequency),
		"instances", generated)
	return created, generated, nil
}

func (s *RuleService) List(ctx context.Context, userID int64, f storage.RuleFilters) ([]core.Rule, error) {
	return s.repo.Queries().ListRules(ctx, userID, f)
}

// Get returns a rule together with its still-open instances in scheduled
// order. Like every instance read, it sweeps date-passed pending instances
// to overdue first.
func (s *RuleService) Get(ctx context.Context, userID, ruleID int64) (core.Rule, []core.Instance, error) {
	q := s.repo.Queries()
	rule, err := q.GetRuleForUser(ctx, ruleID, userID)
	if err != nil {
		return core.Rule{}, nil, err
	}
	if _, err := q.MarkOverdue(ctx, userID, core.Today()); err != nil {
		return core.Rule{}, nil, err
	}
	upcoming, err := q.ListOpenForRule(ctx, ruleID)
	if err != nil {
		return core.Rule{}, nil, err
	}
	return rule, upcoming, nil
}

// Update persists a new definition for an existing rule. Pending instances
// are left exactly as generated under the old definition unless one of the
// option flags asks for them to be replaced.
func (s *RuleService) Update(ctx context.Context, userID, ruleID int64, def core.Rule, opts core.UpdateOptions) (core.Rule, error) {
	existing, err := s.repo.Queries().GetRuleForUser(ctx, ruleID, userID)
	if err != nil {
		return core.Rule{}, err
	}

	def.ID = existing.ID
	def.UserID = existing.UserID
	def.CreatedAt = existing.CreatedAt
	if def.Status == "" {
		def.Status = existing.Status
	}
	if err := def.Validate(); err != nil {
		return core.Rule{}, fmt.Errorf("%w: %s", core.ErrValidation, err)
	}
	if err := s.checkOwnership(ctx, def); err != nil {
		return core.Rule{}, err
	}

	err = s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if err := q.UpdateRule(ctx, def); err != nil {
			return err
		}
		if opts.ApplyToFuture || opts.RecreateInstances {
			if _, err := q.DeletePendingInstances(ctx, ruleID); err != nil {
				return err
			}
		}
		oldVals, newVals := ruleSnapshot(existing), ruleSnapshot(def)
		_, err := q.InsertHistory(ctx, core.HistoryRecord{
			RuleID:        ruleID,
			Action:        core.HistoryUpdated,
			ChangedFields: changedFields(oldVals, newVals),
			OldValues:     oldVals,
			NewValues:     newVals,
		})
		return err
	})
	if err != nil {
		return core.Rule{}, fmt.Errorf("update rule %d: %w", ruleID, err)
	}

	if opts.RecreateInstances {
		if _, err := s.gen.Generate(ctx, def, 0); err != nil {
			return core.Rule{}, fmt.Errorf("regenerate instances for rule %d: %w", ruleID, err)
		}
	}

	slog.InfoContext(ctx, "Recurring rule updated",
		"rule_id", ruleID,
		"apply_to_future", opts.ApplyToFuture,
		"recreate_instances", opts.RecreateInstances)
	return def, nil
}

// Remove cancels a rule. By default this is a soft cancel: the rule status
// becomes cancelled and every still-open instance is transitioned to
// cancelled. With DeleteInstances set, instances are removed instead,
// optionally restricted to future dates and/or sparing completed ones.
func (s *RuleService) Remove(ctx context.Context, userID, ruleID int64, opts core.RemoveOptions) error {
	rule, err := s.repo.Queries().GetRuleForUser(ctx, ruleID, userID)
	if err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(q *storage.Queries) error {
		var affected int64
		var err error
		if opts.DeleteInstances {
			affected, err = q.DeleteOpenInstances(ctx, ruleID, opts.FutureOnly, opts.PreserveCompleted, core.Today())
		} else {
			affected, err = q.CancelOpenInstances(ctx, ruleID)
		}
		if err != nil {
			return err
		}
		if err := q.UpdateRuleStatus(ctx, ruleID, core.RuleCancelled); err != nil {
			return err
		}
		_, err = q.InsertHistory(ctx, core.HistoryRecord{
			RuleID:    ruleID,
			Action:    core.HistoryCancelled,
			OldValues: map[string]any{"status": string(rule.Status)},
			NewValues: map[string]any{
				"status":             string(core.RuleCancelled),
				"delete_instances":   opts.DeleteInstances,
				"future_only":        opts.FutureOnly,
				"preserve_completed": opts.PreserveCompleted,
				"instances_affected": affected,
			},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("remove rule %d: %w", ruleID, err)
	}

	slog.InfoContext(ctx, "Recurring rule cancelled",
		"rule_id", ruleID,
		"delete_instances", opts.DeleteInstances)
	return nil
}

// Delete removes the rule and all its instances outright. History records
// survive; they have independent lifetime.
func (s *RuleService) Delete(ctx context.Context, userID, ruleID int64) error {
	rule, err := s.repo.Queries().GetRuleForUser(ctx, ruleID, userID)
	if err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := q.InsertHistory(ctx, core.HistoryRecord{
			RuleID:    ruleID,
			Action:    core.HistoryDeleted,
			OldValues: ruleSnapshot(rule),
		}); err != nil {
			return err
		}
		return q.DeleteRule(ctx, ruleID)
	})
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", ruleID, err)
	}

	slog.InfoContext(ctx, "Recurring rule deleted", "rule_id", ruleID)
	return nil
}

// History returns the append-only audit trail of a rule.
func (s *RuleService) History(ctx context.Context, userID, ruleID int64) ([]core.HistoryRecord, error) {
	// Ownership first; history survives rule deletion but is only readable
	// while the rule exists.
	if _, err := s.repo.Queries().GetRuleForUser(ctx, ruleID, userID); err != nil {
		return nil, err
	}
	return s.repo.Queries().ListHistoryForRule(ctx, ruleID)
}

// checkOwnership validates that the rule's target card and category belong
// to the rule's user. Failures surface as not-found.
func (s *RuleService) checkOwnership(ctx context.Context, rule core.Rule) error {
	q := s.repo.Queries()
	if _, err := q.GetCardForUser(ctx, rule.CardID, rule.UserID); err != nil {
		return err
	}
	if rule.CategoryID != nil {
		if _, err := q.GetCategoryForUser(ctx, *rule.CategoryID, rule.UserID); err != nil {
			return err
		}
	}
	return nil
}

func ruleSnapshot(r core.Rule) map[string]any {
	snap := map[string]any{
		"name":         r.Name,
		"card_id":      r.CardID,
		"direction":    string(r.Direction),
		"amount":       r.Amount.String(),
		"frequency":    string(r.Schedule.Frequency),
		"interval":     r.Schedule.Interval,
		"days_of_week": r.Schedule.DaysOfWeek,
		"day_of_month": r.Schedule.DayOfMonth,
		"month":        r.Schedule.Month,
		"day":          r.Schedule.Day,
		"adjustment":   string(r.Schedule.Adjustment),
		"start_date":   r.StartDate.String(),
		"status":       string(r.Status),
	}
	if r.CategoryID != nil {
		snap["category_id"] = *r.CategoryID
	}
	if r.EndDate != nil {
		snap["end_date"] = r.EndDate.String()
	}
	return snap
}

func changedFields(oldVals, newVals map[string]any) []string {
	var fields []string
	for key, newVal := range newVals {
		if fmt.Sprint(oldVals[key]) != fmt.Sprint(newVal) {
			fields = append(fields, key)
		}
	}
	for key := range oldVals {
		if _, ok := newVals[key]; !ok {
			fields = append(fields, key)
		}
	}
	sort.Strings(fields)
	return fields
}
