package services

import (
	"context"
	"fmt"
	"log/slog"

	"soldi/internal/core"
	"soldi/internal/recurrence"
	"soldi/internal/storage"
)

// DefaultHorizonDays is how far ahead instances are materialized for rules
// without an end date.
const DefaultHorizonDays = 90

// Generator materializes rule occurrences into pending instances.
type Generator struct {
	repo *storage.Repository
}

func NewGenerator(repo *storage.Repository) *Generator {
	return &Generator{repo: repo}
}

// Generate appends new pending instances for a rule up to the horizon and
// returns how many were inserted. The whole append runs in one transaction;
// a failed insert leaves nothing behind.
//
// Generation is idempotent by construction: the window always starts one day
// after the latest already-materialized scheduled date, so re-invoking with
// an unchanged rule and no elapsed time inserts zero rows.
func (g *Generator) Generate(ctx context.Context, rule core.Rule, horizonDays int) (int, error) {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	inserted := 0
	err := g.repo.WithTx(ctx, func(q *storage.Queries) error {
		start := rule.StartDate.Time
		last, err := q.MaxScheduledDate(ctx, rule.ID)
		if err != nil {
			return err
		}
		if last != nil {
			start = last.AddDate(0, 0, 1)
		}

		end := core.Today().AddDate(0, 0, horizonDays)
		if rule.EndDate != nil {
			end = rule.EndDate.Time
		}
		if end.Before(start) {
			return nil
		}

		dates, err := recurrence.Occurrences(rule.Schedule, start, end)
		if err != nil {
			return fmt.Errorf("compute occurrences for rule %d: %w", rule.ID, err)
		}

		for _, d := range dates {
			_, err := q.InsertInstance(ctx, core.Instance{
				RuleID:          rule.ID,
				ScheduledDate:   core.DateOf(d),
				ScheduledAmount: rule.Amount,
				Direction:       rule.Direction,
				Status:          core.InstancePending,
			})
			if err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if inserted > 0 {
		slog.InfoContext(ctx, "Generated recurring instances",
			"rule_id", rule.ID,
			"inserted", inserted,
			"horizon_days", horizonDays)
	}
	return inserted, nil
}
