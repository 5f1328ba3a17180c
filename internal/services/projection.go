package services

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"soldi/internal/core"
	"soldi/internal/storage"
)

// ProjectionStep is one instance folded into a card's future balance.
type ProjectionStep struct {
	InstanceID int64
	RuleID     int64
	Date       core.Date
	Direction  core.Direction
	Amount     decimal.Decimal
	OldBalance decimal.Decimal
	NewBalance decimal.Decimal
}

// ProjectionResult is the full projection for one card over a date range.
type ProjectionResult struct {
	CardID         int64
	CurrentBalance decimal.Decimal
	FinalBalance   decimal.Decimal
	Steps          []ProjectionStep
}

// Project folds instances over a starting balance in chronological order.
// The input slice is not mutated. An empty list yields no steps and a final
// balance equal to the starting one.
func Project(current decimal.Decimal, instances []core.Instance) []ProjectionStep {
	ordered := make([]core.Instance, len(instances))
	copy(ordered, instances)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ScheduledDate.Before(ordered[j].ScheduledDate.Time)
	})

	steps := make([]ProjectionStep, 0, len(ordered))
	balance := current
	for _, in := range ordered {
		next := balance.Add(in.Direction.Signed(in.ScheduledAmount))
		steps = append(steps, ProjectionStep{
			InstanceID: in.ID,
			RuleID:     in.RuleID,
			Date:       in.ScheduledDate,
			Direction:  in.Direction,
			Amount:     in.ScheduledAmount,
			OldBalance: balance,
			NewBalance: next,
		})
		balance = next
	}
	return steps
}

// ProjectionService computes future card balances from open instances.
type ProjectionService struct {
	repo *storage.Repository
}

func NewProjectionService(repo *storage.Repository) *ProjectionService {
	return &ProjectionService{repo: repo}
}

// ProjectedBalance sweeps overdue state, then folds the card's actionable
// instances within [from, to] over its stored balance.
func (s *ProjectionService) ProjectedBalance(ctx context.Context, userID, cardID int64, from, to core.Date) (ProjectionResult, error) {
	card, err := s.repo.Queries().GetCardForUser(ctx, cardID, userID)
	if err != nil {
		return ProjectionResult{}, err
	}
	if _, err := s.repo.Queries().MarkOverdue(ctx, userID, core.Today()); err != nil {
		return ProjectionResult{}, err
	}

	rows, err := s.repo.Queries().ListInstances(ctx, userID, storage.InstanceFilters{
		CardID: &cardID,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		return ProjectionResult{}, err
	}

	// Only instances that can still hit the ledger move the projection.
	open := make([]core.Instance, 0, len(rows))
	for _, row := range rows {
		if row.Status.Actionable() {
			open = append(open, row.Instance)
		}
	}

	steps := Project(card.Balance, open)
	final := card.Balance
	if len(steps) > 0 {
		final = steps[len(steps)-1].NewBalance
	}
	return ProjectionResult{
		CardID:         cardID,
		CurrentBalance: card.Balance,
		FinalBalance:   final,
		Steps:          steps,
	}, nil
}
