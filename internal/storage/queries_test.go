package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soldi/internal/core"
	"soldi/internal/recurrence"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedRule(t *testing.T, repo *Repository, userID int64) core.Rule {
	t.Helper()
	ctx := context.Background()

	card, err := repo.Queries().CreateCard(ctx, userID, "Main", decimal.Zero)
	require.NoError(t, err)

	rule, err := repo.Queries().CreateRule(ctx, core.Rule{
		UserID:    userID,
		CardID:    card.ID,
		Name:      "Salary",
		Direction: core.DirectionIn,
		Amount:    decimal.NewFromInt(2000),
		Schedule: recurrence.Schedule{
			Frequency:  recurrence.Monthly,
			Interval:   1,
			DayOfMonth: 27,
			Adjustment: recurrence.AdjustLast,
		},
		StartDate: core.NewDate(2024, 1, 27),
		Status:    core.RuleActive,
	})
	require.NoError(t, err)
	return rule
}

func TestQueries_RuleRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created := seedRule(t, repo, 1)

	got, err := repo.Queries().GetRuleForUser(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, created.CardID, got.CardID)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, recurrence.Monthly, got.Schedule.Frequency)
	assert.Equal(t, 27, got.Schedule.DayOfMonth)
	assert.Equal(t, "2024-01-27", got.StartDate.String())
	assert.Nil(t, got.EndDate)
}

func TestQueries_OwnershipFoldedIntoNotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := seedRule(t, repo, 1)

	_, err := repo.Queries().GetRuleForUser(ctx, rule.ID, 2)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = repo.Queries().GetRuleForUser(ctx, 9999, 1)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestQueries_WeeklyScheduleRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	card, err := repo.Queries().CreateCard(ctx, 1, "Main", decimal.Zero)
	require.NoError(t, err)

	created, err := repo.Queries().CreateRule(ctx, core.Rule{
		UserID:    1,
		CardID:    card.ID,
		Name:      "Gym",
		Direction: core.DirectionOut,
		Amount:    decimal.NewFromFloat(9.99),
		Schedule: recurrence.Schedule{
			Frequency:  recurrence.Weekly,
			Interval:   2,
			DaysOfWeek: []int{1, 3, 5},
		},
		StartDate: core.NewDate(2024, 1, 1),
		Status:    core.RuleActive,
	})
	require.NoError(t, err)

	got, err := repo.Queries().GetRuleForUser(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 5}, got.Schedule.DaysOfWeek)
	assert.Equal(t, 2, got.Schedule.Interval)
	assert.True(t, got.Amount.Equal(decimal.NewFromFloat(9.99)))
}

func TestQueries_MaxScheduledDate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := seedRule(t, repo, 1)

	got, err := repo.Queries().MaxScheduledDate(ctx, rule.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "no instances yet")

	for _, d := range []core.Date{core.NewDate(2024, 1, 27), core.NewDate(2024, 2, 27)} {
		_, err := repo.Queries().InsertInstance(ctx, core.Instance{
			RuleID:          rule.ID,
			ScheduledDate:   d,
			ScheduledAmount: rule.Amount,
			Direction:       rule.Direction,
			Status:          core.InstancePending,
		})
		require.NoError(t, err)
	}

	got, err = repo.Queries().MaxScheduledDate(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2024-02-27", got.String())
}

func TestQueries_MarkOverdue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := seedRule(t, repo, 1)
	past, err := repo.Queries().InsertInstance(ctx, core.Instance{
		RuleID:          rule.ID,
		ScheduledDate:   core.NewDate(2024, 1, 27),
		ScheduledAmount: rule.Amount,
		Direction:       rule.Direction,
		Status:          core.InstancePending,
	})
	require.NoError(t, err)
	future, err := repo.Queries().InsertInstance(ctx, core.Instance{
		RuleID:          rule.ID,
		ScheduledDate:   core.NewDate(2099, 1, 27),
		ScheduledAmount: rule.Amount,
		Direction:       rule.Direction,
		Status:          core.InstancePending,
	})
	require.NoError(t, err)

	flipped, err := repo.Queries().MarkOverdue(ctx, 1, core.Today())
	require.NoError(t, err)
	assert.Equal(t, int64(1), flipped)

	row, err := repo.Queries().GetInstanceForUser(ctx, past.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, core.InstanceOverdue, row.Status)

	row, err = repo.Queries().GetInstanceForUser(ctx, future.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, core.InstancePending, row.Status)
}

func TestQueries_ListInstances_Filters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := seedRule(t, repo, 1)
	dates := []core.Date{
		core.NewDate(2024, 1, 27),
		core.NewDate(2024, 2, 27),
		core.NewDate(2024, 3, 27),
	}
	for _, d := range dates {
		_, err := repo.Queries().InsertInstance(ctx, core.Instance{
			RuleID:          rule.ID,
			ScheduledDate:   d,
			ScheduledAmount: rule.Amount,
			Direction:       rule.Direction,
			Status:          core.InstancePending,
		})
		require.NoError(t, err)
	}

	from := core.NewDate(2024, 2, 1)
	to := core.NewDate(2024, 2, 29)
	rows, err := repo.Queries().ListInstances(ctx, 1, InstanceFilters{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-02-27", rows[0].ScheduledDate.String())
	assert.Equal(t, "Salary", rows[0].RuleName)
	assert.Equal(t, rule.CardID, rows[0].CardID)

	// Other users see nothing.
	rows, err = repo.Queries().ListInstances(ctx, 2, InstanceFilters{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEncodeWeekdays(t *testing.T) {
	assert.Equal(t, "", encodeWeekdays(nil))
	assert.Equal(t, "1,3,5", encodeWeekdays([]int{1, 3, 5}))
	assert.Nil(t, decodeWeekdays(""))
	assert.Equal(t, []int{0, 6}, decodeWeekdays("0,6"))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := seedRule(t, repo, 1)

	boom := assert.AnError
	err := repo.WithTx(ctx, func(q *Queries) error {
		_, err := q.InsertInstance(ctx, core.Instance{
			RuleID:          rule.ID,
			ScheduledDate:   core.NewDate(2024, 1, 27),
			ScheduledAmount: rule.Amount,
			Direction:       rule.Direction,
			Status:          core.InstancePending,
		})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := repo.Queries().ListInstances(ctx, 1, InstanceFilters{})
	require.NoError(t, err)
	assert.Empty(t, rows, "insert inside a failed transaction must not persist")
}
