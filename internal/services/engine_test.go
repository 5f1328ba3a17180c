package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soldi/internal/core"
	"soldi/internal/recurrence"
	"soldi/internal/storage"
)

type testEnv struct {
	repo        *storage.Repository
	rules       *RuleService
	instances   *InstanceService
	projections *ProjectionService
	card        core.Card
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	// The stored balance is always derived from the ledger, so the opening
	// balance is seeded as a transaction.
	ctx := context.Background()
	card, err := repo.Queries().CreateCard(ctx, 1, "Main", decimal.Zero)
	require.NoError(t, err)
	_, err = repo.Queries().CreateTransaction(ctx, core.Transaction{
		UserID:    1,
		CardID:    card.ID,
		Direction: core.DirectionIn,
		Amount:    decimal.NewFromInt(1000),
		Date:      core.NewDate(2023, 12, 31),
		Note:      "Opening balance",
	})
	require.NoError(t, err)
	card.Balance, err = repo.Queries().RecomputeCardBalance(ctx, card.ID)
	require.NoError(t, err)

	gen := NewGenerator(repo)
	return &testEnv{
		repo:        repo,
		rules:       NewRuleService(repo, gen),
		instances:   NewInstanceService(repo, nil),
		projections: NewProjectionService(repo),
		card:        card,
	}
}

// monthlyRule is a closed-window rule whose three occurrences are fully in
// the past, which keeps generation deterministic regardless of today's date.
func (e *testEnv) monthlyRule() core.Rule {
	end := core.NewDate(2024, 3, 31)
	return core.Rule{
		UserID:    1,
		CardID:    e.card.ID,
		Name:      "Rent",
		Direction: core.DirectionOut,
		Amount:    decimal.NewFromInt(100),
		Schedule: recurrence.Schedule{
			Frequency:  recurrence.Monthly,
			Interval:   1,
			DayOfMonth: 1,
			Adjustment: recurrence.AdjustLast,
		},
		StartDate: core.NewDate(2024, 1, 1),
		EndDate:   &end,
		Status:    core.RuleActive,
	}
}

func TestRuleService_CreateGeneratesInstances(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	created, generated, err := e.rules.Create(ctx, e.monthlyRule())
	require.NoError(t, err)
	assert.Equal(t, 3, generated)
	assert.NotZero(t, created.ID)

	// Read straight from storage: generation itself leaves instances pending,
	// the overdue flip only happens on read paths.
	upcoming, err := e.repo.Queries().ListOpenForRule(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, upcoming, 3)
	assert.Equal(t, "2024-01-01", upcoming[0].ScheduledDate.String())
	assert.Equal(t, "2024-02-01", upcoming[1].ScheduledDate.String())
	assert.Equal(t, "2024-03-01", upcoming[2].ScheduledDate.String())
	for _, in := range upcoming {
		assert.Equal(t, core.InstancePending, in.Status)
		assert.True(t, in.ScheduledAmount.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, core.DirectionOut, in.Direction)
	}
}

func TestRuleService_Get_SweepsOverdue(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	created, _, err := e.rules.Create(ctx, e.monthlyRule())
	require.NoError(t, err)

	// Every scheduled date is in the past, so reading through the service
	// must report them overdue, same as the instance listing would.
	_, upcoming, err := e.rules.Get(ctx, 1, created.ID)
	require.NoError(t, err)
	require.Len(t, upcoming, 3)
	for _, in := range upcoming {
		assert.Equal(t, core.InstanceOverdue, in.Status)
	}
}

func TestRuleService_Create_Validation(t *testing.T) {
	e := newTestEnv(t)

	bad := e.monthlyRule()
	bad.Amount = decimal.Zero

	_, _, err := e.rules.Create(context.Background(), bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestRuleService_Create_ForeignCardIsNotFound(t *testing.T) {
	e := newTestEnv(t)

	rule := e.monthlyRule()
	rule.UserID = 2 // card belongs to user 1

	_, _, err := e.rules.Create(context.Background(), rule)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGenerator_Idempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	created, generated, err := e.rules.Create(ctx, e.monthlyRule())
	require.NoError(t, err)
	require.Equal(t, 3, generated)

	gen := NewGenerator(e.repo)
	again, err := gen.Generate(ctx, created, 0)
	require.NoError(t, err)
	assert.Zero(t, again, "second generation with no elapsed time must insert nothing")
}

func TestInstanceService_Sweep(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, _, err := e.rules.Create(ctx, e.monthlyRule())
	require.NoError(t, err)

	// All three scheduled dates are in the past.
	views, err := e.instances.List(ctx, 1, storage.InstanceFilters{})
	require.NoError(t, err)
	require.Len(t, views, 3)
	for _, v := range views {
		assert.Equal(t, core.InstanceOverdue, v.Status)
	}

	// Sweeping again changes nothing.
	flipped, err := e.instances.MarkOverdue(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, flipped)
}

func TestInstanceService_List_RunningBalances(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, _, err := e.rules.Create(ctx, e.monthlyRule())
	require.NoError(t, err)

	views, err := e.instances.List(ctx, 1, storage.InstanceFilters{})
	require.NoError(t, err)
	require.Len(t, views, 3)

	assert.True(t, views[0].OldBalance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, views[0].NewBalance.Equal(decimal.NewFromInt(900)))
	assert.True(t, views[1].OldBalance.Equal(decimal.NewFromInt(900)))
	assert.True(t, views[2].NewBalance.Equal(decimal.NewFromInt(700)))
}

func TestInstanceService_Complete(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, _, err := e.rules.Create(ctx, e.monthlyRule())
	require.NoError(t, err)
	views, err := e.instances.List(ctx, 1, storage.InstanceFilters{})
	require.NoError(t, err)

	t.Run("no overrides yields completed", func(t *testing.T) {
		done, err := e.instances.Complete(ctx, 1, views[0].ID, core.CompleteOverrides{})
		require.NoError(t, err)
		assert.Equal(t, core.InstanceCompleted, done.Status)
		require.NotNil(t, done.ActualDate)
		assert.Equal(t, done.ScheduledDate.String(), done.ActualDate.String())
		require.NotNil(t, done.ActualAmount)
		assert.True(t, done.ActualAmount.Equal(done.ScheduledAmount))
		assert.NotNil(t, done.CompletedAt)
	})

	t.Run("amount override yields modified", func(t *testing.T) {
		amount := decimal.NewFromInt(150)
		done, err := e.instances.Complete(ctx, 1, views[1].ID, core.CompleteOverrides{Amount: &amount})
		require.NoError(t, err)
		assert.Equal(t, core.InstanceModified, done.Status)
		assert.True(t, done.ActualAmount.Equal(amount))
	})

	t.Run("date override yields modified", func(t *testing.T) {
		actual := core.NewDate(2024, 3, 5)
		done, err := e.instances.Complete(ctx, 1, views[2].ID, core.CompleteOverrides{Date: &actual})
		require.NoError(t, err)
		assert.Equal(t, core.InstanceModified, done.Status)
		assert.Equal(t, "2024-03-05", done.ActualDate.String())
	})

	t.Run("completing a terminal instance conflicts", func(t *testing.T) {
		_, err := e.instances.Complete(ctx, 1, views[0].ID, core.CompleteOverrides{})
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrConflict)
	})
}

func TestInstanceService_Skip(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, _, err := e.rules.Create(ctx, e.monthlyRule())
	require.NoError(t, err)
	views, err := e.instances.List(ctx, 1, storage.InstanceFilters{})
	require.NoError(t, err)

	reason := "paused subscription"
	skipped, err := e.instances.Skip(ctx, 1, views[0].ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, core.InstanceSkipped, skipped.Status)
	require.NotNil(t, skipped.SkipReason)
	assert.Equal(t, reason, *skipped.SkipReason)

	_, err = e.instances.Skip(ctx, 1, views[0].ID, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestInstanceService_CreateTransactionFromInstance(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	created, _, err := e.rules.Create(ctx, e.monthlyRule())
	require.NoError(t, err)
	views, err := e.instances.List(ctx, 1, storage.InstanceFilters{})
	require.NoError(t, err)

	instance, tx, err := e.instances.CreateTransactionFromInstance(ctx, 1, views[0].ID, core.CompleteOverrides{})
	require.NoError(t, err)

	assert.Equal(t, core.InstanceCompleted, instance.Status)
	require.NotNil(t, instance.TransactionID)
	assert.Equal(t, tx.ID, *instance.TransactionID)
	assert.Equal(t, created.CardID, tx.CardID)
	assert.Equal(t, core.DirectionOut, tx.Direction)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(100)))
	assert.Contains(t, tx.Note, "Rent")

	// Balance was recomputed from the ledger: 1000 - 100.
	card, err := e.repo.Queries().GetCardForUser(ctx, e.card.ID, 1)
	require.NoError(t, err)
	assert.True(t, card.Balance.Equal(decimal.NewFromInt(900)), "balance = %s", card.Balance)

	// A second attempt on the same instance conflicts and writes nothing.
	_, _, err = e.instances.CreateTransactionFromInstance(ctx, 1, views[0].ID, core.CompleteOverrides{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConflict)
	card, err = e.repo.Queries().GetCardForUser(ctx, e.card.ID, 1)
	require.NoError(t, err)
	assert.True(t, card.Balance.Equal(decimal.NewFromInt(900)))
}

func TestRuleService_Remove_SoftCancel(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	created, _, err := e.rules.Create(ctx, e.monthlyRule())
	require.NoError(t, err)
	views, err := e.instances.List(ctx, 1, storage.InstanceFilters{})
	require.NoError(t, err)

	// Complete one instance first; cancellation must not touch it.
	done, err := e.instances.Complete(ctx, 1, views[0].ID, core.CompleteOverrides{})
	require.NoError(t, err)
	require.Equal(t, core.InstanceCompleted, done.Status)

	require.NoError(t, e.rules.Remove(ctx, 1, created.ID, core.RemoveOptions{}))

	rule, _, err := e.rules.Get(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RuleCancelled, rule.Status)

	rows, err := e.repo.Queries().ListInstances(ctx, 1, storage.InstanceFilters{RuleID: &created.ID})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	statuses := map[core.InstanceStatus]int{}
	for _, row := range rows {
		statuses[row.Status]++
	}
	assert.Equal(t, 1, statuses[core.InstanceCompleted])
	assert.Equal(t, 2, statuses[core.InstanceCancelled])
}

func TestRuleService_Delete_Hard(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	created, _, err := e.rules.Create(ctx, e.monthlyRule())
	require.NoError(t, err)

	require.NoError(t, e.rules.Delete(ctx, 1, created.ID))

	_, _, err = e.rules.Get(ctx, 1, created.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	rows, err := e.repo.Queries().ListInstances(ctx, 1, storage.InstanceFilters{RuleID: &created.ID})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRuleService_Update_RecreatesInstances(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	created, _, err := e.rules.Create(ctx, e.monthlyRule())
	require.NoError(t, err)

	def := e.monthlyRule()
	def.Amount = decimal.NewFromInt(250)
	updated, err := e.rules.Update(ctx, 1, created.ID, def, core.UpdateOptions{RecreateInstances: true})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(250)))

	_, upcoming, err := e.rules.Get(ctx, 1, created.ID)
	require.NoError(t, err)
	require.Len(t, upcoming, 3)
	for _, in := range upcoming {
		assert.True(t, in.ScheduledAmount.Equal(decimal.NewFromInt(250)))
	}
}

func TestRuleService_Update_KeepsInstancesByDefault(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	created, _, err := e.rules.Create(ctx, e.monthlyRule())
	require.NoError(t, err)

	def := e.monthlyRule()
	def.Amount = decimal.NewFromInt(250)
	_, err = e.rules.Update(ctx, 1, created.ID, def, core.UpdateOptions{})
	require.NoError(t, err)

	// Existing instances keep the amounts they were generated with.
	_, upcoming, err := e.rules.Get(ctx, 1, created.ID)
	require.NoError(t, err)
	require.Len(t, upcoming, 3)
	for _, in := range upcoming {
		assert.True(t, in.ScheduledAmount.Equal(decimal.NewFromInt(100)))
	}
}

func TestRuleService_History(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	created, _, err := e.rules.Create(ctx, e.monthlyRule())
	require.NoError(t, err)

	def := e.monthlyRule()
	def.Name = "Rent (new lease)"
	_, err = e.rules.Update(ctx, 1, created.ID, def, core.UpdateOptions{})
	require.NoError(t, err)

	records, err := e.rules.History(ctx, 1, created.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, core.HistoryCreated, records[0].Action)
	assert.Equal(t, core.HistoryUpdated, records[1].Action)
	assert.Contains(t, records[1].ChangedFields, "name")
	assert.Equal(t, "Rent", records[1].OldValues["name"])
	assert.Equal(t, "Rent (new lease)", records[1].NewValues["name"])
}

func TestProject_Pure(t *testing.T) {
	t.Run("empty list returns current balance", func(t *testing.T) {
		steps := Project(decimal.NewFromInt(500), nil)
		assert.Empty(t, steps)
	})

	t.Run("folds signed amounts in date order", func(t *testing.T) {
		instances := []core.Instance{
			{ID: 2, ScheduledDate: core.NewDate(2024, 2, 1), ScheduledAmount: decimal.NewFromInt(50), Direction: core.DirectionIn},
			{ID: 1, ScheduledDate: core.NewDate(2024, 1, 1), ScheduledAmount: decimal.NewFromInt(100), Direction: core.DirectionOut},
		}

		steps := Project(decimal.NewFromInt(500), instances)
		require.Len(t, steps, 2)

		assert.Equal(t, int64(1), steps[0].InstanceID)
		assert.True(t, steps[0].OldBalance.Equal(decimal.NewFromInt(500)))
		assert.True(t, steps[0].NewBalance.Equal(decimal.NewFromInt(400)))
		assert.Equal(t, int64(2), steps[1].InstanceID)
		assert.True(t, steps[1].NewBalance.Equal(decimal.NewFromInt(450)))

		// final = current + sum of signed amounts
		assert.True(t, steps[len(steps)-1].NewBalance.Equal(
			decimal.NewFromInt(500).Add(decimal.NewFromInt(-100)).Add(decimal.NewFromInt(50))))
	})
}

func TestProjectionService_ProjectedBalance(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, _, err := e.rules.Create(ctx, e.monthlyRule())
	require.NoError(t, err)

	result, err := e.projections.ProjectedBalance(ctx, 1, e.card.ID,
		core.NewDate(2024, 1, 1), core.NewDate(2024, 12, 31))
	require.NoError(t, err)

	assert.True(t, result.CurrentBalance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, result.FinalBalance.Equal(decimal.NewFromInt(700)))
	require.Len(t, result.Steps, 3)
	assert.True(t, result.Steps[0].OldBalance.Equal(decimal.NewFromInt(1000)))

	t.Run("terminal instances do not project", func(t *testing.T) {
		views, err := e.instances.List(ctx, 1, storage.InstanceFilters{})
		require.NoError(t, err)
		_, err = e.instances.Skip(ctx, 1, views[0].ID, nil)
		require.NoError(t, err)

		result, err := e.projections.ProjectedBalance(ctx, 1, e.card.ID,
			core.NewDate(2024, 1, 1), core.NewDate(2024, 12, 31))
		require.NoError(t, err)
		assert.True(t, result.FinalBalance.Equal(decimal.NewFromInt(800)))
		assert.Len(t, result.Steps, 2)
	})

	t.Run("empty window returns current balance", func(t *testing.T) {
		result, err := e.projections.ProjectedBalance(ctx, 1, e.card.ID,
			core.NewDate(2030, 1, 1), core.NewDate(2030, 12, 31))
		require.NoError(t, err)
		assert.True(t, result.FinalBalance.Equal(result.CurrentBalance))
		assert.Empty(t, result.Steps)
	})

	t.Run("foreign card is not found", func(t *testing.T) {
		_, err := e.projections.ProjectedBalance(ctx, 2, e.card.ID,
			core.NewDate(2024, 1, 1), core.NewDate(2024, 12, 31))
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}
