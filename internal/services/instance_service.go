package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"soldi/internal/amqp"
	"soldi/internal/core"
	"soldi/internal/storage"
)

// InstanceService owns individual instance state transitions and their side
// effects: ledger writes, card balance refresh, audit history, and the
// transaction-created events the surrounding ledger consumes.
type InstanceService struct {
	repo   *storage.Repository
	events *amqp.Client
}

// NewInstanceService creates the lifecycle manager. The events client may be
// nil; event publication is then skipped.
func NewInstanceService(repo *storage.Repository, events *amqp.Client) *InstanceService {
	return &InstanceService{repo: repo, events: events}
}

// InstanceView is an instance augmented with the running balance around it.
type InstanceView struct {
	storage.InstanceRow
	OldBalance decimal.Decimal
	NewBalance decimal.Decimal
}

// MarkOverdue flips the user's date-passed pending instances to overdue.
// Idempotent; run before every instance read.
func (s *InstanceService) MarkOverdue(ctx context.Context, userID int64) (int64, error) {
	flipped, err := s.repo.Queries().MarkOverdue(ctx, userID, core.Today())
	if err != nil {
		return 0, err
	}
	if flipped > 0 {
		slog.InfoContext(ctx, "Marked instances overdue",
			"user_id", userID, "count", flipped)
	}
	return flipped, nil
}

// List returns the user's instances, swept for overdue first and augmented
// with per-card running balances relative to each card's stored balance.
func (s *InstanceService) List(ctx context.Context, userID int64, f storage.InstanceFilters) ([]InstanceView, error) {
	if _, err := s.MarkOverdue(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := s.repo.Queries().ListInstances(ctx, userID, f)
	if err != nil {
		return nil, err
	}

	// Fold per card: rows arrive in scheduled order, so walking them once
	// while tracking one running balance per card preserves that order.
	running := make(map[int64]decimal.Decimal)
	views := make([]InstanceView, 0, len(rows))
	for _, row := range rows {
		balance, ok := running[row.CardID]
		if !ok {
			card, err := s.repo.Queries().GetCardForUser(ctx, row.CardID, userID)
			if err != nil {
				return nil, err
			}
			balance = card.Balance
		}
		next := balance.Add(row.Direction.Signed(row.ScheduledAmount))
		running[row.CardID] = next
		views = append(views, InstanceView{
			InstanceRow: row,
			OldBalance:  balance,
			NewBalance:  next,
		})
	}
	return views, nil
}

// Get returns one instance, swept for overdue first.
func (s *InstanceService) Get(ctx context.Context, userID, instanceID int64) (storage.InstanceRow, error) {
	if _, err := s.MarkOverdue(ctx, userID); err != nil {
		return storage.InstanceRow{}, err
	}
	return s.repo.Queries().GetInstanceForUser(ctx, instanceID, userID)
}

// Complete finalizes an instance without touching the ledger. The status
// becomes completed, or modified when the resolved date or amount deviates
// from the schedule. Absent overrides resolve to the scheduled values, not
// today's date: completing late with no overrides still yields completed.
func (s *InstanceService) Complete(ctx context.Context, userID, instanceID int64, ov core.CompleteOverrides) (core.Instance, error) {
	return s.finalize(ctx, userID, instanceID, ov, nil)
}

// CreateTransactionFromInstance completes an instance and records the
// matching ledger transaction. This deliberately runs as two separate
// transactions: the ledger write (transaction insert plus card balance
// recompute) commits first, and
// only then is the instance finalized. A failure in the second phase leaves
// the committed ledger transaction in place and the instance still
// actionable; re-invoking Complete alone repairs the bookkeeping.
func (s *InstanceService) CreateTransactionFromInstance(ctx context.Context, userID, instanceID int64, ov core.CompleteOverrides) (core.Instance, core.Transaction, error) {
	row, err := s.repo.Queries().GetInstanceForUser(ctx, instanceID, userID)
	if err != nil {
		return core.Instance{}, core.Transaction{}, err
	}
	if !row.Status.Actionable() {
		return core.Instance{}, core.Transaction{}, fmt.Errorf(
			"instance %d is %s: %w", instanceID, row.Status, core.ErrConflict)
	}
	rule, err := s.repo.Queries().GetRuleForUser(ctx, row.RuleID, userID)
	if err != nil {
		return core.Instance{}, core.Transaction{}, err
	}

	actualDate, actualAmount, _ := resolveActuals(row.Instance, ov)

	var created core.Transaction
	err = s.repo.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		created, err = q.CreateTransaction(ctx, core.Transaction{
			UserID:     userID,
			CardID:     rule.CardID,
			CategoryID: rule.CategoryID,
			Direction:  row.Direction,
			Amount:     actualAmount,
			Date:       actualDate,
			Note:       transactionNote(rule.Name, row.Instance, actualDate, actualAmount),
		})
		if err != nil {
			return err
		}
		_, err = q.RecomputeCardBalance(ctx, rule.CardID)
		return err
	})
	if err != nil {
		return core.Instance{}, core.Transaction{}, fmt.Errorf(
			"ledger write for instance %d: %w", instanceID, err)
	}

	s.publishTransactionCreated(ctx, created, rule.ID, instanceID)

	instance, err := s.finalize(ctx, userID, instanceID, ov, &created.ID)
	if err != nil {
		// The ledger transaction is already committed; surface a retryable
		// bookkeeping failure instead of rolling anything back.
		return core.Instance{}, created, fmt.Errorf(
			"transaction %d committed but instance %d not finalized, retry completion: %w",
			created.ID, instanceID, err)
	}
	return instance, created, nil
}

// Skip marks an instance skipped with an optional reason. No ledger effect.
func (s *InstanceService) Skip(ctx context.Context, userID, instanceID int64, reason *string) (core.Instance, error) {
	row, err := s.repo.Queries().GetInstanceForUser(ctx, instanceID, userID)
	if err != nil {
		return core.Instance{}, err
	}
	if !row.Status.Actionable() {
		return core.Instance{}, fmt.Errorf(
			"instance %d is %s: %w", instanceID, row.Status, core.ErrConflict)
	}

	err = s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if err := q.SkipInstance(ctx, instanceID, reason); err != nil {
			return err
		}
		_, err := q.InsertHistory(ctx, core.HistoryRecord{
			RuleID:        row.RuleID,
			InstanceID:    &instanceID,
			Action:        core.HistorySkipped,
			ChangedFields: []string{"status", "skip_reason"},
			OldValues:     map[string]any{"status": string(row.Status)},
			NewValues:     map[string]any{"status": string(core.InstanceSkipped)},
			Reason:        reason,
		})
		return err
	})
	if err != nil {
		return core.Instance{}, fmt.Errorf("skip instance %d: %w", instanceID, err)
	}

	instance := row.Instance
	instance.Status = core.InstanceSkipped
	instance.SkipReason = reason
	slog.InfoContext(ctx, "Recurring instance skipped",
		"instance_id", instanceID, "rule_id", row.RuleID)
	return instance, nil
}

// finalize writes a completion (with the optional ledger-transaction link)
// and its history record atomically.
func (s *InstanceService) finalize(ctx context.Context, userID, instanceID int64, ov core.CompleteOverrides, transactionID *int64) (core.Instance, error) {
	row, err := s.repo.Queries().GetInstanceForUser(ctx, instanceID, userID)
	if err != nil {
		return core.Instance{}, err
	}
	if !row.Status.Actionable() {
		return core.Instance{}, fmt.Errorf(
			"instance %d is %s: %w", instanceID, row.Status, core.ErrConflict)
	}

	actualDate, actualAmount, status := resolveActuals(row.Instance, ov)
	now := time.Now().UTC()

	instance := row.Instance
	instance.Status = status
	instance.ActualDate = &actualDate
	instance.ActualAmount = &actualAmount
	instance.Notes = ov.Notes
	instance.TransactionID = transactionID
	instance.CompletedAt = &now

	err = s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if err := q.FinalizeInstance(ctx, instance); err != nil {
			return err
		}
		newVals := map[string]any{
			"status":        string(status),
			"actual_date":   actualDate.String(),
			"actual_amount": actualAmount.String(),
		}
		if transactionID != nil {
			newVals["transaction_id"] = *transactionID
		}
		_, err := q.InsertHistory(ctx, core.HistoryRecord{
			RuleID:        row.RuleID,
			InstanceID:    &instanceID,
			Action:        core.HistoryCompleted,
			ChangedFields: []string{"status", "actual_date", "actual_amount"},
			OldValues:     map[string]any{"status": string(row.Status)},
			NewValues:     newVals,
			Reason:        ov.Notes,
		})
		return err
	})
	if err != nil {
		return core.Instance{}, fmt.Errorf("complete instance %d: %w", instanceID, err)
	}

	slog.InfoContext(ctx, "Recurring instance completed",
		"instance_id", instanceID,
		"rule_id", row.RuleID,
		"status", string(status))
	return instance, nil
}

func (s *InstanceService) publishTransactionCreated(ctx context.Context, t core.Transaction, ruleID, instanceID int64) {
	if s.events == nil {
		return
	}
	msg := amqp.TransactionCreatedMessage{
		TransactionID: t.ID,
		InstanceID:    instanceID,
		RuleID:        ruleID,
		CardID:        t.CardID,
		Direction:     string(t.Direction),
		Amount:        t.Amount.String(),
		Date:          t.Date.String(),
		Timestamp:     time.Now().UTC(),
	}
	if err := s.events.PublishTransactionCreated(ctx, msg); err != nil {
		// Event delivery is best effort; the ledger write already committed.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", t.ID, "error", err)
	}
}

// resolveActuals applies completion overrides against the scheduled values
// and decides the terminal status: modified when either the date or the
// amount deviates, completed otherwise.
func resolveActuals(in core.Instance, ov core.CompleteOverrides) (core.Date, decimal.Decimal, core.InstanceStatus) {
	actualDate := in.ScheduledDate
	if ov.Date != nil {
		actualDate = *ov.Date
	}
	actualAmount := in.ScheduledAmount
	if ov.Amount != nil {
		actualAmount = *ov.Amount
	}

	status := core.InstanceCompleted
	if !actualDate.Equal(in.ScheduledDate.Time) || !actualAmount.Equal(in.ScheduledAmount) {
		status = core.InstanceModified
	}
	return actualDate, actualAmount, status
}

func transactionNote(ruleName string, in core.Instance, actualDate core.Date, actualAmount decimal.Decimal) string {
	note := fmt.Sprintf("Recurring: %s", ruleName)
	if !actualDate.Equal(in.ScheduledDate.Time) {
		note += fmt.Sprintf(" (scheduled %s)", in.ScheduledDate)
	}
	if !actualAmount.Equal(in.ScheduledAmount) {
		note += fmt.Sprintf(" (scheduled amount %s)", in.ScheduledAmount)
	}
	return note
}
