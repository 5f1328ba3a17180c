package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"soldi/internal/core"
	"soldi/internal/recurrence"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so every query can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns the query set bound to a transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// RuleFilters narrows rule listings. Nil fields are ignored.
type RuleFilters struct {
	Status    *core.RuleStatus
	IsActive  *bool
	CardID    *int64
	Frequency *recurrence.Frequency
}

// InstanceFilters narrows instance listings. Nil fields are ignored.
type InstanceFilters struct {
	Status *core.InstanceStatus
	CardID *int64
	RuleID *int64
	From   *core.Date
	To     *core.Date
}

// InstanceRow is an instance joined with the rule context needed by the
// read paths (card for balance folding, name for display).
type InstanceRow struct {
	core.Instance
	CardID   int64
	RuleName string
}

const timeFormat = time.RFC3339

// ---------------------------------------------------------------------------
// rules
// ---------------------------------------------------------------------------

const ruleColumns = `id, user_id, card_id, category_id, name, direction, amount,
	frequency, interval, days_of_week, day_of_month, month, day, adjustment,
	start_date, end_date, status, created_at, updated_at`

func (q *Queries) CreateRule(ctx context.Context, r core.Rule) (core.Rule, error) {
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = core.RuleActive
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO recurring_rules (user_id, card_id, category_id, name, direction,
			amount, frequency, interval, days_of_week, day_of_month, month, day,
			adjustment, start_date, end_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.CardID, nullInt(r.CategoryID), r.Name, string(r.Direction),
		r.Amount.String(), string(r.Schedule.Frequency), r.Schedule.Interval,
		encodeWeekdays(r.Schedule.DaysOfWeek), r.Schedule.DayOfMonth,
		r.Schedule.Month, r.Schedule.Day, string(r.Schedule.Adjustment),
		r.StartDate.String(), nullDate(r.EndDate), string(r.Status),
		now.Format(timeFormat), now.Format(timeFormat))
	if err != nil {
		return core.Rule{}, fmt.Errorf("insert rule: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Rule{}, fmt.Errorf("rule insert id: %w", err)
	}
	r.ID = id
	return r, nil
}

func (q *Queries) GetRuleForUser(ctx context.Context, id, userID int64) (core.Rule, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE id = ? AND user_id = ?`,
		id, userID)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Rule{}, fmt.Errorf("recurring rule %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Rule{}, fmt.Errorf("get rule %d: %w", id, err)
	}
	return r, nil
}

func (q *Queries) ListRules(ctx context.Context, userID int64, f RuleFilters) ([]core.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurring_rules WHERE user_id = ?`
	args := []any{userID}

	if f.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*f.Status))
	}
	if f.IsActive != nil {
		if *f.IsActive {
			query += ` AND status = 'active'`
		} else {
			query += ` AND status != 'active'`
		}
	}
	if f.CardID != nil {
		query += ` AND card_id = ?`
		args = append(args, *f.CardID)
	}
	if f.Frequency != nil {
		query += ` AND frequency = ?`
		args = append(args, string(*f.Frequency))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []core.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// ListActiveRules returns every active rule across all users, for the
// maintenance scheduler.
func (q *Queries) ListActiveRules(ctx context.Context) ([]core.Rule, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE status = 'active' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	var rules []core.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// UpdateRule persists the definition fields of a rule.
func (q *Queries) UpdateRule(ctx context.Context, r core.Rule) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE recurring_rules
		SET card_id = ?, category_id = ?, name = ?, direction = ?, amount = ?,
			frequency = ?, interval = ?, days_of_week = ?, day_of_month = ?,
			month = ?, day = ?, adjustment = ?, start_date = ?, end_date = ?,
			status = ?, updated_at = ?
		WHERE id = ?`,
		r.CardID, nullInt(r.CategoryID), r.Name, string(r.Direction),
		r.Amount.String(), string(r.Schedule.Frequency), r.Schedule.Interval,
		encodeWeekdays(r.Schedule.DaysOfWeek), r.Schedule.DayOfMonth,
		r.Schedule.Month, r.Schedule.Day, string(r.Schedule.Adjustment),
		r.StartDate.String(), nullDate(r.EndDate), string(r.Status),
		time.Now().UTC().Format(timeFormat), r.ID)
	if err != nil {
		return fmt.Errorf("update rule %d: %w", r.ID, err)
	}
	return nil
}

func (q *Queries) UpdateRuleStatus(ctx context.Context, id int64, status core.RuleStatus) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE recurring_rules SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("update rule %d status: %w", id, err)
	}
	return nil
}

func (q *Queries) DeleteRule(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM recurring_instances WHERE rule_id = ?`, id); err != nil {
		return fmt.Errorf("delete instances for rule %d: %w", id, err)
	}
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM recurring_rules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// instances
// ---------------------------------------------------------------------------

const instanceColumns = `i.id, i.rule_id, i.scheduled_date, i.scheduled_amount,
	i.direction, i.status, i.transaction_id, i.actual_date, i.actual_amount,
	i.notes, i.skip_reason, i.completed_at, i.created_at`

func (q *Queries) InsertInstance(ctx context.Context, in core.Instance) (core.Instance, error) {
	in.CreatedAt = time.Now().UTC()
	if in.Status == "" {
		in.Status = core.InstancePending
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO recurring_instances (rule_id, scheduled_date, scheduled_amount,
			direction, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		in.RuleID, in.ScheduledDate.String(), in.ScheduledAmount.String(),
		string(in.Direction), string(in.Status), in.CreatedAt.Format(timeFormat))
	if err != nil {
		return core.Instance{}, fmt.Errorf("insert instance: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Instance{}, fmt.Errorf("instance insert id: %w", err)
	}
	in.ID = id
	return in, nil
}

// MaxScheduledDate returns the latest scheduled date materialized for a
// rule, or nil if the rule has no instances yet. This is queried, never
// cached, so concurrent generation calls cannot see a stale cursor.
func (q *Queries) MaxScheduledDate(ctx context.Context, ruleID int64) (*core.Date, error) {
	var raw sql.NullString
	err := q.db.QueryRowContext(ctx,
		`SELECT MAX(scheduled_date) FROM recurring_instances WHERE rule_id = ?`,
		ruleID).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("max scheduled date for rule %d: %w", ruleID, err)
	}
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	d, err := core.ParseDate(raw.String)
	if err != nil {
		return nil, fmt.Errorf("parse max scheduled date %q: %w", raw.String, err)
	}
	return &d, nil
}

func (q *Queries) GetInstanceForUser(ctx context.Context, id, userID int64) (InstanceRow, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+instanceColumns+`, r.card_id, r.name
		FROM recurring_instances i
		JOIN recurring_rules r ON r.id = i.rule_id
		WHERE i.id = ? AND r.user_id = ?`,
		id, userID)
	ir, err := scanInstanceRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return InstanceRow{}, fmt.Errorf("recurring instance %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return InstanceRow{}, fmt.Errorf("get instance %d: %w", id, err)
	}
	return ir, nil
}

func (q *Queries) ListInstances(ctx context.Context, userID int64, f InstanceFilters) ([]InstanceRow, error) {
	query := `
		SELECT ` + instanceColumns + `, r.card_id, r.name
		FROM recurring_instances i
		JOIN recurring_rules r ON r.id = i.rule_id
		WHERE r.user_id = ?`
	args := []any{userID}

	if f.Status != nil {
		query += ` AND i.status = ?`
		args = append(args, string(*f.Status))
	}
	if f.CardID != nil {
		query += ` AND r.card_id = ?`
		args = append(args, *f.CardID)
	}
	if f.RuleID != nil {
		query += ` AND i.rule_id = ?`
		args = append(args, *f.RuleID)
	}
	if f.From != nil {
		query += ` AND i.scheduled_date >= ?`
		args = append(args, f.From.String())
	}
	if f.To != nil {
		query += ` AND i.scheduled_date <= ?`
		args = append(args, f.To.String())
	}
	query += ` ORDER BY i.scheduled_date, i.id`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var out []InstanceRow
	for rows.Next() {
		ir, err := scanInstanceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		out = append(out, ir)
	}
	return out, rows.Err()
}

// ListOpenForRule returns the still-actionable instances of a rule in
// scheduled order.
func (q *Queries) ListOpenForRule(ctx context.Context, ruleID int64) ([]core.Instance, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+instanceColumns+`
		FROM recurring_instances i
		WHERE i.rule_id = ? AND i.status IN ('pending', 'overdue')
		ORDER BY i.scheduled_date, i.id`,
		ruleID)
	if err != nil {
		return nil, fmt.Errorf("list open instances for rule %d: %w", ruleID, err)
	}
	defer rows.Close()

	var out []core.Instance
	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// MarkOverdue flips every pending instance of the user whose scheduled date
// is strictly before today to overdue. Terminal and already-overdue
// instances are untouched, so the sweep is idempotent and safe on every
// read path.
func (q *Queries) MarkOverdue(ctx context.Context, userID int64, today core.Date) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE recurring_instances
		SET status = 'overdue'
		WHERE status = 'pending' AND scheduled_date < ?
		  AND rule_id IN (SELECT id FROM recurring_rules WHERE user_id = ?)`,
		today.String(), userID)
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	return res.RowsAffected()
}

// MarkOverdueAll is the cross-user variant used by the scheduler.
func (q *Queries) MarkOverdueAll(ctx context.Context, today core.Date) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE recurring_instances
		SET status = 'overdue'
		WHERE status = 'pending' AND scheduled_date < ?`,
		today.String())
	if err != nil {
		return 0, fmt.Errorf("mark overdue all: %w", err)
	}
	return res.RowsAffected()
}

// FinalizeInstance writes a completion: status, resolved actuals, the
// optional ledger-transaction link, and the completion timestamp.
func (q *Queries) FinalizeInstance(ctx context.Context, in core.Instance) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE recurring_instances
		SET status = ?, actual_date = ?, actual_amount = ?, notes = ?,
			transaction_id = ?, completed_at = ?
		WHERE id = ?`,
		string(in.Status), nullDate(in.ActualDate), nullDecimal(in.ActualAmount),
		nullStr(in.Notes), nullInt(in.TransactionID), nullTime(in.CompletedAt),
		in.ID)
	if err != nil {
		return fmt.Errorf("finalize instance %d: %w", in.ID, err)
	}
	return nil
}

func (q *Queries) SkipInstance(ctx context.Context, id int64, reason *string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE recurring_instances SET status = 'skipped', skip_reason = ? WHERE id = ?`,
		nullStr(reason), id)
	if err != nil {
		return fmt.Errorf("skip instance %d: %w", id, err)
	}
	return nil
}

// CancelOpenInstances transitions every still-actionable instance of a rule
// to cancelled.
func (q *Queries) CancelOpenInstances(ctx context.Context, ruleID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE recurring_instances
		SET status = 'cancelled'
		WHERE rule_id = ? AND status IN ('pending', 'overdue')`,
		ruleID)
	if err != nil {
		return 0, fmt.Errorf("cancel open instances for rule %d: %w", ruleID, err)
	}
	return res.RowsAffected()
}

// DeleteOpenInstances removes still-actionable instances of a rule, with the
// removal-policy restrictions applied.
func (q *Queries) DeleteOpenInstances(ctx context.Context, ruleID int64, futureOnly, preserveCompleted bool, today core.Date) (int64, error) {
	query := `DELETE FROM recurring_instances WHERE rule_id = ?`
	args := []any{ruleID}
	if futureOnly {
		query += ` AND scheduled_date > ?`
		args = append(args, today.String())
	}
	if preserveCompleted {
		query += ` AND status NOT IN ('completed', 'modified')`
	}
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete instances for rule %d: %w", ruleID, err)
	}
	return res.RowsAffected()
}

// DeletePendingInstances removes the still-actionable instances of a rule.
// Used by the update path before regeneration.
func (q *Queries) DeletePendingInstances(ctx context.Context, ruleID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM recurring_instances
		WHERE rule_id = ? AND status IN ('pending', 'overdue')`,
		ruleID)
	if err != nil {
		return 0, fmt.Errorf("delete pending instances for rule %d: %w", ruleID, err)
	}
	return res.RowsAffected()
}

// ---------------------------------------------------------------------------
// history
// ---------------------------------------------------------------------------

func (q *Queries) InsertHistory(ctx context.Context, h core.HistoryRecord) (core.HistoryRecord, error) {
	h.CreatedAt = time.Now().UTC()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO recurring_history (rule_id, instance_id, action, changed_fields,
			old_values, new_values, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.RuleID, nullInt(h.InstanceID), string(h.Action),
		encodeJSON(h.ChangedFields), encodeJSON(h.OldValues), encodeJSON(h.NewValues),
		nullStr(h.Reason), h.CreatedAt.Format(timeFormat))
	if err != nil {
		return core.HistoryRecord{}, fmt.Errorf("insert history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.HistoryRecord{}, fmt.Errorf("history insert id: %w", err)
	}
	h.ID = id
	return h, nil
}

func (q *Queries) ListHistoryForRule(ctx context.Context, ruleID int64) ([]core.HistoryRecord, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, rule_id, instance_id, action, changed_fields, old_values,
			new_values, reason, created_at
		FROM recurring_history
		WHERE rule_id = ?
		ORDER BY id`,
		ruleID)
	if err != nil {
		return nil, fmt.Errorf("list history for rule %d: %w", ruleID, err)
	}
	defer rows.Close()

	var out []core.HistoryRecord
	for rows.Next() {
		var (
			h          core.HistoryRecord
			instanceID sql.NullInt64
			action     string
			fields     string
			oldVals    string
			newVals    string
			reason     sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&h.ID, &h.RuleID, &instanceID, &action, &fields,
			&oldVals, &newVals, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		h.Action = core.HistoryAction(action)
		if instanceID.Valid {
			h.InstanceID = &instanceID.Int64
		}
		if reason.Valid {
			h.Reason = &reason.String
		}
		decodeJSON(fields, &h.ChangedFields)
		decodeJSON(oldVals, &h.OldValues)
		decodeJSON(newVals, &h.NewValues)
		if t, err := time.Parse(timeFormat, createdAt); err == nil {
			h.CreatedAt = t
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// scanning and null helpers
// ---------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (core.Rule, error) {
	var (
		r          core.Rule
		categoryID sql.NullInt64
		direction  string
		amount     string
		frequency  string
		weekdays   string
		adjustment string
		startDate  string
		endDate    sql.NullString
		status     string
		createdAt  string
		updatedAt  string
	)
	err := row.Scan(&r.ID, &r.UserID, &r.CardID, &categoryID, &r.Name, &direction,
		&amount, &frequency, &r.Schedule.Interval, &weekdays,
		&r.Schedule.DayOfMonth, &r.Schedule.Month, &r.Schedule.Day, &adjustment,
		&startDate, &endDate, &status, &createdAt, &updatedAt)
	if err != nil {
		return core.Rule{}, err
	}

	if categoryID.Valid {
		r.CategoryID = &categoryID.Int64
	}
	r.Direction = core.Direction(direction)
	r.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return core.Rule{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	r.Schedule.Frequency = recurrence.Frequency(frequency)
	r.Schedule.Adjustment = recurrence.Adjustment(adjustment)
	r.Schedule.DaysOfWeek = decodeWeekdays(weekdays)
	r.StartDate, err = core.ParseDate(startDate)
	if err != nil {
		return core.Rule{}, fmt.Errorf("parse start date %q: %w", startDate, err)
	}
	if endDate.Valid && endDate.String != "" {
		d, err := core.ParseDate(endDate.String)
		if err != nil {
			return core.Rule{}, fmt.Errorf("parse end date %q: %w", endDate.String, err)
		}
		r.EndDate = &d
	}
	r.Status = core.RuleStatus(status)
	if t, err := time.Parse(timeFormat, createdAt); err == nil {
		r.CreatedAt = t
	}
	if t, err := time.Parse(timeFormat, updatedAt); err == nil {
		r.UpdatedAt = t
	}
	return r, nil
}

func scanInstanceFields(row rowScanner, extra ...any) (core.Instance, error) {
	var (
		in            core.Instance
		scheduledDate string
		scheduledAmt  string
		direction     string
		status        string
		transactionID sql.NullInt64
		actualDate    sql.NullString
		actualAmount  sql.NullString
		notes         sql.NullString
		skipReason    sql.NullString
		completedAt   sql.NullString
		createdAt     string
	)
	dest := []any{&in.ID, &in.RuleID, &scheduledDate, &scheduledAmt, &direction,
		&status, &transactionID, &actualDate, &actualAmount, &notes, &skipReason,
		&completedAt, &createdAt}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return core.Instance{}, err
	}

	var err error
	in.ScheduledDate, err = core.ParseDate(scheduledDate)
	if err != nil {
		return core.Instance{}, fmt.Errorf("parse scheduled date %q: %w", scheduledDate, err)
	}
	in.ScheduledAmount, err = decimal.NewFromString(scheduledAmt)
	if err != nil {
		return core.Instance{}, fmt.Errorf("parse scheduled amount %q: %w", scheduledAmt, err)
	}
	in.Direction = core.Direction(direction)
	in.Status = core.InstanceStatus(status)
	if transactionID.Valid {
		in.TransactionID = &transactionID.Int64
	}
	if actualDate.Valid && actualDate.String != "" {
		d, err := core.ParseDate(actualDate.String)
		if err != nil {
			return core.Instance{}, fmt.Errorf("parse actual date %q: %w", actualDate.String, err)
		}
		in.ActualDate = &d
	}
	if actualAmount.Valid && actualAmount.String != "" {
		a, err := decimal.NewFromString(actualAmount.String)
		if err != nil {
			return core.Instance{}, fmt.Errorf("parse actual amount %q: %w", actualAmount.String, err)
		}
		in.ActualAmount = &a
	}
	if notes.Valid {
		in.Notes = &notes.String
	}
	if skipReason.Valid {
		in.SkipReason = &skipReason.String
	}
	if completedAt.Valid && completedAt.String != "" {
		if t, err := time.Parse(timeFormat, completedAt.String); err == nil {
			in.CompletedAt = &t
		}
	}
	if t, err := time.Parse(timeFormat, createdAt); err == nil {
		in.CreatedAt = t
	}
	return in, nil
}

func scanInstance(row rowScanner) (core.Instance, error) {
	return scanInstanceFields(row)
}

func scanInstanceRow(row rowScanner) (InstanceRow, error) {
	var ir InstanceRow
	in, err := scanInstanceFields(row, &ir.CardID, &ir.RuleName)
	if err != nil {
		return InstanceRow{}, err
	}
	ir.Instance = in
	return ir, nil
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullDate(v *core.Date) any {
	if v == nil {
		return nil
	}
	return v.String()
}

func nullDecimal(v *decimal.Decimal) any {
	if v == nil {
		return nil
	}
	return v.String()
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(timeFormat)
}

func encodeWeekdays(days []int) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(s string) []int {
	if s == "" {
		return nil
	}
	var days []int
	for _, part := range strings.Split(s, ",") {
		var d int
		if _, err := fmt.Sscanf(part, "%d", &d); err == nil {
			days = append(days, d)
		}
	}
	return days
}

func encodeJSON(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeJSON(s string, dest any) {
	if s == "" {
		return
	}
	_ = json.Unmarshal([]byte(s), dest)
}
