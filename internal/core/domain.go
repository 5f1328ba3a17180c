package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"soldi/internal/recurrence"
)

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

const (
	RuleActive    RuleStatus = "active"
	RulePaused    RuleStatus = "paused"
	RuleCompleted RuleStatus = "completed"
	RuleCancelled RuleStatus = "cancelled"
)

const (
	InstancePending   InstanceStatus = "pending"
	InstanceOverdue   InstanceStatus = "overdue"
	InstanceCompleted InstanceStatus = "completed"
	InstanceModified  InstanceStatus = "modified"
	InstanceSkipped   InstanceStatus = "skipped"
	InstanceCancelled InstanceStatus = "cancelled"
)

type (
	Direction      string
	RuleStatus     string
	InstanceStatus string

	// Date is a calendar day. The time-of-day portion is always midnight UTC.
	Date struct {
		time.Time
	}

	// Rule is the persistent definition of a repeating financial event.
	Rule struct {
		ID         int64
		UserID     int64
		CardID     int64
		CategoryID *int64
		Name       string
		Direction  Direction
		Amount     decimal.Decimal
		Schedule   recurrence.Schedule
		StartDate  Date
		EndDate    *Date
		Status     RuleStatus
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	// Instance is one materialized occurrence of a rule. The scheduled
	// amount and direction are copied from the rule at generation time and
	// never recomputed afterwards.
	Instance struct {
		ID              int64
		RuleID          int64
		ScheduledDate   Date
		ScheduledAmount decimal.Decimal
		Direction       Direction
		Status          InstanceStatus
		TransactionID   *int64
		ActualDate      *Date
		ActualAmount    *decimal.Decimal
		Notes           *string
		SkipReason      *string
		CompletedAt     *time.Time
		CreatedAt       time.Time
	}

	// CompleteOverrides carries the optional fields of a completion request.
	// A nil field means "use the scheduled value".
	CompleteOverrides struct {
		Date   *Date
		Amount *decimal.Decimal
		Notes  *string
	}

	UpdateOptions struct {
		ApplyToFuture     bool
		RecreateInstances bool
	}

	RemoveOptions struct {
		DeleteInstances   bool
		FutureOnly        bool
		PreserveCompleted bool
	}

	// Card and Transaction are the ledger-side collaborators the engine
	// reads and writes at its interface boundary.
	Card struct {
		ID      int64
		UserID  int64
		Name    string
		Balance decimal.Decimal
	}

	Category struct {
		ID     int64
		UserID int64
		Name   string
	}

	Transaction struct {
		ID         int64
		UserID     int64
		CardID     int64
		CategoryID *int64
		Direction  Direction
		Amount     decimal.Decimal
		Date       Date
		Note       string
		CreatedAt  time.Time
	}
)

var (
	ErrInvalidDirection = errors.New("direction must be 'in' or 'out'")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrEmptyName        = errors.New("empty rule name")
	ErrEndBeforeStart   = errors.New("end date must be after start date")
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current calendar day.
func Today() Date {
	return DateOf(time.Now().UTC())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string { return d.Format("2006-01-02") }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Signed applies the direction sign to an unsigned amount: positive for
// money coming in, negative for money going out.
func (d Direction) Signed(a decimal.Decimal) decimal.Decimal {
	if d == DirectionOut {
		return a.Neg()
	}
	return a
}

func (s RuleStatus) Valid() bool {
	switch s {
	case RuleActive, RulePaused, RuleCompleted, RuleCancelled:
		return true
	}
	return false
}

// Terminal reports whether an instance can no longer transition.
func (s InstanceStatus) Terminal() bool {
	switch s {
	case InstanceCompleted, InstanceModified, InstanceSkipped, InstanceCancelled:
		return true
	}
	return false
}

// Actionable reports whether an instance may still be completed or skipped.
func (s InstanceStatus) Actionable() bool {
	return s == InstancePending || s == InstanceOverdue
}

// Validate checks the rule definition invariants before any write.
func (r Rule) Validate() error {
	if len(strings.TrimSpace(r.Name)) == 0 {
		return ErrEmptyName
	}
	if len(r.Name) > 200 {
		return errors.New("rule name too long (max 200 characters)")
	}
	if !r.Direction.Valid() {
		return ErrInvalidDirection
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if r.StartDate.IsZero() {
		return errors.New("start date is required")
	}
	if r.EndDate != nil && !r.EndDate.After(r.StartDate.Time) {
		return ErrEndBeforeStart
	}
	if r.Status != "" && !r.Status.Valid() {
		return errors.New("invalid rule status")
	}
	return r.Schedule.Validate()
}
