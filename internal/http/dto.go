package http

import (
	"fmt"

	"github.com/shopspring/decimal"

	"soldi/internal/core"
	"soldi/internal/recurrence"
	"soldi/internal/services"
	"soldi/internal/storage"
)

// ruleRequest is the JSON body for creating or updating a rule.
type ruleRequest struct {
	CardID     int64   `json:"card_id"`
	CategoryID *int64  `json:"category_id,omitempty"`
	Name       string  `json:"name"`
	Direction  string  `json:"direction"`
	Amount     string  `json:"amount"`
	Frequency  string  `json:"frequency"`
	Interval   int     `json:"interval"`
	DaysOfWeek []int   `json:"days_of_week,omitempty"`
	DayOfMonth int     `json:"day_of_month,omitempty"`
	Month      int     `json:"month,omitempty"`
	Day        int     `json:"day,omitempty"`
	Adjustment string  `json:"adjustment,omitempty"`
	StartDate  string  `json:"start_date"`
	EndDate    *string `json:"end_date,omitempty"`
	Status     string  `json:"status,omitempty"`

	// Update options
	ApplyToFuture     bool `json:"apply_to_future,omitempty"`
	RecreateInstances bool `json:"recreate_instances,omitempty"`
}

func (req ruleRequest) toRule(userID int64) (core.Rule, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return core.Rule{}, fmt.Errorf("invalid amount %q", req.Amount)
	}
	start, err := core.ParseDate(req.StartDate)
	if err != nil {
		return core.Rule{}, fmt.Errorf("invalid start_date %q", req.StartDate)
	}
	var end *core.Date
	if req.EndDate != nil {
		d, err := core.ParseDate(*req.EndDate)
		if err != nil {
			return core.Rule{}, fmt.Errorf("invalid end_date %q", *req.EndDate)
		}
		end = &d
	}

	adjustment := recurrence.Adjustment(req.Adjustment)
	if adjustment == "" {
		adjustment = recurrence.AdjustLast
	}
	interval := req.Interval
	if interval == 0 {
		interval = 1
	}

	return core.Rule{
		UserID:     userID,
		CardID:     req.CardID,
		CategoryID: req.CategoryID,
		Name:       req.Name,
		Direction:  core.Direction(req.Direction),
		Amount:     amount,
		Schedule: recurrence.Schedule{
			Frequency:  recurrence.Frequency(req.Frequency),
			Interval:   interval,
			DaysOfWeek: req.DaysOfWeek,
			DayOfMonth: req.DayOfMonth,
			Month:      req.Month,
			Day:        req.Day,
			Adjustment: adjustment,
		},
		StartDate: start,
		EndDate:   end,
		// Left empty when the request omits it: creation defaults to active
		// in storage, updates keep the rule's current status.
		Status: core.RuleStatus(req.Status),
	}, nil
}

type ruleResponse struct {
	ID         int64   `json:"id"`
	CardID     int64   `json:"card_id"`
	CategoryID *int64  `json:"category_id,omitempty"`
	Name       string  `json:"name"`
	Direction  string  `json:"direction"`
	Amount     string  `json:"amount"`
	Frequency  string  `json:"frequency"`
	Interval   int     `json:"interval"`
	DaysOfWeek []int   `json:"days_of_week,omitempty"`
	DayOfMonth int     `json:"day_of_month,omitempty"`
	Month      int     `json:"month,omitempty"`
	Day        int     `json:"day,omitempty"`
	Adjustment string  `json:"adjustment,omitempty"`
	StartDate  string  `json:"start_date"`
	EndDate    *string `json:"end_date,omitempty"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

func toRuleResponse(r core.Rule) ruleResponse {
	resp := ruleResponse{
		ID:         r.ID,
		CardID:     r.CardID,
		CategoryID: r.CategoryID,
		Name:       r.Name,
		Direction:  string(r.Direction),
		Amount:     r.Amount.String(),
		Frequency:  string(r.Schedule.Frequency),
		Interval:   r.Schedule.Interval,
		DaysOfWeek: r.Schedule.DaysOfWeek,
		DayOfMonth: r.Schedule.DayOfMonth,
		Month:      r.Schedule.Month,
		Day:        r.Schedule.Day,
		Adjustment: string(r.Schedule.Adjustment),
		StartDate:  r.StartDate.String(),
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:  r.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if r.EndDate != nil {
		s := r.EndDate.String()
		resp.EndDate = &s
	}
	return resp
}

type instanceResponse struct {
	ID              int64   `json:"id"`
	RuleID          int64   `json:"rule_id"`
	RuleName        string  `json:"rule_name,omitempty"`
	CardID          int64   `json:"card_id,omitempty"`
	ScheduledDate   string  `json:"scheduled_date"`
	ScheduledAmount string  `json:"scheduled_amount"`
	Direction       string  `json:"direction"`
	Status          string  `json:"status"`
	TransactionID   *int64  `json:"transaction_id,omitempty"`
	ActualDate      *string `json:"actual_date,omitempty"`
	ActualAmount    *string `json:"actual_amount,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	SkipReason      *string `json:"skip_reason,omitempty"`
	OldBalance      *string `json:"old_balance,omitempty"`
	NewBalance      *string `json:"new_balance,omitempty"`
}

func toInstanceResponse(in core.Instance) instanceResponse {
	resp := instanceResponse{
		ID:              in.ID,
		RuleID:          in.RuleID,
		ScheduledDate:   in.ScheduledDate.String(),
		ScheduledAmount: in.ScheduledAmount.String(),
		Direction:       string(in.Direction),
		Status:          string(in.Status),
		TransactionID:   in.TransactionID,
		Notes:           in.Notes,
		SkipReason:      in.SkipReason,
	}
	if in.ActualDate != nil {
		s := in.ActualDate.String()
		resp.ActualDate = &s
	}
	if in.ActualAmount != nil {
		s := in.ActualAmount.String()
		resp.ActualAmount = &s
	}
	return resp
}

func toInstanceRowResponse(row storage.InstanceRow) instanceResponse {
	resp := toInstanceResponse(row.Instance)
	resp.RuleName = row.RuleName
	resp.CardID = row.CardID
	return resp
}

func toInstanceViewResponse(v services.InstanceView) instanceResponse {
	resp := toInstanceRowResponse(v.InstanceRow)
	oldBal := v.OldBalance.String()
	newBal := v.NewBalance.String()
	resp.OldBalance = &oldBal
	resp.NewBalance = &newBal
	return resp
}

// completeRequest is the JSON body for completing an instance, with or
// without a ledger transaction.
type completeRequest struct {
	Date   *string `json:"date,omitempty"`
	Amount *string `json:"amount,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

func (req completeRequest) toOverrides() (core.CompleteOverrides, error) {
	var ov core.CompleteOverrides
	if req.Date != nil {
		d, err := core.ParseDate(*req.Date)
		if err != nil {
			return ov, fmt.Errorf("invalid date %q", *req.Date)
		}
		ov.Date = &d
	}
	if req.Amount != nil {
		a, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			return ov, fmt.Errorf("invalid amount %q", *req.Amount)
		}
		if !a.IsPositive() {
			return ov, fmt.Errorf("amount must be positive")
		}
		ov.Amount = &a
	}
	ov.Notes = req.Notes
	return ov, nil
}

type skipRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type removeRequest struct {
	DeleteInstances   bool `json:"delete_instances,omitempty"`
	FutureOnly        bool `json:"future_only,omitempty"`
	PreserveCompleted bool `json:"preserve_completed,omitempty"`
}

type projectionStepResponse struct {
	InstanceID int64  `json:"instance_id"`
	RuleID     int64  `json:"rule_id"`
	Date       string `json:"date"`
	Direction  string `json:"direction"`
	Amount     string `json:"amount"`
	OldBalance string `json:"old_balance"`
	NewBalance string `json:"new_balance"`
}

type projectionResponse struct {
	CardID         int64                    `json:"card_id"`
	CurrentBalance string                   `json:"current_balance"`
	FinalBalance   string                   `json:"final_balance"`
	Steps          []projectionStepResponse `json:"steps"`
}

func toProjectionResponse(p services.ProjectionResult) projectionResponse {
	steps := make([]projectionStepResponse, 0, len(p.Steps))
	for _, s := range p.Steps {
		steps = append(steps, projectionStepResponse{
			InstanceID: s.InstanceID,
			RuleID:     s.RuleID,
			Date:       s.Date.String(),
			Direction:  string(s.Direction),
			Amount:     s.Amount.String(),
			OldBalance: s.OldBalance.String(),
			NewBalance: s.NewBalance.String(),
		})
	}
	return projectionResponse{
		CardID:         p.CardID,
		CurrentBalance: p.CurrentBalance.String(),
		FinalBalance:   p.FinalBalance.String(),
		Steps:          steps,
	}
}

type historyResponse struct {
	ID            int64          `json:"id"`
	RuleID        int64          `json:"rule_id"`
	InstanceID    *int64         `json:"instance_id,omitempty"`
	Action        string         `json:"action"`
	ChangedFields []string       `json:"changed_fields,omitempty"`
	OldValues     map[string]any `json:"old_values,omitempty"`
	NewValues     map[string]any `json:"new_values,omitempty"`
	Reason        *string        `json:"reason,omitempty"`
	CreatedAt     string         `json:"created_at"`
}

func toHistoryResponse(h core.HistoryRecord) historyResponse {
	return historyResponse{
		ID:            h.ID,
		RuleID:        h.RuleID,
		InstanceID:    h.InstanceID,
		Action:        string(h.Action),
		ChangedFields: h.ChangedFields,
		OldValues:     h.OldValues,
		NewValues:     h.NewValues,
		Reason:        h.Reason,
		CreatedAt:     h.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
