package core

import "time"

const (
	HistoryCreated   HistoryAction = "created"
	HistoryUpdated   HistoryAction = "updated"
	HistoryCompleted HistoryAction = "completed"
	HistorySkipped   HistoryAction = "skipped"
	HistoryCancelled HistoryAction = "cancelled"
	HistoryDeleted   HistoryAction = "deleted"
)

type (
	HistoryAction string

	// HistoryRecord is an append-only audit entry describing one mutation.
	// Records reference their rule (and optionally an instance) but have
	// independent lifetime: they survive rule cancellation and deletion.
	HistoryRecord struct {
		ID            int64
		RuleID        int64
		InstanceID    *int64
		Action        HistoryAction
		ChangedFields []string
		OldValues     map[string]any
		NewValues     map[string]any
		Reason        *string
		CreatedAt     time.Time
	}
)
