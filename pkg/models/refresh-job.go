package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	RefreshJobStatusPending    = "pending"
	RefreshJobStatusInProgress = "in_progress"
	RefreshJobStatusCompleted  = "completed"
	RefreshJobStatusFailed     = "failed"
)

const (
	RefreshModeFull    = "full"
	RefreshModeDefault = "default"
)

const (
	RefreshPriorityHigh   = "high"
	RefreshPriorityNormal = "normal"
)

// RefreshJob is one queued identification pass for an item. Jobs are
// fire-and-forget from the scanner's perspective; the worker drains them in
// priority order.
type RefreshJob struct {
	bun.BaseModel `bun:"table:refresh_jobs,alias:rj"`

	ID         int       `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ItemID     int       `bun:",nullzero" json:"item_id"`
	Mode       string    `bun:",nullzero,default:'default'" json:"mode"`
	ReplaceAll bool      `json:"replace_all"`
	Priority   string    `bun:",nullzero,default:'normal'" json:"priority"`
	Status     string    `bun:",nullzero" json:"status"`
	ProcessID  *string   `json:"process_id,omitempty"`
	Error      *string   `json:"error,omitempty"`
}
