package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// OutboxEvent is written in the same transaction as the change it describes
// and published later by the worker.
type OutboxEvent struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	EventType     string          `db:"event_type" json:"event_type"`
	AggregateType string          `db:"aggregate_type" json:"aggregate_type"`
	AggregateID   uuid.UUID       `db:"aggregate_id" json:"aggregate_id"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	Status        OutboxStatus    `db:"status" json:"status"`
	ErrorMessage  *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount    int             `db:"retry_count" json:"retry_count"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
	ProcessedAt   *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// Domain event types
const (
	EventCaseScheduled        = "case.scheduled"
	EventCasePreOpUpdated     = "case.pre_op_updated"
	EventCaseStarted          = "case.started"
	EventCaseIntraOpUpdated   = "case.intra_op_updated"
	EventCaseCompleted        = "case.completed"
	EventCaseDischarged       = "case.discharged"
	EventCaseCancelled        = "case.cancelled"
	EventCasePostponed        = "case.postponed"
	EventCaseRescheduled      = "case.rescheduled"
	EventTheatreStatusChanged = "theatre.status_changed"
	EventConsumableRecorded   = "consumable.recorded"
	EventStockDeductionFailed = "consumable.stock_deduction_failed"
)
