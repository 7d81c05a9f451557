package surgery

import (
	"github.com/jwalitptl/theatre-api/internal/model"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
)

// Operation names a case workflow step.
type Operation string

const (
	OpUpdatePreOp   Operation = "update pre-op checklist"
	OpStart         Operation = "start surgery"
	OpUpdateIntraOp Operation = "update intra-op notes"
	OpComplete      Operation = "complete surgery"
	OpDischarge     Operation = "discharge from recovery"
	OpCancel        Operation = "cancel"
	OpPostpone      Operation = "postpone"
	OpReschedule    Operation = "reschedule"
)

type transition struct {
	from []model.CaseStatus
	to   model.CaseStatus
}

// transitions is the complete case state machine. An operation is allowed
// only from the listed statuses; nothing leaves IN_PROGRESS except completion.
var transitions = map[Operation]transition{
	OpUpdatePreOp: {
		from: []model.CaseStatus{model.CaseStatusScheduled, model.CaseStatusPreOp},
		to:   model.CaseStatusPreOp,
	},
	OpStart: {
		from: []model.CaseStatus{model.CaseStatusPreOp, model.CaseStatusScheduled},
		to:   model.CaseStatusInProgress,
	},
	OpUpdateIntraOp: {
		from: []model.CaseStatus{model.CaseStatusInProgress},
		to:   model.CaseStatusInProgress,
	},
	OpComplete: {
		from: []model.CaseStatus{model.CaseStatusInProgress},
		to:   model.CaseStatusPostOp,
	},
	OpDischarge: {
		from: []model.CaseStatus{model.CaseStatusPostOp},
		to:   model.CaseStatusCompleted,
	},
	OpCancel: {
		from: []model.CaseStatus{model.CaseStatusScheduled, model.CaseStatusPreOp, model.CaseStatusPostponed},
		to:   model.CaseStatusCancelled,
	},
	OpPostpone: {
		from: []model.CaseStatus{model.CaseStatusScheduled, model.CaseStatusPreOp, model.CaseStatusPostponed},
		to:   model.CaseStatusPostponed,
	},
	OpReschedule: {
		from: []model.CaseStatus{model.CaseStatusPostponed},
		to:   model.CaseStatusScheduled,
	},
}

// guard returns the status op leads to from current, or InvalidTransition.
func guard(op Operation, current model.CaseStatus) (model.CaseStatus, error) {
	t, ok := transitions[op]
	if !ok {
		return current, apperrors.InvalidTransition(string(op), string(current))
	}
	for _, s := range t.from {
		if s == current {
			return t.to, nil
		}
	}
	required := make([]string, len(t.from))
	for i, s := range t.from {
		required[i] = string(s)
	}
	return current, apperrors.InvalidTransition(string(op), string(current), required...)
}

// CanPerform reports whether op is allowed from status.
func CanPerform(op Operation, status model.CaseStatus) bool {
	_, err := guard(op, status)
	return err == nil
}
