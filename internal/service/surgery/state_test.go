package surgery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/theatre-api/internal/model"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
)

var allStatuses = []model.CaseStatus{
	model.CaseStatusScheduled, model.CaseStatusPreOp, model.CaseStatusInProgress, model.CaseStatusPostOp,
	model.CaseStatusCompleted, model.CaseStatusPostponed, model.CaseStatusCancelled,
}

func TestOnlyScheduledOrPreOpCanStart(t *testing.T) {
	for _, status := range allStatuses {
		want := status == model.CaseStatusScheduled || status == model.CaseStatusPreOp
		assert.Equal(t, want, CanPerform(OpStart, status), status)
	}
}

func TestNothingLeavesInProgressExceptCompletion(t *testing.T) {
	for op, tr := range transitions {
		for _, from := range tr.from {
			if from != model.CaseStatusInProgress {
				continue
			}
			assert.Contains(t, []model.CaseStatus{model.CaseStatusInProgress, model.CaseStatusPostOp}, tr.to, op)
		}
	}
}

func TestCancelGuard(t *testing.T) {
	for _, status := range []model.CaseStatus{
		model.CaseStatusInProgress, model.CaseStatusPostOp, model.CaseStatusCompleted, model.CaseStatusCancelled,
	} {
		assert.False(t, CanPerform(OpCancel, status), status)
		assert.False(t, CanPerform(OpPostpone, status), status)
	}
	for _, status := range []model.CaseStatus{model.CaseStatusScheduled, model.CaseStatusPreOp, model.CaseStatusPostponed} {
		assert.True(t, CanPerform(OpCancel, status), status)
	}
}

func TestGuardReportsRequiredStatuses(t *testing.T) {
	_, err := guard(OpDischarge, model.CaseStatusInProgress)

	var appErr *apperrors.AppError
	if assert.ErrorAs(t, err, &appErr) {
		assert.Equal(t, apperrors.ErrInvalidTransition, appErr.Code)
		details := appErr.Details.(apperrors.TransitionDetails)
		assert.Equal(t, "IN_PROGRESS", details.Current)
		assert.Equal(t, []string{"POST_OP"}, details.Required)
	}
}
