package surgery

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/theatre-api/internal/model"
)

func scheduled(start string, minutes int) *model.SurgicalCase {
	t, err := model.ParseClockTime(start)
	if err != nil {
		panic(err)
	}
	return &model.SurgicalCase{
		Base:                     model.Base{ID: uuid.New()},
		Status:                   model.CaseStatusScheduled,
		ScheduledTime:            t,
		EstimatedDurationMinutes: minutes,
	}
}

func window(start string, minutes int) model.Window {
	t, _ := model.ParseClockTime(start)
	return model.Window{Start: t, Duration: minutes}
}

func TestFindConflicts(t *testing.T) {
	existing := scheduled("09:00", 60)

	tests := []struct {
		name     string
		window   model.Window
		conflict bool
	}{
		{"inside", window("09:30", 30), true},
		{"covers", window("08:00", 180), true},
		{"overlaps start", window("08:30", 31), true},
		{"overlaps end", window("09:59", 30), true},
		{"ends at start", window("08:00", 60), false},
		{"starts at end", window("10:00", 30), false},
		{"well before", window("06:00", 30), false},
		{"identical", window("09:00", 60), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindConflicts([]*model.SurgicalCase{existing}, tt.window, nil)
			assert.Equal(t, tt.conflict, len(got) == 1)
		})
	}
}

func TestFindConflictsIgnoresNonScheduledAndExcluded(t *testing.T) {
	cancelled := scheduled("09:00", 60)
	cancelled.Status = model.CaseStatusCancelled
	inPreOp := scheduled("09:00", 60)
	inPreOp.Status = model.CaseStatusPreOp
	self := scheduled("09:00", 60)

	got := FindConflicts([]*model.SurgicalCase{cancelled, inPreOp, self}, window("09:15", 15), &self.ID)
	assert.Empty(t, got)
}

func TestFindConflictsReturnsEveryOverlap(t *testing.T) {
	a := scheduled("08:00", 60)
	b := scheduled("09:00", 60)
	c := scheduled("11:00", 30)

	got := FindConflicts([]*model.SurgicalCase{a, b, c}, window("08:30", 60), nil)
	assert.ElementsMatch(t, []*model.SurgicalCase{a, b}, got)
}
