package surgery

import (
	"github.com/google/uuid"

	"github.com/jwalitptl/theatre-api/internal/model"
)

// FindConflicts returns the SCHEDULED candidates whose window overlaps w.
// Candidates are expected to share one theatre and date; exclude, when set,
// is skipped.
func FindConflicts(candidates []*model.SurgicalCase, w model.Window, exclude *uuid.UUID) []*model.SurgicalCase {
	conflicts := []*model.SurgicalCase{}
	for _, c := range candidates {
		if c.Status != model.CaseStatusScheduled {
			continue
		}
		if exclude != nil && c.ID == *exclude {
			continue
		}
		if c.Window().Overlaps(w) {
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}
