package postgres

import (
	"errors"

	"github.com/lib/pq"

	"github.com/jwalitptl/theatre-api/internal/repository"
)

const (
	codeUniqueViolation    = pq.ErrorCode("23505")
	codeExclusionViolation = pq.ErrorCode("23P01")
)

const (
	constraintTheatreCode    = "theatres_facility_code_key"
	constraintCaseNumber     = "surgery_cases_case_number_key"
	constraintTheatreOverlap = "surgery_cases_no_overlap"
)

// pqError unwraps a driver error.
func pqError(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}

func isViolation(err error, code pq.ErrorCode, constraint string) bool {
	pqErr, ok := pqError(err)
	return ok && pqErr.Code == code && pqErr.Constraint == constraint
}

// mapError turns constraint violations into repository signals. Other
// errors pass through.
func mapError(err error) error {
	if isViolation(err, codeExclusionViolation, constraintTheatreOverlap) {
		return errors.Join(repository.ErrTheatreDoubleBooked, err)
	}
	if isViolation(err, codeUniqueViolation, constraintCaseNumber) {
		return errors.Join(repository.ErrDuplicateCaseNumber, err)
	}
	return err
}
