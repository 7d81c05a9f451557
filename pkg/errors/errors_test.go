package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrNotFound:               http.StatusNotFound,
		ErrSchedulingConflict:     http.StatusConflict,
		ErrConsentRequired:        http.StatusUnprocessableEntity,
		ErrNumberGenerationFailed: http.StatusServiceUnavailable,
		ErrorCode(42):             http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, code.HTTPStatus(), "code %d", code)
	}
}

func TestCodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("failed to start surgery: %w", ConsentRequired())

	assert.Equal(t, ErrConsentRequired, CodeOf(err))
	assert.True(t, HasCode(err, ErrConsentRequired))
	assert.True(t, stderrors.Is(err, &AppError{Code: ErrConsentRequired}))
	assert.Equal(t, ErrInternal, CodeOf(stderrors.New("boom")))
}

func TestInvalidTransitionDetails(t *testing.T) {
	err := InvalidTransition("complete", "SCHEDULED", "IN_PROGRESS")

	details, ok := err.Details.(TransitionDetails)
	assert.True(t, ok)
	assert.Equal(t, "SCHEDULED", details.Current)
	assert.Equal(t, []string{"IN_PROGRESS"}, details.Required)
	assert.Contains(t, err.Error(), "IN_PROGRESS")
}
