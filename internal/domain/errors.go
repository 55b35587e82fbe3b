package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a member has no open note session.
	ErrSessionNotFound = errors.New("note session not found")
	// ErrMemberRequired is returned when a session is requested without a member.
	ErrMemberRequired = errors.New("member id is required")
	// ErrCategoryNotFound indicates the requested category tag is unknown or not loaded yet.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrProblemNotFound indicates the problem is not part of the selected category.
	ErrProblemNotFound = errors.New("problem not found")
	// ErrFetchFailed marks a failed wrong-answer stream load.
	ErrFetchFailed = errors.New("wrong answer fetch failed")
	// ErrAnalysisFailed marks a failed analysis call.
	ErrAnalysisFailed = errors.New("analysis failed")
)

// Error is the normalized form of an unsuccessful collaborator response,
// whether the envelope said isSuccess=false or the transport itself failed.
type Error struct {
	Code         int
	Message      string
	Unauthorized bool
	Err          error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream error %d: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream error %d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err carries the upstream unauthorized marker.
func IsUnauthorized(err error) bool {
	var upstream *Error
	return errors.As(err, &upstream) && upstream.Unauthorized
}
