package service

import "errors"

// Failure taxonomy shared by every operation. Handlers translate these to
// HTTP statuses; callers inside the package wrap them with context.
var (
	// ErrNotFound: the referenced complaint/appeal/mediation/queue entry does
	// not exist. Terminal.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState: the operation is not permitted from the current
	// task_status / escalation_state / sub-state. Terminal; refetch and decide.
	ErrInvalidState = errors.New("invalid state")

	// ErrForbidden: the actor lacks the required relationship to the
	// complaint (not the assignee, not the owner, wrong role). Terminal.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict: lock version mismatch or a duplicate active request.
	// The caller should refetch and may retry.
	ErrConflict = errors.New("conflict")
)
