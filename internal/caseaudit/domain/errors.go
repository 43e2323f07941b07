package domain

import "errors"

var (
	ErrCaseNotFound           = errors.New("case_not_found")
	ErrPermissionDenied       = errors.New("permission_denied")
	ErrIncompleteReview       = errors.New("incomplete_review")
	ErrConcurrentModification = errors.New("concurrent_modification")
	ErrSelectionExhausted     = errors.New("selection_exhausted")

	ErrInvalidTransition = errors.New("invalid_transition")
	ErrInvalidActor      = errors.New("invalid_actor")
	ErrInvalidActionKind = errors.New("invalid_action_kind")
	ErrInvalidReview     = errors.New("invalid_review")
	ErrInvalidRecord     = errors.New("invalid_record")
	ErrInvalidCandidate  = errors.New("invalid_candidate")
	ErrInvalidFilter     = errors.New("invalid_filter")
	ErrDuplicateCase     = errors.New("duplicate_case")
	ErrUnknownUser       = errors.New("unknown_user")
	ErrInvalidPreloaded  = errors.New("invalid_preloaded_count")
	ErrBatchInProgress   = errors.New("batch_in_progress")
)
