package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInterviewNotFound = errors.New("interview not found")
	ErrRoundNotFound     = errors.New("round not found")
	ErrItemNotFound      = errors.New("item not found")
	ErrAlreadyAnswered   = errors.New("item already answered")
	ErrNotAnswered       = errors.New("item has no answer yet")
	ErrOutOfSequence     = errors.New("submission is not for the current problem")
	ErrEvaluating        = errors.New("previous submission is still being evaluated")
	ErrRoundClosed       = errors.New("round is not in progress")
	ErrPrerequisite      = errors.New("previous round not completed")
	ErrFollowUpMissing   = errors.New("item has no follow-up question")
	ErrVersionConflict   = errors.New("version conflict")
	ErrUnknownJobKind    = errors.New("unknown job kind")
)

// TransitionError is returned when a round status change is not allowed.
type TransitionError struct {
	From RoundStatus
	To   RoundStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid round transition %s -> %s", e.From, e.To)
}

// Is lets callers match any transition failure with ErrRoundClosed.
func (e *TransitionError) Is(target error) bool {
	return target == ErrRoundClosed
}
