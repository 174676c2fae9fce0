// Package lifecycle holds the status machines that guard form and submission mutation.
package lifecycle

import (
	"errors"

	"github.com/Genzhalo/idp-console/internal/model"
)

var (
	ErrTransitionForbidden = errors.New("status transition forbidden")
	ErrFormNotDraft        = errors.New("form is not a draft")
)

var formNext = map[model.FormStatus]model.FormStatus{
	model.FormDraft: model.FormOpen,
	model.FormOpen:  model.FormClose,
}

// FormTransition reports whether moving a form from current to target changes anything.
// Only draft->open and open->close are allowed; asking for the current status is a no-op.
func FormTransition(current, target model.FormStatus) (bool, error) {
	if current == target {
		return false, nil
	}
	if next, ok := formNext[current]; ok && next == target {
		return true, nil
	}
	return false, ErrTransitionForbidden
}

// CheckFormEditable rejects field edits outside of the draft state.
func CheckFormEditable(status model.FormStatus) error {
	if status != model.FormDraft {
		return ErrFormNotDraft
	}
	return nil
}

func CheckFormDeletable(status model.FormStatus) error {
	return CheckFormEditable(status)
}

// SubmissionTransition allows any move between submission statuses.
func SubmissionTransition(current, target model.SubmissionStatus) bool {
	return current != target
}
