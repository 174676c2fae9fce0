package operations

import (
	"github.com/Genzhalo/idp-console/internal/validate"
)

// Kind groups failures the way callers need to react to them.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindConflict        Kind = "conflict"
	KindUnauthenticated Kind = "unauthenticated"
	KindStore           Kind = "store"
)

const (
	ErrInvalidInput        = "invalid_input"
	ErrMissingToken        = "missing_token"
	ErrInvalidToken        = "invalid_token"
	ErrTokenExpired        = "token_expired"
	ErrInvalidCredentials  = "invalid_credentials"
	ErrUserNotFound        = "user_not_found"
	ErrFormNotFound        = "form_not_found"
	ErrRespondentNotFound  = "respondent_not_found"
	ErrSubmissionNotFound  = "submission_not_found"
	ErrFormNotDraft        = "form_not_draft"
	ErrTransitionForbidden = "transition_forbidden"
	ErrCapacityExceeded    = "capacity_exceeded"
	ErrAlreadySubmitted    = "already_submitted"
	ErrServerError         = "server_error"
)

var messages = map[string]string{
	ErrInvalidInput:        "Some fields are not valid",
	ErrMissingToken:        "Authorization token is required",
	ErrInvalidToken:        "Authorization token is not valid",
	ErrTokenExpired:        "Session has ended, sign in again",
	ErrInvalidCredentials:  "Email or password is wrong",
	ErrUserNotFound:        "User not found",
	ErrFormNotFound:        "Form not found",
	ErrRespondentNotFound:  "Respondent not found",
	ErrSubmissionNotFound:  "Submission not found",
	ErrFormNotDraft:        "Only draft forms can be changed",
	ErrTransitionForbidden: "This status change is not allowed",
	ErrCapacityExceeded:    "The form has no free places",
	ErrAlreadySubmitted:    "This respondent already has a submission for the form",
}

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, code string) *Error {
	return &Error{Kind: kind, Code: code, Message: messages[code]}
}

func invalid(fields validate.Fields) *Error {
	err := newError(KindValidation, ErrInvalidInput)
	err.Fields = fields
	return err
}
