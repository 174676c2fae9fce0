// Package repository persists forms, respondents, submissions and accounts.
//
// Store is the Postgres implementation; MemoryStore keeps everything in process and is
// used by tests and local runs without a database. Both return ErrNotFound and
// ErrConflict so callers never depend on driver errors.
package repository

import (
	"context"
	"errors"

	"github.com/Genzhalo/idp-console/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrStale means the row exists but no longer has the status the caller expected.
	ErrStale = errors.New("stale status")
)

// Allocator computes the submission to insert while the form is locked. lastOrder is the
// highest position ever handed out for the form and count the number of live submissions.
type Allocator func(form model.Form, lastOrder, count int) (model.NewSubmission, error)

type Forms interface {
	CreateForm(ctx context.Context, form model.Form) (string, error)
	ListForms(ctx context.Context) ([]model.Form, error)
	GetForm(ctx context.Context, id string) (model.Form, error)
	// UpdateForm and DeleteForm only touch the form while it still has status
	// expected, and return ErrStale otherwise.
	UpdateForm(ctx context.Context, id string, expected model.FormStatus, patch model.FormPatch) error
	DeleteForm(ctx context.Context, id string, expected model.FormStatus) error
}

type Respondents interface {
	CreateRespondent(ctx context.Context, respondent model.Respondent) (string, error)
	ListRespondents(ctx context.Context, filter model.RespondentFilter) ([]model.Respondent, error)
	GetRespondent(ctx context.Context, id string) (model.Respondent, error)
	UpdateRespondent(ctx context.Context, id string, patch model.RespondentPatch) error
	DeleteRespondent(ctx context.Context, id string) error
}

type Submissions interface {
	// AllocateSubmission checks capacity and inserts as one atomic step. It returns
	// ErrNotFound for a missing form or respondent, ErrConflict when the respondent
	// already holds a submission for the form, and any error alloc returns.
	AllocateSubmission(ctx context.Context, formID, respondentID string, alloc Allocator) (string, error)
	ListSubmissions(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error)
	GetSubmission(ctx context.Context, id string) (model.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, id string, status model.SubmissionStatus) error
	DeleteSubmission(ctx context.Context, id string) error
}

type Users interface {
	CreateUser(ctx context.Context, user model.User) (string, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, id string) (model.User, error)
	UpsertToken(ctx context.Context, userID, token, usedFor string) error
	RemoveTokens(ctx context.Context, userID string, tokens []string) error
	ListTokens(ctx context.Context, userID string) ([]model.UserToken, error)
}

type Repository interface {
	Forms
	Respondents
	Submissions
	Users
}
