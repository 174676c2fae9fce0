package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Genzhalo/idp-console/internal/model"
)

const (
	testFormID       = "33333333-3333-3333-3333-333333333331"
	testRespondentID = "33333333-3333-3333-3333-333333333332"
)

var lockedFormColumns = []string{"id", "name", "form_limit", "status", "time_frame_duration", "scheduled_start_date", "scheduled_end_date", "created_at", "exclude_form_ids", "last_sub_order"}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStore(mock), mock
}

func lockedFormRow(mock pgxmock.PgxPoolIface, status string, limit, lastOrder int) *pgxmock.Rows {
	start := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	return mock.NewRows(lockedFormColumns).AddRow(
		testFormID, "Intake", limit, status, 600,
		start, start.Add(time.Hour), start.Add(-24*time.Hour), []string{}, lastOrder,
	)
}

func TestAllocateSubmissionCommits(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM forms WHERE id = \$1 FOR UPDATE`).WithArgs(testFormID).WillReturnRows(lockedFormRow(mock, "open", 3, 1))
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(testRespondentID).WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).WithArgs(testFormID, testRespondentID).WillReturnRows(mock.NewRows([]string{"count", "mine"}).AddRow(1, 0))
	mock.ExpectExec(`INSERT INTO submissions`).
		WithArgs(pgxmock.AnyArg(), testFormID, testRespondentID, pgxmock.AnyArg(), 2, "received", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE forms SET last_sub_order`).WithArgs(testFormID, 2).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	var seenLast, seenCount int
	id, err := store.AllocateSubmission(context.Background(), testFormID, testRespondentID, func(form model.Form, lastOrder, count int) (model.NewSubmission, error) {
		seenLast, seenCount = lastOrder, count
		assert.Equal(t, model.FormOpen, form.Status)
		return model.NewSubmission{ArrivalDate: form.StartDate, SubOrder: lastOrder + 1, Status: model.SubmissionReceived}, nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, seenLast)
	assert.Equal(t, 1, seenCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocateSubmissionRollsBackOnAllocatorError(t *testing.T) {
	store, mock := newMockStore(t)
	full := errors.New("full")

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(testFormID).WillReturnRows(lockedFormRow(mock, "open", 1, 1))
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(testRespondentID).WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).WithArgs(testFormID, testRespondentID).WillReturnRows(mock.NewRows([]string{"count", "mine"}).AddRow(1, 0))
	mock.ExpectRollback()

	_, err := store.AllocateSubmission(context.Background(), testFormID, testRespondentID, func(model.Form, int, int) (model.NewSubmission, error) {
		return model.NewSubmission{}, full
	})
	require.ErrorIs(t, err, full)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocateSubmissionDuplicateRespondent(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(testFormID).WillReturnRows(lockedFormRow(mock, "open", 5, 2))
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(testRespondentID).WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).WithArgs(testFormID, testRespondentID).WillReturnRows(mock.NewRows([]string{"count", "mine"}).AddRow(2, 1))
	mock.ExpectRollback()

	_, err := store.AllocateSubmission(context.Background(), testFormID, testRespondentID, func(model.Form, int, int) (model.NewSubmission, error) {
		t.Fatalf("allocator must not run for a duplicate")
		return model.NewSubmission{}, nil
	})
	require.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocateSubmissionMissingForm(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(testFormID).WillReturnRows(mock.NewRows(lockedFormColumns))
	mock.ExpectRollback()

	_, err := store.AllocateSubmission(context.Background(), testFormID, testRespondentID, nil)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = store.AllocateSubmission(context.Background(), "not-a-uuid", testRespondentID, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAllocateSubmissionUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(testFormID).WillReturnRows(lockedFormRow(mock, "open", 5, 0))
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(testRespondentID).WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).WithArgs(testFormID, testRespondentID).WillReturnRows(mock.NewRows([]string{"count", "mine"}).AddRow(0, 0))
	mock.ExpectExec(`INSERT INTO submissions`).
		WithArgs(pgxmock.AnyArg(), testFormID, testRespondentID, pgxmock.AnyArg(), 1, "received", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := store.AllocateSubmission(context.Background(), testFormID, testRespondentID, func(form model.Form, lastOrder, _ int) (model.NewSubmission, error) {
		return model.NewSubmission{ArrivalDate: form.StartDate, SubOrder: lastOrder + 1, Status: model.SubmissionReceived}, nil
	})
	require.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetFormRejectsUnknownStatus(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	columns := lockedFormColumns[:len(lockedFormColumns)-1]

	mock.ExpectQuery(`FROM forms WHERE id = \$1`).WithArgs(testFormID).WillReturnRows(
		mock.NewRows(columns).AddRow(testFormID, "Intake", 3, "archived", 600, start, start.Add(time.Hour), start, []string{}),
	)

	_, err := store.GetForm(context.Background(), testFormID)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateFormGuardsStatus(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	name := "Renamed"
	limit := 7

	mock.ExpectExec(`UPDATE forms SET name = \$2, form_limit = \$3 WHERE id = \$1 AND status = \$4`).
		WithArgs(testFormID, name, limit, "draft").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.UpdateForm(ctx, testFormID, model.FormDraft, model.FormPatch{Name: &name, Limit: &limit}))

	mock.ExpectExec(`UPDATE forms SET name = \$2 WHERE id = \$1 AND status = \$3`).
		WithArgs(testFormID, name, "draft").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM forms`).WithArgs(testFormID).WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))
	require.ErrorIs(t, store.UpdateForm(ctx, testFormID, model.FormDraft, model.FormPatch{Name: &name}), ErrStale)

	mock.ExpectExec(`UPDATE forms SET name = \$2 WHERE id = \$1 AND status = \$3`).
		WithArgs(testFormID, name, "draft").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM forms`).WithArgs(testFormID).WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(false))
	require.ErrorIs(t, store.UpdateForm(ctx, testFormID, model.FormDraft, model.FormPatch{Name: &name}), ErrNotFound)

	// nothing to change: no statement is sent
	require.NoError(t, store.UpdateForm(ctx, testFormID, model.FormDraft, model.FormPatch{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteFormOnlyInExpectedStatus(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM forms WHERE id = \$1 AND status = \$2`).WithArgs(testFormID, "draft").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(testFormID).WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))
	require.ErrorIs(t, store.DeleteForm(ctx, testFormID, model.FormDraft), ErrStale)

	mock.ExpectExec(`DELETE FROM forms`).WithArgs(testFormID, "draft").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, store.DeleteForm(ctx, testFormID, model.FormDraft))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRespondentsFilter(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`starts_with\(first_name, \$1\) OR starts_with\(last_name, \$1\)\) AND passport_id = \$2`).
		WithArgs("Шев", "АБ123456").
		WillReturnRows(mock.NewRows([]string{"id", "passport_id", "idp_code", "first_name", "last_name", "phone", "region", "children", "created_at"}).
			AddRow(testRespondentID, "АБ123456", (*string)(nil), "Тарас", "Шевченко", "0501234567", "Київська", 2, created))

	respondents, err := store.ListRespondents(context.Background(), model.RespondentFilter{Name: "Шев", PassportID: "АБ123456"})
	require.NoError(t, err)
	require.Len(t, respondents, 1)
	assert.Equal(t, "Шевченко", respondents[0].LastName)
	assert.Nil(t, respondents[0].IDPCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenQueries(t *testing.T) {
	store, mock := newMockStore(t)
	userID := "33333333-3333-3333-3333-333333333333"

	mock.ExpectExec(`ON CONFLICT \(user_id, type\) DO UPDATE`).WithArgs(userID, "token-1", "WEB").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM user_tokens WHERE user_id = \$1 AND token = ANY\(\$2\)`).WithArgs(userID, []string{"token-1"}).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(`SELECT token, type FROM user_tokens`).WithArgs(userID).WillReturnRows(mock.NewRows([]string{"token", "type"}).AddRow("token-2", "MOBILE"))

	require.NoError(t, store.UpsertToken(context.Background(), userID, "token-1", "WEB"))
	require.NoError(t, store.RemoveTokens(context.Background(), userID, []string{"token-1"}))
	tokens, err := store.ListTokens(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, []model.UserToken{{Token: "token-2", UsedFor: "MOBILE"}}, tokens)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanFailuresReturnZeroValues(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	broken := errors.New("broken row")
	created := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).WithArgs(testRespondentID).WillReturnRows(
		mock.NewRows([]string{"id", "email", "password_alg", "password_hash", "created_at"}).
			AddRow(testRespondentID, "operator@example.com", "bcrypt", "hash", created).
			RowError(0, broken),
	)
	user, err := store.GetUserByID(ctx, testRespondentID)
	require.ErrorIs(t, err, broken)
	assert.Equal(t, model.User{}, user)

	mock.ExpectQuery(`FROM respondents WHERE id = \$1`).WithArgs(testRespondentID).WillReturnRows(
		mock.NewRows([]string{"id", "passport_id", "idp_code", "first_name", "last_name", "phone", "region", "children", "created_at"}).
			AddRow(testRespondentID, "АБ123456", (*string)(nil), "Тарас", "Шевченко", "0501234567", "Київська", 2, created).
			RowError(0, broken),
	)
	respondent, err := store.GetRespondent(ctx, testRespondentID)
	require.ErrorIs(t, err, broken)
	assert.Equal(t, model.Respondent{}, respondent)
	require.NoError(t, mock.ExpectationsWereMet())
}
