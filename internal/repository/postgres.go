package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Genzhalo/idp-console/internal/model"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const formColumns = `id, name, form_limit, status, time_frame_duration, scheduled_start_date, scheduled_end_date, created_at, exclude_form_ids`

func (s *Store) CreateForm(ctx context.Context, form model.Form) (string, error) {
	id := uuid.NewString()
	exclude := form.ExcludeFormIDs
	if exclude == nil {
		exclude = []string{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO forms (id, name, form_limit, status, time_frame_duration, scheduled_start_date, scheduled_end_date, created_at, exclude_form_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, form.Name, form.Limit, string(form.Status), form.TimeFrameDuration, form.StartDate.UTC(), form.EndDate.UTC(), createdAt(form.CreatedAt), exclude)
	if err != nil {
		return "", mapError(err)
	}
	return id, nil
}

func (s *Store) ListForms(ctx context.Context) ([]model.Form, error) {
	rows, err := s.db.Query(ctx, `SELECT `+formColumns+` FROM forms ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	forms := []model.Form{}
	for rows.Next() {
		form, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	return forms, rows.Err()
}

func (s *Store) GetForm(ctx context.Context, id string) (model.Form, error) {
	if !validID(id) {
		return model.Form{}, ErrNotFound
	}
	form, err := scanForm(s.db.QueryRow(ctx, `SELECT `+formColumns+` FROM forms WHERE id = $1`, id))
	return form, mapError(err)
}

func (s *Store) UpdateForm(ctx context.Context, id string, expected model.FormStatus, patch model.FormPatch) error {
	if !validID(id) {
		return ErrNotFound
	}
	set := newSetter(id)
	if patch.Name != nil {
		set.add("name", *patch.Name)
	}
	if patch.Limit != nil {
		set.add("form_limit", *patch.Limit)
	}
	if patch.Status != nil {
		set.add("status", string(*patch.Status))
	}
	if patch.TimeFrameDuration != nil {
		set.add("time_frame_duration", *patch.TimeFrameDuration)
	}
	if patch.StartDate != nil {
		set.add("scheduled_start_date", patch.StartDate.UTC())
	}
	if patch.EndDate != nil {
		set.add("scheduled_end_date", patch.EndDate.UTC())
	}
	if patch.ExcludeFormIDs != nil {
		set.add("exclude_form_ids", *patch.ExcludeFormIDs)
	}
	if len(set.clauses) == 0 {
		return nil
	}
	set.args = append(set.args, string(expected))
	query := fmt.Sprintf("UPDATE forms SET %s WHERE id = $1 AND status = $%d", strings.Join(set.clauses, ", "), len(set.args))
	tag, err := s.db.Exec(ctx, query, set.args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrStale(ctx, id)
	}
	return nil
}

func (s *Store) DeleteForm(ctx context.Context, id string, expected model.FormStatus) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM forms WHERE id = $1 AND status = $2`, id, string(expected))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrStale(ctx, id)
	}
	return nil
}

// missingOrStale explains why a status-guarded write on a form matched no row.
func (s *Store) missingOrStale(ctx context.Context, id string) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM forms WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStale
}

const respondentColumns = `id, passport_id, idp_code, first_name, last_name, phone, region, children, created_at`

func (s *Store) CreateRespondent(ctx context.Context, respondent model.Respondent) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO respondents (id, passport_id, idp_code, first_name, last_name, phone, region, children, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, respondent.PassportID, respondent.IDPCode, respondent.FirstName, respondent.LastName, respondent.Phone, respondent.Region, respondent.Children, createdAt(respondent.CreatedAt))
	if err != nil {
		return "", mapError(err)
	}
	return id, nil
}

func (s *Store) ListRespondents(ctx context.Context, filter model.RespondentFilter) ([]model.Respondent, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Name != "" {
		args = append(args, filter.Name)
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(starts_with(first_name, $%d) OR starts_with(last_name, $%d))", n, n))
	}
	if filter.PassportID != "" {
		args = append(args, filter.PassportID)
		conditions = append(conditions, fmt.Sprintf("passport_id = $%d", len(args)))
	}
	query := `SELECT ` + respondentColumns + ` FROM respondents`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	respondents := []model.Respondent{}
	for rows.Next() {
		respondent, err := scanRespondent(rows)
		if err != nil {
			return nil, err
		}
		respondents = append(respondents, respondent)
	}
	return respondents, rows.Err()
}

func (s *Store) GetRespondent(ctx context.Context, id string) (model.Respondent, error) {
	if !validID(id) {
		return model.Respondent{}, ErrNotFound
	}
	respondent, err := scanRespondent(s.db.QueryRow(ctx, `SELECT `+respondentColumns+` FROM respondents WHERE id = $1`, id))
	return respondent, mapError(err)
}

func (s *Store) UpdateRespondent(ctx context.Context, id string, patch model.RespondentPatch) error {
	if !validID(id) {
		return ErrNotFound
	}
	set := newSetter(id)
	if patch.PassportID != nil {
		set.add("passport_id", *patch.PassportID)
	}
	if patch.IDPCode != nil {
		set.add("idp_code", *patch.IDPCode)
	}
	if patch.FirstName != nil {
		set.add("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		set.add("last_name", *patch.LastName)
	}
	if patch.Phone != nil {
		set.add("phone", *patch.Phone)
	}
	if patch.Region != nil {
		set.add("region", *patch.Region)
	}
	if patch.Children != nil {
		set.add("children", *patch.Children)
	}
	return s.execUpdate(ctx, "respondents", set)
}

func (s *Store) DeleteRespondent(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "respondents", id)
}

// AllocateSubmission locks the form row for the whole check-and-insert, so concurrent
// callers for the same form queue behind each other. The unique constraints on
// (form_id, sub_order) and (form_id, respondent_id) back the lock up.
func (s *Store) AllocateSubmission(ctx context.Context, formID, respondentID string, alloc Allocator) (string, error) {
	if !validID(formID) || !validID(respondentID) {
		return "", ErrNotFound
	}
	id := uuid.NewString()
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		var lastOrder int
		form, err := scanForm(tx.QueryRow(ctx, `
			SELECT `+formColumns+`, last_sub_order FROM forms WHERE id = $1 FOR UPDATE
		`, formID), &lastOrder)
		if err != nil {
			return err
		}

		var respondentExists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM respondents WHERE id = $1)`, respondentID).Scan(&respondentExists); err != nil {
			return err
		}
		if !respondentExists {
			return ErrNotFound
		}

		var count, mine int
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*), COUNT(*) FILTER (WHERE respondent_id = $2)
			FROM submissions
			WHERE form_id = $1
		`, formID, respondentID).Scan(&count, &mine); err != nil {
			return err
		}
		if mine > 0 {
			return ErrConflict
		}

		next, err := alloc(form, lastOrder, count)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO submissions (id, form_id, respondent_id, arrival_date, sub_order, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, id, formID, respondentID, next.ArrivalDate.UTC(), next.SubOrder, string(next.Status), time.Now().UTC()); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE forms SET last_sub_order = $2 WHERE id = $1`, formID, next.SubOrder)
		return err
	})
	if err != nil {
		return "", mapError(err)
	}
	return id, nil
}

const submissionSelect = `
	SELECT sub.id, sub.arrival_date, sub.sub_order, sub.status, sub.created_at,
		form.id, form.name, form.form_limit, form.status, form.time_frame_duration,
		form.scheduled_start_date, form.scheduled_end_date, form.created_at, form.exclude_form_ids,
		res.id, res.passport_id, res.idp_code, res.first_name, res.last_name, res.phone,
		res.region, res.children, res.created_at
	FROM submissions AS sub
	JOIN forms AS form ON form.id = sub.form_id
	JOIN respondents AS res ON res.id = sub.respondent_id`

func (s *Store) ListSubmissions(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.FormID != "" {
		if !validID(filter.FormID) {
			return []model.Submission{}, nil
		}
		args = append(args, filter.FormID)
		conditions = append(conditions, fmt.Sprintf("sub.form_id = $%d", len(args)))
	}
	if filter.RespondentID != "" {
		if !validID(filter.RespondentID) {
			return []model.Submission{}, nil
		}
		args = append(args, filter.RespondentID)
		conditions = append(conditions, fmt.Sprintf("sub.respondent_id = $%d", len(args)))
	}
	query := submissionSelect
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY sub.created_at, sub.sub_order`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submissions := []model.Submission{}
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}
	return submissions, rows.Err()
}

func (s *Store) GetSubmission(ctx context.Context, id string) (model.Submission, error) {
	if !validID(id) {
		return model.Submission{}, ErrNotFound
	}
	submission, err := scanSubmission(s.db.QueryRow(ctx, submissionSelect+` WHERE sub.id = $1`, id))
	return submission, mapError(err)
}

func (s *Store) UpdateSubmissionStatus(ctx context.Context, id string, status model.SubmissionStatus) error {
	if !validID(id) {
		return ErrNotFound
	}
	set := newSetter(id)
	set.add("status", string(status))
	return s.execUpdate(ctx, "submissions", set)
}

func (s *Store) DeleteSubmission(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "submissions", id)
}

const userColumns = `id, email, password_alg, password_hash, created_at`

func (s *Store) CreateUser(ctx context.Context, user model.User) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, email, password_alg, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, user.Email, user.PasswordAlg, user.PasswordHash, createdAt(user.CreatedAt))
	if err != nil {
		return "", mapError(err)
	}
	return id, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	return user, mapError(err)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (model.User, error) {
	if !validID(id) {
		return model.User{}, ErrNotFound
	}
	user, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return user, mapError(err)
}

func (s *Store) UpsertToken(ctx context.Context, userID, token, usedFor string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_tokens (user_id, token, type)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, type) DO UPDATE SET token = EXCLUDED.token
	`, userID, token, usedFor)
	return mapError(err)
}

func (s *Store) RemoveTokens(ctx context.Context, userID string, tokens []string) error {
	if len(tokens) == 0 || !validID(userID) {
		return nil
	}
	_, err := s.db.Exec(ctx, `DELETE FROM user_tokens WHERE user_id = $1 AND token = ANY($2)`, userID, tokens)
	return err
}

func (s *Store) ListTokens(ctx context.Context, userID string) ([]model.UserToken, error) {
	if !validID(userID) {
		return []model.UserToken{}, nil
	}
	rows, err := s.db.Query(ctx, `SELECT token, type FROM user_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := []model.UserToken{}
	for rows.Next() {
		var token model.UserToken
		if err := rows.Scan(&token.Token, &token.UsedFor); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (s *Store) execUpdate(ctx context.Context, table string, set *setter) error {
	if len(set.clauses) == 0 {
		return nil
	}
	tag, err := s.db.Exec(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", table, strings.Join(set.clauses, ", ")), set.args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) deleteByID(ctx context.Context, table, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := s.db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type setter struct {
	clauses []string
	args    []any
}

func newSetter(id string) *setter {
	return &setter{args: []any{id}}
}

func (s *setter) add(column string, value any) {
	s.args = append(s.args, value)
	s.clauses = append(s.clauses, fmt.Sprintf("%s = $%d", column, len(s.args)))
}

func scanForm(row pgx.Row, extra ...any) (model.Form, error) {
	var (
		form   model.Form
		status string
	)
	dest := append([]any{
		&form.ID,
		&form.Name,
		&form.Limit,
		&status,
		&form.TimeFrameDuration,
		&form.StartDate,
		&form.EndDate,
		&form.CreatedAt,
		&form.ExcludeFormIDs,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.Form{}, err
	}
	parsed, err := model.ParseFormStatus(status)
	if err != nil {
		return model.Form{}, fmt.Errorf("form %s: %w", form.ID, err)
	}
	form.Status = parsed
	normalizeForm(&form)
	return form, nil
}

func scanRespondent(row pgx.Row) (model.Respondent, error) {
	var respondent model.Respondent
	err := row.Scan(
		&respondent.ID,
		&respondent.PassportID,
		&respondent.IDPCode,
		&respondent.FirstName,
		&respondent.LastName,
		&respondent.Phone,
		&respondent.Region,
		&respondent.Children,
		&respondent.CreatedAt,
	)
	if err != nil {
		return model.Respondent{}, err
	}
	respondent.CreatedAt = respondent.CreatedAt.UTC()
	return respondent, nil
}

func scanSubmission(row pgx.Row) (model.Submission, error) {
	var (
		sub        model.Submission
		subStatus  string
		formStatus string
	)
	err := row.Scan(
		&sub.ID, &sub.ArrivalDate, &sub.SubOrder, &subStatus, &sub.CreatedAt,
		&sub.Form.ID, &sub.Form.Name, &sub.Form.Limit, &formStatus, &sub.Form.TimeFrameDuration,
		&sub.Form.StartDate, &sub.Form.EndDate, &sub.Form.CreatedAt, &sub.Form.ExcludeFormIDs,
		&sub.Respondent.ID, &sub.Respondent.PassportID, &sub.Respondent.IDPCode, &sub.Respondent.FirstName,
		&sub.Respondent.LastName, &sub.Respondent.Phone, &sub.Respondent.Region, &sub.Respondent.Children,
		&sub.Respondent.CreatedAt,
	)
	if err != nil {
		return model.Submission{}, err
	}
	if sub.Status, err = model.ParseSubmissionStatus(subStatus); err != nil {
		return model.Submission{}, fmt.Errorf("submission %s: %w", sub.ID, err)
	}
	if sub.Form.Status, err = model.ParseFormStatus(formStatus); err != nil {
		return model.Submission{}, fmt.Errorf("form %s: %w", sub.Form.ID, err)
	}
	sub.ArrivalDate = sub.ArrivalDate.UTC()
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.Respondent.CreatedAt = sub.Respondent.CreatedAt.UTC()
	normalizeForm(&sub.Form)
	return sub, nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordAlg, &user.PasswordHash, &user.CreatedAt); err != nil {
		return model.User{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

func normalizeForm(form *model.Form) {
	form.StartDate = form.StartDate.UTC()
	form.EndDate = form.EndDate.UTC()
	form.CreatedAt = form.CreatedAt.UTC()
	if form.ExcludeFormIDs == nil {
		form.ExcludeFormIDs = []string{}
	}
}

func createdAt(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value.UTC()
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrConflict
		case "23503", "22P02":
			return ErrNotFound
		}
	}
	return err
}
