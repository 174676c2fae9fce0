package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Genzhalo/idp-console/internal/model"
)

type memorySubmission struct {
	id           string
	formID       string
	respondentID string
	arrivalDate  time.Time
	subOrder     int
	status       model.SubmissionStatus
	createdAt    time.Time
}

// MemoryStore serializes every operation behind one mutex, which makes
// AllocateSubmission atomic without further locking.
type MemoryStore struct {
	mu          sync.Mutex
	forms       map[string]model.Form
	lastOrders  map[string]int
	respondents map[string]model.Respondent
	submissions map[string]memorySubmission
	users       map[string]model.User
	tokens      map[string][]model.UserToken
	seq         int64
	created     map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		forms:       map[string]model.Form{},
		lastOrders:  map[string]int{},
		respondents: map[string]model.Respondent{},
		submissions: map[string]memorySubmission{},
		users:       map[string]model.User{},
		tokens:      map[string][]model.UserToken{},
		created:     map[string]int64{},
	}
}

func (s *MemoryStore) track(id string) {
	s.seq++
	s.created[id] = s.seq
}

func (s *MemoryStore) byInsertion(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return s.created[ids[i]] < s.created[ids[j]] })
}

func (s *MemoryStore) CreateForm(_ context.Context, form model.Form) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	form.ID = uuid.NewString()
	if form.CreatedAt.IsZero() {
		form.CreatedAt = time.Now().UTC()
	}
	form.ExcludeFormIDs = append([]string{}, form.ExcludeFormIDs...)
	s.forms[form.ID] = form
	s.track(form.ID)
	return form.ID, nil
}

func (s *MemoryStore) ListForms(_ context.Context) ([]model.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.forms))
	for id := range s.forms {
		ids = append(ids, id)
	}
	s.byInsertion(ids)
	forms := make([]model.Form, 0, len(ids))
	for _, id := range ids {
		forms = append(forms, copyForm(s.forms[id]))
	}
	return forms, nil
}

func (s *MemoryStore) GetForm(_ context.Context, id string) (model.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	form, ok := s.forms[id]
	if !ok {
		return model.Form{}, ErrNotFound
	}
	return copyForm(form), nil
}

func (s *MemoryStore) UpdateForm(_ context.Context, id string, expected model.FormStatus, patch model.FormPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	form, ok := s.forms[id]
	if !ok {
		return ErrNotFound
	}
	if form.Status != expected {
		return ErrStale
	}
	if patch.Name != nil {
		form.Name = *patch.Name
	}
	if patch.Limit != nil {
		form.Limit = *patch.Limit
	}
	if patch.Status != nil {
		form.Status = *patch.Status
	}
	if patch.TimeFrameDuration != nil {
		form.TimeFrameDuration = *patch.TimeFrameDuration
	}
	if patch.StartDate != nil {
		form.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		form.EndDate = *patch.EndDate
	}
	if patch.ExcludeFormIDs != nil {
		form.ExcludeFormIDs = append([]string{}, (*patch.ExcludeFormIDs)...)
	}
	s.forms[id] = form
	return nil
}

func (s *MemoryStore) DeleteForm(_ context.Context, id string, expected model.FormStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	form, ok := s.forms[id]
	if !ok {
		return ErrNotFound
	}
	if form.Status != expected {
		return ErrStale
	}
	delete(s.forms, id)
	delete(s.lastOrders, id)
	for subID, sub := range s.submissions {
		if sub.formID == id {
			delete(s.submissions, subID)
		}
	}
	return nil
}

func (s *MemoryStore) CreateRespondent(_ context.Context, respondent model.Respondent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	respondent.ID = uuid.NewString()
	if respondent.CreatedAt.IsZero() {
		respondent.CreatedAt = time.Now().UTC()
	}
	s.respondents[respondent.ID] = copyRespondent(respondent)
	s.track(respondent.ID)
	return respondent.ID, nil
}

func (s *MemoryStore) ListRespondents(_ context.Context, filter model.RespondentFilter) ([]model.Respondent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.respondents))
	for id, respondent := range s.respondents {
		if filter.Name != "" && !strings.HasPrefix(respondent.FirstName, filter.Name) && !strings.HasPrefix(respondent.LastName, filter.Name) {
			continue
		}
		if filter.PassportID != "" && respondent.PassportID != filter.PassportID {
			continue
		}
		ids = append(ids, id)
	}
	s.byInsertion(ids)
	respondents := make([]model.Respondent, 0, len(ids))
	for _, id := range ids {
		respondents = append(respondents, copyRespondent(s.respondents[id]))
	}
	return respondents, nil
}

func (s *MemoryStore) GetRespondent(_ context.Context, id string) (model.Respondent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	respondent, ok := s.respondents[id]
	if !ok {
		return model.Respondent{}, ErrNotFound
	}
	return copyRespondent(respondent), nil
}

func (s *MemoryStore) UpdateRespondent(_ context.Context, id string, patch model.RespondentPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	respondent, ok := s.respondents[id]
	if !ok {
		return ErrNotFound
	}
	if patch.PassportID != nil {
		respondent.PassportID = *patch.PassportID
	}
	if patch.IDPCode != nil {
		code := *patch.IDPCode
		respondent.IDPCode = &code
	}
	if patch.FirstName != nil {
		respondent.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		respondent.LastName = *patch.LastName
	}
	if patch.Phone != nil {
		respondent.Phone = *patch.Phone
	}
	if patch.Region != nil {
		respondent.Region = *patch.Region
	}
	if patch.Children != nil {
		respondent.Children = *patch.Children
	}
	s.respondents[id] = respondent
	return nil
}

func (s *MemoryStore) DeleteRespondent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.respondents[id]; !ok {
		return ErrNotFound
	}
	delete(s.respondents, id)
	for subID, sub := range s.submissions {
		if sub.respondentID == id {
			delete(s.submissions, subID)
		}
	}
	return nil
}

func (s *MemoryStore) AllocateSubmission(_ context.Context, formID, respondentID string, alloc Allocator) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	form, ok := s.forms[formID]
	if !ok {
		return "", ErrNotFound
	}
	if _, ok := s.respondents[respondentID]; !ok {
		return "", ErrNotFound
	}
	count := 0
	for _, sub := range s.submissions {
		if sub.formID != formID {
			continue
		}
		if sub.respondentID == respondentID {
			return "", ErrConflict
		}
		count++
	}

	next, err := alloc(copyForm(form), s.lastOrders[formID], count)
	if err != nil {
		return "", err
	}
	sub := memorySubmission{
		id:           uuid.NewString(),
		formID:       formID,
		respondentID: respondentID,
		arrivalDate:  next.ArrivalDate,
		subOrder:     next.SubOrder,
		status:       next.Status,
		createdAt:    time.Now().UTC(),
	}
	s.submissions[sub.id] = sub
	s.lastOrders[formID] = next.SubOrder
	s.track(sub.id)
	return sub.id, nil
}

func (s *MemoryStore) ListSubmissions(_ context.Context, filter model.SubmissionFilter) ([]model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.submissions))
	for id, sub := range s.submissions {
		if filter.FormID != "" && sub.formID != filter.FormID {
			continue
		}
		if filter.RespondentID != "" && sub.respondentID != filter.RespondentID {
			continue
		}
		ids = append(ids, id)
	}
	s.byInsertion(ids)
	submissions := make([]model.Submission, 0, len(ids))
	for _, id := range ids {
		submissions = append(submissions, s.joined(s.submissions[id]))
	}
	return submissions, nil
}

func (s *MemoryStore) GetSubmission(_ context.Context, id string) (model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.submissions[id]
	if !ok {
		return model.Submission{}, ErrNotFound
	}
	return s.joined(sub), nil
}

func (s *MemoryStore) joined(sub memorySubmission) model.Submission {
	return model.Submission{
		ID:          sub.id,
		Form:        copyForm(s.forms[sub.formID]),
		Respondent:  copyRespondent(s.respondents[sub.respondentID]),
		ArrivalDate: sub.arrivalDate,
		SubOrder:    sub.subOrder,
		Status:      sub.status,
		CreatedAt:   sub.createdAt,
	}
}

func (s *MemoryStore) UpdateSubmissionStatus(_ context.Context, id string, status model.SubmissionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.submissions[id]
	if !ok {
		return ErrNotFound
	}
	sub.status = status
	s.submissions[id] = sub
	return nil
}

func (s *MemoryStore) DeleteSubmission(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.submissions[id]; !ok {
		return ErrNotFound
	}
	delete(s.submissions, id)
	return nil
}

func (s *MemoryStore) CreateUser(_ context.Context, user model.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return "", ErrConflict
		}
	}
	user.ID = uuid.NewString()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = user
	return user.ID, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) UpsertToken(_ context.Context, userID, token, usedFor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := s.tokens[userID]
	for i := range tokens {
		if tokens[i].UsedFor == usedFor {
			tokens[i].Token = token
			return nil
		}
	}
	s.tokens[userID] = append(tokens, model.UserToken{Token: token, UsedFor: usedFor})
	return nil
}

func (s *MemoryStore) RemoveTokens(_ context.Context, userID string, tokens []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tokens[userID][:0]
	for _, token := range s.tokens[userID] {
		if !contains(tokens, token.Token) {
			kept = append(kept, token)
		}
	}
	s.tokens[userID] = kept
	return nil
}

func (s *MemoryStore) ListTokens(_ context.Context, userID string) ([]model.UserToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]model.UserToken{}, s.tokens[userID]...), nil
}

func copyForm(form model.Form) model.Form {
	form.ExcludeFormIDs = append([]string{}, form.ExcludeFormIDs...)
	return form
}

func copyRespondent(respondent model.Respondent) model.Respondent {
	if respondent.IDPCode != nil {
		code := *respondent.IDPCode
		respondent.IDPCode = &code
	}
	return respondent
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
