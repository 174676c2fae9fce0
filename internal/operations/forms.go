package operations

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/Genzhalo/idp-console/internal/lifecycle"
	"github.com/Genzhalo/idp-console/internal/metrics"
	"github.com/Genzhalo/idp-console/internal/model"
	"github.com/Genzhalo/idp-console/internal/repository"
	"github.com/Genzhalo/idp-console/internal/validate"
)

const transitionAttempts = 3

func (s *Service) ListForms(ctx context.Context, token string) ([]model.Form, error) {
	if _, err := s.authorize(ctx, token); err != nil {
		return nil, err
	}
	forms, err := s.repo.ListForms(ctx)
	if err != nil {
		return nil, s.storeFailure(err)
	}
	return forms, nil
}

func (s *Service) GetForm(ctx context.Context, token, id string) (model.Form, error) {
	if _, err := s.authorize(ctx, token); err != nil {
		return model.Form{}, err
	}
	return s.loadForm(ctx, id)
}

// CreateForm stores a new draft. Status, id and creation time in form are ignored.
func (s *Service) CreateForm(ctx context.Context, token string, form model.Form) (string, error) {
	if _, err := s.authorize(ctx, token); err != nil {
		return "", err
	}
	if fields := validate.Form(form, s.now()); fields != nil {
		return "", invalid(fields)
	}
	form.ID = ""
	form.Status = model.FormDraft
	form.CreatedAt = s.now()
	form.StartDate = form.StartDate.UTC()
	form.EndDate = form.EndDate.UTC()
	if form.ExcludeFormIDs == nil {
		form.ExcludeFormIDs = []string{}
	}
	id, err := s.repo.CreateForm(ctx, form)
	if err != nil {
		return "", s.storeFailure(err)
	}
	s.log.WithField("form_id", id).Info("form created")
	return id, nil
}

// UpdateForm edits a draft. Status changes go through OpenForm and CloseForm, so a
// status in patch is ignored.
func (s *Service) UpdateForm(ctx context.Context, token, id string, patch model.FormPatch) error {
	if _, err := s.authorize(ctx, token); err != nil {
		return err
	}
	patch.Status = nil
	form, err := s.loadForm(ctx, id)
	if err != nil {
		return err
	}
	if err := lifecycle.CheckFormEditable(form.Status); err != nil {
		return newError(KindForbidden, ErrFormNotDraft)
	}
	if fields := validate.FormPatch(patch, applyFormPatch(form, patch), s.now()); fields != nil {
		return invalid(fields)
	}
	if err := s.repo.UpdateForm(ctx, id, model.FormDraft, normalizeFormPatch(patch)); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return newError(KindForbidden, ErrFormNotDraft)
		}
		return s.fail(err, ErrFormNotFound)
	}
	return nil
}

func (s *Service) DeleteForm(ctx context.Context, token, id string) error {
	if _, err := s.authorize(ctx, token); err != nil {
		return err
	}
	form, err := s.loadForm(ctx, id)
	if err != nil {
		return err
	}
	if err := lifecycle.CheckFormDeletable(form.Status); err != nil {
		return newError(KindForbidden, ErrFormNotDraft)
	}
	if err := s.repo.DeleteForm(ctx, id, model.FormDraft); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return newError(KindForbidden, ErrFormNotDraft)
		}
		return s.fail(err, ErrFormNotFound)
	}
	s.log.WithField("form_id", id).Info("form deleted")
	return nil
}

func (s *Service) OpenForm(ctx context.Context, token, id string) error {
	return s.setFormStatus(ctx, token, id, model.FormOpen)
}

func (s *Service) CloseForm(ctx context.Context, token, id string) error {
	return s.setFormStatus(ctx, token, id, model.FormClose)
}

func (s *Service) setFormStatus(ctx context.Context, token, id string, target model.FormStatus) error {
	if _, err := s.authorize(ctx, token); err != nil {
		return err
	}
	return s.transitionForm(ctx, id, target)
}

// transitionForm re-reads the form when another writer changed its status between
// the guard check and the write.
func (s *Service) transitionForm(ctx context.Context, id string, target model.FormStatus) error {
	for attempt := 0; attempt < transitionAttempts; attempt++ {
		form, err := s.loadForm(ctx, id)
		if err != nil {
			return err
		}
		changed, err := lifecycle.FormTransition(form.Status, target)
		if err != nil {
			return newError(KindForbidden, ErrTransitionForbidden)
		}
		if !changed {
			return nil
		}
		err = s.repo.UpdateForm(ctx, id, form.Status, model.FormPatch{Status: &target})
		if errors.Is(err, repository.ErrStale) {
			continue
		}
		if err != nil {
			return s.fail(err, ErrFormNotFound)
		}
		metrics.RecordFormTransition(string(target))
		s.log.WithFields(logrus.Fields{"form_id": id, "from": form.Status, "to": target}).Info("form status changed")
		return nil
	}
	return newError(KindForbidden, ErrTransitionForbidden)
}

// CloseExpiredForms closes every open form whose end date has passed and returns how
// many it closed. It runs without a caller token and is meant for background jobs.
func (s *Service) CloseExpiredForms(ctx context.Context) (int, error) {
	forms, err := s.repo.ListForms(ctx)
	if err != nil {
		return 0, s.storeFailure(err)
	}
	now := s.now()
	closed := 0
	for _, form := range forms {
		if form.Status != model.FormOpen || form.EndDate.After(now) {
			continue
		}
		if err := s.transitionForm(ctx, form.ID, model.FormClose); err != nil {
			var opErr *Error
			if errors.As(err, &opErr) && opErr.Kind != KindStore {
				continue
			}
			return closed, err
		}
		closed++
	}
	return closed, nil
}

func (s *Service) loadForm(ctx context.Context, id string) (model.Form, error) {
	form, err := s.repo.GetForm(ctx, id)
	if err != nil {
		return model.Form{}, s.fail(err, ErrFormNotFound)
	}
	return form, nil
}

func applyFormPatch(form model.Form, patch model.FormPatch) model.Form {
	if patch.Name != nil {
		form.Name = *patch.Name
	}
	if patch.Limit != nil {
		form.Limit = *patch.Limit
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
		form.ExcludeFormIDs = *patch.ExcludeFormIDs
	}
	return form
}

func normalizeFormPatch(patch model.FormPatch) model.FormPatch {
	if patch.StartDate != nil {
		start := patch.StartDate.UTC()
		patch.StartDate = &start
	}
	if patch.EndDate != nil {
		end := patch.EndDate.UTC()
		patch.EndDate = &end
	}
	return patch
}
