package operations

import (
	"context"

	"github.com/Genzhalo/idp-console/internal/model"
	"github.com/Genzhalo/idp-console/internal/validate"
)

func (s *Service) ListRespondents(ctx context.Context, token string, filter model.RespondentFilter) ([]model.Respondent, error) {
	if _, err := s.authorize(ctx, token); err != nil {
		return nil, err
	}
	respondents, err := s.repo.ListRespondents(ctx, filter)
	if err != nil {
		return nil, s.storeFailure(err)
	}
	return respondents, nil
}

func (s *Service) GetRespondent(ctx context.Context, token, id string) (model.Respondent, error) {
	if _, err := s.authorize(ctx, token); err != nil {
		return model.Respondent{}, err
	}
	return s.loadRespondent(ctx, id)
}

func (s *Service) CreateRespondent(ctx context.Context, token string, respondent model.Respondent) (string, error) {
	if _, err := s.authorize(ctx, token); err != nil {
		return "", err
	}
	if fields := validate.Respondent(respondent); fields != nil {
		return "", invalid(fields)
	}
	respondent.ID = ""
	respondent.CreatedAt = s.now()
	id, err := s.repo.CreateRespondent(ctx, respondent)
	if err != nil {
		return "", s.storeFailure(err)
	}
	return id, nil
}

func (s *Service) UpdateRespondent(ctx context.Context, token, id string, patch model.RespondentPatch) error {
	if _, err := s.authorize(ctx, token); err != nil {
		return err
	}
	if fields := validate.RespondentPatch(patch); fields != nil {
		return invalid(fields)
	}
	if patch.Empty() {
		_, err := s.loadRespondent(ctx, id)
		return err
	}
	if err := s.repo.UpdateRespondent(ctx, id, patch); err != nil {
		return s.fail(err, ErrRespondentNotFound)
	}
	return nil
}

func (s *Service) DeleteRespondent(ctx context.Context, token, id string) error {
	if _, err := s.authorize(ctx, token); err != nil {
		return err
	}
	if err := s.repo.DeleteRespondent(ctx, id); err != nil {
		return s.fail(err, ErrRespondentNotFound)
	}
	return nil
}

// MergeRespondents only checks that both respondents exist. Nothing is moved yet.
func (s *Service) MergeRespondents(ctx context.Context, token, id, otherID string) error {
	if _, err := s.authorize(ctx, token); err != nil {
		return err
	}
	if id == otherID {
		return nil
	}
	if _, err := s.loadRespondent(ctx, id); err != nil {
		return err
	}
	if _, err := s.loadRespondent(ctx, otherID); err != nil {
		return err
	}
	return nil
}

func (s *Service) loadRespondent(ctx context.Context, id string) (model.Respondent, error) {
	respondent, err := s.repo.GetRespondent(ctx, id)
	if err != nil {
		return model.Respondent{}, s.fail(err, ErrRespondentNotFound)
	}
	return respondent, nil
}
