package operations

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/Genzhalo/idp-console/internal/lifecycle"
	"github.com/Genzhalo/idp-console/internal/metrics"
	"github.com/Genzhalo/idp-console/internal/model"
	"github.com/Genzhalo/idp-console/internal/repository"
	"github.com/Genzhalo/idp-console/internal/slots"
	"github.com/Genzhalo/idp-console/internal/validate"
)

func (s *Service) ListSubmissions(ctx context.Context, token string, filter model.SubmissionFilter) ([]model.Submission, error) {
	if _, err := s.authorize(ctx, token); err != nil {
		return nil, err
	}
	submissions, err := s.repo.ListSubmissions(ctx, filter)
	if err != nil {
		return nil, s.storeFailure(err)
	}
	return submissions, nil
}

func (s *Service) GetSubmission(ctx context.Context, token, id string) (model.Submission, error) {
	if _, err := s.authorize(ctx, token); err != nil {
		return model.Submission{}, err
	}
	return s.loadSubmission(ctx, id)
}

// CreateSubmission registers respondentID into formID. The position and arrival date
// are computed by slots.Next while the store holds the form, so concurrent callers
// can never push a form past its limit.
func (s *Service) CreateSubmission(ctx context.Context, token, formID, respondentID string) (string, error) {
	if _, err := s.authorize(ctx, token); err != nil {
		return "", err
	}
	if respondentID == "" {
		return "", invalid(validate.Fields{"respondentId": "Respondent is required"})
	}
	if _, err := s.loadForm(ctx, formID); err != nil {
		s.reject(err)
		return "", err
	}
	if _, err := s.loadRespondent(ctx, respondentID); err != nil {
		s.reject(err)
		return "", err
	}

	id, err := s.repo.AllocateSubmission(ctx, formID, respondentID, slots.Next)
	if err != nil {
		var opErr error
		switch {
		case errors.Is(err, slots.ErrCapacityExceeded):
			opErr = newError(KindForbidden, ErrCapacityExceeded)
		case errors.Is(err, repository.ErrConflict):
			opErr = newError(KindConflict, ErrAlreadySubmitted)
		default:
			// the form or respondent disappeared after the checks above
			opErr = s.fail(err, ErrFormNotFound)
		}
		s.reject(opErr)
		return "", opErr
	}
	metrics.RecordSubmissionCreated()
	s.log.WithFields(logrus.Fields{"submission_id": id, "form_id": formID}).Info("submission created")
	return id, nil
}

func (s *Service) UpdateSubmissionStatus(ctx context.Context, token, id, status string) error {
	if _, err := s.authorize(ctx, token); err != nil {
		return err
	}
	target, fields := validate.SubmissionStatus(status)
	if fields != nil {
		return invalid(fields)
	}
	submission, err := s.loadSubmission(ctx, id)
	if err != nil {
		return err
	}
	if !lifecycle.SubmissionTransition(submission.Status, target) {
		return nil
	}
	if err := s.repo.UpdateSubmissionStatus(ctx, id, target); err != nil {
		return s.fail(err, ErrSubmissionNotFound)
	}
	return nil
}

func (s *Service) DeleteSubmission(ctx context.Context, token, id string) error {
	if _, err := s.authorize(ctx, token); err != nil {
		return err
	}
	if err := s.repo.DeleteSubmission(ctx, id); err != nil {
		return s.fail(err, ErrSubmissionNotFound)
	}
	return nil
}

func (s *Service) loadSubmission(ctx context.Context, id string) (model.Submission, error) {
	submission, err := s.repo.GetSubmission(ctx, id)
	if err != nil {
		return model.Submission{}, s.fail(err, ErrSubmissionNotFound)
	}
	return submission, nil
}

func (s *Service) reject(err error) {
	var opErr *Error
	if errors.As(err, &opErr) && opErr.Kind != KindStore {
		metrics.RecordSubmissionRejected(opErr.Code)
	}
}
