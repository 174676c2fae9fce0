// Package operations implements the use cases behind the HTTP API. Every call that
// takes a bearer token authenticates it before touching any data, and every failure
// comes back as an *Error.
package operations

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Genzhalo/idp-console/internal/auth"
	"github.com/Genzhalo/idp-console/internal/model"
	"github.com/Genzhalo/idp-console/internal/repository"
)

type Service struct {
	repo repository.Repository
	auth *auth.Authenticator
	log  *logrus.Logger
	now  func() time.Time
}

func NewService(repo repository.Repository, authenticator *auth.Authenticator, log *logrus.Logger) *Service {
	return &Service{
		repo: repo,
		auth: authenticator,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) authorize(ctx context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, newError(KindUnauthenticated, ErrMissingToken)
	}
	user, err := s.auth.Authenticate(ctx, token)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, auth.ErrInvalidToken):
		return model.User{}, newError(KindUnauthenticated, ErrInvalidToken)
	case errors.Is(err, auth.ErrTokenExpired):
		return model.User{}, newError(KindUnauthenticated, ErrTokenExpired)
	case errors.Is(err, auth.ErrUserNotFound):
		return model.User{}, newError(KindNotFound, ErrUserNotFound)
	default:
		return model.User{}, s.storeFailure(err)
	}
}

// fail translates a repository error. notFound is the code reported for ErrNotFound.
func (s *Service) fail(err error, notFound string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return newError(KindNotFound, notFound)
	default:
		return s.storeFailure(err)
	}
}

func (s *Service) storeFailure(err error) error {
	s.log.WithError(err).Error("store failure")
	return &Error{Kind: KindStore, Code: ErrServerError, Message: err.Error(), Err: err}
}
