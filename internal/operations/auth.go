package operations

import (
	"context"
	"errors"

	"github.com/Genzhalo/idp-console/internal/auth"
	"github.com/Genzhalo/idp-console/internal/crypto"
	"github.com/Genzhalo/idp-console/internal/metrics"
	"github.com/Genzhalo/idp-console/internal/model"
	"github.com/Genzhalo/idp-console/internal/repository"
	"github.com/Genzhalo/idp-console/internal/validate"
)

// Login checks the credentials and issues a web session token. An unknown email and
// a wrong password fail the same way.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	if fields := validate.Credentials(email, password); fields != nil {
		metrics.RecordSignIn("invalid_input")
		return "", invalid(fields)
	}
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordSignIn("invalid_credentials")
			return "", newError(KindUnauthenticated, ErrInvalidCredentials)
		}
		return "", s.storeFailure(err)
	}
	if user.PasswordAlg != crypto.PasswordAlg || crypto.CheckPassword(user.PasswordHash, password) != nil {
		metrics.RecordSignIn("invalid_credentials")
		return "", newError(KindUnauthenticated, ErrInvalidCredentials)
	}
	token, err := s.auth.Issue(ctx, user)
	if err != nil {
		return "", s.storeFailure(err)
	}
	metrics.RecordSignIn("success")
	s.log.WithField("user_id", user.ID).Info("user signed in")
	return token, nil
}

// Logout revokes exactly token. The token does not need to be live.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return newError(KindUnauthenticated, ErrMissingToken)
	}
	if err := s.auth.Revoke(ctx, token); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return newError(KindUnauthenticated, ErrInvalidToken)
		}
		return s.storeFailure(err)
	}
	return nil
}

// SeedDefaultUser creates the bootstrap account unless one with the same email
// already exists. Empty credentials disable seeding.
func (s *Service) SeedDefaultUser(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	if fields := validate.Credentials(email, password); fields != nil {
		return invalid(fields)
	}
	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return s.storeFailure(err)
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.repo.CreateUser(ctx, model.User{
		Email:        email,
		PasswordAlg:  crypto.PasswordAlg,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	})
	if err != nil && !errors.Is(err, repository.ErrConflict) {
		return s.storeFailure(err)
	}
	s.log.WithField("email", email).Info("default user ready")
	return nil
}
