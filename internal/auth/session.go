package auth

import (
	"context"
	"errors"
	"time"

	"github.com/Genzhalo/idp-console/internal/model"
	"github.com/Genzhalo/idp-console/internal/repository"
)

// WebDevice labels tokens issued by the browser login.
const WebDevice = "WEB"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrUserNotFound = errors.New("user not found")
)

// Sessions is the part of the user store the authenticator touches.
type Sessions interface {
	GetUserByID(ctx context.Context, id string) (model.User, error)
	UpsertToken(ctx context.Context, userID, token, usedFor string) error
	RemoveTokens(ctx context.Context, userID string, tokens []string) error
	ListTokens(ctx context.Context, userID string) ([]model.UserToken, error)
}

// Authenticator checks both the signature and the live token set, so a token that
// was logged out or superseded stops working before it expires.
type Authenticator struct {
	secret   string
	ttl      time.Duration
	sessions Sessions
}

func NewAuthenticator(secret string, ttl time.Duration, sessions Sessions) *Authenticator {
	return &Authenticator{secret: secret, ttl: ttl, sessions: sessions}
}

func (a *Authenticator) Issue(ctx context.Context, user model.User) (string, error) {
	token, err := NewToken(a.secret, a.ttl, ClaimLogin, user.ID)
	if err != nil {
		return "", err
	}
	if err := a.sessions.UpsertToken(ctx, user.ID, token, WebDevice); err != nil {
		return "", err
	}
	return token, nil
}

func (a *Authenticator) Authenticate(ctx context.Context, token string) (model.User, error) {
	claims, err := ParseToken(a.secret, token, ClaimLogin)
	if err != nil {
		return model.User{}, ErrInvalidToken
	}
	user, err := a.sessions.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	live, err := a.sessions.ListTokens(ctx, user.ID)
	if err != nil {
		return model.User{}, err
	}
	for _, candidate := range live {
		if candidate.Token == token {
			return user, nil
		}
	}
	return model.User{}, ErrTokenExpired
}

// Revoke removes token from its owner's live set. Only the signature and claim type
// are checked; revoking a token that is already gone succeeds.
func (a *Authenticator) Revoke(ctx context.Context, token string) error {
	claims, err := ParseToken(a.secret, token, ClaimLogin)
	if err != nil {
		return ErrInvalidToken
	}
	return a.sessions.RemoveTokens(ctx, claims.Subject, []string{token})
}
