package identity

import (
	"context"
	"course-checkout/internal/apperror"
	"course-checkout/internal/repository"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTExchanger verifies session tokens issued by the identity provider and
// confirms the subject still exists in the store.
type JWTExchanger struct {
	secret   []byte
	issuer   string
	userRepo repository.UserRepository
}

func NewJWTExchanger(secret, issuer string, userRepo repository.UserRepository) *JWTExchanger {
	return &JWTExchanger{
		secret:   []byte(secret),
		issuer:   issuer,
		userRepo: userRepo,
	}
}

func (e *JWTExchanger) Exchange(ctx context.Context, credential string) (*Session, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if e.issuer != "" {
		opts = append(opts, jwt.WithIssuer(e.issuer))
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(credential, &claims, func(*jwt.Token) (interface{}, error) {
		return e.secret, nil
	}, opts...)
	if err != nil {
		return nil, apperror.Unauthenticated("invalid session token", err)
	}
	if claims.Subject == "" {
		return nil, apperror.Unauthenticated("session token has no subject", nil)
	}

	user, err := e.userRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Unauthenticated("user not found", nil)
		}
		return nil, fmt.Errorf("load session user: %w", err)
	}

	email := user.Email
	if email == "" {
		email = claims.Email
	}

	return &Session{UserID: user.ID, Email: email}, nil
}
