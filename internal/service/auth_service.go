package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthConfig defines how bearer tokens are verified.
type AuthConfig struct {
	Secret string
	Issuer string
	Leeway time.Duration
}

// AuthService verifies bearer tokens and resolves the caller's role from the users table.
type AuthService struct {
	repo   authUserRepository
	logger *zap.Logger
	config AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{repo: repo, logger: logger, config: config}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.config.Leeway),
		jwt.WithExpirationRequired(),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	claims.Email = models.NormalizeEmail(claims.Email)
	if claims.Email == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no email")
	}
	// Role is resolved from storage, never from the token.
	claims.Role = ""
	claims.UserID = ""
	return claims, nil
}

// Authenticate validates the token and resolves the caller. The returned user is nil when the
// email has not registered yet; callers decide whether that is acceptable.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*models.JWTClaims, *models.User, error) {
	claims, err := s.ValidateToken(strings.TrimSpace(tokenString))
	if err != nil {
		return nil, nil, err
	}

	user, err := s.repo.FindByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return claims, nil, nil
		}
		return nil, nil, appErrors.Internal(err, "failed to resolve user")
	}
	if user.Status == models.UserStatusBlocked {
		s.logger.Info("blocked account rejected", zap.String("user_id", user.ID))
		return nil, nil, appErrors.Clone(appErrors.ErrBlockedAccount, "")
	}

	claims.UserID = user.ID
	claims.Role = user.Role
	if claims.Name == "" {
		claims.Name = user.Name
	}
	return claims, user, nil
}

// IssueToken signs a token for email. It backs the developer token command; production tokens
// come from the identity provider.
func (s *AuthService) IssueToken(email, name string, ttl time.Duration) (string, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "email is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now().UTC()
	claims := models.JWTClaims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", appErrors.Internal(err, "failed to sign token")
	}
	return signed, nil
}
