package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"vialidad/internal/audit"
	"vialidad/internal/operator/models"
	"vialidad/internal/platform/middleware"
	dErrors "vialidad/pkg/domain-errors"
	"vialidad/pkg/platform/sentinel"
)

// Store resolves operator accounts for authentication.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*models.Operator, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Operator, error)
}

// AuditPublisher records login events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Claims are the JWT claims carried by operator access tokens.
type Claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Service authenticates municipal staff and mints bearer tokens for the API.
type Service struct {
	store      Store
	signingKey []byte
	tokenTTL   time.Duration
	logger     *slog.Logger
	publisher  AuditPublisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func New(store Store, signingKey string, tokenTTL time.Duration, opts ...Option) *Service {
	s := &Service{
		store:      store,
		signingKey: []byte(signingKey),
		tokenTTL:   tokenTTL,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies the credentials and returns a signed access token. Wrong
// email and wrong password produce the same error so callers cannot probe
// which accounts exist.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.Operator, error) {
	operator, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load operator")
	}
	if !operator.Active {
		return "", nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(password)); err != nil {
		return "", nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := s.generateToken(operator)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}

	if s.publisher != nil {
		if err := s.publisher.Emit(ctx, audit.Event{
			Action:   audit.ActionOperatorLogin,
			Operator: operator.Email,
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to emit audit event", "action", audit.ActionOperatorLogin, "error", err)
		}
	}
	s.logger.InfoContext(ctx, "operator logged in", "email", operator.Email)
	return token, operator, nil
}

func (s *Service) generateToken(operator *models.Operator) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: operator.Email,
		Roles: operator.RoleStrings(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "vialidad",
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken checks the signature and expiry of an access token and
// returns the claims the HTTP middleware needs. Implements
// middleware.TokenValidator.
func (s *Service) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return &middleware.TokenClaims{
		OperatorEmail: claims.Email,
		Roles:         claims.Roles,
	}, nil
}
