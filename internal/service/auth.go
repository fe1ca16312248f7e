package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/daleapp/dale-backend/internal/apperr"
	"github.com/daleapp/dale-backend/internal/model"
	"github.com/daleapp/dale-backend/internal/repository"
)

// Claims is the JWT payload issued at sign-in.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

const denylistPrefix = "auth:denylist:"

// AuthService is the directory surface: sign-up, sign-in, sign-out and
// session retrieval. Tokens are stateless JWTs; sign-out denylists the
// token id in Redis until its natural expiry.
type AuthService struct {
	profiles *repository.ProfileRepository
	redis    *redis.Client // nil disables the sign-out denylist
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewAuthService creates an auth service.
func NewAuthService(profiles *repository.ProfileRepository, rdb *redis.Client, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		profiles: profiles,
		redis:    rdb,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SignUp registers a new profile and returns it with a signed token.
func (s *AuthService) SignUp(ctx context.Context, email, password, fullName string) (*model.Profile, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	switch {
	case email == "" || !strings.Contains(email, "@"):
		return nil, "", apperr.ValidationError{Field: "email", Msg: "a valid email is required"}
	case len(password) < 8:
		return nil, "", apperr.ValidationError{Field: "password", Msg: "password must be at least 8 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("auth: hash password: %w", err)
	}

	profile, err := s.profiles.Create(ctx, email, string(hash), strings.TrimSpace(fullName))
	if err != nil {
		return nil, "", classify(err)
	}

	token, err := s.issueToken(profile)
	if err != nil {
		return nil, "", err
	}

	log.Printf("[auth] signed up %s", profile.ID)
	return profile, token, nil
}

// SignIn checks credentials and returns the profile with a signed token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*model.Profile, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	profile, hash, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, "", apperr.AuthError{Msg: "invalid email or password"}
		}
		return nil, "", classify(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, "", apperr.AuthError{Msg: "invalid email or password"}
	}

	token, err := s.issueToken(profile)
	if err != nil {
		return nil, "", err
	}
	return profile, token, nil
}

// SignOut denylists the presented token until its expiry. Signing out with
// an invalid token is not an error; the session is gone either way.
func (s *AuthService) SignOut(ctx context.Context, tokenString string) error {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil
	}
	if s.redis == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, denylistPrefix+claims.ID, "1", ttl).Err(); err != nil {
		return classify(fmt.Errorf("auth: denylist token: %w", err))
	}
	log.Printf("[auth] signed out session %s", claims.ID)
	return nil
}

// Session returns the profile for an authenticated user id.
func (s *AuthService) Session(ctx context.Context, userID string) (*model.Profile, error) {
	if userID == "" {
		return nil, apperr.AuthError{Msg: "no active session"}
	}
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.AuthError{Msg: "no active session"}
		}
		return nil, classify(err)
	}
	return profile, nil
}

// Verify validates a bearer token and returns the caller's user id.
// Used by the authentication middleware.
func (s *AuthService) Verify(ctx context.Context, tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", apperr.AuthError{Msg: "invalid token", Err: err}
	}
	if s.redis != nil && claims.ID != "" {
		if n, err := s.redis.Exists(ctx, denylistPrefix+claims.ID).Result(); err == nil && n > 0 {
			return "", apperr.AuthError{Msg: "session revoked"}
		}
	}
	return claims.Subject, nil
}

func (s *AuthService) issueToken(p *model.Profile) (string, error) {
	now := s.now()
	claims := Claims{
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return token, nil
}

func (s *AuthService) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}
