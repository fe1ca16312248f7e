package service

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"golang.org/x/crypto/bcrypt"

	"github.com/daleapp/dale-backend/internal/apperr"
	"github.com/daleapp/dale-backend/internal/repository"
)

func newAuthService(t *testing.T) (pgxmock.PgxPoolIface, *AuthService) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)

	svc := NewAuthService(repository.NewProfileRepository(mock), nil, "test-secret", time.Hour)
	return mock, svc
}

func TestSignUpIssuesVerifiableToken(t *testing.T) {
	mock, svc := newAuthService(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO profiles`).
		WithArgs("maria@example.com", pgxmock.AnyArg(), "Maria").
		WillReturnRows(pgxmock.NewRows([]string{"id", "rating", "total_reviews", "created_at", "updated_at"}).
			AddRow("prof-1", 0.0, 0, now, now))

	profile, token, err := svc.SignUp(context.Background(), " Maria@Example.com ", "secret-password", "Maria")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if profile.Email != "maria@example.com" {
		t.Fatalf("email not normalized: %q", profile.Email)
	}

	userID, err := svc.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "prof-1" {
		t.Fatalf("user id = %q, want prof-1", userID)
	}
}

func TestSignUpValidation(t *testing.T) {
	_, svc := newAuthService(t)

	if _, _, err := svc.SignUp(context.Background(), "not-an-email", "secret-password", ""); !apperr.IsValidation(err) {
		t.Fatalf("expected ValidationError for email, got %v", err)
	}
	if _, _, err := svc.SignUp(context.Background(), "a@b.com", "short", ""); !apperr.IsValidation(err) {
		t.Fatalf("expected ValidationError for password, got %v", err)
	}
}

func expectGetByEmail(t *testing.T, mock pgxmock.PgxPoolIface, email, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := time.Now()
	mock.ExpectQuery(`SELECT id, email, full_name, photo_url`).
		WithArgs(email).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "email", "full_name", "photo_url", "rating", "total_reviews",
			"created_at", "updated_at", "password_hash",
		}).AddRow("prof-1", email, "Maria", "", 0.0, 0, now, now, string(hash)))
}

func TestSignIn(t *testing.T) {
	mock, svc := newAuthService(t)
	expectGetByEmail(t, mock, "maria@example.com", "secret-password")

	profile, token, err := svc.SignIn(context.Background(), "maria@example.com", "secret-password")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if profile.ID != "prof-1" || token == "" {
		t.Fatalf("unexpected sign-in result: %+v", profile)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	mock, svc := newAuthService(t)
	expectGetByEmail(t, mock, "maria@example.com", "secret-password")

	_, _, err := svc.SignIn(context.Background(), "maria@example.com", "wrong-password")
	if !apperr.IsAuth(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestSignInUnknownEmail(t *testing.T) {
	mock, svc := newAuthService(t)

	mock.ExpectQuery(`SELECT id, email, full_name, photo_url`).
		WithArgs("ghost@example.com").
		WillReturnError(pgx.ErrNoRows)

	// The caller cannot distinguish a missing account from a bad password.
	_, _, err := svc.SignIn(context.Background(), "ghost@example.com", "whatever-password")
	if !apperr.IsAuth(err) || apperr.IsNotFound(err) {
		t.Fatalf("expected plain AuthError, got %v", err)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	mock, svc := newAuthService(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO profiles`).
		WithArgs("maria@example.com", pgxmock.AnyArg(), "").
		WillReturnRows(pgxmock.NewRows([]string{"id", "rating", "total_reviews", "created_at", "updated_at"}).
			AddRow("prof-1", 0.0, 0, now, now))

	_, token, err := svc.SignUp(context.Background(), "maria@example.com", "secret-password", "")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	if _, err := svc.Verify(context.Background(), token+"x"); err == nil {
		t.Fatal("tampered token verified")
	}

	other := NewAuthService(nil, nil, "different-secret", time.Hour)
	if _, err := other.Verify(context.Background(), token); err == nil {
		t.Fatal("token verified under wrong secret")
	}
}

func TestSignOutWithInvalidTokenIsNoop(t *testing.T) {
	_, svc := newAuthService(t)
	if err := svc.SignOut(context.Background(), "not-a-token"); err != nil {
		t.Fatalf("sign out: %v", err)
	}
}
