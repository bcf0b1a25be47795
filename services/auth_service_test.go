package services

import (
	"log/slog"
	"testing"
	"time"

	"cinelive/auth"
	"cinelive/errors"
	"cinelive/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	userRepository := repositories.NewUserRepository(db, slog.Default())
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	return NewAuthService(userRepository, tokens)
}

func TestAuthService_Register(t *testing.T) {
	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		svc := newAuthService(t)

		token, err := svc.Register("alice@cinelive.test", "Alice", "ComplexPass123!")

		req.NoError(err)
		req.NotEmpty(token)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)
		svc := newAuthService(t)

		token, err := svc.Register("alice@cinelive.test", "Alice", "simple")

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(token)
	})

	t.Run("should fail on a taken email", func(t *testing.T) {
		req := require.New(t)
		svc := newAuthService(t)

		_, err := svc.Register("alice@cinelive.test", "Alice", "ComplexPass123!")
		req.NoError(err)

		_, err = svc.Register("alice@cinelive.test", "Impostor", "ComplexPass456!")
		req.ErrorIs(err, errors.ErrEmailTaken)
	})
}

func TestAuthService_Login(t *testing.T) {
	t.Run("should login with the right password", func(t *testing.T) {
		req := require.New(t)
		svc := newAuthService(t)

		_, err := svc.Register("alice@cinelive.test", "Alice", "ComplexPass123!")
		req.NoError(err)

		token, err := svc.Login("alice@cinelive.test", "ComplexPass123!")
		req.NoError(err)
		req.NotEmpty(token)
	})

	t.Run("should reject a wrong password with a generic error", func(t *testing.T) {
		req := require.New(t)
		svc := newAuthService(t)

		_, err := svc.Register("alice@cinelive.test", "Alice", "ComplexPass123!")
		req.NoError(err)

		_, err = svc.Login("alice@cinelive.test", "WrongPass123!")
		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should not reveal whether the account exists", func(t *testing.T) {
		req := require.New(t)
		svc := newAuthService(t)

		// Unknown account and wrong password are indistinguishable
		_, err := svc.Login("ghost@cinelive.test", "ComplexPass123!")
		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}
