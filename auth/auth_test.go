package auth

import (
	"testing"
	"time"

	"cinelive/errors"

	"github.com/stretchr/testify/require"
)

func TestPassword_Hash_And_Compare(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("CorrectHorse1!")
	req.NoError(err)
	req.NotContains(hash, "CorrectHorse1!")

	match, err := ComparePassword("CorrectHorse1!", hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongHorse1!", hash)
	req.NoError(err)
	req.False(match)
}

func TestPassword_Same_Input_Different_Hashes(t *testing.T) {
	req := require.New(t)

	// Salted: two hashes of the same password must differ
	hash1, err := HashPassword("CorrectHorse1!")
	req.NoError(err)
	hash2, err := HashPassword("CorrectHorse1!")
	req.NoError(err)
	req.NotEqual(hash1, hash2)
}

func TestToken_Generate_And_Validate(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test-secret", time.Hour)

	token, err := manager.GenerateToken("user-42", []string{"user"})
	req.NoError(err)

	claims, err := manager.ValidateToken(token)
	req.NoError(err)
	req.Equal("user-42", claims.UserID)
	req.Equal([]string{"user"}, claims.Roles)
	req.Equal("cinelive", claims.Issuer)
}

func TestToken_Expired_Is_Rejected(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test-secret", -time.Minute)

	token, err := manager.GenerateToken("user-42", []string{"user"})
	req.NoError(err)

	_, err = manager.ValidateToken(token)
	req.Error(err)
}

func TestToken_Wrong_Secret_Is_Rejected(t *testing.T) {
	req := require.New(t)

	token, err := NewTokenManager("secret-a", time.Hour).GenerateToken("user-42", nil)
	req.NoError(err)

	_, err = NewTokenManager("secret-b", time.Hour).ValidateToken(token)
	req.Error(err)
}

func TestValidateRegister(t *testing.T) {
	req := require.New(t)

	// A complex enough password passes
	req.NoError(ValidateRegister(RegisterRequest{
		Email:    "alice@cinelive.test",
		Password: "CorrectHorse1!",
	}))

	// Long but single-class passwords fail complexity
	err := ValidateRegister(RegisterRequest{
		Email:    "alice@cinelive.test",
		Password: "alllowercaseletters",
	})
	req.ErrorIs(err, errors.ErrInvalidPassword)

	// Too short fails the length rule before complexity
	req.Error(ValidateRegister(RegisterRequest{
		Email:    "alice@cinelive.test",
		Password: "Ab1!",
	}))

	// Malformed email
	req.Error(ValidateRegister(RegisterRequest{
		Email:    "not-an-email",
		Password: "CorrectHorse1!",
	}))
}
