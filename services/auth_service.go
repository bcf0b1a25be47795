// Package services glues validation, moderation, persistence and the
// live bridge behind the interfaces the transport consumes.
package services

import (
	"fmt"

	"cinelive/auth"
	"cinelive/errors"
	"cinelive/repositories"
)

type IAuthService interface {
	Register(email, displayName, password string) (Token, error)
	Login(email, password string) (Token, error)
}

type Token string

type AuthService struct {
	userRepository repositories.UserRepository
	tokens         auth.TokenManager
}

func NewAuthService(repo repositories.UserRepository, tokens auth.TokenManager) *AuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(email, displayName, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Email:    email,
		Password: password,
	}

	// Validate business rules before any expensive cryptographic work.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hashing happens in the service layer to keep the repository
	// unaware of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(email, displayName, hashedPassword)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.GenerateToken(string(user.ID), []string{"user"})
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	user, err := s.userRepository.GetByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(string(user.ID), []string{"user"})
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
