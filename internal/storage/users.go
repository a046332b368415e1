package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"reelvault/internal/models"
)

// CreateUser registers an account. Emails are unique case-insensitively.
func (s *Storage) CreateUser(params CreateUserParams) (models.User, error) {
	displayName := strings.TrimSpace(params.DisplayName)
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if displayName == "" {
		return models.User{}, errors.New("displayName is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return models.User{}, errors.New("a valid email is required")
	}
	if len(params.Password) < 8 {
		return models.User{}, errors.New("password must be at least 8 characters")
	}
	hashed, err := hashPassword(params.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := generateID()
	if err != nil {
		return models.User{}, err
	}
	user := models.User{
		ID:           id,
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    s.now(),
	}
	err = s.mutate(func(d *dataset) error {
		for _, existing := range d.Users {
			if strings.EqualFold(existing.Email, email) {
				return fmt.Errorf("email %s is already registered", email)
			}
		}
		d.Users[user.ID] = user
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// AuthenticateUser verifies credentials and returns the matching user.
func (s *Storage) AuthenticateUser(email, password string) (models.User, error) {
	if password == "" {
		return models.User{}, ErrInvalidCredentials
	}
	user, ok := s.FindUserByEmail(email)
	if !ok {
		return models.User{}, ErrInvalidCredentials
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Storage) GetUser(id string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.data.Users[id]
	return user, ok
}

func (s *Storage) FindUserByEmail(email string) (models.User, bool) {
	trimmed := strings.TrimSpace(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.data.Users {
		if strings.EqualFold(user.Email, trimmed) {
			return user, true
		}
	}
	return models.User{}, false
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, passwordHashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(password), salt, passwordHashIterations, passwordHashKeyLength, sha256.New)
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedKey := base64.RawStdEncoding.EncodeToString(derived)
	return fmt.Sprintf("pbkdf2$sha256$%d$%s$%s", passwordHashIterations, encodedSalt, encodedKey), nil
}

func verifyPassword(stored, password string) error {
	parts := strings.Split(stored, "$")
	if len(parts) != 5 || parts[0] != "pbkdf2" || parts[1] != "sha256" {
		return errors.New("unsupported password hash format")
	}
	iterations, err := strconv.Atoi(parts[2])
	if err != nil || iterations <= 0 {
		return errors.New("invalid password hash iterations")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return errors.New("invalid password hash salt")
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return errors.New("invalid password hash key")
	}
	derived := pbkdf2.Key([]byte(password), salt, iterations, len(expected), sha256.New)
	if subtle.ConstantTimeCompare(derived, expected) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}
