package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/digkill/LogoForge/internal/models"
	"github.com/digkill/LogoForge/internal/repository"
)

const usernameAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

type UserService struct {
	users       *repository.UserRepository
	freeCredits int
	log         *slog.Logger
}

func NewUserService(users *repository.UserRepository, freeCredits int, log *slog.Logger) *UserService {
	if log == nil {
		log = slog.Default()
	}
	return &UserService{users: users, freeCredits: freeCredits, log: log}
}

// Ensure returns the user record for an authenticated identity, creating it on first sight.
func (s *UserService) Ensure(ctx context.Context, userID, email string) (*models.User, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	username, err := GenerateUsername(email)
	if err != nil {
		return nil, fmt.Errorf("generate username: %w", err)
	}
	user, created, err := s.users.Ensure(ctx, &models.User{
		ID:         userID,
		Email:      email,
		Username:   username,
		FreeCredit: s.freeCredits,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	if created {
		s.log.Info("user created", "user_id", user.ID, "username", user.Username)
	}
	return user, nil
}

// GenerateUsername builds "<up to 4 chars of the email local part>_<6 random alphanumerics>".
func GenerateUsername(email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")
	if r := []rune(local); len(r) > 4 {
		local = string(r[:4])
	}
	suffix, err := gonanoid.Generate(usernameAlphabet, 6)
	if err != nil {
		return "", err
	}
	return local + "_" + suffix, nil
}
