package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/markdave123-py/Contexta/internal/apperr"
	"github.com/markdave123-py/Contexta/internal/auth"
	db "github.com/markdave123-py/Contexta/internal/core/database"
	"github.com/markdave123-py/Contexta/internal/models"
)

const minPasswordLen = 6

var checkPassword = auth.CheckPassword

type UserService struct {
	db    db.DbClient
	guard *auth.Guard
	log   zerolog.Logger
}

func NewUserService(dbclient db.DbClient, guard *auth.Guard, log zerolog.Logger) *UserService {
	return &UserService{
		db:    dbclient,
		guard: guard,
		log:   log.With().Str("component", "user_service").Logger(),
	}
}

type RegisterInput struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	DisplayName      string `json:"display_name"`
	SecurityQuestion string `json:"security_question"`
	SecurityAnswer   string `json:"security_answer"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperr.Validation("password must be at least 6 characters")
	}
	question := strings.TrimSpace(in.SecurityQuestion)
	if question == "" || auth.NormalizeAnswer(in.SecurityAnswer) == "" {
		return nil, apperr.Validation("security_question and security_answer are required")
	}

	pwHash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	answerHash, err := auth.HashAnswer(in.SecurityAnswer)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}

	user := &models.User{
		ID:                 uuid.NewString(),
		Email:              email,
		PasswordHash:       pwHash,
		DisplayName:        displayName,
		SecurityQuestion:   question,
		SecurityAnswerHash: answerHash,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.db.CreateUser(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, apperr.Internal(err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("user registered")
	return s.issue(user)
}

func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.db.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, apperr.Internal(err)
	}
	hash := auth.DummyHash()
	if user != nil {
		hash = user.PasswordHash
	}
	if !checkPassword(hash, password) || user == nil {
		return nil, apperr.Unauthorized("invalid email or password", nil)
	}
	return s.issue(user)
}

// SecurityQuestion returns the recovery question registered for email.
func (s *UserService) SecurityQuestion(ctx context.Context, email string) (string, error) {
	user, err := s.lookup(ctx, email)
	if err != nil {
		return "", err
	}
	return user.SecurityQuestion, nil
}

// ResetPassword replaces the password when the security answer matches.
func (s *UserService) ResetPassword(ctx context.Context, email, answer, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return apperr.Validation("password must be at least 6 characters")
	}
	user, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}
	if !auth.CheckAnswer(user.SecurityAnswerHash, answer) {
		return apperr.Unauthorized("incorrect security answer", nil)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.db.UpdateUserPassword(ctx, user.ID, hash); err != nil {
		return apperr.Internal(err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("password reset")
	return nil
}

func (s *UserService) lookup(ctx context.Context, email string) (*models.User, error) {
	user, err := s.db.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("no account with that email")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return user, nil
}

func (s *UserService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.guard.Issue(user.ID, user.Email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return apperr.Validation("email is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return apperr.Validation("email is not valid")
	}
	return nil
}
