// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/events-api/internal/core"
	"github.com/carterperez-dev/templates/events-api/internal/mailer"
	"github.com/carterperez-dev/templates/events-api/internal/user"
)

const ResetTokenTTL = 10 * time.Minute

const (
	msgMissingCredentials = "Please provide email and password"
	msgBadCredentials     = "Incorrect email or password"
	msgNoSuchEmail        = "There is no user with this email address"
	msgMailFailed         = "There was an error sending the email. Try again later!"
	msgResetTokenInvalid  = "Token is invalid or has expired"
	msgMissingPasswords   = "Please provide passwordCurrent, password and passwordConfirm"
	msgPasswordMismatch   = "Passwords do not match"
	msgWrongCurrent       = "Your current password is wrong"

	resetSubject = "Your password reset token (valid for 10 minutes)"
)

type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type Service struct {
	users     user.Repository
	mailer    Mailer
	validator *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(users user.Repository, m Mailer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:     users,
		mailer:    m,
		validator: core.NewValidator(),
		logger:    logger,
		now:       time.Now,
	}
}

// Signup creates a regular user. Any role in the request is ignored.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*user.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	u := &user.User{
		Name:  req.Name,
		Email: req.Email,
		Photo: req.Photo,
		Role:  user.RoleUser,
	}
	u.Normalize()
	if err := s.validator.Struct(u); err != nil {
		return nil, err
	}

	hash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u.Password = hash

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, core.DuplicateError("email")
		}
		return nil, fmt.Errorf("signup: %w", err)
	}

	core.AddSpanEvent(ctx, "auth.signup", attribute.String("user.id", u.ID.Hex()))
	return u, nil
}

// Login answers an unknown email and a wrong password identically, in the
// same time.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*user.User, error) {
	email := user.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, core.ValidationError(msgMissingCredentials)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("login: %w", err)
	}

	var hash *string
	if u != nil {
		hash = &u.Password
	}

	valid, err := core.VerifyPasswordTimingSafe(req.Password, hash)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !valid {
		core.AddSpanEvent(ctx, "auth.login.failed")
		return nil, core.UnauthorizedError(msgBadCredentials)
	}

	if core.NeedsRehash(u.Password) {
		s.rehash(ctx, u, req.Password)
	}

	core.AddSpanEvent(ctx, "auth.login", attribute.String("user.id", u.ID.Hex()))
	return u, nil
}

func (s *Service) rehash(ctx context.Context, u *user.User, password string) {
	hash, err := core.HashPassword(password)
	if err == nil {
		err = s.users.RehashPassword(ctx, u.ID, hash)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed",
			"user_id", u.ID.Hex(),
			"error", err,
		)
		return
	}
	u.Password = hash
}

// ForgotPassword stores a hashed single-use token and mails its plaintext
// through resetURL. When the mail cannot be sent the token is withdrawn,
// unless a newer request already replaced it.
func (s *Service) ForgotPassword(
	ctx context.Context,
	email string,
	resetURL func(token string) string,
) error {
	u, err := s.users.GetByEmail(ctx, user.NormalizeEmail(email))
	if errors.Is(err, core.ErrNotFound) {
		return core.NotFoundError(msgNoSuchEmail)
	}
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}

	token, err := core.GenerateResetToken()
	if err != nil {
		return err
	}
	tokenHash := core.HashToken(token)

	if err := s.users.SetResetToken(ctx, u.ID, tokenHash, s.now().Add(ResetTokenTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	url := resetURL(token)
	err = s.mailer.Send(ctx, mailer.Message{
		To:      u.Email,
		Subject: resetSubject,
		Text: "Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: " +
			url + ".\nIf you didn't forget your password, please ignore this email!",
	})
	if err != nil {
		if clearErr := s.users.ClearResetToken(ctx, u.ID, tokenHash); clearErr != nil {
			s.logger.ErrorContext(ctx, "reset token rollback failed",
				"user_id", u.ID.Hex(),
				"error", clearErr,
			)
		}
		return core.InternalError(msgMailFailed, err)
	}

	core.AddSpanEvent(ctx, "auth.reset_token_sent", attribute.String("user.id", u.ID.Hex()))
	return nil
}

// ResetPassword consumes token. Two concurrent resets with the same token
// cannot both succeed.
func (s *Service) ResetPassword(
	ctx context.Context,
	token string,
	req ResetPasswordRequest,
) (*user.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, core.ValidationError(msgResetTokenInvalid)
	}
	tokenHash := core.HashToken(token)
	now := s.now()

	if _, err := s.users.GetByResetToken(ctx, tokenHash, now); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ValidationError(msgResetTokenInvalid)
		}
		return nil, fmt.Errorf("reset password: %w", err)
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	hash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u, err := s.users.ResetPassword(ctx, tokenHash, hash, now)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ValidationError(msgResetTokenInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("reset password: %w", err)
	}

	core.AddSpanEvent(ctx, "auth.password_reset", attribute.String("user.id", u.ID.Hex()))
	return u, nil
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	current *user.User,
	req UpdatePasswordRequest,
) (*user.User, error) {
	if current == nil {
		return nil, core.UnauthorizedError("")
	}
	if req.PasswordCurrent == "" || req.Password == "" || req.PasswordConfirm == "" {
		return nil, core.ValidationError(msgMissingPasswords)
	}
	if req.Password != req.PasswordConfirm {
		return nil, core.ValidationError(msgPasswordMismatch)
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	stored, err := s.users.GetByID(ctx, current.ID, user.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}

	valid, err := core.VerifyPassword(req.PasswordCurrent, stored.Password)
	if err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	if !valid {
		return nil, core.UnauthorizedError(msgWrongCurrent)
	}

	hash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdatePassword(ctx, stored.ID, hash, s.now()); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}

	updated, err := s.users.GetByID(ctx, stored.ID, user.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}

	core.AddSpanEvent(ctx, "auth.password_changed", attribute.String("user.id", updated.ID.Hex()))
	return updated, nil
}
