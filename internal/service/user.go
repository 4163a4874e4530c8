package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/apperror"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/auth"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/model"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/repository"
)

const (
	MaxUsernameLength = 64
	// DefaultAdminPassword is what the bootstrap Admin account gets when
	// no password is configured.
	DefaultAdminPassword = "AdminKey1"

	TemporaryPasswordLength = 8
	TemporaryPasswordTTL    = 24 * time.Hour
	temporaryAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// UserService handles accounts and the login session.
type UserService struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	passwords *auth.PasswordService
	clock     Clock
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	passwords *auth.PasswordService,
	clock Clock,
	logger *slog.Logger,
) *UserService {
	if clock == nil {
		clock = SystemClock
	}
	return &UserService{
		users:     users,
		sessions:  sessions,
		passwords: passwords,
		clock:     clock,
		logger:    logger,
	}
}

// AddUserInput is a new account as submitted by sign-up or the admin panel.
type AddUserInput struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	IsVerified bool   `json:"isVerified"`
}

// PasswordReset is the result of RequestPasswordReset. Delivering the
// temporary password to the user is the caller's business.
type PasswordReset struct {
	Username          string    `json:"username"`
	TemporaryPassword string    `json:"temporaryPassword"`
	ExpiresAt         time.Time `json:"expiresAt"`
}

// EnsureAdmin makes sure the verified Admin account exists.
func (s *UserService) EnsureAdmin(ctx context.Context, password string) error {
	if password == "" {
		password = DefaultAdminPassword
	}
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return fmt.Errorf("service/user: hashing admin password: %w", err)
	}

	changed, err := s.users.EnsureAdmin(ctx, newID(), hash)
	if err != nil {
		return fmt.Errorf("service/user: ensuring admin: %w", err)
	}
	if changed {
		s.logger.Info("admin account ensured")
	}
	return nil
}

func (s *UserService) AddUser(ctx context.Context, in AddUserInput) (*model.User, error) {
	username, err := validateUsername(in.Username)
	if err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		UID:           newID(),
		Username:      username,
		PasswordHash:  hash,
		IsVerified:    in.IsVerified,
		TemporaryPass: model.StringPtr(""),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: adding %q: %w", username, err)
	}

	s.logger.Info("user added",
		slog.String("uid", user.UID),
		slog.String("username", user.Username),
	)
	pub := user.Public()
	return &pub, nil
}

// VerifyUser checks credentials and additionally requires the account to
// be verified. It does not touch the session.
func (s *UserService) VerifyUser(ctx context.Context, username, password string) (*model.User, error) {
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if _, err := s.checkPassword(user, password); err != nil {
		return nil, err
	}
	if !user.IsVerified {
		return nil, apperror.NotVerified()
	}
	pub := user.Public()
	return &pub, nil
}

// Login checks credentials and makes the user the current session. It does
// not require the account to be verified.
func (s *UserService) Login(ctx context.Context, username, password string) (*model.User, error) {
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}
	user, err := s.sessions.Login(ctx, username, func(u *model.User) error {
		usedMain, err := s.checkPassword(u, password)
		if err != nil {
			return err
		}
		if usedMain && s.passwords.NeedsUpgrade(u.PasswordHash) {
			upgraded, err := s.passwords.Hash(password)
			if err != nil {
				// Keep the old hash; the login itself succeeded.
				s.logger.Warn("password upgrade failed", slog.String("uid", u.UID), slog.String("error", err.Error()))
				return nil
			}
			u.PasswordHash = upgraded
			s.logger.Info("password hash upgraded", slog.String("uid", u.UID))
		}
		return nil
	})
	if err != nil {
		s.logger.Info("login failed",
			slog.String("username", username),
			slog.String("reason", apperror.Kind(err)),
		)
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("uid", user.UID))
	pub := user.Public()
	return &pub, nil
}

func (s *UserService) Logout(ctx context.Context) error {
	if err := s.sessions.Logout(ctx); err != nil {
		return fmt.Errorf("service/user: logout: %w", err)
	}
	s.logger.Info("user logged out")
	return nil
}

// CurrentUser returns the logged-in user, or nil.
func (s *UserService) CurrentUser(ctx context.Context) (*model.User, error) {
	user, err := s.sessions.Current(ctx)
	if err != nil || user == nil {
		return nil, err
	}
	pub := user.Public()
	return &pub, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i] = users[i].Public()
	}
	return users, nil
}

func (s *UserService) UpdateUsername(ctx context.Context, uid, newUsername string) (*model.User, error) {
	username, err := validateUsername(newUsername)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Rename(ctx, uid, username)
	if err != nil {
		return nil, err
	}
	s.logger.Info("username updated", slog.String("uid", uid), slog.String("username", username))
	pub := user.Public()
	return &pub, nil
}

// RequestPasswordReset issues an 8-character temporary password valid for
// 24 hours.
func (s *UserService) RequestPasswordReset(ctx context.Context, username string) (*PasswordReset, error) {
	temp, err := generateTemporaryPassword()
	if err != nil {
		return nil, fmt.Errorf("service/user: generating temporary password: %w", err)
	}
	expires := s.clock().Add(TemporaryPasswordTTL)

	user, err := s.users.SetTemporaryPassword(ctx, username, temp, expires)
	if err != nil {
		return nil, err
	}

	s.logger.Info("temporary password issued",
		slog.String("uid", user.UID),
		slog.Time("expiresAt", expires),
	)
	return &PasswordReset{Username: user.Username, TemporaryPassword: temp, ExpiresAt: expires}, nil
}

func (s *UserService) ChangePassword(ctx context.Context, uid, newPassword string) error {
	if newPassword == "" {
		return apperror.ValidationFailed("password", "password is required")
	}
	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return apperror.ValidationFailed("password", err.Error())
	}
	if err := s.users.SetPassword(ctx, uid, hash); err != nil {
		return err
	}
	s.logger.Info("password changed", slog.String("uid", uid))
	return nil
}

func (s *UserService) SetVerified(ctx context.Context, uid string, verified bool) (*model.User, error) {
	user, err := s.users.SetVerified(ctx, uid, verified)
	if err != nil {
		return nil, err
	}
	s.logger.Info("verification changed", slog.String("uid", uid), slog.Bool("verified", verified))
	pub := user.Public()
	return &pub, nil
}

// DeactivateAccount deletes a user and that user's reading history.
func (s *UserService) DeactivateAccount(ctx context.Context, uid string) error {
	user, err := s.users.Delete(ctx, uid)
	if err != nil {
		return err
	}
	s.logger.Info("account deactivated", slog.String("uid", uid), slog.String("username", user.Username))
	return nil
}

// checkPassword accepts the user's password or an unexpired temporary
// password. usedMain reports which one matched. An account without a
// stored password never matches.
func (s *UserService) checkPassword(u *model.User, password string) (usedMain bool, err error) {
	if u.PasswordHash == "" {
		s.logger.Warn("user has no stored password", slog.String("uid", u.UID))
		return false, apperror.Database("Invalid user data")
	}
	if err := s.passwords.Verify(u.PasswordHash, password); err == nil {
		return true, nil
	} else if !errors.Is(err, auth.ErrPasswordMismatch) {
		s.logger.Warn("stored password unreadable", slog.String("uid", u.UID), slog.String("error", err.Error()))
	}

	if u.HasValidTemporaryPass(s.clock()) &&
		subtle.ConstantTimeCompare([]byte(model.Deref(u.TemporaryPass)), []byte(password)) == 1 {
		return false, nil
	}
	return false, apperror.InvalidCredentials()
}

func validateUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if username == "" {
		return "", apperror.ValidationFailed("username", "username is required")
	}
	if len(username) > MaxUsernameLength {
		return "", apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or fewer", MaxUsernameLength))
	}
	return username, nil
}

func generateTemporaryPassword() (string, error) {
	max := big.NewInt(int64(len(temporaryAlphabet)))
	b := make([]byte, TemporaryPasswordLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = temporaryAlphabet[n.Int64()]
	}
	return string(b), nil
}
