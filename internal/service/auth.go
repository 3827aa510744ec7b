package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/tripdesk/internal/apperr"
	"github.com/hongminglow/tripdesk/internal/auth"
	"github.com/hongminglow/tripdesk/internal/logger"
	"github.com/hongminglow/tripdesk/internal/metrics"
	"github.com/hongminglow/tripdesk/internal/models"
	"github.com/hongminglow/tripdesk/internal/notify"
	"github.com/hongminglow/tripdesk/internal/session"
	"github.com/hongminglow/tripdesk/internal/storage"
)

const defaultResetTokenTTL = time.Hour

// ResetRequestedMessage is returned whether or not the account exists.
const ResetRequestedMessage = "If an account exists with this email, a password reset link has been sent"

// VerificationResentMessage is returned whether or not the account exists.
const VerificationResentMessage = "If an unverified account exists with this email, a verification link has been sent"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// errInvalidCredentials is shared by the unknown-user and wrong-password paths so both
// produce identical responses.
var errInvalidCredentials = apperr.Unauthorized(apperr.CodeInvalidCredentials, "Invalid email or password")

// SessionRegistry records which refresh tokens are still usable.
type SessionRegistry interface {
	Put(ctx context.Context, userID, refreshToken string, rec session.Record, ttl time.Duration) error
	Get(ctx context.Context, userID, refreshToken string) (*session.Record, error)
	Delete(ctx context.Context, userID, refreshToken string) error
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}

// Options tunes behaviour that differs between deployments.
type Options struct {
	// StrictResetEmail surfaces password-reset delivery failures as server errors instead
	// of logging them. Registration emails are always best-effort.
	StrictResetEmail bool
	ResetTokenTTL    time.Duration
}

// Deps are the collaborators of AuthService.
type Deps struct {
	Store    storage.IdentityStore
	Sessions SessionRegistry
	Tokens   *auth.TokenManager
	Notifier notify.Sender
	Logger   *zap.SugaredLogger
	Metrics  *metrics.Metrics
	Options  Options
	Clock    func() time.Time
}

// AuthService implements the credential flows. It holds no per-request state.
type AuthService struct {
	store    storage.IdentityStore
	sessions SessionRegistry
	tokens   *auth.TokenManager
	notifier notify.Sender
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics
	opts     Options
	now      func() time.Time
}

// NewAuthService validates deps and builds the service.
func NewAuthService(d Deps) (*AuthService, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("identity store is required")
	case d.Sessions == nil:
		return nil, errors.New("session registry is required")
	case d.Tokens == nil:
		return nil, errors.New("token manager is required")
	case d.Notifier == nil:
		return nil, errors.New("notification sender is required")
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Options.ResetTokenTTL <= 0 {
		d.Options.ResetTokenTTL = defaultResetTokenTTL
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return &AuthService{
		store:    d.Store,
		sessions: d.Sessions,
		tokens:   d.Tokens,
		notifier: d.Notifier,
		log:      d.Logger,
		metrics:  d.Metrics,
		opts:     d.Options,
		now:      d.Clock,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// checkPassword enforces the length bounds for a new password.
func checkPassword(password string) error {
	switch {
	case len(password) < auth.MinPasswordLength:
		return errWeakPassword
	case len(password) > auth.MaxPasswordLength:
		return errPasswordTooLong
	}
	return nil
}

var (
	errWeakPassword    = apperr.Validation(apperr.CodeWeakPassword, "Password must be at least 8 characters long")
	errPasswordTooLong = apperr.Validation(apperr.CodePasswordTooLong, "Password must be at most 72 bytes long")
)

func internal(message string, err error) error {
	return apperr.Internal(apperr.CodeInternal, message, err)
}

// loadUser fetches a user by id, mapping a miss to notFound.
func (s *AuthService) loadUser(ctx context.Context, id string, notFound *apperr.Error) (models.User, error) {
	user, err := s.store.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, notFound
		}
		return models.User{}, internal("failed to load user", err)
	}
	return user, nil
}

func (s *AuthService) save(ctx context.Context, user models.User) (models.User, error) {
	saved, err := s.store.SaveUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return models.User{}, apperr.Conflict(apperr.CodeUserExists, "User with this email already exists")
		}
		return models.User{}, internal("failed to save user", err)
	}
	return saved, nil
}

func (s *AuthService) revokeAll(ctx context.Context, userID string) (int, error) {
	n, err := s.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		return n, internal("failed to revoke sessions", err)
	}
	return n, nil
}
