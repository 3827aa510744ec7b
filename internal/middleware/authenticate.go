package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/tripdesk/internal/apperr"
	"github.com/hongminglow/tripdesk/internal/auth"
	"github.com/hongminglow/tripdesk/internal/http/respond"
	"github.com/hongminglow/tripdesk/internal/models"
	"github.com/hongminglow/tripdesk/internal/storage"
)

// AccessVerifier verifies access tokens.
type AccessVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// UserFinder loads the user a token was issued to.
type UserFinder interface {
	FindUserByID(ctx context.Context, id string) (models.User, error)
}

var errNoToken = apperr.Unauthorized(apperr.CodeNoToken, "No token provided")

// Authenticate requires a valid bearer access token for an active user and attaches the
// caller's identity to the request context.
func Authenticate(tokens AccessVerifier, users UserFinder, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identify(r, tokens, users)
			if err != nil {
				respond.Error(w, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
		})
	}
}

// OptionalAuthenticate attaches an identity when the request carries a usable token and
// otherwise lets the request through anonymously.
func OptionalAuthenticate(tokens AccessVerifier, users UserFinder, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identify(r, tokens, users)
			if err != nil {
				if apperr.KindOf(err) == apperr.KindInternal {
					log.Warnw("optional authentication failed", "err", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
		})
	}
}

func identify(r *http.Request, tokens AccessVerifier, users UserFinder) (auth.Identity, error) {
	token, ok := bearerToken(r)
	if !ok {
		return auth.Identity{}, errNoToken
	}
	claims, err := tokens.VerifyAccessToken(token)
	if err != nil {
		return auth.Identity{}, err
	}
	user, err := users.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return auth.Identity{}, apperr.Unauthorized(apperr.CodeUserNotFound, "User not found")
		}
		return auth.Identity{}, apperr.Internal(apperr.CodeInternal, "Failed to load user", err)
	}
	if !user.Active() {
		return auth.Identity{}, apperr.Unauthorized(apperr.CodeUserInactive, "User account is not active")
	}
	return auth.NewIdentity(user), nil
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
