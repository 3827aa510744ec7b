package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hongminglow/tripdesk/internal/apperr"
	"github.com/hongminglow/tripdesk/internal/models"
)

var (
	// ErrTokenExpired is returned when a token's exp claim has passed.
	ErrTokenExpired = apperr.Unauthorized(apperr.CodeTokenExpired, "token has expired")
	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = apperr.Unauthorized(apperr.CodeTokenInvalid, "invalid token")
)

// Claims is the payload carried by both access and refresh tokens.
type Claims struct {
	UserID   string      `json:"userId"`
	TenantID string      `json:"tenantId,omitempty"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// ClaimsFor builds the token claims for a user.
func ClaimsFor(user models.User) Claims {
	return Claims{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Email:    user.Email,
		Role:     user.Role,
	}
}

// TokenPair is the result of a credential exchange.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// TokenConfig configures a TokenManager. TTLs use the `<n><s|m|h|d>` form.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     string
	RefreshTTL    string
	Issuer        string
}

// TokenManager issues and verifies signed JWTs. Access and refresh tokens use separate secrets.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	expiresIn     int64
	issuer        string
	now           func() time.Time
}

// NewTokenManager creates a manager from cfg.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	return &TokenManager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     ttlOrDefault(cfg.AccessTTL),
		refreshTTL:    ttlOrDefault(cfg.RefreshTTL),
		expiresIn:     ExpiresInSeconds(cfg.AccessTTL),
		issuer:        cfg.Issuer,
		now:           time.Now,
	}, nil
}

// WithClock returns a copy of the manager that reads time from now.
func (t *TokenManager) WithClock(now func() time.Time) *TokenManager {
	cp := *t
	cp.now = now
	return &cp
}

// AccessTTL returns the lifetime of access tokens.
func (t *TokenManager) AccessTTL() time.Duration { return t.accessTTL }

// RefreshTTL returns the lifetime of refresh tokens and their session records.
func (t *TokenManager) RefreshTTL() time.Duration { return t.refreshTTL }

// IssueAccessToken signs claims with the access secret.
func (t *TokenManager) IssueAccessToken(claims Claims) (string, error) {
	return t.issue(claims, t.accessSecret, t.accessTTL)
}

// IssueRefreshToken signs claims with the refresh secret.
func (t *TokenManager) IssueRefreshToken(claims Claims) (string, error) {
	return t.issue(claims, t.refreshSecret, t.refreshTTL)
}

// IssueTokenPair issues an access and a refresh token for the same claims.
func (t *TokenManager) IssueTokenPair(claims Claims) (TokenPair, error) {
	access, err := t.IssueAccessToken(claims)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.IssueRefreshToken(claims)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: t.expiresIn}, nil
}

// ExpiresIn returns the access lifetime in seconds as reported to clients.
func (t *TokenManager) ExpiresIn() int64 { return t.expiresIn }

// VerifyAccessToken checks signature, expiry, issuer and audience against the access secret.
func (t *TokenManager) VerifyAccessToken(token string) (*Claims, error) {
	return t.verify(token, t.accessSecret)
}

// VerifyRefreshToken checks signature, expiry, issuer and audience against the refresh secret.
func (t *TokenManager) VerifyRefreshToken(token string) (*Claims, error) {
	return t.verify(token, t.refreshSecret)
}

// Decode parses token without verifying it. Never use the result for authorization.
func (t *TokenManager) Decode(token string) *Claims {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

func (t *TokenManager) issue(claims Claims, secret []byte, ttl time.Duration) (string, error) {
	now := t.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   claims.UserID,
		Issuer:    t.issuer,
		Audience:  jwt.ClaimStrings{t.issuer},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (t *TokenManager) verify(token string, secret []byte) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired.Wrap(err)
		}
		return nil, ErrTokenInvalid.Wrap(err)
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
