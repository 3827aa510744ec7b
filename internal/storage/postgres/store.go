package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hongminglow/tripdesk/internal/models"
	"github.com/hongminglow/tripdesk/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ensure Store satisfies the storage.IdentityStore interface at compile time.
var _ storage.IdentityStore = (*Store)(nil)

const uniqueViolation = "23505"

// Store provides Postgres-backed persistence for users and tenants.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store and runs migrations.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			tenant_id TEXT REFERENCES tenants(id),
			email TEXT NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			email_verified BOOLEAN NOT NULL DEFAULT FALSE,
			password_hash TEXT NOT NULL,
			verification_token TEXT,
			reset_token TEXT,
			reset_token_expiry TIMESTAMPTZ,
			last_login_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_tenant_idx ON users (email, tenant_id) WHERE tenant_id IS NOT NULL;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_global_idx ON users (email) WHERE tenant_id IS NULL;`,
		`CREATE INDEX IF NOT EXISTS users_verification_token_idx ON users (verification_token) WHERE verification_token IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS users_reset_token_idx ON users (reset_token) WHERE reset_token IS NOT NULL;`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

const userColumns = `id, tenant_id, email, first_name, last_name, role, status, email_verified, password_hash,
	verification_token, reset_token, reset_token_expiry, last_login_at, created_at, updated_at`

// CreateTenant inserts a tenant row. Tenants are provisioned outside the auth core; this
// exists for seeding and tests.
func (s *Store) CreateTenant(ctx context.Context, tenant models.Tenant) (models.Tenant, error) {
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	if tenant.Status == "" {
		tenant.Status = models.StatusActive
	}
	const query = `
		INSERT INTO tenants (id, name, status)
		VALUES ($1, $2, $3)
		RETURNING id, name, status, created_at;
	`
	row := s.pool.QueryRow(ctx, query, tenant.ID, tenant.Name, string(tenant.Status))
	created, err := scanTenant(row)
	if err != nil {
		return models.Tenant{}, translate(err)
	}
	return created, nil
}

// FindTenantByID fetches a tenant.
func (s *Store) FindTenantByID(ctx context.Context, id string) (models.Tenant, error) {
	const query = `SELECT id, name, status, created_at FROM tenants WHERE id = $1;`
	return scanTenant(s.pool.QueryRow(ctx, query, id))
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	query := `
		INSERT INTO users (id, tenant_id, email, first_name, last_name, role, status, email_verified,
			password_hash, verification_token, reset_token, reset_token_expiry, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + userColumns + `;`
	row := s.pool.QueryRow(ctx, query,
		user.ID, nullable(user.TenantID), user.Email, user.FirstName, user.LastName, string(user.Role),
		string(user.Status), user.EmailVerified, user.PasswordHash, nullable(user.VerificationToken),
		nullable(user.ResetToken), user.ResetTokenExpiry, user.LastLoginAt,
	)
	created, err := scanUser(row)
	if err != nil {
		return models.User{}, translate(err)
	}
	return created, nil
}

// SaveUser overwrites every mutable column of an existing user.
func (s *Store) SaveUser(ctx context.Context, user models.User) (models.User, error) {
	query := `
		UPDATE users SET
			tenant_id = $2, email = $3, first_name = $4, last_name = $5, role = $6, status = $7,
			email_verified = $8, password_hash = $9, verification_token = $10, reset_token = $11,
			reset_token_expiry = $12, last_login_at = $13, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns + `;`
	row := s.pool.QueryRow(ctx, query,
		user.ID, nullable(user.TenantID), user.Email, user.FirstName, user.LastName, string(user.Role),
		string(user.Status), user.EmailVerified, user.PasswordHash, nullable(user.VerificationToken),
		nullable(user.ResetToken), user.ResetTokenExpiry, user.LastLoginAt,
	)
	saved, err := scanUser(row)
	if err != nil {
		return models.User{}, translate(err)
	}
	return saved, nil
}

// FindUserByID fetches a user by id.
func (s *Store) FindUserByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1;`
	return scanUser(s.pool.QueryRow(ctx, query, id))
}

// FindUserByEmail fetches a user by email within a tenant, or among tenant-less accounts.
func (s *Store) FindUserByEmail(ctx context.Context, email, tenantID string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if tenantID == "" {
		query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND tenant_id IS NULL;`
		return scanUser(s.pool.QueryRow(ctx, query, email))
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND tenant_id = $2;`
	return scanUser(s.pool.QueryRow(ctx, query, email, tenantID))
}

// FindUserByVerificationToken fetches the user holding a pending verification token.
func (s *Store) FindUserByVerificationToken(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, storage.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE verification_token = $1;`
	return scanUser(s.pool.QueryRow(ctx, query, token))
}

// FindUserByResetToken fetches the user holding an unexpired reset token.
func (s *Store) FindUserByResetToken(ctx context.Context, token string, now time.Time) (models.User, error) {
	if token == "" {
		return models.User{}, storage.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE reset_token = $1 AND reset_token_expiry > $2;`
	return scanUser(s.pool.QueryRow(ctx, query, token, now))
}

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user                          models.User
		tenantID, verification, reset *string
		role, status                  string
	)
	err := row.Scan(
		&user.ID, &tenantID, &user.Email, &user.FirstName, &user.LastName, &role, &status,
		&user.EmailVerified, &user.PasswordHash, &verification, &reset, &user.ResetTokenExpiry,
		&user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	user.Role = models.Role(role)
	user.Status = models.Status(status)
	user.TenantID = deref(tenantID)
	user.VerificationToken = deref(verification)
	user.ResetToken = deref(reset)
	return user, nil
}

func scanTenant(row pgx.Row) (models.Tenant, error) {
	var (
		tenant models.Tenant
		status string
	)
	if err := row.Scan(&tenant.ID, &tenant.Name, &status, &tenant.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Tenant{}, storage.ErrNotFound
		}
		return models.Tenant{}, err
	}
	tenant.Status = models.Status(status)
	return tenant, nil
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return storage.ErrAlreadyExists
	}
	return err
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
