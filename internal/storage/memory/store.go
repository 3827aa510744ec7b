package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hongminglow/tripdesk/internal/models"
	"github.com/hongminglow/tripdesk/internal/storage"
)

var _ storage.IdentityStore = (*Store)(nil)

// Store is an in-process identity store for tests and local development.
type Store struct {
	mu      sync.RWMutex
	users   map[string]models.User
	tenants map[string]models.Tenant
	now     func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:   make(map[string]models.User),
		tenants: make(map[string]models.Tenant),
		now:     time.Now,
	}
}

// PutTenant inserts or replaces a tenant.
func (s *Store) PutTenant(t models.Tenant) models.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	s.tenants[t.ID] = t
	return t
}

func (s *Store) FindTenantByID(_ context.Context, id string) (models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return models.Tenant{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findByEmail(user.Email, user.TenantID); ok {
		return models.User{}, storage.ErrAlreadyExists
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) SaveUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.ID]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	if other, ok := s.findByEmail(user.Email, user.TenantID); ok && other.ID != user.ID {
		return models.User{}, storage.ErrAlreadyExists
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = s.now()
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) FindUserByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email, tenantID string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.findByEmail(email, tenantID)
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) FindUserByVerificationToken(_ context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, storage.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.VerificationToken == token {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (s *Store) FindUserByResetToken(_ context.Context, token string, now time.Time) (models.User, error) {
	if token == "" {
		return models.User{}, storage.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ResetToken == token && u.ResetTokenExpiry != nil && u.ResetTokenExpiry.After(now) {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

// caller holds s.mu
func (s *Store) findByEmail(email, tenantID string) (models.User, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email && u.TenantID == tenantID {
			return u, true
		}
	}
	return models.User{}, false
}
