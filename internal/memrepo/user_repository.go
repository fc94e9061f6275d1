// Package memrepo holds in-memory repositories for development setups and tests.
package memrepo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.pilab.hu/focusboard/domain"
)

// UserRepository is an in-memory domain.UserRepository. Stored records are
// copied on the way in and out.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]domain.User)}
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return clone(u), nil
}

func (r *UserRepository) GetByLogin(_ context.Context, login string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.ApplicationLogin, login) {
			return clone(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return domain.ErrUserExists
	}
	for _, u := range r.users {
		if strings.EqualFold(u.ApplicationLogin, user.ApplicationLogin) {
			return domain.ErrUserExists
		}
	}

	r.users[user.ID] = *clone(*user)
	return nil
}

func (r *UserRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}

	r.users[user.ID] = *clone(*user)
	return nil
}

func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.users, id)
	return nil
}

func (r *UserRepository) List(_ context.Context) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, clone(u))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ApplicationLogin < out[j].ApplicationLogin
	})
	return out, nil
}

func clone(u domain.User) *domain.User {
	if u.TodoistIdentity != nil {
		id := *u.TodoistIdentity
		u.TodoistIdentity = &id
	}
	if u.GoogleIdentity != nil {
		id := *u.GoogleIdentity
		u.GoogleIdentity = &id
	}
	return &u
}

var _ domain.UserRepository = (*UserRepository)(nil)
