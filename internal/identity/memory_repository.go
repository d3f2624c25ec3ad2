package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
	email map[string]string
}

// NewMemoryRepository builds an in-memory user store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]User), email: make(map[string]string)}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.Email = NormalizeEmail(user.Email)
	if _, exists := r.email[user.Email]; exists {
		return ErrEmailTaken
	}
	r.users[user.ID] = clone(user)
	r.email[user.Email] = user.ID
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return clone(user), nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.email[NormalizeEmail(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return clone(r.users[id]), nil
}

func (r *memoryRepository) Modify(_ context.Context, id string, fn func(*User) error) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	user := clone(current)
	if err := fn(&user); err != nil {
		return User{}, err
	}
	user.ID = id
	user.Email = NormalizeEmail(user.Email)
	if user.Email != current.Email {
		if _, taken := r.email[user.Email]; taken {
			return User{}, ErrEmailTaken
		}
		delete(r.email, current.Email)
		r.email[user.Email] = id
	}
	r.users[id] = clone(user)
	return clone(user), nil
}

func (r *memoryRepository) List(_ context.Context, query ListQuery) (Page, error) {
	limit := listLimit(query.Limit)
	after, err := decodeCursor(query.Cursor)
	if err != nil {
		return Page{}, err
	}
	prefix := NormalizeEmail(query.EmailPrefix)

	r.mu.RLock()
	users := make([]User, 0, len(r.users))
	for _, u := range r.users {
		if u.Email > after && strings.HasPrefix(u.Email, prefix) {
			users = append(users, clone(u))
		}
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	if len(users) > limit+1 {
		users = users[:limit+1]
	}
	return paginate(users, limit), nil
}

func (r *memoryRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}
