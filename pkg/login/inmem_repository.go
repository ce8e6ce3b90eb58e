package login

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemUserRepository implements UserRepository with maps guarded by a
// mutex.
type InMemUserRepository struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]User
	byEmail map[string]uuid.UUID

	// persist is called with every user after a change. A failed persist
	// rolls the change back.
	persist func([]User) error
}

func NewInMemUserRepository() *InMemUserRepository {
	return &InMemUserRepository{
		users:   make(map[uuid.UUID]User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *InMemUserRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return r.users[id], nil
}

func (r *InMemUserRepository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *InMemUserRepository) CreateUser(ctx context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.Email = normalizeEmail(user.Email)
	if _, exists := r.byEmail[user.Email]; exists {
		return User{}, ErrEmailTaken
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = "user"
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.users[user.ID] = user
	r.byEmail[user.Email] = user.ID
	if err := r.save(); err != nil {
		delete(r.users, user.ID)
		delete(r.byEmail, user.Email)
		return User{}, err
	}
	return user, nil
}

func (r *InMemUserRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	prev := u
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	if err := r.save(); err != nil {
		r.users[id] = prev
		return err
	}
	return nil
}

func (r *InMemUserRepository) save() error {
	if r.persist == nil {
		return nil
	}
	users := make([]User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	if err := r.persist(users); err != nil {
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *InMemUserRepository) restore(users []User) {
	for _, u := range users {
		r.users[u.ID] = u
		r.byEmail[normalizeEmail(u.Email)] = u.ID
	}
}
