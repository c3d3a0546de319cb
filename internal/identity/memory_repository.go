package identity

import (
    "context"
    "sync"
)

type memoryRepository struct {
    mu      sync.RWMutex
    nextID  int64
    byID    map[int64]User
    byEmail map[string]int64
}

// NewMemoryRepository builds an in-memory user store for testing and local development.
func NewMemoryRepository() Repository {
    return &memoryRepository{byID: make(map[int64]User), byEmail: make(map[string]int64)}
}

func (r *memoryRepository) Create(_ context.Context, user User) (User, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if _, exists := r.byEmail[user.Email]; exists {
        return User{}, ErrEmailTaken
    }
    r.nextID++
    user.ID = r.nextID
    r.byID[user.ID] = user
    r.byEmail[user.Email] = user.ID
    return user, nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    id, ok := r.byEmail[email]
    if !ok {
        return User{}, ErrUserNotFound
    }
    return r.byID[id], nil
}

func (r *memoryRepository) FindByID(_ context.Context, id int64) (User, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    user, ok := r.byID[id]
    if !ok {
        return User{}, ErrUserNotFound
    }
    return user, nil
}
