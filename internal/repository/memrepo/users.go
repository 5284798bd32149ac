package memrepo

import (
	"context"
	"sync"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// UserRepositoryのインメモリ実装
type Users struct {
	mu     sync.Mutex
	byID   map[int64]model.User
	nextID int64
}

func NewUsers() *Users {
	return &Users{byID: map[int64]model.User{}}
}

func (u *Users) Create(_ context.Context, user *model.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, existing := range u.byID {
		if existing.Email == user.Email {
			return repo.ErrDuplicate
		}
	}
	if user.ID == 0 {
		u.nextID++
		user.ID = u.nextID
	} else if user.ID > u.nextID {
		u.nextID = user.ID
	}
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	u.byID[user.ID] = *user
	return nil
}

func (u *Users) FindByID(_ context.Context, userID int64) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	found, ok := u.byID[userID]
	if !ok {
		return nil, nil
	}
	return &found, nil
}

func (u *Users) FindByEmail(_ context.Context, email string) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, existing := range u.byID {
		if existing.Email == email {
			found := existing
			return &found, nil
		}
	}
	return nil, nil
}

func (u *Users) Update(_ context.Context, user *model.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.byID[user.ID]; !ok {
		return repo.ErrNotFound
	}
	u.byID[user.ID] = *user
	return nil
}

func (u *Users) IncrementTokenVersion(_ context.Context, userID int64) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	found, ok := u.byID[userID]
	if !ok {
		return repo.ErrNotFound
	}
	found.TokenVersion++
	u.byID[userID] = found
	return nil
}
