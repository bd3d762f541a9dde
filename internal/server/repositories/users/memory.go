package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/channelhub/internal/common"
	"github.com/dmitrijs2005/channelhub/internal/server/models"
)

// MemoryRepository keeps users in process memory. Records are copied on the
// way in and out so callers never share state with the store.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*models.User
	now   func() time.Time
	newID func() string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[string]*models.User),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// findLocked expects r.mu to be held.
func (r *MemoryRepository) findLocked(username, email string) *models.User {
	for _, u := range r.byID {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return u
		}
	}
	return nil
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.findLocked(user.Username, user.Email); existing != nil {
		return nil, fmt.Errorf("%w: username or email taken", common.ErrorAlreadyExists)
	}

	stored := user.Clone()
	stored.ID = r.newID()
	stored.CreatedAt = r.now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	r.byID[stored.ID] = stored

	return stored.Clone(), nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u.Clone(), nil
}

func (r *MemoryRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u := r.findLocked(username, email)
	if u == nil {
		return nil, common.ErrorNotFound
	}
	return u.Clone(), nil
}

// update runs fn on the stored record under the write lock.
func (r *MemoryRepository) update(id string, fn func(u *models.User) error) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	u.UpdatedAt = r.now().UTC()
	return u.Clone(), nil
}

func (r *MemoryRepository) SetRefreshToken(ctx context.Context, id string, token *string) error {
	_, err := r.update(id, func(u *models.User) error {
		u.RefreshToken = nil
		if token != nil {
			t := *token
			u.RefreshToken = &t
		}
		return nil
	})
	return err
}

var errNoSwap = errors.New("refresh token changed")

func (r *MemoryRepository) SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error) {
	_, err := r.update(id, func(u *models.User) error {
		if u.RefreshToken == nil || *u.RefreshToken != current {
			return errNoSwap
		}
		u.RefreshToken = &next
		return nil
	})
	switch err {
	case nil:
		return true, nil
	case errNoSwap, common.ErrorNotFound:
		return false, nil
	default:
		return false, err
	}
}

func (r *MemoryRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.update(id, func(u *models.User) error {
		u.PasswordHash = passwordHash
		return nil
	})
	return err
}

func (r *MemoryRepository) UpdateAccount(ctx context.Context, id, fullName, email string) (*models.User, error) {
	return r.update(id, func(u *models.User) error {
		if other := r.findLocked("", email); other != nil && other.ID != id {
			return fmt.Errorf("%w: email taken", common.ErrorAlreadyExists)
		}
		u.FullName = fullName
		u.Email = email
		return nil
	})
}

func (r *MemoryRepository) UpdateMediaKey(ctx context.Context, id string, kind models.MediaKind, key string) (*models.User, error) {
	return r.update(id, func(u *models.User) error {
		switch kind {
		case models.MediaAvatar:
			u.AvatarKey = key
		case models.MediaCoverImage:
			u.CoverImageKey = key
		default:
			return fmt.Errorf("unknown media kind %q", kind)
		}
		return nil
	})
}
