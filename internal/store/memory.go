package store

import (
	"context"
	"sync"
	"time"

	"github.com/accounthub/apiserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryUserRepository keeps users in process memory. It enforces the same
// email uniqueness and field rules as the MongoDB repository and is meant
// for local runs and tests.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	users   map[primitive.ObjectID]types.User
	byEmail map[string]primitive.ObjectID
	now     func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:   make(map[primitive.ObjectID]types.User),
		byEmail: make(map[string]primitive.ObjectID),
		now:     time.Now,
	}
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	user.Password = ""
	return user, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	user, err := r.GetByEmailWithPassword(ctx, email)
	if err != nil {
		return types.User{}, err
	}
	user.Password = ""
	return user, nil
}

func (r *MemoryUserRepository) GetByEmailWithPassword(ctx context.Context, email string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return r.users[id], nil
}

func (r *MemoryUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	name, err := normalizeName(user.Name)
	if err != nil {
		return types.User{}, err
	}
	user.Name = name
	r.mu.Lock()
	defer r.mu.Unlock()
	user.Email = NormalizeEmail(user.Email)
	if _, exists := r.byEmail[user.Email]; exists {
		return types.User{}, ErrDuplicateEmail
	}
	user.ID = primitive.NewObjectID()
	now := r.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	r.byEmail[user.Email] = user.ID
	return user, nil
}

func (r *MemoryUserRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.Password = passwordHash
	user.UpdatedAt = r.now().UTC()
	r.users[id] = user
	return nil
}

func (r *MemoryUserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd types.ProfileUpdate) error {
	set, err := profileSet(upd)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	if v, ok := set["name"].(string); ok {
		user.Name = v
	}
	if v, ok := set["photo"].(string); ok {
		user.Photo = v
	}
	if v, ok := set["gender"].(string); ok {
		user.Gender = v
	}
	user.UpdatedAt = r.now().UTC()
	r.users[id] = user
	return nil
}
