package store

import (
	"context"
	"testing"

	"github.com/accounthub/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func strPtr(s string) *string { return &s }

func TestMemoryUserRepository_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	created, err := repo.Create(ctx, types.User{
		Email:       " Alice@Example.com ",
		Password:    "hash",
		Name:        "Alice",
		IsValidator: true,
	})
	require.NoError(t, err)
	require.False(t, created.ID.IsZero())
	assert.Equal(t, "alice@example.com", created.Email)
	assert.False(t, created.CreatedAt.IsZero())

	byEmail, err := repo.GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Empty(t, byEmail.Password)

	withPassword, err := repo.GetByEmailWithPassword(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", withPassword.Password)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, byID.Password)
	assert.True(t, byID.IsValidator)
}

func TestMemoryUserRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	_, err := repo.Create(ctx, types.User{Email: "bob@example.com", Password: "h", Name: "Bob"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, types.User{Email: "BOB@example.com", Password: "h", Name: "Bob"})
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestMemoryUserRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	missing := primitive.NewObjectID()

	_, err := repo.GetByID(ctx, missing)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, repo.UpdatePassword(ctx, missing, "h"), ErrNotFound)
	require.ErrorIs(t, repo.UpdateProfile(ctx, missing, types.ProfileUpdate{Name: strPtr("Carol")}), ErrNotFound)
}

func TestMemoryUserRepository_UpdateProfileIsPartial(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	created, err := repo.Create(ctx, types.User{
		Email:    "dana@example.com",
		Password: "h",
		Name:     "Dana",
		Photo:    "https://cdn.example.com/dana.png",
	})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateProfile(ctx, created.ID, types.ProfileUpdate{Gender: strPtr(types.GenderFemale)}))

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dana", got.Name)
	assert.Equal(t, "https://cdn.example.com/dana.png", got.Photo)
	assert.Equal(t, types.GenderFemale, got.Gender)
}

func TestMemoryUserRepository_UpdateProfileFieldRules(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	created, err := repo.Create(ctx, types.User{Email: "erin@example.com", Password: "h", Name: "Erin"})
	require.NoError(t, err)

	err = repo.UpdateProfile(ctx, created.ID, types.ProfileUpdate{Name: strPtr("E")})
	require.ErrorIs(t, err, ErrInvalidName)
	assert.True(t, IsFieldError(err))

	err = repo.UpdateProfile(ctx, created.ID, types.ProfileUpdate{Gender: strPtr("unknown")})
	require.ErrorIs(t, err, ErrInvalidGender)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Erin", got.Name)
	assert.Empty(t, got.Gender)
}

func TestMemoryUserRepository_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	created, err := repo.Create(ctx, types.User{Email: "finn@example.com", Password: "old", Name: "Finn"})
	require.NoError(t, err)

	require.NoError(t, repo.UpdatePassword(ctx, created.ID, "new"))

	got, err := repo.GetByEmailWithPassword(ctx, "finn@example.com")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Password)
}

func TestMemoryUserRepository_CreateNameRules(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	_, err := repo.Create(ctx, types.User{Email: "blank@example.com", Password: "h", Name: "  "})
	require.ErrorIs(t, err, ErrInvalidName)

	created, err := repo.Create(ctx, types.User{Email: "hank@example.com", Password: "h", Name: "  Hank "})
	require.NoError(t, err)
	assert.Equal(t, "Hank", created.Name)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hank", byID.Name)
}

func TestMemoryUserRepository_EmptyUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	created, err := repo.Create(ctx, types.User{Email: "ivy@example.com", Password: "h", Name: "Ivy"})
	require.NoError(t, err)

	err = repo.UpdateProfile(ctx, created.ID, types.ProfileUpdate{})
	require.ErrorIs(t, err, ErrEmptyUpdate)
}
