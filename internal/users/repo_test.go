package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kittykibble/kibble-backend/pkg/db/models"
	"github.com/kittykibble/kibble-backend/pkg/enums"
)

func openUsersDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Customer{}))
	return db
}

func TestRepositoryCreateFindAndRole(t *testing.T) {
	repo := NewRepository(openUsersDB(t))
	ctx := context.Background()
	email := "cat.owner@example.com"

	user, err := repo.Create(ctx, CreateUserDTO{Email: &email, PasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleCustomer, user.Role)

	found, err := repo.FindByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	require.NoError(t, repo.UpdateRole(ctx, user.ID, enums.RoleAdmin))
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)))

	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleAdmin, reloaded.Role)
	require.NotNil(t, reloaded.LastLoginAt)

	_, err = repo.Create(ctx, CreateUserDTO{Email: &email, PasswordHash: "other"})
	assert.Error(t, err, "email must be unique")
}

func TestRepositoryGuestHasNoEmail(t *testing.T) {
	repo := NewRepository(openUsersDB(t))
	ctx := context.Background()

	first, err := repo.Create(ctx, CreateUserDTO{Role: enums.RoleGuest})
	require.NoError(t, err)
	second, err := repo.Create(ctx, CreateUserDTO{Role: enums.RoleGuest})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Nil(t, second.Email)
}

func TestCustomerRepositoryUpsert(t *testing.T) {
	repo := NewCustomerRepository(openUsersDB(t))
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, repo.Upsert(ctx, &models.Customer{ID: id, Name: "Olena", Email: "o@example.com", Phone: "380671234567"}))
	require.NoError(t, repo.Upsert(ctx, &models.Customer{ID: id, Name: "Olena S.", Email: "o@example.com", Phone: "380501112233"}))

	found, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Olena S.", found.Name)
	assert.Equal(t, "380501112233", found.Phone)
}
