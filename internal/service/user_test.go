package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhartmann/jurypad/internal/domain"
)

func TestUserService_CreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.userSvc.CreateUser(ctx, CreateUserInput{
		Username:     "maria",
		PasswordHash: "hash",
		Role:         domain.RoleJury,
		Name:         "Maria Huber",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, domain.RoleJury, created.Role)
}

func TestUserService_CreateUser_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateUserInput
	}{
		{"missing username", CreateUserInput{PasswordHash: "h", Role: domain.RoleJury, Name: "n"}},
		{"missing hash", CreateUserInput{Username: "u", Role: domain.RoleJury, Name: "n"}},
		{"missing name", CreateUserInput{Username: "u", PasswordHash: "h", Role: domain.RoleJury}},
		{"missing role", CreateUserInput{Username: "u", PasswordHash: "h", Name: "n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.userSvc.CreateUser(ctx, tt.in)
			assert.Error(t, err)
		})
	}

	_, err := f.userSvc.CreateUser(ctx, CreateUserInput{
		Username: "u", PasswordHash: "h", Role: "superadmin", Name: "n",
	})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestUserService_CreateUser_DuplicateUsername(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createJuror(t, "maria")

	_, err := f.userSvc.CreateUser(ctx, CreateUserInput{
		Username: "maria", PasswordHash: "h", Role: domain.RoleJury, Name: "Other",
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestUserService_UpdateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createJuror(t, "maria")

	_, err := f.userSvc.UpdateUser(ctx, user.ID, UpdateUserInput{})
	assert.ErrorIs(t, err, ErrNoChanges)

	_, err = f.userSvc.UpdateUser(ctx, user.ID, UpdateUserInput{Role: strptr("boss")})
	assert.ErrorIs(t, err, ErrInvalidRole)

	updated, err := f.userSvc.UpdateUser(ctx, user.ID, UpdateUserInput{
		Name: strptr("Maria H."),
		Role: strptr(domain.RoleAdmin),
	})
	require.NoError(t, err)
	assert.Equal(t, "Maria H.", updated.Name)
	assert.Equal(t, domain.RoleAdmin, updated.Role)
	// Untouched field survives.
	assert.Equal(t, "hash", updated.PasswordHash)

	_, err = f.userSvc.UpdateUser(ctx, "missing", UpdateUserInput{Name: strptr("x")})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_DeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := f.createAdmin(t, "admin")
	juror := f.createJuror(t, "maria")

	assert.ErrorIs(t, f.userSvc.DeleteUser(ctx, admin.ID, admin.ID), ErrCannotDeleteSelf)

	require.NoError(t, f.userSvc.DeleteUser(ctx, admin.ID, juror.ID))
	assert.ErrorIs(t, f.userSvc.DeleteUser(ctx, admin.ID, juror.ID), ErrUserNotFound)
}

func TestUserService_GetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createAdmin(t, "admin")
	juror := f.createJuror(t, "maria")

	got, err := f.userSvc.GetUser(ctx, juror.ID)
	require.NoError(t, err)
	assert.Equal(t, "maria", got.Username)

	_, err = f.userSvc.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	all, err := f.userSvc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
