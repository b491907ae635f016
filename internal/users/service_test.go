package users

import (
	"context"
	"errors"
	"testing"

	"github.com/signflow/signflow-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService() (*Service, *MemoryUserRepository) {
	repo := NewMemoryUserRepository()
	return NewService(repo).WithHashCost(bcrypt.MinCost), repo
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Email: " Agent@Example.com ", Password: "pw", Name: "Agent"}, false)
	require.NoError(t, err)
	assert.Equal(t, "agent@example.com", u.Email)
	assert.Equal(t, models.RoleAgent, u.Role)
	assert.True(t, u.Active)
	assert.NotEqual(t, "pw", u.PasswordHash)

	got, err := svc.Authenticate(ctx, "agent@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "agent@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@example.com", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "", Password: "pw"}, false)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Register(ctx, RegisterInput{Email: "a@b.c"}, false)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "pw"}, false)
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Email: "A@B.C", Password: "pw"}, false)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRegister_AdminRoleRequiresGrant(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Email: "x@b.c", Password: "pw", Role: "admin"}, false)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAgent, u.Role)

	u, err = svc.Register(ctx, RegisterInput{Email: "y@b.c", Password: "pw", Role: "ADMIN"}, true)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
}

func TestToggleActive_BlocksLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	u, err := svc.Register(ctx, RegisterInput{Email: "t@b.c", Password: "pw"}, false)
	require.NoError(t, err)

	active, err := svc.ToggleActive(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, active)
	_, err = svc.Authenticate(ctx, "t@b.c", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	active, err = svc.ToggleActive(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, active)
	_, err = svc.Authenticate(ctx, "t@b.c", "pw")
	assert.NoError(t, err)

	_, err = svc.ToggleActive(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_RejectsAdmin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	admin, err := svc.Register(ctx, RegisterInput{Email: "root@b.c", Password: "pw", Role: "admin"}, true)
	require.NoError(t, err)
	agent, err := svc.Register(ctx, RegisterInput{Email: "ag@b.c", Password: "pw"}, false)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, admin.ID), ErrAdminDeletion)
	require.NoError(t, svc.Delete(ctx, agent.ID))
	assert.ErrorIs(t, svc.Delete(ctx, agent.ID), ErrNotFound)

	still, err := svc.GetByID(ctx, admin.ID)
	require.NoError(t, err)
	require.NotNil(t, still)
}

func TestResolve_FallsBackToEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	u, err := svc.Register(ctx, RegisterInput{Email: "r@b.c", Password: "pw"}, false)
	require.NoError(t, err)

	got, err := svc.Resolve(ctx, u.ID, "")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = svc.Resolve(ctx, "stale-id", "r@b.c")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	got, err = svc.Resolve(ctx, "", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	u, err := svc.Register(ctx, RegisterInput{Email: "p@b.c", Password: "pw"}, false)
	require.NoError(t, err)

	name, sig := "  New Name ", "data:image/png;base64,AAAA"
	got, err := svc.UpdateProfile(ctx, u.ID, &name, &sig)
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Name)
	assert.Equal(t, sig, got.Signature)

	_, err = svc.UpdateProfile(ctx, "missing", &name, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnsureDefaultAdmin(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	created, err := svc.EnsureDefaultAdmin(ctx, "admin@example.com", "Passw0rd!")
	require.NoError(t, err)
	assert.True(t, created)

	u, err := repo.GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())

	created, err = svc.EnsureDefaultAdmin(ctx, "other@example.com", "x")
	require.NoError(t, err)
	assert.False(t, created)
}

type failingRepo struct{ *MemoryUserRepository }

func (f failingRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, errors.New("connection reset")
}

func TestAuthenticate_StoreErrorIsNotCredentialError(t *testing.T) {
	svc := NewService(failingRepo{NewMemoryUserRepository()})
	_, err := svc.Authenticate(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidCredentials))
}
