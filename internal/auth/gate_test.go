package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/signflow/signflow-server/internal/config"
	"github.com/signflow/signflow-server/internal/models"
	"github.com/signflow/signflow-server/internal/sessions"
	"github.com/signflow/signflow-server/internal/tokens"
	"github.com/signflow/signflow-server/internal/users"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*config.Config, *users.MemoryUserRepository, *models.User) {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = "gate-test-secret-32-bytes-xxxxxxxxx"
	repo := users.NewMemoryUserRepository()
	u := &models.User{ID: "u-1", Email: "agent@example.com", Role: models.RoleAgent, Active: true}
	require.NoError(t, repo.Create(context.Background(), u))
	return cfg, repo, u
}

func bearer(t *testing.T, cfg *config.Config, u *models.User, ttl time.Duration) string {
	t.Helper()
	tok, err := tokens.GenerateAccessToken(cfg, u, ttl)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("bearer abc.def")
	require.True(t, ok)
	require.Equal(t, "abc.def", tok)

	_, ok = BearerToken("Basic abc")
	require.False(t, ok)
	_, ok = BearerToken("Bearer")
	require.False(t, ok)
	_, ok = BearerToken("")
	require.False(t, ok)
}

func TestResolve(t *testing.T) {
	cfg, repo, u := setup(t)
	g := NewGate(cfg, users.NewService(repo), nil)
	ctx := context.Background()

	got, err := g.Resolve(ctx, bearer(t, cfg, u, time.Minute))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, u.ID, got.ID)

	got, err = g.Resolve(ctx, "")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = g.Resolve(ctx, "Bearer not-a-token")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = g.Resolve(ctx, bearer(t, cfg, u, -time.Minute))
	require.NoError(t, err)
	require.Nil(t, got, "expired token")
}

func TestResolve_EmailFallbackAndInactive(t *testing.T) {
	cfg, repo, u := setup(t)
	g := NewGate(cfg, users.NewService(repo), nil)
	ctx := context.Background()

	stale := *u
	stale.ID = "old-id"
	got, err := g.Resolve(ctx, bearer(t, cfg, &stale, time.Minute))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "u-1", got.ID)

	require.NoError(t, repo.SetActive(ctx, u.ID, false))
	got, err = g.Resolve(ctx, bearer(t, cfg, u, time.Minute))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestResolve_RevokedToken(t *testing.T) {
	cfg, repo, u := setup(t)
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	bl := sessions.NewBlacklist(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	g := NewGate(cfg, users.NewService(repo), bl)
	ctx := context.Background()

	header := bearer(t, cfg, u, time.Minute)
	raw, _ := BearerToken(header)
	require.NoError(t, bl.Revoke(ctx, raw, time.Minute))

	got, err := g.Resolve(ctx, header)
	require.NoError(t, err)
	require.Nil(t, got)
}

type brokenLookup struct{}

func (brokenLookup) Resolve(ctx context.Context, id, email string) (*models.User, error) {
	return nil, errors.New("mongo down")
}

func TestResolve_StoreErrorSurfaces(t *testing.T) {
	cfg, _, u := setup(t)
	g := NewGate(cfg, brokenLookup{}, nil)
	_, err := g.Resolve(context.Background(), bearer(t, cfg, u, time.Minute))
	require.Error(t, err)
}
