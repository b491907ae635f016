package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateAndValidateSession(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	r, err := svc.CreateSession(ctx, "user-1", time.Hour)
	require.NoError(t, err)
	require.Len(t, r, 64)

	sess, err := svc.ValidateRefresh(ctx, r)
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, "user-1", sess.UserID)

	require.NoError(t, svc.DeleteRefresh(ctx, r))
	sess, err = svc.ValidateRefresh(ctx, r)
	require.NoError(t, err)
	require.Nil(t, sess)
}

func TestValidateRefresh_ExpiredIsRemoved(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()

	r, err := svc.CreateSession(ctx, "user-1", -time.Minute)
	require.NoError(t, err)

	sess, err := svc.ValidateRefresh(ctx, r)
	require.NoError(t, err)
	require.Nil(t, sess)

	raw, err := repo.GetByRefresh(ctx, r)
	require.NoError(t, err)
	require.Nil(t, raw)
}

func TestRotate(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	r, err := svc.CreateSession(ctx, "user-9", time.Hour)
	require.NoError(t, err)

	sess, next, err := svc.Rotate(ctx, r, time.Hour)
	require.NoError(t, err)
	require.Equal(t, "user-9", sess.UserID)
	require.NotEqual(t, r, next)

	old, err := svc.ValidateRefresh(ctx, r)
	require.NoError(t, err)
	require.Nil(t, old)

	sess, next2, err := svc.Rotate(ctx, "unknown", time.Hour)
	require.NoError(t, err)
	require.Nil(t, sess)
	require.Empty(t, next2)
}
