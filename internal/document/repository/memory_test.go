package repository

import (
	"context"
	"testing"
	"time"

	"github.com/signflow/signflow-server/internal/document"
	"github.com/stretchr/testify/require"
)

func newDoc(id, agent string, status document.Status, created int64) *document.Document {
	return &document.Document{
		ID:        id,
		Title:     id,
		Status:    status,
		CreatedAt: created,
		AgentID:   agent,
		Metadata:  map[string]interface{}{"agentId": agent},
	}
}

func TestMemoryRepoCRUD(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	d := newDoc("", "u-1", document.StatusPending, 1)
	require.NoError(t, r.Create(ctx, d))
	require.NotEmpty(t, d.ID)

	got, err := r.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "u-1", got.AgentID)

	// returned copies are detached from the store
	got.Metadata["clientEmail"] = "x@example.com"
	again, err := r.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Empty(t, again.Meta("clientEmail"))

	require.NoError(t, r.Delete(ctx, d.ID))
	_, err = r.Get(ctx, d.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, r.Delete(ctx, d.ID), ErrNotFound)
}

func TestMemoryRepo_SaveVersionGuard(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	require.NoError(t, r.Create(ctx, newDoc("d1", "u-1", document.StatusPending, 1)))

	first, _ := r.Get(ctx, "d1")
	second, _ := r.Get(ctx, "d1")

	first.SignToken = "sign-a"
	require.NoError(t, r.Save(ctx, first, 0))
	require.Equal(t, int64(1), first.Version)

	second.SignToken = "sign-b"
	require.ErrorIs(t, r.Save(ctx, second, 0), ErrConflict)

	stored, _ := r.Get(ctx, "d1")
	require.Equal(t, "sign-a", stored.SignToken)

	require.ErrorIs(t, r.Save(ctx, newDoc("missing", "", document.StatusPending, 0), 0), ErrNotFound)
}

func TestMemoryRepo_ListFilters(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	base := time.Now().UnixMilli()
	require.NoError(t, r.Create(ctx, newDoc("a", "u-1", document.StatusPending, base)))
	require.NoError(t, r.Create(ctx, newDoc("b", "u-1", document.StatusSigned, base+10)))
	require.NoError(t, r.Create(ctx, newDoc("c", "u-2", document.StatusPending, base+20)))
	legacy := newDoc("d", "", document.StatusPending, base+30)
	legacy.Metadata = map[string]interface{}{"agentId": "u-1", "clientId": "cl-9"}
	require.NoError(t, r.Create(ctx, legacy))

	all, err := r.List(ctx, document.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "d", all[0].ID, "newest first")

	mine, err := r.List(ctx, document.Filter{OwnerID: "u-1"})
	require.NoError(t, err)
	require.Len(t, mine, 3)
	for _, d := range mine {
		require.True(t, d.OwnedBy("u-1"))
	}

	signed, err := r.List(ctx, document.Filter{Status: "signed"})
	require.NoError(t, err)
	require.Len(t, signed, 1)
	require.Equal(t, "b", signed[0].ID)

	byClient, err := r.List(ctx, document.Filter{ClientID: "cl-9"})
	require.NoError(t, err)
	require.Len(t, byClient, 1)

	limited, err := r.List(ctx, document.Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)

	n, err := r.Count(ctx, document.Filter{OwnerID: "u-1", Status: "PENDING"})
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestMemoryRepo_Upsert(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	created, err := r.Upsert(ctx, newDoc("x", "u-1", document.StatusPending, 1))
	require.NoError(t, err)
	require.True(t, created)

	created, err = r.Upsert(ctx, newDoc("x", "u-2", document.StatusPending, 1))
	require.NoError(t, err)
	require.False(t, created)
	got, _ := r.Get(ctx, "x")
	require.Equal(t, "u-2", got.AgentID)
}

func TestBuildFilter(t *testing.T) {
	f := buildFilter(document.Filter{Status: "signed", OwnerID: "u-1", ClientID: "c"})
	require.Contains(t, f, "status")
	require.Contains(t, f, "$or")
	require.Equal(t, "c", f["metadata.clientId"])
	require.Empty(t, buildFilter(document.Filter{}))
}
