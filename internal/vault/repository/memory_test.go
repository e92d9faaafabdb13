package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zewo/opsdash/internal/vault"
)

func TestMemoryRepoCRUD(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	it := &vault.Item{ID: "f1", Name: "a.txt", Kind: vault.KindFile, ParentID: vault.RootID, Content: []byte("hello")}
	require.NoError(t, r.Insert(ctx, it))
	require.Equal(t, int64(1), it.Seq)

	// the store keeps its own copy
	it.Content[0] = 'j'
	got, err := r.Get(ctx, "f1")
	require.NoError(t, err)
	require.Equal(t, "hello", string(got.Content))

	children, err := r.ChildrenOf(ctx, vault.RootID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Nil(t, children[0].Content, "listings carry metadata only")

	require.ErrorIs(t, r.Insert(ctx, &vault.Item{ID: "f1"}), vault.ErrConflict)
	require.ErrorIs(t, r.Insert(ctx, &vault.Item{ID: vault.RootID}), vault.ErrConflict)
	require.ErrorIs(t, r.Insert(ctx, &vault.Item{}), vault.ErrConflict)

	require.NoError(t, r.RemoveAll(ctx, []string{"f1"}))
	_, err = r.Get(ctx, "f1")
	require.ErrorIs(t, err, vault.ErrNotFound)
	n, _ := r.Count(ctx)
	require.Zero(t, n)
}

func TestMemoryRepoRemoveAllIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Insert(ctx, &vault.Item{ID: id, Kind: vault.KindFolder, ParentID: vault.RootID}))
	}

	err := r.RemoveAll(ctx, []string{"a", "zzz"})
	require.ErrorIs(t, err, vault.ErrNotFound)
	n, _ := r.Count(ctx)
	require.Equal(t, 3, n)

	require.NoError(t, r.RemoveAll(ctx, []string{"b"}))
	children, err := r.ChildrenOf(ctx, vault.RootID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	require.Equal(t, "a", children[0].ID)
	require.Equal(t, "c", children[1].ID)
}
