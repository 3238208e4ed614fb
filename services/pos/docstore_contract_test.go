package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runDocumentStoreContract verifica a semântica de revisões comum a todos os backends
func runDocumentStoreContract(t *testing.T, newStore func(t *testing.T) DocumentStore) {
	ctx := context.Background()

	t.Run("create then get returns first revision", func(t *testing.T) {
		store := newStore(t)

		rev, err := store.Insert(ctx, CollectionCustomers, RawDocument{ID: "c1", Body: []byte(`{"name":"Ana"}`)})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(rev, "1-"), "unexpected revision %s", rev)

		doc, err := store.Get(ctx, CollectionCustomers, "c1")
		require.NoError(t, err)
		assert.Equal(t, "c1", doc.ID)
		assert.Equal(t, rev, doc.Rev)
		assert.JSONEq(t, `{"name":"Ana"}`, string(doc.Body))
	})

	t.Run("create with existing id conflicts", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Insert(ctx, CollectionCustomers, RawDocument{ID: "c1", Body: []byte(`{"name":"Ana"}`)})
		require.NoError(t, err)

		_, err = store.Insert(ctx, CollectionCustomers, RawDocument{ID: "c1", Body: []byte(`{"name":"Bia"}`)})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("update requires the current revision", func(t *testing.T) {
		store := newStore(t)

		rev1, err := store.Insert(ctx, CollectionProducts, RawDocument{ID: "p1", Body: []byte(`{"stock":5}`)})
		require.NoError(t, err)

		rev2, err := store.Insert(ctx, CollectionProducts, RawDocument{ID: "p1", Rev: rev1, Body: []byte(`{"stock":4}`)})
		require.NoError(t, err)
		assert.NotEqual(t, rev1, rev2)
		assert.True(t, strings.HasPrefix(rev2, "2-"), "unexpected revision %s", rev2)

		_, err = store.Insert(ctx, CollectionProducts, RawDocument{ID: "p1", Rev: rev1, Body: []byte(`{"stock":3}`)})
		assert.ErrorIs(t, err, ErrConflict)

		doc, err := store.Get(ctx, CollectionProducts, "p1")
		require.NoError(t, err)
		assert.Equal(t, rev2, doc.Rev)
		assert.JSONEq(t, `{"stock":4}`, string(doc.Body))
	})

	t.Run("update of missing document is not found", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Insert(ctx, CollectionProducts, RawDocument{ID: "nope", Rev: "1-abc", Body: []byte(`{}`)})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("destroy checks the revision", func(t *testing.T) {
		store := newStore(t)

		rev, err := store.Insert(ctx, CollectionProducts, RawDocument{ID: "p1", Body: []byte(`{"stock":1}`)})
		require.NoError(t, err)

		assert.ErrorIs(t, store.Destroy(ctx, CollectionProducts, "p1", "1-stale"), ErrConflict)
		require.NoError(t, store.Destroy(ctx, CollectionProducts, "p1", rev))

		_, err = store.Get(ctx, CollectionProducts, "p1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.Destroy(ctx, CollectionProducts, "p1", rev), ErrNotFound)
	})

	t.Run("find filters by equality in insertion order", func(t *testing.T) {
		store := newStore(t)

		for _, doc := range []RawDocument{
			{ID: "s-b", Body: []byte(`{"customerId":"c1","total":"1"}`)},
			{ID: "s-a", Body: []byte(`{"customerId":"c2","total":"2"}`)},
			{ID: "s-c", Body: []byte(`{"customerId":"c1","total":"3"}`)},
		} {
			_, err := store.Insert(ctx, CollectionSales, doc)
			require.NoError(t, err)
		}

		all, err := store.Find(ctx, CollectionSales, nil, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"s-b", "s-a", "s-c"}, rawIDs(all))

		byCustomer, err := store.Find(ctx, CollectionSales, Selector{"customerId": "c1"}, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"s-b", "s-c"}, rawIDs(byCustomer))

		limited, err := store.Find(ctx, CollectionSales, Selector{"customerId": "c1"}, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"s-b"}, rawIDs(limited))

		none, err := store.Find(ctx, CollectionSales, Selector{"customerId": "c9"}, 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("user email is unique", func(t *testing.T) {
		store := newStore(t)

		rev, err := store.Insert(ctx, CollectionUsers, RawDocument{ID: "u1", Body: []byte(`{"email":"ana@example.com","name":"Ana"}`)})
		require.NoError(t, err)

		_, err = store.Insert(ctx, CollectionUsers, RawDocument{ID: "u2", Body: []byte(`{"email":"ana@example.com","name":"Ana 2"}`)})
		assert.ErrorIs(t, err, ErrConflict)

		_, err = store.Insert(ctx, CollectionUsers, RawDocument{ID: "u1", Rev: rev, Body: []byte(`{"email":"ana@example.com","name":"Ana Maria"}`)})
		assert.NoError(t, err)

		_, err = store.Insert(ctx, CollectionUsers, RawDocument{ID: "u3", Body: []byte(`{"email":"bia@example.com","name":"Bia"}`)})
		assert.NoError(t, err)
	})

	t.Run("unknown collection is rejected", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Get(ctx, "orders", "x")
		assert.Error(t, err)
	})
}

func assertUniqueEmail(t *testing.T, store DocumentStore) {
	ctx := context.Background()
	users := NewUserRepository(store)

	require.NoError(t, users.Create(ctx, NewUser("ana@example.com", "Ana", "hash")))
	err := users.Create(ctx, NewUser("ANA@example.com", "Ana 2", "hash"))

	assert.ErrorIs(t, err, ErrEmailTaken)
}

func rawIDs(docs []RawDocument) []string {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids
}
