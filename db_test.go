package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// forEachDB runs fn against every adapter that needs no external service.
func forEachDB(t *testing.T, fn func(t *testing.T, db DB)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryDB())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.close() })
		fn(t, s)
	})
}

func mustCreateUser(t *testing.T, db DB, email string) *User {
	t.Helper()
	u, err := db.CreateUser(context.Background(), &User{
		FirstName:      "Test",
		LastName:       "User",
		Email:          email,
		HashedPassword: "$2a$04$placeholder",
	})
	require.NoError(t, err)
	return u
}

func TestDB_Users(t *testing.T) {
	forEachDB(t, func(t *testing.T, db DB) {
		ctx := context.Background()

		u := mustCreateUser(t, db, "ann@example.com")
		require.NotZero(t, u.ID)
		assert.Equal(t, "ann@example.com", u.Email)

		got, err := db.GetUserByEmail(ctx, "ann@example.com")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "Test", got.FirstName)
		assert.Equal(t, "User", got.LastName)
		assert.Equal(t, "$2a$04$placeholder", got.HashedPassword)

		missing, err := db.GetUserByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, missing)

		_, err = db.CreateUser(ctx, &User{FirstName: "A", LastName: "B", Email: "ann@example.com", HashedPassword: "x"})
		require.ErrorIs(t, err, ErrDuplicateEmail)

		other := mustCreateUser(t, db, "bob@example.com")
		assert.NotEqual(t, u.ID, other.ID)
	})
}

func TestDB_Envelopes(t *testing.T) {
	forEachDB(t, func(t *testing.T, db DB) {
		ctx := context.Background()
		ann := mustCreateUser(t, db, "ann@example.com")
		bob := mustCreateUser(t, db, "bob@example.com")

		list, err := db.ListEnvelopesByUser(ctx, ann.ID)
		require.NoError(t, err)
		assert.Empty(t, list)

		groceries, err := db.CreateEnvelope(ctx, &Envelope{UserID: ann.ID, Name: "groceries", InitialAmount: 500, RemainingAmount: 500})
		require.NoError(t, err)
		require.NotZero(t, groceries.ID)

		_, err = db.CreateEnvelope(ctx, &Envelope{UserID: ann.ID, Name: "groceries", InitialAmount: 10, RemainingAmount: 10})
		require.ErrorIs(t, err, ErrDuplicateEnvelope)

		// same name, different owner
		_, err = db.CreateEnvelope(ctx, &Envelope{UserID: bob.ID, Name: "groceries", InitialAmount: 20, RemainingAmount: 20})
		require.NoError(t, err)

		rent, err := db.CreateEnvelope(ctx, &Envelope{UserID: ann.ID, Name: "rent", InitialAmount: 1200, RemainingAmount: 1200})
		require.NoError(t, err)

		list, err = db.ListEnvelopesByUser(ctx, ann.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, groceries.ID, list[0].ID)
		assert.Equal(t, rent.ID, list[1].ID)
		assert.Equal(t, int64(1200), list[1].RemainingAmount)
		for _, e := range list {
			assert.Equal(t, ann.ID, e.UserID)
		}

		found, err := db.GetEnvelopeByName(ctx, bob.ID, "groceries")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, int64(20), found.InitialAmount)

		none, err := db.GetEnvelopeByName(ctx, bob.ID, "rent")
		require.NoError(t, err)
		assert.Nil(t, none)
	})
}

func TestDB_EnvelopeOwnerMustExist(t *testing.T) {
	forEachDB(t, func(t *testing.T, db DB) {
		_, err := db.CreateEnvelope(context.Background(), &Envelope{UserID: 9999, Name: "ghost", InitialAmount: 1, RemainingAmount: 1})
		require.ErrorIs(t, err, ErrUnknownOwner)
	})
}

func TestDB_EnvelopeAmountsConstraint(t *testing.T) {
	forEachDB(t, func(t *testing.T, db DB) {
		u := mustCreateUser(t, db, "ann@example.com")
		_, err := db.CreateEnvelope(context.Background(), &Envelope{UserID: u.ID, Name: "over", InitialAmount: 10, RemainingAmount: 11})
		var ve *validationError
		require.True(t, errors.As(err, &ve), "got %v", err)
	})
}

func TestDB_ConcurrentDuplicateEnvelope(t *testing.T) {
	forEachDB(t, func(t *testing.T, db DB) {
		u := mustCreateUser(t, db, "ann@example.com")

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = db.CreateEnvelope(context.Background(), &Envelope{UserID: u.ID, Name: "race", InitialAmount: 1, RemainingAmount: 1})
			}(i)
		}
		wg.Wait()

		created := 0
		for _, err := range errs {
			if err == nil {
				created++
				continue
			}
			require.ErrorIs(t, err, ErrDuplicateEnvelope)
		}
		assert.Equal(t, 1, created)
	})
}

func TestSQLiteConstraint_Message(t *testing.T) {
	assert.Equal(t, constraintUnique, sqliteConstraint(fmt.Errorf("UNIQUE constraint failed: users.email")))
	assert.Equal(t, constraintForeignKey, sqliteConstraint(fmt.Errorf("FOREIGN KEY constraint failed")))
	assert.Equal(t, constraintNone, sqliteConstraint(fmt.Errorf("disk I/O error")))
}
