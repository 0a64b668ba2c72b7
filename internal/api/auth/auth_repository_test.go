package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebigby10/sugarvoice-backend/internal/types"
)

var identityRowColumns = []string{
	"id", "name", "age", "diabetes_type", "email", "phone", "password_hash", "created_at", "updated_at",
}

func newStoreWithMock(t *testing.T) (*PostgresCredentialStore, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewPostgresCredentialStore(pool, newTestHasher(), discardLogger())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	return store, pool
}

func TestPostgresCredentialStore_Create(t *testing.T) {
	ctx := context.Background()
	params := types.NewIdentity{
		Name: "Jane Doe", Age: 34, DiabetesType: 1,
		Email: "Jane@Example.com", Phone: "+8801700000000", Password: "secret",
	}

	t.Run("Success", func(t *testing.T) {
		store, pool := newStoreWithMock(t)
		pool.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs(pgxmock.AnyArg(), "Jane Doe", 34, 1, "jane@example.com", "+8801700000000",
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		identity, err := store.Create(ctx, params)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, identity.ID)
		assert.Equal(t, "jane@example.com", identity.Email)
		assert.NotEqual(t, "secret", identity.PasswordHash)
		assert.True(t, store.hasher.Verify(ctx, "secret", identity.PasswordHash))
		assert.Equal(t, identity.CreatedAt, identity.UpdatedAt)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		store, pool := newStoreWithMock(t)
		pool.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

		identity, err := store.Create(ctx, params)
		assert.Nil(t, identity)
		assert.ErrorIs(t, err, ErrEmailTaken)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("EmptyPasswordNeverReachesDatabase", func(t *testing.T) {
		store, pool := newStoreWithMock(t)
		bad := params
		bad.Password = ""

		_, err := store.Create(ctx, bad)
		assert.ErrorIs(t, err, ErrEmptyPassword)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		store, pool := newStoreWithMock(t)
		boom := errors.New("connection reset")
		pool.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(boom)

		_, err := store.Create(ctx, params)
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrEmailTaken)
	})
}

func TestPostgresCredentialStore_FindByEmail(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Found", func(t *testing.T) {
		store, pool := newStoreWithMock(t)
		rows := pgxmock.NewRows(identityRowColumns).
			AddRow(id, "Jane Doe", 34, 1, "jane@example.com", "+8801700000000", "$2a$04$hash", created, created)
		pool.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
			WithArgs("jane@example.com").
			WillReturnRows(rows)

		identity, err := store.FindByEmail(ctx, "  JANE@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, identity.ID)
		assert.Equal(t, "$2a$04$hash", identity.PasswordHash)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		store, pool := newStoreWithMock(t)
		pool.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
			WithArgs("ghost@example.com").
			WillReturnRows(pgxmock.NewRows(identityRowColumns))

		identity, err := store.FindByEmail(ctx, "ghost@example.com")
		assert.Nil(t, identity)
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.NoError(t, pool.ExpectationsWereMet())
	})
}

func TestPostgresCredentialStore_Update(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	current := &types.Identity{
		ID: uuid.New(), Name: "Jane Doe", Age: 34, DiabetesType: 1,
		Email: "jane@example.com", Phone: "+8801700000000", PasswordHash: "$2a$04$old",
		CreatedAt: created, UpdatedAt: created,
	}
	updatedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("OnlyPresentFields", func(t *testing.T) {
		store, pool := newStoreWithMock(t)
		patch := types.IdentityPatch{Name: types.Some("Janet"), Email: types.Some("Janet@Example.com")}
		rows := pgxmock.NewRows(identityRowColumns).
			AddRow(current.ID, "Janet", 34, 1, "janet@example.com", "+8801700000000", "$2a$04$old", created, updatedAt)
		pool.ExpectQuery(regexp.QuoteMeta("UPDATE users SET name = $1, email = $2, updated_at = $3 WHERE id = $4 RETURNING")).
			WithArgs("Janet", "janet@example.com", updatedAt, current.ID).
			WillReturnRows(rows)

		identity, err := store.Update(ctx, current, patch)
		require.NoError(t, err)
		assert.Equal(t, "Janet", identity.Name)
		assert.Equal(t, "janet@example.com", identity.Email)
		assert.Equal(t, updatedAt, identity.UpdatedAt)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("PasswordIsHashed", func(t *testing.T) {
		store, pool := newStoreWithMock(t)
		patch := types.IdentityPatch{Password: types.Some("new-secret")}
		rows := pgxmock.NewRows(identityRowColumns).
			AddRow(current.ID, "Jane Doe", 34, 1, "jane@example.com", "+8801700000000", "$2a$04$new", created, updatedAt)
		pool.ExpectQuery(regexp.QuoteMeta("UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3")).
			WithArgs(pgxmock.AnyArg(), updatedAt, current.ID).
			WillReturnRows(rows)

		_, err := store.Update(ctx, current, patch)
		require.NoError(t, err)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("EmailCollision", func(t *testing.T) {
		store, pool := newStoreWithMock(t)
		patch := types.IdentityPatch{Email: types.Some("john@example.com")}
		pool.ExpectQuery(regexp.QuoteMeta("UPDATE users SET email = $1")).
			WithArgs("john@example.com", updatedAt, current.ID).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

		_, err := store.Update(ctx, current, patch)
		assert.ErrorIs(t, err, ErrEmailTaken)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("MissingRow", func(t *testing.T) {
		store, pool := newStoreWithMock(t)
		patch := types.IdentityPatch{Age: types.Some(35)}
		pool.ExpectQuery(regexp.QuoteMeta("UPDATE users SET age = $1")).
			WithArgs(35, updatedAt, current.ID).
			WillReturnRows(pgxmock.NewRows(identityRowColumns))

		_, err := store.Update(ctx, current, patch)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("EmptyPatchIsNoop", func(t *testing.T) {
		store, pool := newStoreWithMock(t)
		identity, err := store.Update(ctx, current, types.IdentityPatch{})
		require.NoError(t, err)
		assert.Equal(t, current, identity)
		assert.NotSame(t, current, identity)
		assert.NoError(t, pool.ExpectationsWereMet())
	})
}
