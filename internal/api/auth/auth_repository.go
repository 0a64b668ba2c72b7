package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/thebigby10/sugarvoice-backend/app/db"
	"github.com/thebigby10/sugarvoice-backend/internal/types"
)

var _ CredentialStore = (*PostgresCredentialStore)(nil)

// CredentialStore persists identities and their password hashes.
type CredentialStore interface {
	// Create hashes the raw password and inserts a new identity.
	// Returns ErrEmailTaken if the email is already registered.
	Create(ctx context.Context, params types.NewIdentity) (*types.Identity, error)
	// FindByEmail returns types.ErrNotFound (wrapped) for unknown emails.
	FindByEmail(ctx context.Context, email string) (*types.Identity, error)
	// Update applies only the fields present in patch and returns the stored row.
	Update(ctx context.Context, identity *types.Identity, patch types.IdentityPatch) (*types.Identity, error)
}

const (
	usersTable      = "users"
	usersEmailIndex = "users_email_key"
	identityColumns = "id, name, age, diabetes_type, email, phone, password_hash, created_at, updated_at"
)

type PostgresCredentialStore struct {
	logger *slog.Logger
	pgpool database.Pool
	hasher PasswordHasher
	now    func() time.Time
}

func NewPostgresCredentialStore(pgpool database.Pool, hasher PasswordHasher, logger *slog.Logger) *PostgresCredentialStore {
	return &PostgresCredentialStore{
		logger: logger,
		pgpool: pgpool,
		hasher: hasher,
		now:    time.Now,
	}
}

func (r *PostgresCredentialStore) Create(ctx context.Context, params types.NewIdentity) (*types.Identity, error) {
	ctx, span := otel.Tracer("CredentialStore").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", usersTable),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"))

	hashed, err := r.hasher.Hash(ctx, params.Password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Password hashing failed")
		return nil, err
	}

	now := r.now().UTC()
	identity := &types.Identity{
		ID:           uuid.New(),
		Name:         params.Name,
		Age:          params.Age,
		DiabetesType: params.DiabetesType,
		Email:        types.NormalizeEmail(params.Email),
		Phone:        params.Phone,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := `INSERT INTO users (` + identityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	start := time.Now()
	_, err = r.pgpool.Exec(ctx, query,
		identity.ID, identity.Name, identity.Age, identity.DiabetesType,
		identity.Email, identity.Phone, identity.PasswordHash,
		identity.CreatedAt, identity.UpdatedAt,
	)
	database.ObserveQuery(ctx, usersTable, "INSERT", start, err)
	if err != nil {
		if database.IsUniqueViolation(err, usersEmailIndex) {
			l.WarnContext(ctx, "Registration attempted with existing email")
			span.SetStatus(codes.Error, "Email already exists")
			return nil, ErrEmailTaken
		}
		l.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error inserting user: %w", err)
	}

	l.InfoContext(ctx, "User created", slog.String("userID", identity.ID.String()))
	span.SetAttributes(attribute.String("db.user.id", identity.ID.String()))
	span.SetStatus(codes.Ok, "User created")
	return identity, nil
}

func (r *PostgresCredentialStore) FindByEmail(ctx context.Context, email string) (*types.Identity, error) {
	ctx, span := otel.Tracer("CredentialStore").Start(ctx, "FindByEmail", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", usersTable),
	))
	defer span.End()

	query := `SELECT ` + identityColumns + ` FROM users WHERE email = $1`

	start := time.Now()
	identity, err := scanIdentity(r.pgpool.QueryRow(ctx, query, types.NormalizeEmail(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		database.ObserveQuery(ctx, usersTable, "SELECT", start, nil)
		span.SetStatus(codes.Ok, "User not found")
		return nil, fmt.Errorf("user not found: %w", types.ErrNotFound)
	}
	database.ObserveQuery(ctx, usersTable, "SELECT", start, err)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query user by email",
			slog.String("method", "FindByEmail"), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}

	span.SetStatus(codes.Ok, "User found")
	return identity, nil
}

func (r *PostgresCredentialStore) Update(ctx context.Context, identity *types.Identity, patch types.IdentityPatch) (*types.Identity, error) {
	if identity == nil {
		return nil, fmt.Errorf("no identity to update: %w", types.ErrNotFound)
	}

	ctx, span := otel.Tracer("CredentialStore").Start(ctx, "Update", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", usersTable),
		attribute.String("db.user.id", identity.ID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Update"), slog.String("userID", identity.ID.String()))

	var setClauses []string
	var args []any
	argID := 1

	set := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argID))
		args = append(args, value)
		argID++
		span.SetAttributes(attribute.Bool("update."+column, true))
	}

	if patch.Name.Present() {
		set("name", strings.TrimSpace(patch.Name.Value))
	}
	if patch.Age.Present() {
		set("age", patch.Age.Value)
	}
	if patch.DiabetesType.Present() {
		set("diabetes_type", patch.DiabetesType.Value)
	}
	if patch.Email.Present() {
		set("email", types.NormalizeEmail(patch.Email.Value))
	}
	if patch.Phone.Present() {
		set("phone", strings.TrimSpace(patch.Phone.Value))
	}
	if patch.Password.Present() {
		hashed, err := r.hasher.Hash(ctx, patch.Password.Value)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Password hashing failed")
			return nil, err
		}
		set("password_hash", hashed)
	}

	if len(setClauses) == 0 {
		l.DebugContext(ctx, "Update called with no fields to update")
		span.SetStatus(codes.Ok, "No update fields provided")
		unchanged := *identity
		return &unchanged, nil
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argID))
	args = append(args, r.now().UTC())
	argID++
	args = append(args, identity.ID)

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d RETURNING %s",
		strings.Join(setClauses, ", "), argID, identityColumns)

	l.DebugContext(ctx, "Executing dynamic update query", slog.Int("arg_count", len(args)))

	start := time.Now()
	updated, err := scanIdentity(r.pgpool.QueryRow(ctx, query, args...))
	database.ObserveQuery(ctx, usersTable, "UPDATE", start, err)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			l.WarnContext(ctx, "User not found for update")
			span.SetStatus(codes.Error, "User not found")
			return nil, fmt.Errorf("user not found for update: %w", types.ErrNotFound)
		case database.IsUniqueViolation(err, usersEmailIndex):
			l.WarnContext(ctx, "Email change collides with another user")
			span.SetStatus(codes.Error, "Email already exists")
			return nil, ErrEmailTaken
		}
		l.ErrorContext(ctx, "Failed to execute update query", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return nil, fmt.Errorf("database error updating user: %w", err)
	}

	l.InfoContext(ctx, "User updated")
	span.SetStatus(codes.Ok, "User updated")
	return updated, nil
}

func scanIdentity(row pgx.Row) (*types.Identity, error) {
	var i types.Identity
	err := row.Scan(
		&i.ID, &i.Name, &i.Age, &i.DiabetesType, &i.Email, &i.Phone,
		&i.PasswordHash, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}
