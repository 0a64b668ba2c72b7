package glucose

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

var _ GlucoseRepo = (*PostgresGlucoseRepo)(nil)

// GlucoseRepo persists glucose readings. It does no ownership checks.
type GlucoseRepo interface {
	Create(ctx context.Context, userID uuid.UUID, params types.CreateGlucoseReading) (*types.GlucoseReading, error)
	// Get returns types.ErrNotFound (wrapped) for unknown IDs.
	Get(ctx context.Context, readingID uuid.UUID) (*types.GlucoseReading, error)
	// ListByUser returns newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, skip, limit int) ([]types.GlucoseReading, error)
	Update(ctx context.Context, readingID uuid.UUID, patch types.GlucoseReadingPatch) (*types.GlucoseReading, error)
	Delete(ctx context.Context, readingID uuid.UUID) error
}

const (
	readingsTable  = "glucose_readings"
	readingColumns = "id, user_id, level, time, before_after_bed"
)

type PostgresGlucoseRepo struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewPostgresGlucoseRepo(pgpool database.Pool, logger *slog.Logger) *PostgresGlucoseRepo {
	return &PostgresGlucoseRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func startSpan(ctx context.Context, name, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", readingsTable),
	}, attrs...)
	return otel.Tracer("GlucoseRepo").Start(ctx, name, trace.WithAttributes(attrs...))
}

func (r *PostgresGlucoseRepo) Create(ctx context.Context, userID uuid.UUID, params types.CreateGlucoseReading) (*types.GlucoseReading, error) {
	ctx, span := startSpan(ctx, "Create", "INSERT", attribute.String("db.user.id", userID.String()))
	defer span.End()

	reading := &types.GlucoseReading{
		ID:             uuid.New(),
		UserID:         userID,
		Level:          params.Level,
		Time:           params.Time.UTC(),
		BeforeAfterBed: params.BeforeAfterBed,
	}

	query := `INSERT INTO glucose_readings (` + readingColumns + `) VALUES ($1, $2, $3, $4, $5)`

	start := time.Now()
	_, err := r.pgpool.Exec(ctx, query,
		reading.ID, reading.UserID, reading.Level, reading.Time, reading.BeforeAfterBed)
	database.ObserveQuery(ctx, readingsTable, "INSERT", start, err)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert glucose reading",
			slog.String("method", "Create"), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error inserting reading: %w", err)
	}

	span.SetStatus(codes.Ok, "Reading created")
	return reading, nil
}

func (r *PostgresGlucoseRepo) Get(ctx context.Context, readingID uuid.UUID) (*types.GlucoseReading, error) {
	ctx, span := startSpan(ctx, "Get", "SELECT", attribute.String("reading.id", readingID.String()))
	defer span.End()

	query := `SELECT ` + readingColumns + ` FROM glucose_readings WHERE id = $1`

	start := time.Now()
	reading, err := scanReading(r.pgpool.QueryRow(ctx, query, readingID))
	if errors.Is(err, pgx.ErrNoRows) {
		database.ObserveQuery(ctx, readingsTable, "SELECT", start, nil)
		span.SetStatus(codes.Ok, "Reading not found")
		return nil, fmt.Errorf("reading %s: %w", readingID, types.ErrNotFound)
	}
	database.ObserveQuery(ctx, readingsTable, "SELECT", start, err)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to fetch glucose reading",
			slog.String("method", "Get"), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching reading: %w", err)
	}

	span.SetStatus(codes.Ok, "Reading found")
	return reading, nil
}

func (r *PostgresGlucoseRepo) ListByUser(ctx context.Context, userID uuid.UUID, skip, limit int) ([]types.GlucoseReading, error) {
	ctx, span := startSpan(ctx, "ListByUser", "SELECT",
		attribute.String("db.user.id", userID.String()),
		attribute.Int("query.skip", skip),
		attribute.Int("query.limit", limit),
	)
	defer span.End()

	query := `SELECT ` + readingColumns + ` FROM glucose_readings
		WHERE user_id = $1
		ORDER BY time DESC, id
		OFFSET $2 LIMIT $3`

	start := time.Now()
	rows, err := r.pgpool.Query(ctx, query, userID, skip, limit)
	if err != nil {
		database.ObserveQuery(ctx, readingsTable, "SELECT", start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error listing readings: %w", err)
	}
	defer rows.Close()

	readings := make([]types.GlucoseReading, 0, limit)
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			database.ObserveQuery(ctx, readingsTable, "SELECT", start, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "Row scan failed")
			return nil, fmt.Errorf("database error scanning reading: %w", err)
		}
		readings = append(readings, *reading)
	}
	err = rows.Err()
	database.ObserveQuery(ctx, readingsTable, "SELECT", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Row iteration failed")
		return nil, fmt.Errorf("database error listing readings: %w", err)
	}

	span.SetAttributes(attribute.Int("result.count", len(readings)))
	span.SetStatus(codes.Ok, "Readings listed")
	return readings, nil
}

func (r *PostgresGlucoseRepo) Update(ctx context.Context, readingID uuid.UUID, patch types.GlucoseReadingPatch) (*types.GlucoseReading, error) {
	ctx, span := startSpan(ctx, "Update", "UPDATE", attribute.String("reading.id", readingID.String()))
	defer span.End()

	var setClauses []string
	var args []any
	argID := 1

	if patch.Level.Present() {
		setClauses = append(setClauses, fmt.Sprintf("level = $%d", argID))
		args = append(args, patch.Level.Value)
		argID++
	}
	if patch.Time.Present() {
		setClauses = append(setClauses, fmt.Sprintf("time = $%d", argID))
		args = append(args, patch.Time.Value.UTC())
		argID++
	}
	if patch.BeforeAfterBed.Present() {
		setClauses = append(setClauses, fmt.Sprintf("before_after_bed = $%d", argID))
		args = append(args, patch.BeforeAfterBed.Value)
		argID++
	}

	if len(setClauses) == 0 {
		span.SetStatus(codes.Ok, "No update fields provided")
		return r.Get(ctx, readingID)
	}

	args = append(args, readingID)
	query := fmt.Sprintf("UPDATE glucose_readings SET %s WHERE id = $%d RETURNING %s",
		strings.Join(setClauses, ", "), argID, readingColumns)

	start := time.Now()
	reading, err := scanReading(r.pgpool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		database.ObserveQuery(ctx, readingsTable, "UPDATE", start, nil)
		span.SetStatus(codes.Error, "Reading not found")
		return nil, fmt.Errorf("reading %s: %w", readingID, types.ErrNotFound)
	}
	database.ObserveQuery(ctx, readingsTable, "UPDATE", start, err)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update glucose reading",
			slog.String("method", "Update"), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return nil, fmt.Errorf("database error updating reading: %w", err)
	}

	span.SetStatus(codes.Ok, "Reading updated")
	return reading, nil
}

func (r *PostgresGlucoseRepo) Delete(ctx context.Context, readingID uuid.UUID) error {
	ctx, span := startSpan(ctx, "Delete", "DELETE", attribute.String("reading.id", readingID.String()))
	defer span.End()

	start := time.Now()
	tag, err := r.pgpool.Exec(ctx, `DELETE FROM glucose_readings WHERE id = $1`, readingID)
	database.ObserveQuery(ctx, readingsTable, "DELETE", start, err)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete glucose reading",
			slog.String("method", "Delete"), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("database error deleting reading: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Reading not found")
		return fmt.Errorf("reading %s: %w", readingID, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Reading deleted")
	return nil
}

func scanReading(row pgx.Row) (*types.GlucoseReading, error) {
	var g types.GlucoseReading
	if err := row.Scan(&g.ID, &g.UserID, &g.Level, &g.Time, &g.BeforeAfterBed); err != nil {
		return nil, err
	}
	return &g, nil
}
