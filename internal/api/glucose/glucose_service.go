package glucose

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/thebigby10/sugarvoice-backend/internal/types"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 100
)

var _ GlucoseService = (*GlucoseServiceImpl)(nil)

// GlucoseService manages readings on behalf of an authenticated actor.
type GlucoseService interface {
	Create(ctx context.Context, actor *types.Identity, params types.CreateGlucoseReading) (*types.GlucoseReading, error)
	// QuickCreate is Create with the time defaulted to now when absent.
	QuickCreate(ctx context.Context, actor *types.Identity, params types.CreateGlucoseReading) (*types.GlucoseReading, error)
	List(ctx context.Context, actor *types.Identity, skip, limit int) ([]types.GlucoseReading, error)
	Get(ctx context.Context, actor *types.Identity, readingID uuid.UUID) (*types.GlucoseReading, error)
	Update(ctx context.Context, actor *types.Identity, readingID uuid.UUID, patch types.GlucoseReadingPatch) (*types.GlucoseReading, error)
	Delete(ctx context.Context, actor *types.Identity, readingID uuid.UUID) error
}

type GlucoseServiceImpl struct {
	logger *slog.Logger
	repo   GlucoseRepo
	now    func() time.Time
}

func NewGlucoseService(repo GlucoseRepo, logger *slog.Logger) *GlucoseServiceImpl {
	return &GlucoseServiceImpl{
		logger: logger,
		repo:   repo,
		now:    time.Now,
	}
}

func (s *GlucoseServiceImpl) Create(ctx context.Context, actor *types.Identity, params types.CreateGlucoseReading) (*types.GlucoseReading, error) {
	if actor == nil {
		return nil, types.ErrUnauthenticated
	}
	ctx, span := otel.Tracer("GlucoseService").Start(ctx, "Create", trace.WithAttributes(
		attribute.String("user.id", actor.ID.String()),
	))
	defer span.End()

	if err := params.Validate(); err != nil {
		span.SetStatus(codes.Error, "Invalid reading")
		return nil, err
	}

	reading, err := s.repo.Create(ctx, actor.ID, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Create failed")
		return nil, err
	}

	s.logger.InfoContext(ctx, "Glucose reading recorded",
		slog.String("userID", actor.ID.String()), slog.String("readingID", reading.ID.String()))
	span.SetStatus(codes.Ok, "Reading created")
	return reading, nil
}

func (s *GlucoseServiceImpl) QuickCreate(ctx context.Context, actor *types.Identity, params types.CreateGlucoseReading) (*types.GlucoseReading, error) {
	if params.Time.IsZero() {
		params.Time = s.now().UTC()
	}
	return s.Create(ctx, actor, params)
}

func (s *GlucoseServiceImpl) List(ctx context.Context, actor *types.Identity, skip, limit int) ([]types.GlucoseReading, error) {
	if actor == nil {
		return nil, types.ErrUnauthenticated
	}
	if skip < 0 {
		return nil, fmt.Errorf("skip must not be negative: %w", types.ErrValidation)
	}
	if limit < 1 || limit > MaxListLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d: %w", MaxListLimit, types.ErrValidation)
	}

	ctx, span := otel.Tracer("GlucoseService").Start(ctx, "List", trace.WithAttributes(
		attribute.String("user.id", actor.ID.String()),
	))
	defer span.End()

	readings, err := s.repo.ListByUser(ctx, actor.ID, skip, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "List failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Readings listed")
	return readings, nil
}

func (s *GlucoseServiceImpl) Get(ctx context.Context, actor *types.Identity, readingID uuid.UUID) (*types.GlucoseReading, error) {
	return Authorize(ctx, actor, func(ctx context.Context) (*types.GlucoseReading, error) {
		return s.repo.Get(ctx, readingID)
	})
}

func (s *GlucoseServiceImpl) Update(ctx context.Context, actor *types.Identity, readingID uuid.UUID, patch types.GlucoseReadingPatch) (*types.GlucoseReading, error) {
	if _, err := s.Get(ctx, actor, readingID); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("GlucoseService").Start(ctx, "Update", trace.WithAttributes(
		attribute.String("reading.id", readingID.String()),
	))
	defer span.End()

	reading, err := s.repo.Update(ctx, readingID, patch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Update failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Reading updated")
	return reading, nil
}

func (s *GlucoseServiceImpl) Delete(ctx context.Context, actor *types.Identity, readingID uuid.UUID) error {
	if _, err := s.Get(ctx, actor, readingID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, readingID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Glucose reading deleted",
		slog.String("userID", actor.ID.String()), slog.String("readingID", readingID.String()))
	return nil
}
