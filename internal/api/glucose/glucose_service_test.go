package glucose

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/thebigby10/sugarvoice-backend/internal/types"
)

// MockGlucoseRepo is a mock implementation of GlucoseRepo.
type MockGlucoseRepo struct {
	mock.Mock
}

func (m *MockGlucoseRepo) Create(ctx context.Context, userID uuid.UUID, params types.CreateGlucoseReading) (*types.GlucoseReading, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.GlucoseReading), args.Error(1)
}

func (m *MockGlucoseRepo) Get(ctx context.Context, readingID uuid.UUID) (*types.GlucoseReading, error) {
	args := m.Called(ctx, readingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.GlucoseReading), args.Error(1)
}

func (m *MockGlucoseRepo) ListByUser(ctx context.Context, userID uuid.UUID, skip, limit int) ([]types.GlucoseReading, error) {
	args := m.Called(ctx, userID, skip, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.GlucoseReading), args.Error(1)
}

func (m *MockGlucoseRepo) Update(ctx context.Context, readingID uuid.UUID, patch types.GlucoseReadingPatch) (*types.GlucoseReading, error) {
	args := m.Called(ctx, readingID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.GlucoseReading), args.Error(1)
}

func (m *MockGlucoseRepo) Delete(ctx context.Context, readingID uuid.UUID) error {
	args := m.Called(ctx, readingID)
	return args.Error(0)
}

func TestGlucoseService_Create(t *testing.T) {
	ctx := context.Background()
	actor := &types.Identity{ID: uuid.New()}
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		repo := new(MockGlucoseRepo)
		svc := NewGlucoseService(repo, discardLogger())
		params := types.CreateGlucoseReading{Level: 5.6, Time: at, BeforeAfterBed: "before"}
		repo.On("Create", mock.Anything, actor.ID, params).
			Return(&types.GlucoseReading{ID: uuid.New(), UserID: actor.ID, Level: 5.6, Time: at, BeforeAfterBed: "before"}, nil).Once()

		reading, err := svc.Create(ctx, actor, params)
		require.NoError(t, err)
		assert.Equal(t, actor.ID, reading.UserID)
		repo.AssertExpectations(t)
	})

	t.Run("TimeRequired", func(t *testing.T) {
		repo := new(MockGlucoseRepo)
		svc := NewGlucoseService(repo, discardLogger())

		_, err := svc.Create(ctx, actor, types.CreateGlucoseReading{Level: 5.6, BeforeAfterBed: "before"})
		assert.ErrorIs(t, err, types.ErrValidation)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("BadMarker", func(t *testing.T) {
		svc := NewGlucoseService(new(MockGlucoseRepo), discardLogger())
		_, err := svc.Create(ctx, actor, types.CreateGlucoseReading{Level: 5.6, Time: at, BeforeAfterBed: "lunch"})
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("QuickCreateDefaultsTime", func(t *testing.T) {
		repo := new(MockGlucoseRepo)
		svc := NewGlucoseService(repo, discardLogger())
		svc.now = func() time.Time { return at }
		want := types.CreateGlucoseReading{Level: 5.6, Time: at, BeforeAfterBed: "none"}
		repo.On("Create", mock.Anything, actor.ID, want).
			Return(&types.GlucoseReading{ID: uuid.New(), UserID: actor.ID, Level: 5.6, Time: at, BeforeAfterBed: "none"}, nil).Once()

		reading, err := svc.QuickCreate(ctx, actor, types.CreateGlucoseReading{Level: 5.6, BeforeAfterBed: "none"})
		require.NoError(t, err)
		assert.Equal(t, at, reading.Time)
		repo.AssertExpectations(t)
	})

	t.Run("NoActor", func(t *testing.T) {
		svc := NewGlucoseService(new(MockGlucoseRepo), discardLogger())
		_, err := svc.Create(ctx, nil, types.CreateGlucoseReading{Level: 5.6, Time: at, BeforeAfterBed: "none"})
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})
}

func TestGlucoseService_List(t *testing.T) {
	ctx := context.Background()
	actor := &types.Identity{ID: uuid.New()}

	tests := []struct {
		name        string
		skip, limit int
		wantErr     error
	}{
		{name: "defaults", skip: 0, limit: 100},
		{name: "negative skip", skip: -1, limit: 10, wantErr: types.ErrValidation},
		{name: "zero limit", skip: 0, limit: 0, wantErr: types.ErrValidation},
		{name: "limit above max", skip: 0, limit: 101, wantErr: types.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockGlucoseRepo)
			svc := NewGlucoseService(repo, discardLogger())
			if tt.wantErr == nil {
				repo.On("ListByUser", mock.Anything, actor.ID, tt.skip, tt.limit).Return([]types.GlucoseReading{}, nil).Once()
			}

			_, err := svc.List(ctx, actor, tt.skip, tt.limit)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				repo.AssertNotCalled(t, "ListByUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}

func TestGlucoseService_PerRecordOwnership(t *testing.T) {
	ctx := context.Background()
	owner := &types.Identity{ID: uuid.New()}
	stranger := &types.Identity{ID: uuid.New()}
	readingID := uuid.New()
	reading := &types.GlucoseReading{ID: readingID, UserID: owner.ID, Level: 5.6, BeforeAfterBed: "none"}
	patch := types.GlucoseReadingPatch{Level: types.Some(6.1)}

	t.Run("OwnerCanUpdate", func(t *testing.T) {
		repo := new(MockGlucoseRepo)
		svc := NewGlucoseService(repo, discardLogger())
		repo.On("Get", mock.Anything, readingID).Return(reading, nil).Once()
		repo.On("Update", mock.Anything, readingID, patch).
			Return(&types.GlucoseReading{ID: readingID, UserID: owner.ID, Level: 6.1, BeforeAfterBed: "none"}, nil).Once()

		updated, err := svc.Update(ctx, owner, readingID, patch)
		require.NoError(t, err)
		assert.Equal(t, 6.1, updated.Level)
		repo.AssertExpectations(t)
	})

	t.Run("StrangerCannotReadUpdateOrDelete", func(t *testing.T) {
		repo := new(MockGlucoseRepo)
		svc := NewGlucoseService(repo, discardLogger())
		repo.On("Get", mock.Anything, readingID).Return(reading, nil)

		_, err := svc.Get(ctx, stranger, readingID)
		assert.ErrorIs(t, err, types.ErrForbidden)
		_, err = svc.Update(ctx, stranger, readingID, patch)
		assert.ErrorIs(t, err, types.ErrForbidden)
		assert.ErrorIs(t, svc.Delete(ctx, stranger, readingID), types.ErrForbidden)

		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("MissingIsNotFoundForEveryone", func(t *testing.T) {
		repo := new(MockGlucoseRepo)
		svc := NewGlucoseService(repo, discardLogger())
		repo.On("Get", mock.Anything, readingID).Return(nil, fmt.Errorf("reading: %w", types.ErrNotFound))

		_, err := svc.Get(ctx, stranger, readingID)
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.ErrorIs(t, svc.Delete(ctx, owner, readingID), types.ErrNotFound)
	})

	t.Run("NullPatchRejectedAfterOwnership", func(t *testing.T) {
		repo := new(MockGlucoseRepo)
		svc := NewGlucoseService(repo, discardLogger())
		repo.On("Get", mock.Anything, readingID).Return(reading, nil)

		_, err := svc.Update(ctx, owner, readingID, types.GlucoseReadingPatch{Level: types.Optional[float64]{Set: true, Null: true}})
		assert.ErrorIs(t, err, types.ErrValidation)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("OwnerCanDelete", func(t *testing.T) {
		repo := new(MockGlucoseRepo)
		svc := NewGlucoseService(repo, discardLogger())
		repo.On("Get", mock.Anything, readingID).Return(reading, nil).Once()
		repo.On("Delete", mock.Anything, readingID).Return(nil).Once()

		require.NoError(t, svc.Delete(ctx, owner, readingID))
		repo.AssertExpectations(t)
	})
}
