package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/thebigby10/sugarvoice-backend/app/observability/metrics"
)

var _ PasswordHasher = (*BcryptHasher)(nil)

type PasswordHasher interface {
	// Hash returns a salted, self-describing digest of raw.
	Hash(ctx context.Context, raw string) (string, error)
	// Verify reports whether raw matches storedHash. It never fails loudly:
	// a malformed hash or a cancelled context is simply a mismatch.
	Verify(ctx context.Context, raw, storedHash string) bool
}

// BcryptHasher hashes with bcrypt. At most maxConcurrent hash or compare
// operations run at once so a burst of logins cannot starve other requests
// of CPU.
type BcryptHasher struct {
	logger *slog.Logger
	cost   int
	slots  *semaphore.Weighted
}

func NewBcryptHasher(cost int, maxConcurrent int64, logger *slog.Logger) *BcryptHasher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &BcryptHasher{
		logger: logger,
		cost:   cost,
		slots:  semaphore.NewWeighted(maxConcurrent),
	}
}

func (h *BcryptHasher) Hash(ctx context.Context, raw string) (string, error) {
	if raw == "" {
		return "", ErrEmptyPassword
	}

	start := time.Now()
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for hash slot: %w", err)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	h.slots.Release(1)
	metrics.Get().PasswordHashDurationSeconds.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (h *BcryptHasher) Verify(ctx context.Context, raw, storedHash string) bool {
	if raw == "" || storedHash == "" {
		return false
	}

	if err := h.slots.Acquire(ctx, 1); err != nil {
		h.logger.WarnContext(ctx, "Password verification abandoned", slog.Any("error", err))
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(raw))
	h.slots.Release(1)

	switch {
	case err == nil:
		return true
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false
	default:
		h.logger.WarnContext(ctx, "Stored password hash could not be used", slog.Any("error", err))
		return false
	}
}
