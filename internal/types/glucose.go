package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OwnedResource is any record scoped to a single user.
type OwnedResource interface {
	OwnerID() uuid.UUID
}

// Values accepted for GlucoseReading.BeforeAfterBed.
const (
	BedBefore = "before"
	BedAfter  = "after"
	BedNone   = "none"
)

// GlucoseReading is one blood glucose measurement.
type GlucoseReading struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Level          float64   `json:"level" example:"5.6"`
	Time           time.Time `json:"time"`
	BeforeAfterBed string    `json:"before_after_bed" example:"before"`
}

var _ OwnedResource = (*GlucoseReading)(nil)

// OwnerID is nil-safe so a missing reading reports no owner.
func (g *GlucoseReading) OwnerID() uuid.UUID {
	if g == nil {
		return uuid.Nil
	}
	return g.UserID
}

// CreateGlucoseReading is the body of POST /glucose/. A zero Time on the
// quick-create route is replaced with the current time.
type CreateGlucoseReading struct {
	Level          float64   `json:"level" example:"5.6"`
	Time           time.Time `json:"time"`
	BeforeAfterBed string    `json:"before_after_bed" example:"before"`
}

func (c CreateGlucoseReading) Validate() error {
	if c.Level <= 0 {
		return fmt.Errorf("level must be positive: %w", ErrValidation)
	}
	if c.Time.IsZero() {
		return fmt.Errorf("time is required: %w", ErrValidation)
	}
	return validateBedMarker(c.BeforeAfterBed)
}

// GlucoseReadingPatch is the body of PUT /glucose/{readingID}.
type GlucoseReadingPatch struct {
	Level          Optional[float64]   `json:"level" swaggertype:"number"`
	Time           Optional[time.Time] `json:"time" swaggertype:"string" format:"date-time"`
	BeforeAfterBed Optional[string]    `json:"before_after_bed" swaggertype:"string"`
}

func (p GlucoseReadingPatch) Validate() error {
	if p.Level.Null || p.Time.Null || p.BeforeAfterBed.Null {
		return fmt.Errorf("reading fields cannot be null: %w", ErrValidation)
	}
	if p.Level.Present() && p.Level.Value <= 0 {
		return fmt.Errorf("level must be positive: %w", ErrValidation)
	}
	if p.BeforeAfterBed.Present() {
		return validateBedMarker(p.BeforeAfterBed.Value)
	}
	return nil
}

func validateBedMarker(v string) error {
	switch v {
	case BedBefore, BedAfter, BedNone:
		return nil
	}
	return fmt.Errorf("before_after_bed must be one of %q, %q, %q: %w", BedBefore, BedAfter, BedNone, ErrValidation)
}

// Response is a generic API response for success or error messages.
type Response struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message,omitempty" example:"Operation successful"`
	Error   string `json:"error,omitempty" example:"Resource not found"`
}
