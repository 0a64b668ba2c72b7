package glucose

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/thebigby10/sugarvoice-backend/internal/types"
)

// CheckOwnership allows actor to touch resource only if actor owns it.
// A missing resource (nil, or one without an owner) is reported as not found
// before ownership is considered.
func CheckOwnership(resource types.OwnedResource, actor *types.Identity) error {
	if actor == nil {
		return types.ErrUnauthenticated
	}
	if resource == nil || resource.OwnerID() == uuid.Nil {
		return types.ErrNotFound
	}
	if resource.OwnerID() != actor.ID {
		return types.ErrForbidden
	}
	return nil
}

// Authorize loads a record and checks it belongs to actor. Every per-record
// read or write goes through here so the not found / forbidden order is the
// same everywhere.
func Authorize[R types.OwnedResource](ctx context.Context, actor *types.Identity, load func(context.Context) (R, error)) (R, error) {
	var zero R
	if actor == nil {
		return zero, types.ErrUnauthenticated
	}

	resource, err := load(ctx)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return zero, fmt.Errorf("reading not found: %w", types.ErrNotFound)
		}
		return zero, err
	}

	if err := CheckOwnership(resource, actor); err != nil {
		return zero, err
	}
	return resource, nil
}
