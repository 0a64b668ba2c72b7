package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thebigby10/sugarvoice-backend/internal/types"
)

// memoryStore is an in-memory CredentialStore with the same uniqueness
// rules as the users table.
type memoryStore struct {
	mu      sync.Mutex
	hasher  PasswordHasher
	byEmail map[string]*types.Identity
}

var _ CredentialStore = (*memoryStore)(nil)

func newMemoryStore(hasher PasswordHasher) *memoryStore {
	return &memoryStore{hasher: hasher, byEmail: map[string]*types.Identity{}}
}

func (s *memoryStore) Create(ctx context.Context, params types.NewIdentity) (*types.Identity, error) {
	hash, err := s.hasher.Hash(ctx, params.Password)
	if err != nil {
		return nil, err
	}
	email := types.NormalizeEmail(params.Email)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return nil, ErrEmailTaken
	}
	identity := &types.Identity{
		ID: uuid.New(), Name: params.Name, Age: params.Age, DiabetesType: params.DiabetesType,
		Email: email, Phone: params.Phone, PasswordHash: hash, CreatedAt: now, UpdatedAt: now,
	}
	s.byEmail[email] = identity
	clone := *identity
	return &clone, nil
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (*types.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.byEmail[types.NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", types.ErrNotFound)
	}
	clone := *identity
	return &clone, nil
}

func (s *memoryStore) Update(ctx context.Context, identity *types.Identity, patch types.IdentityPatch) (*types.Identity, error) {
	var hash string
	if patch.Password.Present() {
		var err error
		if hash, err = s.hasher.Hash(ctx, patch.Password.Value); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byEmail[identity.Email]
	if !ok || stored.ID != identity.ID {
		return nil, fmt.Errorf("user not found for update: %w", types.ErrNotFound)
	}
	next := *stored
	if patch.Name.Present() {
		next.Name = strings.TrimSpace(patch.Name.Value)
	}
	if patch.Age.Present() {
		next.Age = patch.Age.Value
	}
	if patch.DiabetesType.Present() {
		next.DiabetesType = patch.DiabetesType.Value
	}
	if patch.Phone.Present() {
		next.Phone = patch.Phone.Value
	}
	if patch.Email.Present() {
		next.Email = types.NormalizeEmail(patch.Email.Value)
		if other, taken := s.byEmail[next.Email]; taken && other.ID != next.ID {
			return nil, ErrEmailTaken
		}
	}
	if hash != "" {
		next.PasswordHash = hash
	}
	next.UpdatedAt = time.Now().UTC()

	delete(s.byEmail, stored.Email)
	s.byEmail[next.Email] = &next
	clone := next
	return &clone, nil
}
