package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptional_DistinguishesAbsentNullAndValue(t *testing.T) {
	var p IdentityPatch
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Jane","phone":null}`), &p))

	assert.True(t, p.Name.Present())
	assert.Equal(t, "Jane", p.Name.Value)

	assert.True(t, p.Phone.Set)
	assert.True(t, p.Phone.Null)
	assert.False(t, p.Phone.Present())

	assert.False(t, p.Age.Set)
	assert.False(t, p.Email.Set)
	assert.False(t, p.Empty())
}

func TestIdentityPatch_Validate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"empty patch", `{}`, false},
		{"name only", `{"name":"Jane"}`, false},
		{"explicit null", `{"age":null}`, true},
		{"blank name", `{"name":"   "}`, true},
		{"negative age", `{"age":-1}`, true},
		{"bad email", `{"email":"nope"}`, true},
		{"empty password", `{"password":""}`, true},
		{"new password", `{"password":"n3w"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p IdentityPatch
			require.NoError(t, json.Unmarshal([]byte(tt.body), &p))
			err := p.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGlucoseReadingPatch_Validate(t *testing.T) {
	var p GlucoseReadingPatch
	require.NoError(t, json.Unmarshal([]byte(`{"level":6.1,"time":"2026-01-02T08:00:00Z"}`), &p))
	require.NoError(t, p.Validate())
	assert.Equal(t, time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC), p.Time.Value)
	assert.False(t, p.BeforeAfterBed.Set)

	var bad GlucoseReadingPatch
	require.NoError(t, json.Unmarshal([]byte(`{"before_after_bed":"during"}`), &bad))
	assert.ErrorIs(t, bad.Validate(), ErrValidation)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.com "))
}

func TestIdentity_ViewOmitsHash(t *testing.T) {
	id := &Identity{Email: "a@x.com", PasswordHash: "$2a$10$secret"}
	raw, err := json.Marshal(id.View())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.Contains(t, string(raw), `"email":"a@x.com"`)
}
