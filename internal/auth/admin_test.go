package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminGuard_Verify(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		supplied   string
		wantErr    error
	}{
		{
			name:       "matching token accepted",
			configured: "super-secret",
			supplied:   "super-secret",
		},
		{
			name:       "mismatched token denied",
			configured: "super-secret",
			supplied:   "super-secret2",
			wantErr:    ErrInvalidAdminToken,
		},
		{
			name:       "empty supplied token denied",
			configured: "super-secret",
			supplied:   "",
			wantErr:    ErrInvalidAdminToken,
		},
		{
			name:       "unset configured token always denies",
			configured: "",
			supplied:   "anything",
			wantErr:    ErrAdminTokenUnset,
		},
		{
			name:       "unset configured token denies empty supplied too",
			configured: "",
			supplied:   "",
			wantErr:    ErrAdminTokenUnset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guard := NewAdminGuard(tt.configured, nil)
			err := guard.Verify(tt.supplied)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAdminGuard_UnsetIsConfigurationError(t *testing.T) {
	// The unset posture is a configuration defect, not a caller mistake:
	// it must never be mistaken for a retryable authentication failure.
	guard := NewAdminGuard("", nil)
	err := guard.Verify("token")
	assert.Equal(t, KindConfiguration, KindOf(err))
}

func TestAdminGuard_PrefixNeverMatches(t *testing.T) {
	guard := NewAdminGuard("super-secret", nil)

	// Prefixes, truncations, and case variants of the real token must all
	// be rejected; a verdict depending on the mismatch position would be
	// visible here as a partial accept.
	for _, supplied := range []string{"s", "super", "super-secre", "super-secret ", "SUPER-SECRET"} {
		assert.ErrorIs(t, guard.Verify(supplied), ErrInvalidAdminToken, "supplied %q", supplied)
	}
}

func TestAdminGuard_Configured(t *testing.T) {
	assert.False(t, NewAdminGuard("", nil).Configured())
	assert.True(t, NewAdminGuard("x", nil).Configured())
}
