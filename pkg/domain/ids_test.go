package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "beacon/pkg/domain-errors"
)

// TestParseID_Invariants validates the parsing invariant:
// "IDs must be non-empty, bounded, printable strings"
func TestParseID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSignalID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts upstream signal id shapes", func(t *testing.T) {
		for _, raw := range []string{"sig_1", "sig-2024-0001", "550e8400-e29b-41d4-a716-446655440000"} {
			id, err := ParseSignalID(raw)
			require.NoError(t, err, raw)
			assert.Equal(t, SignalID(raw), id)
		}
	})
}

// TestParseID_SecurityInvariants covers inputs that must never be accepted at
// trust boundaries.
func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "sig_1\x00suffix", true},
		{"Oversized input", strings.Repeat("a", MaxIDLength+1), true},
		{"Unicode zero-width space", "sig\u200B_1", true},
		{"Whitespace only", "   ", true},
		{"Leading whitespace", " sig_1", true},
		{"Embedded newline", "sig\n1", true},
		{"Max length", strings.Repeat("a", MaxIDLength), false},
		{"Plain", "partner_a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePartnerID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestAllIDTypes_ConsistentBehavior ensures all ID types share parsing rules.
func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	parsers := map[string]func(string) error{
		"signal":     func(s string) error { _, err := ParseSignalID(s); return err },
		"partner":    func(s string) error { _, err := ParsePartnerID(s); return err },
		"result":     func(s string) error { _, err := ParseResultID(s); return err },
		"escalation": func(s string) error { _, err := ParseEscalationID(s); return err },
		"legal":      func(s string) error { _, err := ParseLegalRequestID(s); return err },
	}
	for name, parse := range parsers {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, parse("valid_id-1"))
			assert.Error(t, parse(""))
			assert.Error(t, parse("bad id"))
		})
	}
}

func TestGeneratedIDsAreUnique(t *testing.T) {
	seen := map[ResultID]bool{}
	for range 100 {
		id := NewResultID()
		require.False(t, seen[id])
		seen[id] = true
		_, err := ParseResultID(id.String())
		require.NoError(t, err)
	}
}
