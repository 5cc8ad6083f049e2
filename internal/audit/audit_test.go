package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that sensitive keys are identified as secrets so they are never logged in plaintext.
// Scope: Unit Test
// Expected: Returns true for keys containing 'token', 'secret', etc., and false for ordinary keys.
// Test Case ID: AUD-01
func TestAudit_IsSecret(t *testing.T) {
	tests := []struct {
		key      string
		isSecret bool
	}{
		{"refresh_token", true},
		{"Token", true},
		{"secret", true},
		{"api_key", true},
		{"credential", true},
		{"namespace", false},
		{"email", false},
		{"imported", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.isSecret, isSecret(tt.key))
		})
	}
}

// TestPurpose: Validates that audit events are emitted with namespace, actor and redacted metadata.
// Scope: Unit Test
// Expected: The JSON record carries audit_type, namespace and a redacted refresh_token.
// Test Case ID: AUD-02
func TestSlogLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	l.Log(context.Background(), Event{
		Type:      TypeTenantSaved,
		Namespace: "acme",
		Actor:     "admin@acme.com",
		Resource:  "tenant",
		Metadata:  map[string]any{"refresh_token": "1//abc", "domain": "acme.com"},
	})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "tenant_saved", rec["audit_type"])
	assert.Equal(t, "acme", rec["namespace"])
	assert.Equal(t, "audit", rec["component"])
	meta := rec["metadata"].(map[string]any)
	assert.Equal(t, "[REDACTED]", meta["refresh_token"])
	assert.Equal(t, "acme.com", meta["domain"])
}
