package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "digits and date",
			input:    "Missing required field: id 12345 on 2024-01-01",
			expected: "Missing required field: id {ID} on {DATE}",
		},
		{
			name:     "timestamp before date",
			input:    "sync failed at 2024-02-17 01:47:32 for contract 88",
			expected: "sync failed at {TIMESTAMP} for contract {ID}",
		},
		{
			name:     "date followed by time without timestamp shape",
			input:    "window 2024-02-17T01:47",
			expected: "window {DATE}T{ID}:{ID}",
		},
		{
			name:     "no volatile tokens",
			input:    "Connection refused",
			expected: "Connection refused",
		},
		{
			name:     "digit runs inside words",
			input:    "apartment A12B7 missing",
			expected: "apartment A{ID}B{ID} missing",
		},
		{
			name:     "date inside a longer digit run",
			input:    "x12024-01-011y",
			expected: "x{ID}-{ID}-{ID}y",
		},
		{
			name:     "adjacent dates share a separator",
			input:    "2024-01-01 2024-01-02",
			expected: "{DATE} {DATE}",
		},
		{
			name:     "timestamp at start and end of message",
			input:    "2024-02-17 01:47:32",
			expected: "{TIMESTAMP}",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Missing required field: id 12345 on 2024-01-01",
		"at 2024-02-17 01:47:32 and 2024-02-18",
		"{ID} already normalized {DATE} {TIMESTAMP}",
		"1-2-3 9999-99-99 99:99:99",
		"no digits at all",
		"x12024-01-011y 2024-01-01-2024-01-02",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	fp1 := Compute("contract", "C-1", "Contract 42 not found", "data_error")
	fp2 := Compute("contract", "C-1", "Contract 42 not found", "data_error")
	assert.Equal(t, fp1, fp2)
}

func TestCompute_IsLowercaseHex(t *testing.T) {
	fp := Compute("contract", "1", "x", "system_error")
	assert.Regexp(t, `^[0-9a-f]{64}$`, fp)
}

func TestCompute_GroupsVolatileTokens(t *testing.T) {
	fp1 := Compute("tenant", "T-7", "Request 123 failed on 2024-01-01 10:00:00", "api_error")
	fp2 := Compute("tenant", "T-7", "Request 456 failed on 2025-06-30 23:59:59", "api_error")
	assert.Equal(t, fp1, fp2)
}

func TestCompute_Discriminates(t *testing.T) {
	base := Compute("contract", "C-1", "Contract not found", "data_error")

	assert.NotEqual(t, base, Compute("apartment", "C-1", "Contract not found", "data_error"), "entity type")
	assert.NotEqual(t, base, Compute("contract", "C-2", "Contract not found", "data_error"), "entity id")
	assert.NotEqual(t, base, Compute("contract", "C-1", "Contract missing", "data_error"), "message")
	assert.NotEqual(t, base, Compute("contract", "C-1", "Contract not found", "api_error"), "category")
}

func TestCompute_FieldBoundariesAreUnambiguous(t *testing.T) {
	// Concatenation without delimiters would make these collide.
	fp1 := Compute("ab", "c", "m", "data_error")
	fp2 := Compute("a", "bc", "m", "data_error")
	assert.NotEqual(t, fp1, fp2)
}

func TestCompute_UnicodeNormalization(t *testing.T) {
	composed := "Mieter M\u00fcller nicht gefunden"
	decomposed := "Mieter Mu\u0308ller nicht gefunden"
	assert.Equal(t,
		Compute("tenant", "T-1", composed, "data_error"),
		Compute("tenant", "T-1", decomposed, "data_error"))
}
