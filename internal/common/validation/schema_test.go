package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		cc    string
		want  string
		valid bool
	}{
		{"national with dashes", "555-123-4567", "1", "+15551234567", true},
		{"already international", "+977 981-234-5678", "1", "+9779812345678", true},
		{"double zero prefix", "0044 20 7946 0958", "1", "+442079460958", true},
		{"national with country code digits", "1 (555) 123 4567", "1", "+15551234567", true},
		{"trunk zero dropped", "09812345678", "977", "+9779812345678", true},
		{"too short", "555-12", "1", "", false},
		{"too long", "1234567890123456", "1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizePhone(tt.input, tt.cc)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("john@x.com"))
	assert.True(t, ValidateEmail("first.last+tag@sub.example.org"))
	assert.False(t, ValidateEmail("john@x"))
	assert.False(t, ValidateEmail("john@.com"))
	assert.False(t, ValidateEmail("not an email"))
}

func TestSchema_Validate(t *testing.T) {
	schema := MustCompileSchema(`{
		"type": "object",
		"required": ["intent"],
		"properties": {
			"intent": {"type": "string", "enum": ["rag", "booking"]},
			"confidence": {"type": "number", "minimum": 0, "maximum": 1}
		}
	}`)

	res, err := schema.ValidateBytes([]byte(`{"intent":"booking","confidence":0.9}`))
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = schema.ValidateBytes([]byte(`{"intent":"weather","confidence":2}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.True(t, res.HasErrors("intent"))
	assert.True(t, res.HasErrors("confidence"))
	assert.Len(t, res.GetErrorMessages(), 2)

	res, err = schema.ValidateValue(map[string]interface{}{})
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestCompileSchema_Invalid(t *testing.T) {
	_, err := CompileSchema(`{"type": 12}`)
	assert.Error(t, err)
}
