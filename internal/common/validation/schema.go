package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	urlPattern   = regexp.MustCompile(`^(https?)://[^\s/$.?#].[^\s]*$`)
	nonDigits    = regexp.MustCompile(`\D`)
)

const (
	MinPhoneDigits = 7
	MaxPhoneDigits = 15
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema used to gate payloads from remote services
type Schema struct {
	schema *gojsonschema.Schema
}

func CompileSchema(schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

func MustCompileSchema(schemaJSON string) *Schema {
	s, err := CompileSchema(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) ValidateBytes(doc []byte) (*ValidationResult, error) {
	return s.validate(gojsonschema.NewBytesLoader(doc))
}

func (s *Schema) ValidateValue(doc interface{}) (*ValidationResult, error) {
	return s.validate(gojsonschema.NewGoLoader(doc))
}

func (s *Schema) validate(loader gojsonschema.JSONLoader) (*ValidationResult, error) {
	result, err := s.schema.Validate(loader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func ValidateURL(url string) bool {
	return urlPattern.MatchString(url)
}

// PhoneDigits strips everything but digits
func PhoneDigits(phone string) string {
	return nonDigits.ReplaceAllString(phone, "")
}

// ValidatePhone accepts 7 to 15 digits once separators are removed
func ValidatePhone(phone string) bool {
	n := len(PhoneDigits(phone))
	return n >= MinPhoneDigits && n <= MaxPhoneDigits
}

// NormalizePhone returns the E.164 form of phone. Numbers without an
// explicit international prefix get defaultCountryCode prepended.
func NormalizePhone(phone, defaultCountryCode string) (string, bool) {
	trimmed := strings.TrimSpace(phone)
	digits := PhoneDigits(trimmed)
	if len(digits) < MinPhoneDigits || len(digits) > MaxPhoneDigits {
		return "", false
	}
	international := false

	switch {
	case strings.HasPrefix(trimmed, "+"):
		international = true
	case strings.HasPrefix(digits, "00") && len(digits) > 2:
		digits = digits[2:]
		international = true
	}

	if !international {
		cc := PhoneDigits(defaultCountryCode)
		if strings.HasPrefix(digits, "0") {
			digits = strings.TrimLeft(digits, "0")
		}
		if cc != "" && !(strings.HasPrefix(digits, cc) && len(digits) > 10) {
			digits = cc + digits
		}
	}

	if len(digits) < MinPhoneDigits || len(digits) > MaxPhoneDigits {
		return "", false
	}
	return "+" + digits, true
}
