package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	emailAt254 := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 185) + ".com"
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"Valid", "test@example.com", false},
		{"Subdomain", "cook@mail.example.co.uk", false},
		{"Exactly 254 Characters", emailAt254, false},
		{"Too Long", "a" + emailAt254, true},
		{"Empty", "", true},
		{"Invalid Format", "not-an-email", true},
		{"Missing Domain", "user@", true},
		{"Multiple At Symbols", "user@@example.com", true},
		{"Space In Local Part", "user @example.com", true},
		{"Trailing Dot In Domain", "user@example.com.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"Exactly Min Length", "abcdef", false},
		{"Too Short", "abcde", true},
		{"Unicode Counts Runes", "ÅÅÅÅÅÅ", false},
		{"Too Long", strings.Repeat("a", 73), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequiredText(t *testing.T) {
	t.Parallel()

	got, err := RequiredText("title", "  Pancakes \n", MaxTitleLength)
	require.NoError(t, err)
	assert.Equal(t, "Pancakes", got)

	_, err = RequiredText("title", "   ", MaxTitleLength)
	assert.EqualError(t, err, "title is required")

	_, err = RequiredText("title", strings.Repeat("x", MaxTitleLength+1), MaxTitleLength)
	assert.Error(t, err)
}

func TestOptionalText(t *testing.T) {
	t.Parallel()

	got, err := OptionalText("description", nil, 10)
	require.NoError(t, err)
	assert.Nil(t, got)

	blank := "   "
	got, err = OptionalText("description", &blank, 10)
	require.NoError(t, err)
	assert.Nil(t, got)

	value := " tasty "
	got, err = OptionalText("description", &value, 10)
	require.NoError(t, err)
	assert.Equal(t, "tasty", *got)

	long := strings.Repeat("y", 11)
	_, err = OptionalText("description", &long, 10)
	assert.Error(t, err)
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM "))
}
