package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTitle(t *testing.T) {
	assert.NoError(t, ValidateTitle("Gran sorteo de verano"))
	assert.Error(t, ValidateTitle("   "))
	assert.Error(t, ValidateTitle(strings.Repeat("a", MaxTitleLength+1)))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("ana@example.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Error(t, ValidateEmail("Ana <ana@example.com>"))
}

func TestValidatePasswordAndPhone(t *testing.T) {
	assert.Error(t, ValidatePassword("12345"))
	assert.NoError(t, ValidatePassword("123456"))
	assert.NoError(t, ValidatePhone(""))
	assert.NoError(t, ValidatePhone("+56 9 1234 5678"))
	assert.Error(t, ValidatePhone("call me"))
}

func TestValidateRole(t *testing.T) {
	assert.NoError(t, ValidateRole("admin"))
	assert.Error(t, ValidateRole("moderator"))
}
