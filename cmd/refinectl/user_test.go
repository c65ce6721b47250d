package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUserInputs(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		email    string
		password string
		wantErr  string
	}{
		{"valid", "Ada Lovelace", "ada@example.com", "engine1843", ""},
		{"blank name", "   ", "ada@example.com", "engine1843", "name is required"},
		{"bad email", "Ada", "ada@example", "engine1843", "invalid email format"},
		{"short password", "Ada", "ada@example.com", "abc12", "at least 8 characters"},
		{"no digit", "Ada", "ada@example.com", "analytical", "one letter and one number"},
		{"no letter", "Ada", "ada@example.com", "18431843", "one letter and one number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateUserInputs(tt.user, tt.email, tt.password)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
