package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("S3cure!Passw0rd")
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword("S3cure!Passw0rd", hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("wrong-password", hash)
	req.NoError(err)
	req.False(match)
}

func TestHashPassword_SaltsDiffer(t *testing.T) {
	req := require.New(t)

	hash1, err := HashPassword("S3cure!Passw0rd")
	req.NoError(err)
	hash2, err := HashPassword("S3cure!Passw0rd")
	req.NoError(err)

	// Same password, different salt, different encoding
	req.NotEqual(hash1, hash2)
}

func TestComparePassword_MalformedHash(t *testing.T) {
	req := require.New(t)

	_, err := ComparePassword("whatever", "not-an-encoded-hash")
	req.Error(err)
}

func TestValidateRegister(t *testing.T) {
	req := require.New(t)

	tests := []struct {
		description string
		request     RegisterRequest
		wantErr     bool
	}{
		{
			"Should accept a complex password",
			RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "S3cure!Passw0rd"},
			false,
		},
		{
			"Should reject a short password",
			RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "S3c!a"},
			true,
		},
		{
			"Should reject a password without special characters",
			RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "S3curePassw0rd"},
			true,
		},
		{
			"Should reject a password without uppercase",
			RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "s3cure!passw0rd"},
			true,
		},
		{
			"Should reject an invalid email",
			RegisterRequest{Name: "Alice", Email: "not-an-email", Password: "S3cure!Passw0rd"},
			true,
		},
		{
			"Should reject a one letter name",
			RegisterRequest{Name: "A", Email: "alice@example.com", Password: "S3cure!Passw0rd"},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			err := ValidateRegister(tt.request)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}
