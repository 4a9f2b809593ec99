package jwt

import (
	"testing"
	"time"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name       string
		advisor    string
		expiration time.Duration
		secret     string
		wantErr    bool
	}{
		{
			name:       "valid token generation",
			advisor:    "Jane",
			expiration: 5 * time.Minute,
			secret:     "test-secret-key-32-characters!",
		},
		{
			name:       "anonymous advisor",
			advisor:    "",
			expiration: time.Minute,
			secret:     "test-secret",
		},
		{
			name:       "empty secret",
			advisor:    "Jane",
			expiration: time.Minute,
			secret:     "",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateToken(tt.advisor, tt.expiration, tt.secret)

			if tt.wantErr {
				if err == nil {
					t.Error("GenerateToken() expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("GenerateToken() error = %v", err)
				return
			}

			if token == "" {
				t.Error("GenerateToken() returned empty token")
			}
		})
	}
}

func TestValidateToken(t *testing.T) {
	secret := "validate-secret"

	token, err := GenerateToken("Jane", time.Minute, secret)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ValidateToken(token, secret)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Advisor != "Jane" {
		t.Errorf("ValidateToken() advisor = %s, want Jane", claims.Advisor)
	}

	if _, err := ValidateToken(token, "other-secret"); err == nil {
		t.Error("ValidateToken() expected error for wrong secret")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	secret := "expired-secret"

	token, err := GenerateToken("Jane", -time.Minute, secret)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if _, err := ValidateToken(token, secret); err == nil {
		t.Error("ValidateToken() expected error for expired token")
	}
}

func TestValidateToken_Malformed(t *testing.T) {
	if _, err := ValidateToken("not-a-token", "secret"); err == nil {
		t.Error("ValidateToken() expected error for malformed token")
	}
}
