// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package auth

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/pinksync-hub/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// hashForTest uses bcrypt.MinCost; production hashes use cost 12.
func hashForTest(t *testing.T, key string) string {
	t.Helper()
	h, err := hashAPIKey(key, bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		headers map[string]string
		want    Credentials
	}{
		{
			name:   "query parameters",
			target: "/ws?api_key=k1&user_id=u1&token=t1",
			want:   Credentials{APIKey: "k1", UserID: "u1", Token: "t1"},
		},
		{
			name:   "headers",
			target: "/ws",
			headers: map[string]string{
				"X-API-Key":     "k2",
				"X-User-ID":     "u2",
				"Authorization": "Bearer t2",
			},
			want: Credentials{APIKey: "k2", UserID: "u2", Token: "t2"},
		},
		{
			name:    "query wins over header",
			target:  "/ws?user_id=from_query",
			headers: map[string]string{"X-User-ID": "from_header"},
			want:    Credentials{UserID: "from_query"},
		},
		{
			name:    "non-bearer authorization ignored",
			target:  "/ws",
			headers: map[string]string{"Authorization": "Basic dXNlcjpwYXNz"},
			want:    Credentials{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.target, nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := FromRequest(r); got != tt.want {
				t.Errorf("FromRequest() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCredentialValidator(t *testing.T) {
	manager, _ := NewJWTManager(testSecret, time.Hour)
	token, err := manager.GenerateToken("jwt_user")
	if err != nil {
		t.Fatal(err)
	}
	keyHash := hashForTest(t, "pk_live_good")

	tests := []struct {
		name       string
		cfg        Config
		creds      Credentials
		wantUserID string
		wantErr    error
	}{
		{
			name:       "original behaviour trusts client user id",
			cfg:        Config{TrustClientUserID: true},
			creds:      Credentials{UserID: "user_5", APIKey: "anything"},
			wantUserID: "user_5",
		},
		{
			name:       "anonymous allowed when not required",
			cfg:        Config{TrustClientUserID: true},
			creds:      Credentials{},
			wantUserID: "",
		},
		{
			name:    "anonymous rejected when required",
			cfg:     Config{TrustClientUserID: true, Required: true},
			creds:   Credentials{},
			wantErr: ErrNoCredentials,
		},
		{
			name:       "client user id ignored when untrusted",
			cfg:        Config{},
			creds:      Credentials{UserID: "user_5"},
			wantUserID: "",
		},
		{
			name:       "token identity wins over client user id",
			cfg:        Config{JWTSecret: testSecret, TrustClientUserID: true},
			creds:      Credentials{Token: token, UserID: "spoofed"},
			wantUserID: "jwt_user",
		},
		{
			name:    "bad token rejected",
			cfg:     Config{JWTSecret: testSecret, TrustClientUserID: true},
			creds:   Credentials{Token: "garbage", UserID: "u"},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "token without secret rejected",
			cfg:     Config{TrustClientUserID: true},
			creds:   Credentials{Token: token},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:       "matching api key accepted",
			cfg:        Config{APIKeyHashes: []string{keyHash}, TrustClientUserID: true},
			creds:      Credentials{APIKey: "pk_live_good", UserID: "user_9"},
			wantUserID: "user_9",
		},
		{
			name:    "wrong api key rejected",
			cfg:     Config{APIKeyHashes: []string{keyHash}, TrustClientUserID: true},
			creds:   Credentials{APIKey: "pk_live_bad", UserID: "user_9"},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "missing api key rejected when keys configured",
			cfg:     Config{APIKeyHashes: []string{keyHash}, TrustClientUserID: true},
			creds:   Credentials{UserID: "user_9"},
			wantErr: ErrNoCredentials,
		},
		{
			name:       "token substitutes for api key",
			cfg:        Config{JWTSecret: testSecret, APIKeyHashes: []string{keyHash}},
			creds:      Credentials{Token: token},
			wantUserID: "jwt_user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewCredentialValidator(tt.cfg)
			if err != nil {
				t.Fatalf("NewCredentialValidator() error = %v", err)
			}
			userID, err := v.Validate(context.Background(), tt.creds)
			if tt.wantErr != nil {
				var authErr *AuthError
				if !errors.As(err, &authErr) {
					t.Fatalf("error = %v, want *AuthError", err)
				}
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if userID != tt.wantUserID {
				t.Errorf("userID = %q, want %q", userID, tt.wantUserID)
			}
		})
	}
}

func TestNewAPIKeys_RejectsNonBcrypt(t *testing.T) {
	if _, err := NewAPIKeys([]string{"plaintext"}); err == nil {
		t.Error("expected error for non-bcrypt hash")
	}
}

func TestHashAPIKey(t *testing.T) {
	if _, err := hashAPIKey("", bcrypt.MinCost); err == nil {
		t.Error("expected error for empty key")
	}
	h := hashForTest(t, "pk_test")
	keys, err := NewAPIKeys([]string{h})
	if err != nil {
		t.Fatal(err)
	}
	if !keys.Match("pk_test") || keys.Match("pk_other") {
		t.Error("Match() gave wrong result")
	}
}
