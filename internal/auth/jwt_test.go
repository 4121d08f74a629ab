// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "this_is_a_very_long_secret_key_with_32_plus_characters"

func TestNewJWTManager(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{"valid secret", testSecret, false},
		{"empty secret", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, err := NewJWTManager(tt.secret, time.Hour)
			if tt.wantErr {
				if err == nil {
					t.Error("NewJWTManager() expected error, got nil")
				}
				return
			}
			if err != nil || manager == nil {
				t.Fatalf("NewJWTManager() = %v, %v", manager, err)
			}
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	manager, err := NewJWTManager(testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	token, err := manager.GenerateToken("user_42")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Identity() != "user_42" {
		t.Errorf("Identity() = %q, want user_42", claims.Identity())
	}
}

func signHS256(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestValidateToken_Failures(t *testing.T) {
	manager, _ := NewJWTManager(testSecret, time.Hour)
	now := time.Now()

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name: "expired",
			token: signHS256(t, testSecret, &Claims{RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "u1",
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
			}}),
			wantErr: ErrExpiredCredentials,
		},
		{
			name: "wrong secret",
			token: signHS256(t, "another_secret_that_is_long_enough_1234", &Claims{RegisteredClaims: jwt.RegisteredClaims{
				Subject: "u1",
			}}),
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "no subject",
			token:   signHS256(t, testSecret, &Claims{}),
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "malformed",
			token:   "not.a.jwt",
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "alg none",
			token:   "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiJ1MSJ9.",
			wantErr: ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.ValidateToken(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClaims_UserIDFallback(t *testing.T) {
	manager, _ := NewJWTManager(testSecret, time.Hour)
	token := signHS256(t, testSecret, &Claims{UserID: "legacy_7"})

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Identity() != "legacy_7" {
		t.Errorf("Identity() = %q, want legacy_7", claims.Identity())
	}
}
