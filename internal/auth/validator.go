// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/pinksync-hub/internal/logging"
)

// Credentials are what a client presents during the handshake. Any field
// may be empty.
type Credentials struct {
	APIKey string
	UserID string
	Token  string
}

// Empty reports whether nothing was presented.
func (c Credentials) Empty() bool {
	return c.APIKey == "" && c.UserID == "" && c.Token == ""
}

// FromRequest extracts credentials from the upgrade request. Query
// parameters (api_key, user_id, token) take precedence over the X-API-Key,
// X-User-ID and Authorization: Bearer headers; browsers cannot set headers
// on a WebSocket handshake.
func FromRequest(r *http.Request) Credentials {
	q := r.URL.Query()
	c := Credentials{
		APIKey: q.Get("api_key"),
		UserID: q.Get("user_id"),
		Token:  q.Get("token"),
	}
	if c.APIKey == "" {
		c.APIKey = r.Header.Get("X-API-Key")
	}
	if c.UserID == "" {
		c.UserID = r.Header.Get("X-User-ID")
	}
	if c.Token == "" {
		c.Token = bearerToken(r.Header.Get("Authorization"))
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.UserID = strings.TrimSpace(c.UserID)
	c.Token = strings.TrimSpace(c.Token)
	return c
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

// Validator resolves credentials to a user id. An empty user id with a nil
// error is an accepted anonymous connection. Rejections are *AuthError.
type Validator interface {
	Validate(ctx context.Context, creds Credentials) (userID string, err error)
}

// Config configures a CredentialValidator.
type Config struct {
	JWTSecret         string
	APIKeyHashes      []string
	TrustClientUserID bool
	Required          bool
}

// CredentialValidator is the default Validator.
type CredentialValidator struct {
	jwt               *JWTManager
	apiKeys           *APIKeys
	trustClientUserID bool
	required          bool
}

// NewCredentialValidator builds a validator. JWT checks are enabled only
// when a secret is set, API key checks only when hashes are set.
func NewCredentialValidator(cfg Config) (*CredentialValidator, error) {
	v := &CredentialValidator{
		trustClientUserID: cfg.TrustClientUserID,
		required:          cfg.Required,
	}
	if cfg.JWTSecret != "" {
		m, err := NewJWTManager(cfg.JWTSecret, time.Hour)
		if err != nil {
			return nil, err
		}
		v.jwt = m
	}
	keys, err := NewAPIKeys(cfg.APIKeyHashes)
	if err != nil {
		return nil, err
	}
	v.apiKeys = keys
	return v, nil
}

// Validate applies the resolution rules in order: token, API key, client
// user id, then the Required check.
func (v *CredentialValidator) Validate(ctx context.Context, creds Credentials) (string, error) {
	var userID string

	if creds.Token != "" {
		if v.jwt == nil {
			return "", reject("token auth not configured", ErrInvalidCredentials)
		}
		claims, err := v.jwt.ValidateToken(creds.Token)
		if err != nil {
			return "", reject("token rejected", err)
		}
		userID = claims.Identity()
	}

	if v.apiKeys.Enabled() {
		if creds.APIKey == "" {
			if userID == "" {
				return "", reject("api key required", ErrNoCredentials)
			}
		} else if !v.apiKeys.Match(creds.APIKey) {
			return "", reject("api key rejected", ErrInvalidCredentials)
		}
	}

	if userID == "" && v.trustClientUserID {
		userID = creds.UserID
	} else if userID != "" && creds.UserID != "" && creds.UserID != userID {
		logging.Ctx(ctx).Debug().
			Str("token_user_id", userID).
			Str("client_user_id", creds.UserID).
			Msg("client user_id ignored, token identity wins")
	}

	if v.required && userID == "" {
		return "", reject("user identity required", ErrNoCredentials)
	}
	return userID, nil
}
