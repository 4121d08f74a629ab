// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

/*
Package auth resolves handshake credentials to a user identity.

The transport extracts Credentials from the upgrade request (query
parameters first, then headers) and hands them to a Validator before the
connection is accepted. A rejection is always an *AuthError and results in
HTTP 401 without upgrading.

Key Components:

  - CredentialValidator: the default Validator
  - JWTManager: HMAC-SHA256 token validation (and generation for tools/tests)
  - APIKeys: bcrypt hash matching for X-API-Key / api_key

Resolution Rules:

 1. A valid JWT supplies the user id (sub, or the user_id claim) and wins
    over anything the client sends.
 2. An API key, when hashes are configured, must match one of them.
 3. The client-sent user_id is accepted only with TrustClientUserID.
 4. With Required set, a connection that resolves no user id is rejected.

Usage Example:

	v, err := auth.NewCredentialValidator(auth.Config{
	    JWTSecret:         cfg.Auth.JWTSecret,
	    APIKeyHashes:      cfg.Auth.APIKeyHashes,
	    TrustClientUserID: cfg.Auth.TrustClientUserID,
	    Required:          cfg.Auth.Required,
	})
	userID, err := v.Validate(ctx, auth.FromRequest(r))
*/
package auth
