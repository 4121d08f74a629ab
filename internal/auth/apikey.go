// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the bcrypt cost factor for API key hashing.
const bcryptCost = 12

// maxAPIKeyLength is bcrypt's input limit.
const maxAPIKeyLength = 72

// HashAPIKey returns the bcrypt hash to put in API_KEY_HASHES for key.
func HashAPIKey(key string) (string, error) {
	return hashAPIKey(key, bcryptCost)
}

func hashAPIKey(key string, cost int) (string, error) {
	if key == "" {
		return "", fmt.Errorf("api key is empty")
	}
	if len(key) > maxAPIKeyLength {
		return "", fmt.Errorf("api key longer than %d bytes", maxAPIKeyLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return string(hash), nil
}

// APIKeys matches presented keys against a fixed set of bcrypt hashes.
type APIKeys struct {
	hashes [][]byte
}

// NewAPIKeys parses hashes. Each must be a bcrypt hash.
func NewAPIKeys(hashes []string) (*APIKeys, error) {
	k := &APIKeys{hashes: make([][]byte, 0, len(hashes))}
	for i, h := range hashes {
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return nil, fmt.Errorf("api key hash %d: %w", i, err)
		}
		k.hashes = append(k.hashes, []byte(h))
	}
	return k, nil
}

// Enabled reports whether any hashes are configured.
func (k *APIKeys) Enabled() bool { return k != nil && len(k.hashes) > 0 }

// Match reports whether key matches one of the configured hashes.
func (k *APIKeys) Match(key string) bool {
	if key == "" || len(key) > maxAPIKeyLength {
		return false
	}
	for _, h := range k.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			return true
		}
	}
	return false
}
