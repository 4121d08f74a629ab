// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package config

import (
	"fmt"
	"net/url"
)

// backplaneSchemes lists the URL schemes the backplane adapters accept.
var backplaneSchemes = map[string]bool{
	"nats":   true,
	"tls":    true,
	"redis":  true,
	"rediss": true,
	"memory": true,
}

// validateBackplaneURL validates that the backplane URL is properly formatted.
// memory:// needs no host; every other scheme does.
func validateBackplaneURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	if !backplaneSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, redis, rediss or memory, got: %q", parsedURL.Scheme)
	}

	if parsedURL.Scheme != "memory" && parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222, redis.internal:6379)")
	}
	return nil
}

// BackplaneScheme returns the scheme of the configured backplane URL, or ""
// when single-instance.
func (b BackplaneConfig) BackplaneScheme() string {
	if b.URL == "" {
		return ""
	}
	u, err := url.Parse(b.URL)
	if err != nil {
		return ""
	}
	return u.Scheme
}
