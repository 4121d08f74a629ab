// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package hub

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

// ServerIDPrefix prefixes generated instance identities.
const ServerIDPrefix = "pinksync-"

// NewServerID resolves the instance identity: an explicit override wins,
// then the deployment revision (K_REVISION on Cloud Run / Knative), then a
// random pinksync-NNNN label.
func NewServerID(override, revision string) string {
	if id := strings.TrimSpace(override); id != "" {
		return id
	}
	if rev := strings.TrimSpace(revision); rev != "" {
		return rev
	}
	//nolint:gosec // identity label, not a secret
	return ServerIDPrefix + strconv.Itoa(1000+rand.IntN(9000))
}
