// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package access

import (
	"fmt"
	"log/slog"

	"github.com/poiesic/clearance/core"
	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt cost used by HashPassword when cost is zero.
const DefaultHashCost = 12

// Authenticator verifies passwords against bcrypt hashes and resolves the
// caller's role through a Registry.
type Authenticator struct {
	registry Registry
	hashes   map[string][]byte
	// dummy is compared against when the identity has no credential. It
	// carries the highest stored cost so unknown users take as long to
	// reject as wrong passwords.
	dummy  []byte
	logger *slog.Logger
}

// AuthOption configures an Authenticator.
type AuthOption func(*Authenticator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) AuthOption {
	return func(a *Authenticator) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewAuthenticator creates an authenticator. hashes maps identities to bcrypt hashes.
func NewAuthenticator(registry Registry, hashes map[string]string, opts ...AuthOption) (*Authenticator, error) {
	if registry == nil {
		return nil, ErrRegistryRequired
	}

	a := &Authenticator{
		registry: registry,
		hashes:   make(map[string][]byte, len(hashes)),
		logger:   slog.Default().With("component", "authenticator"),
	}
	cost := bcrypt.MinCost
	for identity, hash := range hashes {
		if hash == "" {
			continue
		}
		c, err := bcrypt.Cost([]byte(hash))
		if err != nil {
			return nil, fmt.Errorf("%w: user %q: %w", ErrInvalidAccessFile, identity, err)
		}
		cost = max(cost, c)
		a.hashes[core.NormalizeIdentity(identity)] = []byte(hash)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("unknown identity"), cost)
	if err != nil {
		return nil, err
	}
	a.dummy = dummy

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Authenticate checks the password and returns the identity's role.
// Every failure wraps core.ErrAccessDenied and ErrAuthFailed.
func (a *Authenticator) Authenticate(identity, password string) (core.Role, error) {
	name := core.NormalizeIdentity(identity)

	hash, ok := a.hashes[name]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(a.dummy, []byte(password))
		a.logger.Debug("no credential for identity")
		return "", fmt.Errorf("%w: %w", core.ErrAccessDenied, ErrAuthFailed)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		a.logger.Debug("password verification failed", "err", err)
		return "", fmt.Errorf("%w: %w", core.ErrAccessDenied, ErrAuthFailed)
	}

	role, err := a.registry.Authorize(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrAccessDenied, ErrAuthFailed)
	}
	return role, nil
}

// HasCredentials reports whether any identity can authenticate.
func (a *Authenticator) HasCredentials() bool {
	return len(a.hashes) > 0
}

// HashPassword returns a bcrypt hash suitable for the access file.
// A zero cost selects DefaultHashCost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = DefaultHashCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
