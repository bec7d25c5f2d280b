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


package core

import (
	"fmt"
	"strings"
)

// NormalizeIdentity trims and lowercases a username.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// ValidateCollectionID checks that a collection name is usable as a storage key.
//
// Allowed characters are lowercase ASCII letters, digits, '_' and '-'.
func ValidateCollectionID(id CollectionID) error {
	if id == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidCollectionID)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return fmt.Errorf("%w: %q contains %q", ErrInvalidCollectionID, id, r)
		}
	}
	return nil
}

// ValidateRole checks that a role tag is non-empty.
func ValidateRole(role Role) error {
	if strings.TrimSpace(string(role)) == "" {
		return fmt.Errorf("%w: empty role", ErrInvalidRole)
	}
	return nil
}

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Content must not be blank
//   - Collection must be a valid collection id
//
// NOT validated:
//   - Vector (can be empty until embedded)
//   - Metadata
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if strings.TrimSpace(chunk.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if err := ValidateCollectionID(chunk.Collection); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, err)
	}

	return nil
}
