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

import "errors"

// Access errors
var (
	// ErrAccessDenied is the category for every authorization failure.
	// Callers should test for it with errors.Is.
	ErrAccessDenied = errors.New("access denied")

	// ErrUnknownIdentity indicates the identity does not resolve to a role.
	ErrUnknownIdentity = errors.New("unknown identity")

	// ErrNoCollections indicates the role may not query any collection.
	ErrNoCollections = errors.New("role has no authorized collections")
)

// Domain validation errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidCollectionID indicates a malformed collection name.
	ErrInvalidCollectionID = errors.New("invalid collection id")

	// ErrInvalidRole indicates an empty or malformed role.
	ErrInvalidRole = errors.New("invalid role")
)
