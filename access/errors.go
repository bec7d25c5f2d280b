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

import "errors"

var (
	// ErrAuthFailed is returned for any failed credential check.
	// Unknown users and wrong passwords are indistinguishable.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRegistryRequired indicates a nil Registry was supplied.
	ErrRegistryRequired = errors.New("registry is required")

	// ErrInvalidAccessFile indicates the access file could not be used.
	ErrInvalidAccessFile = errors.New("invalid access file")
)
