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
	"io"
	"os"

	"github.com/poiesic/clearance/core"
	"gopkg.in/yaml.v3"
)

// UserEntry is one user in the access file.
type UserEntry struct {
	Role         string `yaml:"role"`
	PasswordHash string `yaml:"password_hash"`
}

// File is the on-disk access configuration.
//
//	users:
//	  alice:
//	    role: finance
//	    password_hash: $2a$12$...
//	roles:
//	  finance: [finance_docs, general_docs]
//
// When roles is omitted the built-in mapping is used.
type File struct {
	Users map[string]UserEntry `yaml:"users"`
	Roles map[string][]string  `yaml:"roles"`
}

// ParseFile reads and parses an access file.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads and parses an access file from r.
func Parse(r io.Reader) (*File, error) {
	var file File
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessFile, err)
	}
	return &file, nil
}

// Registry builds the StaticRegistry described by the file.
func (f *File) Registry() (*StaticRegistry, error) {
	users := make(map[string]core.Role, len(f.Users))
	for name, entry := range f.Users {
		users[name] = core.Role(entry.Role)
	}

	roles := DefaultRoles()
	if len(f.Roles) > 0 {
		roles = make(map[core.Role][]core.CollectionID, len(f.Roles))
		for role, names := range f.Roles {
			collections := make([]core.CollectionID, len(names))
			for i, n := range names {
				collections[i] = core.CollectionID(n)
			}
			roles[core.Role(role)] = collections
		}
	}

	return NewStaticRegistry(users, roles)
}

// Hashes returns the identity->bcrypt hash map of the file.
func (f *File) Hashes() map[string]string {
	hashes := make(map[string]string, len(f.Users))
	for name, entry := range f.Users {
		hashes[name] = entry.PasswordHash
	}
	return hashes
}

// Load parses the access file at path and returns its registry and authenticator.
// An empty path yields the built-in registry and an authenticator with no credentials.
func Load(path string) (*StaticRegistry, *Authenticator, error) {
	if path == "" {
		registry := DefaultRegistry()
		auth, err := NewAuthenticator(registry, nil)
		return registry, auth, err
	}

	file, err := ParseFile(path)
	if err != nil {
		return nil, nil, err
	}
	registry, err := file.Registry()
	if err != nil {
		return nil, nil, err
	}
	auth, err := NewAuthenticator(registry, file.Hashes())
	if err != nil {
		return nil, nil, err
	}
	return registry, auth, nil
}
