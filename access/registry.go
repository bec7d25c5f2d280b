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
	"maps"
	"slices"

	"github.com/poiesic/clearance/core"
)

// Registry resolves identities to roles and roles to the collections they may query.
// Implementations must be safe for concurrent use.
type Registry interface {
	// Authorize returns the role of identity. Unknown identities produce an
	// error wrapping core.ErrAccessDenied and core.ErrUnknownIdentity.
	Authorize(identity string) (core.Role, error)

	// CollectionsFor returns the collections role may query, in configured order.
	// A role without a mapping has no access and yields an empty slice.
	CollectionsFor(role core.Role) []core.CollectionID
}

// StaticRegistry is an immutable in-memory Registry.
type StaticRegistry struct {
	users map[string]core.Role
	roles map[core.Role][]core.CollectionID
}

// NewStaticRegistry builds a registry from identity->role and role->collections maps.
// Identities are normalized. Duplicate collections within a role are dropped,
// keeping the first occurrence.
func NewStaticRegistry(users map[string]core.Role, roles map[core.Role][]core.CollectionID) (*StaticRegistry, error) {
	r := &StaticRegistry{
		users: make(map[string]core.Role, len(users)),
		roles: make(map[core.Role][]core.CollectionID, len(roles)),
	}

	for identity, role := range users {
		name := core.NormalizeIdentity(identity)
		if name == "" {
			return nil, fmt.Errorf("%w: empty identity", ErrInvalidAccessFile)
		}
		if err := core.ValidateRole(role); err != nil {
			return nil, fmt.Errorf("user %q: %w", name, err)
		}
		if existing, ok := r.users[name]; ok && existing != role {
			return nil, fmt.Errorf("%w: user %q listed with roles %q and %q", ErrInvalidAccessFile, name, existing, role)
		}
		r.users[name] = role
	}

	for role, collections := range roles {
		if err := core.ValidateRole(role); err != nil {
			return nil, err
		}
		seen := make(map[core.CollectionID]struct{}, len(collections))
		list := make([]core.CollectionID, 0, len(collections))
		for _, c := range collections {
			if err := core.ValidateCollectionID(c); err != nil {
				return nil, fmt.Errorf("role %q: %w", role, err)
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			list = append(list, c)
		}
		r.roles[role] = list
	}

	return r, nil
}

// Authorize implements Registry.
func (r *StaticRegistry) Authorize(identity string) (core.Role, error) {
	role, ok := r.users[core.NormalizeIdentity(identity)]
	if !ok {
		return "", fmt.Errorf("%w: %w", core.ErrAccessDenied, core.ErrUnknownIdentity)
	}
	return role, nil
}

// CollectionsFor implements Registry. The returned slice is a copy.
func (r *StaticRegistry) CollectionsFor(role core.Role) []core.CollectionID {
	return slices.Clone(r.roles[role])
}

// Roles returns every configured role, sorted.
func (r *StaticRegistry) Roles() []core.Role {
	return slices.Sorted(maps.Keys(r.roles))
}

// Users returns every known identity, sorted.
func (r *StaticRegistry) Users() []string {
	return slices.Sorted(maps.Keys(r.users))
}

// Universe returns the sorted union of every role's collections.
func (r *StaticRegistry) Universe() []core.CollectionID {
	set := make(map[core.CollectionID]struct{})
	for _, collections := range r.roles {
		for _, c := range collections {
			set[c] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}
