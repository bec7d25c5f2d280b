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

import "github.com/poiesic/clearance/core"

// Built-in roles.
const (
	RoleFinance     core.Role = "finance"
	RoleMarketing   core.Role = "marketing"
	RoleHR          core.Role = "hr"
	RoleEngineering core.Role = "engineering"
	RoleExecutive   core.Role = "c_level"
	RoleEmployee    core.Role = "employee"
)

// GeneralCollection is readable by every built-in role.
const GeneralCollection core.CollectionID = "general_docs"

var departments = []string{"engineering", "finance", "marketing", "hr"}

// DefaultRoles returns the built-in role mapping. Department roles read their
// own collection plus the general one, the executive role reads everything and
// the employee role reads only the general collection.
func DefaultRoles() map[core.Role][]core.CollectionID {
	all := make([]core.CollectionID, 0, len(departments)+1)
	roles := make(map[core.Role][]core.CollectionID, len(departments)+2)
	for _, dept := range departments {
		c := core.CollectionForDepartment(dept)
		all = append(all, c)
		roles[core.Role(dept)] = []core.CollectionID{c, GeneralCollection}
	}
	roles[RoleExecutive] = append(all, GeneralCollection)
	roles[RoleEmployee] = []core.CollectionID{GeneralCollection}
	return roles
}

// DefaultUsers returns the built-in demo identities.
func DefaultUsers() map[string]core.Role {
	return map[string]core.Role{
		"alice":   RoleFinance,
		"bob":     RoleMarketing,
		"charlie": RoleHR,
		"dave":    RoleEngineering,
		"ceo":     RoleExecutive,
		"eve":     RoleEmployee,
	}
}

// DefaultRegistry returns a registry with the built-in users and roles.
func DefaultRegistry() *StaticRegistry {
	r, err := NewStaticRegistry(DefaultUsers(), DefaultRoles())
	if err != nil {
		panic(err)
	}
	return r
}
