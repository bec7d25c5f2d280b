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


// Package access maps identities to roles and roles to the document
// collections they may read.
//
// The Registry interface is what the query path depends on. StaticRegistry
// is the in-memory implementation, built from the defaults or from a YAML
// access file. Authenticator adds bcrypt password checks on top of a Registry.
package access
