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


// Package retrieval finds candidate passages for a question inside the
// collections a role may read.
//
// Retriever embeds the query once and runs nearest-neighbour search over
// every authorized collection concurrently, converting cosine distances to
// similarities with Similarity. LexicalMatcher and DomainMatcher scan raw
// chunks by keyword overlap. Cascade chains these strategies, escalating to
// the keyword scans only when every semantic candidate is weak.
//
// No strategy ever reads a collection outside Request.Collections.
package retrieval
