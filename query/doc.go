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


// Package query is the single entry point for answering questions.
//
// Engine.AnswerQuery walks a fixed state machine: authenticate the identity,
// resolve its collections, retrieve (escalating to keyword fallbacks when
// semantic matches are weak), assemble context and generate. Access errors
// fail closed; retrieval problems degrade into diagnostics.
package query
