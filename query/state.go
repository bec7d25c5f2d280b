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


package query

// State is a step of the query state machine.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateCollectionsResolved
	StateRetrieving
	StateEscalating
	StateFallbackRetrieving
	StateSufficient
	StateAssembling
	StateAnswered
	StateInsufficientInformation
	StateGenerationFailed
)

var stateNames = [...]string{
	StateUnauthenticated:         "unauthenticated",
	StateAuthenticated:           "authenticated",
	StateCollectionsResolved:     "collections_resolved",
	StateRetrieving:              "retrieving",
	StateEscalating:              "escalating",
	StateFallbackRetrieving:      "fallback_retrieving",
	StateSufficient:              "sufficient",
	StateAssembling:              "assembling",
	StateAnswered:                "answered",
	StateInsufficientInformation: "insufficient_information",
	StateGenerationFailed:        "generation_failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// StateObserver is called on every state the query passes through.
type StateObserver func(State)
