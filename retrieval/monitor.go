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


package retrieval

import (
	"github.com/poiesic/clearance/core"
)

// Reasons passed to Monitor.CollectionSkipped. Failures pass the error text.
const (
	skipNotFound = "not found"
	skipEmpty    = "empty"
)

// Monitor provides hooks to observe a retrieval.
// Implement this interface to track intermediate steps and results.
type Monitor interface {
	Start(query string, collections []core.CollectionID)
	CollectionSkipped(collection core.CollectionID, reason string)
	Escalated(best float64, candidates int)
	StrategyFinished(name string, candidates []core.Candidate)
	Finish(candidates []core.Candidate, diagnostics *core.Diagnostics)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ []core.CollectionID)          {}
func (n *noopMonitor) CollectionSkipped(_ core.CollectionID, _ string) {}
func (n *noopMonitor) Escalated(_ float64, _ int)                      {}
func (n *noopMonitor) StrategyFinished(_ string, _ []core.Candidate)   {}
func (n *noopMonitor) Finish(_ []core.Candidate, _ *core.Diagnostics)  {}
